package heaps

import (
	"github.com/pmikstacki/cilkit/internal/format"
	"github.com/pmikstacki/cilkit/pkg/types"
)

// AppendedUserString is one #US entry added during the session. Index is
// the final byte offset assigned at append time. EncodedSize is the full
// entry size measured then: compressed length prefix plus UTF-16 bytes
// plus the terminal byte. The session index stays pinned to that size
// even if the value is modified later.
type AppendedUserString struct {
	Index       uint32
	Value       string
	EncodedSize uint32
}

// UserStringChanges accumulates edits against the #US heap.
type UserStringChanges struct {
	originalSize uint32
	next         uint32
	appended     []AppendedUserString
	mods         map[uint32]string
	removed      map[uint32]types.RefStrategy
	replacement  []byte
	replaced     bool
}

// NewUserStringChanges creates a tracker for a heap whose original content
// is originalSize bytes long.
func NewUserStringChanges(originalSize uint32) *UserStringChanges {
	return &UserStringChanges{
		originalSize: originalSize,
		next:         originalSize,
		mods:         make(map[uint32]string),
		removed:      make(map[uint32]types.RefStrategy),
	}
}

// Add appends a user string and returns the byte offset it will occupy.
// The entry is stored as UTF-16LE with one terminal byte, prefixed with a
// compressed length covering both.
func (c *UserStringChanges) Add(value string) uint32 {
	idx := c.next
	total := uint32(format.UTF16ByteLen(value)) + 1
	size := uint32(format.CompressedUintSize(total)) + total
	c.appended = append(c.appended, AppendedUserString{Index: idx, Value: value, EncodedSize: size})
	c.next += size
	return idx
}

// AddModification records a point replacement for the entry at index. The
// entry keeps the encoded size measured at append time, so no other index
// moves.
func (c *UserStringChanges) AddModification(index uint32, value string) {
	c.mods[index] = value
}

// Remove marks the entry at index as removed with the given strategy.
func (c *UserStringChanges) Remove(index uint32, strategy types.RefStrategy) {
	c.removed[index] = strategy
}

// ReplaceHeap discards all session state and installs raw as the new
// baseline heap.
func (c *UserStringChanges) ReplaceHeap(raw []byte) {
	c.replacement = append([]byte(nil), raw...)
	c.replaced = true
	c.appended = nil
	c.mods = make(map[uint32]string)
	c.removed = make(map[uint32]types.RefStrategy)
	c.next = uint32(len(raw))
}

// NextIndex returns the offset the next appended user string will receive.
func (c *UserStringChanges) NextIndex() uint32 { return c.next }

// OriginalSize returns the byte size of the baseline heap.
func (c *UserStringChanges) OriginalSize() uint32 {
	if c.replaced {
		return uint32(len(c.replacement))
	}
	return c.originalSize
}

// Appended returns the session's appended entries in append order.
func (c *UserStringChanges) Appended() []AppendedUserString { return c.appended }

// AppendedAt returns the value appended at the given session index.
func (c *UserStringChanges) AppendedAt(index uint32) (string, bool) {
	for i := range c.appended {
		if c.appended[i].Index == index {
			return c.appended[i].Value, true
		}
	}
	return "", false
}

// Modification returns the pending point replacement for index, if any.
func (c *UserStringChanges) Modification(index uint32) (string, bool) {
	v, ok := c.mods[index]
	return v, ok
}

// Modifications returns the pending point replacements keyed by index.
func (c *UserStringChanges) Modifications() map[uint32]string { return c.mods }

// Removals returns the removed indices and their reference strategies.
func (c *UserStringChanges) Removals() map[uint32]types.RefStrategy { return c.removed }

// IsRemoved reports whether index has a pending removal.
func (c *UserStringChanges) IsRemoved(index uint32) bool {
	_, ok := c.removed[index]
	return ok
}

// Replacement returns the replacement heap if ReplaceHeap was called.
func (c *UserStringChanges) Replacement() ([]byte, bool) {
	return c.replacement, c.replaced
}

// HasChanges reports whether any edit is pending against this heap.
func (c *UserStringChanges) HasChanges() bool {
	return len(c.appended) > 0 || len(c.mods) > 0 || len(c.removed) > 0 || c.replaced
}

// CompactAppended folds modifications into surviving appended entries,
// drops removed ones, and reassigns offsets sequentially from the baseline
// end. Folded entries keep their pinned EncodedSize: the session index
// contract is based on the encoding measured at append, so a modified
// value never shifts its neighbors.
func (c *UserStringChanges) CompactAppended() map[uint32]uint32 {
	mapping := make(map[uint32]uint32, len(c.appended))
	survivors := c.appended[:0]
	next := c.OriginalSize()
	for _, e := range c.appended {
		if _, gone := c.removed[e.Index]; gone {
			delete(c.removed, e.Index)
			continue
		}
		if mod, ok := c.mods[e.Index]; ok {
			e.Value = mod
			delete(c.mods, e.Index)
		}
		mapping[e.Index] = next
		e.Index = next
		next += e.EncodedSize
		survivors = append(survivors, e)
	}
	c.appended = survivors
	c.next = next
	return mapping
}

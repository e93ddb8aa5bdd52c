package heaps

import (
	"github.com/pmikstacki/cilkit/pkg/types"
)

// AppendedString is one #Strings entry added during the session. Index is
// the final byte offset assigned at append time.
type AppendedString struct {
	Index uint32
	Value string
}

// StringChanges accumulates edits against the #Strings heap.
type StringChanges struct {
	originalSize uint32
	next         uint32
	appended     []AppendedString
	mods         map[uint32]string
	removed      map[uint32]types.RefStrategy
	replacement  []byte
	replaced     bool
}

// NewStringChanges creates a tracker for a heap whose original content is
// originalSize bytes long. Offsets for appended strings start there.
func NewStringChanges(originalSize uint32) *StringChanges {
	return &StringChanges{
		originalSize: originalSize,
		next:         originalSize,
		mods:         make(map[uint32]string),
		removed:      make(map[uint32]types.RefStrategy),
	}
}

// Add appends a string and returns the byte offset it will occupy. The
// offset is final: next advances by len(value)+1 for the null terminator.
func (c *StringChanges) Add(value string) uint32 {
	idx := c.next
	c.appended = append(c.appended, AppendedString{Index: idx, Value: value})
	c.next += uint32(len(value)) + 1
	return idx
}

// AddModification records a point replacement for the entry at index. The
// index does not move; the writer applies the new value in place when it
// fits and relocates it otherwise.
func (c *StringChanges) AddModification(index uint32, value string) {
	c.mods[index] = value
}

// Remove marks the entry at index as removed with the given reference
// strategy. Original entries become tombstones; appended entries drop out
// of the appended sequence at compaction.
func (c *StringChanges) Remove(index uint32, strategy types.RefStrategy) {
	c.removed[index] = strategy
}

// ReplaceHeap discards all session state and installs raw as the new
// baseline heap. Later appends start at len(raw).
func (c *StringChanges) ReplaceHeap(raw []byte) {
	c.replacement = append([]byte(nil), raw...)
	c.replaced = true
	c.appended = nil
	c.mods = make(map[uint32]string)
	c.removed = make(map[uint32]types.RefStrategy)
	c.next = uint32(len(raw))
}

// NextIndex returns the offset the next appended string will receive.
func (c *StringChanges) NextIndex() uint32 { return c.next }

// OriginalSize returns the byte size of the baseline heap: the original
// stream, or the replacement once ReplaceHeap has run.
func (c *StringChanges) OriginalSize() uint32 {
	if c.replaced {
		return uint32(len(c.replacement))
	}
	return c.originalSize
}

// Appended returns the session's appended entries in append order.
func (c *StringChanges) Appended() []AppendedString { return c.appended }

// AppendedAt returns the value appended at the given session index.
func (c *StringChanges) AppendedAt(index uint32) (string, bool) {
	for i := range c.appended {
		if c.appended[i].Index == index {
			return c.appended[i].Value, true
		}
	}
	return "", false
}

// Modification returns the pending point replacement for index, if any.
func (c *StringChanges) Modification(index uint32) (string, bool) {
	v, ok := c.mods[index]
	return v, ok
}

// Modifications returns the pending point replacements keyed by index.
func (c *StringChanges) Modifications() map[uint32]string { return c.mods }

// Removals returns the removed indices and their reference strategies.
func (c *StringChanges) Removals() map[uint32]types.RefStrategy { return c.removed }

// IsRemoved reports whether index has a pending removal.
func (c *StringChanges) IsRemoved(index uint32) bool {
	_, ok := c.removed[index]
	return ok
}

// Replacement returns the replacement heap if ReplaceHeap was called.
func (c *StringChanges) Replacement() ([]byte, bool) {
	return c.replacement, c.replaced
}

// HasChanges reports whether any edit is pending against this heap.
func (c *StringChanges) HasChanges() bool {
	return len(c.appended) > 0 || len(c.mods) > 0 || len(c.removed) > 0 || c.replaced
}

// CompactAppended folds pending modifications into the surviving appended
// entries, drops the ones marked removed, and reassigns their offsets
// sequentially from the baseline end. It returns the old-to-new offset map
// for survivors; entries that were dropped have no mapping. Running it
// again without intervening edits maps every offset to itself.
func (c *StringChanges) CompactAppended() map[uint32]uint32 {
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
		next += uint32(len(e.Value)) + 1
		survivors = append(survivors, e)
	}
	c.appended = survivors
	c.next = next
	return mapping
}

package heaps

import (
	"github.com/pmikstacki/cilkit/internal/format"
	"github.com/pmikstacki/cilkit/pkg/types"
)

// AppendedBlob is one #Blob entry added during the session. Index is the
// final byte offset assigned at append time.
type AppendedBlob struct {
	Index uint32
	Value []byte
}

// BlobChanges accumulates edits against the #Blob heap.
type BlobChanges struct {
	originalSize uint32
	next         uint32
	appended     []AppendedBlob
	mods         map[uint32][]byte
	removed      map[uint32]types.RefStrategy
	replacement  []byte
	replaced     bool
}

// NewBlobChanges creates a tracker for a heap whose original content is
// originalSize bytes long.
func NewBlobChanges(originalSize uint32) *BlobChanges {
	return &BlobChanges{
		originalSize: originalSize,
		next:         originalSize,
		mods:         make(map[uint32][]byte),
		removed:      make(map[uint32]types.RefStrategy),
	}
}

// Add appends a blob and returns the byte offset it will occupy. The blob
// is stored with a compressed length prefix, so next advances by the
// prefix size plus the data length.
func (c *BlobChanges) Add(value []byte) uint32 {
	idx := c.next
	c.appended = append(c.appended, AppendedBlob{Index: idx, Value: append([]byte(nil), value...)})
	c.next += uint32(format.CompressedUintSize(uint32(len(value)))) + uint32(len(value))
	return idx
}

// AddModification records a point replacement for the blob at index.
func (c *BlobChanges) AddModification(index uint32, value []byte) {
	c.mods[index] = append([]byte(nil), value...)
}

// Remove marks the blob at index as removed with the given strategy.
func (c *BlobChanges) Remove(index uint32, strategy types.RefStrategy) {
	c.removed[index] = strategy
}

// ReplaceHeap discards all session state and installs raw as the new
// baseline heap.
func (c *BlobChanges) ReplaceHeap(raw []byte) {
	c.replacement = append([]byte(nil), raw...)
	c.replaced = true
	c.appended = nil
	c.mods = make(map[uint32][]byte)
	c.removed = make(map[uint32]types.RefStrategy)
	c.next = uint32(len(raw))
}

// NextIndex returns the offset the next appended blob will receive.
func (c *BlobChanges) NextIndex() uint32 { return c.next }

// OriginalSize returns the byte size of the baseline heap.
func (c *BlobChanges) OriginalSize() uint32 {
	if c.replaced {
		return uint32(len(c.replacement))
	}
	return c.originalSize
}

// Appended returns the session's appended entries in append order.
func (c *BlobChanges) Appended() []AppendedBlob { return c.appended }

// AppendedAt returns the blob appended at the given session index.
func (c *BlobChanges) AppendedAt(index uint32) ([]byte, bool) {
	for i := range c.appended {
		if c.appended[i].Index == index {
			return c.appended[i].Value, true
		}
	}
	return nil, false
}

// Modification returns the pending point replacement for index, if any.
func (c *BlobChanges) Modification(index uint32) ([]byte, bool) {
	v, ok := c.mods[index]
	return v, ok
}

// Modifications returns the pending point replacements keyed by index.
func (c *BlobChanges) Modifications() map[uint32][]byte { return c.mods }

// Removals returns the removed indices and their reference strategies.
func (c *BlobChanges) Removals() map[uint32]types.RefStrategy { return c.removed }

// IsRemoved reports whether index has a pending removal.
func (c *BlobChanges) IsRemoved(index uint32) bool {
	_, ok := c.removed[index]
	return ok
}

// Replacement returns the replacement heap if ReplaceHeap was called.
func (c *BlobChanges) Replacement() ([]byte, bool) {
	return c.replacement, c.replaced
}

// HasChanges reports whether any edit is pending against this heap.
func (c *BlobChanges) HasChanges() bool {
	return len(c.appended) > 0 || len(c.mods) > 0 || len(c.removed) > 0 || c.replaced
}

// CompactAppended folds modifications into surviving appended blobs, drops
// removed ones, and reassigns offsets sequentially from the baseline end.
// Returns the old-to-new offset map for survivors.
func (c *BlobChanges) CompactAppended() map[uint32]uint32 {
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
		next += uint32(format.CompressedUintSize(uint32(len(e.Value)))) + uint32(len(e.Value))
		survivors = append(survivors, e)
	}
	c.appended = survivors
	c.next = next
	return mapping
}

package heaps

import (
	"github.com/pmikstacki/cilkit/internal/format"
	"github.com/pmikstacki/cilkit/pkg/types"
)

// AppendedGUID is one #GUID entry added during the session. Slot is the
// 1-based slot number assigned at append time.
type AppendedGUID struct {
	Slot  uint32
	Value [16]byte
}

// GUIDChanges accumulates edits against the #GUID heap. Unlike the byte
// offset heaps, GUID indices are 1-based slot counts over fixed 16-byte
// entries.
type GUIDChanges struct {
	originalCount uint32
	appended      []AppendedGUID
	mods          map[uint32][16]byte
	removed       map[uint32]types.RefStrategy
	replacement   []byte
	replaced      bool
}

// NewGUIDChanges creates a tracker for a heap holding originalCount GUIDs.
func NewGUIDChanges(originalCount uint32) *GUIDChanges {
	return &GUIDChanges{
		originalCount: originalCount,
		mods:          make(map[uint32][16]byte),
		removed:       make(map[uint32]types.RefStrategy),
	}
}

// Add appends a GUID and returns its slot number: one past the original
// count plus the appends so far. A heap with no original GUIDs hands out
// slots 1, 2, and so on.
func (c *GUIDChanges) Add(value [16]byte) uint32 {
	slot := c.OriginalCount() + uint32(len(c.appended)) + 1
	c.appended = append(c.appended, AppendedGUID{Slot: slot, Value: value})
	return slot
}

// AddModification records a point replacement for the GUID at slot.
func (c *GUIDChanges) AddModification(slot uint32, value [16]byte) {
	c.mods[slot] = value
}

// Remove marks the GUID at slot as removed with the given strategy.
func (c *GUIDChanges) Remove(slot uint32, strategy types.RefStrategy) {
	c.removed[slot] = strategy
}

// ReplaceHeap discards all session state and installs raw as the new
// baseline. The new original count is len(raw)/16.
func (c *GUIDChanges) ReplaceHeap(raw []byte) {
	c.replacement = append([]byte(nil), raw...)
	c.replaced = true
	c.appended = nil
	c.mods = make(map[uint32][16]byte)
	c.removed = make(map[uint32]types.RefStrategy)
}

// NextIndex returns the slot the next appended GUID will receive.
func (c *GUIDChanges) NextIndex() uint32 {
	return c.OriginalCount() + uint32(len(c.appended)) + 1
}

// OriginalCount returns the number of GUIDs in the baseline heap.
func (c *GUIDChanges) OriginalCount() uint32 {
	if c.replaced {
		return uint32(len(c.replacement)) / format.GUIDSize
	}
	return c.originalCount
}

// Appended returns the session's appended GUIDs in append order.
func (c *GUIDChanges) Appended() []AppendedGUID { return c.appended }

// AppendedAt returns the GUID appended at the given slot.
func (c *GUIDChanges) AppendedAt(slot uint32) ([16]byte, bool) {
	for i := range c.appended {
		if c.appended[i].Slot == slot {
			return c.appended[i].Value, true
		}
	}
	return [16]byte{}, false
}

// Modification returns the pending point replacement for slot, if any.
func (c *GUIDChanges) Modification(slot uint32) ([16]byte, bool) {
	v, ok := c.mods[slot]
	return v, ok
}

// Modifications returns the pending point replacements keyed by slot.
func (c *GUIDChanges) Modifications() map[uint32][16]byte { return c.mods }

// Removals returns the removed slots and their reference strategies.
func (c *GUIDChanges) Removals() map[uint32]types.RefStrategy { return c.removed }

// IsRemoved reports whether slot has a pending removal.
func (c *GUIDChanges) IsRemoved(slot uint32) bool {
	_, ok := c.removed[slot]
	return ok
}

// Replacement returns the replacement heap if ReplaceHeap was called.
func (c *GUIDChanges) Replacement() ([]byte, bool) {
	return c.replacement, c.replaced
}

// HasChanges reports whether any edit is pending against this heap.
func (c *GUIDChanges) HasChanges() bool {
	return len(c.appended) > 0 || len(c.mods) > 0 || len(c.removed) > 0 || c.replaced
}

// CompactAppended folds modifications into surviving appended GUIDs, drops
// removed ones, and reassigns slots sequentially after the baseline count.
// Returns the old-to-new slot map for survivors.
func (c *GUIDChanges) CompactAppended() map[uint32]uint32 {
	mapping := make(map[uint32]uint32, len(c.appended))
	survivors := c.appended[:0]
	slot := c.OriginalCount() + 1
	for _, e := range c.appended {
		if _, gone := c.removed[e.Slot]; gone {
			delete(c.removed, e.Slot)
			continue
		}
		if mod, ok := c.mods[e.Slot]; ok {
			e.Value = mod
			delete(c.mods, e.Slot)
		}
		mapping[e.Slot] = slot
		e.Slot = slot
		slot++
		survivors = append(survivors, e)
	}
	c.appended = survivors
	return mapping
}

package heaps

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pmikstacki/cilkit/pkg/types"
)

// ============================================================================
// Append and Offset Tests
// ============================================================================

func Test_StringChanges_Add_AssignsSequentialOffsets(t *testing.T) {
	// Why this test: Appended offsets are handed to callers immediately and
	// end up in table columns, so the reservation math must be exact. "Hello"
	// then "World" on a 100-byte heap: second offset is first + 6 (5 bytes of
	// UTF-8 plus the null terminator).
	sc := NewStringChanges(100)

	hello := sc.Add("Hello")
	world := sc.Add("World")

	require.Equal(t, uint32(100), hello)
	require.Equal(t, uint32(106), world)
	require.Equal(t, uint32(112), sc.NextIndex())
}

func Test_StringChanges_Add_EmptyString(t *testing.T) {
	sc := NewStringChanges(1)

	idx := sc.Add("")
	require.Equal(t, uint32(1), idx)
	require.Equal(t, uint32(2), sc.NextIndex(), "empty string still consumes its terminator")
}

func Test_StringChanges_Add_MultiByteUTF8(t *testing.T) {
	// Why this test: Reservation is byte length, not rune count. "héllo" is
	// 6 UTF-8 bytes, not 5 runes worth.
	sc := NewStringChanges(1)

	idx := sc.Add("héllo")
	require.Equal(t, uint32(1), idx)
	require.Equal(t, uint32(8), sc.NextIndex())
}

// ============================================================================
// Modification and Removal Tests
// ============================================================================

func Test_StringChanges_AddModification_DoesNotMoveNextIndex(t *testing.T) {
	// Why this test: Modifications target existing offsets. Whether the new
	// value fits is the serializer's concern, so recording one must never
	// shift where the next append lands.
	sc := NewStringChanges(50)
	idx := sc.Add("short")
	before := sc.NextIndex()

	sc.AddModification(idx, "a much longer replacement value")

	require.Equal(t, before, sc.NextIndex())
	got, ok := sc.Modification(idx)
	require.True(t, ok)
	require.Equal(t, "a much longer replacement value", got)
}

func Test_StringChanges_Remove_TracksStrategy(t *testing.T) {
	sc := NewStringChanges(50)

	sc.Remove(10, types.FailIfReferenced)
	sc.Remove(20, types.RemoveReferences)

	require.True(t, sc.IsRemoved(10))
	require.True(t, sc.IsRemoved(20))
	require.False(t, sc.IsRemoved(30))
	require.Equal(t, types.FailIfReferenced, sc.Removals()[10])
	require.Equal(t, types.RemoveReferences, sc.Removals()[20])
}

func Test_StringChanges_ReplaceHeap_ResetsState(t *testing.T) {
	sc := NewStringChanges(50)
	sc.Add("doomed")
	sc.AddModification(3, "also doomed")
	sc.Remove(7, types.FailIfReferenced)

	raw := []byte{0, 'a', 'b', 0}
	sc.ReplaceHeap(raw)

	require.Empty(t, sc.Appended())
	require.Empty(t, sc.Modifications())
	require.Empty(t, sc.Removals())
	require.Equal(t, uint32(4), sc.NextIndex())
	require.Equal(t, uint32(4), sc.OriginalSize())

	rep, ok := sc.Replacement()
	require.True(t, ok)
	require.Equal(t, raw, rep)

	// Appends after replacement start at the replacement's end.
	idx := sc.Add("next")
	require.Equal(t, uint32(4), idx)
}

func Test_StringChanges_HasChanges(t *testing.T) {
	sc := NewStringChanges(10)
	require.False(t, sc.HasChanges())

	sc.Add("x")
	require.True(t, sc.HasChanges())

	sc = NewStringChanges(10)
	sc.AddModification(2, "y")
	require.True(t, sc.HasChanges())

	sc = NewStringChanges(10)
	sc.Remove(2, types.FailIfReferenced)
	require.True(t, sc.HasChanges())

	sc = NewStringChanges(10)
	sc.ReplaceHeap([]byte{0})
	require.True(t, sc.HasChanges())
}

// ============================================================================
// Compaction Tests
// ============================================================================

func Test_StringChanges_CompactAppended_DropsRemovedEntries(t *testing.T) {
	// Why this test: Compaction squeezes removed appends out of the pending
	// run and reports where the survivors moved. Callers patch their stored
	// offsets from that mapping, so it must cover survivors exactly and omit
	// the removed entry.
	sc := NewStringChanges(10)
	a := sc.Add("aa") // 10
	b := sc.Add("bb") // 13
	c := sc.Add("cc") // 16

	sc.Remove(b, types.RemoveReferences)
	mapping := sc.CompactAppended()

	// a keeps its offset, c slides into b's space.
	require.Equal(t, uint32(10), mapping[a])
	require.Equal(t, uint32(13), mapping[c])
	_, hasB := mapping[b]
	require.False(t, hasB, "removed entry must not survive compaction")

	require.Len(t, sc.Appended(), 2)
	require.Equal(t, uint32(16), sc.NextIndex())
	require.False(t, sc.IsRemoved(b), "appended removal mark is consumed")
}

func Test_StringChanges_CompactAppended_FoldsModifications(t *testing.T) {
	sc := NewStringChanges(1)
	a := sc.Add("aa")   // 1, reserves 3
	b := sc.Add("bbbb") // 4

	sc.AddModification(a, "a") // shorter value

	mapping := sc.CompactAppended()
	require.Equal(t, uint32(1), mapping[a])
	require.Equal(t, uint32(3), mapping[b], "later entry repacks against the folded size")

	v, ok := sc.AppendedAt(1)
	require.True(t, ok)
	require.Equal(t, "a", v)
	require.Empty(t, sc.Modifications(), "folded modification is consumed")
}

func Test_StringChanges_CompactAppended_Idempotent(t *testing.T) {
	// Why this test: Serialization may compact an already compacted set. The
	// second pass must be the identity mapping or offsets would drift on
	// every call.
	sc := NewStringChanges(10)
	sc.Add("one")
	b := sc.Add("two")
	sc.Add("three")
	sc.Remove(b, types.RemoveReferences)

	first := sc.CompactAppended()
	require.Len(t, first, 2)

	second := sc.CompactAppended()
	for old, mapped := range second {
		require.Equal(t, old, mapped, "second compaction must be identity")
	}
}

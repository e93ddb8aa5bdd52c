package heaps

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pmikstacki/cilkit/pkg/types"
)

func Test_BlobChanges_Add_AdvancesByPrefixPlusData(t *testing.T) {
	bc := NewBlobChanges(1)

	// 3 bytes: 1-byte prefix + 3 data.
	small := bc.Add([]byte{1, 2, 3})
	require.Equal(t, uint32(1), small)
	require.Equal(t, uint32(5), bc.NextIndex())

	// 200 bytes: 2-byte prefix + 200 data.
	big := bc.Add(make([]byte, 200))
	require.Equal(t, uint32(5), big)
	require.Equal(t, uint32(5+2+200), bc.NextIndex())
}

func Test_BlobChanges_Add_EmptyBlob(t *testing.T) {
	bc := NewBlobChanges(1)

	idx := bc.Add(nil)
	require.Equal(t, uint32(1), idx)
	require.Equal(t, uint32(2), bc.NextIndex(), "empty blob still takes a 1-byte prefix")
}

func Test_BlobChanges_Add_CopiesInput(t *testing.T) {
	bc := NewBlobChanges(1)
	buf := []byte{1, 2, 3}
	idx := bc.Add(buf)

	buf[0] = 99
	got, ok := bc.AppendedAt(idx)
	require.True(t, ok)
	require.True(t, bytes.Equal([]byte{1, 2, 3}, got), "tracker must not alias caller memory")
}

func Test_BlobChanges_RemoveAndModification(t *testing.T) {
	bc := NewBlobChanges(10)
	idx := bc.Add([]byte{0xAA})

	bc.AddModification(idx, []byte{0xBB, 0xCC})
	bc.Remove(4, types.FailIfReferenced)

	mod, ok := bc.Modification(idx)
	require.True(t, ok)
	require.Equal(t, []byte{0xBB, 0xCC}, mod)
	require.True(t, bc.IsRemoved(4))
	require.True(t, bc.HasChanges())
}

func Test_BlobChanges_ReplaceHeap_ResetsState(t *testing.T) {
	bc := NewBlobChanges(10)
	bc.Add([]byte{1})
	bc.Remove(3, types.RemoveReferences)

	bc.ReplaceHeap([]byte{0, 1, 0x42})

	require.Empty(t, bc.Appended())
	require.Empty(t, bc.Removals())
	require.Equal(t, uint32(3), bc.NextIndex())
	require.Equal(t, uint32(3), bc.OriginalSize())
}

func Test_BlobChanges_CompactAppended_RepacksSizes(t *testing.T) {
	bc := NewBlobChanges(1)
	a := bc.Add(make([]byte, 200)) // 1, reserves 2+200
	b := bc.Add([]byte{9})         // 203

	// Shrink a below the 1-byte prefix threshold.
	bc.AddModification(a, []byte{1, 2})

	mapping := bc.CompactAppended()
	require.Equal(t, uint32(1), mapping[a])
	require.Equal(t, uint32(4), mapping[b], "1-byte prefix + 2 data repacks b at 4")
	require.Equal(t, uint32(6), bc.NextIndex())
}

func Test_BlobChanges_CompactAppended_Idempotent(t *testing.T) {
	bc := NewBlobChanges(1)
	bc.Add([]byte{1, 2})
	doomed := bc.Add([]byte{3})
	bc.Add([]byte{4, 5, 6})
	bc.Remove(doomed, types.RemoveReferences)

	bc.CompactAppended()
	second := bc.CompactAppended()
	for old, mapped := range second {
		require.Equal(t, old, mapped)
	}
}

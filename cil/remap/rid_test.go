package remap

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pmikstacki/cilkit/cil"
	"github.com/pmikstacki/cilkit/cil/oplog"
)

// stamped builds a TableOperation with explicit ordering for tests.
func stamped(kind oplog.OpKind, rid uint32, row cil.Row, ts int64, seq uint64) oplog.TableOperation {
	return oplog.TableOperation{
		Operation: oplog.Operation{Kind: kind, RID: rid, Row: row},
		Timestamp: ts,
		Seq:       seq,
	}
}

func Test_NewRidRemapper_IdentityOverOriginalRange(t *testing.T) {
	r := NewRidRemapper(5)

	got, ok := r.Map(3)
	require.True(t, ok)
	require.Equal(t, uint32(3), got)

	_, ok = r.Map(0)
	require.False(t, ok)
	_, ok = r.Map(6)
	require.False(t, ok)

	require.Equal(t, uint32(5), r.FinalCount())
	require.Equal(t, uint32(6), r.NextAvailable())
}

func Test_BuildRidRemapper_NoOperationsKeepsIdentity(t *testing.T) {
	r := BuildRidRemapper(nil, 4)

	for rid := uint32(1); rid <= 4; rid++ {
		got, ok := r.Map(rid)
		require.True(t, ok)
		require.Equal(t, rid, got)
	}
	require.Equal(t, uint32(4), r.FinalCount())
	require.Equal(t, uint32(5), r.NextAvailable())
}

func Test_BuildRidRemapper_InsertGetsNextSequentialRID(t *testing.T) {
	// Session RID 10 over 5 originals lands right after them.
	ops := []oplog.TableOperation{
		stamped(oplog.OpInsert, 10, cil.TypeDefRow{Name: 1}, 100, 1),
	}
	r := BuildRidRemapper(ops, 5)

	got, ok := r.Map(10)
	require.True(t, ok)
	require.Equal(t, uint32(6), got)

	got, ok = r.Map(5)
	require.True(t, ok)
	require.Equal(t, uint32(5), got)

	require.Equal(t, uint32(6), r.FinalCount())
	require.Equal(t, uint32(7), r.NextAvailable())

	session, ok := r.ReverseLookup(6)
	require.True(t, ok)
	require.Equal(t, uint32(10), session)
}

func Test_BuildRidRemapper_DeleteCompactsFollowingRIDs(t *testing.T) {
	ops := []oplog.TableOperation{
		stamped(oplog.OpDelete, 3, nil, 100, 1),
	}
	r := BuildRidRemapper(ops, 5)

	_, ok := r.Map(3)
	require.False(t, ok, "deleted rows have no final RID")

	got, ok := r.Map(2)
	require.True(t, ok)
	require.Equal(t, uint32(2), got)

	got, ok = r.Map(4)
	require.True(t, ok)
	require.Equal(t, uint32(3), got)

	got, ok = r.Map(5)
	require.True(t, ok)
	require.Equal(t, uint32(4), got)

	require.Equal(t, uint32(4), r.FinalCount())

	session, ok := r.ReverseLookup(3)
	require.True(t, ok)
	require.Equal(t, uint32(4), session)

	// Identity region below the delete reverses to itself.
	session, ok = r.ReverseLookup(2)
	require.True(t, ok)
	require.Equal(t, uint32(2), session)

	_, ok = r.ReverseLookup(5)
	require.False(t, ok)
}

func Test_BuildRidRemapper_MixedOperationsCompactAndAppend(t *testing.T) {
	// Over 10 originals: delete 2, insert 11 and 12, update 4. Survivors
	// 1,3..10 take finals 1..9, the inserts take 10 and 11.
	ops := []oplog.TableOperation{
		stamped(oplog.OpInsert, 11, cil.TypeDefRow{Name: 1}, 100, 1),
		stamped(oplog.OpDelete, 2, nil, 101, 2),
		stamped(oplog.OpInsert, 12, cil.TypeDefRow{Name: 2}, 102, 3),
		stamped(oplog.OpUpdate, 4, cil.TypeDefRow{Name: 3}, 103, 4),
	}
	r := BuildRidRemapper(ops, 10)

	_, ok := r.Map(2)
	require.False(t, ok)

	got, ok := r.Map(1)
	require.True(t, ok)
	require.Equal(t, uint32(1), got)

	got, ok = r.Map(4)
	require.True(t, ok)
	require.Equal(t, uint32(3), got)

	got, ok = r.Map(10)
	require.True(t, ok)
	require.Equal(t, uint32(9), got)

	got, ok = r.Map(11)
	require.True(t, ok)
	require.Equal(t, uint32(10), got)

	got, ok = r.Map(12)
	require.True(t, ok)
	require.Equal(t, uint32(11), got)

	require.Equal(t, uint32(11), r.FinalCount())
	require.Equal(t, uint32(12), r.NextAvailable())
}

func Test_BuildRidRemapper_InsertThenDeleteLeavesNoRow(t *testing.T) {
	ops := []oplog.TableOperation{
		stamped(oplog.OpInsert, 6, cil.TypeDefRow{Name: 1}, 100, 1),
		stamped(oplog.OpDelete, 6, nil, 101, 2),
	}
	r := BuildRidRemapper(ops, 5)

	_, ok := r.Map(6)
	require.False(t, ok)
	require.Equal(t, uint32(5), r.FinalCount())
}

func Test_BuildRidRemapper_DeleteThenUpdateRevives(t *testing.T) {
	ops := []oplog.TableOperation{
		stamped(oplog.OpDelete, 3, nil, 100, 1),
		stamped(oplog.OpUpdate, 3, cil.TypeDefRow{Name: 1}, 101, 2),
	}
	r := BuildRidRemapper(ops, 5)

	got, ok := r.Map(3)
	require.True(t, ok)
	require.Equal(t, uint32(3), got)
	require.Equal(t, uint32(5), r.FinalCount())
}

func Test_BuildRidRemapper_OrdersOperationsChronologically(t *testing.T) {
	// Slice order says delete then insert; timestamps say the opposite.
	// The net effect must follow the timestamps: insert first, delete
	// second, so the row is gone.
	ops := []oplog.TableOperation{
		stamped(oplog.OpDelete, 6, nil, 200, 2),
		stamped(oplog.OpInsert, 6, cil.TypeDefRow{Name: 1}, 100, 1),
	}
	r := BuildRidRemapper(ops, 5)

	_, ok := r.Map(6)
	require.False(t, ok)
}

func Test_RidRemapper_MapToken(t *testing.T) {
	ops := []oplog.TableOperation{
		stamped(oplog.OpDelete, 1, nil, 100, 1),
	}
	r := BuildRidRemapper(ops, 3)

	tok, ok := r.MapToken(cil.NewToken(cil.TableTypeDef, 3))
	require.True(t, ok)
	require.Equal(t, cil.NewToken(cil.TableTypeDef, 2), tok)

	_, ok = r.MapToken(cil.NewToken(cil.TableTypeDef, 1))
	require.False(t, ok)
}

func Test_RidRemapper_MapListStart(t *testing.T) {
	ops := []oplog.TableOperation{
		stamped(oplog.OpDelete, 2, nil, 100, 1),
		stamped(oplog.OpDelete, 3, nil, 101, 2),
	}
	r := BuildRidRemapper(ops, 4)

	require.Equal(t, uint32(1), r.MapListStart(1), "surviving start maps directly")
	require.Equal(t, uint32(2), r.MapListStart(2), "deleted start slides to the next survivor")
	require.Equal(t, uint32(2), r.MapListStart(3))
	require.Equal(t, uint32(3), r.MapListStart(5), "one past the original end stays one past the final end")
}

package verify

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pmikstacki/cilkit/cil"
	"github.com/pmikstacki/cilkit/cil/changes"
	"github.com/pmikstacki/cilkit/cil/oplog"
	"github.com/pmikstacki/cilkit/pkg/types"
)

func Test_CheckSessionRows_FlagsUnresolvableIndexes(t *testing.T) {
	view := &fakeView{
		counts: map[cil.TableID]uint32{cil.TableModule: 1},
		rows: map[cil.TableID]map[uint32][]uint32{
			cil.TableModule: {1: {0, 3, 1, 0, 0}},
		},
	}
	ch := changes.NewFromView(view)
	require.NoError(t, ch.Table(cil.TableTypeDef).Apply(op(oplog.OpInsert, 1, cil.TypeDefRow{
		Name:    200,
		Extends: cil.CodedIndex{Table: cil.TableTypeRef, RID: 9},
	}, 100, 1)))
	require.NoError(t, ch.Table(cil.TableField).Apply(op(oplog.OpInsert, 1, cil.FieldRow{
		Name:      3,
		Signature: 200,
	}, 101, 1)))
	require.NoError(t, ch.Table(cil.TableModule).Apply(op(oplog.OpUpdate, 1, cil.ModuleRow{
		Name: 3,
		MVID: 9,
	}, 102, 1)))

	sc, err := NewScanner(view, ch)
	require.NoError(t, err)

	tdVs := checkSessionRows(sc, cil.TableTypeDef, ch.Table(cil.TableTypeDef))
	require.Equal(t, []string{"string-index", "token-target"}, rulesOf(tdVs))
	require.Equal(t, uint32(200), tdVs[0].Index)
	require.Equal(t, uint32(1), tdVs[1].RID)

	fieldVs := checkSessionRows(sc, cil.TableField, ch.Table(cil.TableField))
	require.Equal(t, []string{"blob-index"}, rulesOf(fieldVs))

	modVs := checkSessionRows(sc, cil.TableModule, ch.Table(cil.TableModule))
	require.Equal(t, []string{"guid-index"}, rulesOf(modVs))
	require.Equal(t, uint32(9), modVs[0].Index)
}

func Test_CheckSessionRows_ListColumnsMayPointOnePastEnd(t *testing.T) {
	view := &fakeView{
		counts: map[cil.TableID]uint32{cil.TableField: 2},
		rows: map[cil.TableID]map[uint32][]uint32{
			cil.TableField: {1: {0, 3, 0}, 2: {0, 4, 0}},
		},
	}
	ch := changes.NewFromView(view)
	require.NoError(t, ch.Table(cil.TableTypeDef).Apply(
		op(oplog.OpInsert, 1, cil.TypeDefRow{FieldList: 3}, 100, 1)))
	require.NoError(t, ch.Table(cil.TableTypeDef).Apply(
		op(oplog.OpInsert, 2, cil.TypeDefRow{FieldList: 4}, 101, 2)))

	sc, err := NewScanner(view, ch)
	require.NoError(t, err)

	// FieldList 3 is the empty range one past the last field and is
	// legal; 4 is past even that.
	vs := checkSessionRows(sc, cil.TableTypeDef, ch.Table(cil.TableTypeDef))
	require.Equal(t, []string{"list-start"}, rulesOf(vs))
	require.Equal(t, uint32(2), vs[0].RID)
}

func Test_CheckSessionRows_ReplacementRowsCheckedWholesale(t *testing.T) {
	view := &fakeView{}
	ch := changes.NewFromView(view)
	good := ch.Strings().Add("kernel32")
	ch.ReplaceTable(cil.TableModuleRef, []cil.Row{
		cil.ModuleRefRow{Name: good},
		cil.ModuleRefRow{Name: 4000},
	})

	sc, err := NewScanner(view, ch)
	require.NoError(t, err)

	vs := checkSessionRows(sc, cil.TableModuleRef, ch.Table(cil.TableModuleRef))
	require.Equal(t, []string{"string-index"}, rulesOf(vs))
	require.Equal(t, uint32(2), vs[0].RID)
}

func Test_CheckDanglingRows_FlagsDeletedRowStillReferenced(t *testing.T) {
	view := &fakeView{
		counts: map[cil.TableID]uint32{
			cil.TableTypeDef:       2,
			cil.TableTypeRef:       1,
			cil.TableInterfaceImpl: 1,
		},
		rows: map[cil.TableID]map[uint32][]uint32{
			cil.TableTypeDef: {
				1: {0, 3, 0, 0, 0, 0},
				2: {0, 4, 0, 0, 0, 0},
			},
			cil.TableTypeRef: {1: {0, 5, 0}},
			cil.TableInterfaceImpl: {
				1: {2, uint32(cil.NewToken(cil.TableTypeRef, 1))},
			},
		},
	}
	ch := changes.NewFromView(view)
	require.NoError(t, ch.Table(cil.TableTypeDef).Apply(op(oplog.OpDelete, 2, nil, 100, 1)))

	sc, err := NewScanner(view, ch)
	require.NoError(t, err)

	vs := checkDanglingRows(sc, view, cil.TableTypeDef, ch.Table(cil.TableTypeDef))
	require.Equal(t, []string{"dangling-row-reference"}, rulesOf(vs))
	require.Equal(t, uint32(2), vs[0].RID)
	require.Contains(t, vs[0].Message, cil.NewToken(cil.TableInterfaceImpl, 1).String())
}

func Test_CheckDanglingRows_DeletingTheReferrerClears(t *testing.T) {
	view := &fakeView{
		counts: map[cil.TableID]uint32{
			cil.TableTypeDef:       2,
			cil.TableInterfaceImpl: 1,
		},
		rows: map[cil.TableID]map[uint32][]uint32{
			cil.TableTypeDef: {
				1: {0, 3, 0, 0, 0, 0},
				2: {0, 4, 0, 0, 0, 0},
			},
			cil.TableInterfaceImpl: {1: {2, 0}},
		},
	}
	ch := changes.NewFromView(view)
	require.NoError(t, ch.Table(cil.TableTypeDef).Apply(op(oplog.OpDelete, 2, nil, 100, 1)))
	require.NoError(t, ch.Table(cil.TableInterfaceImpl).Apply(op(oplog.OpDelete, 1, nil, 101, 1)))

	sc, err := NewScanner(view, ch)
	require.NoError(t, err)

	require.Empty(t, checkDanglingRows(sc, view, cil.TableTypeDef, ch.Table(cil.TableTypeDef)))
}

func Test_CheckDanglingRows_FlagsRowsDroppedByReplacement(t *testing.T) {
	view := &fakeView{
		counts: map[cil.TableID]uint32{
			cil.TableModuleRef: 3,
			cil.TableMemberRef: 1,
		},
		rows: map[cil.TableID]map[uint32][]uint32{
			cil.TableModuleRef: {1: {3}, 2: {4}, 3: {5}},
			cil.TableMemberRef: {
				1: {uint32(cil.NewToken(cil.TableModuleRef, 3)), 6, 0},
			},
		},
	}
	ch := changes.NewFromView(view)
	ch.ReplaceTable(cil.TableModuleRef, []cil.Row{cil.ModuleRefRow{Name: 3}})

	sc, err := NewScanner(view, ch)
	require.NoError(t, err)

	// The replacement keeps one row; rid 2 is dropped but unreferenced,
	// rid 3 is dropped with a MemberRef still pointing at it.
	vs := checkDanglingRows(sc, view, cil.TableModuleRef, ch.Table(cil.TableModuleRef))
	require.Equal(t, []string{"dangling-row-reference"}, rulesOf(vs))
	require.Equal(t, uint32(3), vs[0].RID)
}

func Test_CheckDanglingHeapIndices_FlagsRemovedEntriesStillReferenced(t *testing.T) {
	view := &fakeView{
		counts: map[cil.TableID]uint32{cil.TableField: 1},
		rows: map[cil.TableID]map[uint32][]uint32{
			cil.TableField: {1: {0, 9, 30}},
		},
	}
	ch := changes.NewFromView(view)
	ch.Strings().Remove(9, types.FailIfReferenced)
	ch.Strings().Remove(11, types.FailIfReferenced)
	ch.Blobs().Remove(30, types.RemoveReferences)

	sc, err := NewScanner(view, ch)
	require.NoError(t, err)

	vs := checkDanglingHeapIndices(sc)
	require.Equal(t, []string{"dangling-string-reference", "dangling-blob-reference"}, rulesOf(vs))
	require.Equal(t, uint32(9), vs[0].Index)
	require.Equal(t, uint32(30), vs[1].Index)
}

package verify

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pmikstacki/cilkit/cil"
	"github.com/pmikstacki/cilkit/cil/changes"
	"github.com/pmikstacki/cilkit/cil/oplog"
	"github.com/pmikstacki/cilkit/pkg/types"
)

// fakeView serves hand-built original rows, column slices in schema
// order with coded indexes already in token form. Its heap sizes are
// fixed and roomy enough for the indexes the fixtures use, so it also
// seeds change sets.
type fakeView struct {
	counts map[cil.TableID]uint32
	rows   map[cil.TableID]map[uint32][]uint32
}

func (f *fakeView) TableRowCount(t cil.TableID) uint32 { return f.counts[t] }

func (f *fakeView) RowColumnsOf(t cil.TableID, rid uint32) ([]uint32, error) {
	if cols, ok := f.rows[t][rid]; ok {
		return cols, nil
	}
	return nil, fmt.Errorf("no row %s rid %d", t, rid)
}

func (f *fakeView) StringsSize() uint32     { return 64 }
func (f *fakeView) BlobSize() uint32        { return 64 }
func (f *fakeView) GUIDCount() uint32       { return 4 }
func (f *fakeView) UserStringsSize() uint32 { return 64 }

func Test_NewScanner_BuildsReverseReferenceMaps(t *testing.T) {
	view := &fakeView{
		counts: map[cil.TableID]uint32{
			cil.TableTypeDef: 1,
			cil.TableTypeRef: 2,
			cil.TableField:   1,
		},
		rows: map[cil.TableID]map[uint32][]uint32{
			cil.TableTypeDef: {
				1: {0, 5, 0, uint32(cil.NewToken(cil.TableTypeRef, 2)), 1, 0},
			},
			cil.TableTypeRef: {1: {0, 0, 0}, 2: {0, 0, 0}},
			cil.TableField:   {1: {0, 7, 0}},
		},
	}

	sc, err := NewScanner(view, changes.NewEmpty())
	require.NoError(t, err)

	typeDef1 := cil.NewToken(cil.TableTypeDef, 1)
	require.Equal(t, []cil.Token{typeDef1}, sc.ReferencesTo(cil.NewToken(cil.TableTypeRef, 2)))
	require.Equal(t, []cil.Token{typeDef1}, sc.ReferencesTo(cil.NewToken(cil.TableField, 1)))
	require.Equal(t, []cil.Token{typeDef1}, sc.StringReferences(5))
	require.Equal(t, []cil.Token{cil.NewToken(cil.TableField, 1)}, sc.StringReferences(7))

	require.False(t, sc.CanDelete(cil.NewToken(cil.TableField, 1)))
	require.True(t, sc.CanDelete(cil.NewToken(cil.TableMethodDef, 1)))
}

func Test_Scanner_RowExists_AppliesSessionState(t *testing.T) {
	view := &fakeView{
		counts: map[cil.TableID]uint32{cil.TableField: 2},
		rows: map[cil.TableID]map[uint32][]uint32{
			cil.TableField: {1: {0, 0, 0}, 2: {0, 0, 0}},
		},
	}
	ch := changes.NewEmpty()
	require.NoError(t, ch.Table(cil.TableTypeDef).Apply(op(oplog.OpInsert, 1, td(0), 100, 1)))
	require.NoError(t, ch.Table(cil.TableTypeDef).Apply(op(oplog.OpInsert, 2, td(0), 101, 2)))
	require.NoError(t, ch.Table(cil.TableTypeDef).Apply(op(oplog.OpDelete, 2, nil, 102, 3)))

	sc, err := NewScanner(view, ch)
	require.NoError(t, err)

	require.False(t, sc.RowExists(cil.TableTypeDef, 0))
	require.True(t, sc.RowExists(cil.TableTypeDef, 1), "session insert")
	require.False(t, sc.RowExists(cil.TableTypeDef, 2), "inserted then deleted")
	require.False(t, sc.RowExists(cil.TableTypeDef, 3))

	// Untouched tables fall back to original counts.
	require.True(t, sc.RowExists(cil.TableField, 2))
	require.False(t, sc.RowExists(cil.TableField, 3))

	require.False(t, sc.TokenExists(cil.Token(0)))
	require.True(t, sc.TokenExists(cil.NewToken(cil.TableTypeDef, 1)))
}

func Test_Scanner_SessionPayloadReplacesOriginalColumns(t *testing.T) {
	view := &fakeView{
		counts: map[cil.TableID]uint32{cil.TableTypeDef: 1},
		rows: map[cil.TableID]map[uint32][]uint32{
			cil.TableTypeDef: {1: {0, 5, 0, 0, 0, 0}},
		},
	}
	ch := changes.NewFromView(view)
	require.NoError(t, ch.Table(cil.TableTypeDef).Apply(
		op(oplog.OpUpdate, 1, cil.TypeDefRow{Name: 9}, 100, 1)))

	sc, err := NewScanner(view, ch)
	require.NoError(t, err)

	require.Empty(t, sc.StringReferences(5), "superseded by the update payload")
	require.Equal(t, []cil.Token{cil.NewToken(cil.TableTypeDef, 1)}, sc.StringReferences(9))
}

func Test_Scanner_ReplacedRowsAreScanned(t *testing.T) {
	ch := changes.NewEmpty()
	ch.ReplaceTable(cil.TableField, []cil.Row{
		cil.FieldRow{Name: 4},
		cil.FieldRow{Name: 6},
	})

	sc, err := NewScanner(&fakeView{}, ch)
	require.NoError(t, err)

	require.Equal(t, []cil.Token{cil.NewToken(cil.TableField, 1)}, sc.StringReferences(4))
	require.Equal(t, []cil.Token{cil.NewToken(cil.TableField, 2)}, sc.StringReferences(6))
}

func Test_Scanner_HeapIndexValidity(t *testing.T) {
	ch := changes.NewEmpty()
	strIdx := ch.Strings().Add("Go")
	blobIdx := ch.Blobs().Add([]byte{1, 2})
	guidSlot := ch.GUIDs().Add([16]byte{1})
	usIdx := ch.UserStrings().Add("Hi")
	removed := ch.Strings().Add("gone")
	ch.Strings().Remove(removed, types.RemoveReferences)

	sc, err := NewScanner(&fakeView{}, ch)
	require.NoError(t, err)

	require.True(t, sc.StringIndexValid(0), "null index")
	require.True(t, sc.StringIndexValid(strIdx))
	require.False(t, sc.StringIndexValid(removed))
	require.False(t, sc.StringIndexValid(0x7FFF_0000))

	require.True(t, sc.BlobIndexValid(0))
	require.True(t, sc.BlobIndexValid(blobIdx))
	require.False(t, sc.BlobIndexValid(0x7FFF_0000))

	require.True(t, sc.GUIDIndexValid(0))
	require.True(t, sc.GUIDIndexValid(guidSlot))
	require.False(t, sc.GUIDIndexValid(guidSlot+1))

	require.True(t, sc.UserStringIndexValid(0))
	require.True(t, sc.UserStringIndexValid(usIdx))
	require.False(t, sc.UserStringIndexValid(0x7FFF_0000))
}

func Test_Scanner_FinalRowCount(t *testing.T) {
	view := &fakeView{
		counts: map[cil.TableID]uint32{
			cil.TableField:   2,
			cil.TableTypeDef: 3,
		},
		rows: map[cil.TableID]map[uint32][]uint32{
			cil.TableField:   {1: {0, 0, 0}, 2: {0, 0, 0}},
			cil.TableTypeDef: {1: {0, 0, 0, 0, 0, 0}, 2: {0, 0, 0, 0, 0, 0}, 3: {0, 0, 0, 0, 0, 0}},
		},
	}
	ch := changes.NewEmpty()
	// Sparse log over 0 originals; NewEmpty seeds every table at zero.
	require.NoError(t, ch.Table(cil.TableTypeRef).Apply(
		op(oplog.OpInsert, 1, cil.TypeRefRow{}, 100, 1)))
	ch.ReplaceTable(cil.TableModuleRef, []cil.Row{cil.ModuleRefRow{Name: 1}, cil.ModuleRefRow{Name: 2}})

	sc, err := NewScanner(view, ch)
	require.NoError(t, err)

	require.Equal(t, uint32(2), sc.FinalRowCount(cil.TableField), "untouched")
	require.Equal(t, uint32(1), sc.FinalRowCount(cil.TableTypeRef), "sparse insert")
	require.Equal(t, uint32(2), sc.FinalRowCount(cil.TableModuleRef), "replacement")
}

package remap

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pmikstacki/cilkit/cil"
	"github.com/pmikstacki/cilkit/cil/changes"
	"github.com/pmikstacki/cilkit/cil/oplog"
	"github.com/pmikstacki/cilkit/pkg/types"
)

// seedView seeds change sets with fixed heap sizes and the given table
// row counts.
type seedView struct {
	rows map[cil.TableID]uint32
}

func (s seedView) StringsSize() uint32     { return 64 }
func (s seedView) BlobSize() uint32        { return 64 }
func (s seedView) GUIDCount() uint32       { return 2 }
func (s seedView) UserStringsSize() uint32 { return 64 }
func (s seedView) TableRowCount(id cil.TableID) uint32 {
	return s.rows[id]
}

func Test_BuildFromChanges_UntouchedTablesHaveNoRemapper(t *testing.T) {
	ch := changes.NewEmpty()
	r := BuildFromChanges(ch)

	require.Nil(t, r.TableRemapper(cil.TableTypeDef))

	got, ok := r.MapRID(cil.TableTypeDef, 7)
	require.True(t, ok)
	require.Equal(t, uint32(7), got, "untouched tables stay identity")

	_, ok = r.MapRID(cil.TableTypeDef, 0)
	require.False(t, ok)

	require.Equal(t, uint32(9), r.MapStringIndex(9))
	require.Equal(t, uint32(9), r.MapBlobIndex(9))
	require.Equal(t, uint32(1), r.MapGUIDIndex(1))
	require.Equal(t, uint32(9), r.MapUserStringIndex(9))
}

func Test_ApplyToChanges_RewritesRIDColumnsAfterDelete(t *testing.T) {
	ch := changes.NewFromView(seedView{rows: map[cil.TableID]uint32{cil.TableTypeDef: 5}})

	td := ch.Table(cil.TableTypeDef)
	require.NoError(t, td.Apply(stamped(oplog.OpDelete, 3, nil, 100, 1)))

	ii := ch.Table(cil.TableInterfaceImpl)
	row := cil.InterfaceImplRow{Class: 5, Interface: cil.CodedIndex{Table: cil.TableTypeRef, RID: 1}}
	require.NoError(t, ii.Apply(stamped(oplog.OpInsert, 1, row, 101, 2)))

	r := BuildFromChanges(ch)
	r.ApplyToChanges(ch)

	got := ii.History()[0].Row.(cil.InterfaceImplRow)
	require.Equal(t, uint32(4), got.Class, "TypeDef 5 compacts to 4 after the delete")
	require.Equal(t, cil.TableTypeRef, got.Interface.Table, "untouched coded target keeps its table")
	require.Equal(t, uint32(1), got.Interface.RID)

	// Operation targets stay in session space; only payloads move.
	require.Equal(t, uint32(1), ii.History()[0].RID)
	require.Equal(t, uint32(3), td.History()[0].RID)
}

func Test_ApplyToChanges_RewritesCodedIndexColumns(t *testing.T) {
	ch := changes.NewFromView(seedView{rows: map[cil.TableID]uint32{cil.TableTypeRef: 2}})

	tr := ch.Table(cil.TableTypeRef)
	require.NoError(t, tr.Apply(stamped(oplog.OpDelete, 1, nil, 100, 1)))

	td := ch.Table(cil.TableTypeDef)
	row := cil.TypeDefRow{Name: 5, Extends: cil.CodedIndex{Table: cil.TableTypeRef, RID: 2}}
	require.NoError(t, td.Apply(stamped(oplog.OpInsert, 1, row, 101, 2)))

	r := BuildFromChanges(ch)
	r.ApplyToChanges(ch)

	got := td.History()[0].Row.(cil.TypeDefRow)
	require.Equal(t, cil.CodedIndex{Table: cil.TableTypeRef, RID: 1}, got.Extends)
	require.Equal(t, uint32(5), got.Name, "heap columns without moves stay put")
}

func Test_ApplyToChanges_ListStartSlidesPastDeletedRows(t *testing.T) {
	ch := changes.NewFromView(seedView{rows: map[cil.TableID]uint32{
		cil.TableMethodDef: 4,
		cil.TableTypeDef:   2,
	}})

	md := ch.Table(cil.TableMethodDef)
	require.NoError(t, md.Apply(stamped(oplog.OpDelete, 1, nil, 100, 1)))
	require.NoError(t, md.Apply(stamped(oplog.OpDelete, 2, nil, 101, 2)))

	td := ch.Table(cil.TableTypeDef)
	require.NoError(t, td.Apply(stamped(oplog.OpUpdate, 1,
		cil.TypeDefRow{Name: 1, FieldList: 1, MethodList: 2}, 102, 3)))
	require.NoError(t, td.Apply(stamped(oplog.OpUpdate, 2,
		cil.TypeDefRow{Name: 2, FieldList: 1, MethodList: 5}, 103, 4)))

	r := BuildFromChanges(ch)
	r.ApplyToChanges(ch)

	first := td.History()[0].Row.(cil.TypeDefRow)
	require.Equal(t, uint32(1), first.MethodList, "start on a deleted method slides to the next survivor")
	second := td.History()[1].Row.(cil.TypeDefRow)
	require.Equal(t, uint32(3), second.MethodList, "empty run stays one past the final end")
}

func Test_ApplyToChanges_CompactsAppendedStrings(t *testing.T) {
	ch := changes.NewFromView(seedView{rows: map[cil.TableID]uint32{cil.TableTypeDef: 0}})

	first := ch.Strings().Add("alpha")
	second := ch.Strings().Add("beta")
	require.Equal(t, uint32(64), first)
	require.Equal(t, uint32(70), second)
	ch.Strings().Remove(first, types.RemoveReferences)

	td := ch.Table(cil.TableTypeDef)
	require.NoError(t, td.Apply(stamped(oplog.OpInsert, 1, cil.TypeDefRow{Name: second}, 100, 1)))

	r := BuildFromChanges(ch)
	r.ApplyToChanges(ch)

	// The surviving append slides into the removed one's offset.
	appended := ch.Strings().Appended()
	require.Len(t, appended, 1)
	require.Equal(t, uint32(64), appended[0].Index)
	require.Equal(t, "beta", appended[0].Value)

	got := td.History()[0].Row.(cil.TypeDefRow)
	require.Equal(t, uint32(64), got.Name)

	require.Equal(t, uint32(64), r.MapStringIndex(second))
	require.Equal(t, uint32(12), r.MapStringIndex(12), "original offsets never move")
}

func Test_ApplyToChanges_ReplacedTableKeepsIdentityRIDs(t *testing.T) {
	ch := changes.NewEmpty()
	ch.ReplaceTable(cil.TableModuleRef, []cil.Row{
		cil.ModuleRefRow{Name: 1},
		cil.ModuleRefRow{Name: 9},
	})

	mr := ch.Table(cil.TableMemberRef)
	row := cil.MemberRefRow{Class: cil.CodedIndex{Table: cil.TableModuleRef, RID: 2}, Name: 1, Signature: 1}
	require.NoError(t, mr.Apply(stamped(oplog.OpInsert, 1, row, 100, 1)))

	r := BuildFromChanges(ch)
	r.ApplyToChanges(ch)

	got := mr.History()[0].Row.(cil.MemberRefRow)
	require.Equal(t, uint32(2), got.Class.RID)

	rr := r.TableRemapper(cil.TableModuleRef)
	require.NotNil(t, rr)
	require.Equal(t, uint32(2), rr.FinalCount())

	mapped, ok := rr.Map(2)
	require.True(t, ok)
	require.Equal(t, uint32(2), mapped)

	_, ok = rr.Map(3)
	require.False(t, ok)
}

func Test_BuildAndApplyTwice_AssignmentsStable(t *testing.T) {
	// Build+apply run twice with no edits in between must land on the
	// same final assignment both times.
	ch := changes.NewFromView(seedView{rows: map[cil.TableID]uint32{cil.TableTypeDef: 2}})

	first := ch.Strings().Add("alpha")
	second := ch.Strings().Add("beta")
	ch.Strings().Remove(first, types.RemoveReferences)

	td := ch.Table(cil.TableTypeDef)
	require.NoError(t, td.Apply(stamped(oplog.OpInsert, 10, cil.TypeDefRow{Name: second}, 100, 1)))

	ii := ch.Table(cil.TableInterfaceImpl)
	row := cil.InterfaceImplRow{Class: 10, Interface: cil.CodedIndex{Table: cil.TableTypeRef, RID: 1}}
	require.NoError(t, ii.Apply(stamped(oplog.OpInsert, 1, row, 101, 2)))

	r1 := BuildFromChanges(ch)
	r1.ApplyToChanges(ch)

	snapshot := func() (uint32, uint32, uint32) {
		tdRow := td.History()[0].Row.(cil.TypeDefRow)
		iiRow := ii.History()[0].Row.(cil.InterfaceImplRow)
		return tdRow.Name, iiRow.Class, ch.Strings().Appended()[0].Index
	}
	name1, class1, idx1 := snapshot()
	require.Equal(t, uint32(64), name1)
	require.Equal(t, uint32(3), class1, "session RID 10 over 2 originals lands at 3")
	require.Equal(t, uint32(64), idx1)

	r2 := BuildFromChanges(ch)
	r2.ApplyToChanges(ch)

	name2, class2, idx2 := snapshot()
	require.Equal(t, name1, name2)
	require.Equal(t, class1, class2)
	require.Equal(t, idx1, idx2)

	// Both remappers report the same table assignment.
	for _, rid := range []uint32{1, 2, 3, 10} {
		m1, ok1 := r1.MapRID(cil.TableTypeDef, rid)
		m2, ok2 := r2.MapRID(cil.TableTypeDef, rid)
		require.Equal(t, ok1, ok2, "rid %d", rid)
		require.Equal(t, m1, m2, "rid %d", rid)
	}
}

func Test_ApplyToChanges_PatchesLdstrTokensInStoredBodies(t *testing.T) {
	ch := changes.NewFromView(seedView{})

	first := ch.UserStrings().Add("alpha")
	second := ch.UserStrings().Add("omega")
	require.Equal(t, uint32(64), first)
	require.Equal(t, uint32(76), second)
	ch.UserStrings().Remove(first, types.RemoveReferences)

	// Tiny-header body: ldstr 0x7000004C, ret. Compaction slides the
	// surviving entry from 76 into 64.
	body := []byte{0x1A, 0x72, 0x4C, 0x00, 0x00, 0x70, 0x2A}
	rva := ch.AddMethodBody(body)

	r := BuildFromChanges(ch)
	r.ApplyToChanges(ch)

	got, ok := ch.MethodBody(rva)
	require.True(t, ok)
	require.Equal(t, []byte{0x1A, 0x72, 0x40, 0x00, 0x00, 0x70, 0x2A}, got)
	require.Equal(t, uint32(64), r.MapUserStringIndex(second))
}

func Test_BuildFromChanges_DeleteSessionMappingIsDeterministic(t *testing.T) {
	// Rebuilding from an unchanged log reproduces the assignment even
	// after the payload rewrite ran.
	ch := changes.NewFromView(seedView{rows: map[cil.TableID]uint32{cil.TableTypeDef: 5}})
	td := ch.Table(cil.TableTypeDef)
	require.NoError(t, td.Apply(stamped(oplog.OpDelete, 2, nil, 100, 1)))

	r1 := BuildFromChanges(ch)
	r1.ApplyToChanges(ch)
	r2 := BuildFromChanges(ch)

	for rid := uint32(0); rid <= 6; rid++ {
		m1, ok1 := r1.MapRID(cil.TableTypeDef, rid)
		m2, ok2 := r2.MapRID(cil.TableTypeDef, rid)
		require.Equal(t, ok1, ok2, "rid %d", rid)
		require.Equal(t, m1, m2, "rid %d", rid)
	}
}

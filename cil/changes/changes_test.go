package changes

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pmikstacki/cilkit/cil"
	"github.com/pmikstacki/cilkit/cil/oplog"
)

func Test_AssemblyChanges_NewEmpty_SeedsNullSlots(t *testing.T) {
	c := NewEmpty()

	require.Equal(t, uint32(1), c.Strings().NextIndex())
	require.Equal(t, uint32(1), c.Blobs().NextIndex())
	require.Equal(t, uint32(1), c.GUIDs().NextIndex())
	require.Equal(t, uint32(1), c.UserStrings().NextIndex())
	require.False(t, c.HasChanges())
}

func Test_AssemblyChanges_Table_CreatesSparseOnFirstUse(t *testing.T) {
	c := NewEmpty()

	_, ok := c.TableIfPresent(cil.TableTypeDef)
	require.False(t, ok)

	m := c.Table(cil.TableTypeDef)
	require.NotNil(t, m)
	require.Equal(t, uint32(1), m.NextRID(), "empty original means first insert gets rid 1")

	again := c.Table(cil.TableTypeDef)
	require.Same(t, m, again)

	got, ok := c.TableIfPresent(cil.TableTypeDef)
	require.True(t, ok)
	require.Same(t, m, got)
}

func Test_AssemblyChanges_ReplaceTable_InstallsRowSet(t *testing.T) {
	c := NewEmpty()
	rows := []cil.Row{
		cil.TypeDefRow{Name: 10},
		cil.TypeDefRow{Name: 20},
	}

	c.ReplaceTable(cil.TableTypeDef, rows)

	m, ok := c.TableIfPresent(cil.TableTypeDef)
	require.True(t, ok)
	require.True(t, m.IsReplaced())
	require.Len(t, m.ReplacedRows(), 2)
}

func Test_AssemblyChanges_ReplaceTable_ConvertsExistingLog(t *testing.T) {
	c := NewEmpty()
	m := c.Table(cil.TableModuleRef)

	c.ReplaceTable(cil.TableModuleRef, []cil.Row{cil.ModuleRefRow{Name: 5}})

	require.True(t, m.IsReplaced(), "replacement reuses the existing tracker")
}

func Test_AssemblyChanges_ModifiedTables_SortedAscending(t *testing.T) {
	c := NewEmpty()
	c.Table(cil.TableMethodDef)
	c.Table(cil.TableModule)
	c.Table(cil.TableTypeRef)

	require.Equal(t,
		[]cil.TableID{cil.TableModule, cil.TableTypeRef, cil.TableMethodDef},
		c.ModifiedTables())
}

func Test_AssemblyChanges_AddMethodBody_SequentialPlaceholders(t *testing.T) {
	c := NewEmpty()

	first := c.AddMethodBody([]byte{0x0A, 0x2A})
	second := c.AddMethodBody([]byte{0x0E, 0x00, 0x2A})

	require.Equal(t, MethodBodyPlaceholderBase, first)
	require.Equal(t, MethodBodyPlaceholderBase+1, second)

	body, ok := c.MethodBody(first)
	require.True(t, ok)
	require.Equal(t, []byte{0x0A, 0x2A}, body)

	require.Equal(t, []uint32{first, second}, c.MethodBodyPlaceholders())
	require.Equal(t, 2, c.MethodBodyCount())
}

func Test_AssemblyChanges_AddMethodBody_CopiesInput(t *testing.T) {
	c := NewEmpty()
	raw := []byte{0x01, 0x02, 0x03}

	rva := c.AddMethodBody(raw)
	raw[0] = 0xFF

	body, _ := c.MethodBody(rva)
	require.Equal(t, []byte{0x01, 0x02, 0x03}, body)
}

func Test_AssemblyChanges_MethodBodiesTotalSize_AlignsEachBody(t *testing.T) {
	c := NewEmpty()
	c.AddMethodBody(make([]byte, 5)) // rounds to 8
	c.AddMethodBody(make([]byte, 8)) // stays 8

	require.Equal(t, uint32(16), c.MethodBodiesTotalSize())
}

func Test_AssemblyChanges_IsMethodBodyPlaceholder(t *testing.T) {
	c := NewEmpty()
	rva := c.AddMethodBody([]byte{0x2A})

	require.True(t, c.IsMethodBodyPlaceholder(rva))
	require.False(t, c.IsMethodBodyPlaceholder(0x2000), "real RVAs are below the reserved range")
	require.False(t, c.IsMethodBodyPlaceholder(rva+1), "unallocated placeholders do not resolve")
}

func Test_AssemblyChanges_HasChanges_TracksEveryKind(t *testing.T) {
	heap := NewEmpty()
	heap.Strings().Add("Widget")
	require.True(t, heap.HasChanges())

	table := NewEmpty()
	table.Table(cil.TableTypeDef)
	require.False(t, table.HasChanges(), "an empty log is not a change")
	op := oplog.NewTableOperation(oplog.Operation{Kind: oplog.OpInsert, RID: 1, Row: cil.TypeDefRow{Name: 3}})
	require.NoError(t, table.Table(cil.TableTypeDef).Apply(op))
	require.True(t, table.HasChanges())

	imp := NewEmpty()
	require.NoError(t, imp.Imports().AddDLL("kernel32.dll"))
	require.True(t, imp.HasChanges())

	exp := NewEmpty()
	require.NoError(t, exp.Exports().AddFunctionByOrdinal(1, 0x1000))
	require.True(t, exp.HasChanges())

	body := NewEmpty()
	body.AddMethodBody([]byte{0x2A})
	require.True(t, body.HasChanges())
}

package builder

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/pmikstacki/cilkit/cil"
	"github.com/pmikstacki/cilkit/cil/assembly"
	"github.com/pmikstacki/cilkit/cil/oplog"
	"github.com/pmikstacki/cilkit/internal/testutil"
	"github.com/pmikstacki/cilkit/pkg/types"
)

func setupContext(t *testing.T) (*Context, func()) {
	t.Helper()

	view, cleanup := testutil.SetupAssembly(t)
	return NewContext(assembly.New(view)), cleanup
}

func Test_NewContext_SeedsNextRIDsFromPresentTables(t *testing.T) {
	c, cleanup := setupContext(t)
	defer cleanup()

	require.Equal(t, uint32(2), c.NextRID(cil.TableModule))
	require.Equal(t, uint32(3), c.NextRID(cil.TableTypeRef))
	require.Equal(t, uint32(3), c.NextRID(cil.TableTypeDef))
	require.Equal(t, uint32(2), c.NextRID(cil.TableMethodDef))

	// Tables the image never declared start at 1.
	require.Equal(t, uint32(1), c.NextRID(cil.TableAssemblyRef))
	require.Equal(t, uint32(1), c.NextRID(cil.TableGenericParam))
}

func Test_Context_TableRowAdd_MintsTokensAndTracksRIDs(t *testing.T) {
	c, cleanup := setupContext(t)
	defer cleanup()

	tok, err := c.TableRowAdd(cil.TableTypeRef, cil.TypeRefRow{
		Scope: cil.CodedIndex{Table: cil.TableModule, RID: 1},
		Name:  testutil.StrObject,
	})
	require.NoError(t, err)
	require.Equal(t, cil.Token(0x01000003), tok)
	require.Equal(t, uint32(4), c.NextRID(cil.TableTypeRef))

	tok, err = c.TableRowAdd(cil.TableTypeRef, cil.TypeRefRow{
		Scope: cil.CodedIndex{Table: cil.TableModule, RID: 1},
		Name:  testutil.StrValueType,
	})
	require.NoError(t, err)
	require.Equal(t, cil.Token(0x01000004), tok)
}

func Test_Context_TableRowAdd_SurfacesLogErrors(t *testing.T) {
	c, cleanup := setupContext(t)
	defer cleanup()

	c.asm.Changes().ReplaceTable(cil.TableAssemblyRef, []cil.Row{
		cil.AssemblyRefRow{MajorVersion: 4, Name: testutil.StrSystem},
	})

	_, err := c.TableRowAdd(cil.TableAssemblyRef, cil.AssemblyRefRow{Name: testutil.StrObject})
	require.ErrorIs(t, err, oplog.ErrReplacedTable)
	require.Equal(t, uint32(1), c.NextRID(cil.TableAssemblyRef))
}

func Test_Context_StringGetOrAdd_ReusesSessionStrings(t *testing.T) {
	c, cleanup := setupContext(t)
	defer cleanup()

	first, err := c.StringGetOrAdd("Widgets")
	require.NoError(t, err)

	second, err := c.StringGetOrAdd("Widgets")
	require.NoError(t, err)
	require.Equal(t, first, second)

	third, err := c.StringGetOrAdd("Widgets")
	require.NoError(t, err)
	require.Equal(t, first, third)

	// Plain adds never deduplicate.
	a, err := c.StringAdd("Gadget")
	require.NoError(t, err)
	b, err := c.StringAdd("Gadget")
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func Test_Context_StringGetOrAdd_IgnoresOriginalHeapContent(t *testing.T) {
	c, cleanup := setupContext(t)
	defer cleanup()

	// "Widget" already lives in the original heap; the session index is a
	// fresh append, not the original offset.
	idx, err := c.StringGetOrAdd("Widget")
	require.NoError(t, err)
	require.NotEqual(t, testutil.StrWidget, idx)
	require.GreaterOrEqual(t, idx, c.asm.Changes().Strings().OriginalSize())
}

func Test_Context_BlobGetOrAdd_ReusesSessionBlobs(t *testing.T) {
	c, cleanup := setupContext(t)
	defer cleanup()

	sig := []byte{0x06, 0x08}
	first, err := c.BlobGetOrAdd(sig)
	require.NoError(t, err)

	second, err := c.BlobGetOrAdd([]byte{0x06, 0x08})
	require.NoError(t, err)
	require.Equal(t, first, second)

	other, err := c.BlobGetOrAdd([]byte{0x06, 0x0E})
	require.NoError(t, err)
	require.NotEqual(t, first, other)
}

func Test_Context_FindAssemblyRefByName_ScansSessionInserts(t *testing.T) {
	c, cleanup := setupContext(t)
	defer cleanup()

	_, ok := c.FindAssemblyRefByName("mscorlib")
	require.False(t, ok)

	nameIdx, err := c.StringGetOrAdd("mscorlib")
	require.NoError(t, err)
	tok, err := c.TableRowAdd(cil.TableAssemblyRef, cil.AssemblyRefRow{
		MajorVersion: 4,
		Name:         nameIdx,
	})
	require.NoError(t, err)
	require.Equal(t, cil.Token(0x23000001), tok)

	ci, ok := c.FindAssemblyRefByName("mscorlib")
	require.True(t, ok)
	require.Equal(t, cil.CodedIndex{Table: cil.TableAssemblyRef, RID: 1}, ci)

	_, ok = c.FindAssemblyRefByName("System.Xml")
	require.False(t, ok)

	// Deleted rows stop matching.
	require.NoError(t, c.TableRowRemove(cil.TableAssemblyRef, 1, types.FailIfReferenced))
	_, ok = c.FindAssemblyRefByName("mscorlib")
	require.False(t, ok)
}

func Test_Context_FindAssemblyRefByName_ReadsReplacedTables(t *testing.T) {
	c, cleanup := setupContext(t)
	defer cleanup()

	nameIdx, err := c.StringAdd("System.Runtime")
	require.NoError(t, err)
	c.asm.Changes().ReplaceTable(cil.TableAssemblyRef, []cil.Row{
		cil.AssemblyRefRow{MajorVersion: 8, Name: nameIdx},
	})

	ci, ok := c.FindAssemblyRefByName("System.Runtime")
	require.True(t, ok)
	require.Equal(t, uint32(1), ci.RID)
}

func Test_Context_FindCoreLibraryRef_PrefersTheClassicName(t *testing.T) {
	c, cleanup := setupContext(t)
	defer cleanup()

	_, ok := c.FindCoreLibraryRef()
	require.False(t, ok)

	runtimeIdx, err := c.StringGetOrAdd("System.Runtime")
	require.NoError(t, err)
	_, err = c.TableRowAdd(cil.TableAssemblyRef, cil.AssemblyRefRow{Name: runtimeIdx})
	require.NoError(t, err)

	ci, ok := c.FindCoreLibraryRef()
	require.True(t, ok)
	require.Equal(t, uint32(1), ci.RID)

	// Once a mscorlib row exists it wins over System.Runtime.
	corlibIdx, err := c.StringGetOrAdd("mscorlib")
	require.NoError(t, err)
	_, err = c.TableRowAdd(cil.TableAssemblyRef, cil.AssemblyRefRow{Name: corlibIdx})
	require.NoError(t, err)

	ci, ok = c.FindCoreLibraryRef()
	require.True(t, ok)
	require.Equal(t, uint32(2), ci.RID)
}

func Test_Context_NewMVID_StoresAFreshGUID(t *testing.T) {
	c, cleanup := setupContext(t)
	defer cleanup()

	slot, id, err := c.NewMVID()
	require.NoError(t, err)
	require.Equal(t, uint32(2), slot)
	require.NotEqual(t, uuid.Nil, id)

	again, other, err := c.NewMVID()
	require.NoError(t, err)
	require.Equal(t, uint32(3), again)
	require.NotEqual(t, id, other)
}

func Test_Context_AddMethodSignature_EncodesAndStoresBlob(t *testing.T) {
	c, cleanup := setupContext(t)
	defer cleanup()

	idx, err := c.AddMethodSignature(MethodSig{
		HasThis: true,
		Return:  Param{Type: Void},
		Params:  []Param{{Type: I4}, {Type: String}},
	})
	require.NoError(t, err)

	stored, ok := c.asm.Changes().Blobs().AppendedAt(idx)
	require.True(t, ok)
	require.Equal(t, []byte{0x20, 0x02, 0x01, 0x08, 0x0E}, stored)
}

func Test_Context_AddFieldSignature_RejectsBadTokens(t *testing.T) {
	c, cleanup := setupContext(t)
	defer cleanup()

	before := c.asm.Changes().Blobs().NextIndex()
	_, err := c.AddFieldSignature(FieldSig{Type: ClassSig(cil.NewToken(cil.TableMethodDef, 1))})
	var te *types.Error
	require.ErrorAs(t, err, &te)
	require.Equal(t, types.ErrKindInvalidOp, te.Kind)
	require.Equal(t, before, c.asm.Changes().Blobs().NextIndex())
}

func Test_Context_Finish_ClosesTheSession(t *testing.T) {
	view, cleanup := testutil.SetupAssembly(t)
	defer cleanup()
	asm := assembly.New(view)

	c := NewContext(asm)
	got := c.Finish()
	require.Same(t, asm, got)
	require.Nil(t, c.Finish())

	_, err := c.StringAdd("late")
	require.ErrorIs(t, err, types.ErrSessionClosed)
	_, err = c.TableRowAdd(cil.TableTypeRef, cil.TypeRefRow{Name: testutil.StrObject})
	require.ErrorIs(t, err, types.ErrSessionClosed)
	err = c.AddNativeImport("kernel32.dll", "ExitProcess")
	require.ErrorIs(t, err, types.ErrSessionClosed)
	_, ok := c.FindAssemblyRefByName("mscorlib")
	require.False(t, ok)

	// The surrendered assembly keeps working.
	idx := got.StringAdd("after")
	require.GreaterOrEqual(t, idx, uint32(59))
	require.NoError(t, got.Close())
}

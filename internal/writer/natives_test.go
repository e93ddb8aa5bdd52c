package writer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pmikstacki/cilkit/cil/changes"
	"github.com/pmikstacki/cilkit/internal/format"
)

func Test_serializeImports_EmptySetProducesNothing(t *testing.T) {
	out, dir := serializeImports(changes.NewNativeImports(), 0x1000, false)
	require.Nil(t, out)
	require.Equal(t, uint32(0), dir)
}

func Test_serializeImports_PE32Layout(t *testing.T) {
	imp := changes.NewNativeImports()
	require.NoError(t, imp.AddFunction("kernel32.dll", "GetTickCount"))
	require.NoError(t, imp.AddFunctionByOrdinal("user32.dll", 7))

	out, dir := serializeImports(imp, 0x5000, false)

	// Descriptors 60, two ILTs at 60 and 68, two IATs at 76 and 84, one
	// hint/name entry at 92 (padded to 16), DLL names at 108 and 121.
	require.Equal(t, uint32(60), dir)
	require.Len(t, out, 132)

	require.Equal(t, uint32(0x5000+60), format.ReadU32(out, 0), "kernel32 OriginalFirstThunk")
	require.Equal(t, uint32(0x5000+108), format.ReadU32(out, 12), "kernel32 Name")
	require.Equal(t, uint32(0x5000+76), format.ReadU32(out, 16), "kernel32 FirstThunk")
	require.Equal(t, uint32(0x5000+68), format.ReadU32(out, 20), "user32 OriginalFirstThunk")
	require.Equal(t, uint32(0x5000+121), format.ReadU32(out, 32), "user32 Name")
	require.Equal(t, uint32(0x5000+84), format.ReadU32(out, 36), "user32 FirstThunk")
	require.True(t, allZero(out[40:60]), "descriptor table not null terminated")

	// Named import thunks carry the hint/name RVA, ordinal imports the
	// flagged ordinal. The IAT starts as a copy of the lookup table.
	require.Equal(t, uint32(0x5000+92), format.ReadU32(out, 60))
	require.Equal(t, uint32(0), format.ReadU32(out, 64))
	require.Equal(t, uint32(0x80000007), format.ReadU32(out, 68))
	require.Equal(t, uint32(0), format.ReadU32(out, 72))
	require.Equal(t, format.ReadU32(out, 60), format.ReadU32(out, 76))
	require.Equal(t, format.ReadU32(out, 68), format.ReadU32(out, 84))

	require.Equal(t, uint16(0), format.ReadU16(out, 92))
	require.Equal(t, "GetTickCount", cString(out, 94))
	require.Equal(t, "kernel32.dll", cString(out, 108))
	require.Equal(t, "user32.dll", cString(out, 121))
}

func Test_serializeImports_PE32PlusUsesWideThunks(t *testing.T) {
	imp := changes.NewNativeImports()
	require.NoError(t, imp.AddFunctionByOrdinal("user32.dll", 7))

	out, dir := serializeImports(imp, 0x4000, true)

	require.Equal(t, uint32(40), dir)
	require.Len(t, out, 83)
	require.Equal(t, uint32(0x4000+40), format.ReadU32(out, 0))
	require.Equal(t, uint32(0x4000+56), format.ReadU32(out, 16))
	require.Equal(t, uint32(0x4000+72), format.ReadU32(out, 12))

	require.Equal(t, uint64(1)<<63|7, format.ReadU64(out, 40))
	require.Equal(t, uint64(0), format.ReadU64(out, 48))
	require.Equal(t, uint64(1)<<63|7, format.ReadU64(out, 56))
	require.Equal(t, "user32.dll", cString(out, 72))
}

func Test_serializeExports_EmptySetProducesNothing(t *testing.T) {
	out, dir := serializeExports(changes.NewNativeExports("x.dll"), 0x1000)
	require.Nil(t, out)
	require.Equal(t, uint32(0), dir)
}

func Test_serializeExports_LayoutAndNameOrder(t *testing.T) {
	exp := changes.NewNativeExports("test.dll")
	require.NoError(t, exp.AddFunction("Ping", 1, 0x1000))
	require.NoError(t, exp.AddForwarder("Fwd", 2, "other.Real"))

	out, dir := serializeExports(exp, 0x6000)

	// Header 40, EAT 8, name pointers 8, ordinals 4, then the strings:
	// DLL name at 60, "Fwd" at 69, "Ping" at 73, forwarder target at 78.
	require.Len(t, out, 89)
	require.Equal(t, uint32(89), dir, "directory size must cover the forwarder strings")

	require.Equal(t, uint32(0x6000+60), format.ReadU32(out, 12))
	require.Equal(t, uint32(1), format.ReadU32(out, 16))
	require.Equal(t, uint32(2), format.ReadU32(out, 20))
	require.Equal(t, uint32(2), format.ReadU32(out, 24))
	require.Equal(t, uint32(0x6000+40), format.ReadU32(out, 28))
	require.Equal(t, uint32(0x6000+48), format.ReadU32(out, 32))
	require.Equal(t, uint32(0x6000+56), format.ReadU32(out, 36))

	// EAT: real address for ordinal 1, forwarder string RVA for ordinal 2.
	require.Equal(t, uint32(0x1000), format.ReadU32(out, 40))
	require.Equal(t, uint32(0x6000+78), format.ReadU32(out, 44))

	// Name pointers are bytewise sorted with parallel biased ordinals.
	require.Equal(t, uint32(0x6000+69), format.ReadU32(out, 48))
	require.Equal(t, uint32(0x6000+73), format.ReadU32(out, 52))
	require.Equal(t, uint16(1), format.ReadU16(out, 56))
	require.Equal(t, uint16(0), format.ReadU16(out, 58))

	require.Equal(t, "test.dll", cString(out, 60))
	require.Equal(t, "Fwd", cString(out, 69))
	require.Equal(t, "Ping", cString(out, 73))
	require.Equal(t, "other.Real", cString(out, 78))
}

func Test_serializeExports_SparseOrdinalsLeaveZeroSlots(t *testing.T) {
	exp := changes.NewNativeExports("gap.dll")
	require.NoError(t, exp.AddFunctionByOrdinal(5, 0x2000))

	out, _ := serializeExports(exp, 0x7000)

	require.Equal(t, uint32(1), format.ReadU32(out, 16), "ordinal base")
	require.Equal(t, uint32(5), format.ReadU32(out, 20), "slots span base through highest ordinal")
	require.Equal(t, uint32(0), format.ReadU32(out, 24), "no named exports")

	require.True(t, allZero(out[40:56]), "unassigned ordinals must stay zero")
	require.Equal(t, uint32(0x2000), format.ReadU32(out, 56))
}

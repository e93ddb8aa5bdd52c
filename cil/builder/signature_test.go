package builder

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pmikstacki/cilkit/cil"
	"github.com/pmikstacki/cilkit/pkg/types"
)

func Test_DefaultSignatureEncoder_EncodeMethod_InstanceShape(t *testing.T) {
	sig := MethodSig{
		HasThis: true,
		Return:  Param{Type: Void},
		Params:  []Param{{Type: I4}, {Type: String}},
	}

	got, err := DefaultSignatureEncoder{}.EncodeMethod(sig)
	require.NoError(t, err)
	require.Equal(t, []byte{0x20, 0x02, 0x01, 0x08, 0x0E}, got)
}

func Test_DefaultSignatureEncoder_EncodeMethod_VarArgWithByRefParam(t *testing.T) {
	sig := MethodSig{
		Conv:   CallVarArg,
		Return: Param{Type: R8},
		Params: []Param{{ByRef: true, Type: I4}},
	}

	got, err := DefaultSignatureEncoder{}.EncodeMethod(sig)
	require.NoError(t, err)
	require.Equal(t, []byte{0x05, 0x01, 0x0D, 0x10, 0x08}, got)
}

func Test_DefaultSignatureEncoder_EncodeMethod_GenericsAndArrays(t *testing.T) {
	sig := MethodSig{
		Return: Param{Type: SzArrayOf(GenericVar(0))},
		Params: []Param{
			{Type: ValueTypeSig(cil.NewToken(cil.TableTypeSpec, 3))},
			{Type: PtrTo(Void)},
			{Type: GenericMVar(1)},
		},
	}

	got, err := DefaultSignatureEncoder{}.EncodeMethod(sig)
	require.NoError(t, err)
	require.Equal(t, []byte{
		0x00, 0x03,
		0x1D, 0x13, 0x00,
		0x11, 0x0E,
		0x0F, 0x01,
		0x1E, 0x01,
	}, got)
}

func Test_DefaultSignatureEncoder_EncodeField_CodedTokenWidths(t *testing.T) {
	enc := DefaultSignatureEncoder{}

	got, err := enc.EncodeField(FieldSig{Type: ClassSig(cil.NewToken(cil.TableTypeRef, 2))})
	require.NoError(t, err)
	require.Equal(t, []byte{0x06, 0x12, 0x09}, got)

	// A TypeRef past RID 31 pushes the coded index into the two-byte
	// compressed form.
	got, err = enc.EncodeField(FieldSig{Type: ClassSig(cil.NewToken(cil.TableTypeRef, 100))})
	require.NoError(t, err)
	require.Equal(t, []byte{0x06, 0x12, 0x81, 0x91}, got)
}

func Test_DefaultSignatureEncoder_EncodeField_CustomModifiers(t *testing.T) {
	sig := FieldSig{
		Mods: []Modifier{
			{Required: true, Type: cil.NewToken(cil.TableTypeDef, 1)},
			{Required: false, Type: cil.NewToken(cil.TableTypeRef, 1)},
		},
		Type: I4,
	}

	got, err := DefaultSignatureEncoder{}.EncodeField(sig)
	require.NoError(t, err)
	require.Equal(t, []byte{0x06, 0x1F, 0x04, 0x20, 0x05, 0x08}, got)
}

func Test_DefaultSignatureEncoder_EncodeProperty_IndexerShape(t *testing.T) {
	sig := PropertySig{
		HasThis: true,
		Type:    String,
		Params:  []Param{{Type: I4}},
	}

	got, err := DefaultSignatureEncoder{}.EncodeProperty(sig)
	require.NoError(t, err)
	require.Equal(t, []byte{0x28, 0x01, 0x0E, 0x08}, got)
}

func Test_DefaultSignatureEncoder_EncodeLocalVars_PinnedAndByRef(t *testing.T) {
	sig := LocalVarSig{
		Locals: []Local{
			{Type: I4},
			{Pinned: true, Type: String},
			{ByRef: true, Type: I8},
		},
	}

	got, err := DefaultSignatureEncoder{}.EncodeLocalVars(sig)
	require.NoError(t, err)
	require.Equal(t, []byte{0x07, 0x03, 0x08, 0x45, 0x0E, 0x10, 0x0A}, got)
}

func Test_DefaultSignatureEncoder_RejectsForeignTokens(t *testing.T) {
	enc := DefaultSignatureEncoder{}

	_, err := enc.EncodeField(FieldSig{Type: ClassSig(cil.NewToken(cil.TableMethodDef, 1))})
	var te *types.Error
	require.ErrorAs(t, err, &te)
	require.Equal(t, types.ErrKindInvalidOp, te.Kind)

	_, err = enc.EncodeMethod(MethodSig{
		Return: Param{Type: Void},
		Params: []Param{{Mods: []Modifier{{Type: cil.NewToken(cil.TableField, 7)}}, Type: I4}},
	})
	require.ErrorAs(t, err, &te)
	require.Equal(t, types.ErrKindInvalidOp, te.Kind)
}

func Test_DefaultSignatureEncoder_RejectsMissingElementType(t *testing.T) {
	_, err := DefaultSignatureEncoder{}.EncodeField(FieldSig{Type: TypeSig{Kind: KindSzArray}})
	var te *types.Error
	require.ErrorAs(t, err, &te)
	require.Equal(t, types.ErrKindInvalidOp, te.Kind)
}

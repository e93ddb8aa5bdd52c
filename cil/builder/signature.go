package builder

import (
	"fmt"

	"github.com/pmikstacki/cilkit/cil"
	"github.com/pmikstacki/cilkit/internal/format"
	"github.com/pmikstacki/cilkit/pkg/types"
)

// TypeKind identifies the shape of a TypeSig. The values are the ECMA-335
// element type bytes (II.23.1.16), so scalar kinds encode as themselves.
type TypeKind byte

const (
	KindVoid      TypeKind = 0x01
	KindBoolean   TypeKind = 0x02
	KindChar      TypeKind = 0x03
	KindI1        TypeKind = 0x04
	KindU1        TypeKind = 0x05
	KindI2        TypeKind = 0x06
	KindU2        TypeKind = 0x07
	KindI4        TypeKind = 0x08
	KindU4        TypeKind = 0x09
	KindI8        TypeKind = 0x0A
	KindU8        TypeKind = 0x0B
	KindR4        TypeKind = 0x0C
	KindR8        TypeKind = 0x0D
	KindString    TypeKind = 0x0E
	KindPtr       TypeKind = 0x0F
	KindByRef     TypeKind = 0x10
	KindValueType TypeKind = 0x11
	KindClass     TypeKind = 0x12
	KindVar       TypeKind = 0x13
	KindI         TypeKind = 0x18
	KindU         TypeKind = 0x19
	KindObject    TypeKind = 0x1C
	KindSzArray   TypeKind = 0x1D
	KindMVar      TypeKind = 0x1E
)

// Markers that never appear as a TypeSig kind on their own.
const (
	elemCModReqd = 0x1F
	elemCModOpt  = 0x20
	elemPinned   = 0x45
)

// TypeSig is a structured type signature. Scalar kinds stand alone;
// KindClass and KindValueType carry a TypeDef, TypeRef or TypeSpec token;
// KindVar and KindMVar carry a generic parameter number; KindPtr, KindByRef
// and KindSzArray wrap an element type.
type TypeSig struct {
	Kind  TypeKind
	Token cil.Token
	Num   uint32
	Elem  *TypeSig
}

// Ready-made scalar signatures.
var (
	Void    = TypeSig{Kind: KindVoid}
	Boolean = TypeSig{Kind: KindBoolean}
	Char    = TypeSig{Kind: KindChar}
	I1      = TypeSig{Kind: KindI1}
	U1      = TypeSig{Kind: KindU1}
	I2      = TypeSig{Kind: KindI2}
	U2      = TypeSig{Kind: KindU2}
	I4      = TypeSig{Kind: KindI4}
	U4      = TypeSig{Kind: KindU4}
	I8      = TypeSig{Kind: KindI8}
	U8      = TypeSig{Kind: KindU8}
	R4      = TypeSig{Kind: KindR4}
	R8      = TypeSig{Kind: KindR8}
	String  = TypeSig{Kind: KindString}
	IntPtr  = TypeSig{Kind: KindI}
	UIntPtr = TypeSig{Kind: KindU}
	Object  = TypeSig{Kind: KindObject}
)

// ClassSig references a class type by its TypeDef, TypeRef or TypeSpec token.
func ClassSig(tok cil.Token) TypeSig { return TypeSig{Kind: KindClass, Token: tok} }

// ValueTypeSig references a value type by its TypeDef, TypeRef or TypeSpec token.
func ValueTypeSig(tok cil.Token) TypeSig { return TypeSig{Kind: KindValueType, Token: tok} }

// SzArrayOf is a single-dimension, zero-based array of elem.
func SzArrayOf(elem TypeSig) TypeSig { return TypeSig{Kind: KindSzArray, Elem: &elem} }

// PtrTo is an unmanaged pointer to elem.
func PtrTo(elem TypeSig) TypeSig { return TypeSig{Kind: KindPtr, Elem: &elem} }

// GenericVar is the n-th generic parameter of the enclosing type.
func GenericVar(n uint32) TypeSig { return TypeSig{Kind: KindVar, Num: n} }

// GenericMVar is the n-th generic parameter of the enclosing method.
func GenericMVar(n uint32) TypeSig { return TypeSig{Kind: KindMVar, Num: n} }

// Modifier is a custom modifier (modreq or modopt) naming a TypeDef,
// TypeRef or TypeSpec.
type Modifier struct {
	Required bool
	Type     cil.Token
}

// Param is one parameter slot of a method or property signature. The
// return type uses the same shape.
type Param struct {
	Mods  []Modifier
	ByRef bool
	Type  TypeSig
}

// CallConv is the base calling convention byte of a method signature.
type CallConv byte

const (
	CallDefault  CallConv = 0x00
	CallC        CallConv = 0x01
	CallStdCall  CallConv = 0x02
	CallThisCall CallConv = 0x03
	CallFastCall CallConv = 0x04
	CallVarArg   CallConv = 0x05
)

const (
	callHasThis      = 0x20
	callExplicitThis = 0x40
)

// MethodSig describes a method signature blob for MethodDef, MemberRef and
// StandAloneSig rows.
type MethodSig struct {
	Conv         CallConv
	HasThis      bool
	ExplicitThis bool
	Return       Param
	Params       []Param
}

// FieldSig describes a field signature blob.
type FieldSig struct {
	Mods []Modifier
	Type TypeSig
}

// PropertySig describes a property signature blob. Params carries the index
// parameters of an indexer and is empty for plain properties.
type PropertySig struct {
	HasThis bool
	Mods    []Modifier
	Type    TypeSig
	Params  []Param
}

// Local is one slot of a local variable signature.
type Local struct {
	Pinned bool
	ByRef  bool
	Type   TypeSig
}

// LocalVarSig describes a StandAloneSig local variable blob.
type LocalVarSig struct {
	Locals []Local
}

// SignatureEncoder turns structured signatures into blob bytes. The
// default encoder covers the shapes above; callers carrying a richer type
// model can plug in their own.
type SignatureEncoder interface {
	EncodeMethod(sig MethodSig) ([]byte, error)
	EncodeField(sig FieldSig) ([]byte, error)
	EncodeProperty(sig PropertySig) ([]byte, error)
	EncodeLocalVars(sig LocalVarSig) ([]byte, error)
}

// DefaultSignatureEncoder emits the ECMA-335 II.23.2 binary forms.
type DefaultSignatureEncoder struct{}

// EncodeMethod emits calling convention, parameter count, return type and
// parameters (II.23.2.1).
func (DefaultSignatureEncoder) EncodeMethod(sig MethodSig) ([]byte, error) {
	conv := byte(sig.Conv)
	if sig.HasThis {
		conv |= callHasThis
	}
	if sig.ExplicitThis {
		conv |= callExplicitThis
	}
	buf := []byte{conv}
	buf = format.AppendCompressedUint(buf, uint32(len(sig.Params)))

	buf, err := appendParam(buf, sig.Return)
	if err != nil {
		return nil, fmt.Errorf("encoding return type: %w", err)
	}
	for i, p := range sig.Params {
		if buf, err = appendParam(buf, p); err != nil {
			return nil, fmt.Errorf("encoding parameter %d: %w", i, err)
		}
	}
	return buf, nil
}

// EncodeField emits the FIELD marker, modifiers and field type (II.23.2.4).
func (DefaultSignatureEncoder) EncodeField(sig FieldSig) ([]byte, error) {
	buf := []byte{0x06}
	buf, err := appendModifiers(buf, sig.Mods)
	if err != nil {
		return nil, err
	}
	return appendType(buf, sig.Type)
}

// EncodeProperty emits the PROPERTY marker, parameter count, modifiers,
// property type and index parameters (II.23.2.5).
func (DefaultSignatureEncoder) EncodeProperty(sig PropertySig) ([]byte, error) {
	prolog := byte(0x08)
	if sig.HasThis {
		prolog |= callHasThis
	}
	buf := []byte{prolog}
	buf = format.AppendCompressedUint(buf, uint32(len(sig.Params)))

	buf, err := appendModifiers(buf, sig.Mods)
	if err != nil {
		return nil, err
	}
	if buf, err = appendType(buf, sig.Type); err != nil {
		return nil, err
	}
	for i, p := range sig.Params {
		if buf, err = appendParam(buf, p); err != nil {
			return nil, fmt.Errorf("encoding index parameter %d: %w", i, err)
		}
	}
	return buf, nil
}

// EncodeLocalVars emits the LOCAL_SIG marker, count and locals with their
// pinned and byref markers (II.23.2.6).
func (DefaultSignatureEncoder) EncodeLocalVars(sig LocalVarSig) ([]byte, error) {
	buf := []byte{0x07}
	buf = format.AppendCompressedUint(buf, uint32(len(sig.Locals)))

	var err error
	for i, l := range sig.Locals {
		if l.Pinned {
			buf = append(buf, elemPinned)
		}
		if l.ByRef {
			buf = append(buf, byte(KindByRef))
		}
		if buf, err = appendType(buf, l.Type); err != nil {
			return nil, fmt.Errorf("encoding local %d: %w", i, err)
		}
	}
	return buf, nil
}

func appendParam(dst []byte, p Param) ([]byte, error) {
	dst, err := appendModifiers(dst, p.Mods)
	if err != nil {
		return nil, err
	}
	if p.ByRef {
		dst = append(dst, byte(KindByRef))
	}
	return appendType(dst, p.Type)
}

func appendModifiers(dst []byte, mods []Modifier) ([]byte, error) {
	for _, m := range mods {
		if m.Required {
			dst = append(dst, elemCModReqd)
		} else {
			dst = append(dst, elemCModOpt)
		}
		coded, err := typeDefOrRef(m.Type)
		if err != nil {
			return nil, err
		}
		dst = format.AppendCompressedUint(dst, coded)
	}
	return dst, nil
}

func appendType(dst []byte, t TypeSig) ([]byte, error) {
	switch t.Kind {
	case KindVoid, KindBoolean, KindChar, KindI1, KindU1, KindI2, KindU2,
		KindI4, KindU4, KindI8, KindU8, KindR4, KindR8, KindString,
		KindI, KindU, KindObject:
		return append(dst, byte(t.Kind)), nil

	case KindClass, KindValueType:
		coded, err := typeDefOrRef(t.Token)
		if err != nil {
			return nil, err
		}
		dst = append(dst, byte(t.Kind))
		return format.AppendCompressedUint(dst, coded), nil

	case KindVar, KindMVar:
		dst = append(dst, byte(t.Kind))
		return format.AppendCompressedUint(dst, t.Num), nil

	case KindPtr, KindByRef, KindSzArray:
		if t.Elem == nil {
			return nil, &types.Error{
				Kind: types.ErrKindInvalidOp,
				Msg:  fmt.Sprintf("builder: element type 0x%02X has no element signature", byte(t.Kind)),
			}
		}
		return appendType(append(dst, byte(t.Kind)), *t.Elem)
	}
	return nil, &types.Error{
		Kind: types.ErrKindInvalidOp,
		Msg:  fmt.Sprintf("builder: cannot encode type kind 0x%02X", byte(t.Kind)),
	}
}

// typeDefOrRef packs a token into the TypeDefOrRef coded form used inside
// signatures (II.23.2.8): rid<<2 with tag 0 TypeDef, 1 TypeRef, 2 TypeSpec.
func typeDefOrRef(tok cil.Token) (uint32, error) {
	switch tok.Table() {
	case cil.TableTypeDef:
		return tok.RID() << 2, nil
	case cil.TableTypeRef:
		return tok.RID()<<2 | 1, nil
	case cil.TableTypeSpec:
		return tok.RID()<<2 | 2, nil
	}
	return 0, &types.Error{
		Kind: types.ErrKindInvalidOp,
		Msg:  fmt.Sprintf("builder: token %s is not a TypeDef, TypeRef or TypeSpec", tok),
	}
}

package cil

import "fmt"

// CodedIndexType names one of the coded-index families from ECMA-335
// §II.24.2.6 plus the Portable PDB addition. A coded index packs a tag
// selecting one table out of a small fixed set together with a row id, so one
// column can reference rows in several tables.
type CodedIndexType uint8

const (
	TypeDefOrRef CodedIndexType = iota
	HasConstant
	HasCustomAttribute
	HasFieldMarshal
	HasDeclSecurity
	MemberRefParent
	HasSemantics
	MethodDefOrRef
	MemberForwarded
	Implementation
	CustomAttributeType
	ResolutionScope
	TypeOrMethodDef
	HasCustomDebugInformation
)

// codedTables lists, per family, the table selected by each tag value. Slots
// holding tableNone are reserved tag values that never appear in valid
// metadata (CustomAttributeType reserves three of its five).
var codedTables = [...][]TableID{
	TypeDefOrRef: {TableTypeDef, TableTypeRef, TableTypeSpec},
	HasConstant:  {TableField, TableParam, TableProperty},
	HasCustomAttribute: {
		TableMethodDef, TableField, TableTypeRef, TableTypeDef, TableParam,
		TableInterfaceImpl, TableMemberRef, TableModule, TableDeclSecurity,
		TableProperty, TableEvent, TableStandAloneSig, TableModuleRef,
		TableTypeSpec, TableAssembly, TableAssemblyRef, TableFile,
		TableExportedType, TableManifestResource, TableGenericParam,
		TableGenericParamConstraint, TableMethodSpec,
	},
	HasFieldMarshal: {TableField, TableParam},
	HasDeclSecurity: {TableTypeDef, TableMethodDef, TableAssembly},
	MemberRefParent: {TableTypeDef, TableTypeRef, TableModuleRef, TableMethodDef, TableTypeSpec},
	HasSemantics:    {TableEvent, TableProperty},
	MethodDefOrRef:  {TableMethodDef, TableMemberRef},
	MemberForwarded: {TableField, TableMethodDef},
	Implementation:  {TableFile, TableAssemblyRef, TableExportedType},
	CustomAttributeType: {
		tableNone, tableNone, TableMethodDef, TableMemberRef, tableNone,
	},
	ResolutionScope: {TableModule, TableModuleRef, TableAssemblyRef, TableTypeRef},
	TypeOrMethodDef: {TableTypeDef, TableMethodDef},
	HasCustomDebugInformation: {
		TableMethodDef, TableField, TableTypeRef, TableTypeDef, TableParam,
		TableInterfaceImpl, TableMemberRef, TableModule, TableDeclSecurity,
		TableProperty, TableEvent, TableStandAloneSig, TableModuleRef,
		TableTypeSpec, TableAssembly, TableAssemblyRef, TableFile,
		TableExportedType, TableManifestResource, TableGenericParam,
		TableGenericParamConstraint, TableMethodSpec, TableDocument,
		TableLocalScope, TableLocalVariable, TableLocalConstant,
		TableImportScope,
	},
}

var codedNames = [...]string{
	TypeDefOrRef:              "TypeDefOrRef",
	HasConstant:               "HasConstant",
	HasCustomAttribute:        "HasCustomAttribute",
	HasFieldMarshal:           "HasFieldMarshal",
	HasDeclSecurity:           "HasDeclSecurity",
	MemberRefParent:           "MemberRefParent",
	HasSemantics:              "HasSemantics",
	MethodDefOrRef:            "MethodDefOrRef",
	MemberForwarded:           "MemberForwarded",
	Implementation:            "Implementation",
	CustomAttributeType:       "CustomAttributeType",
	ResolutionScope:           "ResolutionScope",
	TypeOrMethodDef:           "TypeOrMethodDef",
	HasCustomDebugInformation: "HasCustomDebugInformation",
}

// Tables returns the tag-ordered table set of the family. The slice is shared;
// callers must not modify it.
func (c CodedIndexType) Tables() []TableID {
	return codedTables[c]
}

// TagBits returns the number of low bits the family reserves for its tag.
func (c CodedIndexType) TagBits() int {
	n := len(codedTables[c])
	bits := 0
	for 1<<bits < n {
		bits++
	}
	return bits
}

// String implements the Stringer interface for CodedIndexType.
func (c CodedIndexType) String() string {
	if int(c) < len(codedNames) {
		return codedNames[c]
	}
	return fmt.Sprintf("UNKNOWN_CODED_INDEX_%d", uint8(c))
}

// CodedIndex is a decoded cross-table reference: a target table and a 1-based
// row id. RID 0 is the null reference.
type CodedIndex struct {
	Table TableID
	RID   uint32
}

// Token returns the token form of the reference.
func (ci CodedIndex) Token() Token {
	return NewToken(ci.Table, ci.RID)
}

// IsNull reports whether the reference points at no row.
func (ci CodedIndex) IsNull() bool {
	return ci.RID == 0
}

// CodedIndexFromToken splits a token back into its table and row parts.
func CodedIndexFromToken(tok Token) CodedIndex {
	return CodedIndex{Table: tok.Table(), RID: tok.RID()}
}

// Encode packs the reference into the family's on-wire tag form. The null
// reference encodes as 0. Referencing a table outside the family is an error.
func (c CodedIndexType) Encode(ci CodedIndex) (uint32, error) {
	if ci.IsNull() {
		return 0, nil
	}
	for tag, table := range codedTables[c] {
		if table == ci.Table {
			return ci.RID<<c.TagBits() | uint32(tag), nil
		}
	}
	return 0, fmt.Errorf("cil: table %s is not a member of coded index %s", ci.Table, c)
}

// Decode unpacks an on-wire tag form. A raw value of 0 decodes to the null
// reference in the family's tag-0 table.
func (c CodedIndexType) Decode(raw uint32) (CodedIndex, error) {
	bits := c.TagBits()
	tag := raw & (1<<bits - 1)
	rid := raw >> bits
	tables := codedTables[c]
	if int(tag) >= len(tables) || tables[tag] == tableNone {
		return CodedIndex{}, fmt.Errorf("cil: coded index %s has no table for tag %d", c, tag)
	}
	return CodedIndex{Table: tables[tag], RID: rid}, nil
}

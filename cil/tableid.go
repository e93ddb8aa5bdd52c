package cil

import "fmt"

// TableID identifies one metadata table. The numbering follows ECMA-335
// partition II §22 for the runtime tables (0x00-0x2C) and the Portable PDB
// specification for the debug tables (0x30-0x37).
type TableID uint8

const (
	TableModule                 TableID = 0x00
	TableTypeRef                TableID = 0x01
	TableTypeDef                TableID = 0x02
	TableFieldPtr               TableID = 0x03
	TableField                  TableID = 0x04
	TableMethodPtr              TableID = 0x05
	TableMethodDef              TableID = 0x06
	TableParamPtr               TableID = 0x07
	TableParam                  TableID = 0x08
	TableInterfaceImpl          TableID = 0x09
	TableMemberRef              TableID = 0x0A
	TableConstant               TableID = 0x0B
	TableCustomAttribute        TableID = 0x0C
	TableFieldMarshal           TableID = 0x0D
	TableDeclSecurity           TableID = 0x0E
	TableClassLayout            TableID = 0x0F
	TableFieldLayout            TableID = 0x10
	TableStandAloneSig          TableID = 0x11
	TableEventMap               TableID = 0x12
	TableEventPtr               TableID = 0x13
	TableEvent                  TableID = 0x14
	TablePropertyMap            TableID = 0x15
	TablePropertyPtr            TableID = 0x16
	TableProperty               TableID = 0x17
	TableMethodSemantics        TableID = 0x18
	TableMethodImpl             TableID = 0x19
	TableModuleRef              TableID = 0x1A
	TableTypeSpec               TableID = 0x1B
	TableImplMap                TableID = 0x1C
	TableFieldRVA               TableID = 0x1D
	TableEncLog                 TableID = 0x1E
	TableEncMap                 TableID = 0x1F
	TableAssembly               TableID = 0x20
	TableAssemblyProcessor      TableID = 0x21
	TableAssemblyOS             TableID = 0x22
	TableAssemblyRef            TableID = 0x23
	TableAssemblyRefProcessor   TableID = 0x24
	TableAssemblyRefOS          TableID = 0x25
	TableFile                   TableID = 0x26
	TableExportedType           TableID = 0x27
	TableManifestResource       TableID = 0x28
	TableNestedClass            TableID = 0x29
	TableGenericParam           TableID = 0x2A
	TableMethodSpec             TableID = 0x2B
	TableGenericParamConstraint TableID = 0x2C

	TableDocument               TableID = 0x30
	TableMethodDebugInformation TableID = 0x31
	TableLocalScope             TableID = 0x32
	TableLocalVariable          TableID = 0x33
	TableLocalConstant          TableID = 0x34
	TableImportScope            TableID = 0x35
	TableStateMachineMethod     TableID = 0x36
	TableCustomDebugInformation TableID = 0x37

	// tableNone marks unused coded-index tag slots. It is not a real table.
	tableNone TableID = 0xFF
)

// MaxTableID is the highest valid table id; the #~ header's valid bitvector
// is indexed by table id, so arrays sized MaxTableID+1 cover every table.
const MaxTableID = 0x37

var tableNames = map[TableID]string{
	TableModule:                 "Module",
	TableTypeRef:                "TypeRef",
	TableTypeDef:                "TypeDef",
	TableFieldPtr:               "FieldPtr",
	TableField:                  "Field",
	TableMethodPtr:              "MethodPtr",
	TableMethodDef:              "MethodDef",
	TableParamPtr:               "ParamPtr",
	TableParam:                  "Param",
	TableInterfaceImpl:          "InterfaceImpl",
	TableMemberRef:              "MemberRef",
	TableConstant:               "Constant",
	TableCustomAttribute:        "CustomAttribute",
	TableFieldMarshal:           "FieldMarshal",
	TableDeclSecurity:           "DeclSecurity",
	TableClassLayout:            "ClassLayout",
	TableFieldLayout:            "FieldLayout",
	TableStandAloneSig:          "StandAloneSig",
	TableEventMap:               "EventMap",
	TableEventPtr:               "EventPtr",
	TableEvent:                  "Event",
	TablePropertyMap:            "PropertyMap",
	TablePropertyPtr:            "PropertyPtr",
	TableProperty:               "Property",
	TableMethodSemantics:        "MethodSemantics",
	TableMethodImpl:             "MethodImpl",
	TableModuleRef:              "ModuleRef",
	TableTypeSpec:               "TypeSpec",
	TableImplMap:                "ImplMap",
	TableFieldRVA:               "FieldRVA",
	TableEncLog:                 "EncLog",
	TableEncMap:                 "EncMap",
	TableAssembly:               "Assembly",
	TableAssemblyProcessor:      "AssemblyProcessor",
	TableAssemblyOS:             "AssemblyOS",
	TableAssemblyRef:            "AssemblyRef",
	TableAssemblyRefProcessor:   "AssemblyRefProcessor",
	TableAssemblyRefOS:          "AssemblyRefOS",
	TableFile:                   "File",
	TableExportedType:           "ExportedType",
	TableManifestResource:       "ManifestResource",
	TableNestedClass:            "NestedClass",
	TableGenericParam:           "GenericParam",
	TableMethodSpec:             "MethodSpec",
	TableGenericParamConstraint: "GenericParamConstraint",
	TableDocument:               "Document",
	TableMethodDebugInformation: "MethodDebugInformation",
	TableLocalScope:             "LocalScope",
	TableLocalVariable:          "LocalVariable",
	TableLocalConstant:          "LocalConstant",
	TableImportScope:            "ImportScope",
	TableStateMachineMethod:     "StateMachineMethod",
	TableCustomDebugInformation: "CustomDebugInformation",
}

// Valid reports whether t names a defined metadata table.
func (t TableID) Valid() bool {
	_, ok := tableNames[t]
	return ok
}

// String implements the Stringer interface for TableID.
func (t TableID) String() string {
	if name, ok := tableNames[t]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN_TABLE_0x%02X", uint8(t))
}

// AllTableIDs returns every defined table id in ascending order. Consumers
// that must not skip a table kind iterate this list rather than hand-rolled
// ranges.
func AllTableIDs() []TableID {
	ids := make([]TableID, 0, len(tableNames))
	for t := TableID(0); t <= MaxTableID; t++ {
		if t.Valid() {
			ids = append(ids, t)
		}
	}
	return ids
}

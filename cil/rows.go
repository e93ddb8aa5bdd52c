package cil

import "fmt"

// Row is one decoded metadata table row. The set of implementations is
// closed: exactly the XxxRow types in this package, one per table, and
// nothing outside the package can add to it. Index columns hold 1-based heap
// indices or RIDs; coded-index columns hold decoded CodedIndex values.
type Row interface {
	// Table returns the table this row shape belongs to.
	Table() TableID

	sealed()
}

// ModuleRow is a 0x00 Module table row.
type ModuleRow struct {
	Generation uint16
	Name       uint32 // #Strings
	MVID       uint32 // #GUID
	EncID      uint32 // #GUID
	EncBaseID  uint32 // #GUID
}

// TypeRefRow is a 0x01 TypeRef table row.
type TypeRefRow struct {
	Scope     CodedIndex // ResolutionScope
	Name      uint32     // #Strings
	Namespace uint32     // #Strings
}

// TypeDefRow is a 0x02 TypeDef table row.
type TypeDefRow struct {
	Flags      uint32
	Name       uint32     // #Strings
	Namespace  uint32     // #Strings
	Extends    CodedIndex // TypeDefOrRef
	FieldList  uint32     // Field RID
	MethodList uint32     // MethodDef RID
}

// FieldPtrRow is a 0x03 FieldPtr indirection row.
type FieldPtrRow struct {
	Field uint32 // Field RID
}

// FieldRow is a 0x04 Field table row.
type FieldRow struct {
	Flags     uint16
	Name      uint32 // #Strings
	Signature uint32 // #Blob
}

// MethodPtrRow is a 0x05 MethodPtr indirection row.
type MethodPtrRow struct {
	Method uint32 // MethodDef RID
}

// MethodDefRow is a 0x06 MethodDef table row.
type MethodDefRow struct {
	RVA       uint32
	ImplFlags uint16
	Flags     uint16
	Name      uint32 // #Strings
	Signature uint32 // #Blob
	ParamList uint32 // Param RID
}

// ParamPtrRow is a 0x07 ParamPtr indirection row.
type ParamPtrRow struct {
	Param uint32 // Param RID
}

// ParamRow is a 0x08 Param table row.
type ParamRow struct {
	Flags    uint16
	Sequence uint16
	Name     uint32 // #Strings
}

// InterfaceImplRow is a 0x09 InterfaceImpl table row.
type InterfaceImplRow struct {
	Class     uint32     // TypeDef RID
	Interface CodedIndex // TypeDefOrRef
}

// MemberRefRow is a 0x0A MemberRef table row.
type MemberRefRow struct {
	Class     CodedIndex // MemberRefParent
	Name      uint32     // #Strings
	Signature uint32     // #Blob
}

// ConstantRow is a 0x0B Constant table row. Type holds the element type in
// its low byte; the high byte is the format's mandatory zero padding.
type ConstantRow struct {
	Type   uint16
	Parent CodedIndex // HasConstant
	Value  uint32     // #Blob
}

// CustomAttributeRow is a 0x0C CustomAttribute table row.
type CustomAttributeRow struct {
	Parent CodedIndex // HasCustomAttribute
	Type   CodedIndex // CustomAttributeType
	Value  uint32     // #Blob
}

// FieldMarshalRow is a 0x0D FieldMarshal table row.
type FieldMarshalRow struct {
	Parent     CodedIndex // HasFieldMarshal
	NativeType uint32     // #Blob
}

// DeclSecurityRow is a 0x0E DeclSecurity table row.
type DeclSecurityRow struct {
	Action        uint16
	Parent        CodedIndex // HasDeclSecurity
	PermissionSet uint32     // #Blob
}

// ClassLayoutRow is a 0x0F ClassLayout table row.
type ClassLayoutRow struct {
	PackingSize uint16
	ClassSize   uint32
	Parent      uint32 // TypeDef RID
}

// FieldLayoutRow is a 0x10 FieldLayout table row.
type FieldLayoutRow struct {
	Offset uint32
	Field  uint32 // Field RID
}

// StandAloneSigRow is a 0x11 StandAloneSig table row.
type StandAloneSigRow struct {
	Signature uint32 // #Blob
}

// EventMapRow is a 0x12 EventMap table row.
type EventMapRow struct {
	Parent    uint32 // TypeDef RID
	EventList uint32 // Event RID
}

// EventPtrRow is a 0x13 EventPtr indirection row.
type EventPtrRow struct {
	Event uint32 // Event RID
}

// EventRow is a 0x14 Event table row.
type EventRow struct {
	EventFlags uint16
	Name       uint32     // #Strings
	EventType  CodedIndex // TypeDefOrRef
}

// PropertyMapRow is a 0x15 PropertyMap table row.
type PropertyMapRow struct {
	Parent       uint32 // TypeDef RID
	PropertyList uint32 // Property RID
}

// PropertyPtrRow is a 0x16 PropertyPtr indirection row.
type PropertyPtrRow struct {
	Property uint32 // Property RID
}

// PropertyRow is a 0x17 Property table row.
type PropertyRow struct {
	Flags uint16
	Name  uint32 // #Strings
	Type  uint32 // #Blob
}

// MethodSemanticsRow is a 0x18 MethodSemantics table row.
type MethodSemanticsRow struct {
	Semantics   uint16
	Method      uint32     // MethodDef RID
	Association CodedIndex // HasSemantics
}

// MethodImplRow is a 0x19 MethodImpl table row.
type MethodImplRow struct {
	Class             uint32     // TypeDef RID
	MethodBody        CodedIndex // MethodDefOrRef
	MethodDeclaration CodedIndex // MethodDefOrRef
}

// ModuleRefRow is a 0x1A ModuleRef table row.
type ModuleRefRow struct {
	Name uint32 // #Strings
}

// TypeSpecRow is a 0x1B TypeSpec table row.
type TypeSpecRow struct {
	Signature uint32 // #Blob
}

// ImplMapRow is a 0x1C ImplMap table row.
type ImplMapRow struct {
	MappingFlags    uint16
	MemberForwarded CodedIndex // MemberForwarded
	ImportName      uint32     // #Strings
	ImportScope     uint32     // ModuleRef RID
}

// FieldRVARow is a 0x1D FieldRVA table row.
type FieldRVARow struct {
	RVA   uint32
	Field uint32 // Field RID
}

// EncLogRow is a 0x1E EncLog (edit-and-continue log) table row.
type EncLogRow struct {
	Token    uint32
	FuncCode uint32
}

// EncMapRow is a 0x1F EncMap (edit-and-continue map) table row.
type EncMapRow struct {
	Token uint32
}

// AssemblyRow is a 0x20 Assembly table row.
type AssemblyRow struct {
	HashAlgID      uint32
	MajorVersion   uint16
	MinorVersion   uint16
	BuildNumber    uint16
	RevisionNumber uint16
	Flags          uint32
	PublicKey      uint32 // #Blob
	Name           uint32 // #Strings
	Culture        uint32 // #Strings
}

// AssemblyProcessorRow is a 0x21 AssemblyProcessor table row.
type AssemblyProcessorRow struct {
	Processor uint32
}

// AssemblyOSRow is a 0x22 AssemblyOS table row.
type AssemblyOSRow struct {
	OSPlatformID   uint32
	OSMajorVersion uint32
	OSMinorVersion uint32
}

// AssemblyRefRow is a 0x23 AssemblyRef table row.
type AssemblyRefRow struct {
	MajorVersion     uint16
	MinorVersion     uint16
	BuildNumber      uint16
	RevisionNumber   uint16
	Flags            uint32
	PublicKeyOrToken uint32 // #Blob
	Name             uint32 // #Strings
	Culture          uint32 // #Strings
	HashValue        uint32 // #Blob
}

// AssemblyRefProcessorRow is a 0x24 AssemblyRefProcessor table row.
type AssemblyRefProcessorRow struct {
	Processor   uint32
	AssemblyRef uint32 // AssemblyRef RID
}

// AssemblyRefOSRow is a 0x25 AssemblyRefOS table row.
type AssemblyRefOSRow struct {
	OSPlatformID   uint32
	OSMajorVersion uint32
	OSMinorVersion uint32
	AssemblyRef    uint32 // AssemblyRef RID
}

// FileRow is a 0x26 File table row.
type FileRow struct {
	Flags     uint32
	Name      uint32 // #Strings
	HashValue uint32 // #Blob
}

// ExportedTypeRow is a 0x27 ExportedType table row.
type ExportedTypeRow struct {
	Flags          uint32
	TypeDefID      uint32
	TypeName       uint32     // #Strings
	TypeNamespace  uint32     // #Strings
	Implementation CodedIndex // Implementation
}

// ManifestResourceRow is a 0x28 ManifestResource table row.
type ManifestResourceRow struct {
	Offset         uint32
	Flags          uint32
	Name           uint32     // #Strings
	Implementation CodedIndex // Implementation
}

// NestedClassRow is a 0x29 NestedClass table row.
type NestedClassRow struct {
	NestedClass    uint32 // TypeDef RID
	EnclosingClass uint32 // TypeDef RID
}

// GenericParamRow is a 0x2A GenericParam table row.
type GenericParamRow struct {
	Number uint16
	Flags  uint16
	Owner  CodedIndex // TypeOrMethodDef
	Name   uint32     // #Strings
}

// MethodSpecRow is a 0x2B MethodSpec table row.
type MethodSpecRow struct {
	Method        CodedIndex // MethodDefOrRef
	Instantiation uint32     // #Blob
}

// GenericParamConstraintRow is a 0x2C GenericParamConstraint table row.
type GenericParamConstraintRow struct {
	Owner      uint32     // GenericParam RID
	Constraint CodedIndex // TypeDefOrRef
}

// DocumentRow is a 0x30 Document (Portable PDB) table row.
type DocumentRow struct {
	Name          uint32 // #Blob
	HashAlgorithm uint32 // #GUID
	Hash          uint32 // #Blob
	Language      uint32 // #GUID
}

// MethodDebugInformationRow is a 0x31 MethodDebugInformation (Portable PDB) table row.
type MethodDebugInformationRow struct {
	Document       uint32 // Document RID
	SequencePoints uint32 // #Blob
}

// LocalScopeRow is a 0x32 LocalScope (Portable PDB) table row.
type LocalScopeRow struct {
	Method       uint32 // MethodDef RID
	ImportScope  uint32 // ImportScope RID
	VariableList uint32 // LocalVariable RID
	ConstantList uint32 // LocalConstant RID
	StartOffset  uint32
	Length       uint32
}

// LocalVariableRow is a 0x33 LocalVariable (Portable PDB) table row.
type LocalVariableRow struct {
	Attributes uint16
	Index      uint16
	Name       uint32 // #Strings
}

// LocalConstantRow is a 0x34 LocalConstant (Portable PDB) table row.
type LocalConstantRow struct {
	Name      uint32 // #Strings
	Signature uint32 // #Blob
}

// ImportScopeRow is a 0x35 ImportScope (Portable PDB) table row.
type ImportScopeRow struct {
	Parent  uint32 // ImportScope RID
	Imports uint32 // #Blob
}

// StateMachineMethodRow is a 0x36 StateMachineMethod (Portable PDB) table row.
type StateMachineMethodRow struct {
	MoveNextMethod uint32 // MethodDef RID
	KickoffMethod  uint32 // MethodDef RID
}

// CustomDebugInformationRow is a 0x37 CustomDebugInformation (Portable PDB) table row.
type CustomDebugInformationRow struct {
	Parent CodedIndex // HasCustomDebugInformation
	Kind   uint32     // #GUID
	Value  uint32     // #Blob
}

func (ModuleRow) Table() TableID                 { return TableModule }
func (TypeRefRow) Table() TableID               { return TableTypeRef }
func (TypeDefRow) Table() TableID               { return TableTypeDef }
func (FieldPtrRow) Table() TableID              { return TableFieldPtr }
func (FieldRow) Table() TableID                 { return TableField }
func (MethodPtrRow) Table() TableID             { return TableMethodPtr }
func (MethodDefRow) Table() TableID             { return TableMethodDef }
func (ParamPtrRow) Table() TableID              { return TableParamPtr }
func (ParamRow) Table() TableID                 { return TableParam }
func (InterfaceImplRow) Table() TableID         { return TableInterfaceImpl }
func (MemberRefRow) Table() TableID             { return TableMemberRef }
func (ConstantRow) Table() TableID              { return TableConstant }
func (CustomAttributeRow) Table() TableID       { return TableCustomAttribute }
func (FieldMarshalRow) Table() TableID          { return TableFieldMarshal }
func (DeclSecurityRow) Table() TableID          { return TableDeclSecurity }
func (ClassLayoutRow) Table() TableID           { return TableClassLayout }
func (FieldLayoutRow) Table() TableID           { return TableFieldLayout }
func (StandAloneSigRow) Table() TableID         { return TableStandAloneSig }
func (EventMapRow) Table() TableID              { return TableEventMap }
func (EventPtrRow) Table() TableID              { return TableEventPtr }
func (EventRow) Table() TableID                 { return TableEvent }
func (PropertyMapRow) Table() TableID           { return TablePropertyMap }
func (PropertyPtrRow) Table() TableID           { return TablePropertyPtr }
func (PropertyRow) Table() TableID              { return TableProperty }
func (MethodSemanticsRow) Table() TableID       { return TableMethodSemantics }
func (MethodImplRow) Table() TableID            { return TableMethodImpl }
func (ModuleRefRow) Table() TableID             { return TableModuleRef }
func (TypeSpecRow) Table() TableID              { return TableTypeSpec }
func (ImplMapRow) Table() TableID               { return TableImplMap }
func (FieldRVARow) Table() TableID              { return TableFieldRVA }
func (EncLogRow) Table() TableID                { return TableEncLog }
func (EncMapRow) Table() TableID                { return TableEncMap }
func (AssemblyRow) Table() TableID              { return TableAssembly }
func (AssemblyProcessorRow) Table() TableID     { return TableAssemblyProcessor }
func (AssemblyOSRow) Table() TableID            { return TableAssemblyOS }
func (AssemblyRefRow) Table() TableID           { return TableAssemblyRef }
func (AssemblyRefProcessorRow) Table() TableID  { return TableAssemblyRefProcessor }
func (AssemblyRefOSRow) Table() TableID         { return TableAssemblyRefOS }
func (FileRow) Table() TableID                  { return TableFile }
func (ExportedTypeRow) Table() TableID          { return TableExportedType }
func (ManifestResourceRow) Table() TableID      { return TableManifestResource }
func (NestedClassRow) Table() TableID           { return TableNestedClass }
func (GenericParamRow) Table() TableID          { return TableGenericParam }
func (MethodSpecRow) Table() TableID            { return TableMethodSpec }
func (GenericParamConstraintRow) Table() TableID {
	return TableGenericParamConstraint
}
func (DocumentRow) Table() TableID               { return TableDocument }
func (MethodDebugInformationRow) Table() TableID { return TableMethodDebugInformation }
func (LocalScopeRow) Table() TableID             { return TableLocalScope }
func (LocalVariableRow) Table() TableID          { return TableLocalVariable }
func (LocalConstantRow) Table() TableID          { return TableLocalConstant }
func (ImportScopeRow) Table() TableID            { return TableImportScope }
func (StateMachineMethodRow) Table() TableID     { return TableStateMachineMethod }
func (CustomDebugInformationRow) Table() TableID { return TableCustomDebugInformation }

func (ModuleRow) sealed()                 {}
func (TypeRefRow) sealed()                {}
func (TypeDefRow) sealed()                {}
func (FieldPtrRow) sealed()               {}
func (FieldRow) sealed()                  {}
func (MethodPtrRow) sealed()              {}
func (MethodDefRow) sealed()              {}
func (ParamPtrRow) sealed()               {}
func (ParamRow) sealed()                  {}
func (InterfaceImplRow) sealed()          {}
func (MemberRefRow) sealed()              {}
func (ConstantRow) sealed()               {}
func (CustomAttributeRow) sealed()        {}
func (FieldMarshalRow) sealed()           {}
func (DeclSecurityRow) sealed()           {}
func (ClassLayoutRow) sealed()            {}
func (FieldLayoutRow) sealed()            {}
func (StandAloneSigRow) sealed()          {}
func (EventMapRow) sealed()               {}
func (EventPtrRow) sealed()               {}
func (EventRow) sealed()                  {}
func (PropertyMapRow) sealed()            {}
func (PropertyPtrRow) sealed()            {}
func (PropertyRow) sealed()               {}
func (MethodSemanticsRow) sealed()        {}
func (MethodImplRow) sealed()             {}
func (ModuleRefRow) sealed()              {}
func (TypeSpecRow) sealed()               {}
func (ImplMapRow) sealed()                {}
func (FieldRVARow) sealed()               {}
func (EncLogRow) sealed()                 {}
func (EncMapRow) sealed()                 {}
func (AssemblyRow) sealed()               {}
func (AssemblyProcessorRow) sealed()      {}
func (AssemblyOSRow) sealed()             {}
func (AssemblyRefRow) sealed()            {}
func (AssemblyRefProcessorRow) sealed()   {}
func (AssemblyRefOSRow) sealed()          {}
func (FileRow) sealed()                   {}
func (ExportedTypeRow) sealed()           {}
func (ManifestResourceRow) sealed()       {}
func (NestedClassRow) sealed()            {}
func (GenericParamRow) sealed()           {}
func (MethodSpecRow) sealed()             {}
func (GenericParamConstraintRow) sealed() {}
func (DocumentRow) sealed()               {}
func (MethodDebugInformationRow) sealed() {}
func (LocalScopeRow) sealed()             {}
func (LocalVariableRow) sealed()          {}
func (LocalConstantRow) sealed()          {}
func (ImportScopeRow) sealed()            {}
func (StateMachineMethodRow) sealed()     {}
func (CustomDebugInformationRow) sealed() {}

// RowColumns flattens a row into its schema-ordered column values. Constant
// and index columns pass through; coded-index columns flatten to their token
// form so downstream remapping can treat them uniformly. The switch is
// exhaustive over the closed row set.
func RowColumns(r Row) []uint32 {
	switch v := r.(type) {
	case ModuleRow:
		return []uint32{uint32(v.Generation), v.Name, v.MVID, v.EncID, v.EncBaseID}
	case TypeRefRow:
		return []uint32{uint32(v.Scope.Token()), v.Name, v.Namespace}
	case TypeDefRow:
		return []uint32{v.Flags, v.Name, v.Namespace, uint32(v.Extends.Token()), v.FieldList, v.MethodList}
	case FieldPtrRow:
		return []uint32{v.Field}
	case FieldRow:
		return []uint32{uint32(v.Flags), v.Name, v.Signature}
	case MethodPtrRow:
		return []uint32{v.Method}
	case MethodDefRow:
		return []uint32{v.RVA, uint32(v.ImplFlags), uint32(v.Flags), v.Name, v.Signature, v.ParamList}
	case ParamPtrRow:
		return []uint32{v.Param}
	case ParamRow:
		return []uint32{uint32(v.Flags), uint32(v.Sequence), v.Name}
	case InterfaceImplRow:
		return []uint32{v.Class, uint32(v.Interface.Token())}
	case MemberRefRow:
		return []uint32{uint32(v.Class.Token()), v.Name, v.Signature}
	case ConstantRow:
		return []uint32{uint32(v.Type), uint32(v.Parent.Token()), v.Value}
	case CustomAttributeRow:
		return []uint32{uint32(v.Parent.Token()), uint32(v.Type.Token()), v.Value}
	case FieldMarshalRow:
		return []uint32{uint32(v.Parent.Token()), v.NativeType}
	case DeclSecurityRow:
		return []uint32{uint32(v.Action), uint32(v.Parent.Token()), v.PermissionSet}
	case ClassLayoutRow:
		return []uint32{uint32(v.PackingSize), v.ClassSize, v.Parent}
	case FieldLayoutRow:
		return []uint32{v.Offset, v.Field}
	case StandAloneSigRow:
		return []uint32{v.Signature}
	case EventMapRow:
		return []uint32{v.Parent, v.EventList}
	case EventPtrRow:
		return []uint32{v.Event}
	case EventRow:
		return []uint32{uint32(v.EventFlags), v.Name, uint32(v.EventType.Token())}
	case PropertyMapRow:
		return []uint32{v.Parent, v.PropertyList}
	case PropertyPtrRow:
		return []uint32{v.Property}
	case PropertyRow:
		return []uint32{uint32(v.Flags), v.Name, v.Type}
	case MethodSemanticsRow:
		return []uint32{uint32(v.Semantics), v.Method, uint32(v.Association.Token())}
	case MethodImplRow:
		return []uint32{v.Class, uint32(v.MethodBody.Token()), uint32(v.MethodDeclaration.Token())}
	case ModuleRefRow:
		return []uint32{v.Name}
	case TypeSpecRow:
		return []uint32{v.Signature}
	case ImplMapRow:
		return []uint32{uint32(v.MappingFlags), uint32(v.MemberForwarded.Token()), v.ImportName, v.ImportScope}
	case FieldRVARow:
		return []uint32{v.RVA, v.Field}
	case EncLogRow:
		return []uint32{v.Token, v.FuncCode}
	case EncMapRow:
		return []uint32{v.Token}
	case AssemblyRow:
		return []uint32{
			v.HashAlgID, uint32(v.MajorVersion), uint32(v.MinorVersion),
			uint32(v.BuildNumber), uint32(v.RevisionNumber), v.Flags,
			v.PublicKey, v.Name, v.Culture,
		}
	case AssemblyProcessorRow:
		return []uint32{v.Processor}
	case AssemblyOSRow:
		return []uint32{v.OSPlatformID, v.OSMajorVersion, v.OSMinorVersion}
	case AssemblyRefRow:
		return []uint32{
			uint32(v.MajorVersion), uint32(v.MinorVersion), uint32(v.BuildNumber),
			uint32(v.RevisionNumber), v.Flags, v.PublicKeyOrToken, v.Name,
			v.Culture, v.HashValue,
		}
	case AssemblyRefProcessorRow:
		return []uint32{v.Processor, v.AssemblyRef}
	case AssemblyRefOSRow:
		return []uint32{v.OSPlatformID, v.OSMajorVersion, v.OSMinorVersion, v.AssemblyRef}
	case FileRow:
		return []uint32{v.Flags, v.Name, v.HashValue}
	case ExportedTypeRow:
		return []uint32{v.Flags, v.TypeDefID, v.TypeName, v.TypeNamespace, uint32(v.Implementation.Token())}
	case ManifestResourceRow:
		return []uint32{v.Offset, v.Flags, v.Name, uint32(v.Implementation.Token())}
	case NestedClassRow:
		return []uint32{v.NestedClass, v.EnclosingClass}
	case GenericParamRow:
		return []uint32{uint32(v.Number), uint32(v.Flags), uint32(v.Owner.Token()), v.Name}
	case MethodSpecRow:
		return []uint32{uint32(v.Method.Token()), v.Instantiation}
	case GenericParamConstraintRow:
		return []uint32{v.Owner, uint32(v.Constraint.Token())}
	case DocumentRow:
		return []uint32{v.Name, v.HashAlgorithm, v.Hash, v.Language}
	case MethodDebugInformationRow:
		return []uint32{v.Document, v.SequencePoints}
	case LocalScopeRow:
		return []uint32{v.Method, v.ImportScope, v.VariableList, v.ConstantList, v.StartOffset, v.Length}
	case LocalVariableRow:
		return []uint32{uint32(v.Attributes), uint32(v.Index), v.Name}
	case LocalConstantRow:
		return []uint32{v.Name, v.Signature}
	case ImportScopeRow:
		return []uint32{v.Parent, v.Imports}
	case StateMachineMethodRow:
		return []uint32{v.MoveNextMethod, v.KickoffMethod}
	case CustomDebugInformationRow:
		return []uint32{uint32(v.Parent.Token()), v.Kind, v.Value}
	default:
		// Unreachable: the row set is sealed.
		panic(fmt.Sprintf("cil: unknown row type %T", r))
	}
}

func ci(col uint32) CodedIndex {
	return CodedIndexFromToken(Token(col))
}

// RowFromColumns rebuilds a typed row from schema-ordered column values, the
// inverse of RowColumns. It errors when the column count does not match the
// table's schema or the table id is undefined.
func RowFromColumns(t TableID, cols []uint32) (Row, error) {
	schema, ok := SchemaOf(t)
	if !ok {
		return nil, fmt.Errorf("cil: no such table 0x%02X", uint8(t))
	}
	if len(cols) != len(schema.Cols) {
		return nil, fmt.Errorf("cil: %s row needs %d columns, got %d", t, len(schema.Cols), len(cols))
	}
	switch t {
	case TableModule:
		return ModuleRow{uint16(cols[0]), cols[1], cols[2], cols[3], cols[4]}, nil
	case TableTypeRef:
		return TypeRefRow{ci(cols[0]), cols[1], cols[2]}, nil
	case TableTypeDef:
		return TypeDefRow{cols[0], cols[1], cols[2], ci(cols[3]), cols[4], cols[5]}, nil
	case TableFieldPtr:
		return FieldPtrRow{cols[0]}, nil
	case TableField:
		return FieldRow{uint16(cols[0]), cols[1], cols[2]}, nil
	case TableMethodPtr:
		return MethodPtrRow{cols[0]}, nil
	case TableMethodDef:
		return MethodDefRow{cols[0], uint16(cols[1]), uint16(cols[2]), cols[3], cols[4], cols[5]}, nil
	case TableParamPtr:
		return ParamPtrRow{cols[0]}, nil
	case TableParam:
		return ParamRow{uint16(cols[0]), uint16(cols[1]), cols[2]}, nil
	case TableInterfaceImpl:
		return InterfaceImplRow{cols[0], ci(cols[1])}, nil
	case TableMemberRef:
		return MemberRefRow{ci(cols[0]), cols[1], cols[2]}, nil
	case TableConstant:
		return ConstantRow{uint16(cols[0]), ci(cols[1]), cols[2]}, nil
	case TableCustomAttribute:
		return CustomAttributeRow{ci(cols[0]), ci(cols[1]), cols[2]}, nil
	case TableFieldMarshal:
		return FieldMarshalRow{ci(cols[0]), cols[1]}, nil
	case TableDeclSecurity:
		return DeclSecurityRow{uint16(cols[0]), ci(cols[1]), cols[2]}, nil
	case TableClassLayout:
		return ClassLayoutRow{uint16(cols[0]), cols[1], cols[2]}, nil
	case TableFieldLayout:
		return FieldLayoutRow{cols[0], cols[1]}, nil
	case TableStandAloneSig:
		return StandAloneSigRow{cols[0]}, nil
	case TableEventMap:
		return EventMapRow{cols[0], cols[1]}, nil
	case TableEventPtr:
		return EventPtrRow{cols[0]}, nil
	case TableEvent:
		return EventRow{uint16(cols[0]), cols[1], ci(cols[2])}, nil
	case TablePropertyMap:
		return PropertyMapRow{cols[0], cols[1]}, nil
	case TablePropertyPtr:
		return PropertyPtrRow{cols[0]}, nil
	case TableProperty:
		return PropertyRow{uint16(cols[0]), cols[1], cols[2]}, nil
	case TableMethodSemantics:
		return MethodSemanticsRow{uint16(cols[0]), cols[1], ci(cols[2])}, nil
	case TableMethodImpl:
		return MethodImplRow{cols[0], ci(cols[1]), ci(cols[2])}, nil
	case TableModuleRef:
		return ModuleRefRow{cols[0]}, nil
	case TableTypeSpec:
		return TypeSpecRow{cols[0]}, nil
	case TableImplMap:
		return ImplMapRow{uint16(cols[0]), ci(cols[1]), cols[2], cols[3]}, nil
	case TableFieldRVA:
		return FieldRVARow{cols[0], cols[1]}, nil
	case TableEncLog:
		return EncLogRow{cols[0], cols[1]}, nil
	case TableEncMap:
		return EncMapRow{cols[0]}, nil
	case TableAssembly:
		return AssemblyRow{
			cols[0], uint16(cols[1]), uint16(cols[2]), uint16(cols[3]),
			uint16(cols[4]), cols[5], cols[6], cols[7], cols[8],
		}, nil
	case TableAssemblyProcessor:
		return AssemblyProcessorRow{cols[0]}, nil
	case TableAssemblyOS:
		return AssemblyOSRow{cols[0], cols[1], cols[2]}, nil
	case TableAssemblyRef:
		return AssemblyRefRow{
			uint16(cols[0]), uint16(cols[1]), uint16(cols[2]), uint16(cols[3]),
			cols[4], cols[5], cols[6], cols[7], cols[8],
		}, nil
	case TableAssemblyRefProcessor:
		return AssemblyRefProcessorRow{cols[0], cols[1]}, nil
	case TableAssemblyRefOS:
		return AssemblyRefOSRow{cols[0], cols[1], cols[2], cols[3]}, nil
	case TableFile:
		return FileRow{cols[0], cols[1], cols[2]}, nil
	case TableExportedType:
		return ExportedTypeRow{cols[0], cols[1], cols[2], cols[3], ci(cols[4])}, nil
	case TableManifestResource:
		return ManifestResourceRow{cols[0], cols[1], cols[2], ci(cols[3])}, nil
	case TableNestedClass:
		return NestedClassRow{cols[0], cols[1]}, nil
	case TableGenericParam:
		return GenericParamRow{uint16(cols[0]), uint16(cols[1]), ci(cols[2]), cols[3]}, nil
	case TableMethodSpec:
		return MethodSpecRow{ci(cols[0]), cols[1]}, nil
	case TableGenericParamConstraint:
		return GenericParamConstraintRow{cols[0], ci(cols[1])}, nil
	case TableDocument:
		return DocumentRow{cols[0], cols[1], cols[2], cols[3]}, nil
	case TableMethodDebugInformation:
		return MethodDebugInformationRow{cols[0], cols[1]}, nil
	case TableLocalScope:
		return LocalScopeRow{cols[0], cols[1], cols[2], cols[3], cols[4], cols[5]}, nil
	case TableLocalVariable:
		return LocalVariableRow{uint16(cols[0]), uint16(cols[1]), cols[2]}, nil
	case TableLocalConstant:
		return LocalConstantRow{cols[0], cols[1]}, nil
	case TableImportScope:
		return ImportScopeRow{cols[0], cols[1]}, nil
	case TableStateMachineMethod:
		return StateMachineMethodRow{cols[0], cols[1]}, nil
	case TableCustomDebugInformation:
		return CustomDebugInformationRow{ci(cols[0]), cols[1], cols[2]}, nil
	default:
		return nil, fmt.Errorf("cil: no row shape for table %s", t)
	}
}

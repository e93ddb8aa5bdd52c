package cil

// ColKind classifies a table column for width calculation and reference
// tracking. Constant columns are fixed width; index columns widen from 2 to 4
// bytes as the referenced heap or table grows past what 16 bits can address.
type ColKind uint8

const (
	ColU16    ColKind = iota // fixed 2-byte constant
	ColU32                   // fixed 4-byte constant
	ColString                // #Strings heap index
	ColGUID                  // #GUID heap slot index
	ColBlob                  // #Blob heap index
	ColRID                   // row index into a single table
	ColCoded                 // coded index; held as a token in decoded rows
)

// Column describes one column of a metadata table.
type Column struct {
	Name   string
	Kind   ColKind
	Target TableID        // referenced table when Kind == ColRID
	Coded  CodedIndexType // family when Kind == ColCoded
}

// Schema is the ordered column layout of one table.
type Schema struct {
	Cols []Column
}

func u16c(name string) Column            { return Column{Name: name, Kind: ColU16} }
func u32c(name string) Column            { return Column{Name: name, Kind: ColU32} }
func strc(name string) Column            { return Column{Name: name, Kind: ColString} }
func guidc(name string) Column           { return Column{Name: name, Kind: ColGUID} }
func blobc(name string) Column           { return Column{Name: name, Kind: ColBlob} }
func ridc(name string, t TableID) Column { return Column{Name: name, Kind: ColRID, Target: t} }
func codedc(name string, c CodedIndexType) Column {
	return Column{Name: name, Kind: ColCoded, Coded: c}
}

// schemas holds the column layout for every defined table, indexed by table
// id. Layouts follow ECMA-335 partition II §22 and the Portable PDB format.
// An empty entry means the id is undefined (the 0x2D-0x2F gap).
var schemas = [MaxTableID + 1]Schema{
	TableModule: {Cols: []Column{
		u16c("Generation"), strc("Name"), guidc("Mvid"), guidc("EncId"), guidc("EncBaseId"),
	}},
	TableTypeRef: {Cols: []Column{
		codedc("ResolutionScope", ResolutionScope), strc("Name"), strc("Namespace"),
	}},
	TableTypeDef: {Cols: []Column{
		u32c("Flags"), strc("Name"), strc("Namespace"),
		codedc("Extends", TypeDefOrRef),
		ridc("FieldList", TableField), ridc("MethodList", TableMethodDef),
	}},
	TableFieldPtr: {Cols: []Column{
		ridc("Field", TableField),
	}},
	TableField: {Cols: []Column{
		u16c("Flags"), strc("Name"), blobc("Signature"),
	}},
	TableMethodPtr: {Cols: []Column{
		ridc("Method", TableMethodDef),
	}},
	TableMethodDef: {Cols: []Column{
		u32c("RVA"), u16c("ImplFlags"), u16c("Flags"),
		strc("Name"), blobc("Signature"), ridc("ParamList", TableParam),
	}},
	TableParamPtr: {Cols: []Column{
		ridc("Param", TableParam),
	}},
	TableParam: {Cols: []Column{
		u16c("Flags"), u16c("Sequence"), strc("Name"),
	}},
	TableInterfaceImpl: {Cols: []Column{
		ridc("Class", TableTypeDef), codedc("Interface", TypeDefOrRef),
	}},
	TableMemberRef: {Cols: []Column{
		codedc("Class", MemberRefParent), strc("Name"), blobc("Signature"),
	}},
	TableConstant: {Cols: []Column{
		u16c("Type"), codedc("Parent", HasConstant), blobc("Value"),
	}},
	TableCustomAttribute: {Cols: []Column{
		codedc("Parent", HasCustomAttribute), codedc("Type", CustomAttributeType), blobc("Value"),
	}},
	TableFieldMarshal: {Cols: []Column{
		codedc("Parent", HasFieldMarshal), blobc("NativeType"),
	}},
	TableDeclSecurity: {Cols: []Column{
		u16c("Action"), codedc("Parent", HasDeclSecurity), blobc("PermissionSet"),
	}},
	TableClassLayout: {Cols: []Column{
		u16c("PackingSize"), u32c("ClassSize"), ridc("Parent", TableTypeDef),
	}},
	TableFieldLayout: {Cols: []Column{
		u32c("Offset"), ridc("Field", TableField),
	}},
	TableStandAloneSig: {Cols: []Column{
		blobc("Signature"),
	}},
	TableEventMap: {Cols: []Column{
		ridc("Parent", TableTypeDef), ridc("EventList", TableEvent),
	}},
	TableEventPtr: {Cols: []Column{
		ridc("Event", TableEvent),
	}},
	TableEvent: {Cols: []Column{
		u16c("EventFlags"), strc("Name"), codedc("EventType", TypeDefOrRef),
	}},
	TablePropertyMap: {Cols: []Column{
		ridc("Parent", TableTypeDef), ridc("PropertyList", TableProperty),
	}},
	TablePropertyPtr: {Cols: []Column{
		ridc("Property", TableProperty),
	}},
	TableProperty: {Cols: []Column{
		u16c("Flags"), strc("Name"), blobc("Type"),
	}},
	TableMethodSemantics: {Cols: []Column{
		u16c("Semantics"), ridc("Method", TableMethodDef), codedc("Association", HasSemantics),
	}},
	TableMethodImpl: {Cols: []Column{
		ridc("Class", TableTypeDef),
		codedc("MethodBody", MethodDefOrRef), codedc("MethodDeclaration", MethodDefOrRef),
	}},
	TableModuleRef: {Cols: []Column{
		strc("Name"),
	}},
	TableTypeSpec: {Cols: []Column{
		blobc("Signature"),
	}},
	TableImplMap: {Cols: []Column{
		u16c("MappingFlags"), codedc("MemberForwarded", MemberForwarded),
		strc("ImportName"), ridc("ImportScope", TableModuleRef),
	}},
	TableFieldRVA: {Cols: []Column{
		u32c("RVA"), ridc("Field", TableField),
	}},
	TableEncLog: {Cols: []Column{
		u32c("Token"), u32c("FuncCode"),
	}},
	TableEncMap: {Cols: []Column{
		u32c("Token"),
	}},
	TableAssembly: {Cols: []Column{
		u32c("HashAlgId"),
		u16c("MajorVersion"), u16c("MinorVersion"), u16c("BuildNumber"), u16c("RevisionNumber"),
		u32c("Flags"), blobc("PublicKey"), strc("Name"), strc("Culture"),
	}},
	TableAssemblyProcessor: {Cols: []Column{
		u32c("Processor"),
	}},
	TableAssemblyOS: {Cols: []Column{
		u32c("OSPlatformId"), u32c("OSMajorVersion"), u32c("OSMinorVersion"),
	}},
	TableAssemblyRef: {Cols: []Column{
		u16c("MajorVersion"), u16c("MinorVersion"), u16c("BuildNumber"), u16c("RevisionNumber"),
		u32c("Flags"), blobc("PublicKeyOrToken"), strc("Name"), strc("Culture"), blobc("HashValue"),
	}},
	TableAssemblyRefProcessor: {Cols: []Column{
		u32c("Processor"), ridc("AssemblyRef", TableAssemblyRef),
	}},
	TableAssemblyRefOS: {Cols: []Column{
		u32c("OSPlatformId"), u32c("OSMajorVersion"), u32c("OSMinorVersion"),
		ridc("AssemblyRef", TableAssemblyRef),
	}},
	TableFile: {Cols: []Column{
		u32c("Flags"), strc("Name"), blobc("HashValue"),
	}},
	TableExportedType: {Cols: []Column{
		u32c("Flags"), u32c("TypeDefId"), strc("TypeName"), strc("TypeNamespace"),
		codedc("Implementation", Implementation),
	}},
	TableManifestResource: {Cols: []Column{
		u32c("Offset"), u32c("Flags"), strc("Name"), codedc("Implementation", Implementation),
	}},
	TableNestedClass: {Cols: []Column{
		ridc("NestedClass", TableTypeDef), ridc("EnclosingClass", TableTypeDef),
	}},
	TableGenericParam: {Cols: []Column{
		u16c("Number"), u16c("Flags"), codedc("Owner", TypeOrMethodDef), strc("Name"),
	}},
	TableMethodSpec: {Cols: []Column{
		codedc("Method", MethodDefOrRef), blobc("Instantiation"),
	}},
	TableGenericParamConstraint: {Cols: []Column{
		ridc("Owner", TableGenericParam), codedc("Constraint", TypeDefOrRef),
	}},

	TableDocument: {Cols: []Column{
		blobc("Name"), guidc("HashAlgorithm"), blobc("Hash"), guidc("Language"),
	}},
	TableMethodDebugInformation: {Cols: []Column{
		ridc("Document", TableDocument), blobc("SequencePoints"),
	}},
	TableLocalScope: {Cols: []Column{
		ridc("Method", TableMethodDef), ridc("ImportScope", TableImportScope),
		ridc("VariableList", TableLocalVariable), ridc("ConstantList", TableLocalConstant),
		u32c("StartOffset"), u32c("Length"),
	}},
	TableLocalVariable: {Cols: []Column{
		u16c("Attributes"), u16c("Index"), strc("Name"),
	}},
	TableLocalConstant: {Cols: []Column{
		strc("Name"), blobc("Signature"),
	}},
	TableImportScope: {Cols: []Column{
		ridc("Parent", TableImportScope), blobc("Imports"),
	}},
	TableStateMachineMethod: {Cols: []Column{
		ridc("MoveNextMethod", TableMethodDef), ridc("KickoffMethod", TableMethodDef),
	}},
	TableCustomDebugInformation: {Cols: []Column{
		codedc("Parent", HasCustomDebugInformation), guidc("Kind"), blobc("Value"),
	}},
}

// SchemaOf returns the column layout for a table id.
func SchemaOf(t TableID) (Schema, bool) {
	if !t.Valid() {
		return Schema{}, false
	}
	return schemas[t], true
}

// SizeSet carries the quantities that decide index column widths: final row
// counts per table and the three heap-size flags from the #~ header.
type SizeSet struct {
	RowCounts  [MaxTableID + 1]uint32
	BigStrings bool
	BigGUID    bool
	BigBlob    bool
}

const wide16Limit = 0x10000

// codedWide reports whether a coded index family needs 4-byte columns given
// the row counts: the family loses TagBits of addressing, so any member
// table crossing 1<<(16-bits) rows forces the wide form.
func (s *SizeSet) codedWide(c CodedIndexType) bool {
	limit := uint32(1) << (16 - c.TagBits())
	for _, t := range c.Tables() {
		if t == tableNone {
			continue
		}
		if s.RowCounts[t] >= limit {
			return true
		}
	}
	return false
}

// ColumnWidth returns the on-wire byte width of one column under the sizes.
func (s *SizeSet) ColumnWidth(col Column) int {
	switch col.Kind {
	case ColU16:
		return 2
	case ColU32:
		return 4
	case ColString:
		if s.BigStrings {
			return 4
		}
		return 2
	case ColGUID:
		if s.BigGUID {
			return 4
		}
		return 2
	case ColBlob:
		if s.BigBlob {
			return 4
		}
		return 2
	case ColRID:
		if s.RowCounts[col.Target] >= wide16Limit {
			return 4
		}
		return 2
	case ColCoded:
		if s.codedWide(col.Coded) {
			return 4
		}
		return 2
	default:
		return 0
	}
}

// RowWidth returns the total on-wire byte width of one row of table t.
func (s *SizeSet) RowWidth(t TableID) int {
	schema, ok := SchemaOf(t)
	if !ok {
		return 0
	}
	w := 0
	for _, col := range schema.Cols {
		w += s.ColumnWidth(col)
	}
	return w
}

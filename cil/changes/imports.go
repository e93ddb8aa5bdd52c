package changes

import "fmt"

const (
	// defaultIATBase is where provisional IAT slot RVAs start. The
	// writer assigns real addresses once the import section is laid
	// out; until then the provisional RVA is the function's identity.
	defaultIATBase uint32 = 0x1000

	// iatEntrySize is the size of one PE32 IAT slot.
	iatEntrySize uint32 = 4

	// importByOrdinalFlag marks an import lookup entry as
	// ordinal-based rather than name-based.
	importByOrdinalFlag uint64 = 1 << 63
)

// ImportFunction is one imported symbol, by name or by ordinal.
type ImportFunction struct {
	Name    string // empty for ordinal imports
	Ordinal uint16 // 0 for name imports
	IATRVA  uint32
	Hint    uint16
	ILT     uint64
}

// ImportDescriptor collects the functions imported from one DLL,
// mirroring the fields of the PE IMAGE_IMPORT_DESCRIPTOR that the
// writer will emit for it.
type ImportDescriptor struct {
	DLLName            string
	OriginalFirstThunk uint32
	FirstThunk         uint32
	Timestamp          uint32
	ForwarderChain     uint32
	Functions          []ImportFunction
}

// IATEntry records the provisional slot allocated for one import.
type IATEntry struct {
	RVA     uint32
	DLLName string
	Symbol  string // function name, or "#N" for ordinal imports
	ILT     uint64
}

// NativeImports tracks native PE import registrations for the session.
// DLLs keep registration order so the emitted import directory is
// deterministic.
type NativeImports struct {
	descriptors map[string]*ImportDescriptor
	order       []string
	iat         map[uint32]IATEntry
	nextIATRVA  uint32
}

// NewNativeImports creates an empty import registration set.
func NewNativeImports() *NativeImports {
	return &NativeImports{
		descriptors: make(map[string]*ImportDescriptor),
		iat:         make(map[uint32]IATEntry),
		nextIATRVA:  defaultIATBase,
	}
}

// AddDLL registers a DLL in the import table. Registering the same DLL
// twice is a no-op.
func (n *NativeImports) AddDLL(dllName string) error {
	if dllName == "" {
		return ErrEmptyDLLName
	}
	if _, ok := n.descriptors[dllName]; ok {
		return nil
	}
	n.descriptors[dllName] = &ImportDescriptor{DLLName: dllName}
	n.order = append(n.order, dllName)
	return nil
}

// AddFunction registers a by-name import from a previously added DLL.
func (n *NativeImports) AddFunction(dllName, functionName string) error {
	if functionName == "" {
		return ErrEmptyFunctionName
	}
	d, ok := n.descriptors[dllName]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownDLL, dllName)
	}
	for _, f := range d.Functions {
		if f.Ordinal == 0 && f.Name == functionName {
			return fmt.Errorf("%w: %q from %q", ErrDuplicateImport, functionName, dllName)
		}
	}

	rva := n.allocateIATSlot()
	d.Functions = append(d.Functions, ImportFunction{
		Name:   functionName,
		IATRVA: rva,
	})
	n.iat[rva] = IATEntry{
		RVA:     rva,
		DLLName: dllName,
		Symbol:  functionName,
	}
	return nil
}

// AddFunctionByOrdinal registers an ordinal import from a previously
// added DLL. Ordinal 0 is invalid.
func (n *NativeImports) AddFunctionByOrdinal(dllName string, ordinal uint16) error {
	if ordinal == 0 {
		return ErrOrdinalZero
	}
	d, ok := n.descriptors[dllName]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownDLL, dllName)
	}
	for _, f := range d.Functions {
		if f.Ordinal == ordinal {
			return fmt.Errorf("%w: #%d from %q", ErrDuplicateImport, ordinal, dllName)
		}
	}

	rva := n.allocateIATSlot()
	ilt := importByOrdinalFlag | uint64(ordinal)
	d.Functions = append(d.Functions, ImportFunction{
		Ordinal: ordinal,
		IATRVA:  rva,
		ILT:     ilt,
	})
	n.iat[rva] = IATEntry{
		RVA:     rva,
		DLLName: dllName,
		Symbol:  fmt.Sprintf("#%d", ordinal),
		ILT:     ilt,
	}
	return nil
}

func (n *NativeImports) allocateIATSlot() uint32 {
	rva := n.nextIATRVA
	n.nextIATRVA += iatEntrySize
	return rva
}

// Descriptor returns the import descriptor for a DLL.
func (n *NativeImports) Descriptor(dllName string) (*ImportDescriptor, bool) {
	d, ok := n.descriptors[dllName]
	return d, ok
}

// DLLs returns the registered DLL names in registration order.
func (n *NativeImports) DLLs() []string {
	return append([]string(nil), n.order...)
}

// HasDLL reports whether the DLL has been registered.
func (n *NativeImports) HasDLL(dllName string) bool {
	_, ok := n.descriptors[dllName]
	return ok
}

// DLLCount returns the number of registered DLLs.
func (n *NativeImports) DLLCount() int { return len(n.descriptors) }

// FunctionCount returns the total number of imported functions across
// all DLLs.
func (n *NativeImports) FunctionCount() int {
	total := 0
	for _, d := range n.descriptors {
		total += len(d.Functions)
	}
	return total
}

// IATAt returns the IAT bookkeeping entry for a provisional slot RVA.
func (n *NativeImports) IATAt(rva uint32) (IATEntry, bool) {
	e, ok := n.iat[rva]
	return e, ok
}

// IsEmpty reports whether no DLL has been registered.
func (n *NativeImports) IsEmpty() bool { return len(n.descriptors) == 0 }

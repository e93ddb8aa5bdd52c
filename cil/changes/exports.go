package changes

import (
	"fmt"
	"sort"
)

// ExportFunction is one exported symbol with its resolved address.
type ExportFunction struct {
	Ordinal uint16
	Name    string // empty for ordinal-only exports
	Address uint32
}

// ExportForwarder is an export that forwards to a symbol in another
// DLL, written as "DLL.Function" or "DLL.#Ordinal".
type ExportForwarder struct {
	Ordinal uint16
	Name    string // empty for ordinal-only forwarders
	Target  string
}

// ExportDirectory carries the IMAGE_EXPORT_DIRECTORY header fields the
// writer emits. Counts are computed from the current registrations.
type ExportDirectory struct {
	DLLName       string
	BaseOrdinal   uint16
	FunctionCount uint32
	NameCount     uint32
	Timestamp     uint32
	MajorVersion  uint16
	MinorVersion  uint16
}

// NativeExports tracks native PE export registrations for the session.
type NativeExports struct {
	dllName       string
	functions     map[uint16]ExportFunction
	forwarders    map[uint16]ExportForwarder
	nameToOrdinal map[string]uint16
	nextOrdinal   uint16
}

// NewNativeExports creates an empty export registration set for the
// named DLL. The name may be set later with SetDLLName.
func NewNativeExports(dllName string) *NativeExports {
	return &NativeExports{
		dllName:       dllName,
		functions:     make(map[uint16]ExportFunction),
		forwarders:    make(map[uint16]ExportForwarder),
		nameToOrdinal: make(map[string]uint16),
		nextOrdinal:   1,
	}
}

// SetDLLName sets the exporting DLL's own name, recorded in the export
// directory header.
func (n *NativeExports) SetDLLName(dllName string) { n.dllName = dllName }

// DLLName returns the exporting DLL's name.
func (n *NativeExports) DLLName() string { return n.dllName }

// AddFunction registers a named export at the given ordinal and
// address. The name and the ordinal must both be unused.
func (n *NativeExports) AddFunction(name string, ordinal uint16, address uint32) error {
	if name == "" {
		return ErrEmptyFunctionName
	}
	if ordinal == 0 {
		return ErrOrdinalZero
	}
	if n.ordinalInUse(ordinal) {
		return fmt.Errorf("%w: ordinal %d", ErrDuplicateExport, ordinal)
	}
	if _, ok := n.nameToOrdinal[name]; ok {
		return fmt.Errorf("%w: name %q", ErrDuplicateExport, name)
	}

	n.functions[ordinal] = ExportFunction{Ordinal: ordinal, Name: name, Address: address}
	n.nameToOrdinal[name] = ordinal
	n.bumpNextOrdinal(ordinal)
	return nil
}

// AddFunctionByOrdinal registers an export reachable by ordinal only.
func (n *NativeExports) AddFunctionByOrdinal(ordinal uint16, address uint32) error {
	if ordinal == 0 {
		return ErrOrdinalZero
	}
	if n.ordinalInUse(ordinal) {
		return fmt.Errorf("%w: ordinal %d", ErrDuplicateExport, ordinal)
	}

	n.functions[ordinal] = ExportFunction{Ordinal: ordinal, Address: address}
	n.bumpNextOrdinal(ordinal)
	return nil
}

// AddForwarder registers an export that forwards to target, written as
// "DLL.Function" or "DLL.#Ordinal". The name may be empty for an
// ordinal-only forwarder.
func (n *NativeExports) AddForwarder(name string, ordinal uint16, target string) error {
	if ordinal == 0 {
		return ErrOrdinalZero
	}
	if target == "" {
		return ErrEmptyForwarderTarget
	}
	if n.ordinalInUse(ordinal) {
		return fmt.Errorf("%w: ordinal %d", ErrDuplicateExport, ordinal)
	}
	if name != "" {
		if _, ok := n.nameToOrdinal[name]; ok {
			return fmt.Errorf("%w: name %q", ErrDuplicateExport, name)
		}
	}

	n.forwarders[ordinal] = ExportForwarder{Ordinal: ordinal, Name: name, Target: target}
	if name != "" {
		n.nameToOrdinal[name] = ordinal
	}
	n.bumpNextOrdinal(ordinal)
	return nil
}

func (n *NativeExports) ordinalInUse(ordinal uint16) bool {
	if _, ok := n.functions[ordinal]; ok {
		return true
	}
	_, ok := n.forwarders[ordinal]
	return ok
}

func (n *NativeExports) bumpNextOrdinal(ordinal uint16) {
	if ordinal >= n.nextOrdinal {
		n.nextOrdinal = ordinal + 1
	}
}

// Function returns the export registered at an ordinal.
func (n *NativeExports) Function(ordinal uint16) (ExportFunction, bool) {
	f, ok := n.functions[ordinal]
	return f, ok
}

// Forwarder returns the forwarder registered at an ordinal.
func (n *NativeExports) Forwarder(ordinal uint16) (ExportForwarder, bool) {
	f, ok := n.forwarders[ordinal]
	return f, ok
}

// OrdinalOf returns the ordinal an export name resolves to.
func (n *NativeExports) OrdinalOf(name string) (uint16, bool) {
	o, ok := n.nameToOrdinal[name]
	return o, ok
}

// HasFunction reports whether the name is exported.
func (n *NativeExports) HasFunction(name string) bool {
	_, ok := n.nameToOrdinal[name]
	return ok
}

// Ordinals returns every registered ordinal, functions and forwarders
// together, in ascending order.
func (n *NativeExports) Ordinals() []uint16 {
	ords := make([]uint16, 0, len(n.functions)+len(n.forwarders))
	for o := range n.functions {
		ords = append(ords, o)
	}
	for o := range n.forwarders {
		ords = append(ords, o)
	}
	sort.Slice(ords, func(i, j int) bool { return ords[i] < ords[j] })
	return ords
}

// NextOrdinal returns the lowest ordinal not yet in use at or above the
// highest registration.
func (n *NativeExports) NextOrdinal() uint16 { return n.nextOrdinal }

// FunctionCount returns the number of exports, forwarders included.
func (n *NativeExports) FunctionCount() int {
	return len(n.functions) + len(n.forwarders)
}

// ForwarderCount returns the number of forwarder exports.
func (n *NativeExports) ForwarderCount() int { return len(n.forwarders) }

// Directory returns the export directory header with counts computed
// from the current registrations.
func (n *NativeExports) Directory() ExportDirectory {
	return ExportDirectory{
		DLLName:       n.dllName,
		BaseOrdinal:   1,
		FunctionCount: uint32(len(n.functions) + len(n.forwarders)),
		NameCount:     uint32(len(n.nameToOrdinal)),
	}
}

// IsEmpty reports whether no export has been registered.
func (n *NativeExports) IsEmpty() bool {
	return len(n.functions) == 0 && len(n.forwarders) == 0
}

package changes

import "errors"

var (
	// ErrEmptyDLLName indicates a native import or export registered
	// without a DLL name.
	ErrEmptyDLLName = errors.New("changes: dll name cannot be empty")

	// ErrEmptyFunctionName indicates a by-name import or export
	// registered with an empty function name.
	ErrEmptyFunctionName = errors.New("changes: function name cannot be empty")

	// ErrEmptyForwarderTarget indicates an export forwarder without a
	// "DLL.Function" or "DLL.#Ordinal" target.
	ErrEmptyForwarderTarget = errors.New("changes: forwarder target cannot be empty")

	// ErrOrdinalZero indicates ordinal 0, which the PE format reserves
	// as invalid for both imports and exports.
	ErrOrdinalZero = errors.New("changes: ordinal 0 is invalid")

	// ErrUnknownDLL indicates a function import against a DLL that was
	// never registered with AddDLL.
	ErrUnknownDLL = errors.New("changes: dll not present in import table")

	// ErrDuplicateImport indicates a symbol already imported from the
	// same DLL, by name or by ordinal.
	ErrDuplicateImport = errors.New("changes: function already imported")

	// ErrDuplicateExport indicates an export name or ordinal already in
	// use.
	ErrDuplicateExport = errors.New("changes: export already in use")
)

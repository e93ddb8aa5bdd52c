package types

// -----------------------------------------------------------------------------
// Typed Errors (stable categories for programmatic handling)
// -----------------------------------------------------------------------------

// ErrKind classifies errors so callers can branch on intent rather than text.
type ErrKind int

const (
	ErrKindMalformed ErrKind = iota // input binary is structurally invalid (bad PE/CLI/metadata)
	ErrKindInvalidOp                // operation is invalid regardless of state (RID 0, ordinal 0, empty name)
	ErrKindConflict                 // competing edits contend for the same row/slot
	ErrKindIntegrity                // a reference would dangle or a removal is blocked by references
	ErrKindCapacity                 // a value exceeds the representable range of its wire field
	ErrKindState                    // invalid operation for the current session state
	ErrKindIO                       // failure reading the source or writing the output binary
)

// Error is a typed error with an optional underlying cause.
type Error struct {
	Kind ErrKind
	Msg  string
	Err  error // optional underlying cause
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Sentinels commonly returned by implementations.
var (
	// ErrNotPE indicates the file lacks a valid MZ/PE header pair.
	ErrNotPE = &Error{Kind: ErrKindMalformed, Msg: "not a PE file (bad MZ/PE header)"}
	// ErrNotDotNet indicates a PE without a CLI (COM descriptor) directory.
	ErrNotDotNet = &Error{Kind: ErrKindMalformed, Msg: "PE file has no CLI metadata"}
	// ErrCorrupt indicates non-recoverable structural inconsistency in metadata.
	ErrCorrupt = &Error{Kind: ErrKindMalformed, Msg: "corrupt metadata structure"}
	// ErrNotFound indicates a missing table, row, or heap entry.
	ErrNotFound = &Error{Kind: ErrKindInvalidOp, Msg: "not found"}
	// ErrReferenced indicates a removal was blocked because live references exist.
	ErrReferenced = &Error{Kind: ErrKindIntegrity, Msg: "entry is still referenced"}
	// ErrSessionClosed indicates use of a builder context after Finish.
	ErrSessionClosed = &Error{Kind: ErrKindState, Msg: "builder session already finished"}
)

// -----------------------------------------------------------------------------
// Reference handling
// -----------------------------------------------------------------------------

// RefStrategy selects how removals treat rows that still reference the
// removed entry. Every removal API takes one explicitly; there is no silent
// default that ignores dangling references.
type RefStrategy uint8

const (
	// FailIfReferenced rejects the removal when any live row still points at
	// the target index or RID.
	FailIfReferenced RefStrategy = iota

	// RemoveReferences cascades the removal: every referencing row is deleted
	// or has the referencing column cleared in the same call.
	RemoveReferences
)

// String implements the Stringer interface for RefStrategy.
func (s RefStrategy) String() string {
	switch s {
	case FailIfReferenced:
		return "FailIfReferenced"
	case RemoveReferences:
		return "RemoveReferences"
	default:
		return "UNKNOWN_STRATEGY"
	}
}

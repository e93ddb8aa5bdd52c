package types

// ============================================================================
// ECMA-335 Format Limits
// ============================================================================
// These constants define the hard limits of the metadata wire format plus the
// session guardrails enforced by validation. The wire limits come from the
// field widths in ECMA-335 partition II; the guardrails exist to catch runaway
// edit sessions before they produce an unloadable binary.

const (
	// MaxRID is the largest row identifier a token can carry. Tokens reserve
	// the high byte for the table id, leaving 24 bits for the RID.
	MaxRID = 0x00FFFFFF

	// MaxCompressedUint is the largest value the ECMA compressed unsigned
	// integer encoding can represent (29 bits, 4-byte form).
	MaxCompressedUint = 0x1FFFFFFF

	// GUIDSize is the fixed on-disk size of one #GUID heap slot.
	GUIDSize = 16

	// MaxHeapOffset is the largest 1-based byte offset a 4-byte heap index
	// column can address.
	MaxHeapOffset = 0xFFFFFFFF

	// MaxReplacedTableRows caps the row count accepted for a wholesale table
	// replacement. Larger replacements are almost certainly a caller bug.
	MaxReplacedTableRows = 1_000_000

	// MaxStringAdditions caps the strings appended in one session.
	MaxStringAdditions = 100_000

	// MaxBlobAdditions caps the blobs appended in one session.
	MaxBlobAdditions = 50_000

	// MaxGUIDAdditions caps the GUIDs appended in one session.
	MaxGUIDAdditions = 10_000

	// MaxUserStringAdditions caps the user strings appended in one session.
	MaxUserStringAdditions = 50_000

	// MaxOperationsPerTable caps the operation log length for one table.
	MaxOperationsPerTable = 10_000

	// MaxUpdatesPerRID caps repeated updates of a single row in one session.
	MaxUpdatesPerRID = 10

	// InsertWindowSlack bounds how far beyond the next expected RID an insert
	// may land before it is treated as RID-space exhaustion.
	InsertWindowSlack = 1000
)

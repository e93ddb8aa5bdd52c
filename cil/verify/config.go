package verify

import "github.com/pmikstacki/cilkit/pkg/types"

// Config selects the validator stages to run and the session caps they
// enforce. The zero value runs nothing; use a preset.
type Config struct {
	// RawStructural enables operation-log checks: RID ranges,
	// duplicates, operations against deleted rows, chronology.
	RawStructural bool

	// RawIntegrity enables final-state checks: surviving RID sets,
	// sparseness, heap growth caps, critical-table requirements.
	RawIntegrity bool

	// RawReferences enables reference resolution over the final state
	// via the ReferenceScanner.
	RawReferences bool

	// MaxUpdatesPerRID caps repeated updates of one row.
	MaxUpdatesPerRID int

	// MaxOpsPerTable caps one table's operation log length.
	MaxOpsPerTable int

	// InsertWindow bounds how far past the next expected RID an insert
	// may land.
	InsertWindow uint32

	// MaxSparseGapRatio is the tolerated fraction of unassigned RIDs
	// below the highest surviving RID.
	MaxSparseGapRatio float64

	// MaxReplacedRows caps the row count of a wholesale replacement.
	MaxReplacedRows int

	// Heap addition caps, counted per session.
	MaxStringAdditions     int
	MaxBlobAdditions       int
	MaxGUIDAdditions       int
	MaxUserStringAdditions int
}

// defaultCaps fills every unset cap with the package guardrail, so a
// hand-built Config behaves like a preset. Run applies it before
// validating.
func defaultCaps(c Config) Config {
	if c.MaxUpdatesPerRID == 0 {
		c.MaxUpdatesPerRID = types.MaxUpdatesPerRID
	}
	if c.MaxOpsPerTable == 0 {
		c.MaxOpsPerTable = types.MaxOperationsPerTable
	}
	if c.InsertWindow == 0 {
		c.InsertWindow = types.InsertWindowSlack
	}
	if c.MaxSparseGapRatio == 0 {
		c.MaxSparseGapRatio = 0.7
	}
	if c.MaxReplacedRows == 0 {
		c.MaxReplacedRows = types.MaxReplacedTableRows
	}
	if c.MaxStringAdditions == 0 {
		c.MaxStringAdditions = types.MaxStringAdditions
	}
	if c.MaxBlobAdditions == 0 {
		c.MaxBlobAdditions = types.MaxBlobAdditions
	}
	if c.MaxGUIDAdditions == 0 {
		c.MaxGUIDAdditions = types.MaxGUIDAdditions
	}
	if c.MaxUserStringAdditions == 0 {
		c.MaxUserStringAdditions = types.MaxUserStringAdditions
	}
	return c
}

// Disabled runs no validation at all. The writer will consume whatever
// the change set holds.
func Disabled() Config {
	return Config{}
}

// Minimal runs only the structural stage: enough to keep the writer
// from crashing on a malformed log, nothing more.
func Minimal() Config {
	return defaultCaps(Config{RawStructural: true})
}

// Production runs every stage with the checks the .NET runtime itself
// would enforce when loading the output.
func Production() Config {
	return defaultCaps(Config{
		RawStructural: true,
		RawIntegrity:  true,
		RawReferences: true,
	})
}

// Comprehensive runs every stage. This is the default configuration.
func Comprehensive() Config {
	return defaultCaps(Config{
		RawStructural: true,
		RawIntegrity:  true,
		RawReferences: true,
	})
}

// Strict is Comprehensive with emphasis: use it when any violation,
// however pedantic, should block the write.
func Strict() Config {
	return Comprehensive()
}

// enabled reports whether any stage will run.
func (c Config) enabled() bool {
	return c.RawStructural || c.RawIntegrity || c.RawReferences
}

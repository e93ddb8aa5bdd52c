package verify

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pmikstacki/cilkit/cil"
	"github.com/pmikstacki/cilkit/cil/changes"
	"github.com/pmikstacki/cilkit/cil/oplog"
)

// checkState is the shared read-only input of one validation run. The
// scanner is present only when the reference stage is enabled.
type checkState struct {
	view    RowSource
	changes *changes.AssemblyChanges
	scanner *Scanner
	cfg     Config
}

type namedValidator struct {
	name string
	run  func(*checkState) []Violation
}

var structuralValidators = []namedValidator{
	{"insert-operations", runInsertOps},
	{"update-operations", runUpdateOps},
	{"delete-operations", runDeleteOps},
	{"operation-sequences", runOpSequences},
}

var integrityValidators = []namedValidator{
	{"table-integrity", runTableIntegrity},
	{"heap-integrity", runHeapIntegrity},
	{"cross-table-integrity", runCrossTableIntegrity},
	{"operation-volume", runOperationVolume},
}

var referenceValidators = []namedValidator{
	{"row-references", runRowReferences},
	{"dangling-references", runDanglingReferences},
}

// Run executes the validators cfg enables against view with ch layered
// on top. Validators inside a stage run concurrently and all complete
// before the stage returns; the integrity and reference stages only
// run when the structural stage found nothing, since their rules
// assume a well-formed log. The returned error is non-nil only when
// ctx is cancelled or the reference scanner cannot analyze the
// assembly; validation findings live in the Result.
func Run(ctx context.Context, view RowSource, ch *changes.AssemblyChanges, cfg Config) (*Result, error) {
	cfg = defaultCaps(cfg)
	start := time.Now()
	state := &checkState{view: view, changes: ch, cfg: cfg}
	res := &Result{}

	if cfg.RawStructural {
		outs, err := runStage(ctx, state, structuralValidators)
		if err != nil {
			return nil, err
		}
		res.Outcomes = append(res.Outcomes, outs...)
		for _, o := range outs {
			if !o.OK() {
				res.Duration = time.Since(start)
				return res, nil
			}
		}
	}

	var later []namedValidator
	if cfg.RawIntegrity {
		later = append(later, integrityValidators...)
	}
	if cfg.RawReferences {
		sc, err := NewScanner(view, ch)
		if err != nil {
			return nil, err
		}
		state.scanner = sc
		later = append(later, referenceValidators...)
	}
	if len(later) > 0 {
		outs, err := runStage(ctx, state, later)
		if err != nil {
			return nil, err
		}
		res.Outcomes = append(res.Outcomes, outs...)
	}

	res.Duration = time.Since(start)
	return res, nil
}

func runStage(ctx context.Context, state *checkState, validators []namedValidator) ([]Outcome, error) {
	outs := make([]Outcome, len(validators))
	g, gctx := errgroup.WithContext(ctx)
	for i, val := range validators {
		i, val := i, val
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			vstart := time.Now()
			violations := val.run(state)
			outs[i] = Outcome{Validator: val.name, Violations: violations, Duration: time.Since(vstart)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outs, nil
}

// forEachModified folds a per-table rule over every modified table in
// ascending table order.
func forEachModified(s *checkState, f func(cil.TableID, *oplog.TableModifications) []Violation) []Violation {
	var vs []Violation
	for _, id := range s.changes.ModifiedTables() {
		if m, ok := s.changes.TableIfPresent(id); ok {
			vs = append(vs, f(id, m)...)
		}
	}
	return vs
}

func runInsertOps(s *checkState) []Violation {
	return forEachModified(s, func(id cil.TableID, m *oplog.TableModifications) []Violation {
		if m.IsReplaced() {
			return nil
		}
		return checkInsertOps(id, m.History(), m.OriginalCount(), s.cfg.InsertWindow)
	})
}

func runUpdateOps(s *checkState) []Violation {
	return forEachModified(s, func(id cil.TableID, m *oplog.TableModifications) []Violation {
		if m.IsReplaced() {
			return nil
		}
		return checkUpdateOps(id, m.History(), m.OriginalCount(), m.IsDeleted, s.cfg.MaxUpdatesPerRID)
	})
}

func runDeleteOps(s *checkState) []Violation {
	return forEachModified(s, func(id cil.TableID, m *oplog.TableModifications) []Violation {
		if m.IsReplaced() {
			return nil
		}
		return checkDeleteOps(id, m.History(), m.OriginalCount())
	})
}

func runOpSequences(s *checkState) []Violation {
	return forEachModified(s, func(id cil.TableID, m *oplog.TableModifications) []Violation {
		if m.IsReplaced() {
			return nil
		}
		return checkOpSequence(id, m.History())
	})
}

func runTableIntegrity(s *checkState) []Violation {
	return forEachModified(s, func(id cil.TableID, m *oplog.TableModifications) []Violation {
		return checkTableIntegrity(id, m, s.cfg.MaxSparseGapRatio, s.cfg.MaxReplacedRows)
	})
}

func runHeapIntegrity(s *checkState) []Violation {
	return checkHeapCaps(s.changes, s.cfg)
}

func runCrossTableIntegrity(s *checkState) []Violation {
	return checkCrossTableIntegrity(s.changes)
}

func runOperationVolume(s *checkState) []Violation {
	return forEachModified(s, func(id cil.TableID, m *oplog.TableModifications) []Violation {
		return checkOperationVolume(id, m, s.cfg.MaxOpsPerTable)
	})
}

func runRowReferences(s *checkState) []Violation {
	return forEachModified(s, func(id cil.TableID, m *oplog.TableModifications) []Violation {
		return checkSessionRows(s.scanner, id, m)
	})
}

func runDanglingReferences(s *checkState) []Violation {
	vs := forEachModified(s, func(id cil.TableID, m *oplog.TableModifications) []Violation {
		return checkDanglingRows(s.scanner, s.view, id, m)
	})
	return append(vs, checkDanglingHeapIndices(s.scanner)...)
}

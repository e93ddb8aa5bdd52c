package verify

import (
	"fmt"
	"strings"
	"time"

	"github.com/pmikstacki/cilkit/cil"
	"github.com/pmikstacki/cilkit/pkg/types"
)

// A Violation is one failed check. Table and RID are set for
// row-scoped rules, Index for heap-scoped rules; Message always
// carries the full context.
type Violation struct {
	Rule    string
	Message string
	Table   cil.TableID
	RID     uint32
	Index   uint32
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s", v.Rule, v.Message)
}

// Outcome is the result of one validator.
type Outcome struct {
	Validator  string
	Violations []Violation
	Duration   time.Duration
}

// OK reports whether the validator found nothing.
func (o Outcome) OK() bool { return len(o.Violations) == 0 }

// Result aggregates the outcomes of one validation run.
type Result struct {
	Outcomes []Outcome
	Duration time.Duration
}

// OK reports whether every validator passed.
func (r *Result) OK() bool {
	for _, o := range r.Outcomes {
		if !o.OK() {
			return false
		}
	}
	return true
}

// ValidatorCount returns how many validators ran.
func (r *Result) ValidatorCount() int { return len(r.Outcomes) }

// Failures returns the outcomes that found violations.
func (r *Result) Failures() []Outcome {
	var failed []Outcome
	for _, o := range r.Outcomes {
		if !o.OK() {
			failed = append(failed, o)
		}
	}
	return failed
}

// Violations returns every violation in outcome order.
func (r *Result) Violations() []Violation {
	var all []Violation
	for _, o := range r.Outcomes {
		all = append(all, o.Violations...)
	}
	return all
}

// Err converts the result into an error: nil when everything passed,
// otherwise a single integrity error whose message opens with an
// "N of M validators failed" summary and lists every violation.
func (r *Result) Err() error {
	if r.OK() {
		return nil
	}
	failed := r.Failures()
	var b strings.Builder
	fmt.Fprintf(&b, "%d of %d validators failed", len(failed), len(r.Outcomes))
	for _, o := range failed {
		for _, v := range o.Violations {
			fmt.Fprintf(&b, "\n  [%s] %s", o.Validator, v.String())
		}
	}
	return &types.Error{Kind: types.ErrKindIntegrity, Msg: b.String()}
}

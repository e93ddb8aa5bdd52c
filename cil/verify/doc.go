// Package verify checks a pending change set against the original
// assembly before the writer is allowed to consume it.
//
// # Overview
//
// The engine runs named validators over (View, AssemblyChanges) and
// collects every violation rather than stopping at the first. Each
// validator owns one family of checks: operation-log structure, final
// table state, heap growth, and reference resolution. Run returns a
// Result with one Outcome per validator; Result.Err flattens all
// violations into a single error when anything failed.
//
// # Stages
//
// Validation is two-staged. Structural validators run first and check
// the operation logs themselves: RID ranges, duplicate inserts,
// operations against deleted rows, chronology. Integrity and reference
// validators only run when the structural stage found nothing, since
// their rules assume well-formed logs. Validators within a stage run
// concurrently; the engine joins before returning, so callers see a
// plain synchronous call.
//
// # Configurations
//
// Config presets mirror the editing pipeline's audiences: Disabled and
// Minimal for tooling that knows what it is doing, Production for
// runtime-equivalent checking, Comprehensive (the default) and Strict
// for development. Caps default to the session guardrails in
// pkg/types.
package verify

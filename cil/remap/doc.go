// Package remap assigns final RIDs and heap indices to a validated
// change set and rewrites every reference embedded in its rows.
//
// Session RIDs are provisional: inserts are numbered past the original
// row count, and deletes leave holes. The writer emits contiguous
// tables, so before serialization each table's surviving rows get
// sequential final RIDs and every column that referenced a session RID
// has to follow its row to the new number. Heap indices are final at
// append time; the only heap work left is dropping appended entries
// that were removed again and closing the gaps they leave.
//
// BuildFromChanges derives the per-table remappers without touching
// the change set. ApplyToChanges performs the rewrite in place and is
// the step that commits: the facade runs it once per session, after
// validation has passed.
package remap

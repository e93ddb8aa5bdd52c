// Package oplog accumulates table operations for an editing session.
//
// # Overview
//
// Table edits never touch the parsed original. Each table collects its
// pending Insert, Update, and Delete operations in a TableModifications
// log that starts Sparse: an ordered operation list over the original row
// count. A table may instead be wholesale Replaced, after which sparse
// operations are rejected.
//
// # Ordering
//
// Every operation carries a microsecond timestamp and a session-monotonic
// sequence number. The log stays sorted by (Timestamp, Seq); the sequence
// number makes ordering deterministic even when two operations land in the
// same microsecond.
//
// # RID Assignment
//
// A sparse log seeds its next RID at originalCount+1. Inserts advance it
// past the highest RID seen, so consecutive inserts on a fresh session
// yield originalCount+1, originalCount+2, and so on with no collisions.
//
// # Conflicts
//
// Two operations conflict when they target the same RID and at least one
// is a Delete, or when both are Updates with different payloads. Conflict
// resolution is pluggable: LastWriteWins (the default) keeps the latest
// operation, RejectOnConflict fails instead. Losing operations stay in
// History for audit; EffectiveOps returns the surviving chronological log.
package oplog

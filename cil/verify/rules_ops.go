package verify

import (
	"fmt"

	"github.com/pmikstacki/cilkit/cil"
	"github.com/pmikstacki/cilkit/cil/oplog"
	"github.com/pmikstacki/cilkit/pkg/types"
)

// The operation rules take plain op slices rather than the tracker so
// every branch stays checkable, including ones the log itself rejects
// at apply time.

func hasInsertFor(ops []oplog.TableOperation, rid uint32) bool {
	for _, op := range ops {
		if op.Kind == oplog.OpInsert && op.RID == rid {
			return true
		}
	}
	return false
}

func rowKindMismatch(table cil.TableID, op oplog.TableOperation) (Violation, bool) {
	if op.Row == nil {
		return Violation{
			Rule:    "row-kind",
			Message: fmt.Sprintf("%s on %s rid %d carries no row payload", op.Kind, table, op.RID),
			Table:   table,
			RID:     op.RID,
		}, true
	}
	if op.Row.Table() != table {
		return Violation{
			Rule:    "row-kind",
			Message: fmt.Sprintf("%s row on %s rid %d is a %s row", op.Kind, table, op.RID, op.Row.Table()),
			Table:   table,
			RID:     op.RID,
		}, true
	}
	return Violation{}, false
}

// checkInsertOps validates insert RID allocation: the reserved zero
// RID, the 24-bit token limit, collisions with original rows,
// duplicate inserts, oversized jumps past the expected next RID, and
// row payload kinds.
func checkInsertOps(table cil.TableID, ops []oplog.TableOperation, originalCount, window uint32) []Violation {
	var vs []Violation
	seen := make(map[uint32]struct{})
	expected := originalCount + 1

	for _, op := range ops {
		if op.Kind != oplog.OpInsert {
			continue
		}
		rid := op.RID
		switch {
		case rid == 0:
			vs = append(vs, Violation{
				Rule:    "insert-rid-zero",
				Message: fmt.Sprintf("insert into %s targets rid 0; rid 0 is reserved", table),
				Table:   table,
			})
			continue
		case rid > types.MaxRID:
			vs = append(vs, Violation{
				Rule:    "insert-rid-range",
				Message: fmt.Sprintf("insert into %s targets rid %d, past the 24-bit token limit", table, rid),
				Table:   table,
				RID:     rid,
			})
			continue
		case rid <= originalCount:
			vs = append(vs, Violation{
				Rule:    "insert-into-original",
				Message: fmt.Sprintf("insert into %s targets rid %d inside the original row range (count %d)", table, rid, originalCount),
				Table:   table,
				RID:     rid,
			})
		case rid >= expected+window:
			vs = append(vs, Violation{
				Rule:    "insert-rid-window",
				Message: fmt.Sprintf("insert into %s targets rid %d, far past the next available rid %d", table, rid, expected),
				Table:   table,
				RID:     rid,
			})
		}
		if _, dup := seen[rid]; dup {
			vs = append(vs, Violation{
				Rule:    "insert-duplicate",
				Message: fmt.Sprintf("multiple inserts into %s target rid %d", table, rid),
				Table:   table,
				RID:     rid,
			})
		}
		seen[rid] = struct{}{}
		if rid >= expected {
			expected = rid + 1
		}
		if v, bad := rowKindMismatch(table, op); bad {
			vs = append(vs, v)
		}
	}
	return vs
}

// checkUpdateOps validates update targets: the reserved zero RID, rows
// that neither exist originally nor were inserted, rows deleted in the
// final state, the per-RID update cap, and row payload kinds.
func checkUpdateOps(table cil.TableID, ops []oplog.TableOperation, originalCount uint32, deleted func(uint32) bool, maxUpdates int) []Violation {
	var vs []Violation
	updates := make(map[uint32]int)

	for _, op := range ops {
		if op.Kind != oplog.OpUpdate {
			continue
		}
		rid := op.RID
		if rid == 0 {
			vs = append(vs, Violation{
				Rule:    "update-rid-zero",
				Message: fmt.Sprintf("update in %s targets rid 0; rid 0 is reserved", table),
				Table:   table,
			})
			continue
		}
		if rid > originalCount && !hasInsertFor(ops, rid) {
			vs = append(vs, Violation{
				Rule:    "update-nonexistent",
				Message: fmt.Sprintf("update in %s targets nonexistent rid %d", table, rid),
				Table:   table,
				RID:     rid,
			})
		}
		if deleted(rid) {
			vs = append(vs, Violation{
				Rule:    "update-deleted",
				Message: fmt.Sprintf("update in %s targets rid %d, which the session deletes", table, rid),
				Table:   table,
				RID:     rid,
			})
		}
		updates[rid]++
		if updates[rid] == maxUpdates+1 {
			vs = append(vs, Violation{
				Rule:    "update-storm",
				Message: fmt.Sprintf("rid %d in %s updated more than %d times", rid, table, maxUpdates),
				Table:   table,
				RID:     rid,
			})
		}
		if v, bad := rowKindMismatch(table, op); bad {
			vs = append(vs, v)
		}
	}
	return vs
}

// checkDeleteOps validates delete targets: the reserved zero RID, rows
// that neither exist originally nor were inserted, repeated deletes,
// and the primary Module/Assembly entries.
func checkDeleteOps(table cil.TableID, ops []oplog.TableOperation, originalCount uint32) []Violation {
	var vs []Violation
	seen := make(map[uint32]struct{})

	for _, op := range ops {
		if op.Kind != oplog.OpDelete {
			continue
		}
		rid := op.RID
		if rid == 0 {
			vs = append(vs, Violation{
				Rule:    "delete-rid-zero",
				Message: fmt.Sprintf("delete in %s targets rid 0; rid 0 is reserved", table),
				Table:   table,
			})
			continue
		}
		if rid > originalCount && !hasInsertFor(ops, rid) {
			vs = append(vs, Violation{
				Rule:    "delete-nonexistent",
				Message: fmt.Sprintf("delete in %s targets nonexistent rid %d", table, rid),
				Table:   table,
				RID:     rid,
			})
		}
		if _, dup := seen[rid]; dup {
			vs = append(vs, Violation{
				Rule:    "delete-duplicate",
				Message: fmt.Sprintf("multiple deletes in %s target rid %d", table, rid),
				Table:   table,
				RID:     rid,
			})
		}
		seen[rid] = struct{}{}
		if (table == cil.TableModule || table == cil.TableAssembly) && rid == 1 {
			vs = append(vs, Violation{
				Rule:    "delete-primary-row",
				Message: fmt.Sprintf("delete in %s targets rid 1, the primary metadata entry", table),
				Table:   table,
				RID:     1,
			})
		}
	}
	return vs
}

/// checkOpSequence validates the log as a sequence: chronological
// ordering and, per RID, state transitions that can never be valid
// (a second insert, anything after a delete).
func checkOpSequence(table cil.TableID, ops []oplog.TableOperation) []Violation {
	var vs []Violation

	for i := 1; i < len(ops); i++ {
		if ops[i].Before(ops[i-1]) {
			vs = append(vs, Violation{
				Rule:    "op-order",
				Message: fmt.Sprintf("operations in %s are out of chronological order at position %d", table, i),
				Table:   table,
			})
		}
	}

	type ridState struct {
		inserted bool
		deleted  bool
	}
	states := make(map[uint32]*ridState)
	for _, op := range ops {
		st := states[op.RID]
		if st == nil {
			st = &ridState{}
			states[op.RID] = st
		}
		switch op.Kind {
		case oplog.OpInsert:
			if st.inserted {
				vs = append(vs, Violation{
					Rule:    "sequence-double-insert",
					Message: fmt.Sprintf("second insert for %s rid %d", table, op.RID),
					Table:   table,
					RID:     op.RID,
				})
			}
			if st.deleted {
				vs = append(vs, Violation{
					Rule:    "sequence-insert-after-delete",
					Message: fmt.Sprintf("insert after delete for %s rid %d", table, op.RID),
					Table:   table,
					RID:     op.RID,
				})
			}
			st.inserted = true
		case oplog.OpUpdate:
			if st.deleted {
				vs = append(vs, Violation{
					Rule:    "sequence-update-after-delete",
					Message: fmt.Sprintf("update after delete for %s rid %d", table, op.RID),
					Table:   table,
					RID:     op.RID,
				})
			}
		case oplog.OpDelete:
			if st.deleted {
				vs = append(vs, Violation{
					Rule:    "sequence-double-delete",
					Message: fmt.Sprintf("second delete for %s rid %d", table, op.RID),
					Table:   table,
					RID:     op.RID,
				})
			}
			st.deleted = true
		}
	}
	return vs
}

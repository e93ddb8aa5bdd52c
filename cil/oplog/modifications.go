package oplog

import (
	"sort"

	"github.com/pmikstacki/cilkit/cil"
)

// TableModifications holds the pending state for one table: a sparse
// operation log over the original rows, or a full replacement row set.
// The two modes never mix; Replace discards the sparse state and sparse
// operations on a replaced table fail.
type TableModifications struct {
	table    cil.TableID
	replaced bool
	rows     []cil.Row

	ops           []TableOperation
	deleted       map[uint32]struct{}
	nextRID       uint32
	originalCount uint32
}

// NewSparse creates an empty sparse log for a table with originalCount
// existing rows. The first minted RID is originalCount+1.
func NewSparse(table cil.TableID, originalCount uint32) *TableModifications {
	return &TableModifications{
		table:         table,
		deleted:       make(map[uint32]struct{}),
		nextRID:       originalCount + 1,
		originalCount: originalCount,
	}
}

// NewReplaced creates a modification set that replaces the table wholesale.
func NewReplaced(table cil.TableID, rows []cil.Row) *TableModifications {
	return &TableModifications{
		table:    table,
		replaced: true,
		rows:     append([]cil.Row(nil), rows...),
	}
}

// Table returns the table this log belongs to.
func (m *TableModifications) Table() cil.TableID { return m.table }

// Apply appends op to the ordered log and updates the bookkeeping. It
// rejects an Insert or Update whose RID is 0 and any operation once the
// table has been replaced. A Delete with RID 0 is recorded; validation
// reports it.
func (m *TableModifications) Apply(op TableOperation) error {
	if m.replaced {
		return ErrReplacedTable
	}
	if op.RID == 0 && op.Kind != OpDelete {
		return ErrRIDZero
	}

	// Keep the log sorted by (Timestamp, Seq).
	pos := sort.Search(len(m.ops), func(i int) bool {
		return op.Before(m.ops[i])
	})
	m.ops = append(m.ops, TableOperation{})
	copy(m.ops[pos+1:], m.ops[pos:])
	m.ops[pos] = op

	switch op.Kind {
	case OpInsert:
		if op.RID >= m.nextRID {
			m.nextRID = op.RID + 1
		}
	case OpDelete:
		m.deleted[op.RID] = struct{}{}
	case OpUpdate:
		delete(m.deleted, op.RID)
	}
	return nil
}

// Replace converts the table to replaced mode with the given rows,
// discarding any sparse state.
func (m *TableModifications) Replace(rows []cil.Row) {
	m.replaced = true
	m.rows = append([]cil.Row(nil), rows...)
	m.ops = nil
	m.deleted = nil
	m.nextRID = 0
	m.originalCount = 0
}

// IsReplaced reports whether the table is in replaced mode.
func (m *TableModifications) IsReplaced() bool { return m.replaced }

// ReplacedRows returns the replacement row set, nil for sparse tables.
func (m *TableModifications) ReplacedRows() []cil.Row { return m.rows }

// NextRID returns the RID the next insert will receive. For a replaced
// table it is one past the replacement row count.
func (m *TableModifications) NextRID() uint32 {
	if m.replaced {
		return uint32(len(m.rows)) + 1
	}
	return m.nextRID
}

// OriginalCount returns the original row count the sparse log was seeded
// with, 0 for replaced tables.
func (m *TableModifications) OriginalCount() uint32 {
	if m.replaced {
		return 0
	}
	return m.originalCount
}

// History returns the full chronological log including operations later
// discarded by conflict resolution.
func (m *TableModifications) History() []TableOperation { return m.ops }

// OperationCount returns the number of logged operations.
func (m *TableModifications) OperationCount() int { return len(m.ops) }

// RewriteRows passes every carried row payload through fn and stores the
// result in place: replacement rows for replaced tables, operation rows
// for sparse logs. Operation RIDs and kinds are not touched. Delete
// operations carry no row and are skipped.
func (m *TableModifications) RewriteRows(fn func(cil.Row) cil.Row) {
	if m.replaced {
		for i, row := range m.rows {
			if row != nil {
				m.rows[i] = fn(row)
			}
		}
		return
	}
	for i := range m.ops {
		if m.ops[i].Row != nil {
			m.ops[i].Row = fn(m.ops[i].Row)
		}
	}
}

// HasModifications reports whether the table differs from its original.
func (m *TableModifications) HasModifications() bool {
	return m.replaced || len(m.ops) > 0
}

// IsDeleted reports whether rid has a pending delete that no later update
// revived.
func (m *TableModifications) IsDeleted(rid uint32) bool {
	_, ok := m.deleted[rid]
	return ok
}

// DeletedRows returns the pending-deleted RIDs in ascending order.
func (m *TableModifications) DeletedRows() []uint32 {
	out := make([]uint32, 0, len(m.deleted))
	for rid := range m.deleted {
		out = append(out, rid)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// HasRow reports whether rid resolves to a row after the pending
// operations: not deleted, and either inserted this session or within the
// original row count. For replaced tables it is a bounds check against
// the replacement rows.
func (m *TableModifications) HasRow(rid uint32) bool {
	if m.replaced {
		return rid > 0 && rid <= uint32(len(m.rows))
	}
	if _, gone := m.deleted[rid]; gone {
		return false
	}
	for i := range m.ops {
		if m.ops[i].Kind == OpInsert && m.ops[i].RID == rid {
			return true
		}
	}
	return rid > 0 && rid <= m.originalCount
}

// Conflicts groups the logged operations that contend for the same RID.
// Two operations conflict when at least one is a Delete, or when both are
// Updates with different payloads. An Insert followed by Updates on the
// same RID is the normal create-then-modify flow, not a conflict.
func (m *TableModifications) Conflicts() []Conflict {
	if m.replaced || len(m.ops) < 2 {
		return nil
	}

	byRID := make(map[uint32][]TableOperation)
	order := make([]uint32, 0)
	for _, op := range m.ops {
		if _, seen := byRID[op.RID]; !seen {
			order = append(order, op.RID)
		}
		byRID[op.RID] = append(byRID[op.RID], op)
	}

	var out []Conflict
	for _, rid := range order {
		ops := byRID[rid]
		if len(ops) < 2 {
			continue
		}
		if conflicting(ops) {
			out = append(out, Conflict{Table: m.table, RID: rid, Ops: ops})
		}
	}
	return out
}

// conflicting reports whether a same-RID operation group contends.
func conflicting(ops []TableOperation) bool {
	deletes, updates := 0, 0
	var firstUpdate cil.Row
	divergent := false
	for _, op := range ops {
		switch op.Kind {
		case OpDelete:
			deletes++
		case OpUpdate:
			updates++
			if firstUpdate == nil {
				firstUpdate = op.Row
			} else if !rowsEqual(firstUpdate, op.Row) {
				divergent = true
			}
		case OpInsert:
		}
	}
	if deletes > 0 && len(ops) > deletes {
		return true
	}
	return updates > 1 && divergent
}

// EffectiveOps resolves conflicts with r and returns the surviving log in
// chronological order. Operations on non-conflicted RIDs all survive;
// each conflicted RID keeps only its resolved winner. The full history
// remains available through History.
func (m *TableModifications) EffectiveOps(r ConflictResolver) ([]TableOperation, error) {
	if m.replaced {
		return nil, nil
	}
	conflicts := m.Conflicts()
	if len(conflicts) == 0 {
		return append([]TableOperation(nil), m.ops...), nil
	}

	winners, err := r.Resolve(conflicts)
	if err != nil {
		return nil, err
	}

	contested := make(map[uint32]struct{}, len(conflicts))
	for _, c := range conflicts {
		contested[c.RID] = struct{}{}
	}

	out := make([]TableOperation, 0, len(m.ops))
	for _, op := range m.ops {
		if _, ok := contested[op.RID]; !ok {
			out = append(out, op)
			continue
		}
		if w, ok := winners[op.RID]; ok && w.Timestamp == op.Timestamp && w.Seq == op.Seq {
			out = append(out, op)
		}
	}
	return out, nil
}

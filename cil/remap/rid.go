package remap

import (
	"sort"

	"github.com/pmikstacki/cilkit/cil"
	"github.com/pmikstacki/cilkit/cil/oplog"
)

// RidRemapper translates one table's session RIDs into the contiguous
// space the rewritten table will occupy. Surviving original rows keep
// their relative order and compact downward past deleted ones; session
// inserts follow, in ascending session-RID order.
//
// The mapping stores only RIDs whose final number differs from their
// session number. Everything else in 1..FinalCount is identity, so a
// remapper over an untouched table costs nothing.
type RidRemapper struct {
	mapping       map[uint32]uint32
	deleted       map[uint32]struct{}
	originalCount uint32
	finalCount    uint32
	nextRID       uint32
}

// NewRidRemapper returns an identity remapper over rowCount rows, the
// shape an untouched or wholesale-replaced table needs.
func NewRidRemapper(rowCount uint32) *RidRemapper {
	return &RidRemapper{
		mapping:       make(map[uint32]uint32),
		deleted:       make(map[uint32]struct{}),
		originalCount: rowCount,
		finalCount:    rowCount,
		nextRID:       rowCount + 1,
	}
}

// BuildRidRemapper derives a remapper from a table's operation log and
// its original row count. Operations are ordered chronologically first,
// so the net effect per RID is what the last operation left behind: an
// insert followed by a delete contributes no row, a delete followed by
// an update revives the row.
func BuildRidRemapper(ops []oplog.TableOperation, originalCount uint32) *RidRemapper {
	sorted := make([]oplog.TableOperation, len(ops))
	copy(sorted, ops)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	inserted := make(map[uint32]struct{})
	deleted := make(map[uint32]struct{})
	for _, op := range sorted {
		switch op.Kind {
		case oplog.OpInsert:
			inserted[op.RID] = struct{}{}
			delete(deleted, op.RID)
		case oplog.OpDelete:
			deleted[op.RID] = struct{}{}
			delete(inserted, op.RID)
		case oplog.OpUpdate:
			delete(deleted, op.RID)
		}
	}

	r := &RidRemapper{
		mapping:       make(map[uint32]uint32),
		deleted:       deleted,
		originalCount: originalCount,
	}
	next := uint32(1)
	for rid := uint32(1); rid <= originalCount; rid++ {
		if _, gone := deleted[rid]; gone {
			continue
		}
		if next != rid {
			r.mapping[rid] = next
		}
		next++
	}
	appended := make([]uint32, 0, len(inserted))
	for rid := range inserted {
		if rid > originalCount {
			appended = append(appended, rid)
		}
	}
	sort.Slice(appended, func(i, j int) bool { return appended[i] < appended[j] })
	for _, rid := range appended {
		if next != rid {
			r.mapping[rid] = next
		}
		next++
	}
	r.finalCount = next - 1
	r.nextRID = next
	return r
}

// Map returns the final RID for a session RID. The second result is
// false for RID 0, deleted rows, and RIDs outside the table.
func (r *RidRemapper) Map(rid uint32) (uint32, bool) {
	if rid == 0 {
		return 0, false
	}
	if _, gone := r.deleted[rid]; gone {
		return 0, false
	}
	if mapped, ok := r.mapping[rid]; ok {
		return mapped, true
	}
	if rid <= r.finalCount {
		return rid, true
	}
	return 0, false
}

// MapToken maps the RID inside a metadata token, keeping its table.
// Tokens whose RID does not survive come back unchanged with ok false.
func (r *RidRemapper) MapToken(t cil.Token) (cil.Token, bool) {
	mapped, ok := r.Map(t.RID())
	if !ok {
		return t, false
	}
	return cil.NewToken(t.Table(), mapped), true
}

// MapListStart translates a list-start RID. A start whose row survives
// maps like any reference; a start on a deleted row slides forward to
// the next surviving original row; a start past every original row
// lands one past the final end, so an empty run stays empty.
func (r *RidRemapper) MapListStart(v uint32) uint32 {
	if mapped, ok := r.Map(v); ok {
		return mapped
	}
	for next := v + 1; next <= r.originalCount; next++ {
		if mapped, ok := r.Map(next); ok {
			return mapped
		}
	}
	return r.finalCount + 1
}

// ReverseLookup returns the session RID that was assigned the given
// final RID.
func (r *RidRemapper) ReverseLookup(final uint32) (uint32, bool) {
	for session, mapped := range r.mapping {
		if mapped == final {
			return session, true
		}
	}
	if final == 0 || final > r.finalCount {
		return 0, false
	}
	// No explicit entry owns this final number, so it sits in the
	// untouched identity region.
	return final, true
}

// OriginalCount returns the row count the mapping was built over.
func (r *RidRemapper) OriginalCount() uint32 { return r.originalCount }

// FinalCount returns the row count of the rewritten table.
func (r *RidRemapper) FinalCount() uint32 { return r.finalCount }

// NextAvailable returns the first RID free after the rewrite.
func (r *RidRemapper) NextAvailable() uint32 { return r.nextRID }

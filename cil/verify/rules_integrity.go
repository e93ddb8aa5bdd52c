package verify

import (
	"fmt"
	"sort"

	"github.com/pmikstacki/cilkit/cil"
	"github.com/pmikstacki/cilkit/cil/changes"
	"github.com/pmikstacki/cilkit/cil/oplog"
	"github.com/pmikstacki/cilkit/internal/format"
)

// finalRIDSet resolves a table's modification log to the set of RIDs
// that exist once the session is applied: surviving originals plus
// inserts for a sparse log, 1..len(rows) for a replacement.
func finalRIDSet(m *oplog.TableModifications) map[uint32]struct{} {
	out := make(map[uint32]struct{})
	if m.IsReplaced() {
		for rid := uint32(1); rid <= uint32(len(m.ReplacedRows())); rid++ {
			out[rid] = struct{}{}
		}
		return out
	}
	for rid := uint32(1); rid <= m.OriginalCount(); rid++ {
		if !m.IsDeleted(rid) {
			out[rid] = struct{}{}
		}
	}
	for _, op := range m.History() {
		if op.Kind == oplog.OpInsert {
			out[op.RID] = struct{}{}
		}
	}
	return out
}

func maxRIDOf(set map[uint32]struct{}) uint32 {
	var max uint32
	for rid := range set {
		if rid > max {
			max = rid
		}
	}
	return max
}

// checkTableIntegrity validates one table's final state: insert
// collisions with surviving rows, a RID space that went mostly gaps,
// a next RID that fell behind the highest surviving row, the primary
// Module entry, and replacement size bounds.
func checkTableIntegrity(table cil.TableID, m *oplog.TableModifications, gapRatio float64, maxReplaced int) []Violation {
	var vs []Violation

	if m.IsReplaced() {
		rows := m.ReplacedRows()
		switch {
		case table == cil.TableModule && len(rows) != 1:
			vs = append(vs, Violation{
				Rule:    "replaced-module-rows",
				Message: fmt.Sprintf("replaced %s table holds %d rows; exactly one is required", table, len(rows)),
				Table:   table,
			})
		case table == cil.TableAssembly && len(rows) == 0:
			vs = append(vs, Violation{
				Rule:    "replaced-assembly-empty",
				Message: fmt.Sprintf("replaced %s table is empty; the primary entry is required", table),
				Table:   table,
			})
		}
		if len(rows) > maxReplaced {
			vs = append(vs, Violation{
				Rule:    "replaced-oversize",
				Message: fmt.Sprintf("replaced %s table holds %d rows, past the %d row bound", table, len(rows), maxReplaced),
				Table:   table,
			})
		}
		return vs
	}

	final := make(map[uint32]struct{})
	for rid := uint32(1); rid <= m.OriginalCount(); rid++ {
		if !m.IsDeleted(rid) {
			final[rid] = struct{}{}
		}
	}
	for _, op := range m.History() {
		if op.Kind != oplog.OpInsert {
			continue
		}
		if _, taken := final[op.RID]; taken {
			vs = append(vs, Violation{
				Rule:    "insert-survivor-conflict",
				Message: fmt.Sprintf("insert into %s rid %d lands on a row that survives the session", table, op.RID),
				Table:   table,
				RID:     op.RID,
			})
		}
		final[op.RID] = struct{}{}
	}

	if maxRID := maxRIDOf(final); maxRID > 0 {
		gaps := maxRID - uint32(len(final))
		if float64(gaps)/float64(maxRID) > gapRatio {
			vs = append(vs, Violation{
				Rule:    "rid-space-sparse",
				Message: fmt.Sprintf("%s rid space runs to %d with only %d rows; mostly gaps", table, maxRID, len(final)),
				Table:   table,
				RID:     maxRID,
			})
		}
		if m.NextRID() <= maxRID {
			vs = append(vs, Violation{
				Rule:    "next-rid-behind",
				Message: fmt.Sprintf("%s next rid %d does not clear the highest surviving rid %d", table, m.NextRID(), maxRID),
				Table:   table,
				RID:     maxRID,
			})
		}
	}

	if table == cil.TableModule {
		if _, ok := final[1]; !ok {
			vs = append(vs, Violation{
				Rule:    "module-entry-missing",
				Message: "Module table no longer holds rid 1, the primary module entry",
				Table:   table,
				RID:     1,
			})
		}
	}
	return vs
}

// checkHeapCaps validates the per-heap addition bounds and, for the
// #US heap, that a modified appended entry still fits the encoded size
// pinned when it was appended.
func checkHeapCaps(ch *changes.AssemblyChanges, cfg Config) []Violation {
	var vs []Violation

	if n := len(ch.Strings().Appended()); n > cfg.MaxStringAdditions {
		vs = append(vs, Violation{
			Rule:    "string-additions",
			Message: fmt.Sprintf("%d string heap additions, past the %d bound", n, cfg.MaxStringAdditions),
		})
	}
	if n := len(ch.Blobs().Appended()); n > cfg.MaxBlobAdditions {
		vs = append(vs, Violation{
			Rule:    "blob-additions",
			Message: fmt.Sprintf("%d blob heap additions, past the %d bound", n, cfg.MaxBlobAdditions),
		})
	}
	if n := len(ch.GUIDs().Appended()); n > cfg.MaxGUIDAdditions {
		vs = append(vs, Violation{
			Rule:    "guid-additions",
			Message: fmt.Sprintf("%d GUID heap additions, past the %d bound", n, cfg.MaxGUIDAdditions),
		})
	}
	us := ch.UserStrings()
	if n := len(us.Appended()); n > cfg.MaxUserStringAdditions {
		vs = append(vs, Violation{
			Rule:    "userstring-additions",
			Message: fmt.Sprintf("%d user string heap additions, past the %d bound", n, cfg.MaxUserStringAdditions),
		})
	}

	for _, e := range us.Appended() {
		mod, ok := us.Modification(e.Index)
		if !ok {
			continue
		}
		total := uint32(format.UTF16ByteLen(mod)) + 1
		need := uint32(format.CompressedUintSize(total)) + total
		if need > e.EncodedSize {
			vs = append(vs, Violation{
				Rule:    "userstring-slot-overflow",
				Message: fmt.Sprintf("modified user string at %d needs %d bytes, past its pinned %d byte slot", e.Index, need, e.EncodedSize),
				Index:   e.Index,
			})
		}
	}
	return vs
}

// checkOperationVolume flags tables whose logs grew past the per-table
// operation bound, the signature of a runaway edit loop.
func checkOperationVolume(table cil.TableID, m *oplog.TableModifications, maxOps int) []Violation {
	if m.IsReplaced() || m.OperationCount() <= maxOps {
		return nil
	}
	return []Violation{{
		Rule:    "operation-storm",
		Message: fmt.Sprintf("%s log holds %d operations, past the %d bound", table, m.OperationCount(), maxOps),
		Table:   table,
	}}
}

// checkCrossTableIntegrity validates the TypeDef ownership structure
// across modified tables: fields or methods cannot outlive every
// TypeDef, and the field ranges implied by session TypeDef rows must
// cover existing fields without dangling into deleted ones. Tables the
// session never touched are out of scope; their rows are covered by
// the reference stage.
func checkCrossTableIntegrity(ch *changes.AssemblyChanges) []Violation {
	var vs []Violation

	sets := make(map[cil.TableID]map[uint32]struct{})
	for _, id := range ch.ModifiedTables() {
		if m, ok := ch.TableIfPresent(id); ok {
			sets[id] = finalRIDSet(m)
		}
	}

	tdSet, tdOK := sets[cil.TableTypeDef]
	fieldSet, fOK := sets[cil.TableField]
	methodSet, mOK := sets[cil.TableMethodDef]

	if tdOK && fOK && len(tdSet) == 0 && len(fieldSet) > 0 {
		vs = append(vs, Violation{
			Rule:    "orphaned-fields",
			Message: "fields survive the session but no TypeDef entry does",
			Table:   cil.TableField,
		})
	}
	if tdOK && mOK && len(tdSet) == 0 && len(methodSet) > 0 {
		vs = append(vs, Violation{
			Rule:    "orphaned-methods",
			Message: "methods survive the session but no TypeDef entry does",
			Table:   cil.TableMethodDef,
		})
	}
	if tdOK && fOK {
		if td, ok := ch.TableIfPresent(cil.TableTypeDef); ok {
			vs = append(vs, checkFieldOwnership(td, tdSet, fieldSet)...)
		}
	}
	return vs
}

// checkFieldOwnership validates the field ranges of session TypeDef
// rows. Each range runs from the row's FieldList to the next higher
// FieldList among session rows, or one past the highest surviving
// field for the last. Original TypeDef rows are opaque here; only rows
// the session wrote carry known FieldList values.
func checkFieldOwnership(td *oplog.TableModifications, tdSet, fieldSet map[uint32]struct{}) []Violation {
	type ownership struct {
		rid       uint32
		fieldList uint32
	}
	var owners []ownership

	add := func(rid uint32, row cil.Row) {
		if _, live := tdSet[rid]; !live {
			return
		}
		if r, ok := row.(cil.TypeDefRow); ok {
			owners = append(owners, ownership{rid: rid, fieldList: r.FieldList})
		}
	}
	if td.IsReplaced() {
		for i, row := range td.ReplacedRows() {
			add(uint32(i)+1, row)
		}
	} else {
		for _, op := range td.History() {
			if op.Kind == oplog.OpInsert {
				add(op.RID, op.Row)
			}
		}
	}
	if len(owners) == 0 {
		return nil
	}
	sort.Slice(owners, func(i, j int) bool { return owners[i].fieldList < owners[j].fieldList })

	maxField := maxRIDOf(fieldSet)

	var vs []Violation
	for i, own := range owners {
		if own.fieldList == 0 {
			continue
		}
		end := maxField + 1
		if i+1 < len(owners) {
			end = owners[i+1].fieldList
		}
		for fr := own.fieldList; fr < end; fr++ {
			if _, ok := fieldSet[fr]; !ok {
				vs = append(vs, Violation{
					Rule:    "field-range-gap",
					Message: fmt.Sprintf("TypeDef rid %d claims field rid %d, which does not survive the session", own.rid, fr),
					Table:   cil.TableTypeDef,
					RID:     own.rid,
				})
			}
		}
	}

	minOwned := uint32(0)
	for _, own := range owners {
		if own.fieldList > 0 && (minOwned == 0 || own.fieldList < minOwned) {
			minOwned = own.fieldList
		}
	}
	if minOwned > 1 {
		for fr := uint32(1); fr < minOwned; fr++ {
			if _, ok := fieldSet[fr]; ok {
				vs = append(vs, Violation{
					Rule:    "orphaned-field",
					Message: fmt.Sprintf("field rid %d is below every session TypeDef field range", fr),
					Table:   cil.TableField,
					RID:     fr,
				})
			}
		}
	}
	return vs
}

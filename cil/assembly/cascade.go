package assembly

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pmikstacki/cilkit/cil"
	"github.com/pmikstacki/cilkit/cil/oplog"
	"github.com/pmikstacki/cilkit/cil/verify"
	"github.com/pmikstacki/cilkit/internal/format"
	"github.com/pmikstacki/cilkit/pkg/types"
)

// cascadeRowRemoval deletes root plus every row that requires it, then
// rewrites the remaining referencing rows so nothing dangles. A row
// requires a deleted row when a plain RID column names it; such rows
// cannot stand alone, so they go too, transitively. Coded references
// are nulled and list starts slide to the next surviving row, so their
// owners survive.
func (a *Assembly) cascadeRowRemoval(sc *verify.Scanner, root cil.Token) error {
	doomed := map[cil.Token]struct{}{root: {}}
	queue := []cil.Token{root}
	for len(queue) > 0 {
		tok := queue[0]
		queue = queue[1:]
		for _, ref := range sc.ReferencesTo(tok) {
			if _, gone := doomed[ref]; gone {
				continue
			}
			requires, err := a.rowRequires(ref, tok)
			if err != nil {
				return err
			}
			if requires {
				doomed[ref] = struct{}{}
				queue = append(queue, ref)
			}
		}
	}

	for _, tok := range sortedTokenSet(doomed) {
		if err := a.applyDelete(tok.Table(), tok.RID()); err != nil {
			return err
		}
	}

	// Rows that name a doomed row only through coded or list columns
	// survive with those columns rewritten.
	survivors := make(map[cil.Token]struct{})
	for tok := range doomed {
		for _, ref := range sc.ReferencesTo(tok) {
			if _, gone := doomed[ref]; !gone {
				survivors[ref] = struct{}{}
			}
		}
	}
	for _, ref := range sortedTokenSet(survivors) {
		if err := a.detachRow(sc, ref, doomed); err != nil {
			return err
		}
	}
	return nil
}

// rowRequires reports whether ref's row names target through a plain
// (non-list) RID column.
func (a *Assembly) rowRequires(ref, target cil.Token) (bool, error) {
	cols, err := a.rowColumns(ref)
	if err != nil {
		return false, err
	}
	schema, ok := cil.SchemaOf(ref.Table())
	if !ok {
		return false, nil
	}
	for i, col := range schema.Cols {
		if i >= len(cols) {
			break
		}
		if col.Kind != cil.ColRID || col.Target != target.Table() || cols[i] != target.RID() {
			continue
		}
		if !strings.HasSuffix(col.Name, "List") {
			return true, nil
		}
	}
	return false, nil
}

// detachRow rewrites ref's row so it no longer names any doomed row:
// coded columns go null, list starts slide to the next survivor.
func (a *Assembly) detachRow(sc *verify.Scanner, ref cil.Token, doomed map[cil.Token]struct{}) error {
	cols, err := a.rowColumns(ref)
	if err != nil {
		return err
	}
	schema, ok := cil.SchemaOf(ref.Table())
	if !ok {
		return nil
	}
	changed := false
	for i, col := range schema.Cols {
		if i >= len(cols) {
			break
		}
		v := cols[i]
		if v == 0 {
			continue
		}
		switch col.Kind {
		case cil.ColCoded:
			if _, gone := doomed[cil.Token(v)]; gone {
				cols[i] = 0
				changed = true
			}
		case cil.ColRID:
			if !strings.HasSuffix(col.Name, "List") {
				continue
			}
			if _, gone := doomed[cil.NewToken(col.Target, v)]; !gone {
				continue
			}
			cols[i] = a.nextSurvivingRow(sc, col.Target, v)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	row, err := cil.RowFromColumns(ref.Table(), cols)
	if err != nil {
		return err
	}
	return a.putRow(ref.Table(), ref.RID(), row)
}

// nextSurvivingRow returns the first live RID after v, or one past the
// table's final count when the rest of the table is gone. RowExists
// reads the live change set, so rows deleted earlier in the same
// cascade are already excluded.
func (a *Assembly) nextSurvivingRow(sc *verify.Scanner, table cil.TableID, v uint32) uint32 {
	final := sc.FinalRowCount(table)
	for r := v + 1; r <= final; r++ {
		if sc.RowExists(table, r) {
			return r
		}
	}
	return final + 1
}

// clearHeapColumns zeroes every column of the given heap kind holding
// index in each referencing row.
func (a *Assembly) clearHeapColumns(refs []cil.Token, kind cil.ColKind, index uint32) error {
	for _, ref := range refs {
		cols, err := a.rowColumns(ref)
		if err != nil {
			return err
		}
		schema, ok := cil.SchemaOf(ref.Table())
		if !ok {
			continue
		}
		changed := false
		for i, col := range schema.Cols {
			if i >= len(cols) {
				break
			}
			if col.Kind == kind && cols[i] == index {
				cols[i] = 0
				changed = true
			}
		}
		if !changed {
			continue
		}
		row, err := cil.RowFromColumns(ref.Table(), cols)
		if err != nil {
			return err
		}
		if err := a.putRow(ref.Table(), ref.RID(), row); err != nil {
			return err
		}
	}
	return nil
}

// rowColumns resolves the current column values of a live row: the
// latest session payload when the session wrote one, the view's bytes
// otherwise.
func (a *Assembly) rowColumns(tok cil.Token) ([]uint32, error) {
	id, rid := tok.Table(), tok.RID()
	if m, ok := a.ch.TableIfPresent(id); ok {
		if m.IsReplaced() {
			rows := m.ReplacedRows()
			if rid == 0 || rid > uint32(len(rows)) {
				return nil, fmt.Errorf("%s row %d out of range after replacement", id, rid)
			}
			return cil.RowColumns(rows[rid-1]), nil
		}
		if row, ok := latestPayload(m, rid); ok {
			return cil.RowColumns(row), nil
		}
	}
	return a.view.RowColumnsOf(id, rid)
}

// latestPayload returns the row most recently written for rid, if the
// session wrote one. A delete clears earlier payloads; a later update
// revives the row with its new payload.
func latestPayload(m *oplog.TableModifications, rid uint32) (cil.Row, bool) {
	var row cil.Row
	for _, op := range m.History() {
		if op.RID != rid {
			continue
		}
		switch op.Kind {
		case oplog.OpInsert, oplog.OpUpdate:
			if op.Row != nil {
				row = op.Row
			}
		case oplog.OpDelete:
			row = nil
		}
	}
	return row, row != nil
}

func (a *Assembly) applyDelete(id cil.TableID, rid uint32) error {
	return a.ch.Table(id).Apply(oplog.NewTableOperation(oplog.Operation{Kind: oplog.OpDelete, RID: rid}))
}

// putRow records row as the new payload at rid. Wholesale-replaced
// tables take no sparse operations, so the replacement vector is
// swapped instead.
func (a *Assembly) putRow(id cil.TableID, rid uint32, row cil.Row) error {
	m := a.ch.Table(id)
	if m.IsReplaced() {
		rows := m.ReplacedRows()
		if rid == 0 || rid > uint32(len(rows)) {
			return fmt.Errorf("%s row %d out of range after replacement", id, rid)
		}
		next := append([]cil.Row(nil), rows...)
		next[rid-1] = row
		m.Replace(next)
		return nil
	}
	return m.Apply(oplog.NewTableOperation(oplog.Operation{Kind: oplog.OpUpdate, RID: rid, Row: row}))
}

// userStringLoadSites returns the placeholder RVAs of stored method
// bodies whose IL loads the #US entry at index.
func (a *Assembly) userStringLoadSites(index uint32) []uint32 {
	var sites []uint32
	for _, rva := range a.ch.MethodBodyPlaceholders() {
		body, ok := a.ch.MethodBody(rva)
		if !ok {
			continue
		}
		found := false
		format.PatchLdstrTokens(body, func(idx uint32) (uint32, bool) {
			if idx == index {
				found = true
			}
			return 0, false
		})
		if found {
			sites = append(sites, rva)
		}
	}
	return sites
}

// redirectLdstr rewrites every stored-body ldstr operand holding from
// so it holds to.
func (a *Assembly) redirectLdstr(from, to uint32) {
	for _, rva := range a.ch.MethodBodyPlaceholders() {
		body, ok := a.ch.MethodBody(rva)
		if !ok {
			continue
		}
		format.PatchLdstrTokens(body, func(idx uint32) (uint32, bool) {
			if idx == from {
				return to, true
			}
			return 0, false
		})
	}
}

func refusedRemoval(what string, index uint32, refs []cil.Token) error {
	return fmt.Errorf("removing %s %d: %d live references, first from row %s: %w",
		what, index, len(refs), refs[0], types.ErrReferenced)
}

func sortedTokenSet(set map[cil.Token]struct{}) []cil.Token {
	toks := make([]cil.Token, 0, len(set))
	for tok := range set {
		toks = append(toks, tok)
	}
	sort.Slice(toks, func(i, j int) bool { return toks[i] < toks[j] })
	return toks
}

package verify

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pmikstacki/cilkit/cil"
	"github.com/pmikstacki/cilkit/cil/oplog"
	"github.com/pmikstacki/cilkit/pkg/types"
)

// checkSessionRowColumns resolves every index a session-written row
// carries. List columns (FieldList and friends) mark range starts and
// may point one past the final row, per the ECMA-335 run encoding;
// every other RID and every coded index must name a live row, and heap
// indices must fall inside the final heap extent.
func checkSessionRowColumns(s *Scanner, table cil.TableID, rid uint32, row cil.Row) []Violation {
	schema, ok := cil.SchemaOf(table)
	if !ok {
		return nil
	}
	cols := cil.RowColumns(row)

	var vs []Violation
	for i, col := range schema.Cols {
		if i >= len(cols) || cols[i] == 0 {
			continue
		}
		v := cols[i]
		switch col.Kind {
		case cil.ColString:
			if !s.StringIndexValid(v) {
				vs = append(vs, Violation{
					Rule:    "string-index",
					Message: fmt.Sprintf("%s rid %d column %s holds string index %d, which does not resolve", table, rid, col.Name, v),
					Table:   table,
					RID:     rid,
					Index:   v,
				})
			}
		case cil.ColGUID:
			if !s.GUIDIndexValid(v) {
				vs = append(vs, Violation{
					Rule:    "guid-index",
					Message: fmt.Sprintf("%s rid %d column %s holds GUID slot %d, which does not resolve", table, rid, col.Name, v),
					Table:   table,
					RID:     rid,
					Index:   v,
				})
			}
		case cil.ColBlob:
			if !s.BlobIndexValid(v) {
				vs = append(vs, Violation{
					Rule:    "blob-index",
					Message: fmt.Sprintf("%s rid %d column %s holds blob index %d, which does not resolve", table, rid, col.Name, v),
					Table:   table,
					RID:     rid,
					Index:   v,
				})
			}
		case cil.ColRID:
			if strings.HasSuffix(col.Name, "List") {
				if v > s.FinalRowCount(col.Target)+1 {
					vs = append(vs, Violation{
						Rule:    "list-start",
						Message: fmt.Sprintf("%s rid %d column %s starts at %s rid %d, past the end of the table", table, rid, col.Name, col.Target, v),
						Table:   table,
						RID:     rid,
					})
				}
			} else if !s.RowExists(col.Target, v) {
				vs = append(vs, Violation{
					Rule:    "row-target",
					Message: fmt.Sprintf("%s rid %d column %s references %s rid %d, which does not resolve", table, rid, col.Name, col.Target, v),
					Table:   table,
					RID:     rid,
				})
			}
		case cil.ColCoded:
			if tok := cil.Token(v); !tok.IsNull() && !s.TokenExists(tok) {
				vs = append(vs, Violation{
					Rule:    "token-target",
					Message: fmt.Sprintf("%s rid %d column %s references %s, which does not resolve", table, rid, col.Name, tok),
					Table:   table,
					RID:     rid,
				})
			}
		}
	}
	return vs
}

// checkSessionRows validates the columns of every row the session
// wrote: replacement rows wholesale, and for sparse logs the latest
// surviving payload per RID.
func checkSessionRows(s *Scanner, table cil.TableID, m *oplog.TableModifications) []Violation {
	var vs []Violation
	if m.IsReplaced() {
		for i, row := range m.ReplacedRows() {
			vs = append(vs, checkSessionRowColumns(s, table, uint32(i)+1, row)...)
		}
		return vs
	}
	latest := sessionPayloads(m)
	rids := make([]uint32, 0, len(latest))
	for rid := range latest {
		rids = append(rids, rid)
	}
	sort.Slice(rids, func(i, j int) bool { return rids[i] < rids[j] })
	for _, rid := range rids {
		if m.HasRow(rid) {
			vs = append(vs, checkSessionRowColumns(s, table, rid, latest[rid])...)
		}
	}
	return vs
}

// checkDanglingRows flags deleted rows, and rows a replacement
// dropped, that live rows still reference. The removal strategies
// clear or forbid such references when the edit is made; this is the
// final re-check before the log reaches the writer.
func checkDanglingRows(s *Scanner, view RowSource, table cil.TableID, m *oplog.TableModifications) []Violation {
	var vs []Violation
	flag := func(rid uint32, how string) {
		refs := s.ReferencesTo(cil.NewToken(table, rid))
		if len(refs) == 0 {
			return
		}
		vs = append(vs, Violation{
			Rule:    "dangling-row-reference",
			Message: fmt.Sprintf("%s rid %d is %s but %d live rows still reference it, first %s", table, rid, how, len(refs), refs[0]),
			Table:   table,
			RID:     rid,
		})
	}
	if m.IsReplaced() {
		for rid := uint32(len(m.ReplacedRows())) + 1; rid <= view.TableRowCount(table); rid++ {
			flag(rid, "dropped by replacement")
		}
		return vs
	}
	for _, rid := range m.DeletedRows() {
		flag(rid, "deleted")
	}
	return vs
}

// checkDanglingHeapIndices flags removed heap entries that live rows
// still reference. User string removals have no table-side references
// to scan; their uses live in IL streams.
func checkDanglingHeapIndices(s *Scanner) []Violation {
	var vs []Violation

	report := func(heap string, index uint32, refs []cil.Token) {
		if len(refs) == 0 {
			return
		}
		vs = append(vs, Violation{
			Rule:    "dangling-" + heap + "-reference",
			Message: fmt.Sprintf("%s index %d is removed but %d live rows still reference it, first %s", heap, index, len(refs), refs[0]),
			Index:   index,
		})
	}

	for _, idx := range sortedRemovals(s.changes.Strings().Removals()) {
		report("string", idx, s.StringReferences(idx))
	}
	for _, idx := range sortedRemovals(s.changes.Blobs().Removals()) {
		report("blob", idx, s.BlobReferences(idx))
	}
	for _, idx := range sortedRemovals(s.changes.GUIDs().Removals()) {
		report("guid", idx, s.GUIDReferences(idx))
	}
	return vs
}

func sortedRemovals(m map[uint32]types.RefStrategy) []uint32 {
	out := make([]uint32, 0, len(m))
	for idx := range m {
		out = append(out, idx)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

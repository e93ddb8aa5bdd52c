package writer

import (
	"fmt"
	"strings"

	"github.com/pmikstacki/cilkit/cil"
	"github.com/pmikstacki/cilkit/cil/changes"
	"github.com/pmikstacki/cilkit/cil/oplog"
	"github.com/pmikstacki/cilkit/cil/remap"
	"github.com/pmikstacki/cilkit/internal/format"
)

// rowPatcher rewrites column values on the way out: heap indices that moved
// during materialization and method-body placeholder RVAs that now have a
// real address. Original rows additionally pass their row references through
// the table remappers; rows carried in the change set already did that.
type rowPatcher struct {
	strings map[uint32]uint32
	blobs   map[uint32]uint32
	rvas    map[uint32]uint32
}

func (p *rowPatcher) apply(t cil.TableID, cols []uint32, original bool, rm *remap.IndexRemapper) error {
	schema, ok := cil.SchemaOf(t)
	if !ok {
		return fmt.Errorf("writer: no such table 0x%02X", uint8(t))
	}
	for i, col := range schema.Cols {
		v := cols[i]
		if v == 0 {
			continue
		}
		switch col.Kind {
		case cil.ColString:
			if nv, ok := p.strings[v]; ok {
				cols[i] = nv
			}
		case cil.ColBlob:
			if nv, ok := p.blobs[v]; ok {
				cols[i] = nv
			}
		case cil.ColRID:
			if !original {
				continue
			}
			if nv, ok := rm.MapRID(col.Target, v); ok {
				cols[i] = nv
				continue
			}
			// List starts need not name a live row: one on a deleted row
			// slides to the next survivor, one past the table end marks
			// an empty run in final space too.
			if rr := rm.TableRemapper(col.Target); rr != nil && strings.HasSuffix(col.Name, "List") {
				cols[i] = rr.MapListStart(v)
				continue
			}
			return fmt.Errorf("writer: %s.%s references deleted %s row %d", t, col.Name, col.Target, v)
		case cil.ColCoded:
			if !original {
				continue
			}
			tok := cil.Token(v)
			if tok.RID() == 0 {
				continue
			}
			rr := rm.TableRemapper(tok.Table())
			if rr == nil {
				continue
			}
			mapped, ok := rr.Map(tok.RID())
			if !ok {
				return fmt.Errorf("writer: %s.%s references deleted %s row %d", t, col.Name, tok.Table(), tok.RID())
			}
			if mapped != tok.RID() {
				cols[i] = uint32(cil.NewToken(tok.Table(), mapped))
			}
		case cil.ColU32:
			if v >= changes.MethodBodyPlaceholderBase {
				if nv, ok := p.rvas[v]; ok {
					cols[i] = nv
				}
			}
		}
	}
	return nil
}

// finalSizeSet derives the width-deciding quantities of the output image:
// final row counts per table and heap-size flags recomputed from the
// materialized heap sizes.
func finalSizeSet(view *cil.View, ch *changes.AssemblyChanges, rm *remap.IndexRemapper, stringsLen, blobLen int, guidCount uint32) *cil.SizeSet {
	s := &cil.SizeSet{
		BigStrings: stringsLen >= format.Wide16Limit,
		BigGUID:    guidCount >= format.Wide16Limit,
		BigBlob:    blobLen >= format.Wide16Limit,
	}
	for _, id := range cil.AllTableIDs() {
		if m, ok := ch.TableIfPresent(id); ok && m.HasModifications() {
			if m.IsReplaced() {
				s.RowCounts[id] = uint32(len(m.ReplacedRows()))
			} else if rr := rm.TableRemapper(id); rr != nil {
				s.RowCounts[id] = rr.FinalCount()
			}
			continue
		}
		s.RowCounts[id] = view.TableRowCount(id)
	}
	return s
}

func heapFlags(s *cil.SizeSet) byte {
	var f byte
	if s.BigStrings {
		f |= format.HeapSizeStrings
	}
	if s.BigGUID {
		f |= format.HeapSizeGUID
	}
	if s.BigBlob {
		f |= format.HeapSizeBlob
	}
	return f
}

// sortedMask narrows the input image's sorted-tables bitvector for the output
// header. A table that gained, lost, or rewrote rows this session is not
// certified sorted anymore, and absent tables carry no bit at all.
func sortedMask(original, valid uint64, ch *changes.AssemblyChanges) uint64 {
	sorted := original & valid
	for _, id := range cil.AllTableIDs() {
		if m, ok := ch.TableIfPresent(id); ok && m.HasModifications() {
			sorted &^= 1 << uint(id)
		}
	}
	return sorted
}

// buildTablesStream produces the complete #~ stream: header, row counts for
// present tables, then every table's rows in id order re-encoded under the
// final widths.
func buildTablesStream(view *cil.View, ch *changes.AssemblyChanges, rm *remap.IndexRemapper, sizes *cil.SizeSet, patch *rowPatcher) ([]byte, error) {
	var present []cil.TableID
	var valid uint64
	for _, id := range cil.AllTableIDs() {
		if sizes.RowCounts[id] > 0 {
			present = append(present, id)
			valid |= 1 << uint(id)
		}
	}

	major, minor := view.TablesVersion()
	out := make([]byte, format.TablesHeaderSize+4*len(present), 1024)
	out[4] = major
	out[5] = minor
	out[6] = heapFlags(sizes)
	out[7] = 1
	format.PutU64(out, 8, valid)
	format.PutU64(out, 16, sortedMask(view.TablesSorted(), valid, ch))
	off := format.TablesHeaderSize
	for _, id := range present {
		format.PutU32(out, off, sizes.RowCounts[id])
		off += 4
	}

	var err error
	for _, id := range present {
		out, err = emitTable(out, view, ch, rm, id, sizes, patch)
		if err != nil {
			return nil, err
		}
	}
	for len(out)%format.StreamAlignment != 0 {
		out = append(out, 0)
	}
	return out, nil
}

// emitTable appends every final row of one table. Three sources feed it:
// wholesale replacements encode as given, logged tables walk final slots
// through the RID remapper picking the operation row or the surviving
// original per slot, untouched tables re-encode their original rows (the
// output widths may differ even when the rows did not change).
func emitTable(dst []byte, view *cil.View, ch *changes.AssemblyChanges, rm *remap.IndexRemapper, id cil.TableID, sizes *cil.SizeSet, patch *rowPatcher) ([]byte, error) {
	if m, ok := ch.TableIfPresent(id); ok && m.HasModifications() {
		if m.IsReplaced() {
			for i, row := range m.ReplacedRows() {
				if row == nil {
					return nil, fmt.Errorf("writer: %s replacement row %d is nil", id, i+1)
				}
				cols := cil.RowColumns(row)
				if err := patch.apply(id, cols, false, rm); err != nil {
					return nil, err
				}
				var err error
				dst, err = cil.EncodeRowColumns(id, cols, sizes, dst)
				if err != nil {
					return nil, err
				}
			}
			return dst, nil
		}

		rr := rm.TableRemapper(id)
		if rr == nil {
			return nil, fmt.Errorf("writer: %s has operations but no remapper", id)
		}
		// Chronological replay: the map holds what the last operation per
		// RID left behind, which is the same resolution validation applied.
		effective := make(map[uint32]cil.Row)
		for _, op := range m.History() {
			switch op.Kind {
			case oplog.OpInsert, oplog.OpUpdate:
				effective[op.RID] = op.Row
			case oplog.OpDelete:
				delete(effective, op.RID)
			}
		}
		for final := uint32(1); final <= rr.FinalCount(); final++ {
			orig, ok := rr.ReverseLookup(final)
			if !ok {
				return nil, fmt.Errorf("writer: %s final row %d has no source", id, final)
			}
			var cols []uint32
			fromLog := false
			if row, found := effective[orig]; found {
				cols = cil.RowColumns(row)
				fromLog = true
			} else {
				var err error
				cols, err = view.RowColumnsOf(id, orig)
				if err != nil {
					return nil, fmt.Errorf("writer: %s row %d: %w", id, orig, err)
				}
			}
			if err := patch.apply(id, cols, !fromLog, rm); err != nil {
				return nil, err
			}
			var err error
			dst, err = cil.EncodeRowColumns(id, cols, sizes, dst)
			if err != nil {
				return nil, err
			}
		}
		return dst, nil
	}

	for rid := uint32(1); rid <= view.TableRowCount(id); rid++ {
		cols, err := view.RowColumnsOf(id, rid)
		if err != nil {
			return nil, fmt.Errorf("writer: %s row %d: %w", id, rid, err)
		}
		if err := patch.apply(id, cols, true, rm); err != nil {
			return nil, err
		}
		dst, err = cil.EncodeRowColumns(id, cols, sizes, dst)
		if err != nil {
			return nil, err
		}
	}
	return dst, nil
}

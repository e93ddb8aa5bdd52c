package remap

import (
	"strings"

	"github.com/pmikstacki/cilkit/cil"
	"github.com/pmikstacki/cilkit/cil/changes"
	"github.com/pmikstacki/cilkit/internal/format"
)

// IndexRemapper carries the final-assignment state for one change set:
// a RidRemapper per modified table, and the heap offset moves produced
// when the appended runs were compacted. Build it, then apply it once.
type IndexRemapper struct {
	tables map[cil.TableID]*RidRemapper

	strings     map[uint32]uint32
	blobs       map[uint32]uint32
	guids       map[uint32]uint32
	userStrings map[uint32]uint32
}

// BuildFromChanges derives a remapper from the change set without
// mutating it. Sparse tables get a remapper built from their operation
// log; wholesale-replaced tables get an identity remapper over the
// replacement row count, since their RIDs are already 1..len.
func BuildFromChanges(ch *changes.AssemblyChanges) *IndexRemapper {
	r := &IndexRemapper{tables: make(map[cil.TableID]*RidRemapper)}
	for _, id := range ch.ModifiedTables() {
		m, ok := ch.TableIfPresent(id)
		if !ok || !m.HasModifications() {
			continue
		}
		if m.IsReplaced() {
			r.tables[id] = NewRidRemapper(uint32(len(m.ReplacedRows())))
			continue
		}
		r.tables[id] = BuildRidRemapper(m.History(), m.OriginalCount())
	}
	return r
}

// ApplyToChanges rewrites the change set to final space, in place.
// Each changed heap's appended run is compacted first, which drops
// appended entries that were removed again and records where the
// survivors moved. Every row payload in every table log is then passed
// through the column rewrite: heap indices follow the compaction moves,
// RID and coded-index columns follow their target table's remapper.
// Stored method bodies get their ldstr tokens rewritten to the
// compacted #US offsets. Operation target RIDs stay in session space;
// the writer interprets them against the original table.
//
// Indices with no recorded move pass through unchanged. That covers
// untouched originals, which are final already, and dangling references
// to deleted rows, which validation rejects before this step runs.
func (r *IndexRemapper) ApplyToChanges(ch *changes.AssemblyChanges) {
	if ch.Strings().HasChanges() {
		r.strings = ch.Strings().CompactAppended()
	}
	if ch.Blobs().HasChanges() {
		r.blobs = ch.Blobs().CompactAppended()
	}
	if ch.GUIDs().HasChanges() {
		r.guids = ch.GUIDs().CompactAppended()
	}
	if ch.UserStrings().HasChanges() {
		r.userStrings = ch.UserStrings().CompactAppended()
	}
	for _, id := range ch.ModifiedTables() {
		m, ok := ch.TableIfPresent(id)
		if !ok || !m.HasModifications() {
			continue
		}
		m.RewriteRows(r.rewriteRow)
	}
	if len(r.userStrings) > 0 {
		for _, rva := range ch.MethodBodyPlaceholders() {
			if body, ok := ch.MethodBody(rva); ok {
				format.PatchLdstrTokens(body, func(idx uint32) (uint32, bool) {
					mapped, ok := r.userStrings[idx]
					return mapped, ok && mapped != idx
				})
			}
		}
	}
}

// rewriteRow maps every index-bearing column of one row. Rows whose
// columns all stay put come back untouched.
func (r *IndexRemapper) rewriteRow(row cil.Row) cil.Row {
	table := row.Table()
	schema, ok := cil.SchemaOf(table)
	if !ok {
		return row
	}
	cols := cil.RowColumns(row)
	moved := false
	for i, col := range schema.Cols {
		if v, ok := r.rewriteColumn(col, cols[i]); ok {
			cols[i] = v
			moved = true
		}
	}
	if !moved {
		return row
	}
	out, err := cil.RowFromColumns(table, cols)
	if err != nil {
		return row
	}
	return out
}

// rewriteColumn returns the final value for one column and whether it
// moved. Zero is the null index in every column family and never maps.
func (r *IndexRemapper) rewriteColumn(col cil.Column, v uint32) (uint32, bool) {
	if v == 0 {
		return v, false
	}
	switch col.Kind {
	case cil.ColString:
		if mapped, ok := r.strings[v]; ok && mapped != v {
			return mapped, true
		}
	case cil.ColBlob:
		if mapped, ok := r.blobs[v]; ok && mapped != v {
			return mapped, true
		}
	case cil.ColGUID:
		if mapped, ok := r.guids[v]; ok && mapped != v {
			return mapped, true
		}
	case cil.ColRID:
		rr := r.tables[col.Target]
		if rr == nil {
			break
		}
		if strings.HasSuffix(col.Name, "List") {
			if mapped := rr.MapListStart(v); mapped != v {
				return mapped, true
			}
			break
		}
		if mapped, ok := rr.Map(v); ok && mapped != v {
			return mapped, true
		}
	case cil.ColCoded:
		tok := cil.Token(v)
		if rr := r.tables[tok.Table()]; rr != nil {
			if mapped, ok := rr.Map(tok.RID()); ok && mapped != tok.RID() {
				return uint32(cil.NewToken(tok.Table(), mapped)), true
			}
		}
	}
	return v, false
}

// TableRemapper returns the remapper for one table, nil when the table
// was not modified this session.
func (r *IndexRemapper) TableRemapper(id cil.TableID) *RidRemapper {
	return r.tables[id]
}

// MapRID returns the final RID for a session RID in the given table.
// Untouched tables are identity for any RID.
func (r *IndexRemapper) MapRID(id cil.TableID, rid uint32) (uint32, bool) {
	if rr := r.tables[id]; rr != nil {
		return rr.Map(rid)
	}
	return rid, rid != 0
}

// MapStringIndex returns the final #Strings offset for a session
// offset. Offsets that did not move map to themselves.
func (r *IndexRemapper) MapStringIndex(index uint32) uint32 {
	if mapped, ok := r.strings[index]; ok {
		return mapped
	}
	return index
}

// MapBlobIndex returns the final #Blob offset for a session offset.
func (r *IndexRemapper) MapBlobIndex(index uint32) uint32 {
	if mapped, ok := r.blobs[index]; ok {
		return mapped
	}
	return index
}

// MapGUIDIndex returns the final #GUID slot for a session slot.
func (r *IndexRemapper) MapGUIDIndex(slot uint32) uint32 {
	if mapped, ok := r.guids[slot]; ok {
		return mapped
	}
	return slot
}

// MapUserStringIndex returns the final #US offset for a session offset.
// Table columns never hold #US indices; the moves matter to IL ldstr
// tokens, which ApplyToChanges rewrites in stored method bodies.
func (r *IndexRemapper) MapUserStringIndex(index uint32) uint32 {
	if mapped, ok := r.userStrings[index]; ok {
		return mapped
	}
	return index
}

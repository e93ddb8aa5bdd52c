package verify

import (
	"fmt"
	"sort"

	"github.com/pmikstacki/cilkit/cil"
	"github.com/pmikstacki/cilkit/cil/changes"
	"github.com/pmikstacki/cilkit/cil/oplog"
)

// RowSource is the read side the scanner needs from an assembly view:
// original row counts and original row columns. *cil.View satisfies
// it.
type RowSource interface {
	TableRowCount(cil.TableID) uint32
	RowColumnsOf(cil.TableID, uint32) ([]uint32, error)
}

// Scanner resolves rows, tokens, and heap indices against the final
// session state: the view's original metadata with the pending changes
// layered on top. Construction walks every live row once and builds
// reverse reference maps, so removal-safety queries are lookups.
//
// Rows the session rewrote are scanned with their latest payload;
// untouched rows are scanned straight off the view. User string
// references live in IL method bodies, which the scanner does not
// decode, so the #US heap has row-level validity but no reverse map.
type Scanner struct {
	view    RowSource
	changes *changes.AssemblyChanges

	rowRefs    map[cil.Token]map[cil.Token]struct{}
	stringRefs map[uint32]map[cil.Token]struct{}
	blobRefs   map[uint32]map[cil.Token]struct{}
	guidRefs   map[uint32]map[cil.Token]struct{}
}

// NewScanner analyzes view with ch applied and returns a scanner over
// the combined state.
func NewScanner(view RowSource, ch *changes.AssemblyChanges) (*Scanner, error) {
	s := &Scanner{
		view:       view,
		changes:    ch,
		rowRefs:    make(map[cil.Token]map[cil.Token]struct{}),
		stringRefs: make(map[uint32]map[cil.Token]struct{}),
		blobRefs:   make(map[uint32]map[cil.Token]struct{}),
		guidRefs:   make(map[uint32]map[cil.Token]struct{}),
	}
	for _, id := range cil.AllTableIDs() {
		if err := s.scanTable(id); err != nil {
			return nil, fmt.Errorf("verify: scanning %s: %w", id, err)
		}
	}
	return s, nil
}

func (s *Scanner) scanTable(id cil.TableID) error {
	schema, ok := cil.SchemaOf(id)
	if !ok || len(schema.Cols) == 0 {
		return nil
	}

	m, modified := s.changes.TableIfPresent(id)
	if !modified {
		for rid := uint32(1); rid <= s.view.TableRowCount(id); rid++ {
			cols, err := s.view.RowColumnsOf(id, rid)
			if err != nil {
				return err
			}
			s.scanRow(schema, cil.NewToken(id, rid), cols)
		}
		return nil
	}

	if m.IsReplaced() {
		for i, row := range m.ReplacedRows() {
			s.scanRow(schema, cil.NewToken(id, uint32(i)+1), cil.RowColumns(row))
		}
		return nil
	}

	latest := sessionPayloads(m)
	scan := func(rid uint32) error {
		if !m.HasRow(rid) {
			return nil
		}
		if row, ok := latest[rid]; ok {
			s.scanRow(schema, cil.NewToken(id, rid), cil.RowColumns(row))
			return nil
		}
		cols, err := s.view.RowColumnsOf(id, rid)
		if err != nil {
			return err
		}
		s.scanRow(schema, cil.NewToken(id, rid), cols)
		return nil
	}
	for rid := uint32(1); rid <= m.OriginalCount(); rid++ {
		if err := scan(rid); err != nil {
			return err
		}
	}
	for rid := range latest {
		if rid > m.OriginalCount() {
			if err := scan(rid); err != nil {
				return err
			}
		}
	}
	return nil
}

// sessionPayloads resolves the log to each RID's latest written row.
// A delete clears the entry; a later update puts its payload back,
// matching the revival the log itself applies.
func sessionPayloads(m *oplog.TableModifications) map[uint32]cil.Row {
	latest := make(map[uint32]cil.Row)
	for _, op := range m.History() {
		switch op.Kind {
		case oplog.OpInsert, oplog.OpUpdate:
			if op.Row != nil {
				latest[op.RID] = op.Row
			}
		case oplog.OpDelete:
			delete(latest, op.RID)
		}
	}
	return latest
}

func (s *Scanner) scanRow(schema cil.Schema, from cil.Token, cols []uint32) {
	for i, col := range schema.Cols {
		if i >= len(cols) {
			return
		}
		v := cols[i]
		if v == 0 {
			continue
		}
		switch col.Kind {
		case cil.ColString:
			addRef(s.stringRefs, v, from)
		case cil.ColGUID:
			addRef(s.guidRefs, v, from)
		case cil.ColBlob:
			addRef(s.blobRefs, v, from)
		case cil.ColRID:
			s.addRowRef(from, cil.NewToken(col.Target, v))
		case cil.ColCoded:
			if tok := cil.Token(v); !tok.IsNull() {
				s.addRowRef(from, tok)
			}
		}
	}
}

func (s *Scanner) addRowRef(from, to cil.Token) {
	if from == to {
		return
	}
	set := s.rowRefs[to]
	if set == nil {
		set = make(map[cil.Token]struct{})
		s.rowRefs[to] = set
	}
	set[from] = struct{}{}
}

func addRef(refs map[uint32]map[cil.Token]struct{}, index uint32, from cil.Token) {
	set := refs[index]
	if set == nil {
		set = make(map[cil.Token]struct{})
		refs[index] = set
	}
	set[from] = struct{}{}
}

// RowExists reports whether (table, rid) resolves to a row in the
// final state.
func (s *Scanner) RowExists(table cil.TableID, rid uint32) bool {
	if rid == 0 {
		return false
	}
	if m, ok := s.changes.TableIfPresent(table); ok {
		return m.HasRow(rid)
	}
	return rid <= s.view.TableRowCount(table)
}

// TokenExists reports whether the token names a row in the final
// state. The null token does not exist.
func (s *Scanner) TokenExists(tok cil.Token) bool {
	if tok.IsNull() {
		return false
	}
	return s.RowExists(tok.Table(), tok.RID())
}

// FinalRowCount returns the table's highest valid RID in the final
// state. For a sparse log this is one below the next insert RID, which
// counts gaps left by out-of-order inserts as addressable.
func (s *Scanner) FinalRowCount(table cil.TableID) uint32 {
	if m, ok := s.changes.TableIfPresent(table); ok {
		return m.NextRID() - 1
	}
	return s.view.TableRowCount(table)
}

// StringIndexValid reports whether a #Strings index resolves in the
// final state: inside the original or appended extent and not removed.
// Index 0 is the empty string and always valid.
func (s *Scanner) StringIndexValid(index uint32) bool {
	t := s.changes.Strings()
	if index == 0 {
		return true
	}
	return index < t.NextIndex() && !t.IsRemoved(index)
}

// BlobIndexValid reports whether a #Blob index resolves in the final
// state. Index 0 is the empty blob and always valid.
func (s *Scanner) BlobIndexValid(index uint32) bool {
	t := s.changes.Blobs()
	if index == 0 {
		return true
	}
	return index < t.NextIndex() && !t.IsRemoved(index)
}

// GUIDIndexValid reports whether a #GUID slot resolves in the final
// state. Slot 0 is the null GUID reference and always valid.
func (s *Scanner) GUIDIndexValid(slot uint32) bool {
	t := s.changes.GUIDs()
	if slot == 0 {
		return true
	}
	return slot < t.NextIndex() && !t.IsRemoved(slot)
}

// UserStringIndexValid reports whether a #US offset resolves in the
// final state. Offset 0 is the empty user string and always valid.
func (s *Scanner) UserStringIndexValid(index uint32) bool {
	t := s.changes.UserStrings()
	if index == 0 {
		return true
	}
	return index < t.NextIndex() && !t.IsRemoved(index)
}

// ReferencesTo returns the rows whose columns reference tok, in token
// order.
func (s *Scanner) ReferencesTo(tok cil.Token) []cil.Token {
	return sortedTokens(s.rowRefs[tok])
}

// CanDelete reports whether no live row references tok.
func (s *Scanner) CanDelete(tok cil.Token) bool {
	return len(s.rowRefs[tok]) == 0
}

// StringReferences returns the rows referencing a #Strings index.
func (s *Scanner) StringReferences(index uint32) []cil.Token {
	return sortedTokens(s.stringRefs[index])
}

// BlobReferences returns the rows referencing a #Blob index.
func (s *Scanner) BlobReferences(index uint32) []cil.Token {
	return sortedTokens(s.blobRefs[index])
}

// GUIDReferences returns the rows referencing a #GUID slot.
func (s *Scanner) GUIDReferences(slot uint32) []cil.Token {
	return sortedTokens(s.guidRefs[slot])
}

func sortedTokens(set map[cil.Token]struct{}) []cil.Token {
	if len(set) == 0 {
		return nil
	}
	out := make([]cil.Token, 0, len(set))
	for tok := range set {
		out = append(out, tok)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

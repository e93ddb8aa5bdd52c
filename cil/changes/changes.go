package changes

import (
	"sort"

	"github.com/pmikstacki/cilkit/cil"
	"github.com/pmikstacki/cilkit/cil/heaps"
	"github.com/pmikstacki/cilkit/cil/oplog"
)

// MethodBodyPlaceholderBase is the first placeholder RVA handed out by
// AddMethodBody. Real code never lives this high in an image, so any
// MethodDef RVA at or above this value refers to a stored body.
const MethodBodyPlaceholderBase uint32 = 0xF0000000

// AssemblyChanges accumulates every pending edit against one assembly:
// heap appends and modifications, per-table operation logs, native
// import/export registrations, and method bodies awaiting real RVAs.
type AssemblyChanges struct {
	strings     *heaps.StringChanges
	blobs       *heaps.BlobChanges
	guids       *heaps.GUIDChanges
	userStrings *heaps.UserStringChanges

	tables       map[cil.TableID]*oplog.TableModifications
	originalRows [cil.MaxTableID + 1]uint32

	imports *NativeImports
	exports *NativeExports

	methodBodies    map[uint32][]byte
	nextPlaceholder uint32
}

// ViewSeed is the read surface NewFromView snapshots: heap content
// sizes and original table row counts. *cil.View satisfies it.
type ViewSeed interface {
	StringsSize() uint32
	BlobSize() uint32
	GUIDCount() uint32
	UserStringsSize() uint32
	TableRowCount(cil.TableID) uint32
}

// NewFromView creates a change set seeded with the view's heap content
// sizes and table row counts, so appended indices and inserted RIDs
// continue where the original data ends.
func NewFromView(v ViewSeed) *AssemblyChanges {
	c := &AssemblyChanges{
		strings:     heaps.NewStringChanges(v.StringsSize()),
		blobs:       heaps.NewBlobChanges(v.BlobSize()),
		guids:       heaps.NewGUIDChanges(v.GUIDCount()),
		userStrings: heaps.NewUserStringChanges(v.UserStringsSize()),

		tables:  make(map[cil.TableID]*oplog.TableModifications),
		imports: NewNativeImports(),
		exports: NewNativeExports(""),

		methodBodies:    make(map[uint32][]byte),
		nextPlaceholder: MethodBodyPlaceholderBase,
	}
	for _, t := range cil.AllTableIDs() {
		c.originalRows[t] = v.TableRowCount(t)
	}
	return c
}

// NewEmpty creates a change set backed by no original data. Heaps start
// with the mandatory null slot only and every table starts at zero rows.
func NewEmpty() *AssemblyChanges {
	return &AssemblyChanges{
		strings:     heaps.NewStringChanges(1),
		blobs:       heaps.NewBlobChanges(1),
		guids:       heaps.NewGUIDChanges(0),
		userStrings: heaps.NewUserStringChanges(1),

		tables:  make(map[cil.TableID]*oplog.TableModifications),
		imports: NewNativeImports(),
		exports: NewNativeExports(""),

		methodBodies:    make(map[uint32][]byte),
		nextPlaceholder: MethodBodyPlaceholderBase,
	}
}

// Strings returns the #Strings heap tracker.
func (c *AssemblyChanges) Strings() *heaps.StringChanges { return c.strings }

// Blobs returns the #Blob heap tracker.
func (c *AssemblyChanges) Blobs() *heaps.BlobChanges { return c.blobs }

// GUIDs returns the #GUID heap tracker.
func (c *AssemblyChanges) GUIDs() *heaps.GUIDChanges { return c.guids }

// UserStrings returns the #US heap tracker.
func (c *AssemblyChanges) UserStrings() *heaps.UserStringChanges { return c.userStrings }

// Imports returns the native import registrations.
func (c *AssemblyChanges) Imports() *NativeImports { return c.imports }

// Exports returns the native export registrations.
func (c *AssemblyChanges) Exports() *NativeExports { return c.exports }

// Table returns the operation log for a table, creating an empty sparse
// log seeded with the original row count on first use.
func (c *AssemblyChanges) Table(id cil.TableID) *oplog.TableModifications {
	if m, ok := c.tables[id]; ok {
		return m
	}
	m := oplog.NewSparse(id, c.OriginalRowCount(id))
	c.tables[id] = m
	return m
}

// TableIfPresent returns the operation log for a table without creating
// one. Read-side consumers use this to avoid polluting the change set
// with empty logs.
func (c *AssemblyChanges) TableIfPresent(id cil.TableID) (*oplog.TableModifications, bool) {
	m, ok := c.tables[id]
	return m, ok
}

// ReplaceTable discards any logged operations for the table and installs
// a wholesale replacement row set.
func (c *AssemblyChanges) ReplaceTable(id cil.TableID, rows []cil.Row) {
	if m, ok := c.tables[id]; ok {
		m.Replace(rows)
		return
	}
	c.tables[id] = oplog.NewReplaced(id, rows)
}

// ModifiedTables returns the ids of every table with a log, ascending.
func (c *AssemblyChanges) ModifiedTables() []cil.TableID {
	ids := make([]cil.TableID, 0, len(c.tables))
	for id := range c.tables {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// OriginalRowCount returns the table's row count captured at
// construction, zero for tables absent from the original.
func (c *AssemblyChanges) OriginalRowCount(id cil.TableID) uint32 {
	if int(id) >= len(c.originalRows) {
		return 0
	}
	return c.originalRows[id]
}

// AddMethodBody stores a complete method body (header, IL, exception
// clauses) and returns its placeholder RVA. Placeholders are sequential
// IDs resolved to real RVAs when the writer lays out the code section.
func (c *AssemblyChanges) AddMethodBody(body []byte) uint32 {
	rva := c.nextPlaceholder
	c.methodBodies[rva] = append([]byte(nil), body...)
	c.nextPlaceholder++
	return rva
}

// MethodBody returns the stored body for a placeholder RVA.
func (c *AssemblyChanges) MethodBody(rva uint32) ([]byte, bool) {
	b, ok := c.methodBodies[rva]
	return b, ok
}

// MethodBodyPlaceholders returns every allocated placeholder RVA in
// ascending order, which is also storage order.
func (c *AssemblyChanges) MethodBodyPlaceholders() []uint32 {
	rvas := make([]uint32, 0, len(c.methodBodies))
	for rva := range c.methodBodies {
		rvas = append(rvas, rva)
	}
	sort.Slice(rvas, func(i, j int) bool { return rvas[i] < rvas[j] })
	return rvas
}

// MethodBodyCount returns the number of stored method bodies.
func (c *AssemblyChanges) MethodBodyCount() int { return len(c.methodBodies) }

// MethodBodiesTotalSize returns the byte size of the stored bodies with
// each body aligned to a 4-byte boundary, the layout the writer uses
// when sizing the code section.
func (c *AssemblyChanges) MethodBodiesTotalSize() uint32 {
	var total uint32
	for _, body := range c.methodBodies {
		total += (uint32(len(body)) + 3) &^ 3
	}
	return total
}

// IsMethodBodyPlaceholder reports whether rva is a placeholder managed
// by this change set.
func (c *AssemblyChanges) IsMethodBodyPlaceholder(rva uint32) bool {
	if rva < MethodBodyPlaceholderBase {
		return false
	}
	_, ok := c.methodBodies[rva]
	return ok
}

// HasChanges reports whether any edit of any kind has been recorded.
func (c *AssemblyChanges) HasChanges() bool {
	if c.strings.HasChanges() || c.blobs.HasChanges() || c.guids.HasChanges() || c.userStrings.HasChanges() {
		return true
	}
	for _, m := range c.tables {
		if m.HasModifications() {
			return true
		}
	}
	return !c.imports.IsEmpty() || !c.exports.IsEmpty() || len(c.methodBodies) > 0
}

package builder

import (
	"bytes"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"github.com/pmikstacki/cilkit/cil"
	"github.com/pmikstacki/cilkit/cil/assembly"
	"github.com/pmikstacki/cilkit/cil/oplog"
	"github.com/pmikstacki/cilkit/pkg/types"
)

// Context coordinates a building session over one owned Assembly. It keeps
// a next-RID counter per table in step with the operation log, reuses
// session-added strings and blobs through a content hash index, and encodes
// structured signatures into the blob heap.
//
// Like the assembly it wraps, a Context is not safe for concurrent use.
type Context struct {
	asm *assembly.Assembly
	enc SignatureEncoder

	nextRIDs  map[cil.TableID]uint32
	strIndex  map[uint64][]uint32
	blobIndex map[uint64][]uint32

	done bool
}

// NewContext wraps asm for a building session. RID tracking is seeded from
// the tables present in the source image; tables the image never declared
// start at RID 1 on their first insert.
func NewContext(asm *assembly.Assembly) *Context {
	return NewContextWithEncoder(asm, DefaultSignatureEncoder{})
}

// NewContextWithEncoder is NewContext with a caller-supplied signature
// encoder. A nil encoder falls back to the default.
func NewContextWithEncoder(asm *assembly.Assembly, enc SignatureEncoder) *Context {
	if enc == nil {
		enc = DefaultSignatureEncoder{}
	}
	c := &Context{
		asm:       asm,
		enc:       enc,
		nextRIDs:  make(map[cil.TableID]uint32),
		strIndex:  make(map[uint64][]uint32),
		blobIndex: make(map[uint64][]uint32),
	}
	for _, id := range cil.AllTableIDs() {
		if asm.View().TablePresent(id) {
			c.nextRIDs[id] = asm.OriginalTableRowCount(id) + 1
		}
	}
	return c
}

// Finish ends the building session and hands the assembly back for
// validation and writing. Every later call on the context fails with
// types.ErrSessionClosed.
func (c *Context) Finish() *assembly.Assembly {
	a := c.asm
	c.asm = nil
	c.done = true
	return a
}

func (c *Context) guard() error {
	if c.done {
		return types.ErrSessionClosed
	}
	return nil
}

// StringAdd appends value to the #Strings heap and returns its index.
func (c *Context) StringAdd(value string) (uint32, error) {
	if err := c.guard(); err != nil {
		return 0, err
	}
	return c.asm.StringAdd(value), nil
}

// StringGetOrAdd returns the index of a string already appended in this
// session when one matches exactly, appending value otherwise. Only session
// additions are consulted; the original heap is never deduplicated against.
func (c *Context) StringGetOrAdd(value string) (uint32, error) {
	if err := c.guard(); err != nil {
		return 0, err
	}
	strs := c.asm.Changes().Strings()
	sum := xxhash.Sum64String(value)
	for _, idx := range c.strIndex[sum] {
		if strs.IsRemoved(idx) {
			continue
		}
		if got, ok := strs.AppendedAt(idx); ok && got == value {
			return idx, nil
		}
	}
	idx := c.asm.StringAdd(value)
	c.strIndex[sum] = append(c.strIndex[sum], idx)
	return idx, nil
}

// StringUpdate replaces the string at index.
func (c *Context) StringUpdate(index uint32, value string) error {
	if err := c.guard(); err != nil {
		return err
	}
	return c.asm.StringUpdate(index, value)
}

// StringRemove removes the string at index under the given strategy.
func (c *Context) StringRemove(index uint32, strategy types.RefStrategy) error {
	if err := c.guard(); err != nil {
		return err
	}
	return c.asm.StringRemove(index, strategy)
}

// BlobAdd appends data to the #Blob heap and returns its index.
func (c *Context) BlobAdd(data []byte) (uint32, error) {
	if err := c.guard(); err != nil {
		return 0, err
	}
	return c.asm.BlobAdd(data), nil
}

// BlobGetOrAdd returns the index of a blob already appended in this session
// when one matches byte for byte, appending data otherwise.
func (c *Context) BlobGetOrAdd(data []byte) (uint32, error) {
	if err := c.guard(); err != nil {
		return 0, err
	}
	blobs := c.asm.Changes().Blobs()
	sum := xxhash.Sum64(data)
	for _, idx := range c.blobIndex[sum] {
		if blobs.IsRemoved(idx) {
			continue
		}
		if got, ok := blobs.AppendedAt(idx); ok && bytes.Equal(got, data) {
			return idx, nil
		}
	}
	idx := c.asm.BlobAdd(data)
	c.blobIndex[sum] = append(c.blobIndex[sum], idx)
	return idx, nil
}

// BlobUpdate replaces the blob at index.
func (c *Context) BlobUpdate(index uint32, data []byte) error {
	if err := c.guard(); err != nil {
		return err
	}
	return c.asm.BlobUpdate(index, data)
}

// BlobRemove removes the blob at index under the given strategy.
func (c *Context) BlobRemove(index uint32, strategy types.RefStrategy) error {
	if err := c.guard(); err != nil {
		return err
	}
	return c.asm.BlobRemove(index, strategy)
}

// GUIDAdd stores id in the #GUID heap and returns its 1-based slot.
func (c *Context) GUIDAdd(id uuid.UUID) (uint32, error) {
	if err := c.guard(); err != nil {
		return 0, err
	}
	return c.asm.GUIDAdd([16]byte(id)), nil
}

// GUIDUpdate replaces the GUID at slot.
func (c *Context) GUIDUpdate(slot uint32, id uuid.UUID) error {
	if err := c.guard(); err != nil {
		return err
	}
	return c.asm.GUIDUpdate(slot, [16]byte(id))
}

// GUIDRemove removes the GUID at slot under the given strategy.
func (c *Context) GUIDRemove(slot uint32, strategy types.RefStrategy) error {
	if err := c.guard(); err != nil {
		return err
	}
	return c.asm.GUIDRemove(slot, strategy)
}

// NewMVID generates a fresh module version id, stores it in the #GUID heap
// and returns the slot together with the generated value.
func (c *Context) NewMVID() (uint32, uuid.UUID, error) {
	if err := c.guard(); err != nil {
		return 0, uuid.UUID{}, err
	}
	id := uuid.New()
	return c.asm.GUIDAdd([16]byte(id)), id, nil
}

// UserStringAdd appends value to the #US heap and returns its index.
func (c *Context) UserStringAdd(value string) (uint32, error) {
	if err := c.guard(); err != nil {
		return 0, err
	}
	return c.asm.UserStringAdd(value), nil
}

// UserStringUpdate replaces the user string at index.
func (c *Context) UserStringUpdate(index uint32, value string) error {
	if err := c.guard(); err != nil {
		return err
	}
	return c.asm.UserStringUpdate(index, value)
}

// UserStringRemove removes the user string at index under the given strategy.
func (c *Context) UserStringRemove(index uint32, strategy types.RefStrategy) error {
	if err := c.guard(); err != nil {
		return err
	}
	return c.asm.UserStringRemove(index, strategy)
}

// TableRowAdd assigns the next RID in id, inserts row there and returns the
// minted token, keeping the context's RID tracking in step with the log.
func (c *Context) TableRowAdd(id cil.TableID, row cil.Row) (cil.Token, error) {
	if err := c.guard(); err != nil {
		return 0, err
	}
	rid, tok, err := c.asm.TableRowAdd(id, row)
	if err != nil {
		return 0, err
	}
	c.nextRIDs[id] = rid + 1
	return tok, nil
}

// TableRowUpdate replaces the payload of an existing row.
func (c *Context) TableRowUpdate(id cil.TableID, rid uint32, row cil.Row) error {
	if err := c.guard(); err != nil {
		return err
	}
	return c.asm.TableRowUpdate(id, rid, row)
}

// TableRowRemove deletes a row under the given strategy.
func (c *Context) TableRowRemove(id cil.TableID, rid uint32, strategy types.RefStrategy) error {
	if err := c.guard(); err != nil {
		return err
	}
	return c.asm.TableRowRemove(id, rid, strategy)
}

// NextRID reports the RID the next insert into id will receive, 1 for a
// table with no original rows and no session inserts.
func (c *Context) NextRID(id cil.TableID) uint32 {
	if rid, ok := c.nextRIDs[id]; ok {
		return rid
	}
	return 1
}

// FindAssemblyRefByName scans the AssemblyRef table, original rows and
// session inserts alike, for the first live row whose resolved name equals
// name. The comparison is case sensitive. The result is the row's RID
// wrapped for use in ResolutionScope and Implementation coded columns.
func (c *Context) FindAssemblyRefByName(name string) (cil.CodedIndex, bool) {
	if c.done {
		return cil.CodedIndex{}, false
	}
	orig := c.asm.OriginalTableRowCount(cil.TableAssemblyRef)
	m, tracked := c.asm.Changes().TableIfPresent(cil.TableAssemblyRef)

	last := orig
	if tracked {
		last = m.NextRID() - 1
	}
	for rid := uint32(1); rid <= last; rid++ {
		if tracked && !m.IsReplaced() && m.IsDeleted(rid) {
			continue
		}
		ar, ok := c.assemblyRefAt(m, tracked, orig, rid)
		if !ok {
			continue
		}
		if got, ok := c.resolveString(ar.Name); ok && got == name {
			return cil.CodedIndex{Table: cil.TableAssemblyRef, RID: rid}, true
		}
	}
	return cil.CodedIndex{}, false
}

// FindCoreLibraryRef locates the core library AssemblyRef, trying
// "mscorlib", "System.Runtime" and "System.Private.CoreLib" in that order.
func (c *Context) FindCoreLibraryRef() (cil.CodedIndex, bool) {
	for _, name := range []string{"mscorlib", "System.Runtime", "System.Private.CoreLib"} {
		if ci, ok := c.FindAssemblyRefByName(name); ok {
			return ci, true
		}
	}
	return cil.CodedIndex{}, false
}

// assemblyRefAt resolves the current payload of AssemblyRef rid, preferring
// session payloads over the original image.
func (c *Context) assemblyRefAt(m *oplog.TableModifications, tracked bool, orig, rid uint32) (cil.AssemblyRefRow, bool) {
	if tracked {
		if m.IsReplaced() {
			rows := m.ReplacedRows()
			if rid == 0 || rid > uint32(len(rows)) {
				return cil.AssemblyRefRow{}, false
			}
			ar, ok := rows[rid-1].(cil.AssemblyRefRow)
			return ar, ok
		}
		var latest cil.Row
		for _, op := range m.History() {
			if op.RID != rid || op.Row == nil {
				continue
			}
			latest = op.Row
		}
		if latest != nil {
			ar, ok := latest.(cil.AssemblyRefRow)
			return ar, ok
		}
	}
	if rid == 0 || rid > orig {
		return cil.AssemblyRefRow{}, false
	}
	r, err := c.asm.View().Row(cil.NewToken(cil.TableAssemblyRef, rid))
	if err != nil {
		return cil.AssemblyRefRow{}, false
	}
	ar, ok := r.(cil.AssemblyRefRow)
	return ar, ok
}

// resolveString reads a #Strings index through the session's world: a
// pending modification wins, then session appends, then the replacement
// heap when one was installed, then the original heap.
func (c *Context) resolveString(idx uint32) (string, bool) {
	strs := c.asm.Changes().Strings()
	if strs.IsRemoved(idx) {
		return "", false
	}
	if v, ok := strs.Modification(idx); ok {
		return v, true
	}
	if v, ok := strs.AppendedAt(idx); ok {
		return v, true
	}
	if raw, ok := strs.Replacement(); ok {
		if idx >= uint32(len(raw)) {
			return "", false
		}
		end := bytes.IndexByte(raw[idx:], 0)
		if end < 0 {
			return "", false
		}
		return string(raw[idx : idx+uint32(end)]), true
	}
	v, err := c.asm.View().String(idx)
	if err != nil {
		return "", false
	}
	return v, true
}

// AddMethodSignature encodes sig and stores it in the blob heap.
func (c *Context) AddMethodSignature(sig MethodSig) (uint32, error) {
	if err := c.guard(); err != nil {
		return 0, err
	}
	data, err := c.enc.EncodeMethod(sig)
	if err != nil {
		return 0, err
	}
	return c.asm.BlobAdd(data), nil
}

// AddFieldSignature encodes sig and stores it in the blob heap.
func (c *Context) AddFieldSignature(sig FieldSig) (uint32, error) {
	if err := c.guard(); err != nil {
		return 0, err
	}
	data, err := c.enc.EncodeField(sig)
	if err != nil {
		return 0, err
	}
	return c.asm.BlobAdd(data), nil
}

// AddPropertySignature encodes sig and stores it in the blob heap.
func (c *Context) AddPropertySignature(sig PropertySig) (uint32, error) {
	if err := c.guard(); err != nil {
		return 0, err
	}
	data, err := c.enc.EncodeProperty(sig)
	if err != nil {
		return 0, err
	}
	return c.asm.BlobAdd(data), nil
}

// AddLocalVarSignature encodes sig and stores it in the blob heap.
func (c *Context) AddLocalVarSignature(sig LocalVarSig) (uint32, error) {
	if err := c.guard(); err != nil {
		return 0, err
	}
	data, err := c.enc.EncodeLocalVars(sig)
	if err != nil {
		return 0, err
	}
	return c.asm.BlobAdd(data), nil
}

// AddMethodBody stores an encoded method body and returns its placeholder
// RVA, resolved to a real RVA at write time.
func (c *Context) AddMethodBody(body []byte) (uint32, error) {
	if err := c.guard(); err != nil {
		return 0, err
	}
	return c.asm.AddMethodBody(body), nil
}

// AddNativeImport registers a named function import from dll.
func (c *Context) AddNativeImport(dll, function string) error {
	if err := c.guard(); err != nil {
		return err
	}
	return c.asm.AddNativeImport(dll, function)
}

// AddNativeImportByOrdinal registers an ordinal function import from dll.
func (c *Context) AddNativeImportByOrdinal(dll string, ordinal uint16) error {
	if err := c.guard(); err != nil {
		return err
	}
	return c.asm.AddNativeImportByOrdinal(dll, ordinal)
}

// AddNativeExport registers a named function export.
func (c *Context) AddNativeExport(name string, ordinal uint16, address uint32) error {
	if err := c.guard(); err != nil {
		return err
	}
	return c.asm.AddNativeExport(name, ordinal, address)
}

// AddNativeExportByOrdinal registers an ordinal-only function export.
func (c *Context) AddNativeExportByOrdinal(ordinal uint16, address uint32) error {
	if err := c.guard(); err != nil {
		return err
	}
	return c.asm.AddNativeExportByOrdinal(ordinal, address)
}

// AddNativeExportForwarder registers an export forwarded to another DLL.
func (c *Context) AddNativeExportForwarder(name string, ordinal uint16, target string) error {
	if err := c.guard(); err != nil {
		return err
	}
	return c.asm.AddNativeExportForwarder(name, ordinal, target)
}

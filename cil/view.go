package cil

import (
	"fmt"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/pmikstacki/cilkit/internal/format"
	"github.com/pmikstacki/cilkit/pkg/types"
)

// ViewOptions controls construction tradeoffs for a View.
type ViewOptions struct {
	// RowCacheItems bounds the decoded-row cache. Zero selects the default;
	// negative disables caching.
	RowCacheItems int64
}

// DefaultViewOptions returns the standard options.
func DefaultViewOptions() ViewOptions {
	return ViewOptions{RowCacheItems: 4096}
}

// View is the immutable parsed representation of one .NET assembly image.
// It exposes original row counts, heap lookups and decoded rows, and is never
// mutated after construction, so any number of readers may share it without
// synchronization for the lifetime of an editing session.
type View struct {
	data   []byte
	closer func() error

	pe      *PEInfo
	meta    *metadataInfo
	tables  *tablesInfo
	sizes   *SizeSet
	metaOff int

	strings []byte
	blob    []byte
	guid    []byte
	us      []byte

	stringsSize uint32
	usSize      uint32

	rows *ristretto.Cache[uint32, Row]
}

// Open parses the assembly at path. On platforms with mmap support the file
// is mapped read-only; Close releases the mapping.
func Open(path string) (*View, error) {
	return OpenWithOptions(path, DefaultViewOptions())
}

// OpenWithOptions is Open with explicit options.
func OpenWithOptions(path string, opts ViewOptions) (*View, error) {
	data, closer, err := loadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cil: open %s: %w", path, err)
	}
	v, err := newView(data, opts)
	if err != nil {
		if closer != nil {
			_ = closer()
		}
		return nil, err
	}
	v.closer = closer
	return v, nil
}

// FromBytes parses an in-memory assembly image. The View aliases data; the
// caller must not mutate it while the View is in use.
func FromBytes(data []byte) (*View, error) {
	return newView(data, DefaultViewOptions())
}

// FromBytesWithOptions is FromBytes with explicit options.
func FromBytesWithOptions(data []byte, opts ViewOptions) (*View, error) {
	return newView(data, opts)
}

func newView(data []byte, opts ViewOptions) (*View, error) {
	pe, err := parsePE(data)
	if err != nil {
		return nil, err
	}
	metaOff, ok := pe.RVAToOffset(pe.MetadataRVA)
	if !ok || metaOff+int(pe.MetadataSize) > len(data) {
		return nil, fmt.Errorf("cil: metadata directory out of bounds: %w", types.ErrCorrupt)
	}
	meta, err := parseMetadataRoot(data, metaOff)
	if err != nil {
		return nil, err
	}

	tablesHdr, ok := meta.stream(format.StreamTables)
	if !ok {
		tablesHdr, ok = meta.stream(format.StreamTablesUncompact)
	}
	if !ok {
		return nil, fmt.Errorf("cil: missing tables stream: %w", types.ErrCorrupt)
	}
	tables, err := parseTables(data, metaOff+int(tablesHdr.Offset), tablesHdr.Size)
	if err != nil {
		return nil, err
	}

	v := &View{
		data:    data,
		pe:      pe,
		meta:    meta,
		tables:  tables,
		sizes:   tables.sizeSet(),
		metaOff: metaOff,
	}
	v.strings = v.streamBytes(format.StreamStrings)
	v.blob = v.streamBytes(format.StreamBlob)
	v.guid = v.streamBytes(format.StreamGUID)
	v.us = v.streamBytes(format.StreamUS)
	v.stringsSize = contentScanSize(v.strings)
	v.usSize = contentScanSize(v.us)

	if opts.RowCacheItems == 0 {
		opts.RowCacheItems = DefaultViewOptions().RowCacheItems
	}
	if opts.RowCacheItems > 0 {
		cache, err := ristretto.NewCache(&ristretto.Config[uint32, Row]{
			NumCounters: opts.RowCacheItems * 10,
			MaxCost:     opts.RowCacheItems,
			BufferItems: 64,
		})
		if err != nil {
			return nil, fmt.Errorf("cil: row cache: %w", err)
		}
		v.rows = cache
	}
	return v, nil
}

func (v *View) streamBytes(name string) []byte {
	s, ok := v.meta.stream(name)
	if !ok {
		return nil
	}
	start := v.metaOff + int(s.Offset)
	return v.data[start : start+int(s.Size)]
}

// contentScanSize measures a null-terminated heap's logical size: trailing
// zero padding beyond the last entry's terminator is not part of the heap.
// An empty or absent heap still occupies one byte (the mandatory leading
// null), so the minimum is 1.
func contentScanSize(b []byte) uint32 {
	end := len(b)
	for end > 0 && b[end-1] == 0 {
		end--
	}
	if end == 0 {
		return 1
	}
	return uint32(end + 1)
}

// Close releases the row cache and, when the View was opened from a file,
// the underlying mapping. Heap slices returned earlier are invalid after
// Close.
func (v *View) Close() error {
	if v.rows != nil {
		v.rows.Close()
		v.rows = nil
	}
	if v.closer != nil {
		err := v.closer()
		v.closer = nil
		return err
	}
	return nil
}

// Bytes returns the raw image. Callers must treat it as read-only.
func (v *View) Bytes() []byte { return v.data }

// PE returns the parsed container facts.
func (v *View) PE() *PEInfo { return v.pe }

// Version returns the metadata root version string, e.g. "v4.0.30319".
func (v *View) Version() string { return v.meta.version }

// Streams lists the metadata stream directory in file order.
func (v *View) Streams() []StreamHeader {
	out := make([]StreamHeader, len(v.meta.streams))
	copy(out, v.meta.streams)
	return out
}

// TablePresent reports whether the table has a nonzero row count in the
// original image.
func (v *View) TablePresent(t TableID) bool {
	return t.Valid() && v.tables.rowCounts[t] > 0
}

// TableRowCount returns the original row count, 0 when the table is absent.
func (v *View) TableRowCount(t TableID) uint32 {
	if !t.Valid() {
		return 0
	}
	return v.tables.rowCounts[t]
}

// TablesSorted returns the original #~ sorted bitvector.
func (v *View) TablesSorted() uint64 { return v.tables.sorted }

// TablesVersion returns the original #~ header's schema version pair.
func (v *View) TablesVersion() (major, minor uint8) {
	return v.tables.majorVersion, v.tables.minorVersion
}

// MetadataOffset returns the file offset of the metadata root.
func (v *View) MetadataOffset() int { return v.metaOff }

// Sizes returns a copy of the original width-deciding quantities.
func (v *View) Sizes() SizeSet { return *v.sizes }

// RawRow returns the undecoded bytes of one row.
func (v *View) RawRow(t TableID, rid uint32) ([]byte, error) {
	if rid == 0 || rid > v.TableRowCount(t) {
		return nil, fmt.Errorf("cil: %s row %d: %w", t, rid, types.ErrNotFound)
	}
	w := v.sizes.RowWidth(t)
	off := v.tables.tableOff[t] + int(rid-1)*w
	return v.data[off : off+w], nil
}

// RowColumnsOf decodes one row into logical column values.
func (v *View) RowColumnsOf(t TableID, rid uint32) ([]uint32, error) {
	raw, err := v.RawRow(t, rid)
	if err != nil {
		return nil, err
	}
	cols, _, err := DecodeRowColumns(t, raw, 0, v.sizes)
	return cols, err
}

// Row decodes the row a token names into its typed form. Decodes are cached;
// the cache is safe for concurrent readers.
func (v *View) Row(tok Token) (Row, error) {
	if v.rows != nil {
		if row, ok := v.rows.Get(uint32(tok)); ok {
			return row, nil
		}
	}
	cols, err := v.RowColumnsOf(tok.Table(), tok.RID())
	if err != nil {
		return nil, err
	}
	row, err := RowFromColumns(tok.Table(), cols)
	if err != nil {
		return nil, err
	}
	if v.rows != nil {
		v.rows.Set(uint32(tok), row, 1)
	}
	return row, nil
}

// String resolves a #Strings index. Index 0 is the empty string.
func (v *View) String(idx uint32) (string, error) {
	if idx == 0 {
		return "", nil
	}
	if int(idx) >= len(v.strings) {
		return "", fmt.Errorf("cil: string index %d out of range: %w", idx, types.ErrNotFound)
	}
	end := int(idx)
	for end < len(v.strings) && v.strings[end] != 0 {
		end++
	}
	return string(v.strings[idx:end]), nil
}

// Blob resolves a #Blob index to its payload bytes. Index 0 is the empty
// blob. The returned slice aliases the image; callers must not modify it.
func (v *View) Blob(idx uint32) ([]byte, error) {
	if idx == 0 {
		return nil, nil
	}
	if int(idx) >= len(v.blob) {
		return nil, fmt.Errorf("cil: blob index %d out of range: %w", idx, types.ErrNotFound)
	}
	n, sz, err := format.ReadCompressedUint(v.blob, int(idx))
	if err != nil {
		return nil, fmt.Errorf("cil: blob index %d: %w", idx, err)
	}
	start := int(idx) + sz
	if start+int(n) > len(v.blob) {
		return nil, fmt.Errorf("cil: blob index %d: %w", idx, format.ErrTruncated)
	}
	return v.blob[start : start+int(n)], nil
}

// GUID resolves a 1-based #GUID slot.
func (v *View) GUID(slot uint32) ([16]byte, error) {
	var g [16]byte
	if slot == 0 || int(slot)*format.GUIDSize > len(v.guid) {
		return g, fmt.Errorf("cil: guid slot %d: %w", slot, types.ErrNotFound)
	}
	copy(g[:], v.guid[(slot-1)*format.GUIDSize:])
	return g, nil
}

// UserString resolves a #US index. Index 0 is the empty string.
func (v *View) UserString(idx uint32) (string, error) {
	if idx == 0 {
		return "", nil
	}
	if int(idx) >= len(v.us) {
		return "", fmt.Errorf("cil: user string index %d out of range: %w", idx, types.ErrNotFound)
	}
	n, sz, err := format.ReadCompressedUint(v.us, int(idx))
	if err != nil {
		return "", fmt.Errorf("cil: user string index %d: %w", idx, err)
	}
	start := int(idx) + sz
	if start+int(n) > len(v.us) {
		return "", fmt.Errorf("cil: user string index %d: %w", idx, format.ErrTruncated)
	}
	if n == 0 {
		return "", nil
	}
	// The prefix covers the UTF-16 payload plus one terminal flag byte.
	return format.DecodeUTF16LE(v.us[start : start+int(n)-1])
}

// StringsSize returns the original #Strings heap's logical size, scanned to
// the end of actual content.
func (v *View) StringsSize() uint32 { return v.stringsSize }

// BlobSize returns the original #Blob heap size.
func (v *View) BlobSize() uint32 {
	if len(v.blob) == 0 {
		return 1
	}
	return uint32(len(v.blob))
}

// GUIDCount returns the number of original #GUID slots.
func (v *View) GUIDCount() uint32 {
	return uint32(len(v.guid) / format.GUIDSize)
}

// UserStringsSize returns the original #US heap's logical size, scanned to
// the end of actual content.
func (v *View) UserStringsSize() uint32 { return v.usSize }

// StringsBytes returns the raw original #Strings stream.
func (v *View) StringsBytes() []byte { return v.strings }

// BlobBytes returns the raw original #Blob stream.
func (v *View) BlobBytes() []byte { return v.blob }

// GUIDBytes returns the raw original #GUID stream.
func (v *View) GUIDBytes() []byte { return v.guid }

// UserStringsBytes returns the raw original #US stream.
func (v *View) UserStringsBytes() []byte { return v.us }

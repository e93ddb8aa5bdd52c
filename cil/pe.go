package cil

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/pmikstacki/cilkit/internal/format"
	"github.com/pmikstacki/cilkit/pkg/types"
)

// Section is one entry of the PE section table.
type Section struct {
	Name            string
	VirtualSize     uint32
	VirtualAddress  uint32
	SizeOfRawData   uint32
	PointerToRawData uint32
	Characteristics uint32
}

// PEInfo captures the container-level facts the editing pipeline needs:
// where things live, how they are aligned, and where the CLI metadata starts.
// The writer reuses all of it when appending a section and repointing
// directories.
type PEInfo struct {
	PE32Plus         bool
	NumberOfSections int
	SectionAlignment uint32
	FileAlignment    uint32
	SizeOfImage      uint32
	SizeOfHeaders    uint32
	ImageBase        uint64
	Sections         []Section

	// File offsets used for header patching.
	CoffHeaderOff    int
	OptionalHeaderOff int
	OptionalHeaderSize int
	SectionTableOff  int
	DataDirectoryOff int
	NumberOfDirs     uint32

	// CLI (Cor20) header location and contents.
	CLIHeaderRVA  uint32
	CLIHeaderSize uint32
	Cor20Off      int
	MetadataRVA   uint32
	MetadataSize  uint32
	Cor20Flags    uint32
	EntryPoint    uint32
}

// RVAToOffset translates a relative virtual address to a file offset using
// the section table. Addresses inside the header region map identically.
func (p *PEInfo) RVAToOffset(rva uint32) (int, bool) {
	if rva < p.SizeOfHeaders {
		return int(rva), true
	}
	for _, s := range p.Sections {
		size := s.VirtualSize
		if s.SizeOfRawData > size {
			size = s.SizeOfRawData
		}
		if rva >= s.VirtualAddress && rva < s.VirtualAddress+size {
			return int(s.PointerToRawData + (rva - s.VirtualAddress)), true
		}
	}
	return 0, false
}

// parsePE walks the DOS header, COFF header, optional header, section table
// and CLI data directory. Every offset is bounds-checked before use; a PE
// that fails any check surfaces as ErrNotPE or ErrNotDotNet rather than a
// panic.
func parsePE(data []byte) (*PEInfo, error) {
	if len(data) < format.ELfanewOffset+4 || !bytes.Equal(data[:2], format.MZSignature) {
		return nil, types.ErrNotPE
	}
	peOff := int(format.ReadU32(data, format.ELfanewOffset))
	if peOff+4+format.CoffHeaderSize > len(data) || !bytes.Equal(data[peOff:peOff+4], format.PESignature) {
		return nil, types.ErrNotPE
	}

	coffOff := peOff + 4
	numSections := int(format.ReadU16(data, coffOff+2))
	optSize := int(format.ReadU16(data, coffOff+16))
	optOff := coffOff + format.CoffHeaderSize
	if optOff+optSize > len(data) || optSize < 96 {
		return nil, types.ErrNotPE
	}

	info := &PEInfo{
		NumberOfSections:   numSections,
		CoffHeaderOff:      coffOff,
		OptionalHeaderOff:  optOff,
		OptionalHeaderSize: optSize,
		SectionTableOff:    optOff + optSize,
	}

	switch format.ReadU16(data, optOff) {
	case format.OptMagicPE32:
		info.PE32Plus = false
		info.ImageBase = uint64(format.ReadU32(data, optOff+28))
		info.DataDirectoryOff = optOff + 96
		info.NumberOfDirs = format.ReadU32(data, optOff+92)
	case format.OptMagicPE32Plus:
		info.PE32Plus = true
		info.ImageBase = format.ReadU64(data, optOff+24)
		info.DataDirectoryOff = optOff + 112
		info.NumberOfDirs = format.ReadU32(data, optOff+108)
	default:
		return nil, types.ErrNotPE
	}
	info.SectionAlignment = format.ReadU32(data, optOff+32)
	info.FileAlignment = format.ReadU32(data, optOff+36)
	info.SizeOfImage = format.ReadU32(data, optOff+56)
	info.SizeOfHeaders = format.ReadU32(data, optOff+60)

	secOff := info.SectionTableOff
	if secOff+numSections*format.SectionHeaderSize > len(data) {
		return nil, types.ErrNotPE
	}
	for i := 0; i < numSections; i++ {
		off := secOff + i*format.SectionHeaderSize
		name := strings.TrimRight(string(data[off:off+format.SectionNameSize]), "\x00")
		info.Sections = append(info.Sections, Section{
			Name:             name,
			VirtualSize:      format.ReadU32(data, off+8),
			VirtualAddress:   format.ReadU32(data, off+12),
			SizeOfRawData:    format.ReadU32(data, off+16),
			PointerToRawData: format.ReadU32(data, off+20),
			Characteristics:  format.ReadU32(data, off+36),
		})
	}

	if info.NumberOfDirs <= format.DataDirCLI {
		return nil, types.ErrNotDotNet
	}
	cliDirOff := info.DataDirectoryOff + format.DataDirCLI*8
	info.CLIHeaderRVA = format.ReadU32(data, cliDirOff)
	info.CLIHeaderSize = format.ReadU32(data, cliDirOff+4)
	if info.CLIHeaderRVA == 0 {
		return nil, types.ErrNotDotNet
	}

	cor20Off, ok := info.RVAToOffset(info.CLIHeaderRVA)
	if !ok || cor20Off+format.Cor20HeaderSize > len(data) {
		return nil, types.ErrNotDotNet
	}
	info.Cor20Off = cor20Off
	info.MetadataRVA = format.ReadU32(data, cor20Off+8)
	info.MetadataSize = format.ReadU32(data, cor20Off+12)
	info.Cor20Flags = format.ReadU32(data, cor20Off+16)
	info.EntryPoint = format.ReadU32(data, cor20Off+20)
	if info.MetadataRVA == 0 {
		return nil, types.ErrNotDotNet
	}
	return info, nil
}

// StreamHeader locates one metadata stream relative to the metadata root.
type StreamHeader struct {
	Name   string
	Offset uint32
	Size   uint32
}

// metadataInfo is the parsed metadata root: version string plus the stream
// directory.
type metadataInfo struct {
	rootOff int
	version string
	streams []StreamHeader
}

func (m *metadataInfo) stream(name string) (StreamHeader, bool) {
	for _, s := range m.streams {
		if s.Name == name {
			return s, true
		}
	}
	return StreamHeader{}, false
}

// parseMetadataRoot reads the BSJB root at rootOff and the stream headers
// that follow the version string.
func parseMetadataRoot(data []byte, rootOff int) (*metadataInfo, error) {
	if rootOff+format.MetadataRootMinSize > len(data) {
		return nil, fmt.Errorf("cil: metadata root: %w", format.ErrTruncated)
	}
	if !bytes.Equal(data[rootOff:rootOff+4], format.BSJBSignature) {
		return nil, fmt.Errorf("cil: metadata root: %w", format.ErrSignatureMismatch)
	}
	verLen := int(format.ReadU32(data, rootOff+12))
	if verLen < 0 || rootOff+16+verLen+4 > len(data) {
		return nil, fmt.Errorf("cil: metadata version: %w", format.ErrTruncated)
	}
	version := strings.TrimRight(string(data[rootOff+16:rootOff+16+verLen]), "\x00")

	pos := rootOff + 16 + verLen
	streamCount := int(format.ReadU16(data, pos+2))
	pos += 4

	info := &metadataInfo{rootOff: rootOff, version: version}
	for i := 0; i < streamCount; i++ {
		if pos+8 > len(data) {
			return nil, fmt.Errorf("cil: stream header %d: %w", i, format.ErrTruncated)
		}
		off := format.ReadU32(data, pos)
		size := format.ReadU32(data, pos+4)
		pos += 8
		nameStart := pos
		for pos < len(data) && data[pos] != 0 {
			pos++
		}
		if pos >= len(data) {
			return nil, fmt.Errorf("cil: stream name %d: %w", i, format.ErrTruncated)
		}
		name := string(data[nameStart:pos])
		// Names pad with nulls to the next 4-byte boundary, terminator included.
		pos = nameStart + format.Align4(pos-nameStart+1)

		if int(off)+int(size) > len(data)-rootOff {
			return nil, fmt.Errorf("cil: stream %q exceeds metadata: %w", name, format.ErrTruncated)
		}
		info.streams = append(info.streams, StreamHeader{Name: name, Offset: off, Size: size})
	}
	return info, nil
}

// tablesInfo is the parsed #~ stream header plus the computed file offset of
// each present table's row block.
type tablesInfo struct {
	majorVersion uint8
	minorVersion uint8
	heapSizes    uint8
	valid        uint64
	sorted       uint64
	rowCounts    [MaxTableID + 1]uint32
	tableOff     [MaxTableID + 1]int
}

// parseTables reads the #~ header at tablesOff and lays out per-table row
// offsets using the original row counts and heap-size flags.
func parseTables(data []byte, tablesOff int, streamSize uint32) (*tablesInfo, error) {
	if tablesOff+format.TablesHeaderSize > len(data) {
		return nil, fmt.Errorf("cil: tables stream: %w", format.ErrTruncated)
	}
	t := &tablesInfo{
		majorVersion: data[tablesOff+4],
		minorVersion: data[tablesOff+5],
		heapSizes:    data[tablesOff+6],
		valid:        format.ReadU64(data, tablesOff+8),
		sorted:       format.ReadU64(data, tablesOff+16),
	}

	pos := tablesOff + format.TablesHeaderSize
	for id := TableID(0); id <= MaxTableID; id++ {
		if t.valid&(1<<uint(id)) == 0 {
			continue
		}
		if !id.Valid() {
			return nil, fmt.Errorf("cil: valid bitvector names undefined table 0x%02X", uint8(id))
		}
		if pos+4 > len(data) {
			return nil, fmt.Errorf("cil: row counts: %w", format.ErrTruncated)
		}
		t.rowCounts[id] = format.ReadU32(data, pos)
		pos += 4
	}

	sizes := t.sizeSet()
	for id := TableID(0); id <= MaxTableID; id++ {
		if t.rowCounts[id] == 0 {
			continue
		}
		t.tableOff[id] = pos
		pos += int(t.rowCounts[id]) * sizes.RowWidth(id)
	}
	if pos > tablesOff+int(streamSize) || pos > len(data) {
		return nil, fmt.Errorf("cil: table rows: %w", format.ErrTruncated)
	}
	return t, nil
}

// sizeSet derives the width-deciding quantities from the parsed header.
func (t *tablesInfo) sizeSet() *SizeSet {
	s := &SizeSet{
		BigStrings: t.heapSizes&format.HeapSizeStrings != 0,
		BigGUID:    t.heapSizes&format.HeapSizeGUID != 0,
		BigBlob:    t.heapSizes&format.HeapSizeBlob != 0,
	}
	s.RowCounts = t.rowCounts
	return s
}

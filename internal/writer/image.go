package writer

import (
	"fmt"

	"github.com/pmikstacki/cilkit/cil"
	"github.com/pmikstacki/cilkit/internal/format"
	"github.com/pmikstacki/cilkit/pkg/types"
)

const (
	sectionName            = ".meta"
	sectionCharacteristics = 0x40000040 // INITIALIZED_DATA | MEM_READ
)

// sectionPlan places the one section the writer appends. Everything the
// rebuild produces, the Cor20 header included, lives inside it.
type sectionPlan struct {
	va          uint32
	fileOff     uint32
	virtualSize uint32
	rawSize     uint32
}

// planSection finds room for one more section table entry and the next free
// virtual and file addresses. The section table must have 40 spare bytes
// before SizeOfHeaders ends; images built with zero header slack cannot be
// extended without relocating every section, which this writer does not do.
func planSection(pe *cil.PEInfo, origLen, contentSize int) (sectionPlan, error) {
	tableEnd := pe.SectionTableOff + (pe.NumberOfSections+1)*format.SectionHeaderSize
	if tableEnd > int(pe.SizeOfHeaders) {
		return sectionPlan{}, &types.Error{
			Kind: types.ErrKindCapacity,
			Msg:  fmt.Sprintf("no room for a section header: table would end at 0x%X, headers end at 0x%X", tableEnd, pe.SizeOfHeaders),
		}
	}

	va := format.AlignUp(pe.SizeOfHeaders, pe.SectionAlignment)
	for _, s := range pe.Sections {
		vs := s.VirtualSize
		if vs == 0 {
			vs = s.SizeOfRawData
		}
		if end := format.AlignUp(s.VirtualAddress+vs, pe.SectionAlignment); end > va {
			va = end
		}
	}

	// Raw data goes after everything already in the file, overlays
	// included, at the next file-alignment boundary.
	end := uint32(origLen)
	for _, s := range pe.Sections {
		if e := s.PointerToRawData + s.SizeOfRawData; e > end {
			end = e
		}
	}

	return sectionPlan{
		va:          va,
		fileOff:     format.AlignUp(end, pe.FileAlignment),
		virtualSize: uint32(contentSize),
		rawSize:     format.AlignUp(uint32(contentSize), pe.FileAlignment),
	}, nil
}

// directoryPatch rewrites one optional-header data directory entry.
type directoryPatch struct {
	index int
	rva   uint32
	size  uint32
}

// assembleImage builds the output file: the original bytes, the old metadata
// and Cor20 header zeroed out, the new section's content appended, and the
// PE headers patched to describe the grown image.
func assembleImage(original []byte, pe *cil.PEInfo, metaOff int, plan sectionPlan, content []byte, patches []directoryPatch) []byte {
	out := make([]byte, plan.fileOff+plan.rawSize)
	copy(out, original)

	oldMetaEnd := metaOff + int(pe.MetadataSize)
	if oldMetaEnd > len(out) {
		oldMetaEnd = len(out)
	}
	zeroFill(out[metaOff:oldMetaEnd])
	zeroFill(out[pe.Cor20Off : pe.Cor20Off+format.Cor20HeaderSize])

	copy(out[plan.fileOff:], content)

	hdr := pe.SectionTableOff + pe.NumberOfSections*format.SectionHeaderSize
	zeroFill(out[hdr : hdr+format.SectionHeaderSize])
	copy(out[hdr:], sectionName)
	format.PutU32(out, hdr+8, plan.virtualSize)
	format.PutU32(out, hdr+12, plan.va)
	format.PutU32(out, hdr+16, plan.rawSize)
	format.PutU32(out, hdr+20, plan.fileOff)
	format.PutU32(out, hdr+36, sectionCharacteristics)

	format.PutU16(out, pe.CoffHeaderOff+2, uint16(pe.NumberOfSections+1))

	opt := pe.OptionalHeaderOff
	// SizeOfInitializedData grows by the appended raw block; SizeOfImage
	// stretches to cover the new section's virtual span.
	format.PutU32(out, opt+8, format.ReadU32(out, opt+8)+plan.rawSize)
	format.PutU32(out, opt+56, format.AlignUp(plan.va+plan.virtualSize, pe.SectionAlignment))
	// The checksum no longer matches; zero means "not computed".
	format.PutU32(out, opt+64, 0)

	for _, p := range patches {
		off := pe.DataDirectoryOff + p.index*8
		format.PutU32(out, off, p.rva)
		format.PutU32(out, off+4, p.size)
	}
	return out
}

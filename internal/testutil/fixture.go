package testutil

import (
	"github.com/pmikstacki/cilkit/cil"
	"github.com/pmikstacki/cilkit/internal/format"
)

// Seeded #Strings offsets in the minimal assembly image.
const (
	StrTestDLL    uint32 = 1  // "test.dll"
	StrModuleType uint32 = 10 // "<Module>"
	StrWidget     uint32 = 19 // "Widget"
	StrDemo       uint32 = 26 // "Demo"
	StrObject     uint32 = 31 // "Object"
	StrSystem     uint32 = 38 // "System"
	StrRun        uint32 = 45 // "Run"
	StrValueType  uint32 = 49 // "ValueType"
)

const (
	// USHi is the #US offset of the seeded "Hi" literal.
	USHi uint32 = 1

	// BlobMethodSig is the #Blob offset of the seeded parameterless
	// static method signature.
	BlobMethodSig uint32 = 1

	// MetadataVersion is the version string baked into the metadata root.
	MetadataVersion = "v4.0.30319"
)

// BuildMinimalAssembly returns a complete PE32 .NET image small enough to
// reason about byte by byte: one .text section holding a Cor20 header and a
// metadata root with Module, TypeRef (System.Object, System.ValueType),
// TypeDef (<Module>, Demo.Widget) and MethodDef (Widget.Run) rows, plus
// seeded entries in all four heaps. The section table has spare room for
// one more entry, so the image can be rewritten in place by the writer.
func BuildMinimalAssembly() []byte {
	meta := minimalMetadata()
	img := make([]byte, 0x400)

	// DOS header.
	copy(img, "MZ")
	format.PutU32(img, format.ELfanewOffset, 0x80)

	// PE signature and COFF header: one section, PE32 optional header.
	copy(img[0x80:], "PE\x00\x00")
	coff := 0x84
	format.PutU16(img, coff, 0x014C)
	format.PutU16(img, coff+2, 1)
	format.PutU16(img, coff+16, 0x00E0)
	format.PutU16(img, coff+18, 0x2102)

	opt := 0x98
	format.PutU16(img, opt, format.OptMagicPE32)
	img[opt+2] = 8
	format.PutU32(img, opt+4, 0x200)
	format.PutU32(img, opt+8, 0x200)
	format.PutU32(img, opt+20, 0x1000)
	format.PutU32(img, opt+28, 0x00400000)
	format.PutU32(img, opt+32, 0x1000) // section alignment
	format.PutU32(img, opt+36, 0x200)  // file alignment
	format.PutU16(img, opt+40, 4)
	format.PutU16(img, opt+48, 4)
	format.PutU32(img, opt+56, 0x2000) // size of image
	format.PutU32(img, opt+60, 0x200)  // size of headers
	format.PutU16(img, opt+68, 3)
	format.PutU32(img, opt+72, 0x100000)
	format.PutU32(img, opt+76, 0x1000)
	format.PutU32(img, opt+80, 0x100000)
	format.PutU32(img, opt+84, 0x1000)
	format.PutU32(img, opt+92, 16)
	format.PutU32(img, opt+96+format.DataDirCLI*8, 0x1000)
	format.PutU32(img, opt+96+format.DataDirCLI*8+4, format.Cor20HeaderSize)

	// Section table: .text at VA 0x1000, raw data at 0x200.
	sec := 0x178
	copy(img[sec:], ".text")
	format.PutU32(img, sec+8, uint32(format.Cor20HeaderSize+len(meta)))
	format.PutU32(img, sec+12, 0x1000)
	format.PutU32(img, sec+16, 0x200)
	format.PutU32(img, sec+20, 0x200)
	format.PutU32(img, sec+36, 0x60000020)

	// Cor20 header, then the metadata root right behind it.
	text := 0x200
	format.PutU32(img, text, format.Cor20HeaderSize)
	format.PutU16(img, text+4, 2)
	format.PutU16(img, text+6, 5)
	format.PutU32(img, text+8, 0x1048)
	format.PutU32(img, text+12, uint32(len(meta)))
	format.PutU32(img, text+16, 1)
	copy(img[text+format.Cor20HeaderSize:], meta)

	return img
}

func fixtureSizes() *cil.SizeSet {
	s := &cil.SizeSet{}
	s.RowCounts[cil.TableModule] = 1
	s.RowCounts[cil.TableTypeRef] = 2
	s.RowCounts[cil.TableTypeDef] = 2
	s.RowCounts[cil.TableMethodDef] = 1
	return s
}

func mustRow(t cil.TableID, cols []uint32, sizes *cil.SizeSet, dst []byte) []byte {
	out, err := cil.EncodeRowColumns(t, cols, sizes, dst)
	if err != nil {
		panic(err)
	}
	return out
}

func minimalTables() []byte {
	sizes := fixtureSizes()
	present := []cil.TableID{cil.TableModule, cil.TableTypeRef, cil.TableTypeDef, cil.TableMethodDef}

	out := make([]byte, format.TablesHeaderSize, 128)
	out[4] = 2
	out[7] = 1
	var valid uint64
	for _, id := range present {
		valid |= 1 << id
	}
	format.PutU64(out, 8, valid)
	for _, id := range present {
		out = append(out, byte(sizes.RowCounts[id]), 0, 0, 0)
	}

	// Widget extends ValueType (TypeRef 2), leaving TypeRef 1 unreferenced.
	moduleScope := uint32(cil.NewToken(cil.TableModule, 1))
	out = mustRow(cil.TableModule, []uint32{0, StrTestDLL, 1, 0, 0}, sizes, out)
	out = mustRow(cil.TableTypeRef, []uint32{moduleScope, StrObject, StrSystem}, sizes, out)
	out = mustRow(cil.TableTypeRef, []uint32{moduleScope, StrValueType, StrSystem}, sizes, out)
	out = mustRow(cil.TableTypeDef, []uint32{0, StrModuleType, 0, 0, 1, 1}, sizes, out)
	out = mustRow(cil.TableTypeDef, []uint32{
		0x00100001, StrWidget, StrDemo, uint32(cil.NewToken(cil.TableTypeRef, 2)), 1, 1,
	}, sizes, out)
	out = mustRow(cil.TableMethodDef, []uint32{0, 0, 0x0016, StrRun, BlobMethodSig, 1}, sizes, out)

	for len(out)%format.StreamAlignment != 0 {
		out = append(out, 0)
	}
	return out
}

func minimalStrings() []byte {
	out := []byte{0}
	for _, s := range []string{"test.dll", "<Module>", "Widget", "Demo", "Object", "System", "Run", "ValueType"} {
		out = append(out, s...)
		out = append(out, 0)
	}
	for len(out)%format.StreamAlignment != 0 {
		out = append(out, 0)
	}
	return out
}

func minimalMetadata() []byte {
	streams := []struct {
		name string
		data []byte
	}{
		{format.StreamTables, minimalTables()},
		{format.StreamStrings, minimalStrings()},
		// "Hi" as UTF-16LE with its terminal flag byte, then alignment.
		{format.StreamUS, []byte{0x00, 0x05, 0x48, 0x00, 0x69, 0x00, 0x00, 0x00}},
		{format.StreamGUID, []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}},
		// One 3-byte blob: the default static () -> void signature.
		{format.StreamBlob, []byte{0x00, 0x03, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00}},
	}

	verLen := format.Align4(len(MetadataVersion) + 1)
	hdrSize := format.MetadataRootMinSize + verLen + 4
	for _, s := range streams {
		hdrSize += 8 + format.Align4(len(s.name)+1)
	}
	total := hdrSize
	for _, s := range streams {
		total += len(s.data)
	}

	out := make([]byte, total)
	copy(out, format.BSJBSignature)
	format.PutU16(out, 4, 1)
	format.PutU16(out, 6, 1)
	format.PutU32(out, 12, uint32(verLen))
	copy(out[16:], MetadataVersion)
	pos := format.MetadataRootMinSize + verLen
	format.PutU16(out, pos+2, uint16(len(streams)))
	pos += 4

	off := hdrSize
	for _, s := range streams {
		format.PutU32(out, pos, uint32(off))
		format.PutU32(out, pos+4, uint32(len(s.data)))
		pos += 8
		copy(out[pos:], s.name)
		pos += format.Align4(len(s.name) + 1)
		copy(out[off:], s.data)
		off += len(s.data)
	}
	return out
}

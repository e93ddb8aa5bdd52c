// Package format houses low-level codecs for the PE container and the
// ECMA-335 metadata wire formats. The goal is to keep byte-level concerns
// focused and allocation-free where possible, independent from the public
// API so higher-level packages can orchestrate the data in a more ergonomic
// form.
package format

var (
	// MZSignature is the two-byte DOS header magic at offset 0 of every PE file.
	MZSignature = []byte{'M', 'Z'}

	// PESignature is the four-byte signature located at e_lfanew.
	// Layout: 'P' 'E' 0x00 0x00.
	PESignature = []byte{'P', 'E', 0x00, 0x00}

	// BSJBSignature is the metadata root magic ("BSJB", the initials of the
	// original CLR metadata team) at the start of the metadata directory.
	BSJBSignature = []byte{0x42, 0x53, 0x4A, 0x42}
)

const (
	// ELfanewOffset is where the DOS header stores the PE header file offset.
	ELfanewOffset = 0x3C

	// CoffHeaderSize is the size of the COFF file header following the PE
	// signature.
	CoffHeaderSize = 20

	// OptMagicPE32 and OptMagicPE32Plus identify the optional header variant.
	OptMagicPE32     = 0x10B
	OptMagicPE32Plus = 0x20B

	// SectionHeaderSize is the fixed size of one section table entry.
	SectionHeaderSize = 40

	// SectionNameSize is the fixed size of a section name field.
	SectionNameSize = 8

	// DataDirExport, DataDirImport, DataDirCertificate and DataDirCLI index
	// the optional header's data directory array.
	DataDirExport      = 0
	DataDirImport      = 1
	DataDirCertificate = 4
	DataDirCLI         = 14

	// Cor20HeaderSize is the size of the CLI (IMAGE_COR20) header pointed at
	// by the CLI data directory.
	Cor20HeaderSize = 72

	// MetadataRootMinSize covers the fixed metadata root fields before the
	// variable-length version string.
	MetadataRootMinSize = 16

	// TablesHeaderSize is the fixed #~ stream header before the row-count
	// array (reserved, versions, heap-size flags, reserved, valid, sorted).
	TablesHeaderSize = 24
)

// Stream names as they appear in metadata stream headers. The table stream
// appears as "#~" in compressed metadata and "#-" in uncompressed (ENC)
// images; only the compressed form is produced on output.
const (
	StreamTables          = "#~"
	StreamTablesUncompact = "#-"
	StreamStrings         = "#Strings"
	StreamUS              = "#US"
	StreamGUID            = "#GUID"
	StreamBlob            = "#Blob"
)

// Heap-size flag bits in the #~ header. When set, index columns into the
// corresponding heap widen from 2 to 4 bytes.
const (
	HeapSizeStrings = 0x01
	HeapSizeGUID    = 0x02
	HeapSizeBlob    = 0x04
)

const (
	// GUIDSize is the fixed byte size of one #GUID heap slot.
	GUIDSize = 16

	// StreamAlignment is the required alignment for metadata streams and the
	// rows that follow the #~ header.
	StreamAlignment = 4

	// Wide16Limit is the row/offset count at which 2-byte index columns no
	// longer suffice and the writer switches the column to 4 bytes.
	Wide16Limit = 0x10000
)

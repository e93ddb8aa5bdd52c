package writer

import "github.com/pmikstacki/cilkit/internal/format"

// streamEntry is one stream destined for the output stream directory.
type streamEntry struct {
	name string
	data []byte
}

// metadataHeaderSize computes the byte size of the metadata root header plus
// the stream directory for the given version string and stream names.
func metadataHeaderSize(version string, names []string) int {
	size := format.MetadataRootMinSize
	size += format.Align4(len(version) + 1)
	size += 4 // flags + stream count
	for _, n := range names {
		size += 8 + format.Align4(len(n)+1)
	}
	return size
}

// buildMetadataImage assembles the metadata root, stream directory and
// stream data into one contiguous image. Directory offsets are relative to
// the image start; streams pack in order at 4-byte alignment. The recorded
// version length is the padded buffer length, matching how loaders and our
// own parser skip to the directory.
func buildMetadataImage(version string, streams []streamEntry) []byte {
	names := make([]string, len(streams))
	for i, s := range streams {
		names[i] = s.name
	}
	headerSize := metadataHeaderSize(version, names)

	total := headerSize
	offsets := make([]int, len(streams))
	for i, s := range streams {
		offsets[i] = total
		total += format.Align4(len(s.data))
	}

	out := make([]byte, total)
	copy(out, format.BSJBSignature)
	format.PutU16(out, 4, 1)
	format.PutU16(out, 6, 1)
	verLen := format.Align4(len(version) + 1)
	format.PutU32(out, 12, uint32(verLen))
	copy(out[16:], version)

	pos := 16 + verLen
	format.PutU16(out, pos+2, uint16(len(streams)))
	pos += 4
	for i, s := range streams {
		format.PutU32(out, pos, uint32(offsets[i]))
		format.PutU32(out, pos+4, uint32(len(s.data)))
		pos += 8
		copy(out[pos:], s.name)
		pos += format.Align4(len(s.name) + 1)
	}
	for i, s := range streams {
		copy(out[offsets[i]:], s.data)
	}
	return out
}

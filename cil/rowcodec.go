package cil

import (
	"fmt"

	"github.com/pmikstacki/cilkit/internal/format"
)

// Wire codec for table rows. Rows travel through the rest of the system as
// logical column vectors (RowColumns order, coded columns in token form);
// these two functions translate between that shape and the on-disk #~ layout
// under a given SizeSet.

// DecodeRowColumns reads one row of table t at data[off:], returning the
// logical column values and the number of bytes consumed.
func DecodeRowColumns(t TableID, data []byte, off int, sizes *SizeSet) ([]uint32, int, error) {
	schema, ok := SchemaOf(t)
	if !ok {
		return nil, 0, fmt.Errorf("cil: no such table 0x%02X", uint8(t))
	}
	cols := make([]uint32, len(schema.Cols))
	pos := off
	for i, col := range schema.Cols {
		w := sizes.ColumnWidth(col)
		if pos+w > len(data) {
			return nil, 0, fmt.Errorf("cil: %s row truncated at column %s: %w", t, col.Name, format.ErrTruncated)
		}
		var raw uint32
		if w == 2 {
			raw = uint32(format.ReadU16(data, pos))
		} else {
			raw = format.ReadU32(data, pos)
		}
		pos += w

		if col.Kind == ColCoded {
			decoded, err := col.Coded.Decode(raw)
			if err != nil {
				return nil, 0, fmt.Errorf("cil: %s.%s: %w", t, col.Name, err)
			}
			raw = uint32(decoded.Token())
		}
		cols[i] = raw
	}
	return cols, pos - off, nil
}

// EncodeRowColumns appends the wire form of logical columns to dst. Values
// that do not fit their column width surface as errors rather than silent
// truncation.
func EncodeRowColumns(t TableID, cols []uint32, sizes *SizeSet, dst []byte) ([]byte, error) {
	schema, ok := SchemaOf(t)
	if !ok {
		return dst, fmt.Errorf("cil: no such table 0x%02X", uint8(t))
	}
	if len(cols) != len(schema.Cols) {
		return dst, fmt.Errorf("cil: %s row needs %d columns, got %d", t, len(schema.Cols), len(cols))
	}
	for i, col := range schema.Cols {
		v := cols[i]
		if col.Kind == ColCoded {
			encoded, err := col.Coded.Encode(CodedIndexFromToken(Token(v)))
			if err != nil {
				return dst, fmt.Errorf("cil: %s.%s: %w", t, col.Name, err)
			}
			v = encoded
		}
		switch sizes.ColumnWidth(col) {
		case 2:
			if v > 0xFFFF {
				return dst, fmt.Errorf("cil: %s.%s value 0x%X overflows 2-byte column", t, col.Name, v)
			}
			dst = append(dst, byte(v), byte(v>>8))
		case 4:
			dst = append(dst, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
		default:
			return dst, fmt.Errorf("cil: %s.%s has no width", t, col.Name)
		}
	}
	return dst, nil
}

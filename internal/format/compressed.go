package format

// ECMA-335 compressed unsigned integers (partition II, §23.2).
//
// Values below 0x80 take one byte, values below 0x4000 take two bytes with
// the top bit set, and everything up to 0x1FFFFFFF takes four bytes with the
// top two bits set. #Blob and #US entries prefix their payload with one of
// these, so heap index arithmetic depends on the encoded size being computed
// exactly.

const (
	// MaxCompressedUint is the largest representable compressed value
	// (29 usable bits in the 4-byte form).
	MaxCompressedUint = 0x1FFFFFFF

	compressed1ByteMax = 0x7F
	compressed2ByteMax = 0x3FFF
)

// CompressedUintSize returns the number of bytes the compressed encoding of v
// occupies: 1, 2 or 4. Values above MaxCompressedUint are not representable
// and return 0.
func CompressedUintSize(v uint32) int {
	switch {
	case v <= compressed1ByteMax:
		return 1
	case v <= compressed2ByteMax:
		return 2
	case v <= MaxCompressedUint:
		return 4
	default:
		return 0
	}
}

// PutCompressedUint writes the compressed encoding of v at b[off:] and
// returns the number of bytes written. The caller must ensure v is
// representable and the buffer has room; both are programming errors here,
// checked upstream by validation.
func PutCompressedUint(b []byte, off int, v uint32) int {
	switch {
	case v <= compressed1ByteMax:
		b[off] = byte(v)
		return 1
	case v <= compressed2ByteMax:
		b[off] = byte(v>>8) | 0x80
		b[off+1] = byte(v)
		return 2
	default:
		b[off] = byte(v>>24) | 0xC0
		b[off+1] = byte(v >> 16)
		b[off+2] = byte(v >> 8)
		b[off+3] = byte(v)
		return 4
	}
}

// AppendCompressedUint appends the compressed encoding of v to dst.
func AppendCompressedUint(dst []byte, v uint32) []byte {
	switch {
	case v <= compressed1ByteMax:
		return append(dst, byte(v))
	case v <= compressed2ByteMax:
		return append(dst, byte(v>>8)|0x80, byte(v))
	default:
		return append(dst, byte(v>>24)|0xC0, byte(v>>16), byte(v>>8), byte(v))
	}
}

// ReadCompressedUint decodes a compressed unsigned integer at b[off:],
// returning the value and the number of bytes consumed.
func ReadCompressedUint(b []byte, off int) (uint32, int, error) {
	if off >= len(b) {
		return 0, 0, ErrTruncated
	}
	first := b[off]
	switch {
	case first&0x80 == 0:
		return uint32(first), 1, nil
	case first&0xC0 == 0x80:
		if off+2 > len(b) {
			return 0, 0, ErrTruncated
		}
		return uint32(first&0x3F)<<8 | uint32(b[off+1]), 2, nil
	case first&0xE0 == 0xC0:
		if off+4 > len(b) {
			return 0, 0, ErrTruncated
		}
		v := uint32(first&0x1F)<<24 |
			uint32(b[off+1])<<16 |
			uint32(b[off+2])<<8 |
			uint32(b[off+3])
		return v, 4, nil
	default:
		return 0, 0, ErrBadCompressed
	}
}

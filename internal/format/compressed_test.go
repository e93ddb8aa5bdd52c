package format

import (
	"bytes"
	"testing"
)

func TestCompressedUintSize(t *testing.T) {
	tests := []struct {
		v    uint32
		want int
	}{
		{0, 1},
		{0x7F, 1},
		{0x80, 2},
		{0x3FFF, 2},
		{0x4000, 4},
		{MaxCompressedUint, 4},
		{MaxCompressedUint + 1, 0},
		{0xFFFFFFFF, 0},
	}
	for _, tt := range tests {
		if got := CompressedUintSize(tt.v); got != tt.want {
			t.Errorf("CompressedUintSize(0x%X) = %d, want %d", tt.v, got, tt.want)
		}
	}
}

func TestCompressedUintRoundTrip(t *testing.T) {
	values := []uint32{0, 1, 0x03, 0x7F, 0x80, 0x100, 0x3FFF, 0x4000, 0x12345, MaxCompressedUint}
	for _, v := range values {
		buf := make([]byte, 4)
		n := PutCompressedUint(buf, 0, v)
		if n != CompressedUintSize(v) {
			t.Fatalf("PutCompressedUint(0x%X) wrote %d bytes, size says %d", v, n, CompressedUintSize(v))
		}
		got, consumed, err := ReadCompressedUint(buf, 0)
		if err != nil {
			t.Fatalf("ReadCompressedUint(0x%X): %v", v, err)
		}
		if got != v || consumed != n {
			t.Fatalf("round trip 0x%X: got 0x%X (%d bytes)", v, got, consumed)
		}
	}
}

func TestCompressedUintKnownEncodings(t *testing.T) {
	// Worked examples from the standard: 0x03 -> 03, 0x3FFF -> BF FF,
	// 0x4000 -> C0 00 40 00.
	tests := []struct {
		v    uint32
		want []byte
	}{
		{0x03, []byte{0x03}},
		{0x7F, []byte{0x7F}},
		{0x80, []byte{0x80, 0x80}},
		{0x3FFF, []byte{0xBF, 0xFF}},
		{0x4000, []byte{0xC0, 0x00, 0x40, 0x00}},
	}
	for _, tt := range tests {
		got := AppendCompressedUint(nil, tt.v)
		if !bytes.Equal(got, tt.want) {
			t.Errorf("encode 0x%X = % X, want % X", tt.v, got, tt.want)
		}
	}
}

func TestReadCompressedUintTruncated(t *testing.T) {
	if _, _, err := ReadCompressedUint(nil, 0); err != ErrTruncated {
		t.Errorf("empty buffer: got %v, want ErrTruncated", err)
	}
	if _, _, err := ReadCompressedUint([]byte{0x80}, 0); err != ErrTruncated {
		t.Errorf("short 2-byte form: got %v, want ErrTruncated", err)
	}
	if _, _, err := ReadCompressedUint([]byte{0xC0, 0x00}, 0); err != ErrTruncated {
		t.Errorf("short 4-byte form: got %v, want ErrTruncated", err)
	}
}

func TestReadCompressedUintBadLead(t *testing.T) {
	// 0xE0 sets the top three bits, which no valid form uses.
	if _, _, err := ReadCompressedUint([]byte{0xE0, 0, 0, 0}, 0); err != ErrBadCompressed {
		t.Errorf("bad lead byte: got %v, want ErrBadCompressed", err)
	}
}

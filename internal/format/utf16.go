package format

import (
	"golang.org/x/text/encoding/unicode"
)

// #US heap payloads are UTF-16LE on the wire. Transcoding goes through
// x/text so surrogate pairs and invalid sequences are handled consistently
// with the rest of the ecosystem.

var utf16LE = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// EncodeUTF16LE converts a UTF-8 string to UTF-16LE bytes.
func EncodeUTF16LE(s string) ([]byte, error) {
	return utf16LE.NewEncoder().Bytes([]byte(s))
}

// DecodeUTF16LE converts UTF-16LE bytes to a UTF-8 string.
func DecodeUTF16LE(b []byte) (string, error) {
	out, err := utf16LE.NewDecoder().Bytes(b)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// UTF16ByteLen returns the UTF-16 encoded byte length of s without encoding.
// Runes outside the BMP take a surrogate pair (4 bytes), everything else 2.
// Heap index arithmetic uses this measured-at-append size and never
// recomputes it, so later edits cannot shift already-assigned indices.
func UTF16ByteLen(s string) int {
	n := 0
	for _, r := range s {
		if r >= 0x10000 {
			n += 4
		} else {
			n += 2
		}
	}
	return n
}

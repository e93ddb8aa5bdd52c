package writer

import (
	"fmt"
	"sort"

	"github.com/pmikstacki/cilkit/cil"
	"github.com/pmikstacki/cilkit/cil/heaps"
	"github.com/pmikstacki/cilkit/internal/format"
)

// heapImage is one materialized heap: the final stream bytes plus the
// write-time moves. moved records original entries whose modification did
// not fit the allotted space and had to take a fresh index past the
// appended region; the table encoder rewrites index columns through it.
type heapImage struct {
	data  []byte
	moved map[uint32]uint32
}

// move is one entry awaiting relocation to the end of a heap.
type move struct {
	oldIndex uint32
	encoded  []byte
}

// padHeap pads heap bytes to the stream alignment with 0xFF filler, which
// no valid entry starts with.
func padHeap(b []byte) []byte {
	for len(b)%format.StreamAlignment != 0 {
		b = append(b, 0xFF)
	}
	return b
}

func zeroFill(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// appendMoves relocates entries that outgrew their space: each gets the next
// free index at the end of the heap. Assignment runs in ascending old-index
// order so repeated writes of the same change set produce identical bytes.
func appendMoves(data []byte, moves []move, next uint32) ([]byte, map[uint32]uint32) {
	if len(moves) == 0 {
		return data, nil
	}
	sort.Slice(moves, func(i, j int) bool { return moves[i].oldIndex < moves[j].oldIndex })
	moved := make(map[uint32]uint32, len(moves))
	for _, m := range moves {
		moved[m.oldIndex] = next
		data = append(data, m.encoded...)
		next += uint32(len(m.encoded))
	}
	return data, moved
}

// stringEnd scans forward from idx to the entry's null terminator and
// returns the terminator position. Malformed heaps without a terminator
// report the heap end.
func stringEnd(b []byte, idx uint32) uint32 {
	end := idx
	for int(end) < len(b) && b[end] != 0 {
		end++
	}
	return end
}

// materializeStrings produces the final #Strings stream. Original bytes are
// kept in place: removals zero their content, fitting modifications
// overwrite in place, and everything else appends. Assigned indices never
// shift, so rows referencing untouched entries stay valid as written.
func materializeStrings(view *cil.View, ch *heaps.StringChanges) (heapImage, error) {
	if raw, ok := ch.Replacement(); ok {
		return heapImage{data: padHeap(append([]byte(nil), raw...))}, nil
	}

	size := ch.OriginalSize()
	base := view.StringsBytes()
	if uint32(len(base)) > size {
		base = base[:size]
	}
	data := make([]byte, ch.NextIndex(), ch.NextIndex()+64)
	copy(data, base)

	for idx := range ch.Removals() {
		if idx == 0 || idx >= size {
			continue
		}
		zeroFill(data[idx:stringEnd(base, idx)])
	}

	var moves []move
	for idx, val := range ch.Modifications() {
		if idx == 0 || idx >= size || ch.IsRemoved(idx) {
			continue
		}
		end := stringEnd(base, idx)
		if uint32(len(val)) <= end-idx {
			copy(data[idx:], val)
			zeroFill(data[idx+uint32(len(val)) : end])
			continue
		}
		zeroFill(data[idx:end])
		moves = append(moves, move{oldIndex: idx, encoded: append(append([]byte(nil), val...), 0)})
	}

	// Surviving appends land at their assigned indices; removed appends
	// leave their extent zeroed so nothing after them shifts.
	for _, e := range ch.Appended() {
		if ch.IsRemoved(e.Index) {
			continue
		}
		val := e.Value
		if mod, ok := ch.Modification(e.Index); ok {
			if len(mod) > len(e.Value) {
				moves = append(moves, move{oldIndex: e.Index, encoded: append(append([]byte(nil), mod...), 0)})
				continue
			}
			val = mod
		}
		copy(data[e.Index:], val)
	}

	data, moved := appendMoves(data, moves, ch.NextIndex())
	return heapImage{data: padHeap(data), moved: moved}, nil
}

// blobExtent returns the total byte extent (length prefix included) of the
// original blob entry at idx.
func blobExtent(b []byte, idx uint32) (uint32, error) {
	n, sz, err := format.ReadCompressedUint(b, int(idx))
	if err != nil {
		return 0, err
	}
	return uint32(sz) + n, nil
}

func encodeBlob(val []byte) []byte {
	out := format.AppendCompressedUint(nil, uint32(len(val)))
	return append(out, val...)
}

// materializeBlob produces the final #Blob stream with the same in-place
// strategy as #Strings. A zeroed extent reads back as a zero-length blob.
func materializeBlob(view *cil.View, ch *heaps.BlobChanges) (heapImage, error) {
	if raw, ok := ch.Replacement(); ok {
		return heapImage{data: padHeap(append([]byte(nil), raw...))}, nil
	}

	size := ch.OriginalSize()
	base := view.BlobBytes()
	if uint32(len(base)) > size {
		base = base[:size]
	}
	data := make([]byte, ch.NextIndex(), ch.NextIndex()+64)
	copy(data, base)

	for idx := range ch.Removals() {
		if idx == 0 || idx >= size {
			continue
		}
		ext, err := blobExtent(base, idx)
		if err != nil {
			return heapImage{}, fmt.Errorf("writer: #Blob entry %d: %w", idx, err)
		}
		// An entry at the scanned end may claim bytes past the logical
		// size; clamp so the appended region is never touched.
		if idx+ext > size {
			ext = size - idx
		}
		zeroFill(data[idx : idx+ext])
	}

	var moves []move
	for idx, val := range ch.Modifications() {
		if idx == 0 || idx >= size || ch.IsRemoved(idx) {
			continue
		}
		ext, err := blobExtent(base, idx)
		if err != nil {
			return heapImage{}, fmt.Errorf("writer: #Blob entry %d: %w", idx, err)
		}
		if idx+ext > size {
			ext = size - idx
		}
		enc := encodeBlob(val)
		if uint32(len(enc)) <= ext {
			copy(data[idx:], enc)
			zeroFill(data[idx+uint32(len(enc)) : idx+ext])
			continue
		}
		zeroFill(data[idx : idx+ext])
		moves = append(moves, move{oldIndex: idx, encoded: enc})
	}

	for _, e := range ch.Appended() {
		if ch.IsRemoved(e.Index) {
			continue
		}
		ext := uint32(format.CompressedUintSize(uint32(len(e.Value)))) + uint32(len(e.Value))
		val := e.Value
		if mod, ok := ch.Modification(e.Index); ok {
			enc := encodeBlob(mod)
			if uint32(len(enc)) > ext {
				moves = append(moves, move{oldIndex: e.Index, encoded: enc})
				continue
			}
			val = mod
		}
		off := int(e.Index)
		off += format.PutCompressedUint(data, off, uint32(len(val)))
		copy(data[off:], val)
	}

	data, moved := appendMoves(data, moves, ch.NextIndex())
	return heapImage{data: padHeap(data), moved: moved}, nil
}

// materializeGUID produces the final #GUID stream. Slots are fixed 16-byte
// cells, so modifications always fit and nothing ever moves.
func materializeGUID(view *cil.View, ch *heaps.GUIDChanges) (heapImage, error) {
	if raw, ok := ch.Replacement(); ok {
		return heapImage{data: append([]byte(nil), raw...)}, nil
	}

	count := ch.OriginalCount()
	data := make([]byte, (ch.NextIndex()-1)*format.GUIDSize)
	copy(data, view.GUIDBytes())

	for slot := range ch.Removals() {
		if slot == 0 || (slot-1)*format.GUIDSize >= uint32(len(data)) {
			continue
		}
		zeroFill(data[(slot-1)*format.GUIDSize : slot*format.GUIDSize])
	}
	for slot, val := range ch.Modifications() {
		if slot == 0 || slot > count || ch.IsRemoved(slot) {
			continue
		}
		copy(data[(slot-1)*format.GUIDSize:], val[:])
	}
	for _, e := range ch.Appended() {
		if ch.IsRemoved(e.Slot) {
			continue
		}
		val := e.Value
		if mod, ok := ch.Modification(e.Slot); ok {
			val = mod
		}
		copy(data[(e.Slot-1)*format.GUIDSize:], val[:])
	}
	return heapImage{data: data}, nil
}

// usTerminalByte computes the #US entry's trailing flag byte: 1 when any
// UTF-16 code unit needs more than simple ANSI handling, 0 otherwise
// (ECMA-335 II.24.2.4).
func usTerminalByte(utf16 []byte) byte {
	for i := 0; i+1 < len(utf16); i += 2 {
		lo, hi := utf16[i], utf16[i+1]
		if hi != 0 {
			return 1
		}
		switch {
		case lo >= 0x01 && lo <= 0x08,
			lo >= 0x0E && lo <= 0x1F,
			lo == 0x27, lo == 0x2D, lo == 0x7F:
			return 1
		}
	}
	return 0
}

func encodeUserString(val string) ([]byte, error) {
	payload, err := format.EncodeUTF16LE(val)
	if err != nil {
		return nil, err
	}
	payload = append(payload, usTerminalByte(payload))
	out := format.AppendCompressedUint(nil, uint32(len(payload)))
	return append(out, payload...), nil
}

// usExtent returns the total byte extent (length prefix included) of the
// original #US entry at idx.
func usExtent(b []byte, idx uint32) (uint32, error) {
	n, sz, err := format.ReadCompressedUint(b, int(idx))
	if err != nil {
		return 0, err
	}
	return uint32(sz) + n, nil
}

// materializeUserStrings produces the final #US stream. Appended entries
// were sized at append time, so modifications that encode larger relocate
// exactly like outgrown originals.
func materializeUserStrings(view *cil.View, ch *heaps.UserStringChanges) (heapImage, error) {
	if raw, ok := ch.Replacement(); ok {
		return heapImage{data: padHeap(append([]byte(nil), raw...))}, nil
	}

	size := ch.OriginalSize()
	base := view.UserStringsBytes()
	if uint32(len(base)) > size {
		base = base[:size]
	}
	data := make([]byte, ch.NextIndex(), ch.NextIndex()+64)
	copy(data, base)

	for idx := range ch.Removals() {
		if idx == 0 || idx >= size {
			continue
		}
		ext, err := usExtent(base, idx)
		if err != nil {
			return heapImage{}, fmt.Errorf("writer: #US entry %d: %w", idx, err)
		}
		if idx+ext > size {
			ext = size - idx
		}
		zeroFill(data[idx : idx+ext])
	}

	var moves []move
	for idx, val := range ch.Modifications() {
		if idx == 0 || idx >= size || ch.IsRemoved(idx) {
			continue
		}
		ext, err := usExtent(base, idx)
		if err != nil {
			return heapImage{}, fmt.Errorf("writer: #US entry %d: %w", idx, err)
		}
		if idx+ext > size {
			ext = size - idx
		}
		enc, err := encodeUserString(val)
		if err != nil {
			return heapImage{}, fmt.Errorf("writer: #US entry %d: %w", idx, err)
		}
		if uint32(len(enc)) <= ext {
			copy(data[idx:], enc)
			zeroFill(data[idx+uint32(len(enc)) : idx+ext])
			continue
		}
		zeroFill(data[idx : idx+ext])
		moves = append(moves, move{oldIndex: idx, encoded: enc})
	}

	for _, e := range ch.Appended() {
		if ch.IsRemoved(e.Index) {
			continue
		}
		val := e.Value
		if mod, ok := ch.Modification(e.Index); ok {
			val = mod
		}
		enc, err := encodeUserString(val)
		if err != nil {
			return heapImage{}, fmt.Errorf("writer: #US entry %d: %w", e.Index, err)
		}
		if uint32(len(enc)) > e.EncodedSize {
			moves = append(moves, move{oldIndex: e.Index, encoded: enc})
			continue
		}
		copy(data[e.Index:], enc)
	}

	data, moved := appendMoves(data, moves, ch.NextIndex())
	return heapImage{data: padHeap(data), moved: moved}, nil
}

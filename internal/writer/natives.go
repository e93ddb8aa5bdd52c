package writer

import (
	"sort"

	"github.com/pmikstacki/cilkit/cil/changes"
	"github.com/pmikstacki/cilkit/internal/format"
)

const (
	importDescriptorSize = 20
	exportDirectorySize  = 40
)

// serializeImports lays out a complete PE import directory for the
// registered DLLs: descriptor table, lookup and address thunk arrays,
// hint/name entries and DLL name strings. All embedded addresses assume the
// data starts at baseRVA. The returned directory size covers the descriptor
// table, which is what data directory 1 advertises.
func serializeImports(imp *changes.NativeImports, baseRVA uint32, pe32Plus bool) ([]byte, uint32) {
	if imp.IsEmpty() {
		return nil, 0
	}
	thunk := 4
	if pe32Plus {
		thunk = 8
	}
	dlls := imp.DLLs()
	descSize := (len(dlls) + 1) * importDescriptorSize

	iltOffs := make([]int, len(dlls))
	iatOffs := make([]int, len(dlls))
	pos := descSize
	for i, name := range dlls {
		d, _ := imp.Descriptor(name)
		iltOffs[i] = pos
		pos += (len(d.Functions) + 1) * thunk
	}
	for i, name := range dlls {
		d, _ := imp.Descriptor(name)
		iatOffs[i] = pos
		pos += (len(d.Functions) + 1) * thunk
	}
	// Hint/name entries are 2-aligned per the PE spec.
	hintOffs := make([][]int, len(dlls))
	for i, name := range dlls {
		d, _ := imp.Descriptor(name)
		hintOffs[i] = make([]int, len(d.Functions))
		for j, f := range d.Functions {
			if f.Ordinal != 0 {
				continue
			}
			hintOffs[i][j] = pos
			n := 2 + len(f.Name) + 1
			pos += n + (n & 1)
		}
	}
	nameOffs := make([]int, len(dlls))
	for i, name := range dlls {
		nameOffs[i] = pos
		pos += len(name) + 1
	}

	out := make([]byte, pos)
	for i, name := range dlls {
		off := i * importDescriptorSize
		format.PutU32(out, off, baseRVA+uint32(iltOffs[i]))
		format.PutU32(out, off+12, baseRVA+uint32(nameOffs[i]))
		format.PutU32(out, off+16, baseRVA+uint32(iatOffs[i]))

		d, _ := imp.Descriptor(name)
		for j, f := range d.Functions {
			var val uint64
			if f.Ordinal != 0 {
				if pe32Plus {
					val = 1<<63 | uint64(f.Ordinal)
				} else {
					val = 1<<31 | uint64(f.Ordinal)
				}
			} else {
				val = uint64(baseRVA) + uint64(hintOffs[i][j])
			}
			if pe32Plus {
				format.PutU64(out, iltOffs[i]+j*thunk, val)
				format.PutU64(out, iatOffs[i]+j*thunk, val)
			} else {
				format.PutU32(out, iltOffs[i]+j*thunk, uint32(val))
				format.PutU32(out, iatOffs[i]+j*thunk, uint32(val))
			}
			if f.Ordinal == 0 {
				h := hintOffs[i][j]
				format.PutU16(out, h, f.Hint)
				copy(out[h+2:], f.Name)
			}
		}
		copy(out[nameOffs[i]:], name)
	}
	return out, uint32(descSize)
}

// serializeExports lays out a complete PE export directory: header, address
// table, lexically sorted name pointer table with its parallel ordinal
// table, then name and forwarder strings. A forwarder's address table slot
// holds the RVA of its target string; loaders recognize the forward because
// the value falls inside the directory's advertised range, so the returned
// size covers the whole layout.
func serializeExports(exp *changes.NativeExports, baseRVA uint32) ([]byte, uint32) {
	if exp.IsEmpty() {
		return nil, 0
	}
	ords := exp.Ordinals()
	dir := exp.Directory()
	slots := int(ords[len(ords)-1]) - int(dir.BaseOrdinal) + 1

	type namedExport struct {
		name string
		ord  uint16
	}
	var names []namedExport
	for _, ord := range ords {
		if f, ok := exp.Function(ord); ok && f.Name != "" {
			names = append(names, namedExport{f.Name, ord})
		} else if fw, ok := exp.Forwarder(ord); ok && fw.Name != "" {
			names = append(names, namedExport{fw.Name, ord})
		}
	}
	// The loader binary-searches the name table, so bytewise order is
	// required, not optional.
	sort.Slice(names, func(i, j int) bool { return names[i].name < names[j].name })

	eatOff := exportDirectorySize
	entOff := eatOff + slots*4
	ordOff := entOff + len(names)*4
	pos := ordOff + len(names)*2

	dllOff := pos
	pos += len(dir.DLLName) + 1
	nameOffs := make([]int, len(names))
	for i, n := range names {
		nameOffs[i] = pos
		pos += len(n.name) + 1
	}
	fwdOffs := make(map[uint16]int)
	for _, ord := range ords {
		if fw, ok := exp.Forwarder(ord); ok {
			fwdOffs[ord] = pos
			pos += len(fw.Target) + 1
		}
	}

	out := make([]byte, pos)
	format.PutU32(out, 4, dir.Timestamp)
	format.PutU16(out, 8, dir.MajorVersion)
	format.PutU16(out, 10, dir.MinorVersion)
	format.PutU32(out, 12, baseRVA+uint32(dllOff))
	format.PutU32(out, 16, uint32(dir.BaseOrdinal))
	format.PutU32(out, 20, uint32(slots))
	format.PutU32(out, 24, uint32(len(names)))
	format.PutU32(out, 28, baseRVA+uint32(eatOff))
	format.PutU32(out, 32, baseRVA+uint32(entOff))
	format.PutU32(out, 36, baseRVA+uint32(ordOff))

	for _, ord := range ords {
		slot := eatOff + (int(ord)-int(dir.BaseOrdinal))*4
		if f, ok := exp.Function(ord); ok {
			format.PutU32(out, slot, f.Address)
		} else if _, ok := exp.Forwarder(ord); ok {
			format.PutU32(out, slot, baseRVA+uint32(fwdOffs[ord]))
		}
	}
	for i, n := range names {
		format.PutU32(out, entOff+i*4, baseRVA+uint32(nameOffs[i]))
		format.PutU16(out, ordOff+i*2, n.ord-dir.BaseOrdinal)
		copy(out[nameOffs[i]:], n.name)
	}
	copy(out[dllOff:], dir.DLLName)
	for _, ord := range ords {
		if fw, ok := exp.Forwarder(ord); ok {
			copy(out[fwdOffs[ord]:], fw.Target)
		}
	}
	return out, uint32(len(out))
}

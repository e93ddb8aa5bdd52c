package writer

import (
	"context"
	"fmt"

	"github.com/pmikstacki/cilkit/cil"
	"github.com/pmikstacki/cilkit/cil/changes"
	"github.com/pmikstacki/cilkit/cil/remap"
	"github.com/pmikstacki/cilkit/internal/format"
	"github.com/pmikstacki/cilkit/pkg/types"
)

// validCor20Flags masks the Cor20 flag bits runtimes define. Anything
// above bit 4 is reserved and some loaders reject it.
const validCor20Flags uint32 = 0x0000001F

// tablesStreamSize computes the #~ stream size from final row counts
// alone, before any row is encoded. buildTablesStream must produce exactly
// this many bytes; Write checks.
func tablesStreamSize(sizes *cil.SizeSet) int {
	n := format.TablesHeaderSize
	for id := cil.TableID(0); id <= cil.MaxTableID; id++ {
		if sizes.RowCounts[id] == 0 {
			continue
		}
		n += 4 + int(sizes.RowCounts[id])*sizes.RowWidth(id)
	}
	return format.Align4(n)
}

// buildCor20 copies the original Cor20 header and repoints it at the
// rebuilt metadata. Reserved flag bits are masked off.
func buildCor20(view *cil.View, metadataRVA, metadataSize uint32) []byte {
	pe := view.PE()
	out := make([]byte, format.Cor20HeaderSize)
	copy(out, view.Bytes()[pe.Cor20Off:pe.Cor20Off+format.Cor20HeaderSize])
	format.PutU32(out, 0, format.Cor20HeaderSize)
	format.PutU32(out, 8, metadataRVA)
	format.PutU32(out, 12, metadataSize)
	format.PutU32(out, 16, format.ReadU32(out, 16)&validCor20Flags)
	return out
}

// Write rebuilds the metadata image from the view plus its validated and
// remapped change set, and emits a complete PE to the sink. The original
// bytes are never modified in place: the rebuilt metadata, the patched
// Cor20 header, relocated method bodies and any native import or export
// directories all land in one appended section, the old metadata region is
// zeroed, and the headers are patched to describe the grown image.
//
// The change set must have been through validation and ApplyToChanges
// before this runs. Rows carried in the change set are already in final
// index space and are encoded as they stand; rows decoded from the
// original image are remapped on the way out.
func Write(ctx context.Context, view *cil.View, ch *changes.AssemblyChanges, sink Sink) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	pe := view.PE()
	rm := remap.BuildFromChanges(ch)

	strs, err := materializeStrings(view, ch.Strings())
	if err != nil {
		return err
	}
	blobs, err := materializeBlob(view, ch.Blobs())
	if err != nil {
		return err
	}
	guids, err := materializeGUID(view, ch.GUIDs())
	if err != nil {
		return err
	}
	us, err := materializeUserStrings(view, ch.UserStrings())
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	sizes := finalSizeSet(view, ch, rm, len(strs.data), len(blobs.data), uint32(len(guids.data)/format.GUIDSize))

	// Size arithmetic comes first: the section address depends on total
	// content size, and every RVA inside depends on the section address.
	tablesSize := tablesStreamSize(sizes)
	streamSizes := []int{tablesSize}
	streamNames := []string{format.StreamTables}
	for _, s := range []struct {
		name string
		data []byte
	}{
		{format.StreamStrings, strs.data},
		{format.StreamBlob, blobs.data},
		{format.StreamGUID, guids.data},
		{format.StreamUS, us.data},
	} {
		if len(s.data) > 0 {
			streamNames = append(streamNames, s.name)
			streamSizes = append(streamSizes, len(s.data))
		}
	}
	metaSize := metadataHeaderSize(view.Version(), streamNames)
	for _, n := range streamSizes {
		metaSize += n
	}

	metaOff := format.Cor20HeaderSize
	bodiesOff := metaOff + metaSize
	importOff := bodiesOff + int(ch.MethodBodiesTotalSize())

	impProbe, _ := serializeImports(ch.Imports(), 0, pe.PE32Plus)
	expProbe, _ := serializeExports(ch.Exports(), 0)
	exportOff := importOff + len(impProbe)
	if len(expProbe) > 0 {
		exportOff = format.Align4(exportOff)
	}
	contentSize := exportOff + len(expProbe)

	plan, err := planSection(pe, len(view.Bytes()), contentSize)
	if err != nil {
		return err
	}

	// Real serialization at the planned addresses, with drift checks
	// against the arithmetic above.
	rvas, bodiesData := layoutMethodBodies(ch, plan.va+uint32(bodiesOff), us.moved)
	if len(bodiesData) != importOff-bodiesOff {
		return fmt.Errorf("writer: method body region size drifted: planned %d, built %d", importOff-bodiesOff, len(bodiesData))
	}
	patch := &rowPatcher{strings: strs.moved, blobs: blobs.moved, rvas: rvas}

	tablesData, err := buildTablesStream(view, ch, rm, sizes, patch)
	if err != nil {
		return err
	}
	if len(tablesData) != tablesSize {
		return fmt.Errorf("writer: tables stream size drifted: planned %d, built %d", tablesSize, len(tablesData))
	}

	streams := make([]streamEntry, 0, len(streamNames))
	streams = append(streams, streamEntry{format.StreamTables, tablesData})
	for _, s := range []struct {
		name string
		data []byte
	}{
		{format.StreamStrings, strs.data},
		{format.StreamBlob, blobs.data},
		{format.StreamGUID, guids.data},
		{format.StreamUS, us.data},
	} {
		if len(s.data) > 0 {
			streams = append(streams, streamEntry{s.name, s.data})
		}
	}
	metaData := buildMetadataImage(view.Version(), streams)
	if len(metaData) != metaSize {
		return fmt.Errorf("writer: metadata size drifted: planned %d, built %d", metaSize, len(metaData))
	}

	impData, impDir := serializeImports(ch.Imports(), plan.va+uint32(importOff), pe.PE32Plus)
	if len(impData) != len(impProbe) {
		return fmt.Errorf("writer: import directory size drifted: planned %d, built %d", len(impProbe), len(impData))
	}
	expData, expDir := serializeExports(ch.Exports(), plan.va+uint32(exportOff))
	if len(expData) != len(expProbe) {
		return fmt.Errorf("writer: export directory size drifted: planned %d, built %d", len(expProbe), len(expData))
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	content := make([]byte, contentSize)
	copy(content, buildCor20(view, plan.va+uint32(metaOff), uint32(metaSize)))
	copy(content[metaOff:], metaData)
	copy(content[bodiesOff:], bodiesData)
	copy(content[importOff:], impData)
	copy(content[exportOff:], expData)

	patches := []directoryPatch{
		{index: format.DataDirCLI, rva: plan.va, size: format.Cor20HeaderSize},
	}
	if format.DataDirCertificate < pe.NumberOfDirs {
		// The appended section invalidates any Authenticode signature.
		patches = append(patches, directoryPatch{index: format.DataDirCertificate})
	}
	if len(impData) > 0 {
		patches = append(patches, directoryPatch{index: format.DataDirImport, rva: plan.va + uint32(importOff), size: impDir})
	}
	if len(expData) > 0 {
		patches = append(patches, directoryPatch{index: format.DataDirExport, rva: plan.va + uint32(exportOff), size: expDir})
	}

	out := assembleImage(view.Bytes(), pe, view.MetadataOffset(), plan, content, patches)
	if err := sink.WriteImage(out); err != nil {
		return &types.Error{Kind: types.ErrKindIO, Msg: "writing output image", Err: err}
	}
	return nil
}

// WriteFile is Write with an atomic file sink at path.
func WriteFile(ctx context.Context, view *cil.View, ch *changes.AssemblyChanges, path string) error {
	return Write(ctx, view, ch, &FileSink{Path: path})
}

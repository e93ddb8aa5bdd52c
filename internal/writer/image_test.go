package writer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pmikstacki/cilkit/cil"
	"github.com/pmikstacki/cilkit/internal/testutil"
	"github.com/pmikstacki/cilkit/pkg/types"
)

func Test_planSection_PlacesAfterLastSection(t *testing.T) {
	view, cleanup := testutil.SetupAssembly(t)
	defer cleanup()

	plan, err := planSection(view.PE(), len(view.Bytes()), 376)
	require.NoError(t, err)

	require.Equal(t, uint32(0x2000), plan.va)
	require.Equal(t, uint32(0x400), plan.fileOff)
	require.Equal(t, uint32(376), plan.virtualSize)
	require.Equal(t, uint32(512), plan.rawSize, "raw size rounds up to file alignment")
}

func Test_planSection_RequiresHeaderSlack(t *testing.T) {
	pe := &cil.PEInfo{
		NumberOfSections: 1,
		SectionAlignment: 0x1000,
		FileAlignment:    0x200,
		SizeOfHeaders:    0x1A0,
		SectionTableOff:  0x178,
	}

	_, err := planSection(pe, 0x400, 64)
	var te *types.Error
	require.ErrorAs(t, err, &te)
	require.Equal(t, types.ErrKindCapacity, te.Kind)
}

func Test_planSection_SkipsOverlayBytes(t *testing.T) {
	view, cleanup := testutil.SetupAssembly(t)
	defer cleanup()

	// Pretend the file carries 0x100 bytes of overlay past the last
	// section; the new raw data must land after it.
	plan, err := planSection(view.PE(), 0x500, 376)
	require.NoError(t, err)

	require.Equal(t, uint32(0x600), plan.fileOff)
	require.Equal(t, uint32(0x2000), plan.va)
}

func Test_planSection_FallsBackToRawSizeForZeroVirtualSize(t *testing.T) {
	pe := &cil.PEInfo{
		NumberOfSections: 1,
		SectionAlignment: 0x1000,
		FileAlignment:    0x200,
		SizeOfHeaders:    0x200,
		SectionTableOff:  0x178,
		Sections: []cil.Section{{
			Name:             ".data",
			VirtualAddress:   0x1000,
			SizeOfRawData:    0x400,
			PointerToRawData: 0x200,
		}},
	}

	plan, err := planSection(pe, 0x600, 64)
	require.NoError(t, err)

	require.Equal(t, uint32(0x2000), plan.va)
	require.Equal(t, uint32(0x600), plan.fileOff)
	require.Equal(t, uint32(0x200), plan.rawSize)
}

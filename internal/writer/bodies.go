package writer

import (
	"github.com/pmikstacki/cilkit/cil/changes"
	"github.com/pmikstacki/cilkit/internal/format"
)

// layoutMethodBodies concatenates the stored bodies in placeholder order,
// each aligned to 4 bytes, and maps every placeholder to the real RVA it
// occupies once the region sits at baseRVA. usMoved carries write-time #US
// relocations; ldstr operands referencing a moved entry are rewritten in
// the emitted copy.
func layoutMethodBodies(ch *changes.AssemblyChanges, baseRVA uint32, usMoved map[uint32]uint32) (map[uint32]uint32, []byte) {
	placeholders := ch.MethodBodyPlaceholders()
	if len(placeholders) == 0 {
		return nil, nil
	}
	lookup := func(idx uint32) (uint32, bool) {
		nv, ok := usMoved[idx]
		return nv, ok
	}
	rvas := make(map[uint32]uint32, len(placeholders))
	var out []byte
	for _, ph := range placeholders {
		body, _ := ch.MethodBody(ph)
		rvas[ph] = baseRVA + uint32(len(out))
		start := len(out)
		out = append(out, body...)
		if len(usMoved) > 0 {
			format.PatchLdstrTokens(out[start:], lookup)
		}
		for len(out)%format.StreamAlignment != 0 {
			out = append(out, 0)
		}
	}
	return rvas, out
}

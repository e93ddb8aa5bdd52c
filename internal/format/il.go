package format

// CIL bytecode constants the editing pipeline needs: just enough to find
// and rewrite string-literal loads when #US heap entries move.
const (
	// OpLdstr is the CIL opcode that loads a string literal; its operand
	// is a metadata token with the #US table byte.
	OpLdstr = 0x72

	// USTokenPrefix is the high byte marking a #US heap token.
	USTokenPrefix = 0x70000000

	tokenIndexMask = 0x00FFFFFF
)

// PatchLdstrTokens rewrites #US heap indices inside a method body's ldstr
// operands in place. The body carries its header: tiny headers are one
// byte, fat headers twelve. lookup returns the replacement for an index
// that moved; anything else passes through untouched.
//
// The scan advances bytewise between matches, so an 0x72 inside another
// instruction's operand can false-positive; it is only rewritten when the
// following four bytes already form a #US token, which keeps the patch
// conservative enough for bodies this library itself assembled.
func PatchLdstrTokens(body []byte, lookup func(uint32) (uint32, bool)) {
	if len(body) == 0 {
		return
	}
	headerSize := 12
	if body[0]&0x03 == 0x02 {
		headerSize = 1
	}
	if headerSize >= len(body) {
		return
	}
	il := body[headerSize:]
	for pos := 0; pos < len(il); {
		if il[pos] == OpLdstr && pos+5 <= len(il) {
			tok := ReadU32(il, pos+1)
			if tok&0xFF000000 == USTokenPrefix {
				if idx, ok := lookup(tok & tokenIndexMask); ok {
					PutU32(il, pos+1, USTokenPrefix|idx)
				}
			}
			pos += 5
			continue
		}
		pos++
	}
}

package cil

import "fmt"

// Token is a 32-bit metadata token: the high byte selects the table, the low
// 24 bits carry the 1-based row id. RID 0 never identifies a row; a token
// with RID 0 is a null reference in every context that accepts tokens.
type Token uint32

// NewToken mints a token from a table id and row id.
func NewToken(table TableID, rid uint32) Token {
	return Token(uint32(table)<<24 | rid&0x00FFFFFF)
}

// Table returns the table id encoded in the high byte.
func (t Token) Table() TableID {
	return TableID(t >> 24)
}

// RID returns the 1-based row id in the low 24 bits.
func (t Token) RID() uint32 {
	return uint32(t) & 0x00FFFFFF
}

// IsNull reports whether the token's RID is 0.
func (t Token) IsNull() bool {
	return t.RID() == 0
}

// String renders the token in the conventional 8-digit hex form, e.g.
// "0x02000001" for TypeDef row 1.
func (t Token) String() string {
	return fmt.Sprintf("0x%08X", uint32(t))
}

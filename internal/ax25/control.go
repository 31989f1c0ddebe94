package ax25

// Frame category, determined by the low bits of the control octet: an I
// frame always has bit 0 clear, an S frame has bits 1:0 equal to 01, and
// everything else (bits 1:0 == 11) is a U frame.
type Category int

const (
	CategoryI Category = iota
	CategoryS
	CategoryU
)

// U-frame control octets (P/F bit, 0x10, already cleared out). These are
// the modulo-independent frame types: connection setup/teardown plus the
// unsequenced UI/XID/TEST types.
const (
	CtlSABM  = 0x2f
	CtlSABME = 0x6f
	CtlDISC  = 0x43
	CtlDM    = 0x0f
	CtlUA    = 0x63
	CtlFRMR  = 0x87
	CtlUI    = 0x03
	CtlXID   = 0xaf
	CtlTEST  = 0xe3
)

// PFMask is the poll/final bit, bit position 4 on a U frame.
const PFMask = 0x10

// S-frame subtypes, in the low 4 bits of the first control byte.
const (
	STypeRR   = 0x01
	STypeRNR  = 0x05
	STypeREJ  = 0x09
	STypeSREJ = 0x0d
)

// Control is a decoded control field: one or two octets depending on
// modulo, normalized to category/type plus N(S)/N(R)/P-F.
type Control struct {
	Category Category
	UType    byte // for CategoryU: one of the Ctl* constants above, PF bit masked out
	SType    byte // for CategoryS: one of the SType* constants above
	NS       int  // for CategoryI
	NR       int  // for CategoryI, CategoryS
	PF       bool
}

// DecodeControl parses a control field starting at data[0]. modulo128
// selects the two-octet extended encoding used under AX.25 v2.2 windows
// larger than 7.
func DecodeControl(data []byte, modulo128 bool) (c Control, width int, ok bool) {
	if len(data) < 1 {
		return Control{}, 0, false
	}
	first := data[0]
	if first&0x01 == 0 {
		// I frame.
		if modulo128 {
			if len(data) < 2 {
				return Control{}, 0, false
			}
			c.Category = CategoryI
			c.NS = int(first>>1) & 0x7f
			c.NR = int(data[1]>>1) & 0x7f
			c.PF = data[1]&0x01 != 0
			return c, 2, true
		}
		c.Category = CategoryI
		c.NS = int(first>>1) & 0x07
		c.NR = int(first>>5) & 0x07
		c.PF = first&0x10 != 0
		return c, 1, true
	}
	if first&0x03 == 0x01 {
		// S frame.
		if modulo128 {
			if len(data) < 2 {
				return Control{}, 0, false
			}
			c.Category = CategoryS
			c.SType = first & 0x0f
			c.NR = int(data[1]>>1) & 0x7f
			c.PF = data[1]&0x01 != 0
			return c, 2, true
		}
		c.Category = CategoryS
		c.SType = first & 0x0f
		c.NR = int(first>>5) & 0x07
		c.PF = first&0x10 != 0
		return c, 1, true
	}
	// U frame: always a single octet, PF always bit 4.
	c.Category = CategoryU
	c.UType = first &^ PFMask
	c.PF = first&PFMask != 0
	return c, 1, true
}

// EncodeControl renders a Control back to wire bytes under the given
// modulo.
func EncodeControl(c Control, modulo128 bool) []byte {
	switch c.Category {
	case CategoryI:
		if modulo128 {
			b0 := byte(c.NS&0x7f) << 1
			b1 := byte(c.NR&0x7f) << 1
			if c.PF {
				b1 |= 0x01
			}
			return []byte{b0, b1}
		}
		b := byte(c.NR&0x07)<<5 | byte(c.NS&0x07)<<1
		if c.PF {
			b |= PFMask
		}
		return []byte{b}
	case CategoryS:
		if modulo128 {
			b0 := c.SType
			b1 := byte(c.NR&0x7f) << 1
			if c.PF {
				b1 |= 0x01
			}
			return []byte{b0, b1}
		}
		b := byte(c.NR&0x07)<<5 | c.SType
		if c.PF {
			b |= PFMask
		}
		return []byte{b}
	default: // CategoryU
		b := c.UType
		if c.PF {
			b |= PFMask
		}
		return []byte{b}
	}
}

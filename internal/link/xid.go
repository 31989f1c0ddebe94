package link

import (
	"fmt"
	"time"
)

// XID parameter identifiers, per the AX.25 2.2 XID format: Format
// Indicator, Group Indicator, then (PI, PL, PV) parameter triplets.
const (
	xidFI = 0x82
	xidGI = 0x80

	piClassesOfProcedures = 2
	piHDLCOptionalFuncs   = 3
	piInfoLenTX           = 6
	piInfoLenRX           = 7
	piWindowTX            = 8
	piWindowRX            = 9
	piT1                  = 10
	piN2                  = 12
	piT2                  = 13
)

// XIDParams is the decoded set of XID negotiation parameters this
// package understands. DecodeXID skips unknown PIs; they are not kept.
type XIDParams struct {
	ClassesOfProcedures uint16
	HDLCOptionalFuncs   uint32
	InfoLenTX           int // bits, per AX.25 2.2; callers convert to bytes
	InfoLenRX           int
	WindowTX            int
	WindowRX            int
	T1                  int // ms
	N2                  int
	T2                  int // ms
}

// paramsFromConfig builds the parameter set this session would assert
// about itself, for replying to a peer's XID.
func paramsFromConfig(cfg Config) XIDParams {
	return XIDParams{
		ClassesOfProcedures: 0x0100, // balanced ABM, per AX.25 2.2 default
		HDLCOptionalFuncs:   0x01200215,
		InfoLenTX:           cfg.N1 * 8,
		InfoLenRX:           cfg.N1 * 8,
		WindowTX:            cfg.window(),
		WindowRX:            cfg.window(),
		T1:                  int(cfg.T1 / time.Millisecond),
		N2:                  cfg.N2,
		T2:                  int(cfg.T2 / time.Millisecond),
	}
}

// EncodeXID serializes p as an XID information field: FI, GI, a 2-byte
// group length, then every parameter, zero values included, as a
// (PI, PL, PV) triplet.
func EncodeXID(p XIDParams) ([]byte, error) {
	var group []byte
	group = appendTriplet(group, piClassesOfProcedures, uint32(p.ClassesOfProcedures), 2)
	group = appendTriplet(group, piHDLCOptionalFuncs, p.HDLCOptionalFuncs, 4)
	group = appendTriplet(group, piInfoLenTX, uint32(p.InfoLenTX), 2)
	group = appendTriplet(group, piInfoLenRX, uint32(p.InfoLenRX), 2)
	group = appendTriplet(group, piWindowTX, uint32(p.WindowTX), 1)
	group = appendTriplet(group, piWindowRX, uint32(p.WindowRX), 1)
	group = appendTriplet(group, piT1, uint32(p.T1), 2)
	group = appendTriplet(group, piN2, uint32(p.N2), 1)
	group = appendTriplet(group, piT2, uint32(p.T2), 2)

	out := []byte{xidFI, xidGI, byte(len(group) >> 8), byte(len(group))}
	out = append(out, group...)
	return out, nil
}

func appendTriplet(buf []byte, pi byte, val uint32, width int) []byte {
	buf = append(buf, pi, byte(width))
	for i := width - 1; i >= 0; i-- {
		buf = append(buf, byte(val>>(uint(i)*8)))
	}
	return buf
}

// DecodeXID parses an XID information field back into XIDParams.
func DecodeXID(info []byte) (XIDParams, error) {
	var p XIDParams
	if len(info) < 4 || info[0] != xidFI || info[1] != xidGI {
		return p, fmt.Errorf("link: malformed XID header")
	}
	groupLen := int(info[2])<<8 | int(info[3])
	body := info[4:]
	if len(body) < groupLen {
		return p, fmt.Errorf("link: XID group length exceeds frame")
	}
	body = body[:groupLen]

	for len(body) >= 2 {
		pi := body[0]
		pl := int(body[1])
		if len(body) < 2+pl {
			return p, fmt.Errorf("link: truncated XID parameter")
		}
		pv := body[2 : 2+pl]
		var val uint32
		for _, b := range pv {
			val = val<<8 | uint32(b)
		}
		switch pi {
		case piClassesOfProcedures:
			p.ClassesOfProcedures = uint16(val)
		case piHDLCOptionalFuncs:
			p.HDLCOptionalFuncs = val
		case piInfoLenTX:
			p.InfoLenTX = int(val)
		case piInfoLenRX:
			p.InfoLenRX = int(val)
		case piWindowTX:
			p.WindowTX = int(val)
		case piWindowRX:
			p.WindowRX = int(val)
		case piT1:
			p.T1 = int(val)
		case piN2:
			p.N2 = int(val)
		case piT2:
			p.T2 = int(val)
		}
		body = body[2+pl:]
	}
	return p, nil
}

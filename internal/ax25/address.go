package ax25

import (
	"fmt"
	"strconv"
	"strings"
)

// Wire-format bit layout of the 7th (SSID) octet of an address field:
//
//	bit:  7   6 5   4 3 2 1   0
//	      C/H  R R   SSID     ext
//
// C/H is command/response on source & destination, has-been-repeated on a
// digipeater address. R R are reserved (conventionally 1 1). ext is 0 on
// every address except the last, which is 1.
const (
	ssidExtMask   = 0x01
	ssidBitsMask  = 0x1e
	ssidBitsShift = 1
	ssidRRMask    = 0x60
	ssidRRShift   = 5
	ssidCHMask    = 0x80
	ssidCHShift   = 7
)

// MaxAddrs is the maximum number of stacked addresses in a frame: source,
// destination, and up to 8 digipeaters.
const MaxAddrs = 10

// MinAddrs is the minimum: source and destination only.
const MinAddrs = 2

// Address is one decoded 7-octet AX.25 address field entry.
type Address struct {
	Callsign string // up to 6 upper-case alphanumerics, no padding
	SSID     int    // 0-15
	CH       bool   // command bit (src/dst) or has-been-repeated (digipeater)
	Reserved uint8  // the 2 RR bits, conventionally 0b11
	Last     bool   // end-of-address-field bit; only the final address has this set
}

// String renders CALL-SSID, or CALL when SSID is zero. The CH bit is not
// rendered, so a repeated digipeater address prints the same as an
// unrepeated one.
func (a Address) String() string {
	s := a.Callsign
	if a.SSID != 0 {
		s += "-" + strconv.Itoa(a.SSID)
	}
	return s
}

// EncodeAddress packs an Address into its 7-octet wire representation:
// six space-padded, left-shifted-by-one callsign bytes followed by the
// SSID/flags octet.
func EncodeAddress(a Address) ([7]byte, error) {
	var out [7]byte
	call := strings.ToUpper(a.Callsign)
	if len(call) == 0 || len(call) > 6 {
		return out, fmt.Errorf("ax25: callsign %q must be 1-6 characters", a.Callsign)
	}
	if a.SSID < 0 || a.SSID > 15 {
		return out, fmt.Errorf("ax25: ssid %d out of range 0-15", a.SSID)
	}
	padded := call + strings.Repeat(" ", 6-len(call))
	for i := 0; i < 6; i++ {
		out[i] = padded[i] << 1
	}
	ssidByte := byte(a.Reserved&0x03) << ssidRRShift
	ssidByte |= byte(a.SSID&0x0f) << ssidBitsShift
	if a.CH {
		ssidByte |= ssidCHMask
	}
	if a.Last {
		ssidByte |= ssidExtMask
	}
	out[6] = ssidByte
	return out, nil
}

// DecodeAddress unpacks 7 wire octets into an Address.
func DecodeAddress(raw [7]byte) Address {
	var callBytes [6]byte
	for i := 0; i < 6; i++ {
		callBytes[i] = raw[i] >> 1
	}
	call := strings.TrimRight(string(callBytes[:]), " ")
	ssidByte := raw[6]
	return Address{
		Callsign: call,
		SSID:     int(ssidByte&ssidBitsMask) >> ssidBitsShift,
		CH:       ssidByte&ssidCHMask != 0,
		Reserved: (ssidByte & ssidRRMask) >> ssidRRShift,
		Last:     ssidByte&ssidExtMask != 0,
	}
}

// ParseAddress parses a "CALL" or "CALL-SSID" text form.
func ParseAddress(s string) (Address, error) {
	call, ssidStr, hasSSID := strings.Cut(s, "-")
	call = strings.ToUpper(strings.TrimSpace(call))
	if len(call) == 0 || len(call) > 6 {
		return Address{}, fmt.Errorf("ax25: callsign %q must be 1-6 characters", call)
	}
	ssid := 0
	if hasSSID {
		n, err := strconv.Atoi(ssidStr)
		if err != nil || n < 0 || n > 15 {
			return Address{}, fmt.Errorf("ax25: invalid ssid in %q", s)
		}
		ssid = n
	}
	return Address{Callsign: call, SSID: ssid, Reserved: 0x03}, nil
}

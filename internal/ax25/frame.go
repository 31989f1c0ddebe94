package ax25

import (
	"errors"
	"fmt"
)

// ErrTooShort, ErrTooManyAddrs, and ErrNoEndOfAddr are the structural validation
// failures a caller can match with errors.Is against the return of Parse.
var (
	ErrTooShort     = errors.New("ax25: frame shorter than minimum address+control")
	ErrTooManyAddrs = errors.New("ax25: more than 10 stacked addresses")
	ErrNoEndOfAddr  = errors.New("ax25: no address field carried the end-of-address bit")
)

// Frame is an immutable, already-FCS-validated AX.25 frame. It wraps the
// raw wire bytes (sans FCS) together with the address list, control
// field, and PID decoded once when the Frame is built or parsed; Info is
// sliced out of the raw bytes on each call.
//
// Frame is a value type: copying it copies the header slice, not the
// backing array, so two Frames can share one buffer safely as long as
// neither mutates Info in place.
type Frame struct {
	raw      []byte // full frame, addresses + control [+ pid] + info, no FCS
	addrs    []Address
	ctl      Control
	ctlWidth int
	pid      byte
	hasPID   bool
}

// Parse validates and decodes raw (frame bytes with FCS already stripped
// and already verified by the caller — see ax25.CheckFCS) into a Frame.
func Parse(raw []byte, modulo128 bool) (Frame, error) {
	addrs, n, err := decodeAddresses(raw)
	if err != nil {
		return Frame{}, err
	}
	rest := raw[n:]
	ctl, width, ok := DecodeControl(rest, modulo128)
	if !ok {
		return Frame{}, fmt.Errorf("%w: control field truncated", ErrTooShort)
	}
	f := Frame{raw: raw, addrs: addrs, ctl: ctl, ctlWidth: width}
	// Only I and UI frames carry a PID octet; XID and TEST information
	// fields start immediately after the control field.
	if ctl.Category == CategoryI || (ctl.Category == CategoryU && ctl.UType == CtlUI) {
		pidOff := n + width
		if pidOff < len(raw) {
			f.pid = raw[pidOff]
			f.hasPID = true
		}
	}
	return f, nil
}

func decodeAddresses(raw []byte) ([]Address, int, error) {
	if len(raw) < 7*MinAddrs {
		return nil, 0, ErrTooShort
	}
	var addrs []Address
	for i := 0; i+7 <= len(raw); i += 7 {
		var a [7]byte
		copy(a[:], raw[i:i+7])
		addr := DecodeAddress(a)
		addrs = append(addrs, addr)
		if addr.Last {
			return addrs, i + 7, nil
		}
		if len(addrs) >= MaxAddrs {
			return nil, 0, ErrTooManyAddrs
		}
	}
	return nil, 0, ErrNoEndOfAddr
}

// Addresses returns the decoded stacked address list: destination, source,
// then 0-8 digipeaters, in wire order.
func (f Frame) Addresses() []Address { return f.addrs }

// Destination and Source are the first two stacked addresses.
func (f Frame) Destination() Address { return f.addrs[0] }
func (f Frame) Source() Address      { return f.addrs[1] }

// Digipeaters returns the address entries beyond source/destination, if
// any.
func (f Frame) Digipeaters() []Address {
	if len(f.addrs) <= 2 {
		return nil
	}
	return f.addrs[2:]
}

// Control returns the decoded control field.
func (f Frame) Control() Control { return f.ctl }

// PID returns the protocol ID octet and whether this frame carries one
// (after Parse, only I and UI frames do; S frames and every other U
// frame type, XID and TEST included, don't).
func (f Frame) PID() (byte, bool) { return f.pid, f.hasPID }

// Info returns the information field, if any.
func (f Frame) Info() []byte {
	off := f.infoOffset()
	if off >= len(f.raw) {
		return nil
	}
	return f.raw[off:]
}

func (f Frame) infoOffset() int {
	n := 0
	for _, a := range f.addrs {
		n += 7
		if a.Last {
			break
		}
	}
	n += f.ctlWidth
	if f.hasPID {
		n++
	}
	return n
}

// Bytes returns the full encoded frame (addresses + control [+ pid] +
// info), without FCS.
func (f Frame) Bytes() []byte { return f.raw }

// Build encodes a new Frame from its parts, computing address-field
// chaining (Last bit) automatically from slice position.
func Build(dest, src Address, digis []Address, ctl Control, modulo128 bool, pid byte, hasPID bool, info []byte) (Frame, error) {
	addrs := make([]Address, 0, 2+len(digis))
	dest.Last = false
	src.Last = false
	addrs = append(addrs, dest, src)
	addrs = append(addrs, digis...)
	if len(addrs) > MaxAddrs {
		return Frame{}, ErrTooManyAddrs
	}
	addrs[len(addrs)-1].Last = true

	var raw []byte
	for _, a := range addrs {
		enc, err := EncodeAddress(a)
		if err != nil {
			return Frame{}, err
		}
		raw = append(raw, enc[:]...)
	}
	raw = append(raw, EncodeControl(ctl, modulo128)...)
	width := len(EncodeControl(ctl, modulo128))
	if hasPID {
		raw = append(raw, pid)
	}
	raw = append(raw, info...)

	return Frame{
		raw:      raw,
		addrs:    addrs,
		ctl:      ctl,
		ctlWidth: width,
		pid:      pid,
		hasPID:   hasPID,
	}, nil
}

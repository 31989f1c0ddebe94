package ptt

import (
	"fmt"

	hamlib "github.com/xylo04/goHamlib"
)

// HamlibBackend keys PTT through a rig's CAT control interface via
// Hamlib, for radios with no separate PTT line.
type HamlibBackend struct {
	rig *hamlib.Rig
}

// NewHamlibBackend opens a Hamlib rig by model number over the given
// serial device at baud.
func NewHamlibBackend(model int, device string, baud int) (*HamlibBackend, error) {
	r := &hamlib.Rig{}
	if err := r.Init(model); err != nil {
		return nil, fmt.Errorf("ptt: hamlib init model %d: %w", model, err)
	}
	r.SetConf("rig_pathname", device)
	r.SetConf("serial_speed", fmt.Sprintf("%d", baud))
	if err := r.Open(); err != nil {
		return nil, fmt.Errorf("ptt: hamlib open %s: %w", device, err)
	}
	return &HamlibBackend{rig: r}, nil
}

func (h *HamlibBackend) Key(on bool) error {
	return h.rig.SetPTT(hamlib.VFOCurr, boolToPTT(on))
}

func boolToPTT(on bool) hamlib.PTTType {
	if on {
		return hamlib.PTTOn
	}
	return hamlib.PTTOff
}

func (h *HamlibBackend) Close() error {
	h.rig.Close()
	return nil
}

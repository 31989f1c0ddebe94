// Command pttctl exercises one PTT backend directly: key on, hold
// briefly, key off. It takes no command-line flags (an explicit
// Non-goal of the core) — the backend and its parameters are set in
// the small table below, the way a bench-test harness would be edited
// per session rather than driven by a flag parser.
package main

import (
	"time"

	"github.com/kb9vck/pktmodem/internal/logging"
	"github.com/kb9vck/pktmodem/internal/ptt"
)

// backendKind, device, and holdTime are the knobs a developer edits
// before running this against a particular bench setup.
const (
	backendKind = "serial-rts"
	device      = "/dev/ttyUSB0"
	holdTime    = 500 * time.Millisecond
)

func buildBackend() (ptt.Backend, error) {
	switch backendKind {
	case "serial-rts":
		return ptt.NewSerialBackend(device, ptt.LineRTS, false)
	case "serial-dtr":
		return ptt.NewSerialBackend(device, ptt.LineDTR, false)
	case "gpio":
		return ptt.NewGPIOBackend(device, 0, false)
	case "hamlib":
		return ptt.NewHamlibBackend(0, device, 9600)
	}
	return ptt.NewSerialBackend(device, ptt.LineRTS, false)
}

func main() {
	log := logging.For("pttctl")

	backend, err := buildBackend()
	if err != nil {
		log.Fatal("opening PTT backend failed", "err", err)
	}
	defer backend.Close()

	log.Info("keying PTT on")
	if err := backend.Key(true); err != nil {
		log.Error("key on failed", "err", err)
	}

	time.Sleep(holdTime)

	log.Info("keying PTT off")
	if err := backend.Key(false); err != nil {
		log.Error("key off failed", "err", err)
	}
}

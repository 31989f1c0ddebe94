package ptt

import (
	"fmt"

	gpiocdev "github.com/warthog618/go-gpiocdev"
)

// GPIOBackend keys PTT by driving a GPIO line high/low, for Raspberry
// Pi-style interfaces that bypass a serial port entirely.
type GPIOBackend struct {
	line     *gpiocdev.Line
	inverted bool
}

// NewGPIOBackend requests offset on chip (e.g. "gpiochip0") as an output
// line and returns a Backend driving it.
func NewGPIOBackend(chip string, offset int, inverted bool) (*GPIOBackend, error) {
	line, err := gpiocdev.RequestLine(chip, offset, gpiocdev.AsOutput(0))
	if err != nil {
		return nil, fmt.Errorf("ptt: requesting %s line %d: %w", chip, offset, err)
	}
	return &GPIOBackend{line: line, inverted: inverted}, nil
}

func (g *GPIOBackend) Key(on bool) error {
	if g.inverted {
		on = !on
	}
	val := 0
	if on {
		val = 1
	}
	return g.line.SetValue(val)
}

func (g *GPIOBackend) Close() error {
	return g.line.Close()
}

// Package channelaccess implements CSMA-p channel access: waiting for a
// clear channel, a persistence-probability random backoff, and the
// TXDELAY/PTT/TXTAIL sequencing around an actual transmission.
package channelaccess

import (
	"context"
	"math/rand"
	"time"

	"github.com/kb9vck/pktmodem/internal/logging"
	"github.com/kb9vck/pktmodem/internal/ptt"
	"github.com/kb9vck/pktmodem/internal/txqueue"
)

// Config holds one channel's CSMA-p and PTT-timing parameters.
type Config struct {
	Channel int

	// SlotTime is the CSMA backoff slot length.
	SlotTime time.Duration
	// Persist is the 0-255 transmit probability checked once per slot,
	// per the classic CSMA-p algorithm (256-1 values map to p/256).
	Persist int
	// TXDelay is how long to key up and send flags before the first
	// real frame, giving the far end's squelch/VOX time to open.
	TXDelay time.Duration
	// TXTail is how long to keep sending flags after the last queued
	// frame, so the last bits aren't clipped by unkeying too soon.
	TXTail time.Duration
	// DWait additionally delays after the channel goes clear, for
	// transceivers too slow to un-squelch reliably.
	DWait time.Duration
	// FullDuplex skips the busy check and random backoff entirely.
	FullDuplex bool
	// Baud is the channel's bit rate, used to convert TXDelay/TXTail
	// into a flag-octet count for the preamble/tail padding. Defaults
	// to 1200 (AFSK) if zero.
	Baud int

	// CheckInterval is how often the busy check is polled while
	// waiting for a clear channel.
	CheckInterval time.Duration
	// WaitTimeout bounds how long to wait for a clear channel before
	// giving up on this transmit attempt.
	WaitTimeout time.Duration
	// InhibitGrace is how long the TX-inhibit input may stay asserted
	// before a warning is logged. Defaults to twice TXDelay.
	InhibitGrace time.Duration
}

// DCDSource reports whether a channel currently has a signal present
// (decoded from any of its demodulator bank candidates).
type DCDSource func() bool

// FlagsFunc emits n bytes of HDLC flag octets to the transmit chain
// (used for TXDELAY/TXTAIL padding); SendFunc transmits one frame, given
// as ax25.Frame.Bytes() returns it: addresses through info, with no FCS
// and no bit stuffing applied.
type FlagsFunc func(n int)
type SendFunc func(frame []byte)

// Controller drives one channel's transmit queue through CSMA-p access
// and PTT sequencing.
type Controller struct {
	cfg     Config
	dcd     DCDSource
	inhibit DCDSource
	ptt     *ptt.Set
	q       *txqueue.Queue
	flags   FlagsFunc
	send    SendFunc
}

// NewController builds a Controller for one channel.
func NewController(cfg Config, dcd DCDSource, p *ptt.Set, q *txqueue.Queue, flags FlagsFunc, send SendFunc) *Controller {
	if cfg.CheckInterval == 0 {
		cfg.CheckInterval = 10 * time.Millisecond
	}
	if cfg.WaitTimeout == 0 {
		cfg.WaitTimeout = 10 * time.Second
	}
	if cfg.Baud == 0 {
		cfg.Baud = 1200
	}
	if cfg.InhibitGrace == 0 {
		cfg.InhibitGrace = 2 * cfg.TXDelay
	}
	return &Controller{cfg: cfg, dcd: dcd, ptt: p, q: q, flags: flags, send: send}
}

// SetTXInhibit wires an external transmit-inhibit input. While it reads
// true the channel is treated as busy; held past InhibitGrace it is
// logged as blocking transmission.
func (c *Controller) SetTXInhibit(src DCDSource) {
	c.inhibit = src
}

// Run blocks, pulling frames from the queue and transmitting them under
// CSMA-p access control, until ctx is cancelled.
func (c *Controller) Run(ctx context.Context) {
	log := logging.For("channelaccess")
	for {
		if ctx.Err() != nil {
			return
		}
		c.q.Wait()
		if ctx.Err() != nil {
			return
		}
		// Win the channel before taking anything off the queue, so a
		// blocked transmit attempt leaves every frame where it was.
		if !c.waitForClearChannel(ctx) {
			log.Warn("timed out waiting for clear channel", "channel", c.cfg.Channel)
			continue
		}
		item, _, ok := c.q.Remove()
		if !ok {
			continue
		}
		if item.Marker {
			c.transmitBurst(nil)
			continue
		}
		c.transmitBurst(item.Frame.Bytes())
	}
}

// waitForClearChannel implements the CSMA-p access wait: skip entirely
// in full duplex; otherwise wait for DCD to clear, pay DWAIT, re-check,
// then loop a persistence-probability coin flip once per slot (checking
// for a higher-priority arrival and re-busy on each iteration) until
// either the coin lands or a HI-priority frame shows up.
func (c *Controller) waitForClearChannel(ctx context.Context) bool {
	if c.cfg.FullDuplex {
		return true
	}

	deadline := time.Now().Add(c.cfg.WaitTimeout)
	var inhibitSince time.Time

start:
	for c.busy(&inhibitSince) {
		if time.Now().After(deadline) {
			return false
		}
		if !sleep(ctx, c.cfg.CheckInterval) {
			return false
		}
	}

	if c.cfg.DWait > 0 {
		if !sleep(ctx, c.cfg.DWait) {
			return false
		}
	}

	if c.busy(&inhibitSince) {
		goto start
	}

	for {
		if hi, _ := c.q.Counts(); hi > 0 {
			return true
		}
		if randByte() <= c.cfg.Persist {
			return true
		}
		if !sleep(ctx, c.cfg.SlotTime) {
			return false
		}
		if c.busy(&inhibitSince) {
			goto start
		}
		if time.Now().After(deadline) {
			return false
		}
	}
}

// busy reports whether the channel is unavailable, either because the
// receiver sees carrier or the external TX-inhibit input is asserted.
// An inhibit held past InhibitGrace is warned about once per episode.
func (c *Controller) busy(inhibitSince *time.Time) bool {
	if c.dcd() {
		return true
	}
	if c.inhibit == nil || !c.inhibit() {
		*inhibitSince = time.Time{}
		return false
	}
	now := time.Now()
	if inhibitSince.IsZero() {
		*inhibitSince = now
	} else if now.Sub(*inhibitSince) > c.cfg.InhibitGrace {
		logging.For("channelaccess").Warn("TX-inhibit held, transmission blocked",
			"channel", c.cfg.Channel, "held", now.Sub(*inhibitSince))
		*inhibitSince = now // re-arm, don't log every poll
	}
	return true
}

// randByte draws the persistence lottery value; a seam so tests can
// drive the coin deterministically.
var randByte = func() int { return rand.Intn(256) }

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// flagOctetBits: one flag octet occupies 8 bit periods of channel time,
// used to convert TXDELAY/TXTAIL durations into a flag count.
const flagOctetBits = 8

// transmitBurst keys PTT, pads TXDELAY, sends the frame (plus any
// further frames already queued, draining HI before LO), pads TXTAIL,
// and unkeys. first is nil for a bare LMSeizeRequest marker: PTT still
// keys and drops to TXTAIL, but no frame bytes go to the modulator.
func (c *Controller) transmitBurst(first []byte) {
	log := logging.For("channelaccess")
	if err := c.ptt.Key(true); err != nil {
		log.Error("PTT key failed", "channel", c.cfg.Channel, "err", err)
	}
	defer func() {
		if err := c.ptt.Key(false); err != nil {
			log.Error("PTT unkey failed", "channel", c.cfg.Channel, "err", err)
		}
	}()

	if c.flags != nil && c.cfg.TXDelay > 0 {
		c.flags(preambleFlagCount(c.cfg))
	}

	if first != nil {
		c.send(first)
	}
	for {
		item, _, ok := c.q.Remove()
		if !ok {
			break
		}
		if item.Marker {
			continue
		}
		c.send(item.Frame.Bytes())
	}

	if c.flags != nil && c.cfg.TXTail > 0 {
		c.flags(tailFlagCount(c.cfg))
	}
}

func preambleFlagCount(cfg Config) int {
	return int(cfg.TXDelay.Seconds() * float64(cfg.Baud) / flagOctetBits)
}

func tailFlagCount(cfg Config) int {
	return int(cfg.TXTail.Seconds() * float64(cfg.Baud) / flagOctetBits)
}

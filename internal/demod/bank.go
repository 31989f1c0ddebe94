package demod

import (
	"time"

	"github.com/kb9vck/pktmodem/internal/ax25"
	"github.com/kb9vck/pktmodem/internal/fixer"
	"github.com/kb9vck/pktmodem/internal/fx25"
	"github.com/kb9vck/pktmodem/internal/hdlc"
	"github.com/kb9vck/pktmodem/internal/il2p"
)

// DedupeWindow bounds how long a Bank remembers a decoded frame's
// fingerprint for cross-candidate deduplication. Several sub-channel and
// slicer candidates commonly decode the very same over-the-air frame a
// few samples apart; only the first is delivered; this is the TNC's
// single point of "which candidate wins" arbitration.
const DedupeWindow = 50 * time.Millisecond

// FECType records which wrapper (if any) delivered a decoded frame: the
// plain HDLC deframer, or one of the two FEC correlators racing against
// it on the same bit stream.
type FECType int

const (
	FECNone FECType = iota
	FECFX25
	FECIL2P
)

// Candidate identifies one demodulator instance within a channel's bank
// (e.g. a particular sub-channel center frequency and slicer offset).
type Candidate struct {
	Channel    int
	Subchannel int
	Slice      int
}

// Decoded is a frame recovered by one candidate demodulator, before
// cross-candidate dedupe.
type Decoded struct {
	Candidate Candidate
	Frame     ax25.Frame
	At        time.Time

	// FEC names which wrapper recovered this frame. Corrected is the
	// retry effort spent getting there: RS error-symbol count for
	// FECFX25/FECIL2P, the fixer.Level ordinal for a bit-flip recovery
	// under FECNone, zero for a clean first-try FCS pass.
	FEC       FECType
	Corrected int

	// AudioLevel is the winning candidate's approximate 0-100 signal
	// level, when its demodulator can report one. Spectrum marks, one
	// character per registered candidate in registration order, which
	// one produced this Decoded ('*') versus which did not ('.'). It is
	// a snapshot at delivery time: a candidate that decodes the same
	// frame a few samples later, after dedupe has already suppressed
	// it, never gets to flip its character, so Spectrum shows only the
	// winner, not a full per-candidate pass/fail map.
	AudioLevel int
	Spectrum   string
}

// bitSource is the common interface the AFSK/PSK/scrambled-NRZI
// demodulators all satisfy.
type bitSource interface {
	ProcessSample(sam float64) (bit int, haveBit bool)
}

// dcdReporter is satisfied by demodulators that can report carrier
// presence (AFSKDemod and ScrambledNRZIDemod do; PSKDemod does not, so a
// PSK candidate never asserts DCD).
type dcdReporter interface {
	DCDPresent() bool
}

// levelReporter is satisfied by demodulators that can report an
// approximate signal level (all of AFSKDemod, ScrambledNRZIDemod,
// PSKDemod do).
type levelReporter interface {
	Level() int
}

// member pairs a candidate demodulator with the HDLC deframer and the
// FX.25/IL2P correlators that all race against the same recovered bit
// stream to turn it into frames.
type member struct {
	id        Candidate
	source    bitSource
	deframer  *hdlc.Deframer
	fx25Rx    *fx25.Receiver
	il2pRx    *il2p.Receiver
	modulo128 bool
}

// Bank runs several demodulator candidates over the same audio input in
// parallel and deduplicates frames that more than one candidate decodes
// from the same over-the-air transmission, whether that candidate got
// there via plain HDLC or one of the FEC wrappers racing alongside it.
type Bank struct {
	members   []*member
	modulo128 bool
	il2pCRC   bool

	fixerLevel  fixer.Level
	fixerSanity fixer.Sanity

	onWinner func(Decoded)
	seen     map[string]time.Time
}

// NewBank builds an empty demodulator bank. modulo128 selects whether
// recovered frames are parsed assuming extended (mod-128) sequence
// numbering; onWinner is invoked once per de-duplicated decoded frame.
// The frame fixer is disabled (fixer.LevelNone) until SetFixer is
// called, and IL2P candidates are assumed to carry the trailing CRC
// until SetIL2PCRC says otherwise.
func NewBank(modulo128 bool, onWinner func(Decoded)) *Bank {
	return &Bank{
		modulo128: modulo128,
		il2pCRC:   true,
		onWinner:  onWinner,
		seen:      make(map[string]time.Time),
	}
}

// SetFixer configures the bit-flip retry the bank falls back to when a
// plain HDLC candidate's FCS fails. Passing fixer.LevelNone (the
// default) disables it.
func (b *Bank) SetFixer(level fixer.Level, sanity fixer.Sanity) {
	b.fixerLevel = level
	b.fixerSanity = sanity
}

// SetIL2PCRC controls whether the IL2P receivers of candidates added
// after this call expect the optional trailing CRC block; candidates
// already added keep the setting they were created with.
func (b *Bank) SetIL2PCRC(enabled bool) {
	b.il2pCRC = enabled
}

// AddCandidate registers a demodulator under id. Frames it decodes,
// whether via plain HDLC or a racing FX.25/IL2P correlator, participate
// in this bank's cross-candidate dedupe. Registrations past
// MaxCandidates are ignored.
func (b *Bank) AddCandidate(id Candidate, source bitSource) {
	if len(b.members) >= MaxCandidates {
		return
	}
	m := &member{id: id, source: source, modulo128: b.modulo128}
	m.deframer = hdlc.NewDeframer(func(raw []byte) {
		b.handleHDLCRaw(id, raw)
	})
	m.fx25Rx = fx25.NewReceiver(func(tagIdx int, block []byte) {
		b.handleFX25Block(id, tagIdx, block)
	})
	m.il2pRx = il2p.NewReceiver(b.il2pCRC, func(res il2p.Result) {
		b.handleIL2PResult(id, res)
	})
	b.members = append(b.members, m)
}

func (b *Bank) handleHDLCRaw(id Candidate, raw []byte) {
	if ax25.CheckFCS(raw) {
		frame, err := ax25.Parse(raw[:len(raw)-2], b.modulo128)
		if err != nil {
			return
		}
		b.deliver(id, frame, FECNone, 0)
		return
	}
	if b.fixerLevel == fixer.LevelNone {
		return
	}
	fixed, ok := fixer.Fix(raw, b.fixerLevel, b.fixerSanity)
	if !ok {
		return
	}
	frame, err := ax25.Parse(fixed[:len(fixed)-2], b.modulo128)
	if err != nil {
		return
	}
	b.deliver(id, frame, FECNone, int(b.fixerLevel))
}

func (b *Bank) handleFX25Block(id Candidate, tagIdx int, block []byte) {
	raw, corrected, ok := fx25.Decode(tagIdx, block)
	if !ok {
		return
	}
	if !ax25.CheckFCS(raw) {
		return
	}
	frame, err := ax25.Parse(raw[:len(raw)-2], b.modulo128)
	if err != nil {
		return
	}
	b.deliver(id, frame, FECFX25, corrected)
}

func (b *Bank) handleIL2PResult(id Candidate, res il2p.Result) {
	payload, corrected, ok := il2p.DecodePayload(res.PayloadBlock, res.Header.PayloadLen)
	if !ok {
		return
	}
	if res.HasCRC && il2p.CRC(payload) != il2p.DecodeCRC(res.CRCBlock) {
		return
	}
	frame, err := ax25.Parse(payload, b.modulo128)
	if err != nil {
		return
	}
	b.deliver(id, frame, FECIL2P, corrected)
}

// deliver runs the winner-selection dedupe shared by all three decode
// paths: the first candidate (of any FEC type) to produce a given frame
// within DedupeWindow wins, everything else recovering the same bytes
// within the window is suppressed.
func (b *Bank) deliver(id Candidate, frame ax25.Frame, fec FECType, corrected int) {
	now := timeNow()
	key := string(frame.Bytes())
	if last, ok := b.seen[key]; ok && now.Sub(last) < DedupeWindow {
		return
	}
	b.seen[key] = now
	b.pruneSeen(now)
	if b.onWinner == nil {
		return
	}
	b.onWinner(Decoded{
		Candidate:  id,
		Frame:      frame,
		At:         now,
		FEC:        fec,
		Corrected:  corrected,
		AudioLevel: b.levelFor(id),
		Spectrum:   b.spectrumString(id),
	})
}

func (b *Bank) levelFor(id Candidate) int {
	for _, m := range b.members {
		if m.id == id {
			if r, ok := m.source.(levelReporter); ok {
				return r.Level()
			}
			return 0
		}
	}
	return 0
}

// spectrumString marks, one character per registered candidate in
// registration order, which candidate produced the winning Decoded.
func (b *Bank) spectrumString(winner Candidate) string {
	out := make([]byte, len(b.members))
	for i, m := range b.members {
		if m.id == winner {
			out[i] = '*'
		} else {
			out[i] = '.'
		}
	}
	return string(out)
}

func (b *Bank) pruneSeen(now time.Time) {
	for k, t := range b.seen {
		if now.Sub(t) > DedupeWindow {
			delete(b.seen, k)
		}
	}
}

// ProcessSample feeds one audio sample to every candidate in the bank,
// racing its HDLC deframer against its FX.25 and IL2P correlators on the
// same recovered bit.
func (b *Bank) ProcessSample(sam float64) {
	for _, m := range b.members {
		bit, have := m.source.ProcessSample(sam)
		if !have {
			continue
		}
		m.deframer.PutBit(bit)
		m.fx25Rx.PutBit(bit)
		m.il2pRx.PutBit(bit)
	}
}

// DCDPresent reports whether any candidate in the bank currently sees
// carrier, suitable as a channelaccess.DCDSource for the channel this
// bank is listening on.
func (b *Bank) DCDPresent() bool {
	for _, m := range b.members {
		if r, ok := m.source.(dcdReporter); ok && r.DCDPresent() {
			return true
		}
	}
	return false
}

// timeNow is a seam so tests can avoid depending on wall-clock timing.
var timeNow = time.Now

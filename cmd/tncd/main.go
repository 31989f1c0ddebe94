// Command tncd wires the modem/link core components (demodulator bank,
// HDLC/FEC framing, DLQ dispatch, TX queue + CSMA-p channel access, PTT
// backends, and the connected-mode link state machine) into a running
// TNC. It accepts no command-line flags — file and flag parsing are
// explicit Non-goals of the core — and instead wires a config.Config
// built in-process, the way an external launcher would after loading
// its own configuration file.
package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	charmlog "github.com/charmbracelet/log"

	"github.com/kb9vck/pktmodem/internal/ax25"
	"github.com/kb9vck/pktmodem/internal/channelaccess"
	"github.com/kb9vck/pktmodem/internal/config"
	"github.com/kb9vck/pktmodem/internal/demod"
	"github.com/kb9vck/pktmodem/internal/dlq"
	"github.com/kb9vck/pktmodem/internal/dtmf"
	"github.com/kb9vck/pktmodem/internal/fixer"
	"github.com/kb9vck/pktmodem/internal/fx25"
	"github.com/kb9vck/pktmodem/internal/hdlc"
	"github.com/kb9vck/pktmodem/internal/il2p"
	"github.com/kb9vck/pktmodem/internal/link"
	"github.com/kb9vck/pktmodem/internal/logging"
	"github.com/kb9vck/pktmodem/internal/ptt"
	"github.com/kb9vck/pktmodem/internal/txqueue"
)

// channelRuntime holds one channel's wired-together runtime components.
type channelRuntime struct {
	id       int
	queue    *txqueue.Queue
	pttSet   *ptt.Set
	bank     *demod.Bank
	access   *channelaccess.Controller
	sessions map[string]*link.Session

	dtmfDecoder   *dtmf.Decoder
	dtmfSequencer *dtmf.Sequencer
	dlq           *dlq.Queue
}

// ProcessDTMFSample feeds one control-channel audio sample through this
// channel's DTMF decoder and command sequencer. A completed command is
// pushed onto the DLQ as a ReceivedFrame event with Subchannel -1, the
// marker that distinguishes a touch-tone command from a demodulated
// over-the-air frame.
func (ch *channelRuntime) ProcessDTMFSample(sam float64) {
	out, have := ch.dtmfDecoder.ProcessSample(sam)
	if !have {
		return
	}
	cmd, complete := ch.dtmfSequencer.Feed(out)
	if !complete {
		return
	}
	ch.dlq.Push(dlq.Event{
		Kind:       dlq.EventReceivedFrame,
		Channel:    ch.id,
		Subchannel: -1,
		Data:       []byte(cmd),
	})
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

// sessionTable owns every channel's connected-mode sessions behind one
// mutex, so the dispatcher (frame/request handling) and the timer
// driver (Tick) can't interleave state transitions.
type sessionTable struct {
	mu       sync.Mutex
	cfg      *config.Config
	channels []*channelRuntime
}

// withSession runs fn on the session for {channel, remote} under the
// table lock, creating the session first if create is set. Everything a
// session does happens under this lock, including timer Ticks, so state
// transitions never interleave.
func (st *sessionTable) withSession(channel int, remote ax25.Address, create bool, fn func(*link.Session)) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s := st.channels[channel].sessions[remote.String()]
	if s == nil {
		if !create {
			return
		}
		s = st.newSession(channel, remote)
	}
	fn(s)
}

func (st *sessionTable) newSession(channel int, remote ax25.Address) *link.Session {
	ch := st.channels[channel]
	key := remote.String()
	lcfg := link.DefaultConfig()
	lcfg.Window = st.cfg.MaxFrame
	lcfg.Window128 = st.cfg.EMaxFrame
	lcfg.N1 = st.cfg.PACLEN
	lcfg.N2 = st.cfg.N2Retry
	lcfg.MaxV22 = st.cfg.MaxV22
	if st.cfg.T1VMs > 0 {
		lcfg.T1 = ms(st.cfg.T1VMs)
	}
	lcfg.V20Only = containsCall(st.cfg.V20OnlyPeers, key)
	lcfg.NoXID = containsCall(st.cfg.NoXIDPeers, key)
	local := ax25.Address{Callsign: "N0CALL", SSID: 0}
	s := link.NewSession(channel, local, remote, lcfg, func(f ax25.Frame) {
		ch.queue.Append(txqueue.PrioLow, txqueue.Item{Frame: f, Connected: true})
	}, nil, nil)
	ch.sessions[key] = s
	return s
}

func (st *sessionTable) tickAll() {
	st.mu.Lock()
	defer st.mu.Unlock()
	for _, ch := range st.channels {
		for _, s := range ch.sessions {
			s.Tick()
		}
	}
}

func containsCall(list []string, call string) bool {
	for _, c := range list {
		if c == call {
			return true
		}
	}
	return false
}

func buildPTTSet(channel int, cc config.ChannelConfig) *ptt.Set {
	log := logging.For("tncd")
	var backends []ptt.Backend
	switch cc.PTTMethod {
	case "serial-rts":
		b, err := ptt.NewSerialBackend(cc.PTTDevice, ptt.LineRTS, false)
		if err != nil {
			log.Error("serial PTT backend unavailable", "channel", channel, "err", err)
		} else {
			backends = append(backends, b)
		}
	case "serial-dtr":
		b, err := ptt.NewSerialBackend(cc.PTTDevice, ptt.LineDTR, false)
		if err != nil {
			log.Error("serial PTT backend unavailable", "channel", channel, "err", err)
		} else {
			backends = append(backends, b)
		}
	case "gpio":
		b, err := ptt.NewGPIOBackend(cc.PTTDevice, 0, false)
		if err != nil {
			log.Error("GPIO PTT backend unavailable", "channel", channel, "err", err)
		} else {
			backends = append(backends, b)
		}
	case "hamlib":
		b, err := ptt.NewHamlibBackend(0, cc.PTTDevice, 9600)
		if err != nil {
			log.Error("hamlib PTT backend unavailable", "channel", channel, "err", err)
		} else {
			backends = append(backends, b)
		}
	default:
		log.Warn("no PTT method configured; channel will run keyless", "channel", channel)
	}
	return ptt.NewSet(channel, backends...)
}

// buildBank constructs one candidate demodulator per configured
// sub-channel x slicer, all feeding the same deduplicating bank. Each
// sub-channel's center frequency is offset from the first by
// SubchannelOffsetHz, spreading sub-channels across an FM channel's
// passband to tolerate radio frequency drift; each slicer within a
// sub-channel applies a different decision-threshold bias. The
// sub-channel x slicer product is clamped to demod.MaxCandidates.
// Actually feeding audio samples into the returned bank (the capture
// loop itself) is left to the caller: wiring a live sound device here
// would cross into the audio-device-binding territory this core
// intentionally confines to cmd/audiodemo.
func buildBank(channel, sampleRate int, cc config.ChannelConfig, onWinner func(demod.Decoded)) *demod.Bank {
	bank := demod.NewBank(false, onWinner)
	n := cc.NumSubchannels
	if n < 1 {
		n = 1
	}
	l := cc.NumSlicers
	if l < 1 {
		l = 1
	}
	// PSK has no amplitude threshold to bias; it always runs one slicer.
	if cc.ModemType == config.ModemPSKV26 || cc.ModemType == config.ModemPSKV27 {
		l = 1
	}
	if n*l > demod.MaxCandidates {
		l = demod.MaxCandidates / n
		if l < 1 {
			l = 1
		}
		logging.For("tncd").Warn("subchannel x slicer product clamped", "channel", channel, "slicers", l)
	}
	biases := demod.SlicerBiases(l)
	v26Alt := demod.V26AltA
	if cc.V26Alt == config.V26B {
		v26Alt = demod.V26AltB
	}
	for sub := 0; sub < n; sub++ {
		offset := sub * cc.SubchannelOffsetHz
		for slice := 0; slice < l; slice++ {
			var source interface {
				ProcessSample(sam float64) (bit int, haveBit bool)
			}
			switch cc.ModemType {
			case config.ModemPSKV26:
				source = demod.NewPSKDemod(demod.PSKConfig{SamplesPerSec: sampleRate, CarrierFreq: cc.MarkFreq + offset, Mode: demod.PSKV26, V26Alt: v26Alt})
			case config.ModemPSKV27:
				source = demod.NewPSKDemod(demod.PSKConfig{SamplesPerSec: sampleRate, CarrierFreq: cc.MarkFreq + offset, Mode: demod.PSKV27})
			case config.ModemScrambledNRZI:
				source = demod.NewScrambledNRZIDemod(demod.ScrambledNRZIConfig{SamplesPerSec: sampleRate, Baud: cc.Baud, SliceBias: biases[slice]})
			default:
				source = demod.NewAFSKDemod(demod.AFSKConfig{SamplesPerSec: sampleRate, Baud: cc.Baud, MarkFreq: cc.MarkFreq + offset, SpaceFreq: cc.SpaceFreq + offset, SliceBias: biases[slice]})
			}
			bank.AddCandidate(demod.Candidate{Channel: channel, Subchannel: sub, Slice: slice}, source)
		}
	}
	return bank
}

// fxStrengthFor maps the configuration surface's FX.25 strength tier
// onto the fx25 package's own enum.
func fxStrengthFor(s config.FXStrength) fx25.Strength {
	switch s {
	case config.FXStrong:
		return fx25.StrengthStrong
	case config.FXMax:
		return fx25.StrengthMax
	default:
		return fx25.StrengthAuto
	}
}

// sanityFor builds the frame fixer's post-flip plausibility filter for
// the configured mode: SanityAX25 requires the flipped bytes to parse as
// a structurally valid frame, SanityAPRS additionally requires a UI
// frame carrying the APRS PID.
func sanityFor(mode config.SanityMode) fixer.Sanity {
	switch mode {
	case config.SanityAX25:
		return func(frame []byte) bool {
			_, err := ax25.Parse(frame, false)
			return err == nil
		}
	case config.SanityAPRS:
		return func(frame []byte) bool {
			f, err := ax25.Parse(frame, false)
			if err != nil {
				return false
			}
			ctl := f.Control()
			if ctl.Category != ax25.CategoryU || ctl.UType != ax25.CtlUI {
				return false
			}
			pid, ok := f.PID()
			return ok && pid == 0xf0
		}
	default:
		return nil
	}
}

// il2pHeaderFor derives an IL2P header's Control/PID/UI fields from an
// already-built AX.25 frame body (address..info, no FCS).
func il2pHeaderFor(body []byte) (il2p.Header, error) {
	f, err := ax25.Parse(body, false)
	if err != nil {
		return il2p.Header{}, err
	}
	ctl := f.Control()
	h := il2p.Header{
		Control: ax25.EncodeControl(ctl, false)[0] & 0x7f,
		UI:      ctl.Category == ax25.CategoryU && ctl.UType == ax25.CtlUI,
	}
	if pid, ok := f.PID(); ok {
		h.PID = pid & 0x0f
	}
	return h, nil
}

// frameForTX wraps an outgoing AX.25 frame body (address..info, no FCS)
// in whichever of HDLC/FX.25/IL2P this channel is configured to
// transmit with, per cc.Framing.
func frameForTX(cc config.ChannelConfig, body []byte) ([]byte, error) {
	switch cc.Framing {
	case config.FramingFX25:
		framed := ax25.AppendFCS(append([]byte(nil), body...))
		tagIdx, err := fx25.SelectTag(len(framed), fxStrengthFor(cc.FX25Strength))
		if err != nil {
			return nil, err
		}
		return fx25.Encode(tagIdx, framed)
	case config.FramingIL2P:
		h, err := il2pHeaderFor(body)
		if err != nil {
			return nil, err
		}
		h.FECLevel = cc.IL2PStrength == config.IL2PMax
		out, err := il2p.Encode(h, body, body)
		if err != nil {
			return nil, err
		}
		if cc.IL2PInvertPolarity {
			for i := range out {
				out[i] ^= 0xff
			}
		}
		return out, nil
	default:
		return hdlc.Framer{}.FrameWithFCS(body), nil
	}
}

func buildChannel(id int, cc config.ChannelConfig, sampleRate int, q *dlq.Queue) *channelRuntime {
	txq := txqueue.New()
	pttSet := buildPTTSet(id, cc)

	onWinner := func(d demod.Decoded) {
		fec := dlq.FECNone
		switch d.FEC {
		case demod.FECFX25:
			fec = dlq.FECFX25
		case demod.FECIL2P:
			fec = dlq.FECIL2P
		}
		q.Push(dlq.Event{
			Kind:       dlq.EventReceivedFrame,
			Channel:    id,
			Subchannel: d.Candidate.Subchannel,
			Slice:      d.Candidate.Slice,
			Frame:      d.Frame,
			FEC:        fec,
			Corrected:  d.Corrected,
			AudioLevel: d.AudioLevel,
			Spectrum:   d.Spectrum,
		})
	}
	bank := buildBank(id, sampleRate, cc, onWinner)
	bank.SetFixer(fixer.Level(cc.FixBitsDepth), sanityFor(cc.SanityMode))

	accessCfg := channelaccess.Config{
		Channel:    id,
		SlotTime:   ms(cc.SlotTime * 10),
		Persist:    cc.Persist,
		TXDelay:    ms(cc.TXDelay * 10),
		TXTail:     ms(cc.TXTail * 10),
		DWait:      ms(cc.DWait * 10),
		FullDuplex: cc.FullDuplex,
		Baud:       cc.Baud,
	}

	flags := func(n int) { _ = n } // flag padding goes to the modulator, wired at the audio layer
	send := func(frame []byte) {
		out, err := frameForTX(cc, frame)
		if err != nil {
			logging.For("tncd").Error("failed to frame outgoing data", "channel", id, "framing", cc.Framing, "err", err)
			return
		}
		// Handing these bytes to an actual modulator/sound device crosses
		// into cmd/audiodemo's territory; this core's responsibility ends
		// at producing the correctly wrapped on-air bytes.
		logging.For("tncd").Debug("framed outgoing data", "channel", id, "framing", cc.Framing, "bytes", len(out))
	}

	access := channelaccess.NewController(accessCfg, bank.DCDPresent, pttSet, txq, flags, send)

	return &channelRuntime{
		id:            id,
		queue:         txq,
		pttSet:        pttSet,
		bank:          bank,
		access:        access,
		sessions:      make(map[string]*link.Session),
		dtmfDecoder:   dtmf.NewDecoder(sampleRate, 205*sampleRate/8000),
		dtmfSequencer: dtmf.NewSequencer(),
		dlq:           q,
	}
}

func runDispatcher(ctx context.Context, q *dlq.Queue, st *sessionTable) {
	log := logging.For("tncd")
	for {
		ev, ok := q.Pop()
		if !ok {
			return
		}
		switch {
		case ev.Kind == dlq.EventReceivedFrame && ev.Subchannel == -1:
			// A DTMF command completion, not a demodulated frame: it
			// carries no ax25.Frame to dispatch to a link.Session.
			log.Info("DTMF command received", "channel", ev.Channel, "command", string(ev.Data))
		case ev.Kind == dlq.EventReceivedFrame:
			frame := ev.Frame
			st.withSession(ev.Channel, frame.Source(), true, func(s *link.Session) {
				s.HandleFrame(frame)
			})
		case ev.Kind == dlq.EventClientConnect && len(ev.Path) > 0:
			st.withSession(ev.Channel, ev.Path[0], true, (*link.Session).Connect)
		case ev.Kind == dlq.EventClientDisconnect && len(ev.Path) > 0:
			st.withSession(ev.Channel, ev.Path[0], false, (*link.Session).Disconnect)
		case ev.Kind == dlq.EventClientData && len(ev.Path) > 0:
			data := ev.Data
			channel, remote := ev.Channel, ev.Path[0]
			st.withSession(channel, remote, true, func(s *link.Session) {
				if !s.SendData(data) {
					log.Warn("data request refused, link not connected", "channel", channel, "remote", remote.String())
				}
			})
		case ev.Kind == dlq.EventRegisterCallsign:
			log.Info("callsign registered", "channel", ev.Channel, "client", ev.ClientID)
		default:
			log.Debug("dispatching event", "kind", ev.Kind)
		}
		if ctx.Err() != nil {
			return
		}
	}
}

func main() {
	logging.SetLevel(charmlog.InfoLevel)

	cfg := config.Default()
	q := dlq.New()

	// A single audio device backs every channel in this default config;
	// a multi-device deployment would look each channel's device up by
	// index instead.
	sampleRate := cfg.Devices[0].SampleRate

	channels := make([]*channelRuntime, len(cfg.Channels))
	for i, cc := range cfg.Channels {
		channels[i] = buildChannel(i, cc, sampleRate, q)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// The dispatcher blocks in q.Pop; closing the queue is what actually
	// unblocks it on shutdown.
	go func() {
		<-ctx.Done()
		q.Close()
		for _, ch := range channels {
			ch.queue.Close()
		}
	}()

	for _, ch := range channels {
		go ch.access.Run(ctx)
	}

	st := &sessionTable{cfg: cfg, channels: channels}

	// Link timer driver: one goroutine evaluating every session's
	// T1/T2/T3 deadlines on a shared ~100ms cadence.
	go func() {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				st.tickAll()
			}
		}
	}()

	runDispatcher(ctx, q, st)
}

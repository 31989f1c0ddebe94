// Package link implements the AX.25 v2.0/v2.2 connected-mode data-link
// state machine: one Session per {channel, remote address} pair,
// covering SABM(E)/UA/DISC/DM connection setup and teardown, I-frame
// sequencing with modulo-8 or modulo-128 windowing, RR/RNR/REJ/SREJ
// acknowledgement, the T1/T2/T3 timer trio, the N2 retry counter, and
// XID negotiation.
package link

import (
	"time"

	"github.com/charmbracelet/log"

	"github.com/kb9vck/pktmodem/internal/ax25"
	"github.com/kb9vck/pktmodem/internal/logging"
)

// State is one of the connected-mode session states.
type State int

const (
	Disconnected State = iota
	AwaitingConnect
	AwaitingConnect2_2
	Connected
	TimerRecovery
	AwaitingRelease
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "Disconnected"
	case AwaitingConnect:
		return "AwaitingConnect"
	case AwaitingConnect2_2:
		return "AwaitingConnect2_2"
	case Connected:
		return "Connected"
	case TimerRecovery:
		return "TimerRecovery"
	case AwaitingRelease:
		return "AwaitingRelease"
	default:
		return "Unknown"
	}
}

// FailureKind is reported up to the external consumer when a session
// cannot proceed.
type FailureKind int

const (
	FailNone FailureKind = iota
	FailConnectTimedOut
	FailDisconnected
	FailLinkReset
	FailFrameRejected
)

// Config holds the negotiable and fixed parameters of one session
// (PACLEN, N2, T1V, MAXFRAME/EMAXFRAME) with per-session override room
// for XID renegotiation.
type Config struct {
	Modulo128 bool
	Window    int // k under modulo-8 (MAXFRAME)
	Window128 int // k under modulo-128 (EMAXFRAME); falls back to Window if zero
	N1        int // PACLEN, max info length
	N2        int // max retries before abandoning the session
	T1        time.Duration
	T2        time.Duration
	T3        time.Duration
	NoXID     bool // peer is in the configured no-XID list
	V20Only   bool // peer is in the configured v2.0-only list
	MaxV22    int  // SABME retries before auto-fall-back to v2.0
}

// DefaultConfig returns the conventional AX.25 2.2 defaults.
func DefaultConfig() Config {
	return Config{
		Modulo128: false,
		Window:    4,
		Window128: 32,
		N1:        256,
		N2:        10,
		T1:        3 * time.Second,
		T2:        500 * time.Millisecond,
		T3:        180 * time.Second,
		MaxV22:    3,
	}
}

func (c Config) modulo() int {
	if c.Modulo128 {
		return 128
	}
	return 8
}

// window is the k currently in effect, tracking the session's modulo.
// A SABME fall-back to v2.0 automatically shrinks it back to the
// modulo-8 value.
func (c Config) window() int {
	if c.Modulo128 && c.Window128 > 0 {
		return c.Window128
	}
	return c.Window
}

// pendingIFrame is one I-frame kept in the resend queue: either already
// sent and awaiting acknowledgement (for retransmission on REJ/T1
// expiry), or enqueued but not yet sent because the window was closed
// at SendData time (for first transmission once the window reopens).
// ns is assigned from V(s) at first transmission, not at enqueue, so
// V(s) never runs ahead of what has actually been on the air and the
// send window constraint stays intact.
type pendingIFrame struct {
	ns   int
	info []byte
	sent bool
}

// Session is one connected-mode link between a local and remote
// station on one channel.
type Session struct {
	Channel int
	Local   ax25.Address
	Remote  ax25.Address
	cfg     Config

	state State

	vs, vr, va int // V(s), V(r), V(a)

	resend     []pendingIFrame
	reorderBuf map[int][]byte // SREJ reassembly, keyed by N(s)

	ownBusy, peerBusy bool

	rc int // retry counter

	sabmeAttempts int

	t1Deadline, t2Deadline, t3Deadline time.Time
	t1Active, t2Active, t3Active       bool

	send    func(ax25.Frame)
	deliver func(data []byte)
	failed  func(FailureKind)
}

// NewSession creates a session in Disconnected state.
func NewSession(channel int, local, remote ax25.Address, cfg Config, send func(ax25.Frame), deliver func(data []byte), failed func(FailureKind)) *Session {
	return &Session{
		Channel:    channel,
		Local:      local,
		Remote:     remote,
		cfg:        cfg,
		state:      Disconnected,
		reorderBuf: make(map[int][]byte),
		send:       send,
		deliver:    deliver,
		failed:     failed,
	}
}

func (s *Session) State() State { return s.state }

func (s *Session) logger() *log.Logger {
	return logging.For("link").With("channel", s.Channel, "remote", s.Remote.String())
}

func (s *Session) setState(ns State) {
	if s.state != ns {
		s.logger().Info("state transition", "from", s.state.String(), "to", ns.String())
	}
	s.state = ns
}

// Connect initiates an outgoing connection: sends SABME (v2.2) unless
// the peer is configured v2.0-only, starts T1.
func (s *Session) Connect() {
	s.vs, s.vr, s.va = 0, 0, 0
	s.rc = 0
	s.sabmeAttempts = 0
	if s.cfg.V20Only {
		s.sendU(ax25.CtlSABM, true)
		s.setState(AwaitingConnect)
	} else {
		s.sendU(ax25.CtlSABME, true)
		s.setState(AwaitingConnect2_2)
	}
	s.startT1()
}

// Disconnect initiates a graceful teardown: sends DISC, starts T1.
func (s *Session) Disconnect() {
	s.sendU(ax25.CtlDISC, true)
	s.setState(AwaitingRelease)
	s.startT1()
}

func (s *Session) sendU(ctl byte, poll bool) {
	c := ax25.Control{Category: ax25.CategoryU, UType: ctl, PF: poll}
	f, err := ax25.Build(s.Remote, s.Local, nil, c, s.cfg.Modulo128, 0, false, nil)
	if err != nil {
		s.logger().Error("build U frame failed", "err", err)
		return
	}
	s.send(f)
}

func (s *Session) sendS(stype byte, poll bool) {
	c := ax25.Control{Category: ax25.CategoryS, SType: stype, NR: s.vr, PF: poll}
	f, err := ax25.Build(s.Remote, s.Local, nil, c, s.cfg.Modulo128, 0, false, nil)
	if err != nil {
		s.logger().Error("build S frame failed", "err", err)
		return
	}
	s.send(f)
}

func (s *Session) sendI(p pendingIFrame, poll bool) {
	c := ax25.Control{Category: ax25.CategoryI, NS: p.ns, NR: s.vr, PF: poll}
	f, err := ax25.Build(s.Remote, s.Local, nil, c, s.cfg.Modulo128, 0xf0, true, p.info)
	if err != nil {
		s.logger().Error("build I frame failed", "err", err)
		return
	}
	s.send(f)
}

// SendData queues application data as an I-frame. It is only accepted
// while Connected or TimerRecovery (queued, sent once the window
// reopens).
func (s *Session) SendData(info []byte) bool {
	if s.state != Connected && s.state != TimerRecovery {
		return false
	}
	if len(info) > s.cfg.N1 {
		return false
	}
	s.resend = append(s.resend, pendingIFrame{ns: -1, info: info})
	s.flushWindow()
	return true
}

// flushWindow sends every not-yet-sent resend entry that still fits in
// the window, in N(s) order, stopping at the first that doesn't fit or
// if the peer is busy. Called whenever the outstanding count could have
// just decreased (an ack arrived) or a new frame was enqueued.
func (s *Session) flushWindow() {
	if s.peerBusy {
		return
	}
	outstanding := 0
	for _, p := range s.resend {
		if p.sent {
			outstanding++
		}
	}
	for i := range s.resend {
		if s.resend[i].sent {
			continue
		}
		if outstanding >= s.cfg.window() {
			break
		}
		s.resend[i].ns = s.vs
		s.vs = (s.vs + 1) % s.cfg.modulo()
		s.sendI(s.resend[i], false)
		s.resend[i].sent = true
		outstanding++
		if !s.t1Active {
			s.startT1()
		}
	}
}

// HandleFrame processes one received frame addressed to this session.
func (s *Session) HandleFrame(f ax25.Frame) {
	ctl := f.Control()
	switch ctl.Category {
	case ax25.CategoryU:
		s.handleU(f, ctl)
	case ax25.CategoryS:
		s.handleS(ctl)
	case ax25.CategoryI:
		s.handleI(f, ctl)
	}
}

func (s *Session) handleU(f ax25.Frame, ctl ax25.Control) {
	switch ctl.UType {
	case ax25.CtlSABM, ax25.CtlSABME:
		s.vs, s.vr, s.va = 0, 0, 0
		s.resend = nil
		s.cfg.Modulo128 = ctl.UType == ax25.CtlSABME
		s.sendU(ax25.CtlUA, ctl.PF)
		s.setState(Connected)
		s.startT3()
		s.maybeInitiateXID()
	case ax25.CtlUA:
		switch s.state {
		case AwaitingConnect, AwaitingConnect2_2:
			s.stopT1()
			s.vs, s.vr, s.va = 0, 0, 0
			s.setState(Connected)
			s.startT3()
			s.maybeInitiateXID()
		case AwaitingRelease:
			s.stopT1()
			s.setState(Disconnected)
			if s.failed != nil {
				s.failed(FailDisconnected)
			}
		}
	case ax25.CtlDM:
		switch s.state {
		case AwaitingConnect2_2:
			// Peer doesn't do 2.2: fall back to 2.0 and retry.
			s.cfg.Modulo128 = false
			s.sendU(ax25.CtlSABM, true)
			s.setState(AwaitingConnect)
			s.startT1()
		case AwaitingConnect, AwaitingRelease:
			s.stopT1()
			s.setState(Disconnected)
			if s.failed != nil {
				s.failed(FailDisconnected)
			}
		default:
			s.setState(Disconnected)
			if s.failed != nil {
				s.failed(FailDisconnected)
			}
		}
	case ax25.CtlDISC:
		s.sendU(ax25.CtlUA, ctl.PF)
		s.stopAllTimers()
		s.setState(Disconnected)
		if s.failed != nil {
			s.failed(FailDisconnected)
		}
	case ax25.CtlFRMR:
		s.stopAllTimers()
		s.setState(Disconnected)
		if s.failed != nil {
			s.failed(FailLinkReset)
		}
	case ax25.CtlXID:
		s.handleXID(f, ctl)
	}
}

func (s *Session) handleS(ctl ax25.Control) {
	switch ctl.SType {
	case ax25.STypeRR:
		s.peerBusy = false
		s.ackUpTo(ctl.NR)
		if ctl.PF {
			s.sendS(ax25.STypeRR, false)
		}
	case ax25.STypeRNR:
		s.peerBusy = true
		s.ackUpTo(ctl.NR)
	case ax25.STypeREJ:
		s.logger().Warn("REJ received", "nr", ctl.NR)
		s.ackUpTo(ctl.NR)
		s.retransmitFrom(ctl.NR)
	case ax25.STypeSREJ:
		if !ctl.PF {
			s.logger().Warn("unexpected SREJ command")
		}
		s.retransmitOne(ctl.NR)
	}
	s.restartIdleTimer()
}

func (s *Session) handleI(f ax25.Frame, ctl ax25.Control) {
	if s.ownBusy {
		s.sendS(ax25.STypeRNR, ctl.PF)
		return
	}
	modulo := s.cfg.modulo()
	if ctl.NS == s.vr {
		s.vr = (s.vr + 1) % modulo
		if s.deliver != nil {
			s.deliver(f.Info())
		}
		for {
			buf, ok := s.reorderBuf[s.vr]
			if !ok {
				break
			}
			delete(s.reorderBuf, s.vr)
			s.vr = (s.vr + 1) % modulo
			if s.deliver != nil {
				s.deliver(buf)
			}
		}
		s.ackUpTo(ctl.NR)
		if ctl.PF {
			s.sendS(ax25.STypeRR, true)
		} else {
			s.scheduleT2Ack()
		}
	} else if inWindow(ctl.NS, s.vr, modulo, s.cfg.window()) {
		s.reorderBuf[ctl.NS] = f.Info()
		s.sendS(ax25.STypeSREJ, false)
	} else {
		s.sendS(ax25.STypeREJ, false)
	}
	s.restartIdleTimer()
}

func inWindow(ns, vr, modulo, k int) bool {
	diff := (ns - vr + modulo) % modulo
	return diff > 0 && diff < k
}

// ackUpTo releases every sent I-frame whose N(s) falls in [V(a), nr)
// and advances V(a). An N(r) outside the outstanding range is ignored:
// acting on it would release frames the peer can't have seen.
func (s *Session) ackUpTo(nr int) {
	modulo := s.cfg.modulo()
	acked := (nr - s.va + modulo) % modulo
	outstanding := (s.vs - s.va + modulo) % modulo
	if acked > outstanding {
		s.logger().Warn("N(R) outside send window ignored", "nr", nr, "va", s.va, "vs", s.vs)
		return
	}
	oldVa := s.va
	s.va = nr
	kept := s.resend[:0]
	for _, p := range s.resend {
		if p.sent && (p.ns-oldVa+modulo)%modulo < acked {
			continue
		}
		kept = append(kept, p)
	}
	s.resend = kept
	s.flushWindow()
	if s.vs == s.va && allSent(s.resend) {
		s.stopT1()
	} else {
		s.startT1()
	}
}

// allSent reports whether every resend entry has already been sent at
// least once, i.e. there is nothing left waiting on the window to open.
func allSent(resend []pendingIFrame) bool {
	for _, p := range resend {
		if !p.sent {
			return false
		}
	}
	return true
}

// retransmitFrom replays every still-outstanding I-frame in N(s) order.
// It runs after ackUpTo has already released everything the triggering
// N(r) acknowledged, so the sent entries left in the resend queue are
// exactly the go-back-N range [N(r), V(s)). The entries keep their
// originally assigned N(s); V(s) stays one past the highest assigned
// number, so new data never collides with an outstanding frame.
func (s *Session) retransmitFrom(nr int) {
	for i, p := range s.resend {
		if p.sent {
			s.sendI(p, false)
			s.resend[i].sent = true
		}
	}
}

func (s *Session) retransmitOne(ns int) {
	for i, p := range s.resend {
		if p.ns == ns && p.sent {
			s.sendI(p, false)
			s.resend[i].sent = true
			return
		}
	}
}

func (s *Session) handleXID(f ax25.Frame, ctl ax25.Control) {
	if s.cfg.NoXID {
		return
	}
	params, err := DecodeXID(f.Info())
	if err != nil {
		s.logger().Warn("bad XID", "err", err)
		return
	}
	s.applyXIDParams(params)
	// Only a poll (the negotiation request) gets a reply; answering the
	// peer's final response too would bounce XID frames back and forth
	// indefinitely.
	if !ctl.PF {
		return
	}
	reply, err := EncodeXID(paramsFromConfig(s.cfg))
	if err != nil {
		return
	}
	c := ax25.Control{Category: ax25.CategoryU, UType: ax25.CtlXID, PF: false}
	resp, err := ax25.Build(s.Remote, s.Local, nil, c, s.cfg.Modulo128, 0, false, reply)
	if err != nil {
		return
	}
	s.send(resp)
}

// maybeInitiateXID sends an XID request once a modulo-128 session
// reaches Connected, negotiating down-revised N1 and k; skipped for
// peers in the configured no-XID list.
func (s *Session) maybeInitiateXID() {
	if !s.cfg.Modulo128 || s.cfg.NoXID {
		return
	}
	reply, err := EncodeXID(paramsFromConfig(s.cfg))
	if err != nil {
		return
	}
	c := ax25.Control{Category: ax25.CategoryU, UType: ax25.CtlXID, PF: true}
	f, err := ax25.Build(s.Remote, s.Local, nil, c, s.cfg.Modulo128, 0, false, reply)
	if err != nil {
		return
	}
	s.send(f)
}

func (s *Session) applyXIDParams(p XIDParams) {
	if p.WindowTX > 0 && p.WindowTX < s.cfg.window() {
		if s.cfg.Modulo128 {
			s.cfg.Window128 = p.WindowTX
		} else {
			s.cfg.Window = p.WindowTX
		}
	}
	// InfoLen parameters travel in bits; N1 is bytes.
	if n := p.InfoLenTX / 8; n > 0 && n < s.cfg.N1 {
		s.cfg.N1 = n
	}
}

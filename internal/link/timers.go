package link

import (
	"time"

	"github.com/kb9vck/pktmodem/internal/ax25"
)

// Timers are evaluated by an external driver calling Tick once per
// global timer-thread wakeup (every ~100ms, evaluating T1/T2/T3
// deadlines for all sessions), rather than each session owning its own
// goroutine.

func (s *Session) startT1() {
	s.t1Deadline = now().Add(s.cfg.T1)
	s.t1Active = true
}

func (s *Session) stopT1() {
	s.t1Active = false
	s.rc = 0
}

func (s *Session) startT3() {
	s.t3Deadline = now().Add(s.cfg.T3)
	s.t3Active = true
}

func (s *Session) restartIdleTimer() {
	if s.state == Connected || s.state == TimerRecovery {
		s.startT3()
	}
}

func (s *Session) scheduleT2Ack() {
	s.t2Deadline = now().Add(s.cfg.T2)
	s.t2Active = true
}

func (s *Session) stopAllTimers() {
	s.t1Active, s.t2Active, s.t3Active = false, false, false
}

// now is a seam so tests can drive timer expiry deterministically
// without depending on wall-clock sleeps.
var now = time.Now

// Tick evaluates T1/T2/T3 against the current time and performs any
// timer-driven action (resend with P=1, send a pending RR response, or
// send an idle-keepalive poll).
func (s *Session) Tick() {
	n := now()

	if s.t1Active && !n.Before(s.t1Deadline) {
		s.t1Active = false
		s.onT1Expiry()
	}
	if s.t2Active && !n.Before(s.t2Deadline) {
		s.t2Active = false
		s.sendS(ax25.STypeRR, false)
	}
	if s.t3Active && !n.Before(s.t3Deadline) {
		s.t3Active = false
		s.onT3Expiry()
	}
}

func (s *Session) onT1Expiry() {
	s.rc++
	if s.rc > s.cfg.N2 {
		s.stopAllTimers()
		prevState := s.state
		s.setState(Disconnected)
		if s.failed != nil {
			if prevState == AwaitingConnect || prevState == AwaitingConnect2_2 {
				s.failed(FailConnectTimedOut)
			} else {
				s.failed(FailLinkReset)
			}
		}
		return
	}

	switch s.state {
	case AwaitingConnect:
		s.sendU(ax25.CtlSABM, true)
	case AwaitingConnect2_2:
		s.sabmeAttempts++
		if s.sabmeAttempts >= s.cfg.MaxV22 {
			s.cfg.Modulo128 = false
			s.sendU(ax25.CtlSABM, true)
			s.setState(AwaitingConnect)
		} else {
			s.sendU(ax25.CtlSABME, true)
		}
	case AwaitingRelease:
		s.sendU(ax25.CtlDISC, true)
	case Connected, TimerRecovery:
		s.setState(TimerRecovery)
		s.sendS(ax25.STypeRR, true)
	}
	s.startT1()
}

func (s *Session) onT3Expiry() {
	if s.state == Connected {
		s.sendS(ax25.STypeRR, true)
		s.startT1()
	}
}

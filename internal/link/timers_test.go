package link

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestT1ExpiryRetransmitsAndIncrementsRC(t *testing.T) {
	cfg := DefaultConfig()
	cfg.T1 = 10 * time.Millisecond
	cfg.N2 = 3
	s, sent, _, _ := newTestSession(t, cfg)

	cur := time.Unix(0, 0)
	now = func() time.Time { return cur }
	defer func() { now = time.Now }()

	s.Connect()
	require.Len(t, *sent, 1)

	cur = cur.Add(cfg.T1 + time.Millisecond)
	s.Tick()
	require.Equal(t, 1, s.rc)
	require.Len(t, *sent, 2)
}

func TestN2ExceededAbandonsSession(t *testing.T) {
	cfg := DefaultConfig()
	cfg.T1 = 10 * time.Millisecond
	cfg.N2 = 2
	s, _, _, failures := newTestSession(t, cfg)

	cur := time.Unix(0, 0)
	now = func() time.Time { return cur }
	defer func() { now = time.Now }()

	s.Connect()
	for i := 0; i < cfg.N2+1; i++ {
		cur = cur.Add(cfg.T1 + time.Millisecond)
		s.Tick()
	}

	require.Equal(t, Disconnected, s.State())
	require.Contains(t, *failures, FailConnectTimedOut)
}

package channelaccess

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/kb9vck/pktmodem/internal/ax25"
	"github.com/kb9vck/pktmodem/internal/ptt"
	"github.com/kb9vck/pktmodem/internal/txqueue"
	"github.com/stretchr/testify/require"
)

func testFrame(t *testing.T) ax25.Frame {
	t.Helper()
	dest, err := ax25.ParseAddress("DEST")
	require.NoError(t, err)
	src, err := ax25.ParseAddress("SRC")
	require.NoError(t, err)
	f, err := ax25.Build(dest, src, nil, ax25.Control{Category: ax25.CategoryU, UType: ax25.CtlUI}, false, 0xf0, true, []byte("hi"))
	require.NoError(t, err)
	return f
}

// recordingBackend is a ptt.Backend that records every Key call.
type recordingBackend struct{ keyed *[]bool }

func (r recordingBackend) Key(on bool) error { *r.keyed = append(*r.keyed, on); return nil }
func (r recordingBackend) Close() error      { return nil }

func TestFullDuplexSkipsWait(t *testing.T) {
	cfg := Config{FullDuplex: true}
	c := NewController(cfg, func() bool { return true }, ptt.NewSet(0), txqueue.New(), nil, nil)
	ok := c.waitForClearChannel(context.Background())
	require.True(t, ok)
}

func TestWaitForClearChannelTimesOutWhenBusy(t *testing.T) {
	cfg := Config{
		SlotTime:      1 * time.Millisecond,
		Persist:       0,
		CheckInterval: 1 * time.Millisecond,
		WaitTimeout:   20 * time.Millisecond,
	}
	c := NewController(cfg, func() bool { return true }, ptt.NewSet(0), txqueue.New(), nil, nil)
	ok := c.waitForClearChannel(context.Background())
	require.False(t, ok)
}

func TestWaitForClearChannelProceedsWhenIdle(t *testing.T) {
	cfg := Config{
		SlotTime:      1 * time.Millisecond,
		Persist:       255,
		CheckInterval: 1 * time.Millisecond,
		WaitTimeout:   50 * time.Millisecond,
	}
	c := NewController(cfg, func() bool { return false }, ptt.NewSet(0), txqueue.New(), nil, nil)
	ok := c.waitForClearChannel(context.Background())
	require.True(t, ok)
}

func TestTransmitBurstDrainsQueueAndKeysPTT(t *testing.T) {
	q := txqueue.New()
	f := testFrame(t)
	q.Append(txqueue.PrioLow, txqueue.Item{Frame: f})
	q.Append(txqueue.PrioLow, txqueue.Item{Frame: f})

	var sent int
	var keyed []bool
	cfg := Config{}
	c := NewController(cfg, func() bool { return false }, ptt.NewSet(0, recordingBackend{keyed: &keyed}), q, func(int) {}, func(frame []byte) { sent++ })
	c.transmitBurst(f.Bytes())

	require.Equal(t, 3, sent) // the first frame passed directly, plus the two queued
	require.Equal(t, []bool{true, false}, keyed)
}

func TestTransmitBurstSkipsSeizeMarkers(t *testing.T) {
	q := txqueue.New()
	f := testFrame(t)
	q.LMSeizeRequest(txqueue.PrioLow)
	q.Append(txqueue.PrioLow, txqueue.Item{Frame: f})

	var sent int
	cfg := Config{}
	c := NewController(cfg, func() bool { return false }, ptt.NewSet(0), q, func(int) {}, func(frame []byte) { sent++ })

	// A bare marker (no frame) must still key PTT and drain the queue
	// without handing anything to the modulator.
	c.transmitBurst(nil)

	require.Equal(t, 1, sent) // only the real queued frame reached send, the marker did not
}

func TestTXInhibitBlocksTransmit(t *testing.T) {
	cfg := Config{
		SlotTime:      1 * time.Millisecond,
		Persist:       255,
		CheckInterval: 1 * time.Millisecond,
		WaitTimeout:   20 * time.Millisecond,
		InhibitGrace:  5 * time.Millisecond,
	}
	c := NewController(cfg, func() bool { return false }, ptt.NewSet(0), txqueue.New(), nil, nil)
	c.SetTXInhibit(func() bool { return true })
	require.False(t, c.waitForClearChannel(context.Background()))
}

func TestTXInhibitReleaseUnblocks(t *testing.T) {
	cfg := Config{
		SlotTime:      1 * time.Millisecond,
		Persist:       255,
		CheckInterval: 1 * time.Millisecond,
		WaitTimeout:   100 * time.Millisecond,
	}
	held := true
	c := NewController(cfg, func() bool { return false }, ptt.NewSet(0), txqueue.New(), nil, nil)
	c.SetTXInhibit(func() bool { return held })
	go func() {
		time.Sleep(10 * time.Millisecond)
		held = false
	}()
	require.True(t, c.waitForClearChannel(context.Background()))
}

func TestPersistenceCoinFairness(t *testing.T) {
	// Over every possible lottery byte, exactly PERSIST+1 of the 256
	// first draws win the slot without a backoff sleep.
	cfg := Config{
		SlotTime:      10 * time.Microsecond,
		Persist:       63,
		CheckInterval: 10 * time.Microsecond,
		WaitTimeout:   time.Second,
	}
	c := NewController(cfg, func() bool { return false }, ptt.NewSet(0), txqueue.New(), nil, nil)

	defer func() { randByte = func() int { return rand.Intn(256) } }()

	firstDrawWins := 0
	for r := 0; r < 256; r++ {
		draws := 0
		randByte = func() int {
			draws++
			if draws == 1 {
				return r
			}
			return 0 // always win the second slot so the wait terminates
		}
		require.True(t, c.waitForClearChannel(context.Background()))
		if draws == 1 {
			firstDrawWins++
		}
	}
	require.Equal(t, cfg.Persist+1, firstDrawWins)
}

func TestPersistenceLossSleepsOneSlotPerDraw(t *testing.T) {
	cfg := Config{
		SlotTime:      time.Microsecond,
		Persist:       0,
		CheckInterval: time.Microsecond,
		WaitTimeout:   time.Second,
	}
	c := NewController(cfg, func() bool { return false }, ptt.NewSet(0), txqueue.New(), nil, nil)

	defer func() { randByte = func() int { return rand.Intn(256) } }()

	losses := 5
	draws := 0
	randByte = func() int {
		draws++
		if draws <= losses {
			return 255
		}
		return 0
	}
	require.True(t, c.waitForClearChannel(context.Background()))
	require.Equal(t, losses+1, draws)
}

// Package txqueue implements the per-channel transmit queue: two
// priority FIFOs (high for digipeated/re-transmitted traffic, low for
// everything else), with the high queue always drained first. One
// Queue value per channel, with a condition variable for the
// transmitter wake-up.
package txqueue

import (
	"sync"

	"github.com/kb9vck/pktmodem/internal/ax25"
	"github.com/kb9vck/pktmodem/internal/logging"
)

// Priority selects which of the two FIFOs a frame goes on.
type Priority int

const (
	PrioHigh Priority = iota // digipeated/re-transmitted traffic: no random backoff
	PrioLow                  // everything else: subject to p-persistence backoff
)

// Backpressure points: best-effort (APRS-bearing) traffic is dropped
// past aprsWarnThreshold; connected-mode I-frames are never dropped,
// only warned about past the higher mark.
const (
	aprsWarnThreshold      = 100
	connectedWarnThreshold = 250
)

// Item is one queued frame plus the bookkeeping the access state machine
// and retransmit logic need.
type Item struct {
	Frame       ax25.Frame
	Connected   bool // true for connected-mode (I/S/some U) traffic, never dropped
	EnqueuedSeq uint64
	// Marker is true for a zero-length seize-request entry enqueued by
	// LMSeizeRequest: it carries no frame and exists only to wake a
	// waiting transmitter, which discards it once active instead of
	// sending it.
	Marker bool
}

// Queue is one channel's pair of priority FIFOs.
type Queue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	hi, lo  []Item
	seq     uint64
	closed  bool
	warnedH bool
	log     func(msg string, kv ...any)
}

// New returns an empty per-channel transmit Queue.
func New() *Queue {
	q := &Queue{}
	q.cond = sync.NewCond(&q.mu)
	q.log = func(msg string, kv ...any) { logging.For("txqueue").Warn(msg, kv...) }
	return q
}

// Append adds item to the given priority's FIFO and wakes a waiting
// transmit goroutine. Best-effort (non-connected) traffic is dropped once
// the combined depth of both priorities reaches the advisory threshold;
// connected-mode traffic is always accepted.
func (q *Queue) Append(prio Priority, item Item) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}

	q.seq++
	item.EnqueuedSeq = q.seq

	threshold := aprsWarnThreshold
	if item.Connected {
		threshold = connectedWarnThreshold
	}
	depth := len(q.hi) + len(q.lo)
	if depth >= threshold {
		if !item.Connected {
			q.log("dropping best-effort frame, queue depth exceeds threshold", "depth", depth, "threshold", threshold)
			return
		}
		if !q.warnedH {
			q.warnedH = true
			q.log("connected-mode queue depth exceeds warn threshold, still accepting", "depth", depth, "threshold", threshold)
		}
	} else {
		q.warnedH = false
	}

	switch prio {
	case PrioHigh:
		q.hi = append(q.hi, item)
	default:
		q.lo = append(q.lo, item)
	}
	q.cond.Signal()
}

// LMSeizeRequest enqueues a zero-length marker on the given priority,
// forcing the channel's transmitter to wake and key up even though no
// real frame is queued yet — e.g. a client priming PTT ahead of data
// that hasn't arrived. The marker is never handed to the modulator; the
// transmitter discards it once it has activated.
func (q *Queue) LMSeizeRequest(prio Priority) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.seq++
	item := Item{Marker: true, EnqueuedSeq: q.seq}
	switch prio {
	case PrioHigh:
		q.hi = append(q.hi, item)
	default:
		q.lo = append(q.lo, item)
	}
	q.cond.Signal()
}

// Remove pops the next item to transmit: the head of hi if non-empty,
// else the head of lo. ok is false if both are empty.
func (q *Queue) Remove() (item Item, prio Priority, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.hi) > 0 {
		item, q.hi = q.hi[0], q.hi[1:]
		return item, PrioHigh, true
	}
	if len(q.lo) > 0 {
		item, q.lo = q.lo[0], q.lo[1:]
		return item, PrioLow, true
	}
	return Item{}, 0, false
}

// Wait blocks until at least one item is queued or the queue is closed.
func (q *Queue) Wait() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.hi) == 0 && len(q.lo) == 0 && !q.closed {
		q.cond.Wait()
	}
}

// Close wakes every goroutine blocked in Wait; subsequent Appends are
// silently dropped.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}

// Peek reports whether either FIFO is non-empty, without removing
// anything — used by the channel-access state machine to decide whether
// there's anything worth keying up for.
func (q *Queue) Peek() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.hi) > 0 || len(q.lo) > 0
}

// Counts returns the current depth of each priority's FIFO.
func (q *Queue) Counts() (hi, lo int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.hi), len(q.lo)
}

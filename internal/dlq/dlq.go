// Package dlq implements the link-layer data queue: the single
// serialized point every receive thread, and every client
// connect/disconnect/data request, funnels through on its way to one
// dispatcher goroutine.
package dlq

import (
	"sync"

	"github.com/kb9vck/pktmodem/internal/ax25"
	"github.com/kb9vck/pktmodem/internal/logging"
)

// EventKind identifies which variant of Event is populated.
type EventKind int

const (
	EventReceivedFrame EventKind = iota
	EventClientConnect
	EventClientDisconnect
	EventClientData
	EventPTTInputChange
	EventChannelBusy
	// EventRegisterCallsign registers a callsign/SSID as a valid
	// destination for this client.
	EventRegisterCallsign
	// EventXIDInfo carries an XID negotiation request/response that
	// arrived (or is to be sent) outside an already-open link.Session.
	EventXIDInfo
)

// FECType records which framing a received frame arrived wrapped in, for
// diagnostics.
type FECType int

const (
	FECNone FECType = iota
	FECFX25
	FECIL2P
)

// Event is a tagged union of everything that can flow through the
// queue. Only the fields relevant to Kind are populated; reading a
// field that doesn't belong to Kind is a bug.
type Event struct {
	Kind EventKind

	// EventReceivedFrame. AudioLevel is the winning slicer's signal
	// level (0-100, as reported by the demod bank), and Spectrum is the
	// per-candidate "which slicer got there first / also passed /
	// stayed silent" marker string.
	Channel    int
	Subchannel int
	Slice      int
	Frame      ax25.Frame
	FEC        FECType
	Corrected  int // symbol/bit corrections applied before FCS passed (retry-effort)
	AudioLevel int
	Spectrum   string

	// EventClientConnect / EventClientDisconnect / EventClientData /
	// EventRegisterCallsign / EventXIDInfo. Path holds the requested
	// digipeater path for Connect/Data requests (source first, then
	// any digipeaters); PID is the protocol-id byte for Data requests.
	ClientID int
	Path     []ax25.Address
	PID      byte
	Data     []byte

	// EventPTTInputChange / EventChannelBusy
	Asserted bool
}

// defaultHighWaterMark is the advisory depth at which the queue logs a
// WARN that the consumer is stalled, edge-triggered: it fires once per
// crossing and re-arms only once the queue has drained back under the
// mark.
const defaultHighWaterMark = 10

// Queue is the single FIFO every producer pushes Events onto and the one
// dispatcher goroutine drains.
type Queue struct {
	mu            sync.Mutex
	cond          *sync.Cond
	items         []Event
	closed        bool
	highWaterMark int
	armed         bool
	log           func(msg string, kv ...any)
}

// New returns an empty Queue with the default high-water mark.
func New() *Queue {
	q := &Queue{highWaterMark: defaultHighWaterMark, armed: true}
	q.cond = sync.NewCond(&q.mu)
	q.log = func(msg string, kv ...any) { logging.For("dlq").Warn(msg, kv...) }
	return q
}

// Push appends ev to the tail of the queue and wakes one waiting
// dispatcher.
func (q *Queue) Push(ev Event) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.items = append(q.items, ev)
	if q.armed && len(q.items) >= q.highWaterMark {
		q.armed = false
		q.log("queue depth reached high water mark", "depth", len(q.items), "mark", q.highWaterMark)
	} else if !q.armed && len(q.items) < q.highWaterMark {
		q.armed = true
	}
	q.cond.Signal()
}

// Pop blocks until an Event is available or the queue is closed, in
// which case ok is false.
func (q *Queue) Pop() (ev Event, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return Event{}, false
	}
	ev, q.items = q.items[0], q.items[1:]
	if len(q.items) < q.highWaterMark {
		q.armed = true
	}
	return ev, true
}

// Len reports the current queue depth.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close unblocks any goroutine waiting in Pop; subsequent Pushes are
// silently dropped.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}

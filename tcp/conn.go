package tcp

import (
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/nsfjr/slipstack/ipv4"
	"github.com/nsfjr/slipstack/sched"
)

// State is one of a connection's three possible states. There is no
// LISTEN state: a Server itself plays that role, spawning a Conn straight
// into SynRcvd on each inbound SYN.
type State int

const (
	StateSynRcvd State = iota
	StateEstablished
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateSynRcvd:
		return "SYN_RCVD"
	case StateEstablished:
		return "ESTABLISHED"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// ID is the 4-tuple that uniquely identifies a connection.
type ID struct {
	RemoteAddr ipv4.Addr
	RemotePort uint16
	LocalAddr  ipv4.Addr
	LocalPort  uint16
}

// RFC 6298 constants.
const (
	rtoInitial = time.Second
	rtoMin     = 100 * time.Millisecond
	rtoMax     = 10 * time.Second
	rttVarMin  = 10 * time.Millisecond
)

// outstanding is the single in-flight data segment a connection may have:
// there is never more than one.
type outstanding struct {
	payload    []byte
	wire       []byte
	sentAt     time.Time
	measurable bool
}

// Conn is one server-side TCP connection and its 3-state machine. Its
// methods are called from both the serial read path and the retransmit
// timer's own goroutine, so mu guards every mutable field below id.
type Conn struct {
	mu    sync.Mutex
	id    ID
	state State

	seqNo uint32
	ackNo uint32

	sendQueue   [][]byte
	outstanding *outstanding

	rttEstimate time.Duration
	rttDev      time.Duration
	rto         time.Duration
	hasSample   bool

	retxTimer sched.Timer

	server *Server
	onData func(conn *Conn, payload []byte)

	log *slog.Logger
}

// ID returns the connection's 4-tuple. Immutable after construction.
func (c *Conn) ID() ID { return c.id }

// State returns the connection's current state.
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// OnData registers the callback invoked with application bytes in order,
// and with an empty payload to signal the peer closing.
func (c *Conn) OnData(fn func(conn *Conn, payload []byte)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onData = fn
}

func newConn(srv *Server, id ID, clientSeq uint32) *Conn {
	c := &Conn{
		id:     id,
		state:  StateSynRcvd,
		seqNo:  randomISN(),
		ackNo:  clientSeq + 1,
		rto:    rtoInitial,
		server: srv,
		log:    srv.log,
	}
	c.sendSegment(FlagSYN|FlagACK, nil)
	return c
}

// receive dispatches one inbound segment to the state machine. FIN is a
// dominant branch checked before any per-state handling, applying in
// every state a FIN-bearing segment can arrive in. The OnData callback is
// invoked after c.mu is released, so a callback that turns around and
// calls Send or Close on the same Conn does not deadlock against itself.
func (c *Conn) receive(seg Segment) {
	c.mu.Lock()
	var cb func(conn *Conn, payload []byte)
	var cbPayload []byte

	if seg.Flags().Has(FlagFIN) {
		c.handleFIN()
		cb = c.onData
	} else {
		switch c.state {
		case StateSynRcvd:
			c.handleSynRcvd(seg)
		case StateEstablished:
			cb, cbPayload = c.handleEstablished(seg)
		case StateClosed:
			// already closed, nothing to do
		}
	}
	c.mu.Unlock()

	if cb != nil {
		cb(c, cbPayload)
	}
}

// handleFIN transitions to Closed and ACKs the FIN. Must be called with
// c.mu held; the caller notifies OnData with a nil payload after
// unlocking.
func (c *Conn) handleFIN() {
	c.state = StateClosed
	c.ackNo++
	c.sendSegment(FlagACK, nil)
	c.cancelRetx()
}

// handleSynRcvd advances the state only on an ACK completing the
// handshake; anything else is ignored. Must be called with c.mu held.
func (c *Conn) handleSynRcvd(seg Segment) {
	if seg.Flags().Has(FlagACK) && seg.Ack() == c.seqNo+1 {
		c.state = StateEstablished
		c.seqNo++
	}
}

// handleEstablished applies one segment's in-order data and/or data ACK.
// Must be called with c.mu held. Returns the OnData callback and the
// payload to hand it, if the segment delivered new in-order data; the
// caller invokes it only after releasing c.mu.
func (c *Conn) handleEstablished(seg Segment) (cb func(conn *Conn, payload []byte), cbPayload []byte) {
	payload := seg.Payload()
	if len(payload) > 0 && seg.Flags().Has(FlagACK) {
		if seg.Seq() == c.ackNo {
			if c.onData != nil {
				cb, cbPayload = c.onData, payload
			}
			c.ackNo += uint32(len(payload))
		}
		// Always ack the current ack_no, duplicate or not: this is how
		// an out-of-order or already-seen segment gets a duplicate ACK.
		c.sendSegment(FlagACK, nil)
	}

	if seg.Flags().Has(FlagACK) && seqGreater(seg.Ack(), c.seqNo) {
		c.handleDataAck(seg.Ack())
	}
	return cb, cbPayload
}

// handleDataAck retires the outstanding segment once it is acknowledged.
// It takes an RTT sample only if the segment was never retransmitted
// (Karn's algorithm), then advances seq_no and tries to send the next
// queued chunk.
func (c *Conn) handleDataAck(ack uint32) {
	if c.outstanding == nil {
		return
	}
	if c.outstanding.measurable {
		sample := c.server.sched.Now().Sub(c.outstanding.sentAt)
		c.updateRTO(sample)
	}
	c.seqNo = ack
	c.outstanding = nil
	c.cancelRetx()
	c.trySendNext()
}

// updateRTO applies RFC 6298's estimator update (α=1/8, β=1/4), clamping
// rto to [0.1s, 10s] and flooring rttDev at 10ms before use.
func (c *Conn) updateRTO(sample time.Duration) {
	if !c.hasSample {
		c.rttEstimate = sample
		c.rttDev = sample / 2
		c.hasSample = true
	} else {
		diff := sample - c.rttEstimate
		if diff < 0 {
			diff = -diff
		}
		c.rttDev = time.Duration(0.75*float64(c.rttDev) + 0.25*float64(diff))
		c.rttEstimate = time.Duration(0.875*float64(c.rttEstimate) + 0.125*float64(sample))
	}
	dev := c.rttDev
	if dev < rttVarMin {
		dev = rttVarMin
	}
	rto := c.rttEstimate + 4*dev
	c.rto = clampDuration(rto, rtoMin, rtoMax)
}

func clampDuration(d, lo, hi time.Duration) time.Duration {
	return time.Duration(math.Max(float64(lo), math.Min(float64(hi), float64(d))))
}

// Send enqueues data for transmission, splitting it into chunks of at
// most MSS bytes.
func (c *Conn) Send(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	mss := c.server.mss
	for len(data) > 0 {
		n := mss
		if n > len(data) {
			n = len(data)
		}
		chunk := append([]byte(nil), data[:n]...)
		c.sendQueue = append(c.sendQueue, chunk)
		data = data[n:]
	}
	c.trySendNext()
}

// trySendNext dequeues and transmits the head of the send queue if nothing
// is currently outstanding.
func (c *Conn) trySendNext() {
	if c.outstanding != nil || len(c.sendQueue) == 0 {
		return
	}
	chunk := c.sendQueue[0]
	c.sendQueue = c.sendQueue[1:]

	wire := c.buildSegment(FlagACK, chunk)
	c.outstanding = &outstanding{
		payload:    chunk,
		wire:       wire,
		sentAt:     c.server.sched.Now(),
		measurable: true,
	}
	c.transmit(wire)
	c.armRetx()
}

func (c *Conn) armRetx() {
	c.retxTimer = c.server.sched.AfterFunc(c.rto, c.onRetxFire)
}

func (c *Conn) cancelRetx() {
	if c.retxTimer != nil {
		c.retxTimer.Cancel()
		c.retxTimer = nil
	}
}

// onRetxFire resends the stored wire bytes verbatim on timeout. rto is
// deliberately not backed off exponentially on repeated timeouts. Runs on
// the scheduler's own goroutine, so it takes c.mu itself rather than
// relying on a caller.
func (c *Conn) onRetxFire() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.outstanding == nil {
		return // fired with nothing outstanding: no-op
	}
	c.outstanding.measurable = false
	c.transmit(c.outstanding.wire)
	if c.server.metrics != nil {
		c.server.metrics.SegmentsRetransmitted.Inc()
	}
	c.armRetx()
}

// Close sends FIN|ACK with an incremented seq_no. This does not model the
// full four-way close: after sending FIN the connection is effectively
// finished from the server's data-send perspective, and no further state
// transition happens here until (or unless) a FIN arrives from the peer.
func (c *Conn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seqNo++
	c.sendSegment(FlagFIN|FlagACK, nil)
}

func (c *Conn) sendSegment(flags Flags, payload []byte) {
	wire := c.buildSegment(flags, payload)
	c.transmit(wire)
}

func (c *Conn) buildSegment(flags Flags, payload []byte) []byte {
	wire := BuildSegment(c.id.LocalPort, c.id.RemotePort, c.seqNo, c.ackNo, flags, payload)
	if !c.server.ignoreChecksum {
		s := Segment{buf: wire}
		s.SetChecksum(ipv4.TCPChecksum(c.id.LocalAddr, c.id.RemoteAddr, wire))
	}
	return wire
}

func (c *Conn) transmit(wire []byte) {
	if err := c.server.ip.Send(wire, c.id.RemoteAddr); err != nil {
		c.log.Debug("tcp: segment send failed", "conn", c.id, "err", err)
	}
}

// seqGreater reports whether a is strictly ahead of b in sequence-number
// space, correct across 32-bit wraparound.
func seqGreater(a, b uint32) bool {
	return int32(a-b) > 0
}

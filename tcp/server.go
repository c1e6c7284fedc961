package tcp

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nsfjr/slipstack/internal"
	"github.com/nsfjr/slipstack/ipv4"
	"github.com/nsfjr/slipstack/sched"
)

// ipSender is the subset of ipv4.Layer a Server needs to route outbound
// segments. Matches ipv4.Layer.Send's signature exactly.
type ipSender interface {
	Send(segment []byte, dst ipv4.Addr) error
}

// Server demultiplexes inbound TCP segments addressed to its port to
// per-connection state machines keyed by 4-tuple.
type Server struct {
	ip             ipSender
	sched          sched.Scheduler
	log            *slog.Logger
	port           uint16
	mss            int
	ignoreChecksum bool
	metrics        *Metrics

	// connsMu guards conns: Receive looks up and inserts into it, and
	// netstack runs one read-loop goroutine per peer, so several Receive
	// calls can touch the map at once.
	connsMu sync.Mutex
	conns   map[ID]*Conn

	onAccept func(conn *Conn)
}

// Option configures a Server at construction time.
type Option func(*Server)

// WithMSS sets the maximum TCP payload size per outbound segment. Default
// 536, the historical Internet default MSS absent a negotiated value; MSS
// negotiation via options is not implemented.
func WithMSS(mss int) Option {
	return func(s *Server) { s.mss = mss }
}

// WithIgnoreChecksum disables inbound TCP checksum verification, for use
// alongside an ipv4.Layer configured the same way.
func WithIgnoreChecksum(v bool) Option {
	return func(s *Server) { s.ignoreChecksum = v }
}

// WithLogger sets the server's structured logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Server) { s.log = log }
}

// WithMetrics attaches a Metrics set the server increments as it processes
// segments.
func WithMetrics(m *Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// NewServer returns a Server listening on port, sending outbound segments
// via ip and scheduling retransmission timers via scheduler.
func NewServer(port uint16, ip ipSender, scheduler sched.Scheduler, opts ...Option) *Server {
	s := &Server{
		ip:    ip,
		sched: scheduler,
		log:   slog.Default(),
		port:  port,
		mss:   536,
		conns: make(map[ID]*Conn),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OnConnectionAccepted registers the callback invoked when a SYN creates a
// new connection, before the handshake completes.
func (s *Server) OnConnectionAccepted(fn func(conn *Conn)) {
	s.onAccept = fn
}

// Receive handles one inbound IPv4-delivered TCP segment, wired as the
// ipv4.ProtocolHandler registered for ProtoTCP. Segments for another port
// are dropped, a checksum failure (if enforced) is dropped with a log
// message, a SYN creates a new connection, a known 4-tuple dispatches to
// it, and anything else is logged and dropped.
func (s *Server) Receive(src, dst ipv4.Addr, payload []byte) {
	seg, err := Parse(payload)
	if err != nil {
		s.log.Debug("tcp: dropping unparseable segment", "err", err)
		return
	}
	if seg.DestPort() != s.port {
		return
	}
	if !s.ignoreChecksum && !ipv4.VerifyTCPChecksum(src, dst, payload) {
		s.log.Debug("tcp: checksum failure, dropping", internal.SlogAddr4("src", (*[4]byte)(&src)), "srcPort", seg.SourcePort())
		if s.metrics != nil {
			s.metrics.ChecksumFailures.Inc()
		}
		return
	}
	if s.metrics != nil {
		s.metrics.SegmentsReceived.Inc()
	}

	id := ID{
		RemoteAddr: src,
		RemotePort: seg.SourcePort(),
		LocalAddr:  dst,
		LocalPort:  seg.DestPort(),
	}

	if seg.Flags().Has(FlagSYN) {
		conn := newConn(s, id, seg.Seq())
		s.connsMu.Lock()
		s.conns[id] = conn
		s.connsMu.Unlock()
		if s.metrics != nil {
			s.metrics.ConnectionsAccepted.Inc()
		}
		if s.onAccept != nil {
			s.onAccept(conn)
		}
		return
	}

	s.connsMu.Lock()
	conn, ok := s.conns[id]
	s.connsMu.Unlock()
	if !ok {
		s.log.Debug("tcp: segment for unknown connection, dropping", "conn", id)
		return
	}
	conn.receive(seg)
}

// isnState is advanced by internal.Prand32's xorshift on every call, a
// package-level generator so successive connections get different
// initial sequence numbers.
var isnState = uint32(time.Now().UnixNano())

func randomISN() uint32 {
	for {
		old := atomic.LoadUint32(&isnState)
		next := internal.Prand32(old)
		if atomic.CompareAndSwapUint32(&isnState, old, next) {
			return next
		}
	}
}

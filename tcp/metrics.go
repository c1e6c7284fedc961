package tcp

import "github.com/prometheus/client_golang/prometheus"

// Metrics exposes the counters an operator would graph for this server: a
// handful of named counters registered against a caller-supplied
// registerer rather than the global default one.
type Metrics struct {
	ConnectionsAccepted   prometheus.Counter
	SegmentsReceived      prometheus.Counter
	SegmentsRetransmitted prometheus.Counter
	ChecksumFailures      prometheus.Counter
}

// NewMetrics constructs and registers a Metrics set against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ConnectionsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "slipstack",
			Subsystem: "tcp",
			Name:      "connections_accepted_total",
			Help:      "Number of TCP connections accepted (SYN received).",
		}),
		SegmentsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "slipstack",
			Subsystem: "tcp",
			Name:      "segments_received_total",
			Help:      "Number of TCP segments successfully demultiplexed.",
		}),
		SegmentsRetransmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "slipstack",
			Subsystem: "tcp",
			Name:      "segments_retransmitted_total",
			Help:      "Number of data segments resent on retransmission-timer fire.",
		}),
		ChecksumFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "slipstack",
			Subsystem: "tcp",
			Name:      "checksum_failures_total",
			Help:      "Number of inbound segments dropped for checksum failure.",
		}),
	}
	reg.MustRegister(m.ConnectionsAccepted, m.SegmentsReceived, m.SegmentsRetransmitted, m.ChecksumFailures)
	return m
}

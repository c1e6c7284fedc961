package netstack

import (
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/jonboulle/clockwork"
	"github.com/nsfjr/slipstack/ipv4"
	"github.com/nsfjr/slipstack/sched"
	"github.com/nsfjr/slipstack/slip"
	"github.com/nsfjr/slipstack/tcp"
)

// Stack is a fully wired node: the SLIP link aggregator, the IPv4
// forwarding/host layer, and the TCP server, sharing one scheduler.
type Stack struct {
	Aggregator *slip.Aggregator
	IP         *ipv4.Layer
	TCP        *tcp.Server
	Sched      sched.Scheduler
}

// New constructs a Stack from cfg. openLine opens the serial device named
// by each PeerConfig.Device (the concrete transport — a UART, a pty, a
// dialed socket — is left to the caller, since the link layer's interface
// is transport-agnostic). New spawns one read-loop goroutine per peer,
// feeding bytes read off its line into that peer's decoder.
func New(cfg Config, clock clockwork.Clock, openLine func(device string) (io.ReadWriter, error), log *slog.Logger, tcpOpts ...tcp.Option) (*Stack, error) {
	if log == nil {
		log = slog.Default()
	}

	host := ipv4.Zero
	if cfg.HostAddr != "" {
		var err error
		host, err = ipv4.ParseAddr(cfg.HostAddr)
		if err != nil {
			return nil, fmt.Errorf("netstack: host_addr: %w", err)
		}
	}

	table := ipv4.NewTable()
	for _, r := range cfg.Routes {
		network, prefixLen, err := parseCIDR(r.CIDR)
		if err != nil {
			return nil, fmt.Errorf("netstack: route %q: %w", r.CIDR, err)
		}
		nextHop, err := ipv4.ParseAddr(r.NextHop)
		if err != nil {
			return nil, fmt.Errorf("netstack: route %q next_hop: %w", r.CIDR, err)
		}
		table.Add(network, prefixLen, nextHop)
	}

	agg := slip.NewAggregator(nil, log)
	ipLayer := ipv4.NewLayer(host, table, agg, log)
	ipLayer.NoCheck = cfg.IgnoreChecksum
	agg.SetReceiver(ipLayer.Receive)

	for _, p := range cfg.Peers {
		nextHop, err := ipv4.ParseAddr(p.NextHop)
		if err != nil {
			return nil, fmt.Errorf("netstack: peer %q next_hop: %w", p.Device, err)
		}
		line, err := openLine(p.Device)
		if err != nil {
			return nil, fmt.Errorf("netstack: opening %q: %w", p.Device, err)
		}
		link := agg.RegisterReceiver(nextHop, line)
		go readLoop(p.Device, line, link, log)
	}

	scheduler := sched.New(clock)
	opts := append([]tcp.Option{tcp.WithIgnoreChecksum(cfg.IgnoreChecksum), tcp.WithLogger(log)}, tcpOpts...)
	if cfg.MSS > 0 {
		opts = append(opts, tcp.WithMSS(cfg.MSS))
	}
	tcpServer := tcp.NewServer(cfg.TCPPort, ipLayer, scheduler, opts...)
	ipLayer.RegisterProtocol(ipv4.ProtoTCP, tcpServer.Receive)

	return &Stack{
		Aggregator: agg,
		IP:         ipLayer,
		TCP:        tcpServer,
		Sched:      scheduler,
	}, nil
}

// readLoop feeds bytes read off line into link's decoder until the line
// returns an error, preserving the FIFO ordering of bytes from a single
// serial line.
func readLoop(device string, line io.Reader, link *slip.Link, log *slog.Logger) {
	buf := make([]byte, 4096)
	for {
		n, err := line.Read(buf)
		if n > 0 {
			link.Feed(buf[:n])
		}
		if err != nil {
			if err != io.EOF {
				log.Error("netstack: link read failed", "device", device, "err", err)
			}
			return
		}
	}
}

func parseCIDR(s string) (ipv4.Addr, int, error) {
	parts := strings.SplitN(s, "/", 2)
	if len(parts) != 2 {
		return ipv4.Addr{}, 0, fmt.Errorf("expected a.b.c.d/n, got %q", s)
	}
	addr, err := ipv4.ParseAddr(parts[0])
	if err != nil {
		return ipv4.Addr{}, 0, err
	}
	n, err := strconv.Atoi(parts[1])
	if err != nil || n < 0 || n > 32 {
		return ipv4.Addr{}, 0, fmt.Errorf("invalid prefix length %q", parts[1])
	}
	return addr, n, nil
}

package ipv4

import "log/slog"

// LinkSender is the subset of the link aggregator this layer depends on.
// Defined here (rather than imported from the slip package) so ipv4 has no
// dependency on slip; slip.Aggregator satisfies this interface
// structurally.
type LinkSender interface {
	Send(datagram []byte, nextHop Addr) error
}

// ProtocolHandler receives the payload of a datagram addressed to this
// node, along with its source and destination addresses.
type ProtocolHandler func(src, dst Addr, payload []byte)

// Layer is the IPv4 forwarding/host layer: it parses inbound datagrams,
// delivers those addressed to Host to a registered protocol handler,
// and forwards everything else using longest-prefix-match routing,
// generating ICMP Time-Exceeded when TTL expires.
type Layer struct {
	Link    LinkSender
	Table   *Table
	Host    Addr
	NoCheck bool // IgnoreChecksum: skip header checksum verification on receive.
	Log     *slog.Logger

	handlers map[uint8]ProtocolHandler
}

// NewLayer constructs a Layer delivering to host and forwarding via link
// and table.
func NewLayer(host Addr, table *Table, link LinkSender, log *slog.Logger) *Layer {
	if log == nil {
		log = slog.Default()
	}
	return &Layer{
		Link:     link,
		Table:    table,
		Host:     host,
		Log:      log,
		handlers: make(map[uint8]ProtocolHandler),
	}
}

// RegisterProtocol installs the handler invoked for payloads of datagrams
// addressed to this node carrying the given protocol number.
func (l *Layer) RegisterProtocol(proto uint8, h ProtocolHandler) {
	l.handlers[proto] = h
}

// Receive processes one inbound datagram read off a link, as the single
// callback slip.Aggregator forwards decoded frames to.
func (l *Layer) Receive(datagram []byte) {
	f, err := Parse(datagram, l.NoCheck)
	if err != nil {
		l.Log.Debug("ipv4: dropping unparseable datagram", "err", err)
		return
	}

	if f.DestAddr() == l.Host {
		l.deliverLocal(f)
		return
	}
	l.forward(f)
}

func (l *Layer) deliverLocal(f Frame) {
	h, ok := l.handlers[f.Protocol()]
	if !ok {
		l.Log.Debug("ipv4: no handler for protocol", "proto", f.Protocol())
		return
	}
	h(f.SourceAddr(), f.DestAddr(), f.Payload())
}

// forward implements the TTL-expiry-vs-forward branch: a TTL of 1 or less
// triggers ICMP Time-Exceeded instead of being forwarded, so the original
// datagram is never sent on with a decremented-to-zero TTL.
func (l *Layer) forward(f Frame) {
	if f.TTL() <= 1 {
		l.sendTimeExceeded(f)
		return
	}
	f.SetTTL(f.TTL() - 1)
	f.FixChecksum()

	route, ok := l.Table.Lookup(f.DestAddr())
	if !ok {
		l.Log.Debug("ipv4: no route, dropping", "dst", f.DestAddr())
		return
	}
	if err := l.Link.Send(f.RawData(), route.NextHop); err != nil {
		l.Log.Debug("ipv4: forward send failed", "err", err)
	}
}

// sendTimeExceeded builds and routes an ICMP Time-Exceeded message quoting
// the offending datagram. The reply is routed by its own destination
// (the offending datagram's source), not reflected back out the inbound
// link.
func (l *Layer) sendTimeExceeded(offending Frame) {
	icmp := BuildTimeExceeded(offending.RawData())
	header := buildHeader(l.Host, offending.SourceAddr(), ProtoICMP, len(icmp))
	pkt := append(header, icmp...)

	route, ok := l.Table.Lookup(offending.SourceAddr())
	if !ok {
		l.Log.Debug("ipv4: no route for time-exceeded reply", "dst", offending.SourceAddr())
		return
	}
	if err := l.Link.Send(pkt, route.NextHop); err != nil {
		l.Log.Debug("ipv4: time-exceeded send failed", "err", err)
	}
}

// Send builds an outbound IPv4 header around segment (a TCP segment whose
// own checksum is already correct) and routes it to dst by longest-prefix
// match.
func (l *Layer) Send(segment []byte, dst Addr) error {
	header := buildHeader(l.Host, dst, ProtoTCP, len(segment))
	pkt := append(header, segment...)

	route, ok := l.Table.Lookup(dst)
	if !ok {
		l.Log.Debug("ipv4: no route for outbound send", "dst", dst)
		return ErrNoRoute
	}
	return l.Link.Send(pkt, route.NextHop)
}

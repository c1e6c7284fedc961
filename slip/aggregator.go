package slip

import (
	"fmt"
	"log/slog"

	"github.com/nsfjr/slipstack/ipv4"
)

// Aggregator holds a map from next-hop address to the Link reaching that
// neighbor, routes outbound sends by next-hop, and forwards every inbound
// datagram from any link to a single registered upper-layer callback with
// no source annotation — the IP layer recovers the source from the
// datagram itself.
//
// Aggregator satisfies ipv4.LinkSender structurally, so the ipv4 package
// can depend on it without importing this package.
type Aggregator struct {
	links      map[ipv4.Addr]*Link
	onDatagram func(datagram []byte)
	log        *slog.Logger
}

// NewAggregator returns an empty Aggregator delivering inbound datagrams
// to onDatagram.
func NewAggregator(onDatagram func(datagram []byte), log *slog.Logger) *Aggregator {
	if log == nil {
		log = slog.Default()
	}
	return &Aggregator{
		links:      make(map[ipv4.Addr]*Link),
		onDatagram: onDatagram,
		log:        log,
	}
}

// RegisterReceiver adds a Link reachable at nextHop, wiring its decoder to
// the aggregator's shared dispatch callback.
func (a *Aggregator) RegisterReceiver(nextHop ipv4.Addr, line SerialLine) *Link {
	link := NewLink(line, a.dispatch)
	a.links[nextHop] = link
	return link
}

// SetReceiver replaces the shared upper-layer callback inbound datagrams
// are dispatched to. Useful when the upper layer (e.g. an ipv4.Layer)
// needs a reference to this Aggregator to be constructed first.
func (a *Aggregator) SetReceiver(onDatagram func(datagram []byte)) {
	a.onDatagram = onDatagram
}

func (a *Aggregator) dispatch(datagram []byte) {
	if a.onDatagram != nil {
		a.onDatagram(datagram)
	}
}

// Send routes datagram to the Link registered for nextHop. An unknown
// next-hop is a caller contract violation, surfaced here as an error
// rather than a panic so the IPv4 layer can log and drop instead of
// crashing the process.
func (a *Aggregator) Send(datagram []byte, nextHop ipv4.Addr) error {
	link, ok := a.links[nextHop]
	if !ok {
		return fmt.Errorf("slip: unknown next-hop %v", nextHop)
	}
	return link.Send(datagram)
}

package ipv4

import "sort"

// Route is one entry of a Table: datagrams whose destination address falls
// inside Network/Mask are sent to NextHop. NextHop is handed to the link
// layer as is; a zero NextHop gets no special treatment.
//
// Table.Add never rejects a network address whose bits fall outside its
// mask: it silently ANDs the address down to its network before storing,
// rather than erroring on a misaligned network/mask pair.
type Route struct {
	Network Addr
	Mask    uint32
	NextHop Addr
}

func (r Route) prefixLen() int {
	n := 0
	m := r.Mask
	for m != 0 {
		n += int(m & 1)
		m >>= 1
	}
	return n
}

// MaskFromPrefix returns the uint32 netmask for a CIDR prefix length in
// [0, 32].
func MaskFromPrefix(prefixLen int) uint32 {
	if prefixLen <= 0 {
		return 0
	}
	if prefixLen >= 32 {
		return 0xffffffff
	}
	return ^uint32(0) << (32 - prefixLen)
}

// Table is a longest-prefix-match IPv4 forwarding table: the most
// specific matching route always wins, and ties (equal prefix length)
// are broken by insertion order, oldest first.
type Table struct {
	routes []Route
}

// NewTable returns an empty forwarding table.
func NewTable() *Table {
	return &Table{}
}

// Add inserts a route. The network address is masked down to its network
// bits before storing, rather than rejecting a misaligned network/mask
// pair.
func (t *Table) Add(network Addr, prefixLen int, nextHop Addr) {
	mask := MaskFromPrefix(prefixLen)
	network = AddrFromUint32(network.Uint32() & mask)
	t.routes = append(t.routes, Route{Network: network, Mask: mask, NextHop: nextHop})
	// Longest prefix first; stable sort preserves insertion order among
	// routes of equal prefix length, giving the oldest added route
	// priority on a tie.
	sort.SliceStable(t.routes, func(i, j int) bool {
		return t.routes[i].prefixLen() > t.routes[j].prefixLen()
	})
}

// Lookup returns the most specific route matching dst, and reports whether
// any route matched.
func (t *Table) Lookup(dst Addr) (Route, bool) {
	d := dst.Uint32()
	for _, r := range t.routes {
		if d&r.Mask == r.Network.Uint32() {
			return r, true
		}
	}
	return Route{}, false
}

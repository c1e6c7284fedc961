package ipv4

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

// Addr is an IPv4 address, carried as 32-bit values internally; the
// "a.b.c.d" string form is used only at configuration and logging
// boundaries.
type Addr [4]byte

// Zero is the unset/unconfigured address, used as the ICMP source when no
// host address has been configured.
var Zero Addr

func (a Addr) String() string {
	return fmt.Sprintf("%d.%d.%d.%d", a[0], a[1], a[2], a[3])
}

// Uint32 returns the address as a big-endian 32-bit integer, the form used
// for mask arithmetic in the forwarding table.
func (a Addr) Uint32() uint32 { return binary.BigEndian.Uint32(a[:]) }

// AddrFromUint32 is the inverse of [Addr.Uint32].
func AddrFromUint32(v uint32) Addr {
	var a Addr
	binary.BigEndian.PutUint32(a[:], v)
	return a
}

// ParseAddr parses a dotted-quad "a.b.c.d" string into an Addr.
func ParseAddr(s string) (Addr, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 4 {
		return Addr{}, fmt.Errorf("ipv4: invalid address %q", s)
	}
	var a Addr
	for i, p := range parts {
		v, err := strconv.ParseUint(p, 10, 8)
		if err != nil {
			return Addr{}, fmt.Errorf("ipv4: invalid address %q: %w", s, err)
		}
		a[i] = byte(v)
	}
	return a, nil
}

// IsZero reports whether a is the unconfigured 0.0.0.0 address.
func (a Addr) IsZero() bool { return a == Zero }

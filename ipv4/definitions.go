package ipv4

// FragFlags holds the fragmentation field data of an IPv4 header. This
// stack never sets DontFragment/MoreFragments/FragmentOffset on an
// outbound header and never acts on them on an inbound one (no
// fragmentation or reassembly support); the accessors exist so a caller
// inspecting a parsed Frame can still read the field.
type FragFlags uint16

// DontFragment reports whether the datagram must not be fragmented in
// transit.
func (f FragFlags) DontFragment() bool { return f&0x4000 != 0 }

// MoreFragments is set on every fragment of a fragmented datagram except
// the last.
func (f FragFlags) MoreFragments() bool { return f&0x2000 != 0 }

// FragmentOffset is the offset of this fragment, in units of 8 bytes, from
// the start of the original unfragmented datagram.
func (f FragFlags) FragmentOffset() uint16 { return uint16(f) & 0x1fff }

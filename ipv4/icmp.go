package ipv4

import "encoding/binary"

// ICMP Time-Exceeded is the only ICMP message this stack ever generates:
// sent when a forwarded datagram's TTL would decrement to zero. RFC 792's
// full type/code enumeration (echo, redirect, parameter problem, ...) is
// not reachable here, so this file implements just the one message this
// stack needs.
const (
	icmpTypeTimeExceeded = 11
	icmpCodeTTLExceeded  = 0
	icmpHeaderLen        = 8
	// icmpQuoteLen is the number of bytes of the offending datagram
	// quoted back: the IPv4 header plus the first 8 bytes of its
	// payload.
	icmpQuoteLen = 28
)

// BuildTimeExceeded constructs an ICMP Time-Exceeded message body (type 11,
// code 0) quoting the first 28 bytes of the offending datagram, for
// transmission as the payload of a fresh IPv4 packet whose destination is
// offending's source address.
func BuildTimeExceeded(offending []byte) []byte {
	quote := offending
	if len(quote) > icmpQuoteLen {
		quote = quote[:icmpQuoteLen]
	}
	body := make([]byte, icmpHeaderLen+len(quote))
	body[0] = icmpTypeTimeExceeded
	body[1] = icmpCodeTTLExceeded
	// body[2:4] checksum, body[4:8] unused (must be zero).
	copy(body[icmpHeaderLen:], quote)

	var c checksum
	c.write(body)
	binary.BigEndian.PutUint16(body[2:4], c.sum16())
	return body
}

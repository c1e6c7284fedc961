// Package tcp implements a server-side-only TCP layer: a 3-state
// connection machine (SYN_RCVD, ESTABLISHED, CLOSED) demultiplexed by
// 4-tuple, in-order delivery with duplicate-ACK on out-of-order segments,
// and stop-and-wait reliable send with RFC 6298 adaptive RTO.
package tcp

import (
	"encoding/binary"
	"errors"
)

// HeaderLen is the fixed portion of a TCP header this stack reads and the
// length it ever builds: no options on any outbound segment. An inbound
// segment's actual header (and so its payload offset) may be longer, per
// its data-offset field.
const HeaderLen = 20

// Flags is the set of TCP control bits, packed into the low 6 bits of the
// 16-bit flags/data-offset word per RFC 793.
type Flags uint8

const (
	FlagFIN Flags = 1 << 0
	FlagSYN Flags = 1 << 1
	FlagRST Flags = 1 << 2
	FlagPSH Flags = 1 << 3
	FlagACK Flags = 1 << 4
	FlagURG Flags = 1 << 5
)

func (f Flags) Has(bit Flags) bool { return f&bit != 0 }

var (
	ErrShortSegment = errors.New("tcp: buffer shorter than header")
	ErrDataOffset   = errors.New("tcp: data offset out of range")
)

// Segment is a view over a TCP segment buffer, following the same
// accessor-over-byte-slice idiom as ipv4.Frame.
type Segment struct {
	buf []byte
}

// Parse validates the buffer is at least as long as the fixed header and
// that the data-offset field names a byte offset that actually fits
// inside buf, returning a Segment view. A data offset greater than 5
// words means the peer sent options; those bytes are skipped over rather
// than parsed, since nothing here inspects option content.
func Parse(buf []byte) (Segment, error) {
	if len(buf) < HeaderLen {
		return Segment{}, ErrShortSegment
	}
	s := Segment{buf: buf}
	off := s.headerLen()
	if off < HeaderLen || off > len(buf) {
		return Segment{}, ErrDataOffset
	}
	return s, nil
}

func (s Segment) SourcePort() uint16     { return binary.BigEndian.Uint16(s.buf[0:2]) }
func (s Segment) SetSourcePort(v uint16) { binary.BigEndian.PutUint16(s.buf[0:2], v) }

func (s Segment) DestPort() uint16     { return binary.BigEndian.Uint16(s.buf[2:4]) }
func (s Segment) SetDestPort(v uint16) { binary.BigEndian.PutUint16(s.buf[2:4], v) }

func (s Segment) Seq() uint32     { return binary.BigEndian.Uint32(s.buf[4:8]) }
func (s Segment) SetSeq(v uint32) { binary.BigEndian.PutUint32(s.buf[4:8], v) }

func (s Segment) Ack() uint32     { return binary.BigEndian.Uint32(s.buf[8:12]) }
func (s Segment) SetAck(v uint32) { binary.BigEndian.PutUint32(s.buf[8:12], v) }

// flagsWord is bytes 12-13: the high nibble of byte 12 is the data-offset
// field (in 32-bit words); the low 6 bits of byte 13 are the control flags.
func (s Segment) flagsWord() uint16 { return binary.BigEndian.Uint16(s.buf[12:14]) }

func (s Segment) dataOffsetWords() uint16 { return s.flagsWord() >> 12 }

// headerLen is the byte offset of the payload: 4 * data-offset, per RFC
// 793's "data offset ... the number of 32 bit words in the TCP Header".
func (s Segment) headerLen() int { return 4 * int(s.dataOffsetWords()) }

func (s Segment) Flags() Flags { return Flags(s.flagsWord() & 0x3f) }

func (s Segment) SetFlags(f Flags) {
	word := uint16(5)<<12 | uint16(f&0x3f)
	binary.BigEndian.PutUint16(s.buf[12:14], word)
}

func (s Segment) Window() uint16     { return binary.BigEndian.Uint16(s.buf[14:16]) }
func (s Segment) SetWindow(v uint16) { binary.BigEndian.PutUint16(s.buf[14:16], v) }

func (s Segment) Checksum() uint16     { return binary.BigEndian.Uint16(s.buf[16:18]) }
func (s Segment) SetChecksum(v uint16) { binary.BigEndian.PutUint16(s.buf[16:18], v) }

func (s Segment) Urgent() uint16     { return binary.BigEndian.Uint16(s.buf[18:20]) }
func (s Segment) SetUrgent(v uint16) { binary.BigEndian.PutUint16(s.buf[18:20], v) }

// Payload returns the segment's data: everything after the header,
// located at the byte offset the data-offset field specifies, so any
// options present are skipped rather than misread as payload.
func (s Segment) Payload() []byte { return s.buf[s.headerLen():] }

// RawData returns the underlying buffer.
func (s Segment) RawData() []byte { return s.buf }

// defaultWindow is advertised on every outbound segment. This design has
// no flow control beyond a single outstanding segment, so this is a
// fixed, generous value rather than a computed receive window.
const defaultWindow = 65535

// BuildSegment constructs a fresh segment buffer with the given fields and
// payload, flags always including the data-offset-5 word. The checksum
// field is left zero; callers fix it up via ipv4.TCPChecksum once the
// IPv4 addresses are known.
func BuildSegment(srcPort, dstPort uint16, seq, ack uint32, flags Flags, payload []byte) []byte {
	buf := make([]byte, HeaderLen+len(payload))
	s := Segment{buf: buf}
	s.SetSourcePort(srcPort)
	s.SetDestPort(dstPort)
	s.SetSeq(seq)
	s.SetAck(ack)
	s.SetFlags(flags)
	s.SetWindow(defaultWindow)
	copy(s.buf[HeaderLen:], payload)
	return buf
}

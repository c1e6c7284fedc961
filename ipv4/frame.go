package ipv4

import (
	"encoding/binary"
	"errors"
)

// HeaderLen is the fixed IPv4 header length this stack accepts. No
// options are supported: IHL must equal 5.
const HeaderLen = 20

// Protocol numbers this stack constructs or recognizes.
const (
	ProtoICMP = 1
	ProtoTCP  = 6
)

// Errors returned by Parse, NewFrame and Layer.Send.
var (
	ErrShortHeader = errors.New("ipv4: buffer shorter than header")
	ErrBadVersion  = errors.New("ipv4: not version 4")
	ErrHasOptions  = errors.New("ipv4: header options not supported (IHL != 5)")
	ErrChecksum    = errors.New("ipv4: header checksum failure")
	ErrNoRoute     = errors.New("ipv4: no route to destination")
)

// Frame is a view over an IPv4 datagram buffer, following an
// accessor-method-over-a-byte-slice style for wire headers. It only ever
// addresses the fixed 20-byte header: no variable-length options.
type Frame struct {
	buf []byte
}

// NewFrame wraps buf, which must be at least HeaderLen bytes long.
func NewFrame(buf []byte) (Frame, error) {
	if len(buf) < HeaderLen {
		return Frame{}, ErrShortHeader
	}
	return Frame{buf: buf}, nil
}

// RawData returns the underlying buffer the Frame was built from.
func (f Frame) RawData() []byte { return f.buf }

func (f Frame) VersionIHL() (version, ihl uint8) {
	v := f.buf[0]
	return v >> 4, v & 0xf
}

func (f Frame) SetVersionIHL(version, ihl uint8) { f.buf[0] = version<<4 | ihl&0xf }

func (f Frame) DSCPECN() uint8     { return f.buf[1] }
func (f Frame) SetDSCPECN(v uint8) { f.buf[1] = v }

func (f Frame) TotalLength() uint16     { return binary.BigEndian.Uint16(f.buf[2:4]) }
func (f Frame) SetTotalLength(v uint16) { binary.BigEndian.PutUint16(f.buf[2:4], v) }

func (f Frame) ID() uint16     { return binary.BigEndian.Uint16(f.buf[4:6]) }
func (f Frame) SetID(v uint16) { binary.BigEndian.PutUint16(f.buf[4:6], v) }

func (f Frame) FlagsFragOffset() uint16     { return binary.BigEndian.Uint16(f.buf[6:8]) }
func (f Frame) SetFlagsFragOffset(v uint16) { binary.BigEndian.PutUint16(f.buf[6:8], v) }

// TTL is the hop-count field: decremented by one on each forward, and the
// trigger for ICMP Time-Exceeded synthesis once it would drop to zero.
func (f Frame) TTL() uint8     { return f.buf[8] }
func (f Frame) SetTTL(v uint8) { f.buf[8] = v }

func (f Frame) Protocol() uint8     { return f.buf[9] }
func (f Frame) SetProtocol(v uint8) { f.buf[9] = v }

func (f Frame) Checksum() uint16     { return binary.BigEndian.Uint16(f.buf[10:12]) }
func (f Frame) SetChecksum(v uint16) { binary.BigEndian.PutUint16(f.buf[10:12], v) }

func (f Frame) SourceAddr() Addr     { return Addr(f.buf[12:16]) }
func (f Frame) SetSourceAddr(a Addr) { copy(f.buf[12:16], a[:]) }

func (f Frame) DestAddr() Addr     { return Addr(f.buf[16:20]) }
func (f Frame) SetDestAddr(a Addr) { copy(f.buf[16:20], a[:]) }

// Payload returns the datagram's contents beyond the fixed header.
func (f Frame) Payload() []byte { return f.buf[HeaderLen:] }

// FixChecksum zeroes the checksum field and recomputes it over the
// header: used both when building a fresh header and after mutating TTL
// during a forward.
func (f Frame) FixChecksum() {
	f.SetChecksum(0)
	f.SetChecksum(headerChecksum(f.buf[:HeaderLen]))
}

// VerifyChecksum reports whether the header's checksum field is correct.
// Summing the header as received (checksum field included) folds to the
// one's-complement identity 0xFFFF; headerChecksum already applies the
// final complement, so a correct header yields exactly 0.
func (f Frame) VerifyChecksum() bool {
	return headerChecksum(f.buf[:HeaderLen]) == 0
}

// Parse validates version, IHL and (unless skipChecksum) the header
// checksum, returning the Frame view on success.
func Parse(buf []byte, skipChecksum bool) (Frame, error) {
	f, err := NewFrame(buf)
	if err != nil {
		return Frame{}, err
	}
	version, ihl := f.VersionIHL()
	if version != 4 {
		return Frame{}, ErrBadVersion
	}
	if ihl != 5 {
		return Frame{}, ErrHasOptions
	}
	if !skipChecksum && !f.VerifyChecksum() {
		return Frame{}, ErrChecksum
	}
	return f, nil
}

// buildHeader constructs a fresh 20-byte IPv4 header for an outbound
// datagram of the given payload length: TTL=64, identification=0, no
// fragmentation flags, checksum fixed up.
func buildHeader(src, dst Addr, proto uint8, payloadLen int) []byte {
	buf := make([]byte, HeaderLen)
	f, _ := NewFrame(buf)
	f.SetVersionIHL(4, 5)
	f.SetTotalLength(uint16(HeaderLen + payloadLen))
	f.SetTTL(64)
	f.SetProtocol(proto)
	f.SetSourceAddr(src)
	f.SetDestAddr(dst)
	f.FixChecksum()
	return buf
}

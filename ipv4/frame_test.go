package ipv4

import "testing"

func TestBuildHeaderChecksumVerifies(t *testing.T) {
	src, _ := ParseAddr("10.0.0.1")
	dst, _ := ParseAddr("10.0.0.2")
	header := buildHeader(src, dst, ProtoTCP, 0)

	f, err := Parse(header, false)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if f.SourceAddr() != src || f.DestAddr() != dst {
		t.Fatalf("addr mismatch: got src=%v dst=%v", f.SourceAddr(), f.DestAddr())
	}
	if f.TTL() != 64 {
		t.Fatalf("TTL = %d, want 64", f.TTL())
	}
}

func TestParseRejectsBadVersion(t *testing.T) {
	buf := make([]byte, HeaderLen)
	buf[0] = 0x60 // version 6
	if _, err := Parse(buf, true); err != ErrBadVersion {
		t.Fatalf("err = %v, want ErrBadVersion", err)
	}
}

func TestParseRejectsOptions(t *testing.T) {
	buf := make([]byte, HeaderLen)
	buf[0] = 0x46 // version 4, IHL 6
	if _, err := Parse(buf, true); err != ErrHasOptions {
		t.Fatalf("err = %v, want ErrHasOptions", err)
	}
}

func TestParseDetectsChecksumCorruption(t *testing.T) {
	src, _ := ParseAddr("10.0.0.1")
	dst, _ := ParseAddr("10.0.0.2")
	header := buildHeader(src, dst, ProtoTCP, 0)
	header[1] ^= 0xff // corrupt DSCP/ECN byte without fixing checksum

	if _, err := Parse(header, false); err != ErrChecksum {
		t.Fatalf("err = %v, want ErrChecksum", err)
	}
}

// TestForwardInvariant: after forwarding a datagram with TTL > 1, the
// outbound datagram differs from the inbound only in TTL and checksum.
func TestForwardInvariant(t *testing.T) {
	src, _ := ParseAddr("10.0.0.1")
	dst, _ := ParseAddr("10.0.0.2")
	next, _ := ParseAddr("10.0.0.254")

	inbound := buildHeader(src, dst, ProtoTCP, 4)
	inbound = append(inbound, []byte{1, 2, 3, 4}...)
	originalTTL := inbound[8]
	want := append([]byte(nil), inbound...)
	want[8] = originalTTL - 1

	table := NewTable()
	table.Add(dst, 32, next)
	link := &fakeLink{}
	layer := NewLayer(Addr{192, 168, 1, 1}, table, link, nil)

	layer.Receive(inbound)

	if len(link.sent) != 1 {
		t.Fatalf("len(sent) = %d, want 1", len(link.sent))
	}
	got := append([]byte(nil), link.sent[0].datagram...)
	if got[8] != originalTTL-1 {
		t.Fatalf("TTL = %d, want %d", got[8], originalTTL-1)
	}
	want[10], want[11] = 0, 0
	got[10], got[11] = 0, 0
	for i := range want {
		if want[i] != got[i] {
			t.Fatalf("byte %d differs: got %#x want %#x", i, got[i], want[i])
		}
	}
	if link.sent[0].nextHop != next {
		t.Fatalf("nextHop = %v, want %v", link.sent[0].nextHop, next)
	}
}

type sentDatagram struct {
	datagram []byte
	nextHop  Addr
}

type fakeLink struct {
	sent []sentDatagram
}

func (f *fakeLink) Send(datagram []byte, nextHop Addr) error {
	cp := append([]byte(nil), datagram...)
	f.sent = append(f.sent, sentDatagram{datagram: cp, nextHop: nextHop})
	return nil
}

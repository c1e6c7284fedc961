package slip

import (
	"bytes"
	"testing"
)

// TestEncodeDecodeRoundTrip covers scenario S1: a datagram containing
// bytes equal to END and ESC survives Encode → Decode unchanged.
func TestEncodeDecodeRoundTrip(t *testing.T) {
	datagram := []byte{0x45, END, 0x00, ESC, 0xff, END, ESC}

	var got []byte
	d := NewDecoder(func(frame []byte) {
		got = append([]byte(nil), frame...)
	})
	d.Decode(Encode(datagram))

	if !bytes.Equal(got, datagram) {
		t.Fatalf("got %v, want %v", got, datagram)
	}
}

// TestDecodeAcrossChunkBoundaries covers invariant 1: splitting an encoded
// frame at every possible byte boundary across two Decode calls always
// reassembles the same datagram.
func TestDecodeAcrossChunkBoundaries(t *testing.T) {
	datagram := []byte{0x01, END, 0x02, ESC, 0x03, 0xC0, 0xDB}
	encoded := Encode(datagram)

	for split := 0; split <= len(encoded); split++ {
		var got []byte
		d := NewDecoder(func(frame []byte) {
			got = append([]byte(nil), frame...)
		})
		d.Decode(encoded[:split])
		d.Decode(encoded[split:])

		if !bytes.Equal(got, datagram) {
			t.Fatalf("split at %d: got %v, want %v", split, got, datagram)
		}
	}
}

func TestDecodeMultipleFramesInOneChunk(t *testing.T) {
	a := []byte{1, 2, 3}
	b := []byte{4, 5, 6}

	var frames [][]byte
	d := NewDecoder(func(frame []byte) {
		frames = append(frames, append([]byte(nil), frame...))
	})

	chunk := append(append([]byte{}, Encode(a)...), Encode(b)...)
	d.Decode(chunk)

	if len(frames) != 2 {
		t.Fatalf("len(frames) = %d, want 2", len(frames))
	}
	if !bytes.Equal(frames[0], a) || !bytes.Equal(frames[1], b) {
		t.Fatalf("frames = %v, want [%v %v]", frames, a, b)
	}
}

// TestConsecutiveENDsProduceNoEmptyFrame: a leading END after a frame
// begins the next cleanly, and an END with an empty buffer delivers
// nothing.
func TestConsecutiveENDsProduceNoEmptyFrame(t *testing.T) {
	var calls int
	d := NewDecoder(func(frame []byte) { calls++ })
	d.Decode([]byte{END, END, END})

	if calls != 0 {
		t.Fatalf("calls = %d, want 0", calls)
	}
}

// TestMalformedEscapeDiscardsFrame covers the frame_bad branch: an escape
// byte followed by anything other than ESC_END/ESC_ESC marks the frame bad
// and its bytes are discarded up to the next END, with no delivery.
func TestMalformedEscapeDiscardsFrame(t *testing.T) {
	var calls int
	d := NewDecoder(func(frame []byte) { calls++ })

	// ESC followed by an ordinary byte is a malformed escape.
	d.Decode([]byte{0x01, ESC, 0x02, 0x03, END})
	if calls != 0 {
		t.Fatalf("calls = %d, want 0 for a malformed frame", calls)
	}

	// The decoder must recover cleanly for the next frame.
	var got []byte
	d.OnFrame = func(frame []byte) { got = append([]byte(nil), frame...) }
	next := []byte{0x09, 0x08}
	d.Decode(Encode(next))
	if !bytes.Equal(got, next) {
		t.Fatalf("got %v, want %v", got, next)
	}
}

func TestDeliveryFailureResetsState(t *testing.T) {
	d := NewDecoder(func(frame []byte) {
		panic("upper layer exploded")
	})

	d.Decode(Encode([]byte{0x01, 0x02}))

	var got []byte
	d.OnFrame = func(frame []byte) { got = append([]byte(nil), frame...) }
	next := []byte{0x03, 0x04}
	d.Decode(Encode(next))

	if !bytes.Equal(got, next) {
		t.Fatalf("got %v, want %v after a panicking callback", got, next)
	}
}

package slip

import "log/slog"

// Decoder is a resumable SLIP frame decoder: it can be fed bytes one chunk
// at a time from a serial device and will deliver a complete datagram to
// OnFrame whenever a terminating END byte closes a well-formed frame.
type Decoder struct {
	buf      []byte
	inEscape bool
	frameBad bool

	// OnFrame is invoked with each decoded datagram. The slice is only
	// valid for the duration of the call: OnFrame must copy it to retain
	// it past return.
	OnFrame func(datagram []byte)

	// Log receives a message if OnFrame panics. Defaults to slog.Default.
	Log *slog.Logger
}

// NewDecoder returns a Decoder that calls onFrame for each decoded
// datagram.
func NewDecoder(onFrame func(datagram []byte)) *Decoder {
	return &Decoder{OnFrame: onFrame}
}

// Decode feeds chunk to the state machine. Decode may be called repeatedly
// with arbitrary, non-aligned slices of the serial stream; frame state
// persists across calls.
func (d *Decoder) Decode(chunk []byte) {
	for _, b := range chunk {
		d.decodeByte(b)
	}
}

func (d *Decoder) decodeByte(b byte) {
	switch {
	case b == END:
		if !d.frameBad && len(d.buf) > 0 {
			d.deliver()
		} else {
			d.reset()
		}
	case d.frameBad:
		// discard until next END
	case d.inEscape:
		switch b {
		case ESCEND:
			d.buf = append(d.buf, END)
		case ESCESC:
			d.buf = append(d.buf, ESC)
		default:
			d.frameBad = true
		}
		d.inEscape = false
	case b == ESC:
		d.inEscape = true
	default:
		d.buf = append(d.buf, b)
	}
}

// deliver invokes OnFrame, protecting the decoder's own state from a
// panicking callback: the decoder must still reset its per-frame state
// before returning so the next byte begins a fresh frame.
func (d *Decoder) deliver() {
	defer d.reset()
	defer func() {
		if r := recover(); r != nil {
			log := d.Log
			if log == nil {
				log = slog.Default()
			}
			log.Error("slip: frame callback panicked", "panic", r)
		}
	}()
	if d.OnFrame != nil {
		d.OnFrame(d.buf)
	}
}

func (d *Decoder) reset() {
	d.buf = nil
	d.inEscape = false
	d.frameBad = false
}

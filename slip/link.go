package slip

// SerialLine is the byte-stream transport a Link sends encoded frames
// over: a UART, a pty, a TCP socket standing in for one in tests, etc.
type SerialLine interface {
	Write(p []byte) (int, error)
}

// Link pairs a Decoder with the SerialLine it reads from and writes to.
// The decoder itself is transport-agnostic; Link is the glue a caller
// uses to drive it from a concrete serial device and to encode outbound
// datagrams onto the same device.
type Link struct {
	Line    SerialLine
	Decoder *Decoder
}

// NewLink constructs a Link over line, delivering decoded datagrams to
// onFrame.
func NewLink(line SerialLine, onFrame func(datagram []byte)) *Link {
	return &Link{
		Line:    line,
		Decoder: NewDecoder(onFrame),
	}
}

// Send SLIP-encodes datagram and writes it to the underlying serial line.
// datagram must be non-empty.
func (l *Link) Send(datagram []byte) error {
	_, err := l.Line.Write(Encode(datagram))
	return err
}

// Feed hands a chunk of bytes read off the serial line to the decoder.
func (l *Link) Feed(chunk []byte) {
	l.Decoder.Decode(chunk)
}

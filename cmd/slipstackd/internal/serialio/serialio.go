// Package serialio opens the concrete byte-stream devices a Stack's
// peers are configured against. The link layer itself is
// transport-agnostic; this package supplies the one concrete
// implementation slipstackd ships with: a plain character device or named
// pipe path, opened for simultaneous read/write.
package serialio

import (
	"io"
	"os"
)

// Open opens device (a path such as /dev/ttyUSB0 or a Unix domain pipe) for
// read/write access.
func Open(device string) (io.ReadWriter, error) {
	return os.OpenFile(device, os.O_RDWR, 0)
}

package process

import (
	"bufio"
	"errors"
	"io"
	"os"
	"strings"
)

// Stream names used in logs and events.
const (
	StreamStdout = "stdout"
	StreamStderr = "stderr"
)

// readBufferSize is the bufio buffer size for each capture reader.
const readBufferSize = 4096

// capture relays newline-delimited output from r into buf until end of
// stream. A read error ends this reader only; partial loss is tolerated,
// duplication never happens because each line is appended exactly once.
func capture(r io.Reader, buf *OutputBuffer, stream string, pid int, logger Logger) {
	reader := bufio.NewReaderSize(r, readBufferSize)
	for {
		line, err := reader.ReadString('\n')
		if raw := strings.TrimRight(line, "\r\n"); raw != "" {
			buf.Append(Sanitize(raw))
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
				logger.Debug("output stream read failed",
					"pid", pid,
					"stream", stream,
					"error", err,
				)
			}
			return
		}
	}
}

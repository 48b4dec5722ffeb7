package sphero

import (
	"context"
	"errors"
	"io"
)

func (l *Link) readerTask(ctx context.Context, stream io.Reader) {
	buf := make([]byte, ReadBufferSize)

	for {
		n, err := stream.Read(buf)

		select {
		case <-ctx.Done():
			l.log.Infof("Reader task stopped.")
			return
		default:
			// Pass on.
		}

		if n > 0 {
			l.Receive(buf[:n])
		}

		if err == nil {
			continue
		}

		if errors.Is(err, io.EOF) {
			l.log.Infof("Stream closed.")
		} else {
			l.log.Errorf("Error while reading: %v", err)
		}

		l.errLock.Lock()
		l.err = &TransportError{Op: "read", Err: err}
		l.errLock.Unlock()

		return
	}
}

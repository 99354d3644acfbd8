package ar

import (
	"fmt"
	"io"
)

// copyPayload copies exactly n bytes from src to dst in bounded chunks, so
// arbitrarily large payloads never require full buffering. A source that
// runs out early is reported with the byte counts rather than silently
// truncating the payload.
func copyPayload(dst io.Writer, src io.Reader, n int64) error {
	buf := make([]byte, blockSize)
	written, err := io.CopyBuffer(dst, io.LimitReader(src, n), buf)
	if err != nil {
		return err
	}
	if written != n {
		return fmt.Errorf("ar: short payload: copied %d of %d bytes: %w", written, n, io.ErrUnexpectedEOF)
	}
	return nil
}

// tell reports the stream's current position.
func tell(s io.Seeker) (int64, error) {
	return s.Seek(0, io.SeekCurrent)
}

package utils

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
)

// MaxResponseBodySize caps buffered provider responses (10 MiB).
const MaxResponseBodySize int64 = 10 * 1024 * 1024

// ErrBodyTooLarge is returned by ReadCapped when the body exceeds its limit.
var ErrBodyTooLarge = errors.New("response body exceeds size limit")

// ReadCapped reads r to the end but never more than limit bytes. A body that
// is longer than limit yields the first limit bytes and ErrBodyTooLarge.
func ReadCapped(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		limit = MaxResponseBodySize
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return data, err
	}
	if int64(len(data)) > limit {
		return data[:limit], fmt.Errorf("%w (%d bytes)", ErrBodyTooLarge, limit)
	}
	return data, nil
}

// CloseWithLog closes c and logs a failure instead of returning it. Used in
// defers where the primary error of the function must not be overridden.
func CloseWithLog(c io.Closer) {
	if c == nil {
		return
	}
	if err := c.Close(); err != nil {
		slog.Warn("failed to close response body", "error", err.Error())
	}
}

package framing

import "errors"

var (
	// ErrEndOfStream is returned by a framer that reached an explicit
	// end-of-stream marker, such as the closing bracket of a streamed array.
	ErrEndOfStream = errors.New("framing: end of stream")

	// ErrIncompleteFrame is returned at EOF when a frame was started but
	// never completed.
	ErrIncompleteFrame = errors.New("framing: incomplete frame at end of stream")

	// ErrMalformed is returned when the framing itself is broken, e.g. an
	// unbalanced closing bracket.
	ErrMalformed = errors.New("framing: malformed stream")
)

// Framer isolates frames in the unconsumed region of a decoder's buffer.
//
// Next is called with the unconsumed bytes. It returns how many bytes to
// consume and, when one is complete, the frame. advance > 0 with a nil frame
// skips bytes (separators, blank lines). advance == 0 with a nil frame asks
// for more data. With atEOF set the framer must either flush a trailing frame,
// consume what is left, or fail with ErrIncompleteFrame.
//
// Between calls that return advance == 0 the decoder only appends to buf,
// so a framer may remember how far it has scanned. Any call that returns
// advance > 0 resets that position.
type Framer interface {
	Next(buf []byte, atEOF bool) (advance int, frame []byte, err error)
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func trimSpace(b []byte) []byte {
	start, end := 0, len(b)
	for start < end && isSpace(b[start]) {
		start++
	}
	for end > start && isSpace(b[end-1]) {
		end--
	}
	return b[start:end]
}

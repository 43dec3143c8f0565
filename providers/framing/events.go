package framing

import "bytes"

var dataField = []byte("data:")

// events keeps the data lines of the event under construction. lineStart is
// the offset of the first line not yet examined.
type events struct {
	lineStart int
	data      []byte
	hasData   bool
}

// Events frames Server-Sent Events. An event ends at a blank line (LF or
// CRLF line endings); its "data:" lines are joined with "\n" and become the
// frame. Comments, other fields (event:, id:, retry:) and events without data
// are skipped.
func Events() Framer {
	return &events{}
}

func (e *events) Next(buf []byte, atEOF bool) (int, []byte, error) {
	pos := e.lineStart
	for {
		nl := bytes.IndexByte(buf[pos:], '\n')
		if nl < 0 {
			break
		}
		line := bytes.TrimSuffix(buf[pos:pos+nl], []byte("\r"))
		next := pos + nl + 1

		if len(line) == 0 {
			frame := e.take()
			return next, frame, nil
		}
		e.field(line)
		pos = next
	}

	if !atEOF {
		e.lineStart = pos
		return 0, nil, nil
	}

	if rest := bytes.TrimSuffix(buf[pos:], []byte("\r")); len(rest) > 0 {
		e.field(rest)
	}
	return len(buf), e.take(), nil
}

func (e *events) field(line []byte) {
	if line[0] == ':' || !bytes.HasPrefix(line, dataField) {
		return
	}
	value := line[len(dataField):]
	if len(value) > 0 && value[0] == ' ' {
		value = value[1:]
	}
	if e.hasData {
		e.data = append(e.data, '\n')
	}
	e.data = append(e.data, value...)
	e.hasData = true
}

// take returns the accumulated event data, or nil when the event had none,
// and resets the event state.
func (e *events) take() []byte {
	e.lineStart = 0
	if !e.hasData {
		e.data = e.data[:0]
		return nil
	}
	frame := append([]byte(nil), e.data...)
	e.data = e.data[:0]
	e.hasData = false
	return frame
}

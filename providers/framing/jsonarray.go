package framing

import "fmt"

// jsonArray tracks one top-level element at a time. depth counts open
// objects and arrays inside the element; inString/escaped follow string
// literals so brackets inside strings are ignored.
type jsonArray struct {
	opened   bool
	inValue  bool
	scalar   bool
	depth    int
	inString bool
	escaped  bool
	scanned  int
}

// JSONArray frames a streamed JSON array, emitting each top-level element as
// soon as it is complete. Elements may span any number of lines. Separators
// (whitespace and commas) are skipped; the closing bracket of the outer array
// ends the stream with ErrEndOfStream. A stream of bare concatenated or
// newline-delimited values without the outer array is accepted as well.
func JSONArray() Framer {
	return &jsonArray{}
}

func (j *jsonArray) Next(buf []byte, atEOF bool) (int, []byte, error) {
	if !j.inValue {
		i := 0
		for i < len(buf) {
			c := buf[i]
			switch {
			case isSpace(c) || c == ',':
				i++
				continue
			case c == '[' && !j.opened:
				j.opened = true
				i++
				continue
			case c == ']':
				if !j.opened {
					return 0, nil, fmt.Errorf("%w: unexpected ']' outside array", ErrMalformed)
				}
				return i + 1, nil, ErrEndOfStream
			}
			break
		}
		if i > 0 || len(buf) == 0 {
			return i, nil, nil
		}
		j.begin(buf[0])
	}

	for i := j.scanned; i < len(buf); i++ {
		c := buf[i]

		if j.inString {
			switch {
			case j.escaped:
				j.escaped = false
			case c == '\\':
				j.escaped = true
			case c == '"':
				j.inString = false
				if j.scalar && j.depth == 0 {
					return j.emit(buf, i+1)
				}
			}
			continue
		}

		if j.scalar {
			if isSpace(c) || c == ',' || c == ']' {
				return j.emit(buf, i)
			}
			continue
		}

		switch c {
		case '"':
			j.inString = true
		case '{', '[':
			j.depth++
		case '}', ']':
			j.depth--
			if j.depth == 0 {
				return j.emit(buf, i+1)
			}
		}
	}

	if !atEOF {
		j.scanned = len(buf)
		return 0, nil, nil
	}
	if j.scalar && !j.inString {
		return j.emit(buf, len(buf))
	}
	return 0, nil, ErrIncompleteFrame
}

// begin starts a new element whose first byte is c.
func (j *jsonArray) begin(c byte) {
	j.inValue = true
	j.scanned = 1
	switch c {
	case '{', '[':
		j.depth = 1
	case '"':
		j.scalar = true
		j.inString = true
	default:
		j.scalar = true
	}
}

func (j *jsonArray) emit(buf []byte, end int) (int, []byte, error) {
	j.inValue = false
	j.scalar = false
	j.depth = 0
	j.inString = false
	j.escaped = false
	j.scanned = 0
	return end, buf[:end], nil
}

package framing

import "bytes"

type lines struct {
	scanned int
}

// Lines frames newline-delimited JSON: one frame per line, CR stripped,
// blank lines skipped. A final line without a newline is still a frame.
func Lines() Framer {
	return &lines{}
}

func (l *lines) Next(buf []byte, atEOF bool) (int, []byte, error) {
	i := bytes.IndexByte(buf[l.scanned:], '\n')
	if i < 0 {
		if !atEOF {
			l.scanned = len(buf)
			return 0, nil, nil
		}
		l.scanned = 0
		line := trimSpace(buf)
		if len(line) == 0 {
			return len(buf), nil, nil
		}
		return len(buf), line, nil
	}

	end := l.scanned + i
	l.scanned = 0
	line := trimSpace(buf[:end])
	if len(line) == 0 {
		return end + 1, nil, nil
	}
	return end + 1, line, nil
}

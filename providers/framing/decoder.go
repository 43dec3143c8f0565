package framing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
)

// State is the decoder's position in its state machine.
type State int

const (
	// StateAccumulating: bytes are buffered, no complete frame found yet.
	StateAccumulating State = iota
	// StateFrameReady: a complete frame has been isolated and is being parsed.
	StateFrameReady
	// StateClosed: upstream ended or a terminal sentinel was seen. Terminal.
	StateClosed
	// StateError: a malformed frame or a read failure. Terminal.
	StateError
)

func (s State) String() string {
	switch s {
	case StateAccumulating:
		return "accumulating"
	case StateFrameReady:
		return "frame_ready"
	case StateClosed:
		return "closed"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

const (
	defaultReadSize = 4 * 1024

	// DefaultMaxFrameSize bounds the bytes buffered for a single frame.
	DefaultMaxFrameSize = 8 * 1024 * 1024

	maxEmptyReads = 100
)

// ParseFunc decodes one frame into zero or more items. done reports a
// terminal sentinel: the stream ends after it and no item is produced for
// the sentinel. The frame slice is only valid for the duration of the call.
type ParseFunc[T any] func(frame []byte) (items []T, done bool, err error)

// FrameError reports a frame that could not be isolated or parsed. Offset is
// the absolute stream offset where the frame started.
type FrameError struct {
	Offset int64
	Frame  []byte
	Err    error
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("frame at offset %d: %v", e.Offset, e.Err)
}

func (e *FrameError) Unwrap() error { return e.Err }

// ReadError reports a failure of the underlying byte source (or context
// cancellation) as opposed to a problem with the bytes themselves.
type ReadError struct {
	Err error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("stream read: %v", e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// Option configures a Decoder.
type Option func(*decoderConfig)

type decoderConfig struct {
	readSize     int
	maxFrameSize int
}

// WithReadSize sets the minimum free space requested per Read call.
func WithReadSize(n int) Option {
	return func(c *decoderConfig) {
		if n > 0 {
			c.readSize = n
		}
	}
}

// WithMaxFrameSize bounds how many unconsumed bytes may accumulate while
// looking for the end of one frame.
func WithMaxFrameSize(n int) Option {
	return func(c *decoderConfig) {
		if n > 0 {
			c.maxFrameSize = n
		}
	}
}

// Decoder pulls items out of a byte source one at a time. It is not safe for
// concurrent use; each stream owns its decoder exclusively.
type Decoder[T any] struct {
	src    io.Reader
	framer Framer
	parse  ParseFunc[T]
	cfg    decoderConfig

	buf     []byte
	cursor  int
	offset  int64
	eof     bool
	state   State
	pending []T
}

// NewDecoder returns a decoder in StateAccumulating.
func NewDecoder[T any](src io.Reader, framer Framer, parse ParseFunc[T], opts ...Option) *Decoder[T] {
	cfg := decoderConfig{readSize: defaultReadSize, maxFrameSize: DefaultMaxFrameSize}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Decoder[T]{
		src:    src,
		framer: framer,
		parse:  parse,
		cfg:    cfg,
		state:  StateAccumulating,
	}
}

// State returns the current state.
func (d *Decoder[T]) State() State {
	return d.state
}

// Next returns the next item. It returns io.EOF once the stream is closed.
// A failure is returned exactly once, as a *FrameError, a *ReadError or the
// context error wrapped in a *ReadError; every later call returns io.EOF.
func (d *Decoder[T]) Next(ctx context.Context) (T, error) {
	var zero T
	for {
		if len(d.pending) > 0 {
			item := d.pending[0]
			d.pending = d.pending[1:]
			return item, nil
		}

		if d.state == StateClosed || d.state == StateError {
			return zero, io.EOF
		}

		if err := ctx.Err(); err != nil {
			return zero, d.fail(&ReadError{Err: err})
		}

		start := d.offset
		advance, frame, err := d.framer.Next(d.buf[d.cursor:], d.eof)
		if err != nil {
			if errors.Is(err, ErrEndOfStream) {
				d.consume(advance)
				d.state = StateClosed
				continue
			}
			return zero, d.fail(&FrameError{Offset: start, Frame: preview(d.buf[d.cursor:]), Err: err})
		}
		d.consume(advance)

		if frame != nil {
			d.state = StateFrameReady
			items, done, perr := d.parse(frame)
			if perr != nil {
				return zero, d.fail(&FrameError{Offset: start, Frame: preview(frame), Err: perr})
			}
			d.pending = items
			if done {
				d.state = StateClosed
			} else {
				d.state = StateAccumulating
			}
			continue
		}
		if advance > 0 {
			continue
		}

		if d.eof {
			d.state = StateClosed
			continue
		}
		if len(d.buf)-d.cursor >= d.cfg.maxFrameSize {
			return zero, d.fail(&FrameError{
				Offset: d.offset,
				Frame:  preview(d.buf[d.cursor:]),
				Err:    fmt.Errorf("frame exceeds %d bytes", d.cfg.maxFrameSize),
			})
		}
		if err := d.fill(); err != nil {
			return zero, d.fail(&ReadError{Err: err})
		}
	}
}

func (d *Decoder[T]) consume(n int) {
	d.cursor += n
	d.offset += int64(n)
}

// fill reads one block from the source. Consumed bytes are dropped only when
// they make up at least half of the buffer, so the unconsumed region is moved
// at most once per doubling.
func (d *Decoder[T]) fill() error {
	if d.cursor > 0 && d.cursor >= len(d.buf)/2 {
		n := copy(d.buf, d.buf[d.cursor:])
		d.buf = d.buf[:n]
		d.cursor = 0
	}
	if cap(d.buf)-len(d.buf) < d.cfg.readSize {
		grown := make([]byte, len(d.buf), 2*cap(d.buf)+d.cfg.readSize)
		copy(grown, d.buf)
		d.buf = grown
	}

	for range maxEmptyReads {
		n, err := d.src.Read(d.buf[len(d.buf):cap(d.buf)])
		d.buf = d.buf[:len(d.buf)+n]
		if err == io.EOF {
			d.eof = true
			return nil
		}
		if err != nil {
			return err
		}
		if n > 0 {
			return nil
		}
	}
	return io.ErrNoProgress
}

func (d *Decoder[T]) fail(err error) error {
	d.state = StateError
	d.pending = nil
	return err
}

func preview(b []byte) []byte {
	const limit = 256
	if len(b) > limit {
		b = b[:limit]
	}
	return append([]byte(nil), b...)
}

// Decode returns a single-pass sequence over the items decoded from src.
// The sequence ends after the stream closes or after yielding one error.
// Closing src is the caller's responsibility.
func Decode[T any](ctx context.Context, src io.Reader, framer Framer, parse ParseFunc[T], opts ...Option) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		d := NewDecoder(src, framer, parse, opts...)
		for {
			item, err := d.Next(ctx)
			if err == io.EOF {
				return
			}
			if err != nil {
				yield(item, err)
				return
			}
			if !yield(item, nil) {
				return
			}
		}
	}
}

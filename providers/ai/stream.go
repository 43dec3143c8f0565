package ai

import (
	"io"
	"iter"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

// ChunkStream is the lazy result of a streaming generation. It is
// single-pass: the first Iter consumes it, and later calls yield
// ErrStreamConsumed. The underlying connection is released when iteration
// ends, when the range loop breaks, or on Close, whichever comes first.
type ChunkStream struct {
	seq       iter.Seq2[StreamChunk, error]
	closer    io.Closer
	used      atomic.Bool
	closeOnce sync.Once
	closeErr  error

	// Warnings produced while building the request.
	Warnings []Warning
}

// NewChunkStream wraps seq. closer may be nil.
func NewChunkStream(seq iter.Seq2[StreamChunk, error], closer io.Closer) *ChunkStream {
	return &ChunkStream{seq: seq, closer: closer}
}

// Iter returns the chunk sequence. Exactly one error, if any, is yielded as
// the final element.
func (s *ChunkStream) Iter() iter.Seq2[StreamChunk, error] {
	return func(yield func(StreamChunk, error) bool) {
		if !s.used.CompareAndSwap(false, true) {
			yield(StreamChunk{}, ErrStreamConsumed)
			return
		}
		defer s.Close()

		for chunk, err := range s.seq {
			if !yield(chunk, err) || err != nil {
				return
			}
		}
	}
}

// Close releases the underlying body. It is safe to call more than once and
// from any goroutine; a stream that was closed before iteration is consumed.
func (s *ChunkStream) Close() error {
	s.closeOnce.Do(func() {
		s.used.Store(true)
		if s.closer != nil {
			s.closeErr = s.closer.Close()
		}
	})
	return s.closeErr
}

// Collect drains the stream into a response. Each candidate index is
// assembled independently: deltas are concatenated in order, the last
// finish reason wins, and usage comes from the last chunk carrying it.
// On failure the partial response is returned alongside the error.
func (s *ChunkStream) Collect() (*GenerationResponse, error) {
	acc := NewAccumulator()
	var streamErr error
	for chunk, err := range s.Iter() {
		if err != nil {
			streamErr = err
			break
		}
		acc.Add(chunk)
	}
	resp := acc.Response()
	resp.Warnings = s.Warnings
	return resp, streamErr
}

// Accumulator folds stream chunks into per-candidate state.
type Accumulator struct {
	candidates map[int]*candidateBuilder
	usage      *Usage
	chunks     int
}

type candidateBuilder struct {
	text   strings.Builder
	finish FinishReason
}

// NewAccumulator returns an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{candidates: make(map[int]*candidateBuilder)}
}

// Add folds one chunk.
func (a *Accumulator) Add(chunk StreamChunk) {
	a.chunks++
	if chunk.Usage != nil {
		u := *chunk.Usage
		a.usage = &u
	}
	if chunk.Delta == "" && chunk.FinishReason == "" {
		return
	}
	b, ok := a.candidates[chunk.CandidateIndex]
	if !ok {
		b = &candidateBuilder{}
		a.candidates[chunk.CandidateIndex] = b
	}
	b.text.WriteString(chunk.Delta)
	if chunk.FinishReason != "" {
		b.finish = chunk.FinishReason
	}
}

// Chunks is the number of chunks folded so far.
func (a *Accumulator) Chunks() int { return a.chunks }

// Usage is the latest usage seen, or nil.
func (a *Accumulator) Usage() *Usage { return a.usage }

// Response returns the assembled candidates sorted by index.
func (a *Accumulator) Response() *GenerationResponse {
	resp := &GenerationResponse{
		Candidates: make([]Candidate, 0, len(a.candidates)),
		Usage:      a.usage,
	}
	for idx, b := range a.candidates {
		resp.Candidates = append(resp.Candidates, Candidate{
			Index:        idx,
			Text:         b.text.String(),
			FinishReason: b.finish,
		})
	}
	sort.Slice(resp.Candidates, func(i, j int) bool {
		return resp.Candidates[i].Index < resp.Candidates[j].Index
	})
	return resp
}

// WrapChunkStream returns a stream over seq that closes inner on Close and
// carries inner's warnings. seq normally ranges over inner.Iter(); it is how
// middleware observes or transforms a stream without owning its body.
func WrapChunkStream(inner *ChunkStream, seq iter.Seq2[StreamChunk, error]) *ChunkStream {
	wrapped := NewChunkStream(seq, inner)
	wrapped.Warnings = inner.Warnings
	return wrapped
}

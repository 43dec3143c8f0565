package middleware

import (
	"context"
	"time"

	"github.com/leofalp/unillm/core/client"
	"github.com/leofalp/unillm/providers/ai"
)

// NewTimeoutMiddleware creates a MiddlewareConfig that enforces a per-request
// deadline on both buffered and streaming generations.
//
// For Generate the context is wrapped with context.WithTimeout and cancel is
// deferred, so it fires once the call returns or the deadline expires.
//
// For GenerateStreamed cancel is NOT deferred. It is called once the chunk
// stream is fully consumed, fails, is abandoned by the caller, or is closed.
// The timeout therefore governs the complete lifetime of the stream, not just
// the time to receive the headers.
//
// If the caller supplies a context that already has a shorter deadline, that
// shorter deadline wins as per normal context semantics.
func NewTimeoutMiddleware(timeout time.Duration) client.MiddlewareConfig {
	return client.MiddlewareConfig{
		Send:   buildSendTimeout(timeout),
		Stream: buildStreamTimeout(timeout),
	}
}

// buildSendTimeout constructs the send middleware that adds a deadline.
func buildSendTimeout(timeout time.Duration) client.Middleware {
	return func(next client.SendFunc) client.SendFunc {
		return func(ctx context.Context, request *ai.GenerationRequest) (*ai.GenerationResponse, error) {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			return next(ctx, request)
		}
	}
}

// buildStreamTimeout constructs the stream middleware that adds a deadline and
// wraps the resulting ChunkStream so cancel runs when the stream ends.
func buildStreamTimeout(timeout time.Duration) client.StreamMiddleware {
	return func(next client.StreamFunc) client.StreamFunc {
		return func(ctx context.Context, request *ai.GenerationRequest) (*ai.ChunkStream, error) {
			ctx, cancel := context.WithTimeout(ctx, timeout)

			stream, err := next(ctx, request)
			if err != nil {
				// Pre-stream error: cancel immediately.
				cancel()
				return nil, err
			}

			return wrapStreamWithCancel(stream, cancel), nil
		}
	}
}

// cancelCloser releases the stream body and then the timeout context.
type cancelCloser struct {
	stream *ai.ChunkStream
	cancel context.CancelFunc
}

func (c cancelCloser) Close() error {
	defer c.cancel()
	return c.stream.Close()
}

// wrapStreamWithCancel returns a ChunkStream that calls cancel once the
// stream finishes, errors, the caller breaks out of the loop, or it is closed
// without being iterated.
func wrapStreamWithCancel(stream *ai.ChunkStream, cancel context.CancelFunc) *ai.ChunkStream {
	seq := func(yield func(ai.StreamChunk, error) bool) {
		defer cancel()

		for chunk, err := range stream.Iter() {
			if !yield(chunk, err) || err != nil {
				return
			}
		}
	}

	wrapped := ai.NewChunkStream(seq, cancelCloser{stream: stream, cancel: cancel})
	wrapped.Warnings = stream.Warnings
	return wrapped
}

package middleware

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/leofalp/unillm/providers/ai"
)

// ========== Helpers ==========

// makeSendFunc returns a SendFunc that sleeps for the given duration before
// returning, simulating a slow provider.
func makeSendFunc(sleep time.Duration, resp *ai.GenerationResponse, err error) func(context.Context, *ai.GenerationRequest) (*ai.GenerationResponse, error) {
	return func(ctx context.Context, _ *ai.GenerationRequest) (*ai.GenerationResponse, error) {
		select {
		case <-time.After(sleep):
			return resp, err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// makeStreamFunc returns a StreamFunc that sleeps for the given duration
// before yielding chunks.
func makeStreamFunc(sleep time.Duration) func(context.Context, *ai.GenerationRequest) (*ai.ChunkStream, error) {
	return func(ctx context.Context, _ *ai.GenerationRequest) (*ai.ChunkStream, error) {
		seq := func(yield func(ai.StreamChunk, error) bool) {
			select {
			case <-time.After(sleep):
				if !yield(ai.StreamChunk{Delta: "hello"}, nil) {
					return
				}
				yield(ai.StreamChunk{FinishReason: ai.FinishStop}, nil)
			case <-ctx.Done():
				yield(ai.StreamChunk{}, ctx.Err())
			}
		}
		return ai.NewChunkStream(seq, nil), nil
	}
}

// chunksOf returns a stream over the given chunks followed by an optional
// error.
func chunksOf(err error, chunks ...ai.StreamChunk) *ai.ChunkStream {
	seq := func(yield func(ai.StreamChunk, error) bool) {
		for _, c := range chunks {
			if !yield(c, nil) {
				return
			}
		}
		if err != nil {
			yield(ai.StreamChunk{}, err)
		}
	}
	return ai.NewChunkStream(seq, nil)
}

// ========== Send timeout tests ==========

// TestTimeoutMiddleware_SendCompletesBeforeTimeout verifies that a fast call
// returns its response successfully.
func TestTimeoutMiddleware_SendCompletesBeforeTimeout(t *testing.T) {
	want := textResponse("fast", ai.FinishStop)
	chain := NewTimeoutMiddleware(time.Second).Send(makeSendFunc(time.Millisecond, want, nil))

	got, err := chain(context.Background(), &ai.GenerationRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != want {
		t.Errorf("expected the inner response to be returned unchanged")
	}
}

// TestTimeoutMiddleware_SendExceedsTimeout verifies that a slow call is cut
// off with context.DeadlineExceeded.
func TestTimeoutMiddleware_SendExceedsTimeout(t *testing.T) {
	chain := NewTimeoutMiddleware(10 * time.Millisecond).Send(makeSendFunc(time.Second, nil, nil))

	_, err := chain(context.Background(), &ai.GenerationRequest{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected DeadlineExceeded, got %v", err)
	}
}

// TestTimeoutMiddleware_ExistingShorterDeadline verifies that a caller's
// shorter deadline wins.
func TestTimeoutMiddleware_ExistingShorterDeadline(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	var observed time.Time
	inner := func(ctx context.Context, _ *ai.GenerationRequest) (*ai.GenerationResponse, error) {
		observed, _ = ctx.Deadline()
		return textResponse("ok", ai.FinishStop), nil
	}

	chain := NewTimeoutMiddleware(time.Hour).Send(inner)
	if _, err := chain(ctx, &ai.GenerationRequest{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if time.Until(observed) > time.Second {
		t.Errorf("expected the caller's shorter deadline, got %v", time.Until(observed))
	}
}

// ========== Stream timeout tests ==========

// TestTimeoutMiddleware_StreamCompletesBeforeTimeout verifies that a fast
// stream delivers every chunk.
func TestTimeoutMiddleware_StreamCompletesBeforeTimeout(t *testing.T) {
	chain := NewTimeoutMiddleware(time.Second).Stream(makeStreamFunc(time.Millisecond))

	stream, err := chain(context.Background(), &ai.GenerationRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	resp, err := stream.Collect()
	if err != nil {
		t.Fatalf("unexpected stream error: %v", err)
	}
	if resp.Text() != "hello" || resp.FinishReason() != ai.FinishStop {
		t.Errorf("unexpected response: %+v", resp)
	}
}

// TestTimeoutMiddleware_StreamExceedsTimeout verifies that the deadline
// governs the stream body, not only the call that opened it.
func TestTimeoutMiddleware_StreamExceedsTimeout(t *testing.T) {
	chain := NewTimeoutMiddleware(10 * time.Millisecond).Stream(makeStreamFunc(time.Second))

	stream, err := chain(context.Background(), &ai.GenerationRequest{})
	if err != nil {
		t.Fatalf("unexpected error opening stream: %v", err)
	}

	_, err = stream.Collect()
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected DeadlineExceeded from the stream, got %v", err)
	}
}

// TestBuildStreamTimeout_PreStreamError verifies that an error opening the
// stream is returned and the context is released.
func TestBuildStreamTimeout_PreStreamError(t *testing.T) {
	openErr := errors.New("connect failed")
	var innerCtx context.Context

	chain := buildStreamTimeout(time.Hour)(func(ctx context.Context, _ *ai.GenerationRequest) (*ai.ChunkStream, error) {
		innerCtx = ctx
		return nil, openErr
	})

	if _, err := chain(context.Background(), &ai.GenerationRequest{}); err != openErr {
		t.Fatalf("expected the open error, got %v", err)
	}
	if innerCtx.Err() == nil {
		t.Error("expected the timeout context to be cancelled")
	}
}

// TestWrapStreamWithCancel_CancelsAfterEnd verifies that cancel runs once the
// stream has been drained.
func TestWrapStreamWithCancel_CancelsAfterEnd(t *testing.T) {
	cancelled := false
	wrapped := wrapStreamWithCancel(chunksOf(nil, ai.StreamChunk{Delta: "a"}), func() { cancelled = true })

	for _, err := range wrapped.Iter() {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cancelled {
			t.Fatal("cancel ran before the stream ended")
		}
	}

	if !cancelled {
		t.Error("expected cancel after the stream ended")
	}
}

// TestWrapStreamWithCancel_MidStreamError verifies that the error is
// forwarded and cancel runs.
func TestWrapStreamWithCancel_MidStreamError(t *testing.T) {
	streamErr := errors.New("boom")
	cancelled := false
	wrapped := wrapStreamWithCancel(chunksOf(streamErr, ai.StreamChunk{Delta: "a"}), func() { cancelled = true })

	_, err := wrapped.Collect()
	if err != streamErr {
		t.Fatalf("expected the stream error, got %v", err)
	}
	if !cancelled {
		t.Error("expected cancel after the error")
	}
}

// TestWrapStreamWithCancel_EarlyBreak verifies that breaking out of the range
// loop runs cancel.
func TestWrapStreamWithCancel_EarlyBreak(t *testing.T) {
	cancelled := false
	wrapped := wrapStreamWithCancel(
		chunksOf(nil, ai.StreamChunk{Delta: "a"}, ai.StreamChunk{Delta: "b"}),
		func() { cancelled = true },
	)

	for range wrapped.Iter() {
		break
	}

	if !cancelled {
		t.Error("expected cancel after an early break")
	}
}

// TestWrapStreamWithCancel_CloseWithoutIterating verifies that closing an
// unread stream releases the timeout context.
func TestWrapStreamWithCancel_CloseWithoutIterating(t *testing.T) {
	cancelled := false
	wrapped := wrapStreamWithCancel(chunksOf(nil, ai.StreamChunk{Delta: "a"}), func() { cancelled = true })

	if err := wrapped.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}
	if !cancelled {
		t.Error("expected cancel on Close")
	}
}

// TestWrapStreamWithCancel_KeepsWarnings verifies that request warnings
// survive wrapping.
func TestWrapStreamWithCancel_KeepsWarnings(t *testing.T) {
	inner := chunksOf(nil)
	inner.Warnings = []ai.Warning{{Field: "top_k", Message: "not supported"}}

	wrapped := wrapStreamWithCancel(inner, func() {})
	if len(wrapped.Warnings) != 1 || wrapped.Warnings[0].Field != "top_k" {
		t.Errorf("expected warnings to be carried, got %+v", wrapped.Warnings)
	}
}

package client

import (
	"context"

	"github.com/leofalp/unillm/providers/ai"
)

// SendFunc performs one non-streaming generation. It is the base unit threaded
// through the send middleware chain.
type SendFunc func(ctx context.Context, request *ai.GenerationRequest) (*ai.GenerationResponse, error)

// StreamFunc starts one streaming generation. It is the base unit threaded
// through the stream middleware chain.
type StreamFunc func(ctx context.Context, request *ai.GenerationRequest) (*ai.ChunkStream, error)

// Middleware intercepts and optionally transforms generation requests and
// responses. Each Middleware receives the next SendFunc in the chain and
// returns a new SendFunc that wraps it. Middlewares are applied
// outermost-first: the first middleware in the slice is the outermost wrapper.
type Middleware func(next SendFunc) SendFunc

// StreamMiddleware is the streaming counterpart of Middleware. It may wrap
// the returned ChunkStream (see [ai.WrapChunkStream]) to observe or transform
// the chunk sequence.
type StreamMiddleware func(next StreamFunc) StreamFunc

// MiddlewareConfig pairs a send middleware with its optional streaming
// counterpart. Send is required; a nil Send causes [New] to return an error.
// A nil Stream means streaming calls bypass this entry.
type MiddlewareConfig struct {
	// Send is applied to Generate calls.
	Send Middleware

	// Stream is applied to GenerateStreamed calls. Optional.
	Stream StreamMiddleware
}

// buildSendChain wraps base with middlewares applied in reverse, so that
// middlewares[0] is the first to execute on an incoming request.
func buildSendChain(base SendFunc, middlewares []MiddlewareConfig) SendFunc {
	chain := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		chain = middlewares[i].Send(chain)
	}
	return chain
}

// buildStreamChain is buildSendChain for streams. Entries with a nil Stream
// are skipped.
func buildStreamChain(base StreamFunc, middlewares []MiddlewareConfig) StreamFunc {
	chain := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		if middlewares[i].Stream != nil {
			chain = middlewares[i].Stream(chain)
		}
	}
	return chain
}

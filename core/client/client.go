package client

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/leofalp/unillm/internal/utils"
	"github.com/leofalp/unillm/providers/ai"
	"github.com/leofalp/unillm/providers/framing"
	"github.com/leofalp/unillm/providers/observability"
	"github.com/leofalp/unillm/providers/transport"
)

// maxModelPages bounds pagination so a provider that keeps returning tokens
// cannot loop the client forever.
const maxModelPages = 100

// Client binds one adapter to one transport. It is immutable after New and
// safe for concurrent use.
type Client struct {
	adapter   ai.Adapter
	transport transport.Transport
	observer  observability.Provider
	send      SendFunc
	stream    StreamFunc
}

// Option configures a Client.
type Option func(*clientOptions)

type clientOptions struct {
	transport   transport.Transport
	observer    observability.Provider
	middlewares []MiddlewareConfig
}

// WithTransport sets the transport. The default is transport.NewHTTP().
// A transport that does not implement transport.StreamingTransport makes
// GenerateStreamed fail with an UnsupportedOperationError.
func WithTransport(t transport.Transport) Option {
	return func(o *clientOptions) { o.transport = t }
}

// WithObserver enables tracing, metrics and logging. The observability
// middleware is prepended to the chain, so it sees the final outcome of any
// retry or timeout middleware.
func WithObserver(observer observability.Provider) Option {
	return func(o *clientOptions) { o.observer = observer }
}

// WithMiddleware appends middlewares to the chain. The first entry is the
// outermost wrapper.
func WithMiddleware(middlewares ...MiddlewareConfig) Option {
	return func(o *clientOptions) { o.middlewares = append(o.middlewares, middlewares...) }
}

// New creates a Client for adapter.
func New(adapter ai.Adapter, opts ...Option) (*Client, error) {
	if adapter == nil {
		return nil, errors.New("client: adapter is required")
	}

	options := &clientOptions{}
	for _, opt := range opts {
		opt(options)
	}
	if options.transport == nil {
		options.transport = transport.NewHTTP()
	}

	for i, mw := range options.middlewares {
		if mw.Send == nil {
			return nil, fmt.Errorf("client: middleware at index %d has a nil Send function", i)
		}
	}

	c := &Client{
		adapter:   adapter,
		transport: options.transport,
		observer:  options.observer,
	}

	middlewares := options.middlewares
	if c.observer != nil {
		obs := NewObservabilityMiddleware(c.observer, adapter.Name(), adapter.DefaultModel())
		middlewares = append([]MiddlewareConfig{obs}, middlewares...)
	}
	c.send = buildSendChain(c.generate, middlewares)
	c.stream = buildStreamChain(c.generateStreamed, middlewares)
	return c, nil
}

// Provider returns the adapter name.
func (c *Client) Provider() string { return c.adapter.Name() }

// DefaultModel returns the adapter's default model.
func (c *Client) DefaultModel() string { return c.adapter.DefaultModel() }

// SupportsStreaming reports whether the transport can stream.
func (c *Client) SupportsStreaming() bool {
	_, ok := c.transport.(transport.StreamingTransport)
	return ok
}

// Generate validates req, sends it and returns the parsed response. Warnings
// for parameters that could not be sent as requested are attached to the
// response.
func (c *Client) Generate(ctx context.Context, req *ai.GenerationRequest) (*ai.GenerationResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return c.send(ctx, req)
}

// GenerateStreamed starts a streaming generation and returns as soon as the
// response headers arrive. A non-2xx status is returned as an error before
// any chunk. The caller must drain or Close the returned stream.
func (c *Client) GenerateStreamed(ctx context.Context, req *ai.GenerationRequest) (*ai.ChunkStream, error) {
	if !c.SupportsStreaming() {
		return nil, &ai.UnsupportedOperationError{
			Provider:  c.adapter.Name(),
			Operation: ai.OpStream,
			Reason:    "transport does not support streaming",
		}
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return c.stream(ctx, req)
}

// CountTokens returns the number of input tokens req would consume on its
// model.
func (c *Client) CountTokens(ctx context.Context, req *ai.GenerationRequest) (*ai.TokenCount, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	model := ai.ModelOrDefault(c.adapter, req)
	ctx, finish := c.trace(ctx, observability.SpanClientCountTokens, model)

	httpReq, err := c.adapter.BuildCountTokens(req)
	if err != nil {
		return nil, finish(err)
	}
	resp, err := c.do(ctx, ai.OpCountTokens, httpReq)
	if err != nil {
		return nil, finish(err)
	}
	count, err := c.adapter.ParseCountTokens(model, resp.StatusCode, resp.Body)
	if err != nil {
		return nil, finish(err)
	}

	observability.SpanFromContext(ctx).SetAttributes(observability.Int(observability.AttrLLMTokensPrompt, count.Total))
	return count, finish(nil)
}

// ListModels returns every model the provider offers, following pagination.
func (c *Client) ListModels(ctx context.Context) ([]ai.ModelInfo, error) {
	ctx, finish := c.trace(ctx, observability.SpanClientListModels, "")

	var (
		models    []ai.ModelInfo
		pageToken string
		seen      = map[string]bool{}
	)
	for page := 0; page < maxModelPages; page++ {
		httpReq, err := c.adapter.BuildListModels(pageToken)
		if err != nil {
			return nil, finish(err)
		}
		resp, err := c.do(ctx, ai.OpListModels, httpReq)
		if err != nil {
			return nil, finish(err)
		}
		batch, next, err := c.adapter.ParseListModels(resp.StatusCode, resp.Body)
		if err != nil {
			return nil, finish(err)
		}
		models = append(models, batch...)

		if next == "" {
			observability.SpanFromContext(ctx).SetAttributes(observability.Int(observability.AttrLLMModelsCount, len(models)))
			return models, finish(nil)
		}
		if seen[next] {
			return nil, finish(&ai.ProtocolError{
				Provider: c.adapter.Name(),
				Message:  fmt.Sprintf("pagination token %q repeated", next),
			})
		}
		seen[next] = true
		pageToken = next
	}

	return nil, finish(&ai.ProtocolError{
		Provider: c.adapter.Name(),
		Message:  fmt.Sprintf("model listing exceeded %d pages", maxModelPages),
	})
}

// GetModel returns metadata for a single model.
func (c *Client) GetModel(ctx context.Context, id string) (*ai.ModelInfo, error) {
	ctx, finish := c.trace(ctx, observability.SpanClientGetModel, id)

	httpReq, err := c.adapter.BuildGetModel(id)
	if err != nil {
		return nil, finish(err)
	}
	resp, err := c.do(ctx, ai.OpGetModel, httpReq)
	if err != nil {
		return nil, finish(err)
	}
	info, err := c.adapter.ParseGetModel(resp.StatusCode, resp.Body)
	if err != nil {
		return nil, finish(err)
	}
	return info, finish(nil)
}

// generate is the base of the send chain.
func (c *Client) generate(ctx context.Context, req *ai.GenerationRequest) (*ai.GenerationResponse, error) {
	httpReq, warnings, err := c.adapter.BuildGenerate(req, false)
	if err != nil {
		return nil, err
	}
	c.logWarnings(ctx, warnings)

	resp, err := c.do(ctx, ai.OpGenerate, httpReq)
	if err != nil {
		return nil, err
	}
	out, err := c.adapter.ParseGenerate(resp.StatusCode, resp.Body)
	if err != nil {
		return nil, err
	}

	if out.Model == "" {
		out.Model = ai.ModelOrDefault(c.adapter, req)
	}
	out.Warnings = append(out.Warnings, warnings...)
	return out, nil
}

// generateStreamed is the base of the stream chain. It returns after the
// response headers arrive; an error status is drained and classified before
// any chunk is produced.
func (c *Client) generateStreamed(ctx context.Context, req *ai.GenerationRequest) (*ai.ChunkStream, error) {
	streamer, ok := c.transport.(transport.StreamingTransport)
	if !ok {
		return nil, &ai.UnsupportedOperationError{
			Provider:  c.adapter.Name(),
			Operation: ai.OpStream,
			Reason:    "transport does not support streaming",
		}
	}

	httpReq, warnings, err := c.adapter.BuildGenerate(req, true)
	if err != nil {
		return nil, err
	}
	c.logWarnings(ctx, warnings)

	resp, err := streamer.SendStreaming(ctx, httpReq)
	if err != nil {
		return nil, &ai.TransportError{Provider: c.adapter.Name(), Op: string(ai.OpStream), Err: err}
	}

	if !transport.IsSuccess(resp.StatusCode) {
		defer utils.CloseWithLog(resp.Body)
		body, readErr := utils.ReadCapped(resp.Body, utils.MaxResponseBodySize)
		if readErr != nil {
			return nil, &ai.TransportError{Provider: c.adapter.Name(), Op: string(ai.OpStream), Err: readErr}
		}
		if err := c.adapter.DetectError(resp.StatusCode, body); err != nil {
			return nil, err
		}
		return nil, ai.NewProtocolError(c.adapter.Name(), resp.StatusCode, resp.Header.Get("Content-Type"), body,
			"unexpected status for streaming request", nil)
	}

	parser := c.adapter.NewStreamParser()
	decoded := framing.Decode(ctx, resp.Body, parser.Framer(), parser.Parse)
	stream := ai.NewChunkStream(c.mapStreamErrors(decoded), resp.Body)
	stream.Warnings = warnings
	return stream, nil
}

// mapStreamErrors converts decoder failures into the unified taxonomy.
// Provider errors reported inside the stream pass through unchanged.
func (c *Client) mapStreamErrors(seq iter.Seq2[ai.StreamChunk, error]) iter.Seq2[ai.StreamChunk, error] {
	return func(yield func(ai.StreamChunk, error) bool) {
		for chunk, err := range seq {
			if err != nil {
				yield(ai.StreamChunk{}, c.streamError(err))
				return
			}
			if !yield(chunk, nil) {
				return
			}
		}
	}
}

func (c *Client) streamError(err error) error {
	var (
		providerErr *ai.ProviderError
		readErr     *framing.ReadError
		frameErr    *framing.FrameError
	)
	switch {
	case errors.As(err, &providerErr):
		return providerErr
	case errors.As(err, &readErr):
		return &ai.TransportError{Provider: c.adapter.Name(), Op: string(ai.OpStream), Err: readErr.Err}
	case errors.As(err, &frameErr):
		return &ai.StreamDecodeError{
			Provider: c.adapter.Name(),
			Offset:   frameErr.Offset,
			Frame:    string(frameErr.Frame),
			Err:      frameErr.Err,
		}
	default:
		return &ai.StreamDecodeError{Provider: c.adapter.Name(), Err: err}
	}
}

// do sends a buffered request, mapping transport failures.
func (c *Client) do(ctx context.Context, op ai.Operation, req *transport.Request) (*transport.Response, error) {
	resp, err := c.transport.Send(ctx, req)
	if err != nil {
		return nil, &ai.TransportError{Provider: c.adapter.Name(), Op: string(op), Err: err}
	}
	return resp, nil
}

func (c *Client) logWarnings(ctx context.Context, warnings []ai.Warning) {
	if len(warnings) == 0 {
		return
	}
	observer := c.observerFor(ctx)
	for _, w := range warnings {
		observer.Warn(ctx, "request parameter not sent as requested",
			observability.String(observability.AttrLLMProvider, c.adapter.Name()),
			observability.String("field", w.Field),
			observability.String("reason", w.Message),
		)
	}
}

// observerFor prefers the observer carried by ctx, then the client's own.
func (c *Client) observerFor(ctx context.Context) observability.Provider {
	if observer := observability.ObserverFromContext(ctx); observer != nil {
		return observer
	}
	if c.observer != nil {
		return c.observer
	}
	return observability.Nop()
}

// trace starts a span for a non-generation operation when an observer is
// configured. The returned finish function ends the span and passes err
// through.
func (c *Client) trace(ctx context.Context, name, model string) (context.Context, func(error) error) {
	if c.observer == nil {
		return ctx, func(err error) error { return err }
	}

	attrs := []observability.Attribute{observability.String(observability.AttrLLMProvider, c.adapter.Name())}
	if model != "" {
		attrs = append(attrs, observability.String(observability.AttrLLMModel, model))
	}
	ctx, span := c.observer.StartSpan(ctx, name, attrs...)
	ctx = observability.ContextWithSpan(ctx, span)
	ctx = observability.ContextWithObserver(ctx, c.observer)
	timer := utils.NewTimer()

	return ctx, func(err error) error {
		elapsed := timer.Stop()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(observability.StatusError, ai.ErrorType(err))
			c.observer.Error(ctx, name+" failed",
				observability.Error(err),
				observability.Duration(observability.AttrDuration, elapsed),
			)
		} else {
			span.SetStatus(observability.StatusOK, "success")
			c.observer.Debug(ctx, name+" completed", observability.Duration(observability.AttrDuration, elapsed))
		}
		span.End()
		return err
	}
}

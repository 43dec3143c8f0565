package client

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/leofalp/unillm/internal/utils"
	"github.com/leofalp/unillm/providers/ai"
	"github.com/leofalp/unillm/providers/observability"
)

// NewObservabilityMiddleware creates a MiddlewareConfig that provides
// distributed tracing spans, structured metrics and log events for every
// generation.
//
// The send middleware records a span from the moment the request enters the
// chain to when the response (or error) is returned. The stream middleware
// records the same span, but defers completion metrics until the chunk
// stream is fully consumed, abandoned by the caller, or fails.
//
// Both the span and the observer are injected into the context before
// calling next, so that inner layers can retrieve them via
// [observability.SpanFromContext] and [observability.ObserverFromContext].
//
// [New] prepends this middleware automatically when [WithObserver] is given,
// making it the outermost wrapper: it observes the final outcome after any
// retry or timeout middleware.
//
// Parameters:
//   - observer: the observability provider; must not be nil.
//   - provider: adapter name used to label spans and metrics.
//   - defaultModel: model name used when the request's own Model is empty.
func NewObservabilityMiddleware(observer observability.Provider, provider, defaultModel string) MiddlewareConfig {
	return MiddlewareConfig{
		Send:   buildObsSend(observer, provider, defaultModel),
		Stream: buildObsStream(observer, provider, defaultModel),
	}
}

// obsCall carries the per-request state shared by the send and stream paths.
type obsCall struct {
	observer observability.Provider
	span     observability.Span
	timer    *utils.Timer
	provider string
	model    string
}

// startObsCall opens the span, enriches ctx and logs the request start.
func startObsCall(ctx context.Context, observer observability.Provider, spanName, provider, defaultModel string, request *ai.GenerationRequest) (context.Context, *obsCall) {
	model := effectiveModel(request.Model, defaultModel)

	ctx, span := observer.StartSpan(ctx, spanName,
		observability.String(observability.AttrLLMProvider, provider),
		observability.String(observability.AttrLLMModel, model),
	)
	ctx = observability.ContextWithSpan(ctx, span)
	ctx = observability.ContextWithObserver(ctx, observer)

	observer.Debug(ctx, spanName+" start",
		observability.String(observability.AttrLLMProvider, provider),
		observability.String(observability.AttrLLMModel, model),
		observability.Int(observability.AttrRequestMessagesCount, len(request.Messages)),
	)

	return ctx, &obsCall{
		observer: observer,
		span:     span,
		timer:    utils.NewTimer(),
		provider: provider,
		model:    model,
	}
}

func (c *obsCall) labels(status string) []observability.Attribute {
	return []observability.Attribute{
		observability.String(observability.AttrStatus, status),
		observability.String(observability.AttrLLMProvider, c.provider),
		observability.String(observability.AttrLLMModel, c.model),
	}
}

// fail records the error path and ends the span.
func (c *obsCall) fail(ctx context.Context, message string, err error) {
	elapsed := c.timer.Stop()

	c.span.RecordError(err)
	c.span.SetStatus(observability.StatusError, message)
	c.span.End()

	c.observer.Error(ctx, message,
		observability.Error(err),
		observability.String(observability.AttrErrorType, ai.ErrorType(err)),
		observability.Duration(observability.AttrDuration, elapsed),
		observability.String(observability.AttrLLMProvider, c.provider),
		observability.String(observability.AttrLLMModel, c.model),
	)

	c.observer.Counter(observability.MetricClientRequestCount).Add(ctx, 1, c.labels("error")...)
}

// buildObsSend constructs the send middleware that wraps each generation
// with a tracing span and records success/error metrics and logs.
func buildObsSend(observer observability.Provider, provider, defaultModel string) Middleware {
	return func(next SendFunc) SendFunc {
		return func(ctx context.Context, request *ai.GenerationRequest) (*ai.GenerationResponse, error) {
			ctx, call := startObsCall(ctx, observer, observability.SpanClientGenerate, provider, defaultModel, request)

			response, err := next(ctx, request)
			if err != nil {
				call.fail(ctx, "llm generate failed", err)
				return nil, err
			}

			call.timer.Stop()
			recordObsSuccess(ctx, call, response, "llm generate completed")
			return response, nil
		}
	}
}

// buildObsStream constructs the stream middleware that wraps the returned
// ChunkStream to defer metric recording until the stream completes.
func buildObsStream(observer observability.Provider, provider, defaultModel string) StreamMiddleware {
	return func(next StreamFunc) StreamFunc {
		return func(ctx context.Context, request *ai.GenerationRequest) (*ai.ChunkStream, error) {
			ctx, call := startObsCall(ctx, observer, observability.SpanClientStream, provider, defaultModel, request)

			stream, err := next(ctx, request)
			if err != nil {
				call.fail(ctx, "llm stream failed", err)
				return nil, err
			}

			return wrapStreamWithObservability(ctx, stream, call), nil
		}
	}
}

// wrapStreamWithObservability returns a ChunkStream that yields every chunk
// unchanged but records observability data when the stream ends normally, is
// abandoned by the caller, is closed without being iterated, or fails. The
// span is ended exactly once whichever happens first.
func wrapStreamWithObservability(ctx context.Context, stream *ai.ChunkStream, call *obsCall) *ai.ChunkStream {
	var (
		once    sync.Once
		yielded atomic.Int64
	)

	seq := func(yield func(ai.StreamChunk, error) bool) {
		acc := ai.NewAccumulator()

		for chunk, err := range stream.Iter() {
			if err != nil {
				once.Do(func() {
					call.span.SetAttributes(observability.Int(observability.AttrLLMStreamChunks, acc.Chunks()))
					call.fail(ctx, "llm stream failed", err)
				})
				yield(chunk, err)
				return
			}

			acc.Add(chunk)
			yielded.Add(1)

			if !yield(chunk, nil) {
				once.Do(func() { call.abandon(ctx, acc.Chunks()) })
				return
			}
		}

		once.Do(func() {
			call.timer.Stop()
			call.span.SetAttributes(observability.Int(observability.AttrLLMStreamChunks, acc.Chunks()))

			response := acc.Response()
			response.Model = call.model
			response.Warnings = stream.Warnings
			recordObsSuccess(ctx, call, response, "llm stream completed")
		})
	}

	closer := obsStreamCloser{stream: stream, abandon: func() {
		once.Do(func() { call.abandon(ctx, int(yielded.Load())) })
	}}

	wrapped := ai.NewChunkStream(seq, closer)
	wrapped.Warnings = stream.Warnings
	return wrapped
}

// obsStreamCloser ends the span of a stream closed before it finished, then
// releases the stream body.
type obsStreamCloser struct {
	stream  *ai.ChunkStream
	abandon func()
}

func (c obsStreamCloser) Close() error {
	c.abandon()
	return c.stream.Close()
}

// abandon records a stream the caller stopped consuming and ends the span.
func (c *obsCall) abandon(ctx context.Context, chunks int) {
	elapsed := c.timer.Stop()
	c.span.SetAttributes(observability.Int(observability.AttrLLMStreamChunks, chunks))
	c.span.SetStatus(observability.StatusOK, "llm stream abandoned")
	c.span.End()

	c.observer.Info(ctx, "llm stream abandoned",
		observability.String(observability.AttrLLMProvider, c.provider),
		observability.String(observability.AttrLLMModel, c.model),
		observability.Int(observability.AttrLLMStreamChunks, chunks),
		observability.Duration(observability.AttrDuration, elapsed),
	)
	c.observer.Counter(observability.MetricClientRequestCount).Add(ctx, 1, c.labels("abandoned")...)
}

// recordObsSuccess writes all success-path observability data: duration
// histogram, request counter, token counters, span attributes and a
// structured INFO log, then ends the span.
func recordObsSuccess(ctx context.Context, call *obsCall, response *ai.GenerationResponse, message string) {
	elapsed := call.timer.Elapsed()
	observer := call.observer
	span := call.span
	model := call.model
	if response.Model != "" {
		model = response.Model
	}

	modelAttr := observability.String(observability.AttrLLMModel, model)
	providerAttr := observability.String(observability.AttrLLMProvider, call.provider)

	// Metrics
	observer.Histogram(observability.MetricClientRequestDuration).Record(ctx, elapsed.Seconds(), providerAttr, modelAttr)
	observer.Counter(observability.MetricClientRequestCount).Add(ctx, 1, call.labels("success")...)

	finishReason := string(response.FinishReason())

	logAttrs := []observability.Attribute{
		providerAttr,
		modelAttr,
		observability.String(observability.AttrLLMFinishReason, finishReason),
		observability.Int(observability.AttrLLMCandidates, len(response.Candidates)),
		observability.Duration(observability.AttrDuration, elapsed),
	}
	span.SetAttributes(
		observability.String(observability.AttrLLMFinishReason, finishReason),
		observability.Int(observability.AttrLLMCandidates, len(response.Candidates)),
	)
	if response.ID != "" {
		span.SetAttributes(observability.String(observability.AttrLLMResponseID, response.ID))
	}

	if response.Usage != nil {
		observer.Counter(observability.MetricClientTokensTotal).Add(ctx, int64(response.Usage.TotalTokens), providerAttr, modelAttr)
		observer.Counter(observability.MetricClientTokensPrompt).Add(ctx, int64(response.Usage.PromptTokens), providerAttr, modelAttr)
		observer.Counter(observability.MetricClientTokensCompletion).Add(ctx, int64(response.Usage.CompletionTokens), providerAttr, modelAttr)

		span.SetAttributes(
			observability.Int(observability.AttrLLMTokensTotal, response.Usage.TotalTokens),
			observability.Int(observability.AttrLLMTokensPrompt, response.Usage.PromptTokens),
			observability.Int(observability.AttrLLMTokensCompletion, response.Usage.CompletionTokens),
		)

		logAttrs = append(logAttrs,
			observability.Int(observability.AttrLLMTokensPrompt, response.Usage.PromptTokens),
			observability.Int(observability.AttrLLMTokensCompletion, response.Usage.CompletionTokens),
			observability.Int(observability.AttrLLMTokensTotal, response.Usage.TotalTokens),
		)
	}

	if len(response.Warnings) > 0 {
		fields := make([]string, len(response.Warnings))
		for i, w := range response.Warnings {
			fields[i] = w.Field
		}
		logAttrs = append(logAttrs, observability.StringSlice(observability.AttrLLMWarnings, fields))
	}

	if text := response.Text(); text != "" {
		logAttrs = append(logAttrs, observability.String("response", utils.TruncateString(text, 100)))
	}

	observer.Info(ctx, message, logAttrs...)

	span.SetStatus(observability.StatusOK, "success")
	span.End()
}

// effectiveModel returns the request-level model when set, falling back to
// the adapter's default.
func effectiveModel(requestModel, defaultModel string) string {
	if requestModel != "" {
		return requestModel
	}
	return defaultModel
}

package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/leofalp/unillm/core/client"
	"github.com/leofalp/unillm/internal/utils"
	"github.com/leofalp/unillm/providers/ai"
)

// LogLevel controls how much detail the logging middleware emits per request.
type LogLevel int

const (
	// LogLevelMinimal logs only the model name, total duration, and token counts.
	// Use this when you want lightweight audit trails without noise.
	LogLevelMinimal LogLevel = iota

	// LogLevelStandard logs everything in Minimal plus the message count,
	// candidate count and finish reason. This is the recommended default.
	LogLevelStandard

	// LogLevelVerbose logs everything in Standard plus the first message text
	// and the response text, each truncated to 500 characters.
	//
	// WARNING: DO NOT use LogLevelVerbose in production. It will log raw prompt
	// and response text, which may contain sensitive user data, secrets, or PII.
	// It is intended solely for local debugging and development.
	LogLevelVerbose
)

// truncateLen is the maximum content length included in verbose log output.
const truncateLen = 500

// NewLoggingMiddleware creates a MiddlewareConfig that emits structured slog
// log entries before and after every generation. Both buffered and streaming
// calls are covered: for streams the completion entry is emitted once the
// chunk sequence ends.
//
// The logger parameter must not be nil. Use slog.Default() if you have not
// configured a custom logger.
func NewLoggingMiddleware(logger *slog.Logger, level LogLevel) client.MiddlewareConfig {
	return client.MiddlewareConfig{
		Send:   buildSendLogging(logger, level),
		Stream: buildStreamLogging(logger, level),
	}
}

// buildSendLogging constructs the send middleware that logs request/response pairs.
func buildSendLogging(logger *slog.Logger, level LogLevel) client.Middleware {
	return func(next client.SendFunc) client.SendFunc {
		return func(ctx context.Context, request *ai.GenerationRequest) (*ai.GenerationResponse, error) {
			logger.InfoContext(ctx, "llm generate",
				buildRequestAttrs(request, level)...,
			)

			start := time.Now()
			response, err := next(ctx, request)
			elapsed := time.Since(start)

			if err != nil {
				logger.ErrorContext(ctx, "llm generate failed", errorAttrs(request.Model, elapsed, err)...)
				return nil, err
			}

			logger.InfoContext(ctx, "llm generate completed",
				buildResponseAttrs(response, elapsed, level)...,
			)

			return response, nil
		}
	}
}

// buildStreamLogging constructs the stream middleware that logs stream start
// and wraps the chunk sequence to log completion or error at its end.
func buildStreamLogging(logger *slog.Logger, level LogLevel) client.StreamMiddleware {
	return func(next client.StreamFunc) client.StreamFunc {
		return func(ctx context.Context, request *ai.GenerationRequest) (*ai.ChunkStream, error) {
			logger.InfoContext(ctx, "llm stream",
				buildRequestAttrs(request, level)...,
			)

			start := time.Now()
			stream, err := next(ctx, request)
			if err != nil {
				logger.ErrorContext(ctx, "llm stream failed", errorAttrs(request.Model, time.Since(start), err)...)
				return nil, err
			}

			return wrapStreamWithLogging(ctx, stream, logger, request.Model, level, start), nil
		}
	}
}

// wrapStreamWithLogging returns a ChunkStream that logs a completion entry
// when the stream ends normally, or an error entry on failure.
func wrapStreamWithLogging(
	ctx context.Context,
	stream *ai.ChunkStream,
	logger *slog.Logger,
	model string,
	level LogLevel,
	start time.Time,
) *ai.ChunkStream {
	seq := func(yield func(ai.StreamChunk, error) bool) {
		acc := ai.NewAccumulator()

		for chunk, err := range stream.Iter() {
			if err != nil {
				logger.ErrorContext(ctx, "llm stream failed", errorAttrs(model, time.Since(start), err)...)
				yield(chunk, err)
				return
			}

			acc.Add(chunk)

			if !yield(chunk, nil) {
				// Caller broke out of the range loop early: log what we have.
				logger.InfoContext(ctx, "llm stream abandoned",
					slog.String("model", model),
					slog.Duration("duration", time.Since(start)),
					slog.Int("chunks", acc.Chunks()),
				)
				return
			}
		}

		response := acc.Response()
		response.Model = model

		attrs := buildResponseAttrs(response, time.Since(start), level)
		attrs = append(attrs, slog.Int("chunks", acc.Chunks()))
		logger.InfoContext(ctx, "llm stream completed", attrs...)
	}

	return ai.WrapChunkStream(stream, seq)
}

func errorAttrs(model string, elapsed time.Duration, err error) []any {
	return []any{
		slog.String("model", model),
		slog.Duration("duration", elapsed),
		slog.String("error_type", ai.ErrorType(err)),
		slog.String("error", err.Error()),
	}
}

// buildRequestAttrs returns slog attributes for an outgoing generation
// request, expanding detail according to the requested verbosity level.
func buildRequestAttrs(request *ai.GenerationRequest, level LogLevel) []any {
	attrs := []any{
		slog.String("model", request.Model),
	}

	if level >= LogLevelStandard {
		attrs = append(attrs, slog.Int("message_count", len(request.Messages)))
	}

	if level >= LogLevelVerbose && len(request.Messages) > 0 {
		first := request.Messages[0]
		attrs = append(attrs,
			slog.String("first_message_role", string(first.Role)),
			slog.String("first_message_text", utils.TruncateString(first.Text(), truncateLen)),
			slog.Bool("first_message_has_blobs", first.HasBlobs()),
		)
	}

	return attrs
}

// buildResponseAttrs returns slog attributes for a completed generation,
// expanding detail according to the requested verbosity level.
func buildResponseAttrs(response *ai.GenerationResponse, elapsed time.Duration, level LogLevel) []any {
	attrs := []any{
		slog.String("model", response.Model),
		slog.Duration("duration", elapsed),
	}

	if response.Usage != nil {
		attrs = append(attrs,
			slog.Int("prompt_tokens", response.Usage.PromptTokens),
			slog.Int("completion_tokens", response.Usage.CompletionTokens),
			slog.Int("total_tokens", response.Usage.TotalTokens),
		)
	}

	if level >= LogLevelStandard {
		attrs = append(attrs, slog.Int("candidates", len(response.Candidates)))
		if reason := response.FinishReason(); reason != "" {
			attrs = append(attrs, slog.String("finish_reason", string(reason)))
		}
	}

	if level >= LogLevelVerbose {
		if text := response.Text(); text != "" {
			attrs = append(attrs, slog.String("response_text", utils.TruncateString(text, truncateLen)))
		}
	}

	return attrs
}

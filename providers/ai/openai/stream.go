package openai

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/leofalp/unillm/providers/ai"
	"github.com/leofalp/unillm/providers/framing"
)

var (
	doneSentinel = []byte("[DONE]")

	errUnknownChunk = errors.New("chunk has neither choices nor usage")
	errUntypedEvent = errors.New("event has no type")
)

// streamParser turns Chat Completions SSE events into chunks. It remembers
// which choices refused so their finish reason can be reported as a content
// filter, as for non-streamed refusals.
type streamParser struct {
	refused map[int]bool
}

func newStreamParser() *streamParser {
	return &streamParser{refused: make(map[int]bool)}
}

// Framer implements ai.StreamParser.
func (p *streamParser) Framer() framing.Framer {
	return framing.Events()
}

// Parse implements ai.StreamParser. The usage-only chunk that include_usage
// produces after the last choice becomes a chunk carrying only Usage.
func (p *streamParser) Parse(frame []byte) ([]ai.StreamChunk, bool, error) {
	frame = bytes.TrimSpace(frame)
	if len(frame) == 0 {
		return nil, false, nil
	}
	if bytes.Equal(frame, doneSentinel) {
		return nil, true, nil
	}

	if apiErr, ok := parseErrorEnvelope(frame); ok {
		return nil, false, newProviderError(0, apiErr, frame)
	}

	var chunk chatCompletionChunk
	if err := json.Unmarshal(frame, &chunk); err != nil {
		return nil, false, fmt.Errorf("invalid chunk: %w", err)
	}
	if chunk.Choices == nil && chunk.Usage == nil {
		return nil, false, errUnknownChunk
	}

	usage := toUsage(chunk.Usage)
	chunks := make([]ai.StreamChunk, 0, len(chunk.Choices)+1)
	for _, c := range chunk.Choices {
		delta := c.Delta.Content
		if c.Delta.Refusal != "" {
			p.refused[c.Index] = true
			delta += c.Delta.Refusal
		}

		finish := mapFinishReason(c.FinishReason)
		if finish != "" && p.refused[c.Index] {
			finish = ai.FinishContentFilter
		}
		if delta == "" && finish == "" {
			continue
		}
		chunks = append(chunks, ai.StreamChunk{
			CandidateIndex: c.Index,
			Delta:          delta,
			FinishReason:   finish,
		})
	}

	if usage != nil {
		chunks = append(chunks, ai.StreamChunk{Usage: usage})
	}
	return chunks, false, nil
}

// responsesStreamParser turns typed Responses SSE events into chunks for
// candidate 0. The stream ends at response.completed or
// response.incomplete. Lifecycle events that carry no text are skipped.
type responsesStreamParser struct {
	refused bool
}

func newResponsesStreamParser() *responsesStreamParser {
	return &responsesStreamParser{}
}

// Framer implements ai.StreamParser.
func (p *responsesStreamParser) Framer() framing.Framer {
	return framing.Events()
}

// Parse implements ai.StreamParser.
func (p *responsesStreamParser) Parse(frame []byte) ([]ai.StreamChunk, bool, error) {
	frame = bytes.TrimSpace(frame)
	if len(frame) == 0 {
		return nil, false, nil
	}
	if bytes.Equal(frame, doneSentinel) {
		return nil, true, nil
	}

	if apiErr, ok := parseErrorEnvelope(frame); ok {
		return nil, false, newProviderError(0, apiErr, frame)
	}

	var ev responseStreamEvent
	if err := json.Unmarshal(frame, &ev); err != nil {
		return nil, false, fmt.Errorf("invalid event: %w", err)
	}

	switch ev.Type {
	case "":
		return nil, false, errUntypedEvent

	case "response.output_text.delta":
		if ev.Delta == "" {
			return nil, false, nil
		}
		return []ai.StreamChunk{{Delta: ev.Delta}}, false, nil

	case "response.refusal.delta":
		p.refused = true
		if ev.Delta == "" {
			return nil, false, nil
		}
		return []ai.StreamChunk{{Delta: ev.Delta}}, false, nil

	case "response.completed", "response.incomplete":
		if ev.Response == nil {
			return nil, false, fmt.Errorf("%s event without response", ev.Type)
		}
		finish := mapResponseStatus(ev.Response)
		if finish == "" {
			finish = ai.FinishStop
		}
		if p.refused {
			finish = ai.FinishContentFilter
		}
		return []ai.StreamChunk{{
			FinishReason: finish,
			Usage:        toResponseUsage(ev.Response.Usage),
		}}, true, nil

	case "response.failed":
		if ev.Response == nil {
			return nil, false, fmt.Errorf("%s event without response", ev.Type)
		}
		return nil, false, failedResponseError(0, ev.Response, frame)

	case "error":
		return nil, false, newProviderError(0, &apiError{
			Type:    "error",
			Code:    ev.Code,
			Message: ev.Message,
		}, frame)

	default:
		return nil, false, nil
	}
}

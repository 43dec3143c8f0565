package gemini

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/leofalp/unillm/providers/ai"
	"github.com/leofalp/unillm/providers/framing"
)

var errUnknownElement = errors.New("stream element has no candidates, promptFeedback or usageMetadata")

// streamParser turns streamGenerateContent elements into chunks. Each
// element is a full generateContentResponse whose candidate text is the
// increment since the previous element.
type streamParser struct {
	sse bool
}

func newStreamParser(sse bool) *streamParser {
	return &streamParser{sse: sse}
}

// Framer returns the event-stream framer for alt=sse, and the JSON array
// framer otherwise.
func (p *streamParser) Framer() framing.Framer {
	if p.sse {
		return framing.Events()
	}
	return framing.JSONArray()
}

// Parse implements ai.StreamParser. Usage is attached to the chunk of every
// candidate that finishes in this element, since Gemini reports cumulative
// usage alongside the final increment. An element with none of candidates,
// promptFeedback or usageMetadata is rejected.
func (p *streamParser) Parse(frame []byte) ([]ai.StreamChunk, bool, error) {
	frame = bytes.TrimSpace(frame)
	if len(frame) == 0 {
		return nil, false, nil
	}

	if apiErr, ok := parseErrorEnvelope(frame); ok {
		return nil, false, newProviderError(0, apiErr, frame)
	}

	var resp generateContentResponse
	if err := json.Unmarshal(frame, &resp); err != nil {
		return nil, false, fmt.Errorf("invalid stream element: %w", err)
	}
	if resp.Candidates == nil && resp.PromptFeedback == nil && resp.UsageMetadata == nil {
		return nil, false, errUnknownElement
	}
	if err := blockedError(0, &resp, frame); err != nil {
		return nil, false, err
	}

	usage := toUsage(resp.UsageMetadata)
	chunks := make([]ai.StreamChunk, 0, len(resp.Candidates)+1)
	for _, c := range resp.Candidates {
		chunk := ai.StreamChunk{
			CandidateIndex: c.Index,
			Delta:          candidateText(c),
			FinishReason:   mapFinishReason(c.FinishReason),
		}
		if chunk.FinishReason != "" {
			chunk.Usage = usage
		}
		if chunk.Delta == "" && chunk.FinishReason == "" {
			continue
		}
		chunks = append(chunks, chunk)
	}

	// An element that produced nothing else still reports its usage, so a
	// trailing usageMetadata-only element is not lost.
	if usage != nil && len(chunks) == 0 {
		chunks = append(chunks, ai.StreamChunk{Usage: usage})
	}
	return chunks, false, nil
}

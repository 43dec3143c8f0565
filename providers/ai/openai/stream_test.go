package openai

import (
	"context"
	"errors"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/leofalp/unillm/providers/ai"
	"github.com/leofalp/unillm/providers/framing"
)

func decodeAll(parser ai.StreamParser, body string) ([]ai.StreamChunk, error) {
	var chunks []ai.StreamChunk
	src := iotest.OneByteReader(strings.NewReader(body))
	for chunk, err := range framing.Decode(context.Background(), src, parser.Framer(), parser.Parse) {
		if err != nil {
			return chunks, err
		}
		chunks = append(chunks, chunk)
	}
	return chunks, nil
}

// TestStreamParser_MultipleChoices decodes two interleaved choices followed
// by the usage-only chunk and the [DONE] sentinel; anything after the
// sentinel must be ignored.
func TestStreamParser_MultipleChoices(t *testing.T) {
	body := strings.Join([]string{
		`data: {"id":"c1","choices":[{"index":0,"delta":{"role":"assistant","content":""},"finish_reason":null}]}`,
		`data: {"id":"c1","choices":[{"index":0,"delta":{"content":"Hi"},"finish_reason":null},{"index":1,"delta":{"content":"Yo"},"finish_reason":null}]}`,
		`: keep-alive`,
		`data: {"id":"c1","choices":[{"index":1,"delta":{},"finish_reason":"length"}]}`,
		`data: {"id":"c1","choices":[{"index":0,"delta":{},"finish_reason":"stop"}]}`,
		`data: {"id":"c1","choices":[],"usage":{"prompt_tokens":5,"completion_tokens":2,"total_tokens":7}}`,
		`data: [DONE]`,
		`data: {"id":"late","choices":[{"index":0,"delta":{"content":"ignored"}}]}`,
	}, "\n\n") + "\n\n"

	chunks, err := decodeAll(newStreamParser(), body)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	acc := ai.NewAccumulator()
	for _, c := range chunks {
		acc.Add(c)
	}
	resp := acc.Response()
	if len(resp.Candidates) != 2 {
		t.Fatalf("candidates = %+v", resp.Candidates)
	}
	if resp.Candidates[0].Text != "Hi" || resp.Candidates[0].FinishReason != ai.FinishStop {
		t.Errorf("candidate 0 = %+v", resp.Candidates[0])
	}
	if resp.Candidates[1].Text != "Yo" || resp.Candidates[1].FinishReason != ai.FinishLength {
		t.Errorf("candidate 1 = %+v", resp.Candidates[1])
	}
	last := chunks[len(chunks)-1]
	if last.Usage == nil || last.Usage.TotalTokens != 7 || last.Delta != "" {
		t.Errorf("usage chunk = %+v", last)
	}
}

func TestStreamParser_Refusal(t *testing.T) {
	body := `data: {"choices":[{"index":0,"delta":{"refusal":"No."}}]}` + "\n\n" +
		`data: {"choices":[{"index":0,"delta":{},"finish_reason":"stop"}]}` + "\n\n" +
		"data: [DONE]\n\n"

	chunks, err := decodeAll(newStreamParser(), body)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(chunks) != 2 || chunks[0].Delta != "No." || chunks[1].FinishReason != ai.FinishContentFilter {
		t.Errorf("chunks = %+v", chunks)
	}
}

func TestStreamParser_Errors(t *testing.T) {
	t.Run("error event", func(t *testing.T) {
		body := `data: {"choices":[{"index":0,"delta":{"content":"a"}}]}` + "\n\n" +
			`data: {"error":{"message":"overloaded","type":"server_error"}}` + "\n\n"
		chunks, err := decodeAll(newStreamParser(), body)
		if len(chunks) != 1 {
			t.Errorf("chunks = %+v", chunks)
		}
		var pe *ai.ProviderError
		if !errors.As(err, &pe) || pe.Code != "server_error" {
			t.Fatalf("expected server_error ProviderError, got %v", err)
		}
	})

	t.Run("non-json frame", func(t *testing.T) {
		body := "data: {\"choices\":[]}\n\ndata: not json\n\ndata: [DONE]\n\n"
		_, err := decodeAll(newStreamParser(), body)
		var fe *framing.FrameError
		if !errors.As(err, &fe) {
			t.Fatalf("expected *framing.FrameError, got %v", err)
		}
	})
}

// TestStreamParser_UnknownChunkShape verifies a well-formed JSON event that
// carries neither choices nor usage ends the stream with one decode error
// instead of being skipped.
func TestStreamParser_UnknownChunkShape(t *testing.T) {
	body := `data: {"choices":[{"index":0,"delta":{"content":"a"}}]}` + "\n\n" +
		`data: {"unexpected":{"shape":true}}` + "\n\n" +
		`data: {"choices":[{"index":0,"delta":{"content":"b"}}]}` + "\n\n" +
		"data: [DONE]\n\n"

	var (
		chunks []ai.StreamChunk
		errs   []error
	)
	src := strings.NewReader(body)
	parser := newStreamParser()
	for chunk, err := range framing.Decode(context.Background(), src, parser.Framer(), parser.Parse) {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		chunks = append(chunks, chunk)
	}

	if len(chunks) != 1 || chunks[0].Delta != "a" {
		t.Errorf("chunks = %+v", chunks)
	}
	if len(errs) != 1 {
		t.Fatalf("errors = %v, want exactly one", errs)
	}
	var fe *framing.FrameError
	if !errors.As(errs[0], &fe) || !errors.Is(errs[0], errUnknownChunk) {
		t.Fatalf("expected a FrameError wrapping errUnknownChunk, got %v", errs[0])
	}
	if !strings.Contains(string(fe.Frame), "unexpected") {
		t.Errorf("frame preview = %q", fe.Frame)
	}
}

// TestStreamParser_EmptyChoicesAccepted verifies the keep-alive style chunk
// with an empty choices list is still a known shape.
func TestStreamParser_EmptyChoicesAccepted(t *testing.T) {
	chunks, _, err := newStreamParser().Parse([]byte(`{"id":"c1","object":"chat.completion.chunk","choices":[]}`))
	if err != nil || len(chunks) != 0 {
		t.Errorf("chunks = %+v, err = %v", chunks, err)
	}
}

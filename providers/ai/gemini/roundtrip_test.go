package gemini

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/leofalp/unillm/providers/ai"
)

func msg(role ai.Role, parts ...ai.Part) ai.Message {
	return ai.Message{Role: role, Parts: parts}
}

// echoResponse builds a success body with one candidate per wire content,
// each carrying that content's parts back.
func echoResponse(t *testing.T, wireBody []byte, finish string) []byte {
	t.Helper()
	var wire struct {
		Contents []json.RawMessage `json:"contents"`
	}
	if err := json.Unmarshal(wireBody, &wire); err != nil {
		t.Fatalf("wire body: %v", err)
	}

	type echoed struct {
		Content      json.RawMessage `json:"content"`
		FinishReason string          `json:"finishReason"`
		Index        int             `json:"index"`
	}
	candidates := make([]echoed, len(wire.Contents))
	for i, c := range wire.Contents {
		candidates[i] = echoed{Content: c, FinishReason: finish, Index: i}
	}
	body, err := json.Marshal(map[string]any{"candidates": candidates})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return body
}

// TestGenerate_RoundTrip sends requests through BuildGenerate and parses an
// echo of the wire contents with ParseGenerate. Message text and the finish
// reason must come back unchanged.
func TestGenerate_RoundTrip(t *testing.T) {
	a := newTestAdapter(t)

	tests := []struct {
		name       string
		messages   []ai.Message
		finish     string
		wantFinish ai.FinishReason
	}{
		{
			name:       "single user message",
			messages:   []ai.Message{msg(ai.RoleUser, ai.TextPart("2+2?"))},
			finish:     "STOP",
			wantFinish: ai.FinishStop,
		},
		{
			name:       "multi-part message",
			messages:   []ai.Message{msg(ai.RoleUser, ai.TextPart("first "), ai.TextPart("second"), ai.BlobPart("image/png", "aGk="))},
			finish:     "MAX_TOKENS",
			wantFinish: ai.FinishLength,
		},
		{
			name: "multi-turn with system",
			messages: []ai.Message{
				msg(ai.RoleSystem, ai.TextPart("be brief")),
				msg(ai.RoleUser, ai.TextPart("hello")),
				msg(ai.RoleAssistant, ai.TextPart("hi, how can I help?")),
				msg(ai.RoleUser, ai.TextPart("quote \"this\" and\nthat")),
			},
			finish:     "SAFETY",
			wantFinish: ai.FinishContentFilter,
		},
		{
			name:       "unicode",
			messages:   []ai.Message{msg(ai.RoleUser, ai.TextPart("héllo wörld ✓"))},
			finish:     "OTHER",
			wantFinish: ai.FinishUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := &ai.GenerationRequest{Model: "demo-model", Messages: tt.messages}
			httpReq, _, err := a.BuildGenerate(req, false)
			if err != nil {
				t.Fatalf("BuildGenerate: %v", err)
			}

			resp, err := a.ParseGenerate(200, echoResponse(t, httpReq.Body, tt.finish))
			if err != nil {
				t.Fatalf("ParseGenerate: %v", err)
			}

			var want []string
			for _, m := range tt.messages {
				if m.Role != ai.RoleSystem {
					want = append(want, m.Text())
				}
			}
			if len(resp.Candidates) != len(want) {
				t.Fatalf("candidates = %d, want %d", len(resp.Candidates), len(want))
			}
			for i, c := range resp.Candidates {
				if c.Text != want[i] {
					t.Errorf("candidate %d text = %q, want %q", i, c.Text, want[i])
				}
				if c.FinishReason != tt.wantFinish {
					t.Errorf("candidate %d finish = %q, want %q", i, c.FinishReason, tt.wantFinish)
				}
			}
		})
	}
}

// TestBuildGenerate_SingleMessage checks that one user message becomes
// exactly one wire content entry holding that text.
func TestBuildGenerate_SingleMessage(t *testing.T) {
	a := newTestAdapter(t)
	req := &ai.GenerationRequest{Model: "demo-model", Messages: []ai.Message{msg(ai.RoleUser, ai.TextPart("2+2?"))}}

	httpReq, warnings, err := a.BuildGenerate(req, false)
	if err != nil {
		t.Fatalf("BuildGenerate: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("warnings = %+v", warnings)
	}
	if httpReq.URL != "https://example.test/v1beta/models/demo-model:generateContent" {
		t.Errorf("URL = %q", httpReq.URL)
	}

	var body generateContentRequest
	if err := json.Unmarshal(httpReq.Body, &body); err != nil {
		t.Fatalf("body: %v", err)
	}
	if len(body.Contents) != 1 {
		t.Fatalf("contents = %+v", body.Contents)
	}
	c := body.Contents[0]
	if c.Role != "user" || len(c.Parts) != 1 || c.Parts[0].Text != "2+2?" {
		t.Errorf("content = %+v", c)
	}
}

// TestBuildGenerate_SystemOnly rejects a request that would leave contents
// empty once system messages are moved to systemInstruction.
func TestBuildGenerate_SystemOnly(t *testing.T) {
	a := newTestAdapter(t)
	req := &ai.GenerationRequest{Messages: []ai.Message{msg(ai.RoleSystem, ai.TextPart("be brief"))}}
	if err := req.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	_, _, err := a.BuildGenerate(req, false)
	var ve *ai.ValidationError
	if !errors.As(err, &ve) || ve.Field != "messages" {
		t.Errorf("BuildGenerate: expected messages ValidationError, got %v", err)
	}

	_, err = a.BuildCountTokens(req)
	if !errors.As(err, &ve) {
		t.Errorf("BuildCountTokens: expected ValidationError, got %v", err)
	}
}

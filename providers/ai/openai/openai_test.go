package openai

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/leofalp/unillm/internal/utils"
	"github.com/leofalp/unillm/providers/ai"
)

func newTestAdapter(t *testing.T, opts ...Option) *Adapter {
	t.Helper()
	opts = append([]Option{WithAPIKey("sk-test"), WithBaseURL("https://example.test")}, opts...)
	a, err := New(opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func userRequest(text string) *ai.GenerationRequest {
	return &ai.GenerationRequest{Messages: []ai.Message{{Role: ai.RoleUser, Parts: []ai.Part{ai.TextPart(text)}}}}
}

func TestNew_MissingAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	if _, err := New(); !errors.Is(err, ai.ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
}

func TestString_RedactsKey(t *testing.T) {
	a := newTestAdapter(t)
	if strings.Contains(a.String(), "sk-test") {
		t.Errorf("String() leaks key: %s", a)
	}
}

// TestEndpoints covers every operation's method and URL, including a base
// URL that already carries the version segment.
func TestEndpoints(t *testing.T) {
	tests := []struct {
		name       string
		base       string
		build      func(a *Adapter) (method, url string)
		wantMethod string
		wantURL    string
	}{
		{
			name: "generate",
			build: func(a *Adapter) (string, string) {
				r, _, _ := a.BuildGenerate(userRequest("hi"), false)
				return r.Method, r.URL
			},
			wantMethod: http.MethodPost,
			wantURL:    "https://example.test/v1/chat/completions",
		},
		{
			name: "count tokens",
			build: func(a *Adapter) (string, string) {
				r, _ := a.BuildCountTokens(userRequest("hi"))
				return r.Method, r.URL
			},
			wantMethod: http.MethodPost,
			wantURL:    "https://example.test/v1/responses/input_tokens",
		},
		{
			name: "list models",
			build: func(a *Adapter) (string, string) {
				r, _ := a.BuildListModels("")
				return r.Method, r.URL
			},
			wantMethod: http.MethodGet,
			wantURL:    "https://example.test/v1/models",
		},
		{
			name: "get model with versioned base",
			base: "https://proxy.test/v1/",
			build: func(a *Adapter) (string, string) {
				r, _ := a.BuildGetModel("gpt-4o")
				return r.Method, r.URL
			},
			wantMethod: http.MethodGet,
			wantURL:    "https://proxy.test/v1/models/gpt-4o",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var opts []Option
			if tt.base != "" {
				opts = append(opts, WithBaseURL(tt.base))
			}
			method, url := tt.build(newTestAdapter(t, opts...))
			if method != tt.wantMethod || url != tt.wantURL {
				t.Errorf("got %s %s, want %s %s", method, url, tt.wantMethod, tt.wantURL)
			}
		})
	}
}

func TestAuthHeaders(t *testing.T) {
	a := newTestAdapter(t, WithOrganization("org-1"), WithProject("proj-1"))
	r, _, err := a.BuildGenerate(userRequest("hi"), true)
	if err != nil {
		t.Fatalf("BuildGenerate: %v", err)
	}
	if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
		t.Errorf("Authorization = %q", got)
	}
	if r.Header.Get("OpenAI-Organization") != "org-1" || r.Header.Get("OpenAI-Project") != "proj-1" {
		t.Errorf("org/project headers = %v", r.Header)
	}
	if r.Header.Get("Accept") != "text/event-stream" {
		t.Errorf("streaming Accept header missing")
	}

	var body map[string]any
	if err := json.Unmarshal(r.Body, &body); err != nil {
		t.Fatalf("body: %v", err)
	}
	if body["stream"] != true {
		t.Errorf("stream = %v", body["stream"])
	}
	opts, _ := body["stream_options"].(map[string]any)
	if opts["include_usage"] != true {
		t.Errorf("stream_options = %v", body["stream_options"])
	}
}

func TestDetectError(t *testing.T) {
	a := newTestAdapter(t)

	t.Run("rate limit envelope", func(t *testing.T) {
		body := `{"error":{"message":"slow down","type":"requests","param":null,"code":"rate_limit_exceeded"}}`
		err := a.DetectError(429, []byte(body))
		var pe *ai.ProviderError
		if !errors.As(err, &pe) {
			t.Fatalf("expected *ProviderError, got %v", err)
		}
		if pe.Code != "rate_limit_exceeded" || pe.Status != "requests" || pe.StatusCode != 429 {
			t.Errorf("unexpected error %+v", pe)
		}
		if !ai.IsRetryable(err) {
			t.Error("rate limit should be retryable")
		}
	})

	t.Run("numeric code from compatible server", func(t *testing.T) {
		err := a.DetectError(400, []byte(`{"error":{"message":"bad","type":"invalid_request_error","code":400}}`))
		var pe *ai.ProviderError
		if !errors.As(err, &pe) || pe.Code != "400" {
			t.Fatalf("unexpected error %v", err)
		}
	})

	t.Run("server error without code", func(t *testing.T) {
		err := a.DetectError(500, []byte(`{"error":{"message":"oops","type":"server_error","code":null}}`))
		var pe *ai.ProviderError
		if !errors.As(err, &pe) || pe.Code != "server_error" {
			t.Fatalf("unexpected error %v", err)
		}
	})

	// The same status classifies differently depending on the envelope.
	t.Run("success and error envelopes at 200", func(t *testing.T) {
		if err := a.DetectError(200, []byte(`{"choices":[]}`)); err != nil {
			t.Errorf("success body classified as %v", err)
		}
		var pe *ai.ProviderError
		if err := a.DetectError(200, []byte(`{"error":{"message":"x","type":"y"}}`)); !errors.As(err, &pe) {
			t.Errorf("error body classified as %v", err)
		}
	})

	t.Run("non-2xx without envelope", func(t *testing.T) {
		err := a.DetectError(503, []byte("upstream connect error"))
		var pe *ai.ProtocolError
		if !errors.As(err, &pe) {
			t.Fatalf("expected *ProtocolError, got %v", err)
		}
		if pe.BodyPreview != "upstream connect error" {
			t.Errorf("preview = %q", pe.BodyPreview)
		}
	})
}

func TestParseGenerate(t *testing.T) {
	a := newTestAdapter(t)
	body := `{
		"id": "chatcmpl-1",
		"object": "chat.completion",
		"created": 1700000000,
		"model": "gpt-4o-mini-2024-07-18",
		"choices": [
			{"index": 0, "message": {"role": "assistant", "content": "4"}, "finish_reason": "stop"},
			{"index": 1, "message": {"role": "assistant", "content": null, "refusal": "I can't help with that."}, "finish_reason": "stop"},
			{"index": 2, "message": {"role": "assistant", "content": "long"}, "finish_reason": "length"}
		],
		"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
	}`

	resp, err := a.ParseGenerate(200, []byte(body))
	if err != nil {
		t.Fatalf("ParseGenerate: %v", err)
	}
	if resp.ID != "chatcmpl-1" || resp.Model != "gpt-4o-mini-2024-07-18" {
		t.Errorf("metadata = %q %q", resp.ID, resp.Model)
	}
	want := []ai.Candidate{
		{Index: 0, Text: "4", FinishReason: ai.FinishStop},
		{Index: 1, Text: "I can't help with that.", FinishReason: ai.FinishContentFilter},
		{Index: 2, Text: "long", FinishReason: ai.FinishLength},
	}
	if len(resp.Candidates) != len(want) {
		t.Fatalf("candidates = %d", len(resp.Candidates))
	}
	for i := range want {
		if resp.Candidates[i] != want[i] {
			t.Errorf("candidate %d = %+v, want %+v", i, resp.Candidates[i], want[i])
		}
	}
	if resp.Usage == nil || resp.Usage.TotalTokens != 15 {
		t.Errorf("usage = %+v", resp.Usage)
	}
}

func TestParseGenerate_MissingChoices(t *testing.T) {
	a := newTestAdapter(t)
	_, err := a.ParseGenerate(200, []byte(`{"id":"x","object":"chat.completion"}`))
	var pe *ai.ProtocolError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *ProtocolError, got %v", err)
	}
}

func TestParseCountTokens(t *testing.T) {
	a := newTestAdapter(t)
	count, err := a.ParseCountTokens("gpt-4o", 200, []byte(`{"object":"response.input_tokens","input_tokens":11}`))
	if err != nil {
		t.Fatalf("ParseCountTokens: %v", err)
	}
	if count.Total != 11 || count.Model != "gpt-4o" {
		t.Errorf("count = %+v", count)
	}

	_, err = a.ParseCountTokens("gpt-4o", 200, []byte(`{"object":"response.input_tokens"}`))
	var pe *ai.ProtocolError
	if !errors.As(err, &pe) {
		t.Errorf("expected *ProtocolError, got %v", err)
	}
}

func TestParseListModels(t *testing.T) {
	a := newTestAdapter(t)
	body := `{"object":"list","data":[
		{"id":"gpt-4o-mini","object":"model","created":1721172741,"owned_by":"system"},
		{"id":"o3-mini","object":"model","created":1737146383,"owned_by":"system"},
		{"id":"text-embedding-3-small","object":"model","created":1705948997,"owned_by":"system"}
	]}`

	models, next, err := a.ParseListModels(200, []byte(body))
	if err != nil {
		t.Fatalf("ParseListModels: %v", err)
	}
	if next != "" || len(models) != 3 {
		t.Fatalf("next=%q models=%d", next, len(models))
	}

	if m := models[0]; utils.Deref(m.ContextWindow, 0) != 128000 || m.Capabilities == nil || !m.Capabilities.Vision {
		t.Errorf("gpt-4o-mini = %+v", m)
	}
	if m := models[1]; m.Capabilities == nil || m.Capabilities.Vision || utils.Deref(m.ContextWindow, 0) != 200000 {
		t.Errorf("o3-mini = %+v", m)
	}
	if m := models[2]; m.Capabilities != nil || m.ContextWindow != nil {
		t.Errorf("embedding model should have no capabilities: %+v", m)
	}

	if _, _, err := a.ParseListModels(200, []byte(`{"object":"list"}`)); err == nil {
		t.Error("expected error for missing data")
	}
}

func TestParseGetModel(t *testing.T) {
	a := newTestAdapter(t)
	info, err := a.ParseGetModel(200, []byte(`{"id":"gpt-4.1","object":"model","owned_by":"system"}`))
	if err != nil {
		t.Fatalf("ParseGetModel: %v", err)
	}
	if info.ID != "gpt-4.1" || utils.Deref(info.ContextWindow, 0) != 1047576 {
		t.Errorf("info = %+v", info)
	}
}

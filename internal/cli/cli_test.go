package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leofalp/unillm/internal/config"
)

// fakeOpenAI records the last generation body it received.
type fakeOpenAI struct {
	mu       sync.Mutex
	lastBody map[string]any
}

func (f *fakeOpenAI) body() map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastBody
}

func (f *fakeOpenAI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/v1/chat/completions":
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.lastBody = body
		f.mu.Unlock()

		if stream, _ := body["stream"].(bool); stream {
			w.Header().Set("Content-Type", "text/event-stream")
			for _, event := range []string{
				`{"id":"c1","choices":[{"index":0,"delta":{"role":"assistant","content":"Hel"}}]}`,
				`{"id":"c1","choices":[{"index":0,"delta":{"content":"lo"},"finish_reason":"stop"}]}`,
				`{"id":"c1","choices":[],"usage":{"prompt_tokens":4,"completion_tokens":2,"total_tokens":6}}`,
				`[DONE]`,
			} {
				_, _ = fmt.Fprintf(w, "data: %s\n\n", event)
			}
			return
		}
		writeBody(w, http.StatusOK, `{
			"id": "chatcmpl-1",
			"model": "gpt-4o-mini",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "Hi there"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 4, "completion_tokens": 2, "total_tokens": 6}
		}`)
	case r.URL.Path == "/v1/responses":
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.lastBody = body
		f.mu.Unlock()

		if stream, _ := body["stream"].(bool); stream {
			w.Header().Set("Content-Type", "text/event-stream")
			for _, event := range []string{
				`{"type":"response.created","response":{"id":"resp_1","status":"in_progress","output":[]}}`,
				`{"type":"response.output_text.delta","output_index":0,"content_index":0,"delta":"Res"}`,
				`{"type":"response.output_text.delta","output_index":0,"content_index":0,"delta":"ponse"}`,
				`{"type":"response.completed","response":{"id":"resp_1","status":"completed","output":[],"usage":{"input_tokens":5,"output_tokens":2,"total_tokens":7}}}`,
			} {
				_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", "message", event)
			}
			return
		}
		writeBody(w, http.StatusOK, `{
			"id": "resp_1",
			"object": "response",
			"model": "gpt-4o-mini",
			"status": "completed",
			"output": [{"type": "message", "role": "assistant", "content": [{"type": "output_text", "text": "Response text"}]}],
			"usage": {"input_tokens": 5, "output_tokens": 2, "total_tokens": 7}
		}`)
	case r.URL.Path == "/v1/responses/input_tokens":
		writeBody(w, http.StatusOK, `{"object": "response.input_tokens", "input_tokens": 9}`)
	case r.URL.Path == "/v1/models":
		writeBody(w, http.StatusOK, `{"object": "list", "data": [
			{"id": "gpt-4o", "object": "model", "owned_by": "openai"},
			{"id": "gpt-4o-mini", "object": "model", "owned_by": "openai"}
		]}`)
	case r.URL.Path == "/v1/models/gpt-4o":
		writeBody(w, http.StatusOK, `{"id": "gpt-4o", "object": "model", "owned_by": "openai"}`)
	default:
		writeBody(w, http.StatusNotFound, `{"error": {"message": "unknown route", "type": "invalid_request_error", "code": "not_found"}}`)
	}
}

func writeBody(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

// isolateEnv keeps provider variables from the developer's environment out
// of the test.
func isolateEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"GEMINI_API_KEY", "GEMINI_API_BASE_URL", "OPENAI_API_KEY", "OPENAI_API_BASE_URL",
		"UNILLM_LOG_LEVEL", "UNILLM_LOG_FORMAT", "UNILLM_ADDR",
	} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

// setup starts a fake OpenAI upstream and writes a config pointing at it.
// The returned args select that config and no env file.
func setup(t *testing.T, extraYAML string) (*fakeOpenAI, []string) {
	t.Helper()
	isolateEnv(t)

	fake := &fakeOpenAI{}
	upstream := httptest.NewServer(fake)
	t.Cleanup(upstream.Close)

	dir := t.TempDir()
	cfg := fmt.Sprintf("log:\n  level: error\nproviders:\n  openai:\n    api_key: sk-test\n    base_url: %s\n%s", upstream.URL, extraYAML)
	path := filepath.Join(dir, "unillm.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))

	return fake, []string{"-config", path, "-env", filepath.Join(dir, "missing.env")}
}

func run(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := New(strings.NewReader(stdin), &stdout, &stderr).Execute(context.Background(), args)
	return stdout.String(), stderr.String(), err
}

func command(name string, common []string, args ...string) []string {
	return append(append([]string{name}, common...), args...)
}

// ========== Dispatch ==========

func TestExecute_Usage(t *testing.T) {
	for _, args := range [][]string{nil, {"help"}, {"-h"}} {
		out, _, err := run(t, "", args...)
		require.NoError(t, err)
		assert.Contains(t, out, "Usage:")
		assert.Contains(t, out, "generate")
	}
}

func TestExecute_Version(t *testing.T) {
	out, _, err := run(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "unillm "+Version+"\n", out)
}

func TestExecute_UnknownCommand(t *testing.T) {
	_, _, err := run(t, "", "chat")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown command "chat"`)
}

func TestExecute_CommandHelp(t *testing.T) {
	_, stderr, err := run(t, "", "generate", "-h")
	require.NoError(t, err)
	assert.Contains(t, stderr, "-prompt")
}

func TestExecute_BadFlags(t *testing.T) {
	_, _, err := run(t, "", "generate", "-temperature", "warm")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse generate flags")

	_, _, err = run(t, "", "generate", "-prompt", "hi", "extra")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected arguments")
}

// ========== generate ==========

func TestGenerate_PrintsTextAndUsage(t *testing.T) {
	_, common := setup(t, "")

	out, stderr, err := run(t, "", command("generate", common, "-prompt", "hello")...)
	require.NoError(t, err)
	assert.Equal(t, "Hi there\n", out)
	assert.Contains(t, stderr, "tokens: prompt=4 completion=2 total=6")
}

func TestGenerate_JSON(t *testing.T) {
	_, common := setup(t, "")

	out, _, err := run(t, "", command("generate", common, "-prompt", "hello", "-json")...)
	require.NoError(t, err)

	var resp struct {
		ID         string `json:"id"`
		Candidates []struct {
			Text string `json:"text"`
		} `json:"candidates"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "chatcmpl-1", resp.ID)
	require.Len(t, resp.Candidates, 1)
	assert.Equal(t, "Hi there", resp.Candidates[0].Text)
}

func TestGenerate_FlagsShapeRequest(t *testing.T) {
	fake, common := setup(t, "")

	_, _, err := run(t, "", command("generate", common,
		"-prompt", "hello",
		"-system", "be brief",
		"-model", "gpt-4o",
		"-temperature", "0.2",
		"-max-tokens", "64",
		"-n", "2",
		"-stop", "END",
	)...)
	require.NoError(t, err)

	body := fake.body()
	require.NotNil(t, body)
	assert.Equal(t, "gpt-4o", body["model"])
	assert.Equal(t, 0.2, body["temperature"])
	assert.Equal(t, float64(64), body["max_completion_tokens"])
	assert.Equal(t, float64(2), body["n"])
	assert.Equal(t, []any{"END"}, body["stop"])

	messages, ok := body["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]any)["role"])
	assert.Equal(t, "be brief", messages[0].(map[string]any)["content"])
	assert.Equal(t, "user", messages[1].(map[string]any)["role"])
}

func TestGenerate_RequestFileIsRepaired(t *testing.T) {
	fake, common := setup(t, "")

	path := filepath.Join(t.TempDir(), "request.json")
	loose := "```json\n{model: 'gpt-4o', messages: [{role: 'user', parts: [{type: 'text', text: 'from file'}]}],}\n```"
	require.NoError(t, os.WriteFile(path, []byte(loose), 0o600))

	out, _, err := run(t, "", command("generate", common, "-request", path)...)
	require.NoError(t, err)
	assert.Equal(t, "Hi there\n", out)
	assert.Equal(t, "gpt-4o", fake.body()["model"])
}

func TestGenerate_PromptFromStdin(t *testing.T) {
	fake, common := setup(t, "")

	_, _, err := run(t, "piped prompt", command("generate", common, "-prompt", "-")...)
	require.NoError(t, err)

	messages := fake.body()["messages"].([]any)
	require.Len(t, messages, 1)
	assert.Equal(t, "piped prompt", messages[0].(map[string]any)["content"])
}

func TestGenerate_InputErrors(t *testing.T) {
	_, common := setup(t, "")

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{name: "no prompt", args: nil, wantErr: "a prompt is required"},
		{name: "negative temperature", args: []string{"-prompt", "x", "-temperature", "-1"}, wantErr: "config.temperature"},
		{name: "missing request file", args: []string{"-request", "/does/not/exist.json"}, wantErr: "exist.json"},
		{name: "unknown provider", args: []string{"-prompt", "x", "-provider", "mistral"}, wantErr: "unknown provider"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := run(t, "", command("generate", common, tt.args...)...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestGenerate_ProviderSelection(t *testing.T) {
	_, common := setup(t, "  gemini:\n    api_key: g-test\n")

	_, _, err := run(t, "", command("generate", common, "-prompt", "x")...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "choose one with -provider")

	out, _, err := run(t, "", command("generate", common, "-prompt", "x", "-provider", config.ProviderOpenAI)...)
	require.NoError(t, err)
	assert.Equal(t, "Hi there\n", out)
}

func TestGenerate_NoProvider(t *testing.T) {
	isolateEnv(t)
	missing := filepath.Join(t.TempDir(), "missing.env")

	_, _, err := run(t, "", "generate", "-env", missing, "-prompt", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no provider configured")
}

// ========== stream ==========

func TestStream_PrintsDeltas(t *testing.T) {
	fake, common := setup(t, "")

	out, stderr, err := run(t, "", command("stream", common, "-prompt", "hello")...)
	require.NoError(t, err)
	assert.Equal(t, "Hello\n", out)
	assert.Contains(t, stderr, "total=6")
	assert.Equal(t, true, fake.body()["stream"])
}

func TestStream_JSONLines(t *testing.T) {
	_, common := setup(t, "")

	out, _, err := run(t, "", command("stream", common, "-prompt", "hello", "-json")...)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.GreaterOrEqual(t, len(lines), 2)
	assert.JSONEq(t, `{"candidate_index":0,"delta":"Hel"}`, lines[0])
	assert.Contains(t, lines[1], `"delta":"lo"`)
}

func TestResponsesAPI_GenerateAndStream(t *testing.T) {
	fake, common := setup(t, "    api: responses\n")

	out, stderr, err := run(t, "", command("generate", common, "-prompt", "hello", "-system", "be brief")...)
	require.NoError(t, err)
	assert.Equal(t, "Response text\n", out)
	assert.Contains(t, stderr, "tokens: prompt=5 completion=2 total=7")

	body := fake.body()
	assert.Equal(t, "be brief", body["instructions"])
	_, hasMessages := body["messages"]
	assert.False(t, hasMessages)

	out, stderr, err = run(t, "", command("stream", common, "-prompt", "hello")...)
	require.NoError(t, err)
	assert.Equal(t, "Response\n", out)
	assert.Contains(t, stderr, "total=7")
	assert.Equal(t, true, fake.body()["stream"])
}

// ========== tokens and models ==========

func TestTokens(t *testing.T) {
	_, common := setup(t, "")

	out, _, err := run(t, "", command("tokens", common, "-prompt", "hello")...)
	require.NoError(t, err)
	assert.Equal(t, "9 tokens (gpt-4o-mini)\n", out)
}

func TestModels_Table(t *testing.T) {
	_, common := setup(t, "")

	out, _, err := run(t, "", command("models", common)...)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "ID"))
	assert.True(t, strings.HasPrefix(lines[1], "gpt-4o "))
	assert.True(t, strings.HasPrefix(lines[2], "gpt-4o-mini"))
}

func TestModels_SingleJSON(t *testing.T) {
	_, common := setup(t, "")

	out, _, err := run(t, "", command("models", common, "-id", "gpt-4o", "-json")...)
	require.NoError(t, err)

	var info struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, "gpt-4o", info.ID)
}

func TestModels_NotFound(t *testing.T) {
	_, common := setup(t, "")

	_, _, err := run(t, "", command("models", common, "-id", "gpt-9")...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown route")
}

// ========== serve ==========

func TestServe_StopsOnCancel(t *testing.T) {
	_, common := setup(t, "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var stdout, stderr bytes.Buffer
	err := New(strings.NewReader(""), &stdout, &stderr).Execute(ctx, command("serve", common, "-addr", "127.0.0.1:0"))
	assert.NoError(t, err)
}

package parse

import (
	"errors"
	"testing"

	"github.com/leofalp/unillm/providers/ai"
)

type settings struct {
	Model  string   `json:"model"`
	Tokens int      `json:"tokens"`
	Stop   []string `json:"stop"`
}

func TestJSONAs_Struct(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  settings
	}{
		{
			name:  "valid json",
			input: `{"model": "gpt-4o", "tokens": 10}`,
			want:  settings{Model: "gpt-4o", Tokens: 10},
		},
		{
			name:  "surrounding whitespace",
			input: "\n\t {\"model\": \"m\"}  \n",
			want:  settings{Model: "m"},
		},
		{
			name:  "code fence with language",
			input: "```json\n{\"model\": \"fenced\"}\n```",
			want:  settings{Model: "fenced"},
		},
		{
			name:  "code fence without language",
			input: "```\n{\"tokens\": 3}\n```",
			want:  settings{Tokens: 3},
		},
		{
			name:  "trailing comma",
			input: `{"model": "m", "stop": ["a", "b",],}`,
			want:  settings{Model: "m", Stop: []string{"a", "b"}},
		},
		{
			name:  "unquoted keys and single quotes",
			input: `{model: 'gemini', tokens: 5}`,
			want:  settings{Model: "gemini", Tokens: 5},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := JSONAs[settings]([]byte(tt.input))
			if err != nil {
				t.Fatalf("JSONAs() error = %v", err)
			}
			if got.Model != tt.want.Model || got.Tokens != tt.want.Tokens || len(got.Stop) != len(tt.want.Stop) {
				t.Errorf("JSONAs() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestJSONAs_EmptyInput(t *testing.T) {
	for _, input := range []string{"", "   ", "\n"} {
		if _, err := JSONAs[settings]([]byte(input)); !errors.Is(err, ErrEmptyInput) {
			t.Errorf("JSONAs(%q) error = %v, want ErrEmptyInput", input, err)
		}
	}
}

// TestJSONAs_WrongShape verifies well-formed JSON of the wrong type is not
// "repaired" into something else.
func TestJSONAs_WrongShape(t *testing.T) {
	_, err := JSONAs[settings]([]byte(`{"tokens": "ten"}`))
	if err == nil {
		t.Fatal("expected an error for a string in an int field")
	}
}

func TestJSONAs_Map(t *testing.T) {
	got, err := JSONAs[map[string]int]([]byte(`{a: 1, b: 2`))
	if err != nil {
		t.Fatalf("JSONAs() error = %v", err)
	}
	if got["a"] != 1 || got["b"] != 2 {
		t.Errorf("JSONAs() = %v", got)
	}
}

func TestStripCodeFence(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"{}", "{}"},
		{"```json\n{}\n```", "{}"},
		{"```\n[1]\n```", "[1]"},
		{"```json {}```", "```json {}```"},
		{"```json\n{}", "```json\n{}"},
	}
	for _, tt := range tests {
		if got := string(stripCodeFence([]byte(tt.input))); got != tt.want {
			t.Errorf("stripCodeFence(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestRequest_Shorthand(t *testing.T) {
	req, err := Request([]byte(`{
		"model": "gpt-4o-mini",
		"messages": [
			{"role": "system", "content": "be brief"},
			{"role": "user", "content": "hi"},
		],
		"config": {"temperature": 0.2, "max_output_tokens": 64}
	}`))
	if err != nil {
		t.Fatalf("Request() error = %v", err)
	}

	if req.Model != "gpt-4o-mini" || len(req.Messages) != 2 {
		t.Fatalf("unexpected request: %+v", req)
	}
	if req.Messages[1].Role != ai.RoleUser || req.Messages[1].Text() != "hi" {
		t.Errorf("unexpected user message: %+v", req.Messages[1])
	}
	if req.Config == nil || req.Config.MaxOutputTokens == nil || *req.Config.MaxOutputTokens != 64 {
		t.Errorf("unexpected config: %+v", req.Config)
	}
}

func TestRequest_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"no messages", `{"model": "m", "messages": []}`},
		{"bad temperature", `{"messages": [{"role": "user", "content": "x"}], "config": {"temperature": -1}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Request([]byte(tt.input))
			var validationErr *ai.ValidationError
			if !errors.As(err, &validationErr) {
				t.Errorf("Request() error = %v, want ValidationError", err)
			}
		})
	}
}

func TestRequest_UnknownRole(t *testing.T) {
	if _, err := Request([]byte(`{"messages": [{"role": "tool", "content": "x"}]}`)); err == nil {
		t.Fatal("expected an error for an unknown role")
	}
}

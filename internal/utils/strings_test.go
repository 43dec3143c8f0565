package utils

import (
	"strings"
	"testing"
	"unicode/utf8"
)

// TestTruncateString covers the short, exact-length and over-length cases.
func TestTruncateString(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		maxLen int
		want   string
	}{
		{name: "shorter than limit", input: "hello", maxLen: 10, want: "hello"},
		{name: "exact length", input: "hello", maxLen: 5, want: "hello"},
		{name: "over limit", input: "hello world", maxLen: 5, want: "hello... (truncated, total: 11 chars)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TruncateString(tt.input, tt.maxLen); got != tt.want {
				t.Errorf("TruncateString(%q, %d) = %q, want %q", tt.input, tt.maxLen, got, tt.want)
			}
		})
	}
}

// TestTruncateString_ZeroLimit_UsesDefault verifies the default limit applies.
func TestTruncateString_ZeroLimit_UsesDefault(t *testing.T) {
	input := strings.Repeat("a", DefaultMaxStringLength+10)
	got := TruncateString(input, 0)
	if !strings.HasPrefix(got, strings.Repeat("a", DefaultMaxStringLength)+"...") {
		t.Errorf("expected default-length prefix, got %q", got[:20])
	}
}

// TestTruncateString_MultiByte_DoesNotSplitRune verifies the cut lands on a rune boundary.
func TestTruncateString_MultiByte_DoesNotSplitRune(t *testing.T) {
	got := TruncateString("ééééé", 3)
	if !utf8.ValidString(got) {
		t.Fatalf("truncated string is not valid UTF-8: %q", got)
	}
	if !strings.HasPrefix(got, "é...") {
		t.Errorf("got %q, want prefix %q", got, "é...")
	}
}

// TestJSON_CompactAndIndented verifies both rendering modes.
func TestJSON_CompactAndIndented(t *testing.T) {
	input := map[string]int{"a": 1}
	if got := JSON(input, false); got != `{"a":1}` {
		t.Errorf("JSON compact = %q", got)
	}
	if got := JSON(input, true); !strings.Contains(got, "\n  \"a\": 1") {
		t.Errorf("JSON indented = %q", got)
	}
}

// TestJSON_MarshalError_ReturnsErrorObject verifies unmarshalable values do not panic.
func TestJSON_MarshalError_ReturnsErrorObject(t *testing.T) {
	got := JSON(make(chan int), false)
	if !strings.HasPrefix(got, `{"error":`) {
		t.Errorf("got %q, want error object", got)
	}
}

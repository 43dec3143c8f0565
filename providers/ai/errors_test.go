package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
)

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "transport reset", err: &TransportError{Provider: "p", Op: "send", Err: io.ErrUnexpectedEOF}, want: true},
		{name: "transport canceled", err: &TransportError{Provider: "p", Op: "send", Err: context.Canceled}, want: false},
		{name: "rate limited", err: &ProviderError{Provider: "p", StatusCode: http.StatusTooManyRequests}, want: true},
		{name: "overloaded", err: &ProviderError{Provider: "p", StatusCode: 529}, want: true},
		{name: "quota code", err: &ProviderError{Provider: "p", StatusCode: 400, Status: "RESOURCE_EXHAUSTED"}, want: true},
		{name: "openai rate code", err: &ProviderError{Provider: "p", StatusCode: 400, Code: "rate_limit_exceeded"}, want: true},
		{name: "insufficient quota", err: &ProviderError{Provider: "p", StatusCode: 429, Code: "insufficient_quota"}, want: false},
		{name: "bad request", err: &ProviderError{Provider: "p", StatusCode: 400, Code: "invalid_value"}, want: false},
		{name: "protocol", err: &ProtocolError{Provider: "p", StatusCode: 502}, want: false},
		{name: "wrapped transport", err: fmt.Errorf("outer: %w", &TransportError{Provider: "p", Err: io.EOF}), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "validation", err: &ValidationError{Field: "messages", Reason: "empty"}, want: http.StatusBadRequest},
		{name: "unsupported", err: &UnsupportedOperationError{Provider: "p", Operation: OpStream}, want: http.StatusNotImplemented},
		{name: "provider status", err: &ProviderError{Provider: "p", StatusCode: 404}, want: http.StatusNotFound},
		{name: "provider mid-stream", err: &ProviderError{Provider: "p"}, want: http.StatusBadGateway},
		{name: "protocol", err: &ProtocolError{Provider: "p"}, want: http.StatusBadGateway},
		{name: "transport timeout", err: &TransportError{Provider: "p", Err: context.DeadlineExceeded}, want: http.StatusGatewayTimeout},
		{name: "transport", err: &TransportError{Provider: "p", Err: io.EOF}, want: http.StatusBadGateway},
		{name: "decode", err: &StreamDecodeError{Provider: "p", Err: io.EOF}, want: http.StatusBadGateway},
		{name: "other", err: errors.New("boom"), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HTTPStatus(tt.err); got != tt.want {
				t.Errorf("HTTPStatus() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestUnsupportedOperationIs(t *testing.T) {
	err := fmt.Errorf("wrap: %w", &UnsupportedOperationError{Provider: "gemini", Operation: OpStream})
	if !errors.Is(err, ErrUnsupportedOperation) {
		t.Error("errors.Is(err, ErrUnsupportedOperation) = false")
	}
	if ErrorType(err) != "unsupported_operation" {
		t.Errorf("ErrorType() = %q", ErrorType(err))
	}
}

// TestNewProtocolError_HTMLPreview checks that an HTML error page from a proxy
// ends up as a short, readable preview rather than raw markup.
func TestNewProtocolError_HTMLPreview(t *testing.T) {
	body := []byte("<html><body><h1>Bad Gateway</h1><p>upstream unavailable</p></body></html>")
	err := NewProtocolError("openai", 502, "text/html", body, "unexpected response", nil)

	if strings.Contains(err.BodyPreview, "<h1>") {
		t.Errorf("preview still contains markup: %q", err.BodyPreview)
	}
	if !strings.Contains(err.BodyPreview, "Bad Gateway") {
		t.Errorf("preview lost content: %q", err.BodyPreview)
	}
	if !strings.Contains(err.Error(), "status 502") {
		t.Errorf("Error() missing status: %q", err.Error())
	}
}

func TestProviderErrorMessage(t *testing.T) {
	err := &ProviderError{Provider: "gemini", StatusCode: 429, Code: "429", Status: "RESOURCE_EXHAUSTED", Message: "quota"}
	got := err.Error()
	for _, want := range []string{"gemini", "429", "RESOURCE_EXHAUSTED", "quota"} {
		if !strings.Contains(got, want) {
			t.Errorf("Error() = %q, missing %q", got, want)
		}
	}
}

package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/leofalp/unillm/internal/utils"
)

var (
	// ErrUnsupportedOperation matches every *UnsupportedOperationError.
	ErrUnsupportedOperation = errors.New("unsupported operation")

	// ErrStreamConsumed is yielded when a ChunkStream is iterated a second
	// time or after Close.
	ErrStreamConsumed = errors.New("stream already consumed")

	// ErrMissingAPIKey is returned by adapter constructors when no key was
	// given and none is set in the environment.
	ErrMissingAPIKey = errors.New("missing API key")
)

// TransportError is a failure to exchange bytes with the provider: DNS, TLS,
// connection resets, body read failures and cancellation.
type TransportError struct {
	Provider string
	Op       string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %s: transport error: %v", e.Provider, e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolError is a response that matched no known envelope: malformed
// JSON, a missing required field, or a non-2xx status without an error
// object. It indicates the provider contract drifted.
type ProtocolError struct {
	Provider    string
	StatusCode  int
	Message     string
	BodyPreview string
	Err         error
}

func (e *ProtocolError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: protocol error", e.Provider)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	b.WriteString(": " + e.Message)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if e.BodyPreview != "" {
		b.WriteString("\nResponse preview: " + e.BodyPreview)
	}
	return b.String()
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// ProviderError is an application-level failure reported by the provider in
// its error envelope: quota, safety block, unknown model, bad parameter.
// Code and Status carry the provider's own identifiers; Raw is the envelope.
type ProviderError struct {
	Provider   string
	StatusCode int
	Code       string
	Status     string
	Message    string
	Raw        []byte
}

func (e *ProviderError) Error() string {
	var details []string
	if e.StatusCode != 0 {
		details = append(details, fmt.Sprintf("status %d", e.StatusCode))
	}
	if e.Status != "" {
		details = append(details, e.Status)
	}
	if e.Code != "" && e.Code != e.Status {
		details = append(details, "code "+e.Code)
	}
	msg := fmt.Sprintf("%s: provider error", e.Provider)
	if len(details) > 0 {
		msg += " (" + strings.Join(details, ", ") + ")"
	}
	return msg + ": " + e.Message
}

// StreamDecodeError is a frame that could not be isolated or parsed in the
// middle of a stream. The stream ends right after it.
type StreamDecodeError struct {
	Provider string
	Offset   int64
	Frame    string
	Err      error
}

func (e *StreamDecodeError) Error() string {
	msg := fmt.Sprintf("%s: stream decode error at offset %d: %v", e.Provider, e.Offset, e.Err)
	if e.Frame != "" {
		msg += fmt.Sprintf(" (frame: %q)", e.Frame)
	}
	return msg
}

func (e *StreamDecodeError) Unwrap() error { return e.Err }

// UnsupportedOperationError reports a capability that is absent for this
// provider or transport.
type UnsupportedOperationError struct {
	Provider  string
	Operation Operation
	Reason    string
}

func (e *UnsupportedOperationError) Error() string {
	msg := fmt.Sprintf("%s: %s: %v", e.Provider, e.Operation, ErrUnsupportedOperation)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// Is makes errors.Is(err, ErrUnsupportedOperation) hold.
func (e *UnsupportedOperationError) Is(target error) bool {
	return target == ErrUnsupportedOperation
}

// ValidationError is a unified request rejected before anything is sent.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid request: %s: %s", e.Field, e.Reason)
}

var retryableCodes = map[string]bool{
	"RESOURCE_EXHAUSTED":  true,
	"UNAVAILABLE":         true,
	"DEADLINE_EXCEEDED":   true,
	"rate_limit_exceeded": true,
	"server_error":        true,
	"insufficient_quota":  false,
}

// IsRetryable reports whether repeating the same call may succeed: transport
// failures other than cancellation, and provider errors that signal rate
// limiting, overload or a transient server fault.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		return !errors.Is(err, context.Canceled)
	}

	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		if retryable, known := retryableCodes[providerErr.Code]; known {
			return retryable
		}
		if retryable, known := retryableCodes[providerErr.Status]; known {
			return retryable
		}
		switch providerErr.StatusCode {
		case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout, 529:
			return true
		}
	}
	return false
}

// HTTPStatus maps an error to the status a gateway should answer with.
func HTTPStatus(err error) int {
	var (
		validationErr *ValidationError
		providerErr   *ProviderError
		protocolErr   *ProtocolError
		transportErr  *TransportError
		decodeErr     *StreamDecodeError
	)
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &validationErr):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnsupportedOperation):
		return http.StatusNotImplemented
	case errors.As(err, &providerErr):
		if providerErr.StatusCode >= 400 {
			return providerErr.StatusCode
		}
		return http.StatusBadGateway
	case errors.As(err, &transportErr):
		if errors.Is(err, context.DeadlineExceeded) {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	case errors.As(err, &protocolErr), errors.As(err, &decodeErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ErrorType returns a short machine-readable name for the error class.
func ErrorType(err error) string {
	var (
		validationErr *ValidationError
		providerErr   *ProviderError
		protocolErr   *ProtocolError
		transportErr  *TransportError
		decodeErr     *StreamDecodeError
	)
	switch {
	case errors.As(err, &validationErr):
		return "invalid_request"
	case errors.Is(err, ErrUnsupportedOperation):
		return "unsupported_operation"
	case errors.As(err, &providerErr):
		return "provider_error"
	case errors.As(err, &protocolErr):
		return "protocol_error"
	case errors.As(err, &transportErr):
		return "transport_error"
	case errors.As(err, &decodeErr):
		return "stream_decode_error"
	default:
		return "internal_error"
	}
}

// NewProtocolError builds a ProtocolError with a bounded, readable preview of
// the offending body.
func NewProtocolError(provider string, status int, contentType string, body []byte, message string, err error) *ProtocolError {
	return &ProtocolError{
		Provider:    provider,
		StatusCode:  status,
		Message:     message,
		BodyPreview: utils.BodyPreview(contentType, body, utils.PreviewLength),
		Err:         err,
	}
}

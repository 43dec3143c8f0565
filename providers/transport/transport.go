package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Request is a fully built outgoing call: endpoint, auth and body are already
// in place when an adapter hands it over.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// NewRequest returns a request with an initialised header map.
func NewRequest(method, url string, body []byte) *Request {
	return &Request{
		Method: method,
		URL:    url,
		Header: make(http.Header),
		Body:   body,
	}
}

// NewJSONRequest marshals payload and sets the JSON content type.
func NewJSONRequest(method, url string, payload any) (*Request, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("error marshaling body: %w", err)
	}
	req := NewRequest(method, url, body)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// Response is a buffered response. The status code is reported as-is.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// StreamResponse is returned once headers arrive. Body yields the payload
// in arbitrarily sized blocks and must be closed by the consumer.
type StreamResponse struct {
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser
}

// IsSuccess reports whether status is in the 2xx range.
func IsSuccess(status int) bool {
	return status >= 200 && status < 300
}

// Transport sends a request and returns the buffered response. Errors are
// reserved for failures to obtain a response at all.
type Transport interface {
	Send(ctx context.Context, req *Request) (*Response, error)
}

// StreamingTransport additionally returns responses as live byte streams.
type StreamingTransport interface {
	Transport
	SendStreaming(ctx context.Context, req *Request) (*StreamResponse, error)
}

// Func adapts a function to the Transport interface. It does not stream.
type Func func(ctx context.Context, req *Request) (*Response, error)

// Send calls f.
func (f Func) Send(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

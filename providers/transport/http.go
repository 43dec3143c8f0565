package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/leofalp/unillm/internal/utils"
	"github.com/leofalp/unillm/providers/observability"
)

// Version is reported in the default User-Agent.
const Version = "0.1.0"

// DefaultUserAgent identifies the client to providers.
const DefaultUserAgent = "unillm/" + Version

// RequestIDHeader carries a per-request UUID so provider-side logs can be
// correlated with ours.
const RequestIDHeader = "X-Request-ID"

// HTTP is the net/http implementation of StreamingTransport.
type HTTP struct {
	client      *http.Client
	userAgent   string
	maxBodySize int64
	newID       func() string
}

var _ StreamingTransport = (*HTTP)(nil)

// Option configures an HTTP transport.
type Option func(*HTTP)

// WithHTTPClient sets the underlying client. Its Timeout, if any, is the only
// deadline applied besides the request context.
func WithHTTPClient(client *http.Client) Option {
	return func(t *HTTP) {
		if client != nil {
			t.client = client
		}
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(userAgent string) Option {
	return func(t *HTTP) {
		t.userAgent = userAgent
	}
}

// WithMaxBodySize caps buffered response bodies.
func WithMaxBodySize(n int64) Option {
	return func(t *HTTP) {
		t.maxBodySize = n
	}
}

// WithRequestIDFunc replaces the UUID generator used for X-Request-ID.
func WithRequestIDFunc(fn func() string) Option {
	return func(t *HTTP) {
		if fn != nil {
			t.newID = fn
		}
	}
}

// NewHTTP returns an HTTP transport using http.DefaultClient unless
// WithHTTPClient is given.
func NewHTTP(opts ...Option) *HTTP {
	t := &HTTP{
		client:      http.DefaultClient,
		userAgent:   DefaultUserAgent,
		maxBodySize: utils.MaxResponseBodySize,
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Send performs the request and buffers the whole body. Non-2xx responses
// are not errors here; the caller classifies them.
func (t *HTTP) Send(ctx context.Context, req *Request) (*Response, error) {
	httpReq, requestID, err := t.newHTTPRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	span := observability.SpanFromContext(ctx)
	start := time.Now()
	res, err := t.client.Do(httpReq)
	elapsed := time.Since(start)
	if err != nil {
		if span != nil {
			span.AddEvent(observability.EventHTTPRequestError,
				observability.Error(err),
				observability.String(observability.AttrHTTPRequestID, requestID),
				observability.Duration(observability.AttrHTTPDuration, elapsed),
			)
		}
		return nil, fmt.Errorf("error sending request: %w", err)
	}
	defer utils.CloseWithLog(res.Body)

	body, err := utils.ReadCapped(res.Body, t.maxBodySize)
	if err != nil {
		return nil, fmt.Errorf("error reading response body: %w", err)
	}

	if span != nil {
		span.AddEvent(observability.EventHTTPResponseReceived,
			observability.Int(observability.AttrHTTPStatusCode, res.StatusCode),
			observability.Int(observability.AttrHTTPResponseBodySize, len(body)),
			observability.String(observability.AttrHTTPRequestID, requestID),
			observability.Duration(observability.AttrHTTPDuration, time.Since(start)),
		)
	}

	return &Response{
		StatusCode: res.StatusCode,
		Header:     res.Header,
		Body:       body,
	}, nil
}

// SendStreaming performs the request and returns as soon as response headers
// are available. The body is left open for the caller.
func (t *HTTP) SendStreaming(ctx context.Context, req *Request) (*StreamResponse, error) {
	httpReq, requestID, err := t.newHTTPRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	span := observability.SpanFromContext(ctx)
	start := time.Now()
	res, err := t.client.Do(httpReq)
	elapsed := time.Since(start)
	if err != nil {
		if span != nil {
			span.AddEvent(observability.EventHTTPRequestError,
				observability.Error(err),
				observability.String(observability.AttrHTTPRequestID, requestID),
				observability.Duration(observability.AttrHTTPDuration, elapsed),
			)
		}
		return nil, fmt.Errorf("error sending stream request: %w", err)
	}

	if span != nil {
		span.AddEvent(observability.EventHTTPStreamStarted,
			observability.Int(observability.AttrHTTPStatusCode, res.StatusCode),
			observability.String(observability.AttrHTTPRequestID, requestID),
			observability.Duration(observability.AttrHTTPDuration, elapsed),
		)
	}

	return &StreamResponse{
		StatusCode: res.StatusCode,
		Header:     res.Header,
		Body:       res.Body,
	}, nil
}

func (t *HTTP) newHTTPRequest(ctx context.Context, req *Request) (*http.Request, string, error) {
	if req == nil {
		return nil, "", fmt.Errorf("error creating request: nil request")
	}
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return nil, "", fmt.Errorf("error creating request: %w", err)
	}

	for key, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	if httpReq.Header.Get("User-Agent") == "" && t.userAgent != "" {
		httpReq.Header.Set("User-Agent", t.userAgent)
	}
	requestID := httpReq.Header.Get(RequestIDHeader)
	if requestID == "" {
		requestID = t.newID()
		httpReq.Header.Set(RequestIDHeader, requestID)
	}

	if span := observability.SpanFromContext(ctx); span != nil {
		span.AddEvent(observability.EventHTTPRequestPrepared,
			observability.String(observability.AttrHTTPMethod, method),
			observability.String(observability.AttrHTTPURL, redactURL(httpReq)),
			observability.Int(observability.AttrHTTPRequestBodySize, len(req.Body)),
			observability.String(observability.AttrHTTPRequestID, requestID),
		)
	}

	return httpReq, requestID, nil
}

// redactURL drops the query string, which may carry an API key.
func redactURL(req *http.Request) string {
	u := *req.URL
	if u.RawQuery != "" {
		u.RawQuery = "redacted"
	}
	return u.String()
}

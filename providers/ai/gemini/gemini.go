package gemini

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/leofalp/unillm/internal/utils"
	"github.com/leofalp/unillm/providers/ai"
	"github.com/leofalp/unillm/providers/transport"
)

const (
	providerName      = "gemini"
	defaultBaseURL    = "https://generativelanguage.googleapis.com"
	defaultAPIVersion = "v1beta"
	defaultModel      = "gemini-2.0-flash-lite" // Most cost-effective model
	apiKeyHeader      = "x-goog-api-key"
	listPageSize      = 100
)

// errNoContents rejects requests made only of system messages, which leave
// Gemini's required contents empty once moved to systemInstruction.
var errNoContents = &ai.ValidationError{Field: "messages", Reason: "at least one user or assistant message is required"}

// AuthMode selects where the API key is sent.
type AuthMode int

const (
	// AuthHeader sends the key in the x-goog-api-key header.
	AuthHeader AuthMode = iota
	// AuthQuery sends the key as the "key" query parameter.
	AuthQuery
)

// SafetySetting is a per-category blocking threshold, passed through to
// every generateContent request.
type SafetySetting struct {
	Category  string `yaml:"category" json:"category"`
	Threshold string `yaml:"threshold" json:"threshold"`
}

// Adapter implements ai.Adapter for the Gemini API. It is immutable once
// built and safe for concurrent use.
type Adapter struct {
	apiKey         string
	baseURL        string
	apiVersion     string
	defaultModel   string
	authMode       AuthMode
	sse            bool
	safetySettings []safetySetting
}

var _ ai.Adapter = (*Adapter)(nil)

// Option configures an Adapter.
type Option func(*Adapter)

// WithAPIKey sets the API key, overriding GEMINI_API_KEY.
func WithAPIKey(apiKey string) Option {
	return func(a *Adapter) { a.apiKey = apiKey }
}

// WithBaseURL sets the API root, overriding GEMINI_API_BASE_URL.
func WithBaseURL(baseURL string) Option {
	return func(a *Adapter) {
		if baseURL != "" {
			a.baseURL = baseURL
		}
	}
}

// WithAPIVersion selects the API version path segment, e.g. "v1".
func WithAPIVersion(version string) Option {
	return func(a *Adapter) {
		if version != "" {
			a.apiVersion = version
		}
	}
}

// WithDefaultModel sets the model used when a request leaves Model empty.
func WithDefaultModel(model string) Option {
	return func(a *Adapter) {
		if model != "" {
			a.defaultModel = model
		}
	}
}

// WithAuthMode selects header or query-parameter authentication.
func WithAuthMode(mode AuthMode) Option {
	return func(a *Adapter) { a.authMode = mode }
}

// WithSSE makes streaming requests use alt=sse and the event-stream framer
// instead of the streamed JSON array.
func WithSSE(enabled bool) Option {
	return func(a *Adapter) { a.sse = enabled }
}

// WithSafetySettings attaches safety thresholds to every generation request.
func WithSafetySettings(settings ...SafetySetting) Option {
	return func(a *Adapter) {
		a.safetySettings = make([]safetySetting, 0, len(settings))
		for _, s := range settings {
			a.safetySettings = append(a.safetySettings, safetySetting(s))
		}
	}
}

// New creates a Gemini adapter with defaults taken from the environment.
// Environment variables:
//   - GEMINI_API_KEY: API key for authentication
//   - GEMINI_API_BASE_URL: Base URL for API (optional, defaults to Google's API)
//
// It fails with ai.ErrMissingAPIKey when no key is configured.
func New(opts ...Option) (*Adapter, error) {
	a := &Adapter{
		apiKey:       os.Getenv("GEMINI_API_KEY"),
		baseURL:      utils.FirstNonEmpty(os.Getenv("GEMINI_API_BASE_URL"), defaultBaseURL),
		apiVersion:   defaultAPIVersion,
		defaultModel: defaultModel,
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.apiKey == "" {
		return nil, fmt.Errorf("%s: %w (set GEMINI_API_KEY)", providerName, ai.ErrMissingAPIKey)
	}
	a.baseURL = strings.TrimRight(a.baseURL, "/")
	return a, nil
}

// Name implements ai.Adapter.
func (a *Adapter) Name() string { return providerName }

// DefaultModel implements ai.Adapter.
func (a *Adapter) DefaultModel() string { return a.defaultModel }

// StreamsSSE reports whether streaming uses alt=sse.
func (a *Adapter) StreamsSSE() bool { return a.sse }

// String describes the adapter without revealing the API key.
func (a *Adapter) String() string {
	return fmt.Sprintf("gemini.Adapter{baseURL: %q, apiVersion: %q, defaultModel: %q, apiKey: %q}",
		a.baseURL, a.apiVersion, a.defaultModel, redact(a.apiKey))
}

// BuildGenerate implements ai.Adapter.
func (a *Adapter) BuildGenerate(req *ai.GenerationRequest, stream bool) (*transport.Request, []ai.Warning, error) {
	modelID := modelName(ai.ModelOrDefault(a, req))
	body, warnings := toWire(req)
	if len(body.Contents) == 0 {
		return nil, nil, errNoContents
	}
	body.SafetySettings = a.safetySettings

	method := "generateContent"
	query := url.Values{}
	if stream {
		method = "streamGenerateContent"
		if a.sse {
			query.Set("alt", "sse")
		}
	}

	httpReq, err := a.newRequest(http.MethodPost, "models/"+modelID+":"+method, query, body)
	if err != nil {
		return nil, nil, err
	}
	if stream && a.sse {
		httpReq.Header.Set("Accept", "text/event-stream")
	}
	return httpReq, warnings, nil
}

// BuildCountTokens implements ai.Adapter. A request with a system
// instruction is wrapped in a full generateContent request so the
// instruction is counted.
func (a *Adapter) BuildCountTokens(req *ai.GenerationRequest) (*transport.Request, error) {
	modelID := modelName(ai.ModelOrDefault(a, req))
	wire, _ := toWire(req)
	if len(wire.Contents) == 0 {
		return nil, errNoContents
	}

	var body countTokensRequest
	if wire.SystemInstruction != nil {
		body.GenerateContentRequest = &modelGenerateContentRequest{
			Model:                  "models/" + modelID,
			generateContentRequest: wire,
		}
	} else {
		body.Contents = wire.Contents
	}

	return a.newRequest(http.MethodPost, "models/"+modelID+":countTokens", nil, body)
}

// BuildListModels implements ai.Adapter.
func (a *Adapter) BuildListModels(pageToken string) (*transport.Request, error) {
	query := url.Values{}
	query.Set("pageSize", strconv.Itoa(listPageSize))
	if pageToken != "" {
		query.Set("pageToken", pageToken)
	}
	return a.newRequest(http.MethodGet, "models", query, nil)
}

// BuildGetModel implements ai.Adapter.
func (a *Adapter) BuildGetModel(id string) (*transport.Request, error) {
	if id == "" {
		return nil, &ai.ValidationError{Field: "model", Reason: "must not be empty"}
	}
	return a.newRequest(http.MethodGet, "models/"+modelName(id), nil, nil)
}

// NewStreamParser implements ai.Adapter.
func (a *Adapter) NewStreamParser() ai.StreamParser {
	return newStreamParser(a.sse)
}

// newRequest assembles endpoint, auth and body. A nil payload sends no body.
func (a *Adapter) newRequest(method, path string, query url.Values, payload any) (*transport.Request, error) {
	if query == nil {
		query = url.Values{}
	}
	if a.authMode == AuthQuery {
		query.Set("key", a.apiKey)
	}

	endpoint := a.baseURL + "/" + a.apiVersion + "/" + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var (
		req *transport.Request
		err error
	)
	if payload == nil {
		req = transport.NewRequest(method, endpoint, nil)
	} else if req, err = transport.NewJSONRequest(method, endpoint, payload); err != nil {
		return nil, fmt.Errorf("%s: %w", providerName, err)
	}

	if a.authMode == AuthHeader {
		req.Header.Set(apiKeyHeader, a.apiKey)
	}
	return req, nil
}

// modelName strips the "models/" resource prefix, if any.
func modelName(id string) string {
	return strings.TrimPrefix(id, "models/")
}

func redact(key string) string {
	if key == "" {
		return ""
	}
	return "***redacted***"
}

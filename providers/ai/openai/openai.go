package openai

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/leofalp/unillm/internal/utils"
	"github.com/leofalp/unillm/providers/ai"
	"github.com/leofalp/unillm/providers/transport"
)

const (
	providerName      = "openai"
	defaultBaseURL    = "https://api.openai.com"
	defaultAPIVersion = "v1"
	defaultModel      = "gpt-4o-mini"

	chatCompletionsEndpoint = "/chat/completions"
	responsesEndpoint       = "/responses"
	inputTokensEndpoint     = "/responses/input_tokens"
	modelsEndpoint          = "/models"
)

// Adapter implements ai.Adapter for the OpenAI API. It is immutable once
// built and safe for concurrent use.
type Adapter struct {
	apiKey       string
	baseURL      string
	apiVersion   string
	defaultModel string
	organization string
	project      string
	responses    bool
}

var _ ai.Adapter = (*Adapter)(nil)

// Option configures an Adapter.
type Option func(*Adapter)

// WithAPIKey sets the API key, overriding OPENAI_API_KEY.
func WithAPIKey(apiKey string) Option {
	return func(a *Adapter) { a.apiKey = apiKey }
}

// WithBaseURL sets the API root, overriding OPENAI_API_BASE_URL. A root that
// already ends in the API version is accepted as-is.
func WithBaseURL(baseURL string) Option {
	return func(a *Adapter) {
		if baseURL != "" {
			a.baseURL = baseURL
		}
	}
}

// WithAPIVersion selects the API version path segment.
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

// WithOrganization sends the OpenAI-Organization header.
func WithOrganization(org string) Option {
	return func(a *Adapter) { a.organization = org }
}

// WithProject sends the OpenAI-Project header.
func WithProject(project string) Option {
	return func(a *Adapter) { a.project = project }
}

// WithResponsesAPI sends generations to /v1/responses instead of Chat
// Completions. The Responses API returns a single candidate.
func WithResponsesAPI(enabled bool) Option {
	return func(a *Adapter) { a.responses = enabled }
}

// New creates an OpenAI adapter with defaults taken from the environment.
// Environment variables:
//   - OPENAI_API_KEY: API key for authentication
//   - OPENAI_API_BASE_URL: Base URL for API (optional, defaults to OpenAI's API)
//
// It fails with ai.ErrMissingAPIKey when no key is configured.
func New(opts ...Option) (*Adapter, error) {
	a := &Adapter{
		apiKey:       os.Getenv("OPENAI_API_KEY"),
		baseURL:      utils.FirstNonEmpty(os.Getenv("OPENAI_API_BASE_URL"), defaultBaseURL),
		apiVersion:   defaultAPIVersion,
		defaultModel: defaultModel,
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.apiKey == "" {
		return nil, fmt.Errorf("%s: %w (set OPENAI_API_KEY)", providerName, ai.ErrMissingAPIKey)
	}
	a.baseURL = strings.TrimRight(a.baseURL, "/")
	return a, nil
}

// Name implements ai.Adapter.
func (a *Adapter) Name() string { return providerName }

// DefaultModel implements ai.Adapter.
func (a *Adapter) DefaultModel() string { return a.defaultModel }

// UsesResponsesAPI reports whether generations go to /v1/responses.
func (a *Adapter) UsesResponsesAPI() bool { return a.responses }

// String describes the adapter without revealing the API key.
func (a *Adapter) String() string {
	key := ""
	if a.apiKey != "" {
		key = "***redacted***"
	}
	return fmt.Sprintf("openai.Adapter{baseURL: %q, apiVersion: %q, defaultModel: %q, responses: %t, apiKey: %q}",
		a.baseURL, a.apiVersion, a.defaultModel, a.responses, key)
}

// BuildGenerate implements ai.Adapter.
func (a *Adapter) BuildGenerate(req *ai.GenerationRequest, stream bool) (*transport.Request, []ai.Warning, error) {
	var (
		path     = chatCompletionsEndpoint
		body     any
		warnings []ai.Warning
	)
	if a.responses {
		path = responsesEndpoint
		body, warnings = toResponses(ai.ModelOrDefault(a, req), req, stream)
	} else {
		body, warnings = toWire(ai.ModelOrDefault(a, req), req, stream)
	}

	httpReq, err := a.newRequest(http.MethodPost, path, body)
	if err != nil {
		return nil, nil, err
	}
	if stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	}
	return httpReq, warnings, nil
}

// BuildCountTokens implements ai.Adapter.
func (a *Adapter) BuildCountTokens(req *ai.GenerationRequest) (*transport.Request, error) {
	return a.newRequest(http.MethodPost, inputTokensEndpoint, toInputTokens(ai.ModelOrDefault(a, req), req))
}

// BuildListModels implements ai.Adapter. The endpoint is not paginated, so
// pageToken is ignored.
func (a *Adapter) BuildListModels(string) (*transport.Request, error) {
	return a.newRequest(http.MethodGet, modelsEndpoint, nil)
}

// BuildGetModel implements ai.Adapter.
func (a *Adapter) BuildGetModel(id string) (*transport.Request, error) {
	if id == "" {
		return nil, &ai.ValidationError{Field: "model", Reason: "must not be empty"}
	}
	return a.newRequest(http.MethodGet, modelsEndpoint+"/"+url.PathEscape(id), nil)
}

// NewStreamParser implements ai.Adapter.
func (a *Adapter) NewStreamParser() ai.StreamParser {
	if a.responses {
		return newResponsesStreamParser()
	}
	return newStreamParser()
}

func (a *Adapter) endpoint(path string) string {
	root := a.baseURL
	if !strings.HasSuffix(root, "/"+a.apiVersion) {
		root += "/" + a.apiVersion
	}
	return root + path
}

func (a *Adapter) newRequest(method, path string, payload any) (*transport.Request, error) {
	var (
		req *transport.Request
		err error
	)
	if payload == nil {
		req = transport.NewRequest(method, a.endpoint(path), nil)
	} else if req, err = transport.NewJSONRequest(method, a.endpoint(path), payload); err != nil {
		return nil, fmt.Errorf("%s: %w", providerName, err)
	}

	req.Header.Set("Authorization", "Bearer "+a.apiKey)
	if a.organization != "" {
		req.Header.Set("OpenAI-Organization", a.organization)
	}
	if a.project != "" {
		req.Header.Set("OpenAI-Project", a.project)
	}
	return req, nil
}

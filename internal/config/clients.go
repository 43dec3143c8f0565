package config

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/leofalp/unillm/core/client"
	"github.com/leofalp/unillm/core/client/middleware"
	"github.com/leofalp/unillm/providers/ai"
	"github.com/leofalp/unillm/providers/ai/gemini"
	"github.com/leofalp/unillm/providers/ai/openai"
	"github.com/leofalp/unillm/providers/observability/slogobs"
	"github.com/leofalp/unillm/providers/transport"
)

// NewAdapter builds the adapter for a configured provider.
func (c *Config) NewAdapter(name string) (ai.Adapter, error) {
	switch name {
	case ProviderGemini:
		g := c.Providers.Gemini
		if g == nil {
			break
		}
		auth, err := g.authMode()
		if err != nil {
			return nil, err
		}
		sse, err := g.sse()
		if err != nil {
			return nil, err
		}

		opts := []gemini.Option{gemini.WithAuthMode(auth), gemini.WithSSE(sse)}
		if g.APIKey != "" {
			opts = append(opts, gemini.WithAPIKey(g.APIKey))
		}
		if g.BaseURL != "" {
			opts = append(opts, gemini.WithBaseURL(g.BaseURL))
		}
		if g.APIVersion != "" {
			opts = append(opts, gemini.WithAPIVersion(g.APIVersion))
		}
		if g.DefaultModel != "" {
			opts = append(opts, gemini.WithDefaultModel(g.DefaultModel))
		}
		if len(g.SafetySettings) > 0 {
			opts = append(opts, gemini.WithSafetySettings(g.SafetySettings...))
		}
		return gemini.New(opts...)

	case ProviderOpenAI:
		o := c.Providers.OpenAI
		if o == nil {
			break
		}

		responses, err := o.responsesAPI()
		if err != nil {
			return nil, err
		}

		opts := []openai.Option{openai.WithResponsesAPI(responses)}
		if o.APIKey != "" {
			opts = append(opts, openai.WithAPIKey(o.APIKey))
		}
		if o.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(o.BaseURL))
		}
		if o.APIVersion != "" {
			opts = append(opts, openai.WithAPIVersion(o.APIVersion))
		}
		if o.DefaultModel != "" {
			opts = append(opts, openai.WithDefaultModel(o.DefaultModel))
		}
		if o.Organization != "" {
			opts = append(opts, openai.WithOrganization(o.Organization))
		}
		if o.Project != "" {
			opts = append(opts, openai.WithProject(o.Project))
		}
		return openai.New(opts...)
	}

	return nil, fmt.Errorf("%w: %q (configured: %v)", ErrUnknownProvider, name, c.ProviderNames())
}

// NewTransport builds the outbound HTTP transport.
func (c *Config) NewTransport() *transport.HTTP {
	opts := []transport.Option{
		transport.WithHTTPClient(&http.Client{Timeout: c.HTTP.Timeout}),
	}
	if c.HTTP.UserAgent != "" {
		opts = append(opts, transport.WithUserAgent(c.HTTP.UserAgent))
	}
	return transport.NewHTTP(opts...)
}

// NewObserver builds the slog observer described by the log section,
// writing to out, or to stderr when out is nil.
func (c *Config) NewObserver(out io.Writer) *slogobs.Observer {
	if out == nil {
		out = os.Stderr
	}
	level, err := slogobs.ParseLevel(c.Log.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	return slogobs.New(
		slogobs.WithLevel(level),
		slogobs.WithFormat(slogobs.ParseFormat(c.Log.Format)),
		slogobs.WithOutput(out),
	)
}

// Middlewares returns the middleware chain the configuration enables, in
// order: request logging, then retry.
func (c *Config) Middlewares(logger *slog.Logger) []client.MiddlewareConfig {
	var mws []client.MiddlewareConfig

	if level, _ := requestLogLevel(c.Log.Requests); level != nil && logger != nil {
		mws = append(mws, middleware.NewLoggingMiddleware(logger, *level))
	}
	if c.HTTP.MaxRetries > 0 {
		mws = append(mws, middleware.NewRetryMiddleware(middleware.RetryConfig{MaxRetries: c.HTTP.MaxRetries}))
	}
	return mws
}

// NewClient builds a client for a configured provider using the
// configured transport and middleware. opts are applied after those
// defaults, so they can replace the transport or add an observer.
func (c *Config) NewClient(name string, opts ...client.Option) (*client.Client, error) {
	adapter, err := c.NewAdapter(name)
	if err != nil {
		return nil, err
	}

	base := []client.Option{client.WithTransport(c.NewTransport())}
	if mws := c.Middlewares(slog.Default()); len(mws) > 0 {
		base = append(base, client.WithMiddleware(mws...))
	}
	return client.New(adapter, append(base, opts...)...)
}

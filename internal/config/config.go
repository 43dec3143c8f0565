package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/leofalp/unillm/core/client/middleware"
	"github.com/leofalp/unillm/providers/ai/gemini"
	"github.com/leofalp/unillm/providers/observability/slogobs"
)

// Provider names accepted in the providers section and by NewClient.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// DefaultEnvFile is loaded by Load when present.
const DefaultEnvFile = ".env"

const (
	defaultAddr              = ":8080"
	defaultReadHeaderTimeout = 10 * time.Second
	defaultRequestTimeout    = 5 * time.Minute
	defaultBodyLimit         = "8M"
)

// ErrUnknownProvider is returned for a provider name that is neither
// supported nor configured.
var ErrUnknownProvider = errors.New("unknown provider")

// Config is the complete application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	HTTP      HTTPConfig      `yaml:"http"`
	Providers ProvidersConfig `yaml:"providers"`
}

// ServerConfig configures the gateway listener.
type ServerConfig struct {
	Addr              string        `yaml:"addr"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	// RequestTimeout bounds one generation, including the whole stream.
	// Zero disables it.
	RequestTimeout time.Duration `yaml:"request_timeout"`
	// BodyLimit caps request bodies, in echo's size syntax ("8M").
	BodyLimit string `yaml:"body_limit"`
}

// LogConfig selects the slog observer's level and format. Requests, when
// set to minimal, standard or verbose, adds the request logging middleware.
type LogConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Requests string `yaml:"requests"`
}

// HTTPConfig tunes the outbound transport.
type HTTPConfig struct {
	// Timeout is the http.Client timeout. It also bounds streams, so it is
	// zero (disabled) unless set.
	Timeout time.Duration `yaml:"timeout"`
	// MaxRetries enables the retry middleware for buffered generations.
	MaxRetries int `yaml:"max_retries"`
	// UserAgent overrides the transport's User-Agent.
	UserAgent string `yaml:"user_agent"`
}

// ProvidersConfig lists configured providers. A nil section is not
// configured.
type ProvidersConfig struct {
	Gemini *GeminiConfig `yaml:"gemini"`
	OpenAI *OpenAIConfig `yaml:"openai"`
}

// GeminiConfig configures the Gemini adapter.
type GeminiConfig struct {
	APIKey       string `yaml:"api_key"`
	BaseURL      string `yaml:"base_url"`
	APIVersion   string `yaml:"api_version"`
	DefaultModel string `yaml:"default_model"`
	// Auth is "header" (default) or "query".
	Auth string `yaml:"auth"`
	// StreamFormat is "json" (default, a streamed JSON array) or "sse".
	StreamFormat   string                 `yaml:"stream_format"`
	SafetySettings []gemini.SafetySetting `yaml:"safety_settings"`
}

// OpenAIConfig configures the OpenAI adapter.
type OpenAIConfig struct {
	APIKey       string `yaml:"api_key"`
	BaseURL      string `yaml:"base_url"`
	APIVersion   string `yaml:"api_version"`
	DefaultModel string `yaml:"default_model"`
	Organization string `yaml:"organization"`
	Project      string `yaml:"project"`
	// API is "chat_completions" (default) or "responses".
	API string `yaml:"api"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:              defaultAddr,
			ReadHeaderTimeout: defaultReadHeaderTimeout,
			RequestTimeout:    defaultRequestTimeout,
			BodyLimit:         defaultBodyLimit,
		},
		Log: LogConfig{
			Level:  "info",
			Format: string(slogobs.FormatCompact),
		},
	}
}

// Load builds the configuration. The env files (DefaultEnvFile when none
// are given) are loaded first without overriding variables already set; a
// missing file is ignored. The YAML file at path, if path is not empty, is
// read after ${VAR} expansion. Environment overrides are applied last and
// the result is validated.
func Load(path string, envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{DefaultEnvFile}
	}
	for _, file := range envFiles {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load env file %q: %w", file, err)
		}
	}

	cfg := Default()
	if path != "" {
		if err := cfg.readFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) readFile(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return fmt.Errorf("read config file %q: %w", absPath, err)
	}

	decoder := yaml.NewDecoder(bytes.NewReader([]byte(os.ExpandEnv(string(data)))))
	decoder.KnownFields(true)
	if err := decoder.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config file %q: %w", absPath, err)
	}
	return nil
}

// applyEnv overlays well-known environment variables. Setting a provider's
// API key is enough to configure that provider.
func (c *Config) applyEnv() {
	if key, baseURL := os.Getenv("GEMINI_API_KEY"), os.Getenv("GEMINI_API_BASE_URL"); key != "" || baseURL != "" {
		if c.Providers.Gemini == nil {
			c.Providers.Gemini = &GeminiConfig{}
		}
		setIfNotEmpty(&c.Providers.Gemini.APIKey, key)
		setIfNotEmpty(&c.Providers.Gemini.BaseURL, baseURL)
	}

	if key, baseURL := os.Getenv("OPENAI_API_KEY"), os.Getenv("OPENAI_API_BASE_URL"); key != "" || baseURL != "" {
		if c.Providers.OpenAI == nil {
			c.Providers.OpenAI = &OpenAIConfig{}
		}
		setIfNotEmpty(&c.Providers.OpenAI.APIKey, key)
		setIfNotEmpty(&c.Providers.OpenAI.BaseURL, baseURL)
	}

	setIfNotEmpty(&c.Log.Level, os.Getenv("UNILLM_LOG_LEVEL"))
	setIfNotEmpty(&c.Log.Format, os.Getenv("UNILLM_LOG_FORMAT"))
	setIfNotEmpty(&c.Server.Addr, os.Getenv("UNILLM_ADDR"))
}

func setIfNotEmpty(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}

// Validate performs sanity checks on the configuration.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.Addr) == "" {
		return errors.New("server.addr must not be empty")
	}
	if c.Server.ReadHeaderTimeout < 0 || c.Server.RequestTimeout < 0 || c.HTTP.Timeout < 0 {
		return errors.New("timeouts must not be negative")
	}
	if c.HTTP.MaxRetries < 0 {
		return fmt.Errorf("http.max_retries must not be negative, got %d", c.HTTP.MaxRetries)
	}

	if _, err := slogobs.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch strings.ToLower(c.Log.Format) {
	case "", string(slogobs.FormatCompact), string(slogobs.FormatJSON):
	default:
		return fmt.Errorf("log.format must be %q or %q, got %q", slogobs.FormatCompact, slogobs.FormatJSON, c.Log.Format)
	}
	if _, err := requestLogLevel(c.Log.Requests); err != nil {
		return err
	}

	if g := c.Providers.Gemini; g != nil {
		if _, err := g.authMode(); err != nil {
			return err
		}
		if _, err := g.sse(); err != nil {
			return err
		}
	}
	if o := c.Providers.OpenAI; o != nil {
		if _, err := o.responsesAPI(); err != nil {
			return err
		}
	}
	return nil
}

// ProviderNames returns the configured providers, sorted.
func (c *Config) ProviderNames() []string {
	var names []string
	if c.Providers.Gemini != nil {
		names = append(names, ProviderGemini)
	}
	if c.Providers.OpenAI != nil {
		names = append(names, ProviderOpenAI)
	}
	sort.Strings(names)
	return names
}

// HasProvider reports whether name is configured.
func (c *Config) HasProvider(name string) bool {
	for _, n := range c.ProviderNames() {
		if n == name {
			return true
		}
	}
	return false
}

func (g *GeminiConfig) authMode() (gemini.AuthMode, error) {
	switch strings.ToLower(g.Auth) {
	case "", "header":
		return gemini.AuthHeader, nil
	case "query":
		return gemini.AuthQuery, nil
	default:
		return gemini.AuthHeader, fmt.Errorf("providers.gemini.auth must be \"header\" or \"query\", got %q", g.Auth)
	}
}

func (g *GeminiConfig) sse() (bool, error) {
	switch strings.ToLower(g.StreamFormat) {
	case "", "json":
		return false, nil
	case "sse":
		return true, nil
	default:
		return false, fmt.Errorf("providers.gemini.stream_format must be \"json\" or \"sse\", got %q", g.StreamFormat)
	}
}

func (o *OpenAIConfig) responsesAPI() (bool, error) {
	switch strings.ToLower(o.API) {
	case "", "chat_completions":
		return false, nil
	case "responses":
		return true, nil
	default:
		return false, fmt.Errorf("providers.openai.api must be \"chat_completions\" or \"responses\", got %q", o.API)
	}
}

// requestLogLevel maps log.requests to a logging middleware level. A nil
// level means request logging is off.
func requestLogLevel(name string) (*middleware.LogLevel, error) {
	var l middleware.LogLevel
	switch strings.ToLower(name) {
	case "", "off", "none":
		return nil, nil
	case "minimal":
		l = middleware.LogLevelMinimal
	case "standard":
		l = middleware.LogLevelStandard
	case "verbose":
		l = middleware.LogLevelVerbose
	default:
		return nil, fmt.Errorf("log.requests must be off, minimal, standard or verbose, got %q", name)
	}
	return &l, nil
}

package cli

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/leofalp/unillm/core/client"
	"github.com/leofalp/unillm/core/parse"
	"github.com/leofalp/unillm/internal/config"
	"github.com/leofalp/unillm/internal/utils"
	"github.com/leofalp/unillm/providers/ai"
	"github.com/leofalp/unillm/providers/observability/slogobs"
)

// maxRequestFile bounds -request files and a prompt read from stdin.
const maxRequestFile = 16 << 20

// commonFlags are shared by every command that talks to a provider.
type commonFlags struct {
	configPath string
	envFile    string
	provider   string
	model      string
	json       bool
}

func (f *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.configPath, "config", "", "path to a YAML configuration file")
	fs.StringVar(&f.envFile, "env", config.DefaultEnvFile, "dotenv file loaded before the configuration")
	fs.StringVar(&f.provider, "provider", "", "provider name (gemini or openai); optional when only one is configured")
	fs.StringVar(&f.model, "model", "", "model id; the provider default when empty")
	fs.BoolVar(&f.json, "json", false, "print results as JSON")
}

// requestFlags describe the unified request of generate, stream and tokens.
type requestFlags struct {
	commonFlags
	prompt      string
	system      string
	requestFile string
	temperature *float64
	topP        *float64
	maxTokens   int
	n           int
	stop        []string
}

func (f *requestFlags) register(fs *flag.FlagSet) {
	f.commonFlags.register(fs)
	fs.StringVar(&f.prompt, "prompt", "", `user prompt; "-" reads it from stdin`)
	fs.StringVar(&f.system, "system", "", "system instruction")
	fs.StringVar(&f.requestFile, "request", "", "JSON file holding a full unified request")
	fs.Func("temperature", "sampling temperature", floatFlag(&f.temperature))
	fs.Func("top-p", "nucleus sampling probability", floatFlag(&f.topP))
	fs.IntVar(&f.maxTokens, "max-tokens", 0, "maximum output tokens")
	fs.IntVar(&f.n, "n", 0, "number of candidates")
	fs.Func("stop", "stop sequence (repeatable)", func(s string) error {
		f.stop = append(f.stop, s)
		return nil
	})
}

func floatFlag(dst **float64) func(string) error {
	return func(s string) error {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		*dst = &v
		return nil
	}
}

// parseFlags parses args. ok is false when the command should stop, either
// on err or after -h printed the usage.
func parseFlags(fs *flag.FlagSet, args []string) (ok bool, err error) {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return false, nil
		}
		return false, fmt.Errorf("parse %s flags: %w", fs.Name(), err)
	}
	if fs.NArg() > 0 {
		return false, fmt.Errorf("%s: unexpected arguments %v", fs.Name(), fs.Args())
	}
	return true, nil
}

// buildRequest assembles the unified request. A -request file is the
// starting point; -prompt and -system append messages and the remaining
// flags override its settings.
func (c *CLI) buildRequest(f *requestFlags) (*ai.GenerationRequest, error) {
	req := &ai.GenerationRequest{}
	if f.requestFile != "" {
		data, err := readCappedFile(f.requestFile)
		if err != nil {
			return nil, err
		}
		parsed, err := parse.JSONAs[ai.GenerationRequest](data)
		if err != nil {
			return nil, fmt.Errorf("request file %q: %w", f.requestFile, err)
		}
		req = &parsed
	}

	if f.system != "" {
		req.Messages = append([]ai.Message{{Role: ai.RoleSystem, Parts: []ai.Part{ai.TextPart(f.system)}}}, req.Messages...)
	}

	prompt := f.prompt
	if prompt == "-" {
		data, err := utils.ReadCapped(c.stdin, maxRequestFile)
		if err != nil {
			return nil, fmt.Errorf("read prompt from stdin: %w", err)
		}
		prompt = string(data)
	}
	if prompt != "" {
		req.Messages = append(req.Messages, ai.Message{Role: ai.RoleUser, Parts: []ai.Part{ai.TextPart(prompt)}})
	}
	if len(req.Messages) == 0 {
		return nil, errors.New("a prompt is required: use -prompt or -request")
	}

	if f.model != "" {
		req.Model = f.model
	}
	f.applyConfig(req)

	if err := req.Validate(); err != nil {
		return nil, err
	}
	return req, nil
}

func (f *requestFlags) applyConfig(req *ai.GenerationRequest) {
	if f.temperature == nil && f.topP == nil && f.maxTokens == 0 && f.n == 0 && len(f.stop) == 0 {
		return
	}
	if req.Config == nil {
		req.Config = &ai.GenerationConfig{}
	}
	cfg := req.Config
	if f.temperature != nil {
		cfg.Temperature = f.temperature
	}
	if f.topP != nil {
		cfg.TopP = f.topP
	}
	if f.maxTokens != 0 {
		cfg.MaxOutputTokens = utils.Ptr(f.maxTokens)
	}
	if f.n != 0 {
		cfg.CandidateCount = utils.Ptr(f.n)
	}
	if len(f.stop) > 0 {
		cfg.StopSequences = f.stop
	}
}

func readCappedFile(path string) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return utils.ReadCapped(file, maxRequestFile)
}

// loadConfig reads the configuration and installs the configured logger,
// writing to stderr, as the slog default.
func (c *CLI) loadConfig(f *commonFlags) (*config.Config, *slogobs.Observer, error) {
	var envFiles []string
	if f.envFile != "" {
		envFiles = append(envFiles, f.envFile)
	}
	cfg, err := config.Load(f.configPath, envFiles...)
	if err != nil {
		return nil, nil, err
	}
	observer := cfg.NewObserver(c.stderr)
	slog.SetDefault(observer.Logger())
	return cfg, observer, nil
}

// open builds the client for the selected provider.
func (c *CLI) open(f *commonFlags) (*client.Client, error) {
	cfg, observer, err := c.loadConfig(f)
	if err != nil {
		return nil, err
	}

	name, err := selectProvider(cfg, f.provider)
	if err != nil {
		return nil, err
	}
	return cfg.NewClient(name, client.WithObserver(observer))
}

func selectProvider(cfg *config.Config, name string) (string, error) {
	names := cfg.ProviderNames()
	switch {
	case name != "":
		if !cfg.HasProvider(name) {
			return "", fmt.Errorf("%w: %q (configured: %v)", config.ErrUnknownProvider, name, names)
		}
		return name, nil
	case len(names) == 1:
		return names[0], nil
	case len(names) == 0:
		return "", errors.New("no provider configured: set GEMINI_API_KEY or OPENAI_API_KEY, or use -config")
	default:
		return "", fmt.Errorf("several providers configured %v: choose one with -provider", names)
	}
}

// writeJSON prints v indented.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

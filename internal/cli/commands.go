package cli

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/leofalp/unillm/internal/server"
	"github.com/leofalp/unillm/providers/ai"
)

func (c *CLI) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	return fs
}

func (c *CLI) generate(ctx context.Context, args []string) error {
	var f requestFlags
	fs := c.newFlagSet("generate")
	f.register(fs)
	if ok, err := parseFlags(fs, args); !ok {
		return err
	}

	req, err := c.buildRequest(&f)
	if err != nil {
		return err
	}
	cl, err := c.open(&f.commonFlags)
	if err != nil {
		return err
	}

	resp, err := cl.Generate(ctx, req)
	if err != nil {
		return err
	}
	if f.json {
		return writeJSON(c.stdout, resp)
	}

	c.printWarnings(resp.Warnings)
	for _, cand := range resp.Candidates {
		if len(resp.Candidates) > 1 {
			fmt.Fprintf(c.stdout, "--- candidate %d (%s)\n", cand.Index, cand.FinishReason)
		}
		fmt.Fprintln(c.stdout, cand.Text)
	}
	c.printTokenUsage(resp.Model, resp.Usage)
	return nil
}

// stream prints the first candidate's text as it arrives and the other
// candidates once the stream completes. With -json every chunk is printed
// as one JSON line.
func (c *CLI) stream(ctx context.Context, args []string) error {
	var f requestFlags
	fs := c.newFlagSet("stream")
	f.register(fs)
	if ok, err := parseFlags(fs, args); !ok {
		return err
	}

	req, err := c.buildRequest(&f)
	if err != nil {
		return err
	}
	cl, err := c.open(&f.commonFlags)
	if err != nil {
		return err
	}

	stream, err := cl.GenerateStreamed(ctx, req)
	if err != nil {
		return err
	}
	defer stream.Close()
	c.printWarnings(stream.Warnings)

	acc := ai.NewAccumulator()
	for chunk, err := range stream.Iter() {
		if err != nil {
			return err
		}
		acc.Add(chunk)
		switch {
		case f.json:
			if err := writeJSONLine(c.stdout, chunk); err != nil {
				return err
			}
		case chunk.CandidateIndex == 0 && chunk.Delta != "":
			if _, err := io.WriteString(c.stdout, chunk.Delta); err != nil {
				return err
			}
		}
	}
	if f.json {
		return nil
	}

	resp := acc.Response()
	fmt.Fprintln(c.stdout)
	for _, cand := range resp.Candidates[min(1, len(resp.Candidates)):] {
		fmt.Fprintf(c.stdout, "--- candidate %d (%s)\n%s\n", cand.Index, cand.FinishReason, cand.Text)
	}
	c.printTokenUsage(req.Model, acc.Usage())
	return nil
}

func (c *CLI) tokens(ctx context.Context, args []string) error {
	var f requestFlags
	fs := c.newFlagSet("tokens")
	f.register(fs)
	if ok, err := parseFlags(fs, args); !ok {
		return err
	}

	req, err := c.buildRequest(&f)
	if err != nil {
		return err
	}
	cl, err := c.open(&f.commonFlags)
	if err != nil {
		return err
	}

	count, err := cl.CountTokens(ctx, req)
	if err != nil {
		return err
	}
	if f.json {
		return writeJSON(c.stdout, count)
	}
	_, err = fmt.Fprintf(c.stdout, "%d tokens (%s)\n", count.Total, count.Model)
	return err
}

func (c *CLI) models(ctx context.Context, args []string) error {
	var f commonFlags
	var id string
	fs := c.newFlagSet("models")
	f.register(fs)
	fs.StringVar(&id, "id", "", "describe a single model")
	if ok, err := parseFlags(fs, args); !ok {
		return err
	}

	cl, err := c.open(&f)
	if err != nil {
		return err
	}

	if id != "" {
		info, err := cl.GetModel(ctx, id)
		if err != nil {
			return err
		}
		if f.json {
			return writeJSON(c.stdout, info)
		}
		return c.printModels([]ai.ModelInfo{*info})
	}

	models, err := cl.ListModels(ctx)
	if err != nil {
		return err
	}
	if f.json {
		return writeJSON(c.stdout, models)
	}
	return c.printModels(models)
}

func (c *CLI) serve(ctx context.Context, args []string) error {
	var f commonFlags
	var addr string
	fs := c.newFlagSet("serve")
	f.register(fs)
	fs.StringVar(&addr, "addr", "", "override server.addr")
	if ok, err := parseFlags(fs, args); !ok {
		return err
	}

	cfg, observer, err := c.loadConfig(&f)
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}

	srv, err := server.NewFromConfig(cfg, observer, observer.Logger())
	if err != nil {
		return err
	}
	return srv.Run(ctx)
}

func (c *CLI) printModels(models []ai.ModelInfo) error {
	tw := tabwriter.NewWriter(c.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCONTEXT\tOUTPUT\tSTREAMING")
	for _, m := range models {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", m.ID, m.DisplayName,
			optionalInt(m.ContextWindow), optionalInt(m.OutputTokenLimit), streaming(m.Capabilities))
	}
	return tw.Flush()
}

func optionalInt(v *int) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprint(*v)
}

func streaming(caps *ai.Capabilities) string {
	switch {
	case caps == nil:
		return "-"
	case caps.Streaming:
		return "yes"
	default:
		return "no"
	}
}

func (c *CLI) printWarnings(warnings []ai.Warning) {
	for _, w := range warnings {
		fmt.Fprintf(c.stderr, "warning: %s\n", w)
	}
}

func (c *CLI) printTokenUsage(model string, usage *ai.Usage) {
	if usage == nil {
		return
	}
	fmt.Fprintf(c.stderr, "tokens: prompt=%d completion=%d total=%d", usage.PromptTokens, usage.CompletionTokens, usage.TotalTokens)
	if model != "" {
		fmt.Fprintf(c.stderr, " model=%s", model)
	}
	fmt.Fprintln(c.stderr)
}

func writeJSONLine(w io.Writer, v any) error {
	return json.NewEncoder(w).Encode(v)
}

// Package cli implements the unillm command line: one-shot and streamed
// generation, token counting, model listing and the HTTP gateway.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
)

// Version is stamped at build time with -ldflags "-X".
var Version = "dev"

const usage = `unillm talks to Gemini and OpenAI through one request format.

Usage:
  unillm <command> [flags]

Commands:
  generate   Generate a response
  stream     Stream a response as it is produced
  tokens     Count the tokens of a request
  models     List models, or describe one with -id
  serve      Run the HTTP and WebSocket gateway
  version    Print the version
  help       Show this help message

Run "unillm <command> -h" for the flags of a command.`

// CLI holds the streams a command reads from and writes to.
type CLI struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

// New returns a CLI bound to the given streams.
func New(stdin io.Reader, stdout, stderr io.Writer) *CLI {
	return &CLI{stdin: stdin, stdout: stdout, stderr: stderr}
}

// Execute runs the CLI on the process streams.
func Execute(ctx context.Context, args []string) error {
	return New(os.Stdin, os.Stdout, os.Stderr).Execute(ctx, args)
}

// Execute dispatches args[0] to its command.
func (c *CLI) Execute(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return c.printUsage()
	}

	switch args[0] {
	case "generate":
		return c.generate(ctx, args[1:])
	case "stream":
		return c.stream(ctx, args[1:])
	case "tokens":
		return c.tokens(ctx, args[1:])
	case "models":
		return c.models(ctx, args[1:])
	case "serve":
		return c.serve(ctx, args[1:])
	case "version", "-v", "--version":
		_, err := fmt.Fprintf(c.stdout, "unillm %s\n", Version)
		return err
	case "help", "-h", "--help":
		return c.printUsage()
	default:
		return fmt.Errorf("unknown command %q\n\n%s", args[0], usage)
	}
}

func (c *CLI) printUsage() error {
	_, err := fmt.Fprintln(c.stdout, strings.TrimSpace(usage))
	return err
}

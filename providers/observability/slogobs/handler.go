package slogobs

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
)

const (
	ansiReset  = "\033[0m"
	ansiGray   = "\033[90m"
	ansiBlue   = "\033[34m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiRed    = "\033[31m"
)

// NewHandler returns the slog.Handler used for the given format. JSON output
// is slog's own JSON handler with TRACE named properly; compact output is a
// single line per record. colors nil means "detect": on only when output is
// a terminal.
func NewHandler(format Format, level slog.Level, output io.Writer, colors *bool) slog.Handler {
	if output == nil {
		output = os.Stderr
	}

	if format == FormatJSON {
		return slog.NewJSONHandler(output, &slog.HandlerOptions{
			Level: level,
			ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
				if a.Key == slog.LevelKey {
					if lvl, ok := a.Value.Any().(slog.Level); ok {
						return slog.String(slog.LevelKey, LevelName(lvl))
					}
				}
				return a
			},
		})
	}

	useColors := isTerminal(output)
	if colors != nil {
		useColors = *colors
	}
	return &compactHandler{
		shared: &compactShared{output: output},
		level:  level,
		colors: useColors,
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

type compactShared struct {
	mu     sync.Mutex
	output io.Writer
}

type compactHandler struct {
	shared *compactShared
	level  slog.Level
	colors bool
	prefix string
	attrs  []slog.Attr
}

func (h *compactHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *compactHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	b.WriteString(r.Time.Format("15:04:05.000"))
	b.WriteByte(' ')

	name := fmt.Sprintf("%-5s", LevelName(r.Level))
	if h.colors {
		b.WriteString(levelColor(r.Level) + name + ansiReset)
	} else {
		b.WriteString(name)
	}
	b.WriteByte(' ')
	b.WriteString(r.Message)

	for _, a := range h.attrs {
		writeAttr(&b, "", a, h.colors)
	}
	r.Attrs(func(a slog.Attr) bool {
		writeAttr(&b, h.prefix, a, h.colors)
		return true
	})
	b.WriteByte('\n')

	h.shared.mu.Lock()
	defer h.shared.mu.Unlock()
	_, err := io.WriteString(h.shared.output, b.String())
	return err
}

func (h *compactHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append([]slog.Attr{}, h.attrs...)
	for _, a := range attrs {
		a.Key = h.prefix + a.Key
		clone.attrs = append(clone.attrs, a)
	}
	return &clone
}

func (h *compactHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.prefix = h.prefix + name + "."
	return &clone
}

func writeAttr(b *strings.Builder, prefix string, a slog.Attr, colors bool) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		for _, nested := range a.Value.Group() {
			writeAttr(b, prefix+a.Key+".", nested, colors)
		}
		return
	}

	b.WriteByte(' ')
	key := prefix + a.Key
	if colors {
		b.WriteString(ansiGray + key + "=" + ansiReset)
	} else {
		b.WriteString(key + "=")
	}

	value := a.Value.String()
	if value == "" || strings.ContainsAny(value, " \t\n\"=") {
		value = strconv.Quote(value)
	}
	b.WriteString(value)
}

func levelColor(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return ansiRed
	case level >= slog.LevelWarn:
		return ansiYellow
	case level >= slog.LevelInfo:
		return ansiGreen
	case level >= slog.LevelDebug:
		return ansiBlue
	default:
		return ansiGray
	}
}

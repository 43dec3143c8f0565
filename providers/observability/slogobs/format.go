package slogobs

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// Format represents the output format for logs.
type Format string

const (
	// FormatCompact is a single-line, human-oriented format:
	//   15:04:05.000 INFO  client.generate llm.model=gemini-2.0-flash duration=812ms
	FormatCompact Format = "compact"

	// FormatJSON is slog's JSON format, for log aggregation.
	FormatJSON Format = "json"
)

// LevelTrace sits below DEBUG and is only emitted when explicitly enabled.
const LevelTrace = slog.LevelDebug - 4

// ParseFormat parses a format name. Unknown names fall back to FormatCompact.
func ParseFormat(s string) Format {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON
	default:
		return FormatCompact
	}
}

// FormatFromEnv reads UNILLM_LOG_FORMAT, then LOG_FORMAT.
func FormatFromEnv() Format {
	return ParseFormat(firstEnv("UNILLM_LOG_FORMAT", "LOG_FORMAT"))
}

// ParseLevel parses trace, debug, info, warn/warning and error
// (case-insensitive). An empty string is INFO; anything else is an error.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return LevelTrace, nil
	case "DEBUG":
		return slog.LevelDebug, nil
	case "", "INFO":
		return slog.LevelInfo, nil
	case "WARN", "WARNING":
		return slog.LevelWarn, nil
	case "ERROR":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// LevelFromEnv reads UNILLM_LOG_LEVEL, then LOG_LEVEL. Unknown values fall
// back to INFO with a notice on stderr.
func LevelFromEnv() slog.Level {
	raw := firstEnv("UNILLM_LOG_LEVEL", "LOG_LEVEL")
	level, err := ParseLevel(raw)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v, using INFO\n", err)
	}
	return level
}

// LevelName returns the display name of a level, including TRACE.
func LevelName(level slog.Level) string {
	if level <= LevelTrace {
		return "TRACE"
	}
	return level.String()
}

func firstEnv(keys ...string) string {
	for _, key := range keys {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return ""
}

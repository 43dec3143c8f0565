// Package slogobs implements observability.Provider on top of log/slog.
//
// Spans, metric updates and log events all become slog records: span and
// metric records at DEBUG, log events at their own level. Output format and
// level default to the UNILLM_LOG_FORMAT and UNILLM_LOG_LEVEL environment
// variables (compact text and INFO when unset).
package slogobs

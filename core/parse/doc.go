// Package parse decodes hand-written or pasted JSON into unified types.
// Request files given to the CLI and bodies posted to the gateway are often
// edited by hand, so decoding is lenient: markdown code fences are stripped,
// and input that fails strict decoding is passed through jsonrepair (unquoted
// keys, single quotes, trailing commas, missing brackets) before a second
// attempt.
//
// The main entry point is the generic [JSONAs] function; [Request] applies it
// to [ai.GenerationRequest] and validates the result.
package parse

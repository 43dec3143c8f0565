// Package client provides the unillm facade: a Client bound to exactly one
// provider adapter and one transport, exposing Generate, GenerateStreamed,
// CountTokens, ListModels and GetModel over the unified model.
//
// Generation calls pass through an optional middleware chain (see
// [WithMiddleware] and the middleware subpackage) and, when an observer is
// configured with [WithObserver], an observability middleware that records
// spans, metrics and structured logs for every request.
package client

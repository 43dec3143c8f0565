// Package utils holds small helpers shared by the unillm internals: pointer
// helpers for optional request fields, string truncation, a wall-clock timer
// for latency attributes, capped body reads and readable previews of error
// bodies returned by providers and the gateways in front of them.
package utils

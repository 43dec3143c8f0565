// Package framing turns a raw byte stream into an ordered, lazy sequence of
// decoded items.
//
// A [Decoder] owns one buffer and one index cursor into it. Each block read
// from the source is appended; a [Framer] then isolates complete frames from
// the unconsumed region and a caller-supplied [ParseFunc] decodes each frame.
// Nothing is re-parsed: framers keep their scan position between blocks, so
// the produced sequence is identical however the bytes were split.
//
// Three framers cover the wire formats in use: [Lines] for newline-delimited
// JSON, [JSONArray] for a streamed top-level JSON array, and [Events] for
// Server-Sent Events.
package framing

// Package server exposes unillm clients over HTTP. It is a thin echo
// gateway: every route decodes a unified request, calls the client for the
// provider named in the path, and encodes the unified result. Streams are
// relayed as server-sent events or over a WebSocket.
//
// Errors are answered as {"error": {"type", "message"}} with the status
// chosen by [ai.HTTPStatus].
package server

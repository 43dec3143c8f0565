// Package transport is the boundary between the unillm core and the network.
//
// The core only needs two capabilities: send a request and get back a
// buffered body ([Transport]), or send a request and get back a live byte
// stream ([StreamingTransport]). Streaming is optional and detected with a
// type assertion, so a buffered-only transport makes streaming calls fail
// fast instead of misbehaving.
//
// [HTTP] is the default implementation on top of net/http. It never
// interprets status codes and sets no timeouts of its own: deadlines come
// from the caller's context or *http.Client.
package transport

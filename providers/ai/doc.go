// Package ai defines the provider-agnostic surface of unillm: the unified
// request/response model, the error taxonomy, the [Adapter] capability
// interface every provider implements, and [ChunkStream], the lazy sequence
// returned by streaming generation.
//
// Requests flow in as [GenerationRequest] and come back as
// [GenerationResponse]; streaming yields [StreamChunk] values keyed by
// candidate index. Each provider package (gemini, openai) maps these types to
// and from its own wire format, so nothing outside those packages sees
// provider JSON.
package ai

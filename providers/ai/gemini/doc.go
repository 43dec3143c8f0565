// Package gemini implements [ai.Adapter] for Google's Gemini generative
// language API.
//
// It converts the unified [ai.GenerationRequest] into the generateContent
// wire format, maps responses, token counts and model listings back to the
// unified model, and classifies Gemini error envelopes. Streaming uses the
// streamGenerateContent endpoint, which answers with a JSON array whose
// elements arrive over time; [WithSSE] switches to the alt=sse event-stream
// form instead.
//
// The entry point is [New], which reads GEMINI_API_KEY and
// GEMINI_API_BASE_URL from the environment. Options override both.
package gemini

// Package openai implements [ai.Adapter] for the OpenAI API.
//
// Generation uses the Chat Completions endpoint, streamed as Server-Sent
// Events terminated by a [DONE] sentinel. Token counting uses the Responses
// input_tokens endpoint, and model listing uses /models enriched with a
// static table of context windows and capabilities, since the API reports
// neither.
//
// The entry point is [New], which reads OPENAI_API_KEY and
// OPENAI_API_BASE_URL from the environment. Any OpenAI-compatible endpoint
// can be targeted with [WithBaseURL].
package openai

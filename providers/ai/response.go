package ai

// FinishReason is the unified cause for a candidate ending. The empty value
// means the candidate has not finished yet.
type FinishReason string

const (
	FinishStop          FinishReason = "stop"
	FinishLength        FinishReason = "length"
	FinishContentFilter FinishReason = "content_filter"
	FinishError         FinishReason = "error"
	FinishUnknown       FinishReason = "unknown"
)

// Usage is token accounting as reported by the provider.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Candidate is one alternative output.
type Candidate struct {
	Index        int          `json:"index"`
	Text         string       `json:"text"`
	FinishReason FinishReason `json:"finish_reason,omitempty"`
}

// GenerationResponse is the unified result of a non-streaming generation.
// Usage is nil when the provider omitted it.
type GenerationResponse struct {
	ID         string      `json:"id,omitempty"`
	Model      string      `json:"model,omitempty"`
	Candidates []Candidate `json:"candidates"`
	Usage      *Usage      `json:"usage,omitempty"`
	Warnings   []Warning   `json:"warnings,omitempty"`
}

// Text returns the first candidate's text, or "" when there is none.
func (r *GenerationResponse) Text() string {
	if r == nil || len(r.Candidates) == 0 {
		return ""
	}
	return r.Candidates[0].Text
}

// FinishReason returns the first candidate's finish reason.
func (r *GenerationResponse) FinishReason() FinishReason {
	if r == nil || len(r.Candidates) == 0 {
		return ""
	}
	return r.Candidates[0].FinishReason
}

// StreamChunk is a partial update for one candidate. A chunk may carry only
// metadata: FinishReason is set when the candidate completes and Usage only
// on the terminal chunk.
type StreamChunk struct {
	CandidateIndex int          `json:"candidate_index"`
	Delta          string       `json:"delta,omitempty"`
	FinishReason   FinishReason `json:"finish_reason,omitempty"`
	Usage          *Usage       `json:"usage,omitempty"`
}

// Capabilities are the optional feature flags of a model.
type Capabilities struct {
	Streaming bool `json:"streaming"`
	MultiTurn bool `json:"multi_turn"`
	Vision    bool `json:"vision"`
}

// ModelInfo describes a model offered by a provider.
type ModelInfo struct {
	ID               string        `json:"id"`
	DisplayName      string        `json:"display_name"`
	Description      string        `json:"description,omitempty"`
	ContextWindow    *int          `json:"context_window,omitempty"`
	OutputTokenLimit *int          `json:"output_token_limit,omitempty"`
	Capabilities     *Capabilities `json:"capabilities,omitempty"`
}

// TokenCount is a token total for a request. Counts are specific to the
// model they were computed for.
type TokenCount struct {
	Total int    `json:"total"`
	Model string `json:"model"`
}


package openai

import (
	"encoding/json"

	"github.com/leofalp/unillm/providers/ai"
)

// toResponses converts a unified request to a Responses create request.
// The endpoint has no candidate count, top_k or stop sequences, so those
// are dropped with a warning.
func toResponses(model string, req *ai.GenerationRequest, stream bool) (responseCreateRequest, []ai.Warning) {
	input, instructions, warnings := toResponsesInput(req)
	out := responseCreateRequest{
		Model:        model,
		Input:        input,
		Instructions: instructions,
		Stream:       stream,
	}

	cfg := req.Config
	if cfg == nil {
		return out, warnings
	}

	out.MaxOutputTokens = cfg.MaxOutputTokens
	out.Temperature = cfg.Temperature
	out.TopP = cfg.TopP

	if cfg.CandidateCount != nil && *cfg.CandidateCount > 1 {
		warnings = append(warnings, ai.Warning{Field: "candidate_count", Message: "the Responses API returns one candidate; dropped"})
	}
	if cfg.TopK != nil {
		warnings = append(warnings, ai.Warning{Field: "top_k", Message: "not supported by OpenAI; dropped"})
	}
	if len(cfg.StopSequences) > 0 {
		warnings = append(warnings, ai.Warning{Field: "stop_sequences", Message: "not supported by the Responses API; dropped"})
	}

	warnings = append(warnings, sanitiseSampling(model, &out.Temperature, &out.TopP)...)
	return out, warnings
}

// parseResponse decodes a Responses create body into a single candidate.
func parseResponse(status int, body []byte) (*ai.GenerationResponse, error) {
	var resp responseObject
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, ai.NewProtocolError(providerName, status, "", body, "invalid response object", err)
	}
	return fromResponse(status, body, &resp)
}

func fromResponse(status int, body []byte, resp *responseObject) (*ai.GenerationResponse, error) {
	if resp.Output == nil {
		return nil, ai.NewProtocolError(providerName, status, "", body, "response has no output", nil)
	}
	if resp.Status == "failed" {
		return nil, failedResponseError(status, resp, body)
	}

	text, refused := responseText(resp.Output)
	finish := mapResponseStatus(resp)
	if refused && finish != "" {
		finish = ai.FinishContentFilter
	}

	return &ai.GenerationResponse{
		ID:    resp.ID,
		Model: resp.Model,
		Candidates: []ai.Candidate{{
			Text:         text,
			FinishReason: finish,
		}},
		Usage: toResponseUsage(resp.Usage),
	}, nil
}

// responseText joins the text of every message item. Refusal text is used
// when the output carries no ordinary text.
func responseText(items []outputItem) (string, bool) {
	var text, refusal string
	for _, item := range items {
		if item.Type != "message" {
			continue
		}
		for _, c := range item.Content {
			switch c.Type {
			case "output_text":
				text += c.Text
			case "refusal":
				refusal += c.Refusal
			}
		}
	}
	if text == "" && refusal != "" {
		return refusal, true
	}
	return text, false
}

// mapResponseStatus derives the finish reason from the response status and
// incomplete_details.
func mapResponseStatus(resp *responseObject) ai.FinishReason {
	switch resp.Status {
	case "":
		return ""
	case "completed":
		return ai.FinishStop
	case "incomplete":
		if resp.IncompleteDetails != nil {
			switch resp.IncompleteDetails.Reason {
			case "max_output_tokens":
				return ai.FinishLength
			case "content_filter":
				return ai.FinishContentFilter
			}
		}
		return ai.FinishUnknown
	default:
		return ai.FinishUnknown
	}
}

func toResponseUsage(u *responseUsage) *ai.Usage {
	if u == nil {
		return nil
	}
	return &ai.Usage{
		PromptTokens:     u.InputTokens,
		CompletionTokens: u.OutputTokens,
		TotalTokens:      u.TotalTokens,
	}
}

// failedResponseError reports a response whose status is failed.
func failedResponseError(status int, resp *responseObject, raw []byte) *ai.ProviderError {
	apiErr := resp.Error
	if apiErr == nil {
		apiErr = &apiError{Type: "response_failed", Message: "response failed without error details"}
	}
	return newProviderError(status, apiErr, raw)
}

package gemini

import (
	"strconv"
	"strings"

	"github.com/leofalp/unillm/providers/ai"
)

const (
	roleUser  = "user"
	roleModel = "model"
)

// toWire converts a unified request to Gemini's generateContent format.
// Every generation parameter has a native field, so the only warnings come
// from binary parts in system messages, which systemInstruction cannot carry.
func toWire(req *ai.GenerationRequest) (generateContentRequest, []ai.Warning) {
	var (
		out      generateContentRequest
		warnings []ai.Warning
		system   []part
	)

	for i, msg := range req.Messages {
		if msg.Role == ai.RoleSystem {
			for _, p := range msg.Parts {
				if p.Type == ai.PartBlob {
					warnings = append(warnings, ai.Warning{
						Field:   "messages[" + strconv.Itoa(i) + "]",
						Message: "binary part (" + p.MediaType + ") in system message dropped: systemInstruction accepts text only",
					})
					continue
				}
				system = append(system, part{Text: p.Text})
			}
			continue
		}

		out.Contents = append(out.Contents, content{
			Role:  toRole(msg.Role),
			Parts: toParts(msg.Parts),
		})
	}

	if len(system) > 0 {
		out.SystemInstruction = &content{Parts: system}
	}
	out.GenerationConfig = toGenerationConfig(req.Config)
	return out, warnings
}

func toRole(role ai.Role) string {
	if role == ai.RoleAssistant {
		return roleModel
	}
	return roleUser
}

func toParts(parts []ai.Part) []part {
	out := make([]part, 0, len(parts))
	for _, p := range parts {
		switch p.Type {
		case ai.PartText:
			out = append(out, part{Text: p.Text})
		case ai.PartBlob:
			out = append(out, part{InlineData: &inlineData{MimeType: p.MediaType, Data: p.Data}})
		}
	}
	return out
}

func toGenerationConfig(cfg *ai.GenerationConfig) *generationConfig {
	if cfg == nil {
		return nil
	}
	if cfg.Temperature == nil && cfg.MaxOutputTokens == nil && cfg.TopP == nil &&
		cfg.TopK == nil && cfg.CandidateCount == nil && len(cfg.StopSequences) == 0 {
		return nil
	}
	return &generationConfig{
		StopSequences:   cfg.StopSequences,
		CandidateCount:  cfg.CandidateCount,
		MaxOutputTokens: cfg.MaxOutputTokens,
		Temperature:     cfg.Temperature,
		TopP:            cfg.TopP,
		TopK:            cfg.TopK,
	}
}

// fromWire maps a decoded generateContent response. A response blocked
// before any candidate was produced is a provider error, not an empty result.
func fromWire(status int, body []byte, resp *generateContentResponse) (*ai.GenerationResponse, error) {
	if resp.Candidates == nil && resp.PromptFeedback == nil {
		return nil, ai.NewProtocolError(providerName, status, "", body, "response has neither candidates nor promptFeedback", nil)
	}
	if err := blockedError(status, resp, body); err != nil {
		return nil, err
	}

	out := &ai.GenerationResponse{
		ID:         resp.ResponseID,
		Model:      resp.ModelVersion,
		Candidates: make([]ai.Candidate, 0, len(resp.Candidates)),
		Usage:      toUsage(resp.UsageMetadata),
	}
	for _, c := range resp.Candidates {
		out.Candidates = append(out.Candidates, ai.Candidate{
			Index:        c.Index,
			Text:         candidateText(c),
			FinishReason: mapFinishReason(c.FinishReason),
		})
	}
	return out, nil
}

func blockedError(status int, resp *generateContentResponse, body []byte) error {
	if len(resp.Candidates) > 0 || resp.PromptFeedback == nil || resp.PromptFeedback.BlockReason == "" {
		return nil
	}
	return &ai.ProviderError{
		Provider:   providerName,
		StatusCode: status,
		Code:       resp.PromptFeedback.BlockReason,
		Status:     "SAFETY_BLOCKED",
		Message:    "prompt blocked: " + resp.PromptFeedback.BlockReason,
		Raw:        append([]byte(nil), body...),
	}
}

// candidateText joins the text parts of a candidate, skipping thought
// summaries.
func candidateText(c candidate) string {
	if c.Content == nil {
		return ""
	}
	var b strings.Builder
	for _, p := range c.Content.Parts {
		if p.Thought {
			continue
		}
		b.WriteString(p.Text)
	}
	return b.String()
}

func toUsage(u *usageMetadata) *ai.Usage {
	if u == nil {
		return nil
	}
	return &ai.Usage{
		PromptTokens:     u.PromptTokenCount,
		CompletionTokens: u.CandidatesTokenCount,
		TotalTokens:      u.TotalTokenCount,
	}
}

// mapFinishReason converts a Gemini finish reason to the unified set.
func mapFinishReason(reason string) ai.FinishReason {
	switch reason {
	case "":
		return ""
	case "STOP":
		return ai.FinishStop
	case "MAX_TOKENS":
		return ai.FinishLength
	case "SAFETY", "RECITATION", "BLOCKLIST", "PROHIBITED_CONTENT", "SPII", "IMAGE_SAFETY":
		return ai.FinishContentFilter
	case "MALFORMED_FUNCTION_CALL":
		return ai.FinishError
	default:
		return ai.FinishUnknown
	}
}

// toModelInfo maps a model resource. Streaming and multi-turn follow from
// the generation methods the model advertises.
func toModelInfo(m model) ai.ModelInfo {
	id := modelName(m.Name)
	info := ai.ModelInfo{
		ID:          id,
		DisplayName: m.DisplayName,
		Description: m.Description,
	}
	if info.DisplayName == "" {
		info.DisplayName = id
	}
	if m.InputTokenLimit > 0 {
		limit := m.InputTokenLimit
		info.ContextWindow = &limit
	}
	if m.OutputTokenLimit > 0 {
		limit := m.OutputTokenLimit
		info.OutputTokenLimit = &limit
	}

	generates := supportsMethod(m, "generateContent")
	info.Capabilities = &ai.Capabilities{
		Streaming: generates || supportsMethod(m, "streamGenerateContent"),
		MultiTurn: generates,
		Vision:    supportsVision(id),
	}
	return info
}

func supportsMethod(m model, method string) bool {
	for _, s := range m.SupportedGenerationMethods {
		if s == method {
			return true
		}
	}
	return false
}

package openai

import (
	"encoding/json"

	"github.com/leofalp/unillm/providers/ai"
)

// ParseGenerate implements ai.Adapter.
func (a *Adapter) ParseGenerate(status int, body []byte) (*ai.GenerationResponse, error) {
	if err := detectError(status, body); err != nil {
		return nil, err
	}
	if a.responses {
		return parseResponse(status, body)
	}

	var resp chatCompletionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, ai.NewProtocolError(providerName, status, "", body, "invalid chat completion response", err)
	}
	return fromWire(status, body, &resp)
}

// ParseCountTokens implements ai.Adapter.
func (a *Adapter) ParseCountTokens(model string, status int, body []byte) (*ai.TokenCount, error) {
	if err := detectError(status, body); err != nil {
		return nil, err
	}

	var resp inputTokensResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, ai.NewProtocolError(providerName, status, "", body, "invalid input_tokens response", err)
	}
	if resp.InputTokens == nil {
		return nil, ai.NewProtocolError(providerName, status, "", body, "input_tokens response has no input_tokens", nil)
	}
	return &ai.TokenCount{Total: *resp.InputTokens, Model: model}, nil
}

// ParseListModels implements ai.Adapter. The listing is a single page.
func (a *Adapter) ParseListModels(status int, body []byte) ([]ai.ModelInfo, string, error) {
	if err := detectError(status, body); err != nil {
		return nil, "", err
	}

	var resp modelList
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, "", ai.NewProtocolError(providerName, status, "", body, "invalid models response", err)
	}
	if resp.Data == nil {
		return nil, "", ai.NewProtocolError(providerName, status, "", body, "models response has no data", nil)
	}

	models := make([]ai.ModelInfo, 0, len(resp.Data))
	for _, m := range resp.Data {
		models = append(models, toModelInfo(m))
	}
	return models, "", nil
}

// ParseGetModel implements ai.Adapter.
func (a *Adapter) ParseGetModel(status int, body []byte) (*ai.ModelInfo, error) {
	if err := detectError(status, body); err != nil {
		return nil, err
	}

	var m modelObject
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, ai.NewProtocolError(providerName, status, "", body, "invalid model response", err)
	}
	if m.ID == "" {
		return nil, ai.NewProtocolError(providerName, status, "", body, "model without id", nil)
	}
	info := toModelInfo(m)
	return &info, nil
}

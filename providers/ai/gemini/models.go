package gemini

import (
	"encoding/json"

	"github.com/leofalp/unillm/providers/ai"
)

// ParseGenerate implements ai.Adapter.
func (a *Adapter) ParseGenerate(status int, body []byte) (*ai.GenerationResponse, error) {
	if err := detectError(status, body); err != nil {
		return nil, err
	}

	var resp generateContentResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, ai.NewProtocolError(providerName, status, "", body, "invalid generateContent response", err)
	}
	return fromWire(status, body, &resp)
}

// ParseCountTokens implements ai.Adapter.
func (a *Adapter) ParseCountTokens(modelID string, status int, body []byte) (*ai.TokenCount, error) {
	if err := detectError(status, body); err != nil {
		return nil, err
	}

	var resp countTokensResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, ai.NewProtocolError(providerName, status, "", body, "invalid countTokens response", err)
	}
	if resp.TotalTokens == nil {
		return nil, ai.NewProtocolError(providerName, status, "", body, "countTokens response has no totalTokens", nil)
	}
	return &ai.TokenCount{Total: *resp.TotalTokens, Model: modelName(modelID)}, nil
}

// ParseListModels implements ai.Adapter. An empty nextPageToken marks the
// last page.
func (a *Adapter) ParseListModels(status int, body []byte) ([]ai.ModelInfo, string, error) {
	if err := detectError(status, body); err != nil {
		return nil, "", err
	}

	var resp listModelsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, "", ai.NewProtocolError(providerName, status, "", body, "invalid models response", err)
	}

	models := make([]ai.ModelInfo, 0, len(resp.Models))
	for _, m := range resp.Models {
		if m.Name == "" {
			return nil, "", ai.NewProtocolError(providerName, status, "", body, "model without name", nil)
		}
		models = append(models, toModelInfo(m))
	}
	return models, resp.NextPageToken, nil
}

// ParseGetModel implements ai.Adapter.
func (a *Adapter) ParseGetModel(status int, body []byte) (*ai.ModelInfo, error) {
	if err := detectError(status, body); err != nil {
		return nil, err
	}

	var m model
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, ai.NewProtocolError(providerName, status, "", body, "invalid model response", err)
	}
	if m.Name == "" {
		return nil, ai.NewProtocolError(providerName, status, "", body, "model without name", nil)
	}
	info := toModelInfo(m)
	return &info, nil
}

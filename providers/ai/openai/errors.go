package openai

import (
	"bytes"
	"encoding/json"

	"github.com/leofalp/unillm/providers/ai"
	"github.com/leofalp/unillm/providers/transport"
)

// DetectError implements ai.Adapter.
func (a *Adapter) DetectError(status int, body []byte) error {
	return detectError(status, body)
}

func detectError(status int, body []byte) error {
	if apiErr, ok := parseErrorEnvelope(body); ok {
		return newProviderError(status, apiErr, body)
	}
	if !transport.IsSuccess(status) {
		return ai.NewProtocolError(providerName, status, "", body, "non-success status without error envelope", nil)
	}
	return nil
}

func parseErrorEnvelope(body []byte) (*apiError, bool) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, false
	}
	var env errorEnvelope
	if json.Unmarshal(trimmed, &env) != nil || env.Error == nil {
		return nil, false
	}
	return env.Error, true
}

// newProviderError keeps the error code, falling back to the error type,
// which is the only identifier some errors (server_error) carry.
func newProviderError(status int, apiErr *apiError, raw []byte) *ai.ProviderError {
	code := string(apiErr.Code)
	if code == "" {
		code = apiErr.Type
	}
	return &ai.ProviderError{
		Provider:   providerName,
		StatusCode: status,
		Code:       code,
		Status:     apiErr.Type,
		Message:    apiErr.Message,
		Raw:        append([]byte(nil), raw...),
	}
}

package gemini

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/leofalp/unillm/providers/ai"
	"github.com/leofalp/unillm/providers/transport"
)

// DetectError implements ai.Adapter. The error envelope wins over the status
// code: Gemini reports some failures with 200 in the middle of a stream.
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

// parseErrorEnvelope recognises {"error":{...}} and the one-element array
// form [{"error":{...}}] returned by the streaming endpoint.
func parseErrorEnvelope(body []byte) (*apiError, bool) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, false
	}

	var env errorEnvelope
	switch trimmed[0] {
	case '{':
		if json.Unmarshal(trimmed, &env) != nil {
			return nil, false
		}
	case '[':
		var wrapped []errorEnvelope
		if json.Unmarshal(trimmed, &wrapped) != nil || len(wrapped) != 1 {
			return nil, false
		}
		env = wrapped[0]
	default:
		return nil, false
	}

	if env.Error == nil {
		return nil, false
	}
	return env.Error, true
}

func newProviderError(status int, apiErr *apiError, raw []byte) *ai.ProviderError {
	// Mid-stream errors arrive with a 2xx status; the envelope code is the
	// status the request actually failed with.
	if (status == 0 || transport.IsSuccess(status)) && apiErr.Code != 0 {
		status = apiErr.Code
	}

	var code string
	if apiErr.Code != 0 {
		code = strconv.Itoa(apiErr.Code)
	}
	return &ai.ProviderError{
		Provider:   providerName,
		StatusCode: status,
		Code:       code,
		Status:     apiErr.Status,
		Message:    apiErr.Message,
		Raw:        append([]byte(nil), raw...),
	}
}

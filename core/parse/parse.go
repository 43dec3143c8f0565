package parse

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kaptinlin/jsonrepair"

	"github.com/leofalp/unillm/providers/ai"
)

// ErrEmptyInput is returned for input that is empty after trimming.
var ErrEmptyInput = errors.New("parse: empty input")

// JSONAs decodes data into T. Strict decoding is tried first; on failure the
// input is repaired with jsonrepair and decoded again. The returned error
// reports both attempts when the repaired input still does not fit T.
//
// Example usage:
//
//	type Settings struct {
//	    Model string `json:"model"`
//	}
//
//	// Valid JSON
//	s, err := JSONAs[Settings]([]byte(`{"model": "gpt-4o"}`))
//
//	// Hand-written JSON (repaired)
//	s, err := JSONAs[Settings]([]byte(`{model: 'gpt-4o',}`))
func JSONAs[T any](data []byte) (T, error) {
	var result T

	content := stripCodeFence(bytes.TrimSpace(data))
	if len(content) == 0 {
		return result, ErrEmptyInput
	}

	strictErr := json.Unmarshal(content, &result)
	if strictErr == nil {
		return result, nil
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(strictErr, &typeErr) {
		// Well-formed JSON of the wrong shape; repairing cannot help.
		return result, fmt.Errorf("parse: decode %T: %w", result, strictErr)
	}

	repaired, repairErr := jsonrepair.JSONRepair(string(content))
	if repairErr != nil {
		return result, fmt.Errorf("parse: decode %T: %w (repair failed: %v)", result, strictErr, repairErr)
	}

	result = *new(T)
	if err := json.Unmarshal([]byte(repaired), &result); err != nil {
		return result, fmt.Errorf("parse: decode repaired %T: %w (original error: %v)", result, err, strictErr)
	}
	return result, nil
}

// Request decodes a unified generation request leniently and validates it.
// The "content" shorthand for single-text messages is accepted.
func Request(data []byte) (*ai.GenerationRequest, error) {
	req, err := JSONAs[ai.GenerationRequest](data)
	if err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return &req, nil
}

// stripCodeFence removes a surrounding markdown code fence, with or without
// a language tag.
func stripCodeFence(content []byte) []byte {
	if !bytes.HasPrefix(content, []byte("```")) {
		return content
	}

	body := content[3:]
	newline := bytes.IndexByte(body, '\n')
	if newline < 0 {
		return content
	}
	body = bytes.TrimSpace(body[newline+1:])

	if !bytes.HasSuffix(body, []byte("```")) {
		return content
	}
	return bytes.TrimSpace(body[:len(body)-3])
}

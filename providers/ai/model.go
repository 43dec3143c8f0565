package ai

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// Role is the author of a message. The set is closed.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ParseRole returns the Role named by s. Unknown names are rejected, never
// coerced.
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleSystem, RoleUser, RoleAssistant:
		return r, nil
	default:
		return "", &ValidationError{Field: "role", Reason: fmt.Sprintf("unknown role %q", s)}
	}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	_, err := ParseRole(string(r))
	return err == nil
}

// UnmarshalText rejects unknown roles when decoding.
func (r *Role) UnmarshalText(text []byte) error {
	parsed, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// PartType distinguishes text from binary content.
type PartType string

const (
	PartText PartType = "text"
	PartBlob PartType = "blob"
)

// Part is one segment of a message: text, or base64-encoded bytes with a
// declared media type.
type Part struct {
	Type      PartType `json:"type"`
	Text      string   `json:"text,omitempty"`
	MediaType string   `json:"media_type,omitempty"`
	Data      string   `json:"data,omitempty"`
}

// TextPart returns a text segment.
func TextPart(text string) Part {
	return Part{Type: PartText, Text: text}
}

// BlobPart returns a binary segment. data must already be standard base64.
func BlobPart(mediaType, data string) Part {
	return Part{Type: PartBlob, MediaType: mediaType, Data: data}
}

// BytesPart base64-encodes raw and returns a binary segment.
func BytesPart(mediaType string, raw []byte) Part {
	return BlobPart(mediaType, base64.StdEncoding.EncodeToString(raw))
}

// Validate checks the part is well formed.
func (p Part) Validate() error {
	switch p.Type {
	case PartText:
		if p.Text == "" {
			return &ValidationError{Field: "text", Reason: "text part is empty"}
		}
	case PartBlob:
		if p.MediaType == "" {
			return &ValidationError{Field: "media_type", Reason: "blob part has no media type"}
		}
		if p.Data == "" {
			return &ValidationError{Field: "data", Reason: "blob part has no data"}
		}
		if _, err := base64.StdEncoding.DecodeString(p.Data); err != nil {
			return &ValidationError{Field: "data", Reason: "blob data is not valid base64"}
		}
	default:
		return &ValidationError{Field: "type", Reason: fmt.Sprintf("unknown part type %q", p.Type)}
	}
	return nil
}

// Message is one turn of the conversation.
type Message struct {
	Role  Role   `json:"role"`
	Parts []Part `json:"parts"`
}

// NewMessage builds and validates a message.
func NewMessage(role Role, parts ...Part) (Message, error) {
	m := Message{Role: role, Parts: parts}
	if err := m.Validate(); err != nil {
		return Message{}, err
	}
	return m, nil
}

// NewTextMessage builds a single-part text message.
func NewTextMessage(role Role, text string) (Message, error) {
	return NewMessage(role, TextPart(text))
}

// Validate checks the role and every part.
func (m Message) Validate() error {
	if _, err := ParseRole(string(m.Role)); err != nil {
		return err
	}
	if len(m.Parts) == 0 {
		return &ValidationError{Field: "parts", Reason: "message has no content"}
	}
	for i, p := range m.Parts {
		if err := p.Validate(); err != nil {
			return prefixField(fmt.Sprintf("parts[%d]", i), err)
		}
	}
	return nil
}

// Text concatenates the text parts of the message.
func (m Message) Text() string {
	var b strings.Builder
	for _, p := range m.Parts {
		if p.Type == PartText {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

// HasBlobs reports whether the message carries binary parts.
func (m Message) HasBlobs() bool {
	for _, p := range m.Parts {
		if p.Type == PartBlob {
			return true
		}
	}
	return false
}

// UnmarshalJSON accepts the canonical {"role","parts"} form and the
// {"role","content":"text"} shorthand. A part without an explicit type is
// text when it carries text and a blob when it carries data.
func (m *Message) UnmarshalJSON(data []byte) error {
	var raw struct {
		Role    Role    `json:"role"`
		Parts   []Part  `json:"parts"`
		Content *string `json:"content"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	m.Role = raw.Role
	m.Parts = raw.Parts
	if raw.Content != nil {
		m.Parts = append([]Part{TextPart(*raw.Content)}, m.Parts...)
	}
	for i := range m.Parts {
		if m.Parts[i].Type != "" {
			continue
		}
		if m.Parts[i].Data != "" {
			m.Parts[i].Type = PartBlob
		} else {
			m.Parts[i].Type = PartText
		}
	}
	return nil
}

// GenerationConfig holds optional sampling parameters. A nil field is left
// to the provider's default; providers drop what they cannot honour and
// report it as a Warning.
type GenerationConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	MaxOutputTokens *int     `json:"max_output_tokens,omitempty"`
	TopP            *float64 `json:"top_p,omitempty"`
	TopK            *int     `json:"top_k,omitempty"`
	StopSequences   []string `json:"stop_sequences,omitempty"`
	CandidateCount  *int     `json:"candidate_count,omitempty"`
}

// Validate rejects values no provider accepts.
func (c *GenerationConfig) Validate() error {
	if c == nil {
		return nil
	}
	switch {
	case c.Temperature != nil && *c.Temperature < 0:
		return &ValidationError{Field: "config.temperature", Reason: "must not be negative"}
	case c.MaxOutputTokens != nil && *c.MaxOutputTokens < 1:
		return &ValidationError{Field: "config.max_output_tokens", Reason: "must be at least 1"}
	case c.TopP != nil && (*c.TopP < 0 || *c.TopP > 1):
		return &ValidationError{Field: "config.top_p", Reason: "must be between 0 and 1"}
	case c.TopK != nil && *c.TopK < 1:
		return &ValidationError{Field: "config.top_k", Reason: "must be at least 1"}
	case c.CandidateCount != nil && *c.CandidateCount < 1:
		return &ValidationError{Field: "config.candidate_count", Reason: "must be at least 1"}
	}
	return nil
}

// GenerationRequest is the unified input to generation and token counting.
// Messages are ordered oldest first. Model is provider-scoped; empty means
// the adapter's default model.
type GenerationRequest struct {
	Model    string            `json:"model,omitempty"`
	Messages []Message         `json:"messages"`
	Config   *GenerationConfig `json:"config,omitempty"`
}

// NewGenerationRequest builds and validates a request.
func NewGenerationRequest(model string, messages ...Message) (*GenerationRequest, error) {
	req := &GenerationRequest{Model: model, Messages: messages}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return req, nil
}

// Validate enforces a non-empty conversation of valid messages.
func (r *GenerationRequest) Validate() error {
	if r == nil || len(r.Messages) == 0 {
		return &ValidationError{Field: "messages", Reason: "must not be empty"}
	}
	for i, m := range r.Messages {
		if err := m.Validate(); err != nil {
			return prefixField(fmt.Sprintf("messages[%d]", i), err)
		}
	}
	return r.Config.Validate()
}

// Warning records a parameter that could not be sent as requested: either
// dropped or mapped to the nearest supported analog.
type Warning struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (w Warning) String() string {
	return w.Field + ": " + w.Message
}

func prefixField(prefix string, err error) error {
	if v, ok := err.(*ValidationError); ok {
		return &ValidationError{Field: prefix + "." + v.Field, Reason: v.Reason}
	}
	return err
}

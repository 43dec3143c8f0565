package ai

import (
	"github.com/leofalp/unillm/providers/framing"
	"github.com/leofalp/unillm/providers/transport"
)

// Operation names a client-facing operation.
type Operation string

const (
	OpGenerate    Operation = "generate"
	OpStream      Operation = "generate_streamed"
	OpCountTokens Operation = "count_tokens"
	OpListModels  Operation = "list_models"
	OpGetModel    Operation = "get_model"
)

// Adapter translates between the unified model and one provider's wire
// format. It builds requests (endpoint, auth and body) and interprets
// responses, but never performs I/O. Implementations are immutable and safe
// for concurrent use.
type Adapter interface {
	// Name is the short provider identifier carried by every error.
	Name() string

	// DefaultModel is used when a request leaves Model empty.
	DefaultModel() string

	// BuildGenerate converts req to the provider's wire request. Parameters
	// that had to be dropped or remapped are returned as warnings.
	BuildGenerate(req *GenerationRequest, stream bool) (*transport.Request, []Warning, error)
	BuildCountTokens(req *GenerationRequest) (*transport.Request, error)
	BuildListModels(pageToken string) (*transport.Request, error)
	BuildGetModel(id string) (*transport.Request, error)

	// DetectError classifies a raw response before any success parsing. It
	// returns a *ProviderError for an error envelope, a *ProtocolError for a
	// non-2xx status without one, and nil otherwise.
	DetectError(status int, body []byte) error

	ParseGenerate(status int, body []byte) (*GenerationResponse, error)
	ParseCountTokens(model string, status int, body []byte) (*TokenCount, error)
	ParseListModels(status int, body []byte) (models []ModelInfo, nextPageToken string, err error)
	ParseGetModel(status int, body []byte) (*ModelInfo, error)

	// NewStreamParser returns fresh framing and parsing state for one stream.
	NewStreamParser() StreamParser
}

// StreamParser splits a streamed body into frames and turns each frame into
// zero or more chunks. done reports the provider's terminal sentinel.
type StreamParser interface {
	Framer() framing.Framer
	Parse(frame []byte) (chunks []StreamChunk, done bool, err error)
}

// ModelOrDefault returns req.Model, or the adapter's default when empty.
func ModelOrDefault(a Adapter, req *GenerationRequest) string {
	if req != nil && req.Model != "" {
		return req.Model
	}
	return a.DefaultModel()
}

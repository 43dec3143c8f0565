package openai

import (
	"strings"

	"github.com/leofalp/unillm/providers/ai"
)

// modelFamily is static metadata for a model-ID prefix. The models endpoint
// reports only id, owner and creation time.
type modelFamily struct {
	prefix        string
	contextWindow int
	outputLimit   int
	vision        bool
}

// modelFamilies is ordered so that longer, more specific prefixes come
// first.
var modelFamilies = []modelFamily{
	{prefix: "gpt-5", contextWindow: 400000, outputLimit: 128000, vision: true},
	{prefix: "gpt-4.1", contextWindow: 1047576, outputLimit: 32768, vision: true},
	{prefix: "gpt-4o", contextWindow: 128000, outputLimit: 16384, vision: true},
	{prefix: "gpt-4-turbo", contextWindow: 128000, outputLimit: 4096, vision: true},
	{prefix: "gpt-4", contextWindow: 8192, outputLimit: 8192, vision: false},
	{prefix: "gpt-3.5-turbo", contextWindow: 16385, outputLimit: 4096, vision: false},
	{prefix: "o1-mini", contextWindow: 128000, outputLimit: 65536, vision: false},
	{prefix: "o1", contextWindow: 200000, outputLimit: 100000, vision: true},
	{prefix: "o3-mini", contextWindow: 200000, outputLimit: 100000, vision: false},
	{prefix: "o3", contextWindow: 200000, outputLimit: 100000, vision: true},
	{prefix: "o4-mini", contextWindow: 200000, outputLimit: 100000, vision: true},
}

// reasoningPrefixes are families that reject temperature and top_p.
var reasoningPrefixes = []string{"o1", "o3", "o4", "gpt-5"}

func lookupFamily(id string) (modelFamily, bool) {
	for _, f := range modelFamilies {
		if strings.HasPrefix(id, f.prefix) {
			return f, true
		}
	}
	return modelFamily{}, false
}

// isReasoningModel reports whether model belongs to a reasoning family.
func isReasoningModel(model string) bool {
	for _, prefix := range reasoningPrefixes {
		if model == prefix || strings.HasPrefix(model, prefix+"-") || strings.HasPrefix(model, prefix+".") {
			return true
		}
	}
	return false
}

// toModelInfo enriches a model object from the family table. Unknown
// families (embeddings, audio, images) keep nil limits and capabilities.
func toModelInfo(m modelObject) ai.ModelInfo {
	info := ai.ModelInfo{ID: m.ID, DisplayName: m.ID}
	if m.OwnedBy != "" {
		info.Description = "owned by " + m.OwnedBy
	}

	family, ok := lookupFamily(m.ID)
	if !ok {
		return info
	}
	contextWindow, outputLimit := family.contextWindow, family.outputLimit
	info.ContextWindow = &contextWindow
	info.OutputTokenLimit = &outputLimit
	info.Capabilities = &ai.Capabilities{
		Streaming: true,
		MultiTurn: true,
		Vision:    family.vision,
	}
	return info
}

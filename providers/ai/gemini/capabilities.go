package gemini

import "strings"

// visionFamilies lists model-ID prefixes that accept image input. The models
// endpoint does not report input modalities, so this is maintained by hand.
var visionFamilies = []string{
	"gemini-1.0-pro-vision",
	"gemini-pro-vision",
	"gemini-1.5-",
	"gemini-2.0-",
	"gemini-2.5-",
	"gemini-3-",
	"gemini-exp-",
	"gemma-3-",
}

// supportsVision reports whether the model family accepts image input.
func supportsVision(id string) bool {
	id = modelName(id)
	for _, prefix := range visionFamilies {
		if strings.HasPrefix(id, prefix) {
			return true
		}
	}
	return false
}

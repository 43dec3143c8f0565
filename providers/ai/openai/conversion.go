package openai

import (
	"fmt"
	"strings"

	"github.com/leofalp/unillm/providers/ai"
)

// maxStopSequences is the most stop sequences Chat Completions accepts.
const maxStopSequences = 4

// toWire converts a unified request to a Chat Completions request. Anything
// the endpoint cannot express is dropped and reported as a warning.
func toWire(model string, req *ai.GenerationRequest, stream bool) (chatCompletionRequest, []ai.Warning) {
	out := chatCompletionRequest{
		Model:    model,
		Messages: make([]chatMessage, 0, len(req.Messages)),
		Stream:   stream,
	}
	var warnings []ai.Warning

	for i, msg := range req.Messages {
		wire, dropped := toMessage(i, msg)
		warnings = append(warnings, dropped...)
		out.Messages = append(out.Messages, wire)
	}

	if stream {
		out.StreamOptions = &streamOptions{IncludeUsage: true}
	}

	cfg := req.Config
	if cfg == nil {
		return out, warnings
	}

	out.N = cfg.CandidateCount
	out.MaxCompletionTokens = cfg.MaxOutputTokens
	out.Temperature = cfg.Temperature
	out.TopP = cfg.TopP

	if cfg.TopK != nil {
		warnings = append(warnings, ai.Warning{Field: "top_k", Message: "not supported by OpenAI; dropped"})
	}

	out.Stop = cfg.StopSequences
	if len(out.Stop) > maxStopSequences {
		warnings = append(warnings, ai.Warning{
			Field:   "stop_sequences",
			Message: fmt.Sprintf("OpenAI accepts at most %d stop sequences; truncated from %d", maxStopSequences, len(out.Stop)),
		})
		out.Stop = out.Stop[:maxStopSequences]
	}

	warnings = append(warnings, sanitiseSampling(model, &out.Temperature, &out.TopP)...)
	return out, warnings
}

// sanitiseSampling clears temperature and top_p for reasoning models, which
// reject them.
func sanitiseSampling(model string, temperature, topP **float64) []ai.Warning {
	if !isReasoningModel(model) {
		return nil
	}
	var warnings []ai.Warning
	if *temperature != nil {
		warnings = append(warnings, ai.Warning{Field: "temperature", Message: "not supported by reasoning model " + model + "; dropped"})
		*temperature = nil
	}
	if *topP != nil {
		warnings = append(warnings, ai.Warning{Field: "top_p", Message: "not supported by reasoning model " + model + "; dropped"})
		*topP = nil
	}
	return warnings
}

// toMessage picks the string content form for text-only messages and the
// parts form otherwise. System messages are always text.
func toMessage(index int, msg ai.Message) (chatMessage, []ai.Warning) {
	wire := chatMessage{Role: string(msg.Role)}
	if !msg.HasBlobs() {
		wire.Content.Text = msg.Text()
		return wire, nil
	}

	field := fmt.Sprintf("messages[%d]", index)
	var warnings []ai.Warning

	if msg.Role == ai.RoleSystem {
		for _, p := range msg.Parts {
			if p.Type == ai.PartBlob {
				warnings = append(warnings, ai.Warning{Field: field, Message: "binary part (" + p.MediaType + ") in system message dropped"})
			}
		}
		wire.Content.Text = msg.Text()
		return wire, warnings
	}

	parts := make([]contentPart, 0, len(msg.Parts))
	for i, p := range msg.Parts {
		if p.Type == ai.PartText {
			parts = append(parts, contentPart{Type: "text", Text: p.Text})
			continue
		}
		part, ok := blobPart(index, i, p)
		if !ok {
			warnings = append(warnings, ai.Warning{Field: field, Message: "unsupported media type " + p.MediaType + "; part dropped"})
			continue
		}
		parts = append(parts, part)
	}
	wire.Content.Parts = parts
	return wire, warnings
}

// blobPart maps a binary part by media type: images become data URLs,
// wav and mp3 become input_audio, PDFs become inline files.
func blobPart(msgIndex, partIndex int, p ai.Part) (contentPart, bool) {
	mediaType := strings.ToLower(p.MediaType)
	switch {
	case strings.HasPrefix(mediaType, "image/"):
		return contentPart{Type: "image_url", ImageURL: &imageURL{URL: dataURL(mediaType, p.Data)}}, true
	case mediaType == "audio/wav" || mediaType == "audio/x-wav":
		return contentPart{Type: "input_audio", InputAudio: &inputAudio{Data: p.Data, Format: "wav"}}, true
	case mediaType == "audio/mpeg" || mediaType == "audio/mp3":
		return contentPart{Type: "input_audio", InputAudio: &inputAudio{Data: p.Data, Format: "mp3"}}, true
	case mediaType == "application/pdf":
		return contentPart{Type: "file", File: &filePart{
			FileData: dataURL(mediaType, p.Data),
			Filename: pdfName(msgIndex, partIndex),
		}}, true
	default:
		return contentPart{}, false
	}
}

func dataURL(mediaType, data string) string {
	return "data:" + mediaType + ";base64," + data
}

func pdfName(msgIndex, partIndex int) string {
	return fmt.Sprintf("document-%d-%d.pdf", msgIndex, partIndex)
}

// toInputTokens converts a unified request to the Responses input format
// used for token counting. Parts the Responses input cannot carry are
// skipped, since they are not counted.
func toInputTokens(model string, req *ai.GenerationRequest) inputTokensRequest {
	input, instructions, _ := toResponsesInput(req)
	return inputTokensRequest{Model: model, Input: input, Instructions: instructions}
}

// toResponsesInput maps messages to Responses input items. System text
// becomes instructions. Each part that cannot be expressed is reported.
func toResponsesInput(req *ai.GenerationRequest) ([]inputItem, string, []ai.Warning) {
	input := []inputItem{}
	var (
		instructions []string
		warnings     []ai.Warning
	)

	for mi, msg := range req.Messages {
		field := fmt.Sprintf("messages[%d]", mi)
		if msg.Role == ai.RoleSystem {
			if msg.HasBlobs() {
				warnings = append(warnings, ai.Warning{Field: field, Message: "binary parts in system message dropped"})
			}
			if text := msg.Text(); text != "" {
				instructions = append(instructions, text)
			}
			continue
		}

		textType := "input_text"
		if msg.Role == ai.RoleAssistant {
			textType = "output_text"
		}

		item := inputItem{Type: "message", Role: string(msg.Role)}
		for pi, p := range msg.Parts {
			switch {
			case p.Type == ai.PartText:
				item.Content = append(item.Content, inputContent{Type: textType, Text: p.Text})
			case strings.HasPrefix(p.MediaType, "image/"):
				item.Content = append(item.Content, inputContent{Type: "input_image", ImageURL: dataURL(p.MediaType, p.Data)})
			case p.MediaType == "application/pdf":
				item.Content = append(item.Content, inputContent{
					Type:     "input_file",
					FileData: dataURL(p.MediaType, p.Data),
					Filename: pdfName(mi, pi),
				})
			default:
				warnings = append(warnings, ai.Warning{Field: field, Message: "unsupported media type " + p.MediaType + "; part dropped"})
			}
		}
		if len(item.Content) > 0 {
			input = append(input, item)
		}
	}

	return input, strings.Join(instructions, "\n\n"), warnings
}

// fromWire maps a decoded Chat Completions response.
func fromWire(status int, body []byte, resp *chatCompletionResponse) (*ai.GenerationResponse, error) {
	if resp.Choices == nil {
		return nil, ai.NewProtocolError(providerName, status, "", body, "response has no choices", nil)
	}

	out := &ai.GenerationResponse{
		ID:         resp.ID,
		Model:      resp.Model,
		Candidates: make([]ai.Candidate, 0, len(resp.Choices)),
		Usage:      toUsage(resp.Usage),
	}
	for _, c := range resp.Choices {
		candidate := ai.Candidate{
			Index:        c.Index,
			FinishReason: mapFinishReason(c.FinishReason),
		}
		if c.Message != nil {
			if c.Message.Content != nil {
				candidate.Text = *c.Message.Content
			}
			if candidate.Text == "" && c.Message.Refusal != nil && *c.Message.Refusal != "" {
				candidate.Text = *c.Message.Refusal
				candidate.FinishReason = ai.FinishContentFilter
			}
		}
		out.Candidates = append(out.Candidates, candidate)
	}
	return out, nil
}

func toUsage(u *usage) *ai.Usage {
	if u == nil {
		return nil
	}
	return &ai.Usage{
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		TotalTokens:      u.TotalTokens,
	}
}

// mapFinishReason converts an OpenAI finish reason to the unified set.
func mapFinishReason(reason string) ai.FinishReason {
	switch reason {
	case "":
		return ""
	case "stop":
		return ai.FinishStop
	case "length":
		return ai.FinishLength
	case "content_filter":
		return ai.FinishContentFilter
	default:
		return ai.FinishUnknown
	}
}

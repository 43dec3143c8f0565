package utils

import (
	"bytes"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
)

// PreviewLength is the default size of a body preview.
const PreviewLength = 512

// BodyPreview returns a short, log-friendly rendition of a response body.
// Proxies and load balancers in front of providers tend to answer with HTML
// error pages; those are converted to Markdown so the preview keeps the
// readable text instead of markup. Anything else is trimmed as-is.
func BodyPreview(contentType string, body []byte, maxLen int) string {
	if maxLen <= 0 {
		maxLen = PreviewLength
	}
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return ""
	}

	if looksLikeHTML(contentType, trimmed) {
		markdown, err := htmltomarkdown.ConvertString(string(trimmed))
		if err == nil && strings.TrimSpace(markdown) != "" {
			return TruncateString(strings.TrimSpace(markdown), maxLen)
		}
	}
	return TruncateString(string(trimmed), maxLen)
}

func looksLikeHTML(contentType string, body []byte) bool {
	if strings.Contains(strings.ToLower(contentType), "text/html") {
		return true
	}
	head := bytes.ToLower(body[:min(len(body), 64)])
	return bytes.HasPrefix(head, []byte("<!doctype html")) || bytes.HasPrefix(head, []byte("<html"))
}

package utils

import (
	"regexp"
	"strings"
)

var trailingCommaPattern = regexp.MustCompile(`,(\s*[}\]])`)

// GeminiGetCleanedJsonResponse strips markdown fences and trailing commas so
// the model output can be handed to json.Unmarshal. Text before the first
// brace and after the last one is dropped.
func GeminiGetCleanedJsonResponse(geminiResponse string) string {
	cleaned := strings.TrimSpace(geminiResponse)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.ReplaceAll(cleaned, "```", "")

	if start := strings.Index(cleaned, "{"); start >= 0 {
		if end := strings.LastIndex(cleaned, "}"); end > start {
			cleaned = cleaned[start : end+1]
		}
	}

	cleaned = trailingCommaPattern.ReplaceAllString(cleaned, "$1")
	return strings.TrimSpace(cleaned)
}

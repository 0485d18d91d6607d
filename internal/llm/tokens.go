package llm

import (
	"strings"
	"unicode"
)

// EstimateTokens returns an approximate token count: about four characters
// per token for Latin text and one token per Han character.
func EstimateTokens(text string) int {
	han, other := 0, 0
	for _, r := range text {
		if unicode.Is(unicode.Han, r) {
			han++
		} else {
			other++
		}
	}
	return han + (other+3)/4
}

// ContextLimit returns the context window size for a model
func ContextLimit(model string) int {
	model = strings.ToLower(model)

	// Moonshot encodes the window in the model id
	switch {
	case strings.HasSuffix(model, "-128k"):
		return 128000
	case strings.HasSuffix(model, "-32k"):
		return 32000
	case strings.HasSuffix(model, "-8k"):
		return 8000
	}

	// DeepSeek
	if strings.HasPrefix(model, "deepseek") {
		return 64000
	}

	// Default fallback
	return 8000
}

// FitsContext reports whether a prompt leaves room for a reply in the
// model's context window.
func FitsContext(model, prompt string, replyBudget int) bool {
	return EstimateTokens(prompt)+replyBudget <= ContextLimit(model)
}

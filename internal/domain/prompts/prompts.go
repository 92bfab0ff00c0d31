// Package prompts holds the fixed system prompts a session can be built with.
package prompts

import (
	_ "embed"
	"strings"

	"github.com/0xcro3dile/planlaw-go/internal/domain/apperr"
	"github.com/0xcro3dile/planlaw-go/internal/domain/entities"
)

const base = "You are a helpful chatbot who is tasked with answering questions about the contents of the Plan and Building Law. " +
	"Unless otherwise explicitly stated, it is probably fair to assume that questions are about the Plan and Building Law. " +
	"If there is any ambiguity, you probably assume they are about that."

//go:embed extensive_summary.txt
var extensiveSummary string

// SystemPrompt returns the prompt text for v.
func SystemPrompt(v entities.PromptVariant) (string, error) {
	switch v {
	case entities.VariantOriginal:
		return base, nil
	case entities.VariantExtensiveSummary:
		return base + "\nThis is a summary of the Plan and Building Law:\n\n" + strings.TrimSpace(extensiveSummary), nil
	default:
		return "", apperr.Configuration("unknown system prompt variant %v", v)
	}
}

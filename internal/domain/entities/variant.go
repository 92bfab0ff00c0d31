package entities

import (
	"encoding/json"
	"fmt"
	"strings"
)

// PromptVariant selects one of the fixed system prompts.
type PromptVariant int

const (
	VariantOriginal PromptVariant = iota + 1
	VariantExtensiveSummary
)

// Variants lists every prompt variant in display order.
var Variants = []PromptVariant{VariantOriginal, VariantExtensiveSummary}

// String returns the identifier used in config files and the API.
func (v PromptVariant) String() string {
	switch v {
	case VariantOriginal:
		return "Original"
	case VariantExtensiveSummary:
		return "ExtensiveSummary"
	default:
		return fmt.Sprintf("PromptVariant(%d)", int(v))
	}
}

// Label is the human readable name shown in the UI.
func (v PromptVariant) Label() string {
	switch v {
	case VariantOriginal:
		return "Original"
	case VariantExtensiveSummary:
		return "New (extensive summary)"
	default:
		return v.String()
	}
}

// Valid reports whether v is a known variant.
func (v PromptVariant) Valid() bool {
	return v == VariantOriginal || v == VariantExtensiveSummary
}

// ParseVariant accepts the identifier or the UI label, case-insensitively.
func ParseVariant(s string) (PromptVariant, error) {
	needle := strings.TrimSpace(s)
	for _, v := range Variants {
		if strings.EqualFold(needle, v.String()) || strings.EqualFold(needle, v.Label()) {
			return v, nil
		}
	}
	return 0, fmt.Errorf("unknown system prompt variant %q", s)
}

func (v PromptVariant) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.String())
}

func (v *PromptVariant) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseVariant(s)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// Package tokens counts tokens for memory budgeting.
package tokens

import (
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"

	"github.com/0xcro3dile/planlaw-go/internal/domain/ports"
)

const defaultEncoding = "cl100k_base"

// Counter counts tokens with the model's BPE encoding. When the encoding
// cannot be loaded it falls back to roughly four characters per token.
type Counter struct {
	mu  sync.Mutex
	tke *tiktoken.Tiktoken
}

var _ ports.TokenCounter = (*Counter)(nil)

// NewCounter picks the encoding for model, then cl100k_base. The error is
// informational: the returned counter is always usable.
func NewCounter(model string) (*Counter, error) {
	tke, err := tiktoken.EncodingForModel(model)
	if err != nil {
		tke, err = tiktoken.GetEncoding(defaultEncoding)
	}
	if err != nil {
		return &Counter{}, err
	}
	return &Counter{tke: tke}, nil
}

// Exact reports whether a BPE encoding is in use.
func (c *Counter) Exact() bool { return c.tke != nil }

func (c *Counter) Count(text string) int {
	if text == "" {
		return 0
	}
	if c.tke == nil {
		return (utf8.RuneCountInString(text) + 3) / 4
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tke.Encode(text, nil, nil))
}

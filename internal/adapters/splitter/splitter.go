// Package splitter cuts documents into embeddable chunks.
package splitter

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"

	"github.com/0xcro3dile/planlaw-go/internal/domain/entities"
	"github.com/0xcro3dile/planlaw-go/internal/domain/ports"
)

// Recursive splits on paragraph, line, then word boundaries. Documents
// shorter than the chunk size stay whole.
type Recursive struct {
	impl textsplitter.RecursiveCharacter
}

var _ ports.Splitter = (*Recursive)(nil)

func NewRecursive(chunkSize, chunkOverlap int) *Recursive {
	if chunkSize <= 0 {
		chunkSize = 4000
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = chunkSize / 20
	}
	return &Recursive{impl: textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(chunkSize),
		textsplitter.WithChunkOverlap(chunkOverlap),
		textsplitter.WithSeparators([]string{"\n\n", "\n", " ", ""}),
	)}
}

func (s *Recursive) Split(doc *entities.Document) ([]entities.Chunk, error) {
	content := strings.TrimSpace(doc.Content)
	if content == "" {
		return nil, nil
	}
	parts, err := s.impl.SplitText(content)
	if err != nil {
		return nil, fmt.Errorf("splitting %s: %w", doc.Name, err)
	}

	chunks := make([]entities.Chunk, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		idx := len(chunks)
		chunks = append(chunks, entities.Chunk{
			ID:         chunkID(doc.ID, idx),
			DocumentID: doc.ID,
			Source:     doc.Name,
			Content:    p,
			Index:      idx,
		})
	}
	return chunks, nil
}

// chunkID creates a deterministic ID for a chunk.
func chunkID(docID string, index int) string {
	hash := sha256.Sum256([]byte(fmt.Sprintf("%s#%d", docID, index)))
	return hex.EncodeToString(hash[:8])
}

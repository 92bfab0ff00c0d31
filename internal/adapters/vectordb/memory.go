// Package vectordb provides the persisted vector index.
package vectordb

import (
	"context"
	"math"
	"slices"
	"sort"

	"github.com/0xcro3dile/planlaw-go/internal/domain/entities"
)

// MemoryIndex is an opened index held fully in memory. It is immutable, so
// concurrent searches need no locking.
type MemoryIndex struct {
	info   entities.IndexInfo
	chunks []entities.Chunk
}

// NewMemoryIndex wraps already embedded chunks.
func NewMemoryIndex(info entities.IndexInfo, chunks []entities.Chunk) *MemoryIndex {
	if info.ChunkCount == 0 {
		info.ChunkCount = len(chunks)
	}
	return &MemoryIndex{info: info, chunks: chunks}
}

// Search finds the most similar chunks to a query embedding.
// Vectors of a different dimension score zero.
func (m *MemoryIndex) Search(ctx context.Context, embedding []float32, topK int) ([]entities.QueryResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if topK <= 0 {
		return nil, nil
	}

	results := make([]entities.QueryResult, 0, len(m.chunks))
	for _, chunk := range m.chunks {
		results = append(results, entities.QueryResult{
			Chunk:     chunk,
			Score:     cosineSimilarity(embedding, chunk.Embedding),
			SourceDoc: chunk.Source,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func (m *MemoryIndex) Info() entities.IndexInfo { return m.info }

// Chunks returns a copy of the indexed chunks in stored order.
func (m *MemoryIndex) Chunks() []entities.Chunk { return slices.Clone(m.chunks) }

func (m *MemoryIndex) Close() error { return nil }

// cosineSimilarity calculates cosine similarity between two vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

package usecases

import (
	"context"

	"github.com/0xcro3dile/planlaw-go/internal/domain/apperr"
	"github.com/0xcro3dile/planlaw-go/internal/domain/entities"
	"github.com/0xcro3dile/planlaw-go/internal/domain/ports"
)

// IndexRetriever embeds a query and searches an opened index.
type IndexRetriever struct {
	embedder ports.EmbeddingService
	index    ports.VectorIndex
	topK     int
}

func NewIndexRetriever(embedder ports.EmbeddingService, index ports.VectorIndex, topK int) *IndexRetriever {
	if topK <= 0 {
		topK = 4
	}
	return &IndexRetriever{embedder: embedder, index: index, topK: topK}
}

// Retrieve returns the topK chunks most similar to query.
func (r *IndexRetriever) Retrieve(ctx context.Context, query string) ([]entities.QueryResult, error) {
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, apperr.FromContext(ctx, apperr.KindEmbeddingService, "embed query", err)
	}
	results, err := r.index.Search(ctx, vec, r.topK)
	if err != nil {
		return nil, apperr.FromContext(ctx, apperr.KindPersistence, "search index", err)
	}
	return results, nil
}

// Info describes the index behind the retriever.
func (r *IndexRetriever) Info() entities.IndexInfo {
	return r.index.Info()
}

// Package usecases contains application business rules.
// Usecases orchestrate entities and depend only on port interfaces.
package usecases

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/0xcro3dile/planlaw-go/internal/domain/apperr"
	"github.com/0xcro3dile/planlaw-go/internal/domain/entities"
	"github.com/0xcro3dile/planlaw-go/internal/domain/ports"
	"github.com/0xcro3dile/planlaw-go/internal/logger"
)

// IngestUseCase turns a directory of law sections into embedded chunks.
type IngestUseCase struct {
	loader    ports.DocumentLoader
	splitter  ports.Splitter
	embedder  ports.EmbeddingService
	batchSize int
}

// NewIngestUseCase creates an IngestUseCase with injected dependencies.
func NewIngestUseCase(
	loader ports.DocumentLoader,
	splitter ports.Splitter,
	embedder ports.EmbeddingService,
	batchSize int,
) *IngestUseCase {
	if batchSize <= 0 {
		batchSize = 64
	}
	return &IngestUseCase{
		loader:    loader,
		splitter:  splitter,
		embedder:  embedder,
		batchSize: batchSize,
	}
}

// LoadDir reads every non-hidden file under dir, sorted by path. The
// loader decides per file whether the content is readable.
// A missing, unreadable or empty directory is a LoadError.
func (uc *IngestUseCase) LoadDir(ctx context.Context, dir string) ([]entities.Document, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, apperr.New(apperr.KindLoad, "read source dir", err)
	}
	if !info.IsDir() {
		return nil, apperr.New(apperr.KindLoad, "read source dir", fmt.Errorf("%s is not a directory", dir))
	}

	var paths []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, apperr.New(apperr.KindLoad, "walk source dir", err)
	}
	sort.Strings(paths)

	log := logger.FromContext(ctx)
	docs := make([]entities.Document, 0, len(paths))
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		doc, err := uc.loader.Load(ctx, p)
		if errors.Is(err, ports.ErrUnsupportedFormat) {
			log.Warn("Skipping unsupported file", "path", p)
			continue
		}
		if err != nil {
			return nil, apperr.New(apperr.KindLoad, "load "+filepath.Base(p), err)
		}
		if strings.TrimSpace(doc.Content) == "" {
			continue
		}
		docs = append(docs, *doc)
	}
	if len(docs) == 0 {
		return nil, apperr.New(apperr.KindLoad, "read source dir", fmt.Errorf("no documents found in %s", dir))
	}
	return docs, nil
}

// Ingest loads, splits and embeds everything under dir.
func (uc *IngestUseCase) Ingest(ctx context.Context, dir string) ([]entities.Chunk, error) {
	log := logger.FromContext(ctx)

	docs, err := uc.LoadDir(ctx, dir)
	if err != nil {
		return nil, err
	}

	var chunks []entities.Chunk
	for i := range docs {
		parts, err := uc.splitter.Split(&docs[i])
		if err != nil {
			return nil, apperr.New(apperr.KindLoad, "split "+docs[i].Name, err)
		}
		chunks = append(chunks, parts...)
	}
	if len(chunks) == 0 {
		return nil, apperr.New(apperr.KindLoad, "split documents", errors.New("documents produced no chunks"))
	}
	log.Info("Documents split", "documents", len(docs), "chunks", len(chunks))

	if err := uc.embed(ctx, chunks); err != nil {
		return nil, err
	}
	return chunks, nil
}

func (uc *IngestUseCase) embed(ctx context.Context, chunks []entities.Chunk) error {
	log := logger.FromContext(ctx)
	for start := 0; start < len(chunks); start += uc.batchSize {
		end := min(start+uc.batchSize, len(chunks))

		texts := make([]string, end-start)
		for i := range texts {
			texts[i] = chunks[start+i].Content
		}

		vectors, err := uc.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return apperr.FromContext(ctx, apperr.KindEmbeddingService, "embed chunks", err)
		}
		if len(vectors) != len(texts) {
			return apperr.New(apperr.KindEmbeddingService, "embed chunks",
				fmt.Errorf("expected %d embeddings, got %d", len(texts), len(vectors)))
		}
		for i, v := range vectors {
			chunks[start+i].Embedding = v
		}
		log.Debug("Embedded batch", "from", start, "to", end)
	}
	return nil
}

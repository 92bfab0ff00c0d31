// Package embedding adapts langchaingo embedders to ports.EmbeddingService.
package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/0xcro3dile/planlaw-go/internal/adapters/provider"
	"github.com/0xcro3dile/planlaw-go/internal/domain/apperr"
	"github.com/0xcro3dile/planlaw-go/internal/domain/ports"
)

const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

// Config selects the embedding provider and model.
type Config struct {
	Provider      string
	Model         string
	BaseURL       string
	APIKey        string
	BatchSize     int
	RetryAttempts int
	RetryBase     time.Duration
	CacheSize     int // query embeddings kept in memory; zero disables
	HTTPClient    *http.Client
}

// Adapter implements ports.EmbeddingService over a langchaingo embedder.
type Adapter struct {
	impl      embeddings.Embedder
	model     string
	attempts  int
	retryBase time.Duration
	cache     *lru.Cache[string, []float32]
}

var _ ports.EmbeddingService = (*Adapter)(nil)

// New builds the provider client described by cfg.
func New(cfg Config) (*Adapter, error) {
	if cfg.Provider == "" {
		cfg.Provider = ProviderOpenAI
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 64
	}
	impl, err := buildEmbedder(cfg)
	if err != nil {
		return nil, err
	}
	return Wrap(impl, cfg.Model, cfg.RetryAttempts, cfg.RetryBase, cfg.CacheSize)
}

// Wrap adapts an existing langchaingo embedder.
func Wrap(impl embeddings.Embedder, model string, attempts int, retryBase time.Duration, cacheSize int) (*Adapter, error) {
	a := &Adapter{impl: impl, model: model, attempts: attempts, retryBase: retryBase}
	if cacheSize > 0 {
		cache, err := lru.New[string, []float32](cacheSize)
		if err != nil {
			return nil, fmt.Errorf("init embedding cache: %w", err)
		}
		a.cache = cache
	}
	return a, nil
}

func buildEmbedder(cfg Config) (embeddings.Embedder, error) {
	opts := []embeddings.Option{
		embeddings.WithBatchSize(cfg.BatchSize),
		embeddings.WithStripNewLines(true),
	}
	switch cfg.Provider {
	case ProviderOpenAI:
		if cfg.APIKey == "" {
			return nil, apperr.Configuration("openai api key is not set")
		}
		clientOpts := []openai.Option{openai.WithToken(cfg.APIKey)}
		if cfg.Model != "" {
			clientOpts = append(clientOpts, openai.WithEmbeddingModel(cfg.Model))
		}
		if cfg.BaseURL != "" {
			clientOpts = append(clientOpts, openai.WithBaseURL(cfg.BaseURL))
		}
		if cfg.HTTPClient != nil {
			clientOpts = append(clientOpts, openai.WithHTTPClient(cfg.HTTPClient))
		}
		client, err := openai.New(clientOpts...)
		if err != nil {
			return nil, apperr.New(apperr.KindConfiguration, "create openai embedder", err)
		}
		return embeddings.NewEmbedder(client, opts...)
	case ProviderOllama:
		clientOpts := []ollama.Option{ollama.WithModel(cfg.Model)}
		if cfg.BaseURL != "" {
			clientOpts = append(clientOpts, ollama.WithServerURL(cfg.BaseURL))
		}
		if cfg.HTTPClient != nil {
			clientOpts = append(clientOpts, ollama.WithHTTPClient(cfg.HTTPClient))
		}
		client, err := ollama.New(clientOpts...)
		if err != nil {
			return nil, apperr.New(apperr.KindConfiguration, "create ollama embedder", err)
		}
		return embeddings.NewEmbedder(client, opts...)
	default:
		return nil, apperr.Configuration("unsupported embedding provider %q", cfg.Provider)
	}
}

func (a *Adapter) Model() string { return a.model }

// Embed generates the embedding of a search query.
func (a *Adapter) Embed(ctx context.Context, text string) ([]float32, error) {
	key := cacheKey(text)
	if a.cache != nil {
		if v, ok := a.cache.Get(key); ok {
			return cloneVector(v), nil
		}
	}

	var vec []float32
	err := provider.Retry(ctx, a.attempts, a.retryBase, func(ctx context.Context) error {
		var err error
		vec, err = a.impl.EmbedQuery(ctx, text)
		return provider.Classify(apperr.KindEmbeddingService, "embed query", err)
	})
	if err != nil {
		return nil, provider.Classify(apperr.KindEmbeddingService, "embed query", err)
	}
	if a.cache != nil && len(vec) > 0 {
		a.cache.Add(key, cloneVector(vec))
	}
	return vec, nil
}

// EmbedBatch generates embeddings for document chunks.
func (a *Adapter) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var vecs [][]float32
	err := provider.Retry(ctx, a.attempts, a.retryBase, func(ctx context.Context) error {
		var err error
		vecs, err = a.impl.EmbedDocuments(ctx, texts)
		return provider.Classify(apperr.KindEmbeddingService, "embed documents", err)
	})
	if err != nil {
		return nil, provider.Classify(apperr.KindEmbeddingService, "embed documents", err)
	}
	if len(vecs) != len(texts) {
		return nil, apperr.New(apperr.KindEmbeddingService, "embed documents",
			fmt.Errorf("received %d embeddings for %d texts", len(vecs), len(texts)))
	}
	return vecs, nil
}

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

func cloneVector(src []float32) []float32 {
	dst := make([]float32, len(src))
	copy(dst, src)
	return dst
}

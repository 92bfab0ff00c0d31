package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/0xcro3dile/planlaw-go/internal/adapters/embedding"
	"github.com/0xcro3dile/planlaw-go/internal/adapters/filewatcher"
	"github.com/0xcro3dile/planlaw-go/internal/adapters/history"
	"github.com/0xcro3dile/planlaw-go/internal/adapters/llm"
	"github.com/0xcro3dile/planlaw-go/internal/adapters/loader"
	"github.com/0xcro3dile/planlaw-go/internal/adapters/provider"
	"github.com/0xcro3dile/planlaw-go/internal/adapters/splitter"
	"github.com/0xcro3dile/planlaw-go/internal/adapters/tokens"
	"github.com/0xcro3dile/planlaw-go/internal/adapters/vectordb"
	"github.com/0xcro3dile/planlaw-go/internal/config"
	"github.com/0xcro3dile/planlaw-go/internal/domain/ports"
	"github.com/0xcro3dile/planlaw-go/internal/domain/usecases"
	"github.com/0xcro3dile/planlaw-go/internal/logger"
)

// app holds the wired components shared by every command.
type app struct {
	cfg          *config.Config
	models       *llm.Factory
	provisioner  *usecases.Provisioner
	conversation *usecases.Conversation
	closers      []func() error
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	log := logger.FromContext(ctx)
	apiKey := cfg.APIKey()

	embedder, err := embedding.New(embedding.Config{
		Provider:      cfg.Embedder.Provider,
		Model:         cfg.Embedder.Model,
		BaseURL:       cfg.Embedder.BaseURL,
		APIKey:        apiKey,
		BatchSize:     cfg.Embedder.BatchSize,
		RetryAttempts: cfg.Embedder.RetryAttempts,
		RetryBase:     provider.DefaultRetryBase,
		CacheSize:     cfg.Embedder.CacheSize,
	})
	if err != nil {
		return nil, err
	}

	ingest := usecases.NewIngestUseCase(
		loader.NewFileLoader(),
		splitter.NewRecursive(cfg.Index.ChunkSize, cfg.Index.ChunkOverlap),
		embedder,
		cfg.Embedder.BatchSize,
	)
	provisioner := usecases.NewProvisioner(
		vectordb.NewSQLiteIndexStore(cfg.Index.Dir),
		ingest,
		embedder,
		usecases.ProvisionerConfig{
			SourceDir: cfg.Index.SourceDir,
			TTL:       cfg.Index.CacheTTL,
			TopK:      cfg.Index.TopK,
		},
	)

	models := llm.NewFactory(llm.Config{
		Provider:      cfg.LLM.Provider,
		BaseURL:       cfg.LLM.BaseURL,
		APIKey:        apiKey,
		Models:        cfg.LLM.Models,
		RetryAttempts: cfg.Agent.RetryAttempts,
		RetryBase:     provider.DefaultRetryBase,
	})

	counter, err := tokens.NewCounter(cfg.Session.Model)
	if err != nil {
		log.Warn("Token encoding unavailable, estimating token counts", "error", err)
	}

	a := &app{cfg: cfg, models: models, provisioner: provisioner}

	store, err := a.openHistory()
	if err != nil {
		return nil, err
	}

	defaults, err := cfg.SessionDefaults()
	if err != nil {
		a.Close()
		return nil, err
	}

	builder := usecases.NewSessionBuilder(models, provisioner, counter, usecases.SessionOptions{
		MaxIterations:  cfg.Agent.MaxIterations,
		RequestTimeout: cfg.Agent.RequestTimeout,
		MemoryLimit:    cfg.Agent.MemoryLimit,
	})
	a.conversation = usecases.NewConversation(builder, store, defaults, cfg.Session.SeedMessage)
	return a, nil
}

func (a *app) openHistory() (ports.HistoryStore, error) {
	if a.cfg.History.Backend != "sqlite" {
		return history.NewMemoryStore(), nil
	}
	store, err := history.NewSQLiteStore(a.cfg.History.Path)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	a.closers = append(a.closers, store.Close)
	return store, nil
}

// watchIndex drops the cached retriever when the index directory is deleted.
func (a *app) watchIndex(ctx context.Context) error {
	path := a.provisioner.Store().Path()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	w, err := filewatcher.NewFSNotifyWatcher(filepath.Base(path))
	if err != nil {
		return err
	}
	a.closers = append(a.closers, w.Stop)
	return filewatcher.WatchIndex(ctx, w, path, a.provisioner)
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

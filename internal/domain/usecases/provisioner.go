package usecases

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/0xcro3dile/planlaw-go/internal/domain/entities"
	"github.com/0xcro3dile/planlaw-go/internal/domain/ports"
	"github.com/0xcro3dile/planlaw-go/internal/logger"
)

// ProvisionerConfig controls where the index lives and how long it is cached.
type ProvisionerConfig struct {
	SourceDir string
	TTL       time.Duration // zero caches for the process lifetime
	TopK      int
}

// Provisioner is the process-wide cache-or-build entry point for the
// retriever. At most one build or load runs at a time; concurrent callers
// share its result.
type Provisioner struct {
	store    ports.IndexStore
	ingest   *IngestUseCase
	embedder ports.EmbeddingService
	cfg      ProvisionerConfig
	now      func() time.Time

	group singleflight.Group

	mu       sync.Mutex
	cached   *IndexRetriever
	loadedAt time.Time
}

var _ ports.RetrieverProvider = (*Provisioner)(nil)

func NewProvisioner(
	store ports.IndexStore,
	ingest *IngestUseCase,
	embedder ports.EmbeddingService,
	cfg ProvisionerConfig,
) *Provisioner {
	return &Provisioner{
		store:    store,
		ingest:   ingest,
		embedder: embedder,
		cfg:      cfg,
		now:      time.Now,
	}
}

// GetRetriever returns the cached retriever, building or loading the index
// when the cache is empty or expired.
func (p *Provisioner) GetRetriever(ctx context.Context) (ports.Retriever, error) {
	if r := p.fresh(); r != nil {
		return r, nil
	}

	// The build outlives a single caller's cancellation; others may be waiting.
	buildCtx := context.WithoutCancel(ctx)
	v, err, shared := p.group.Do("index", func() (any, error) {
		if r := p.fresh(); r != nil {
			return r, nil
		}
		r, err := p.provision(buildCtx)
		if err != nil {
			return nil, err
		}
		p.mu.Lock()
		p.cached = r
		p.loadedAt = p.now()
		p.mu.Unlock()
		return r, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		logger.FromContext(ctx).Debug("Shared in-flight index provisioning")
	}
	return v.(*IndexRetriever), nil
}

// Invalidate drops the cached retriever. The next GetRetriever reloads from
// disk, or rebuilds if the persisted index is gone.
func (p *Provisioner) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cached = nil
	p.loadedAt = time.Time{}
}

// Rebuild removes the persisted index and builds it again.
func (p *Provisioner) Rebuild(ctx context.Context) (ports.Retriever, error) {
	p.Invalidate()
	if err := p.store.Remove(); err != nil {
		return nil, err
	}
	return p.GetRetriever(ctx)
}

// Store exposes the index location, e.g. for a directory watcher.
func (p *Provisioner) Store() ports.IndexStore { return p.store }

func (p *Provisioner) fresh() *IndexRetriever {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cached == nil {
		return nil
	}
	if p.cfg.TTL > 0 && p.now().Sub(p.loadedAt) >= p.cfg.TTL {
		p.cached = nil
		return nil
	}
	return p.cached
}

func (p *Provisioner) provision(ctx context.Context) (*IndexRetriever, error) {
	log := logger.FromContext(ctx).With("index", p.store.Path())

	exists, err := p.store.Exists()
	if err != nil {
		return nil, err
	}

	if exists {
		log.Info("Loading index from disk")
		idx, err := p.store.Open(ctx)
		if err != nil {
			return nil, err
		}
		if stored, want := idx.Info().EmbeddingModel, p.embedder.Model(); stored != "" && stored != want {
			log.Warn("Index was built with a different embedding model", "stored", stored, "configured", want)
		}
		return NewIndexRetriever(p.embedder, idx, p.cfg.TopK), nil
	}

	log.Info("Building index", "source", p.cfg.SourceDir)
	start := p.now()
	chunks, err := p.ingest.Ingest(ctx, p.cfg.SourceDir)
	if err != nil {
		return nil, err
	}
	idx, err := p.store.Create(ctx, entities.IndexInfo{EmbeddingModel: p.embedder.Model()}, chunks)
	if err != nil {
		return nil, err
	}
	log.Info("Index built", "chunks", idx.Info().ChunkCount, "took", p.now().Sub(start))
	return NewIndexRetriever(p.embedder, idx, p.cfg.TopK), nil
}

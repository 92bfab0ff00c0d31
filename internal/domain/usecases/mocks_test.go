package usecases

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/0xcro3dile/planlaw-go/internal/domain/entities"
	"github.com/0xcro3dile/planlaw-go/internal/domain/ports"
)

// mockEmbedder implements ports.EmbeddingService for testing
type mockEmbedder struct {
	embedFn func(text string) ([]float32, error)
	batches atomic.Int32
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if m.embedFn != nil {
		return m.embedFn(text)
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

func (m *mockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	m.batches.Add(1)
	result := make([][]float32, len(texts))
	for i := range texts {
		emb, err := m.Embed(ctx, texts[i])
		if err != nil {
			return nil, err
		}
		result[i] = emb
	}
	return result, nil
}

func (m *mockEmbedder) Model() string { return "mock-embed" }

// fileLoader reads plain files from disk and rejects .bin files.
type fileLoader struct{}

func (fileLoader) Load(ctx context.Context, path string) (*entities.Document, error) {
	if filepath.Ext(path) == ".bin" {
		return nil, fmt.Errorf("%s: %w", path, ports.ErrUnsupportedFormat)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return &entities.Document{ID: path, Name: filepath.Base(path), Path: path, Content: string(data)}, nil
}

// lineSplitter makes one chunk per non-empty line.
type lineSplitter struct{}

func (lineSplitter) Split(doc *entities.Document) ([]entities.Chunk, error) {
	var chunks []entities.Chunk
	for _, line := range strings.Split(doc.Content, "\n") {
		if line = strings.TrimSpace(line); line == "" {
			continue
		}
		chunks = append(chunks, entities.Chunk{
			ID:         doc.Name + "-" + string(rune('a'+len(chunks))),
			DocumentID: doc.ID,
			Source:     doc.Name,
			Content:    line,
			Index:      len(chunks),
		})
	}
	return chunks, nil
}

// mockIndex implements ports.VectorIndex for testing
type mockIndex struct {
	info    entities.IndexInfo
	results []entities.QueryResult
}

func (m *mockIndex) Search(ctx context.Context, embedding []float32, topK int) ([]entities.QueryResult, error) {
	if len(m.results) > topK {
		return m.results[:topK], nil
	}
	return m.results, nil
}

func (m *mockIndex) Info() entities.IndexInfo { return m.info }
func (m *mockIndex) Close() error             { return nil }

// mockIndexStore implements ports.IndexStore for testing
type mockIndexStore struct {
	mu       sync.Mutex
	exists   bool
	stored   []entities.Chunk
	info     entities.IndexInfo
	creates  int
	opens    int
	createFn func() error
	delay    time.Duration
}

func (m *mockIndexStore) Path() string { return "mock-index" }

func (m *mockIndexStore) Exists() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.exists, nil
}

func (m *mockIndexStore) Create(ctx context.Context, info entities.IndexInfo, chunks []entities.Chunk) (ports.VectorIndex, error) {
	time.Sleep(m.delay)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creates++
	if m.createFn != nil {
		if err := m.createFn(); err != nil {
			return nil, err
		}
	}
	m.exists = true
	m.stored = chunks
	m.info = info
	return &mockIndex{info: info, results: toResults(chunks)}, nil
}

func (m *mockIndexStore) Open(ctx context.Context) (ports.VectorIndex, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opens++
	return &mockIndex{info: m.info, results: toResults(m.stored)}, nil
}

func (m *mockIndexStore) Remove() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exists = false
	m.stored = nil
	return nil
}

func (m *mockIndexStore) counts() (creates, opens int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.creates, m.opens
}

func toResults(chunks []entities.Chunk) []entities.QueryResult {
	out := make([]entities.QueryResult, len(chunks))
	for i, c := range chunks {
		out[i] = entities.QueryResult{Chunk: c, Score: 0.9, SourceDoc: c.Source}
	}
	return out
}

// staticProvider implements ports.RetrieverProvider for testing
type staticProvider struct {
	retriever ports.Retriever
	err       error
}

func (p *staticProvider) GetRetriever(ctx context.Context) (ports.Retriever, error) {
	return p.retriever, p.err
}

// mockRetriever implements ports.Retriever for testing
type mockRetriever struct {
	results []entities.QueryResult
	err     error
	queries []string
}

func (m *mockRetriever) Retrieve(ctx context.Context, query string) ([]entities.QueryResult, error) {
	m.queries = append(m.queries, query)
	return m.results, m.err
}

// scriptedModel replays canned replies in order.
type scriptedModel struct {
	replies  []entities.ModelReply
	err      error
	block    bool
	requests []entities.ModelRequest
}

func (m *scriptedModel) Generate(ctx context.Context, req entities.ModelRequest, onToken ports.StreamFunc) (*entities.ModelReply, error) {
	m.requests = append(m.requests, req)
	if m.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if m.err != nil {
		return nil, m.err
	}
	if len(m.replies) == 0 {
		return &entities.ModelReply{}, nil
	}
	reply := m.replies[0]
	m.replies = m.replies[1:]
	if onToken != nil {
		for _, w := range strings.SplitAfter(reply.Content, " ") {
			onToken(w)
		}
	}
	return &reply, nil
}

// mockFactory implements ports.ModelFactory for testing
type mockFactory struct {
	model  ports.ChatModel
	err    error
	window int
	built  []entities.SessionConfig
}

func (f *mockFactory) NewChatModel(cfg entities.SessionConfig) (ports.ChatModel, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.built = append(f.built, cfg)
	return f.model, nil
}

func (f *mockFactory) ContextWindow(model string) int {
	if f.window > 0 {
		return f.window
	}
	return 8192
}

// wordCounter counts whitespace separated words.
type wordCounter struct{}

func (wordCounter) Count(text string) int { return len(strings.Fields(text)) }

// mockHistory implements ports.HistoryStore for testing
type mockHistory struct {
	msgs      []entities.ChatMessage
	appendErr error
}

func (m *mockHistory) Load(ctx context.Context) ([]entities.ChatMessage, error) {
	return append([]entities.ChatMessage(nil), m.msgs...), nil
}

func (m *mockHistory) Append(ctx context.Context, msgs ...entities.ChatMessage) error {
	if m.appendErr != nil {
		return m.appendErr
	}
	m.msgs = append(m.msgs, msgs...)
	return nil
}

func (m *mockHistory) Reset(ctx context.Context, msgs ...entities.ChatMessage) error {
	m.msgs = append([]entities.ChatMessage(nil), msgs...)
	return nil
}

// Package ports defines interfaces for external dependencies.
// Usecases depend on these abstractions; adapters implement them.
package ports

import (
	"context"
	"errors"

	"github.com/0xcro3dile/planlaw-go/internal/domain/entities"
)

// EmbeddingService generates vector embeddings for text.
type EmbeddingService interface {
	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts efficiently.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Model names the embedding model, recorded alongside a built index.
	Model() string
}

// ErrUnsupportedFormat is returned by a DocumentLoader for files it cannot
// read. Such files are skipped rather than failing a build.
var ErrUnsupportedFormat = errors.New("unsupported document format")

// DocumentLoader reads and parses documents from various formats.
type DocumentLoader interface {
	// Load reads a document from the given path.
	// Unreadable formats are reported as ErrUnsupportedFormat.
	Load(ctx context.Context, path string) (*entities.Document, error)
}

// Splitter cuts a document into chunks ready for embedding.
type Splitter interface {
	Split(doc *entities.Document) ([]entities.Chunk, error)
}

// VectorIndex is an opened, searchable index.
type VectorIndex interface {
	// Search finds the most similar chunks to a query embedding.
	Search(ctx context.Context, embedding []float32, topK int) ([]entities.QueryResult, error)

	// Info describes how the index was built.
	Info() entities.IndexInfo

	Close() error
}

// IndexStore manages the persisted index location.
type IndexStore interface {
	// Path is the persisted index location.
	Path() string

	// Exists reports whether a persisted index is present.
	Exists() (bool, error)

	// Create writes a new index from embedded chunks. On failure nothing is
	// left at Path.
	Create(ctx context.Context, info entities.IndexInfo, chunks []entities.Chunk) (VectorIndex, error)

	// Open loads the persisted index.
	Open(ctx context.Context) (VectorIndex, error)

	// Remove deletes the persisted index.
	Remove() error
}

// Retriever returns document chunks relevant to a free-text query.
type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]entities.QueryResult, error)
}

// RetrieverProvider hands out the shared retriever.
type RetrieverProvider interface {
	GetRetriever(ctx context.Context) (Retriever, error)
}

// StreamFunc receives answer tokens as they arrive.
type StreamFunc func(token string)

// ChatModel is a chat model client bound to one model and temperature.
type ChatModel interface {
	// Generate runs one model call. Tokens are passed to onToken when it is
	// non-nil; the returned reply is complete either way.
	Generate(ctx context.Context, req entities.ModelRequest, onToken StreamFunc) (*entities.ModelReply, error)
}

// ModelFactory creates chat model clients.
type ModelFactory interface {
	// NewChatModel returns a client for the model and temperature in cfg.
	NewChatModel(cfg entities.SessionConfig) (ChatModel, error)

	// ContextWindow is the model's context size in tokens.
	ContextWindow(model string) int
}

// TokenCounter counts tokens the way the chat model does.
type TokenCounter interface {
	Count(text string) int
}

// HistoryStore persists the conversation history.
type HistoryStore interface {
	// Load returns the history oldest first.
	Load(ctx context.Context) ([]entities.ChatMessage, error)

	// Append adds messages in one write: either all are stored or none.
	Append(ctx context.Context, msgs ...entities.ChatMessage) error

	// Reset replaces the whole history with msgs.
	Reset(ctx context.Context, msgs ...entities.ChatMessage) error
}

// FileWatcher monitors a directory for changes.
type FileWatcher interface {
	// Watch starts monitoring the directory and emits events.
	Watch(ctx context.Context, dir string) (<-chan FileEvent, error)

	// Stop stops the watcher.
	Stop() error
}

// FileEvent represents a file system change.
type FileEvent struct {
	Path      string
	Operation FileOperation
}

// FileOperation is the type of file change.
type FileOperation int

const (
	FileCreated FileOperation = iota
	FileModified
	FileDeleted
)

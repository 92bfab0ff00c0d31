// Package entities contains core business entities.
// These are the enterprise business rules - pure domain objects with no external dependencies.
package entities

import "time"

// Document represents a source document loaded from the law sections directory.
type Document struct {
	ID      string
	Name    string
	Path    string
	Content string
}

// Chunk represents a piece of a document for embedding.
// Immutable once it has been written to an index.
type Chunk struct {
	ID         string
	DocumentID string
	Source     string // Document name for citation
	Content    string
	Index      int       // Position in document
	Embedding  []float32 // Vector representation (populated by adapter)
}

// QueryResult represents a search result with relevance.
type QueryResult struct {
	Chunk     Chunk
	Score     float64 // Similarity score
	SourceDoc string  // Document name for citation
}

// IndexInfo describes how a persisted index was built.
type IndexInfo struct {
	EmbeddingModel string
	Dimension      int
	ChunkCount     int
	BuiltAt        time.Time
}

// Role identifies the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ChatMessage represents a conversation turn shown in the UI.
// Only RoleUser and RoleAssistant appear in conversation history.
type ChatMessage struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// IsHistoryRole reports whether r may be stored in conversation history.
func (r Role) IsHistoryRole() bool {
	return r == RoleUser || r == RoleAssistant
}

// SessionConfig is the read-only configuration of one chat session.
type SessionConfig struct {
	Model       string        `json:"model"`
	Temperature float64       `json:"temperature"`
	Variant     PromptVariant `json:"variant"`
}

// ToolCall is a model request to run a tool.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string // raw JSON arguments
}

// ToolSpec describes a tool to the model's function-calling schema.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// ModelMessage is a provider-neutral prompt message.
type ModelMessage struct {
	Role       Role
	Content    string
	ToolCalls  []ToolCall // set on assistant messages that requested tools
	ToolCallID string     // set on tool messages
	ToolName   string     // set on tool messages
}

// ModelRequest is one call to the chat model.
type ModelRequest struct {
	Messages []ModelMessage
	Tools    []ToolSpec
}

// ModelReply is the model's answer to a ModelRequest.
type ModelReply struct {
	Content   string
	ToolCalls []ToolCall
}

// ToolStep records one tool invocation made while answering.
type ToolStep struct {
	Tool   string `json:"tool"`
	Input  string `json:"input"`
	Output string `json:"output"`
}

// Answer is the final result of a session invocation.
type Answer struct {
	Content string     `json:"content"`
	Steps   []ToolStep `json:"steps,omitempty"`
}

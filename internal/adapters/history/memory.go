// Package history stores the conversation history.
package history

import (
	"context"
	"slices"
	"sync"

	"github.com/0xcro3dile/planlaw-go/internal/domain/entities"
	"github.com/0xcro3dile/planlaw-go/internal/domain/ports"
)

// MemoryStore keeps history for the process lifetime.
type MemoryStore struct {
	mu   sync.RWMutex
	msgs []entities.ChatMessage
}

var _ ports.HistoryStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load(ctx context.Context) ([]entities.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.msgs), nil
}

func (s *MemoryStore) Append(ctx context.Context, msgs ...entities.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msgs...)
	return nil
}

func (s *MemoryStore) Reset(ctx context.Context, msgs ...entities.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = slices.Clone(msgs)
	return nil
}

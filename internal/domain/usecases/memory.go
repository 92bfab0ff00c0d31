package usecases

import (
	"github.com/0xcro3dile/planlaw-go/internal/domain/entities"
	"github.com/0xcro3dile/planlaw-go/internal/domain/ports"
)

// perMessageTokens approximates the role and separator overhead the chat
// format adds to each message.
const perMessageTokens = 4

// MemoryBuffer keeps the most recent messages that fit a token budget.
// Adding a message evicts the oldest ones until the total fits again.
type MemoryBuffer struct {
	counter ports.TokenCounter
	budget  int
	msgs    []entities.ChatMessage
	sizes   []int
	total   int
}

func NewMemoryBuffer(counter ports.TokenCounter, budget int) *MemoryBuffer {
	return &MemoryBuffer{counter: counter, budget: max(budget, 0)}
}

// ReplayHistory folds history, oldest first, into a fresh buffer.
func ReplayHistory(counter ports.TokenCounter, budget int, history []entities.ChatMessage) *MemoryBuffer {
	mem := NewMemoryBuffer(counter, budget)
	for _, msg := range history {
		mem.Add(msg)
	}
	return mem
}

// Add appends msg and trims from the front. Messages with a role that does
// not belong in history are ignored.
func (m *MemoryBuffer) Add(msg entities.ChatMessage) {
	if !msg.Role.IsHistoryRole() {
		return
	}
	n := m.counter.Count(msg.Content) + perMessageTokens
	m.msgs = append(m.msgs, msg)
	m.sizes = append(m.sizes, n)
	m.total += n

	drop := 0
	for m.total > m.budget && drop < len(m.msgs) {
		m.total -= m.sizes[drop]
		drop++
	}
	if drop > 0 {
		m.msgs = append([]entities.ChatMessage(nil), m.msgs[drop:]...)
		m.sizes = append([]int(nil), m.sizes[drop:]...)
	}
}

// Messages returns the retained messages, oldest first.
func (m *MemoryBuffer) Messages() []entities.ChatMessage {
	return append([]entities.ChatMessage(nil), m.msgs...)
}

// Tokens is the running token total of the retained messages.
func (m *MemoryBuffer) Tokens() int { return m.total }

func (m *MemoryBuffer) Budget() int { return m.budget }

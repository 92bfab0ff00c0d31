package usecases

import (
	"context"
	"crypto/rand"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/0xcro3dile/planlaw-go/internal/domain/apperr"
	"github.com/0xcro3dile/planlaw-go/internal/domain/entities"
	"github.com/0xcro3dile/planlaw-go/internal/domain/ports"
	"github.com/0xcro3dile/planlaw-go/internal/logger"
)

// DefaultSeedMessage opens every conversation.
const DefaultSeedMessage = "Skrivebok for Bendik Svartva.."

// SessionState is the lifecycle state of the active session.
type SessionState int

const (
	StateUninitialized SessionState = iota
	StateReady
)

func (s SessionState) String() string {
	if s == StateReady {
		return "ready"
	}
	return "uninitialized"
}

// Conversation owns the single active session and the conversation history.
// All operations are serialized.
type Conversation struct {
	builder  *SessionBuilder
	history  ports.HistoryStore
	defaults entities.SessionConfig
	seed     string
	now      func() time.Time

	mu      sync.Mutex
	session *Session
	entropy io.Reader
}

func NewConversation(
	builder *SessionBuilder,
	history ports.HistoryStore,
	defaults entities.SessionConfig,
	seed string,
) *Conversation {
	if seed == "" {
		seed = DefaultSeedMessage
	}
	return &Conversation{
		builder:  builder,
		history:  history,
		defaults: defaults,
		seed:     seed,
		now:      time.Now,
		entropy:  ulid.Monotonic(rand.Reader, 0),
	}
}

// State reports whether a session has been built.
func (c *Conversation) State() SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return StateUninitialized
	}
	return StateReady
}

// Config is the active session's configuration, or the defaults before the
// first build.
func (c *Conversation) Config() entities.SessionConfig {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return c.defaults
	}
	return c.session.Config()
}

// Reload replaces the active session. On failure the previous session stays.
func (c *Conversation) Reload(ctx context.Context, cfg entities.SessionConfig) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, err := c.builder.Build(ctx, cfg)
	if err != nil {
		return err
	}
	c.session = s
	logger.FromContext(ctx).Info("Reloaded LLM", "model", cfg.Model, "temperature", cfg.Temperature, "variant", cfg.Variant)
	return nil
}

// History returns the conversation, seeding it on first use.
func (c *Conversation) History(ctx context.Context) ([]entities.ChatMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadHistory(ctx)
}

// Clear resets the history to the single seed message.
func (c *Conversation) Clear(ctx context.Context) ([]entities.ChatMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	seed := c.newMessage(entities.RoleAssistant, c.seed)
	if err := c.history.Reset(ctx, seed); err != nil {
		return nil, apperr.FromContext(ctx, apperr.KindPersistence, "clear history", err)
	}
	return []entities.ChatMessage{seed}, nil
}

// Send answers input and records the exchange. The user turn and the
// assistant reply are appended together, and only on success.
func (c *Conversation) Send(ctx context.Context, input string, cb Callbacks) (*entities.ChatMessage, *entities.Answer, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, nil, apperr.Configuration("message must not be empty")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		s, err := c.builder.Build(ctx, c.defaults)
		if err != nil {
			return nil, nil, err
		}
		c.session = s
	}

	history, err := c.loadHistory(ctx)
	if err != nil {
		return nil, nil, err
	}

	answer, err := c.session.Invoke(ctx, input, history, cb)
	if err != nil {
		logger.FromContext(ctx).Warn("Invocation failed", "error", err)
		return nil, nil, err
	}

	user := c.newMessage(entities.RoleUser, input)
	reply := c.newMessage(entities.RoleAssistant, answer.Content)
	if err := c.history.Append(ctx, user, reply); err != nil {
		return nil, nil, apperr.FromContext(ctx, apperr.KindPersistence, "append history", err)
	}
	return &reply, answer, nil
}

func (c *Conversation) loadHistory(ctx context.Context) ([]entities.ChatMessage, error) {
	msgs, err := c.history.Load(ctx)
	if err != nil {
		return nil, apperr.FromContext(ctx, apperr.KindPersistence, "load history", err)
	}
	if len(msgs) > 0 {
		return msgs, nil
	}
	seed := c.newMessage(entities.RoleAssistant, c.seed)
	if err := c.history.Reset(ctx, seed); err != nil {
		return nil, apperr.FromContext(ctx, apperr.KindPersistence, "seed history", err)
	}
	return []entities.ChatMessage{seed}, nil
}

func (c *Conversation) newMessage(role entities.Role, content string) entities.ChatMessage {
	now := c.now().UTC()
	return entities.ChatMessage{
		ID:        ulid.MustNew(ulid.Timestamp(now), c.entropy).String(),
		Role:      role,
		Content:   content,
		CreatedAt: now,
	}
}

package usecases

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/0xcro3dile/planlaw-go/internal/domain/apperr"
	"github.com/0xcro3dile/planlaw-go/internal/domain/entities"
	"github.com/0xcro3dile/planlaw-go/internal/domain/ports"
	"github.com/0xcro3dile/planlaw-go/internal/domain/prompts"
	"github.com/0xcro3dile/planlaw-go/internal/logger"
)

// ErrIterationLimit is returned when the model keeps calling tools past
// the configured number of rounds.
var ErrIterationLimit = apperr.New(apperr.KindModelAPI, "invoke", errors.New("agent stopped after reaching the iteration limit"))

// ErrEmptyAnswer is returned when the model finishes without any text.
var ErrEmptyAnswer = apperr.New(apperr.KindModelAPI, "invoke", errors.New("model returned an empty answer"))

// SessionOptions tunes every session a SessionBuilder creates.
type SessionOptions struct {
	MaxIterations   int
	RequestTimeout  time.Duration
	MemoryLimit     int // upper bound for the history token budget
	ResponseReserve int // tokens kept free for the model's answer
}

// Callbacks observe an invocation while it runs. Both fields may be nil.
type Callbacks struct {
	OnToken ports.StreamFunc
	OnTool  func(name, query string)
}

// SessionBuilder assembles sessions from a model factory and the shared
// retriever provider.
type SessionBuilder struct {
	models   ports.ModelFactory
	provider ports.RetrieverProvider
	counter  ports.TokenCounter
	opts     SessionOptions
}

func NewSessionBuilder(
	models ports.ModelFactory,
	provider ports.RetrieverProvider,
	counter ports.TokenCounter,
	opts SessionOptions,
) *SessionBuilder {
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = 6
	}
	if opts.MemoryLimit <= 0 {
		opts.MemoryLimit = 12000
	}
	if opts.ResponseReserve <= 0 {
		opts.ResponseReserve = 1024
	}
	return &SessionBuilder{models: models, provider: provider, counter: counter, opts: opts}
}

// Build creates a ready session for cfg. The retriever is provisioned
// up front so index problems surface here rather than mid-conversation.
func (b *SessionBuilder) Build(ctx context.Context, cfg entities.SessionConfig) (*Session, error) {
	if cfg.Temperature < 0 || cfg.Temperature > 1 {
		return nil, apperr.Configuration("temperature %.2f outside [0, 1]", cfg.Temperature)
	}
	system, err := prompts.SystemPrompt(cfg.Variant)
	if err != nil {
		return nil, err
	}
	model, err := b.models.NewChatModel(cfg)
	if err != nil {
		return nil, err
	}
	if _, err := b.provider.GetRetriever(ctx); err != nil {
		return nil, err
	}

	window := b.models.ContextWindow(cfg.Model)
	budget := min(b.opts.MemoryLimit, window-b.opts.ResponseReserve-b.counter.Count(system))
	if budget < 0 {
		budget = 0
	}

	logger.FromContext(ctx).Info("Session ready",
		"model", cfg.Model, "temperature", cfg.Temperature, "variant", cfg.Variant, "memory_budget", budget)

	return &Session{
		cfg:     cfg,
		model:   model,
		tool:    NewRetrievalTool(b.provider),
		system:  system,
		counter: b.counter,
		budget:  budget,
		opts:    b.opts,
	}, nil
}

// Session is a model client, retrieval tool, system prompt and memory
// budget bound together. It holds no conversation state of its own.
type Session struct {
	cfg     entities.SessionConfig
	model   ports.ChatModel
	tool    *RetrievalTool
	system  string
	counter ports.TokenCounter
	budget  int
	opts    SessionOptions
}

func (s *Session) Config() entities.SessionConfig { return s.cfg }

// MemoryBudget is the token budget for replayed history.
func (s *Session) MemoryBudget() int { return s.budget }

// Invoke answers input given the prior history. The model may call the
// retrieval tool any number of times, up to the iteration limit, before it
// answers. The answer is assembled from model replies, so streaming
// callbacks never change it.
func (s *Session) Invoke(ctx context.Context, input string, history []entities.ChatMessage, cb Callbacks) (*entities.Answer, error) {
	if s.opts.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.RequestTimeout)
		defer cancel()
	}
	log := logger.FromContext(ctx)

	mem := ReplayHistory(s.counter, s.budget, history)
	msgs := make([]entities.ModelMessage, 0, len(history)+2)
	msgs = append(msgs, entities.ModelMessage{Role: entities.RoleSystem, Content: s.system})
	for _, m := range mem.Messages() {
		msgs = append(msgs, entities.ModelMessage{Role: m.Role, Content: m.Content})
	}
	msgs = append(msgs, entities.ModelMessage{Role: entities.RoleUser, Content: input})
	log.Debug("Memory replayed", "kept", len(mem.Messages()), "of", len(history), "tokens", mem.Tokens())

	tools := []entities.ToolSpec{s.tool.Spec()}
	var steps []entities.ToolStep

	for round := 0; round < s.opts.MaxIterations; round++ {
		reply, err := s.model.Generate(ctx, entities.ModelRequest{Messages: msgs, Tools: tools}, cb.OnToken)
		if err != nil {
			return nil, apperr.FromContext(ctx, apperr.KindModelAPI, "generate", err)
		}

		if len(reply.ToolCalls) == 0 {
			content := strings.TrimSpace(reply.Content)
			if content == "" {
				return nil, ErrEmptyAnswer
			}
			return &entities.Answer{Content: content, Steps: steps}, nil
		}

		msgs = append(msgs, entities.ModelMessage{
			Role:      entities.RoleAssistant,
			Content:   reply.Content,
			ToolCalls: reply.ToolCalls,
		})
		for _, call := range reply.ToolCalls {
			output, err := s.runTool(ctx, call, cb)
			if err != nil {
				return nil, apperr.FromContext(ctx, apperr.KindModelAPI, "tool "+call.Name, err)
			}
			steps = append(steps, entities.ToolStep{Tool: call.Name, Input: s.tool.Query(call.Arguments), Output: output})
			msgs = append(msgs, entities.ModelMessage{
				Role:       entities.RoleTool,
				Content:    output,
				ToolCallID: call.ID,
				ToolName:   call.Name,
			})
		}
	}
	return nil, ErrIterationLimit
}

func (s *Session) runTool(ctx context.Context, call entities.ToolCall, cb Callbacks) (string, error) {
	if call.Name != RetrievalToolName {
		// Let the model recover from a hallucinated tool name.
		return fmt.Sprintf("%s is not a valid tool, try %s.", call.Name, RetrievalToolName), nil
	}
	query := s.tool.Query(call.Arguments)
	if cb.OnTool != nil {
		cb.OnTool(call.Name, query)
	}
	logger.FromContext(ctx).Debug("Retrieval tool called", "query", query)
	return s.tool.Call(ctx, query)
}

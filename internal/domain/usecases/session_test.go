package usecases

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xcro3dile/planlaw-go/internal/domain/apperr"
	"github.com/0xcro3dile/planlaw-go/internal/domain/entities"
)

var defaultCfg = entities.SessionConfig{Model: "gpt-4", Temperature: 0, Variant: entities.VariantOriginal}

func newTestBuilder(model *scriptedModel, retriever *mockRetriever, opts SessionOptions) (*SessionBuilder, *mockFactory) {
	factory := &mockFactory{model: model}
	return NewSessionBuilder(factory, &staticProvider{retriever: retriever}, wordCounter{}, opts), factory
}

func TestSession_DirectAnswer(t *testing.T) {
	model := &scriptedModel{replies: []entities.ModelReply{{Content: "Hello there"}}}
	b, factory := newTestBuilder(model, &mockRetriever{}, SessionOptions{})

	s, err := b.Build(context.Background(), defaultCfg)
	require.NoError(t, err)
	assert.Equal(t, []entities.SessionConfig{defaultCfg}, factory.built)

	ans, err := s.Invoke(context.Background(), "hi", nil, Callbacks{})
	require.NoError(t, err)
	assert.Equal(t, "Hello there", ans.Content)
	assert.Empty(t, ans.Steps)

	req := model.requests[0]
	require.Len(t, req.Messages, 2)
	assert.Equal(t, entities.RoleSystem, req.Messages[0].Role)
	assert.Equal(t, "hi", req.Messages[1].Content)
	require.Len(t, req.Tools, 1)
	assert.Equal(t, "search_plan_and_building_law", req.Tools[0].Name)
}

func TestSession_ToolCallThenAnswer(t *testing.T) {
	model := &scriptedModel{replies: []entities.ModelReply{
		{ToolCalls: []entities.ToolCall{{ID: "call_1", Name: RetrievalToolName, Arguments: `{"query":"byggesak frister"}`}}},
		{Content: "The deadline is 12 weeks."},
	}}
	retriever := &mockRetriever{results: []entities.QueryResult{
		{Chunk: entities.Chunk{Content: "§ 21-7 ... 12 uker"}},
		{Chunk: entities.Chunk{Content: "§ 21-8 ..."}},
	}}
	b, _ := newTestBuilder(model, retriever, SessionOptions{})
	s, err := b.Build(context.Background(), defaultCfg)
	require.NoError(t, err)

	var tools []string
	ans, err := s.Invoke(context.Background(), "deadline?", nil, Callbacks{
		OnTool: func(name, query string) { tools = append(tools, name+":"+query) },
	})
	require.NoError(t, err)

	assert.Equal(t, "The deadline is 12 weeks.", ans.Content)
	require.Len(t, ans.Steps, 1)
	assert.Equal(t, "byggesak frister", ans.Steps[0].Input)
	assert.Equal(t, "§ 21-7 ... 12 uker\n\n§ 21-8 ...", ans.Steps[0].Output)
	assert.Equal(t, []string{"search_plan_and_building_law:byggesak frister"}, tools)
	assert.Equal(t, []string{"byggesak frister"}, retriever.queries)

	second := model.requests[1].Messages
	last := second[len(second)-1]
	assert.Equal(t, entities.RoleTool, last.Role)
	assert.Equal(t, "call_1", last.ToolCallID)
}

func TestSession_StreamingDoesNotChangeAnswer(t *testing.T) {
	replies := []entities.ModelReply{{Content: "Section 1-1 describes the purpose."}}

	b1, _ := newTestBuilder(&scriptedModel{replies: append([]entities.ModelReply(nil), replies...)}, &mockRetriever{}, SessionOptions{})
	s1, err := b1.Build(context.Background(), defaultCfg)
	require.NoError(t, err)
	var streamed strings.Builder
	withStream, err := s1.Invoke(context.Background(), "q", nil, Callbacks{OnToken: func(tok string) { streamed.WriteString(tok) }})
	require.NoError(t, err)

	b2, _ := newTestBuilder(&scriptedModel{replies: append([]entities.ModelReply(nil), replies...)}, &mockRetriever{}, SessionOptions{})
	s2, err := b2.Build(context.Background(), defaultCfg)
	require.NoError(t, err)
	without, err := s2.Invoke(context.Background(), "q", nil, Callbacks{})
	require.NoError(t, err)

	assert.Equal(t, without.Content, withStream.Content)
	assert.Equal(t, withStream.Content, streamed.String())
}

func TestSession_ReplaysHistoryInOrder(t *testing.T) {
	model := &scriptedModel{replies: []entities.ModelReply{{Content: "ok"}}}
	b, _ := newTestBuilder(model, &mockRetriever{}, SessionOptions{})
	s, err := b.Build(context.Background(), defaultCfg)
	require.NoError(t, err)

	history := []entities.ChatMessage{
		msg(entities.RoleAssistant, "welcome"),
		msg(entities.RoleUser, "first"),
		msg(entities.RoleAssistant, "answer"),
	}
	_, err = s.Invoke(context.Background(), "second", history, Callbacks{})
	require.NoError(t, err)

	var contents []string
	for _, m := range model.requests[0].Messages[1:] {
		contents = append(contents, m.Content)
	}
	assert.Equal(t, []string{"welcome", "first", "answer", "second"}, contents)
}

func TestSession_Errors(t *testing.T) {
	t.Run("model failure is a ModelAPIError", func(t *testing.T) {
		b, _ := newTestBuilder(&scriptedModel{err: errors.New("500 internal")}, &mockRetriever{}, SessionOptions{})
		s, err := b.Build(context.Background(), defaultCfg)
		require.NoError(t, err)
		_, err = s.Invoke(context.Background(), "q", nil, Callbacks{})
		assert.True(t, errors.Is(err, apperr.ErrModelAPI))
	})

	t.Run("empty answer is a ModelAPIError", func(t *testing.T) {
		b, _ := newTestBuilder(&scriptedModel{replies: []entities.ModelReply{{Content: "  "}}}, &mockRetriever{}, SessionOptions{})
		s, err := b.Build(context.Background(), defaultCfg)
		require.NoError(t, err)
		_, err = s.Invoke(context.Background(), "q", nil, Callbacks{})
		assert.Same(t, ErrEmptyAnswer, err)
	})

	t.Run("deadline is a RequestTimeout", func(t *testing.T) {
		b, _ := newTestBuilder(&scriptedModel{block: true}, &mockRetriever{}, SessionOptions{RequestTimeout: 20 * time.Millisecond})
		s, err := b.Build(context.Background(), defaultCfg)
		require.NoError(t, err)
		_, err = s.Invoke(context.Background(), "q", nil, Callbacks{})
		assert.True(t, errors.Is(err, apperr.ErrRequestTimeout))
	})

	t.Run("retrieval failure keeps its kind", func(t *testing.T) {
		model := &scriptedModel{replies: []entities.ModelReply{
			{ToolCalls: []entities.ToolCall{{ID: "c", Name: RetrievalToolName, Arguments: `{"query":"x"}`}}},
		}}
		retriever := &mockRetriever{err: apperr.New(apperr.KindEmbeddingService, "embed query", errors.New("503"))}
		b, _ := newTestBuilder(model, retriever, SessionOptions{})
		s, err := b.Build(context.Background(), defaultCfg)
		require.NoError(t, err)
		_, err = s.Invoke(context.Background(), "q", nil, Callbacks{})
		assert.True(t, errors.Is(err, apperr.ErrEmbeddingService))
	})

	t.Run("tool loop stops at the iteration limit", func(t *testing.T) {
		call := entities.ModelReply{ToolCalls: []entities.ToolCall{{ID: "c", Name: RetrievalToolName, Arguments: `{"query":"x"}`}}}
		model := &scriptedModel{replies: []entities.ModelReply{call, call, call}}
		b, _ := newTestBuilder(model, &mockRetriever{}, SessionOptions{MaxIterations: 2})
		s, err := b.Build(context.Background(), defaultCfg)
		require.NoError(t, err)
		_, err = s.Invoke(context.Background(), "q", nil, Callbacks{})
		assert.Same(t, ErrIterationLimit, err)
		assert.Len(t, model.requests, 2)
	})
}

func TestSessionBuilder_RejectsBadConfig(t *testing.T) {
	b, _ := newTestBuilder(&scriptedModel{}, &mockRetriever{}, SessionOptions{})

	_, err := b.Build(context.Background(), entities.SessionConfig{Model: "gpt-4", Variant: entities.PromptVariant(7)})
	assert.True(t, errors.Is(err, apperr.ErrConfiguration))

	_, err = b.Build(context.Background(), entities.SessionConfig{Model: "gpt-4", Temperature: 1.5, Variant: entities.VariantOriginal})
	assert.True(t, errors.Is(err, apperr.ErrConfiguration))

	factory := &mockFactory{err: apperr.Configuration("unknown model %q", "gpt-5")}
	b = NewSessionBuilder(factory, &staticProvider{retriever: &mockRetriever{}}, wordCounter{}, SessionOptions{})
	_, err = b.Build(context.Background(), entities.SessionConfig{Model: "gpt-5", Variant: entities.VariantOriginal})
	assert.True(t, errors.Is(err, apperr.ErrConfiguration))
}

func TestSessionBuilder_BudgetShrinksWithPrompt(t *testing.T) {
	b, _ := newTestBuilder(&scriptedModel{}, &mockRetriever{}, SessionOptions{})

	orig, err := b.Build(context.Background(), defaultCfg)
	require.NoError(t, err)
	summary, err := b.Build(context.Background(), entities.SessionConfig{Model: "gpt-4", Variant: entities.VariantExtensiveSummary})
	require.NoError(t, err)

	assert.Greater(t, orig.MemoryBudget(), summary.MemoryBudget())
	assert.LessOrEqual(t, orig.MemoryBudget(), 8192-1024)
}

func TestSessionBuilder_ProvisioningFailure(t *testing.T) {
	provider := &staticProvider{err: apperr.New(apperr.KindLoad, "read source dir", errors.New("missing"))}
	b := NewSessionBuilder(&mockFactory{model: &scriptedModel{}}, provider, wordCounter{}, SessionOptions{})

	_, err := b.Build(context.Background(), defaultCfg)
	assert.True(t, errors.Is(err, apperr.ErrLoad))
}

package llm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/0xcro3dile/planlaw-go/internal/domain/apperr"
	"github.com/0xcro3dile/planlaw-go/internal/domain/entities"
)

// fakeModel implements llms.Model for testing
type fakeModel struct {
	responses []*llms.ContentResponse
	errs      []error
	chunks    []string
	calls     int
	lastMsgs  []llms.MessageContent
	lastOpts  llms.CallOptions
}

func (f *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.calls++
	f.lastMsgs = messages
	f.lastOpts = llms.CallOptions{}
	for _, o := range options {
		o(&f.lastOpts)
	}
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	if f.lastOpts.StreamingFunc != nil {
		for _, c := range f.chunks {
			if err := f.lastOpts.StreamingFunc(ctx, []byte(c)); err != nil {
				return nil, err
			}
		}
	}
	resp := f.responses[0]
	f.responses = f.responses[1:]
	return resp, nil
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

func textResponse(s string) *llms.ContentResponse {
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: s}}}
}

func TestClient_ConvertsConversation(t *testing.T) {
	model := &fakeModel{responses: []*llms.ContentResponse{textResponse("done")}}
	c := NewClient(model, "gpt-4", 0.2, 0, 0)

	req := entities.ModelRequest{
		Messages: []entities.ModelMessage{
			{Role: entities.RoleSystem, Content: "sys"},
			{Role: entities.RoleUser, Content: "q"},
			{Role: entities.RoleAssistant, ToolCalls: []entities.ToolCall{{ID: "call_1", Name: "search_plan_and_building_law", Arguments: `{"query":"q"}`}}},
			{Role: entities.RoleTool, ToolCallID: "call_1", ToolName: "search_plan_and_building_law", Content: "chunk"},
		},
		Tools: []entities.ToolSpec{{Name: "search_plan_and_building_law", Description: "d", Parameters: map[string]any{"type": "object"}}},
	}
	reply, err := c.Generate(context.Background(), req, nil)
	require.NoError(t, err)
	assert.Equal(t, "done", reply.Content)

	require.Len(t, model.lastMsgs, 4)
	assert.Equal(t, llms.ChatMessageTypeSystem, model.lastMsgs[0].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, model.lastMsgs[1].Role)
	assert.Equal(t, llms.ChatMessageTypeAI, model.lastMsgs[2].Role)
	call, ok := model.lastMsgs[2].Parts[0].(llms.ToolCall)
	require.True(t, ok)
	assert.Equal(t, "call_1", call.ID)
	assert.Equal(t, `{"query":"q"}`, call.FunctionCall.Arguments)
	resp, ok := model.lastMsgs[3].Parts[0].(llms.ToolCallResponse)
	require.True(t, ok)
	assert.Equal(t, "chunk", resp.Content)

	assert.Equal(t, 0.2, model.lastOpts.Temperature)
	require.Len(t, model.lastOpts.Tools, 1)
	assert.Equal(t, "search_plan_and_building_law", model.lastOpts.Tools[0].Function.Name)
	assert.Nil(t, model.lastOpts.StreamingFunc)
}

func TestClient_ReturnsToolCalls(t *testing.T) {
	model := &fakeModel{responses: []*llms.ContentResponse{{Choices: []*llms.ContentChoice{{
		ToolCalls: []llms.ToolCall{{ID: "call_9", Type: "function", FunctionCall: &llms.FunctionCall{Name: "search_plan_and_building_law", Arguments: `{"query":"x"}`}}},
	}}}}}
	c := NewClient(model, "gpt-4", 0, 0, 0)

	reply, err := c.Generate(context.Background(), entities.ModelRequest{}, nil)
	require.NoError(t, err)
	require.Len(t, reply.ToolCalls, 1)
	assert.Equal(t, entities.ToolCall{ID: "call_9", Name: "search_plan_and_building_law", Arguments: `{"query":"x"}`}, reply.ToolCalls[0])
}

func TestClient_StreamsTextButNotToolDeltas(t *testing.T) {
	model := &fakeModel{
		responses: []*llms.ContentResponse{textResponse("Hello world")},
		chunks:    []string{`[{"function":{"name":"x"}}]`, "Hello", " world"},
	}
	c := NewClient(model, "gpt-4", 0, 0, 0)

	var sb strings.Builder
	reply, err := c.Generate(context.Background(), entities.ModelRequest{}, func(tok string) { sb.WriteString(tok) })
	require.NoError(t, err)
	assert.Equal(t, "Hello world", sb.String())
	assert.Equal(t, "Hello world", reply.Content)
}

func TestClient_StreamsJSONLookingText(t *testing.T) {
	model := &fakeModel{
		responses: []*llms.ContentResponse{textResponse("See [1] and {}")},
		chunks:    []string{"See ", "[1]", " and ", "{}", `[{"type":"function","function":{"name":"search_plan_and_building_law"}}]`, `{"query":"x"}`},
	}
	c := NewClient(model, "gpt-4", 0, 0, 0)

	var sb strings.Builder
	_, err := c.Generate(context.Background(), entities.ModelRequest{}, func(tok string) { sb.WriteString(tok) })
	require.NoError(t, err)
	assert.Equal(t, "See [1] and {}", sb.String())
}

func TestIsToolCallDelta(t *testing.T) {
	assert.True(t, isToolCallDelta([]byte(`[{"function":{"name":"x"}}]`)))
	assert.True(t, isToolCallDelta([]byte(`[{"type":"function","id":"call_1"}]`)))
	assert.False(t, isToolCallDelta([]byte(`[1]`)))
	assert.False(t, isToolCallDelta([]byte(`[]`)))
	assert.False(t, isToolCallDelta([]byte(`[{}]`)))
	assert.False(t, isToolCallDelta([]byte(`{}`)))
}

func TestClient_RetriesRateLimit(t *testing.T) {
	model := &fakeModel{
		errs:      []error{errors.New("API returned unexpected status code: 429: Rate limit reached"), nil},
		responses: []*llms.ContentResponse{textResponse("ok")},
	}
	c := NewClient(model, "gpt-4", 0, 2, 1)

	reply, err := c.Generate(context.Background(), entities.ModelRequest{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", reply.Content)
	assert.Equal(t, 2, model.calls)
}

func TestClient_PermanentFailure(t *testing.T) {
	model := &fakeModel{errs: []error{errors.New("API returned unexpected status code: 401: invalid api key")}}
	c := NewClient(model, "gpt-4", 0, 3, 1)

	_, err := c.Generate(context.Background(), entities.ModelRequest{}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrModelAPI))
	assert.False(t, apperr.IsRetryable(err))
	assert.Equal(t, 1, model.calls)
}

func TestClient_EmptyChoices(t *testing.T) {
	model := &fakeModel{responses: []*llms.ContentResponse{{}}}
	c := NewClient(model, "gpt-4", 0, 0, 0)

	_, err := c.Generate(context.Background(), entities.ModelRequest{}, nil)
	assert.True(t, errors.Is(err, apperr.ErrModelAPI))
}

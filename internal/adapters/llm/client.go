// Package llm adapts langchaingo chat models to ports.ChatModel.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/tmc/langchaingo/llms"

	"github.com/0xcro3dile/planlaw-go/internal/adapters/provider"
	"github.com/0xcro3dile/planlaw-go/internal/domain/apperr"
	"github.com/0xcro3dile/planlaw-go/internal/domain/entities"
	"github.com/0xcro3dile/planlaw-go/internal/domain/ports"
)

// Client is a chat model bound to one model name and temperature.
type Client struct {
	model       llms.Model
	name        string
	temperature float64
	attempts    int
	retryBase   time.Duration
}

var _ ports.ChatModel = (*Client)(nil)

// NewClient wraps an existing langchaingo model.
func NewClient(model llms.Model, name string, temperature float64, attempts int, retryBase time.Duration) *Client {
	return &Client{
		model:       model,
		name:        name,
		temperature: temperature,
		attempts:    attempts,
		retryBase:   retryBase,
	}
}

// Generate sends the conversation and returns the first choice. A failed
// call is retried only while nothing has been streamed yet.
func (c *Client) Generate(ctx context.Context, req entities.ModelRequest, onToken ports.StreamFunc) (*entities.ModelReply, error) {
	messages := convertMessages(req.Messages)
	options := []llms.CallOption{llms.WithTemperature(c.temperature)}
	if len(req.Tools) > 0 {
		options = append(options, llms.WithTools(convertTools(req.Tools)))
	}

	streamed, toolCalling := false, false
	if onToken != nil {
		options = append(options, llms.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
			// Tool-call deltas arrive through the same callback as JSON.
			// Once one is seen the rest of the response is not text.
			if toolCalling || len(chunk) == 0 {
				return nil
			}
			if isToolCallDelta(chunk) {
				toolCalling = true
				return nil
			}
			streamed = true
			onToken(string(chunk))
			return nil
		}))
	}

	var resp *llms.ContentResponse
	err := provider.Retry(ctx, c.attempts, c.retryBase, func(ctx context.Context) error {
		var err error
		toolCalling = false
		resp, err = c.model.GenerateContent(ctx, messages, options...)
		if err == nil {
			return nil
		}
		classified := provider.Classify(apperr.KindModelAPI, "generate "+c.name, err)
		if streamed {
			var e *apperr.Error
			if errors.As(classified, &e) && e.Retryable() {
				return apperr.New(e.Kind, e.Op, e.Err)
			}
		}
		return classified
	})
	if err != nil {
		return nil, provider.Classify(apperr.KindModelAPI, "generate "+c.name, err)
	}
	return convertResponse(resp)
}

func convertMessages(msgs []entities.ModelMessage) []llms.MessageContent {
	out := make([]llms.MessageContent, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case entities.RoleSystem:
			out = append(out, llms.TextParts(llms.ChatMessageTypeSystem, m.Content))
		case entities.RoleAssistant:
			mc := llms.MessageContent{Role: llms.ChatMessageTypeAI}
			if m.Content != "" {
				mc.Parts = append(mc.Parts, llms.TextContent{Text: m.Content})
			}
			for _, tc := range m.ToolCalls {
				mc.Parts = append(mc.Parts, llms.ToolCall{
					ID:   tc.ID,
					Type: "function",
					FunctionCall: &llms.FunctionCall{
						Name:      tc.Name,
						Arguments: tc.Arguments,
					},
				})
			}
			out = append(out, mc)
		case entities.RoleTool:
			out = append(out, llms.MessageContent{
				Role: llms.ChatMessageTypeTool,
				Parts: []llms.ContentPart{llms.ToolCallResponse{
					ToolCallID: m.ToolCallID,
					Name:       m.ToolName,
					Content:    m.Content,
				}},
			})
		default:
			out = append(out, llms.TextParts(llms.ChatMessageTypeHuman, m.Content))
		}
	}
	return out
}

func convertTools(specs []entities.ToolSpec) []llms.Tool {
	tools := make([]llms.Tool, 0, len(specs))
	for _, s := range specs {
		tools = append(tools, llms.Tool{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        s.Name,
				Description: s.Description,
				Parameters:  s.Parameters,
			},
		})
	}
	return tools
}

func convertResponse(resp *llms.ContentResponse) (*entities.ModelReply, error) {
	if resp == nil || len(resp.Choices) == 0 {
		return nil, apperr.New(apperr.KindModelAPI, "generate", errors.New("empty response from model"))
	}
	choice := resp.Choices[0]
	reply := &entities.ModelReply{Content: choice.Content}
	for _, tc := range choice.ToolCalls {
		if tc.FunctionCall == nil {
			continue
		}
		reply.ToolCalls = append(reply.ToolCalls, entities.ToolCall{
			ID:        tc.ID,
			Name:      tc.FunctionCall.Name,
			Arguments: tc.FunctionCall.Arguments,
		})
	}
	return reply, nil
}

// isToolCallDelta reports whether chunk is the tool-call array the OpenAI
// client streams in place of text.
func isToolCallDelta(chunk []byte) bool {
	if chunk[0] != '[' {
		return false
	}
	var calls []struct {
		Type     string          `json:"type"`
		Function json.RawMessage `json:"function"`
	}
	if err := json.Unmarshal(chunk, &calls); err != nil || len(calls) == 0 {
		return false
	}
	for _, call := range calls {
		if call.Type != "function" && len(call.Function) == 0 {
			return false
		}
	}
	return true
}

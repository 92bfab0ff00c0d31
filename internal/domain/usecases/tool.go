package usecases

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/0xcro3dile/planlaw-go/internal/domain/entities"
	"github.com/0xcro3dile/planlaw-go/internal/domain/ports"
)

const (
	RetrievalToolName        = "search_plan_and_building_law"
	RetrievalToolDescription = "Search Plan and Building Law. This tool should be used when you want to get information from the Plan and Building Law."
)

// RetrievalTool exposes the index retriever to the model as a function.
// The retriever is resolved per call so cache expiry and invalidation apply
// to live sessions too.
type RetrievalTool struct {
	provider ports.RetrieverProvider
}

func NewRetrievalTool(provider ports.RetrieverProvider) *RetrievalTool {
	return &RetrievalTool{provider: provider}
}

func (t *RetrievalTool) Spec() entities.ToolSpec {
	return entities.ToolSpec{
		Name:        RetrievalToolName,
		Description: RetrievalToolDescription,
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "query to look up in retriever",
				},
			},
			"required": []string{"query"},
		},
	}
}

// Query extracts the search text from raw function-call arguments. Models
// occasionally send a bare string instead of an object.
func (t *RetrievalTool) Query(arguments string) string {
	var args struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal([]byte(arguments), &args); err == nil && args.Query != "" {
		return args.Query
	}
	var bare string
	if err := json.Unmarshal([]byte(arguments), &bare); err == nil {
		return bare
	}
	return strings.TrimSpace(arguments)
}

// Call runs the search and joins the matching chunks into one text block.
func (t *RetrievalTool) Call(ctx context.Context, query string) (string, error) {
	r, err := t.provider.GetRetriever(ctx)
	if err != nil {
		return "", err
	}
	results, err := r.Retrieve(ctx, query)
	if err != nil {
		return "", err
	}
	parts := make([]string, len(results))
	for i, res := range results {
		parts[i] = res.Chunk.Content
	}
	return strings.Join(parts, "\n\n"), nil
}

package llm

import (
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/0xcro3dile/planlaw-go/internal/domain/apperr"
	"github.com/0xcro3dile/planlaw-go/internal/domain/entities"
	"github.com/0xcro3dile/planlaw-go/internal/domain/ports"
)

const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

const defaultContextWindow = 4096

var contextWindows = map[string]int{
	"gpt-4":             8192,
	"gpt-4-0613":        8192,
	"gpt-4-32k":         32768,
	"gpt-4-turbo":       128000,
	"gpt-4o":            128000,
	"gpt-4o-mini":       128000,
	"gpt-3.5-turbo":     16385,
	"gpt-3.5-turbo-16k": 16385,
	"llama3.1":          128000,
	"llama3.2":          128000,
}

// Config selects the chat provider and which models sessions may use.
type Config struct {
	Provider      string
	BaseURL       string
	APIKey        string
	Models        []string
	RetryAttempts int
	RetryBase     time.Duration
	HTTPClient    *http.Client
}

// Factory creates chat clients for allowed models.
type Factory struct {
	cfg Config
}

var _ ports.ModelFactory = (*Factory)(nil)

func NewFactory(cfg Config) *Factory {
	if cfg.Provider == "" {
		cfg.Provider = ProviderOpenAI
	}
	return &Factory{cfg: cfg}
}

// Models lists the allowed model identifiers.
func (f *Factory) Models() []string {
	return slices.Clone(f.cfg.Models)
}

// NewChatModel builds a streaming-capable client for cfg.Model.
func (f *Factory) NewChatModel(cfg entities.SessionConfig) (ports.ChatModel, error) {
	if len(f.cfg.Models) > 0 && !slices.Contains(f.cfg.Models, cfg.Model) {
		return nil, apperr.Configuration("unknown model %q, expected one of %s", cfg.Model, strings.Join(f.cfg.Models, ", "))
	}
	model, err := f.newModel(cfg.Model)
	if err != nil {
		return nil, err
	}
	return NewClient(model, cfg.Model, cfg.Temperature, f.cfg.RetryAttempts, f.cfg.RetryBase), nil
}

func (f *Factory) newModel(name string) (llms.Model, error) {
	switch f.cfg.Provider {
	case ProviderOpenAI:
		if f.cfg.APIKey == "" {
			return nil, apperr.Configuration("openai api key is not set")
		}
		opts := []openai.Option{openai.WithModel(name), openai.WithToken(f.cfg.APIKey)}
		if f.cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(f.cfg.BaseURL))
		}
		if f.cfg.HTTPClient != nil {
			opts = append(opts, openai.WithHTTPClient(f.cfg.HTTPClient))
		}
		m, err := openai.New(opts...)
		if err != nil {
			return nil, apperr.New(apperr.KindConfiguration, "create openai client", err)
		}
		return m, nil
	case ProviderOllama:
		opts := []ollama.Option{ollama.WithModel(name)}
		if f.cfg.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(f.cfg.BaseURL))
		}
		if f.cfg.HTTPClient != nil {
			opts = append(opts, ollama.WithHTTPClient(f.cfg.HTTPClient))
		}
		m, err := ollama.New(opts...)
		if err != nil {
			return nil, apperr.New(apperr.KindConfiguration, "create ollama client", err)
		}
		return m, nil
	default:
		return nil, apperr.Configuration("unsupported llm provider %q", f.cfg.Provider)
	}
}

// ContextWindow returns the model's context size in tokens.
func (f *Factory) ContextWindow(model string) int {
	if n, ok := contextWindows[model]; ok {
		return n
	}
	best, window := "", defaultContextWindow
	for prefix, n := range contextWindows {
		if len(prefix) > len(best) && (strings.HasPrefix(model, prefix+"-") || strings.HasPrefix(model, prefix+":")) {
			best, window = prefix, n
		}
	}
	return window
}

// Provider names the configured backend.
func (f *Factory) Provider() string { return f.cfg.Provider }

// Package config loads application settings from defaults, an optional YAML
// file and PLANLAW_ environment variables, in that order of precedence.
package config

import (
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/0xcro3dile/planlaw-go/internal/domain/apperr"
	"github.com/0xcro3dile/planlaw-go/internal/domain/entities"
)

type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Index    IndexConfig    `koanf:"index"`
	Embedder EmbedderConfig `koanf:"embedder"`
	LLM      LLMConfig      `koanf:"llm"`
	Session  SessionConfig  `koanf:"session"`
	Agent    AgentConfig    `koanf:"agent"`
	History  HistoryConfig  `koanf:"history"`
}

type ServerConfig struct {
	Addr string `koanf:"addr" validate:"required"`
}

// IndexConfig controls where the vector index is persisted and how it is
// built from the law sections.
type IndexConfig struct {
	Dir          string        `koanf:"dir"           validate:"required"`
	SourceDir    string        `koanf:"source_dir"    validate:"required"`
	CacheTTL     time.Duration `koanf:"cache_ttl"     validate:"gte=0"`
	Watch        bool          `koanf:"watch"`
	TopK         int           `koanf:"top_k"         validate:"min=1"`
	ChunkSize    int           `koanf:"chunk_size"    validate:"min=1"`
	ChunkOverlap int           `koanf:"chunk_overlap" validate:"gte=0,ltfield=ChunkSize"`
}

type EmbedderConfig struct {
	Provider      string `koanf:"provider"       validate:"oneof=openai ollama"`
	Model         string `koanf:"model"          validate:"required"`
	BaseURL       string `koanf:"base_url"       validate:"omitempty,url"`
	BatchSize     int    `koanf:"batch_size"     validate:"min=1"`
	RetryAttempts int    `koanf:"retry_attempts" validate:"gte=0"`
	CacheSize     int    `koanf:"cache_size"     validate:"gte=0"`
}

type LLMConfig struct {
	Provider  string   `koanf:"provider"    validate:"oneof=openai ollama"`
	BaseURL   string   `koanf:"base_url"    validate:"omitempty,url"`
	APIKeyEnv string   `koanf:"api_key_env" validate:"required"`
	Models    []string `koanf:"models"      validate:"min=1,dive,required"`
}

// SessionConfig holds the configuration the first session is built with.
type SessionConfig struct {
	Model       string  `koanf:"model"        validate:"required"`
	Temperature float64 `koanf:"temperature"  validate:"gte=0,lte=1"`
	Variant     string  `koanf:"variant"      validate:"required"`
	SeedMessage string  `koanf:"seed_message" validate:"required"`
}

type AgentConfig struct {
	MaxIterations  int           `koanf:"max_iterations"  validate:"min=1"`
	RequestTimeout time.Duration `koanf:"request_timeout" validate:"gte=0"`
	RetryAttempts  int           `koanf:"retry_attempts"  validate:"gte=0"`
	MemoryLimit    int           `koanf:"memory_limit"    validate:"min=1"`
}

type HistoryConfig struct {
	Backend string `koanf:"backend" validate:"oneof=memory sqlite"`
	Path    string `koanf:"path"    validate:"required_if=Backend sqlite"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Addr: ":8501"},
		Index: IndexConfig{
			Dir:          "./PlanAndBuilding_index",
			SourceDir:    "./sections",
			CacheTTL:     time.Hour,
			Watch:        true,
			TopK:         4,
			ChunkSize:    4000,
			ChunkOverlap: 200,
		},
		Embedder: EmbedderConfig{
			Provider:      "openai",
			Model:         "text-embedding-ada-002",
			BatchSize:     64,
			RetryAttempts: 2,
			CacheSize:     256,
		},
		LLM: LLMConfig{
			Provider:  "openai",
			APIKeyEnv: "OPENAI_API_KEY",
			Models:    []string{"gpt-4", "gpt-3.5-turbo-16k"},
		},
		Session: SessionConfig{
			Model:       "gpt-4",
			Temperature: 0,
			Variant:     entities.VariantOriginal.String(),
			SeedMessage: "Skrivebok for Bendik Svartva..",
		},
		Agent: AgentConfig{
			MaxIterations:  6,
			RequestTimeout: 2 * time.Minute,
			RetryAttempts:  2,
			MemoryLimit:    12000,
		},
		History: HistoryConfig{
			Backend: "memory",
			Path:    "./data/history.db",
		},
	}
}

// SessionDefaults converts the session section into the domain type.
func (c *Config) SessionDefaults() (entities.SessionConfig, error) {
	v, err := entities.ParseVariant(c.Session.Variant)
	if err != nil {
		return entities.SessionConfig{}, apperr.Configuration("session.variant: %v", err)
	}
	return entities.SessionConfig{
		Model:       c.Session.Model,
		Temperature: c.Session.Temperature,
		Variant:     v,
	}, nil
}

// APIKey reads the provider API key from the configured environment variable.
func (c *Config) APIKey() string {
	return os.Getenv(c.LLM.APIKeyEnv)
}

func (c *Config) validateCustom() error {
	if !slices.Contains(c.LLM.Models, c.Session.Model) {
		return fmt.Errorf("session.model %q is not one of llm.models %v", c.Session.Model, c.LLM.Models)
	}
	if _, err := entities.ParseVariant(c.Session.Variant); err != nil {
		return fmt.Errorf("session.variant: %w", err)
	}
	return nil
}

// Package config loads and validates the application configuration.
//
// Two YAML documents drive the service: the app config (model, retrieval
// thresholds, memory limits, reasoning strategy) and the prompt config
// (role, style, constraints, decline answer). Both are read once at startup,
// validated, and passed around as immutable values. No component reads
// configuration ambiently after load.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ricardo-yos/rag-petmarket-reviews/internal/strategy"
)

// LLMConfig configures the chat-completions provider.
type LLMConfig struct {
	// Model is the chat model identifier, e.g. "llama-3.3-70b-versatile".
	Model string `yaml:"model"`
	// BaseURL is an OpenAI-compatible endpoint. Defaults to the Groq API.
	BaseURL string `yaml:"base_url"`
	// APIKeyEnv names the environment variable holding the bearer token.
	APIKeyEnv string `yaml:"api_key_env"`
	// TimeoutSecs is the per-request HTTP timeout.
	TimeoutSecs int `yaml:"timeout_secs"`
	// MaxAttempts bounds generation retries within one turn.
	MaxAttempts int `yaml:"max_attempts"`
}

// EmbeddingConfig configures the query embedder used by the retriever.
type EmbeddingConfig struct {
	Model       string `yaml:"model"`
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// VectorDBConfig holds the retrieval knobs.
type VectorDBConfig struct {
	// Threshold is the minimum cosine similarity (0–1) a review chunk must
	// reach to be considered relevant.
	Threshold float64 `yaml:"threshold"`
	// NResults caps how many chunks are retrieved per question.
	NResults int `yaml:"n_results"`
}

// MemoryConfig bounds the multi-turn conversation memory.
type MemoryConfig struct {
	// TrimmingWindowSize is the number of recent Q/A turns kept verbatim.
	TrimmingWindowSize int `yaml:"trimming_window_size"`
	// SummarizationMaxTokens is the estimated token cost at which evicted
	// turns are collapsed into a summary instead of silently dropped.
	SummarizationMaxTokens int `yaml:"summarization_max_tokens"`
}

// ReActConfig controls the opt-in multi-call ReAct loop.
type ReActConfig struct {
	// MultiCall switches ReAct from a single textual cycle to a real loop of
	// generation calls, each producing one Thought/Action/Observation cycle.
	MultiCall bool `yaml:"multi_call"`
	// MaxIterations is the hard cap on loop iterations.
	MaxIterations int `yaml:"max_iterations"`
}

// ReasoningConfig selects the reasoning strategy and optional template text.
type ReasoningConfig struct {
	// Default names the strategy: "CoT", "ReAct" or "Self-Ask".
	Default string `yaml:"default"`
	// Templates overrides the built-in instruction text per strategy name.
	Templates map[string]string `yaml:"templates"`
	// ReAct configures the multi-call loop (ignored for other strategies).
	ReAct ReActConfig `yaml:"react"`
}

// StorageConfig locates the review index and the conversation history store.
type StorageConfig struct {
	// IndexPath is the SQLite file holding the embedded review chunks.
	IndexPath string `yaml:"index_path"`
	// HistoryPath is the SQLite file for persisted conversation turns.
	// Ignored when DatabaseURL is set.
	HistoryPath string `yaml:"history_path"`
	// DatabaseURL switches turn persistence to Postgres when non-empty.
	DatabaseURL string `yaml:"database_url"`
}

// ServerConfig holds the HTTP serving knobs.
type ServerConfig struct {
	BindAddr         string `yaml:"bind_addr"`
	MetricsNamespace string `yaml:"metrics_namespace"`
}

// LoggingConfig selects the slog level and handler format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config is the root application configuration. Immutable after Load.
type Config struct {
	LLM       LLMConfig       `yaml:"llm"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	VectorDB  VectorDBConfig  `yaml:"vectordb"`
	Memory    MemoryConfig    `yaml:"memory_strategies"`
	Reasoning ReasoningConfig `yaml:"reasoning_strategies"`
	Storage   StorageConfig   `yaml:"storage"`
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`

	// Strategy is the resolved reasoning strategy, populated by Validate.
	Strategy strategy.Strategy `yaml:"-"`
}

// LLMTimeout returns the configured HTTP timeout as a duration.
func (c *Config) LLMTimeout() time.Duration {
	return time.Duration(c.LLM.TimeoutSecs) * time.Second
}

// EmbeddingTimeout returns the embedder HTTP timeout as a duration.
func (c *Config) EmbeddingTimeout() time.Duration {
	return time.Duration(c.Embedding.TimeoutSecs) * time.Second
}

// StrategyTemplates converts the configured template overrides to the
// strategy package's key type. Unknown keys were already rejected by Validate.
func (c *Config) StrategyTemplates() map[strategy.Strategy]string {
	if len(c.Reasoning.Templates) == 0 {
		return nil
	}
	out := make(map[strategy.Strategy]string, len(c.Reasoning.Templates))
	for name, text := range c.Reasoning.Templates {
		out[strategy.Strategy(name)] = text
	}
	return out
}

// Load reads, defaults and validates the app config at path. A missing file
// yields the defaults; any validation failure is fatal to startup.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := Default()
			if err := cfg.Validate(); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates a raw app-config document. The document is
// first checked against the embedded JSON schema (types and ranges), then
// decoded and cross-validated.
func Parse(data []byte) (*Config, error) {
	if err := validateSchema(data); err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the documented defaults, mirroring the shipped
// configs/app_config.yaml.
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			Model:       "llama-3.3-70b-versatile",
			BaseURL:     "https://api.groq.com/openai/v1",
			APIKeyEnv:   "GROQ_API_KEY",
			TimeoutSecs: 30,
			MaxAttempts: 3,
		},
		Embedding: EmbeddingConfig{
			Model:       "text-embedding-3-small",
			BaseURL:     "https://api.openai.com/v1",
			APIKeyEnv:   "OPENAI_API_KEY",
			TimeoutSecs: 30,
		},
		VectorDB: VectorDBConfig{
			Threshold: 0.3,
			NResults:  5,
		},
		Memory: MemoryConfig{
			TrimmingWindowSize:     6,
			SummarizationMaxTokens: 1000,
		},
		Reasoning: ReasoningConfig{
			Default: string(strategy.ChainOfThought),
			ReAct:   ReActConfig{MultiCall: false, MaxIterations: 3},
		},
		Storage: StorageConfig{
			IndexPath:   "data/reviews.db",
			HistoryPath: "data/chat_history.db",
		},
		Server: ServerConfig{
			BindAddr:         ":8080",
			MetricsNamespace: "petreviews",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate checks cross-field constraints and resolves the reasoning
// strategy. It returns the first violation found.
func (c *Config) Validate() error {
	if c.LLM.Model == "" {
		return fmt.Errorf("config: llm.model must not be empty")
	}
	if c.VectorDB.Threshold < 0 || c.VectorDB.Threshold > 1 {
		return fmt.Errorf("config: vectordb.threshold must be in [0, 1], got %v", c.VectorDB.Threshold)
	}
	if c.VectorDB.NResults <= 0 {
		return fmt.Errorf("config: vectordb.n_results must be positive, got %d", c.VectorDB.NResults)
	}
	if c.Memory.TrimmingWindowSize <= 0 {
		return fmt.Errorf("config: memory_strategies.trimming_window_size must be positive, got %d", c.Memory.TrimmingWindowSize)
	}
	if c.Memory.SummarizationMaxTokens <= 0 {
		return fmt.Errorf("config: memory_strategies.summarization_max_tokens must be positive, got %d", c.Memory.SummarizationMaxTokens)
	}

	resolved, err := strategy.Parse(c.Reasoning.Default)
	if err != nil {
		return fmt.Errorf("config: reasoning_strategies.default: %w", err)
	}
	c.Strategy = resolved

	for name := range c.Reasoning.Templates {
		if _, err := strategy.Parse(name); err != nil {
			return fmt.Errorf("config: reasoning_strategies.templates: %w", err)
		}
	}

	if c.Reasoning.ReAct.MultiCall && c.Reasoning.ReAct.MaxIterations <= 0 {
		return fmt.Errorf("config: reasoning_strategies.react.max_iterations must be positive when multi_call is enabled")
	}
	return nil
}

// Package config loads application configuration from defaults, an optional
// YAML file and environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/bull/minirag/internal/answer"
	"github.com/bull/minirag/internal/chunker"
	"github.com/bull/minirag/internal/embedding"
	"github.com/bull/minirag/internal/indexer"
	"github.com/bull/minirag/internal/retriever"
	"github.com/bull/minirag/internal/storage"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid configuration")

// Embedder and store types.
const (
	EmbedderHash   = "hash"
	EmbedderOpenAI = "openai"

	StoreMemory = "memory"
	StoreQdrant = "qdrant"
)

// ChunkerConfig sets the chunk word bounds.
type ChunkerConfig struct {
	MinWords int `yaml:"min_words"`
	MaxWords int `yaml:"max_words"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type             string `yaml:"type"`
	Dimension        int    `yaml:"dimension"` // hash embedder only
	BaseURL          string `yaml:"base_url"`
	APIKeyEnv        string `yaml:"api_key_env"`
	Model            string `yaml:"model"`
	RequestBatchSize int    `yaml:"request_batch_size"`
}

// QdrantConfig contains connection details for a Qdrant server.
type QdrantConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StoreConfig selects and configures the vector store implementation.
type StoreConfig struct {
	Type       string       `yaml:"type"`
	Collection string       `yaml:"collection"`
	Metric     string       `yaml:"metric"` // memory store only
	Qdrant     QdrantConfig `yaml:"qdrant"`
}

// IndexerConfig configures ingestion.
type IndexerConfig struct {
	BatchSize int `yaml:"batch_size"`
}

// RetrieverConfig configures retrieval.
type RetrieverConfig struct {
	TopK int `yaml:"top_k"`
}

// LLMConfig configures the OpenAI-compatible chat endpoint used for answers.
type LLMConfig struct {
	BaseURL   string   `yaml:"base_url"`
	APIKey    string   `yaml:"-"`
	APIKeyEnv string   `yaml:"api_key_env"`
	Models    []string `yaml:"models"`
	MaxTokens int      `yaml:"max_tokens"`
}

// ServerConfig configures the MCP server binary.
type ServerConfig struct {
	HTTP bool `yaml:"http"` // serve MCP over HTTP instead of stdio
	Port int  `yaml:"port"`
}

// GitHubConfig configures the optional GitHub document source.
type GitHubConfig struct {
	Repo    string `yaml:"repo"` // owner/repo[/path]
	Ref     string `yaml:"ref"`
	BaseURL string `yaml:"base_url"`
	Token   string `yaml:"-"`
}

// Config is the root application configuration structure.
type Config struct {
	Chunker   ChunkerConfig   `yaml:"chunker"`
	Embedder  EmbedderConfig  `yaml:"embedder"`
	Store     StoreConfig     `yaml:"store"`
	Indexer   IndexerConfig   `yaml:"indexer"`
	Retriever RetrieverConfig `yaml:"retriever"`
	LLM       LLMConfig       `yaml:"llm"`
	Server    ServerConfig    `yaml:"server"`
	GitHub    GitHubConfig    `yaml:"github"`
	Docs      []string        `yaml:"docs"`
	LogLevel  string          `yaml:"log_level"`
}

// Default returns the configuration used when nothing is overridden. It runs
// fully offline: hashing embedder and in-memory store.
func Default() *Config {
	return &Config{
		Chunker: ChunkerConfig{
			MinWords: chunker.DefaultMinWords,
			MaxWords: chunker.DefaultMaxWords,
		},
		Embedder: EmbedderConfig{
			Type:             EmbedderHash,
			Dimension:        embedding.DefaultHashDimension,
			APIKeyEnv:        "OPENAI_API_KEY",
			Model:            embedding.DefaultModel,
			RequestBatchSize: embedding.DefaultRequestBatchSize,
		},
		Store: StoreConfig{
			Type:       StoreMemory,
			Collection: storage.DefaultCollection,
			Metric:     storage.MetricCosine.String(),
			Qdrant:     QdrantConfig{Host: "localhost", Port: 6334},
		},
		Indexer:   IndexerConfig{BatchSize: indexer.DefaultBatchSize},
		Retriever: RetrieverConfig{TopK: retriever.DefaultTopK},
		LLM: LLMConfig{
			BaseURL:   "https://api.groq.com/openai/v1",
			APIKeyEnv: "GROQ_API_KEY",
			Models:    append([]string(nil), answer.DefaultModels...),
			MaxTokens: answer.DefaultMaxTokens,
		},
		Server:   ServerConfig{Port: 8080},
		LogLevel: "info",
	}
}

// Load builds a Config from defaults, the YAML file at path (skipped when path
// is empty) and environment overrides, then validates it.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: parse %s: %v", ErrInvalidConfig, path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) error {
		v := os.Getenv(key)
		if v == "" {
			return nil
		}
		i, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not an integer", ErrInvalidConfig, key, v)
		}
		*dst = i
		return nil
	}

	setString("EMBEDDER", &c.Embedder.Type)
	setString("EMBEDDING_BASE_URL", &c.Embedder.BaseURL)
	setString("EMBEDDING_MODEL", &c.Embedder.Model)
	setString("STORE", &c.Store.Type)
	setString("COLLECTION", &c.Store.Collection)
	setString("QDRANT_HOST", &c.Store.Qdrant.Host)
	setString("LLM_BASE_URL", &c.LLM.BaseURL)
	setString("LLM_API_KEY", &c.LLM.APIKey)
	setString("GITHUB_REPO", &c.GitHub.Repo)
	setString("GITHUB_TOKEN", &c.GitHub.Token)
	setString("LOG_LEVEL", &c.LogLevel)

	if err := setInt("QDRANT_PORT", &c.Store.Qdrant.Port); err != nil {
		return err
	}
	if err := setInt("PORT", &c.Server.Port); err != nil {
		return err
	}

	if v := os.Getenv("SERVER_MODE"); v != "" {
		c.Server.HTTP = v == "true" || v == "http"
	}
	if v := os.Getenv("DOCS_PATHS"); v != "" {
		c.Docs = splitList(v)
	}
	if v := os.Getenv("LLM_MODELS"); v != "" {
		c.LLM.Models = splitList(v)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate reports the first invalid setting, wrapped in ErrInvalidConfig.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
	}

	if c.Chunker.MinWords <= 0 || c.Chunker.MinWords >= c.Chunker.MaxWords {
		return invalid("chunker bounds must satisfy 0 < min_words < max_words, got %d and %d",
			c.Chunker.MinWords, c.Chunker.MaxWords)
	}

	switch c.Embedder.Type {
	case EmbedderHash:
		if c.Embedder.Dimension <= 0 {
			return invalid("embedder.dimension must be positive")
		}
	case EmbedderOpenAI:
		if c.Embedder.Model == "" {
			return invalid("embedder.model is required for the openai embedder")
		}
	default:
		return invalid("unknown embedder type %q", c.Embedder.Type)
	}

	switch c.Store.Type {
	case StoreMemory:
		if _, err := storage.ParseMetric(c.Store.Metric); err != nil {
			return invalid("%v", err)
		}
	case StoreQdrant:
		if c.Store.Qdrant.Host == "" || c.Store.Qdrant.Port <= 0 {
			return invalid("qdrant host and port are required")
		}
	default:
		return invalid("unknown store type %q", c.Store.Type)
	}

	if c.Store.Collection == "" {
		return invalid("store.collection is required")
	}
	if c.Indexer.BatchSize <= 0 {
		return invalid("indexer.batch_size must be positive")
	}
	if c.Retriever.TopK <= 0 {
		return invalid("retriever.top_k must be positive")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return invalid("server.port %d out of range", c.Server.Port)
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return invalid("%v", err)
	}
	return nil
}

// SlogLevel returns the configured log level.
func (c *Config) SlogLevel() slog.Level {
	level, _ := parseLevel(c.LogLevel)
	return level
}

// LLMAPIKey returns the chat endpoint key: LLM_API_KEY, else the variable named by api_key_env.
func (c *Config) LLMAPIKey() string {
	if c.LLM.APIKey != "" {
		return c.LLM.APIKey
	}
	if c.LLM.APIKeyEnv != "" {
		return os.Getenv(c.LLM.APIKeyEnv)
	}
	return ""
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}

// Package session wires the retrieval components for one process.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/bull/minirag/internal/answer"
	"github.com/bull/minirag/internal/chunker"
	"github.com/bull/minirag/internal/config"
	"github.com/bull/minirag/internal/embedding"
	ghclient "github.com/bull/minirag/internal/github"
	"github.com/bull/minirag/internal/indexer"
	"github.com/bull/minirag/internal/retriever"
	"github.com/bull/minirag/internal/source"
	"github.com/bull/minirag/internal/storage"
)

// ErrNoLLM is returned by Generator when no chat API key is configured.
var ErrNoLLM = errors.New("no LLM API key configured")

// Session holds the components built from one Config. There is no global state:
// everything a command needs hangs off the session.
type Session struct {
	Config      *config.Config
	Chunker     *chunker.Chunker
	Embedder    embedding.Embedder
	Collections *storage.Collections
	Store       storage.VectorStore
	Retriever   *retriever.Retriever
	Pipeline    *indexer.Pipeline

	logger    *slog.Logger
	qdrant    *storage.QdrantStorage
	generator *answer.Generator
}

// Build creates every component described by cfg. A Qdrant store is health
// checked before Build returns.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Session, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Session{Config: cfg, logger: logger}

	ch, err := chunker.New(chunker.WithBounds(cfg.Chunker.MinWords, cfg.Chunker.MaxWords))
	if err != nil {
		return nil, err
	}
	s.Chunker = ch

	s.Embedder, err = newEmbedder(cfg.Embedder)
	if err != nil {
		return nil, err
	}

	factory, err := s.storeFactory(ctx)
	if err != nil {
		return nil, err
	}
	s.Collections = storage.NewCollections(factory)
	s.Store, err = s.Collections.GetOrCreate(cfg.Store.Collection)
	if err != nil {
		s.Close()
		return nil, err
	}

	s.Retriever = retriever.New(s.Embedder, s.Store,
		retriever.WithLogger(logger),
		retriever.WithDefaultK(cfg.Retriever.TopK),
	)
	s.Pipeline = indexer.NewPipeline(s.Chunker, s.Embedder, s.Store, cfg.Indexer.BatchSize, logger)

	if key := cfg.LLMAPIKey(); key != "" {
		opts := []option.RequestOption{option.WithAPIKey(key)}
		if cfg.LLM.BaseURL != "" {
			opts = append(opts, option.WithBaseURL(cfg.LLM.BaseURL))
		}
		client := openai.NewClient(opts...)
		s.generator = answer.NewGenerator(&client, cfg.LLM.MaxTokens, logger)
	}

	logger.Info("Session ready",
		"embedder", cfg.Embedder.Type,
		"store", cfg.Store.Type,
		"collection", s.Store.Name(),
		"min_words", cfg.Chunker.MinWords,
		"max_words", cfg.Chunker.MaxWords,
	)
	return s, nil
}

func newEmbedder(cfg config.EmbedderConfig) (embedding.Embedder, error) {
	switch cfg.Type {
	case config.EmbedderOpenAI:
		client, err := embedding.NewClient(embedding.ClientConfig{
			BaseURL:   cfg.BaseURL,
			APIKeyEnv: cfg.APIKeyEnv,
		})
		if err != nil {
			return nil, fmt.Errorf("create embedding client: %w", err)
		}
		return embedding.NewOpenAIEmbedder(client, cfg.Model, cfg.RequestBatchSize), nil
	case config.EmbedderHash:
		return embedding.NewHashEmbedder(cfg.Dimension), nil
	default:
		return nil, fmt.Errorf("%w: unknown embedder type %q", config.ErrInvalidConfig, cfg.Type)
	}
}

func (s *Session) storeFactory(ctx context.Context) (storage.Factory, error) {
	cfg := s.Config.Store
	switch cfg.Type {
	case config.StoreQdrant:
		s.logger.Info("Connecting to Qdrant", "host", cfg.Qdrant.Host, "port", cfg.Qdrant.Port)
		q, err := storage.NewQdrantStorage(ctx, cfg.Qdrant.Host, cfg.Qdrant.Port)
		if err != nil {
			return nil, err
		}
		s.qdrant = q
		return q.Factory(), nil
	case config.StoreMemory:
		metric, err := storage.ParseMetric(cfg.Metric)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
		}
		return storage.MemoryFactory(storage.WithMetric(metric)), nil
	default:
		return nil, fmt.Errorf("%w: unknown store type %q", config.ErrInvalidConfig, cfg.Type)
	}
}

// Persistent reports whether the store outlives the process.
func (s *Session) Persistent() bool { return s.qdrant != nil }

// Generator returns the answer generator, or ErrNoLLM when no key is configured.
func (s *Session) Generator() (*answer.Generator, error) {
	if s.generator == nil {
		return nil, fmt.Errorf("%w: set LLM_API_KEY or %s", ErrNoLLM, s.Config.LLM.APIKeyEnv)
	}
	return s.generator, nil
}

// Source returns the configured document sources: local paths plus, when a
// repository is configured, its GitHub documents. Extra paths are added to the
// configured ones.
func (s *Session) Source(paths ...string) (source.Source, error) {
	all := append(append([]string(nil), s.Config.Docs...), paths...)

	var sources source.Multi
	if len(all) > 0 {
		sources = append(sources, source.NewFiles(all...))
	}

	if gh := s.Config.GitHub; gh.Repo != "" {
		owner, repo, base, err := ghclient.ParseRepo(gh.Repo)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
		}
		client, err := ghclient.NewClient(gh.Token, gh.BaseURL)
		if err != nil {
			return nil, err
		}
		sources = append(sources, ghclient.NewFetcher(client, owner, repo, base, gh.Ref, s.logger))
	}
	return sources, nil
}

// Ingest indexes every configured document plus paths into the session store.
func (s *Session) Ingest(ctx context.Context, paths ...string) (*indexer.IndexResult, error) {
	src, err := s.Source(paths...)
	if err != nil {
		return nil, err
	}
	return s.Pipeline.IndexAll(ctx, src)
}

// Health checks the backing store. In-memory stores are always healthy.
func (s *Session) Health(ctx context.Context) error {
	if s.qdrant == nil {
		return nil
	}
	return s.qdrant.Health(ctx)
}

// IndexSize returns the number of chunks in the active collection.
func (s *Session) IndexSize(ctx context.Context) (int, error) {
	return s.Store.Count(ctx)
}

// Close releases the store connection, if any.
func (s *Session) Close() error {
	if s.qdrant == nil {
		return nil
	}
	return s.qdrant.Close()
}

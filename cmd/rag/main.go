// Package main provides the rag CLI: chunk, ingest and ask over local documents.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/bull/minirag/internal/config"
	"github.com/bull/minirag/internal/session"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "rag",
	Short: "Minimal retrieval pipeline for document question answering",
	Long: `Chunk documents into sentence-respecting segments, embed them, and retrieve
the most relevant chunks for a question.

Environment variables:
  EMBEDDER        hash (default, offline) or openai
  OPENAI_API_KEY  OpenAI API key for the openai embedder
  STORE           memory (default) or qdrant
  QDRANT_HOST     Qdrant hostname (default: localhost)
  QDRANT_PORT     Qdrant gRPC port (default: 6334)
  COLLECTION      Collection name (default: documents)
  DOCS_PATHS      Comma-separated documents to ingest
  LLM_BASE_URL    OpenAI-compatible chat endpoint (default: Groq)
  LLM_API_KEY     Chat endpoint key (falls back to GROQ_API_KEY)
  GITHUB_REPO     owner/repo[/path] to ingest markdown from
  GITHUB_TOKEN    GitHub token for higher rate limits (optional)
  LOG_LEVEL       debug, info, warn or error`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")
	rootCmd.AddCommand(chunkCmd, ingestCmd, askCmd)
}

func main() {
	// Load .env file if present (local development), ignore if missing (production)
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	return cfg, logger, nil
}

func openSession(ctx context.Context) (*session.Session, error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, err
	}
	s, err := session.Build(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}
	return s, nil
}

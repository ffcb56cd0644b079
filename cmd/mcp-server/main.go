// Package main provides the MCP server entry point for document retrieval.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/bull/minirag/internal/config"
	mcpserver "github.com/bull/minirag/internal/mcp"
	"github.com/bull/minirag/internal/session"
)

func main() {
	// Load .env file if present (local development), ignore if missing (production)
	envErr := godotenv.Load()

	// Create context that cancels on SIGTERM/SIGINT
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	// stdout carries the stdio transport, so logs go to stderr.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	if envErr != nil {
		logger.Debug("No .env file found, using environment variables")
	}

	s, err := session.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to start session", "error", err)
		os.Exit(1)
	}
	defer s.Close()

	if !s.Persistent() || len(cfg.Docs) > 0 || cfg.GitHub.Repo != "" {
		result, err := s.Ingest(ctx)
		if err != nil {
			logger.Error("Initial ingest failed", "error", err)
			os.Exit(1)
		}
		logger.Info("Index ready", "documents", result.TotalDocs, "chunks", result.TotalChunks)
	}

	server := mcpserver.NewServer(&mcpserver.Config{
		Retriever:   s.Retriever,
		Collections: s.Collections,
		Logger:      logger,
	})

	addr := "0.0.0.0:" + strconv.Itoa(cfg.Server.Port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mcpserver.NewMux(server, s, nil),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	if cfg.Server.HTTP {
		// HTTP mode: serve MCP over HTTP for remote clients
		logger.Info("Starting HTTP server", "addr", addr, "mcp", "/mcp", "health", "/health")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
		return
	}

	// Stdio mode: run MCP server over stdin/stdout for local clients,
	// with the HTTP health endpoint in the background for local testing
	go func() {
		logger.Info("Starting health server", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("Health server error", "error", err)
		}
	}()

	logger.Info("Starting minirag MCP server (stdio mode)")
	if err := server.Run(ctx); err != nil {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}
}

package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/minirag/internal/config"
	"github.com/bull/minirag/internal/embedding"
	"github.com/bull/minirag/internal/storage"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Chunker.MinWords = 1
	cfg.Chunker.MaxWords = 8
	cfg.LLM.APIKeyEnv = ""
	return cfg
}

func TestBuild_InMemoryEndToEnd(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "brain.txt")
	require.NoError(t, os.WriteFile(path,
		[]byte("Sleep consolidates memory. Exercise improves blood flow to the brain. Social contact lowers stress."), 0o644))

	s, err := Build(ctx, testConfig(), nil)
	require.NoError(t, err)
	defer s.Close()

	assert.IsType(t, &embedding.HashEmbedder{}, s.Embedder)
	assert.False(t, s.Persistent())
	require.NoError(t, s.Health(ctx))

	res, err := s.Ingest(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, 3, res.TotalChunks)

	texts, err := s.Retriever.RetrieveTopK(ctx, "how does exercise help the brain", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"Exercise improves blood flow to the brain."}, texts)

	same, err := s.Collections.Get(storage.DefaultCollection)
	require.NoError(t, err)
	assert.Same(t, s.Store, same)
}

func TestBuild_InvalidBounds(t *testing.T) {
	cfg := testConfig()
	cfg.Chunker.MinWords = 10
	cfg.Chunker.MaxWords = 5

	_, err := Build(context.Background(), cfg, nil)
	assert.Error(t, err)
}

func TestBuild_OpenAIWithoutKey(t *testing.T) {
	t.Setenv("MINIRAG_TEST_EMBED_KEY", "")
	cfg := testConfig()
	cfg.Embedder.Type = config.EmbedderOpenAI
	cfg.Embedder.APIKeyEnv = "MINIRAG_TEST_EMBED_KEY"

	_, err := Build(context.Background(), cfg, nil)
	assert.Error(t, err)
}

func TestGenerator_NotConfigured(t *testing.T) {
	s, err := Build(context.Background(), testConfig(), nil)
	require.NoError(t, err)

	_, err = s.Generator()
	assert.ErrorIs(t, err, ErrNoLLM)
}

func TestGenerator_Configured(t *testing.T) {
	cfg := testConfig()
	cfg.LLM.APIKey = "key"

	s, err := Build(context.Background(), cfg, nil)
	require.NoError(t, err)

	g, err := s.Generator()
	require.NoError(t, err)
	assert.NotNil(t, g)
}

func TestSource_InvalidRepo(t *testing.T) {
	cfg := testConfig()
	cfg.GitHub.Repo = "just-owner"

	s, err := Build(context.Background(), cfg, nil)
	require.NoError(t, err)

	_, err = s.Source()
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

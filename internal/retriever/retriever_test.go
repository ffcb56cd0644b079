package retriever

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/minirag/internal/chunker"
	"github.com/bull/minirag/internal/storage"
)

// lookupEmbedder returns a fixed vector per known text.
type lookupEmbedder struct {
	vectors map[string][]float32
	err     error
	calls   int
}

func (e *lookupEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, ok := e.vectors[t]
		if !ok {
			return nil, fmt.Errorf("no vector for %q", t)
		}
		out[i] = v
	}
	return out, nil
}

type emptyEmbedder struct{}

func (emptyEmbedder) Embed(context.Context, []string) ([][]float32, error) {
	return [][]float32{}, nil
}

// recordingStore wraps a MemoryStore and records the k passed to Query.
type recordingStore struct {
	*storage.MemoryStore
	lastK int
}

func (s *recordingStore) Query(ctx context.Context, embedding []float32, k int) ([]storage.Result, error) {
	s.lastK = k
	return s.MemoryStore.Query(ctx, embedding, k)
}

func TestRetrieveTopK_EndToEnd(t *testing.T) {
	ctx := context.Background()

	chunks, err := chunker.Split("Sentence one. Sentence two. Sentence three.", 1, 2)
	require.NoError(t, err)
	require.Equal(t, []string{"Sentence one.", "Sentence two.", "Sentence three."}, chunks)

	emb := &lookupEmbedder{vectors: map[string][]float32{
		"Sentence one.":   {1, 0, 0},
		"Sentence two.":   {0, 1, 0},
		"Sentence three.": {0, 0, 1},
		"second?":         {0, 1, 0},
	}}

	store := storage.NewMemoryStore("e2e")
	for i, text := range chunks {
		require.NoError(t, store.Add(ctx, storage.Chunk{
			ID:        fmt.Sprintf("chunk_%d", i),
			Text:      text,
			Embedding: emb.vectors[text],
		}))
	}

	r := New(emb, store)
	texts, err := r.RetrieveTopK(ctx, "second?", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"Sentence two."}, texts)
}

func TestRetrieve_RankedOrderWithDistances(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore("test")
	require.NoError(t, store.AddBatch(ctx, []storage.Chunk{
		{ID: "a", Text: "alpha", Embedding: []float32{0, 1}},
		{ID: "b", Text: "beta", Embedding: []float32{1, 0}},
		{ID: "c", Text: "gamma", Embedding: []float32{1, 1}},
	}))
	emb := &lookupEmbedder{vectors: map[string][]float32{"q": {1, 0}}}

	results, err := New(emb, store).Retrieve(ctx, "q", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "beta", results[0].Chunk.Text)
	assert.Equal(t, "gamma", results[1].Chunk.Text)
	assert.Less(t, results[0].Distance, results[1].Distance)
}

func TestRetrieve_DefaultK(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemoryStore("test")
	for i := range 5 {
		vec := make([]float32, 5)
		vec[i] = 1
		require.NoError(t, mem.Add(ctx, storage.Chunk{ID: fmt.Sprint(i), Text: fmt.Sprint("t", i), Embedding: vec}))
	}
	store := &recordingStore{MemoryStore: mem}
	emb := &lookupEmbedder{vectors: map[string][]float32{"q": {1, 0, 0, 0, 0}}}

	texts, err := New(emb, store).RetrieveTopK(ctx, "q", 0)
	require.NoError(t, err)
	assert.Len(t, texts, DefaultTopK)
	assert.Equal(t, DefaultTopK, store.lastK)

	_, err = New(emb, store, WithDefaultK(4)).RetrieveTopK(ctx, "q", -1)
	require.NoError(t, err)
	assert.Equal(t, 4, store.lastK)
}

func TestRetrieve_EmbedderErrorPropagates(t *testing.T) {
	boom := errors.New("embedding service down")
	store := storage.NewMemoryStore("test")

	_, err := New(&lookupEmbedder{err: boom}, store).RetrieveTopK(context.Background(), "q", 1)
	assert.ErrorIs(t, err, boom)
}

func TestRetrieve_NoEmbedding(t *testing.T) {
	_, err := New(emptyEmbedder{}, storage.NewMemoryStore("test")).RetrieveTopK(context.Background(), "q", 1)
	assert.ErrorIs(t, err, ErrNoEmbedding)
}

func TestRetrieve_EmptyStorePropagates(t *testing.T) {
	emb := &lookupEmbedder{vectors: map[string][]float32{"q": {1, 0}}}

	_, err := New(emb, storage.NewMemoryStore("test")).RetrieveTopK(context.Background(), "q", 1)
	assert.ErrorIs(t, err, storage.ErrEmptyCollection)
}

func TestRetrieve_DebugPreview(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore("test")
	require.NoError(t, store.Add(ctx, storage.Chunk{
		ID: "chunk_0", Text: "hello world", Embedding: []float32{1, 0},
		Metadata: map[string]string{storage.MetaSource: "doc"},
	}))
	emb := &lookupEmbedder{vectors: map[string][]float32{"q": {1, 0}}}

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	_, err := New(emb, store, WithLogger(logger)).RetrieveTopK(ctx, "q", 1)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "Store preview")
	assert.Contains(t, out, "id=chunk_0")
	assert.Contains(t, out, "Retrieved chunk")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "héll...", truncate("héllo", 4))
}

package indexer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/minirag/internal/chunker"
	"github.com/bull/minirag/internal/embedding"
	"github.com/bull/minirag/internal/source"
	"github.com/bull/minirag/internal/storage"
)

// recordingEmbedder embeds each text as a one-hot vector over known texts and
// records the batch sizes it was called with.
type recordingEmbedder struct {
	vocab   []string
	batches []int
	failAt  int // 1-based call number to fail on, 0 never
	short   bool
}

func (e *recordingEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.batches = append(e.batches, len(texts))
	if e.failAt > 0 && len(e.batches) == e.failAt {
		return nil, errors.New("embedding backend unavailable")
	}
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		v := make([]float32, len(e.vocab))
		for i, w := range e.vocab {
			if w == t {
				v[i] = 1
			}
		}
		out = append(out, v)
	}
	if e.short {
		out = out[:len(out)-1]
	}
	return out, nil
}

func newChunker(t *testing.T, lo, hi int) *chunker.Chunker {
	t.Helper()
	c, err := chunker.New(chunker.WithBounds(lo, hi))
	require.NoError(t, err)
	return c
}

func TestIndexAll_EndToEnd(t *testing.T) {
	ctx := context.Background()
	sentences := []string{"Sentence one.", "Sentence two.", "Sentence three."}
	emb := &recordingEmbedder{vocab: sentences}
	store := storage.NewMemoryStore("e2e")

	p := NewPipeline(newChunker(t, 1, 2), emb, store, 0, nil)
	res, err := p.IndexAll(ctx, source.Static{{ID: "doc.txt", Text: strings.Join(sentences, " ")}})
	require.NoError(t, err)

	assert.Equal(t, 3, res.TotalChunks)
	assert.Equal(t, "chunk_0", res.FirstID)

	all, err := store.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	for i, c := range all {
		assert.Equal(t, "chunk_"+string(rune('0'+i)), c.ID)
		assert.Equal(t, sentences[i], c.Text)
		assert.Equal(t, "doc.txt", c.Metadata[storage.MetaSource])
	}

	results, err := store.Query(ctx, all[1].Embedding, 1)
	require.NoError(t, err)
	assert.Equal(t, "Sentence two.", results[0].Chunk.Text)
}

func TestIndexAll_BatchesInOrder(t *testing.T) {
	ctx := context.Background()
	var sentences []string
	for _, w := range []string{"Alpha", "Bravo", "Charlie", "Delta", "Echo"} {
		sentences = append(sentences, w+" here.")
	}
	emb := &recordingEmbedder{vocab: sentences}
	store := storage.NewMemoryStore("test")

	p := NewPipeline(newChunker(t, 1, 2), emb, store, 2, nil)
	_, err := p.IndexDocuments(ctx, []source.Document{{ID: "d", Text: strings.Join(sentences, " ")}})
	require.NoError(t, err)

	assert.Equal(t, []int{2, 2, 1}, emb.batches)

	all, err := store.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 5)
	for i, c := range all {
		assert.Equal(t, sentences[i], c.Text)
		assert.Equal(t, float32(1), c.Embedding[i], "chunk %d paired with wrong vector", i)
		assert.Equal(t, string(rune('0'+i)), c.Metadata[storage.MetaPosition])
	}
}

func TestIndexAll_EmbeddingFailureLeavesStoreEmpty(t *testing.T) {
	ctx := context.Background()
	emb := &recordingEmbedder{vocab: []string{"A one.", "B two.", "C three."}, failAt: 2}
	store := storage.NewMemoryStore("test")

	p := NewPipeline(newChunker(t, 1, 2), emb, store, 1, nil)
	_, err := p.IndexDocuments(ctx, []source.Document{{ID: "d", Text: "A one. B two. C three."}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embed batch 1-2")

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestIndexAll_WrongVectorCount(t *testing.T) {
	emb := &recordingEmbedder{vocab: []string{"A one.", "B two."}, short: true}
	store := storage.NewMemoryStore("test")

	p := NewPipeline(newChunker(t, 1, 2), emb, store, 0, nil)
	_, err := p.IndexDocuments(context.Background(), []source.Document{{ID: "d", Text: "A one. B two."}})
	assert.ErrorIs(t, err, ErrEmbeddingCount)
}

func TestIndexAll_IDsContinueFromCount(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore("test")
	p := NewPipeline(newChunker(t, 1, 2), embedding.NewHashEmbedder(32), store, 0, nil)

	_, err := p.IndexDocuments(ctx, []source.Document{{ID: "a", Text: "First one. Second one."}})
	require.NoError(t, err)
	res, err := p.IndexDocuments(ctx, []source.Document{{ID: "b", Text: "Third one."}})
	require.NoError(t, err)

	assert.Equal(t, "chunk_2", res.FirstID)
	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestIndexAll_EmptyDocuments(t *testing.T) {
	ctx := context.Background()
	emb := &recordingEmbedder{}
	store := storage.NewMemoryStore("test")

	p := NewPipeline(newChunker(t, 1, 2), emb, store, 0, nil)
	res, err := p.IndexDocuments(ctx, []source.Document{{ID: "blank", Text: "   "}})
	require.NoError(t, err)

	assert.Equal(t, []string{"blank"}, res.EmptyDocs)
	assert.Zero(t, res.TotalChunks)
	assert.Empty(t, emb.batches, "embedder must not be called without chunks")
}

func TestIndexAll_SourceErrorPropagates(t *testing.T) {
	p := NewPipeline(newChunker(t, 1, 2), &recordingEmbedder{}, storage.NewMemoryStore("test"), 0, nil)

	_, err := p.IndexAll(context.Background(), source.NewFiles("/does/not/exist.txt"))
	assert.Error(t, err)
}

func TestIndexAll_KeepsDocumentMetadata(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore("test")
	p := NewPipeline(newChunker(t, 1, 5), embedding.NewHashEmbedder(16), store, 0, nil)

	_, err := p.IndexDocuments(ctx, []source.Document{{
		ID:       "guide.md",
		Text:     "Some text here.",
		Metadata: map[string]string{source.MetaTitle: "Guide"},
	}})
	require.NoError(t, err)

	all, err := store.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "Guide", all[0].Metadata[source.MetaTitle])
	assert.Equal(t, "0", all[0].Metadata[storage.MetaPosition])
}

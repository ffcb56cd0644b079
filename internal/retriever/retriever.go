// Package retriever finds the stored chunks most relevant to a query.
package retriever

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bull/minirag/internal/embedding"
	"github.com/bull/minirag/internal/storage"
)

// DefaultTopK is used when a non-positive k is requested.
const DefaultTopK = 3

// ErrNoEmbedding is returned when the embedder does not produce exactly one vector for the query.
var ErrNoEmbedding = errors.New("embedder returned no vector for query")

const (
	previewChunks = 3
	previewChars  = 200
	previewDims   = 10
)

// Retriever embeds a query and asks the store for its nearest chunks.
type Retriever struct {
	embedder embedding.Embedder
	store    storage.VectorStore
	defaultK int
	logger   *slog.Logger
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithLogger sets the logger. Debug level enables chunk previews.
func WithLogger(l *slog.Logger) Option {
	return func(r *Retriever) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithDefaultK overrides DefaultTopK.
func WithDefaultK(k int) Option {
	return func(r *Retriever) {
		if k > 0 {
			r.defaultK = k
		}
	}
}

// New creates a retriever over store using embedder for queries.
func New(embedder embedding.Embedder, store storage.VectorStore, opts ...Option) *Retriever {
	r := &Retriever{
		embedder: embedder,
		store:    store,
		defaultK: DefaultTopK,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Store returns the store the retriever searches.
func (r *Retriever) Store() storage.VectorStore { return r.store }

// RetrieveTopK returns the texts of the k chunks closest to query, closest first.
func (r *Retriever) RetrieveTopK(ctx context.Context, query string, k int) ([]string, error) {
	results, err := r.Retrieve(ctx, query, k)
	if err != nil {
		return nil, err
	}
	texts := make([]string, len(results))
	for i, res := range results {
		texts[i] = res.Chunk.Text
	}
	return texts, nil
}

// Retrieve is RetrieveTopK with distances and metadata. Embedder and store errors
// are returned as-is so callers can match them with errors.Is.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]storage.Result, error) {
	if k <= 0 {
		k = r.defaultK
	}

	if r.logger.Enabled(ctx, slog.LevelDebug) {
		r.previewStore(ctx)
	}

	vectors, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 || len(vectors[0]) == 0 {
		return nil, fmt.Errorf("%w: got %d vectors", ErrNoEmbedding, len(vectors))
	}

	results, err := r.store.Query(ctx, vectors[0], k)
	if err != nil {
		return nil, err
	}

	r.logger.Debug("Retrieved chunks", "collection", r.store.Name(), "k", k, "returned", len(results))
	for i, res := range results {
		r.logger.Debug("Retrieved chunk",
			"rank", i+1,
			"id", res.Chunk.ID,
			"distance", res.Distance,
			"text", truncate(res.Chunk.Text, previewChars),
		)
	}
	return results, nil
}

func (r *Retriever) previewStore(ctx context.Context) {
	chunks, err := r.store.GetAll(ctx)
	if err != nil {
		r.logger.Debug("Store preview unavailable", "error", err)
		return
	}
	r.logger.Debug("Store preview", "collection", r.store.Name(), "chunks", len(chunks))
	for _, c := range chunks[:min(previewChunks, len(chunks))] {
		r.logger.Debug("Stored chunk",
			"id", c.ID,
			"text", truncate(c.Text, previewChars),
			"embedding", c.Embedding[:min(previewDims, len(c.Embedding))],
			"metadata", c.Metadata,
		)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

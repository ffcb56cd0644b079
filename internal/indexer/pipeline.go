// Package indexer turns documents into embedded chunks in a vector store.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"strconv"
	"time"

	"github.com/bull/minirag/internal/chunker"
	"github.com/bull/minirag/internal/embedding"
	"github.com/bull/minirag/internal/source"
	"github.com/bull/minirag/internal/storage"
)

// DefaultBatchSize is the number of chunk texts sent to the embedder per call.
const DefaultBatchSize = 16

// ErrEmbeddingCount is returned when the embedder returns a different number of
// vectors than texts it was given.
var ErrEmbeddingCount = errors.New("embedder returned wrong number of vectors")

// IndexResult contains statistics about an indexing operation.
type IndexResult struct {
	TotalDocs   int
	EmptyDocs   []string // Documents that produced no chunks
	TotalChunks int
	FirstID     string // ID of the first chunk added, "" if none
	Duration    time.Duration
}

// Pipeline chunks documents, embeds the chunks in fixed-size batches and adds
// them to the store in a single all-or-nothing batch.
type Pipeline struct {
	chunker   *chunker.Chunker
	embedder  embedding.Embedder
	store     storage.VectorStore
	batchSize int
	logger    *slog.Logger
}

// NewPipeline creates a new indexing pipeline with the given components.
// batchSize <= 0 means DefaultBatchSize.
func NewPipeline(
	ch *chunker.Chunker,
	embedder embedding.Embedder,
	store storage.VectorStore,
	batchSize int,
	logger *slog.Logger,
) *Pipeline {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		chunker:   ch,
		embedder:  embedder,
		store:     store,
		batchSize: batchSize,
		logger:    logger,
	}
}

type pendingChunk struct {
	text     string
	metadata map[string]string
}

// IndexAll loads every document from src and indexes it.
func (p *Pipeline) IndexAll(ctx context.Context, src source.Source) (*IndexResult, error) {
	docs, err := src.Documents(ctx)
	if err != nil {
		return nil, fmt.Errorf("load documents: %w", err)
	}
	return p.IndexDocuments(ctx, docs)
}

// IndexDocuments chunks and embeds docs, then adds all chunks at once. Any
// failure returns before the store is touched, so nothing is partially added.
// Chunk ids continue from the store's current size: chunk_<n>, chunk_<n+1>...
func (p *Pipeline) IndexDocuments(ctx context.Context, docs []source.Document) (*IndexResult, error) {
	start := time.Now()
	result := &IndexResult{TotalDocs: len(docs)}
	p.logger.Info("Starting indexing", "documents", len(docs), "collection", p.store.Name())

	var pending []pendingChunk
	for _, doc := range docs {
		chunks, err := p.chunker.Chunk(doc.Text)
		if err != nil {
			return nil, fmt.Errorf("chunk %s: %w", doc.ID, err)
		}
		if len(chunks) == 0 {
			p.logger.Warn("Document produced no chunks", "document", doc.ID)
			result.EmptyDocs = append(result.EmptyDocs, doc.ID)
			continue
		}

		stats, err := p.chunker.Stats(chunks[:1])
		if err != nil {
			return nil, fmt.Errorf("chunk %s: %w", doc.ID, err)
		}
		p.logger.Info("Chunked document",
			"document", doc.ID,
			"chunks", len(chunks),
			"first_chunk_words", stats.WordCounts[0],
		)

		for i, text := range chunks {
			meta := make(map[string]string, len(doc.Metadata)+2)
			maps.Copy(meta, doc.Metadata)
			meta[storage.MetaSource] = doc.ID
			meta[storage.MetaPosition] = strconv.Itoa(i)
			pending = append(pending, pendingChunk{text: text, metadata: meta})
		}
	}

	if len(pending) == 0 {
		result.Duration = time.Since(start)
		p.logger.Info("Indexing complete", "chunks", 0, "duration", result.Duration)
		return result, nil
	}

	texts := make([]string, len(pending))
	for i, pc := range pending {
		texts[i] = pc.text
	}
	vectors, err := p.embedAll(ctx, texts)
	if err != nil {
		return nil, err
	}

	existing, err := p.store.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count stored chunks: %w", err)
	}

	chunks := make([]storage.Chunk, len(pending))
	for i, pc := range pending {
		chunks[i] = storage.Chunk{
			ID:        "chunk_" + strconv.Itoa(existing+i),
			Text:      pc.text,
			Embedding: vectors[i],
			Metadata:  pc.metadata,
		}
	}

	if err := p.store.AddBatch(ctx, chunks); err != nil {
		return nil, fmt.Errorf("store chunks: %w", err)
	}

	result.TotalChunks = len(chunks)
	result.FirstID = chunks[0].ID
	result.Duration = time.Since(start)
	p.logger.Info("Indexing complete",
		"documents", result.TotalDocs,
		"empty", len(result.EmptyDocs),
		"chunks", result.TotalChunks,
		"duration", result.Duration,
	)
	return result, nil
}

// embedAll embeds texts in batches of p.batchSize, preserving order.
func (p *Pipeline) embedAll(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += p.batchSize {
		end := min(i+p.batchSize, len(texts))

		batch, err := p.embedder.Embed(ctx, texts[i:end])
		if err != nil {
			return nil, fmt.Errorf("embed batch %d-%d: %w", i, end, err)
		}
		if len(batch) != end-i {
			return nil, fmt.Errorf("%w: batch %d-%d got %d vectors for %d texts",
				ErrEmbeddingCount, i, end, len(batch), end-i)
		}
		p.logger.Debug("Embedded batch", "from", i, "to", end)
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

// Package storage holds embedded chunks and answers nearest-neighbour queries.
package storage

import (
	"context"
	"fmt"
	"math"
)

// VectorStore is an append-only collection of embedded chunks.
// Implementations must be safe for concurrent use: adds are exclusive,
// queries may run in parallel.
type VectorStore interface {
	// Name returns the collection name.
	Name() string
	// Add inserts one chunk.
	Add(ctx context.Context, chunk Chunk) error
	// AddBatch inserts all chunks or none of them.
	AddBatch(ctx context.Context, chunks []Chunk) error
	// GetAll returns every chunk in insertion order.
	GetAll(ctx context.Context) ([]Chunk, error)
	// Query returns up to k chunks ordered by ascending distance to embedding.
	Query(ctx context.Context, embedding []float32, k int) ([]Result, error)
	// Count returns the number of stored chunks.
	Count(ctx context.Context) (int, error)
}

// validateBatch checks chunks against each other and against dim, the store's
// established dimension (0 when nothing has been stored yet). It returns the
// dimension the batch establishes.
func validateBatch(chunks []Chunk, dim int, exists func(id string) bool) (int, error) {
	seen := make(map[string]struct{}, len(chunks))
	for i, c := range chunks {
		switch {
		case c.ID == "":
			return 0, fmt.Errorf("%w: chunk %d has an empty id", ErrInvalidChunk, i)
		case c.Text == "":
			return 0, fmt.Errorf("%w: chunk %q has empty text", ErrInvalidChunk, c.ID)
		case len(c.Embedding) == 0:
			return 0, fmt.Errorf("%w: chunk %q has no embedding", ErrInvalidChunk, c.ID)
		case !finite(c.Embedding):
			return 0, fmt.Errorf("%w: chunk %q has a NaN or Inf embedding value", ErrInvalidChunk, c.ID)
		}

		if dim == 0 {
			dim = len(c.Embedding)
		}
		if len(c.Embedding) != dim {
			return 0, fmt.Errorf("%w: chunk %q has %d dimensions, expected %d",
				ErrDimensionMismatch, c.ID, len(c.Embedding), dim)
		}

		if _, dup := seen[c.ID]; dup {
			return 0, fmt.Errorf("%w: %q appears twice in batch", ErrDuplicateID, c.ID)
		}
		seen[c.ID] = struct{}{}
		if exists != nil && exists(c.ID) {
			return 0, fmt.Errorf("%w: %q", ErrDuplicateID, c.ID)
		}
	}
	return dim, nil
}

func validateQuery(embedding []float32, k, dim int) error {
	if k < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidK, k)
	}
	if len(embedding) != dim {
		return fmt.Errorf("%w: query has %d dimensions, expected %d",
			ErrDimensionMismatch, len(embedding), dim)
	}
	if !finite(embedding) {
		return ErrInvalidEmbedding
	}
	return nil
}

// finite reports whether every value is a real number. A NaN distance would
// otherwise sort ahead of every valid one.
func finite(v []float32) bool {
	for _, x := range v {
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}

package embedding

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"

	"github.com/blevesearch/segment"
)

// DefaultHashDimension matches the width of all-MiniLM-L6-v2 vectors.
const DefaultHashDimension = 384

// HashEmbedder is a deterministic, offline bag-of-words embedder.
// Each lower-cased word is hashed into a signed bucket and the result is
// L2-normalised, so texts sharing vocabulary have high cosine similarity.
// It needs no corpus preparation and no network access.
type HashEmbedder struct {
	dimension int
}

// NewHashEmbedder creates a hashing embedder; dimension <= 0 means DefaultHashDimension.
func NewHashEmbedder(dimension int) *HashEmbedder {
	if dimension <= 0 {
		dimension = DefaultHashDimension
	}
	return &HashEmbedder{dimension: dimension}
}

// Dimension returns the vector length.
func (e *HashEmbedder) Dimension() int { return e.dimension }

// Embed returns one vector per text. Text without words maps to the zero vector.
func (e *HashEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vec, err := e.embedOne(text)
		if err != nil {
			return nil, fmt.Errorf("text %d: %w", i, err)
		}
		out[i] = vec
	}
	return out, nil
}

func (e *HashEmbedder) embedOne(text string) ([]float32, error) {
	acc := make([]float64, e.dimension)

	seg := segment.NewWordSegmenterDirect([]byte(strings.ToLower(text)))
	for seg.Segment() {
		if seg.Type() == segment.None {
			continue
		}
		h := fnv.New64a()
		h.Write(seg.Bytes())
		sum := h.Sum64()

		bucket := int(sum % uint64(e.dimension))
		if sum>>63 == 1 {
			acc[bucket]--
		} else {
			acc[bucket]++
		}
	}
	if err := seg.Err(); err != nil {
		return nil, fmt.Errorf("segment words: %w", err)
	}

	var norm float64
	for _, v := range acc {
		norm += v * v
	}
	norm = math.Sqrt(norm)

	vec := make([]float32, e.dimension)
	if norm == 0 {
		return vec, nil
	}
	for i, v := range acc {
		vec[i] = float32(v / norm)
	}
	return vec, nil
}

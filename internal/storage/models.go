package storage

import "maps"

// Chunk is a retrievable unit of text with its embedding.
// Every chunk in one collection carries an embedding of the same length.
type Chunk struct {
	ID        string            // Unique within a collection: "chunk_0", "chunk_1"...
	Text      string            // Whole sentences joined by single spaces
	Embedding []float32         // Fixed length per store
	Metadata  map[string]string // Provenance: "source", "position", "title"...
}

// Result is a chunk matched by a query. Lower Distance means closer.
type Result struct {
	Chunk    Chunk
	Distance float64
}

// Metadata keys written by the ingestion pipeline.
const (
	MetaSource   = "source"
	MetaPosition = "position"
)

// DefaultCollection is used when no collection name is configured.
const DefaultCollection = "documents"

// clone returns a deep copy so callers cannot mutate stored state.
func (c Chunk) clone() Chunk {
	out := Chunk{ID: c.ID, Text: c.Text}
	if c.Embedding != nil {
		out.Embedding = append([]float32(nil), c.Embedding...)
	}
	if c.Metadata != nil {
		out.Metadata = maps.Clone(c.Metadata)
	}
	return out
}

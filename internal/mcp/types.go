// Package mcp exposes retrieval over the Model Context Protocol.
package mcp

// RetrieveChunksInput defines the input parameters for the retrieve_chunks tool.
type RetrieveChunksInput struct {
	// Query is the natural language question.
	Query string `json:"query" jsonschema:"the question or search text to find relevant document excerpts for"`
	// K is the number of chunks to return.
	K int `json:"k,omitempty" jsonschema:"number of chunks to return, default 3"`
}

// RetrieveChunksOutput contains the ranked chunks.
type RetrieveChunksOutput struct {
	// Chunks are ordered closest first.
	Chunks []RetrievedChunk `json:"chunks"`
	// Message provides informational context (e.g., "Index is empty").
	Message string `json:"message,omitempty"`
}

// RetrievedChunk is one ranked match.
type RetrievedChunk struct {
	ID       string            `json:"id"`
	Text     string            `json:"text"`
	Distance float64           `json:"distance"`
	Source   string            `json:"source,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// ListChunksInput defines the input parameters for the list_chunks tool.
type ListChunksInput struct {
	Limit  int `json:"limit,omitempty" jsonschema:"maximum number of chunks to list, default 20"`
	Offset int `json:"offset,omitempty" jsonschema:"number of chunks to skip"`
}

// ListChunksOutput lists stored chunks in insertion order.
type ListChunksOutput struct {
	Chunks []ChunkSummary `json:"chunks"`
	// Total is the number of chunks in the collection.
	Total int `json:"total"`
}

// ChunkSummary is a short view of a stored chunk.
type ChunkSummary struct {
	ID       string `json:"id"`
	Source   string `json:"source,omitempty"`
	Position string `json:"position,omitempty"`
	Preview  string `json:"preview"`
}

// StatusInput takes no parameters.
type StatusInput struct{}

// StatusOutput describes the current index.
type StatusOutput struct {
	Collection  string   `json:"collection"`
	TotalChunks int      `json:"total_chunks"`
	Sources     []string `json:"sources"`
	Collections []string `json:"collections"`
}

package storage

import "errors"

// Sentinel errors returned by VectorStore implementations, checked with errors.Is.
var (
	// ErrDuplicateID is returned when a chunk id is already stored or repeats within a batch.
	ErrDuplicateID = errors.New("chunk id already exists")
	// ErrEmptyCollection is returned when querying a store that holds no chunks.
	ErrEmptyCollection = errors.New("collection is empty")
	// ErrDimensionMismatch is returned when an embedding length differs from the store's.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	// ErrInvalidChunk is returned for chunks with an empty id, text or embedding,
	// or an embedding holding NaN or Inf.
	ErrInvalidChunk = errors.New("invalid chunk")
	// ErrInvalidEmbedding is returned for query embeddings holding NaN or Inf.
	ErrInvalidEmbedding = errors.New("embedding has non-finite values")
	// ErrInvalidK is returned when k is less than 1.
	ErrInvalidK = errors.New("k must be at least 1")
	// ErrCollectionNotFound is returned by Collections.Get for unknown names.
	ErrCollectionNotFound = errors.New("collection not found")
	// ErrStoreUnreachable is returned when the vector database cannot be reached.
	ErrStoreUnreachable = errors.New("vector store unreachable")
)

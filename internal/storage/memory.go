package storage

import (
	"cmp"
	"context"
	"slices"
	"sync"
)

// MemoryStore is an in-process VectorStore that answers queries with a full linear scan.
type MemoryStore struct {
	name   string
	metric Metric

	mu     sync.RWMutex
	dim    int
	chunks []Chunk
	ids    map[string]struct{}
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithMetric sets the distance metric. Default is MetricCosine.
func WithMetric(m Metric) MemoryOption {
	return func(s *MemoryStore) { s.metric = m }
}

// NewMemoryStore creates an empty store named name.
func NewMemoryStore(name string, opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		name: name,
		ids:  make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) Name() string { return s.name }

// Dimension returns the embedding length established by the first add, or 0.
func (s *MemoryStore) Dimension() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dim
}

func (s *MemoryStore) Add(ctx context.Context, chunk Chunk) error {
	return s.AddBatch(ctx, []Chunk{chunk})
}

func (s *MemoryStore) AddBatch(ctx context.Context, chunks []Chunk) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dim, err := validateBatch(chunks, s.dim, func(id string) bool {
		_, ok := s.ids[id]
		return ok
	})
	if err != nil {
		return err
	}

	s.dim = dim
	for _, c := range chunks {
		s.chunks = append(s.chunks, c.clone())
		s.ids[c.ID] = struct{}{}
	}
	return nil
}

func (s *MemoryStore) GetAll(ctx context.Context) ([]Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Chunk, len(s.chunks))
	for i, c := range s.chunks {
		out[i] = c.clone()
	}
	return out, nil
}

func (s *MemoryStore) Query(ctx context.Context, embedding []float32, k int) ([]Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if k < 1 {
		return nil, validateQuery(embedding, k, 0)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.chunks) == 0 {
		return nil, ErrEmptyCollection
	}
	if err := validateQuery(embedding, k, s.dim); err != nil {
		return nil, err
	}

	// Stable sort keeps insertion order among equal distances.
	results := make([]Result, len(s.chunks))
	for i, c := range s.chunks {
		results[i] = Result{Chunk: c, Distance: s.metric.distance(embedding, c.Embedding)}
	}
	slices.SortStableFunc(results, func(a, b Result) int {
		return cmp.Compare(a.Distance, b.Distance)
	})

	results = results[:min(k, len(results))]
	for i := range results {
		results[i].Chunk = results[i].Chunk.clone()
	}
	return results, nil
}

func (s *MemoryStore) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks), nil
}

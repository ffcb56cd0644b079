package storage

import (
	"fmt"
	"slices"
	"sync"
)

// Factory creates the store backing a new collection.
type Factory func(name string) (VectorStore, error)

// MemoryFactory returns a Factory producing MemoryStores with opts.
func MemoryFactory(opts ...MemoryOption) Factory {
	return func(name string) (VectorStore, error) {
		return NewMemoryStore(name, opts...), nil
	}
}

// Collections is a namespace of named stores. The same name always yields the
// same store; different names never share chunks.
type Collections struct {
	factory Factory

	mu     sync.Mutex
	stores map[string]VectorStore
}

// NewCollections creates an empty namespace. A nil factory means in-memory stores.
func NewCollections(factory Factory) *Collections {
	if factory == nil {
		factory = MemoryFactory()
	}
	return &Collections{
		factory: factory,
		stores:  make(map[string]VectorStore),
	}
}

// GetOrCreate returns the store for name, creating it on first use.
// An empty name means DefaultCollection.
func (c *Collections) GetOrCreate(name string) (VectorStore, error) {
	if name == "" {
		name = DefaultCollection
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if s, ok := c.stores[name]; ok {
		return s, nil
	}
	s, err := c.factory(name)
	if err != nil {
		return nil, fmt.Errorf("create collection %q: %w", name, err)
	}
	c.stores[name] = s
	return s, nil
}

// Get returns an existing store or ErrCollectionNotFound.
func (c *Collections) Get(name string) (VectorStore, error) {
	if name == "" {
		name = DefaultCollection
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.stores[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrCollectionNotFound, name)
	}
	return s, nil
}

// Names returns the collection names in sorted order.
func (c *Collections) Names() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	names := make([]string, 0, len(c.stores))
	for name := range c.stores {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

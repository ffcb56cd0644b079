package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollections_SameNameSameStore(t *testing.T) {
	cols := NewCollections(nil)

	a, err := cols.GetOrCreate("docs")
	require.NoError(t, err)
	b, err := cols.GetOrCreate("docs")
	require.NoError(t, err)

	assert.Same(t, a, b)
	assert.Equal(t, "docs", a.Name())
}

func TestCollections_NamesAreIsolated(t *testing.T) {
	ctx := context.Background()
	cols := NewCollections(nil)

	a, err := cols.GetOrCreate("a")
	require.NoError(t, err)
	b, err := cols.GetOrCreate("b")
	require.NoError(t, err)

	require.NoError(t, a.Add(ctx, Chunk{ID: "chunk_0", Text: "x", Embedding: []float32{1, 0}}))
	// Same id in another collection is not a duplicate.
	require.NoError(t, b.Add(ctx, Chunk{ID: "chunk_0", Text: "y", Embedding: []float32{1, 0, 0}}))

	n, err := b.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	results, err := a.Query(ctx, []float32{1, 0}, 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "x", results[0].Chunk.Text)
}

func TestCollections_GetMissing(t *testing.T) {
	cols := NewCollections(nil)

	_, err := cols.Get("nope")
	assert.ErrorIs(t, err, ErrCollectionNotFound)
}

func TestCollections_EmptyNameIsDefault(t *testing.T) {
	cols := NewCollections(nil)

	s, err := cols.GetOrCreate("")
	require.NoError(t, err)
	assert.Equal(t, DefaultCollection, s.Name())

	got, err := cols.Get(DefaultCollection)
	require.NoError(t, err)
	assert.Same(t, s, got)
}

func TestCollections_Names(t *testing.T) {
	cols := NewCollections(MemoryFactory(WithMetric(MetricEuclidean)))
	for _, n := range []string{"zeta", "alpha", "mid"} {
		_, err := cols.GetOrCreate(n)
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, cols.Names())
}

func TestCollections_FactoryError(t *testing.T) {
	boom := errors.New("boom")
	cols := NewCollections(func(string) (VectorStore, error) { return nil, boom })

	_, err := cols.GetOrCreate("x")
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, cols.Names())
}

package vectordb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore(&Config{Dimension: 4})

	t.Run("ShouldUpsertAndSearchByCosine", func(t *testing.T) {
		records := []Record{
			{ID: "a", Text: "alpha", Embedding: []float32{1, 0, 0, 0}, Metadata: map[string]any{"kind": "one"}},
			{ID: "b", Text: "bravo", Embedding: []float32{0, 1, 0, 0}, Metadata: map[string]any{"kind": "two"}},
		}
		require.NoError(t, store.Upsert(ctx, records))
		matches, err := store.Search(ctx, []float32{1, 0, 0, 0}, SearchOptions{TopK: 1})
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, "a", matches[0].ID)
		assert.InDelta(t, 1.0, matches[0].Score, 1e-6)
	})

	t.Run("ShouldFilterByMetadata", func(t *testing.T) {
		matches, err := store.Search(
			ctx,
			[]float32{0, 1, 0, 0},
			SearchOptions{TopK: 2, Filters: map[string]string{"kind": "two"}},
		)
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, "b", matches[0].ID)
	})

	t.Run("ShouldApplyMinScore", func(t *testing.T) {
		matches, err := store.Search(ctx, []float32{1, 0, 0, 0}, SearchOptions{TopK: 5, MinScore: 0.5})
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, "a", matches[0].ID)
	})

	t.Run("ShouldDeleteByID", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, Filter{IDs: []string{"a"}}))
		matches, err := store.Search(ctx, []float32{1, 0, 0, 0}, SearchOptions{TopK: 2, MinScore: 0.1})
		require.NoError(t, err)
		require.Empty(t, matches)
	})

	t.Run("ShouldDeleteByMetadata", func(t *testing.T) {
		other := newMemoryStore(&Config{Dimension: 2})
		require.NoError(t, other.Upsert(ctx, []Record{
			{ID: "x", Embedding: []float32{1, 0}, Metadata: map[string]any{"doc": "d1"}},
			{ID: "y", Embedding: []float32{0, 1}, Metadata: map[string]any{"doc": "d2"}},
		}))
		require.NoError(t, other.Delete(ctx, Filter{Metadata: map[string]string{"doc": "d1"}}))
		matches, err := other.Search(ctx, []float32{1, 0}, SearchOptions{TopK: 5})
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, "y", matches[0].ID)
	})

	t.Run("ShouldFailUpsertWhenDimensionMismatch", func(t *testing.T) {
		mismatchStore := newMemoryStore(&Config{Dimension: 4})
		err := mismatchStore.Upsert(ctx, []Record{{ID: "bad", Embedding: []float32{1, 1, 1}}})
		require.Error(t, err)
	})

	t.Run("ShouldFailSearchWhenQueryDimensionMismatch", func(t *testing.T) {
		otherStore := newMemoryStore(&Config{Dimension: 2})
		_, err := otherStore.Search(ctx, []float32{1, 0, 0}, SearchOptions{TopK: 1})
		require.Error(t, err)
	})

	t.Run("ShouldClampTopKToMaxTopK", func(t *testing.T) {
		limited := newMemoryStore(&Config{Dimension: 2, MaxTopK: 1})
		require.NoError(t, limited.Upsert(ctx, []Record{
			{ID: "d", Embedding: []float32{1, 0}},
			{ID: "e", Embedding: []float32{0.9, 0.1}},
		}))
		matches, err := limited.Search(ctx, []float32{1, 0}, SearchOptions{TopK: 10})
		require.NoError(t, err)
		require.Len(t, matches, 1)
	})
}

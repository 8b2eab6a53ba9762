package vectordb

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore(t *testing.T) {
	ctx := context.Background()

	t.Run("ShouldPersistAcrossReopen", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "collection.json")
		cfg := &Config{Provider: ProviderFilesystem, Path: path, Dimension: 2}
		store, err := newFileStore(cfg)
		require.NoError(t, err)
		require.NoError(t, store.Upsert(ctx, []Record{
			{ID: "a", Text: "alpha", Embedding: []float32{1, 0}, Metadata: map[string]any{"chunk_index": "0"}},
		}))
		require.NoError(t, store.Close(ctx))

		reopened, err := newFileStore(cfg)
		require.NoError(t, err)
		matches, err := reopened.Search(ctx, []float32{1, 0}, SearchOptions{TopK: 1})
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, "alpha", matches[0].Text)
	})

	t.Run("ShouldRejectDimensionMismatchOnLoad", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "collection.json")
		store, err := newFileStore(&Config{Provider: ProviderFilesystem, Path: path, Dimension: 2})
		require.NoError(t, err)
		require.NoError(t, store.Upsert(ctx, []Record{{ID: "a", Embedding: []float32{1, 0}}}))
		require.NoError(t, store.Close(ctx))

		_, err = newFileStore(&Config{Provider: ProviderFilesystem, Path: path, Dimension: 3})
		require.Error(t, err)
	})

	t.Run("ShouldRequirePath", func(t *testing.T) {
		_, err := newFileStore(&Config{Provider: ProviderFilesystem, Dimension: 2})
		require.Error(t, err)
	})
}

func TestRegistry(t *testing.T) {
	ctx := context.Background()

	t.Run("ShouldCreateCollectionsLazilyAndCacheThem", func(t *testing.T) {
		created := 0
		registry, err := NewRegistry(func(_ context.Context, id string) (Store, error) {
			created++
			return newMemoryStore(&Config{Collection: id, Dimension: 2}), nil
		})
		require.NoError(t, err)
		first, err := registry.Collection(ctx, "doc-1")
		require.NoError(t, err)
		second, err := registry.Collection(ctx, "doc-1")
		require.NoError(t, err)
		assert.Same(t, first, second)
		assert.Equal(t, 1, created)
		_, err = registry.Collection(ctx, "doc-2")
		require.NoError(t, err)
		assert.Equal(t, 2, created)
	})

	t.Run("ShouldRejectEmptyCollectionID", func(t *testing.T) {
		registry, err := NewRegistry(func(_ context.Context, id string) (Store, error) {
			return newMemoryStore(&Config{Dimension: 2}), nil
		})
		require.NoError(t, err)
		_, err = registry.Collection(ctx, "  ")
		require.Error(t, err)
	})

	t.Run("ShouldRecreateAfterRelease", func(t *testing.T) {
		created := 0
		registry, err := NewRegistry(func(_ context.Context, id string) (Store, error) {
			created++
			return newMemoryStore(&Config{Dimension: 2}), nil
		})
		require.NoError(t, err)
		_, err = registry.Collection(ctx, "doc-1")
		require.NoError(t, err)
		require.NoError(t, registry.Release(ctx, "doc-1"))
		_, err = registry.Collection(ctx, "doc-1")
		require.NoError(t, err)
		assert.Equal(t, 2, created)
	})

	t.Run("ShouldRequireFactory", func(t *testing.T) {
		_, err := NewRegistry(nil)
		require.Error(t, err)
	})

	t.Run("ShouldDeriveFilesystemPathsPerCollection", func(t *testing.T) {
		dir := t.TempDir()
		factory := DefaultFactory(Config{Provider: ProviderFilesystem, Path: dir, Dimension: 2})
		registry, err := NewRegistry(factory)
		require.NoError(t, err)
		store, err := registry.Collection(ctx, "doc-9")
		require.NoError(t, err)
		require.NoError(t, store.Upsert(ctx, []Record{{ID: "a", Embedding: []float32{1, 0}}}))
		assert.FileExists(t, filepath.Join(dir, "doc-9.json"))
	})
}

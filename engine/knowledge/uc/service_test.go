package uc_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docscope/docscope/engine/knowledge"
	"github.com/docscope/docscope/engine/knowledge/embedder"
	"github.com/docscope/docscope/engine/knowledge/uc"
	"github.com/docscope/docscope/engine/knowledge/vectordb"
)

// axisClient maps each text onto a fixed axis by keyword so that cosine
// search behaves deterministically.
type axisClient struct {
	fail bool
}

func (c *axisClient) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	if c.fail {
		return nil, errors.New("provider down")
	}
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		switch {
		case strings.Contains(text, "solar"):
			vectors[i] = []float32{1, 0, 0}
		case strings.Contains(text, "wind"):
			vectors[i] = []float32{0, 1, 0}
		default:
			vectors[i] = []float32{0, 0, 1}
		}
	}
	return vectors, nil
}

func newService(t *testing.T, client embedder.Client) *uc.Service {
	t.Helper()
	orchestrator, err := embedder.Wrap(&embedder.Config{
		ID:          "test",
		Provider:    embedder.ProviderOpenAICompatible,
		BaseURL:     "http://localhost:9999",
		Model:       "test-embed",
		Dimension:   3,
		BatchSize:   8,
		Concurrency: 2,
	}, client)
	require.NoError(t, err)
	registry, err := vectordb.NewRegistry(func(ctx context.Context, id string) (vectordb.Store, error) {
		return vectordb.New(ctx, &vectordb.Config{
			Provider:   vectordb.ProviderMemory,
			Collection: id,
			Dimension:  3,
		})
	})
	require.NoError(t, err)
	service, err := uc.NewService(embedder.NewHandle(orchestrator), registry)
	require.NoError(t, err)
	t.Cleanup(func() { _ = service.Close(context.Background()) })
	return service
}

func ingested(t *testing.T, service *uc.Service, id, name, text string) {
	t.Helper()
	doc := knowledge.Document{ID: id, Name: name}
	require.NoError(t, service.IngestDocument(context.Background(), doc, text))
}

func TestService(t *testing.T) {
	t.Run("ShouldIngestAndSearchAcrossDocuments", func(t *testing.T) {
		service := newService(t, &axisClient{})
		ingested(t, service, "doc-1", "solar.md", "solar panels convert sunlight into power")
		ingested(t, service, "doc-2", "wind.md", "wind turbines convert moving air into power")
		result, err := service.Search(context.Background(), "solar output", knowledge.SearchOptions{
			Mode: knowledge.ModePrecise,
		})
		require.NoError(t, err)
		require.Equal(t, 1, result.TotalHits)
		assert.Equal(t, "doc-1", result.Hits[0].DocumentID)
		assert.Equal(t, "solar.md", result.Hits[0].DocumentName)
		assert.InDelta(t, 1.0, result.Hits[0].Score, 1e-6)
		assert.Contains(t, result.Context, "solar panels")
	})
	t.Run("ShouldTrackDocumentStatus", func(t *testing.T) {
		service := newService(t, &axisClient{})
		ingested(t, service, "doc-1", "solar.md", "solar panels")
		doc, ok := service.Document("doc-1")
		require.True(t, ok)
		assert.Equal(t, knowledge.StatusReady, doc.Status)
	})
	t.Run("ShouldMarkFailedIngestion", func(t *testing.T) {
		service := newService(t, &axisClient{fail: true})
		doc := knowledge.Document{ID: "doc-1", Name: "solar.md"}
		err := service.IngestDocument(context.Background(), doc, "solar panels")
		require.Error(t, err)
		stored, ok := service.Document("doc-1")
		require.True(t, ok)
		assert.Equal(t, knowledge.StatusFailed, stored.Status)
		result, err := service.Search(context.Background(), "solar", knowledge.SearchOptions{})
		require.NoError(t, err)
		assert.Zero(t, result.TotalHits)
		assert.NotEmpty(t, result.Suggestion)
	})
	t.Run("ShouldRejectDocumentWithoutID", func(t *testing.T) {
		service := newService(t, &axisClient{})
		err := service.IngestDocument(context.Background(), knowledge.Document{}, "text")
		require.Error(t, err)
	})
	t.Run("ShouldRestrictSearchToNamedDocuments", func(t *testing.T) {
		service := newService(t, &axisClient{})
		ingested(t, service, "doc-1", "solar.md", "solar panels")
		ingested(t, service, "doc-2", "wind.md", "wind turbines")
		result, err := service.SearchIn(
			context.Background(),
			[]string{"doc-2"},
			"wind speed",
			knowledge.SearchOptions{Mode: knowledge.ModePrecise},
		)
		require.NoError(t, err)
		require.Equal(t, 1, result.TotalHits)
		assert.Equal(t, "doc-2", result.Hits[0].DocumentID)
	})
	t.Run("ShouldFailSearchInForUnknownDocument", func(t *testing.T) {
		service := newService(t, &axisClient{})
		_, err := service.SearchIn(context.Background(), []string{"missing"}, "q", knowledge.SearchOptions{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "missing")
	})
	t.Run("ShouldServeChunkRangesForWidening", func(t *testing.T) {
		service := newService(t, &axisClient{})
		ingested(t, service, "doc-1", "solar.md", "solar panels")
		chunks, err := service.FetchRange(context.Background(), "doc-1", 0, 5)
		require.NoError(t, err)
		require.Len(t, chunks, 1)
		assert.Equal(t, "solar panels", chunks[0])
		_, err = service.FetchRange(context.Background(), "missing", 0, 1)
		require.Error(t, err)
	})
	t.Run("ShouldDeleteDocument", func(t *testing.T) {
		service := newService(t, &axisClient{})
		ingested(t, service, "doc-1", "solar.md", "solar panels")
		require.NoError(t, service.DeleteDocument(context.Background(), "doc-1"))
		_, ok := service.Document("doc-1")
		assert.False(t, ok)
		result, err := service.Search(context.Background(), "solar", knowledge.SearchOptions{})
		require.NoError(t, err)
		assert.Zero(t, result.TotalHits)
	})
	t.Run("ShouldListDocumentsSortedByID", func(t *testing.T) {
		service := newService(t, &axisClient{})
		ingested(t, service, "doc-2", "wind.md", "wind turbines")
		ingested(t, service, "doc-1", "solar.md", "solar panels")
		docs := service.Documents()
		require.Len(t, docs, 2)
		assert.Equal(t, "doc-1", docs[0].ID)
		assert.Equal(t, "doc-2", docs[1].ID)
	})
	t.Run("ShouldSummarizeSections", func(t *testing.T) {
		service := newService(t, &axisClient{})
		ingested(t, service, "doc-1", "solar.md", "solar panels convert sunlight")
		summaries, err := service.SearchSections(
			context.Background(),
			"solar",
			knowledge.SearchOptions{Mode: knowledge.ModePrecise},
		)
		require.NoError(t, err)
		require.Len(t, summaries, 1)
		assert.Equal(t, "doc-1", summaries[0].DocumentID)
		assert.Equal(t, "unknown", summaries[0].Path)
	})
	t.Run("ShouldReingestWithoutDuplicates", func(t *testing.T) {
		service := newService(t, &axisClient{})
		ingested(t, service, "doc-1", "solar.md", "solar panels first version")
		ingested(t, service, "doc-1", "solar.md", "solar panels second version")
		result, err := service.Search(context.Background(), "solar", knowledge.SearchOptions{
			Mode: knowledge.ModeBroad,
		})
		require.NoError(t, err)
		require.Equal(t, 1, result.TotalHits)
		assert.Contains(t, result.Hits[0].Content, "second version")
	})
}

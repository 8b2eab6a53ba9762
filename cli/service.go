package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/docscope/docscope/engine/knowledge/embedder"
	"github.com/docscope/docscope/engine/knowledge/uc"
	"github.com/docscope/docscope/engine/knowledge/vectordb"
)

// buildService wires the knowledge service from CLI configuration and
// restores the corpus catalog written by previous runs.
func buildService(ctx context.Context, cfg *Config) (*uc.Service, *catalog, error) {
	orchestrator, err := embedder.New(&embedder.Config{
		ID:          "default",
		Provider:    embedder.Provider(cfg.Embedder.Provider),
		BaseURL:     cfg.Embedder.BaseURL,
		APIKey:      cfg.Embedder.APIKey,
		Model:       cfg.Embedder.Model,
		Dimension:   cfg.Embedder.Dimension,
		BatchSize:   cfg.Embedder.BatchSize,
		Concurrency: cfg.Embedder.Concurrency,
	})
	if err != nil {
		return nil, nil, err
	}
	registry, err := vectordb.NewRegistry(vectordb.DefaultFactory(vectordb.Config{
		Provider:  vectordb.Provider(cfg.Store.Provider),
		Path:      cfg.Corpus,
		DSN:       cfg.Store.DSN,
		Dimension: cfg.Embedder.Dimension,
	}))
	if err != nil {
		return nil, nil, err
	}
	service, err := uc.NewService(embedder.NewHandle(orchestrator), registry)
	if err != nil {
		return nil, nil, err
	}
	cat, err := loadCatalog(filepath.Join(cfg.Corpus, "catalog.json"))
	if err != nil {
		_ = service.Close(ctx)
		return nil, nil, fmt.Errorf("load catalog: %w", err)
	}
	service.Restore(cat.Documents, cat.Chunks)
	return service, cat, nil
}

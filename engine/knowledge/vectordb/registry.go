package vectordb

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/docscope/docscope/pkg/logger"
)

// Factory builds the backing store for one collection id.
type Factory func(ctx context.Context, collectionID string) (Store, error)

// Registry resolves per-document collection ids to store instances, creating
// them lazily and caching them for the registry's lifetime.
type Registry struct {
	mu      sync.RWMutex
	factory Factory
	stores  map[string]Store
}

// NewRegistry constructs an empty registry around a collection factory.
func NewRegistry(factory Factory) (*Registry, error) {
	if factory == nil {
		return nil, errors.New("vector collection factory is required")
	}
	return &Registry{factory: factory, stores: make(map[string]Store)}, nil
}

// DefaultFactory builds collections from a base config, overriding the
// collection id (and, for filesystem stores, deriving a per-collection path).
func DefaultFactory(base Config) Factory {
	return func(ctx context.Context, collectionID string) (Store, error) {
		cfg := base
		cfg.Collection = collectionID
		if cfg.Provider == ProviderFilesystem && cfg.Path != "" {
			cfg.Path = fmt.Sprintf("%s/%s.json", strings.TrimRight(cfg.Path, "/"), collectionID)
		}
		return New(ctx, &cfg)
	}
}

// Collection returns the store for id, creating it on first use.
func (r *Registry) Collection(ctx context.Context, id string) (Store, error) {
	if strings.TrimSpace(id) == "" {
		return nil, errors.New("vector collection id is required")
	}
	r.mu.RLock()
	store, ok := r.stores[id]
	r.mu.RUnlock()
	if ok {
		return store, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if store, ok := r.stores[id]; ok {
		return store, nil
	}
	store, err := r.factory(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("vector collection %q: %w", id, err)
	}
	r.stores[id] = store
	return store, nil
}

// Release closes and forgets the store for id. Unknown ids are a no-op.
func (r *Registry) Release(ctx context.Context, id string) error {
	r.mu.Lock()
	store, ok := r.stores[id]
	delete(r.stores, id)
	r.mu.Unlock()
	if !ok {
		return nil
	}
	return store.Close(ctx)
}

// Close closes every cached store, keeping the first error.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	stores := r.stores
	r.stores = make(map[string]Store)
	r.mu.Unlock()
	var firstErr error
	for id, store := range stores {
		if err := store.Close(ctx); err != nil {
			logger.FromContext(ctx).Warn("failed to close vector collection", "collection", id, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

package vectordb

import "context"

// Provider enumerates supported vector collection backends.
type Provider string

const (
	ProviderMemory     Provider = "memory"
	ProviderFilesystem Provider = "filesystem"
	ProviderPGVector   Provider = "pgvector"
)

// Record is one chunk persisted to a collection.
type Record struct {
	ID        string
	Text      string
	Embedding []float32
	Metadata  map[string]any
}

// SearchOptions controls similarity search execution.
type SearchOptions struct {
	TopK     int
	MinScore float64
	Filters  map[string]string
}

// Match captures a similarity search result. Score is comparable only within
// one query execution.
type Match struct {
	ID       string
	Score    float64
	Text     string
	Metadata map[string]any
}

// Filter specifies delete criteria.
type Filter struct {
	IDs      []string
	Metadata map[string]string
}

// Store exposes the minimal contract for one vector collection. Collections
// are keyed externally by an opaque identifier (one per document).
type Store interface {
	Upsert(ctx context.Context, records []Record) error
	Search(ctx context.Context, query []float32, opts SearchOptions) ([]Match, error)
	Delete(ctx context.Context, filter Filter) error
	Close(ctx context.Context) error
}

// Config captures normalized connection details for a collection backend.
type Config struct {
	Provider   Provider
	Collection string
	DSN        string
	Path       string
	Table      string
	Dimension  int
	Metric     string
	MaxTopK    int
}

const defaultTopK = 5

func cloneMap(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func metadataMatches(meta map[string]any, filters map[string]string) bool {
	if len(filters) == 0 {
		return true
	}
	for key, want := range filters {
		value, ok := meta[key]
		if !ok {
			return false
		}
		text, ok := value.(string)
		if !ok || text != want {
			return false
		}
	}
	return true
}

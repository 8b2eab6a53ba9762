package vectordb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// fileStore persists one collection to a JSON file. Good enough for CLI use
// and deterministic tests; not meant for large corpora.
type fileStore struct {
	mu        sync.RWMutex
	path      string
	dimension int
	maxTopK   int
	records   map[string]Record
}

func newFileStore(cfg *Config) (Store, error) {
	if cfg.Path == "" {
		return nil, errors.New("filesystem: path is required")
	}
	storePath := filepath.Clean(cfg.Path)
	dir := filepath.Dir(storePath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("filesystem: ensure directory %q: %w", dir, err)
	}
	fs := &fileStore{
		path:      storePath,
		dimension: cfg.Dimension,
		maxTopK:   cfg.MaxTopK,
		records:   make(map[string]Record),
	}
	if err := fs.load(); err != nil {
		return nil, err
	}
	return fs, nil
}

func (s *fileStore) Upsert(_ context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range records {
		rec := records[i]
		if len(rec.Embedding) != s.dimension {
			return fmt.Errorf(
				"filesystem: record %q dimension mismatch (got %d want %d)",
				rec.ID, len(rec.Embedding), s.dimension,
			)
		}
		s.records[rec.ID] = Record{
			ID:        rec.ID,
			Text:      rec.Text,
			Embedding: append([]float32(nil), rec.Embedding...),
			Metadata:  cloneMap(rec.Metadata),
		}
	}
	return s.persistLocked()
}

func (s *fileStore) Search(_ context.Context, query []float32, opts SearchOptions) ([]Match, error) {
	if len(query) != s.dimension {
		return nil, fmt.Errorf("filesystem: query dimension mismatch (got %d want %d)", len(query), s.dimension)
	}
	topK := opts.TopK
	if topK <= 0 {
		topK = defaultTopK
	}
	if s.maxTopK > 0 && topK > s.maxTopK {
		topK = s.maxTopK
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	candidates := make([]Match, 0, len(s.records))
	for _, rec := range s.records {
		if !metadataMatches(rec.Metadata, opts.Filters) {
			continue
		}
		score := cosineSimilarity(rec.Embedding, query)
		if score < opts.MinScore {
			continue
		}
		candidates = append(candidates, Match{
			ID:       rec.ID,
			Score:    score,
			Text:     rec.Text,
			Metadata: cloneMap(rec.Metadata),
		})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score == candidates[j].Score {
			return candidates[i].ID < candidates[j].ID
		}
		return candidates[i].Score > candidates[j].Score
	})
	if len(candidates) > topK {
		candidates = candidates[:topK]
	}
	return candidates, nil
}

func (s *fileStore) Delete(_ context.Context, filter Filter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range filter.IDs {
		delete(s.records, id)
	}
	if len(filter.Metadata) > 0 {
		for id, rec := range s.records {
			if metadataMatches(rec.Metadata, filter.Metadata) {
				delete(s.records, id)
			}
		}
	}
	return s.persistLocked()
}

func (s *fileStore) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistLocked()
}

type filePayload struct {
	Dimension int      `json:"dimension"`
	Records   []Record `json:"records"`
}

func (s *fileStore) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("filesystem: read %q: %w", s.path, err)
	}
	if len(data) == 0 {
		return nil
	}
	var payload filePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("filesystem: decode %q: %w", s.path, err)
	}
	if payload.Dimension != 0 && payload.Dimension != s.dimension {
		return fmt.Errorf(
			"filesystem: store %q dimension mismatch (file %d, config %d)",
			s.path, payload.Dimension, s.dimension,
		)
	}
	for i := range payload.Records {
		rec := payload.Records[i]
		s.records[rec.ID] = rec
	}
	return nil
}

func (s *fileStore) persistLocked() error {
	payload := filePayload{Dimension: s.dimension, Records: make([]Record, 0, len(s.records))}
	for _, rec := range s.records {
		payload.Records = append(payload.Records, rec)
	}
	sort.Slice(payload.Records, func(i, j int) bool { return payload.Records[i].ID < payload.Records[j].ID })
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("filesystem: encode %q: %w", s.path, err)
	}
	if err := os.WriteFile(s.path, data, 0o640); err != nil {
		return fmt.Errorf("filesystem: write %q: %w", s.path, err)
	}
	return nil
}

package uc

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/docscope/docscope/engine/knowledge"
	"github.com/docscope/docscope/engine/knowledge/aggregate"
	"github.com/docscope/docscope/engine/knowledge/chunk"
	"github.com/docscope/docscope/engine/knowledge/embedder"
	"github.com/docscope/docscope/engine/knowledge/ingest"
	"github.com/docscope/docscope/engine/knowledge/retriever"
	"github.com/docscope/docscope/engine/knowledge/vectordb"
	"github.com/docscope/docscope/pkg/logger"
)

var (
	errMissingHandle   = fmt.Errorf("knowledge: embedder handle is required")
	errMissingRegistry = fmt.Errorf("knowledge: vector registry is required")
	errMissingDocID    = fmt.Errorf("knowledge: document id is required")
	errUnknownDocument = fmt.Errorf("knowledge: unknown document")
)

// Service is the composition point of the retrieval pipeline: it owns the
// document catalog, wires ingestion to the vector registry and delegates
// queries to the retrieval engine. It also serves chunk contents back to the
// aggregator for context widening.
type Service struct {
	handle   *embedder.Handle
	registry *vectordb.Registry
	pipeline *ingest.Pipeline
	engine   *retriever.Engine

	mu     sync.RWMutex
	docs   map[string]knowledge.Document
	chunks map[string][]string
}

func NewService(handle *embedder.Handle, registry *vectordb.Registry) (*Service, error) {
	if handle == nil {
		return nil, errMissingHandle
	}
	if registry == nil {
		return nil, errMissingRegistry
	}
	service := &Service{
		handle:   handle,
		registry: registry,
		docs:     make(map[string]knowledge.Document),
		chunks:   make(map[string][]string),
	}
	pipeline, err := ingest.New(handle, func(ctx context.Context, id string) (ingest.Upserter, error) {
		store, err := registry.Collection(ctx, id)
		if err != nil {
			return nil, err
		}
		return store, nil
	})
	if err != nil {
		return nil, err
	}
	engine, err := retriever.New(
		handle,
		func(ctx context.Context, id string) (retriever.Searcher, error) {
			store, err := registry.Collection(ctx, id)
			if err != nil {
				return nil, err
			}
			return store, nil
		},
		retriever.WithAggregator(&retriever.Aggregator{Fetcher: service}),
	)
	if err != nil {
		return nil, err
	}
	service.pipeline = pipeline
	service.engine = engine
	return service, nil
}

// IngestDocument chunks, embeds and stores the document text, then marks the
// document ready. A failed ingestion leaves the document in failed status and
// keeps it out of search.
func (s *Service) IngestDocument(ctx context.Context, doc knowledge.Document, text string) error {
	if doc.ID == "" {
		return errMissingDocID
	}
	s.setStatus(doc, knowledge.StatusProcessing)
	chunks, err := s.pipeline.IngestText(ctx, doc, text)
	return s.finishIngest(ctx, doc, chunks, err)
}

// IngestPages is the page-aware variant used for paginated sources.
func (s *Service) IngestPages(
	ctx context.Context,
	doc knowledge.Document,
	pages []chunk.PageContent,
	settings chunk.Settings,
) error {
	if doc.ID == "" {
		return errMissingDocID
	}
	if doc.TotalPages == 0 {
		doc.TotalPages = len(pages)
	}
	s.setStatus(doc, knowledge.StatusProcessing)
	chunks, err := s.pipeline.IngestPages(ctx, doc, pages, settings)
	return s.finishIngest(ctx, doc, chunks, err)
}

func (s *Service) finishIngest(
	ctx context.Context,
	doc knowledge.Document,
	chunks []chunk.Chunk,
	err error,
) error {
	if err != nil {
		s.setStatus(doc, knowledge.StatusFailed)
		return err
	}
	contents := make([]string, len(chunks))
	for i := range chunks {
		contents[i] = chunks[i].Content
	}
	s.mu.Lock()
	s.chunks[doc.ID] = contents
	s.mu.Unlock()
	s.setStatus(doc, knowledge.StatusReady)
	logger.FromContext(ctx).Debug("document ready", "document_id", doc.ID, "chunks", len(chunks))
	return nil
}

// Search queries every ready document in the catalog.
func (s *Service) Search(
	ctx context.Context,
	query string,
	opts knowledge.SearchOptions,
) (*knowledge.SearchResult, error) {
	return s.engine.Search(ctx, s.Documents(), query, opts)
}

// SearchIn restricts the query to the named documents. Unknown IDs are an
// error; non-ready documents are skipped by the engine.
func (s *Service) SearchIn(
	ctx context.Context,
	documentIDs []string,
	query string,
	opts knowledge.SearchOptions,
) (*knowledge.SearchResult, error) {
	docs := make([]knowledge.Document, 0, len(documentIDs))
	s.mu.RLock()
	for _, id := range documentIDs {
		doc, ok := s.docs[id]
		if !ok {
			s.mu.RUnlock()
			return nil, fmt.Errorf("%w: %q", errUnknownDocument, id)
		}
		docs = append(docs, doc)
	}
	s.mu.RUnlock()
	return s.engine.Search(ctx, docs, query, opts)
}

// SearchSections runs a section-grouped query and collapses the groups into
// coarse per-section summaries.
func (s *Service) SearchSections(
	ctx context.Context,
	query string,
	opts knowledge.SearchOptions,
) ([]knowledge.SectionSummary, error) {
	opts.GroupBySection = true
	result, err := s.Search(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	return aggregateSummaries(result), nil
}

// FetchRange serves stored chunk contents for context widening. The range is
// inclusive; out-of-range indices are skipped.
func (s *Service) FetchRange(_ context.Context, documentID string, from, to int) ([]string, error) {
	s.mu.RLock()
	contents, ok := s.chunks[documentID]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", errUnknownDocument, documentID)
	}
	out := make([]string, 0, to-from+1)
	for i := from; i <= to; i++ {
		if i >= 0 && i < len(contents) {
			out = append(out, contents[i])
		}
	}
	return out, nil
}

// Restore preloads catalog entries and chunk contents saved by a previous
// run, without re-embedding anything.
func (s *Service) Restore(docs []knowledge.Document, chunks map[string][]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, doc := range docs {
		if doc.ID == "" {
			continue
		}
		s.docs[doc.ID] = doc
	}
	for id, contents := range chunks {
		s.chunks[id] = contents
	}
}

// ChunkContents returns the stored chunk texts for one document, in index
// order.
func (s *Service) ChunkContents(id string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	contents := s.chunks[id]
	out := make([]string, len(contents))
	copy(out, contents)
	return out
}

// Documents lists the catalog sorted by ID.
func (s *Service) Documents() []knowledge.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	docs := make([]knowledge.Document, 0, len(s.docs))
	for _, doc := range s.docs {
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs
}

// Document looks up one catalog entry.
func (s *Service) Document(id string) (knowledge.Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[id]
	return doc, ok
}

// DeleteDocument removes the document's chunks and catalog entry.
func (s *Service) DeleteDocument(ctx context.Context, id string) error {
	s.mu.RLock()
	doc, ok := s.docs[id]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %q", errUnknownDocument, id)
	}
	store, err := s.registry.Collection(ctx, doc.CollectionID())
	if err != nil {
		return err
	}
	if err := store.Delete(ctx, vectordb.Filter{
		Metadata: map[string]string{"document_id": id},
	}); err != nil {
		return fmt.Errorf("knowledge: delete document %q: %w", id, err)
	}
	if err := s.registry.Release(ctx, doc.CollectionID()); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.docs, id)
	delete(s.chunks, id)
	s.mu.Unlock()
	return nil
}

// Close releases every open vector collection.
func (s *Service) Close(ctx context.Context) error {
	return s.registry.Close(ctx)
}

func (s *Service) setStatus(doc knowledge.Document, status knowledge.DocumentStatus) {
	doc.Status = status
	s.mu.Lock()
	s.docs[doc.ID] = doc
	s.mu.Unlock()
}

func aggregateSummaries(result *knowledge.SearchResult) []knowledge.SectionSummary {
	if len(result.Sections) == 0 {
		return nil
	}
	return aggregate.SummarizeSections(result.Sections)
}

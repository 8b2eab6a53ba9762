package retriever

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/docscope/docscope/engine/knowledge"
	"github.com/docscope/docscope/engine/knowledge/aggregate"
	"github.com/docscope/docscope/engine/knowledge/embedder"
	"github.com/docscope/docscope/engine/knowledge/vectordb"
	"github.com/docscope/docscope/pkg/logger"
	"golang.org/x/sync/errgroup"
)

// Searcher is the read side of a vector collection.
type Searcher interface {
	Search(ctx context.Context, query []float32, opts vectordb.SearchOptions) ([]vectordb.Match, error)
}

// SearcherResolver maps a document's collection ID to its Searcher.
// vectordb.Registry.Collection satisfies this shape through a closure.
type SearcherResolver func(ctx context.Context, collectionID string) (Searcher, error)

// Aggregator bundles the collaborators of the enhanced search path. A nil
// Aggregator on the Engine degrades every query to plain mode instead of
// failing it.
type Aggregator struct {
	Fetcher  aggregate.ChunkFetcher
	Sections aggregate.SectionResolver
	MaxGap   int
}

// Engine executes retrieval queries across per-document vector collections.
type Engine struct {
	handle      *embedder.Handle
	resolve     SearcherResolver
	aggregator  *Aggregator
	estimate    aggregate.TokenEstimator
	maxParallel int
}

var (
	errMissingHandle   = fmt.Errorf("retriever: embedder handle is required")
	errMissingResolver = fmt.Errorf("retriever: searcher resolver is required")
	errNoEmbedder      = fmt.Errorf("retriever: no embedding provider configured")
)

var tracer = otel.Tracer("docscope/knowledge/retriever")

// Option customizes Engine construction.
type Option func(*Engine)

// WithAggregator enables the enhanced search path.
func WithAggregator(a *Aggregator) Option {
	return func(e *Engine) { e.aggregator = a }
}

// WithTokenEstimator overrides the token cost function used for context
// assembly.
func WithTokenEstimator(estimate aggregate.TokenEstimator) Option {
	return func(e *Engine) { e.estimate = estimate }
}

// WithMaxParallel caps the number of concurrent per-document searches. Zero
// leaves the fan-out unbounded.
func WithMaxParallel(n int) Option {
	return func(e *Engine) { e.maxParallel = n }
}

func New(handle *embedder.Handle, resolve SearcherResolver, opts ...Option) (*Engine, error) {
	if handle == nil {
		return nil, errMissingHandle
	}
	if resolve == nil {
		return nil, errMissingResolver
	}
	engine := &Engine{handle: handle, resolve: resolve}
	for _, opt := range opts {
		opt(engine)
	}
	return engine, nil
}

// Search embeds the query, fans it out across every ready document's
// collection in parallel, and reduces the merged candidates according to the
// search mode. Zero hits is a valid result carrying mode-widening guidance,
// never an error.
func (e *Engine) Search(
	ctx context.Context,
	docs []knowledge.Document,
	query string,
	opts knowledge.SearchOptions,
) (*knowledge.SearchResult, error) {
	ready := readyDocuments(docs)
	if len(ready) == 0 {
		return &knowledge.SearchResult{Suggestion: suggestionFor(opts.Mode)}, nil
	}
	ctx, span := tracer.Start(ctx, "retriever.search", trace.WithAttributes(
		attribute.String("mode", string(opts.Mode)),
		attribute.Int("documents", len(ready)),
	))
	defer span.End()
	start := time.Now()

	threshold, topK := modeParams(opts.Mode, opts.RelevanceThreshold, opts.TopK)
	vector, err := e.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	raw, err := e.fanOut(ctx, ready, vector, vectordb.SearchOptions{
		TopK:     fetchK(opts.Mode, topK, opts.EnsureCoverage),
		MinScore: threshold,
	})
	if err != nil {
		return nil, err
	}
	hits := e.reduce(raw, ready, topK, opts)
	result := e.aggregateHits(ctx, hits, len(raw), opts)
	result.QueryTimeMs = time.Since(start).Milliseconds()
	if result.TotalHits == 0 {
		result.Suggestion = suggestionFor(opts.Mode)
		knowledge.RecordRetrievalEmpty(ctx, string(opts.Mode))
	}
	knowledge.RecordQueryLatency(ctx, string(opts.Mode), time.Since(start))
	return result, nil
}

func (e *Engine) embedQuery(ctx context.Context, query string) ([]float32, error) {
	ctx, span := tracer.Start(ctx, "retriever.embed_query")
	defer span.End()
	orchestrator := e.handle.Load()
	if orchestrator == nil {
		return nil, errNoEmbedder
	}
	vector, err := orchestrator.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return vector, nil
}

// fanOut launches one search per document and merges the results into a
// single score-sorted candidate list. Each goroutine writes only its own
// slot, so no locking is needed.
func (e *Engine) fanOut(
	ctx context.Context,
	docs []knowledge.Document,
	vector []float32,
	opts vectordb.SearchOptions,
) ([]knowledge.EnhancedHit, error) {
	ctx, span := tracer.Start(ctx, "retriever.fan_out")
	defer span.End()
	perDoc := make([][]knowledge.EnhancedHit, len(docs))
	group, groupCtx := errgroup.WithContext(ctx)
	if e.maxParallel > 0 {
		group.SetLimit(e.maxParallel)
	}
	for i := range docs {
		group.Go(func() error {
			doc := docs[i]
			searcher, err := e.resolve(groupCtx, doc.CollectionID())
			if err != nil {
				return fmt.Errorf("collection %q: %w", doc.CollectionID(), err)
			}
			matches, err := searcher.Search(groupCtx, vector, opts)
			if err != nil {
				return fmt.Errorf("search document %q: %w", doc.ID, err)
			}
			perDoc[i] = toHits(doc, matches)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	merged := make([]knowledge.EnhancedHit, 0)
	for i := range perDoc {
		merged = append(merged, perDoc[i]...)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Score > merged[j].Score
	})
	return merged, nil
}

func (e *Engine) reduce(
	hits []knowledge.EnhancedHit,
	docs []knowledge.Document,
	topK int,
	opts knowledge.SearchOptions,
) []knowledge.EnhancedHit {
	switch {
	case opts.Mode == knowledge.ModeOverview:
		return sampleOverview(hits, pagesByDocument(docs), topK)
	case opts.EnsureCoverage && len(docs) > 1:
		return balanceCoverage(hits, len(docs), topK, opts.PerDocumentK)
	default:
		return reduceTopK(hits, topK)
	}
}

// aggregateHits runs the enhanced pipeline over the reduced hits. Without a
// configured Aggregator the query falls back to plain mode.
func (e *Engine) aggregateHits(
	ctx context.Context,
	hits []knowledge.EnhancedHit,
	rawCount int,
	opts knowledge.SearchOptions,
) *knowledge.SearchResult {
	ctx, span := tracer.Start(ctx, "retriever.aggregate")
	defer span.End()
	result := &knowledge.SearchResult{Hits: hits, TotalHits: len(hits)}
	if e.aggregator == nil {
		if wantsAggregation(opts) {
			logger.FromContext(ctx).Debug("aggregator unavailable, serving plain results")
		}
		result.Context = e.assemble(result, opts)
		return result
	}
	if opts.AggregateAdjacent {
		maxGap := e.aggregator.MaxGap
		if maxGap <= 0 {
			maxGap = aggregate.DefaultMaxGap
		}
		result.Hits = aggregate.MergeAdjacent(result.Hits, maxGap)
	}
	if opts.IncludeContext && e.aggregator.Fetcher != nil {
		contextSize := opts.ContextSize
		if contextSize <= 0 {
			contextSize = knowledge.DefaultContextSize
		}
		result.Hits = aggregate.WidenContext(ctx, result.Hits, e.aggregator.Fetcher, contextSize)
	}
	result.Hits = aggregate.AttachSections(result.Hits, e.aggregator.Sections)
	if opts.GroupBySection {
		result.Sections = aggregate.GroupBySection(result.Hits)
	}
	result.TotalHits = len(result.Hits)
	result.Aggregation = &knowledge.AggregationStats{
		RawHits:    rawCount,
		MergedHits: len(result.Hits),
		Sections:   len(result.Sections),
	}
	result.Context = e.assemble(result, opts)
	return result
}

func (e *Engine) assemble(result *knowledge.SearchResult, opts knowledge.SearchOptions) string {
	maxTokens := opts.MaxContextTokens
	if maxTokens <= 0 {
		maxTokens = knowledge.DefaultMaxContextTokens
	}
	if len(result.Sections) > 0 {
		return aggregate.AssembleSectionContext(result.Sections, maxTokens, e.estimate)
	}
	return aggregate.AssembleContext(result.Hits, maxTokens, e.estimate)
}

func wantsAggregation(opts knowledge.SearchOptions) bool {
	return opts.AggregateAdjacent || opts.GroupBySection || opts.IncludeContext
}

func readyDocuments(docs []knowledge.Document) []knowledge.Document {
	ready := make([]knowledge.Document, 0, len(docs))
	for _, doc := range docs {
		if doc.Ready() {
			ready = append(ready, doc)
		}
	}
	return ready
}

func pagesByDocument(docs []knowledge.Document) map[string]int {
	pages := make(map[string]int, len(docs))
	for _, doc := range docs {
		pages[doc.ID] = doc.TotalPages
	}
	return pages
}

func toHits(doc knowledge.Document, matches []vectordb.Match) []knowledge.EnhancedHit {
	hits := make([]knowledge.EnhancedHit, 0, len(matches))
	for _, match := range matches {
		hits = append(hits, knowledge.EnhancedHit{Hit: knowledge.Hit{
			DocumentID:   doc.ID,
			DocumentName: doc.Name,
			ChunkIndex:   chunkIndexOf(match.Metadata),
			Content:      match.Text,
			Score:        match.Score,
			Metadata:     match.Metadata,
		}})
	}
	return hits
}

func chunkIndexOf(metadata map[string]any) int {
	switch v := metadata["chunk_index"].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}

func suggestionFor(mode knowledge.SearchMode) string {
	switch mode {
	case knowledge.ModePrecise:
		return "no matching passages found; retry with mode \"broad\" or \"overview\" to widen the search"
	case knowledge.ModeBroad:
		return "no matching passages found; try mode \"overview\" or rephrase the query"
	default:
		return "no matching passages found; rephrase the query or verify documents finished processing"
	}
}

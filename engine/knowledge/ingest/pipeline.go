package ingest

import (
	"context"
	"fmt"

	"github.com/docscope/docscope/engine/knowledge"
	"github.com/docscope/docscope/engine/knowledge/chunk"
	"github.com/docscope/docscope/engine/knowledge/embedder"
	"github.com/docscope/docscope/engine/knowledge/vectordb"
	"github.com/docscope/docscope/pkg/logger"
)

// Upserter is the write side of a vector collection.
type Upserter interface {
	Upsert(ctx context.Context, records []vectordb.Record) error
	Delete(ctx context.Context, filter vectordb.Filter) error
}

// StoreResolver maps a document's collection ID to its store.
type StoreResolver func(ctx context.Context, collectionID string) (Upserter, error)

var (
	errMissingHandle   = fmt.Errorf("ingest: embedder handle is required")
	errMissingResolver = fmt.Errorf("ingest: store resolver is required")
	errNoEmbedder      = fmt.Errorf("ingest: no embedding provider configured")
)

// Pipeline turns raw document text into embedded, persisted chunks.
type Pipeline struct {
	handle  *embedder.Handle
	resolve StoreResolver
}

func New(handle *embedder.Handle, resolve StoreResolver) (*Pipeline, error) {
	if handle == nil {
		return nil, errMissingHandle
	}
	if resolve == nil {
		return nil, errMissingResolver
	}
	return &Pipeline{handle: handle, resolve: resolve}, nil
}

// IngestText chunks text with a profile inferred from the document name,
// embeds the chunks in batches and upserts them into the document's
// collection. Previously stored chunks for the document are replaced. The
// produced chunks are returned so callers can index their contents.
func (p *Pipeline) IngestText(
	ctx context.Context,
	doc knowledge.Document,
	text string,
) ([]chunk.Chunk, error) {
	profile := chunk.ProfileFor(doc.Name, []byte(text))
	chunks, err := chunk.Split(text, profile.Settings)
	if err != nil {
		return nil, fmt.Errorf("ingest document %q: %w", doc.ID, err)
	}
	return chunks, p.persist(ctx, doc, chunks)
}

// IngestPages is the page-aware variant. Chunks never span pages and carry
// their page number in metadata.
func (p *Pipeline) IngestPages(
	ctx context.Context,
	doc knowledge.Document,
	pages []chunk.PageContent,
	settings chunk.Settings,
) ([]chunk.Chunk, error) {
	chunks, err := chunk.SplitPages(pages, settings)
	if err != nil {
		return nil, fmt.Errorf("ingest document %q: %w", doc.ID, err)
	}
	return chunks, p.persist(ctx, doc, chunks)
}

func (p *Pipeline) persist(ctx context.Context, doc knowledge.Document, chunks []chunk.Chunk) error {
	store, err := p.resolve(ctx, doc.CollectionID())
	if err != nil {
		return fmt.Errorf("ingest document %q: %w", doc.ID, err)
	}
	if err := store.Delete(ctx, vectordb.Filter{
		Metadata: map[string]string{"document_id": doc.ID},
	}); err != nil {
		return fmt.Errorf("ingest document %q: clear previous chunks: %w", doc.ID, err)
	}
	if len(chunks) == 0 {
		logger.FromContext(ctx).Warn("document produced no chunks", "document_id", doc.ID)
		return nil
	}
	orchestrator := p.handle.Load()
	if orchestrator == nil {
		return errNoEmbedder
	}
	batchSize := orchestrator.BatchSize()
	for start := 0; start < len(chunks); start += batchSize {
		// Ingestion is long-running; honor cancellation between batches.
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("ingest document %q: %w", doc.ID, err)
		}
		end := start + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		if err := p.persistBatch(ctx, orchestrator, store, doc, chunks[start:end]); err != nil {
			return err
		}
	}
	logger.FromContext(ctx).Info("document ingested",
		"document_id", doc.ID, "chunks", len(chunks))
	knowledge.RecordIngestChunks(ctx, doc.ID, len(chunks))
	return nil
}

func (p *Pipeline) persistBatch(
	ctx context.Context,
	orchestrator *embedder.Orchestrator,
	store Upserter,
	doc knowledge.Document,
	batch []chunk.Chunk,
) error {
	texts := make([]string, len(batch))
	for i := range batch {
		texts[i] = batch[i].Content
	}
	vectors, err := orchestrator.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("ingest document %q: %w", doc.ID, err)
	}
	records := make([]vectordb.Record, len(batch))
	for i := range batch {
		records[i] = toRecord(doc, &batch[i], vectors[i])
	}
	if err := store.Upsert(ctx, records); err != nil {
		return fmt.Errorf("ingest document %q: %w", doc.ID, err)
	}
	return nil
}

func toRecord(doc knowledge.Document, c *chunk.Chunk, vector []float32) vectordb.Record {
	metadata := map[string]any{
		"document_id": doc.ID,
		"chunk_index": c.Index,
		"start_char":  c.Metadata.StartChar,
		"end_char":    c.Metadata.EndChar,
	}
	if c.Metadata.PageNumber > 0 {
		metadata["page_number"] = c.Metadata.PageNumber
	}
	for k, v := range c.Metadata.Extra {
		if _, reserved := metadata[k]; !reserved {
			metadata[k] = v
		}
	}
	return vectordb.Record{
		ID:        fmt.Sprintf("%s-%d", doc.ID, c.Index),
		Text:      c.Content,
		Embedding: vector,
		Metadata:  metadata,
	}
}

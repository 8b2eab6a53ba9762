package aggregate

import (
	"context"
	"strings"

	"github.com/docscope/docscope/engine/knowledge"
	"github.com/docscope/docscope/pkg/logger"
)

// ChunkFetcher retrieves stored chunk contents by index range. It is an
// external collaborator contract; [from, to] is inclusive and fetchers skip
// indices that do not exist.
type ChunkFetcher interface {
	FetchRange(ctx context.Context, documentID string, from, to int) ([]string, error)
}

// SectionResolver maps a chunk back to the document section containing it.
// Implementations come from the structure-extraction collaborator.
type SectionResolver interface {
	SectionFor(documentID string, chunkIndex, pageNumber int) *knowledge.Section
}

// WidenContext attaches up to contextSize neighboring chunks on each side of
// every hit as ContextBefore/ContextAfter. Hit content and scores are left
// untouched. Fetch failures degrade to hits without context.
func WidenContext(
	ctx context.Context,
	hits []knowledge.EnhancedHit,
	fetcher ChunkFetcher,
	contextSize int,
) []knowledge.EnhancedHit {
	if fetcher == nil || contextSize <= 0 {
		return hits
	}
	log := logger.FromContext(ctx)
	for i := range hits {
		indices := hits[i].Indices()
		lo := indices[0]
		hi := indices[len(indices)-1]
		if lo > 0 {
			from := lo - contextSize
			if from < 0 {
				from = 0
			}
			before, err := fetcher.FetchRange(ctx, hits[i].DocumentID, from, lo-1)
			if err != nil {
				log.Debug("context widening skipped", "document_id", hits[i].DocumentID, "error", err)
			} else {
				hits[i].ContextBefore = strings.Join(before, "\n\n")
			}
		}
		after, err := fetcher.FetchRange(ctx, hits[i].DocumentID, hi+1, hi+contextSize)
		if err != nil {
			log.Debug("context widening skipped", "document_id", hits[i].DocumentID, "error", err)
			continue
		}
		hits[i].ContextAfter = strings.Join(after, "\n\n")
	}
	return hits
}

// AttachSections labels each hit with its section, when the resolver knows
// one.
func AttachSections(hits []knowledge.EnhancedHit, resolver SectionResolver) []knowledge.EnhancedHit {
	if resolver == nil {
		return hits
	}
	for i := range hits {
		if hits[i].Section != nil {
			continue
		}
		hits[i].Section = resolver.SectionFor(
			hits[i].DocumentID,
			hits[i].ChunkIndex,
			pageNumberOf(&hits[i]),
		)
	}
	return hits
}

func pageNumberOf(hit *knowledge.EnhancedHit) int {
	if hit.Metadata == nil {
		return 0
	}
	switch v := hit.Metadata["page_number"].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}

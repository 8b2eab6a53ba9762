package retriever

import (
	"math"
	"sort"

	"github.com/docscope/docscope/engine/knowledge"
)

const (
	topBand    = 0.33
	bottomBand = 0.67

	overviewTopPerDoc    = 2
	overviewMiddlePerDoc = 2
	overviewBottomPerDoc = 1
)

type hitKey struct {
	documentID string
	chunkIndex int
}

func keyOf(hit *knowledge.EnhancedHit) hitKey {
	return hitKey{documentID: hit.DocumentID, chunkIndex: hit.ChunkIndex}
}

// reduceTopK is the default reduction: the hits arrive score-sorted and the
// top topK survive.
func reduceTopK(hits []knowledge.EnhancedHit, topK int) []knowledge.EnhancedHit {
	if len(hits) <= topK {
		return hits
	}
	return hits[:topK]
}

// sampleOverview spreads the result set across the page span of every
// document. Each hit is classified top, middle or bottom by its page position
// within its own document; per document up to 2 top, 2 middle and 1 bottom
// hits survive. Small documents naturally yield fewer. The sampled pool is
// re-sorted by score and capped at topK.
func sampleOverview(
	hits []knowledge.EnhancedHit,
	pages map[string]int,
	topK int,
) []knowledge.EnhancedHit {
	type bands struct {
		top    []knowledge.EnhancedHit
		middle []knowledge.EnhancedHit
		bottom []knowledge.EnhancedHit
	}
	byDoc := make(map[string]*bands)
	order := make([]string, 0)
	for i := range hits {
		docID := hits[i].DocumentID
		b, ok := byDoc[docID]
		if !ok {
			b = &bands{}
			byDoc[docID] = b
			order = append(order, docID)
		}
		switch classifyPage(pageOf(&hits[i]), pages[docID]) {
		case bandTop:
			b.top = append(b.top, hits[i])
		case bandMiddle:
			b.middle = append(b.middle, hits[i])
		default:
			b.bottom = append(b.bottom, hits[i])
		}
	}
	sampled := make([]knowledge.EnhancedHit, 0, len(hits))
	for _, docID := range order {
		b := byDoc[docID]
		sampled = append(sampled, take(b.top, overviewTopPerDoc)...)
		sampled = append(sampled, take(b.middle, overviewMiddlePerDoc)...)
		sampled = append(sampled, take(b.bottom, overviewBottomPerDoc)...)
	}
	sort.SliceStable(sampled, func(i, j int) bool {
		return sampled[i].Score > sampled[j].Score
	})
	return reduceTopK(sampled, topK)
}

type band int

const (
	bandTop band = iota
	bandMiddle
	bandBottom
)

func classifyPage(pageNumber, totalPages int) band {
	if pageNumber <= 0 || totalPages <= 0 {
		return bandTop
	}
	position := float64(pageNumber) / float64(totalPages)
	switch {
	case position <= topBand:
		return bandTop
	case position <= bottomBand:
		return bandMiddle
	default:
		return bandBottom
	}
}

// balanceCoverage guarantees each document a floor of perDocumentK hits
// before the rest of the budget goes to the global score order. Candidates
// arrive score-sorted; selection is deduplicated by (documentID, chunkIndex).
func balanceCoverage(
	hits []knowledge.EnhancedHit,
	docCount, topK, perDocumentK int,
) []knowledge.EnhancedHit {
	if docCount <= 1 || len(hits) == 0 {
		return reduceTopK(hits, topK)
	}
	if perDocumentK <= 0 {
		perDocumentK = defaultPerDocumentK(topK, docCount)
	}
	selected := make([]knowledge.EnhancedHit, 0, topK)
	seen := make(map[hitKey]struct{}, topK)
	perDoc := make(map[string]int, docCount)
	for i := range hits {
		docID := hits[i].DocumentID
		if perDoc[docID] >= perDocumentK {
			continue
		}
		key := keyOf(&hits[i])
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		perDoc[docID]++
		selected = append(selected, hits[i])
	}
	for i := range hits {
		if len(selected) >= topK {
			break
		}
		key := keyOf(&hits[i])
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		selected = append(selected, hits[i])
	}
	sort.SliceStable(selected, func(i, j int) bool {
		return selected[i].Score > selected[j].Score
	})
	return reduceTopK(selected, topK)
}

func defaultPerDocumentK(topK, docCount int) int {
	fair := int(math.Ceil(float64(topK) / float64(docCount)))
	if fair > 2 {
		return 2
	}
	if fair < 1 {
		return 1
	}
	return fair
}

func take(hits []knowledge.EnhancedHit, n int) []knowledge.EnhancedHit {
	if len(hits) <= n {
		return hits
	}
	return hits[:n]
}

func pageOf(hit *knowledge.EnhancedHit) int {
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

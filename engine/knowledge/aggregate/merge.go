package aggregate

import (
	"sort"

	"github.com/docscope/docscope/engine/knowledge"
)

// DefaultMaxGap tolerates one skipped or filtered chunk between two hits.
// It is a tunable heuristic, not a load-bearing invariant.
const DefaultMaxGap = 1

// MergeAdjacent collapses hits whose chunk indices are adjacent (within
// maxGap+1) in the same document into single coherent passages. Merging is
// keyed on original chunk indices, so re-running it over an already merged
// hit list yields the same grouping.
func MergeAdjacent(hits []knowledge.EnhancedHit, maxGap int) []knowledge.EnhancedHit {
	if len(hits) <= 1 {
		return hits
	}
	if maxGap < 0 {
		maxGap = DefaultMaxGap
	}
	byDoc := make(map[string][]knowledge.EnhancedHit)
	order := make([]string, 0)
	for i := range hits {
		docID := hits[i].DocumentID
		if _, ok := byDoc[docID]; !ok {
			order = append(order, docID)
		}
		byDoc[docID] = append(byDoc[docID], hits[i])
	}
	merged := make([]knowledge.EnhancedHit, 0, len(hits))
	for _, docID := range order {
		merged = append(merged, mergeDocument(byDoc[docID], maxGap)...)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Score > merged[j].Score
	})
	return merged
}

func mergeDocument(hits []knowledge.EnhancedHit, maxGap int) []knowledge.EnhancedHit {
	sort.SliceStable(hits, func(i, j int) bool {
		return minIndex(&hits[i]) < minIndex(&hits[j])
	})
	out := make([]knowledge.EnhancedHit, 0, len(hits))
	var current *knowledge.EnhancedHit
	var lastAbsorbed int
	for i := range hits {
		hit := hits[i]
		if current == nil {
			copied := hit
			copied.AggregatedFrom = append([]int(nil), hit.Indices()...)
			current = &copied
			lastAbsorbed = maxInt(copied.AggregatedFrom)
			continue
		}
		if minIndex(&hit) <= lastAbsorbed+maxGap+1 {
			absorb(current, &hit)
			if last := maxInt(current.AggregatedFrom); last > lastAbsorbed {
				lastAbsorbed = last
			}
			continue
		}
		out = append(out, *current)
		copied := hit
		copied.AggregatedFrom = append([]int(nil), hit.Indices()...)
		current = &copied
		lastAbsorbed = maxInt(copied.AggregatedFrom)
	}
	if current != nil {
		out = append(out, *current)
	}
	return out
}

// absorb folds hit into group: contents joined with a blank line, score is
// the max of the two, and the shallower section wins when they differ.
func absorb(group, hit *knowledge.EnhancedHit) {
	indices := mergeIndices(group.AggregatedFrom, hit.Indices())
	if hit.Content != "" {
		if group.Content != "" {
			group.Content += "\n\n" + hit.Content
		} else {
			group.Content = hit.Content
		}
	}
	if hit.Score > group.Score {
		group.Score = hit.Score
	}
	if group.Section == nil {
		group.Section = hit.Section
	} else if hit.Section != nil && hit.Section.Level < group.Section.Level {
		group.Section = hit.Section
	}
	group.AggregatedFrom = indices
	group.ChunkIndex = indices[0]
}

func mergeIndices(a, b []int) []int {
	seen := make(map[int]struct{}, len(a)+len(b))
	out := make([]int, 0, len(a)+len(b))
	for _, idx := range a {
		if _, ok := seen[idx]; !ok {
			seen[idx] = struct{}{}
			out = append(out, idx)
		}
	}
	for _, idx := range b {
		if _, ok := seen[idx]; !ok {
			seen[idx] = struct{}{}
			out = append(out, idx)
		}
	}
	sort.Ints(out)
	return out
}

func minIndex(hit *knowledge.EnhancedHit) int {
	indices := hit.Indices()
	min := indices[0]
	for _, idx := range indices[1:] {
		if idx < min {
			min = idx
		}
	}
	return min
}

func maxInt(values []int) int {
	max := values[0]
	for _, v := range values[1:] {
		if v > max {
			max = v
		}
	}
	return max
}

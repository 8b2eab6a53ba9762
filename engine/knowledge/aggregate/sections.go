package aggregate

import (
	"sort"

	"github.com/docscope/docscope/engine/knowledge"
)

// UnknownSectionKey buckets hits with no resolved section metadata.
const UnknownSectionKey = "unknown"

// GroupBySection buckets hits by (documentID, section path). Groups are
// ordered by their best hit's score.
func GroupBySection(hits []knowledge.EnhancedHit) []knowledge.SectionGroup {
	type key struct {
		docID string
		path  string
	}
	index := make(map[key]int)
	groups := make([]knowledge.SectionGroup, 0)
	for i := range hits {
		path := UnknownSectionKey
		if hits[i].Section != nil {
			path = hits[i].Section.Path
		}
		k := key{docID: hits[i].DocumentID, path: path}
		at, ok := index[k]
		if !ok {
			at = len(groups)
			index[k] = at
			groups = append(groups, knowledge.SectionGroup{
				DocumentID: hits[i].DocumentID,
				Section:    hits[i].Section,
			})
		}
		groups[at].Hits = append(groups[at].Hits, hits[i])
	}
	sort.SliceStable(groups, func(i, j int) bool {
		return bestScore(groups[i].Hits) > bestScore(groups[j].Hits)
	})
	return groups
}

// SummarizeSections collapses each group into one coarse relevance record,
// sorted by average score. Preview is the leading text of the group's best
// hit.
func SummarizeSections(groups []knowledge.SectionGroup) []knowledge.SectionSummary {
	summaries := make([]knowledge.SectionSummary, 0, len(groups))
	for i := range groups {
		group := groups[i]
		if len(group.Hits) == 0 {
			continue
		}
		summary := knowledge.SectionSummary{
			DocumentID:    group.DocumentID,
			AverageScore:  averageScore(group.Hits),
			MatchedChunks: matchedChunks(group.Hits),
			Preview:       preview(bestHit(group.Hits).Content),
		}
		if group.Section != nil {
			summary.SectionID = group.Section.ID
			summary.Title = group.Section.Title
			summary.Path = group.Section.Path
		} else {
			summary.Path = UnknownSectionKey
		}
		summaries = append(summaries, summary)
	}
	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].AverageScore > summaries[j].AverageScore
	})
	return summaries
}

const previewRunes = 200

func preview(content string) string {
	runes := []rune(content)
	if len(runes) <= previewRunes {
		return content
	}
	return string(runes[:previewRunes]) + "…"
}

func bestScore(hits []knowledge.EnhancedHit) float64 {
	best := 0.0
	for i := range hits {
		if hits[i].Score > best {
			best = hits[i].Score
		}
	}
	return best
}

func bestHit(hits []knowledge.EnhancedHit) *knowledge.EnhancedHit {
	best := &hits[0]
	for i := range hits {
		if hits[i].Score > best.Score {
			best = &hits[i]
		}
	}
	return best
}

func averageScore(hits []knowledge.EnhancedHit) float64 {
	total := 0.0
	for i := range hits {
		total += hits[i].Score
	}
	return total / float64(len(hits))
}

func matchedChunks(hits []knowledge.EnhancedHit) int {
	total := 0
	for i := range hits {
		total += len(hits[i].Indices())
	}
	return total
}

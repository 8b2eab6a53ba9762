package retriever

import "github.com/docscope/docscope/engine/knowledge"

const (
	overviewThreshold = 0.2

	preciseTopKCap    = 5
	broadTopKFloor    = 10
	overviewTopKFloor = 8

	overFetchFactor         = 2
	overviewOverFetchFactor = 3
)

// modeParams resolves the effective relevance threshold and topK from the
// search mode. Precise tightens both knobs, broad and overview loosen them.
func modeParams(mode knowledge.SearchMode, baseThreshold float64, baseTopK int) (float64, int) {
	if baseThreshold <= 0 {
		baseThreshold = knowledge.DefaultThreshold
	}
	if baseTopK <= 0 {
		baseTopK = knowledge.DefaultTopK
	}
	switch mode {
	case knowledge.ModePrecise:
		threshold := baseThreshold
		if threshold < 0.5 {
			threshold = 0.5
		}
		topK := baseTopK
		if topK > preciseTopKCap {
			topK = preciseTopKCap
		}
		return threshold, topK
	case knowledge.ModeBroad:
		threshold := baseThreshold
		if threshold > 0.3 {
			threshold = 0.3
		}
		topK := baseTopK
		if topK < broadTopKFloor {
			topK = broadTopKFloor
		}
		return threshold, topK
	case knowledge.ModeOverview:
		topK := baseTopK
		if topK < overviewTopKFloor {
			topK = overviewTopKFloor
		}
		return overviewThreshold, topK
	default:
		return baseThreshold, baseTopK
	}
}

// fetchK over-fetches raw candidates per document so that filtering,
// aggregation and balancing have material to work with.
func fetchK(mode knowledge.SearchMode, topK int, ensureCoverage bool) int {
	if mode == knowledge.ModeOverview || ensureCoverage {
		return topK * overviewOverFetchFactor
	}
	return topK * overFetchFactor
}

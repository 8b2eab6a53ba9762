package chunk

import (
	"math"
	"unicode"
)

// Per-rune weights for the token estimate. CJK code points carry far more
// information per character than Latin script, so they weigh heavier.
const (
	cjkTokenWeight   = 1.5
	otherTokenWeight = 0.25
)

var cjkRanges = []*unicode.RangeTable{
	unicode.Han,
	unicode.Hiragana,
	unicode.Katakana,
	unicode.Hangul,
}

// EstimateTokens approximates the token count of text with a fixed
// per-character heuristic. It is not a tokenizer; callers budgeting context
// must treat the result as an approximation.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	total := 0.0
	for _, r := range text {
		if unicode.IsOneOf(cjkRanges, r) {
			total += cjkTokenWeight
		} else {
			total += otherTokenWeight
		}
	}
	return int(math.Ceil(total))
}

package aggregate

import (
	"fmt"
	"strings"

	"github.com/docscope/docscope/engine/knowledge"
	"github.com/docscope/docscope/engine/knowledge/chunk"
)

// entryDelimiter separates context entries in the assembled prompt text.
const entryDelimiter = "\n\n---\n\n"

// TokenEstimator approximates the token cost of a piece of text.
type TokenEstimator func(text string) int

// AssembleContext renders hits into a token-budgeted context string for
// prompt injection. Hits are consumed in the order given; assembly stops
// before the first entry that would cross maxTokens. Entries are never
// truncated mid-entry.
func AssembleContext(hits []knowledge.EnhancedHit, maxTokens int, estimate TokenEstimator) string {
	if len(hits) == 0 {
		return ""
	}
	if estimate == nil {
		estimate = chunk.EstimateTokens
	}
	if maxTokens <= 0 {
		maxTokens = knowledge.DefaultMaxContextTokens
	}
	var builder strings.Builder
	used := 0
	for i := range hits {
		entry := renderEntry(&hits[i])
		cost := estimate(entry)
		if builder.Len() > 0 {
			cost += estimate(entryDelimiter)
		}
		if used+cost > maxTokens {
			break
		}
		if builder.Len() > 0 {
			builder.WriteString(entryDelimiter)
		}
		builder.WriteString(entry)
		used += cost
	}
	return builder.String()
}

// AssembleSectionContext renders section groups, walking groups in priority
// order and their hits by score, under one shared token budget.
func AssembleSectionContext(
	groups []knowledge.SectionGroup,
	maxTokens int,
	estimate TokenEstimator,
) string {
	if len(groups) == 0 {
		return ""
	}
	if estimate == nil {
		estimate = chunk.EstimateTokens
	}
	if maxTokens <= 0 {
		maxTokens = knowledge.DefaultMaxContextTokens
	}
	var builder strings.Builder
	used := 0
	for gi := range groups {
		group := &groups[gi]
		header := sectionHeader(group)
		headerCost := estimate(header)
		if builder.Len() > 0 {
			headerCost += estimate(entryDelimiter)
		}
		if used+headerCost > maxTokens {
			break
		}
		wroteHeader := false
		for hi := range group.Hits {
			entry := renderEntry(&group.Hits[hi])
			cost := estimate(entry) + estimate("\n\n")
			if !wroteHeader {
				cost += headerCost
			}
			if used+cost > maxTokens {
				break
			}
			if !wroteHeader {
				if builder.Len() > 0 {
					builder.WriteString(entryDelimiter)
				}
				builder.WriteString(header)
				wroteHeader = true
			}
			builder.WriteString("\n\n")
			builder.WriteString(entry)
			used += cost
		}
	}
	return builder.String()
}

// renderEntry wraps a hit with a provenance header and its widened context.
func renderEntry(hit *knowledge.EnhancedHit) string {
	var builder strings.Builder
	builder.WriteString(provenanceHeader(hit))
	builder.WriteString("\n")
	if hit.ContextBefore != "" {
		builder.WriteString(hit.ContextBefore)
		builder.WriteString("\n\n")
	}
	builder.WriteString(hit.Content)
	if hit.ContextAfter != "" {
		builder.WriteString("\n\n")
		builder.WriteString(hit.ContextAfter)
	}
	return builder.String()
}

func provenanceHeader(hit *knowledge.EnhancedHit) string {
	name := hit.DocumentName
	if name == "" {
		name = hit.DocumentID
	}
	if hit.Section != nil && hit.Section.Title != "" {
		return fmt.Sprintf("[%s, %s]", name, hit.Section.Title)
	}
	if page := pageNumberOf(hit); page > 0 {
		return fmt.Sprintf("[%s, page %d]", name, page)
	}
	return fmt.Sprintf("[%s]", name)
}

func sectionHeader(group *knowledge.SectionGroup) string {
	if group.Section != nil && group.Section.Title != "" {
		return fmt.Sprintf("## %s (%s)", group.Section.Title, group.Section.Path)
	}
	return fmt.Sprintf("## %s", group.DocumentID)
}

package aggregate_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docscope/docscope/engine/knowledge"
	"github.com/docscope/docscope/engine/knowledge/aggregate"
	"github.com/docscope/docscope/engine/knowledge/chunk"
)

func TestAssembleContext(t *testing.T) {
	named := func(docID, name string, index int, content string, score float64) knowledge.EnhancedHit {
		h := hit(docID, index, content, score)
		h.DocumentName = name
		return h
	}
	t.Run("ShouldRenderProvenanceHeaders", func(t *testing.T) {
		hits := []knowledge.EnhancedHit{
			named("doc-1", "manual.pdf", 0, "alpha", 0.9),
		}
		hits[0].Metadata = map[string]any{"page_number": 3}
		text := aggregate.AssembleContext(hits, 1000, nil)
		assert.Contains(t, text, "[manual.pdf, page 3]")
		assert.Contains(t, text, "alpha")
	})
	t.Run("ShouldSeparateEntriesWithDelimiter", func(t *testing.T) {
		hits := []knowledge.EnhancedHit{
			named("doc-1", "a.md", 0, "first", 0.9),
			named("doc-2", "b.md", 0, "second", 0.8),
		}
		text := aggregate.AssembleContext(hits, 1000, nil)
		parts := strings.Split(text, "\n\n---\n\n")
		require.Len(t, parts, 2)
		assert.Contains(t, parts[0], "first")
		assert.Contains(t, parts[1], "second")
	})
	t.Run("ShouldStopBeforeBudget", func(t *testing.T) {
		hits := []knowledge.EnhancedHit{
			named("doc-1", "a.md", 0, strings.Repeat("word ", 40), 0.9),
			named("doc-2", "b.md", 0, strings.Repeat("word ", 40), 0.8),
			named("doc-3", "c.md", 0, strings.Repeat("word ", 40), 0.7),
		}
		full := aggregate.AssembleContext(hits, 100000, nil)
		fullTokens := chunk.EstimateTokens(full)
		budget := fullTokens - 1
		text := aggregate.AssembleContext(hits, budget, nil)
		assert.LessOrEqual(t, chunk.EstimateTokens(text), budget)
		assert.Contains(t, text, "a.md")
		assert.NotContains(t, text, "c.md")
	})
	t.Run("ShouldNeverTruncateMidEntry", func(t *testing.T) {
		content := strings.Repeat("word ", 40)
		hits := []knowledge.EnhancedHit{
			named("doc-1", "a.md", 0, content, 0.9),
			named("doc-2", "b.md", 0, content, 0.8),
		}
		for budget := 1; budget <= 120; budget += 7 {
			text := aggregate.AssembleContext(hits, budget, nil)
			if strings.Contains(text, "a.md") {
				assert.Contains(t, text, strings.TrimSpace(content))
			}
			if strings.Contains(text, "b.md") {
				parts := strings.Split(text, "\n\n---\n\n")
				require.Len(t, parts, 2)
			}
		}
	})
	t.Run("ShouldIncludeWidenedContext", func(t *testing.T) {
		h := named("doc-1", "a.md", 1, "middle", 0.9)
		h.ContextBefore = "before"
		h.ContextAfter = "after"
		text := aggregate.AssembleContext([]knowledge.EnhancedHit{h}, 1000, nil)
		assert.Equal(t, "[a.md]\nbefore\n\nmiddle\n\nafter", text)
	})
	t.Run("ShouldPreferSectionTitleInHeader", func(t *testing.T) {
		h := named("doc-1", "a.md", 0, "body", 0.9)
		h.Section = &knowledge.Section{Title: "Limits of Liability"}
		text := aggregate.AssembleContext([]knowledge.EnhancedHit{h}, 1000, nil)
		assert.True(t, strings.HasPrefix(text, "[a.md, Limits of Liability]\n"))
	})
	t.Run("ShouldReturnEmptyForNoHits", func(t *testing.T) {
		assert.Empty(t, aggregate.AssembleContext(nil, 1000, nil))
	})
}

func TestAssembleSectionContext(t *testing.T) {
	t.Run("ShouldRenderSectionHeadings", func(t *testing.T) {
		section := &knowledge.Section{Title: "Intro", Path: "1"}
		h := hit("doc-1", 0, "alpha", 0.9)
		h.Section = section
		groups := []knowledge.SectionGroup{{
			DocumentID: "doc-1",
			Section:    section,
			Hits:       []knowledge.EnhancedHit{h},
		}}
		text := aggregate.AssembleSectionContext(groups, 1000, nil)
		assert.True(t, strings.HasPrefix(text, "## Intro (1)"))
		assert.Contains(t, text, "alpha")
	})
	t.Run("ShouldStopBeforeBudget", func(t *testing.T) {
		groups := []knowledge.SectionGroup{
			{DocumentID: "doc-1", Hits: []knowledge.EnhancedHit{
				hit("doc-1", 0, strings.Repeat("word ", 40), 0.9),
			}},
			{DocumentID: "doc-2", Hits: []knowledge.EnhancedHit{
				hit("doc-2", 0, strings.Repeat("word ", 40), 0.8),
			}},
		}
		full := aggregate.AssembleSectionContext(groups, 100000, nil)
		budget := chunk.EstimateTokens(full) - 1
		text := aggregate.AssembleSectionContext(groups, budget, nil)
		assert.LessOrEqual(t, chunk.EstimateTokens(text), budget)
		assert.Contains(t, text, "## doc-1")
		assert.NotContains(t, text, "## doc-2")
	})
}

package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/docscope/docscope/engine/knowledge"
)

// QueryCmd runs a search across the corpus and prints the hits and the
// assembled context.
func QueryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query <text>",
		Short: "Search the corpus",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := resolveConfig(cmd)
			if err != nil {
				return err
			}
			service, _, err := buildService(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() { _ = service.Close(ctx) }()
			opts, err := searchOptions(cmd, cfg)
			if err != nil {
				return err
			}
			result, err := service.Search(ctx, args[0], opts)
			if err != nil {
				return err
			}
			printResult(cmd, result)
			return nil
		},
	}
	addSearchFlags(cmd)
	return cmd
}

func addSearchFlags(cmd *cobra.Command) {
	cmd.Flags().String("mode", "", "search mode (precise|broad|overview)")
	cmd.Flags().Int("top-k", 0, "maximum number of hits")
	cmd.Flags().Int("context-tokens", 0, "token budget for the assembled context")
	cmd.Flags().Bool("aggregate", true, "merge adjacent chunks")
	cmd.Flags().Bool("context", false, "attach neighboring chunks to each hit")
	cmd.Flags().Bool("coverage", false, "balance hits across documents")
}

func searchOptions(cmd *cobra.Command, cfg *Config) (knowledge.SearchOptions, error) {
	opts := knowledge.SearchOptions{
		Mode:             knowledge.SearchMode(cfg.Search.Mode),
		TopK:             cfg.Search.TopK,
		MaxContextTokens: cfg.Search.ContextTokens,
	}
	if mode, err := cmd.Flags().GetString("mode"); err == nil && mode != "" {
		opts.Mode = knowledge.SearchMode(mode)
	}
	switch opts.Mode {
	case knowledge.ModePrecise, knowledge.ModeBroad, knowledge.ModeOverview:
	default:
		return opts, fmt.Errorf("unknown search mode %q", opts.Mode)
	}
	if topK, err := cmd.Flags().GetInt("top-k"); err == nil && topK > 0 {
		opts.TopK = topK
	}
	if tokens, err := cmd.Flags().GetInt("context-tokens"); err == nil && tokens > 0 {
		opts.MaxContextTokens = tokens
	}
	opts.AggregateAdjacent, _ = cmd.Flags().GetBool("aggregate")
	opts.IncludeContext, _ = cmd.Flags().GetBool("context")
	opts.EnsureCoverage, _ = cmd.Flags().GetBool("coverage")
	return opts, nil
}

func printResult(cmd *cobra.Command, result *knowledge.SearchResult) {
	out := cmd.OutOrStdout()
	if result.TotalHits == 0 {
		fmt.Fprintln(out, "no results")
		if result.Suggestion != "" {
			fmt.Fprintln(out, result.Suggestion)
		}
		return
	}
	fmt.Fprintf(out, "%d hits in %dms\n\n", result.TotalHits, result.QueryTimeMs)
	for i := range result.Hits {
		hit := &result.Hits[i]
		fmt.Fprintf(out, "%2d. [%.3f] %s #%d\n", i+1, hit.Score, hit.DocumentName, hit.ChunkIndex)
		fmt.Fprintf(out, "    %s\n", firstLine(hit.Content))
	}
	if result.Context != "" {
		fmt.Fprintf(out, "\n--- context ---\n%s\n", result.Context)
	}
}

func firstLine(text string) string {
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		return text[:i]
	}
	return text
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// SectionsCmd runs a section-level search: which parts of which documents are
// relevant, without chunk noise.
func SectionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sections <text>",
		Short: "Search and summarize matching document sections",
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
			summaries, err := service.SearchSections(ctx, args[0], opts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(summaries) == 0 {
				fmt.Fprintln(out, "no results")
				return nil
			}
			for _, summary := range summaries {
				title := summary.Title
				if title == "" {
					title = summary.Path
				}
				fmt.Fprintf(out, "[%.3f] %s (%s, %d chunks)\n    %s\n",
					summary.AverageScore, title, summary.DocumentID,
					summary.MatchedChunks, firstLine(summary.Preview))
			}
			return nil
		},
	}
	addSearchFlags(cmd)
	return cmd
}

package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// ListCmd prints the corpus catalog.
func ListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List ingested documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, err := resolveConfig(cmd)
			if err != nil {
				return err
			}
			service, cat, err := buildService(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() { _ = service.Close(ctx) }()
			docs := service.Documents()
			if len(docs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "corpus is empty")
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tSTATUS\tCHUNKS")
			for _, doc := range docs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", doc.ID, doc.Name, doc.Status, len(cat.Chunks[doc.ID]))
			}
			return w.Flush()
		},
	}
}

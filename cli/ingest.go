package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/docscope/docscope/engine/knowledge"
	"github.com/docscope/docscope/pkg/logger"
)

// IngestCmd ingests files into the corpus. Re-ingesting a file with the same
// name replaces its chunks.
func IngestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <files...>",
		Short: "Chunk, embed and store documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
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
			log := logger.GetDefault()
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("read %q: %w", path, err)
				}
				name := filepath.Base(path)
				doc, ok := cat.byName(name)
				if !ok {
					doc = knowledge.Document{ID: uuid.NewString(), Name: name}
				}
				if err := service.IngestDocument(ctx, doc, string(data)); err != nil {
					return err
				}
				stored, _ := service.Document(doc.ID)
				cat.upsert(stored, service.ChunkContents(doc.ID))
				log.Info("ingested", "file", name, "chunks", len(cat.Chunks[doc.ID]))
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d chunks\n", name, len(cat.Chunks[doc.ID]))
			}
			return cat.save()
		},
	}
}

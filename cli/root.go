package cli

import (
	"github.com/spf13/cobra"

	"github.com/docscope/docscope/pkg/logger"
)

// RootCmd builds the docscope command tree.
func RootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "docscope",
		Short:         "Document retrieval pipeline: ingest documents, query them with vector search",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			logLevel, logJSON, logSource, err := logger.GetLoggerConfig(cmd)
			if err != nil {
				return err
			}
			logger.SetupLogger(logLevel, logJSON, logSource)
			return nil
		},
	}
	root.PersistentFlags().String("config", "", "path to docscope.yaml")
	root.PersistentFlags().String("corpus", "", "corpus directory (overrides config)")
	root.PersistentFlags().String("log-level", "info", "log level (debug|info|warn|error)")
	root.PersistentFlags().Bool("log-json", false, "log in JSON format")
	root.PersistentFlags().Bool("log-source", false, "log source positions")

	root.AddCommand(
		IngestCmd(),
		QueryCmd(),
		SectionsCmd(),
		ListCmd(),
	)
	return root
}

func resolveConfig(cmd *cobra.Command) (*Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	cfg, err := loadConfig(path)
	if err != nil {
		return nil, err
	}
	if corpus, err := cmd.Flags().GetString("corpus"); err == nil && corpus != "" {
		cfg.Corpus = corpus
	}
	return cfg, nil
}

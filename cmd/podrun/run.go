package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/podrun/podrun/internal/app"
	"github.com/podrun/podrun/internal/source"
)

func newRunCmd() *cobra.Command {
	var srcType string
	var srcPath string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full pipeline: document to script to podcast",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}
			st, err := source.ParseType(srcType)
			if err != nil {
				return err
			}

			ctx, stop := signalContext()
			defer stop()

			shutdown, err := setupObservability(ctx, cfg)
			if err != nil {
				return err
			}
			defer shutdown(ctx)

			a, err := app.New(cfg)
			if err != nil {
				return err
			}
			if err := a.Run(ctx, st, srcPath); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "podcast written to %s\n", cfg.Output.Podcast)
			return nil
		},
	}

	cmd.Flags().StringVar(&srcType, "source-type", "txt", "Source document type (pdf|url|txt|md)")
	cmd.Flags().StringVar(&srcPath, "source-path", "", "Path or URL of the source document")
	cmd.MarkFlagRequired("source-path")

	return cmd
}

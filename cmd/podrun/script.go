package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/podrun/podrun/internal/app"
	"github.com/podrun/podrun/internal/source"
)

func newScriptCmd() *cobra.Command {
	var srcType string
	var srcPath string

	cmd := &cobra.Command{
		Use:   "script",
		Short: "Draft the podcast script from a source document",
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
			if _, err := a.GenerateScript(ctx, st, srcPath); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "script written to %s\n", cfg.Output.Script)
			return nil
		},
	}

	cmd.Flags().StringVar(&srcType, "source-type", "txt", "Source document type (pdf|url|txt|md)")
	cmd.Flags().StringVar(&srcPath, "source-path", "", "Path or URL of the source document")
	cmd.MarkFlagRequired("source-path")

	return cmd
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/podrun/podrun/internal/app"
)

func newAudioCmd() *cobra.Command {
	var scriptPath string

	cmd := &cobra.Command{
		Use:   "audio",
		Short: "Synthesize the podcast from an existing script file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}
			if scriptPath == "" {
				scriptPath = cfg.Output.Script
			}
			script, err := os.ReadFile(scriptPath)
			if err != nil {
				return fmt.Errorf("read script: %w", err)
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
			if err := a.SynthesizeScript(ctx, string(script)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "podcast written to %s\n", cfg.Output.Podcast)
			return nil
		},
	}

	cmd.Flags().StringVar(&scriptPath, "script", "", "Script file to voice (default: the configured output.script path)")

	return cmd
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/podrun/podrun/internal/config"
	"github.com/podrun/podrun/internal/dotenv"
	"github.com/podrun/podrun/internal/observe"
)

var (
	cfgFile   string
	activeCfg *config.Config
)

// NewRootCmd builds the podrun command tree.
func NewRootCmd() *cobra.Command {
	var (
		language      string
		outputScript  string
		outputPodcast string
		statusFile    string
	)

	cmd := &cobra.Command{
		Use:           "podrun",
		Short:         "Generate a podcast from a document",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := dotenv.Load(); err != nil {
				return err
			}

			cfg, err := loadConfig(cfgFile)
			if err != nil {
				return err
			}
			if language != "" {
				cfg.Language = language
			}
			if outputScript != "" {
				cfg.Output.Script = outputScript
			}
			if outputPodcast != "" {
				cfg.Output.Podcast = outputPodcast
			}
			if statusFile != "" {
				cfg.Output.StatusFile = statusFile
			}
			activeCfg = cfg

			setupLogger(cfg.LogLevel)
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to the YAML configuration file (default podrun.yaml if present)")
	cmd.PersistentFlags().StringVar(&language, "language", "", "Output language of the podcast (overrides config)")
	cmd.PersistentFlags().StringVar(&outputScript, "output-script", "", "Path the dialogue script is written to (overrides config)")
	cmd.PersistentFlags().StringVar(&outputPodcast, "output-podcast", "", "Path of the final podcast WAV (overrides config)")
	cmd.PersistentFlags().StringVar(&statusFile, "status-file", "", "Path of the JSON progress file (overrides config)")

	cmd.AddCommand(newScriptCmd())
	cmd.AddCommand(newAudioCmd())
	cmd.AddCommand(newRunCmd())

	return cmd
}

// loadConfig reads path, or podrun.yaml when no path is given. A missing
// default file is fine: defaults plus environment keys apply.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}

	cfg, err := config.Load("podrun.yaml")
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	cfg = config.Default()
	config.ApplyEnv(cfg)
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func requireConfig() (*config.Config, error) {
	if activeCfg == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}
	return activeCfg, nil
}

// setupLogger configures the process-wide slog default logger.
func setupLogger(level config.LogLevel) {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// setupObservability initialises the metric provider and, when configured,
// serves /metrics in the background. The returned function flushes on exit.
func setupObservability(ctx context.Context, cfg *config.Config) (func(context.Context) error, error) {
	shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{})
	if err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	if cfg.Metrics.ListenAddr != "" {
		go func() {
			if err := observe.ServeMetrics(cfg.Metrics.ListenAddr); err != nil {
				slog.Warn("metrics endpoint stopped", "err", err)
			}
		}()
		slog.Info("metrics endpoint listening", "addr", cfg.Metrics.ListenAddr)
	}
	return shutdown, nil
}

// Package app wires the podrun stages into a running pipeline.
//
// The App struct owns the full document-to-podcast flow: New connects the
// script and speech providers from config, GenerateScript drafts the dialogue,
// SynthesizeScript turns it into the final WAV, and Run chains both.
//
// For testing, inject mock implementations via functional options
// (WithScriptProvider, WithSpeechProvider). When an option is not provided,
// New creates real providers from the config.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/podrun/podrun/internal/assemble"
	"github.com/podrun/podrun/internal/config"
	"github.com/podrun/podrun/internal/observe"
	"github.com/podrun/podrun/internal/orchestrate"
	"github.com/podrun/podrun/internal/scriptgen"
	"github.com/podrun/podrun/internal/source"
	"github.com/podrun/podrun/internal/status"
	"github.com/podrun/podrun/internal/transcript"
	"github.com/podrun/podrun/pkg/llm"
	"github.com/podrun/podrun/pkg/llm/anyllm"
	"github.com/podrun/podrun/pkg/llm/openai"
	"github.com/podrun/podrun/pkg/speech"
	"github.com/podrun/podrun/pkg/speech/gemini"
)

// App owns the providers and reporting hooks for one pipeline run.
type App struct {
	cfg     *config.Config
	script  llm.Provider
	speech  speech.Provider
	status  *status.Reporter
	metrics *observe.Metrics
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithScriptProvider injects an LLM provider instead of creating one from config.
func WithScriptProvider(p llm.Provider) Option {
	return func(a *App) { a.script = p }
}

// WithSpeechProvider injects a synthesis provider instead of creating one from config.
func WithSpeechProvider(p speech.Provider) Option {
	return func(a *App) { a.speech = p }
}

// WithStatusReporter injects a status reporter instead of building one from
// the configured status file path.
func WithStatusReporter(r *status.Reporter) Option {
	return func(a *App) { a.status = r }
}

// WithMetrics injects a metrics bundle instead of the process default.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// New creates an App from cfg. Providers not injected via options are built
// from the config's script and speech sections.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{cfg: cfg}
	for _, o := range opts {
		o(a)
	}

	if a.status == nil {
		a.status = &status.Reporter{Path: cfg.Output.StatusFile}
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	return a, nil
}

// ensureScriptProvider builds the configured LLM backend on first use, so the
// audio-only path never needs a script API key.
func (a *App) ensureScriptProvider() error {
	if a.script != nil {
		return nil
	}
	p, err := buildScriptProvider(a.cfg.Script)
	if err != nil {
		return fmt.Errorf("app: script provider: %w", err)
	}
	a.script = p
	return nil
}

// ensureSpeechProvider builds the synthesis provider on first use, so the
// script-only path never needs a speech API key.
func (a *App) ensureSpeechProvider() error {
	if a.speech != nil {
		return nil
	}
	if a.cfg.Speech.APIKey == "" {
		return fmt.Errorf("app: speech.api_key is not set and GOOGLE_API_KEY is empty")
	}
	var opts []gemini.Option
	if a.cfg.Speech.Model != "" {
		opts = append(opts, gemini.WithModel(a.cfg.Speech.Model))
	}
	a.speech = gemini.New(a.cfg.Speech.APIKey, opts...)
	return nil
}

// buildScriptProvider constructs the configured LLM backend. OpenAI gets the
// native client; everything else goes through the multi-provider bridge.
// Local backends (ollama, llamacpp, llamafile) take a base URL instead of an
// API key.
func buildScriptProvider(cfg config.ScriptConfig) (llm.Provider, error) {
	if strings.EqualFold(cfg.Provider, "openai") {
		var opts []openai.Option
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		return openai.New(cfg.APIKey, cfg.Model, opts...)
	}

	var opts []anyllmlib.Option
	if cfg.APIKey != "" {
		opts = append(opts, anyllmlib.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, anyllmlib.WithBaseURL(cfg.BaseURL))
	}
	return anyllm.New(cfg.Provider, cfg.Model, opts...)
}

// GenerateScript reads the source document, drafts the dialogue script, and
// writes it to the configured script path. Returns the cleaned script text.
func (a *App) GenerateScript(ctx context.Context, srcType source.Type, srcPath string) (string, error) {
	if err := a.ensureScriptProvider(); err != nil {
		return "", err
	}

	a.status.Running("reading source document", 5)
	content, err := source.Read(ctx, srcType, srcPath)
	if err != nil {
		return "", fmt.Errorf("app: read source: %w", err)
	}

	a.status.Running("drafting podcast script", 15)
	writer := &scriptgen.Writer{
		Provider:    a.script,
		Temperature: a.cfg.Script.Temperature,
		MaxTokens:   a.cfg.Script.MaxTokens,
	}
	if a.cfg.Script.PromptFile != "" {
		tmpl, err := os.ReadFile(a.cfg.Script.PromptFile)
		if err != nil {
			return "", fmt.Errorf("app: read prompt template: %w", err)
		}
		writer.PromptTemplate = string(tmpl)
	}

	start := time.Now()
	script, err := writer.Generate(ctx, content, a.cfg.Language)
	if err != nil {
		a.metrics.RecordProviderError(ctx, a.cfg.Script.Provider, "script")
		return "", fmt.Errorf("app: generate script: %w", err)
	}
	a.metrics.ScriptDuration.Record(ctx, time.Since(start).Seconds())

	if err := writeFileInDir(a.cfg.Output.Script, []byte(script+"\n")); err != nil {
		return "", fmt.Errorf("app: write script: %w", err)
	}
	slog.Info("script written", "path", a.cfg.Output.Script)
	a.status.Running("script ready", 40)
	return script, nil
}

// SynthesizeScript voices every turn of script and stitches the results into
// the configured podcast file.
func (a *App) SynthesizeScript(ctx context.Context, script string) error {
	if err := a.ensureSpeechProvider(); err != nil {
		return err
	}

	turns, err := transcript.Parse(script)
	if err != nil {
		return fmt.Errorf("app: parse script: %w", err)
	}

	scratch := a.cfg.Speech.ScratchDir
	if scratch == "" {
		tmp, err := os.MkdirTemp("", "podrun-turns-*")
		if err != nil {
			return fmt.Errorf("app: scratch dir: %w", err)
		}
		defer os.RemoveAll(tmp)
		scratch = tmp
	} else if err := os.MkdirAll(scratch, 0o755); err != nil {
		return fmt.Errorf("app: scratch dir: %w", err)
	}

	orch := &orchestrate.Orchestrator{
		Provider:     a.speech,
		Voices:       a.cfg.VoiceMap(),
		LanguageCode: scriptgen.LanguageCode(a.cfg.Language),
		ScratchDir:   scratch,
		Shards:       a.cfg.Speech.Shards,
		Policy: speech.RetryPolicy{
			MaxAttempts: a.cfg.Speech.MaxRetries,
			Interval:    time.Duration(a.cfg.Speech.RetryInterval),
		},
		Observer: observe.SpeechObserverFor(a.metrics),
	}

	a.status.Running("synthesizing speech", 45)
	entries, err := orch.Run(ctx, turns, script)
	if err != nil {
		a.metrics.RecordProviderError(ctx, "gemini-live", "synthesis")
		return fmt.Errorf("app: synthesize: %w", err)
	}

	a.status.Running("assembling podcast", 90)
	if err := os.MkdirAll(filepath.Dir(a.cfg.Output.Podcast), 0o755); err != nil {
		return fmt.Errorf("app: output dir: %w", err)
	}
	gap := time.Duration(a.cfg.Output.SilenceMs) * time.Millisecond
	start := time.Now()
	if err := assemble.Combine(a.cfg.Output.Podcast, entries, gap); err != nil {
		return fmt.Errorf("app: assemble: %w", err)
	}
	a.metrics.AssembleDuration.Record(ctx, time.Since(start).Seconds())

	slog.Info("podcast written", "path", a.cfg.Output.Podcast, "turns", len(entries))
	return nil
}

// Run executes the full pipeline: source → script → audio. Progress lands in
// the status file at each stage; a failure is recorded there before returning.
func (a *App) Run(ctx context.Context, srcType source.Type, srcPath string) error {
	a.status.Running("starting", 0)

	script, err := a.GenerateScript(ctx, srcType, srcPath)
	if err != nil {
		a.status.Failed(err.Error())
		return err
	}
	if err := a.SynthesizeScript(ctx, script); err != nil {
		a.status.Failed(err.Error())
		return err
	}

	a.status.Completed("podcast ready")
	return nil
}

// writeFileInDir writes data to path, creating parent directories as needed.
func writeFileInDir(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}

package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/podrun/podrun/internal/transcript"
)

// ValidScriptProviders lists the known LLM backend names.
// Used by [Validate] to warn about unrecognised provider names.
var ValidScriptProviders = []string{
	"openai", "anthropic", "gemini", "ollama", "deepseek", "mistral", "groq", "llamacpp", "llamafile",
}

// apiKeyEnvVars maps script provider names to their conventional environment
// variable, used when script.api_key is not set in the file.
var apiKeyEnvVars = map[string]string{
	"openai":    "OPENAI_API_KEY",
	"anthropic": "ANTHROPIC_API_KEY",
	"gemini":    "GEMINI_API_KEY",
	"deepseek":  "DEEPSEEK_API_KEY",
	"mistral":   "MISTRAL_API_KEY",
	"groq":      "GROQ_API_KEY",
}

// Load reads the YAML configuration file at path and returns a validated
// [Config] with defaults and environment fallbacks applied.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, fills in defaults, applies
// environment fallbacks, and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	applyDefaults(cfg)
	ApplyEnv(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults restores defaults for fields the file set to their zero value.
// A speakers block in the file replaces the default cast entirely.
func applyDefaults(cfg *Config) {
	def := Default()
	if cfg.Language == "" {
		cfg.Language = def.Language
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = def.LogLevel
	}
	if cfg.Script.Provider == "" {
		cfg.Script.Provider = def.Script.Provider
	}
	if cfg.Script.Model == "" {
		cfg.Script.Model = def.Script.Model
	}
	if cfg.Speech.Shards == 0 {
		cfg.Speech.Shards = def.Speech.Shards
	}
	if cfg.Speech.MaxRetries == 0 {
		cfg.Speech.MaxRetries = def.Speech.MaxRetries
	}
	if cfg.Speech.RetryInterval == 0 {
		cfg.Speech.RetryInterval = def.Speech.RetryInterval
	}
	if len(cfg.Speakers) == 0 {
		cfg.Speakers = def.Speakers
	}
	if cfg.Output.Script == "" {
		cfg.Output.Script = def.Output.Script
	}
	if cfg.Output.Podcast == "" {
		cfg.Output.Podcast = def.Output.Podcast
	}
	if cfg.Output.SilenceMs == 0 {
		cfg.Output.SilenceMs = def.Output.SilenceMs
	}
}

// ApplyEnv fills empty API keys from the environment: the script key from the
// provider's conventional variable, the speech key from GOOGLE_API_KEY.
func ApplyEnv(cfg *Config) {
	if cfg.Script.APIKey == "" {
		if envVar, ok := apiKeyEnvVars[cfg.Script.Provider]; ok {
			cfg.Script.APIKey = os.Getenv(envVar)
		}
	}
	if cfg.Speech.APIKey == "" {
		cfg.Speech.APIKey = os.Getenv("GOOGLE_API_KEY")
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if !cfg.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("log_level %q is invalid; valid values: debug, info, warn, error", cfg.LogLevel))
	}

	if cfg.Script.Provider != "" && !slices.Contains(ValidScriptProviders, cfg.Script.Provider) {
		slog.Warn("unknown script provider name — may be a typo or third-party provider",
			"name", cfg.Script.Provider,
			"known", ValidScriptProviders,
		)
	}
	if cfg.Script.Temperature < 0 || cfg.Script.Temperature > 2 {
		errs = append(errs, fmt.Errorf("script.temperature %.2f is out of range [0, 2]", cfg.Script.Temperature))
	}
	if cfg.Script.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("script.max_tokens must not be negative"))
	}

	if cfg.Speech.Shards < 1 {
		errs = append(errs, fmt.Errorf("speech.shards must be at least 1"))
	}
	if cfg.Speech.MaxRetries < 1 {
		errs = append(errs, fmt.Errorf("speech.max_retries must be at least 1"))
	}
	if cfg.Speech.RetryInterval < 0 {
		errs = append(errs, fmt.Errorf("speech.retry_interval must not be negative"))
	}

	known := transcript.Speakers()
	labelsSeen := make(map[string]int, len(cfg.Speakers))
	for i, s := range cfg.Speakers {
		prefix := fmt.Sprintf("speakers[%d]", i)
		if s.Label == "" {
			errs = append(errs, fmt.Errorf("%s.label is required", prefix))
			continue
		}
		if !slices.Contains(known, transcript.Speaker(s.Label)) {
			errs = append(errs, fmt.Errorf("%s.label %q is not a scripted speaker; valid values: %v", prefix, s.Label, known))
		}
		if prev, ok := labelsSeen[s.Label]; ok {
			errs = append(errs, fmt.Errorf("%s.label %q is a duplicate of speakers[%d]", prefix, s.Label, prev))
		}
		labelsSeen[s.Label] = i
		if s.Voice == "" {
			errs = append(errs, fmt.Errorf("%s.voice is required", prefix))
		}
	}
	for _, sp := range known {
		if _, ok := labelsSeen[string(sp)]; !ok {
			errs = append(errs, fmt.Errorf("speakers: no voice configured for %q", sp))
		}
	}

	if cfg.Output.SilenceMs < 0 {
		errs = append(errs, fmt.Errorf("output.silence_ms must not be negative"))
	}

	return errors.Join(errs...)
}

// Package config provides the configuration schema and loader for the podrun
// pipeline.
package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/podrun/podrun/internal/transcript"
)

// Duration is a [time.Duration] that decodes from YAML strings like "10s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// LogLevel controls log verbosity for the CLI.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for podrun.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	// Language is the human-readable output language of the podcast
	// (e.g., "english", "german"). Unknown languages fall back to English.
	Language string `yaml:"language"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	Script   ScriptConfig   `yaml:"script"`
	Speech   SpeechConfig   `yaml:"speech"`
	Speakers []SpeakerVoice `yaml:"speakers"`
	Output   OutputConfig   `yaml:"output"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ScriptConfig selects the chat model used to draft the dialogue script.
type ScriptConfig struct {
	// Provider is the LLM backend name (e.g., "openai", "gemini", "ollama").
	Provider string `yaml:"provider"`

	// Model is the provider-specific model identifier.
	Model string `yaml:"model"`

	// APIKey authenticates against the provider. When empty, the loader
	// falls back to the provider's conventional environment variable.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	BaseURL string `yaml:"base_url"`

	// PromptFile, when set, replaces the built-in prompt template. The file
	// may reference the [LANGUAGE] placeholder.
	PromptFile string `yaml:"prompt_file"`

	// Temperature controls sampling randomness. 0 means provider default.
	Temperature float64 `yaml:"temperature"`

	// MaxTokens caps the script length in tokens. 0 means provider default.
	MaxTokens int `yaml:"max_tokens"`
}

// SpeechConfig governs the streaming synthesis sessions.
type SpeechConfig struct {
	// Model is the live synthesis model identifier.
	// Empty selects the provider default.
	Model string `yaml:"model"`

	// APIKey authenticates the synthesis WebSocket. When empty, the loader
	// falls back to GOOGLE_API_KEY.
	APIKey string `yaml:"api_key"`

	// Shards is the number of parallel sessions per speaker.
	Shards int `yaml:"shards"`

	// MaxRetries bounds session attempts after transport failures.
	MaxRetries int `yaml:"max_retries"`

	// RetryInterval is the base wait between session attempts.
	RetryInterval Duration `yaml:"retry_interval"`

	// ScratchDir receives the per-turn WAV files. Empty means a fresh
	// temporary directory per run.
	ScratchDir string `yaml:"scratch_dir"`
}

// SpeakerVoice assigns a synthesis voice to one scripted speaker.
type SpeakerVoice struct {
	// Label is the speaker tag as it appears in the script
	// (e.g., "Speaker A").
	Label string `yaml:"label"`

	// Voice is the prebuilt voice name (e.g., "Puck", "Aoede").
	Voice string `yaml:"voice"`
}

// OutputConfig names the artifacts a run produces.
type OutputConfig struct {
	// Script is the path the dialogue script is written to.
	Script string `yaml:"script"`

	// Podcast is the path of the final stitched WAV file.
	Podcast string `yaml:"podcast"`

	// StatusFile, when set, receives JSON progress updates during the run.
	StatusFile string `yaml:"status_file"`

	// SilenceMs is the pause inserted between consecutive turns.
	SilenceMs int `yaml:"silence_ms"`
}

// MetricsConfig controls the optional Prometheus endpoint.
type MetricsConfig struct {
	// ListenAddr is the address /metrics is served on (e.g., ":9090").
	// Empty disables the endpoint.
	ListenAddr string `yaml:"listen_addr"`
}

// Default returns a Config with every optional field set to its default.
func Default() *Config {
	return &Config{
		Language: "english",
		LogLevel: LogInfo,
		Script: ScriptConfig{
			Provider: "openai",
			Model:    "gpt-4o",
		},
		Speech: SpeechConfig{
			Shards:        1,
			MaxRetries:    3,
			RetryInterval: Duration(5 * time.Second),
		},
		Speakers: []SpeakerVoice{
			{Label: string(transcript.SpeakerA), Voice: "Puck"},
			{Label: string(transcript.SpeakerB), Voice: "Aoede"},
			{Label: string(transcript.SpeakerC), Voice: "Charon"},
		},
		Output: OutputConfig{
			Script:    "podcast_script.txt",
			Podcast:   "podcast.wav",
			SilenceMs: 300,
		},
	}
}

// VoiceMap converts the speaker list to the lookup form the orchestrator
// consumes.
func (c *Config) VoiceMap() map[transcript.Speaker]string {
	m := make(map[transcript.Speaker]string, len(c.Speakers))
	for _, s := range c.Speakers {
		m[transcript.Speaker(s.Label)] = s.Voice
	}
	return m
}

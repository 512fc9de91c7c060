// Package scriptgen turns source material into a speaker-tagged podcast
// script by prompting a text-generation model.
package scriptgen

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/podrun/podrun/internal/transcript"
	"github.com/podrun/podrun/pkg/llm"
)

// DefaultPromptTemplate instructs the model to produce a dialogue in the
// exact line format the turn parser recognizes. The [LANGUAGE] placeholder
// is replaced with the target language before the prompt is sent.
const DefaultPromptTemplate = `You are writing the script for an engaging podcast episode in [LANGUAGE].
The podcast has three hosts: Speaker A (the moderator), Speaker B (the domain expert), and Speaker C (the curious skeptic).
Turn the provided content into a lively, natural conversation between them.

Rules:
- Every line of the script must start with "Speaker A:", "Speaker B:", or "Speaker C:".
- Do not include any other text: no titles, no stage directions, no sound effects, no markdown.
- Speakers react to each other, ask follow-up questions, and occasionally disagree.
- Cover the key points of the content accurately; do not invent facts.
- The entire script must be written in [LANGUAGE].`

// Writer generates podcast scripts through an llm.Provider.
type Writer struct {
	// Provider performs the completions.
	Provider llm.Provider

	// PromptTemplate overrides DefaultPromptTemplate when non-empty. It may
	// reference [LANGUAGE].
	PromptTemplate string

	// Temperature is passed through to the model. Zero keeps the provider
	// default.
	Temperature float64

	// MaxTokens caps the completion length. Zero keeps the provider default.
	MaxTokens int
}

// RenderPrompt substitutes the target language into the template.
func RenderPrompt(template, language string) string {
	return strings.ReplaceAll(template, "[LANGUAGE]", language)
}

// Generate prompts the model with the source content and returns the cleaned
// speaker-tagged script. A response that contains no speaker lines at all is
// an error; anything around them (preambles, fences, commentary) is stripped
// silently.
func (w *Writer) Generate(ctx context.Context, content, language string) (string, error) {
	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("scriptgen: source content is empty")
	}

	template := w.PromptTemplate
	if template == "" {
		template = DefaultPromptTemplate
	}

	req := llm.CompletionRequest{
		SystemPrompt: RenderPrompt(template, language),
		Messages: []llm.Message{
			{Role: "user", Content: fmt.Sprintf("Output language: %s\n\nContent: %s", language, content)},
		},
		Temperature: w.Temperature,
		MaxTokens:   w.MaxTokens,
	}

	start := time.Now()
	resp, err := w.Provider.Complete(ctx, req)
	if err != nil {
		return "", fmt.Errorf("scriptgen: generate script: %w", err)
	}

	script := transcript.Clean(resp.Content)
	turns, err := transcript.Parse(script)
	if err != nil {
		return "", fmt.Errorf("scriptgen: model returned no usable dialogue: %w", err)
	}

	slog.Info("script generated",
		"language", language,
		"turns", len(turns),
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
		"duration", time.Since(start),
	)
	return script, nil
}

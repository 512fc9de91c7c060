// Package orchestrate fans the script's turns out across synthesis sessions.
//
// Each speaker's turns run on their own session, optionally split into
// contiguous shards that synthesize in parallel. Every session is primed
// with the same context turn before its work turns, so shards are fully
// independent of each other.
package orchestrate

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/podrun/podrun/internal/assemble"
	"github.com/podrun/podrun/internal/transcript"
	"github.com/podrun/podrun/internal/wavio"
	"github.com/podrun/podrun/pkg/speech"
)

// Orchestrator runs the synthesis stage of the pipeline.
type Orchestrator struct {
	// Provider opens one session per shard.
	Provider speech.Provider

	// Voices maps each speaker to their synthesis voice. Speakers without a
	// mapping are an error; a silent drop would corrupt the conversation.
	Voices map[transcript.Speaker]string

	// LanguageCode is the BCP-47 code passed to every session.
	LanguageCode string

	// ScratchDir receives the per-turn WAV files.
	ScratchDir string

	// Shards is the number of parallel sessions per speaker. Values below 1
	// mean one session per speaker.
	Shards int

	// Policy governs per-session retries.
	Policy speech.RetryPolicy

	// Observer receives synthesis lifecycle events. Optional.
	Observer speech.Observer
}

// contextTemplate primes a fresh session: it fixes the voice's role and hands
// over the whole script so delivery stays coherent even though each session
// only speaks a slice of it. The resulting audio is discarded.
const contextTemplate = `You are %s in a podcast conversation between %d hosts. You will receive your lines one at a time. Read each one aloud naturally and in character, without adding, changing, or announcing anything. Here is the full script for context:

%s`

// ContextText renders the priming turn for one speaker's sessions.
func ContextText(speaker transcript.Speaker, script string) string {
	return fmt.Sprintf(contextTemplate, speaker, len(transcript.Speakers()), script)
}

// Dialogues builds the ordered request list for one session: the shared
// context turn first, then the shard's work turns keyed by their position in
// the full script.
func Dialogues(contextText string, turns []transcript.Turn) []speech.Turn {
	out := make([]speech.Turn, 0, len(turns)+1)
	out = append(out, speech.Turn{Text: contextText, Context: true})
	for _, t := range turns {
		out = append(out, speech.Turn{Key: t.Index, Text: t.Text})
	}
	return out
}

// SplitShards partitions turns into at most n contiguous ranges of
// near-equal size (ceiling division). Order within and across shards follows
// the input. Fewer turns than shards yields one single-turn shard each.
func SplitShards(turns []transcript.Turn, n int) [][]transcript.Turn {
	if n < 1 {
		n = 1
	}
	if len(turns) == 0 {
		return nil
	}
	if n > len(turns) {
		n = len(turns)
	}
	size := (len(turns) + n - 1) / n

	var shards [][]transcript.Turn
	for start := 0; start < len(turns); start += size {
		end := min(start+size, len(turns))
		shards = append(shards, turns[start:end])
	}
	return shards
}

// Run synthesizes every turn and returns one assembly entry per completed
// non-context turn. All speakers and shards run concurrently in one
// structured group: any shard that fails after exhausting its retries fails
// the whole run, so a missing stretch of conversation never goes unnoticed.
func (o *Orchestrator) Run(ctx context.Context, turns []transcript.Turn, script string) ([]assemble.Entry, error) {
	groups := transcript.BySpeaker(turns)

	// Check every mapping before any session starts. Failing out of the
	// launch loop would leave already-launched shards synthesizing in the
	// background with nobody waiting on them.
	for speaker := range groups {
		if _, ok := o.Voices[speaker]; !ok {
			return nil, fmt.Errorf("orchestrate: no voice configured for %q", speaker)
		}
	}

	var (
		mu      sync.Mutex
		entries []assemble.Entry
	)

	eg, ctx := errgroup.WithContext(ctx)
	for speaker, speakerTurns := range groups {
		voice := o.Voices[speaker]
		contextText := ContextText(speaker, script)
		for i, shard := range SplitShards(speakerTurns, o.Shards) {
			runner := speech.Runner{
				Provider: o.Provider,
				Config:   speech.SessionConfig{Voice: voice, LanguageCode: o.LanguageCode},
				Policy:   o.Policy,
				Sink:     &wavio.TurnWriter{Dir: o.ScratchDir, Voice: voice},
				Observer: o.Observer,
			}
			batch := Dialogues(contextText, shard)
			shardNum := i

			eg.Go(func() error {
				results, err := speech.RunBatch(ctx, runner, batch)
				if err != nil {
					return fmt.Errorf("orchestrate: %s shard %d: %w", voice, shardNum, err)
				}
				mu.Lock()
				for _, res := range results {
					entries = append(entries, assemble.Entry{SortKey: res.Key, Path: res.Path})
				}
				mu.Unlock()
				return nil
			})
		}
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return assemble.Order(entries), nil
}

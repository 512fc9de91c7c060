package speech

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Runner drives one batch of turns through sessions opened from Provider,
// retrying the whole session (handshake, context turn, unfinished work) on
// transport failure according to Policy.
//
// Turns already persisted through Sink before a failure stay valid and are
// never re-synthesized: each retry resumes at the first incomplete turn.
// Context turns are the exception — the remote session has no memory across
// reconnects, so every new session replays them before resuming.
type Runner struct {
	Provider Provider
	Config   SessionConfig
	Policy   RetryPolicy
	Sink     Sink

	// Observer receives lifecycle events. Nil means no observation.
	Observer Observer
}

func (r Runner) observer() Observer {
	if r.Observer == nil {
		return nopObserver{}
	}
	return r.Observer
}

// RunBatch synthesizes turns in order and returns one [Result] per completed
// non-context turn. On an unrecoverable error (or after the retry budget is
// exhausted) it returns the results completed so far together with the last
// error.
func RunBatch(ctx context.Context, r Runner, turns []Turn) ([]Result, error) {
	policy := r.Policy.withDefaults()

	var contextTurns, work []Turn
	for _, t := range turns {
		if t.Context {
			contextTurns = append(contextTurns, t)
		} else {
			work = append(work, t)
		}
	}

	var (
		results []Result
		next    int // index into work of the first incomplete turn
		lastErr error
	)

	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		err := r.runSession(ctx, contextTurns, work, &next, &results)
		if err == nil {
			return results, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return results, ctx.Err()
		}
		if !retryable(err) {
			return results, err
		}
		if attempt == policy.MaxAttempts {
			break
		}

		delay := policy.Delay(attempt, err)
		r.observer().SessionRetried(ctx, r.Config.Voice)
		slog.Warn("synthesis session lost, retrying",
			"voice", r.Config.Voice,
			"attempt", attempt,
			"max_attempts", policy.MaxAttempts,
			"completed", next,
			"remaining", len(work)-next,
			"backoff", delay,
			"error", err,
		)
		select {
		case <-ctx.Done():
			return results, ctx.Err()
		case <-time.After(delay):
		}
	}

	slog.Error("synthesis retries exhausted",
		"voice", r.Config.Voice,
		"attempts", policy.MaxAttempts,
		"completed", next,
		"error", lastErr,
	)
	return results, lastErr
}

// runSession opens one session and pushes the context turns plus all work
// from *next onward through it. *next and *results advance as turns complete,
// so progress survives a mid-session failure.
func (r Runner) runSession(ctx context.Context, contextTurns, work []Turn, next *int, results *[]Result) error {
	sess, err := r.Provider.Open(ctx, r.Config)
	if err != nil {
		return err
	}
	r.observer().SessionOpened(ctx, r.Config.Voice)
	defer func() {
		sess.Close()
		r.observer().SessionClosed(ctx, r.Config.Voice)
	}()

	// Prime the fresh remote session. The context audio is discarded — it
	// exists only to seed model state and never reaches the final podcast.
	for _, t := range contextTurns {
		if err := r.synthesize(ctx, sess, t.Text); err != nil {
			return fmt.Errorf("context turn: %w", err)
		}
	}

	for *next < len(work) {
		t := work[*next]

		start := time.Now()
		pcm, err := r.synthesizeTurn(ctx, sess, t.Text)
		if err != nil {
			return fmt.Errorf("turn %d: %w", t.Key, err)
		}

		path, err := r.Sink.WriteUtterance(t.Key, pcm)
		if err != nil {
			return fmt.Errorf("persist turn %d: %w", t.Key, err)
		}

		r.observer().TurnCompleted(ctx, r.Config.Voice, time.Since(start))
		slog.Debug("turn synthesized",
			"voice", r.Config.Voice,
			"key", t.Key,
			"bytes", len(pcm),
			"duration", time.Since(start),
		)

		if path != "" {
			*results = append(*results, Result{Key: t.Key, Path: path})
		}
		*next++
	}
	return nil
}

// synthesize sends one turn and drains its response, discarding the audio.
func (r Runner) synthesize(ctx context.Context, sess Session, text string) error {
	_, err := r.synthesizeTurn(ctx, sess, text)
	return err
}

// synthesizeTurn sends one turn and collects its complete utterance.
func (r Runner) synthesizeTurn(ctx context.Context, sess Session, text string) ([]byte, error) {
	if err := sess.SendTurn(ctx, text); err != nil {
		return nil, err
	}
	return sess.ReceiveTurn(ctx)
}

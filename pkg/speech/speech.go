// Package speech defines the contract between the podcast orchestrator and a
// streaming speech-synthesis backend.
//
// A [Provider] opens one [Session] per voice. A Session wraps a persistent
// bidirectional connection: the caller submits one text turn at a time with
// SendTurn and collects the complete synthesized utterance with ReceiveTurn.
// The Session enforces single-request-in-flight discipline — SendTurn is only
// legal while the session is [StateReady], and a second SendTurn before the
// matching ReceiveTurn has drained the response is a caller bug surfaced as
// [ErrProtocolViolation].
//
// [RunBatch] is the retrying driver loop on top of a Provider: it replays the
// handshake, the context turn, and all not-yet-completed turns across
// reconnects, persisting each finished utterance through a [Sink].
//
// Implementors must be safe for sequential use from a single goroutine;
// distinct Sessions carry no shared mutable state and may run concurrently.
package speech

import "context"

// Turn is one synthesis request unit.
type Turn struct {
	// Key is the turn's global sort key — the zero-based line number of the
	// utterance in the source transcript. Keys are unique across all speakers,
	// which is what lets the assembler restore chronological order after
	// parallel synthesis.
	Key int

	// Text is the utterance to synthesize.
	Text string

	// Context marks the synthetic priming turn (system instructions plus the
	// full script) that must be the first request of every session, including
	// after a reconnect. The remote session has no memory across reconnects.
	// Context turns produce no output file.
	Context bool
}

// Result records one completed non-context turn.
type Result struct {
	// Key is the turn's sort key, copied from [Turn.Key].
	Key int

	// Path is the per-turn WAV file written by the [Sink]. Empty when the
	// backend produced no audio for the turn.
	Path string
}

// SessionConfig carries the per-session setup parameters sent during the
// handshake.
type SessionConfig struct {
	// Voice is the backend-specific voice identifier (e.g. "Puck").
	Voice string

	// LanguageCode is the BCP-47 speech language code (e.g. "en-US").
	LanguageCode string
}

// State is the lifecycle state of a [Session].
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateReady
	StateStreaming
	StateClosing
	StateFailed
)

// String returns the lowercase state name for logging.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	case StateStreaming:
		return "streaming"
	case StateClosing:
		return "closing"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Provider opens synthesis sessions against a speech backend.
type Provider interface {
	// Open establishes a connection, performs the setup handshake for the
	// given voice and language, and returns a session in [StateReady].
	// Handshake failures are reported as a [*SetupError].
	Open(ctx context.Context, cfg SessionConfig) (Session, error)
}

// Session is one live connection scoped to exactly one voice.
type Session interface {
	// SendTurn transmits a single user turn marked turn-complete so the
	// backend responds immediately. Legal only in [StateReady]; otherwise it
	// fails with [ErrProtocolViolation] and sends nothing.
	SendTurn(ctx context.Context, text string) error

	// ReceiveTurn consumes streamed server messages until the backend signals
	// end of turn, returning the complete decoded PCM utterance. Messages that
	// carry neither audio nor a turn-complete signal are logged and skipped.
	// A dropped connection is reported as a [*TransportError].
	ReceiveTurn(ctx context.Context) ([]byte, error)

	// State reports the session's current lifecycle state.
	State() State

	// Close gracefully tears down the transport. Idempotent.
	Close() error
}

// Sink persists one completed utterance. Implementations decide the on-disk
// naming; the returned path feeds the timeline assembler. An empty pcm buffer
// is a no-op: no file is written and an empty path is returned.
type Sink interface {
	WriteUtterance(key int, pcm []byte) (path string, err error)
}

package speech

import (
	"context"
	"time"
)

// Observer receives synthesis lifecycle events from [RunBatch]. All methods
// may be called concurrently from multiple runners.
type Observer interface {
	// SessionOpened fires when a session finishes its handshake.
	SessionOpened(ctx context.Context, voice string)

	// SessionClosed fires when a session is torn down.
	SessionClosed(ctx context.Context, voice string)

	// TurnCompleted fires for every completed work turn with the turn's
	// wall-clock synthesis time. Context turns are not reported.
	TurnCompleted(ctx context.Context, voice string, d time.Duration)

	// SessionRetried fires once per reconnect attempt after a recoverable
	// failure.
	SessionRetried(ctx context.Context, voice string)
}

// nopObserver is used when a Runner has no Observer configured.
type nopObserver struct{}

func (nopObserver) SessionOpened(context.Context, string)                {}
func (nopObserver) SessionClosed(context.Context, string)                {}
func (nopObserver) TurnCompleted(context.Context, string, time.Duration) {}
func (nopObserver) SessionRetried(context.Context, string)               {}

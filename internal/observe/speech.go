package observe

import (
	"context"
	"time"

	"github.com/podrun/podrun/pkg/speech"
)

var _ speech.Observer = (*SpeechObserver)(nil)

// SpeechObserver bridges synthesis lifecycle events onto the metric
// instruments.
type SpeechObserver struct {
	m *Metrics
}

// SpeechObserverFor wraps m as a speech.Observer.
func SpeechObserverFor(m *Metrics) *SpeechObserver {
	return &SpeechObserver{m: m}
}

func (o *SpeechObserver) SessionOpened(ctx context.Context, _ string) {
	o.m.ActiveSessions.Add(ctx, 1)
}

func (o *SpeechObserver) SessionClosed(ctx context.Context, _ string) {
	o.m.ActiveSessions.Add(ctx, -1)
}

func (o *SpeechObserver) TurnCompleted(ctx context.Context, voice string, d time.Duration) {
	o.m.RecordTurn(ctx, voice, d)
}

func (o *SpeechObserver) SessionRetried(ctx context.Context, voice string) {
	o.m.RecordRetry(ctx, voice)
}

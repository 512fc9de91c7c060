// Package mock provides test doubles for the speech package interfaces.
//
// Use Provider to verify Open calls and feed controlled sessions. Use Session
// to script per-turn synthesis results and failure points.
//
// Example:
//
//	p := &mock.Provider{
//	    Synth: func(text string) []byte { return []byte(text) },
//	}
//	sess, _ := p.Open(ctx, cfg)
package mock

import (
	"context"
	"errors"
	"sync"

	"github.com/podrun/podrun/pkg/speech"
)

// ErrScriptedDrop is the inner error of every scripted transport failure.
var ErrScriptedDrop = errors.New("mock: connection dropped")

// Ensure the mocks implement the speech interfaces at compile time.
var (
	_ speech.Provider = (*Provider)(nil)
	_ speech.Session  = (*Session)(nil)
)

// OpenCall records a single invocation of Provider.Open.
type OpenCall struct {
	// Ctx is the context passed to Open.
	Ctx context.Context
	// Cfg is the SessionConfig passed to Open.
	Cfg speech.SessionConfig
}

// Provider is a mock implementation of speech.Provider. Each Open returns a
// fresh Session wired with the provider's Synth function and failure script.
type Provider struct {
	mu sync.Mutex

	// Synth maps turn text to PCM bytes. If nil, every turn yields the text
	// itself as bytes.
	Synth func(text string) []byte

	// OpenErrs is consumed one per Open call: a non-nil entry fails that
	// call. After the slice is exhausted, Open succeeds.
	OpenErrs []error

	// FailTurnsAfter, if > 0, makes every returned Session fail with a
	// transport error after completing that many turns.
	FailTurnsAfter int

	// FailOnce limits the FailTurnsAfter script to the first session; later
	// sessions run clean.
	FailOnce bool

	// OpenCalls records every call to Open in order.
	OpenCalls []OpenCall

	// Sessions holds every Session handed out, in order.
	Sessions []*Session
}

// Open records the call and returns the next scripted session or error.
func (p *Provider) Open(ctx context.Context, cfg speech.SessionConfig) (speech.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.OpenCalls = append(p.OpenCalls, OpenCall{Ctx: ctx, Cfg: cfg})

	if n := len(p.OpenCalls) - 1; n < len(p.OpenErrs) && p.OpenErrs[n] != nil {
		return nil, p.OpenErrs[n]
	}

	failAfter := p.FailTurnsAfter
	if p.FailOnce && len(p.Sessions) > 0 {
		failAfter = 0
	}
	s := &Session{
		synth:     p.Synth,
		failAfter: failAfter,
		state:     speech.StateReady,
	}
	p.Sessions = append(p.Sessions, s)
	return s, nil
}

// Session is a mock implementation of speech.Session. It honors the same
// send-then-receive discipline as the real client and fails with a
// transport error once its scripted turn budget is spent.
type Session struct {
	mu sync.Mutex

	synth     func(text string) []byte
	failAfter int

	state   speech.State
	pending string
	done    int

	// SentTurns records the text of every accepted SendTurn in order.
	SentTurns []string

	// CloseCallCount is the number of times Close was called.
	CloseCallCount int
}

// SendTurn records the turn or fails per the session script.
func (s *Session) SendTurn(_ context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != speech.StateReady {
		return speech.ErrProtocolViolation
	}
	if s.failAfter > 0 && s.done >= s.failAfter {
		s.state = speech.StateFailed
		return &speech.TransportError{Err: ErrScriptedDrop}
	}
	s.SentTurns = append(s.SentTurns, text)
	s.pending = text
	s.state = speech.StateStreaming
	return nil
}

// ReceiveTurn returns the synthesized bytes for the pending turn.
func (s *Session) ReceiveTurn(context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != speech.StateStreaming {
		return nil, speech.ErrProtocolViolation
	}
	s.state = speech.StateReady
	s.done++
	if s.synth == nil {
		return []byte(s.pending), nil
	}
	return s.synth(s.pending), nil
}

// State returns the current session state. Thread-safe.
func (s *Session) State() speech.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Close records the call.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CloseCallCount++
	s.state = speech.StateDisconnected
	return nil
}

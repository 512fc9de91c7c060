// Package gemini implements the speech.Provider interface for Google's
// Gemini Live API.
//
// It establishes a bidirectional WebSocket connection to the Gemini Live
// endpoint and exchanges JSON messages according to the BidiGenerateContent
// protocol: one setup handshake per session, then one clientContent request
// per turn, answered by a stream of serverContent messages whose modelTurn
// parts carry base64-encoded PCM chunks until turnComplete is signalled.
package gemini

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/podrun/podrun/pkg/speech"
)

// Compile-time assertions that Provider and session satisfy the speech
// interfaces.
var (
	_ speech.Provider = (*Provider)(nil)
	_ speech.Session  = (*session)(nil)
)

const (
	defaultModel   = "gemini-2.0-flash-live-001"
	defaultBaseURL = "wss://generativelanguage.googleapis.com/ws"

	// handshakeTimeout bounds the wait for the server's setup acknowledgment.
	handshakeTimeout = 15 * time.Second

	// Keepalive pings double as the transport liveness check: a failed ping
	// tears the connection down and surfaces through the usual
	// transport-closed path on the next read.
	keepaliveInterval = 10 * time.Second
	keepaliveTimeout  = 7 * time.Second
)

// ── Options ───────────────────────────────────────────────────────────────────

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithModel sets the Gemini Live model used for sessions.
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithBaseURL overrides the base WebSocket URL. Primarily used in tests to
// point at a local mock server.
func WithBaseURL(url string) Option {
	return func(p *Provider) { p.baseURL = url }
}

// ── Provider ──────────────────────────────────────────────────────────────────

// Provider implements speech.Provider for the Gemini Live API.
type Provider struct {
	apiKey  string
	model   string
	baseURL string
}

// New creates a Gemini Live Provider with the given API key and options.
func New(apiKey string, opts ...Option) *Provider {
	p := &Provider{
		apiKey:  apiKey,
		model:   defaultModel,
		baseURL: defaultBaseURL,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Voices lists the prebuilt Gemini Live voices.
func (p *Provider) Voices() []string {
	return []string{"Aoede", "Charon", "Fenrir", "Kore", "Puck"}
}

// Open implements speech.Provider. It dials the BidiGenerateContent endpoint,
// sends the setup message naming the model, language code, and voice, and
// blocks until the server acknowledges. The returned session is in
// [speech.StateReady].
func (p *Provider) Open(ctx context.Context, cfg speech.SessionConfig) (speech.Session, error) {
	wsURL := fmt.Sprintf(
		"%s/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent?key=%s",
		p.baseURL, p.apiKey,
	)

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: http.Header{
			"Content-Type": []string{"application/json"},
		},
	})
	if err != nil {
		return nil, &speech.SetupError{Err: fmt.Errorf("gemini: dial: %w", err)}
	}
	// Utterances are unbounded; do not let the library cap frame assembly.
	conn.SetReadLimit(-1)

	sessCtx, sessCancel := context.WithCancel(context.Background())
	s := &session{
		conn:   conn,
		voice:  cfg.Voice,
		state:  speech.StateConnecting,
		done:   make(chan struct{}),
		ctx:    sessCtx,
		cancel: sessCancel,
	}

	if err := s.handshake(ctx, p.model, cfg); err != nil {
		sessCancel()
		conn.Close(websocket.StatusInternalError, "setup failed")
		return nil, err
	}

	go s.keepaliveLoop()

	return s, nil
}

// ── session ───────────────────────────────────────────────────────────────────

// session is one live BidiGenerateContent connection scoped to a single voice.
//
// The mutex guards the state field only; it is the single-holder gate that
// enforces one-request-in-flight: SendTurn admits a caller only from
// StateReady, and the session does not return to StateReady until ReceiveTurn
// has drained the response. All network reads and writes happen outside the
// lock.
type session struct {
	conn  *websocket.Conn
	voice string

	mu    sync.Mutex
	state speech.State

	// buf accumulates decoded PCM for the turn currently being received.
	// Owned exclusively by this session; cleared at the start of each turn.
	buf bytes.Buffer

	done      chan struct{}
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// handshake sends the setup message and waits for the server acknowledgment.
func (s *session) handshake(ctx context.Context, model string, cfg speech.SessionConfig) error {
	msg := setupMessage{
		Setup: setupConfig{
			Model: fmt.Sprintf("models/%s", model),
			GenerationConfig: generationConfig{
				ResponseModalities: []string{"audio"},
				SpeechConfig: &speechConfig{
					LanguageCode: cfg.LanguageCode,
					VoiceConfig: voiceConfig{
						PrebuiltVoiceConfig: prebuiltVoiceConfig{VoiceName: cfg.Voice},
					},
				},
			},
		},
	}
	if err := s.writeJSON(ctx, msg); err != nil {
		return &speech.SetupError{Err: fmt.Errorf("gemini: send setup: %w", err)}
	}

	ackCtx, cancel := context.WithTimeout(ctx, handshakeTimeout)
	defer cancel()

	_, data, err := s.conn.Read(ackCtx)
	if err != nil {
		return &speech.SetupError{Err: fmt.Errorf("gemini: setup ack: %w", err)}
	}
	ev, err := parseServerEvent(data)
	if err != nil || ev.Kind != eventSetupComplete {
		// The server has occasionally acknowledged with variant shapes; a
		// readable frame of any kind means the session is live.
		slog.Debug("gemini: setup ack had unexpected shape", "voice", s.voice)
	}

	s.setState(speech.StateReady)
	return nil
}

// SendTurn implements speech.Session. The turn is marked turnComplete so the
// model responds immediately rather than waiting for more input.
func (s *session) SendTurn(ctx context.Context, text string) error {
	s.mu.Lock()
	if s.state != speech.StateReady {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("gemini: send in state %q: %w", state, speech.ErrProtocolViolation)
	}
	s.state = speech.StateStreaming
	s.mu.Unlock()

	msg := clientContentMessage{
		ClientContent: clientContent{
			TurnComplete: true,
			Turns: []contentTurn{
				{Role: "user", Parts: []part{{Text: text}}},
			},
		},
	}
	if err := s.writeJSON(ctx, msg); err != nil {
		s.setState(speech.StateFailed)
		return &speech.TransportError{Err: fmt.Errorf("gemini: send turn: %w", err)}
	}
	return nil
}

// ReceiveTurn implements speech.Session. It reads server messages, appending
// every decodable audio chunk to the utterance buffer in arrival order, until
// one signals turn completion. Unrecognized messages are logged and skipped;
// they are not errors.
func (s *session) ReceiveTurn(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	if s.state != speech.StateStreaming {
		state := s.state
		s.mu.Unlock()
		return nil, fmt.Errorf("gemini: receive in state %q: %w", state, speech.ErrProtocolViolation)
	}
	s.mu.Unlock()

	s.buf.Reset()

	for {
		_, data, err := s.conn.Read(ctx)
		if err != nil {
			s.setState(speech.StateFailed)
			return nil, &speech.TransportError{Err: fmt.Errorf("gemini: read: %w", err)}
		}

		ev, err := parseServerEvent(data)
		if err != nil {
			slog.Warn("gemini: skipping undecodable server message", "voice", s.voice, "error", err)
			continue
		}
		if ev.BadChunks > 0 {
			slog.Warn("gemini: dropped undecodable audio chunks", "voice", s.voice, "count", ev.BadChunks)
		}

		for _, chunk := range ev.Chunks {
			s.buf.Write(chunk)
		}

		switch ev.Kind {
		case eventTurnComplete:
			pcm := make([]byte, s.buf.Len())
			copy(pcm, s.buf.Bytes())
			s.buf.Reset()
			s.setState(speech.StateReady)
			return pcm, nil
		case eventAudio, eventSetupComplete:
			// More of the turn to come.
		case eventUnrecognized:
			slog.Debug("gemini: skipping unrecognized server message", "voice", s.voice)
		}
	}
}

// State implements speech.Session.
func (s *session) State() speech.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Close implements speech.Session. Safe to call multiple times.
func (s *session) Close() error {
	s.closeOnce.Do(func() {
		s.setState(speech.StateClosing)
		s.cancel()
		close(s.done)
		s.conn.Close(websocket.StatusNormalClosure, "session closed")
		s.buf.Reset()
		s.setState(speech.StateDisconnected)
	})
	return nil
}

// keepaliveLoop sends WebSocket pings to keep the Gemini Live connection
// alive between turns.
func (s *session) keepaliveLoop() {
	ticker := time.NewTicker(keepaliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(s.ctx, keepaliveTimeout)
			_ = s.conn.Ping(pingCtx)
			cancel()
		}
	}
}

func (s *session) setState(st speech.State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// writeJSON marshals v and writes it as a text WebSocket frame.
func (s *session) writeJSON(ctx context.Context, v any) error {
	data, err := marshalJSON(v)
	if err != nil {
		return err
	}
	return s.conn.Write(ctx, websocket.MessageText, data)
}

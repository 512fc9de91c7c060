package gemini_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/podrun/podrun/pkg/speech"
	"github.com/podrun/podrun/pkg/speech/gemini"
)

// ── Helpers ───────────────────────────────────────────────────────────────────

// wsURL converts an httptest server HTTP URL to a WebSocket URL.
func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

// startLiveServer launches a test WebSocket server. The handler function
// receives the accepted *websocket.Conn. The server is automatically closed
// when the test finishes.
func startLiveServer(t *testing.T, handler func(conn *websocket.Conn, r *http.Request)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "done")
		handler(conn, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// readJSON reads one WebSocket text frame and decodes it into v.
func readJSON(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("readJSON: %v", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		t.Fatalf("readJSON unmarshal: %v", err)
	}
}

// writeJSON marshals v and sends it as a text frame.
func writeJSON(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	data, _ := json.Marshal(v)
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		t.Logf("writeJSON: %v (may be expected on close)", err)
	}
}

// sendSetupComplete sends the server-side setupComplete ack.
func sendSetupComplete(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	writeJSON(t, conn, map[string]any{"setupComplete": map[string]any{}})
}

// sendAudioChunk sends one serverContent message carrying pcm as base64
// inline data.
func sendAudioChunk(t *testing.T, conn *websocket.Conn, pcm []byte) {
	t.Helper()
	writeJSON(t, conn, map[string]any{
		"serverContent": map[string]any{
			"modelTurn": map[string]any{
				"parts": []map[string]any{
					{
						"inlineData": map[string]any{
							"mimeType": "audio/pcm;rate=24000",
							"data":     base64.StdEncoding.EncodeToString(pcm),
						},
					},
				},
			},
		},
	})
}

// sendTurnComplete signals the end of the model's turn.
func sendTurnComplete(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	writeJSON(t, conn, map[string]any{
		"serverContent": map[string]any{"turnComplete": true},
	})
}

// newProvider creates a Provider pointing at the given test server.
func newProvider(srv *httptest.Server) *gemini.Provider {
	return gemini.New("test-api-key", gemini.WithBaseURL(wsURL(srv)))
}

// openSession opens a session against the test server with a fixed voice.
func openSession(t *testing.T, srv *httptest.Server) speech.Session {
	t.Helper()
	p := newProvider(srv)
	sess, err := p.Open(context.Background(), speech.SessionConfig{Voice: "Puck", LanguageCode: "en-US"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = sess.Close() })
	return sess
}

// ── Constructor tests ─────────────────────────────────────────────────────────

func TestNew_DefaultValues(t *testing.T) {
	t.Parallel()
	p := gemini.New("my-key")
	if p == nil {
		t.Fatal("New returned nil")
	}
}

func TestVoices_NonEmpty(t *testing.T) {
	t.Parallel()
	if len(gemini.New("key").Voices()) == 0 {
		t.Error("Voices should be non-empty")
	}
}

// ── TestOpen ──────────────────────────────────────────────────────────────────

func TestOpen_SendsSetup(t *testing.T) {
	t.Parallel()

	type setupMsg struct {
		Setup struct {
			Model            string `json:"model"`
			GenerationConfig struct {
				ResponseModalities []string `json:"responseModalities"`
				SpeechConfig       struct {
					LanguageCode string `json:"languageCode"`
					VoiceConfig  struct {
						PrebuiltVoiceConfig struct {
							VoiceName string `json:"voiceName"`
						} `json:"prebuiltVoiceConfig"`
					} `json:"voiceConfig"`
				} `json:"speechConfig"`
			} `json:"generationConfig"`
		} `json:"setup"`
	}

	received := make(chan setupMsg, 1)

	srv := startLiveServer(t, func(conn *websocket.Conn, _ *http.Request) {
		var msg setupMsg
		readJSON(t, conn, &msg)
		received <- msg
		sendSetupComplete(t, conn)
		<-conn.CloseRead(context.Background()).Done()
	})

	p := newProvider(srv)
	sess, err := p.Open(context.Background(), speech.SessionConfig{Voice: "Aoede", LanguageCode: "de-DE"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer sess.Close()

	select {
	case msg := <-received:
		if !strings.HasPrefix(msg.Setup.Model, "models/") {
			t.Errorf("model %q should start with 'models/'", msg.Setup.Model)
		}
		gc := msg.Setup.GenerationConfig
		if len(gc.ResponseModalities) != 1 || gc.ResponseModalities[0] != "audio" {
			t.Errorf("responseModalities = %v; want [audio]", gc.ResponseModalities)
		}
		if got := gc.SpeechConfig.VoiceConfig.PrebuiltVoiceConfig.VoiceName; got != "Aoede" {
			t.Errorf("voiceName = %q; want Aoede", got)
		}
		if got := gc.SpeechConfig.LanguageCode; got != "de-DE" {
			t.Errorf("languageCode = %q; want de-DE", got)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for setup message")
	}

	if got := sess.State(); got != speech.StateReady {
		t.Errorf("state after Open = %v; want %v", got, speech.StateReady)
	}
}

func TestOpen_IncludesAPIKeyInURL(t *testing.T) {
	t.Parallel()

	urlQuery := make(chan string, 1)

	srv := startLiveServer(t, func(conn *websocket.Conn, r *http.Request) {
		urlQuery <- r.URL.RawQuery
		var raw map[string]any
		readJSON(t, conn, &raw)
		sendSetupComplete(t, conn)
		<-conn.CloseRead(context.Background()).Done()
	})

	p := gemini.New("secret-key", gemini.WithBaseURL(wsURL(srv)))
	sess, err := p.Open(context.Background(), speech.SessionConfig{Voice: "Puck"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer sess.Close()

	select {
	case q := <-urlQuery:
		if !strings.Contains(q, "key=secret-key") {
			t.Errorf("URL query %q should contain key=secret-key", q)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timeout")
	}
}

func TestWithModel_SetsModel(t *testing.T) {
	t.Parallel()

	modelCh := make(chan string, 1)

	srv := startLiveServer(t, func(conn *websocket.Conn, _ *http.Request) {
		var msg struct {
			Setup struct {
				Model string `json:"model"`
			} `json:"setup"`
		}
		readJSON(t, conn, &msg)
		modelCh <- msg.Setup.Model
		sendSetupComplete(t, conn)
		<-conn.CloseRead(context.Background()).Done()
	})

	p := gemini.New("key", gemini.WithModel("custom-live-model"), gemini.WithBaseURL(wsURL(srv)))
	sess, err := p.Open(context.Background(), speech.SessionConfig{Voice: "Puck"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer sess.Close()

	select {
	case model := <-modelCh:
		if want := "models/custom-live-model"; model != want {
			t.Errorf("model = %q; want %q", model, want)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for model in setup message")
	}
}

func TestOpen_DialFailure_ReturnsSetupError(t *testing.T) {
	t.Parallel()

	// Plain HTTP server that rejects the WebSocket upgrade.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "no", http.StatusForbidden)
	}))
	t.Cleanup(srv.Close)

	p := newProvider(srv)
	_, err := p.Open(context.Background(), speech.SessionConfig{Voice: "Puck"})
	if err == nil {
		t.Fatal("Open against non-WebSocket server should fail")
	}
	var se *speech.SetupError
	if !errors.As(err, &se) {
		t.Errorf("error %v should be a *speech.SetupError", err)
	}
}

func TestOpen_ServerClosesBeforeAck_ReturnsSetupError(t *testing.T) {
	t.Parallel()

	srv := startLiveServer(t, func(conn *websocket.Conn, _ *http.Request) {
		var raw map[string]any
		readJSON(t, conn, &raw)
		conn.Close(websocket.StatusInternalError, "going away")
	})

	p := newProvider(srv)
	_, err := p.Open(context.Background(), speech.SessionConfig{Voice: "Puck"})
	if err == nil {
		t.Fatal("Open should fail when the server closes before the ack")
	}
	var se *speech.SetupError
	if !errors.As(err, &se) {
		t.Errorf("error %v should be a *speech.SetupError", err)
	}
}

func TestOpen_CancelledContext_ReturnsError(t *testing.T) {
	t.Parallel()

	srv := startLiveServer(t, func(conn *websocket.Conn, _ *http.Request) {
		<-conn.CloseRead(context.Background()).Done()
	})

	p := newProvider(srv)
	ctx, cancel := context.WithCancel(context.Background())
	cancel() // already cancelled

	if _, err := p.Open(ctx, speech.SessionConfig{Voice: "Puck"}); err == nil {
		t.Fatal("Open with cancelled context should return an error")
	}
}

// ── TestSendTurn ──────────────────────────────────────────────────────────────

func TestSendTurn_SendsClientContent(t *testing.T) {
	t.Parallel()

	type clientContentMsg struct {
		ClientContent struct {
			Turns []struct {
				Role  string `json:"role"`
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"turns"`
			TurnComplete bool `json:"turnComplete"`
		} `json:"clientContent"`
	}

	turnMsg := make(chan clientContentMsg, 1)

	srv := startLiveServer(t, func(conn *websocket.Conn, _ *http.Request) {
		var raw map[string]any
		readJSON(t, conn, &raw)
		sendSetupComplete(t, conn)

		var msg clientContentMsg
		readJSON(t, conn, &msg)
		turnMsg <- msg

		<-conn.CloseRead(context.Background()).Done()
	})

	sess := openSession(t, srv)
	if err := sess.SendTurn(context.Background(), "Say: Welcome to the show."); err != nil {
		t.Fatalf("SendTurn: %v", err)
	}

	select {
	case msg := <-turnMsg:
		turns := msg.ClientContent.Turns
		if len(turns) != 1 {
			t.Fatalf("expected 1 turn; got %d", len(turns))
		}
		if turns[0].Role != "user" {
			t.Errorf("role = %q; want user", turns[0].Role)
		}
		if len(turns[0].Parts) == 0 || turns[0].Parts[0].Text != "Say: Welcome to the show." {
			t.Errorf("unexpected parts: %+v", turns[0].Parts)
		}
		if !msg.ClientContent.TurnComplete {
			t.Error("turnComplete should be true")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for clientContent message")
	}

	if got := sess.State(); got != speech.StateStreaming {
		t.Errorf("state after SendTurn = %v; want %v", got, speech.StateStreaming)
	}
}

func TestSendTurn_WhileStreaming_ProtocolViolation(t *testing.T) {
	t.Parallel()

	srv := startLiveServer(t, func(conn *websocket.Conn, _ *http.Request) {
		var raw map[string]any
		readJSON(t, conn, &raw)
		sendSetupComplete(t, conn)
		<-conn.CloseRead(context.Background()).Done()
	})

	sess := openSession(t, srv)
	if err := sess.SendTurn(context.Background(), "first"); err != nil {
		t.Fatalf("first SendTurn: %v", err)
	}

	err := sess.SendTurn(context.Background(), "second")
	if !errors.Is(err, speech.ErrProtocolViolation) {
		t.Errorf("second SendTurn error = %v; want ErrProtocolViolation", err)
	}
}

func TestSendTurn_AfterClose_ProtocolViolation(t *testing.T) {
	t.Parallel()

	srv := startLiveServer(t, func(conn *websocket.Conn, _ *http.Request) {
		var raw map[string]any
		readJSON(t, conn, &raw)
		sendSetupComplete(t, conn)
		<-conn.CloseRead(context.Background()).Done()
	})

	sess := openSession(t, srv)
	if err := sess.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	err := sess.SendTurn(context.Background(), "too late")
	if !errors.Is(err, speech.ErrProtocolViolation) {
		t.Errorf("SendTurn after Close = %v; want ErrProtocolViolation", err)
	}
}

// ── TestReceiveTurn ───────────────────────────────────────────────────────────

func TestReceiveTurn_AssemblesChunksInOrder(t *testing.T) {
	t.Parallel()

	srv := startLiveServer(t, func(conn *websocket.Conn, _ *http.Request) {
		var raw map[string]any
		readJSON(t, conn, &raw)
		sendSetupComplete(t, conn)

		// Consume the turn request, then stream three chunks and complete.
		readJSON(t, conn, &raw)
		sendAudioChunk(t, conn, []byte{0x01, 0x02})
		sendAudioChunk(t, conn, []byte{0x03, 0x04})
		sendAudioChunk(t, conn, []byte{0x05, 0x06})
		sendTurnComplete(t, conn)

		<-conn.CloseRead(context.Background()).Done()
	})

	sess := openSession(t, srv)
	if err := sess.SendTurn(context.Background(), "speak"); err != nil {
		t.Fatalf("SendTurn: %v", err)
	}

	pcm, err := sess.ReceiveTurn(context.Background())
	if err != nil {
		t.Fatalf("ReceiveTurn: %v", err)
	}
	want := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06}
	if string(pcm) != string(want) {
		t.Errorf("pcm = %v; want %v", pcm, want)
	}
	if got := sess.State(); got != speech.StateReady {
		t.Errorf("state after ReceiveTurn = %v; want %v", got, speech.StateReady)
	}
}

func TestReceiveTurn_SkipsUnrecognizedMessages(t *testing.T) {
	t.Parallel()

	srv := startLiveServer(t, func(conn *websocket.Conn, _ *http.Request) {
		var raw map[string]any
		readJSON(t, conn, &raw)
		sendSetupComplete(t, conn)

		readJSON(t, conn, &raw)
		writeJSON(t, conn, map[string]any{"usageMetadata": map[string]any{"totalTokenCount": 42}})
		sendAudioChunk(t, conn, []byte{0xAA, 0xBB})
		writeJSON(t, conn, map[string]any{"serverContent": map[string]any{"interrupted": false}})
		sendTurnComplete(t, conn)

		<-conn.CloseRead(context.Background()).Done()
	})

	sess := openSession(t, srv)
	if err := sess.SendTurn(context.Background(), "speak"); err != nil {
		t.Fatalf("SendTurn: %v", err)
	}

	pcm, err := sess.ReceiveTurn(context.Background())
	if err != nil {
		t.Fatalf("ReceiveTurn: %v", err)
	}
	if string(pcm) != string([]byte{0xAA, 0xBB}) {
		t.Errorf("pcm = %v; want [170 187]", pcm)
	}
}

func TestReceiveTurn_FinalMessageMayCarryAudio(t *testing.T) {
	t.Parallel()

	encoded := base64.StdEncoding.EncodeToString([]byte{0x10, 0x20})

	srv := startLiveServer(t, func(conn *websocket.Conn, _ *http.Request) {
		var raw map[string]any
		readJSON(t, conn, &raw)
		sendSetupComplete(t, conn)

		readJSON(t, conn, &raw)
		// Audio and turnComplete in the same frame.
		writeJSON(t, conn, map[string]any{
			"serverContent": map[string]any{
				"modelTurn": map[string]any{
					"parts": []map[string]any{
						{"inlineData": map[string]any{"data": encoded}},
					},
				},
				"turnComplete": true,
			},
		})

		<-conn.CloseRead(context.Background()).Done()
	})

	sess := openSession(t, srv)
	if err := sess.SendTurn(context.Background(), "speak"); err != nil {
		t.Fatalf("SendTurn: %v", err)
	}

	pcm, err := sess.ReceiveTurn(context.Background())
	if err != nil {
		t.Fatalf("ReceiveTurn: %v", err)
	}
	if string(pcm) != string([]byte{0x10, 0x20}) {
		t.Errorf("pcm = %v; want [16 32]", pcm)
	}
}

func TestReceiveTurn_EmptyUtterance(t *testing.T) {
	t.Parallel()

	srv := startLiveServer(t, func(conn *websocket.Conn, _ *http.Request) {
		var raw map[string]any
		readJSON(t, conn, &raw)
		sendSetupComplete(t, conn)

		readJSON(t, conn, &raw)
		sendTurnComplete(t, conn)

		<-conn.CloseRead(context.Background()).Done()
	})

	sess := openSession(t, srv)
	if err := sess.SendTurn(context.Background(), "speak"); err != nil {
		t.Fatalf("SendTurn: %v", err)
	}

	pcm, err := sess.ReceiveTurn(context.Background())
	if err != nil {
		t.Fatalf("ReceiveTurn: %v", err)
	}
	if len(pcm) != 0 {
		t.Errorf("pcm length = %d; want 0", len(pcm))
	}
	if got := sess.State(); got != speech.StateReady {
		t.Errorf("state = %v; want %v", got, speech.StateReady)
	}
}

func TestReceiveTurn_ConnectionDrop_ReturnsTransportError(t *testing.T) {
	t.Parallel()

	srv := startLiveServer(t, func(conn *websocket.Conn, _ *http.Request) {
		var raw map[string]any
		readJSON(t, conn, &raw)
		sendSetupComplete(t, conn)

		readJSON(t, conn, &raw)
		sendAudioChunk(t, conn, []byte{0x01, 0x02})
		conn.Close(websocket.StatusInternalError, "going away")
	})

	sess := openSession(t, srv)
	if err := sess.SendTurn(context.Background(), "speak"); err != nil {
		t.Fatalf("SendTurn: %v", err)
	}

	_, err := sess.ReceiveTurn(context.Background())
	if err == nil {
		t.Fatal("ReceiveTurn should fail when the server drops the connection")
	}
	if !speech.IsTransportClosed(err) {
		t.Errorf("error %v should be transport-closed", err)
	}
	if got := sess.State(); got != speech.StateFailed {
		t.Errorf("state after drop = %v; want %v", got, speech.StateFailed)
	}
}

func TestReceiveTurn_WithoutSend_ProtocolViolation(t *testing.T) {
	t.Parallel()

	srv := startLiveServer(t, func(conn *websocket.Conn, _ *http.Request) {
		var raw map[string]any
		readJSON(t, conn, &raw)
		sendSetupComplete(t, conn)
		<-conn.CloseRead(context.Background()).Done()
	})

	sess := openSession(t, srv)
	_, err := sess.ReceiveTurn(context.Background())
	if !errors.Is(err, speech.ErrProtocolViolation) {
		t.Errorf("ReceiveTurn without SendTurn = %v; want ErrProtocolViolation", err)
	}
}

// ── Multi-turn ────────────────────────────────────────────────────────────────

func TestSession_MultipleTurnsReuseConnection(t *testing.T) {
	t.Parallel()

	srv := startLiveServer(t, func(conn *websocket.Conn, _ *http.Request) {
		var raw map[string]any
		readJSON(t, conn, &raw)
		sendSetupComplete(t, conn)

		for i := range 3 {
			readJSON(t, conn, &raw)
			sendAudioChunk(t, conn, []byte{byte(i), byte(i)})
			sendTurnComplete(t, conn)
		}

		<-conn.CloseRead(context.Background()).Done()
	})

	sess := openSession(t, srv)
	for i := range 3 {
		if err := sess.SendTurn(context.Background(), "line"); err != nil {
			t.Fatalf("SendTurn %d: %v", i, err)
		}
		pcm, err := sess.ReceiveTurn(context.Background())
		if err != nil {
			t.Fatalf("ReceiveTurn %d: %v", i, err)
		}
		want := []byte{byte(i), byte(i)}
		if string(pcm) != string(want) {
			t.Errorf("turn %d pcm = %v; want %v", i, pcm, want)
		}
	}
}

// ── TestClose ─────────────────────────────────────────────────────────────────

func TestClose_Idempotent(t *testing.T) {
	t.Parallel()

	srv := startLiveServer(t, func(conn *websocket.Conn, _ *http.Request) {
		var raw map[string]any
		readJSON(t, conn, &raw)
		sendSetupComplete(t, conn)
		<-conn.CloseRead(context.Background()).Done()
	})

	sess := openSession(t, srv)

	if err := sess.Close(); err != nil {
		t.Fatalf("first Close() returned error: %v", err)
	}
	if err := sess.Close(); err != nil {
		t.Fatalf("second Close() returned error: %v", err)
	}
	if got := sess.State(); got != speech.StateDisconnected {
		t.Errorf("state after Close = %v; want %v", got, speech.StateDisconnected)
	}
}

package gemini

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// ── Protocol message types (outgoing) ─────────────────────────────────────────

type setupMessage struct {
	Setup setupConfig `json:"setup"`
}

type setupConfig struct {
	Model            string           `json:"model"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type generationConfig struct {
	ResponseModalities []string      `json:"responseModalities"`
	SpeechConfig       *speechConfig `json:"speechConfig,omitempty"`
}

type speechConfig struct {
	LanguageCode string      `json:"languageCode,omitempty"`
	VoiceConfig  voiceConfig `json:"voiceConfig"`
}

type voiceConfig struct {
	PrebuiltVoiceConfig prebuiltVoiceConfig `json:"prebuiltVoiceConfig"`
}

type prebuiltVoiceConfig struct {
	VoiceName string `json:"voiceName"`
}

type clientContentMessage struct {
	ClientContent clientContent `json:"clientContent"`
}

type clientContent struct {
	Turns        []contentTurn `json:"turns"`
	TurnComplete bool          `json:"turnComplete"`
}

type contentTurn struct {
	Role  string `json:"role"`
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MIMEType string `json:"mimeType,omitempty"`
	Data     string `json:"data"` // base64-encoded PCM
}

// ── Protocol message types (incoming) ─────────────────────────────────────────

type serverMessage struct {
	SetupComplete *json.RawMessage `json:"setupComplete,omitempty"`
	ServerContent *serverContent   `json:"serverContent,omitempty"`
}

type serverContent struct {
	ModelTurn    *modelTurn `json:"modelTurn,omitempty"`
	TurnComplete bool       `json:"turnComplete,omitempty"`
	Interrupted  bool       `json:"interrupted,omitempty"`
}

type modelTurn struct {
	Parts []part `json:"parts"`
}

// marshalJSON wraps json.Marshal so a serialization failure carries the
// package prefix.
func marshalJSON(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("gemini: marshal message: %w", err)
	}
	return data, nil
}

// ── Event parsing ─────────────────────────────────────────────────────────────

// eventKind classifies one inbound server message. The server emits an
// evolving, heterogeneous event vocabulary; anything this client does not
// consume is eventUnrecognized and skipped.
type eventKind int

const (
	eventUnrecognized eventKind = iota
	eventSetupComplete
	eventAudio
	eventTurnComplete
)

// serverEvent is the validated form of one server message. A single message
// may carry both audio chunks and the turn-complete flag; Kind reports the
// strongest signal (turn-complete > audio > setup > unrecognized) and Chunks
// holds every decodable audio chunk regardless of Kind.
type serverEvent struct {
	Kind         eventKind
	Chunks       [][]byte
	TurnComplete bool

	// BadChunks counts inline-data parts whose base64 payload failed to
	// decode. They are dropped; the caller only logs.
	BadChunks int
}

// parseServerEvent decodes one raw WebSocket frame into a serverEvent.
// A frame that is not valid JSON is reported as an error; a frame that is
// valid JSON but carries no recognized fields comes back as eventUnrecognized.
func parseServerEvent(data []byte) (serverEvent, error) {
	var msg serverMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return serverEvent{}, err
	}

	var ev serverEvent

	if msg.ServerContent != nil {
		sc := msg.ServerContent
		if sc.ModelTurn != nil {
			for _, p := range sc.ModelTurn.Parts {
				if p.InlineData == nil || p.InlineData.Data == "" {
					continue
				}
				pcm, err := base64.StdEncoding.DecodeString(p.InlineData.Data)
				if err != nil || len(pcm) == 0 {
					ev.BadChunks++
					continue
				}
				ev.Chunks = append(ev.Chunks, pcm)
			}
		}
		ev.TurnComplete = sc.TurnComplete
	}

	switch {
	case ev.TurnComplete:
		ev.Kind = eventTurnComplete
	case len(ev.Chunks) > 0:
		ev.Kind = eventAudio
	case msg.SetupComplete != nil:
		ev.Kind = eventSetupComplete
	default:
		ev.Kind = eventUnrecognized
	}
	return ev, nil
}

package wavio

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/podrun/podrun/pkg/speech"
)

var _ speech.Sink = (*TurnWriter)(nil)

// TurnWriter persists one voice's utterances as per-turn WAV files in Dir.
// File names embed the turn key and voice so the assembly stage can order
// them without extra bookkeeping.
type TurnWriter struct {
	Dir   string
	Voice string

	// Channels is the channel count of incoming PCM. Values below 2 mean
	// mono, which is widened to stereo; stereo input is written unchanged.
	Channels int
}

// WriteUtterance implements speech.Sink. An empty utterance is logged and
// skipped; no file is created and the returned path is empty.
func (w *TurnWriter) WriteUtterance(key int, pcm []byte) (string, error) {
	if len(pcm) == 0 {
		slog.Warn("empty utterance, no file written", "voice", w.Voice, "key", key)
		return "", nil
	}
	path := filepath.Join(w.Dir, fmt.Sprintf("turn_%04d_%s.wav", key, strings.ToLower(w.Voice)))
	var err error
	if w.Channels >= NumChannels {
		err = WriteStereoFile(path, pcm)
	} else {
		err = WriteFile(path, pcm)
	}
	if err != nil {
		return "", err
	}
	return path, nil
}

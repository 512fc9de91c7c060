// Package assemble stitches per-turn WAV files into the final podcast file.
package assemble

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/podrun/podrun/internal/wavio"
)

// Entry names one per-turn file and its position in the conversation.
// SortKey values are globally unique across all voices.
type Entry struct {
	SortKey int
	Path    string
}

// Order returns entries sorted by SortKey. The input order carries no
// meaning; synthesis runs per voice, so entries arrive grouped by speaker
// rather than by conversation position.
func Order(entries []Entry) []Entry {
	out := make([]Entry, len(entries))
	copy(out, entries)
	sort.Slice(out, func(i, j int) bool { return out[i].SortKey < out[j].SortKey })
	return out
}

// Combine concatenates the entries' audio in SortKey order, separated by gap
// of silence, and writes the result to outPath. Entries whose file cannot be
// read are logged and skipped; the podcast is assembled from whatever
// survived synthesis. Only a fully empty assembly is an error.
func Combine(outPath string, entries []Entry, gap time.Duration) error {
	if len(entries) == 0 {
		return fmt.Errorf("assemble: no entries")
	}

	pad := wavio.Silence(gap)
	var pcm []byte
	var used int

	for _, e := range Order(entries) {
		segment, err := wavio.ReadFile(e.Path)
		if err != nil {
			slog.Warn("skipping unreadable segment", "path", e.Path, "key", e.SortKey, "error", err)
			continue
		}
		if used > 0 {
			pcm = append(pcm, pad...)
		}
		pcm = append(pcm, segment...)
		used++
	}

	if used == 0 {
		return fmt.Errorf("assemble: no readable segments among %d entries", len(entries))
	}

	if err := wavio.WriteStereoFile(outPath, pcm); err != nil {
		return fmt.Errorf("assemble: %w", err)
	}
	slog.Info("podcast assembled",
		"path", outPath,
		"segments", used,
		"skipped", len(entries)-used,
		"duration", wavio.Duration(pcm),
	)
	return nil
}

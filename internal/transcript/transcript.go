// Package transcript models the speaker-tagged podcast script.
//
// A script is a plain-text dialogue where every spoken line starts with a
// speaker tag ("Speaker A:", "Speaker B:", "Speaker C:"). Language models
// tend to wrap such scripts in preamble, code fences, or commentary;
// Clean strips all of that by keeping only tagged lines.
package transcript

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

// Speaker identifies one of the podcast voices.
type Speaker string

const (
	SpeakerA Speaker = "Speaker A"
	SpeakerB Speaker = "Speaker B"
	SpeakerC Speaker = "Speaker C"
)

// Speakers lists every recognized speaker in tag order.
func Speakers() []Speaker {
	return []Speaker{SpeakerA, SpeakerB, SpeakerC}
}

// lineRe matches one spoken line. The text after the tag may be empty; such
// lines are dropped during parsing.
var lineRe = regexp.MustCompile(`^(Speaker [ABC]):\s*(.*)$`)

// Turn is one spoken line of the script. Index is the line's position in the
// cleaned script and is unique across all speakers, so interleaving the
// per-speaker audio back into conversation order only needs a sort on it.
type Turn struct {
	Index   int
	Speaker Speaker
	Text    string
}

// Clean strips everything that is not a tagged spoken line: LLM preambles,
// markdown fences, stage directions, and trailing commentary. The surviving
// lines keep their relative order. Every dropped non-empty line is logged so
// a script losing content does not go unnoticed.
func Clean(raw string) string {
	var out []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !lineRe.MatchString(line) {
			slog.Warn("dropping script line without speaker tag", "line", line)
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

// Parse cleans raw and splits it into turns. Tagged lines with no text after
// the colon are dropped. An input with no spoken lines at all is an error.
func Parse(raw string) ([]Turn, error) {
	var turns []Turn
	for _, line := range strings.Split(Clean(raw), "\n") {
		m := lineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		text := strings.TrimSpace(m[2])
		if text == "" {
			continue
		}
		turns = append(turns, Turn{
			Index:   len(turns),
			Speaker: Speaker(m[1]),
			Text:    text,
		})
	}
	if len(turns) == 0 {
		return nil, fmt.Errorf("transcript: no speaker lines found")
	}
	return turns, nil
}

// BySpeaker groups turns by speaker, preserving their order. Turns keep
// their global Index so conversation order survives the split.
func BySpeaker(turns []Turn) map[Speaker][]Turn {
	groups := make(map[Speaker][]Turn)
	for _, t := range turns {
		groups[t.Speaker] = append(groups[t.Speaker], t)
	}
	return groups
}

// Format renders turns back into script text, one tagged line per turn.
func Format(turns []Turn) string {
	var b strings.Builder
	for i, t := range turns {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s: %s", t.Speaker, t.Text)
	}
	return b.String()
}

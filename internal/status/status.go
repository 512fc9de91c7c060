// Package status publishes pipeline progress as a small JSON artifact that
// external watchers (dashboards, CI jobs) can poll.
package status

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// State is the coarse pipeline state exposed to watchers.
type State string

const (
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Update is the persisted status record.
type Update struct {
	Status    State     `json:"status"`
	Message   string    `json:"message"`
	Progress  int       `json:"progress"`
	Timestamp time.Time `json:"timestamp"`
}

// Reporter writes status updates to a file. The zero value with an empty Path
// is a no-op reporter, so callers never need to branch on whether status
// reporting is enabled.
//
// Writes go through a temp file and rename so a watcher never reads a
// half-written record.
type Reporter struct {
	Path string

	mu  sync.Mutex
	now func() time.Time // test hook
}

// Report publishes one update. Progress is clamped to [0, 100]. A write
// failure is logged, not returned: status is advisory and must never fail
// the pipeline.
func (r *Reporter) Report(state State, message string, progress int) {
	if r == nil || r.Path == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	progress = min(max(progress, 0), 100)
	now := time.Now
	if r.now != nil {
		now = r.now
	}
	u := Update{
		Status:    state,
		Message:   message,
		Progress:  progress,
		Timestamp: now().UTC(),
	}
	if err := writeAtomic(r.Path, u); err != nil {
		slog.Warn("status update not written", "path", r.Path, "error", err)
	}
}

// Running reports a running-state update.
func (r *Reporter) Running(message string, progress int) {
	r.Report(StateRunning, message, progress)
}

// Completed reports the terminal success state.
func (r *Reporter) Completed(message string) {
	r.Report(StateCompleted, message, 100)
}

// Failed reports the terminal failure state, keeping the last progress value
// out of the record so watchers see the failure message instead.
func (r *Reporter) Failed(message string) {
	r.Report(StateFailed, message, 0)
}

func writeAtomic(path string, u Update) error {
	data, err := json.MarshalIndent(u, "", "  ")
	if err != nil {
		return fmt.Errorf("status: marshal: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".status-*.json")
	if err != nil {
		return fmt.Errorf("status: temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("status: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("status: close: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("status: rename: %w", err)
	}
	return nil
}

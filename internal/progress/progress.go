// Package progress emits the machine-parsable event stream consumed by
// callers supervising a transcription run. Each event is a single line: a
// fixed literal prefix followed by a JSON object.
package progress

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// Prefix is the literal that introduces every progress line.
const Prefix = "PROGRESS_JSON:"

// Event types.
const (
	TypeInfo     = "info"
	TypeWarning  = "warning"
	TypeError    = "error"
	TypeComplete = "complete"
)

// Alignment status values reported on the completion event.
const (
	AlignmentOK     = "ok"
	AlignmentFailed = "failed"
)

// Event is one progress line payload.
type Event struct {
	Type             string `json:"type"`
	Progress         *int   `json:"progress,omitempty"`
	Status           string `json:"status,omitempty"`
	DetectedLanguage string `json:"detected_language,omitempty"`
	OutputPath       string `json:"output_path,omitempty"`
	Alignment        string `json:"alignment,omitempty"`
	ErrorCode        string `json:"error_code,omitempty"`
	Message          string `json:"message,omitempty"`
	Details          string `json:"details,omitempty"`
}

// Reporter serializes events to a single writer. Progress percentages are
// clamped so the reported value never decreases across a run.
type Reporter struct {
	mu   sync.Mutex
	w    io.Writer
	last int
}

// NewReporter creates a reporter writing to w.
func NewReporter(w io.Writer) *Reporter {
	return &Reporter{w: w}
}

// Emit writes one event line. Marshal failures are silently dropped; the
// progress stream is advisory and must never abort the run.
func (r *Reporter) Emit(ev Event) {
	if r == nil || r.w == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if ev.Progress != nil {
		if *ev.Progress < r.last {
			clamped := r.last
			ev.Progress = &clamped
		} else {
			r.last = *ev.Progress
		}
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	fmt.Fprintf(r.w, "%s%s\n", Prefix, payload)
}

// Info emits an informational status without a progress value.
func (r *Reporter) Info(status string) {
	r.Emit(Event{Type: TypeInfo, Status: status})
}

// InfoProgress emits an informational status with a progress percentage.
func (r *Reporter) InfoProgress(percent int, status string) {
	r.Emit(Event{Type: TypeInfo, Progress: &percent, Status: status})
}

// Warn emits a warning status. Warnings never carry progress.
func (r *Reporter) Warn(status string) {
	r.Emit(Event{Type: TypeWarning, Status: status})
}

// Error mirrors a hard failure onto the progress stream.
func (r *Reporter) Error(code, message, details string) {
	r.Emit(Event{Type: TypeError, ErrorCode: code, Message: message, Details: details})
}

package progress

import (
	"bufio"
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []Event {
	t.Helper()
	var events []Event
	scanner := bufio.NewScanner(buf)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, Prefix) {
			t.Fatalf("line missing prefix: %q", line)
		}
		var ev Event
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, Prefix)), &ev); err != nil {
			t.Fatalf("unmarshal %q: %v", line, err)
		}
		events = append(events, ev)
	}
	return events
}

func TestReporterEmitsPrefixedJSONLines(t *testing.T) {
	var buf bytes.Buffer
	r := NewReporter(&buf)
	r.InfoProgress(5, "Extracting audio using ffmpeg...")
	r.Warn("alignment degraded")
	r.Error("ASR_PROCESSING_FAILED", "engine exploded", "stack trace")

	events := decodeLines(t, &buf)
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	if events[0].Type != TypeInfo || *events[0].Progress != 5 {
		t.Errorf("first event = %+v", events[0])
	}
	if events[1].Type != TypeWarning || events[1].Progress != nil {
		t.Errorf("warning event = %+v", events[1])
	}
	if events[2].Type != TypeError || events[2].ErrorCode != "ASR_PROCESSING_FAILED" {
		t.Errorf("error event = %+v", events[2])
	}
}

func TestReporterProgressMonotonic(t *testing.T) {
	var buf bytes.Buffer
	r := NewReporter(&buf)
	r.InfoProgress(30, "a")
	r.InfoProgress(20, "b")
	r.InfoProgress(45, "c")

	events := decodeLines(t, &buf)
	got := []int{*events[0].Progress, *events[1].Progress, *events[2].Progress}
	want := []int{30, 30, 45}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("progress[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestNilReporterIsSafe(t *testing.T) {
	var r *Reporter
	r.Info("no panic")
	r.InfoProgress(10, "still no panic")
}

func TestCompleteEventShape(t *testing.T) {
	var buf bytes.Buffer
	r := NewReporter(&buf)
	percent := 100
	r.Emit(Event{
		Type:             TypeComplete,
		Progress:         &percent,
		Status:           "SRT file generated.",
		OutputPath:       "/tmp/out.srt",
		DetectedLanguage: "en",
		Alignment:        AlignmentOK,
	})
	events := decodeLines(t, &buf)
	ev := events[0]
	if ev.Type != TypeComplete || ev.OutputPath != "/tmp/out.srt" || ev.Alignment != AlignmentOK {
		t.Errorf("complete event = %+v", ev)
	}
}

package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{"input sentinel", fmt.Errorf("%w: /tmp/missing.mkv", ErrInputNotFound), CodeInputNotFound},
		{"ffmpeg sentinel", fmt.Errorf("%w: not on PATH", ErrFFmpegNotFound), CodeFFmpegNotFound},
		{"ffmpeg message", errors.New("ffmpeg executable not found in PATH"), CodeFFmpegNotFound},
		{"extraction sentinel", fmt.Errorf("%w: exit status 1", ErrExtraction), CodeAudioExtraction},
		{"extraction message", errors.New("ffmpeg audio extraction failed: exit status 1"), CodeAudioExtraction},
		{"oom lowercase", errors.New("runner: out of memory"), CodeOutOfMemory},
		{"oom mixed case", errors.New("CUDA error: Out Of Memory"), CodeOutOfMemory},
		{"oom wins over engine sentinel", fmt.Errorf("%w: CUDA out of memory on retry", ErrEngine), CodeOutOfMemory},
		{"engine sentinel", fmt.Errorf("%w: decode failed", ErrEngine), CodeASRFailed},
		{"anything else", errors.New("disk quota exceeded"), CodeProcessing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("Classify(%v).Code = %q, want %q", tt.err, got.Code, tt.wantCode)
			}
			if got.Err == nil {
				t.Error("classified error must keep its cause")
			}
		})
	}
}

func TestClassifyPassesThroughRunError(t *testing.T) {
	orig := &RunError{Code: CodeProcessing, Message: "boom"}
	wrapped := fmt.Errorf("outer: %w", orig)
	if got := Classify(wrapped); got != orig {
		t.Errorf("Classify must unwrap to the original *RunError, got %+v", got)
	}
}

func TestRunErrorPayloadJSON(t *testing.T) {
	runErr := &RunError{
		Code:    CodeOutOfMemory,
		Message: "Error: Ran out of memory during ASR processing.",
		Err:     errors.New("CUDA error: out of memory"),
	}
	var payload struct {
		ErrorCode string `json:"error_code"`
		Message   string `json:"message"`
		Details   string `json:"details"`
	}
	if err := json.Unmarshal([]byte(runErr.PayloadJSON()), &payload); err != nil {
		t.Fatalf("payload is not valid JSON: %v", err)
	}
	if payload.ErrorCode != CodeOutOfMemory {
		t.Errorf("error_code = %q", payload.ErrorCode)
	}
	if !strings.Contains(payload.Details, "out of memory") {
		t.Errorf("details = %q", payload.Details)
	}
}

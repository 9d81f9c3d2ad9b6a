package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Error codes surfaced in the error payload on hard failure.
const (
	CodeFFmpegNotFound  = "FFMPEG_NOT_FOUND"
	CodeAudioExtraction = "AUDIO_EXTRACTION_FAILED"
	CodeInputNotFound   = "INPUT_VIDEO_NOT_FOUND"
	CodeOutOfMemory     = "OUT_OF_MEMORY"
	CodeASRFailed       = "ASR_PROCESSING_FAILED"
	CodeProcessing      = "PROCESSING_FAILED"
)

// Sentinel errors tagging the failure class at its origin.
var (
	// ErrInputNotFound: the input video does not exist. Aborts before any
	// model work.
	ErrInputNotFound = errors.New("input video not found")
	// ErrFFmpegNotFound: the extraction tool is missing from PATH.
	ErrFFmpegNotFound = errors.New("ffmpeg not found")
	// ErrExtraction: the extraction tool invocation failed.
	ErrExtraction = errors.New("audio extraction failed")
	// ErrEngine: the transcription engine failed for a non-exhaustion
	// reason.
	ErrEngine = errors.New("asr processing failed")
)

// RunError is the classified hard failure returned by Run. It carries the
// payload written to the error channel.
type RunError struct {
	Code    string
	Message string
	Err     error
}

func (e *RunError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *RunError) Unwrap() error { return e.Err }

// Details returns the raw underlying error text for the payload.
func (e *RunError) Details() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// PayloadJSON renders the machine-readable error payload.
func (e *RunError) PayloadJSON() string {
	payload := struct {
		ErrorCode string `json:"error_code"`
		Message   string `json:"message"`
		Details   string `json:"details"`
	}{
		ErrorCode: e.Code,
		Message:   e.Message,
		Details:   e.Details(),
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Sprintf(`{"error_code":%q}`, e.Code)
	}
	return string(data)
}

// Classify maps an arbitrary pipeline error to its RunError. Sentinels win;
// otherwise the message decides, mirroring how the underlying engines
// surface their failures as free-form text.
func Classify(err error) *RunError {
	var runErr *RunError
	if errors.As(err, &runErr) {
		return runErr
	}

	message := err.Error()
	lower := strings.ToLower(message)

	switch {
	case errors.Is(err, ErrInputNotFound):
		return &RunError{Code: CodeInputNotFound, Message: fmt.Sprintf("Error: Input video file not found. Details: %s", message), Err: err}
	case errors.Is(err, ErrFFmpegNotFound) || strings.Contains(lower, "ffmpeg executable not found"):
		return &RunError{Code: CodeFFmpegNotFound, Message: fmt.Sprintf("Error: ffmpeg executable not found. Please ensure ffmpeg is installed and in PATH. Details: %s", message), Err: err}
	case errors.Is(err, ErrExtraction) || strings.Contains(lower, "audio extraction failed"):
		return &RunError{Code: CodeAudioExtraction, Message: fmt.Sprintf("Error: Audio extraction using ffmpeg failed. Details: %s", message), Err: err}
	case strings.Contains(lower, "out of memory"):
		return &RunError{Code: CodeOutOfMemory, Message: fmt.Sprintf("Error: Ran out of memory during ASR processing. Try a different compute type or ensure sufficient resources. Details: %s", message), Err: err}
	case errors.Is(err, ErrEngine):
		return &RunError{Code: CodeASRFailed, Message: fmt.Sprintf("An error occurred during ASR processing: %s", message), Err: err}
	default:
		return &RunError{Code: CodeProcessing, Message: fmt.Sprintf("An error occurred: %s", message), Err: err}
	}
}

// Package fallback implements the device fallback protocol shared by every
// heavyweight pipeline stage: run on the primary device, and if the attempt
// dies from accelerator memory exhaustion, release it and retry once on the
// CPU. Whether a non-recoverable failure aborts the run or merely skips the
// stage is the caller's policy.
package fallback

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"vid2srt/internal/logging"
)

// Device identifies a compute target for a stage attempt.
type Device string

const (
	DeviceCUDA Device = "cuda"
	DeviceCPU  Device = "cpu"
)

// Accelerator reports whether the device is one the exhaustion fallback
// applies to. Exhaustion on the CPU has nowhere left to go.
func (d Device) Accelerator() bool { return d == DeviceCUDA }

// Outcome tags how a stage concluded.
type Outcome int

const (
	// OutcomePrimary: the stage succeeded on the requested device.
	OutcomePrimary Outcome = iota
	// OutcomeFallback: the stage succeeded on the CPU after the primary
	// attempt exhausted accelerator memory.
	OutcomeFallback
	// OutcomeSkipped: the stage failed but its policy tolerates degradation;
	// the pipeline continues with pre-stage data.
	OutcomeSkipped
	// OutcomeFailed: the stage failed and its policy aborts the run.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomePrimary:
		return "primary"
	case OutcomeFallback:
		return "fallback"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeFailed:
		return "failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Policy decides what a non-recoverable stage failure means.
type Policy int

const (
	// PolicyHard aborts the run (transcription).
	PolicyHard Policy = iota
	// PolicySoft skips the stage and keeps going (alignment, diarization).
	PolicySoft
)

// Options describes one stage execution.
type Options[T any] struct {
	Stage  string
	Device Device
	Policy Policy
	Logger *slog.Logger
	// Run performs the stage on the given device. Each call must construct
	// its own device-targeted resources.
	Run func(ctx context.Context, device Device) (T, error)
	// Release frees every resource of a failed attempt on the given device.
	// It is invoked before the fallback attempt allocates anything, so the
	// two attempts are never resource-live simultaneously.
	Release func(device Device)
}

// IsOOM reports whether an error message signals resource exhaustion.
// Engines surface accelerator allocation failures as free-form text, so this
// is a case-insensitive substring match.
func IsOOM(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "out of memory")
}

// Execute runs the stage with the fallback protocol and returns its value,
// the outcome tag, and an error only when the outcome is OutcomeFailed.
// OutcomeSkipped returns the zero value with a nil error; the caller keeps
// its pre-stage data.
func Execute[T any](ctx context.Context, opts Options[T]) (T, Outcome, error) {
	var zero T
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logger.With(logging.String(logging.FieldStage, opts.Stage))

	device := opts.Device
	out, err := opts.Run(ctx, device)
	if err == nil {
		return out, OutcomePrimary, nil
	}

	if IsOOM(err) && device.Accelerator() {
		logger.Warn("device out of memory, retrying on cpu",
			logging.String(logging.FieldDevice, string(device)),
			logging.Error(err),
		)
		if opts.Release != nil {
			opts.Release(device)
		}
		device = DeviceCPU
		out, err = opts.Run(ctx, device)
		if err == nil {
			return out, OutcomeFallback, nil
		}
	}

	if opts.Policy == PolicySoft {
		logger.Warn("stage skipped",
			logging.String(logging.FieldOutcome, OutcomeSkipped.String()),
			logging.Error(err),
		)
		if opts.Release != nil {
			opts.Release(device)
		}
		return zero, OutcomeSkipped, nil
	}

	return zero, OutcomeFailed, fmt.Errorf("%s: %w", opts.Stage, err)
}

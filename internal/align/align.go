// Package align attaches word-level timing to transcribed segments by
// driving an external forced-alignment runner.
package align

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"vid2srt/internal/fallback"
	"vid2srt/internal/media"
	"vid2srt/internal/srt"
)

// Config captures runtime settings for the aligner.
type Config struct {
	// Command is the runner executable.
	Command string
	// ModelCacheDir overrides the runner's default model cache when set.
	ModelCacheDir string
	// Runner overrides command execution (tests).
	Runner media.Runner
}

// Aligner wraps one alignment invocation per device attempt.
type Aligner struct {
	cfg Config
	dir string
}

// New constructs an aligner.
func New(cfg Config) *Aligner {
	if cfg.Runner == nil {
		cfg.Runner = media.Run
	}
	return &Aligner{cfg: cfg}
}

type alignPayload struct {
	Segments []srt.Segment `json:"segments"`
}

// Align loads the language-specific alignment model on the given device and
// returns segments augmented with word timings. The input segments are not
// mutated.
func (a *Aligner) Align(ctx context.Context, device fallback.Device, audioPath, languageCode string, segments []srt.Segment) ([]srt.Segment, error) {
	dir, err := os.MkdirTemp("", "vid2srt-align-*")
	if err != nil {
		return nil, fmt.Errorf("create align scratch dir: %w", err)
	}
	a.dir = dir

	inputPath := filepath.Join(dir, "segments.json")
	outputPath := filepath.Join(dir, "aligned.json")
	data, err := json.Marshal(alignPayload{Segments: segments})
	if err != nil {
		return nil, fmt.Errorf("encode segments: %w", err)
	}
	if err := os.WriteFile(inputPath, data, 0o644); err != nil {
		return nil, fmt.Errorf("write segments: %w", err)
	}

	args := []string{
		"--audio", audioPath,
		"--segments", inputPath,
		"--language", languageCode,
		"--device", string(device),
		"--output", outputPath,
	}
	if a.cfg.ModelCacheDir != "" {
		args = append(args, "--model-cache", a.cfg.ModelCacheDir)
	}
	if err := a.cfg.Runner(ctx, a.cfg.Command, args...); err != nil {
		return nil, fmt.Errorf("alignment: %w", err)
	}

	raw, err := os.ReadFile(outputPath)
	if err != nil {
		return nil, fmt.Errorf("read alignment result: %w", err)
	}
	var payload alignPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("parse alignment result: %w", err)
	}
	return payload.Segments, nil
}

// Release removes the prior attempt's working directory.
func (a *Aligner) Release(device fallback.Device) {
	if a.dir == "" {
		return
	}
	_ = os.RemoveAll(a.dir)
	a.dir = ""
}

// Package diarize assigns speaker labels to aligned segments by driving an
// external diarization runner. The runner needs a Hugging Face token to
// fetch its gated segmentation models.
package diarize

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"vid2srt/internal/fallback"
	"vid2srt/internal/media"
	"vid2srt/internal/srt"
)

// Config captures runtime settings for the diarizer.
type Config struct {
	// Command is the runner executable.
	Command string
	// HFToken authenticates model downloads. Required.
	HFToken string
	// MinSpeakers / MaxSpeakers bound the speaker count search.
	MinSpeakers int
	MaxSpeakers int
	// Runner overrides command execution (tests).
	Runner media.Runner
}

// Diarizer wraps one diarization invocation per device attempt.
type Diarizer struct {
	cfg Config
	dir string
}

// New constructs a diarizer.
func New(cfg Config) *Diarizer {
	if cfg.MinSpeakers <= 0 {
		cfg.MinSpeakers = 1
	}
	if cfg.MaxSpeakers <= 0 {
		cfg.MaxSpeakers = 2
	}
	if cfg.Runner == nil {
		cfg.Runner = media.Run
	}
	return &Diarizer{cfg: cfg}
}

type diarizePayload struct {
	Segments []srt.Segment `json:"segments"`
}

// Assign runs diarization over the audio and returns the aligned segments
// with speaker labels attached at segment and word level.
func (d *Diarizer) Assign(ctx context.Context, device fallback.Device, audioPath string, segments []srt.Segment) ([]srt.Segment, error) {
	dir, err := os.MkdirTemp("", "vid2srt-diarize-*")
	if err != nil {
		return nil, fmt.Errorf("create diarize scratch dir: %w", err)
	}
	d.dir = dir

	inputPath := filepath.Join(dir, "aligned.json")
	outputPath := filepath.Join(dir, "diarized.json")
	data, err := json.Marshal(diarizePayload{Segments: segments})
	if err != nil {
		return nil, fmt.Errorf("encode segments: %w", err)
	}
	if err := os.WriteFile(inputPath, data, 0o644); err != nil {
		return nil, fmt.Errorf("write segments: %w", err)
	}

	args := []string{
		"--audio", audioPath,
		"--segments", inputPath,
		"--device", string(device),
		"--min-speakers", strconv.Itoa(d.cfg.MinSpeakers),
		"--max-speakers", strconv.Itoa(d.cfg.MaxSpeakers),
		"--hf-token", d.cfg.HFToken,
		"--output", outputPath,
	}
	if err := d.cfg.Runner(ctx, d.cfg.Command, args...); err != nil {
		return nil, fmt.Errorf("diarization: %w", err)
	}

	raw, err := os.ReadFile(outputPath)
	if err != nil {
		return nil, fmt.Errorf("read diarization result: %w", err)
	}
	var payload diarizePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("parse diarization result: %w", err)
	}
	return payload.Segments, nil
}

// Release removes the prior attempt's working directory.
func (d *Diarizer) Release(device fallback.Device) {
	if d.dir == "" {
		return
	}
	_ = os.RemoveAll(d.dir)
	d.dir = ""
}

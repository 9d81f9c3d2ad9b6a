package engine

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"vid2srt/internal/fallback"
	"vid2srt/internal/media"
	"vid2srt/internal/segment"
)

// Direct engine model identifiers. Variant selection keys off the declared
// language; anything unrecognized gets the default multilingual model.
const (
	directDefaultModel  = "large-v3-turbo"
	directJapaneseModel = "kotoba-tech/kotoba-whisper-v2.0-faster"
	directKoreanModel   = "arc-r/faster-whisper-large-v2-Ko"

	directChunkSize = 10
	cpuComputeType  = "float32"
)

// DirectConfig captures runtime settings for the direct engine.
type DirectConfig struct {
	// Command is the runner executable.
	Command string
	// Language is the declared language hint; empty means auto-detect.
	Language string
	// BatchSize is the preferred inference batch size.
	BatchSize int
	// ComputeType is the model precision ("float16", "int8", ...).
	ComputeType string
	// Threads is the CPU thread count handed to the runner.
	Threads int
	// ModelCacheDir overrides the runner's default model cache when set.
	ModelCacheDir string
	// Runner overrides command execution (tests).
	Runner media.Runner
}

// Direct is the single-pass batched engine used for every language the
// segmented engine does not cover. Its output is already roughly
// sentence-scoped, so it bypasses the merger.
type Direct struct {
	cfg     DirectConfig
	scratch scratch
}

// NewDirect constructs the direct engine adapter.
func NewDirect(cfg DirectConfig) *Direct {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 4
	}
	if cfg.ComputeType == "" {
		cfg.ComputeType = "float16"
	}
	if cfg.Runner == nil {
		cfg.Runner = media.Run
	}
	return &Direct{cfg: cfg}
}

// Name identifies the adapter in logs and events.
func (e *Direct) Name() string { return "whisper" }

// ModelForLanguage picks the model variant for a declared language.
func ModelForLanguage(lang string) string {
	switch strings.ToLower(strings.TrimSpace(lang)) {
	case "ja":
		return directJapaneseModel
	case "ko":
		return directKoreanModel
	default:
		return directDefaultModel
	}
}

type directSegment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

type directPayload struct {
	Language string          `json:"language"`
	Segments []directSegment `json:"segments"`
}

// Transcribe runs the engine on the given device. The CPU retry uses a
// safer compute type and half the batch size: the point of falling back is
// fitting in memory, not speed.
func (e *Direct) Transcribe(ctx context.Context, device fallback.Device, audioPath string) (Result, error) {
	dir, err := e.scratch.create()
	if err != nil {
		return Result{}, err
	}
	resultPath := filepath.Join(dir, "result.json")

	computeType := e.cfg.ComputeType
	batchSize := e.cfg.BatchSize
	if device == fallback.DeviceCPU {
		computeType = cpuComputeType
		batchSize = max(1, e.cfg.BatchSize/2)
	}

	args := []string{
		"--model", ModelForLanguage(e.cfg.Language),
		"--device", deviceString(device),
		"--compute-type", computeType,
		"--batch-size", strconv.Itoa(batchSize),
		"--chunk-size", strconv.Itoa(directChunkSize),
		"--audio", audioPath,
		"--output", resultPath,
	}
	if e.cfg.Language != "" {
		args = append(args, "--language", e.cfg.Language)
	}
	if e.cfg.Threads > 0 {
		args = append(args, "--threads", strconv.Itoa(e.cfg.Threads))
	}
	if e.cfg.ModelCacheDir != "" {
		args = append(args, "--download-root", e.cfg.ModelCacheDir)
	}

	if err := e.cfg.Runner(ctx, e.cfg.Command, args...); err != nil {
		return Result{}, fmt.Errorf("whisper transcription: %w", err)
	}

	var payload directPayload
	if err := readResultFile(resultPath, &payload); err != nil {
		return Result{}, fmt.Errorf("whisper: %w", err)
	}

	segments := make([]segment.Raw, 0, len(payload.Segments))
	for _, seg := range payload.Segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		segments = append(segments, segment.Raw{
			Text:    text,
			StartMS: int64(math.Round(seg.Start * 1000)),
			EndMS:   int64(math.Round(seg.End * 1000)),
		})
	}
	return Result{Segments: segments, Language: payload.Language}, nil
}

// Release frees the prior attempt's working state.
func (e *Direct) Release(device fallback.Device) {
	e.scratch.release()
}

package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"vid2srt/internal/fallback"
	"vid2srt/internal/media"
	"vid2srt/internal/segment"
)

// Segmented engine model identifiers. The runner loads a voice-activity
// segmenter, punctuation restorer, and speaker tagger alongside the acoustic
// model, so its output arrives one record per detected sentence.
const (
	segmentedModel     = "paraformer-zh"
	segmentedVADModel  = "fsmn-vad"
	segmentedPuncModel = "ct-punc"
	segmentedSpkModel  = "cam++"
	segmentedLanguage  = "zh"
)

// SegmentedConfig captures runtime settings for the segmented engine.
type SegmentedConfig struct {
	// Command is the runner executable.
	Command string
	// Threads is the worker thread count handed to the runner.
	Threads int
	// MaxSegmentMS caps single-segment duration for the runner's internal
	// VAD merging.
	MaxSegmentMS int64
	// ModelCacheDir overrides the runner's default model cache when set.
	ModelCacheDir string
	// Runner overrides command execution (tests).
	Runner media.Runner
}

// Segmented is the sentence-granular engine selected for Chinese audio.
type Segmented struct {
	cfg     SegmentedConfig
	scratch scratch
}

// NewSegmented constructs the segmented engine adapter.
func NewSegmented(cfg SegmentedConfig) *Segmented {
	if cfg.MaxSegmentMS <= 0 {
		cfg.MaxSegmentMS = 10000
	}
	if cfg.Runner == nil {
		cfg.Runner = media.Run
	}
	return &Segmented{cfg: cfg}
}

// Name identifies the adapter in logs and events.
func (e *Segmented) Name() string { return "funasr" }

// segmentedSentence mirrors one sentence_info record in the runner output.
type segmentedSentence struct {
	Text  string    `json:"text"`
	Start int64     `json:"start"`
	End   int64     `json:"end"`
	Spk   speakerID `json:"spk"`
}

type segmentedPayload struct {
	Sentences []segmentedSentence `json:"sentence_info"`
}

// Transcribe runs the engine on the given device and returns raw sentence
// segments with millisecond timing and optional engine-internal speaker ids.
func (e *Segmented) Transcribe(ctx context.Context, device fallback.Device, audioPath string) (Result, error) {
	dir, err := e.scratch.create()
	if err != nil {
		return Result{}, err
	}
	resultPath := filepath.Join(dir, "result.json")

	args := []string{
		"--model", segmentedModel,
		"--vad-model", segmentedVADModel,
		"--punc-model", segmentedPuncModel,
		"--spk-model", segmentedSpkModel,
		"--device", deviceString(device),
		"--vad-max-segment-ms", strconv.FormatInt(e.cfg.MaxSegmentMS, 10),
		"--sentence-timestamps",
		"--audio", audioPath,
		"--output", resultPath,
	}
	if e.cfg.Threads > 0 {
		args = append(args, "--ncpu", strconv.Itoa(e.cfg.Threads))
	}
	if e.cfg.ModelCacheDir != "" {
		args = append(args, "--model-cache", e.cfg.ModelCacheDir)
	}

	if err := e.cfg.Runner(ctx, e.cfg.Command, args...); err != nil {
		return Result{}, fmt.Errorf("funasr transcription: %w", err)
	}

	var payload segmentedPayload
	if err := readResultFile(resultPath, &payload); err != nil {
		return Result{}, fmt.Errorf("funasr: %w", err)
	}

	segments := make([]segment.Raw, 0, len(payload.Sentences))
	for _, sentence := range payload.Sentences {
		text := strings.TrimSpace(sentence.Text)
		if text == "" {
			continue
		}
		segments = append(segments, segment.Raw{
			Text:    text,
			StartMS: sentence.Start,
			EndMS:   sentence.End,
			Speaker: string(sentence.Spk),
		})
	}
	return Result{Segments: segments, Language: segmentedLanguage}, nil
}

// Release frees the prior attempt's working state.
func (e *Segmented) Release(device fallback.Device) {
	e.scratch.release()
}

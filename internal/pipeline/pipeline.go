// Package pipeline orchestrates the transcription run: extract audio,
// transcribe through the language-selected engine, align, optionally
// diarize, and write SRT. The pipeline is strictly sequential; only
// transcription failure is fatal, and every heavyweight stage runs through
// the device fallback executor.
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"vid2srt/internal/align"
	"vid2srt/internal/config"
	"vid2srt/internal/deps"
	"vid2srt/internal/diarize"
	"vid2srt/internal/engine"
	"vid2srt/internal/fallback"
	"vid2srt/internal/language"
	"vid2srt/internal/logging"
	"vid2srt/internal/media"
	"vid2srt/internal/modelcache"
	"vid2srt/internal/progress"
	"vid2srt/internal/runlog"
	"vid2srt/internal/segment"
	"vid2srt/internal/srt"
)

// Transcriber is the engine adapter contract: audio in, raw timestamped
// segments plus a language code out.
type Transcriber interface {
	Name() string
	Transcribe(ctx context.Context, device fallback.Device, audioPath string) (engine.Result, error)
	Release(device fallback.Device)
}

// WordAligner attaches word-level timing to segments.
type WordAligner interface {
	Align(ctx context.Context, device fallback.Device, audioPath, languageCode string, segments []srt.Segment) ([]srt.Segment, error)
	Release(device fallback.Device)
}

// SpeakerAssigner attaches speaker labels to aligned segments.
type SpeakerAssigner interface {
	Assign(ctx context.Context, device fallback.Device, audioPath string, segments []srt.Segment) ([]srt.Segment, error)
	Release(device fallback.Device)
}

// Options wires a pipeline together. Only Config is required; everything
// else has working defaults and exists so tests can substitute
// collaborators.
type Options struct {
	Config   *config.Config
	Logger   *slog.Logger
	Reporter *progress.Reporter
	Store    *runlog.Store
	// SubtitleOut receives the rendered SRT when no output path is
	// configured. Defaults to stdout.
	SubtitleOut io.Writer
	// Runner executes external commands for ffmpeg and the default stage
	// adapters.
	Runner media.Runner
	// Engine, Aligner, and Diarizer override the stage adapters.
	Engine   Transcriber
	Aligner  WordAligner
	Diarizer SpeakerAssigner
	// FindFFmpeg overrides extraction tool resolution.
	FindFFmpeg func() (string, error)
}

// Summary reports how a run concluded.
type Summary struct {
	RunID            string
	DetectedLanguage string
	OutputPath       string
	AlignmentFailed  bool
	Engine           string
	Transcription    fallback.Outcome
	Alignment        fallback.Outcome
	Diarization      fallback.Outcome
	DiarizationRan   bool
	// Speakers maps each written subtitle index to the speaker carried by
	// its merge group; empty string means unknown. Auxiliary data, never
	// part of the subtitle output itself.
	Speakers     []string
	SegmentCount int
}

// Pipeline is a single-use orchestrator for one video.
type Pipeline struct {
	cfg        *config.Config
	logger     *slog.Logger
	reporter   *progress.Reporter
	store      *runlog.Store
	subtitles  io.Writer
	runner     media.Runner
	engine     Transcriber
	aligner    WordAligner
	diarizer   SpeakerAssigner
	findFFmpeg func() (string, error)
}

// New constructs a pipeline from options.
func New(opts Options) *Pipeline {
	p := &Pipeline{
		cfg:        opts.Config,
		logger:     logging.WithComponent(opts.Logger, "pipeline"),
		reporter:   opts.Reporter,
		store:      opts.Store,
		subtitles:  opts.SubtitleOut,
		runner:     opts.Runner,
		engine:     opts.Engine,
		aligner:    opts.Aligner,
		diarizer:   opts.Diarizer,
		findFFmpeg: opts.FindFFmpeg,
	}
	if p.subtitles == nil {
		p.subtitles = os.Stdout
	}
	if p.runner == nil {
		p.runner = media.Run
	}
	if p.findFFmpeg == nil {
		p.findFFmpeg = deps.FindFFmpeg
	}
	if p.aligner == nil {
		p.aligner = alignAdapter(p.cfg, p.runner)
	}
	if p.diarizer == nil {
		p.diarizer = diarizeAdapter(p.cfg, p.runner)
	}
	return p
}

// Run executes the full pipeline for one video. On hard failure it emits
// the mirrored error event and returns a classified *RunError; the caller
// owns the error-channel payload and the process exit code.
func (p *Pipeline) Run(ctx context.Context, videoPath string) (*Summary, error) {
	summary := &Summary{}

	var record *runlog.Run
	if p.store != nil {
		record = &runlog.Run{InputPath: videoPath, Language: p.cfg.Transcription.Language}
		if err := p.store.Begin(ctx, record); err != nil {
			p.logger.Warn("run history unavailable", logging.Error(err))
			record = nil
		} else {
			summary.RunID = record.ID
		}
	}

	err := p.run(ctx, videoPath, summary)

	if record != nil {
		record.OutputPath = summary.OutputPath
		if summary.DetectedLanguage != "" {
			record.Language = summary.DetectedLanguage
		}
		record.Transcription = summary.Transcription.String()
		record.AlignOutcome = summary.Alignment.String()
		if summary.DiarizationRan {
			record.DiarizeOutcome = summary.Diarization.String()
		}
		if summary.AlignmentFailed {
			record.Alignment = progress.AlignmentFailed
		} else {
			record.Alignment = progress.AlignmentOK
		}
		if err != nil {
			record.Status = runlog.StatusFailed
			record.ErrorCode = Classify(err).Code
		} else {
			record.Status = runlog.StatusCompleted
		}
		if finishErr := p.store.Finish(ctx, record); finishErr != nil {
			p.logger.Warn("run history update failed", logging.Error(finishErr))
		}
	}

	if err != nil {
		runErr := Classify(err)
		p.logger.Error("run failed",
			logging.String("error_code", runErr.Code),
			logging.Error(err),
		)
		p.reporter.Emit(progress.Event{
			Type:      progress.TypeError,
			ErrorCode: runErr.Code,
			Message:   runErr.Message,
			Details:   runErr.Details(),
		})
		return summary, runErr
	}
	return summary, nil
}

func (p *Pipeline) run(ctx context.Context, videoPath string, summary *Summary) error {
	cfg := p.cfg

	if _, err := os.Stat(videoPath); err != nil {
		return fmt.Errorf("%w: %s", ErrInputNotFound, videoPath)
	}

	ffmpegPath, err := p.findFFmpeg()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFFmpegNotFound, err)
	}
	p.reporter.Info("Using ffmpeg at: " + ffmpegPath)

	audioPath, err := media.TempWAV()
	if err != nil {
		return err
	}
	defer p.removeTempAudio(audioPath)
	p.reporter.Info("Temporary audio file will be: " + audioPath)

	p.reporter.InfoProgress(5, "Extracting audio using ffmpeg...")
	if err := media.ExtractAudio(ctx, p.runner, ffmpegPath, videoPath, audioPath, cfg.Transcription.Threads); err != nil {
		return fmt.Errorf("%w: %v", ErrExtraction, err)
	}
	p.reporter.InfoProgress(15, "Audio extraction complete.")

	device := fallback.DeviceCPU
	if cfg.Transcription.CUDAEnabled {
		device = fallback.DeviceCUDA
	}
	p.reporter.InfoProgress(18, fmt.Sprintf("Using device: %s.", device))

	cache, err := modelcache.Acquire(cfg.Transcription.ModelCacheDir)
	if err != nil {
		// Engines fall back to their own default caches.
		p.logger.Warn("model cache unavailable", logging.Error(err))
		p.reporter.Warn(fmt.Sprintf("Failed to access model cache path %s: %v. Using default.", cfg.Transcription.ModelCacheDir, err))
	}
	defer func() {
		if err := cache.Release(); err != nil {
			p.logger.Warn("model cache unlock failed", logging.Error(err))
		}
	}()

	// Engine selection happens once, here; it is not revisited mid-run.
	eng, segmented := p.selectEngine()
	summary.Engine = eng.Name()
	p.logger.Info("engine selected",
		logging.String("engine", eng.Name()),
		logging.String(logging.FieldDevice, string(device)),
	)

	p.reporter.InfoProgress(20, fmt.Sprintf("Initializing %s engine...", eng.Name()))
	p.reporter.InfoProgress(35, "Transcribing...")
	transcribed, outcome, err := fallback.Execute(ctx, fallback.Options[engine.Result]{
		Stage:  "transcribe",
		Device: device,
		Policy: fallback.PolicyHard,
		Logger: p.logger,
		Run: func(ctx context.Context, attempt fallback.Device) (engine.Result, error) {
			if attempt != device {
				p.reporter.Warn("GPU out of memory during transcription. Retrying on CPU...")
			}
			return eng.Transcribe(ctx, attempt, audioPath)
		},
		Release: eng.Release,
	})
	summary.Transcription = outcome
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEngine, err)
	}
	// Stage boundary: nothing of the transcription attempt stays resident
	// while alignment loads its model.
	eng.Release(device)

	detected := transcribed.Language
	if detected == "" {
		detected = cfg.Transcription.Language
	}
	summary.DetectedLanguage = detected

	merged := segment.Merge(transcribed.Segments, segment.MergeOptions{
		Enabled:            segmented && cfg.Merge.Enabled,
		DiarizationEnabled: cfg.Diarization.Enabled,
		MaxGapMS:           cfg.Merge.MaxGapMS,
		MaxDurationMS:      cfg.Merge.MaxDurationMS,
	})
	subs, speakers := segment.Subtitles(merged)
	summary.Speakers = speakers
	summary.SegmentCount = len(subs)
	p.reporter.Emit(progress.Event{
		Type:             progress.TypeInfo,
		Progress:         intPtr(65),
		Status:           "Transcription complete.",
		DetectedLanguage: detected,
	})

	if len(subs) == 0 {
		p.reporter.Info("No segments to align; writing empty subtitle output.")
		return p.write(srt.Result{Segments: nil, Language: detected}, summary)
	}

	segments := make([]srt.Segment, len(subs))
	for i, sub := range subs {
		segments[i] = srt.Segment{Text: sub.Text, Start: sub.StartSec, End: sub.EndSec}
	}

	// Alignment: soft failure keeps the pre-alignment segments.
	p.reporter.InfoProgress(70, "Aligning segments...")
	aligned, alignOutcome, _ := fallback.Execute(ctx, fallback.Options[[]srt.Segment]{
		Stage:  "align",
		Device: device,
		Policy: fallback.PolicySoft,
		Logger: p.logger,
		Run: func(ctx context.Context, attempt fallback.Device) ([]srt.Segment, error) {
			if attempt != device {
				p.reporter.Warn("GPU out of memory during alignment. Retrying on CPU...")
			}
			return p.aligner.Align(ctx, attempt, audioPath, detected, segments)
		},
		Release: p.aligner.Release,
	})
	summary.Alignment = alignOutcome
	alignmentOK := alignOutcome == fallback.OutcomePrimary || alignOutcome == fallback.OutcomeFallback
	if alignmentOK {
		segments = aligned
		p.aligner.Release(device)
		p.reporter.InfoProgress(75, "Alignment complete.")
	} else {
		summary.AlignmentFailed = true
		p.reporter.Warn("Alignment failed. Proceeding with unaligned segments.")
	}

	// Diarization: entered only when requested, a credential is present,
	// and alignment produced word timings to attach speakers to.
	switch {
	case !cfg.Diarization.Enabled:
		// Not requested; nothing to report.
	case cfg.Diarization.HFToken == "":
		p.reporter.Warn("Diarization enabled but Hugging Face token not provided. Skipping diarization.")
	case !alignmentOK:
		p.logger.Info("diarization skipped: alignment unavailable")
	default:
		p.reporter.InfoProgress(80, "Performing diarization...")
		diarized, diarizeOutcome, _ := fallback.Execute(ctx, fallback.Options[[]srt.Segment]{
			Stage:  "diarize",
			Device: device,
			Policy: fallback.PolicySoft,
			Logger: p.logger,
			Run: func(ctx context.Context, attempt fallback.Device) ([]srt.Segment, error) {
				if attempt != device {
					p.reporter.Warn("GPU out of memory during diarization. Retrying on CPU...")
				}
				return p.diarizer.Assign(ctx, attempt, audioPath, segments)
			},
			Release: p.diarizer.Release,
		})
		summary.Diarization = diarizeOutcome
		summary.DiarizationRan = true
		if diarizeOutcome == fallback.OutcomePrimary || diarizeOutcome == fallback.OutcomeFallback {
			segments = diarized
			p.diarizer.Release(device)
			p.reporter.InfoProgress(85, "Diarization complete.")
		} else {
			p.reporter.Warn("Diarization failed. Proceeding without speaker labels.")
		}
	}

	return p.write(srt.Result{Segments: segments, Language: detected}, summary)
}

// write backfills the language, renders SRT, and emits the terminal event.
func (p *Pipeline) write(result srt.Result, summary *Summary) error {
	if result.Language == "" {
		result.Language = p.cfg.Transcription.Language
	}
	summary.DetectedLanguage = result.Language

	p.reporter.InfoProgress(90, "Generating SRT content...")
	var buf bytes.Buffer
	if err := srt.WriteResult(&buf, result, srt.Options{
		MaxLineCount:   p.cfg.Output.MaxLineCount,
		HighlightWords: p.cfg.Output.HighlightWords,
	}); err != nil {
		return fmt.Errorf("render srt: %w", err)
	}
	p.reporter.InfoProgress(95, "SRT content generated.")

	alignment := progress.AlignmentOK
	if summary.AlignmentFailed {
		alignment = progress.AlignmentFailed
	}

	if path := p.cfg.Output.Path; path != "" {
		if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
			return fmt.Errorf("write srt file: %w", err)
		}
		summary.OutputPath = path
		p.reporter.Emit(progress.Event{
			Type:             progress.TypeComplete,
			Progress:         intPtr(100),
			Status:           "SRT file generated.",
			OutputPath:       path,
			DetectedLanguage: result.Language,
			Alignment:        alignment,
		})
		return nil
	}

	if _, err := p.subtitles.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("write srt to output: %w", err)
	}
	p.reporter.Emit(progress.Event{
		Type:             progress.TypeComplete,
		Progress:         intPtr(100),
		Status:           "SRT content written to standard output.",
		DetectedLanguage: result.Language,
		Alignment:        alignment,
	})
	return nil
}

// selectEngine picks the adapter by declared language: Chinese routes to
// the segmented engine, everything else to the direct engine. The second
// return value reports whether the merger applies to the engine's output.
func (p *Pipeline) selectEngine() (Transcriber, bool) {
	segmented := language.IsChinese(p.cfg.Transcription.Language)
	if p.engine != nil {
		return p.engine, segmented
	}
	cfg := p.cfg
	if segmented {
		return engine.NewSegmented(engine.SegmentedConfig{
			Command:       cfg.Runners.FunASR,
			Threads:       cfg.Transcription.Threads,
			ModelCacheDir: cfg.Transcription.ModelCacheDir,
			Runner:        p.runner,
		}), true
	}
	return engine.NewDirect(engine.DirectConfig{
		Command:       cfg.Runners.Whisper,
		Language:      cfg.Transcription.Language,
		BatchSize:     cfg.Transcription.BatchSize,
		ComputeType:   cfg.Transcription.ComputeType,
		Threads:       cfg.Transcription.Threads,
		ModelCacheDir: cfg.Transcription.ModelCacheDir,
		Runner:        p.runner,
	}), false
}

func alignAdapter(cfg *config.Config, runner media.Runner) WordAligner {
	return align.New(align.Config{
		Command:       cfg.Runners.Align,
		ModelCacheDir: cfg.Transcription.ModelCacheDir,
		Runner:        runner,
	})
}

func diarizeAdapter(cfg *config.Config, runner media.Runner) SpeakerAssigner {
	return diarize.New(diarize.Config{
		Command:     cfg.Runners.Diarize,
		HFToken:     cfg.Diarization.HFToken,
		MinSpeakers: cfg.Diarization.MinSpeakers,
		MaxSpeakers: cfg.Diarization.MaxSpeakers,
		Runner:      runner,
	})
}

// removeTempAudio deletes the extraction artifact. Best effort: failure is
// logged and reported as a warning, never escalated.
func (p *Pipeline) removeTempAudio(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		p.logger.Warn("temp audio cleanup failed", logging.Error(err))
		p.reporter.Warn(fmt.Sprintf("Failed to delete temporary audio file %s: %v", path, err))
	}
}

func intPtr(v int) *int { return &v }

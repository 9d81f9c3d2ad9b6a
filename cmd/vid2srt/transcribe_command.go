package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"vid2srt/internal/config"
	"vid2srt/internal/logging"
	"vid2srt/internal/memlimit"
	"vid2srt/internal/pipeline"
	"vid2srt/internal/progress"
	"vid2srt/internal/runlog"
)

func newTranscribeCommand(ctx *commandContext) *cobra.Command {
	var (
		outputPath     string
		languageFlag   string
		cuda           bool
		batchSize      int
		computeType    string
		threads        int
		modelCache     string
		mergeEnabled   bool
		maxGapMS       int64
		maxDurationMS  int64
		diarize        bool
		hfToken        string
		minSpeakers    int
		maxSpeakers    int
		maxLineCount   int
		highlightWords bool
	)

	cmd := &cobra.Command{
		Use:   "transcribe <video>",
		Short: "Transcribe a video file to SRT subtitles",
		Long: `Transcribe extracts the audio track from a video file, runs speech
recognition, aligns word timings, and writes an SRT subtitle file.

Chinese audio routes to the sentence-segmenting engine and passes through
the segment merger; every other language uses the direct engine. With no
--output the SRT text goes to stdout and progress events move to stderr.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := applyTranscribeFlags(cmd, cfg, transcribeFlags{
				outputPath:     outputPath,
				language:       languageFlag,
				cuda:           cuda,
				batchSize:      batchSize,
				computeType:    computeType,
				threads:        threads,
				modelCache:     modelCache,
				mergeEnabled:   mergeEnabled,
				maxGapMS:       maxGapMS,
				maxDurationMS:  maxDurationMS,
				diarize:        diarize,
				hfToken:        hfToken,
				minSpeakers:    minSpeakers,
				maxSpeakers:    maxSpeakers,
				maxLineCount:   maxLineCount,
				highlightWords: highlightWords,
			}); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runTranscribe(cmd, cfg, args[0])
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&outputPath, "output", "o", "", "SRT output path (default: stdout)")
	flags.StringVarP(&languageFlag, "language", "l", "", "Source language code (default: auto-detect)")
	flags.BoolVar(&cuda, "cuda", false, "Use the CUDA accelerator as the primary device")
	flags.IntVar(&batchSize, "batch-size", 0, "Inference batch size for the direct engine")
	flags.StringVar(&computeType, "compute-type", "", "Model precision for the direct engine")
	flags.IntVar(&threads, "threads", 0, "CPU thread count for external runners")
	flags.StringVar(&modelCache, "model-cache", "", "Shared model download directory")
	flags.BoolVar(&mergeEnabled, "merge", true, "Merge short same-speaker segments (segmented engine only)")
	flags.Int64Var(&maxGapMS, "max-gap-ms", 0, "Largest silence bridged by the merger, in milliseconds")
	flags.Int64Var(&maxDurationMS, "max-duration-ms", 0, "Merged segment duration cap, in milliseconds")
	flags.BoolVar(&diarize, "diarize", false, "Label speakers (requires a Hugging Face token)")
	flags.StringVar(&hfToken, "hf-token", "", "Hugging Face token for diarization models")
	flags.IntVar(&minSpeakers, "min-speakers", 0, "Lower bound for the diarization speaker search")
	flags.IntVar(&maxSpeakers, "max-speakers", 0, "Upper bound for the diarization speaker search")
	flags.IntVar(&maxLineCount, "max-line-count", 0, "Text lines per subtitle cue")
	flags.BoolVar(&highlightWords, "highlight-words", false, "Emit one cue per word with the spoken word underlined")

	return cmd
}

type transcribeFlags struct {
	outputPath     string
	language       string
	cuda           bool
	batchSize      int
	computeType    string
	threads        int
	modelCache     string
	mergeEnabled   bool
	maxGapMS       int64
	maxDurationMS  int64
	diarize        bool
	hfToken        string
	minSpeakers    int
	maxSpeakers    int
	maxLineCount   int
	highlightWords bool
}

// applyTranscribeFlags overlays explicitly set flags onto the loaded config.
func applyTranscribeFlags(cmd *cobra.Command, cfg *config.Config, values transcribeFlags) error {
	flags := cmd.Flags()
	if flags.Changed("output") {
		expanded, err := config.ExpandPath(values.outputPath)
		if err != nil {
			return err
		}
		cfg.Output.Path = expanded
	}
	if flags.Changed("language") {
		cfg.Transcription.Language = values.language
	}
	if flags.Changed("cuda") {
		cfg.Transcription.CUDAEnabled = values.cuda
	}
	if flags.Changed("batch-size") {
		cfg.Transcription.BatchSize = values.batchSize
	}
	if flags.Changed("compute-type") {
		cfg.Transcription.ComputeType = values.computeType
	}
	if flags.Changed("threads") {
		cfg.Transcription.Threads = values.threads
	}
	if flags.Changed("model-cache") {
		expanded, err := config.ExpandPath(values.modelCache)
		if err != nil {
			return err
		}
		cfg.Transcription.ModelCacheDir = expanded
	}
	if flags.Changed("merge") {
		cfg.Merge.Enabled = values.mergeEnabled
	}
	if flags.Changed("max-gap-ms") {
		cfg.Merge.MaxGapMS = values.maxGapMS
	}
	if flags.Changed("max-duration-ms") {
		cfg.Merge.MaxDurationMS = values.maxDurationMS
	}
	if flags.Changed("diarize") {
		cfg.Diarization.Enabled = values.diarize
	}
	if flags.Changed("hf-token") {
		cfg.Diarization.HFToken = values.hfToken
	}
	if flags.Changed("min-speakers") {
		cfg.Diarization.MinSpeakers = values.minSpeakers
	}
	if flags.Changed("max-speakers") {
		cfg.Diarization.MaxSpeakers = values.maxSpeakers
	}
	if flags.Changed("max-line-count") {
		cfg.Output.MaxLineCount = values.maxLineCount
	}
	if flags.Changed("highlight-words") {
		cfg.Output.HighlightWords = values.highlightWords
	}
	return nil
}

func runTranscribe(cmd *cobra.Command, cfg *config.Config, videoPath string) error {
	logger, err := logging.New(logging.Options{
		Level:    cfg.Logging.Level,
		Format:   cfg.Logging.Format,
		Writer:   cmd.ErrOrStderr(),
		FilePath: cfg.Logging.File,
	})
	if err != nil {
		return err
	}

	if err := memlimit.Apply(cfg.MemoryLimitGiB); err != nil {
		logger.Warn("address-space cap not applied", logging.Error(err))
	}

	// Stdout carries exactly one machine-readable stream. When the SRT text
	// itself goes to stdout, every progress event moves to stderr.
	progressOut := io.Writer(cmd.OutOrStdout())
	if cfg.Output.Path == "" {
		progressOut = cmd.ErrOrStderr()
	}
	reporter := progress.NewReporter(progressOut)

	var store *runlog.Store
	if cfg.RunLogPath != "" {
		store, err = runlog.Open(cfg.RunLogPath)
		if err != nil {
			logger.Warn("run history unavailable", logging.Error(err))
		} else {
			defer store.Close()
		}
	}

	runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p := pipeline.New(pipeline.Options{
		Config:      cfg,
		Logger:      logger,
		Reporter:    reporter,
		Store:       store,
		SubtitleOut: cmd.OutOrStdout(),
	})

	summary, err := p.Run(runCtx, videoPath)
	if err != nil {
		var runErr *pipeline.RunError
		if errors.As(err, &runErr) {
			fmt.Fprintln(cmd.ErrOrStderr(), runErr.PayloadJSON())
		}
		return err
	}

	logger.Info("transcription complete",
		logging.String(logging.FieldRunID, summary.RunID),
		logging.String("language", summary.DetectedLanguage),
		logging.String("engine", summary.Engine),
		logging.Int("segments", summary.SegmentCount),
		logging.Bool("alignment_failed", summary.AlignmentFailed),
	)
	return nil
}

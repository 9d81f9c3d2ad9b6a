// Package config loads and validates the vid2srt configuration file.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Transcription contains the ASR knobs shared by both engines.
type Transcription struct {
	// Language is the declared source language code. Empty means auto-detect
	// (direct engine only; the segmented engine is picked for Chinese).
	Language string `toml:"language"`
	// ComputeType is the model precision for the direct engine.
	ComputeType string `toml:"compute_type"`
	// BatchSize is the preferred inference batch size for the direct engine.
	BatchSize int `toml:"batch_size"`
	// Threads is the CPU thread count handed to every runner.
	Threads int `toml:"threads"`
	// CUDAEnabled makes the accelerator the primary device for every stage.
	CUDAEnabled bool `toml:"cuda_enabled"`
	// ModelCacheDir overrides the runners' default model caches when set.
	ModelCacheDir string `toml:"model_cache_dir"`
}

// Merge contains the segment-merging knobs for the segmented engine path.
type Merge struct {
	Enabled       bool  `toml:"enabled"`
	MaxGapMS      int64 `toml:"max_gap_ms"`
	MaxDurationMS int64 `toml:"max_duration_ms"`
}

// Diarization contains speaker-labeling settings.
type Diarization struct {
	Enabled     bool   `toml:"enabled"`
	HFToken     string `toml:"hf_token"`
	MinSpeakers int    `toml:"min_speakers"`
	MaxSpeakers int    `toml:"max_speakers"`
}

// Output contains SRT rendering settings.
type Output struct {
	// Path is the SRT destination. Empty writes subtitle text to stdout and
	// routes progress events to stderr.
	Path string `toml:"path"`
	// MaxLineCount caps text lines per cue.
	MaxLineCount int `toml:"max_line_count"`
	// HighlightWords emits per-word cues with the spoken word underlined.
	HighlightWords bool `toml:"highlight_words"`
}

// Runners names the external stage executables.
type Runners struct {
	Whisper string `toml:"whisper"`
	FunASR  string `toml:"funasr"`
	Align   string `toml:"align"`
	Diarize string `toml:"diarize"`
}

// Logging contains log output settings.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	File   string `toml:"file"`
}

// Config encapsulates all configuration values for vid2srt.
type Config struct {
	Transcription Transcription `toml:"transcription"`
	Merge         Merge         `toml:"merge"`
	Diarization   Diarization   `toml:"diarization"`
	Output        Output        `toml:"output"`
	Runners       Runners       `toml:"runners"`
	Logging       Logging       `toml:"logging"`

	// MemoryLimitGiB caps the process address space at startup. Zero
	// disables the cap.
	MemoryLimitGiB int `toml:"memory_limit_gib"`
	// RunLogPath is the SQLite run-history database. Empty disables history.
	RunLogPath string `toml:"run_log_path"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Transcription: Transcription{
			ComputeType: "float16",
			BatchSize:   4,
			Threads:     8,
		},
		Merge: Merge{
			Enabled:       true,
			MaxGapMS:      2000,
			MaxDurationMS: 10000,
		},
		Diarization: Diarization{
			MinSpeakers: 1,
			MaxSpeakers: 2,
		},
		Output: Output{
			MaxLineCount: 1,
		},
		Runners: Runners{
			Whisper: "whisperx-runner",
			FunASR:  "funasr-runner",
			Align:   "whisperx-align",
			Diarize: "whisperx-diarize",
		},
		Logging: Logging{
			Level:  "info",
			Format: "text",
		},
		MemoryLimitGiB: 24,
		RunLogPath:     "~/.local/share/vid2srt/runs.db",
	}
}

// DefaultConfigPath returns the default configuration file location.
func DefaultConfigPath() (string, error) {
	return ExpandPath("~/.config/vid2srt/config.toml")
}

// Sample returns the annotated sample configuration file contents.
func Sample() string {
	return sampleConfig
}

// Load locates and parses a configuration file. A missing file yields the
// defaults. The returned config has path fields expanded and validated.
func Load(path string) (*Config, string, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}

	return &cfg, resolvedPath, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := ExpandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return "", false, fmt.Errorf("config file not found: %s", expanded)
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	return defaultPath, false, nil
}

func (c *Config) normalize() error {
	var err error
	if c.Transcription.ModelCacheDir, err = ExpandPath(c.Transcription.ModelCacheDir); err != nil {
		return err
	}
	if c.Output.Path, err = ExpandPath(c.Output.Path); err != nil {
		return err
	}
	if c.RunLogPath, err = ExpandPath(c.RunLogPath); err != nil {
		return err
	}
	if c.Logging.File, err = ExpandPath(c.Logging.File); err != nil {
		return err
	}
	c.Transcription.Language = strings.TrimSpace(c.Transcription.Language)
	return nil
}

// Validate checks semantic constraints that toml decoding cannot express.
func (c *Config) Validate() error {
	if c.Transcription.BatchSize < 1 {
		return fmt.Errorf("config: batch_size must be at least 1")
	}
	if c.Transcription.Threads < 0 {
		return fmt.Errorf("config: threads must not be negative")
	}
	if c.Merge.MaxGapMS < 0 {
		return fmt.Errorf("config: max_gap_ms must not be negative")
	}
	if c.Merge.MaxDurationMS <= 0 {
		return fmt.Errorf("config: max_duration_ms must be positive")
	}
	if c.Diarization.MinSpeakers > c.Diarization.MaxSpeakers {
		return fmt.Errorf("config: min_speakers exceeds max_speakers")
	}
	if c.Output.MaxLineCount < 0 {
		return fmt.Errorf("config: max_line_count must not be negative")
	}
	if c.MemoryLimitGiB < 0 {
		return fmt.Errorf("config: memory_limit_gib must not be negative")
	}
	return nil
}

// ExpandPath resolves ~ prefixes and relative paths to absolute paths. An
// empty input stays empty.
func ExpandPath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", nil
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if path == "~" {
			return home, nil
		}
		return filepath.Join(home, path[2:]), nil
	}
	return filepath.Abs(path)
}

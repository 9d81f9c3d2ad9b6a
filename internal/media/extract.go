// Package media wraps the ffmpeg audio extraction step that feeds every ASR
// stage: mono, 16 kHz, signed 16-bit PCM.
package media

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// Runner executes an external command. The default implementation shells
// out; tests inject their own.
type Runner func(ctx context.Context, name string, args ...string) error

// Run is the default Runner. The command's combined output is folded into
// the returned error so callers can classify failures from the message.
func Run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}

// ExtractAudioArgs builds the ffmpeg argument list for PCM extraction.
func ExtractAudioArgs(source, dest string, threads int) []string {
	args := make([]string, 0, 16)
	if threads > 0 {
		args = append(args, "-threads", strconv.Itoa(threads))
	}
	return append(args,
		"-i", source,
		"-vn",
		"-acodec", "pcm_s16le",
		"-ar", "16000",
		"-ac", "1",
		"-y",
		dest,
	)
}

// ExtractAudio extracts the audio track from source into dest.
func ExtractAudio(ctx context.Context, runner Runner, ffmpegBinary, source, dest string, threads int) error {
	if runner == nil {
		runner = Run
	}
	if err := runner(ctx, ffmpegBinary, ExtractAudioArgs(source, dest, threads)...); err != nil {
		return fmt.Errorf("ffmpeg audio extraction failed: %w", err)
	}
	return nil
}

// TempWAV creates an empty temp file with a .wav suffix in the system temp
// directory and returns its path. The caller owns removal.
func TempWAV() (string, error) {
	file, err := os.CreateTemp("", "vid2srt-*.wav")
	if err != nil {
		return "", fmt.Errorf("create temp audio file: %w", err)
	}
	path := file.Name()
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("close temp audio file: %w", err)
	}
	return path, nil
}

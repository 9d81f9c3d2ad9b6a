// Package srt renders normalized transcription results to SubRip text.
package srt

import (
	"fmt"
	"io"
	"math"
	"strings"
)

// Word is one word-level timing entry attached by alignment.
type Word struct {
	Word    string  `json:"word"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Speaker string  `json:"speaker,omitempty"`
}

// Segment is one subtitle cue. Times are seconds.
type Segment struct {
	Text    string  `json:"text"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Words   []Word  `json:"words,omitempty"`
	Speaker string  `json:"speaker,omitempty"`
}

// Result is the canonical shape consumed by the writer. Language is always
// non-empty by the time a Result reaches WriteResult; the pipeline backfills
// it from the detected or declared language.
type Result struct {
	Segments []Segment `json:"segments"`
	Language string    `json:"language"`
}

// Options are rendering knobs. They affect text layout only, never timing.
type Options struct {
	// MaxLineCount caps the number of text lines per cue. Zero means no cap.
	MaxLineCount int
	// HighlightWords emits one cue per word with the spoken word underlined,
	// using word-level timing where available.
	HighlightWords bool
}

// FormatTimestamp converts milliseconds to the SRT HH:MM:SS,mmm form. It is
// total: negative, NaN, or infinite input renders as 00:00:00,000.
func FormatTimestamp(milliseconds float64) string {
	if math.IsNaN(milliseconds) || math.IsInf(milliseconds, 0) || milliseconds < 0 {
		return "00:00:00,000"
	}
	total := int64(milliseconds)
	ms := total % 1000
	seconds := total / 1000
	minutes := seconds / 60
	seconds %= 60
	hours := minutes / 60
	minutes %= 60
	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, seconds, ms)
}

// secondsToMS converts the rounded-seconds timing back to integer
// milliseconds, reproducing the exact source timing for sub-hour values.
func secondsToMS(seconds float64) float64 {
	return math.Round(seconds * 1000)
}

// WriteResult serializes the result as SRT blocks: sequence number line,
// timing line, text lines, blank separator.
func WriteResult(w io.Writer, result Result, opts Options) error {
	index := 1
	for _, seg := range result.Segments {
		if opts.HighlightWords && len(seg.Words) > 0 {
			for _, cue := range highlightCues(seg) {
				if err := writeCue(w, index, cue.start, cue.end, cue.text, opts.MaxLineCount); err != nil {
					return err
				}
				index++
			}
			continue
		}
		if err := writeCue(w, index, seg.Start, seg.End, seg.Text, opts.MaxLineCount); err != nil {
			return err
		}
		index++
	}
	return nil
}

type cue struct {
	start float64
	end   float64
	text  string
}

// highlightCues expands a segment into one cue per word, underlining the
// word being spoken during that cue's interval.
func highlightCues(seg Segment) []cue {
	cues := make([]cue, 0, len(seg.Words))
	for i, word := range seg.Words {
		parts := make([]string, len(seg.Words))
		for j, other := range seg.Words {
			if i == j {
				parts[j] = "<u>" + other.Word + "</u>"
			} else {
				parts[j] = other.Word
			}
		}
		start := word.Start
		end := word.End
		if start == 0 && end == 0 {
			start, end = seg.Start, seg.End
		}
		cues = append(cues, cue{start: start, end: end, text: strings.Join(parts, " ")})
	}
	return cues
}

func writeCue(w io.Writer, index int, start, end float64, text string, maxLineCount int) error {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	if maxLineCount > 0 && len(lines) > maxLineCount {
		// Layout-only: overflow lines fold into the last permitted line.
		folded := strings.Join(lines[maxLineCount-1:], " ")
		lines = append(lines[:maxLineCount-1], folded)
	}
	_, err := fmt.Fprintf(
		w,
		"%d\n%s --> %s\n%s\n\n",
		index,
		FormatTimestamp(secondsToMS(start)),
		FormatTimestamp(secondsToMS(end)),
		strings.Join(lines, "\n"),
	)
	return err
}

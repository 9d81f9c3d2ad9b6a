// Package segment holds the in-memory utterance model produced by the ASR
// engines and the merge transform that consolidates raw utterances into
// subtitle-sized chunks.
package segment

// Raw is one ASR-produced utterance before merging. Times are milliseconds.
// Speaker is an optional identifier; empty string means unknown and acts as
// a wildcard during merging.
type Raw struct {
	Text    string
	StartMS int64
	EndMS   int64
	Speaker string
}

// Merged is a Raw extended by accumulation: text is the space-joined
// concatenation of its constituents in original order, start comes from the
// first constituent, end from the last, and speaker is inherited from the
// first constituent of the merge group.
type Merged struct {
	Text    string
	StartMS int64
	EndMS   int64
	Speaker string
}

// MergeOptions controls the merge scan.
type MergeOptions struct {
	// Enabled switches merging on. When false every Raw becomes its own
	// Merged unchanged.
	Enabled bool
	// DiarizationEnabled makes speaker identity a merge constraint.
	DiarizationEnabled bool
	// MaxGapMS is the largest silence between two segments that still merges.
	MaxGapMS int64
	// MaxDurationMS caps the total span of a merged segment. It only blocks
	// merging; a single over-long input segment is emitted verbatim.
	MaxDurationMS int64
}

// Merge consolidates raw utterances left to right with a single open
// accumulator. The output order is strictly the input order.
func Merge(raw []Raw, opts MergeOptions) []Merged {
	if len(raw) == 0 {
		return []Merged{}
	}
	if !opts.Enabled {
		out := make([]Merged, len(raw))
		for i, r := range raw {
			out[i] = Merged(r)
		}
		return out
	}

	out := make([]Merged, 0, len(raw))
	acc := Merged(raw[0])

	for _, next := range raw[1:] {
		gap := next.StartMS - acc.EndMS
		potentialDuration := next.EndMS - acc.StartMS

		// Speaker compatibility: diarization off, either side unknown, or
		// exact match. The merged segment keeps the accumulator's speaker.
		compatible := !opts.DiarizationEnabled ||
			acc.Speaker == "" ||
			next.Speaker == "" ||
			acc.Speaker == next.Speaker

		if compatible && gap >= 0 && gap <= opts.MaxGapMS && potentialDuration <= opts.MaxDurationMS {
			acc.Text += " " + next.Text
			acc.EndMS = next.EndMS
			continue
		}

		out = append(out, acc)
		acc = Merged(next)
	}

	return append(out, acc)
}

// Subtitle is the externally visible unit: times in seconds rounded to
// three decimals, derived from a Merged segment's millisecond timing.
type Subtitle struct {
	Text     string
	StartSec float64
	EndSec   float64
}

// Subtitles converts merged segments to the subtitle schema and returns the
// parallel speaker mapping (index-aligned, empty string for unknown). The
// mapping is auxiliary and never embedded in the subtitle schema itself.
func Subtitles(merged []Merged) ([]Subtitle, []string) {
	subs := make([]Subtitle, len(merged))
	speakers := make([]string, len(merged))
	for i, m := range merged {
		subs[i] = Subtitle{
			Text:     m.Text,
			StartSec: roundSeconds(m.StartMS),
			EndSec:   roundSeconds(m.EndMS),
		}
		speakers[i] = m.Speaker
	}
	return subs, speakers
}

// roundSeconds implements round(ms/1000, 3). Millisecond input makes the
// three-decimal rounding exact, so the SRT writer can recover the original
// millisecond timing.
func roundSeconds(ms int64) float64 {
	return float64(ms) / 1000
}

package segment

import (
	"reflect"
	"testing"
)

func defaultOpts() MergeOptions {
	return MergeOptions{
		Enabled:            true,
		DiarizationEnabled: true,
		MaxGapMS:           2000,
		MaxDurationMS:      10000,
	}
}

func TestMergeEmptyInput(t *testing.T) {
	got := Merge(nil, defaultOpts())
	if len(got) != 0 {
		t.Fatalf("Merge(nil) = %v, want empty", got)
	}
}

func TestMergeDisabledPassesThrough(t *testing.T) {
	raw := []Raw{
		{Text: "one", StartMS: 0, EndMS: 400, Speaker: "A"},
		{Text: "two", StartMS: 500, EndMS: 900, Speaker: "B"},
		{Text: "three", StartMS: 1000, EndMS: 1500},
	}
	opts := defaultOpts()
	opts.Enabled = false

	want := []Merged{
		{Text: "one", StartMS: 0, EndMS: 400, Speaker: "A"},
		{Text: "two", StartMS: 500, EndMS: 900, Speaker: "B"},
		{Text: "three", StartMS: 1000, EndMS: 1500},
	}
	got := Merge(raw, opts)
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Merge = %+v, want %+v", got, want)
	}

	// Pure function: a second pass yields the identical result.
	again := Merge(raw, opts)
	if !reflect.DeepEqual(again, got) {
		t.Errorf("second Merge = %+v, want %+v", again, got)
	}
}

func TestMergeSameSpeakerWithinLimits(t *testing.T) {
	raw := []Raw{
		{Text: "Hi", StartMS: 0, EndMS: 500, Speaker: "A"},
		{Text: "there", StartMS: 600, EndMS: 900, Speaker: "A"},
	}
	got := Merge(raw, defaultOpts())
	want := []Merged{{Text: "Hi there", StartMS: 0, EndMS: 900, Speaker: "A"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Merge = %+v, want %+v", got, want)
	}
}

func TestMergeSpeakerMismatchSplits(t *testing.T) {
	raw := []Raw{
		{Text: "Hi", StartMS: 0, EndMS: 500, Speaker: "A"},
		{Text: "there", StartMS: 600, EndMS: 900, Speaker: "B"},
	}
	got := Merge(raw, defaultOpts())
	if len(got) != 2 {
		t.Fatalf("Merge produced %d segments, want 2", len(got))
	}
	if got[0].Speaker != "A" || got[1].Speaker != "B" {
		t.Errorf("speakers = %q, %q; want A, B", got[0].Speaker, got[1].Speaker)
	}
}

func TestMergeSpeakerMismatchIgnoredWithoutDiarization(t *testing.T) {
	raw := []Raw{
		{Text: "Hi", StartMS: 0, EndMS: 500, Speaker: "A"},
		{Text: "there", StartMS: 600, EndMS: 900, Speaker: "B"},
	}
	opts := defaultOpts()
	opts.DiarizationEnabled = false
	got := Merge(raw, opts)
	want := []Merged{{Text: "Hi there", StartMS: 0, EndMS: 900, Speaker: "A"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Merge = %+v, want %+v", got, want)
	}
}

func TestMergeUnknownSpeakerIsWildcard(t *testing.T) {
	raw := []Raw{
		{Text: "Hi", StartMS: 0, EndMS: 500, Speaker: "A"},
		{Text: "there", StartMS: 600, EndMS: 900},
		{Text: "friend", StartMS: 1000, EndMS: 1400, Speaker: "A"},
	}
	got := Merge(raw, defaultOpts())
	want := []Merged{{Text: "Hi there friend", StartMS: 0, EndMS: 1400, Speaker: "A"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Merge = %+v, want %+v", got, want)
	}
}

func TestMergeGapExceededSplits(t *testing.T) {
	raw := []Raw{
		{Text: "Hi", StartMS: 0, EndMS: 500, Speaker: "A"},
		{Text: "there", StartMS: 3000, EndMS: 3400, Speaker: "A"},
	}
	got := Merge(raw, defaultOpts())
	if len(got) != 2 {
		t.Fatalf("Merge produced %d segments, want 2", len(got))
	}
}

func TestMergeNegativeGapSplits(t *testing.T) {
	// Overlapping segments never merge: gap must be >= 0.
	raw := []Raw{
		{Text: "Hi", StartMS: 0, EndMS: 500},
		{Text: "there", StartMS: 400, EndMS: 900},
	}
	got := Merge(raw, defaultOpts())
	if len(got) != 2 {
		t.Fatalf("Merge produced %d segments, want 2", len(got))
	}
}

func TestMergeDurationCapBlocksMerge(t *testing.T) {
	raw := []Raw{
		{Text: "a", StartMS: 0, EndMS: 6000},
		{Text: "b", StartMS: 6100, EndMS: 11000},
	}
	got := Merge(raw, defaultOpts())
	if len(got) != 2 {
		t.Fatalf("Merge produced %d segments, want 2", len(got))
	}
}

func TestMergeOverlongSingleSegmentEmittedVerbatim(t *testing.T) {
	raw := []Raw{{Text: "monologue", StartMS: 0, EndMS: 60000}}
	got := Merge(raw, defaultOpts())
	want := []Merged{{Text: "monologue", StartMS: 0, EndMS: 60000}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Merge = %+v, want %+v", got, want)
	}
}

func TestMergePreservesOrderAndTiming(t *testing.T) {
	raw := []Raw{
		{Text: "a", StartMS: 0, EndMS: 1000},
		{Text: "b", StartMS: 1100, EndMS: 2000},
		{Text: "c", StartMS: 9000, EndMS: 9500},
		{Text: "d", StartMS: 9600, EndMS: 10000},
	}
	got := Merge(raw, defaultOpts())
	want := []Merged{
		{Text: "a b", StartMS: 0, EndMS: 2000},
		{Text: "c d", StartMS: 9000, EndMS: 10000},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Merge = %+v, want %+v", got, want)
	}
	for _, m := range got {
		if m.EndMS < m.StartMS {
			t.Errorf("segment %+v has end before start", m)
		}
	}
}

func TestSubtitles(t *testing.T) {
	merged := []Merged{
		{Text: "Hi there", StartMS: 0, EndMS: 900, Speaker: "A"},
		{Text: "again", StartMS: 1234, EndMS: 5678},
	}
	subs, speakers := Subtitles(merged)
	if len(subs) != 2 || len(speakers) != 2 {
		t.Fatalf("got %d subs / %d speakers, want 2 / 2", len(subs), len(speakers))
	}
	if subs[0].StartSec != 0 || subs[0].EndSec != 0.9 {
		t.Errorf("subs[0] timing = %v..%v, want 0..0.9", subs[0].StartSec, subs[0].EndSec)
	}
	if subs[1].StartSec != 1.234 || subs[1].EndSec != 5.678 {
		t.Errorf("subs[1] timing = %v..%v, want 1.234..5.678", subs[1].StartSec, subs[1].EndSec)
	}
	if speakers[0] != "A" || speakers[1] != "" {
		t.Errorf("speakers = %v, want [A \"\"]", speakers)
	}
}

package timeline

import (
	"errors"
	"math"
	"testing"
)

func TestAdjustTimestamp(t *testing.T) {
	cuts := []SilenceCut{{Start: 0, End: 10}, {Start: 20, End: 30}}

	tests := []struct {
		name string
		in   float64
		want float64
	}{
		{"inside first kept span", 5, 5},
		{"inside removed gap snaps to cut point", 15, 10},
		{"inside second kept span", 25, 15},
		{"after last kept span", 40, 20},
		{"at zero", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AdjustTimestamp(tt.in, cuts)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("AdjustTimestamp(%.1f) = %.3f, want %.3f", tt.in, got, tt.want)
			}
		})
	}
}

func TestAdjustTimestampsMatchesRemovedBefore(t *testing.T) {
	cuts := []SilenceCut{{Start: 0, End: 10}, {Start: 20, End: 30}}
	ts := []float64{25}

	got := AdjustTimestamps(ts, cuts)
	if len(got) != 1 || got[0] != 15 {
		t.Fatalf("AdjustTimestamps([25]) = %v, want [15]", got)
	}
	if r := RemovedBefore(25, cuts); r != 10 {
		t.Errorf("RemovedBefore(25) = %.2f, want 10", r)
	}
}

func TestAdjustTimestampNoCuts(t *testing.T) {
	if got := AdjustTimestamp(42, nil); got != 42 {
		t.Errorf("expected identity without cuts, got %.2f", got)
	}
}

func TestToSourceInvertsAdjust(t *testing.T) {
	cuts := []SilenceCut{{Start: 0, End: 20}, {Start: 30, End: 60}}

	for _, post := range []float64{0, 5, 19.5, 20, 35, 49.9} {
		src := ToSource(post, cuts)
		back := AdjustTimestamp(src, cuts)
		if math.Abs(back-post) > 1e-9 {
			t.Errorf("post %.2f -> source %.2f -> post %.2f", post, src, back)
		}
	}
	if got := ToSource(25, cuts); got != 35 {
		t.Errorf("ToSource(25) = %.2f, want 35", got)
	}
}

func TestKeptDuration(t *testing.T) {
	cuts := []SilenceCut{{Start: 0, End: 20}, {Start: 30, End: 60}}
	if got := KeptDuration(cuts); got != 50 {
		t.Errorf("KeptDuration = %.2f, want 50", got)
	}
}

func TestValidateCuts(t *testing.T) {
	tests := []struct {
		name    string
		cuts    []SilenceCut
		wantErr bool
	}{
		{"valid", []SilenceCut{{0, 10}, {20, 30}}, false},
		{"empty list", nil, false},
		{"overlapping", []SilenceCut{{0, 10}, {5, 30}}, true},
		{"descending", []SilenceCut{{20, 30}, {0, 10}}, true},
		{"zero length", []SilenceCut{{5, 5}}, true},
		{"past duration", []SilenceCut{{0, 61}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCuts(tt.cuts, 60)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateCuts() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidCuts) {
				t.Errorf("expected ErrInvalidCuts, got %v", err)
			}
		})
	}
}

func TestAdjustSegmentsDropsRemovedCues(t *testing.T) {
	cuts := []SilenceCut{{Start: 0, End: 10}, {Start: 20, End: 30}}
	segments := []SubtitleSegment{
		{Index: 1, Start: 2, End: 4, Text: "kept"},
		{Index: 2, Start: 12, End: 18, Text: "silent"},
		{Index: 3, Start: 22, End: 25, Text: "shifted"},
	}

	got := AdjustSegments(segments, cuts)
	if len(got) != 2 {
		t.Fatalf("expected 2 cues, got %d", len(got))
	}
	if got[1].Start != 12 || got[1].End != 15 || got[1].Index != 2 {
		t.Errorf("unexpected shifted cue: %+v", got[1])
	}
	if segments[2].Start != 22 {
		t.Error("input cues must not be modified")
	}
}

func TestSubtractSpans(t *testing.T) {
	cuts := []SilenceCut{{Start: 0, End: 20}, {Start: 30, End: 60}}
	remove := []SilenceCut{{Start: 40, End: 45}, {Start: 15, End: 35}}

	got := SubtractSpans(cuts, remove, 60)
	want := []SilenceCut{{0, 15}, {35, 40}, {45, 60}}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("span %d = %v, want %v", i, got[i], want[i])
		}
	}

	whole := SubtractSpans(nil, []SilenceCut{{Start: 10, End: 20}}, 30)
	if len(whole) != 2 || whole[0].End != 10 || whole[1].Start != 20 {
		t.Errorf("subtracting from the full source = %v", whole)
	}
}

func TestSameTiming(t *testing.T) {
	a := []SubtitleSegment{{Start: 1, End: 2, Text: "teh heart"}}
	b := []SubtitleSegment{{Start: 1, End: 2, Text: "the heart"}}
	c := []SubtitleSegment{{Start: 1, End: 2.5, Text: "the heart"}}

	if !SameTiming(a, b) {
		t.Error("text-only change must keep timing")
	}
	if SameTiming(a, c) {
		t.Error("moved end must break timing")
	}
}

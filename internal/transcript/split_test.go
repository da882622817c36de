package transcript

import (
	"reflect"
	"strings"
	"testing"
)

func TestSplitSentences(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"Hello world. This is a test.", []string{"Hello world.", "This is a test."}},
		{"No terminal punctuation", []string{"No terminal punctuation"}},
		{"One! Two? Three.", []string{"One!", "Two?", "Three."}},
		{"Wait... what? Really?!  Yes", []string{"Wait...", "what?", "Really?!", "Yes"}},
		{"", nil},
		{"   ", nil},
		{"Trailing dot.", []string{"Trailing dot."}},
	}
	for _, c := range cases {
		got := SplitSentences(c.in)
		if !reflect.DeepEqual(got, c.want) {
			t.Errorf("SplitSentences(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestSplitSentencesRoundTrip(t *testing.T) {
	// Joining split sentences with a single space and re-splitting yields
	// the same sentences.
	inputs := []string{
		"Hello world. This is a test.",
		"One! Two? Three.",
		"Sade bir cümle. Bir tane daha! Bitti mi?",
	}
	for _, in := range inputs {
		first := SplitSentences(in)
		second := SplitSentences(strings.Join(first, " "))
		if !reflect.DeepEqual(first, second) {
			t.Errorf("round trip diverged for %q: %v vs %v", in, first, second)
		}
	}
}

func TestDistributeSegmentsProportional(t *testing.T) {
	segs := DistributeSegments("Hello world. This is a test.", 5000, "en")
	if len(segs) != 2 {
		t.Fatalf("got %d segments, want 2", len(segs))
	}

	// "Hello world." is 12 chars of 27 total: floor(5000*12/27) = 2222.
	if segs[0].StartMs != 0 || segs[0].EndMs != 2222 {
		t.Errorf("seg[0] = [%d..%d], want [0..2222]", segs[0].StartMs, segs[0].EndMs)
	}
	if segs[1].StartMs != 2222 {
		t.Errorf("seg[1].StartMs = %d, want 2222", segs[1].StartMs)
	}
	if segs[1].EndMs > 5000 {
		t.Errorf("seg[1].EndMs = %d exceeds duration", segs[1].EndMs)
	}
	if segs[0].Text != "Hello world." || segs[1].Text != "This is a test." {
		t.Errorf("texts = %q, %q", segs[0].Text, segs[1].Text)
	}
	for i, s := range segs {
		if s.Lang != "en" {
			t.Errorf("seg[%d].Lang = %q, want en", i, s.Lang)
		}
	}
}

func TestDistributeSegmentsMonotonicAndClamped(t *testing.T) {
	segs := DistributeSegments("A. Bb. Ccc. Dddd. Eeeee.", 1000, "tr")
	var prev int64
	for i, s := range segs {
		if s.StartMs != prev {
			t.Errorf("seg[%d].StartMs = %d, want %d", i, s.StartMs, prev)
		}
		if s.EndMs < s.StartMs {
			t.Errorf("seg[%d] end %d before start %d", i, s.EndMs, s.StartMs)
		}
		if s.EndMs > 1000 {
			t.Errorf("seg[%d].EndMs = %d exceeds duration", i, s.EndMs)
		}
		prev = s.EndMs
	}
}

func TestDistributeSegmentsSingleSentence(t *testing.T) {
	segs := DistributeSegments("just one sentence with no punctuation", 3000, "auto_tr")
	if len(segs) != 1 {
		t.Fatalf("got %d segments, want 1", len(segs))
	}
	if segs[0].StartMs != 0 || segs[0].EndMs != 3000 {
		t.Errorf("seg = [%d..%d], want [0..3000]", segs[0].StartMs, segs[0].EndMs)
	}
	if segs[0].Lang != "tr" {
		t.Errorf("Lang = %q, want tr", segs[0].Lang)
	}
}

func TestDistributeSegmentsEmptyText(t *testing.T) {
	if segs := DistributeSegments("", 5000, "en"); segs != nil {
		t.Errorf("expected nil segments for empty text, got %v", segs)
	}
}

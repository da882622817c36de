package transcript

import "testing"

func TestQualityScoreRepeatPenalty(t *testing.T) {
	// "the the the the the": 5 words, all in EN_COMMON (+5), run of 5
	// repeats (-25) = -15.
	if got := QualityScore("the the the the the", "en"); got != -15 {
		t.Errorf("score = %d, want -15", got)
	}
}

func TestQualityScoreTurkishHint(t *testing.T) {
	// 5 words, "bu" and "bir" in TR_COMMON (+6), one ü (+4) = 15.
	if got := QualityScore("merhaba bu bir test cümlesidir", "tr"); got != 15 {
		t.Errorf("score = %d, want 15", got)
	}
}

func TestQualityScorePrefersRealTurkishOverRepeats(t *testing.T) {
	en := QualityScore("the the the the the", "en")
	tr := QualityScore("merhaba bu bir test cümlesidir", "tr")
	if tr <= en {
		t.Errorf("tr score %d should beat degenerate en score %d", tr, en)
	}
}

func TestQualityScoreNonsensePenalty(t *testing.T) {
	// "a" occurs 5 times (>3) and is <=2 runes: one penalized token (-3).
	// 7 words, no repeats above 2... runs: a,a -> broken by b. maxRepeat=2,
	// no repeat penalty.
	got := QualityScore("a a b a a c a", "")
	want := 7 - 3
	if got != want {
		t.Errorf("score = %d, want %d", got, want)
	}
}

func TestQualityScoreWordCountCap(t *testing.T) {
	long := ""
	for i := 0; i < 120; i++ {
		long += "word" + string(rune('a'+i%26)) + " "
	}
	if got := QualityScore(long, ""); got != 80 {
		t.Errorf("score = %d, want capped 80", got)
	}
}

func TestQualityScoreEmpty(t *testing.T) {
	if got := QualityScore("", "en"); got != 0 {
		t.Errorf("score = %d, want 0", got)
	}
}

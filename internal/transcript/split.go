package transcript

import (
	"regexp"
	"strings"
)

// Segment is one transcribed phrase with its time range.
type Segment struct {
	StartMs int64
	EndMs   int64
	Text    string
	Lang    string
}

var sentenceBoundary = regexp.MustCompile(`([.!?]+)\s+`)

// SplitSentences splits text on terminal punctuation followed by whitespace,
// keeping the punctuation with the preceding sentence. The remainder after
// the last boundary is a sentence; empty sentences are dropped.
func SplitSentences(text string) []string {
	var out []string
	start := 0
	for _, m := range sentenceBoundary.FindAllStringSubmatchIndex(text, -1) {
		// m[3] is the end of the punctuation group.
		s := strings.TrimSpace(text[start:m[3]])
		if s != "" {
			out = append(out, s)
		}
		start = m[1]
	}
	if rest := strings.TrimSpace(text[start:]); rest != "" {
		out = append(out, rest)
	}
	return out
}

// DistributeSegments splits text into sentences and assigns each a time range
// proportional to its character count within durationMs. Boundaries are
// floored so the last segment absorbs the rounding remainder implicitly via
// the durationMs clamp on each end.
func DistributeSegments(text string, durationMs int64, lang string) []Segment {
	sentences := SplitSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	var total int64
	for _, s := range sentences {
		total += int64(len([]rune(s)))
	}
	if total == 0 {
		return nil
	}

	normLang := NormalizeLang(lang)
	segs := make([]Segment, 0, len(sentences))
	var startMs int64
	for _, s := range sentences {
		length := durationMs * int64(len([]rune(s))) / total
		endMs := startMs + length
		if endMs > durationMs {
			endMs = durationMs
		}
		segs = append(segs, Segment{
			StartMs: startMs,
			EndMs:   endMs,
			Text:    s,
			Lang:    normLang,
		})
		startMs = endMs
	}
	return segs
}

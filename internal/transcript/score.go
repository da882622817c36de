package transcript

import "strings"

var trCommon = wordSet("ve bir bu ben sen için değil şimdi var yok ile olan gibi kadar daha çok az en da de ki mi mı mu mü")

var enCommon = wordSet("the and is are to of in for with i you we they this that have has had was were been be do does did will would can could should may might")

var trLetters = map[rune]bool{'ç': true, 'ğ': true, 'ı': true, 'ö': true, 'ş': true, 'ü': true}

func wordSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(s) {
		set[w] = true
	}
	return set
}

// QualityScore ranks a candidate transcription for the hinted language.
// Higher is better. Used to choose between en and tr runs when auto
// detection is inconclusive.
func QualityScore(text, hint string) int {
	lower := strings.ToLower(text)
	words := strings.Fields(lower)

	wordCount := len(words)
	if wordCount > 80 {
		wordCount = 80
	}

	maxRepeat := 0
	run := 0
	prev := ""
	for _, w := range words {
		if w == prev {
			run++
		} else {
			run = 1
			prev = w
		}
		if run > maxRepeat {
			maxRepeat = run
		}
	}
	repeatPen := 0
	if maxRepeat > 2 {
		repeatPen = 5 * maxRepeat
	}

	counts := make(map[string]int)
	for _, w := range words {
		counts[w]++
	}
	nonsensePen := 0
	for w, c := range counts {
		if len([]rune(w)) <= 2 && c > 3 {
			nonsensePen += 3
		}
	}

	hintBonus := 0
	switch hint {
	case "tr":
		letters := 0
		for _, r := range lower {
			if trLetters[r] {
				letters++
			}
		}
		common := 0
		for _, w := range words {
			if trCommon[w] {
				common++
			}
		}
		hintBonus = 4*letters + 3*common
	case "en":
		for _, w := range words {
			if enCommon[w] {
				hintBonus++
			}
		}
	}

	return wordCount + hintBonus - repeatPen - nonsensePen
}

package transcript

import (
	"context"
	"strings"

	"github.com/noteinsight/noteinsight-core/internal/asr"
)

// FinalOutcome is the result of the whole-file language resolution.
type FinalOutcome struct {
	Text string
	Lock Lock
}

// ResolveFinal transcribes the full session WAV with the requested mode and
// applies the fallback ladder for inconclusive auto detection: a forced
// re-run when detection is confident enough, then a dual en/tr run decided
// by quality score. Ties prefer en.
func ResolveFinal(ctx context.Context, rec asr.Recognizer, wavPath string, mode Lock) (FinalOutcome, error) {
	lang := mode.Language()

	res, err := rec.Transcribe(ctx, wavPath, lang)
	if err != nil {
		return FinalOutcome{}, err
	}
	text := strings.TrimSpace(res.Text)

	if lang != "auto" {
		return FinalOutcome{Text: text, Lock: mode}, nil
	}

	detected := res.DetectedLanguage
	confident := (detected == "en" || detected == "tr") && res.DetectedProbability >= DetectThreshold

	if text != "" {
		lock := LockAuto
		if confident {
			lock = LockForLanguage(detected)
		}
		return FinalOutcome{Text: text, Lock: lock}, nil
	}

	if confident {
		forced, err := rec.Transcribe(ctx, wavPath, detected)
		if err != nil {
			return FinalOutcome{}, err
		}
		if t := strings.TrimSpace(forced.Text); t != "" {
			return FinalOutcome{Text: t, Lock: LockForLanguage(detected)}, nil
		}
	}

	return dualRun(ctx, rec, wavPath)
}

// dualRun transcribes with both languages forced and keeps the candidate
// with the higher quality score.
func dualRun(ctx context.Context, rec asr.Recognizer, wavPath string) (FinalOutcome, error) {
	enRes, enErr := rec.Transcribe(ctx, wavPath, "en")
	trRes, trErr := rec.Transcribe(ctx, wavPath, "tr")
	if enErr != nil && trErr != nil {
		return FinalOutcome{}, enErr
	}

	enText := ""
	if enErr == nil {
		enText = strings.TrimSpace(enRes.Text)
	}
	trText := ""
	if trErr == nil {
		trText = strings.TrimSpace(trRes.Text)
	}

	enScore := QualityScore(enText, "en")
	trScore := QualityScore(trText, "tr")

	if trScore > enScore && trText != "" {
		return FinalOutcome{Text: trText, Lock: LockAutoTR}, nil
	}
	if enText != "" {
		return FinalOutcome{Text: enText, Lock: LockAutoEN}, nil
	}
	if trText != "" {
		return FinalOutcome{Text: trText, Lock: LockAutoTR}, nil
	}
	return FinalOutcome{Text: "", Lock: LockAuto}, nil
}

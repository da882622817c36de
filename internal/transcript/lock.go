// Package transcript holds the language-selection policies and the sentence
// segmentation that turn raw recognizer text into timed segments.
package transcript

// Lock pins the language used by subsequent recognizer calls for a session.
type Lock string

const (
	LockNone   Lock = ""
	LockAuto   Lock = "auto"
	LockAutoEN Lock = "auto_en"
	LockAutoTR Lock = "auto_tr"
	LockEN     Lock = "en"
	LockTR     Lock = "tr"
)

// Detection confidence thresholds, tuned against the original engine.
const (
	// DetectThreshold is the minimum language-detection probability for a
	// forced re-run.
	DetectThreshold = 0.45
	// LockThreshold is the minimum probability at which a successful forced
	// partial run pins the session language.
	LockThreshold = 0.80
)

// Language returns the recognizer language code for a lock: auto_X and X both
// request X; auto requests detection.
func (l Lock) Language() string {
	switch l {
	case LockEN, LockAutoEN:
		return "en"
	case LockTR, LockAutoTR:
		return "tr"
	default:
		return "auto"
	}
}

// Valid reports whether l is one of the known lock values.
func (l Lock) Valid() bool {
	switch l {
	case LockAuto, LockAutoEN, LockAutoTR, LockEN, LockTR:
		return true
	}
	return false
}

// PartialLanguage decides the language for the next partial inference: an
// established lock wins, then an explicit user mode, then auto detection.
func PartialLanguage(lock Lock, mode Lock) string {
	switch lock {
	case LockEN, LockTR, LockAutoEN, LockAutoTR:
		return lock.Language()
	}
	if mode == LockEN || mode == LockTR {
		return string(mode)
	}
	return "auto"
}

// NormalizeLang maps a lock or language value onto the segment language
// domain: auto_en and auto_tr collapse to their base code, en and tr are
// preserved, anything else defaults to en. No auto_* value ever reaches
// storage.
func NormalizeLang(v string) string {
	switch v {
	case "auto_en", "en":
		return "en"
	case "auto_tr", "tr":
		return "tr"
	default:
		return "en"
	}
}

// LockForLanguage returns the auto_X lock for a detected language.
func LockForLanguage(lang string) Lock {
	if lang == "tr" {
		return LockAutoTR
	}
	return LockAutoEN
}

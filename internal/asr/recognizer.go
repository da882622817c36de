// Package asr wraps the speech-recognition engine behind a small interface.
// Implementations take a 16 kHz mono 16-bit PCM WAV path and a language code
// ("en", "tr", ... or "auto") and must be safe to call serially from any
// goroutine.
package asr

import (
	"context"
	"errors"
)

// ErrModelNotLoaded is returned by Transcribe before a successful LoadModel.
var ErrModelNotLoaded = errors.New("asr model not loaded")

// Result captures one recognizer run.
type Result struct {
	Text                string
	DurationMs          int64
	DetectedLanguage    string  // ISO code, empty when unavailable
	DetectedProbability float64 // 0.0 - 1.0
}

// Recognizer abstracts the ASR engine.
type Recognizer interface {
	LoadModel(path string) error
	IsModelLoaded() bool
	Unload()
	Transcribe(ctx context.Context, wavPath, language string) (Result, error)
}

package asr

import (
	"context"
	"sync"
	"time"
)

// Call records one Transcribe invocation on the mock.
type Call struct {
	WavPath  string
	Language string
}

// MockRecognizer returns scripted results keyed by the requested language.
// Used by unit tests and as the "mock" runtime mode.
type MockRecognizer struct {
	mu      sync.Mutex
	loaded  bool
	results map[string]Result
	errs    map[string]error
	delay   time.Duration
	calls   []Call
}

// NewMockRecognizer returns a mock that reports a loaded model and empty
// transcriptions until scripted otherwise.
func NewMockRecognizer() *MockRecognizer {
	return &MockRecognizer{
		loaded:  true,
		results: make(map[string]Result),
		errs:    make(map[string]error),
	}
}

// Script sets the result returned for a given requested language.
func (m *MockRecognizer) Script(language string, res Result) {
	m.mu.Lock()
	m.results[language] = res
	m.mu.Unlock()
}

// ScriptErr makes Transcribe fail for a given requested language.
func (m *MockRecognizer) ScriptErr(language string, err error) {
	m.mu.Lock()
	m.errs[language] = err
	m.mu.Unlock()
}

// SetDelay makes each Transcribe call take at least d.
func (m *MockRecognizer) SetDelay(d time.Duration) {
	m.mu.Lock()
	m.delay = d
	m.mu.Unlock()
}

// Calls returns a copy of the recorded Transcribe invocations.
func (m *MockRecognizer) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

func (m *MockRecognizer) LoadModel(string) error {
	m.mu.Lock()
	m.loaded = true
	m.mu.Unlock()
	return nil
}

func (m *MockRecognizer) IsModelLoaded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loaded
}

func (m *MockRecognizer) Unload() {
	m.mu.Lock()
	m.loaded = false
	m.mu.Unlock()
}

func (m *MockRecognizer) Transcribe(ctx context.Context, wavPath, language string) (Result, error) {
	m.mu.Lock()
	if !m.loaded {
		m.mu.Unlock()
		return Result{}, ErrModelNotLoaded
	}
	m.calls = append(m.calls, Call{WavPath: wavPath, Language: language})
	delay := m.delay
	err := m.errs[language]
	res, ok := m.results[language]
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return Result{}, ctx.Err()
		}
	}
	if err != nil {
		return Result{}, err
	}
	if !ok {
		return Result{}, nil
	}
	return res, nil
}

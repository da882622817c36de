package asr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"sync"

	"github.com/go-audio/wav"
	"github.com/mattn/go-shellwords"
)

// execRecognizer shells out to a whisper CLI for each transcription. The
// command must accept --audio, --model and --language flags and print a JSON
// object on stdout.
type execRecognizer struct {
	cmd       []string
	mu        sync.Mutex
	modelPath string
}

type execOutput struct {
	Text                string  `json:"text"`
	Language            string  `json:"language"`
	LanguageProbability float64 `json:"language_probability"`
}

// NewExecRecognizer parses the configured command line.
func NewExecRecognizer(command string) (Recognizer, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse asr command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("asr command is empty")
	}
	return &execRecognizer{cmd: args}, nil
}

func (r *execRecognizer) LoadModel(path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("asr model %q: %w", path, err)
	}
	r.mu.Lock()
	r.modelPath = path
	r.mu.Unlock()
	return nil
}

func (r *execRecognizer) IsModelLoaded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.modelPath != ""
}

func (r *execRecognizer) Unload() {
	r.mu.Lock()
	r.modelPath = ""
	r.mu.Unlock()
}

func (r *execRecognizer) Transcribe(ctx context.Context, wavPath, language string) (Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.modelPath == "" {
		return Result{}, ErrModelNotLoaded
	}

	durationMs, err := wavDurationMs(wavPath)
	if err != nil {
		return Result{}, err
	}

	args := append([]string{}, r.cmd[1:]...)
	args = append(args, "--audio", wavPath, "--model", r.modelPath)
	if language != "" {
		args = append(args, "--language", language)
	}

	command := exec.CommandContext(ctx, r.cmd[0], args...)
	var stdout, stderr bytes.Buffer
	command.Stdout = &stdout
	command.Stderr = &stderr

	if err := command.Run(); err != nil {
		return Result{}, fmt.Errorf("asr command failed: %w: %s", err, stderr.String())
	}

	var out execOutput
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		return Result{}, fmt.Errorf("decode asr response: %w", err)
	}
	return Result{
		Text:                out.Text,
		DurationMs:          durationMs,
		DetectedLanguage:    out.Language,
		DetectedProbability: out.LanguageProbability,
	}, nil
}

// wavDurationMs decodes just enough of the WAV to derive its duration.
func wavDurationMs(path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open wav: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	d, err := dec.Duration()
	if err != nil {
		return 0, fmt.Errorf("wav duration: %w", err)
	}
	return d.Milliseconds(), nil
}

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/noteinsight/noteinsight-core/internal/asr"
	"github.com/noteinsight/noteinsight-core/internal/audio"
	"github.com/noteinsight/noteinsight-core/internal/transcript"
)

var (
	// ErrNotIdle is returned by Start while a recording is live.
	ErrNotIdle = errors.New("session is not idle")
	// ErrNotRecording is returned by Stop outside the recording state.
	ErrNotRecording = errors.New("session is not recording")
	// ErrSessionMismatch is returned when a control call names a different
	// note or session than the live one.
	ErrSessionMismatch = errors.New("note or session id does not match the live session")
)

// Config holds the session tunables.
type Config struct {
	AudioDir        string
	SampleRate      int
	WindowSeconds   int
	PartialInterval time.Duration
	MinAudio        time.Duration // below this, partial ticks skip
	StopGrace       time.Duration // max wait for an in-flight partial at stop
}

// StartParams identify and configure a new recording.
type StartParams struct {
	NoteID       string
	SessionID    string
	LanguageMode transcript.Lock // auto, en or tr
	ASRModel     string
}

// StopParams identify the recording to stop.
type StopParams struct {
	NoteID       string
	SessionID    string
	LanguageLock transcript.Lock // auto, en or tr
}

// StopResult is returned synchronously from Stop; the final transcription
// arrives later as a final event.
type StopResult struct {
	AudioPath    string
	DurationMs   int64
	LanguageLock transcript.Lock
}

// Session is the recording lifecycle state machine. One recording is live at
// a time; events flow to the coordinator over a single channel.
type Session struct {
	cfg        Config
	rec        asr.Recognizer
	newBackend func() audio.CaptureBackend
	log        *slog.Logger
	metrics    *sessionMetrics
	events     chan Event

	mu        sync.Mutex
	status    Status
	noteID    string
	sessionID string
	mode      transcript.Lock
	lock      transcript.Lock
	asrModel  string
	ring      *audio.Ring
	writer    *audio.WavWriter
	graph     *audio.Graph
	sched     *partialScheduler
}

// New creates an idle session. newBackend is invoked per recording so each
// start gets a fresh capture device.
func New(cfg Config, rec asr.Recognizer, newBackend func() audio.CaptureBackend, log *slog.Logger) *Session {
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 16000
	}
	if cfg.WindowSeconds == 0 {
		cfg.WindowSeconds = 6
	}
	if cfg.PartialInterval == 0 {
		cfg.PartialInterval = 900 * time.Millisecond
	}
	if cfg.MinAudio == 0 {
		cfg.MinAudio = time.Second
	}
	if cfg.StopGrace == 0 {
		cfg.StopGrace = 5 * time.Second
	}
	return &Session{
		cfg:        cfg,
		rec:        rec,
		newBackend: newBackend,
		log:        log.With(slog.String("component", "session")),
		metrics:    newSessionMetrics(),
		events:     make(chan Event, 32),
		status:     StatusIdle,
	}
}

// Events returns the channel the coordinator consumes. Partial, final and
// state events for one session are totally ordered on it.
func (s *Session) Events() <-chan Event {
	return s.events
}

// Start begins a recording. Fatal setup errors (microphone permission, file
// creation) leave the session idle and emit no final event.
func (s *Session) Start(p StartParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusIdle {
		return ErrNotIdle
	}
	if !s.rec.IsModelLoaded() {
		return asr.ErrModelNotLoaded
	}

	if err := os.MkdirAll(s.cfg.AudioDir, 0o755); err != nil {
		return fmt.Errorf("create audio dir: %w", err)
	}

	writer, err := audio.NewWavWriter(filepath.Join(s.cfg.AudioDir, p.NoteID+".wav"), s.cfg.SampleRate, 1)
	if err != nil {
		return err
	}

	ring := audio.NewRing(s.cfg.WindowSeconds * s.cfg.SampleRate)
	graph := audio.NewGraph(s.newBackend(), ring, writer, s.log)
	if err := graph.Start(); err != nil {
		writer.Abort()
		return err
	}

	s.noteID = p.NoteID
	s.sessionID = p.SessionID
	s.mode = p.LanguageMode
	s.lock = transcript.LockNone
	s.asrModel = p.ASRModel
	s.ring = ring
	s.writer = writer
	s.graph = graph

	s.sched = &partialScheduler{
		ring:       ring,
		rec:        s.rec,
		log:        s.log,
		metrics:    s.metrics,
		sampleRate: s.cfg.SampleRate,
		window:     s.cfg.WindowSeconds * s.cfg.SampleRate,
		minSamples: int(s.cfg.MinAudio.Seconds() * float64(s.cfg.SampleRate)),
		interval:   s.cfg.PartialInterval,
		language:   s.partialLanguage,
		onAutoLock: s.setLock,
		emit:       s.emitPartial(p.NoteID, p.SessionID),
	}
	s.sched.start()

	s.status = StatusRecording
	s.emitStateLocked()
	s.log.Info("recording started",
		slog.String("note_id", p.NoteID),
		slog.String("session_id", p.SessionID),
		slog.String("language_mode", string(p.LanguageMode)))
	return nil
}

// Stop halts capture and returns synchronously with the audio facts; the
// final transcription runs in the background and surfaces as a final event,
// with a populated Err on any failure so consumers never wait forever.
func (s *Session) Stop(p StopParams) (StopResult, error) {
	s.mu.Lock()
	if s.status != StatusRecording {
		s.mu.Unlock()
		return StopResult{}, ErrNotRecording
	}
	if p.NoteID != s.noteID || p.SessionID != s.sessionID {
		s.mu.Unlock()
		return StopResult{}, ErrSessionMismatch
	}
	s.status = StatusStopping
	s.emitStateLocked()
	sched := s.sched
	graph := s.graph
	writer := s.writer
	noteID, sessionID := s.noteID, s.sessionID
	s.mu.Unlock()

	sched.stop()

	// Grace period: let an in-flight partial inference finish. A late
	// partial after this window is dropped by the coordinator's gating.
	deadline := time.Now().Add(s.cfg.StopGrace)
	for sched.InferenceInFlight() && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}

	if err := graph.Stop(); err != nil {
		s.failStop(noteID, sessionID, err)
		return StopResult{}, err
	}

	frames := graph.TotalFramesWritten()
	durationMs := frames * 1000 / int64(s.cfg.SampleRate)

	audioPath, err := writer.Finish()
	if err != nil {
		s.failStop(noteID, sessionID, err)
		return StopResult{}, err
	}

	mode := s.finalMode(p.LanguageLock)
	go s.finalize(noteID, sessionID, audioPath, durationMs, mode)

	return StopResult{
		AudioPath:    audioPath,
		DurationMs:   durationMs,
		LanguageLock: p.LanguageLock,
	}, nil
}

// finalMode picks the language mode for the final transcription: an evolved
// auto_X lock refines a requested auto, everything else is taken as asked.
func (s *Session) finalMode(requested transcript.Lock) transcript.Lock {
	s.mu.Lock()
	defer s.mu.Unlock()
	if requested == transcript.LockAuto && (s.lock == transcript.LockAutoEN || s.lock == transcript.LockAutoTR) {
		return s.lock
	}
	return requested
}

func (s *Session) finalize(noteID, sessionID, audioPath string, durationMs int64, mode transcript.Lock) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*inferenceTimeout)
	defer cancel()

	ev := Event{
		Kind:       KindFinal,
		NoteID:     noteID,
		SessionID:  sessionID,
		DurationMs: durationMs,
	}

	outcome, err := transcript.ResolveFinal(ctx, s.rec, audioPath, mode)
	switch {
	case err != nil:
		ev.Err = err.Error()
		s.log.Warn("final transcription failed", slog.String("error", err.Error()))
	case outcome.Text == "":
		ev.Err = "Empty transcription"
		ev.LanguageLock = outcome.Lock
	default:
		ev.LanguageLock = outcome.Lock
		ev.Segments = transcript.DistributeSegments(outcome.Text, durationMs, transcript.NormalizeLang(string(outcome.Lock)))
	}

	s.send(ev)

	s.mu.Lock()
	s.status = StatusIdle
	s.sched = nil
	s.graph = nil
	s.writer = nil
	s.ring = nil
	s.emitStateLocked()
	s.mu.Unlock()
}

// failStop emits an error final and returns the session to idle.
func (s *Session) failStop(noteID, sessionID string, cause error) {
	s.send(Event{
		Kind:      KindFinal,
		NoteID:    noteID,
		SessionID: sessionID,
		Err:       cause.Error(),
	})
	s.mu.Lock()
	s.status = StatusIdle
	s.sched = nil
	s.graph = nil
	s.writer = nil
	s.ring = nil
	s.emitStateLocked()
	s.mu.Unlock()
}

// SetLanguage changes the user language mode mid-recording.
func (s *Session) SetLanguage(noteID string, mode transcript.Lock) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusRecording {
		return ErrNotRecording
	}
	if noteID != s.noteID {
		return ErrSessionMismatch
	}
	s.mode = mode
	s.emitStateLocked()
	return nil
}

// State returns a snapshot state event.
func (s *Session) State() Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateEventLocked()
}

func (s *Session) partialLanguage() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return transcript.PartialLanguage(s.lock, s.mode)
}

func (s *Session) setLock(lock transcript.Lock) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lock = lock
}

func (s *Session) currentLock() transcript.Lock {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lock
}

// emitPartial binds the identity of the live recording so late emissions
// from a finished inference still carry the session they belong to.
func (s *Session) emitPartial(noteID, sessionID string) func([]transcript.Segment, transcript.Lock) {
	return func(segments []transcript.Segment, tickLock transcript.Lock) {
		lock := tickLock
		if lock == transcript.LockNone {
			lock = s.currentLock()
		}
		s.send(Event{
			Kind:         KindPartial,
			NoteID:       noteID,
			SessionID:    sessionID,
			Segments:     segments,
			LanguageLock: lock,
		})
	}
}

func (s *Session) stateEventLocked() Event {
	return Event{
		Kind:         KindState,
		NoteID:       s.noteID,
		SessionID:    s.sessionID,
		Status:       s.status,
		LanguageMode: s.mode,
		LanguageLock: s.lock,
	}
}

func (s *Session) emitStateLocked() {
	s.send(s.stateEventLocked())
}

func (s *Session) send(ev Event) {
	s.metrics.eventsEmitted.Add(context.Background(), 1)
	s.events <- ev
}

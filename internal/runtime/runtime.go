// Package runtime assembles the daemon: telemetry, the note store, the
// recognizer, the recording session and the coordinator, plus the ops HTTP
// surface.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/noteinsight/noteinsight-core/internal/asr"
	"github.com/noteinsight/noteinsight-core/internal/audio"
	"github.com/noteinsight/noteinsight-core/internal/config"
	"github.com/noteinsight/noteinsight-core/internal/coordinator"
	"github.com/noteinsight/noteinsight-core/internal/session"
	"github.com/noteinsight/noteinsight-core/internal/store"
	"github.com/noteinsight/noteinsight-core/internal/transcript"
)

type Runtime struct {
	cfg         config.Config
	logger      *slog.Logger
	httpServer  *http.Server
	tracerClose func(context.Context) error
	ready       atomic.Bool
	wg          sync.WaitGroup

	store   *store.Store
	rec     asr.Recognizer
	session *session.Session
	coord   *coordinator.Coordinator
}

func New(cfg config.Config, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg:    cfg,
		logger: logger,
	}
}

// Ready reports whether Start has finished wiring the runtime.
func (r *Runtime) Ready() bool { return r.ready.Load() }

// Store exposes the note store for callers embedding the runtime.
func (r *Runtime) Store() *store.Store { return r.store }

// Coordinator exposes the partial cache for read access.
func (r *Runtime) Coordinator() *coordinator.Coordinator { return r.coord }

// Start brings the runtime up and blocks until ctx is cancelled.
func (r *Runtime) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdownTelemetry, metricsHandler, err := setupTelemetry(r.cfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	r.tracerClose = shutdownTelemetry

	st, err := store.Open(ctx, r.cfg.Storage.Path, r.logger)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()
	r.store = st

	rec, err := r.buildRecognizer()
	if err != nil {
		return err
	}
	r.rec = rec

	sampleRate := r.cfg.ASR.SampleRate
	r.session = session.New(session.Config{
		AudioDir:        r.cfg.Storage.AudioDir,
		SampleRate:      sampleRate,
		WindowSeconds:   r.cfg.ASR.WindowSeconds,
		PartialInterval: time.Duration(r.cfg.ASR.PartialIntervalMS) * time.Millisecond,
		MinAudio:        time.Duration(r.cfg.ASR.MinAudioMS) * time.Millisecond,
		StopGrace:       time.Duration(r.cfg.ASR.StopGraceMS) * time.Millisecond,
	}, rec, func() audio.CaptureBackend {
		return audio.NewMalgoBackend(sampleRate)
	}, r.logger)

	r.coord = coordinator.New(st, r.logger)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.coord.Run(ctx, r.session.Events())
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", r.handleHealth)
	mux.HandleFunc("/readyz", r.handleReady)
	if metricsHandler != nil {
		mux.Handle("/metrics", metricsHandler)
	}

	addr := fmt.Sprintf("%s:%d", r.cfg.HTTP.Bind, r.cfg.HTTP.Port)
	r.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			r.logger.Error("http server failed", slog.String("error", err.Error()))
		}
	}()

	r.ready.Store(true)
	r.logger.Info("runtime started",
		slog.String("addr", addr),
		slog.String("asr_mode", r.cfg.ASR.Mode))

	<-ctx.Done()
	r.logger.Info("runtime stopping")
	r.ready.Store(false)

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := r.httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Error("http shutdown error", slog.String("error", err.Error()))
	}
	cancel()
	r.wg.Wait()

	r.rec.Unload()

	if r.tracerClose != nil {
		if err := r.tracerClose(shutdownCtx); err != nil {
			r.logger.Error("telemetry shutdown error", slog.String("error", err.Error()))
		}
	}

	return nil
}

func (r *Runtime) buildRecognizer() (asr.Recognizer, error) {
	switch r.cfg.ASR.Mode {
	case "exec":
		rec, err := asr.NewExecRecognizer(r.cfg.ASR.Command)
		if err != nil {
			return nil, fmt.Errorf("failed to build exec recognizer: %w", err)
		}
		if err := rec.LoadModel(r.cfg.ASR.ModelPath); err != nil {
			return nil, fmt.Errorf("failed to load model: %w", err)
		}
		return rec, nil
	default:
		rec := asr.NewMockRecognizer()
		rec.Script("en", asr.Result{Text: "This is a mock transcription."})
		rec.Script("tr", asr.Result{Text: "Bu sahte bir transkripsiyon."})
		rec.Script("auto", asr.Result{
			Text:                "This is a mock transcription.",
			DetectedLanguage:    "en",
			DetectedProbability: 0.95,
		})
		return rec, nil
	}
}

// StartRecording creates a note and begins capturing into it. The returned
// session id must accompany the matching stop call.
func (r *Runtime) StartRecording(ctx context.Context, title string, mode transcript.Lock) (store.Note, string, error) {
	if !mode.Valid() {
		mode = transcript.LockAuto
	}
	note, err := r.store.CreateNote(ctx, title)
	if err != nil {
		return store.Note{}, "", err
	}
	sessionID := uuid.NewString()
	if err := r.session.Start(session.StartParams{
		NoteID:       note.ID,
		SessionID:    sessionID,
		LanguageMode: mode,
		ASRModel:     r.cfg.ASR.ModelPath,
	}); err != nil {
		return store.Note{}, "", err
	}
	return note, sessionID, nil
}

// StopRecording halts the live session and records the audio facts on the
// note. The final transcription lands asynchronously via the coordinator.
func (r *Runtime) StopRecording(ctx context.Context, noteID, sessionID string, lock transcript.Lock) (session.StopResult, error) {
	res, err := r.session.Stop(session.StopParams{
		NoteID:       noteID,
		SessionID:    sessionID,
		LanguageLock: lock,
	})
	if err != nil {
		return session.StopResult{}, err
	}
	if err := r.store.FinalizeRecording(ctx, noteID, res.DurationMs,
		string(res.LanguageLock), res.AudioPath, r.cfg.ASR.ModelPath); err != nil {
		return res, err
	}
	return res, nil
}

// SetLanguage switches the language mode of the live recording.
func (r *Runtime) SetLanguage(noteID string, mode transcript.Lock) error {
	return r.session.SetLanguage(noteID, mode)
}

func (r *Runtime) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (r *Runtime) handleReady(w http.ResponseWriter, _ *http.Request) {
	if r.ready.Load() {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("not ready"))
}

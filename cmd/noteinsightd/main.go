package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/noteinsight/noteinsight-core/internal/config"
	"github.com/noteinsight/noteinsight-core/internal/runtime"
	"github.com/noteinsight/noteinsight-core/internal/transcript"
)

var version = "0.1.0-dev"

func main() {
	var (
		configPath  string
		showVersion bool
		record      bool
		title       string
		language    string
	)

	flag.StringVar(&configPath, "config", "noteinsight.yaml", "Path to configuration file")
	flag.BoolVar(&showVersion, "version", false, "Print version and exit")
	flag.BoolVar(&record, "record", false, "Record one note until interrupted, then print its transcript")
	flag.StringVar(&title, "title", "Untitled note", "Title for the recorded note")
	flag.StringVar(&language, "language", "auto", "Language mode: auto, en or tr")
	flag.Parse()

	if showVersion {
		fmt.Println(version)
		return
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	rt := runtime.New(cfg, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if record {
		if err := recordOnce(ctx, rt, logger, title, language); err != nil {
			logger.Error("recording failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		return
	}

	if err := rt.Start(ctx); err != nil {
		logger.Error("runtime exited with error", slog.String("error", err.Error()))
		time.Sleep(1 * time.Second)
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}

// recordOnce runs the runtime, records a single note until the first signal,
// then waits for the final transcription and prints the persisted segments.
func recordOnce(ctx context.Context, rt *runtime.Runtime, logger *slog.Logger, title, language string) error {
	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- rt.Start(runCtx) }()

	for !rt.Ready() {
		select {
		case err := <-errCh:
			return err
		case <-time.After(50 * time.Millisecond):
		}
	}

	mode := transcript.Lock(language)
	note, sessionID, err := rt.StartRecording(ctx, title, mode)
	if err != nil {
		return err
	}
	logger.Info("recording, press ctrl-c to stop",
		slog.String("note_id", note.ID),
		slog.String("language", language))

	<-ctx.Done()

	stopCtx, cancelStop := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancelStop()

	res, err := rt.StopRecording(stopCtx, note.ID, sessionID, mode)
	if err != nil {
		return err
	}
	logger.Info("recording stopped",
		slog.Int64("duration_ms", res.DurationMs),
		slog.String("audio_path", res.AudioPath))

	// The final transcription persists in the background; poll briefly.
	deadline := time.Now().Add(90 * time.Second)
	for time.Now().Before(deadline) {
		n, err := rt.Store().CountSegments(stopCtx, note.ID)
		if err != nil {
			return err
		}
		if n > 0 {
			break
		}
		time.Sleep(250 * time.Millisecond)
	}

	segs, err := rt.Store().ListSegments(stopCtx, note.ID)
	if err != nil {
		return err
	}
	for _, seg := range segs {
		fmt.Printf("[%6d..%6d] %s\n", seg.StartMs, seg.EndMs, seg.Text)
	}
	return nil
}

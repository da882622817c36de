package audio

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"
)

// fakeBackend drives the graph callback synchronously from the test.
type fakeBackend struct {
	onData  func([]float32)
	started bool
	stopped bool
}

func (f *fakeBackend) Open(onData func([]float32)) error {
	f.onData = onData
	return nil
}
func (f *fakeBackend) Start() error { f.started = true; return nil }
func (f *fakeBackend) Stop() error  { f.stopped = true; return nil }
func (f *fakeBackend) Close() error { return nil }

func (f *fakeBackend) feed(block []float32) {
	f.onData(block)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestGraphFanOut(t *testing.T) {
	backend := &fakeBackend{}
	ring := NewRing(96000)
	writer, err := NewWavWriter(filepath.Join(t.TempDir(), "g.wav"), 16000, 1)
	if err != nil {
		t.Fatalf("new wav writer: %v", err)
	}

	g := NewGraph(backend, ring, writer, testLogger())
	if err := g.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !backend.started {
		t.Fatal("backend not started")
	}

	backend.feed([]float32{0.5, -0.5, 0.0})
	backend.feed([]float32{1.0, -1.0})

	if err := g.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if !backend.stopped {
		t.Fatal("backend not stopped")
	}

	if got := g.TotalFramesWritten(); got != 5 {
		t.Errorf("TotalFramesWritten = %d, want 5", got)
	}
	if ring.Count() != 5 {
		t.Errorf("ring count = %d, want 5", ring.Count())
	}
	if writer.DataSize() != 10 {
		t.Errorf("wav data size = %d, want 10", writer.DataSize())
	}

	snap := ring.Snapshot(5)
	want := []int16{16383, -16383, 0, 32767, -32767}
	for i, s := range want {
		if snap[i] != s {
			t.Errorf("snap[%d] = %d, want %d", i, snap[i], s)
		}
	}
}

func TestGraphStopIsIdempotent(t *testing.T) {
	backend := &fakeBackend{}
	writer, err := NewWavWriter(filepath.Join(t.TempDir(), "g.wav"), 16000, 1)
	if err != nil {
		t.Fatalf("new wav writer: %v", err)
	}
	g := NewGraph(backend, NewRing(1600), writer, testLogger())
	if err := g.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := g.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := g.Stop(); err != nil {
		t.Fatalf("second stop: %v", err)
	}
}

func TestFloatToPCMClamps(t *testing.T) {
	got := FloatToPCM([]float32{2.0, -2.0, 0.5})
	want := []int16{32767, -32767, 16383}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("FloatToPCM[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

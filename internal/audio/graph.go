package audio

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Graph fans captured audio out to the ring buffer and the WAV writer.
// The capture callback only converts the block and hands it off; all file
// writes happen on a single serial goroutine so they never reorder.
type Graph struct {
	backend CaptureBackend
	ring    *Ring
	writer  *WavWriter
	log     *slog.Logger

	blocks chan []int16
	done   chan struct{}
	frames atomic.Int64

	mu       sync.Mutex
	running  bool
	writeErr error
}

// NewGraph wires a capture backend to a ring buffer and a WAV writer.
func NewGraph(backend CaptureBackend, ring *Ring, writer *WavWriter, log *slog.Logger) *Graph {
	return &Graph{
		backend: backend,
		ring:    ring,
		writer:  writer,
		log:     log.With(slog.String("component", "audio_graph")),
	}
}

// Start opens the capture device and begins streaming.
func (g *Graph) Start() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running {
		return fmt.Errorf("audio graph already running")
	}

	g.blocks = make(chan []int16, 64)
	g.done = make(chan struct{})
	g.frames.Store(0)
	g.writeErr = nil

	if err := g.backend.Open(g.onData); err != nil {
		return err
	}
	if err := g.backend.Start(); err != nil {
		g.backend.Close()
		return err
	}

	go g.writeLoop()
	g.running = true
	return nil
}

// onData runs on the capture thread: convert, push to the ring, enqueue for
// the serial writer.
func (g *Graph) onData(block []float32) {
	if len(block) == 0 {
		return
	}
	pcm := FloatToPCM(block)
	g.ring.Append(pcm)
	g.blocks <- pcm
}

func (g *Graph) writeLoop() {
	defer close(g.done)
	for block := range g.blocks {
		if g.writeErr != nil {
			continue // drain after first failure so Stop never blocks
		}
		if err := g.writer.Append(block); err != nil {
			g.writeErr = err
			g.log.Error("wav write failed", slog.String("error", err.Error()))
			continue
		}
		g.frames.Add(int64(len(block)))
	}
}

// Stop halts capture and drains the serial write queue before returning.
// After Stop, TotalFramesWritten is final.
func (g *Graph) Stop() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.running {
		return nil
	}
	g.running = false

	stopErr := g.backend.Stop()
	g.backend.Close()

	// Barrier: no new blocks can arrive once the device is stopped.
	close(g.blocks)
	<-g.done

	if stopErr != nil {
		return stopErr
	}
	return g.writeErr
}

// TotalFramesWritten reports the number of 16 kHz frames durably handed to
// the WAV writer. Authoritative for session duration.
func (g *Graph) TotalFramesWritten() int64 {
	return g.frames.Load()
}

// FloatToPCM clamps each sample to [-1, 1] and truncates to int16.
func FloatToPCM(block []float32) []int16 {
	out := make([]int16, len(block))
	for i, f := range block {
		if f > 1.0 {
			f = 1.0
		} else if f < -1.0 {
			f = -1.0
		}
		out[i] = int16(f * 32767)
	}
	return out
}

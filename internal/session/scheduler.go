package session

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/noteinsight/noteinsight-core/internal/asr"
	"github.com/noteinsight/noteinsight-core/internal/audio"
	"github.com/noteinsight/noteinsight-core/internal/transcript"
)

const (
	// maxPartialSegments caps how many segments a single partial emits.
	maxPartialSegments = 10
	// inferenceTimeout bounds a single recognizer call.
	inferenceTimeout = 45 * time.Second
	// minEmitDelta is the minimum character growth before re-emitting a
	// partial that extends the previous one.
	minEmitDelta = 3
)

// partialScheduler periodically snapshots the ring buffer and runs a partial
// inference. At most one inference is ever in flight; a tick that would
// overlap simply skips.
type partialScheduler struct {
	ring       *audio.Ring
	rec        asr.Recognizer
	log        *slog.Logger
	metrics    *sessionMetrics
	sampleRate int
	window     int // samples
	minSamples int
	interval   time.Duration

	// language returns the effective partial language for the next tick.
	language func() string
	// onAutoLock pins the session language after a confident forced run.
	onAutoLock func(transcript.Lock)
	// emit delivers built segments; lock is the lock established by this
	// tick, if any.
	emit func(segments []transcript.Segment, lock transcript.Lock)

	inFlight atomic.Bool
	cancel   context.CancelFunc
	done     chan struct{}
	lastText string
}

func (p *partialScheduler) start() {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.run(ctx)
}

// stop cancels the ticker. An in-flight inference is not interrupted; the
// caller polls InferenceInFlight for the grace period.
func (p *partialScheduler) stop() {
	if p.cancel != nil {
		p.cancel()
	}
}

func (p *partialScheduler) InferenceInFlight() bool {
	return p.inFlight.Load()
}

func (p *partialScheduler) run(ctx context.Context) {
	defer close(p.done)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

// tick runs one partial inference cycle. The inference itself is not bound
// to ctx: once started it is allowed to complete.
func (p *partialScheduler) tick(ctx context.Context) {
	p.metrics.partialTicks.Add(ctx, 1)

	if p.inFlight.Load() {
		p.metrics.ticksSkipped.Add(ctx, 1)
		return
	}
	if p.ring.Count() < p.minSamples {
		p.metrics.ticksSkipped.Add(ctx, 1)
		return
	}

	p.inFlight.Store(true)
	defer p.inFlight.Store(false)

	snap := p.ring.Snapshot(p.window)

	scratch, err := os.CreateTemp("", "noteinsight_partial_*.wav")
	if err != nil {
		p.log.Warn("create scratch wav failed", slog.String("error", err.Error()))
		return
	}
	scratchPath := scratch.Name()
	scratch.Close()
	defer os.Remove(scratchPath)

	if err := audio.WriteWavFile(scratchPath, snap, p.sampleRate, 1); err != nil {
		p.log.Warn("write scratch wav failed", slog.String("error", err.Error()))
		return
	}

	ictx, cancel := context.WithTimeout(context.Background(), inferenceTimeout)
	defer cancel()

	lang := p.language()
	p.metrics.inferences.Add(ctx, 1)
	res, err := p.rec.Transcribe(ictx, scratchPath, lang)
	if err != nil {
		p.log.Warn("partial transcription failed", slog.String("error", err.Error()))
		return
	}

	text := strings.TrimSpace(res.Text)
	var tickLock transcript.Lock
	segLang := lang
	if lang == "auto" && (res.DetectedLanguage == "en" || res.DetectedLanguage == "tr") {
		segLang = res.DetectedLanguage
	}

	// Auto detection fallback: an empty auto run with a confident detected
	// language gets one forced retry, and a very confident non-empty retry
	// pins the session language for subsequent ticks.
	if lang == "auto" && text == "" {
		detected := res.DetectedLanguage
		if (detected == "en" || detected == "tr") && res.DetectedProbability >= transcript.DetectThreshold {
			p.metrics.inferences.Add(ctx, 1)
			forced, err := p.rec.Transcribe(ictx, scratchPath, detected)
			if err != nil {
				p.log.Warn("forced partial transcription failed", slog.String("error", err.Error()))
				return
			}
			if t := strings.TrimSpace(forced.Text); t != "" {
				text = t
				segLang = detected
				if res.DetectedProbability >= transcript.LockThreshold {
					tickLock = transcript.LockForLanguage(detected)
					p.onAutoLock(tickLock)
				}
			}
		}
	}

	if !p.shouldEmit(text) {
		return
	}
	p.lastText = text

	windowMs := int64(p.window) * 1000 / int64(p.sampleRate)
	segments := transcript.DistributeSegments(text, windowMs, transcript.NormalizeLang(segLang))
	if len(segments) > maxPartialSegments {
		segments = segments[:maxPartialSegments]
	}

	p.emit(segments, tickLock)
}

// shouldEmit suppresses flicker: a partial that merely extends the previous
// text by fewer than three characters is dropped, but any prefix break (a
// correction) always goes out.
func (p *partialScheduler) shouldEmit(text string) bool {
	if text == p.lastText {
		return false
	}
	if strings.HasPrefix(text, p.lastText) {
		return len([]rune(text))-len([]rune(p.lastText)) >= minEmitDelta
	}
	return true
}

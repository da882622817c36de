// Package coordinator consumes session events and decides what becomes
// durable. Partials stay in memory; finals are gated against the live or
// most recent session and persisted exactly once.
package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/noteinsight/noteinsight-core/internal/session"
	"github.com/noteinsight/noteinsight-core/internal/transcript"
)

// SegmentStore is the slice of the store the coordinator writes through.
type SegmentStore interface {
	InsertFinalSegment(ctx context.Context, noteID string, seg transcript.Segment) (bool, error)
}

type coordinatorMetrics struct {
	finalsInserted metric.Int64Counter
	staleDropped   metric.Int64Counter
	partialsCached metric.Int64Counter
}

func newCoordinatorMetrics() *coordinatorMetrics {
	meter := otel.Meter("noteinsight/coordinator")
	m := &coordinatorMetrics{}
	m.finalsInserted, _ = meter.Int64Counter("noteinsight_final_segments_inserted_total",
		metric.WithDescription("Final segments persisted"))
	m.staleDropped, _ = meter.Int64Counter("noteinsight_stale_events_dropped_total",
		metric.WithDescription("Events dropped by session gating"))
	m.partialsCached, _ = meter.Int64Counter("noteinsight_partials_cached_total",
		metric.WithDescription("Partial updates accepted into the in-memory cache"))
	return m
}

// Coordinator is the single consumer of the session event channel.
type Coordinator struct {
	store   SegmentStore
	log     *slog.Logger
	metrics *coordinatorMetrics

	mu            sync.Mutex
	liveNoteID    string
	liveSessionID string
	// lastNoteID and lastSessionID survive the transition back to idle so a
	// final that lands after the state change is still accepted once.
	lastNoteID    string
	lastSessionID string

	partialNoteID string
	partialSegs   []transcript.Segment
	partialLock   transcript.Lock

	inserted map[string]struct{}
}

func New(store SegmentStore, log *slog.Logger) *Coordinator {
	return &Coordinator{
		store:    store,
		log:      log.With(slog.String("component", "coordinator")),
		metrics:  newCoordinatorMetrics(),
		inserted: make(map[string]struct{}),
	}
}

// Run pumps events until ctx is cancelled or the channel closes.
func (c *Coordinator) Run(ctx context.Context, events <-chan session.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			c.handle(ctx, ev)
		}
	}
}

func (c *Coordinator) handle(ctx context.Context, ev session.Event) {
	switch ev.Kind {
	case session.KindState:
		c.handleState(ev)
	case session.KindPartial:
		c.handlePartial(ctx, ev)
	case session.KindFinal:
		c.handleFinal(ctx, ev)
	}
}

func (c *Coordinator) handleState(ev session.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch ev.Status {
	case session.StatusRecording:
		c.liveNoteID = ev.NoteID
		c.liveSessionID = ev.SessionID
		c.lastNoteID = ev.NoteID
		c.lastSessionID = ev.SessionID
		if c.partialNoteID != ev.NoteID {
			c.partialNoteID = ev.NoteID
			c.partialSegs = nil
			c.partialLock = transcript.LockNone
		}
		// Dedupe keys from other notes are no longer reachable.
		for k := range c.inserted {
			if len(k) < len(ev.NoteID) || k[:len(ev.NoteID)] != ev.NoteID {
				delete(c.inserted, k)
			}
		}
	case session.StatusIdle:
		c.liveNoteID = ""
		c.liveSessionID = ""
	}
}

// handlePartial replaces the in-memory partial list. Partials from anything
// but the live session are stale by definition and dropped.
func (c *Coordinator) handlePartial(ctx context.Context, ev session.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.liveSessionID == "" || ev.SessionID != c.liveSessionID || ev.NoteID != c.liveNoteID {
		c.metrics.staleDropped.Add(ctx, 1)
		c.log.Debug("stale partial dropped",
			slog.String("note_id", ev.NoteID),
			slog.String("session_id", ev.SessionID))
		return
	}

	c.partialNoteID = ev.NoteID
	c.partialSegs = append([]transcript.Segment(nil), ev.Segments...)
	if c.partialLock == transcript.LockNone && ev.LanguageLock != transcript.LockNone {
		c.partialLock = ev.LanguageLock
	}
	c.metrics.partialsCached.Add(ctx, 1)
}

// handleFinal persists final segments. A final is accepted from the live
// session or, once, from the most recently finished one.
func (c *Coordinator) handleFinal(ctx context.Context, ev session.Event) {
	c.mu.Lock()
	live := c.liveSessionID != "" && ev.SessionID == c.liveSessionID && ev.NoteID == c.liveNoteID
	last := c.lastSessionID != "" && ev.SessionID == c.lastSessionID && ev.NoteID == c.lastNoteID
	if !live && !last {
		c.mu.Unlock()
		c.metrics.staleDropped.Add(ctx, 1)
		c.log.Warn("stale final dropped",
			slog.String("note_id", ev.NoteID),
			slog.String("session_id", ev.SessionID))
		return
	}
	// Consume the late-final allowance and drop the partial cache for this
	// note; the final supersedes it either way.
	c.lastNoteID = ""
	c.lastSessionID = ""
	if c.partialNoteID == ev.NoteID {
		c.partialSegs = nil
	}
	c.mu.Unlock()

	if ev.Err != "" {
		c.log.Warn("final carried an error, nothing to persist",
			slog.String("note_id", ev.NoteID),
			slog.String("error", ev.Err))
		return
	}

	for _, seg := range ev.Segments {
		key := fmt.Sprintf("%s:%d:%d:%s", ev.NoteID, seg.StartMs, seg.EndMs, seg.Text)
		c.mu.Lock()
		_, dup := c.inserted[key]
		c.mu.Unlock()
		if dup {
			continue
		}
		inserted, err := c.store.InsertFinalSegment(ctx, ev.NoteID, seg)
		if err != nil {
			c.log.Error("persist final segment failed",
				slog.String("note_id", ev.NoteID),
				slog.String("error", err.Error()))
			continue
		}
		if inserted {
			c.mu.Lock()
			c.inserted[key] = struct{}{}
			c.mu.Unlock()
			c.metrics.finalsInserted.Add(ctx, 1)
		}
	}
}

// Partials returns the cached partial segments for a note and the language
// lock adopted so far. The slice is a copy.
func (c *Coordinator) Partials(noteID string) ([]transcript.Segment, transcript.Lock) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.partialNoteID != noteID {
		return nil, transcript.LockNone
	}
	return append([]transcript.Segment(nil), c.partialSegs...), c.partialLock
}

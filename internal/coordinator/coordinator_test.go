package coordinator

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/noteinsight/noteinsight-core/internal/session"
	"github.com/noteinsight/noteinsight-core/internal/store"
	"github.com/noteinsight/noteinsight-core/internal/transcript"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestCoordinator(t *testing.T) (*Coordinator, *store.Store) {
	t.Helper()
	ctx := context.Background()
	st, err := store.Open(ctx, filepath.Join(t.TempDir(), "noteinsight.db"), testLogger())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return New(st, testLogger()), st
}

func recordingState(noteID, sessionID string) session.Event {
	return session.Event{Kind: session.KindState, NoteID: noteID, SessionID: sessionID, Status: session.StatusRecording}
}

func idleState() session.Event {
	return session.Event{Kind: session.KindState, Status: session.StatusIdle}
}

func mustCreateNote(t *testing.T, st *store.Store) string {
	t.Helper()
	n, err := st.CreateNote(context.Background(), "Untitled")
	if err != nil {
		t.Fatalf("create note: %v", err)
	}
	return n.ID
}

func TestFinalSegmentsPersisted(t *testing.T) {
	c, st := newTestCoordinator(t)
	ctx := context.Background()
	noteID := mustCreateNote(t, st)

	c.handle(ctx, recordingState(noteID, "s1"))
	c.handle(ctx, session.Event{
		Kind:      session.KindFinal,
		NoteID:    noteID,
		SessionID: "s1",
		Segments: []transcript.Segment{
			{StartMs: 0, EndMs: 2222, Text: "Hello world.", Lang: "en"},
			{StartMs: 2222, EndMs: 5000, Text: "This is a test.", Lang: "en"},
		},
	})

	segs, err := st.ListSegments(ctx, noteID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(segs) != 2 {
		t.Fatalf("segments = %d, want 2", len(segs))
	}
	if segs[0].Text != "Hello world." || !segs[0].IsFinal {
		t.Errorf("first segment = %+v", segs[0])
	}
}

func TestStaleFinalDropped(t *testing.T) {
	c, st := newTestCoordinator(t)
	ctx := context.Background()
	oldNote := mustCreateNote(t, st)
	newNote := mustCreateNote(t, st)

	c.handle(ctx, recordingState(oldNote, "s1"))
	c.handle(ctx, idleState())
	c.handle(ctx, recordingState(newNote, "s2"))

	// s1's final arrives after s2 started; it no longer matches live or last.
	c.handle(ctx, session.Event{
		Kind:      session.KindFinal,
		NoteID:    oldNote,
		SessionID: "s1",
		Segments:  []transcript.Segment{{StartMs: 0, EndMs: 1000, Text: "too late", Lang: "en"}},
	})

	n, err := st.CountSegments(ctx, oldNote)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Fatalf("stale final persisted %d segments", n)
	}
}

func TestLateFinalAfterIdleAcceptedOnce(t *testing.T) {
	c, st := newTestCoordinator(t)
	ctx := context.Background()
	noteID := mustCreateNote(t, st)

	c.handle(ctx, recordingState(noteID, "s1"))
	c.handle(ctx, idleState())

	final := session.Event{
		Kind:      session.KindFinal,
		NoteID:    noteID,
		SessionID: "s1",
		Segments:  []transcript.Segment{{StartMs: 0, EndMs: 1000, Text: "made it", Lang: "en"}},
	}
	c.handle(ctx, final)

	n, _ := st.CountSegments(ctx, noteID)
	if n != 1 {
		t.Fatalf("late final not persisted, count = %d", n)
	}

	// The allowance is consumed; replaying the final changes nothing.
	c.handle(ctx, final)
	n, _ = st.CountSegments(ctx, noteID)
	if n != 1 {
		t.Fatalf("replayed final persisted again, count = %d", n)
	}
}

func TestDuplicateFinalSegmentsInsertedOnce(t *testing.T) {
	c, st := newTestCoordinator(t)
	ctx := context.Background()
	noteID := mustCreateNote(t, st)

	c.handle(ctx, recordingState(noteID, "s1"))
	seg := transcript.Segment{StartMs: 0, EndMs: 3000, Text: "once only", Lang: "en"}
	c.handle(ctx, session.Event{Kind: session.KindFinal, NoteID: noteID, SessionID: "s1",
		Segments: []transcript.Segment{seg, seg}})

	n, _ := st.CountSegments(ctx, noteID)
	if n != 1 {
		t.Fatalf("duplicate segment persisted, count = %d", n)
	}
}

func TestPartialGatingAndReplacement(t *testing.T) {
	c, st := newTestCoordinator(t)
	ctx := context.Background()
	noteID := mustCreateNote(t, st)

	// No live session yet: dropped.
	c.handle(ctx, session.Event{Kind: session.KindPartial, NoteID: noteID, SessionID: "s1",
		Segments: []transcript.Segment{{Text: "early"}}})
	if segs, _ := c.Partials(noteID); segs != nil {
		t.Fatal("partial cached with no live session")
	}

	c.handle(ctx, recordingState(noteID, "s1"))

	// Wrong session id: dropped.
	c.handle(ctx, session.Event{Kind: session.KindPartial, NoteID: noteID, SessionID: "ghost",
		Segments: []transcript.Segment{{Text: "ghost"}}})
	if segs, _ := c.Partials(noteID); segs != nil {
		t.Fatal("mismatched partial cached")
	}

	c.handle(ctx, session.Event{Kind: session.KindPartial, NoteID: noteID, SessionID: "s1",
		Segments: []transcript.Segment{{StartMs: 0, EndMs: 6000, Text: "hello", Lang: "en"}}})
	c.handle(ctx, session.Event{Kind: session.KindPartial, NoteID: noteID, SessionID: "s1",
		Segments: []transcript.Segment{{StartMs: 0, EndMs: 6000, Text: "hello there", Lang: "en"}}})

	segs, _ := c.Partials(noteID)
	if len(segs) != 1 || segs[0].Text != "hello there" {
		t.Fatalf("partials = %+v, want single replaced entry", segs)
	}

	// Partials never reach the database.
	if n, _ := st.CountSegments(ctx, noteID); n != 0 {
		t.Fatalf("partials persisted, count = %d", n)
	}
}

func TestPartialLockAdoptedOnce(t *testing.T) {
	c, _ := newTestCoordinator(t)
	ctx := context.Background()

	c.handle(ctx, recordingState("n1", "s1"))
	c.handle(ctx, session.Event{Kind: session.KindPartial, NoteID: "n1", SessionID: "s1",
		LanguageLock: transcript.LockAutoTR,
		Segments:     []transcript.Segment{{Text: "merhaba", Lang: "tr"}}})
	c.handle(ctx, session.Event{Kind: session.KindPartial, NoteID: "n1", SessionID: "s1",
		LanguageLock: transcript.LockAutoEN,
		Segments:     []transcript.Segment{{Text: "hello", Lang: "en"}}})

	_, lock := c.Partials("n1")
	if lock != transcript.LockAutoTR {
		t.Fatalf("lock = %q, want first adopted auto_tr", lock)
	}
}

func TestErrorFinalPersistsNothing(t *testing.T) {
	c, st := newTestCoordinator(t)
	ctx := context.Background()
	noteID := mustCreateNote(t, st)

	c.handle(ctx, recordingState(noteID, "s1"))
	c.handle(ctx, session.Event{Kind: session.KindFinal, NoteID: noteID, SessionID: "s1",
		Err: "Empty transcription"})

	if n, _ := st.CountSegments(ctx, noteID); n != 0 {
		t.Fatalf("error final persisted %d segments", n)
	}
}

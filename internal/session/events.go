// Package session drives a single live recording: audio capture fan-out,
// periodic partial transcription, and the stop-time final transcription.
package session

import (
	"github.com/noteinsight/noteinsight-core/internal/transcript"
)

// Status is the session lifecycle state.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusRecording Status = "recording"
	StatusStopping  Status = "stopping"
)

// Kind discriminates events on the session channel.
type Kind string

const (
	KindPartial Kind = "partial"
	KindFinal   Kind = "final"
	KindState   Kind = "state"
)

// Event is the single payload type flowing from the session to the
// coordinator. Which fields are meaningful depends on Kind.
type Event struct {
	Kind      Kind
	NoteID    string
	SessionID string

	// partial + final
	Segments     []transcript.Segment
	LanguageLock transcript.Lock // empty when no lock has been established

	// final only
	DurationMs int64
	Err        string

	// state only
	Status       Status
	LanguageMode transcript.Lock
}

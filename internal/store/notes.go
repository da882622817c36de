package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// Note is one recording session's persistent record.
type Note struct {
	ID             string
	CreatedAt      int64 // wall-time ms
	UpdatedAt      int64
	Title          string
	DurationMs     *int64 // nil until the recording stops
	LanguageLock   *string
	AudioPath      *string
	ASRModel       *string
	LLMModel       *string
	InsightsStatus *string
}

// CreateNote inserts a fresh note and returns it.
func (s *Store) CreateNote(ctx context.Context, title string) (Note, error) {
	now := s.clock().UnixMilli()
	n := Note{
		ID:        uuid.NewString(),
		CreatedAt: now,
		UpdatedAt: now,
		Title:     title,
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notes(id, createdAt, updatedAt, title) VALUES(?, ?, ?, ?)`,
		n.ID, n.CreatedAt, n.UpdatedAt, n.Title)
	if err != nil {
		return Note{}, fmt.Errorf("insert note: %w", err)
	}
	return n, nil
}

// GetNote returns the note with the given id, or sql.ErrNoRows.
func (s *Store) GetNote(ctx context.Context, id string) (Note, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, createdAt, updatedAt, title, durationMs, languageLock,
		        audioPath, asrModel, llmModel, insightsStatus
		 FROM notes WHERE id = ?`, id)
	return scanNote(row)
}

// ListNotes returns up to limit notes, most recently updated first.
func (s *Store) ListNotes(ctx context.Context, limit int) ([]Note, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, createdAt, updatedAt, title, durationMs, languageLock,
		        audioPath, asrModel, llmModel, insightsStatus
		 FROM notes ORDER BY updatedAt DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query notes: %w", err)
	}
	defer rows.Close()

	var notes []Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

// RenameNote updates the note title.
func (s *Store) RenameNote(ctx context.Context, id, title string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE notes SET title = ?, updatedAt = ? WHERE id = ?`,
		title, s.clock().UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("rename note: %w", err)
	}
	return nil
}

// FinalizeRecording records the stop-time facts on the note. The audio path
// is only written here, after the WAV header has been patched.
func (s *Store) FinalizeRecording(ctx context.Context, id string, durationMs int64, languageLock, audioPath, asrModel string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE notes SET durationMs = ?, languageLock = ?, audioPath = ?, asrModel = ?, updatedAt = ?
		 WHERE id = ?`,
		durationMs, languageLock, audioPath, asrModel, s.clock().UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("finalize note: %w", err)
	}
	return nil
}

// DeleteNote removes the note; its segments go with it via CASCADE.
func (s *Store) DeleteNote(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM notes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete note: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNote(r rowScanner) (Note, error) {
	var n Note
	var durationMs sql.NullInt64
	var lock, audioPath, asrModel, llmModel, insights sql.NullString
	if err := r.Scan(&n.ID, &n.CreatedAt, &n.UpdatedAt, &n.Title,
		&durationMs, &lock, &audioPath, &asrModel, &llmModel, &insights); err != nil {
		return Note{}, err
	}
	if durationMs.Valid {
		n.DurationMs = &durationMs.Int64
	}
	if lock.Valid {
		n.LanguageLock = &lock.String
	}
	if audioPath.Valid {
		n.AudioPath = &audioPath.String
	}
	if asrModel.Valid {
		n.ASRModel = &asrModel.String
	}
	if llmModel.Valid {
		n.LLMModel = &llmModel.String
	}
	if insights.Valid {
		n.InsightsStatus = &insights.String
	}
	return n, nil
}

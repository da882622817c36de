package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/noteinsight/noteinsight-core/internal/transcript"
)

// SegmentRow is one persisted transcribed phrase.
type SegmentRow struct {
	ID      int64
	NoteID  string
	StartMs int64
	EndMs   int64
	Text    string
	IsFinal bool
	Lang    *string
}

// InsertFinalSegment writes a final segment, silently ignoring duplicates on
// (noteId, startMs, endMs). Returns whether a row was actually inserted.
// Partial segments never reach this store.
func (s *Store) InsertFinalSegment(ctx context.Context, noteID string, seg transcript.Segment) (bool, error) {
	text := strings.TrimSpace(seg.Text)
	if text == "" {
		return false, nil
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO segments(noteId, startMs, endMs, text, isFinal, lang)
		 VALUES(?, ?, ?, ?, 1, ?)`,
		noteID, seg.StartMs, seg.EndMs, text, seg.Lang)
	if err != nil {
		return false, fmt.Errorf("insert segment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("segment rows affected: %w", err)
	}
	return n > 0, nil
}

// ListSegments returns a note's segments ordered by start time.
func (s *Store) ListSegments(ctx context.Context, noteID string) ([]SegmentRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, noteId, startMs, endMs, text, isFinal, lang
		 FROM segments WHERE noteId = ? ORDER BY startMs ASC, endMs ASC`, noteID)
	if err != nil {
		return nil, fmt.Errorf("query segments: %w", err)
	}
	defer rows.Close()

	var segs []SegmentRow
	for rows.Next() {
		var row SegmentRow
		var lang sql.NullString
		if err := rows.Scan(&row.ID, &row.NoteID, &row.StartMs, &row.EndMs,
			&row.Text, &row.IsFinal, &lang); err != nil {
			return nil, err
		}
		if lang.Valid {
			row.Lang = &lang.String
		}
		segs = append(segs, row)
	}
	return segs, rows.Err()
}

// DeleteSegments removes all segments for a note without touching the note
// itself. Note deletion relies on CASCADE instead.
func (s *Store) DeleteSegments(ctx context.Context, noteID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM segments WHERE noteId = ?`, noteID)
	if err != nil {
		return fmt.Errorf("delete segments: %w", err)
	}
	return nil
}

// CountSegments returns the number of segments stored for a note.
func (s *Store) CountSegments(ctx context.Context, noteID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM segments WHERE noteId = ?`, noteID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count segments: %w", err)
	}
	return n, nil
}

// TotalSegments returns the number of segments across all notes.
func (s *Store) TotalSegments(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM segments`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count all segments: %w", err)
	}
	return n, nil
}

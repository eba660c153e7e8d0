package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// WatchedEntry tracks playback state for one file.
type WatchedEntry struct {
	ID           int64     `json:"id"`
	Ident        string    `json:"ident"`
	Title        string    `json:"title,omitempty"`
	Season       int       `json:"season,omitempty"`
	Episode      int       `json:"episode,omitempty"`
	PositionSecs int       `json:"positionSecs"`
	DurationSecs int       `json:"durationSecs,omitempty"`
	Watched      bool      `json:"watched"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// UpsertWatched records playback position for a file, keyed by its
// Webshare ident.
func (s *Store) UpsertWatched(ctx context.Context, entry WatchedEntry) error {
	if entry.Ident == "" {
		return fmt.Errorf("watched entry needs an ident")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO watched (ident, title, season, episode, position_secs, duration_secs, watched, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(ident) DO UPDATE SET
			title         = excluded.title,
			season        = excluded.season,
			episode       = excluded.episode,
			position_secs = excluded.position_secs,
			duration_secs = excluded.duration_secs,
			watched       = excluded.watched,
			updated_at    = excluded.updated_at`,
		entry.Ident, entry.Title, entry.Season, entry.Episode,
		entry.PositionSecs, entry.DurationSecs, entry.Watched, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert watched entry: %w", err)
	}
	return nil
}

// GetWatched returns playback state for a file, or nil when never
// played.
func (s *Store) GetWatched(ctx context.Context, ident string) (*WatchedEntry, error) {
	var e WatchedEntry
	err := s.db.QueryRowContext(ctx, `
		SELECT id, ident, title, season, episode, position_secs, duration_secs, watched, updated_at
		FROM watched WHERE ident = ?`, ident).
		Scan(&e.ID, &e.Ident, &e.Title, &e.Season, &e.Episode,
			&e.PositionSecs, &e.DurationSecs, &e.Watched, &e.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read watched entry: %w", err)
	}
	return &e, nil
}

// ListWatched returns recently played files, newest first.
func (s *Store) ListWatched(ctx context.Context, limit int) ([]WatchedEntry, error) {
	if limit < 1 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ident, title, season, episode, position_secs, duration_secs, watched, updated_at
		FROM watched ORDER BY updated_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query watched entries: %w", err)
	}
	defer rows.Close()

	var entries []WatchedEntry
	for rows.Next() {
		var e WatchedEntry
		if err := rows.Scan(&e.ID, &e.Ident, &e.Title, &e.Season, &e.Episode,
			&e.PositionSecs, &e.DurationSecs, &e.Watched, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan watched entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// DeleteWatched removes playback state for a file.
func (s *Store) DeleteWatched(ctx context.Context, ident string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM watched WHERE ident = ?`, ident)
	if err != nil {
		return fmt.Errorf("failed to delete watched entry: %w", err)
	}
	return nil
}

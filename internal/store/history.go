package store

import (
	"context"
	"fmt"
	"time"
)

// SearchEntry is one remembered search.
type SearchEntry struct {
	ID         int64     `json:"id"`
	Query      string    `json:"query"`
	Scope      string    `json:"scope,omitempty"`
	SearchedAt time.Time `json:"searchedAt"`
}

// AddSearch records a search query. Repeating a query moves it to the
// top instead of duplicating it.
func (s *Store) AddSearch(ctx context.Context, query, scope string) error {
	if query == "" {
		return nil
	}

	_, err := s.db.ExecContext(ctx,
		`DELETE FROM search_history WHERE query = ? AND scope = ?`, query, scope)
	if err != nil {
		return fmt.Errorf("failed to dedupe search history: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO search_history (query, scope, searched_at) VALUES (?, ?, ?)`,
		query, scope, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to record search: %w", err)
	}
	return nil
}

// RecentSearches returns the newest entries, most recent first.
func (s *Store) RecentSearches(ctx context.Context, limit int) ([]SearchEntry, error) {
	if limit < 1 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, query, scope, searched_at FROM search_history
		 ORDER BY searched_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query search history: %w", err)
	}
	defer rows.Close()

	var entries []SearchEntry
	for rows.Next() {
		var e SearchEntry
		if err := rows.Scan(&e.ID, &e.Query, &e.Scope, &e.SearchedAt); err != nil {
			return nil, fmt.Errorf("failed to scan search entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// DeleteSearch removes a single history entry.
func (s *Store) DeleteSearch(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM search_history WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete search entry: %w", err)
	}
	return nil
}

// ClearSearchHistory removes all remembered searches.
func (s *Store) ClearSearchHistory(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM search_history`)
	if err != nil {
		return fmt.Errorf("failed to clear search history: %w", err)
	}
	return nil
}

// TrimSearchHistory keeps only the newest keep entries and returns how
// many were removed.
func (s *Store) TrimSearchHistory(ctx context.Context, keep int) (int64, error) {
	if keep < 1 {
		keep = 1
	}

	res, err := s.db.ExecContext(ctx, `
		DELETE FROM search_history WHERE id NOT IN (
			SELECT id FROM search_history ORDER BY searched_at DESC, id DESC LIMIT ?
		)`, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to trim search history: %w", err)
	}
	return res.RowsAffected()
}

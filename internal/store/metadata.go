package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/tvstreamcz/tvstreamd/internal/metadata"
)

// PutRecord stores an enriched metadata record under its query key,
// replacing any previous entry.
func (s *Store) PutRecord(ctx context.Context, key string, rec *metadata.Record, expiresAt time.Time) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO metadata_cache (key, payload, provider, expires_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			payload    = excluded.payload,
			provider   = excluded.provider,
			expires_at = excluded.expires_at`,
		key, string(payload), rec.Source, expiresAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to store record: %w", err)
	}
	return nil
}

// GetRecord returns the stored record for key, or nil when absent or
// expired.
func (s *Store) GetRecord(ctx context.Context, key string) (*metadata.Record, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM metadata_cache WHERE key = ? AND expires_at > ?`,
		key, time.Now().UTC()).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read record: %w", err)
	}

	var rec metadata.Record
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		return nil, fmt.Errorf("failed to decode record: %w", err)
	}
	return &rec, nil
}

// PruneExpiredRecords deletes metadata cache rows past their expiry and
// returns how many were removed.
func (s *Store) PruneExpiredRecords(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM metadata_cache WHERE expires_at <= ?`, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune metadata cache: %w", err)
	}
	return res.RowsAffected()
}

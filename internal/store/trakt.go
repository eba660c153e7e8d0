package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// TraktToken is the stored OAuth token pair. The access and refresh
// values arrive already sealed by the secrets box; the store never sees
// them in plaintext.
type TraktToken struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// SaveTraktToken stores the token pair, replacing any previous one.
func (s *Store) SaveTraktToken(ctx context.Context, tok TraktToken) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trakt_tokens (id, access_token, refresh_token, expires_at)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			access_token  = excluded.access_token,
			refresh_token = excluded.refresh_token,
			expires_at    = excluded.expires_at`,
		tok.AccessToken, tok.RefreshToken, tok.ExpiresAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to save trakt token: %w", err)
	}
	return nil
}

// GetTraktToken returns the stored token pair, or nil when the account
// is not linked.
func (s *Store) GetTraktToken(ctx context.Context) (*TraktToken, error) {
	var tok TraktToken
	err := s.db.QueryRowContext(ctx,
		`SELECT access_token, refresh_token, expires_at FROM trakt_tokens WHERE id = 1`).
		Scan(&tok.AccessToken, &tok.RefreshToken, &tok.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read trakt token: %w", err)
	}
	return &tok, nil
}

// DeleteTraktToken unlinks the Trakt account.
func (s *Store) DeleteTraktToken(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM trakt_tokens WHERE id = 1`)
	if err != nil {
		return fmt.Errorf("failed to delete trakt token: %w", err)
	}
	return nil
}

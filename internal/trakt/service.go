package trakt

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tvstreamcz/tvstreamd/internal/secrets"
	"github.com/tvstreamcz/tvstreamd/internal/store"
)

var (
	ErrNotLinked   = errors.New("trakt account is not linked")
	ErrLinkRunning = errors.New("a trakt link attempt is already running")
)

// Access tokens are renewed once they get this close to expiry.
const refreshWindow = time.Hour

// TokenStore persists the sealed OAuth token pair.
type TokenStore interface {
	SaveTraktToken(ctx context.Context, tok store.TraktToken) error
	GetTraktToken(ctx context.Context) (*store.TraktToken, error)
	DeleteTraktToken(ctx context.Context) error
}

// Broadcaster pushes scrobble events to connected clients.
type Broadcaster interface {
	Broadcast(msgType string, payload interface{}) error
}

type creds struct {
	access    string
	refresh   string
	expiresAt time.Time
}

// Service owns the linked Trakt account: it runs the device link flow,
// keeps the tokens fresh and forwards playback progress. Callers treat
// scrobble errors as advisory; playback never depends on them.
type Service struct {
	client      *Client
	tokens      TokenStore
	box         *secrets.Box
	logger      zerolog.Logger
	broadcaster Broadcaster

	mu      sync.Mutex
	cached  *creds
	loaded  bool
	pending *DeviceCode
	linking bool
}

// NewService creates the Trakt account service.
func NewService(client *Client, tokens TokenStore, box *secrets.Box, logger zerolog.Logger) *Service {
	return &Service{
		client: client,
		tokens: tokens,
		box:    box,
		logger: logger.With().Str("component", "trakt").Logger(),
	}
}

// SetBroadcaster wires the event hub.
func (s *Service) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// Enabled reports whether application credentials are configured.
func (s *Service) Enabled() bool {
	return s.client.IsConfigured()
}

// Connected reports whether a user account is linked.
func (s *Service) Connected() bool {
	c, err := s.current(context.Background())
	return err == nil && c != nil
}

// BeginLink starts the device authorization flow. The returned code is
// shown to the user; polling continues in the background until the code
// is approved or expires.
func (s *Service) BeginLink(ctx context.Context) (*DeviceCode, error) {
	s.mu.Lock()
	if s.linking {
		s.mu.Unlock()
		return nil, ErrLinkRunning
	}
	s.linking = true
	s.mu.Unlock()

	code, err := s.client.DeviceCode(ctx)
	if err != nil {
		s.mu.Lock()
		s.linking = false
		s.mu.Unlock()
		return nil, err
	}

	s.mu.Lock()
	s.pending = code
	s.mu.Unlock()

	go s.pollLink(code)
	return code, nil
}

// PendingCode returns the device code awaiting user approval, if any.
func (s *Service) PendingCode() *DeviceCode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// pollLink exchanges the device code for tokens once the user approves.
// It runs detached from the originating request.
func (s *Service) pollLink(code *DeviceCode) {
	defer func() {
		s.mu.Lock()
		s.linking = false
		if s.pending == code {
			s.pending = nil
		}
		s.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(code.ExpiresIn)*time.Second)
	defer cancel()

	interval := time.Duration(code.Interval) * time.Second
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Warn().Str("userCode", code.UserCode).Msg("Trakt device code expired before approval")
			return
		case <-ticker.C:
			token, err := s.client.PollToken(ctx, code.DeviceCode)
			if errors.Is(err, ErrAuthPending) {
				continue
			}
			if err != nil {
				s.logger.Error().Err(err).Msg("Trakt device link failed")
				return
			}
			if err := s.saveToken(ctx, token); err != nil {
				s.logger.Error().Err(err).Msg("Failed to store trakt tokens")
				return
			}
			s.logger.Info().Msg("Trakt account linked")
			return
		}
	}
}

// Unlink forgets the linked account.
func (s *Service) Unlink(ctx context.Context) error {
	if err := s.tokens.DeleteTraktToken(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	s.cached = nil
	s.loaded = true
	s.mu.Unlock()
	s.logger.Info().Msg("Trakt account unlinked")
	return nil
}

// Refresh renews the access token when it is close to expiry. It is a
// no-op while no account is linked.
func (s *Service) Refresh(ctx context.Context) error {
	c, err := s.current(ctx)
	if err != nil || c == nil {
		return err
	}
	if time.Until(c.expiresAt) > refreshWindow {
		return nil
	}
	return s.refreshNow(ctx, c)
}

// ScrobbleStart tells Trakt playback began.
func (s *Service) ScrobbleStart(ctx context.Context, media Media, progress float64) error {
	return s.scrobble(ctx, "start", media, progress)
}

// ScrobbleStop tells Trakt playback ended. Trakt marks the item watched
// when the reported progress is high enough.
func (s *Service) ScrobbleStop(ctx context.Context, media Media, progress float64) error {
	return s.scrobble(ctx, "stop", media, progress)
}

// MarkWatched adds the item to the user's Trakt watch history.
func (s *Service) MarkWatched(ctx context.Context, media Media) error {
	err := s.withToken(ctx, func(access string) error {
		return s.client.AddToHistory(ctx, access, media)
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("title", media.Title).Msg("Trakt history add failed")
		return err
	}

	s.logger.Debug().Str("title", media.Title).Msg("Trakt history updated")
	return nil
}

func (s *Service) scrobble(ctx context.Context, action string, media Media, progress float64) error {
	err := s.withToken(ctx, func(access string) error {
		return s.client.Scrobble(ctx, access, action, media, progress)
	})
	if err != nil {
		s.logger.Warn().Err(err).
			Str("action", action).
			Str("title", media.Title).
			Msg("Trakt scrobble failed")
		return err
	}

	s.logger.Debug().
		Str("action", action).
		Str("title", media.Title).
		Float64("progress", progress).
		Msg("Trakt scrobble sent")
	s.publish("scrobble.sent", map[string]interface{}{
		"action":   action,
		"title":    media.Title,
		"progress": progress,
	})
	return nil
}

// withToken runs fn with the current access token, refreshing and
// retrying once when Trakt rejects it.
func (s *Service) withToken(ctx context.Context, fn func(access string) error) error {
	c, err := s.current(ctx)
	if err != nil {
		return err
	}
	if c == nil {
		return ErrNotLinked
	}

	err = fn(c.access)
	if !errors.Is(err, ErrUnauthorized) {
		return err
	}
	if rerr := s.refreshNow(ctx, c); rerr != nil {
		return err
	}
	c, cerr := s.current(ctx)
	if cerr != nil || c == nil {
		return err
	}
	return fn(c.access)
}

func (s *Service) refreshNow(ctx context.Context, c *creds) error {
	token, err := s.client.RefreshToken(ctx, c.refresh)
	if err != nil {
		return fmt.Errorf("failed to refresh trakt token: %w", err)
	}
	if err := s.saveToken(ctx, token); err != nil {
		return err
	}

	s.logger.Info().Time("expiresAt", token.ExpiresAt()).Msg("Trakt token refreshed")
	return nil
}

func (s *Service) current(ctx context.Context) (*creds, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loaded {
		return s.cached, nil
	}

	tok, err := s.tokens.GetTraktToken(ctx)
	if err != nil {
		return nil, err
	}
	if tok == nil {
		s.loaded = true
		return nil, nil
	}

	access, err := s.box.Decrypt(tok.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to unseal trakt token: %w", err)
	}
	refresh, err := s.box.Decrypt(tok.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("failed to unseal trakt token: %w", err)
	}

	s.cached = &creds{access: access, refresh: refresh, expiresAt: tok.ExpiresAt}
	s.loaded = true
	return s.cached, nil
}

func (s *Service) saveToken(ctx context.Context, token *Token) error {
	sealedAccess, err := s.box.Encrypt(token.AccessToken)
	if err != nil {
		return fmt.Errorf("failed to seal trakt token: %w", err)
	}
	sealedRefresh, err := s.box.Encrypt(token.RefreshToken)
	if err != nil {
		return fmt.Errorf("failed to seal trakt token: %w", err)
	}

	rec := store.TraktToken{
		AccessToken:  sealedAccess,
		RefreshToken: sealedRefresh,
		ExpiresAt:    token.ExpiresAt(),
	}
	if err := s.tokens.SaveTraktToken(ctx, rec); err != nil {
		return err
	}

	s.mu.Lock()
	s.cached = &creds{access: token.AccessToken, refresh: token.RefreshToken, expiresAt: token.ExpiresAt()}
	s.loaded = true
	s.mu.Unlock()
	return nil
}

func (s *Service) publish(msgType string, payload interface{}) {
	if s.broadcaster == nil {
		return
	}
	if err := s.broadcaster.Broadcast(msgType, payload); err != nil {
		s.logger.Debug().Err(err).Str("type", msgType).Msg("Event broadcast failed")
	}
}

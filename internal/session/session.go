// Package session tracks the authenticated state against the streaming
// service. A Session pins a Webshare token together with the time it was
// issued and a fingerprint of the configuration that produced it; the
// Manager hands sessions to the pipeline, revalidates tokens that sat idle
// past the keep-alive age and rebuilds everything when the configuration
// changes.
package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tvstreamcz/tvstreamd/internal/config"
	"github.com/tvstreamcz/tvstreamd/internal/webshare"
)

// Broadcaster pushes session lifecycle events to connected clients.
type Broadcaster interface {
	Broadcast(msgType string, payload interface{}) error
}

// Session is one authenticated pass against the streaming service.
type Session struct {
	Token      string    `json:"-"`
	Username   string    `json:"username"`
	LoginAt    time.Time `json:"loginAt"`
	ConfigHash string    `json:"-"`
}

// Manager owns the Webshare client and the session built on top of it.
// Sessions are created on demand, revalidated once they sat unchecked past
// the keep-alive age and torn down on logout or configuration change.
type Manager struct {
	baseLogger zerolog.Logger
	logger     zerolog.Logger

	mu          sync.Mutex
	cfg         config.WebshareConfig
	client      *webshare.Client
	current     *Session
	checkedAt   time.Time
	keepAlive   time.Duration
	broadcaster Broadcaster
}

// NewManager creates a session manager for the given configuration.
func NewManager(cfg config.WebshareConfig, logger zerolog.Logger) *Manager {
	m := &Manager{
		baseLogger: logger,
		logger:     logger.With().Str("component", "session").Logger(),
	}
	m.apply(cfg)
	return m
}

// SetBroadcaster wires the event hub for session lifecycle notifications.
func (m *Manager) SetBroadcaster(b Broadcaster) {
	m.mu.Lock()
	m.broadcaster = b
	m.mu.Unlock()
}

// apply swaps in a fresh client for cfg. Callers hold m.mu, except the
// constructor.
func (m *Manager) apply(cfg config.WebshareConfig) {
	m.cfg = cfg
	m.client = webshare.NewClient(cfg, m.baseLogger)
	m.keepAlive = time.Duration(cfg.KeepAliveSecs) * time.Second
	m.current = nil
	m.checkedAt = time.Time{}
}

// Client returns the Webshare client behind the current configuration. The
// client is replaced on configuration change, so callers should fetch it per
// request rather than hold on to it.
func (m *Manager) Client() *webshare.Client {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.client
}

// IsConfigured reports whether account credentials are set.
func (m *Manager) IsConfigured() bool {
	return m.Client().IsConfigured()
}

// Current returns the active session, or nil when logged out.
func (m *Manager) Current() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Acquire returns a live session, logging in or revalidating as needed. A
// session that was checked within the keep-alive window is reused as is;
// one idle past the window is revalidated first and rebuilt when the server
// rejected its token.
func (m *Manager) Acquire(ctx context.Context) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil {
		if time.Since(m.checkedAt) < m.keepAlive {
			return m.current, nil
		}
		if err := m.client.Revalidate(ctx); err == nil {
			m.checkedAt = time.Now()
			return m.current, nil
		}
		// Revalidate dropped the token; fall through to a fresh login.
		m.logger.Info().Msg("Session token rejected, logging in again")
		m.current = nil
	}

	return m.login(ctx)
}

// login authenticates and installs a fresh session. Callers hold m.mu.
func (m *Manager) login(ctx context.Context) (*Session, error) {
	if err := m.client.Login(ctx); err != nil {
		return nil, err
	}

	m.current = &Session{
		Token:      m.client.Token(),
		Username:   m.cfg.Username,
		LoginAt:    time.Now().UTC(),
		ConfigHash: snapshotHash(m.cfg),
	}
	m.checkedAt = time.Now()

	m.publish("session.renewed", map[string]interface{}{
		"username": m.current.Username,
		"loginAt":  m.current.LoginAt,
	})
	return m.current, nil
}

// KeepAlive pings an existing session and renews it when the token was
// rejected. A logged-out manager is left alone; sessions are only built on
// demand.
func (m *Manager) KeepAlive(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return nil
	}
	if err := m.client.Revalidate(ctx); err == nil {
		m.checkedAt = time.Now()
		return nil
	}

	m.logger.Info().Msg("Keep-alive rejected, renewing session")
	m.current = nil
	_, err := m.login(ctx)
	return err
}

// AccountInfo fetches the account profile behind the live session, VIP
// state included. It never triggers a login; a logged-out manager
// reports ErrNotLoggedIn.
func (m *Manager) AccountInfo(ctx context.Context) (*webshare.UserData, error) {
	m.mu.Lock()
	client := m.client
	current := m.current
	m.mu.Unlock()

	if current == nil {
		return nil, webshare.ErrNotLoggedIn
	}
	return client.UserData(ctx)
}

// Logout tears down the session and ends it server-side.
func (m *Manager) Logout(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.teardown(ctx)
}

// teardown ends the current session. Callers hold m.mu.
func (m *Manager) teardown(ctx context.Context) {
	if m.current == nil && !m.client.LoggedIn() {
		return
	}
	m.client.Logout(ctx)
	m.current = nil
	m.checkedAt = time.Time{}
}

// Reconfigure rebuilds the client when the configuration changed. A running
// session is ended first; the next Acquire logs in with the new credentials.
func (m *Manager) Reconfigure(ctx context.Context, cfg config.WebshareConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if snapshotHash(cfg) == snapshotHash(m.cfg) {
		return
	}

	m.logger.Info().Msg("Webshare configuration changed, rebuilding session")
	m.teardown(ctx)
	m.apply(cfg)
}

// publish sends an event to the hub when one is attached. Callers hold m.mu.
func (m *Manager) publish(msgType string, payload interface{}) {
	if m.broadcaster == nil {
		return
	}
	if err := m.broadcaster.Broadcast(msgType, payload); err != nil {
		m.logger.Debug().Err(err).Str("type", msgType).Msg("Event broadcast failed")
	}
}

// snapshotHash fingerprints the configuration a session was built from.
func snapshotHash(cfg config.WebshareConfig) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%+v", cfg)))
	return hex.EncodeToString(sum[:8])
}

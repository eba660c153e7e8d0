package trakt

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tvstreamcz/tvstreamd/internal/config"
	"github.com/tvstreamcz/tvstreamd/internal/secrets"
	"github.com/tvstreamcz/tvstreamd/internal/store"
)

type memTokens struct {
	mu  sync.Mutex
	tok *store.TraktToken
}

func (m *memTokens) SaveTraktToken(ctx context.Context, tok store.TraktToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tok = &tok
	return nil
}

func (m *memTokens) GetTraktToken(ctx context.Context) (*store.TraktToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tok == nil {
		return nil, nil
	}
	cp := *m.tok
	return &cp, nil
}

func (m *memTokens) DeleteTraktToken(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tok = nil
	return nil
}

func (m *memTokens) stored() *store.TraktToken {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tok
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingBroadcaster) Broadcast(msgType string, payload interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, msgType)
	return nil
}

func testBox() *secrets.Box {
	return secrets.NewBox("test-pass", []byte("0123456789abcdef"))
}

func newTestService(url string, tokens *memTokens, box *secrets.Box) *Service {
	client := NewClient(config.TraktConfig{ClientID: "cid", ClientSecret: "csecret", BaseURL: url}, zerolog.Nop())
	return NewService(client, tokens, box, zerolog.Nop())
}

// seedToken stores a sealed token pair as a completed link would.
func seedToken(t *testing.T, tokens *memTokens, box *secrets.Box, access, refresh string, expiresAt time.Time) {
	t.Helper()
	sealedAccess, err := box.Encrypt(access)
	if err != nil {
		t.Fatalf("seal access token: %v", err)
	}
	sealedRefresh, err := box.Encrypt(refresh)
	if err != nil {
		t.Fatalf("seal refresh token: %v", err)
	}
	err = tokens.SaveTraktToken(context.Background(), store.TraktToken{
		AccessToken:  sealedAccess,
		RefreshToken: sealedRefresh,
		ExpiresAt:    expiresAt,
	})
	if err != nil {
		t.Fatalf("seed token: %v", err)
	}
}

func TestServiceLinkFlow(t *testing.T) {
	var polls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth/device/code":
			fmt.Fprint(w, `{"device_code":"dev1","user_code":"USR1","verification_url":"https://trakt.tv/activate","expires_in":600,"interval":1}`)
		case "/oauth/device/token":
			if atomic.AddInt32(&polls, 1) == 1 {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			fmt.Fprintf(w, `{"access_token":"acc1","refresh_token":"ref1","expires_in":7776000,"created_at":%d}`, time.Now().Unix())
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	tokens := &memTokens{}
	box := testBox()
	svc := newTestService(server.URL, tokens, box)

	code, err := svc.BeginLink(context.Background())
	if err != nil {
		t.Fatalf("BeginLink() error = %v", err)
	}
	if code.UserCode != "USR1" {
		t.Errorf("UserCode = %q, want USR1", code.UserCode)
	}
	if svc.PendingCode() == nil {
		t.Error("PendingCode() = nil while polling")
	}

	// A second link attempt while one is polling is refused.
	if _, err := svc.BeginLink(context.Background()); !errors.Is(err, ErrLinkRunning) {
		t.Errorf("second BeginLink() error = %v, want ErrLinkRunning", err)
	}

	for i := 0; i < 100 && !svc.Connected(); i++ {
		time.Sleep(50 * time.Millisecond)
	}
	if !svc.Connected() {
		t.Fatal("service never connected after approval")
	}

	stored := tokens.stored()
	if stored == nil {
		t.Fatal("no token stored")
	}
	if !secrets.IsEncrypted(stored.AccessToken) {
		t.Error("stored access token is not sealed")
	}
	if got, _ := box.Decrypt(stored.AccessToken); got != "acc1" {
		t.Errorf("stored access token = %q, want acc1", got)
	}
	for i := 0; i < 100 && svc.PendingCode() != nil; i++ {
		time.Sleep(10 * time.Millisecond)
	}
	if svc.PendingCode() != nil {
		t.Error("PendingCode() still set after link completed")
	}
}

func TestServiceScrobbleRefreshesRejectedToken(t *testing.T) {
	var scrobbles, refreshes int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/scrobble/start":
			atomic.AddInt32(&scrobbles, 1)
			if r.Header.Get("Authorization") != "Bearer acc-new" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.WriteHeader(http.StatusCreated)
			fmt.Fprint(w, `{"id":1}`)
		case "/oauth/token":
			atomic.AddInt32(&refreshes, 1)
			fmt.Fprintf(w, `{"access_token":"acc-new","refresh_token":"ref-new","expires_in":7776000,"created_at":%d}`, time.Now().Unix())
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	tokens := &memTokens{}
	box := testBox()
	seedToken(t, tokens, box, "acc-old", "ref-old", time.Now().Add(-time.Hour))
	svc := newTestService(server.URL, tokens, box)
	events := &recordingBroadcaster{}
	svc.SetBroadcaster(events)

	media := Media{Title: "Pelíšky", Year: 1999, TmdbID: 8055}
	if err := svc.ScrobbleStart(context.Background(), media, 12.5); err != nil {
		t.Fatalf("ScrobbleStart() error = %v", err)
	}

	if got := atomic.LoadInt32(&scrobbles); got != 2 {
		t.Errorf("scrobble calls = %d, want 2 (reject then retry)", got)
	}
	if got := atomic.LoadInt32(&refreshes); got != 1 {
		t.Errorf("refresh calls = %d, want 1", got)
	}
	if got, _ := box.Decrypt(tokens.stored().AccessToken); got != "acc-new" {
		t.Errorf("stored access token = %q, want acc-new", got)
	}
	if len(events.events) != 1 || events.events[0] != "scrobble.sent" {
		t.Errorf("events = %v, want [scrobble.sent]", events.events)
	}
}

func TestServiceScrobbleNotLinked(t *testing.T) {
	svc := newTestService("http://unused.invalid", &memTokens{}, testBox())
	err := svc.ScrobbleStop(context.Background(), Media{Title: "Pelíšky"}, 90)
	if !errors.Is(err, ErrNotLinked) {
		t.Errorf("ScrobbleStop() error = %v, want ErrNotLinked", err)
	}
}

func TestServiceRefresh(t *testing.T) {
	var refreshes int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/oauth/token" {
			http.NotFound(w, r)
			return
		}
		atomic.AddInt32(&refreshes, 1)
		fmt.Fprintf(w, `{"access_token":"acc-new","refresh_token":"ref-new","expires_in":7776000,"created_at":%d}`, time.Now().Unix())
	}))
	defer server.Close()

	t.Run("fresh token untouched", func(t *testing.T) {
		tokens := &memTokens{}
		box := testBox()
		seedToken(t, tokens, box, "acc1", "ref1", time.Now().Add(48*time.Hour))
		svc := newTestService(server.URL, tokens, box)

		if err := svc.Refresh(context.Background()); err != nil {
			t.Fatalf("Refresh() error = %v", err)
		}
		if got := atomic.LoadInt32(&refreshes); got != 0 {
			t.Errorf("refresh calls = %d, want 0", got)
		}
	})

	t.Run("expiring token renewed", func(t *testing.T) {
		tokens := &memTokens{}
		box := testBox()
		seedToken(t, tokens, box, "acc1", "ref1", time.Now().Add(30*time.Minute))
		svc := newTestService(server.URL, tokens, box)

		if err := svc.Refresh(context.Background()); err != nil {
			t.Fatalf("Refresh() error = %v", err)
		}
		if got := atomic.LoadInt32(&refreshes); got != 1 {
			t.Errorf("refresh calls = %d, want 1", got)
		}
		if got, _ := box.Decrypt(tokens.stored().AccessToken); got != "acc-new" {
			t.Errorf("stored access token = %q, want acc-new", got)
		}
	})

	t.Run("not linked is a no-op", func(t *testing.T) {
		svc := newTestService(server.URL, &memTokens{}, testBox())
		if err := svc.Refresh(context.Background()); err != nil {
			t.Errorf("Refresh() error = %v, want nil", err)
		}
	})
}

func TestServiceUnlink(t *testing.T) {
	tokens := &memTokens{}
	box := testBox()
	seedToken(t, tokens, box, "acc1", "ref1", time.Now().Add(48*time.Hour))
	svc := newTestService("http://unused.invalid", tokens, box)

	if !svc.Connected() {
		t.Fatal("Connected() = false after seeding")
	}
	if err := svc.Unlink(context.Background()); err != nil {
		t.Fatalf("Unlink() error = %v", err)
	}
	if svc.Connected() {
		t.Error("Connected() = true after unlink")
	}
	if tokens.stored() != nil {
		t.Error("token still stored after unlink")
	}
}

func TestServiceMarkWatched(t *testing.T) {
	var historyCalls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sync/history" {
			http.NotFound(w, r)
			return
		}
		atomic.AddInt32(&historyCalls, 1)
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"added":{"movies":1}}`)
	}))
	defer server.Close()

	tokens := &memTokens{}
	box := testBox()
	seedToken(t, tokens, box, "acc1", "ref1", time.Now().Add(48*time.Hour))
	svc := newTestService(server.URL, tokens, box)

	if err := svc.MarkWatched(context.Background(), Media{Title: "Pelíšky", Year: 1999, TmdbID: 8055}); err != nil {
		t.Fatalf("MarkWatched() error = %v", err)
	}
	if got := atomic.LoadInt32(&historyCalls); got != 1 {
		t.Errorf("history calls = %d, want 1", got)
	}

	unlinked := newTestService(server.URL, &memTokens{}, box)
	if err := unlinked.MarkWatched(context.Background(), Media{Title: "Pelíšky"}); !errors.Is(err, ErrNotLinked) {
		t.Errorf("MarkWatched() error = %v, want ErrNotLinked", err)
	}
}

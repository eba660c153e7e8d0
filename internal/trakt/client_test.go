package trakt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tvstreamcz/tvstreamd/internal/config"
)

func newTestClient(url string) *Client {
	return NewClient(config.TraktConfig{
		ClientID:     "cid",
		ClientSecret: "csecret",
		BaseURL:      url,
	}, zerolog.Nop())
}

func decodeBody(t *testing.T, r *http.Request) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
		t.Fatalf("decode request body: %v", err)
	}
	return m
}

func child(t *testing.T, m map[string]interface{}, key string) map[string]interface{} {
	t.Helper()
	v, ok := m[key].(map[string]interface{})
	if !ok {
		t.Fatalf("missing %q object in %v", key, m)
	}
	return v
}

func TestDeviceCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/oauth/device/code" {
			t.Errorf("path = %q, want /oauth/device/code", r.URL.Path)
		}
		if got := r.Header.Get("trakt-api-key"); got != "cid" {
			t.Errorf("trakt-api-key = %q, want cid", got)
		}
		if got := r.Header.Get("trakt-api-version"); got != "2" {
			t.Errorf("trakt-api-version = %q, want 2", got)
		}
		body := decodeBody(t, r)
		if body["client_id"] != "cid" {
			t.Errorf("client_id = %v, want cid", body["client_id"])
		}
		fmt.Fprint(w, `{"device_code":"dev1","user_code":"USR1","verification_url":"https://trakt.tv/activate","expires_in":600,"interval":5}`)
	}))
	defer server.Close()

	code, err := newTestClient(server.URL).DeviceCode(context.Background())
	if err != nil {
		t.Fatalf("DeviceCode() error = %v", err)
	}
	if code.UserCode != "USR1" || code.DeviceCode != "dev1" || code.Interval != 5 {
		t.Errorf("code = %+v, want USR1/dev1 interval 5", code)
	}
}

func TestDeviceCode_NotConfigured(t *testing.T) {
	client := NewClient(config.TraktConfig{}, zerolog.Nop())
	if _, err := client.DeviceCode(context.Background()); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("DeviceCode() error = %v, want ErrNotConfigured", err)
	}
}

func TestPollToken(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := decodeBody(t, r)
		if body["code"] != "dev1" || body["client_secret"] != "csecret" {
			t.Errorf("body = %v, want code dev1 with client secret", body)
		}
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		fmt.Fprint(w, `{"access_token":"acc1","refresh_token":"ref1","expires_in":7776000,"created_at":1700000000}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	ctx := context.Background()

	if _, err := client.PollToken(ctx, "dev1"); !errors.Is(err, ErrAuthPending) {
		t.Fatalf("first poll error = %v, want ErrAuthPending", err)
	}

	token, err := client.PollToken(ctx, "dev1")
	if err != nil {
		t.Fatalf("second poll error = %v", err)
	}
	if token.AccessToken != "acc1" || token.RefreshToken != "ref1" {
		t.Errorf("token = %+v, want acc1/ref1", token)
	}
	want := time.Unix(1700000000, 0).Add(7776000 * time.Second)
	if !token.ExpiresAt().Equal(want) {
		t.Errorf("ExpiresAt() = %v, want %v", token.ExpiresAt(), want)
	}
}

func TestPollToken_Expired(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGone)
	}))
	defer server.Close()

	if _, err := newTestClient(server.URL).PollToken(context.Background(), "dev1"); !errors.Is(err, ErrCodeExpired) {
		t.Errorf("PollToken() error = %v, want ErrCodeExpired", err)
	}
}

func TestRefreshToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/oauth/token" {
			t.Errorf("path = %q, want /oauth/token", r.URL.Path)
		}
		body := decodeBody(t, r)
		if body["refresh_token"] != "ref1" || body["grant_type"] != "refresh_token" {
			t.Errorf("body = %v, want refresh_token grant for ref1", body)
		}
		if body["redirect_uri"] != "urn:ietf:wg:oauth:2.0:oob" {
			t.Errorf("redirect_uri = %v", body["redirect_uri"])
		}
		fmt.Fprint(w, `{"access_token":"acc2","refresh_token":"ref2","expires_in":7776000,"created_at":1700000000}`)
	}))
	defer server.Close()

	token, err := newTestClient(server.URL).RefreshToken(context.Background(), "ref1")
	if err != nil {
		t.Fatalf("RefreshToken() error = %v", err)
	}
	if token.AccessToken != "acc2" || token.RefreshToken != "ref2" {
		t.Errorf("token = %+v, want acc2/ref2", token)
	}
}

func TestScrobble_MovieBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/scrobble/start" {
			t.Errorf("path = %q, want /scrobble/start", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer acc1" {
			t.Errorf("Authorization = %q, want Bearer acc1", got)
		}
		body := decodeBody(t, r)
		if body["progress"] != 42.5 {
			t.Errorf("progress = %v, want 42.5", body["progress"])
		}
		movie := child(t, body, "movie")
		if movie["title"] != "Pelíšky" || movie["year"] != float64(1999) {
			t.Errorf("movie = %v, want Pelíšky 1999", movie)
		}
		if ids := child(t, movie, "ids"); ids["tmdb"] != float64(8055) {
			t.Errorf("ids = %v, want tmdb 8055", ids)
		}
		if _, hasShow := body["show"]; hasShow {
			t.Error("movie scrobble carries a show object")
		}
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"id":1}`)
	}))
	defer server.Close()

	media := Media{Title: "Pelíšky", Year: 1999, TmdbID: 8055}
	if err := newTestClient(server.URL).Scrobble(context.Background(), "acc1", "start", media, 42.5); err != nil {
		t.Fatalf("Scrobble() error = %v", err)
	}
}

func TestScrobble_EpisodeBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/scrobble/stop" {
			t.Errorf("path = %q, want /scrobble/stop", r.URL.Path)
		}
		body := decodeBody(t, r)
		show := child(t, body, "show")
		if show["title"] != "Most!" {
			t.Errorf("show = %v, want Most!", show)
		}
		episode := child(t, body, "episode")
		if episode["season"] != float64(1) || episode["number"] != float64(2) {
			t.Errorf("episode = %v, want S1 number 2", episode)
		}
		if _, hasMovie := body["movie"]; hasMovie {
			t.Error("episode scrobble carries a movie object")
		}
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"id":2}`)
	}))
	defer server.Close()

	media := Media{Title: "Most!", Year: 2019, TmdbID: 68716, Season: 1, Episode: 2}
	if err := newTestClient(server.URL).Scrobble(context.Background(), "acc1", "stop", media, 95); err != nil {
		t.Fatalf("Scrobble() error = %v", err)
	}
}

func TestScrobble_Unauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	err := newTestClient(server.URL).Scrobble(context.Background(), "stale", "start", Media{Title: "Pelíšky"}, 1)
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("Scrobble() error = %v, want ErrUnauthorized", err)
	}
}

func TestAddToHistory_Episode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sync/history" {
			t.Errorf("path = %q, want /sync/history", r.URL.Path)
		}
		body := decodeBody(t, r)
		shows, ok := body["shows"].([]interface{})
		if !ok || len(shows) != 1 {
			t.Fatalf("shows = %v, want one entry", body["shows"])
		}
		show := shows[0].(map[string]interface{})
		seasons := show["seasons"].([]interface{})
		season := seasons[0].(map[string]interface{})
		if season["number"] != float64(1) {
			t.Errorf("season = %v, want number 1", season)
		}
		episodes := season["episodes"].([]interface{})
		if episodes[0].(map[string]interface{})["number"] != float64(2) {
			t.Errorf("episodes = %v, want number 2", episodes)
		}
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"added":{"episodes":1}}`)
	}))
	defer server.Close()

	media := Media{Title: "Most!", Year: 2019, TmdbID: 68716, Season: 1, Episode: 2}
	if err := newTestClient(server.URL).AddToHistory(context.Background(), "acc1", media); err != nil {
		t.Fatalf("AddToHistory() error = %v", err)
	}
}

func TestAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		fmt.Fprint(w, "validation failed")
	}))
	defer server.Close()

	err := newTestClient(server.URL).AddToHistory(context.Background(), "acc1", Media{Title: "Pelíšky"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if apiErr.Status != http.StatusUnprocessableEntity || apiErr.Body != "validation failed" {
		t.Errorf("apiErr = %+v", apiErr)
	}
}

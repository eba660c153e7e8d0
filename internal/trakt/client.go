// Package trakt links a Trakt.tv account over the device OAuth flow and
// forwards playback progress to it.
package trakt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tvstreamcz/tvstreamd/internal/config"
)

const apiVersion = "2"

var (
	ErrNotConfigured = errors.New("trakt client credentials are not configured")
	ErrAuthPending   = errors.New("trakt authorization pending")
	ErrCodeExpired   = errors.New("trakt device code expired")
	ErrUnauthorized  = errors.New("trakt token rejected")
)

// APIError is a non-2xx reply from the Trakt API.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("trakt API status %d: %s", e.Status, e.Body)
}

// DeviceCode is a device grant from /oauth/device/code. The user enters
// UserCode at VerificationURL while the daemon polls for approval.
type DeviceCode struct {
	DeviceCode      string `json:"device_code"`
	UserCode        string `json:"user_code"`
	VerificationURL string `json:"verification_url"`
	ExpiresIn       int    `json:"expires_in"`
	Interval        int    `json:"interval"`
}

// Token is an OAuth token pair as returned by the token endpoints.
type Token struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	CreatedAt    int64  `json:"created_at"`
}

// ExpiresAt converts the created_at and expires_in pair to a deadline.
func (t *Token) ExpiresAt() time.Time {
	return time.Unix(t.CreatedAt, 0).Add(time.Duration(t.ExpiresIn) * time.Second)
}

// Media identifies what is being played. A set season or episode number
// makes it an episode of a show, otherwise it is a movie. The TMDb id is
// used for matching when known; Trakt falls back to title and year.
type Media struct {
	Title   string `json:"title"`
	Year    int    `json:"year,omitempty"`
	TmdbID  int    `json:"tmdbId,omitempty"`
	Season  int    `json:"season,omitempty"`
	Episode int    `json:"episode,omitempty"`
}

// IsEpisode reports whether the media addresses a show episode.
func (m Media) IsEpisode() bool {
	return m.Season > 0 || m.Episode > 0
}

type ids struct {
	Tmdb int `json:"tmdb,omitempty"`
}

type titleBody struct {
	Title string `json:"title,omitempty"`
	Year  int    `json:"year,omitempty"`
	IDs   *ids   `json:"ids,omitempty"`
}

type episodeBody struct {
	Season int `json:"season"`
	Number int `json:"number"`
}

type scrobbleBody struct {
	Progress float64      `json:"progress"`
	Movie    *titleBody   `json:"movie,omitempty"`
	Show     *titleBody   `json:"show,omitempty"`
	Episode  *episodeBody `json:"episode,omitempty"`
}

type historyShow struct {
	Title   string          `json:"title,omitempty"`
	Year    int             `json:"year,omitempty"`
	IDs     *ids            `json:"ids,omitempty"`
	Seasons []historySeason `json:"seasons,omitempty"`
}

type historySeason struct {
	Number   int              `json:"number"`
	Episodes []historyEpisode `json:"episodes,omitempty"`
}

type historyEpisode struct {
	Number int `json:"number"`
}

type historyBody struct {
	Movies []titleBody   `json:"movies,omitempty"`
	Shows  []historyShow `json:"shows,omitempty"`
}

// Client is a minimal Trakt.tv API client.
type Client struct {
	httpClient *http.Client
	cfg        config.TraktConfig
	logger     zerolog.Logger
}

// NewClient creates a Trakt client from application credentials.
func NewClient(cfg config.TraktConfig, logger zerolog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		cfg:        cfg,
		logger:     logger.With().Str("component", "trakt").Logger(),
	}
}

// IsConfigured reports whether application credentials are present.
func (c *Client) IsConfigured() bool {
	return c.cfg.ClientID != "" && c.cfg.ClientSecret != ""
}

// DeviceCode requests a new device grant for the link flow.
func (c *Client) DeviceCode(ctx context.Context) (*DeviceCode, error) {
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}

	var code DeviceCode
	body := map[string]string{"client_id": c.cfg.ClientID}
	if err := c.post(ctx, "/oauth/device/code", "", body, &code); err != nil {
		return nil, err
	}
	return &code, nil
}

// PollToken exchanges an approved device code for tokens. While the user
// has not entered the code yet it returns ErrAuthPending; the caller
// waits the advertised interval and tries again.
func (c *Client) PollToken(ctx context.Context, deviceCode string) (*Token, error) {
	body := map[string]string{
		"code":          deviceCode,
		"client_id":     c.cfg.ClientID,
		"client_secret": c.cfg.ClientSecret,
	}

	var token Token
	err := c.post(ctx, "/oauth/device/token", "", body, &token)
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Status {
		case http.StatusBadRequest, http.StatusTooManyRequests:
			return nil, ErrAuthPending
		case http.StatusGone:
			return nil, ErrCodeExpired
		}
	}
	if err != nil {
		return nil, err
	}
	return &token, nil
}

// RefreshToken exchanges a refresh token for a fresh pair.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*Token, error) {
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}

	body := map[string]string{
		"refresh_token": refreshToken,
		"client_id":     c.cfg.ClientID,
		"client_secret": c.cfg.ClientSecret,
		"redirect_uri":  "urn:ietf:wg:oauth:2.0:oob",
		"grant_type":    "refresh_token",
	}

	var token Token
	if err := c.post(ctx, "/oauth/token", "", body, &token); err != nil {
		return nil, err
	}
	return &token, nil
}

// Scrobble posts a start or stop event. Trakt itself decides whether a
// stop marks the item watched, based on the reported progress.
func (c *Client) Scrobble(ctx context.Context, accessToken, action string, media Media, progress float64) error {
	body := scrobbleBody{Progress: progress}
	if media.IsEpisode() {
		body.Show = mediaObject(media)
		body.Episode = &episodeBody{Season: media.Season, Number: media.Episode}
	} else {
		body.Movie = mediaObject(media)
	}
	return c.post(ctx, "/scrobble/"+action, accessToken, body, nil)
}

// AddToHistory marks the item watched in the user's Trakt history.
func (c *Client) AddToHistory(ctx context.Context, accessToken string, media Media) error {
	var body historyBody
	if media.IsEpisode() {
		show := historyShow{Title: media.Title, Year: media.Year}
		if media.TmdbID > 0 {
			show.IDs = &ids{Tmdb: media.TmdbID}
		}
		show.Seasons = []historySeason{{
			Number:   media.Season,
			Episodes: []historyEpisode{{Number: media.Episode}},
		}}
		body.Shows = []historyShow{show}
	} else {
		body.Movies = []titleBody{*mediaObject(media)}
	}
	return c.post(ctx, "/sync/history", accessToken, body, nil)
}

func mediaObject(m Media) *titleBody {
	obj := &titleBody{Title: m.Title, Year: m.Year}
	if m.TmdbID > 0 {
		obj.IDs = &ids{Tmdb: m.TmdbID}
	}
	return obj
}

// post submits one JSON request with the Trakt API headers and decodes
// the reply into out when given.
func (c *Client) post(ctx context.Context, path, accessToken string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("trakt-api-version", apiVersion)
	req.Header.Set("trakt-api-key", c.cfg.ClientID)
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case resp.StatusCode == http.StatusNoContent:
		return nil
	case resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices:
		if out != nil {
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return fmt.Errorf("failed to decode response: %w", err)
			}
		}
		return nil
	default:
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		apiErr := &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
		c.logger.Debug().
			Str("endpoint", path).
			Int("status", apiErr.Status).
			Msg("Trakt API error")
		return apiErr
	}
}

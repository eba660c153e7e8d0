package webshare

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog"

	"github.com/tvstreamcz/tvstreamd/internal/config"
)

var (
	ErrNotLoggedIn     = errors.New("not logged in to Webshare")
	ErrBadCredentials  = errors.New("Webshare rejected the credentials")
	ErrLinkUnavailable = errors.New("stream link is not available")
)

// APIError is a reply whose status envelope is not OK.
type APIError struct {
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("webshare API error %s", e.Code)
	}
	return fmt.Sprintf("webshare API error %s: %s", e.Code, e.Message)
}

// IsAuthError reports whether err is an API error from the login endpoints,
// which the server marks with a LOGIN code prefix.
func IsAuthError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && strings.HasPrefix(apiErr.Code, "LOGIN")
}

const (
	userAgent = "tvstreamd/0.1.0"

	defaultSearchLimit = 25
	maxSearchLimit     = 100

	retryDelay = 500 * time.Millisecond
)

// Client is a Webshare.cz API client. The API speaks form-encoded POST
// requests answered with small XML documents; every reply carries a status
// envelope that is checked before the payload is decoded.
type Client struct {
	httpClient *http.Client
	config     config.WebshareConfig
	logger     zerolog.Logger

	// Session token management
	mu    sync.RWMutex
	token string
}

// NewClient creates a new Webshare client.
func NewClient(cfg config.WebshareConfig, logger zerolog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
		config: cfg,
		logger: logger.With().Str("component", "webshare").Logger(),
	}
}

// IsConfigured returns true if account credentials are set.
func (c *Client) IsConfigured() bool {
	return c.config.Username != "" && c.config.Password != ""
}

// Token returns the current session token, or "" when logged out.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// SetToken installs a previously issued session token.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// ClearToken drops the session token.
func (c *Client) ClearToken() {
	c.SetToken("")
}

// LoggedIn reports whether a session token is held.
func (c *Client) LoggedIn() bool {
	return c.Token() != ""
}

// Salt fetches the password salt for an account.
func (c *Client) Salt(ctx context.Context, username string) (string, error) {
	form := url.Values{}
	form.Set("username_or_email", username)

	var resp saltResponse
	if err := c.post(ctx, "/salt/", form, &resp); err != nil {
		return "", err
	}
	return resp.Salt, nil
}

// Login authenticates with the configured account and stores the session
// token. The password is sent as a salted digest first, falling back to the
// plain password for accounts the digest does not match.
func (c *Client) Login(ctx context.Context) error {
	if !c.IsConfigured() {
		return fmt.Errorf("%w: missing username or password", ErrBadCredentials)
	}

	salt, err := c.Salt(ctx, c.config.Username)
	if err != nil {
		if IsAuthError(err) {
			return fmt.Errorf("%w: %v", ErrBadCredentials, err)
		}
		return err
	}

	secrets := make([]string, 0, 2)
	if digest, err := passwordDigest(c.config.Password, salt); err == nil {
		secrets = append(secrets, digest)
	} else {
		c.logger.Warn().Err(err).Msg("Password digest failed, trying plain password only")
	}
	secrets = append(secrets, c.config.Password)

	var lastErr error
	for _, secret := range secrets {
		form := url.Values{}
		form.Set("username_or_email", c.config.Username)
		form.Set("password", secret)
		form.Set("keep_logged_in", "1")

		var resp loginResponse
		if err := c.post(ctx, "/login/", form, &resp); err != nil {
			lastErr = err
			if IsAuthError(err) {
				continue
			}
			return err
		}
		if resp.Token == "" {
			lastErr = errors.New("login reply carried no token")
			continue
		}

		c.SetToken(resp.Token)
		c.logger.Info().Str("username", c.config.Username).Msg("Logged in to Webshare")
		return nil
	}

	return fmt.Errorf("%w: %v", ErrBadCredentials, lastErr)
}

// Revalidate confirms the held session token is still accepted. On failure
// the token is dropped so the next call logs in again.
func (c *Client) Revalidate(ctx context.Context) error {
	token := c.Token()
	if token == "" {
		return ErrNotLoggedIn
	}

	form := url.Values{}
	form.Set("wst", token)

	if err := c.post(ctx, "/session/", form, nil); err != nil {
		c.ClearToken()
		return err
	}
	return nil
}

// Logout ends the server-side session. The token is dropped even when the
// request fails.
func (c *Client) Logout(ctx context.Context) {
	token := c.Token()
	c.ClearToken()
	if token == "" {
		return
	}

	form := url.Values{}
	form.Set("wst", token)

	if err := c.post(ctx, "/logout/", form, nil); err != nil {
		c.logger.Debug().Err(err).Msg("Webshare logout failed")
		return
	}
	c.logger.Info().Msg("Logged out of Webshare")
}

// Search fetches one page of search results.
func (c *Client) Search(ctx context.Context, req SearchRequest) (*SearchPage, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}
	offset := req.Offset
	if offset < 0 {
		offset = 0
	}
	category := req.Category
	if category == "" {
		category = "video"
	}

	form := url.Values{}
	form.Set("what", req.What)
	form.Set("category", category)
	form.Set("limit", strconv.Itoa(limit))
	form.Set("offset", strconv.Itoa(offset))
	if req.Sort != "" {
		form.Set("sort", req.Sort)
	}
	if token := c.Token(); token != "" {
		form.Set("wst", token)
	}

	var resp searchResponse
	if err := c.post(ctx, "/search/", form, &resp); err != nil {
		return nil, err
	}

	page := &SearchPage{
		Total: parseInt(resp.Total),
		Files: make([]File, 0, len(resp.Files)),
	}
	for _, node := range resp.Files {
		page.Files = append(page.Files, node.toFile())
	}

	c.logger.Debug().
		Str("what", req.What).
		Int("offset", offset).
		Int("returned", len(page.Files)).
		Int("total", page.Total).
		Msg("Search completed")

	return page, nil
}

// FileInfo fetches details for a single file.
func (c *Client) FileInfo(ctx context.Context, ident string) (*File, error) {
	form := url.Values{}
	form.Set("ident", ident)
	if token := c.Token(); token != "" {
		form.Set("wst", token)
	}

	// The reply carries the same fields as a search hit, directly under the
	// response root.
	var node fileNode
	if err := c.post(ctx, "/file_info/", form, &node); err != nil {
		return nil, err
	}

	file := node.toFile()
	if file.Ident == "" {
		file.Ident = ident
	}
	return &file, nil
}

// FileLink resolves a direct stream URL for a file. A session token is
// required; password applies to protected files.
func (c *Client) FileLink(ctx context.Context, ident, password string) (string, error) {
	token := c.Token()
	if token == "" {
		return "", ErrNotLoggedIn
	}

	form := url.Values{}
	form.Set("ident", ident)
	form.Set("wst", token)
	form.Set("download_type", c.config.DownloadType)
	if c.config.ForceHTTPS {
		form.Set("force_https", "1")
	} else {
		form.Set("force_https", "0")
	}
	if password != "" {
		form.Set("password", password)
	}

	var resp fileLinkResponse
	if err := c.post(ctx, "/file_link/", form, &resp); err != nil {
		return "", err
	}
	if resp.Link == "" {
		return "", ErrLinkUnavailable
	}

	c.logger.Debug().Str("ident", ident).Msg("Resolved stream link")
	return resp.Link, nil
}

// UserData fetches account details for the current session.
func (c *Client) UserData(ctx context.Context) (*UserData, error) {
	token := c.Token()
	if token == "" {
		return nil, ErrNotLoggedIn
	}

	form := url.Values{}
	form.Set("wst", token)

	var resp userDataResponse
	if err := c.post(ctx, "/user_data/", form, &resp); err != nil {
		return nil, err
	}

	data := resp.toUserData()
	return &data, nil
}

// post submits one form-encoded request and decodes the XML reply into
// result. Transport failures and server errors are retried once; API-level
// errors are returned as is.
func (c *Client) post(ctx context.Context, path string, form url.Values, result interface{}) error {
	endpoint := c.config.BaseURL + path

	var raw []byte
	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
			if err != nil {
				return retry.Unrecoverable(fmt.Errorf("failed to create request: %w", err))
			}
			req.Header.Set("Accept", "text/xml; charset=UTF-8")
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")
			req.Header.Set("User-Agent", userAgent)

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return fmt.Errorf("HTTP request failed: %w", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				err := fmt.Errorf("unexpected HTTP status %d", resp.StatusCode)
				if resp.StatusCode < http.StatusInternalServerError {
					return retry.Unrecoverable(err)
				}
				return err
			}

			raw, err = io.ReadAll(resp.Body)
			if err != nil {
				return fmt.Errorf("failed to read response: %w", err)
			}
			return nil
		},
		retry.Attempts(2),
		retry.Delay(retryDelay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		c.logger.Error().Err(err).Str("endpoint", path).Msg("Webshare request failed")
		return err
	}

	var envelope statusEnvelope
	if err := xml.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if envelope.Status != "OK" {
		apiErr := &APIError{Code: envelope.Code, Message: envelope.Message}
		c.logger.Debug().
			Str("endpoint", path).
			Str("code", apiErr.Code).
			Msg("Webshare API error")
		return apiErr
	}

	if result != nil {
		if err := xml.Unmarshal(raw, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

package webshare

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/tvstreamcz/tvstreamd/internal/config"
)

func newTestClient(server *httptest.Server) *Client {
	cfg := config.WebshareConfig{
		Username:     "franta",
		Password:     "tajneheslo",
		BaseURL:      server.URL,
		ForceHTTPS:   true,
		DownloadType: "video_stream",
		Timeout:      5,
	}
	return NewClient(cfg, zerolog.Nop())
}

func okResponse(inner string) string {
	return `<?xml version="1.0" encoding="UTF-8"?><response><status>OK</status>` + inner + `</response>`
}

func errResponse(code, message string) string {
	return `<?xml version="1.0" encoding="UTF-8"?><response><status>FATAL</status><code>` + code +
		`</code><message>` + message + `</message></response>`
}

func TestClient_IsConfigured(t *testing.T) {
	tests := []struct {
		name     string
		username string
		password string
		want     bool
	}{
		{"with credentials", "franta", "heslo", true},
		{"missing password", "franta", "", false},
		{"missing username", "", "heslo", false},
		{"empty", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewClient(config.WebshareConfig{
				Username: tt.username,
				Password: tt.password,
			}, zerolog.Nop())
			if got := client.IsConfigured(); got != tt.want {
				t.Errorf("IsConfigured() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClient_Login(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/salt/":
			if got := r.PostFormValue("username_or_email"); got != "franta" {
				t.Errorf("username_or_email = %q, want %q", got, "franta")
			}
			fmt.Fprint(w, okResponse("<salt>abcdef12</salt>"))
		case "/login/":
			// MD5-crypt of "tajneheslo" with salt "abcdef12", SHA-1 hexed.
			if got := r.PostFormValue("password"); got != "377b3241db016849aa974eb532ef3a013cd3aa20" {
				t.Errorf("password = %q, want the salted digest", got)
			}
			if got := r.PostFormValue("keep_logged_in"); got != "1" {
				t.Errorf("keep_logged_in = %q, want %q", got, "1")
			}
			fmt.Fprint(w, okResponse("<token>wst-token</token>"))
		default:
			t.Errorf("unexpected path: %s", r.URL.Path)
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := newTestClient(server)
	if err := client.Login(context.Background()); err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	if got := client.Token(); got != "wst-token" {
		t.Errorf("Token() = %q, want %q", got, "wst-token")
	}
	if !client.LoggedIn() {
		t.Error("LoggedIn() = false after successful login")
	}
}

func TestClient_Login_PlainFallback(t *testing.T) {
	loginCalls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/salt/":
			fmt.Fprint(w, okResponse("<salt>abcdef12</salt>"))
		case "/login/":
			loginCalls++
			if loginCalls == 1 {
				fmt.Fprint(w, errResponse("LOGIN_FATAL_1", "Invalid password"))
				return
			}
			if got := r.PostFormValue("password"); got != "tajneheslo" {
				t.Errorf("password = %q, want the plain password", got)
			}
			fmt.Fprint(w, okResponse("<token>wst-token</token>"))
		default:
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
	}))
	defer server.Close()

	client := newTestClient(server)
	if err := client.Login(context.Background()); err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	if loginCalls != 2 {
		t.Errorf("login attempts = %d, want 2", loginCalls)
	}
	if got := client.Token(); got != "wst-token" {
		t.Errorf("Token() = %q, want %q", got, "wst-token")
	}
}

func TestClient_Login_BadCredentials(t *testing.T) {
	loginCalls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/salt/":
			fmt.Fprint(w, okResponse("<salt>abcdef12</salt>"))
		case "/login/":
			loginCalls++
			fmt.Fprint(w, errResponse("LOGIN_FATAL_1", "Invalid password"))
		default:
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
	}))
	defer server.Close()

	client := newTestClient(server)
	err := client.Login(context.Background())
	if !errors.Is(err, ErrBadCredentials) {
		t.Fatalf("Login() error = %v, want ErrBadCredentials", err)
	}

	if loginCalls != 2 {
		t.Errorf("login attempts = %d, want 2", loginCalls)
	}
	if client.LoggedIn() {
		t.Error("LoggedIn() = true after failed login")
	}
}

func TestClient_Login_NotConfigured(t *testing.T) {
	client := NewClient(config.WebshareConfig{}, zerolog.Nop())
	err := client.Login(context.Background())
	if !errors.Is(err, ErrBadCredentials) {
		t.Errorf("Login() error = %v, want ErrBadCredentials", err)
	}
}

func TestClient_Search(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search/" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.PostFormValue("what"); got != "Matrix" {
			t.Errorf("what = %q, want %q", got, "Matrix")
		}
		if got := r.PostFormValue("category"); got != "video" {
			t.Errorf("category = %q, want %q", got, "video")
		}
		if got := r.PostFormValue("limit"); got != "40" {
			t.Errorf("limit = %q, want %q", got, "40")
		}
		if got := r.PostFormValue("offset"); got != "0" {
			t.Errorf("offset = %q, want %q", got, "0")
		}

		fmt.Fprint(w, okResponse(`<total>128</total>`+
			`<file><ident>abc123</ident><name>Matrix.1999.1080p.CZ.mkv</name><type>video</type>`+
			`<size>2147483648</size><img>https://img.example/abc123.jpg</img>`+
			`<stripe_count>10</stripe_count><positive_votes>12</positive_votes>`+
			`<negative_votes>1</negative_votes><password>0</password><queued>0</queued></file>`+
			`<file><ident>def456</ident><name>Matrix.1999.CAM.avi</name><type>video</type>`+
			`<size>734003200</size><positive_votes>0</positive_votes>`+
			`<negative_votes>4</negative_votes><password>1</password><queued>1</queued></file>`))
	}))
	defer server.Close()

	client := newTestClient(server)
	page, err := client.Search(context.Background(), SearchRequest{What: "Matrix", Limit: 40})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	if page.Total != 128 {
		t.Errorf("Total = %d, want %d", page.Total, 128)
	}
	if len(page.Files) != 2 {
		t.Fatalf("Search() returned %d files, want 2", len(page.Files))
	}

	first := page.Files[0]
	if first.Ident != "abc123" {
		t.Errorf("Files[0].Ident = %q, want %q", first.Ident, "abc123")
	}
	if first.Name != "Matrix.1999.1080p.CZ.mkv" {
		t.Errorf("Files[0].Name = %q", first.Name)
	}
	if first.Size != 2147483648 {
		t.Errorf("Files[0].Size = %d, want %d", first.Size, 2147483648)
	}
	if first.StripeCount != 10 {
		t.Errorf("Files[0].StripeCount = %d, want %d", first.StripeCount, 10)
	}
	if first.Protected || first.Queued {
		t.Error("Files[0] should be neither protected nor queued")
	}

	second := page.Files[1]
	if !second.Protected {
		t.Error("Files[1].Protected = false, want true")
	}
	if !second.Queued {
		t.Error("Files[1].Queued = false, want true")
	}
}

func TestClient_Search_LimitBounds(t *testing.T) {
	tests := []struct {
		name       string
		limit      int
		offset     int
		wantLimit  string
		wantOffset string
	}{
		{"zero limit uses default", 0, 0, "25", "0"},
		{"oversized limit capped", 500, 0, "100", "0"},
		{"in-range limit kept", 40, 80, "40", "80"},
		{"negative offset floored", 25, -5, "25", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotLimit, gotOffset string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotLimit = r.PostFormValue("limit")
				gotOffset = r.PostFormValue("offset")
				fmt.Fprint(w, okResponse("<total>0</total>"))
			}))
			defer server.Close()

			client := newTestClient(server)
			page, err := client.Search(context.Background(), SearchRequest{
				What:   "test",
				Limit:  tt.limit,
				Offset: tt.offset,
			})
			if err != nil {
				t.Fatalf("Search() error = %v", err)
			}

			if gotLimit != tt.wantLimit {
				t.Errorf("limit = %q, want %q", gotLimit, tt.wantLimit)
			}
			if gotOffset != tt.wantOffset {
				t.Errorf("offset = %q, want %q", gotOffset, tt.wantOffset)
			}
			if len(page.Files) != 0 {
				t.Errorf("Files = %d, want 0", len(page.Files))
			}
		})
	}
}

func TestClient_FileInfo(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/file_info/" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.PostFormValue("ident"); got != "abc123" {
			t.Errorf("ident = %q, want %q", got, "abc123")
		}
		// file_info replies carry the fields directly under the root, with
		// no ident echo.
		fmt.Fprint(w, okResponse(`<name>Matrix.1999.1080p.CZ.mkv</name><type>video</type>`+
			`<size>2147483648</size><positive_votes>12</positive_votes><password>0</password>`))
	}))
	defer server.Close()

	client := newTestClient(server)
	file, err := client.FileInfo(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("FileInfo() error = %v", err)
	}

	if file.Ident != "abc123" {
		t.Errorf("Ident = %q, want %q", file.Ident, "abc123")
	}
	if file.Name != "Matrix.1999.1080p.CZ.mkv" {
		t.Errorf("Name = %q", file.Name)
	}
	if file.Size != 2147483648 {
		t.Errorf("Size = %d, want %d", file.Size, 2147483648)
	}
}

func TestClient_FileLink(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/file_link/" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.PostFormValue("wst"); got != "wst-token" {
			t.Errorf("wst = %q, want %q", got, "wst-token")
		}
		if got := r.PostFormValue("download_type"); got != "video_stream" {
			t.Errorf("download_type = %q, want %q", got, "video_stream")
		}
		if got := r.PostFormValue("force_https"); got != "1" {
			t.Errorf("force_https = %q, want %q", got, "1")
		}
		fmt.Fprint(w, okResponse("<link>https://free.example/stream/abc123.mkv</link>"))
	}))
	defer server.Close()

	client := newTestClient(server)
	client.SetToken("wst-token")

	link, err := client.FileLink(context.Background(), "abc123", "")
	if err != nil {
		t.Fatalf("FileLink() error = %v", err)
	}
	if link != "https://free.example/stream/abc123.mkv" {
		t.Errorf("FileLink() = %q", link)
	}
}

func TestClient_FileLink_NotLoggedIn(t *testing.T) {
	client := NewClient(config.WebshareConfig{}, zerolog.Nop())
	_, err := client.FileLink(context.Background(), "abc123", "")
	if !errors.Is(err, ErrNotLoggedIn) {
		t.Errorf("FileLink() error = %v, want ErrNotLoggedIn", err)
	}
}

func TestClient_FileLink_Missing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, okResponse(""))
	}))
	defer server.Close()

	client := newTestClient(server)
	client.SetToken("wst-token")

	_, err := client.FileLink(context.Background(), "abc123", "")
	if !errors.Is(err, ErrLinkUnavailable) {
		t.Errorf("FileLink() error = %v, want ErrLinkUnavailable", err)
	}
}

func TestClient_Revalidate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/session/" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.PostFormValue("wst"); got != "wst-token" {
			t.Errorf("wst = %q, want %q", got, "wst-token")
		}
		fmt.Fprint(w, okResponse(""))
	}))
	defer server.Close()

	client := newTestClient(server)
	client.SetToken("wst-token")

	if err := client.Revalidate(context.Background()); err != nil {
		t.Fatalf("Revalidate() error = %v", err)
	}
	if got := client.Token(); got != "wst-token" {
		t.Errorf("Token() = %q after revalidate, want it kept", got)
	}
}

func TestClient_Revalidate_Expired(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, errResponse("SESSION_FATAL_1", "Session expired"))
	}))
	defer server.Close()

	client := newTestClient(server)
	client.SetToken("wst-token")

	if err := client.Revalidate(context.Background()); err == nil {
		t.Fatal("Revalidate() error = nil, want error")
	}
	if client.LoggedIn() {
		t.Error("token kept after failed revalidation")
	}
}

func TestClient_Revalidate_NotLoggedIn(t *testing.T) {
	client := NewClient(config.WebshareConfig{}, zerolog.Nop())
	if err := client.Revalidate(context.Background()); !errors.Is(err, ErrNotLoggedIn) {
		t.Errorf("Revalidate() error = %v, want ErrNotLoggedIn", err)
	}
}

func TestClient_Logout(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.URL.Path != "/logout/" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.PostFormValue("wst"); got != "wst-token" {
			t.Errorf("wst = %q, want %q", got, "wst-token")
		}
		// Even a failed logout must drop the local token.
		fmt.Fprint(w, errResponse("LOGOUT_FATAL_1", "Unknown session"))
	}))
	defer server.Close()

	client := newTestClient(server)
	client.SetToken("wst-token")

	client.Logout(context.Background())
	if client.LoggedIn() {
		t.Error("token kept after logout")
	}
	if calls != 1 {
		t.Errorf("logout requests = %d, want 1", calls)
	}

	// A second logout has no token and must not hit the API.
	client.Logout(context.Background())
	if calls != 1 {
		t.Errorf("logout requests = %d after repeat logout, want 1", calls)
	}
}

func TestClient_UserData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/user_data/" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		fmt.Fprint(w, okResponse(`<username>franta</username><email>franta@example.com</email>`+
			`<vip>1</vip><vip_days>42</vip_days><vip_until>2026-12-31 23:59:59</vip_until><points>15.5</points>`))
	}))
	defer server.Close()

	client := newTestClient(server)
	client.SetToken("wst-token")

	data, err := client.UserData(context.Background())
	if err != nil {
		t.Fatalf("UserData() error = %v", err)
	}

	if data.Username != "franta" {
		t.Errorf("Username = %q, want %q", data.Username, "franta")
	}
	if !data.VIP {
		t.Error("VIP = false, want true")
	}
	if data.VIPDays != 42 {
		t.Errorf("VIPDays = %d, want %d", data.VIPDays, 42)
	}
}

func TestClient_RetriesServerErrors(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, okResponse("<salt>abcdef12</salt>"))
	}))
	defer server.Close()

	client := newTestClient(server)
	salt, err := client.Salt(context.Background(), "franta")
	if err != nil {
		t.Fatalf("Salt() error = %v", err)
	}

	if salt != "abcdef12" {
		t.Errorf("Salt() = %q, want %q", salt, "abcdef12")
	}
	if calls != 2 {
		t.Errorf("requests = %d, want 2", calls)
	}
}

func TestClient_APIErrorNotRetried(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		fmt.Fprint(w, errResponse("FILE_LINK_FATAL_1", "File temporarily unavailable"))
	}))
	defer server.Close()

	client := newTestClient(server)
	client.SetToken("wst-token")

	_, err := client.FileLink(context.Background(), "abc123", "")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("FileLink() error = %v, want *APIError", err)
	}

	if apiErr.Code != "FILE_LINK_FATAL_1" {
		t.Errorf("Code = %q, want %q", apiErr.Code, "FILE_LINK_FATAL_1")
	}
	if apiErr.Message != "File temporarily unavailable" {
		t.Errorf("Message = %q", apiErr.Message)
	}
	if calls != 1 {
		t.Errorf("requests = %d, want 1", calls)
	}
}

func TestIsAuthError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"login code", &APIError{Code: "LOGIN_FATAL_1"}, true},
		{"wrapped login code", fmt.Errorf("call failed: %w", &APIError{Code: "LOGIN_FATAL_2"}), true},
		{"other code", &APIError{Code: "FILE_LINK_FATAL_1"}, false},
		{"plain error", errors.New("boom"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsAuthError(tt.err); got != tt.want {
				t.Errorf("IsAuthError() = %v, want %v", got, tt.want)
			}
		})
	}
}

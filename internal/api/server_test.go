package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/tvstreamcz/tvstreamd/internal/auth"
	"github.com/tvstreamcz/tvstreamd/internal/catalogue"
	"github.com/tvstreamcz/tvstreamd/internal/command"
	"github.com/tvstreamcz/tvstreamd/internal/config"
	"github.com/tvstreamcz/tvstreamd/internal/logger"
	"github.com/tvstreamcz/tvstreamd/internal/scheduler"
	"github.com/tvstreamcz/tvstreamd/internal/session"
	"github.com/tvstreamcz/tvstreamd/internal/store"
)

func okXML(inner string) string {
	return `<?xml version="1.0" encoding="UTF-8"?><response><status>OK</status>` + inner + `</response>`
}

// fakeWebshare serves a fixed two-file catalogue plus the login dance.
func fakeWebshare(t *testing.T) *httptest.Server {
	t.Helper()
	files := `<total>2</total>` +
		`<file><ident>f1</ident><name>Pelíšky 1999 1080p CZ.mkv</name><type>video</type><size>734003200</size></file>` +
		`<file><ident>f2</ident><name>Pelíšky 1999 DVDRip CZ.avi</name><type>video</type><size>734003200</size></file>`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/salt/":
			fmt.Fprint(w, okXML("<salt>abcdef12</salt>"))
		case "/login/":
			fmt.Fprint(w, okXML("<token>wst-test</token>"))
		case "/search/":
			fmt.Fprint(w, okXML(files))
		case "/file_link/":
			fmt.Fprint(w, okXML("<link>https://dl.test/"+r.FormValue("ident")+"</link>"))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

type testServer struct {
	*Server
	token string
}

// newTestServer builds a server over a fake Webshare and a temp store;
// mutate tweaks the dependency bundle before the server is built.
func newTestServer(t *testing.T, mutate func(*Deps)) *testServer {
	t.Helper()

	upstream := fakeWebshare(t)
	sessions := session.NewManager(config.WebshareConfig{
		Username:      "franta",
		Password:      "tajneheslo",
		BaseURL:       upstream.URL,
		DownloadType:  "video_stream",
		KeepAliveSecs: 600,
		Timeout:       5,
	}, zerolog.Nop())

	cat := catalogue.NewService(sessions, nil,
		config.CatalogueConfig{PageSize: 20, Sort: "relevance", MaxFetchPages: 3},
		config.FilterConfig{MinMovieSizeMB: 100, MinSeriesSizeMB: 50},
		zerolog.Nop())

	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"), zerolog.Nop())
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	cat.SetHistory(st)

	deps := Deps{
		Command: command.Deps{
			Catalogue: cat,
			Sessions:  sessions,
			History:   st,
			Watched:   st,
		},
		Version: "test",
	}
	if mutate != nil {
		mutate(&deps)
	}

	return &testServer{Server: NewServer(deps, zerolog.Nop())}
}

func (ts *testServer) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if ts.token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+ts.token)
	}
	rec := httptest.NewRecorder()
	ts.echo.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("failed to parse response %q: %v", rec.Body.String(), err)
	}
}

func TestHealthCheck(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var response map[string]string
	decodeJSON(t, rec, &response)
	if response["status"] != "ok" {
		t.Errorf("status = %q, want ok", response["status"])
	}
}

func TestStatusEndpoint(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodGet, "/api/v1/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var response struct {
		Version string `json:"version"`
		Status  struct {
			Configured bool `json:"configured"`
			LoggedIn   bool `json:"loggedIn"`
		} `json:"status"`
	}
	decodeJSON(t, rec, &response)
	if response.Version != "test" {
		t.Errorf("version = %q, want test", response.Version)
	}
	if !response.Status.Configured {
		t.Error("status.configured = false, want true")
	}
	if response.Status.LoggedIn {
		t.Error("status.loggedIn = true before any request")
	}
}

func TestSearchEndpoint(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodGet, "/api/v1/search?q=pelisky", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var response struct {
		Page struct {
			Items []catalogue.Item `json:"items"`
			Total int              `json:"total"`
		} `json:"page"`
	}
	decodeJSON(t, rec, &response)
	if response.Page.Total != 2 {
		t.Errorf("page.total = %d, want 2", response.Page.Total)
	}
	if len(response.Page.Items) != 2 {
		t.Errorf("len(items) = %d, want 2", len(response.Page.Items))
	}
}

func TestSearchRequiresQuery(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodGet, "/api/v1/search", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestLettersEndpoint(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodGet, "/api/v1/browse/letters", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var response struct {
		Letters []string `json:"letters"`
	}
	decodeJSON(t, rec, &response)
	if len(response.Letters) != 27 {
		t.Errorf("len(letters) = %d, want 27", len(response.Letters))
	}
}

func TestResolveStreamEndpoint(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodGet, "/api/v1/stream/f1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var response struct {
		Link string `json:"link"`
	}
	decodeJSON(t, rec, &response)
	if response.Link != "https://dl.test/f1" {
		t.Errorf("link = %q", response.Link)
	}
}

func TestHistoryFlow(t *testing.T) {
	ts := newTestServer(t, nil)

	// A search lands in the history.
	if rec := ts.do(t, http.MethodGet, "/api/v1/search?q=pelisky", ""); rec.Code != http.StatusOK {
		t.Fatalf("search status = %d", rec.Code)
	}

	rec := ts.do(t, http.MethodGet, "/api/v1/history", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("history status = %d", rec.Code)
	}
	var response struct {
		History []store.SearchEntry `json:"history"`
	}
	decodeJSON(t, rec, &response)
	if len(response.History) != 1 || response.History[0].Query != "pelisky" {
		t.Fatalf("history = %+v, want one pelisky entry", response.History)
	}

	target := fmt.Sprintf("/api/v1/history/%d", response.History[0].ID)
	if rec := ts.do(t, http.MethodDelete, target, ""); rec.Code != http.StatusNoContent {
		t.Errorf("delete status = %d, want 204", rec.Code)
	}

	if rec := ts.do(t, http.MethodGet, "/api/v1/search?q=pelisky", ""); rec.Code != http.StatusOK {
		t.Fatalf("second search status = %d", rec.Code)
	}
	if rec := ts.do(t, http.MethodDelete, "/api/v1/history", ""); rec.Code != http.StatusNoContent {
		t.Errorf("clear status = %d, want 204", rec.Code)
	}

	rec = ts.do(t, http.MethodGet, "/api/v1/history", "")
	response.History = nil
	decodeJSON(t, rec, &response)
	if len(response.History) != 0 {
		t.Errorf("history after clear = %+v, want empty", response.History)
	}
}

func TestWatchedFlow(t *testing.T) {
	ts := newTestServer(t, nil)

	body := `{"title":"Pelíšky","position":120,"duration":600}`
	if rec := ts.do(t, http.MethodPut, "/api/v1/watched/abc", body); rec.Code != http.StatusNoContent {
		t.Fatalf("mark status = %d, want 204", rec.Code)
	}

	rec := ts.do(t, http.MethodGet, "/api/v1/watched/abc", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	var entry store.WatchedEntry
	decodeJSON(t, rec, &entry)
	if entry.PositionSecs != 120 || entry.Title != "Pelíšky" {
		t.Errorf("entry = %+v", entry)
	}

	if rec := ts.do(t, http.MethodGet, "/api/v1/watched/missing", ""); rec.Code != http.StatusNotFound {
		t.Errorf("missing entry status = %d, want 404", rec.Code)
	}

	if rec := ts.do(t, http.MethodDelete, "/api/v1/watched/abc", ""); rec.Code != http.StatusNoContent {
		t.Errorf("delete status = %d, want 204", rec.Code)
	}

	rec = ts.do(t, http.MethodGet, "/api/v1/watched", "")
	var response struct {
		Watched []store.WatchedEntry `json:"watched"`
	}
	decodeJSON(t, rec, &response)
	if len(response.Watched) != 0 {
		t.Errorf("watched after delete = %+v, want empty", response.Watched)
	}
}

func TestScrobbleWithoutTrakt(t *testing.T) {
	ts := newTestServer(t, nil)

	body := `{"title":"Pelíšky","position":600,"duration":1200}`
	rec := ts.do(t, http.MethodPost, "/api/v1/scrobble/start", body)
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}

func TestTraktRoutesWithoutService(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodGet, "/api/v1/trakt/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var status map[string]interface{}
	decodeJSON(t, rec, &status)
	if status["enabled"] != false || status["connected"] != false {
		t.Errorf("trakt status = %+v, want disabled", status)
	}

	if rec := ts.do(t, http.MethodPost, "/api/v1/trakt/link", ""); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("link status = %d, want 503", rec.Code)
	}
}

func TestAuthGate(t *testing.T) {
	hash, err := auth.HashPassword("tajneheslo")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	authSvc, err := auth.NewService(config.AuthConfig{
		Enabled:      true,
		Username:     "franta",
		PasswordHash: hash,
		JWTSecret:    "test-secret",
	})
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	ts := newTestServer(t, func(d *Deps) { d.Auth = authSvc })

	if rec := ts.do(t, http.MethodGet, "/api/v1/status", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated status = %d, want 401", rec.Code)
	}

	if rec := ts.do(t, http.MethodPost, "/api/v1/auth/login", `{"username":"franta","password":"spatne"}`); rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad login status = %d, want 401", rec.Code)
	}

	rec := ts.do(t, http.MethodPost, "/api/v1/auth/login", `{"username":"franta","password":"tajneheslo"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, body %s", rec.Code, rec.Body.String())
	}
	var login map[string]string
	decodeJSON(t, rec, &login)
	if login["token"] == "" {
		t.Fatal("login returned no token")
	}

	ts.token = login["token"]
	if rec := ts.do(t, http.MethodGet, "/api/v1/status", ""); rec.Code != http.StatusOK {
		t.Errorf("authenticated status = %d, want 200", rec.Code)
	}

	rec = ts.do(t, http.MethodGet, "/api/v1/auth/status", "")
	var authStatus map[string]interface{}
	decodeJSON(t, rec, &authStatus)
	if authStatus["requiresAuth"] != true || authStatus["authenticated"] != true {
		t.Errorf("auth status = %+v", authStatus)
	}

	// Health stays open for probes.
	ts.token = ""
	if rec := ts.do(t, http.MethodGet, "/health", ""); rec.Code != http.StatusOK {
		t.Errorf("health status = %d, want 200", rec.Code)
	}
}

func TestSchedulerRoutes(t *testing.T) {
	sched, err := scheduler.New(zerolog.Nop())
	if err != nil {
		t.Fatalf("scheduler.New() error = %v", err)
	}
	t.Cleanup(func() { _ = sched.Stop() })
	err = sched.RegisterTask(scheduler.TaskConfig{
		ID:   "noop",
		Name: "Noop",
		Cron: "0 3 * * *",
		Func: func(ctx context.Context) error { return nil },
	})
	if err != nil {
		t.Fatalf("RegisterTask() error = %v", err)
	}

	ts := newTestServer(t, func(d *Deps) { d.Scheduler = sched })

	rec := ts.do(t, http.MethodGet, "/api/v1/scheduler/tasks", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var tasks []scheduler.TaskInfo
	decodeJSON(t, rec, &tasks)
	if len(tasks) != 1 || tasks[0].ID != "noop" {
		t.Errorf("tasks = %+v, want one noop task", tasks)
	}

	if rec := ts.do(t, http.MethodPost, "/api/v1/scheduler/tasks/noop/run", ""); rec.Code != http.StatusAccepted {
		t.Errorf("run status = %d, want 202", rec.Code)
	}
	if rec := ts.do(t, http.MethodGet, "/api/v1/scheduler/tasks/missing", ""); rec.Code != http.StatusNotFound {
		t.Errorf("missing task status = %d, want 404", rec.Code)
	}
}

type fakeLogs struct {
	entries []logger.Entry
}

func (f *fakeLogs) RecentLogs() []logger.Entry { return f.entries }
func (f *fakeLogs) LogFilePath() string        { return "" }

func TestLogsRoutes(t *testing.T) {
	logs := &fakeLogs{entries: []logger.Entry{
		{Level: "info", Message: "first"},
		{Level: "warn", Message: "second"},
	}}
	ts := newTestServer(t, func(d *Deps) { d.Logs = logs })

	rec := ts.do(t, http.MethodGet, "/api/v1/logs", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("logs status = %d", rec.Code)
	}
	var entries []logger.Entry
	decodeJSON(t, rec, &entries)
	if len(entries) != 2 || entries[1].Message != "second" {
		t.Errorf("entries = %+v", entries)
	}

	if rec := ts.do(t, http.MethodGet, "/api/v1/logs/download", ""); rec.Code != http.StatusNotFound {
		t.Errorf("download status = %d, want 404 without a log file", rec.Code)
	}
}

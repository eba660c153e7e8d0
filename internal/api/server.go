// Package api exposes the daemon over HTTP. Handlers translate requests
// into commands for the command router; the server owns nothing but the
// transport.
package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/tvstreamcz/tvstreamd/internal/api/handlers"
	apimw "github.com/tvstreamcz/tvstreamd/internal/api/middleware"
	"github.com/tvstreamcz/tvstreamd/internal/api/ratelimit"
	"github.com/tvstreamcz/tvstreamd/internal/auth"
	"github.com/tvstreamcz/tvstreamd/internal/command"
	"github.com/tvstreamcz/tvstreamd/internal/config"
	"github.com/tvstreamcz/tvstreamd/internal/events"
	"github.com/tvstreamcz/tvstreamd/internal/logger"
	"github.com/tvstreamcz/tvstreamd/internal/scheduler"
	"github.com/tvstreamcz/tvstreamd/internal/trakt"
)

// LogsProvider provides access to log data.
type LogsProvider interface {
	RecentLogs() []logger.Entry
	LogFilePath() string
}

// Deps bundles everything the server serves. Trakt, Hub, Scheduler and
// Logs are optional; their routes are skipped when nil.
type Deps struct {
	Command   command.Deps
	Auth      *auth.Service
	Trakt     *trakt.Service
	Hub       *events.Hub
	Scheduler *scheduler.Scheduler
	Logs      LogsProvider
	Version   string
}

// Server handles HTTP requests for the tvstreamd API.
type Server struct {
	echo        *echo.Echo
	logger      zerolog.Logger
	deps        command.Deps
	auth        *auth.Service
	trakt       *trakt.Service
	hub         *events.Hub
	sched       *scheduler.Scheduler
	logs        LogsProvider
	authLimiter *ratelimit.AuthLimiter
	version     string
	startTime   time.Time
}

// NewServer creates a new API server instance.
func NewServer(deps Deps, logger zerolog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	if deps.Auth == nil {
		// A disabled auth service keeps the token gate wired.
		deps.Auth, _ = auth.NewService(config.AuthConfig{})
	}

	s := &Server{
		echo:        e,
		logger:      logger.With().Str("component", "api").Logger(),
		deps:        deps.Command,
		auth:        deps.Auth,
		trakt:       deps.Trakt,
		hub:         deps.Hub,
		sched:       deps.Scheduler,
		logs:        deps.Logs,
		authLimiter: ratelimit.NewAuthLimiter(),
		version:     deps.Version,
		startTime:   time.Now(),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// setupMiddleware configures Echo middleware.
func (s *Server) setupMiddleware() {
	// Recovery middleware
	s.echo.Use(middleware.Recover())

	// Request ID
	s.echo.Use(middleware.RequestID())

	// Security headers
	s.echo.Use(apimw.SecurityHeaders())

	// CORS
	s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	// Request logging
	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogMethod:   true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				s.logger.Error().
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Err(v.Error).
					Msg("request error")
			} else {
				s.logger.Debug().
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Msg("request")
			}
			return nil
		},
	}))

	// Gzip compression
	s.echo.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Level: 5,
		Skipper: func(c echo.Context) bool {
			// Skip compression for WebSocket
			return c.Request().Header.Get("Upgrade") == "websocket"
		},
	}))
}

// setupRoutes configures API routes.
func (s *Server) setupRoutes() {
	// Health check
	s.echo.GET("/health", s.healthCheck)

	api := s.echo.Group("/api/v1")

	// Auth routes stay outside the token gate so clients can log in
	authGroup := api.Group("/auth")
	authGroup.POST("/login", s.login, s.authLimiter.Middleware())
	authGroup.GET("/status", s.authStatus)

	protected := api.Group("", s.auth.Middleware())

	// System routes
	protected.GET("/status", s.getStatus)

	// Catalogue routes
	protected.GET("/search", s.search)

	browse := protected.Group("/browse")
	browse.GET("", s.browse)
	browse.GET("/letters", s.letters)
	browse.GET("/letters/:letter", s.browseLetter)
	browse.GET("/genres", s.genres)
	browse.GET("/genres/:genre", s.browseGenre)

	discover := protected.Group("/discover")
	discover.GET("/:scope", s.discover)
	discover.GET("/:scope/genre/:genreId", s.discoverByGenre)

	series := protected.Group("/series")
	series.GET("/search", s.seriesSearch)
	series.GET("/:series/seasons", s.seasons)
	series.GET("/:series/episodes", s.episodes)
	series.GET("/:series/streams", s.episodeStreams)
	series.GET("/:series/play", s.episodePlay)

	// Stream routes
	protected.GET("/streams", s.streams)
	protected.GET("/play", s.play)
	stream := protected.Group("/stream")
	stream.GET("/:ident", s.resolveStream)
	stream.GET("/:ident/info", s.fileInfo)

	// History routes
	protected.GET("/history", s.listHistory)
	protected.DELETE("/history", s.clearHistory)
	protected.DELETE("/history/:id", s.deleteHistory)

	// Watched routes
	protected.GET("/watched", s.listWatched)
	protected.GET("/watched/:ident", s.getWatched)
	protected.PUT("/watched/:ident", s.markWatched)
	protected.DELETE("/watched/:ident", s.deleteWatched)

	// Scrobble routes
	scrobble := protected.Group("/scrobble")
	scrobble.POST("/start", s.scrobbleStart)
	scrobble.POST("/stop", s.scrobbleStop)

	// Trakt account routes
	traktGroup := protected.Group("/trakt")
	traktGroup.GET("/status", s.traktStatus)
	traktGroup.POST("/link", s.traktLink)
	traktGroup.GET("/link", s.traktLinkStatus)
	traktGroup.DELETE("/link", s.traktUnlink)

	// Logs routes
	if s.logs != nil {
		logsHandlers := NewLogsHandlers(s.logs)
		logsHandlers.RegisterRoutes(protected.Group("/logs"))
	}

	// Scheduler routes
	if s.sched != nil {
		schedulerHandler := handlers.NewSchedulerHandler(s.sched)
		schedGroup := protected.Group("/scheduler")
		schedGroup.GET("/tasks", schedulerHandler.ListTasks)
		schedGroup.GET("/tasks/:id", schedulerHandler.GetTask)
		schedGroup.POST("/tasks/:id/run", schedulerHandler.RunTask)
	}

	// WebSocket events
	if s.hub != nil {
		protected.GET("/events", s.hub.HandleWebSocket)
	}
}

// Start begins listening for HTTP requests.
func (s *Server) Start(address string) error {
	s.logger.Info().Str("address", address).Msg("Starting HTTP server")
	s.authLimiter.StartCleanup(10 * time.Minute)
	return s.echo.Start(address)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("Shutting down HTTP server")
	return s.echo.Shutdown(ctx)
}

// Echo returns the underlying Echo instance.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// --- System handlers ---

func (s *Server) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) getStatus(c echo.Context) error {
	resp, err := command.Route(c.Request().Context(), s.deps, command.Request{Command: command.CmdStatus})
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"version":   s.version,
		"startTime": s.startTime.Format(time.RFC3339),
		"status":    resp.Status,
	})
}

// --- Auth handlers ---

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) login(c echo.Context) error {
	if !s.auth.Enabled() {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "authentication is disabled"})
	}

	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	if s.authLimiter.IsAccountLocked(req.Username) {
		retry := s.authLimiter.LockoutRemaining(req.Username)
		c.Response().Header().Set("Retry-After", retry.Round(time.Second).String())
		return c.JSON(http.StatusTooManyRequests, map[string]string{"error": "account temporarily locked"})
	}

	token, err := s.auth.Login(req.Username, req.Password)
	if err != nil {
		s.authLimiter.RecordFailedAttempt(req.Username)
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
	}

	s.authLimiter.RecordSuccessfulLogin(req.Username)
	return c.JSON(http.StatusOK, map[string]string{"token": token})
}

func (s *Server) authStatus(c echo.Context) error {
	authenticated := false
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if token, ok := strings.CutPrefix(header, "Bearer "); ok && token != "" {
		if _, err := s.auth.ValidateToken(token); err == nil {
			authenticated = true
		}
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"requiresAuth":  s.auth.Enabled(),
		"authenticated": authenticated,
	})
}

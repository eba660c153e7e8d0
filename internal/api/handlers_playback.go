package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/tvstreamcz/tvstreamd/internal/command"
	"github.com/tvstreamcz/tvstreamd/internal/trakt"
)

// --- History handlers ---

func (s *Server) listHistory(c echo.Context) error {
	return s.dispatch(c, command.Request{
		Command: command.CmdHistoryList,
		Limit:   intQuery(c, "limit"),
	})
}

func (s *Server) deleteHistory(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid id"})
	}

	if _, err := command.Route(c.Request().Context(), s.deps, command.Request{
		Command: command.CmdHistoryDelete,
		ID:      id,
	}); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) clearHistory(c echo.Context) error {
	if _, err := command.Route(c.Request().Context(), s.deps, command.Request{
		Command: command.CmdHistoryClear,
	}); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// --- Watched handlers ---

func (s *Server) listWatched(c echo.Context) error {
	return s.dispatch(c, command.Request{
		Command: command.CmdWatchedList,
		Limit:   intQuery(c, "limit"),
	})
}

func (s *Server) getWatched(c echo.Context) error {
	resp, err := command.Route(c.Request().Context(), s.deps, command.Request{
		Command: command.CmdWatchedGet,
		Ident:   pathParam(c, "ident"),
	})
	if err != nil {
		return respondError(c, err)
	}
	if resp.Entry == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "no playback state for this file"})
	}
	return c.JSON(http.StatusOK, resp.Entry)
}

func (s *Server) markWatched(c echo.Context) error {
	var req command.Request
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	req.Command = command.CmdWatchedMark
	req.Ident = pathParam(c, "ident")

	if _, err := command.Route(c.Request().Context(), s.deps, req); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) deleteWatched(c echo.Context) error {
	if _, err := command.Route(c.Request().Context(), s.deps, command.Request{
		Command: command.CmdWatchedDelete,
		Ident:   pathParam(c, "ident"),
	}); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// --- Scrobble handlers ---

func (s *Server) scrobbleStart(c echo.Context) error {
	return s.scrobble(c, command.CmdScrobbleStart)
}

func (s *Server) scrobbleStop(c echo.Context) error {
	return s.scrobble(c, command.CmdScrobbleStop)
}

func (s *Server) scrobble(c echo.Context, cmd command.Command) error {
	var req command.Request
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	req.Command = cmd

	if _, err := command.Route(c.Request().Context(), s.deps, req); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// --- Trakt account handlers ---

func (s *Server) traktStatus(c echo.Context) error {
	status := map[string]interface{}{
		"enabled":     false,
		"connected":   false,
		"linkPending": false,
	}
	if s.trakt != nil {
		status["enabled"] = s.trakt.Enabled()
		status["connected"] = s.trakt.Connected()
		status["linkPending"] = s.trakt.PendingCode() != nil
	}
	return c.JSON(http.StatusOK, status)
}

func (s *Server) traktLink(c echo.Context) error {
	if s.trakt == nil || !s.trakt.Enabled() {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "trakt is not configured"})
	}

	code, err := s.trakt.BeginLink(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusAccepted, linkResponse(code))
}

func (s *Server) traktLinkStatus(c echo.Context) error {
	if s.trakt == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "trakt is not configured"})
	}

	code := s.trakt.PendingCode()
	if code == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "no link in progress"})
	}
	return c.JSON(http.StatusOK, linkResponse(code))
}

func (s *Server) traktUnlink(c echo.Context) error {
	if s.trakt == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "trakt is not configured"})
	}

	if err := s.trakt.Unlink(c.Request().Context()); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// linkResponse shapes a pending device code for clients: the user enters
// userCode at verificationUrl.
func linkResponse(code *trakt.DeviceCode) map[string]interface{} {
	return map[string]interface{}{
		"userCode":        code.UserCode,
		"verificationUrl": code.VerificationURL,
		"expiresIn":       code.ExpiresIn,
		"interval":        code.Interval,
	}
}

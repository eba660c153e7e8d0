package api

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/tvstreamcz/tvstreamd/internal/catalogue"
	"github.com/tvstreamcz/tvstreamd/internal/command"
	"github.com/tvstreamcz/tvstreamd/internal/metadata"
	"github.com/tvstreamcz/tvstreamd/internal/trakt"
	"github.com/tvstreamcz/tvstreamd/internal/webshare"
)

// dispatch runs a command and writes the response union; fields the
// command never sets are omitted from the JSON.
func (s *Server) dispatch(c echo.Context, req command.Request) error {
	resp, err := command.Route(c.Request().Context(), s.deps, req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

func respondError(c echo.Context, err error) error {
	return c.JSON(statusForError(err), map[string]string{"error": err.Error()})
}

// statusForError maps service errors onto HTTP status codes; anything
// unknown is a 500.
func statusForError(err error) int {
	switch {
	case errors.Is(err, catalogue.ErrEmptyQuery),
		errors.Is(err, catalogue.ErrBadLetter),
		errors.Is(err, catalogue.ErrMissingGenre),
		errors.Is(err, catalogue.ErrMissingIdent):
		return http.StatusBadRequest
	case errors.Is(err, catalogue.ErrNoStreams),
		errors.Is(err, catalogue.ErrUnknownGenre),
		errors.Is(err, metadata.ErrNotFound),
		errors.Is(err, trakt.ErrNotLinked):
		return http.StatusNotFound
	case errors.Is(err, command.ErrScrobblingDisabled),
		errors.Is(err, trakt.ErrLinkRunning):
		return http.StatusConflict
	case errors.Is(err, metadata.ErrNoProvidersConfigured),
		errors.Is(err, trakt.ErrNotConfigured):
		return http.StatusServiceUnavailable
	case errors.Is(err, webshare.ErrBadCredentials),
		errors.Is(err, webshare.ErrNotLoggedIn),
		errors.Is(err, webshare.ErrLinkUnavailable),
		errors.Is(err, trakt.ErrUnauthorized):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// listingRequest collects the query/filter parameters shared by every
// listing endpoint. Absent filters stay empty so the router falls back
// to configured defaults.
func listingRequest(c echo.Context) command.Request {
	req := command.Request{
		Query:   c.QueryParam("q"),
		Scope:   c.QueryParam("scope"),
		Quality: c.QueryParam("quality"),
		Sort:    c.QueryParam("sort"),
		Limit:   intQuery(c, "limit"),
		Offset:  intQuery(c, "offset"),
		Page:    intQuery(c, "page"),
	}
	if audio := c.QueryParam("audio"); audio != "" {
		req.Audio = strings.Split(audio, ",")
	}
	if subs := c.QueryParam("subtitles"); subs != "" {
		v := subs == "true" || subs == "1"
		req.Subtitles = &v
	}
	return req
}

func intQuery(c echo.Context, name string) int {
	v, _ := strconv.Atoi(c.QueryParam(name))
	return v
}

// pathParam returns a path parameter with percent-encoding undone;
// series names carry spaces and diacritics.
func pathParam(c echo.Context, name string) string {
	raw := c.Param(name)
	if decoded, err := url.PathUnescape(raw); err == nil {
		return decoded
	}
	return raw
}

// --- Catalogue handlers ---

func (s *Server) search(c echo.Context) error {
	req := listingRequest(c)
	req.Command = command.CmdSearch
	return s.dispatch(c, req)
}

func (s *Server) browse(c echo.Context) error {
	req := listingRequest(c)
	req.Command = command.CmdBrowse
	return s.dispatch(c, req)
}

func (s *Server) letters(c echo.Context) error {
	return s.dispatch(c, command.Request{Command: command.CmdLetters})
}

func (s *Server) browseLetter(c echo.Context) error {
	req := listingRequest(c)
	req.Command = command.CmdBrowseLetter
	req.Letter = pathParam(c, "letter")
	return s.dispatch(c, req)
}

func (s *Server) genres(c echo.Context) error {
	return s.dispatch(c, command.Request{
		Command: command.CmdGenres,
		Scope:   c.QueryParam("scope"),
	})
}

func (s *Server) browseGenre(c echo.Context) error {
	req := listingRequest(c)
	req.Command = command.CmdBrowseGenre
	req.Genre = pathParam(c, "genre")
	return s.dispatch(c, req)
}

// --- Discover handlers ---

func (s *Server) discover(c echo.Context) error {
	category := c.QueryParam("category")
	if category == "" {
		category = "popular"
	}
	return s.dispatch(c, command.Request{
		Command:  command.CmdDiscover,
		Scope:    pathParam(c, "scope"),
		Category: category,
		Page:     intQuery(c, "page"),
	})
}

func (s *Server) discoverByGenre(c echo.Context) error {
	req := command.Request{
		Command: command.CmdDiscoverGenre,
		Scope:   pathParam(c, "scope"),
		Page:    intQuery(c, "page"),
	}
	raw := pathParam(c, "genreId")
	if id, err := strconv.Atoi(raw); err == nil {
		req.GenreID = id
	} else {
		// Allow browsing by genre name as well as TMDb id.
		req.Genre = raw
	}
	return s.dispatch(c, req)
}

// --- Series handlers ---

func (s *Server) seriesSearch(c echo.Context) error {
	return s.dispatch(c, command.Request{
		Command: command.CmdSeriesSearch,
		Query:   c.QueryParam("q"),
	})
}

func (s *Server) seasons(c echo.Context) error {
	return s.dispatch(c, command.Request{
		Command: command.CmdSeasons,
		Series:  pathParam(c, "series"),
	})
}

func (s *Server) episodes(c echo.Context) error {
	return s.dispatch(c, command.Request{
		Command:  command.CmdEpisodes,
		Series:   pathParam(c, "series"),
		SeriesID: intQuery(c, "seriesId"),
		Season:   intQuery(c, "season"),
	})
}

func (s *Server) episodeStreams(c echo.Context) error {
	return s.dispatch(c, command.Request{
		Command: command.CmdEpisodeStreams,
		Series:  pathParam(c, "series"),
		Season:  intQuery(c, "season"),
		Episode: intQuery(c, "episode"),
	})
}

func (s *Server) episodePlay(c echo.Context) error {
	return s.dispatch(c, command.Request{
		Command:  command.CmdEpisodePlay,
		Series:   pathParam(c, "series"),
		Season:   intQuery(c, "season"),
		Episode:  intQuery(c, "episode"),
		Password: c.QueryParam("password"),
	})
}

// --- Stream handlers ---

func (s *Server) streams(c echo.Context) error {
	req := listingRequest(c)
	req.Command = command.CmdStreams
	return s.dispatch(c, req)
}

func (s *Server) play(c echo.Context) error {
	req := listingRequest(c)
	req.Command = command.CmdPlay
	req.Password = c.QueryParam("password")
	return s.dispatch(c, req)
}

func (s *Server) resolveStream(c echo.Context) error {
	return s.dispatch(c, command.Request{
		Command:  command.CmdStreamResolve,
		Ident:    pathParam(c, "ident"),
		Password: c.QueryParam("password"),
	})
}

func (s *Server) fileInfo(c echo.Context) error {
	return s.dispatch(c, command.Request{
		Command: command.CmdFileInfo,
		Ident:   pathParam(c, "ident"),
	})
}

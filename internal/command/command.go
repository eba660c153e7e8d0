// Package command is the host boundary of the daemon. Every operation a
// client can invoke is an explicit Command carried by a Request and handled
// by the pure Route function; transports adapt to Request/Response and
// nothing in this package imports one.
package command

import (
	"context"
	"errors"
	"time"

	"github.com/tvstreamcz/tvstreamd/internal/catalogue"
	"github.com/tvstreamcz/tvstreamd/internal/config"
	"github.com/tvstreamcz/tvstreamd/internal/metadata"
	"github.com/tvstreamcz/tvstreamd/internal/session"
	"github.com/tvstreamcz/tvstreamd/internal/store"
	"github.com/tvstreamcz/tvstreamd/internal/trakt"
)

var (
	ErrUnknownCommand     = errors.New("unknown command")
	ErrScrobblingDisabled = errors.New("trakt scrobbling is not connected")
)

// Command names one daemon operation.
type Command string

const (
	CmdSearch       Command = "search"
	CmdBrowse       Command = "browse"
	CmdLetters      Command = "letters"
	CmdBrowseLetter Command = "browse.letter"
	CmdBrowseGenre  Command = "browse.genre"
	CmdGenres       Command = "genres"

	CmdDiscover      Command = "discover"
	CmdDiscoverGenre Command = "discover.genre"

	CmdSeriesSearch   Command = "series.search"
	CmdSeasons        Command = "series.seasons"
	CmdEpisodes       Command = "series.episodes"
	CmdEpisodeStreams Command = "series.streams"
	CmdEpisodePlay    Command = "series.play"

	CmdStreams       Command = "streams"
	CmdPlay          Command = "play"
	CmdStreamResolve Command = "stream.resolve"
	CmdFileInfo      Command = "file.info"

	CmdHistoryList   Command = "history.list"
	CmdHistoryDelete Command = "history.delete"
	CmdHistoryClear  Command = "history.clear"

	CmdWatchedList   Command = "watched.list"
	CmdWatchedGet    Command = "watched.get"
	CmdWatchedMark   Command = "watched.mark"
	CmdWatchedDelete Command = "watched.delete"

	CmdScrobbleStart Command = "scrobble.start"
	CmdScrobbleStop  Command = "scrobble.stop"

	CmdStatus Command = "status"
)

// Request carries a command and its parameters. Filter fields left empty
// fall back to the configured defaults; the literal "any" switches a
// default off.
type Request struct {
	Command Command `json:"command"`

	Query    string `json:"query,omitempty"`
	Scope    string `json:"scope,omitempty"` // movie, tvshow, empty = both
	Letter   string `json:"letter,omitempty"`
	Genre    string `json:"genre,omitempty"`
	GenreID  int    `json:"genreId,omitempty"`
	Category string `json:"category,omitempty"` // discover category

	Series   string `json:"series,omitempty"`
	SeriesID int    `json:"seriesId,omitempty"` // TMDb id when known
	Season   int    `json:"season,omitempty"`
	Episode  int    `json:"episode,omitempty"`

	Ident    string `json:"ident,omitempty"`
	Password string `json:"password,omitempty"` // protected files

	Quality   string   `json:"quality,omitempty"`
	Audio     []string `json:"audio,omitempty"`
	Subtitles *bool    `json:"subtitles,omitempty"`

	Sort   string `json:"sort,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
	Page   int    `json:"page,omitempty"` // discover paging

	ID       int64  `json:"id,omitempty"`    // history entry
	Title    string `json:"title,omitempty"` // watched/scrobble media
	Year     int    `json:"year,omitempty"`
	TmdbID   int    `json:"tmdbId,omitempty"`
	Position int    `json:"position,omitempty"` // seconds
	Duration int    `json:"duration,omitempty"` // seconds
	Watched  bool   `json:"watched,omitempty"`
}

// Response is the union of command results; exactly the fields relevant
// to the handled command are set.
type Response struct {
	Page     *catalogue.Page         `json:"page,omitempty"`
	Items    []catalogue.Item        `json:"items,omitempty"`
	Item     *catalogue.Item         `json:"item,omitempty"`
	Link     string                  `json:"link,omitempty"`
	Letters  []string                `json:"letters,omitempty"`
	Genres   []metadata.Genre        `json:"genres,omitempty"`
	Records  []metadata.Record       `json:"records,omitempty"`
	Series   []catalogue.SeriesMatch `json:"series,omitempty"`
	Seasons  *metadata.SeriesInfo    `json:"seasons,omitempty"`
	Episodes []metadata.Episode      `json:"episodes,omitempty"`
	History  []store.SearchEntry     `json:"history,omitempty"`
	Watched  []store.WatchedEntry    `json:"watched,omitempty"`
	Entry    *store.WatchedEntry     `json:"entry,omitempty"`
	Status   *Status                 `json:"status,omitempty"`
}

// Status reports daemon state for clients.
type Status struct {
	Configured     bool      `json:"configured"`
	LoggedIn       bool      `json:"loggedIn"`
	Username       string    `json:"username,omitempty"`
	LoginAt        time.Time `json:"loginAt"`
	VIP            bool      `json:"vip,omitempty"`
	VIPDays        int       `json:"vipDays,omitempty"`
	Providers      []string  `json:"providers,omitempty"`
	TraktConnected bool      `json:"traktConnected"`
}

// HistoryStore is the slice of the store the router needs for search
// history commands.
type HistoryStore interface {
	RecentSearches(ctx context.Context, limit int) ([]store.SearchEntry, error)
	DeleteSearch(ctx context.Context, id int64) error
	ClearSearchHistory(ctx context.Context) error
}

// WatchedStore is the slice of the store the router needs for playback
// state commands.
type WatchedStore interface {
	UpsertWatched(ctx context.Context, entry store.WatchedEntry) error
	GetWatched(ctx context.Context, ident string) (*store.WatchedEntry, error)
	ListWatched(ctx context.Context, limit int) ([]store.WatchedEntry, error)
	DeleteWatched(ctx context.Context, ident string) error
}

// Scrobbler reports playback to a tracking service.
type Scrobbler interface {
	Connected() bool
	ScrobbleStart(ctx context.Context, media trakt.Media, progress float64) error
	ScrobbleStop(ctx context.Context, media trakt.Media, progress float64) error
	MarkWatched(ctx context.Context, media trakt.Media) error
}

// Deps are the services Route dispatches into. Scrobbler and Metadata
// are optional; everything else is wired by the daemon.
type Deps struct {
	Catalogue *catalogue.Service
	Sessions  *session.Manager
	Metadata  *metadata.Service
	History   HistoryStore
	Watched   WatchedStore
	Scrobbler Scrobbler
	Filters   config.FilterConfig // configured filter defaults
}

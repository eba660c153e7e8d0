// Package catalogue turns raw Webshare search pages into enriched,
// filtered listings.
//
// Every listing runs the same pipeline: gather result pages from the
// streaming service, parse each filename into attributes, enrich
// surviving items with provider metadata, apply the filters, then
// slice the requested page out of the filtered sequence. Offsets are
// positions in the filtered sequence, so a page never shrinks because
// junk was removed after the fact.
package catalogue

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/tvstreamcz/tvstreamd/internal/config"
	"github.com/tvstreamcz/tvstreamd/internal/mediafile"
	"github.com/tvstreamcz/tvstreamd/internal/metadata"
	"github.com/tvstreamcz/tvstreamd/internal/session"
)

var (
	ErrEmptyQuery   = errors.New("search query is empty")
	ErrBadLetter    = errors.New("letter must be A-Z or 0-9")
	ErrMissingGenre = errors.New("genre is required")
	ErrMissingIdent = errors.New("file ident is required")
	ErrNoStreams    = errors.New("no playable streams found")
	ErrUnknownGenre = errors.New("genre not known to the metadata provider")
)

// Item is one playable row of a listing.
type Item struct {
	Ident         string               `json:"ident"`
	Name          string               `json:"name"`
	Size          int64                `json:"size"`
	PositiveVotes int                  `json:"positiveVotes"`
	NegativeVotes int                  `json:"negativeVotes"`
	Protected     bool                 `json:"protected"`
	Queued        bool                 `json:"queued"`
	Thumbnail     string               `json:"thumbnail,omitempty"`
	Label         string               `json:"label"`
	Attributes    mediafile.Attributes `json:"attributes"`
	Metadata      *metadata.Record     `json:"metadata,omitempty"`
}

// Filters narrows a listing. Zero values do not filter; the command
// layer resolves configured defaults before building a Query.
type Filters struct {
	MinQuality        mediafile.Quality `json:"minQuality,omitempty"`
	Audio             []string          `json:"audio,omitempty"`
	SubtitlesRequired bool              `json:"subtitlesRequired,omitempty"`
	Genre             string            `json:"genre,omitempty"`
}

// Query describes one listing request.
type Query struct {
	Text    string              `json:"text,omitempty"`
	Scope   mediafile.MediaType `json:"scope,omitempty"` // empty = both movies and series
	Letter  string              `json:"letter,omitempty"`
	Sort    string              `json:"sort,omitempty"` // relevance, recent, rating, largest, smallest
	Filters Filters             `json:"filters,omitempty"`
	Limit   int                 `json:"limit,omitempty"`  // page size, configured default when zero
	Offset  int                 `json:"offset,omitempty"` // position in the filtered sequence
}

// Page is one slice of filtered results. Total is the server-side raw
// result count; the filtered total is unknowable without exhausting
// the search, so HasMore signals continuation instead.
type Page struct {
	Items      []Item `json:"items"`
	Offset     int    `json:"offset"`
	NextOffset int    `json:"nextOffset"`
	Total      int    `json:"total"`
	HasMore    bool   `json:"hasMore"`
}

// HistoryStore records executed searches.
type HistoryStore interface {
	AddSearch(ctx context.Context, query, scope string) error
}

// Broadcaster pushes catalogue events to connected clients.
type Broadcaster interface {
	Broadcast(msgType string, payload interface{}) error
}

// Service is the catalogue orchestrator.
type Service struct {
	sessions    *session.Manager
	meta        *metadata.Service
	cfg         config.CatalogueConfig
	sizes       config.FilterConfig
	history     HistoryStore
	broadcaster Broadcaster
	logger      zerolog.Logger
}

// NewService creates the catalogue orchestrator. The metadata service
// may be disabled; listings then carry parsed attributes only.
func NewService(sessions *session.Manager, meta *metadata.Service, cfg config.CatalogueConfig, filters config.FilterConfig, logger zerolog.Logger) *Service {
	return &Service{
		sessions: sessions,
		meta:     meta,
		cfg:      cfg,
		sizes:    filters,
		logger:   logger.With().Str("component", "catalogue").Logger(),
	}
}

// SetHistory attaches a search-history recorder.
func (s *Service) SetHistory(h HistoryStore) {
	s.history = h
}

// SetBroadcaster attaches the event hub.
func (s *Service) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

func (s *Service) publish(msgType string, payload interface{}) {
	if s.broadcaster == nil {
		return
	}
	if err := s.broadcaster.Broadcast(msgType, payload); err != nil {
		s.logger.Debug().Err(err).Str("type", msgType).Msg("Event broadcast failed")
	}
}

// Package metadata aggregates title metadata from multiple providers.
//
// Providers are consulted in the order configured by metadata.priority;
// the first provider that returns a record wins. Results, including
// misses, are cached in memory and optionally persisted through a
// RecordStore so repeated lookups never hit the network twice within
// the cache TTL.
package metadata

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tvstreamcz/tvstreamd/internal/mediafile"
)

// Query identifies a title to enrich. Title should already be cleaned
// by the filename parser; Year and Season are zero when unknown.
type Query struct {
	Title  string
	Year   int
	Type   mediafile.MediaType
	Season int
}

// Key returns the cache key for this query. Queries that differ only
// in title case share an entry.
func (q Query) Key() string {
	return fmt.Sprintf("%s:%s:%d:%d", q.Type, strings.ToLower(q.Title), q.Year, q.Season)
}

// Record is a metadata record assembled from one provider.
type Record struct {
	Source        string    `json:"source"`
	Title         string    `json:"title"`
	OriginalTitle string    `json:"originalTitle,omitempty"`
	Year          int       `json:"year,omitempty"`
	Plot          string    `json:"plot,omitempty"`
	Rating        float64   `json:"rating,omitempty"`
	Votes         int       `json:"votes,omitempty"`
	Genres        []string  `json:"genres,omitempty"`
	Country       string    `json:"country,omitempty"`
	Runtime       int       `json:"runtime,omitempty"`
	PosterURL     string    `json:"posterUrl,omitempty"`
	BackdropURL   string    `json:"backdropUrl,omitempty"`
	ImdbID        string    `json:"imdbId,omitempty"`
	TmdbID        int       `json:"tmdbId,omitempty"`
	CSFDURL       string    `json:"csfdUrl,omitempty"`
	FetchedAt     time.Time `json:"fetchedAt,omitempty"`
}

// Provider is a single metadata source.
type Provider interface {
	Name() string
	IsConfigured() bool
	// Lookup resolves the query to a record, or ErrNotFound when the
	// provider has no match.
	Lookup(ctx context.Context, q Query) (*Record, error)
}

// Genre pairs a TMDB genre id with its localized name.
type Genre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// SeriesInfo describes a series and its seasons for drill-down browsing.
type SeriesInfo struct {
	TmdbID      int          `json:"tmdbId"`
	Title       string       `json:"title"`
	Overview    string       `json:"overview,omitempty"`
	Year        int          `json:"year,omitempty"`
	PosterURL   string       `json:"posterUrl,omitempty"`
	BackdropURL string       `json:"backdropUrl,omitempty"`
	Seasons     []SeasonInfo `json:"seasons"`
}

// SeasonInfo is one row of a series season listing.
type SeasonInfo struct {
	Number       int    `json:"number"`
	Name         string `json:"name"`
	EpisodeCount int    `json:"episodeCount"`
	PosterURL    string `json:"posterUrl,omitempty"`
	AirDate      string `json:"airDate,omitempty"`
}

// Episode is one episode row from a season listing.
type Episode struct {
	Season   int     `json:"season"`
	Number   int     `json:"number"`
	Title    string  `json:"title"`
	Overview string  `json:"overview,omitempty"`
	StillURL string  `json:"stillUrl,omitempty"`
	AirDate  string  `json:"airDate,omitempty"`
	Runtime  int     `json:"runtime,omitempty"`
	Rating   float64 `json:"rating,omitempty"`
}

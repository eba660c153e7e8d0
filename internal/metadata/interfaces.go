package metadata

import (
	"context"
	"time"

	"github.com/tvstreamcz/tvstreamd/internal/metadata/csfd"
	"github.com/tvstreamcz/tvstreamd/internal/metadata/tmdb"
)

// TMDBClient defines the interface for TMDB API operations.
type TMDBClient interface {
	Name() string
	IsConfigured() bool
	Test(ctx context.Context) error
	SearchMovies(ctx context.Context, query string, year int) ([]tmdb.Title, error)
	SearchSeries(ctx context.Context, query string, year int) ([]tmdb.Title, error)
	GetMovie(ctx context.Context, id int) (*tmdb.Details, error)
	GetSeries(ctx context.Context, id int) (*tmdb.Details, error)
	GetSeason(ctx context.Context, seriesID, seasonNumber int) (*tmdb.Season, error)
	MovieGenres(ctx context.Context) ([]tmdb.Genre, error)
	SeriesGenres(ctx context.Context) ([]tmdb.Genre, error)
	MovieCategory(ctx context.Context, category string, page int) ([]tmdb.Title, error)
	SeriesCategory(ctx context.Context, category string, page int) ([]tmdb.Title, error)
	DiscoverMovies(ctx context.Context, genreID, page int) ([]tmdb.Title, error)
	DiscoverSeries(ctx context.Context, genreID, page int) ([]tmdb.Title, error)
	GetImageURL(path string, size string) string
}

// CSFDClient defines the interface for ČSFD scrape operations.
type CSFDClient interface {
	Name() string
	IsConfigured() bool
	Search(ctx context.Context, query, kind string) (*csfd.SearchHit, error)
	GetDetail(ctx context.Context, href string) (*csfd.Detail, error)
}

// RecordStore persists enriched records across restarts. GetRecord
// returns (nil, nil) on a miss or expired entry.
type RecordStore interface {
	GetRecord(ctx context.Context, key string) (*Record, error)
	PutRecord(ctx context.Context, key string, rec *Record, expiresAt time.Time) error
}

package metadata

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tvstreamcz/tvstreamd/internal/config"
	"github.com/tvstreamcz/tvstreamd/internal/mediafile"
	"github.com/tvstreamcz/tvstreamd/internal/metadata/csfd"
	"github.com/tvstreamcz/tvstreamd/internal/metadata/tmdb"
)

var (
	ErrNoProvidersConfigured = errors.New("no metadata providers configured")
	ErrNotFound              = errors.New("metadata not found")
)

// Provider priority modes, matching the metadata.priority config key.
const (
	PriorityTMDBFirst = "tmdb_first"
	PriorityCSFDFirst = "csfd_first"
	PriorityTMDBOnly  = "tmdb_only"
	PriorityCSFDOnly  = "csfd_only"
	PriorityNone      = "none"
)

// Service orchestrates metadata lookups across multiple providers.
type Service struct {
	providers []Provider
	tmdb      TMDBClient // set whenever an API key is configured
	browse    TMDBClient // set only when the priority mode includes TMDB
	cache     *Cache
	store     RecordStore
	ttl       time.Duration
	logger    zerolog.Logger
}

// NewService creates a metadata service with real API clients. The
// provider chain follows cfg.Priority; TMDB joins it only when an API
// key is configured, ČSFD needs no credentials. Catalogue browsing is
// available whenever TMDB is part of the chain.
func NewService(cfg config.MetadataConfig, logger zerolog.Logger) *Service {
	subLogger := logger.With().Str("component", "metadata").Logger()

	ttl := time.Duration(cfg.CacheTTLMinutes) * time.Minute
	if ttl <= 0 {
		ttl = DefaultCacheConfig().TTL
	}
	maxItems := cfg.CacheMaxItems
	if maxItems <= 0 {
		maxItems = DefaultCacheConfig().MaxItems
	}

	s := &Service{
		cache:  NewCache(CacheConfig{TTL: ttl, MaxItems: maxItems}),
		ttl:    ttl,
		logger: subLogger,
	}

	var tmdbClient *tmdb.Client
	if cfg.TMDB.APIKey != "" {
		tmdbClient = tmdb.NewClient(cfg.TMDB, logger)
		s.tmdb = tmdbClient
	}
	csfdClient := csfd.NewClient(cfg.CSFD, logger)

	addTMDB := func() {
		if tmdbClient != nil {
			s.providers = append(s.providers, NewTMDBProvider(tmdbClient, logger))
			s.browse = tmdbClient
		}
	}
	addCSFD := func() {
		s.providers = append(s.providers, NewCSFDProvider(csfdClient, logger))
	}

	switch cfg.Priority {
	case PriorityTMDBFirst:
		addTMDB()
		addCSFD()
	case PriorityCSFDFirst:
		addCSFD()
		addTMDB()
	case PriorityTMDBOnly:
		addTMDB()
	case PriorityCSFDOnly:
		addCSFD()
	case PriorityNone:
	default:
		subLogger.Warn().Str("priority", cfg.Priority).Msg("Unknown metadata priority, using tmdb_first")
		addTMDB()
		addCSFD()
	}

	return s
}

// NewServiceWithProviders creates a metadata service with custom
// providers (for testing/mocking). The browse client may be nil.
func NewServiceWithProviders(providers []Provider, browse TMDBClient, logger zerolog.Logger) *Service {
	cfg := DefaultCacheConfig()
	return &Service{
		providers: providers,
		tmdb:      browse,
		browse:    browse,
		cache:     NewCache(cfg),
		ttl:       cfg.TTL,
		logger:    logger.With().Str("component", "metadata").Logger(),
	}
}

// SetStore attaches a persistent record store. Enrich results are
// written through to it and survive restarts.
func (s *Service) SetStore(store RecordStore) {
	s.store = store
}

// Enabled reports whether any provider is active.
func (s *Service) Enabled() bool {
	return len(s.providers) > 0
}

// BrowseEnabled reports whether TMDB category browsing is available.
// Browsing needs the TMDB client but no provider chain.
func (s *Service) BrowseEnabled() bool {
	return s.browse != nil
}

// ProviderNames lists active providers in lookup order.
func (s *Service) ProviderNames() []string {
	names := make([]string, len(s.providers))
	for i, p := range s.providers {
		names[i] = p.Name()
	}
	return names
}

// ClearCache drops all cached lookups and browse pages.
func (s *Service) ClearCache() {
	s.cache.Clear()
}

// TestTMDB verifies TMDB connectivity with the configured API key.
func (s *Service) TestTMDB(ctx context.Context) error {
	if s.tmdb == nil {
		return tmdb.ErrAPIKeyMissing
	}
	return s.tmdb.Test(ctx)
}

// Enrich resolves metadata for a parsed title. Providers are tried in
// priority order and the first match wins; provider failures fall
// through to the next one. Both hits and misses are cached, so a title
// that matched nothing stays quiet for the cache TTL instead of
// re-querying every provider on every search.
func (s *Service) Enrich(ctx context.Context, q Query) (*Record, error) {
	if len(s.providers) == 0 {
		return nil, ErrNoProvidersConfigured
	}

	key := fmt.Sprintf("enrich:%s", q.Key())

	if rec, ok := s.cache.GetRecord(key); ok {
		if rec == nil {
			return nil, ErrNotFound
		}
		return rec, nil
	}

	if s.store != nil {
		rec, err := s.store.GetRecord(ctx, key)
		if err != nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("Metadata store read failed")
		} else if rec != nil {
			s.cache.Set(key, rec)
			return rec, nil
		}
	}

	for _, p := range s.providers {
		if !p.IsConfigured() {
			continue
		}
		rec, err := p.Lookup(ctx, q)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				s.logger.Debug().Str("provider", p.Name()).Str("title", q.Title).Msg("No metadata match")
			} else {
				s.logger.Warn().Err(err).Str("provider", p.Name()).Str("title", q.Title).Msg("Metadata lookup failed")
			}
			continue
		}

		rec.FetchedAt = time.Now().UTC()
		s.cache.Set(key, rec)
		if s.store != nil {
			if err := s.store.PutRecord(ctx, key, rec, time.Now().Add(s.ttl)); err != nil {
				s.logger.Warn().Err(err).Str("key", key).Msg("Metadata store write failed")
			}
		}
		s.logger.Debug().
			Str("provider", p.Name()).
			Str("title", q.Title).
			Str("resolved", rec.Title).
			Msg("Metadata resolved")
		return rec, nil
	}

	// Cache the miss so repeated searches stay local.
	s.cache.Set(key, (*Record)(nil))
	return nil, ErrNotFound
}

// Genres returns the TMDB genre list for the media type.
func (s *Service) Genres(ctx context.Context, mediaType mediafile.MediaType) ([]Genre, error) {
	if s.browse == nil {
		return nil, ErrNoProvidersConfigured
	}

	key := fmt.Sprintf("genres:%s", mediaType)
	if genres, ok := s.cache.GetGenres(key); ok {
		return genres, nil
	}

	var (
		raw []tmdb.Genre
		err error
	)
	if mediaType == mediafile.TypeMovie {
		raw, err = s.browse.MovieGenres(ctx)
	} else {
		raw, err = s.browse.SeriesGenres(ctx)
	}
	if err != nil {
		return nil, err
	}

	genres := make([]Genre, len(raw))
	for i, g := range raw {
		genres[i] = Genre{ID: g.ID, Name: g.Name}
	}
	s.cache.Set(key, genres)
	return genres, nil
}

// Browse returns one page of a TMDB category listing such as popular
// or top rated titles.
func (s *Service) Browse(ctx context.Context, mediaType mediafile.MediaType, category string, page int) ([]Record, error) {
	if s.browse == nil {
		return nil, ErrNoProvidersConfigured
	}

	key := fmt.Sprintf("browse:%s:%s:%d", mediaType, category, page)
	if recs, ok := s.cache.GetRecords(key); ok {
		return recs, nil
	}

	var (
		titles []tmdb.Title
		err    error
	)
	if mediaType == mediafile.TypeMovie {
		titles, err = s.browse.MovieCategory(ctx, category, page)
	} else {
		titles, err = s.browse.SeriesCategory(ctx, category, page)
	}
	if err != nil {
		return nil, err
	}

	recs := recordsFromTitles(titles)
	s.cache.Set(key, recs)
	return recs, nil
}

// ByGenre returns one page of TMDB discover results for a genre.
func (s *Service) ByGenre(ctx context.Context, mediaType mediafile.MediaType, genreID, page int) ([]Record, error) {
	if s.browse == nil {
		return nil, ErrNoProvidersConfigured
	}

	key := fmt.Sprintf("discover:%s:%d:%d", mediaType, genreID, page)
	if recs, ok := s.cache.GetRecords(key); ok {
		return recs, nil
	}

	var (
		titles []tmdb.Title
		err    error
	)
	if mediaType == mediafile.TypeMovie {
		titles, err = s.browse.DiscoverMovies(ctx, genreID, page)
	} else {
		titles, err = s.browse.DiscoverSeries(ctx, genreID, page)
	}
	if err != nil {
		return nil, err
	}

	recs := recordsFromTitles(titles)
	s.cache.Set(key, recs)
	return recs, nil
}

// SeriesOverview resolves a series name to its TMDB entry and season
// list for drill-down browsing. The first search result is taken as
// the match.
func (s *Service) SeriesOverview(ctx context.Context, query string, year int) (*SeriesInfo, error) {
	if s.browse == nil {
		return nil, ErrNoProvidersConfigured
	}

	key := fmt.Sprintf("series:%s:%d", strings.ToLower(query), year)
	if info, ok := s.cache.GetSeriesInfo(key); ok {
		return info, nil
	}

	titles, err := s.browse.SearchSeries(ctx, query, year)
	if err != nil {
		return nil, err
	}
	if len(titles) == 0 {
		return nil, ErrNotFound
	}

	details, err := s.browse.GetSeries(ctx, titles[0].ID)
	if err != nil {
		return nil, err
	}

	info := &SeriesInfo{
		TmdbID:      details.ID,
		Title:       details.Title,
		Overview:    details.Overview,
		Year:        details.Year,
		PosterURL:   details.PosterURL,
		BackdropURL: details.BackdropURL,
	}
	for _, ref := range details.Seasons {
		// Season 0 holds specials; hide it unless it is all there is.
		if ref.Number == 0 && len(details.Seasons) > 1 {
			continue
		}
		name := ref.Name
		if name == "" {
			name = fmt.Sprintf("Série %d", ref.Number)
		}
		info.Seasons = append(info.Seasons, SeasonInfo{
			Number:       ref.Number,
			Name:         name,
			EpisodeCount: ref.EpisodeCount,
			PosterURL:    ref.PosterURL,
			AirDate:      ref.AirDate,
		})
	}

	s.cache.Set(key, info)
	return info, nil
}

// SeasonEpisodes returns the episode listing for one season of a
// series already resolved to a TMDB id.
func (s *Service) SeasonEpisodes(ctx context.Context, seriesID, seasonNumber int) ([]Episode, error) {
	if s.browse == nil {
		return nil, ErrNoProvidersConfigured
	}

	key := fmt.Sprintf("season:%d:%d", seriesID, seasonNumber)
	if episodes, ok := s.cache.GetEpisodes(key); ok {
		return episodes, nil
	}

	season, err := s.browse.GetSeason(ctx, seriesID, seasonNumber)
	if err != nil {
		return nil, err
	}

	episodes := make([]Episode, len(season.Episodes))
	for i, ep := range season.Episodes {
		title := ep.Title
		if title == "" {
			title = fmt.Sprintf("Epizoda %d", ep.Number)
		}
		episodes[i] = Episode{
			Season:   ep.Season,
			Number:   ep.Number,
			Title:    title,
			Overview: ep.Overview,
			StillURL: ep.StillURL,
			AirDate:  ep.AirDate,
			Runtime:  ep.Runtime,
			Rating:   ep.Rating,
		}
	}

	s.cache.Set(key, episodes)
	return episodes, nil
}

// recordsFromTitles converts browse rows; genre names are not resolved
// for listings, only for full Enrich lookups.
func recordsFromTitles(titles []tmdb.Title) []Record {
	recs := make([]Record, len(titles))
	for i, t := range titles {
		recs[i] = Record{
			Source:        "tmdb",
			Title:         t.Title,
			OriginalTitle: t.OriginalTitle,
			Year:          t.Year,
			Plot:          t.Overview,
			Rating:        t.Rating,
			Votes:         t.Votes,
			PosterURL:     t.PosterURL,
			BackdropURL:   t.BackdropURL,
			TmdbID:        t.ID,
		}
	}
	return recs
}

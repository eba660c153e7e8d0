package metadata

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/tvstreamcz/tvstreamd/internal/mediafile"
	"github.com/tvstreamcz/tvstreamd/internal/metadata/csfd"
	"github.com/tvstreamcz/tvstreamd/internal/metadata/tmdb"
)

// tmdbProvider adapts the TMDB client to the Provider interface.
type tmdbProvider struct {
	client TMDBClient
	logger zerolog.Logger
}

// NewTMDBProvider wraps a TMDB client as a metadata provider.
func NewTMDBProvider(client TMDBClient, logger zerolog.Logger) Provider {
	return &tmdbProvider{
		client: client,
		logger: logger.With().Str("provider", client.Name()).Logger(),
	}
}

func (p *tmdbProvider) Name() string { return p.client.Name() }

func (p *tmdbProvider) IsConfigured() bool { return p.client.IsConfigured() }

func (p *tmdbProvider) Lookup(ctx context.Context, q Query) (*Record, error) {
	var (
		candidates []tmdb.Title
		err        error
	)
	if q.Type == mediafile.TypeMovie {
		candidates, err = p.client.SearchMovies(ctx, q.Title, q.Year)
	} else {
		candidates, err = p.client.SearchSeries(ctx, q.Title, q.Year)
	}
	if err != nil {
		return nil, fmt.Errorf("tmdb search: %w", err)
	}
	if len(candidates) == 0 {
		return nil, ErrNotFound
	}

	candidate := bestCandidate(q, candidates)

	// A failed detail fetch still yields a usable record from the
	// search candidate alone.
	var details *tmdb.Details
	if q.Type == mediafile.TypeMovie {
		details, err = p.client.GetMovie(ctx, candidate.ID)
	} else {
		details, err = p.client.GetSeries(ctx, candidate.ID)
	}
	if err != nil {
		p.logger.Warn().Err(err).Int("id", candidate.ID).Msg("Details fetch failed, using search result only")
		details = nil
	}

	return recordFromTMDB(q, candidate, details), nil
}

// recordFromTMDB merges a search candidate with its detail response.
// Details win where present; the candidate fills in plot and artwork,
// and the query title is the fallback of last resort.
func recordFromTMDB(q Query, candidate tmdb.Title, details *tmdb.Details) *Record {
	rec := &Record{
		Source:      "tmdb",
		Title:       q.Title,
		TmdbID:      candidate.ID,
		Plot:        candidate.Overview,
		PosterURL:   candidate.PosterURL,
		BackdropURL: candidate.BackdropURL,
	}
	if details == nil {
		return rec
	}

	if details.Title != "" {
		rec.Title = details.Title
	}
	rec.OriginalTitle = details.OriginalTitle
	rec.Year = details.Year
	if details.Overview != "" {
		rec.Plot = details.Overview
	}
	rec.Rating = details.Rating
	rec.Votes = details.Votes
	rec.Genres = details.Genres
	rec.Runtime = details.Runtime
	rec.ImdbID = details.ImdbID
	if details.PosterURL != "" {
		rec.PosterURL = details.PosterURL
	}
	if details.BackdropURL != "" {
		rec.BackdropURL = details.BackdropURL
	}
	return rec
}

// csfdProvider adapts the ČSFD scrape client to the Provider interface.
type csfdProvider struct {
	client CSFDClient
	logger zerolog.Logger
}

// NewCSFDProvider wraps a ČSFD client as a metadata provider.
func NewCSFDProvider(client CSFDClient, logger zerolog.Logger) Provider {
	return &csfdProvider{
		client: client,
		logger: logger.With().Str("provider", client.Name()).Logger(),
	}
}

func (p *csfdProvider) Name() string { return p.client.Name() }

func (p *csfdProvider) IsConfigured() bool { return p.client.IsConfigured() }

func (p *csfdProvider) Lookup(ctx context.Context, q Query) (*Record, error) {
	kind := csfd.KindSeries
	if q.Type == mediafile.TypeMovie {
		kind = csfd.KindFilms
	}

	hit, err := p.client.Search(ctx, q.Title, kind)
	if err != nil {
		if errors.Is(err, csfd.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("csfd search: %w", err)
	}

	var detail *csfd.Detail
	if hit.Href != "" {
		detail, err = p.client.GetDetail(ctx, hit.Href)
		if err != nil {
			p.logger.Warn().Err(err).Str("href", hit.Href).Msg("Detail fetch failed, using search result only")
			detail = nil
		}
	}

	return recordFromCSFD(q, hit, detail), nil
}

// recordFromCSFD merges a search hit with its detail page. ČSFD has no
// separate backdrop art, so the poster doubles as fanart.
func recordFromCSFD(q Query, hit *csfd.SearchHit, detail *csfd.Detail) *Record {
	rec := &Record{
		Source:    "csfd",
		Title:     hit.Title,
		Year:      hit.Year,
		Genres:    hit.Genres,
		PosterURL: hit.PosterURL,
		CSFDURL:   hit.Href,
	}
	if detail != nil {
		if detail.Title != "" {
			rec.Title = detail.Title
		}
		rec.Plot = detail.Plot
		if rec.Plot == "" {
			rec.Plot = detail.Description
		}
		if detail.Year > 0 {
			rec.Year = detail.Year
		}
		if len(detail.Genres) > 0 {
			rec.Genres = detail.Genres
		}
		rec.Rating = detail.Rating
		rec.Votes = detail.Votes
		rec.Country = detail.Origin
		if detail.PosterURL != "" {
			rec.PosterURL = detail.PosterURL
		}
		if detail.URL != "" {
			rec.CSFDURL = detail.URL
		}
	}
	if rec.Title == "" {
		rec.Title = q.Title
	}
	rec.BackdropURL = rec.PosterURL
	return rec
}

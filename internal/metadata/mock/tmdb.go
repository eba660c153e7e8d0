// Package mock provides in-memory metadata implementations for tests and
// for running the daemon offline without provider credentials.
package mock

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/tvstreamcz/tvstreamd/internal/metadata/tmdb"
)

// TMDB implements the aggregator's TMDB client interface over canned data.
// Fields are plain slices and maps so tests can shape the catalogue before
// use; NewTMDB seeds a small Czech set for offline runs.
type TMDB struct {
	Movies         []tmdb.Title
	Series         []tmdb.Title
	MovieDetails   map[int]*tmdb.Details
	SeriesDetails  map[int]*tmdb.Details
	Seasons        map[string]*tmdb.Season // keyed "seriesID:season"
	MovieGenreSet  []tmdb.Genre
	SeriesGenreSet []tmdb.Genre

	// Err fails every call when set.
	Err error

	mu          sync.Mutex
	searchCalls int
	detailCalls int
}

// NewTMDB creates a mock client seeded with a handful of titles.
func NewTMDB() *TMDB {
	comedy := tmdb.Genre{ID: 35, Name: "Komedie"}
	drama := tmdb.Genre{ID: 18, Name: "Drama"}

	return &TMDB{
		Movies: []tmdb.Title{
			{ID: 8055, Title: "Pelíšky", OriginalTitle: "Pelíšky", Year: 1999, Rating: 8.4, Votes: 120, GenreIDs: []int{35, 18}},
			{ID: 2898, Title: "Vratné lahve", Year: 2007, Rating: 7.3, Votes: 95, GenreIDs: []int{35}},
		},
		Series: []tmdb.Title{
			{ID: 68716, Title: "Most!", Year: 2019, Rating: 8.7, Votes: 60, GenreIDs: []int{35}},
		},
		SeriesDetails: map[int]*tmdb.Details{
			68716: {
				ID: 68716, Title: "Most!", Year: 2019, Genres: []string{"Komedie"},
				Seasons: []tmdb.SeasonRef{{Number: 1, Name: "Série 1", EpisodeCount: 8}},
			},
		},
		Seasons: map[string]*tmdb.Season{
			"68716:1": {
				Number: 1, Name: "Série 1",
				Episodes: []tmdb.Episode{
					{Season: 1, Number: 1, Title: "Vánoce"},
					{Season: 1, Number: 2, Title: "Miluju tě"},
				},
			},
		},
		MovieGenreSet:  []tmdb.Genre{comedy, drama},
		SeriesGenreSet: []tmdb.Genre{comedy, drama},
	}
}

// SearchCalls returns how many search requests were made.
func (c *TMDB) SearchCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.searchCalls
}

// DetailCalls returns how many detail requests were made.
func (c *TMDB) DetailCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.detailCalls
}

func (c *TMDB) countSearch() {
	c.mu.Lock()
	c.searchCalls++
	c.mu.Unlock()
}

func (c *TMDB) countDetail() {
	c.mu.Lock()
	c.detailCalls++
	c.mu.Unlock()
}

func (c *TMDB) Name() string { return "tmdb-mock" }

func (c *TMDB) IsConfigured() bool { return true }

func (c *TMDB) Test(ctx context.Context) error { return c.Err }

func (c *TMDB) SearchMovies(ctx context.Context, query string, year int) ([]tmdb.Title, error) {
	c.countSearch()
	if c.Err != nil {
		return nil, c.Err
	}
	return matchTitles(c.Movies, query, year), nil
}

func (c *TMDB) SearchSeries(ctx context.Context, query string, year int) ([]tmdb.Title, error) {
	c.countSearch()
	if c.Err != nil {
		return nil, c.Err
	}
	return matchTitles(c.Series, query, year), nil
}

func (c *TMDB) GetMovie(ctx context.Context, id int) (*tmdb.Details, error) {
	c.countDetail()
	if c.Err != nil {
		return nil, c.Err
	}
	if d, ok := c.MovieDetails[id]; ok {
		return d, nil
	}
	for _, t := range c.Movies {
		if t.ID == id {
			return detailsFromTitle(t), nil
		}
	}
	return nil, tmdb.ErrNotFound
}

func (c *TMDB) GetSeries(ctx context.Context, id int) (*tmdb.Details, error) {
	c.countDetail()
	if c.Err != nil {
		return nil, c.Err
	}
	if d, ok := c.SeriesDetails[id]; ok {
		return d, nil
	}
	for _, t := range c.Series {
		if t.ID == id {
			return detailsFromTitle(t), nil
		}
	}
	return nil, tmdb.ErrNotFound
}

func (c *TMDB) GetSeason(ctx context.Context, seriesID, seasonNumber int) (*tmdb.Season, error) {
	c.countDetail()
	if c.Err != nil {
		return nil, c.Err
	}
	if s, ok := c.Seasons[fmt.Sprintf("%d:%d", seriesID, seasonNumber)]; ok {
		return s, nil
	}
	return nil, tmdb.ErrNotFound
}

func (c *TMDB) MovieGenres(ctx context.Context) ([]tmdb.Genre, error) {
	if c.Err != nil {
		return nil, c.Err
	}
	return c.MovieGenreSet, nil
}

func (c *TMDB) SeriesGenres(ctx context.Context) ([]tmdb.Genre, error) {
	if c.Err != nil {
		return nil, c.Err
	}
	return c.SeriesGenreSet, nil
}

// MovieCategory serves the whole movie table as page one of any category.
func (c *TMDB) MovieCategory(ctx context.Context, category string, page int) ([]tmdb.Title, error) {
	if c.Err != nil {
		return nil, c.Err
	}
	if page > 1 {
		return nil, nil
	}
	return c.Movies, nil
}

// SeriesCategory serves the whole series table as page one of any category.
func (c *TMDB) SeriesCategory(ctx context.Context, category string, page int) ([]tmdb.Title, error) {
	if c.Err != nil {
		return nil, c.Err
	}
	if page > 1 {
		return nil, nil
	}
	return c.Series, nil
}

func (c *TMDB) DiscoverMovies(ctx context.Context, genreID, page int) ([]tmdb.Title, error) {
	if c.Err != nil {
		return nil, c.Err
	}
	if page > 1 {
		return nil, nil
	}
	return matchGenre(c.Movies, genreID), nil
}

func (c *TMDB) DiscoverSeries(ctx context.Context, genreID, page int) ([]tmdb.Title, error) {
	if c.Err != nil {
		return nil, c.Err
	}
	if page > 1 {
		return nil, nil
	}
	return matchGenre(c.Series, genreID), nil
}

func (c *TMDB) GetImageURL(path, size string) string {
	if path == "" {
		return ""
	}
	return "https://image.tmdb.org/t/p/" + size + path
}

func matchTitles(table []tmdb.Title, query string, year int) []tmdb.Title {
	query = strings.ToLower(query)
	var results []tmdb.Title
	for _, t := range table {
		if !strings.Contains(strings.ToLower(t.Title), query) {
			continue
		}
		if year > 0 && t.Year != year {
			continue
		}
		results = append(results, t)
	}
	return results
}

func matchGenre(table []tmdb.Title, genreID int) []tmdb.Title {
	var results []tmdb.Title
	for _, t := range table {
		for _, id := range t.GenreIDs {
			if id == genreID {
				results = append(results, t)
				break
			}
		}
	}
	return results
}

func detailsFromTitle(t tmdb.Title) *tmdb.Details {
	return &tmdb.Details{
		ID:            t.ID,
		Title:         t.Title,
		OriginalTitle: t.OriginalTitle,
		Year:          t.Year,
		Overview:      t.Overview,
		Rating:        t.Rating,
		Votes:         t.Votes,
		PosterURL:     t.PosterURL,
		BackdropURL:   t.BackdropURL,
	}
}

package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/tvstreamcz/tvstreamd/internal/config"
)

var (
	ErrAPIKeyMissing = errors.New("TMDB API key is not configured")
	ErrNotFound      = errors.New("TMDB resource not found")
	ErrAPIError      = errors.New("TMDB API error")
	ErrRateLimited   = errors.New("TMDB API rate limited")
)

// Movie list categories accepted by MovieCategory.
const (
	MovieCategoryPopular    = "popular"
	MovieCategoryTopRated   = "top_rated"
	MovieCategoryNowPlaying = "now_playing"
	MovieCategoryUpcoming   = "upcoming"
)

// Series list categories accepted by SeriesCategory.
const (
	SeriesCategoryPopular     = "popular"
	SeriesCategoryTopRated    = "top_rated"
	SeriesCategoryAiringToday = "airing_today"
	SeriesCategoryOnTheAir    = "on_the_air"
)

// Client is a TMDB API client.
type Client struct {
	httpClient *http.Client
	config     config.TMDBConfig
	logger     zerolog.Logger
}

// NewClient creates a new TMDB client.
func NewClient(cfg config.TMDBConfig, logger zerolog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
		config: cfg,
		logger: logger.With().Str("component", "tmdb").Logger(),
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return "tmdb"
}

// IsConfigured returns true if the API key is set.
func (c *Client) IsConfigured() bool {
	return c.config.APIKey != ""
}

// Test verifies connectivity to the TMDB API by making a configuration request.
func (c *Client) Test(ctx context.Context) error {
	if !c.IsConfigured() {
		return ErrAPIKeyMissing
	}

	endpoint := fmt.Sprintf("%s/configuration", c.config.BaseURL)

	var result struct {
		Images struct {
			BaseURL string `json:"base_url"`
		} `json:"images"`
	}

	return c.doRequest(ctx, endpoint, url.Values{}, &result)
}

// SearchMovies searches for movies by query with an optional year filter.
// Results keep the API relevance order.
func (c *Client) SearchMovies(ctx context.Context, query string, year int) ([]Title, error) {
	if !c.IsConfigured() {
		return nil, ErrAPIKeyMissing
	}

	endpoint := fmt.Sprintf("%s/search/movie", c.config.BaseURL)
	params := url.Values{}
	params.Set("query", query)
	params.Set("include_adult", "false")
	if year > 0 {
		params.Set("year", strconv.Itoa(year))
	}
	if c.config.Region != "" {
		params.Set("region", c.config.Region)
	}

	var response SearchMoviesResponse
	if err := c.doRequest(ctx, endpoint, params, &response); err != nil {
		return nil, err
	}

	results := make([]Title, len(response.Results))
	for i, movie := range response.Results {
		results[i] = c.movieToTitle(movie)
	}

	c.logger.Debug().
		Str("query", query).
		Int("year", year).
		Int("results", len(results)).
		Msg("Movie search completed")

	return results, nil
}

// SearchSeries searches for TV series by query with an optional first-air-year
// filter. Czech titles are often missing from localized TMDB data, so an empty
// result set is retried once with the en-US catalogue before giving up.
func (c *Client) SearchSeries(ctx context.Context, query string, year int) ([]Title, error) {
	if !c.IsConfigured() {
		return nil, ErrAPIKeyMissing
	}

	results, err := c.searchSeries(ctx, query, year, "")
	if err != nil {
		return nil, err
	}

	if len(results) == 0 && c.config.Language != "" && c.config.Language != "en-US" {
		c.logger.Debug().
			Str("query", query).
			Str("language", c.config.Language).
			Msg("TV search empty, retrying with en-US")
		return c.searchSeries(ctx, query, year, "en-US")
	}

	return results, nil
}

func (c *Client) searchSeries(ctx context.Context, query string, year int, language string) ([]Title, error) {
	endpoint := fmt.Sprintf("%s/search/tv", c.config.BaseURL)
	params := url.Values{}
	params.Set("query", query)
	params.Set("include_adult", "false")
	if year > 0 {
		params.Set("first_air_date_year", strconv.Itoa(year))
	}
	if language != "" {
		params.Set("language", language)
	}

	var response SearchSeriesResponse
	if err := c.doRequest(ctx, endpoint, params, &response); err != nil {
		return nil, err
	}

	results := make([]Title, len(response.Results))
	for i, series := range response.Results {
		results[i] = c.seriesToTitle(series)
	}

	c.logger.Debug().
		Str("query", query).
		Int("year", year).
		Int("results", len(results)).
		Msg("TV search completed")

	return results, nil
}

// GetMovie gets detailed movie info by TMDB ID.
func (c *Client) GetMovie(ctx context.Context, id int) (*Details, error) {
	if !c.IsConfigured() {
		return nil, ErrAPIKeyMissing
	}

	endpoint := fmt.Sprintf("%s/movie/%d", c.config.BaseURL, id)
	params := url.Values{}
	params.Set("append_to_response", "external_ids")

	var details MovieDetails
	if err := c.doRequest(ctx, endpoint, params, &details); err != nil {
		return nil, err
	}

	result := c.movieToDetails(details)

	c.logger.Debug().
		Int("id", id).
		Str("title", result.Title).
		Msg("Got movie details")

	return &result, nil
}

// GetSeries gets detailed TV series info by TMDB ID, including the season list.
func (c *Client) GetSeries(ctx context.Context, id int) (*Details, error) {
	if !c.IsConfigured() {
		return nil, ErrAPIKeyMissing
	}

	endpoint := fmt.Sprintf("%s/tv/%d", c.config.BaseURL, id)
	params := url.Values{}
	params.Set("append_to_response", "external_ids")

	var details TVDetails
	if err := c.doRequest(ctx, endpoint, params, &details); err != nil {
		return nil, err
	}

	result := c.seriesToDetails(details)

	c.logger.Debug().
		Int("id", id).
		Str("title", result.Title).
		Int("seasons", len(result.Seasons)).
		Msg("Got TV series details")

	return &result, nil
}

// GetSeason gets a single season with its episodes.
func (c *Client) GetSeason(ctx context.Context, seriesID, seasonNumber int) (*Season, error) {
	if !c.IsConfigured() {
		return nil, ErrAPIKeyMissing
	}

	endpoint := fmt.Sprintf("%s/tv/%d/season/%d", c.config.BaseURL, seriesID, seasonNumber)

	var details SeasonDetails
	if err := c.doRequest(ctx, endpoint, url.Values{}, &details); err != nil {
		return nil, err
	}

	result := c.toSeason(details)

	c.logger.Debug().
		Int("seriesID", seriesID).
		Int("seasonNumber", seasonNumber).
		Int("episodes", len(result.Episodes)).
		Msg("Got season details")

	return &result, nil
}

// MovieGenres returns the movie genre list in the configured language.
func (c *Client) MovieGenres(ctx context.Context) ([]Genre, error) {
	return c.genres(ctx, "movie")
}

// SeriesGenres returns the TV genre list in the configured language.
func (c *Client) SeriesGenres(ctx context.Context) ([]Genre, error) {
	return c.genres(ctx, "tv")
}

func (c *Client) genres(ctx context.Context, kind string) ([]Genre, error) {
	if !c.IsConfigured() {
		return nil, ErrAPIKeyMissing
	}

	endpoint := fmt.Sprintf("%s/genre/%s/list", c.config.BaseURL, kind)

	var response GenreListResponse
	if err := c.doRequest(ctx, endpoint, url.Values{}, &response); err != nil {
		return nil, err
	}

	return response.Genres, nil
}

// MovieCategory returns one page of a curated movie list. Category is one of
// the MovieCategory constants.
func (c *Client) MovieCategory(ctx context.Context, category string, page int) ([]Title, error) {
	if !c.IsConfigured() {
		return nil, ErrAPIKeyMissing
	}

	params := url.Values{}
	params.Set("page", strconv.Itoa(normalizePage(page)))

	switch category {
	case MovieCategoryPopular, MovieCategoryTopRated:
	case MovieCategoryNowPlaying, MovieCategoryUpcoming:
		// Theatrical windows differ per country.
		if c.config.Region != "" {
			params.Set("region", c.config.Region)
		}
	default:
		return nil, fmt.Errorf("unknown movie category %q", category)
	}

	endpoint := fmt.Sprintf("%s/movie/%s", c.config.BaseURL, category)

	var response SearchMoviesResponse
	if err := c.doRequest(ctx, endpoint, params, &response); err != nil {
		return nil, err
	}

	results := make([]Title, len(response.Results))
	for i, movie := range response.Results {
		results[i] = c.movieToTitle(movie)
	}

	c.logger.Debug().
		Str("category", category).
		Int("page", page).
		Int("results", len(results)).
		Msg("Movie category listed")

	return results, nil
}

// SeriesCategory returns one page of a curated TV list. Category is one of
// the SeriesCategory constants.
func (c *Client) SeriesCategory(ctx context.Context, category string, page int) ([]Title, error) {
	if !c.IsConfigured() {
		return nil, ErrAPIKeyMissing
	}

	switch category {
	case SeriesCategoryPopular, SeriesCategoryTopRated, SeriesCategoryAiringToday, SeriesCategoryOnTheAir:
	default:
		return nil, fmt.Errorf("unknown series category %q", category)
	}

	endpoint := fmt.Sprintf("%s/tv/%s", c.config.BaseURL, category)
	params := url.Values{}
	params.Set("page", strconv.Itoa(normalizePage(page)))

	var response SearchSeriesResponse
	if err := c.doRequest(ctx, endpoint, params, &response); err != nil {
		return nil, err
	}

	results := make([]Title, len(response.Results))
	for i, series := range response.Results {
		results[i] = c.seriesToTitle(series)
	}

	c.logger.Debug().
		Str("category", category).
		Int("page", page).
		Int("results", len(results)).
		Msg("Series category listed")

	return results, nil
}

// DiscoverMovies returns one page of movies for a genre, most popular first.
func (c *Client) DiscoverMovies(ctx context.Context, genreID, page int) ([]Title, error) {
	if !c.IsConfigured() {
		return nil, ErrAPIKeyMissing
	}

	endpoint := fmt.Sprintf("%s/discover/movie", c.config.BaseURL)
	params := url.Values{}
	params.Set("with_genres", strconv.Itoa(genreID))
	params.Set("sort_by", "popularity.desc")
	params.Set("page", strconv.Itoa(normalizePage(page)))
	if c.config.Region != "" {
		params.Set("region", c.config.Region)
	}

	var response SearchMoviesResponse
	if err := c.doRequest(ctx, endpoint, params, &response); err != nil {
		return nil, err
	}

	results := make([]Title, len(response.Results))
	for i, movie := range response.Results {
		results[i] = c.movieToTitle(movie)
	}

	c.logger.Debug().
		Int("genreID", genreID).
		Int("page", page).
		Int("results", len(results)).
		Msg("Movie discover listed")

	return results, nil
}

// DiscoverSeries returns one page of TV series for a genre, most popular first.
func (c *Client) DiscoverSeries(ctx context.Context, genreID, page int) ([]Title, error) {
	if !c.IsConfigured() {
		return nil, ErrAPIKeyMissing
	}

	endpoint := fmt.Sprintf("%s/discover/tv", c.config.BaseURL)
	params := url.Values{}
	params.Set("with_genres", strconv.Itoa(genreID))
	params.Set("sort_by", "popularity.desc")
	params.Set("page", strconv.Itoa(normalizePage(page)))

	var response SearchSeriesResponse
	if err := c.doRequest(ctx, endpoint, params, &response); err != nil {
		return nil, err
	}

	results := make([]Title, len(response.Results))
	for i, series := range response.Results {
		results[i] = c.seriesToTitle(series)
	}

	c.logger.Debug().
		Int("genreID", genreID).
		Int("page", page).
		Int("results", len(results)).
		Msg("Series discover listed")

	return results, nil
}

// GetImageURL returns a full image URL for a given path and size.
// Size options: "w92", "w154", "w185", "w342", "w500", "w780", "original"
func (c *Client) GetImageURL(path string, size string) string {
	if path == "" {
		return ""
	}
	return fmt.Sprintf("%s/%s%s", c.config.ImageBaseURL, size, path)
}

// doRequest performs an HTTP GET request and decodes the JSON response.
// The API key is always sent; the configured language is sent unless the
// caller already set one.
func (c *Client) doRequest(ctx context.Context, endpoint string, params url.Values, result interface{}) error {
	params.Set("api_key", c.config.APIKey)
	if params.Get("language") == "" && c.config.Language != "" {
		params.Set("language", c.config.Language)
	}

	reqURL := fmt.Sprintf("%s?%s", endpoint, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Str("url", endpoint).Msg("HTTP request failed")
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil {
			c.logger.Error().
				Int("status", resp.StatusCode).
				Str("message", errResp.StatusMessage).
				Msg("TMDB API error")
		}

		switch resp.StatusCode {
		case http.StatusNotFound:
			return ErrNotFound
		case http.StatusUnauthorized:
			return fmt.Errorf("%w: invalid API key", ErrAPIError)
		case http.StatusTooManyRequests:
			return ErrRateLimited
		default:
			return fmt.Errorf("%w: status %d", ErrAPIError, resp.StatusCode)
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// movieToTitle converts a TMDB movie row to a normalized Title.
func (c *Client) movieToTitle(movie MovieResult) Title {
	result := Title{
		ID:            movie.ID,
		Title:         movie.Title,
		OriginalTitle: movie.OriginalTitle,
		Year:          yearOf(movie.ReleaseDate),
		Overview:      movie.Overview,
		Rating:        movie.VoteAverage,
		Votes:         movie.VoteCount,
		GenreIDs:      movie.GenreIDs,
	}

	if movie.PosterPath != nil {
		result.PosterURL = c.GetImageURL(*movie.PosterPath, "w500")
	}
	if movie.BackdropPath != nil {
		result.BackdropURL = c.GetImageURL(*movie.BackdropPath, "w780")
	}

	return result
}

// seriesToTitle converts a TMDB TV row to a normalized Title.
func (c *Client) seriesToTitle(tv TVResult) Title {
	result := Title{
		ID:            tv.ID,
		Title:         tv.Name,
		OriginalTitle: tv.OriginalName,
		Year:          yearOf(tv.FirstAirDate),
		Overview:      tv.Overview,
		Rating:        tv.VoteAverage,
		Votes:         tv.VoteCount,
		GenreIDs:      tv.GenreIDs,
	}

	if tv.PosterPath != nil {
		result.PosterURL = c.GetImageURL(*tv.PosterPath, "w500")
	}
	if tv.BackdropPath != nil {
		result.BackdropURL = c.GetImageURL(*tv.BackdropPath, "w780")
	}

	return result
}

// movieToDetails converts TMDB movie details to a normalized Details.
func (c *Client) movieToDetails(details MovieDetails) Details {
	genres := make([]string, len(details.Genres))
	for i, g := range details.Genres {
		genres[i] = g.Name
	}

	imdbID := details.ImdbID
	if imdbID == "" && details.ExternalIDs != nil {
		imdbID = details.ExternalIDs.ImdbID
	}

	result := Details{
		ID:            details.ID,
		Title:         details.Title,
		OriginalTitle: details.OriginalTitle,
		Year:          yearOf(details.ReleaseDate),
		Overview:      details.Overview,
		Rating:        details.VoteAverage,
		Votes:         details.VoteCount,
		Runtime:       details.Runtime,
		ImdbID:        imdbID,
		Genres:        genres,
	}

	if details.PosterPath != nil {
		result.PosterURL = c.GetImageURL(*details.PosterPath, "w500")
	}
	if details.BackdropPath != nil {
		result.BackdropURL = c.GetImageURL(*details.BackdropPath, "w780")
	}

	return result
}

// seriesToDetails converts TMDB TV details to a normalized Details.
func (c *Client) seriesToDetails(details TVDetails) Details {
	genres := make([]string, len(details.Genres))
	for i, g := range details.Genres {
		genres[i] = g.Name
	}

	runtime := 0
	if len(details.EpisodeRunTime) > 0 {
		runtime = details.EpisodeRunTime[0]
	}

	imdbID := ""
	if details.ExternalIDs != nil {
		imdbID = details.ExternalIDs.ImdbID
	}

	result := Details{
		ID:            details.ID,
		Title:         details.Name,
		OriginalTitle: details.OriginalName,
		Year:          yearOf(details.FirstAirDate),
		Overview:      details.Overview,
		Rating:        details.VoteAverage,
		Votes:         details.VoteCount,
		Runtime:       runtime,
		ImdbID:        imdbID,
		Genres:        genres,
		Seasons:       make([]SeasonRef, len(details.Seasons)),
	}

	for i, season := range details.Seasons {
		ref := SeasonRef{
			Number:       season.SeasonNumber,
			Name:         season.Name,
			EpisodeCount: season.EpisodeCount,
			AirDate:      season.AirDate,
		}
		if season.PosterPath != nil {
			ref.PosterURL = c.GetImageURL(*season.PosterPath, "w500")
		}
		result.Seasons[i] = ref
	}

	if details.PosterPath != nil {
		result.PosterURL = c.GetImageURL(*details.PosterPath, "w500")
	}
	if details.BackdropPath != nil {
		result.BackdropURL = c.GetImageURL(*details.BackdropPath, "w780")
	}

	return result
}

// toSeason converts TMDB season details to a normalized Season.
func (c *Client) toSeason(details SeasonDetails) Season {
	episodes := make([]Episode, len(details.Episodes))
	for i, ep := range details.Episodes {
		episode := Episode{
			Season:   ep.SeasonNumber,
			Number:   ep.EpisodeNumber,
			Title:    ep.Name,
			Overview: ep.Overview,
			AirDate:  ep.AirDate,
			Runtime:  ep.Runtime,
			Rating:   ep.VoteAverage,
		}
		if ep.StillPath != nil {
			episode.StillURL = c.GetImageURL(*ep.StillPath, "w500")
		}
		episodes[i] = episode
	}

	result := Season{
		Number:   details.SeasonNumber,
		Name:     details.Name,
		Overview: details.Overview,
		AirDate:  details.AirDate,
		Episodes: episodes,
	}

	if details.PosterPath != nil {
		result.PosterURL = c.GetImageURL(*details.PosterPath, "w500")
	}

	return result
}

// yearOf parses the year from a TMDB date string (YYYY-MM-DD).
func yearOf(date string) int {
	if len(date) < 4 {
		return 0
	}
	year, _ := strconv.Atoi(date[:4])
	return year
}

func normalizePage(page int) int {
	if page < 1 {
		return 1
	}
	return page
}

package catalogue

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/tvstreamcz/tvstreamd/internal/mediafile"
	"github.com/tvstreamcz/tvstreamd/internal/metadata"
)

// SeriesMatch is one series assembled from grouped episode uploads.
type SeriesMatch struct {
	Title     string `json:"title"`
	Thumbnail string `json:"thumbnail,omitempty"`
	Files     int    `json:"files"`
}

// SearchSeries groups episode uploads matching a query into one row
// per series, alphabetically.
func (s *Service) SearchSeries(ctx context.Context, query string) ([]SeriesMatch, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	page, err := s.fetch(ctx, Query{Text: query, Scope: mediafile.TypeSeries, Limit: 50})
	if err != nil {
		return nil, err
	}

	byTitle := make(map[string]*SeriesMatch)
	var matches []*SeriesMatch
	for _, item := range page.Items {
		key := strings.ToLower(item.Attributes.Title)
		if key == "" {
			continue
		}
		m, ok := byTitle[key]
		if !ok {
			m = &SeriesMatch{Title: item.Attributes.Title}
			byTitle[key] = m
			matches = append(matches, m)
		}
		m.Files++
		if m.Thumbnail == "" {
			m.Thumbnail = item.Thumbnail
		}
	}

	result := make([]SeriesMatch, len(matches))
	for i, m := range matches {
		result[i] = *m
	}
	sort.Slice(result, func(i, j int) bool {
		return strings.ToLower(result[i].Title) < strings.ToLower(result[j].Title)
	})
	return result, nil
}

// Seasons resolves a series name to its season list. The metadata
// provider answers when it knows the series; otherwise seasons are
// discovered from the episode numbering of uploads.
func (s *Service) Seasons(ctx context.Context, series string) (*metadata.SeriesInfo, error) {
	series = strings.TrimSpace(series)
	if series == "" {
		return nil, ErrEmptyQuery
	}

	if s.meta != nil && s.meta.BrowseEnabled() {
		info, err := s.meta.SeriesOverview(ctx, series, 0)
		if err == nil {
			return info, nil
		}
		if !errors.Is(err, metadata.ErrNotFound) {
			s.logger.Debug().Err(err).Str("series", series).Msg("Series metadata unavailable")
		}
	}
	return s.discoverSeasons(ctx, series)
}

// discoverSeasons reconstructs a season list from what was uploaded.
// A series with files but no parsed season numbers gets one season.
func (s *Service) discoverSeasons(ctx context.Context, series string) (*metadata.SeriesInfo, error) {
	page, err := s.fetch(ctx, Query{Text: series, Scope: mediafile.TypeSeries, Limit: 50})
	if err != nil {
		return nil, err
	}

	seen := make(map[int]bool)
	for _, item := range page.Items {
		if !strings.EqualFold(item.Attributes.Title, series) {
			continue
		}
		if item.Attributes.Season > 0 {
			seen[item.Attributes.Season] = true
		}
	}
	// Nothing matched the name strictly; take every season in sight.
	if len(seen) == 0 {
		for _, item := range page.Items {
			if item.Attributes.Season > 0 {
				seen[item.Attributes.Season] = true
			}
		}
	}

	numbers := make([]int, 0, len(seen))
	for n := range seen {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)
	if len(numbers) == 0 {
		numbers = []int{1}
	}

	info := &metadata.SeriesInfo{Title: series}
	for _, n := range numbers {
		info.Seasons = append(info.Seasons, metadata.SeasonInfo{
			Number: n,
			Name:   fmt.Sprintf("Série %d", n),
		})
	}
	return info, nil
}

// Episodes lists one season of a series. With a TMDb id the provider
// episode listing wins; otherwise episodes are reconstructed from the
// numbering of uploads.
func (s *Service) Episodes(ctx context.Context, series string, seriesID, season int) ([]metadata.Episode, error) {
	series = strings.TrimSpace(series)
	if series == "" {
		return nil, ErrEmptyQuery
	}
	if season < 1 {
		season = 1
	}

	if s.meta != nil && s.meta.BrowseEnabled() && seriesID > 0 {
		episodes, err := s.meta.SeasonEpisodes(ctx, seriesID, season)
		if err == nil && len(episodes) > 0 {
			return episodes, nil
		}
		if err != nil && !errors.Is(err, metadata.ErrNotFound) {
			s.logger.Debug().Err(err).Str("series", series).Int("season", season).Msg("Episode metadata unavailable")
		}
	}

	page, err := s.fetch(ctx, Query{
		Text:  fmt.Sprintf("%s S%02d", series, season),
		Scope: mediafile.TypeSeries,
		Limit: 50,
	})
	if err != nil {
		return nil, err
	}

	seen := make(map[int]bool)
	for _, item := range page.Items {
		if item.Attributes.Season == season && item.Attributes.Episode > 0 {
			seen[item.Attributes.Episode] = true
		}
	}
	numbers := make([]int, 0, len(seen))
	for n := range seen {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)

	episodes := make([]metadata.Episode, len(numbers))
	for i, n := range numbers {
		episodes[i] = metadata.Episode{
			Season: season,
			Number: n,
			Title:  fmt.Sprintf("Epizoda %d", n),
		}
	}
	return episodes, nil
}

// EpisodeStreams finds the uploads of one episode, collapsed and best
// first. Several query shapes are tried because the scene numbers
// episodes in more than one way.
func (s *Service) EpisodeStreams(ctx context.Context, series string, season, episode int) ([]Item, error) {
	series = strings.TrimSpace(series)
	if series == "" {
		return nil, ErrEmptyQuery
	}
	if season < 1 {
		season = 1
	}
	if episode < 1 {
		episode = 1
	}

	patterns := []string{
		fmt.Sprintf("%s S%02dE%02d", series, season, episode),
		fmt.Sprintf("%s %dx%02d", series, season, episode),
		fmt.Sprintf("%s S%02d", series, season),
	}

	seen := make(map[string]bool)
	var found []Item
	for _, pattern := range patterns {
		page, err := s.fetch(ctx, Query{Text: pattern, Scope: mediafile.TypeSeries, Limit: 50})
		if err != nil {
			return nil, err
		}
		for _, item := range page.Items {
			if seen[item.Ident] {
				continue
			}
			if item.Attributes.Season != season || item.Attributes.Episode != episode {
				continue
			}
			seen[item.Ident] = true
			found = append(found, item)
		}
		// Plenty of choices already, skip the broader patterns.
		if len(found) >= 20 {
			break
		}
	}

	if len(found) == 0 {
		return nil, ErrNoStreams
	}
	return s.collapse(found), nil
}

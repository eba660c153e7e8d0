package catalogue

import (
	"context"
	"strings"

	"github.com/tvstreamcz/tvstreamd/internal/mediafile"
	"github.com/tvstreamcz/tvstreamd/internal/metadata"
)

// Letters returns the rows of the alphabet browse menu, A-Z with a
// digits bucket last.
func Letters() []string {
	letters := make([]string, 0, 27)
	for c := 'A'; c <= 'Z'; c++ {
		letters = append(letters, string(c))
	}
	return append(letters, "0-9")
}

// BrowseLetter lists titles starting with one alphabet row. The text
// query stays empty so the whole catalogue is walked.
func (s *Service) BrowseLetter(ctx context.Context, letter string, q Query) (*Page, error) {
	letter = strings.ToUpper(strings.TrimSpace(letter))
	if !validLetter(letter) {
		return nil, ErrBadLetter
	}
	q.Letter = letter
	return s.fetch(ctx, q)
}

func validLetter(letter string) bool {
	if letter == "0-9" {
		return true
	}
	return len(letter) == 1 && letter[0] >= 'A' && letter[0] <= 'Z'
}

// BrowseGenre lists titles carrying a provider genre. Items without
// resolved metadata cannot prove their genre and are excluded.
func (s *Service) BrowseGenre(ctx context.Context, genre string, q Query) (*Page, error) {
	genre = strings.TrimSpace(genre)
	if genre == "" {
		return nil, ErrMissingGenre
	}
	q.Filters.Genre = genre
	return s.fetch(ctx, q)
}

// Genres lists the genre rows for the browse menu. When no provider
// is reachable a static list keeps the menu alive; its ids are the
// canonical TMDb ones so discover links stay valid.
func (s *Service) Genres(ctx context.Context, scope mediafile.MediaType) ([]metadata.Genre, error) {
	if scope == "" {
		scope = mediafile.TypeMovie
	}

	if s.meta != nil && s.meta.BrowseEnabled() {
		genres, err := s.meta.Genres(ctx, scope)
		if err == nil && len(genres) > 0 {
			return genres, nil
		}
		if err != nil {
			s.logger.Debug().Err(err).Str("scope", string(scope)).Msg("Provider genres unavailable, using static list")
		}
	}
	return fallbackGenres(scope), nil
}

// Discover returns one page of a TMDb category listing (popular, top
// rated, now playing, upcoming, airing today, on the air).
func (s *Service) Discover(ctx context.Context, scope mediafile.MediaType, category string, page int) ([]metadata.Record, error) {
	if s.meta == nil || !s.meta.BrowseEnabled() {
		return nil, metadata.ErrNoProvidersConfigured
	}
	if scope == "" {
		scope = mediafile.TypeMovie
	}
	if page < 1 {
		page = 1
	}
	return s.meta.Browse(ctx, scope, category, page)
}

// DiscoverByGenre returns one page of TMDb discover results for a
// genre id.
func (s *Service) DiscoverByGenre(ctx context.Context, scope mediafile.MediaType, genreID, page int) ([]metadata.Record, error) {
	if s.meta == nil || !s.meta.BrowseEnabled() {
		return nil, metadata.ErrNoProvidersConfigured
	}
	if scope == "" {
		scope = mediafile.TypeMovie
	}
	if page < 1 {
		page = 1
	}
	return s.meta.ByGenre(ctx, scope, genreID, page)
}

// ResolveGenre maps a genre name to its id, case-insensitively,
// against the same list Genres serves.
func (s *Service) ResolveGenre(ctx context.Context, scope mediafile.MediaType, name string) (int, error) {
	genres, err := s.Genres(ctx, scope)
	if err != nil {
		return 0, err
	}
	for _, g := range genres {
		if strings.EqualFold(g.Name, name) {
			return g.ID, nil
		}
	}
	return 0, ErrUnknownGenre
}

func fallbackGenres(scope mediafile.MediaType) []metadata.Genre {
	if scope == mediafile.TypeSeries {
		return []metadata.Genre{
			{ID: 10759, Name: "Action & Adventure"},
			{ID: 16, Name: "Animation"},
			{ID: 35, Name: "Comedy"},
			{ID: 80, Name: "Crime"},
			{ID: 99, Name: "Documentary"},
			{ID: 18, Name: "Drama"},
			{ID: 10751, Name: "Family"},
			{ID: 10762, Name: "Kids"},
			{ID: 9648, Name: "Mystery"},
			{ID: 10763, Name: "News"},
			{ID: 10764, Name: "Reality"},
			{ID: 10765, Name: "Sci-Fi & Fantasy"},
			{ID: 10766, Name: "Soap"},
			{ID: 10767, Name: "Talk"},
			{ID: 10768, Name: "War & Politics"},
			{ID: 37, Name: "Western"},
		}
	}
	return []metadata.Genre{
		{ID: 28, Name: "Action"},
		{ID: 12, Name: "Adventure"},
		{ID: 16, Name: "Animation"},
		{ID: 35, Name: "Comedy"},
		{ID: 80, Name: "Crime"},
		{ID: 99, Name: "Documentary"},
		{ID: 18, Name: "Drama"},
		{ID: 10751, Name: "Family"},
		{ID: 14, Name: "Fantasy"},
		{ID: 36, Name: "History"},
		{ID: 27, Name: "Horror"},
		{ID: 10402, Name: "Music"},
		{ID: 9648, Name: "Mystery"},
		{ID: 10749, Name: "Romance"},
		{ID: 878, Name: "Science Fiction"},
		{ID: 53, Name: "Thriller"},
		{ID: 10752, Name: "War"},
		{ID: 37, Name: "Western"},
	}
}

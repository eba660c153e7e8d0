package tmdb

// SearchMoviesResponse is the response from TMDB movie search.
type SearchMoviesResponse struct {
	Page         int           `json:"page"`
	Results      []MovieResult `json:"results"`
	TotalPages   int           `json:"total_pages"`
	TotalResults int           `json:"total_results"`
}

// MovieResult is a movie from TMDB search and list endpoints.
type MovieResult struct {
	ID            int     `json:"id"`
	Title         string  `json:"title"`
	OriginalTitle string  `json:"original_title"`
	Overview      string  `json:"overview"`
	ReleaseDate   string  `json:"release_date"`
	PosterPath    *string `json:"poster_path"`
	BackdropPath  *string `json:"backdrop_path"`
	VoteAverage   float64 `json:"vote_average"`
	VoteCount     int     `json:"vote_count"`
	Popularity    float64 `json:"popularity"`
	Adult         bool    `json:"adult"`
	GenreIDs      []int   `json:"genre_ids"`
}

// SearchSeriesResponse is the response from TMDB TV search.
type SearchSeriesResponse struct {
	Page         int        `json:"page"`
	Results      []TVResult `json:"results"`
	TotalPages   int        `json:"total_pages"`
	TotalResults int        `json:"total_results"`
}

// TVResult is a TV series from TMDB search and list endpoints.
type TVResult struct {
	ID            int      `json:"id"`
	Name          string   `json:"name"`
	OriginalName  string   `json:"original_name"`
	Overview      string   `json:"overview"`
	FirstAirDate  string   `json:"first_air_date"`
	PosterPath    *string  `json:"poster_path"`
	BackdropPath  *string  `json:"backdrop_path"`
	VoteAverage   float64  `json:"vote_average"`
	VoteCount     int      `json:"vote_count"`
	Popularity    float64  `json:"popularity"`
	GenreIDs      []int    `json:"genre_ids"`
	OriginCountry []string `json:"origin_country"`
}

// MovieDetails is the detailed movie info from TMDB.
type MovieDetails struct {
	ID            int          `json:"id"`
	Title         string       `json:"title"`
	OriginalTitle string       `json:"original_title"`
	Overview      string       `json:"overview"`
	ReleaseDate   string       `json:"release_date"`
	PosterPath    *string      `json:"poster_path"`
	BackdropPath  *string      `json:"backdrop_path"`
	VoteAverage   float64      `json:"vote_average"`
	VoteCount     int          `json:"vote_count"`
	Runtime       int          `json:"runtime"`
	ImdbID        string       `json:"imdb_id"`
	Genres        []Genre      `json:"genres"`
	ExternalIDs   *ExternalIDs `json:"external_ids,omitempty"`
}

// TVDetails is the detailed TV series info from TMDB.
type TVDetails struct {
	ID               int           `json:"id"`
	Name             string        `json:"name"`
	OriginalName     string        `json:"original_name"`
	Overview         string        `json:"overview"`
	FirstAirDate     string        `json:"first_air_date"`
	PosterPath       *string       `json:"poster_path"`
	BackdropPath     *string       `json:"backdrop_path"`
	VoteAverage      float64       `json:"vote_average"`
	VoteCount        int           `json:"vote_count"`
	EpisodeRunTime   []int         `json:"episode_run_time"`
	NumberOfSeasons  int           `json:"number_of_seasons"`
	NumberOfEpisodes int           `json:"number_of_episodes"`
	Genres           []Genre       `json:"genres"`
	Seasons          []SeasonEntry `json:"seasons"`
	ExternalIDs      *ExternalIDs  `json:"external_ids,omitempty"`
}

// SeasonEntry is a season summary from the TMDB TV details seasons list.
type SeasonEntry struct {
	ID           int     `json:"id"`
	Name         string  `json:"name"`
	AirDate      string  `json:"air_date"`
	EpisodeCount int     `json:"episode_count"`
	PosterPath   *string `json:"poster_path"`
	SeasonNumber int     `json:"season_number"`
}

// SeasonDetails is the season info from TMDB /tv/{id}/season/{number}.
type SeasonDetails struct {
	ID           int              `json:"id"`
	Name         string           `json:"name"`
	Overview     string           `json:"overview"`
	AirDate      string           `json:"air_date"`
	PosterPath   *string          `json:"poster_path"`
	SeasonNumber int              `json:"season_number"`
	Episodes     []EpisodeDetails `json:"episodes"`
}

// EpisodeDetails is the episode info from TMDB season details.
type EpisodeDetails struct {
	ID            int     `json:"id"`
	Name          string  `json:"name"`
	Overview      string  `json:"overview"`
	AirDate       string  `json:"air_date"`
	EpisodeNumber int     `json:"episode_number"`
	SeasonNumber  int     `json:"season_number"`
	StillPath     *string `json:"still_path"`
	Runtime       int     `json:"runtime"`
	VoteAverage   float64 `json:"vote_average"`
}

// GenreListResponse is the response from the TMDB genre list endpoints.
type GenreListResponse struct {
	Genres []Genre `json:"genres"`
}

// Genre represents a genre from TMDB.
type Genre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// ExternalIDs contains external IDs from TMDB.
type ExternalIDs struct {
	ImdbID     string `json:"imdb_id"`
	TvdbID     int    `json:"tvdb_id"`
	WikidataID string `json:"wikidata_id"`
}

// ErrorResponse is an error from the TMDB API.
type ErrorResponse struct {
	StatusCode    int    `json:"status_code"`
	StatusMessage string `json:"status_message"`
	Success       bool   `json:"success"`
}

// Title is the normalized search or list row returned by the client.
// Movie and TV results share this shape; Year is parsed from the
// release date or first air date.
type Title struct {
	ID            int     `json:"id"`
	Title         string  `json:"title"`
	OriginalTitle string  `json:"originalTitle,omitempty"`
	Year          int     `json:"year,omitempty"`
	Overview      string  `json:"overview,omitempty"`
	PosterURL     string  `json:"posterUrl,omitempty"`
	BackdropURL   string  `json:"backdropUrl,omitempty"`
	Rating        float64 `json:"rating,omitempty"`
	Votes         int     `json:"votes,omitempty"`
	GenreIDs      []int   `json:"genreIds,omitempty"`
}

// Details is the normalized detail record returned by the client.
// Seasons is populated for TV series only.
type Details struct {
	ID            int         `json:"id"`
	Title         string      `json:"title"`
	OriginalTitle string      `json:"originalTitle,omitempty"`
	Year          int         `json:"year,omitempty"`
	Overview      string      `json:"overview,omitempty"`
	Rating        float64     `json:"rating,omitempty"`
	Votes         int         `json:"votes,omitempty"`
	Runtime       int         `json:"runtime,omitempty"`
	ImdbID        string      `json:"imdbId,omitempty"`
	Genres        []string    `json:"genres,omitempty"`
	PosterURL     string      `json:"posterUrl,omitempty"`
	BackdropURL   string      `json:"backdropUrl,omitempty"`
	Seasons       []SeasonRef `json:"seasons,omitempty"`
}

// SeasonRef is a normalized season summary from TV series details.
type SeasonRef struct {
	Number       int    `json:"number"`
	Name         string `json:"name"`
	EpisodeCount int    `json:"episodeCount"`
	PosterURL    string `json:"posterUrl,omitempty"`
	AirDate      string `json:"airDate,omitempty"`
}

// Season is the normalized season with episodes.
type Season struct {
	Number    int       `json:"number"`
	Name      string    `json:"name"`
	Overview  string    `json:"overview,omitempty"`
	PosterURL string    `json:"posterUrl,omitempty"`
	AirDate   string    `json:"airDate,omitempty"`
	Episodes  []Episode `json:"episodes"`
}

// Episode is the normalized episode result.
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

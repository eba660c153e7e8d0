package csfd

import (
	"strconv"
	"strings"
)

// SearchHit is the first matching row from a ČSFD search results section.
type SearchHit struct {
	Title     string   `json:"title"`
	Href      string   `json:"href"`
	Year      int      `json:"year,omitempty"`
	PosterURL string   `json:"posterUrl,omitempty"`
	Genres    []string `json:"genres,omitempty"`
}

// Detail is the scraped ČSFD title page. Rating is on a 0-10 scale,
// converted from the site's percentage.
type Detail struct {
	URL         string   `json:"url"`
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	Plot        string   `json:"plot,omitempty"`
	Year        int      `json:"year,omitempty"`
	Rating      float64  `json:"rating,omitempty"`
	Votes       int      `json:"votes,omitempty"`
	PosterURL   string   `json:"posterUrl,omitempty"`
	Origin      string   `json:"origin,omitempty"`
	Genres      []string `json:"genres,omitempty"`
}

// jsonLD is the schema.org block embedded in ČSFD title pages.
type jsonLD struct {
	Name            string        `json:"name"`
	Description     string        `json:"description"`
	DateCreated     string        `json:"dateCreated"`
	DatePublished   string        `json:"datePublished"`
	Image           string        `json:"image"`
	AggregateRating *jsonLDRating `json:"aggregateRating"`
}

type jsonLDRating struct {
	RatingValue flexNumber `json:"ratingValue"`
	RatingCount flexNumber `json:"ratingCount"`
}

// flexNumber decodes JSON numbers that ČSFD sometimes serializes as strings.
// Unparseable values decode as zero rather than failing the whole block.
type flexNumber float64

func (n *flexNumber) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*n = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		*n = 0
		return nil
	}
	*n = flexNumber(v)
	return nil
}

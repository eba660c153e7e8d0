package csfd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"github.com/tvstreamcz/tvstreamd/internal/config"
)

var (
	ErrNotFound    = errors.New("title not found on ČSFD")
	ErrFetchFailed = errors.New("ČSFD request failed")
)

// Search result sections on the ČSFD search page.
const (
	KindFilms  = "films"
	KindSeries = "series"
)

var (
	yearParenRe = regexp.MustCompile(`\((\d{4})\)`)
	yearBareRe  = regexp.MustCompile(`\b(?:19|20)\d{2}\b`)
	percentRe   = regexp.MustCompile(`(\d+)\s*%`)
	spaceRe     = regexp.MustCompile(`\s+`)
)

// Client scrapes title metadata from csfd.cz. The site has no public API,
// so everything comes from the search page and the JSON-LD block plus a few
// stable DOM classes on title pages.
type Client struct {
	httpClient *http.Client
	config     config.CSFDConfig
	logger     zerolog.Logger
}

// NewClient creates a new ČSFD scrape client.
func NewClient(cfg config.CSFDConfig, logger zerolog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
		config: cfg,
		logger: logger.With().Str("component", "csfd").Logger(),
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return "csfd"
}

// IsConfigured returns true; scraping needs no credentials.
func (c *Client) IsConfigured() bool {
	return true
}

// Search returns the first hit from the films or series section of the
// ČSFD search page. Kind is KindFilms or KindSeries.
func (c *Client) Search(ctx context.Context, query, kind string) (*SearchHit, error) {
	searchURL := fmt.Sprintf("%s/hledat/?q=%s", c.config.BaseURL, url.QueryEscape(query))

	doc, err := c.fetch(ctx, searchURL)
	if err != nil {
		return nil, err
	}

	section := doc.Find(fmt.Sprintf(`section.main-box[data-search-results=%q]`, kind)).First()
	article := section.Find("article").First()
	if article.Length() == 0 {
		return nil, ErrNotFound
	}

	titleLink := article.Find("a.film-title-name").First()
	title := strings.TrimSpace(titleLink.Text())
	href, _ := titleLink.Attr("href")
	if href == "" {
		href, _ = article.Find(`a[href^="/film/"], a[href^="/serial/"]`).First().Attr("href")
	}
	if title == "" || href == "" {
		return nil, ErrNotFound
	}

	hit := &SearchHit{
		Title: title,
		Href:  href,
	}

	article.Find("span.info").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if m := yearParenRe.FindStringSubmatch(sel.Text()); m != nil {
			hit.Year, _ = strconv.Atoi(m[1])
			return false
		}
		return true
	})

	if genres := article.Find("p.film-origins-genres span.info").First().Text(); genres != "" {
		hit.Genres = splitGenres(genres)
	}

	if poster, ok := article.Find("img").First().Attr("src"); ok {
		hit.PosterURL = absoluteURL(poster)
	}

	c.logger.Debug().
		Str("query", query).
		Str("kind", kind).
		Str("title", hit.Title).
		Str("href", hit.Href).
		Msg("ČSFD search hit")

	return hit, nil
}

// GetDetail scrapes a ČSFD title page. Href is the site-relative path from
// a SearchHit. The JSON-LD block is preferred; DOM classes fill the gaps.
func (c *Client) GetDetail(ctx context.Context, href string) (*Detail, error) {
	pageURL := c.config.BaseURL + href

	doc, err := c.fetch(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	detail := &Detail{URL: pageURL}

	if raw := doc.Find(`script[type="application/ld+json"]`).First().Text(); raw != "" {
		var ld jsonLD
		if err := json.Unmarshal([]byte(raw), &ld); err != nil {
			c.logger.Warn().Err(err).Str("url", pageURL).Msg("ČSFD JSON-LD parse failed")
		} else {
			detail.Title = ld.Name
			detail.Description = ld.Description
			detail.Year = yearFromDate(firstNonEmpty(ld.DateCreated, ld.DatePublished))
			detail.PosterURL = absoluteURL(ld.Image)
			if ld.AggregateRating != nil {
				detail.Rating = float64(ld.AggregateRating.RatingValue) / 10.0
				detail.Votes = int(ld.AggregateRating.RatingCount)
			}
		}
	}

	if detail.Rating == 0 {
		if m := percentRe.FindStringSubmatch(doc.Find("div.film-rating-average").First().Text()); m != nil {
			percent, _ := strconv.Atoi(m[1])
			detail.Rating = float64(percent) / 10.0
		}
	}

	if origin := normalizeSpace(doc.Find("div.origin").First().Text()); origin != "" {
		detail.Origin = origin
		if detail.Year == 0 {
			if m := yearBareRe.FindString(origin); m != "" {
				detail.Year, _ = strconv.Atoi(m)
			}
		}
	}

	if plot := normalizeSpace(doc.Find("div.plot-preview").First().Text()); plot != "" {
		detail.Plot = plot
	}

	if genres := doc.Find("div.genres").First().Text(); genres != "" {
		detail.Genres = splitGenres(genres)
	}

	c.logger.Debug().
		Str("url", pageURL).
		Str("title", detail.Title).
		Int("year", detail.Year).
		Msg("ČSFD detail scraped")

	return detail, nil
}

// fetch downloads a page and parses it. ČSFD blocks default Go user agents,
// so requests carry a browser identity from config.
func (c *Client) fetch(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "cs,en-US;q=0.7,en;q=0.3")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).Str("url", pageURL).Msg("ČSFD request failed")
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d", ErrFetchFailed, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	return doc, nil
}

func splitGenres(raw string) []string {
	parts := strings.Split(normalizeSpace(raw), "/")
	genres := make([]string, 0, len(parts))
	for _, part := range parts {
		if g := strings.TrimSpace(part); g != "" {
			genres = append(genres, g)
		}
	}
	return genres
}

func normalizeSpace(s string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}

// absoluteURL fixes the protocol-relative image URLs ČSFD serves.
func absoluteURL(u string) string {
	if strings.HasPrefix(u, "//") {
		return "https:" + u
	}
	return u
}

// yearFromDate parses the year from an ISO date or bare year string.
func yearFromDate(date string) int {
	if len(date) < 4 {
		return 0
	}
	year, err := strconv.Atoi(date[:4])
	if err != nil {
		return 0
	}
	return year
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

package catalogue

import (
	"context"
	"errors"
	"strings"
	"unicode"

	"github.com/tvstreamcz/tvstreamd/internal/mediafile"
	"github.com/tvstreamcz/tvstreamd/internal/metadata"
	"github.com/tvstreamcz/tvstreamd/internal/webshare"
)

// fetchLimit is the raw page size requested from the service, its
// documented maximum.
const fetchLimit = 100

// Search runs a text search through the full pipeline, records it in
// the search history and announces it on the event hub.
func (s *Service) Search(ctx context.Context, q Query) (*Page, error) {
	q.Text = strings.TrimSpace(q.Text)
	if q.Text == "" {
		return nil, ErrEmptyQuery
	}

	page, err := s.fetch(ctx, q)
	if err != nil {
		return nil, err
	}

	if s.history != nil {
		if err := s.history.AddSearch(ctx, q.Text, string(q.Scope)); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to record search history")
		}
	}
	s.publish("search.performed", map[string]interface{}{
		"query":   q.Text,
		"scope":   string(q.Scope),
		"results": len(page.Items),
	})
	return page, nil
}

// Browse lists the catalogue without a text query, e.g. the newest
// uploads of a media type. Same scoping and filters as Search.
func (s *Service) Browse(ctx context.Context, q Query) (*Page, error) {
	q.Text = strings.TrimSpace(q.Text)
	return s.fetch(ctx, q)
}

// fetch is the shared pipeline behind every listing. It pulls raw
// pages until enough filtered items exist to fill the requested slice,
// the results run out, or the page budget is spent. One extra item
// beyond the slice decides HasMore.
func (s *Service) fetch(ctx context.Context, q Query) (*Page, error) {
	if _, err := s.sessions.Acquire(ctx); err != nil {
		return nil, err
	}
	client := s.sessions.Client()

	limit := q.Limit
	if limit <= 0 {
		limit = s.cfg.PageSize
	}
	needed := q.Offset + limit + 1

	var (
		matched   []Item
		rawOffset int
		total     int
		exhausted bool
	)
	for page := 0; page < s.cfg.MaxFetchPages; page++ {
		res, err := client.Search(ctx, webshare.SearchRequest{
			What:   q.Text,
			Sort:   s.sortKey(q.Sort),
			Limit:  fetchLimit,
			Offset: rawOffset,
		})
		if err != nil {
			return nil, err
		}
		total = res.Total
		if len(res.Files) == 0 {
			exhausted = true
			break
		}
		rawOffset += len(res.Files)

		for _, f := range res.Files {
			item, ok := s.sift(f, q)
			if !ok {
				continue
			}
			s.enrichItem(ctx, &item)
			if !matchesGenre(item.Metadata, q.Filters.Genre) {
				continue
			}
			item.Label = listingLabel(item)
			matched = append(matched, item)
		}

		if len(matched) >= needed {
			break
		}
		if rawOffset >= total {
			exhausted = true
			break
		}
	}

	start := q.Offset
	if start > len(matched) {
		start = len(matched)
	}
	end := start + limit
	if end > len(matched) {
		end = len(matched)
	}
	items := matched[start:end]

	s.logger.Debug().
		Str("query", q.Text).
		Str("scope", string(q.Scope)).
		Int("fetched", rawOffset).
		Int("matched", len(matched)).
		Int("returned", len(items)).
		Msg("Catalogue fetch")

	return &Page{
		Items:      items,
		Offset:     start,
		NextOffset: start + len(items),
		Total:      total,
		HasMore:    len(matched) > end || !exhausted,
	}, nil
}

// sift parses a raw file and applies every predicate that does not
// need metadata. Returns false when the file should not appear in
// this listing.
func (s *Service) sift(f webshare.File, q Query) (Item, bool) {
	attrs := mediafile.Parse(f.Name)

	// Trailers, samples and subtitle files never belong in a listing.
	if attrs.Type == mediafile.TypeOther {
		return Item{}, false
	}
	if q.Scope != "" && attrs.Type != q.Scope {
		return Item{}, false
	}

	// Implausibly small files are samples or broken uploads.
	switch q.Scope {
	case mediafile.TypeMovie:
		if f.Size > 0 && f.Size < s.sizes.MinMovieSizeMB<<20 {
			return Item{}, false
		}
		if len([]rune(strings.TrimSpace(attrs.Title))) < 3 {
			return Item{}, false
		}
	case mediafile.TypeSeries:
		if f.Size > 0 && f.Size < s.sizes.MinSeriesSizeMB<<20 {
			return Item{}, false
		}
	}

	if q.Letter != "" && !matchesLetter(attrs.SortTitle, q.Letter) {
		return Item{}, false
	}
	if !attrs.Quality.AtLeast(q.Filters.MinQuality) {
		return Item{}, false
	}
	if len(q.Filters.Audio) > 0 && !hasAnyAudio(attrs, q.Filters.Audio) {
		return Item{}, false
	}
	if q.Filters.SubtitlesRequired && !attrs.HasSubtitles() {
		return Item{}, false
	}

	return newItem(f, attrs), true
}

// enrichItem attaches provider metadata when a provider is configured.
// Lookup failures leave the item bare, they never fail the listing.
func (s *Service) enrichItem(ctx context.Context, item *Item) {
	if s.meta == nil || !s.meta.Enabled() {
		return
	}
	if item.Attributes.Title == "" {
		return
	}

	rec, err := s.meta.Enrich(ctx, metadata.Query{
		Title: item.Attributes.Title,
		Year:  item.Attributes.Year,
		Type:  item.Attributes.Type,
	})
	if err != nil {
		if !errors.Is(err, metadata.ErrNotFound) {
			s.logger.Debug().Err(err).Str("title", item.Attributes.Title).Msg("Enrichment failed")
		}
		return
	}
	item.Metadata = rec
}

func (s *Service) sortKey(sort string) string {
	if sort == "" {
		sort = s.cfg.Sort
	}
	switch sort {
	case "", "relevance":
		return ""
	case "recent", "rating", "largest", "smallest":
		return sort
	default:
		s.logger.Debug().Str("sort", sort).Msg("Unknown sort, using relevance")
		return ""
	}
}

func newItem(f webshare.File, attrs mediafile.Attributes) Item {
	return Item{
		Ident:         f.Ident,
		Name:          f.Name,
		Size:          f.Size,
		PositiveVotes: f.PositiveVotes,
		NegativeVotes: f.NegativeVotes,
		Protected:     f.Protected,
		Queued:        f.Queued,
		Thumbnail:     f.Img,
		Attributes:    attrs,
	}
}

// listingLabel builds the display label: the metadata title when one
// resolved, the cleaned filename otherwise, followed by the parsed
// attribute suffix and the file size.
func listingLabel(item Item) string {
	title := item.Attributes.Title
	if item.Metadata != nil && item.Metadata.Title != "" {
		title = item.Metadata.Title
	}

	label := title
	if suffix := item.Attributes.DisplayLabel(); suffix != "" {
		label += " [" + suffix + "]"
	}
	if size := mediafile.FormatSize(item.Size); size != "" {
		label += " (" + size + ")"
	}
	return label
}

// matchesLetter checks a sort title against an alphabet row. "0-9"
// groups every title starting with a digit.
func matchesLetter(sortTitle, letter string) bool {
	if sortTitle == "" {
		return false
	}
	if letter == "0-9" {
		return unicode.IsDigit([]rune(sortTitle)[0])
	}
	return strings.HasPrefix(sortTitle, strings.ToLower(letter))
}

// matchesGenre requires provider genres for genre-scoped listings:
// an item without metadata cannot prove its genre and is excluded.
func matchesGenre(rec *metadata.Record, genre string) bool {
	if genre == "" {
		return true
	}
	if rec == nil {
		return false
	}
	for _, g := range rec.Genres {
		if strings.EqualFold(g, genre) {
			return true
		}
	}
	return false
}

func hasAnyAudio(attrs mediafile.Attributes, langs []string) bool {
	for _, l := range langs {
		if attrs.HasAudio(l) {
			return true
		}
	}
	return false
}

package catalogue

import (
	"context"
	"sort"
	"strings"

	"github.com/tvstreamcz/tvstreamd/internal/mediafile"
)

// Streams returns the playable variants for a text query, collapsed
// and ordered best first.
func (s *Service) Streams(ctx context.Context, q Query) ([]Item, error) {
	q.Text = strings.TrimSpace(q.Text)
	if q.Text == "" {
		return nil, ErrEmptyQuery
	}
	if q.Limit <= 0 {
		q.Limit = 50
	}

	page, err := s.fetch(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(page.Items) == 0 {
		return nil, ErrNoStreams
	}
	return s.collapse(page.Items), nil
}

// AutoPick resolves a query straight to its best stream.
func (s *Service) AutoPick(ctx context.Context, q Query) (*Item, error) {
	streams, err := s.Streams(ctx, q)
	if err != nil {
		return nil, err
	}
	return &streams[0], nil
}

// Resolve translates a file ident into a direct streaming URL.
// Protected files need their password.
func (s *Service) Resolve(ctx context.Context, ident, password string) (string, error) {
	if ident == "" {
		return "", ErrMissingIdent
	}
	if _, err := s.sessions.Acquire(ctx); err != nil {
		return "", err
	}

	link, err := s.sessions.Client().FileLink(ctx, ident, password)
	if err != nil {
		return "", err
	}

	s.logger.Info().Str("ident", ident).Msg("Stream link resolved")
	s.publish("stream.resolved", map[string]interface{}{"ident": ident})
	return link, nil
}

// FileDetail fetches one file and runs it through parsing and
// enrichment, bypassing listing filters.
func (s *Service) FileDetail(ctx context.Context, ident string) (*Item, error) {
	if ident == "" {
		return nil, ErrMissingIdent
	}
	if _, err := s.sessions.Acquire(ctx); err != nil {
		return nil, err
	}

	f, err := s.sessions.Client().FileInfo(ctx, ident)
	if err != nil {
		return nil, err
	}

	item := newItem(*f, mediafile.Parse(f.Name))
	s.enrichItem(ctx, &item)
	item.Label = listingLabel(item)
	return &item, nil
}

// collapse orders items best first and drops duplicate rips. Two
// uploads with the same quality tier, the same audio languages and a
// size within five percent are the same rip under another name; the
// better ranked copy wins.
func (s *Service) collapse(items []Item) []Item {
	pref := s.preferredAudio()

	sorted := make([]Item, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		return moreDesirable(sorted[i], sorted[j], pref)
	})

	var kept []Item
	for _, it := range sorted {
		dup := false
		for _, k := range kept {
			if sameRip(it, k) {
				dup = true
				break
			}
		}
		if !dup {
			kept = append(kept, it)
		}
	}
	return kept
}

// preferredAudio is the language preference used for ranking, the
// configured audio filter order or Czech and Slovak by default.
func (s *Service) preferredAudio() []string {
	if len(s.sizes.Audio) > 0 {
		return s.sizes.Audio
	}
	return []string{"cz", "sk"}
}

// moreDesirable ranks a above b: quality tier, then preferred audio,
// then vote balance, then size.
func moreDesirable(a, b Item, pref []string) bool {
	if qa, qb := a.Attributes.Quality.Rank(), b.Attributes.Quality.Rank(); qa != qb {
		return qa > qb
	}
	if pa, pb := audioRank(a.Attributes, pref), audioRank(b.Attributes, pref); pa != pb {
		return pa < pb
	}
	if va, vb := a.PositiveVotes-a.NegativeVotes, b.PositiveVotes-b.NegativeVotes; va != vb {
		return va > vb
	}
	return a.Size > b.Size
}

// audioRank is the index of the best preferred language the file
// carries, len(pref) when none match.
func audioRank(attrs mediafile.Attributes, pref []string) int {
	for i, lang := range pref {
		if attrs.HasAudio(lang) {
			return i
		}
	}
	return len(pref)
}

func sameRip(a, b Item) bool {
	if a.Attributes.Quality != b.Attributes.Quality {
		return false
	}
	if !sameAudio(a.Attributes.Audio, b.Attributes.Audio) {
		return false
	}
	larger := a.Size
	if b.Size > larger {
		larger = b.Size
	}
	if larger == 0 {
		return a.Name == b.Name
	}
	diff := a.Size - b.Size
	if diff < 0 {
		diff = -diff
	}
	return diff*20 <= larger
}

func sameAudio(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

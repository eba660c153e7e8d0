package metadata

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/tvstreamcz/tvstreamd/internal/mediafile"
	"github.com/tvstreamcz/tvstreamd/internal/metadata/tmdb"
)

// foldTransformer strips combining marks so diacritics compare equal
// to their base letters.
var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// normalizeTitle lowercases, folds diacritics and drops everything
// outside [a-z0-9], so "Vratné lahve" and "vratne.lahve" compare equal.
func normalizeTitle(value string) string {
	folded, _, err := transform.String(foldTransformer, value)
	if err != nil {
		folded = value
	}
	var b strings.Builder
	for _, r := range strings.ToLower(folded) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// scoreCandidate ranks a search candidate against the query. Exact
// title matches score far above substring matches; a close year adds
// confidence while a distant one subtracts it. Series queries that
// carry a season number get a small uniform boost.
func scoreCandidate(q Query, title string, year int) int {
	score := 0

	queryTitle := normalizeTitle(q.Title)
	candidateTitle := normalizeTitle(title)
	if queryTitle == candidateTitle {
		score += 80
	} else if strings.Contains(candidateTitle, queryTitle) || strings.Contains(queryTitle, candidateTitle) {
		score += 50
	}

	if q.Year > 0 && year > 0 {
		if diff := q.Year - year; diff >= -1 && diff <= 1 {
			score += 30
		} else {
			score -= 20
		}
	}

	if q.Type == mediafile.TypeSeries && q.Season > 0 {
		score += 10
	}

	return score
}

// bestCandidate picks the highest scoring candidate; ties keep the
// provider's own ordering.
func bestCandidate(q Query, candidates []tmdb.Title) tmdb.Title {
	best := candidates[0]
	bestScore := scoreCandidate(q, best.Title, best.Year)
	for _, c := range candidates[1:] {
		if score := scoreCandidate(q, c.Title, c.Year); score > bestScore {
			best = c
			bestScore = score
		}
	}
	return best
}

package mediafile

import (
	"regexp"
	"strconv"
	"strings"
)

// Quality is the tier derived from resolution and source tokens.
type Quality string

const (
	QualityUnknown Quality = ""
	QualityCAM     Quality = "cam"
	QualitySD      Quality = "sd"
	QualityHD      Quality = "hd"
	QualityUHD     Quality = "uhd"
)

// Rank orders tiers for comparisons; higher is better.
func (q Quality) Rank() int {
	switch q {
	case QualityUHD:
		return 4
	case QualityHD:
		return 3
	case QualitySD:
		return 2
	case QualityCAM:
		return 1
	default:
		return 0
	}
}

// AtLeast reports whether q satisfies a minimum tier. An unknown minimum
// accepts everything.
func (q Quality) AtLeast(min Quality) bool {
	if min == QualityUnknown {
		return true
	}
	return q.Rank() >= min.Rank()
}

// MediaType classifies what a filename most likely holds.
type MediaType string

const (
	TypeMovie  MediaType = "movie"
	TypeSeries MediaType = "tvshow"
	TypeOther  MediaType = "other"
)

// Attributes is the result of parsing one filename. It is a pure function
// of the name: the same input always produces the same value.
type Attributes struct {
	Title      string    `json:"title"`     // cleaned display title
	SortTitle  string    `json:"sortTitle"` // lowercased, leading article stripped
	Type       MediaType `json:"type"`
	Year       int       `json:"year,omitempty"`
	Season     int       `json:"season,omitempty"`  // 0 when absent
	Episode    int       `json:"episode,omitempty"` // 0 when absent
	Quality    Quality   `json:"quality"`
	Resolution int       `json:"resolution,omitempty"` // 2160, 1080, 720, 576, 480
	Audio      []string  `json:"audio,omitempty"`      // language codes: cz, sk, en
	Subtitles  []string  `json:"subtitles,omitempty"`  // language codes: cz, sk, en
}

// HasSubtitles reports whether any subtitle token was found.
func (a Attributes) HasSubtitles() bool {
	return len(a.Subtitles) > 0
}

// HasAudio reports whether the given language code was detected.
func (a Attributes) HasAudio(lang string) bool {
	lang = strings.ToLower(lang)
	for _, l := range a.Audio {
		if l == lang {
			return true
		}
	}
	return false
}

// tokenPattern pairs a language code with its token pattern.
type tokenPattern struct {
	code    string
	pattern *regexp.Regexp
}

var (
	separatorPattern = regexp.MustCompile(`[\s._\-\[\](){}]+`)
	yearPattern      = regexp.MustCompile(`\b(19|20)\d{2}\b`)

	// Episode numbering: Show.S01E02 and Show.3x07
	seasonEpisodePattern    = regexp.MustCompile(`(?i)s(\d{1,2})[\s._-]*e(\d{1,2})`)
	altSeasonEpisodePattern = regexp.MustCompile(`\b(\d{1,2})x(\d{2})\b`)

	// Quality tiers, best first; the first matching tier wins so a name
	// carrying both 720p and 2160p tokens lands on uhd.
	qualityPatterns = []struct {
		tier    Quality
		pattern *regexp.Regexp
	}{
		{QualityUHD, regexp.MustCompile(`(?i)\b(2160p|4k|uhd|dolby\s*vision|hdr)\b`)},
		{QualityHD, regexp.MustCompile(`(?i)\b(1080p|720p|hd|fullhd|fhd|webrip|web\s?dl|bluray|bdrip|brrip)\b`)},
		{QualitySD, regexp.MustCompile(`(?i)\b(576p|480p|360p|dvdrip|dvd|tvrip|xvid|hdtv)\b`)},
		{QualityCAM, regexp.MustCompile(`(?i)\b(cam|hdcam|telesync|ts|workprint)\b`)},
	}

	// Explicit resolutions, best first.
	resolutionPatterns = []struct {
		height  int
		pattern *regexp.Regexp
	}{
		{2160, regexp.MustCompile(`(?i)\b(2160p|4k|uhd)\b`)},
		{1080, regexp.MustCompile(`(?i)\b(1080p|fullhd|fhd)\b`)},
		{720, regexp.MustCompile(`(?i)\b720p\b`)},
		{576, regexp.MustCompile(`(?i)\b576p\b`)},
		{480, regexp.MustCompile(`(?i)\b480p\b`)},
	}

	// Audio language tokens as the Czech scene writes them.
	languagePatterns = []tokenPattern{
		{"cz", regexp.MustCompile(`(?i)\b(cz|ces|cze|czech|czdab|czdub|czaudio|czsound|cz\s*dabing|cz\s*dub)\b`)},
		{"sk", regexp.MustCompile(`(?i)\b(sk|slk|slovak|skdab|skdub|sk\s*dabing|sk\s*dub)\b`)},
		{"en", regexp.MustCompile(`(?i)\b(en|eng|english|en\s*audio)\b`)},
	}

	// Subtitle tokens are matched as substrings: the scene glues them to
	// language codes ("CZtit", "engsub").
	subtitlePatterns = []tokenPattern{
		{"cz", regexp.MustCompile(`(?i)(cz\s*tit|tit\s*cz|cz\s*subs|czsub|cztitl|cztitulky)`)},
		{"sk", regexp.MustCompile(`(?i)(sk\s*tit|tit\s*sk|sk\s*subs|sktit|sktitulky)`)},
		{"en", regexp.MustCompile(`(?i)(en\s*tit|tit\s*en|en\s*subs|engsub|eng\s*subs|english\s*subs)`)},
	}

	// Release noise stripped from titles. Applied after separators become
	// spaces, so multi-part tokens appear in their spaced form.
	removeTokensPattern = regexp.MustCompile(`(?i)\b(720p|1080p|2160p|576p|480p|360p|4k|uhd|hdr|fullhd|fhd|webrip|web\s?dl|bluray|bdrip|brrip|x264|x265|h264|h265|hevc|dvdrip|dvdr|dvd|hdtv|tvrip|xvid|aac|dts|truehd|atmos|remux|multi|cz|sk|eng|en|dabing|dub|dd5\s?1|dd\d|exclusive|proper|repack|nf|nfwebrip|ws|hmax|amzn|pal|ntsc|cam|hdcam|telesync|workprint)\b`)
	partOfPattern       = regexp.MustCompile(`(?i)\b\d{1,2}of\d{1,2}\b`)

	// Series markers beyond plain episode numbering, Czech forms included.
	seriesMarkerPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)s\d{1,2}e\d{1,2}`),
		regexp.MustCompile(`\d+x\d+`),
		regexp.MustCompile(`(?i)sér[ií]e?\s*\d+`),
		regexp.MustCompile(`(?i)serie\s*\d+`),
		regexp.MustCompile(`(?i)season\s*\d+`),
		regexp.MustCompile(`(?i)ep\.?\s*\d+`),
		regexp.MustCompile(`(?i)episode\s*\d+`),
		regexp.MustCompile(`(?i)\bs\d{1,2}\b`),
		regexp.MustCompile(`(?i)\be\d{1,2}\b`),
		regexp.MustCompile(`(?i)díl\s*\d+`),
		regexp.MustCompile(`(?i)část\s*\d+`),
	}

	extraContentPattern = regexp.MustCompile(`(?i)(trailer|teaser|sample|preview|promo|making[\s_-]?of|behind[\s_-]?the[\s_-]?scenes|extras?\b|bonus|featurette|deleted[\s_-]?scene|outtake|interview|soundtrack|\bost\b|music[\s_-]?video|documentary|\bdoc\b|commercial)`)
	shortClipPattern    = regexp.MustCompile(`(?i)\b(clip|short|segment|excerpt|fragment|demo|test|rip)\b`)
	nonContentPattern   = regexp.MustCompile(`(?i)\b(readme|nfo|txt|sub|srt|idx|info|cover|artwork|poster)\b`)
	multiPartPattern    = regexp.MustCompile(`(?i)(part\d+|cd\d+|disc\d+|\bpt\d+)`)
	moviePartPattern    = regexp.MustCompile(`(?i)(movie|film)`)

	articles = []string{"the ", "a ", "an ", "der ", "die ", "das ", "le ", "la ", "los ", "las ", "el "}
)

// Parse derives Attributes from a raw filename. It never fails; fields
// whose tokens are absent stay at their zero values.
func Parse(filename string) Attributes {
	name := TrimExtension(strings.TrimSpace(filename))
	normalized := normalize(name)

	attrs := Attributes{
		Type: classify(filename, normalized),
	}

	attrs.Season, attrs.Episode = detectSeasonEpisode(normalized)
	attrs.Year = detectYear(normalized)
	attrs.Quality = detectQuality(normalized)
	attrs.Resolution = detectResolution(normalized)
	attrs.Audio = detectLanguages(normalized, languagePatterns)
	attrs.Subtitles = detectLanguages(normalized, subtitlePatterns)
	attrs.Title = CleanTitle(name)
	attrs.SortTitle = SortTitle(attrs.Title)

	return attrs
}

// normalize replaces separator runs with single spaces so word-boundary
// patterns see tokens.
func normalize(name string) string {
	return strings.TrimSpace(separatorPattern.ReplaceAllString(name, " "))
}

func detectSeasonEpisode(name string) (season, episode int) {
	if m := seasonEpisodePattern.FindStringSubmatch(name); m != nil {
		season, _ = strconv.Atoi(m[1])
		episode, _ = strconv.Atoi(m[2])
		return season, episode
	}
	if m := altSeasonEpisodePattern.FindStringSubmatch(name); m != nil {
		season, _ = strconv.Atoi(m[1])
		episode, _ = strconv.Atoi(m[2])
		return season, episode
	}
	return 0, 0
}

func detectYear(name string) int {
	if m := yearPattern.FindString(name); m != "" {
		year, _ := strconv.Atoi(m)
		return year
	}
	return 0
}

func detectQuality(name string) Quality {
	for _, qp := range qualityPatterns {
		if qp.pattern.MatchString(name) {
			return qp.tier
		}
	}
	return QualityUnknown
}

func detectResolution(name string) int {
	for _, rp := range resolutionPatterns {
		if rp.pattern.MatchString(name) {
			return rp.height
		}
	}
	return 0
}

func detectLanguages(name string, patterns []tokenPattern) []string {
	var found []string
	for _, lp := range patterns {
		if lp.pattern.MatchString(name) {
			found = append(found, lp.code)
		}
	}
	return found
}

// CleanTitle strips release noise, episode numbering and years from a
// name, leaving a human title. Falls back to the input when everything
// was stripped.
func CleanTitle(name string) string {
	work := normalize(TrimExtension(name))
	work = removeTokensPattern.ReplaceAllString(work, " ")
	for _, sp := range subtitlePatterns {
		work = sp.pattern.ReplaceAllString(work, " ")
	}
	work = seasonEpisodePattern.ReplaceAllString(work, " ")
	work = altSeasonEpisodePattern.ReplaceAllString(work, " ")
	work = yearPattern.ReplaceAllString(work, " ")
	work = partOfPattern.ReplaceAllString(work, " ")
	work = strings.Join(strings.Fields(work), " ")
	if work == "" {
		return name
	}
	return work
}

// SortTitle lowercases a title and strips one leading article.
func SortTitle(title string) string {
	lower := strings.ToLower(title)
	for _, article := range articles {
		if strings.HasPrefix(lower, article) {
			if rest := strings.TrimSpace(lower[len(article):]); rest != "" {
				return rest
			}
			return lower
		}
	}
	return lower
}

// classify decides movie/series/other. Episode numbering wins over the
// junk heuristics so a series sample still lands in its series.
func classify(filename, normalized string) MediaType {
	if IsSubtitleFile(filename) {
		return TypeOther
	}

	if season, episode := detectSeasonEpisode(normalized); season > 0 || episode > 0 {
		return TypeSeries
	}
	for _, p := range seriesMarkerPatterns {
		if p.MatchString(normalized) {
			return TypeSeries
		}
	}

	if extraContentPattern.MatchString(normalized) {
		return TypeOther
	}
	if shortClipPattern.MatchString(normalized) {
		return TypeOther
	}
	if nonContentPattern.MatchString(normalized) {
		return TypeOther
	}
	if multiPartPattern.MatchString(normalized) && !moviePartPattern.MatchString(normalized) {
		return TypeOther
	}

	return TypeMovie
}

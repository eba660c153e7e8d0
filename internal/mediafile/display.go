package mediafile

import (
	"fmt"
	"strings"
)

// DisplayLabel renders the parsed attributes as a short suffix for
// listings, e.g. "S01E03 | HD | CZ/EN | tit CZ". Empty when nothing
// was detected.
func (a Attributes) DisplayLabel() string {
	var parts []string
	if a.Season > 0 && a.Episode > 0 {
		parts = append(parts, fmt.Sprintf("S%02dE%02d", a.Season, a.Episode))
	}
	if a.Quality != QualityUnknown {
		parts = append(parts, strings.ToUpper(string(a.Quality)))
	}
	if len(a.Audio) > 0 {
		parts = append(parts, strings.ToUpper(strings.Join(a.Audio, "/")))
	}
	if len(a.Subtitles) > 0 {
		parts = append(parts, "tit "+strings.ToUpper(strings.Join(a.Subtitles, "/")))
	}
	return strings.Join(parts, " | ")
}

// FormatSize renders a byte count the way listings show it: "1.4 GB",
// "700 MB", "12 KB". Zero and negative sizes render empty.
func FormatSize(n int64) string {
	switch {
	case n <= 0:
		return ""
	case n >= 1<<30:
		return fmt.Sprintf("%.1f GB", float64(n)/float64(1<<30))
	case n >= 1<<20:
		return fmt.Sprintf("%.0f MB", float64(n)/float64(1<<20))
	default:
		return fmt.Sprintf("%.0f KB", float64(n)/float64(1<<10))
	}
}

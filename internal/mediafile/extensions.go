package mediafile

import (
	"path/filepath"
	"strings"
)

// VideoExtensions contains video container extensions seen on the service.
var VideoExtensions = map[string]bool{
	".mkv":  true,
	".mp4":  true,
	".avi":  true,
	".m4v":  true,
	".ts":   true,
	".wmv":  true,
	".mov":  true,
	".webm": true,
	".flv":  true,
	".mpg":  true,
	".mpeg": true,
	".m2ts": true,
	".vob":  true,
	".iso":  true,
}

// SubtitleExtensions contains standalone subtitle file extensions.
var SubtitleExtensions = map[string]bool{
	".srt": true,
	".sub": true,
	".idx": true,
	".ssa": true,
	".ass": true,
	".vtt": true,
}

// IsVideoFile checks if a filename has a video extension.
func IsVideoFile(filename string) bool {
	return VideoExtensions[strings.ToLower(filepath.Ext(filename))]
}

// IsSubtitleFile checks if a filename has a subtitle extension.
func IsSubtitleFile(filename string) bool {
	return SubtitleExtensions[strings.ToLower(filepath.Ext(filename))]
}

// TrimExtension strips a recognized media extension. Unknown suffixes are
// kept so names like "Matrix.1999" do not lose their year.
func TrimExtension(name string) string {
	ext := filepath.Ext(name)
	lower := strings.ToLower(ext)
	if VideoExtensions[lower] || SubtitleExtensions[lower] {
		return strings.TrimSuffix(name, ext)
	}
	return name
}

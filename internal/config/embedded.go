package config

// EmbeddedTMDBKey is a TMDb API key baked into the binary at build time.
// It is the lowest-priority default; the config file and environment
// override it.
//
// Build with:
//
//	go build -ldflags "-X 'github.com/tvstreamcz/tvstreamd/internal/config.EmbeddedTMDBKey=xxx'"
var EmbeddedTMDBKey string

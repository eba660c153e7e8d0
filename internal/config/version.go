package config

// Version is the daemon version. Overridden at build time:
//
//	go build -ldflags "-X github.com/tvstreamcz/tvstreamd/internal/config.Version=1.2.3"
var Version = "0.1.0-dev"

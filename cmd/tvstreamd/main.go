// Command tvstreamd runs the TVStream daemon: a Webshare.cz streaming
// catalogue with TMDb/ČSFD metadata, exposed over an HTTP API.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/tvstreamcz/tvstreamd/internal/api"
	"github.com/tvstreamcz/tvstreamd/internal/auth"
	"github.com/tvstreamcz/tvstreamd/internal/catalogue"
	"github.com/tvstreamcz/tvstreamd/internal/command"
	"github.com/tvstreamcz/tvstreamd/internal/config"
	"github.com/tvstreamcz/tvstreamd/internal/events"
	"github.com/tvstreamcz/tvstreamd/internal/logger"
	"github.com/tvstreamcz/tvstreamd/internal/metadata"
	"github.com/tvstreamcz/tvstreamd/internal/scheduler"
	"github.com/tvstreamcz/tvstreamd/internal/scheduler/tasks"
	"github.com/tvstreamcz/tvstreamd/internal/secrets"
	"github.com/tvstreamcz/tvstreamd/internal/session"
	"github.com/tvstreamcz/tvstreamd/internal/store"
	"github.com/tvstreamcz/tvstreamd/internal/trakt"
)

func main() {
	configPath := flag.String("config", "", "path to config file (searches ./config.yaml and /etc/tvstreamd when empty)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(config.Version)
		return
	}

	// Config file edits are funnelled into the main loop; Webshare
	// credential changes apply without a restart, everything else
	// needs one.
	reload := make(chan *config.Config, 1)
	cfg, err := config.LoadAndWatch(*configPath, func(next *config.Config) {
		select {
		case reload <- next:
		default:
		}
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Path:       cfg.Logging.Path,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
		TailSize:   cfg.Logging.TailSize,
	})
	defer log.Close()

	log.Info().
		Str("version", config.Version).
		Str("log_level", cfg.Logging.Level).
		Msg("Starting tvstreamd")

	dataDir := filepath.Dir(cfg.Database.Path)
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		log.Fatal().Err(err).Str("dir", dataDir).Msg("Failed to create data directory")
	}

	st, err := store.Open(cfg.Database.Path, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.Database.Path).Msg("Failed to open database")
	}
	defer st.Close()

	passphrase, salt, err := secrets.LoadOrCreateKeyFile(filepath.Join(dataDir, "secret.key"))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load encryption key")
	}
	box := secrets.NewBox(passphrase, salt)

	hub := events.NewHub(log.Logger)
	go hub.Run()
	log.Tail().SetSink(hub)

	sessions := session.NewManager(cfg.Webshare, log.Logger)
	sessions.SetBroadcaster(hub)

	meta := metadata.NewService(cfg.Metadata, log.Logger)
	meta.SetStore(st)

	cat := catalogue.NewService(sessions, meta, cfg.Catalogue, cfg.Filters, log.Logger)
	cat.SetHistory(st)
	cat.SetBroadcaster(hub)

	traktSvc := trakt.NewService(trakt.NewClient(cfg.Trakt, log.Logger), st, box, log.Logger)
	traktSvc.SetBroadcaster(hub)

	authSvc, err := auth.NewService(cfg.Auth)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize authentication")
	}

	sched, err := scheduler.New(log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create scheduler")
	}
	if err := tasks.RegisterKeepAliveTask(sched, sessions, cfg.Webshare); err != nil {
		log.Fatal().Err(err).Msg("Failed to register keep-alive task")
	}
	if err := tasks.RegisterCacheSweepTask(sched, st, log.Logger); err != nil {
		log.Fatal().Err(err).Msg("Failed to register cache sweep task")
	}
	if err := tasks.RegisterHistoryTrimTask(sched, st, cfg.Catalogue.HistorySize, log.Logger); err != nil {
		log.Fatal().Err(err).Msg("Failed to register history trim task")
	}
	if err := tasks.RegisterTraktRefreshTask(sched, traktSvc); err != nil {
		log.Fatal().Err(err).Msg("Failed to register Trakt refresh task")
	}
	if err := sched.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start scheduler")
	}

	server := api.NewServer(api.Deps{
		Command: command.Deps{
			Catalogue: cat,
			Sessions:  sessions,
			Metadata:  meta,
			History:   st,
			Watched:   st,
			Scrobbler: traktSvc,
			Filters:   cfg.Filters,
		},
		Auth:      authSvc,
		Trakt:     traktSvc,
		Hub:       hub,
		Scheduler: sched,
		Logs:      log,
		Version:   config.Version,
	}, log.Logger)

	address := cfg.Server.Address()
	go func() {
		if err := server.Start(address); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Str("address", address).Msg("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

run:
	for {
		select {
		case next := <-reload:
			log.Info().Msg("Configuration file changed, applying Webshare settings")
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			sessions.Reconfigure(ctx, next.Webshare)
			cancel()
		case sig := <-quit:
			log.Info().Str("signal", sig.String()).Msg("Shutting down")
			break run
		}
	}

	if err := sched.Stop(); err != nil {
		log.Warn().Err(err).Msg("Scheduler shutdown failed")
	}

	// In-flight requests get the grace period before the Webshare
	// session token is invalidated.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}
	sessions.Logout(shutdownCtx)

	log.Info().Msg("tvstreamd stopped")
}

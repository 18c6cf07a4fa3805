// main.go
//
// Entry point for the Tradle game host.
// Loads configuration, country data and storage, then serves the game API,
// the frame bridge and the score collector until interrupted.

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/tradle/internal/config"
	"github.com/robalobadob/tradle/internal/countries"
	"github.com/robalobadob/tradle/internal/daily"
	"github.com/robalobadob/tradle/internal/game"
	"github.com/robalobadob/tradle/internal/handshake"
	"github.com/robalobadob/tradle/internal/httpserver"
	"github.com/robalobadob/tradle/internal/hub"
	"github.com/robalobadob/tradle/internal/report"
	"github.com/robalobadob/tradle/internal/scores"
	"github.com/robalobadob/tradle/internal/store"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	setupLogger(cfg.Logging)

	if err := countries.Init(); err != nil {
		log.Fatal().Err(err).Msg("failed to load country lists")
	}

	// The collector always needs the database; guesses can stay in memory.
	db, err := store.OpenDB(cfg.Server.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.Server.DBPath).Msg("open database")
	}
	defer db.Close()
	if err := store.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}
	sc := scores.NewStore(db, cfg.Report.IPHashKey)
	if cfg.Report.ArchiveTable != "" {
		archive, err := scores.NewDynamoArchive(context.Background(), cfg.Report.ArchiveTable, cfg.Report.ArchiveRegion)
		if err != nil {
			log.Fatal().Err(err).Msg("load AWS config for score archive")
		}
		sc.SetArchive(archive)
		log.Info().Str("table", cfg.Report.ArchiveTable).Msg("archiving scores to DynamoDB")
	}

	var st store.Store
	switch cfg.Server.Store {
	case "memory":
		st = store.NewMemoryStore()
	default:
		st = store.NewSQLiteStore(db)
	}

	var reporter game.Reporter
	if cfg.Report.ScoreURL != "" {
		reporter = report.NewHTTPReporter(cfg.Report.ScoreURL, cfg.Report.Timeout)
	}
	var locator game.IPLocator
	if cfg.Report.IPLookupURL != "" {
		locator = report.NewHTTPLocator(cfg.Report.IPLookupURL, cfg.Report.Timeout)
	}

	h := hub.New(hub.Options{
		GameID:        cfg.Game.ID,
		Selector:      daily.NewSelector(countries.Real(), cfg.Game.DailySalt),
		Real:          countries.Real(),
		Fictional:     countries.Fictional(),
		Store:         st,
		Reporter:      reporter,
		Locator:       locator,
		ReportTimeout: cfg.Report.Timeout,
		Handshake: handshake.Config{
			GameID:             cfg.Game.ID,
			WithHistory:        cfg.Handshake.WithHistory,
			TrustedOrigins:     cfg.Handshake.TrustedOrigins,
			TrustedRootDomains: cfg.Handshake.TrustedRootDomains,
		},
		Logger: log.Logger,
	})
	defer h.Close()

	srv := httpserver.New(cfg, h, st, sc, log.Logger)

	go func() {
		log.Info().Str("addr", cfg.Addr()).Str("env", cfg.Server.Env).Str("store", cfg.Server.Store).Msg("starting tradle server")
		if err := srv.Start(cfg.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server exited")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server shutdown")
	}
}

// setupLogger configures the global zerolog logger.
func setupLogger(c config.LoggingConfig) {
	if lvl, err := zerolog.ParseLevel(c.Level); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
	zerolog.TimeFieldFormat = time.RFC3339
	if c.Format == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

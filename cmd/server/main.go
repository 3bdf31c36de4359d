package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/livescribe/livescribe/internal/adapters/directory"
	"github.com/livescribe/livescribe/internal/adapters/httpapi"
	"github.com/livescribe/livescribe/internal/adapters/provider"
	"github.com/livescribe/livescribe/internal/adapters/push"
	"github.com/livescribe/livescribe/internal/app"
	"github.com/livescribe/livescribe/internal/auth"
	"github.com/livescribe/livescribe/internal/config"
	"github.com/livescribe/livescribe/internal/metrics"
	"github.com/livescribe/livescribe/internal/store"
	"github.com/livescribe/livescribe/internal/taskq"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.Mode == "debug" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	db, err := store.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open store")
	}
	defer db.Close()

	if _, err := db.PlaceholderUser(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to seed placeholder owner")
	}

	tasks := taskq.New(
		taskq.WithCapacity(cfg.QueueSize),
		taskq.WithWorkers(cfg.WorkerCount),
		taskq.WithErrorSink(func(err error) {
			metrics.PersistFailures.Inc()
			log.Error().Err(err).Str("module", "taskq").Msg("background task failed")
		}),
	)

	hub := push.NewHub()
	resolver := app.NewOwnershipResolver(db, db)
	relay := app.NewRelay(db, db, resolver, hub, tasks)
	if dir := os.Getenv("DIRECTORY_URL"); dir != "" {
		relay.SetEnricher(directory.NewClient(dir, db))
	}
	registry := app.NewSessionRegistry()
	manager := app.NewSessionManager(registry, relay, provider.New)

	verifier := auth.NewVerifier(cfg.TokenSecret)
	r := httpapi.SetupRouter(ctx, cfg, httpapi.Deps{
		Manager:     manager,
		Meetings:    db,
		Transcripts: db,
		Hub:         hub,
		Push: &push.Controller{
			Hub:        hub,
			Meetings:   db,
			Verifier:   verifier,
			SendBuffer: cfg.SendBuffer,
		},
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return tasks.Run(gctx)
	})
	g.Go(func() error {
		log.Info().Str("module", "main").Str("addr", addr).Msg("livescribe server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Str("module", "main").Msg("shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		tasks.Close()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("server exited with error")
		return
	}
	log.Info().Msg("server exited gracefully")
}

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	server "poi_ingest/internal/adapters/http_server"
	"poi_ingest/internal/adapters/jobs"
	"poi_ingest/internal/adapters/observability"
	"poi_ingest/internal/adapters/readers"
	"poi_ingest/internal/app"
	"poi_ingest/internal/shared"
)

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	policy, err := app.ParseUnknownPolicy(cfg.UnknownPolicy)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := observability.InitRegistry()
	if cfg.MetricsAddr != cfg.HTTPAddr {
		observability.Serve(cfg.MetricsAddr, reg)
	}

	// deps
	repo, closeStore, err := shared.OpenStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("record store unavailable")
	}
	defer closeStore()
	status := shared.OpenStatus(ctx, cfg)

	svc := app.NewIngestionService(readers.Opener{CSVDelimiter: cfg.CSVDelimiter}, repo, status,
		app.IngestOptions{BatchSize: cfg.BatchSize, BatchesPerSec: cfg.BatchesPerSec})

	qc := jobs.DefaultQueueConfig()
	qc.Path = cfg.QueueDBPath
	qc.Workers = cfg.QueueWorkers
	qc.MaxAttempts = cfg.QueueMaxAttempts
	qc.TaskTimeout = cfg.QueueTaskTimeout
	qc.Backoff = cfg.QueueBackoff
	queue, err := jobs.OpenQueue(qc, svc.ImportFile)
	if err != nil {
		log.Fatal().Err(err).Msg("task queue unavailable")
	}
	defer queue.Close()

	d := app.NewDispatcher(queue, status, app.DispatchOptions{
		Unknown:      policy,
		SniffContent: cfg.SniffContent,
		BatchSize:    cfg.BatchSize,
	})
	q := app.NewQueryService(repo, status)

	// http
	srv := server.New()
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{Q: q, D: d})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.ListenAndServe(gctx, cfg.HTTPAddr, 10*time.Second)
	})
	g.Go(func() error {
		queue.Start(gctx)
		<-gctx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		queue.Stop(stopCtx)
		return nil
	})

	log.Info().
		Str("http", cfg.HTTPAddr).
		Str("store", cfg.StoreDriver).
		Int("workers", cfg.QueueWorkers).
		Msg("worker running")
	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("worker stopped with error")
		return
	}
	log.Info().Msg("worker stopped")
}

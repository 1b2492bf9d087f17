// Command worker consumes mark-ingestion jobs from the queue, fetches
// each mark's URL, stores the captured content, and records the outcome
// in PostgreSQL.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jchook/retrace/internal/config"
	"github.com/jchook/retrace/internal/database"
	"github.com/jchook/retrace/internal/fetch"
	"github.com/jchook/retrace/internal/ingest"
	"github.com/jchook/retrace/internal/observability"
	"github.com/jchook/retrace/internal/observability/prommetrics"
	"github.com/jchook/retrace/internal/observability/stdout"
	"github.com/jchook/retrace/internal/queue"
	"github.com/jchook/retrace/internal/repository"
	"github.com/jchook/retrace/internal/storage"
	fsstore "github.com/jchook/retrace/internal/storage/fs"
	s3store "github.com/jchook/retrace/internal/storage/s3"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := stdout.NewLogger(cfg.LogFormat, cfg.LogLevel)
	metrics := prommetrics.New(cfg.ServiceName)

	logger.Info("starting worker",
		"service", cfg.ServiceName,
		"environment", cfg.Environment,
		"queue_adapter", cfg.Adapters.Queue,
		"storage_adapter", cfg.Adapters.Storage)
	metrics.IncrementCounter("application.starts", nil)

	db := connectDatabase(cfg, logger, metrics)
	defer db.Close()

	store := buildStore(cfg, logger, metrics)

	worker := ingest.NewWorker(
		repository.NewMarkRepository(db, logger, metrics),
		repository.NewAccessRepository(db, logger, metrics),
		repository.NewCaptureRepository(db, logger, metrics),
		fetch.NewClient(cfg.HTTP),
		store,
		logger,
		metrics,
	)

	// Job consumption runs over AMQP regardless of the publish adapter;
	// SQS is only offered on the producing side.
	consumer := queue.NewConsumer(cfg.Queue.Name, &cfg.Queue.RabbitMQ, worker, logger, metrics)

	metricsSrv := startMetricsServer(cfg, metrics, logger)

	go func() {
		if err := consumer.Start(); err != nil {
			logger.Error("consumer terminated", "error", err)
			metrics.IncrementCounter("application.failures", nil)
			os.Exit(1)
		}
	}()

	waitForShutdown(logger)

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := consumer.Stop(ctx); err != nil {
		logger.Error("failed to stop consumer", "error", err)
	}
	if err := metricsSrv.Shutdown(ctx); err != nil {
		logger.Error("failed to stop metrics server", "error", err)
	}
	logger.Info("worker stopped")
}

func connectDatabase(cfg *config.Config, logger observability.Logger, metrics observability.Metrics) *database.DB {
	db, err := database.Connect(&cfg.Database, logger, metrics)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		log.Fatalf("failed to connect to database: %v", err)
	}
	return db
}

// buildStore selects the content store from the configured adapter.
func buildStore(cfg *config.Config, logger observability.Logger, metrics observability.Metrics) storage.ContentStore {
	var (
		store storage.ContentStore
		err   error
	)
	switch cfg.Adapters.Storage {
	case "s3":
		store, err = s3store.NewStore(&cfg.Storage.S3, logger, metrics)
	default:
		store, err = fsstore.NewStore(cfg.Storage.Root, logger, metrics)
	}
	if err != nil {
		logger.Error("failed to initialize storage", "adapter", cfg.Adapters.Storage, "error", err)
		log.Fatalf("failed to initialize storage: %v", err)
	}
	return store
}

func startMetricsServer(cfg *config.Config, metrics *prommetrics.Metrics, logger observability.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: cfg.Metrics.Addr, Handler: mux}
	go func() {
		logger.Info("metrics server listening", "addr", cfg.Metrics.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	return srv
}

func waitForShutdown(logger observability.Logger) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	s := <-sig
	logger.Info("shutdown signal received", "signal", s.String())
}

package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"

	"github.com/wonderland/toystore/internal/catalog"
	"github.com/wonderland/toystore/internal/config"
	"github.com/wonderland/toystore/internal/messaging"
	"github.com/wonderland/toystore/internal/telemetry"
	"github.com/wonderland/toystore/internal/worker"
)

const serviceName = "toystore-worker"

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	loader := config.NewLoader()
	cfg, err := loader.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	level.Set(config.ParseLevel(cfg.LogLevel))
	loader.WatchLogLevel(level, logger)

	brokers := cfg.Brokers()
	if len(brokers) == 0 {
		logger.Error("KAFKA_BROKERS is required")
		os.Exit(1)
	}
	if cfg.PostgresURL == "" {
		logger.Error("POSTGRES_URL is required")
		os.Exit(1)
	}

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, cfg.OTLPEndpoint, serviceName, cfg.ServiceVersion)
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	db, err := telemetry.OpenDB("postgres", cfg.PostgresURL)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	watcher, err := worker.NewStockWatcher(catalog.NewProductRepository(db), cfg.LowStockThreshold, logger)
	if err != nil {
		logger.Error("failed to create stock watcher", "error", err)
		os.Exit(1)
	}

	consumer := messaging.NewConsumer(brokers, cfg.OrderEventsTopic, "stock-watcher", logger)
	defer func() { _ = consumer.Close() }()

	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
		<-stop
		logger.Info("shutting down")
		cancel()
	}()

	logger.Info("starting stock watcher", "brokers", brokers, "topic", cfg.OrderEventsTopic, "threshold", cfg.LowStockThreshold)

	if err := consumer.Consume(ctx, watcher.Handle); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("consumer stopped")
			return
		}
		logger.Error("consumer error", "error", err)
		os.Exit(1)
	}
}

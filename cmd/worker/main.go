package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"productimport/internal/app"
	"productimport/internal/config"
	"productimport/internal/logger"
	"productimport/internal/worker"
	"productimport/internal/worker/processors"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration: ", err)
	}

	logger := logger.NewForEnv(cfg.LogLevel, cfg.Env)
	defer logger.Sync()

	if len(cfg.KafkaBrokers) == 0 {
		logger.Fatal("KAFKA_BROKERS is required to run the worker")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize: %v", err)
	}
	defer a.Close()

	w := worker.New(cfg, logger, processors.NewImportProcessor(a.Importer, logger))

	logger.Info("Starting worker...")
	go func() {
		<-ctx.Done()
		if err := w.Stop(); err != nil {
			logger.Error("Failed to close reader: %v", err)
		}
	}()
	if err := w.Start(ctx); err != nil {
		logger.Error("Worker stopped: %v", err)
	}
	logger.Info("Worker shut down")
}

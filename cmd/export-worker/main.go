package main

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/jhonier182/lista-mercado/internal/amqp"
	"github.com/jhonier182/lista-mercado/internal/backend"
	"github.com/jhonier182/lista-mercado/internal/cli"
	"github.com/jhonier182/lista-mercado/internal/log"
	"github.com/jhonier182/lista-mercado/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL")).WithComponent(log.ComponentWorker)
	logger.Info("Starting export-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the export worker")
		os.Exit(1)
	}

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	exporter, err := backend.NewFactory(logger.Logger).CreateExporter(context.Background(), bcfg)
	if err != nil {
		logger.Error("Failed to initialize exporter", log.FieldError, err, "export", cfg.ExportBackend)
		os.Exit(1)
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}

	exportWorker := worker.NewExportWorker(exporter.Prices, logger)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(context.Context) {
		logger.Info("Shutting down worker...")
	})

	// The consumer reconnects on its own; it only returns on cancellation
	// or when retries are exhausted.
	consumeCtx := log.NewContext(ctx, logger)
	if err := amqpClient.ConsumePriceRecorded(consumeCtx, exportWorker.HandlePriceRecorded); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", log.FieldError, err)
		_ = amqpClient.Close()
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	if err := amqpClient.Close(); err != nil {
		logger.Error("Failed to close AMQP client", log.FieldError, err)
	}
	logger.Info("Worker shutdown complete")
}

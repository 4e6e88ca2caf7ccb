package main

import (
	"context"
	"errors"
	"os"
	"time"

	"moneybook/internal/amqp"
	"moneybook/internal/backend"
	"moneybook/internal/cli"
	"moneybook/internal/log"
	"moneybook/internal/worker"
)

func main() {
	cfg, logger := cli.Bootstrap(log.ComponentWorker)
	logger.Info("Starting moneybook-worker")

	if err := cfg.ValidateWorker(); err != nil {
		logger.Error("Worker configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	result, bcfg := cli.OpenBackend(ctx, logger, cfg)
	defer result.Cleanup()

	exporter, err := backend.NewFactory(logger.Logger).CreateExporter(ctx, bcfg)
	if err != nil {
		logger.Error("Failed to initialize exporter", log.FieldError, err)
		os.Exit(1)
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer client.Close()

	users := worker.NewUserSet()
	exports := worker.NewExportWorker(result.Store, exporter, users)

	var auditor *worker.Auditor
	if cfg.AuditSchedule != "" {
		auditor = worker.NewAuditor(result.Store, users, cfg.AuditSchedule, cfg.Location())
		if err := auditor.Start(ctx); err != nil {
			logger.Error("Failed to start auditor", log.FieldError, err)
			os.Exit(1)
		}
	} else {
		logger.Info("Balance audit disabled")
	}

	handler := func(ctx context.Context, msg *amqp.ChangeMessage) error {
		ctx, cancel := context.WithTimeout(ctx, cfg.ExportTimeout)
		defer cancel()
		return exports.HandleChange(ctx, msg)
	}
	if err := client.Run(ctx, handler); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", log.FieldError, err)
	}

	_ = cli.Shutdown(logger, 30*time.Second, func(ctx context.Context) error {
		if auditor == nil {
			return nil
		}
		return auditor.Stop(ctx)
	})
}

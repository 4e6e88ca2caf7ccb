package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"moneybook/internal/amqp"
	"moneybook/internal/backend"
	"moneybook/internal/cli"
	apphttp "moneybook/internal/http"
	"moneybook/internal/log"
	"moneybook/internal/services"
	"moneybook/internal/session"
	"moneybook/internal/worker"
)

func main() {
	cfg, logger := cli.Bootstrap(log.ComponentApp)
	ctx, stop := cli.SignalContext(logger)
	defer stop()

	result, bcfg := cli.OpenBackend(ctx, logger, cfg)
	defer result.Cleanup()

	// Change events go to the broker when one is configured. Without it,
	// exports run inline when a spreadsheet is configured.
	var publisher services.ChangePublisher
	switch {
	case cfg.AMQPURL != "":
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		defer client.Close()
		publisher = client
		logger.Info("Publishing change events", "exchange", cfg.AMQPExchange)
	case cfg.ExportEnabled():
		exporter, err := backend.NewFactory(logger.Logger).CreateExporter(ctx, bcfg)
		if err != nil {
			logger.Error("Failed to initialize exporter", log.FieldError, err)
			os.Exit(1)
		}
		publisher = worker.InlinePublisher{
			Worker:  worker.NewExportWorker(result.Store, exporter, nil),
			Timeout: cfg.ExportTimeout,
		}
		logger.Info("No broker configured, exporting inline")
	default:
		logger.Info("Change events disabled")
	}

	svc := services.NewFinanceService(result.Store, result.Ledger, publisher, cfg.Location())
	sessions := session.NewManager(result.Store, session.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer))

	srvCfg := apphttp.DefaultConfig(":" + cfg.Port)
	srvCfg.ReportCacheSize = cfg.ReportCacheSize
	srvCfg.ReportCacheTTL = cfg.ReportCacheTTL
	srvCfg.Logger = logger.WithComponent(log.ComponentHTTP)
	srv := apphttp.NewServer(srvCfg, svc, sessions)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting moneybook server",
			"port", cfg.Port,
			log.FieldBackend, bcfg.Type,
			log.FieldLedgerMode, bcfg.LedgerMode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
			os.Exit(1)
		}
	}

	_ = cli.Shutdown(logger, 30*time.Second, func(ctx context.Context) error {
		return srv.Shutdown(ctx)
	})
	logger.Info("Server stopped gracefully")
}

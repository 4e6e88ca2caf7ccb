// Package cli holds the start-up and shutdown steps shared by the
// moneybook binaries.
package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"moneybook/internal/backend"
	"moneybook/internal/config"
	"moneybook/internal/log"

	"github.com/joho/godotenv"
)

// LoadEnvFile loads .env for local development. A missing file is fine.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds the process logger from cfg and installs it as the
// slog default.
func SetupLogger(cfg *config.Config, component string) *log.Logger {
	logger := log.New(log.Config{
		Level:     log.ParseLevel(cfg.LogLevel),
		Format:    cfg.LogFormat,
		Component: component,
		Output:    os.Stdout,
	})
	log.SetDefault(logger)
	return logger
}

// Bootstrap loads .env and the configuration, sets up logging and exits
// the process when the configuration is invalid.
func Bootstrap(component string) (*config.Config, *log.Logger) {
	LoadEnvFile()
	cfg := config.Load()
	logger := SetupLogger(cfg, component)
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	return cfg, logger
}

// OpenBackend opens the configured store and ledger or exits the process.
func OpenBackend(ctx context.Context, logger *log.Logger, cfg *config.Config) (*backend.BackendResult, backend.Config) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	result, err := backend.NewFactory(logger.Logger).CreateBackend(ctx, bcfg)
	if err != nil {
		logger.Error("Failed to initialize backend",
			log.FieldError, err,
			log.FieldBackend, bcfg.Type,
			"path", bcfg.SQLiteDBPath)
		os.Exit(1)
	}
	return result, bcfg
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(logger *log.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		logger.Info("Shutdown signal received")
	}()
	return ctx, cancel
}

// Shutdown runs steps in order under one shared timeout. Every step runs
// even if an earlier one failed; the errors are joined.
func Shutdown(logger *log.Logger, timeout time.Duration, steps ...func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var errs []error
	for _, step := range steps {
		if err := step(ctx); err != nil {
			logger.Error("Shutdown step failed", log.FieldError, err)
			errs = append(errs, err)
		}
	}
	if ctx.Err() != nil {
		logger.Warn("Shutdown timeout reached")
	} else {
		logger.Info("Shutdown complete")
	}
	return errors.Join(errs...)
}

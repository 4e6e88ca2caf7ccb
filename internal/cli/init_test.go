package cli

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"moneybook/internal/config"
	"moneybook/internal/log"
)

func TestShutdownRunsEveryStep(t *testing.T) {
	var order []string
	errA := errors.New("a failed")

	err := Shutdown(log.Discard(), time.Second,
		func(context.Context) error { order = append(order, "a"); return errA },
		func(ctx context.Context) error {
			if _, ok := ctx.Deadline(); !ok {
				t.Error("step context has no deadline")
			}
			order = append(order, "b")
			return nil
		},
	)

	if !errors.Is(err, errA) {
		t.Errorf("Shutdown() error = %v, want %v", err, errA)
	}
	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Errorf("steps ran as %v", order)
	}
}

func TestShutdownNoSteps(t *testing.T) {
	if err := Shutdown(log.Discard(), time.Second); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestSetupLogger(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	logger := SetupLogger(&config.Config{LogLevel: "debug", LogFormat: "json"}, log.ComponentWorker)
	if logger.Component() != log.ComponentWorker {
		t.Errorf("component = %q", logger.Component())
	}
	if !logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("debug level not enabled")
	}
	if slog.Default() != logger.Logger {
		t.Error("logger not installed as default")
	}
}

package main

import (
	"context"
	"os"
	"time"

	"mxmoney/internal/amqp"
	"mxmoney/internal/backend"
	"mxmoney/internal/cli"
	applog "mxmoney/internal/log"
	"mxmoney/internal/worker"
)

func main() {
	cfg := cli.MustLoadConfig()
	logger := cli.SetupLogger(cfg, applog.ComponentRecurring)
	logger.Info("Starting recurring-worker")

	app, err := backend.NewApp(context.Background(), cfg, logger.Logger)
	if err != nil {
		logger.Error("Failed to initialize application", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer app.Close()

	var backups worker.BackupScheduler
	if app.Backups != nil {
		backups = app.Backups
	}

	var consume func(context.Context, func(context.Context, *amqp.GenerateRequest) error) error
	if app.AMQP != nil {
		consume = app.AMQP.ConsumeGenerateRequests
	} else {
		logger.Info("AMQP disabled - running on the ticker only")
	}

	logger.Info("Recurring processor configured",
		"interval", cfg.RecurringInterval,
		"backend", cfg.DataBackend,
		"backups", backups != nil)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)
	w := worker.NewRecurringWorker(app.Recurring, backups, cfg.RecurringInterval)
	if err := w.Run(ctx, consume); err != nil {
		logger.Error("Recurring worker stopped", "error", err)
		os.Exit(1)
	}

	<-done
	logger.Info("Recurring-worker shutdown complete")
}

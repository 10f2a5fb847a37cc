package main

import (
	"context"
	"os"
	"time"

	"mxmoney/internal/amqp"
	"mxmoney/internal/backend"
	"mxmoney/internal/cli"
	applog "mxmoney/internal/log"
	"mxmoney/internal/sheets"
	gsheet "mxmoney/internal/sheets/google"
	sheetmem "mxmoney/internal/sheets/memory"
	"mxmoney/internal/worker"
)

func main() {
	cfg := cli.MustLoadConfig()
	logger := cli.SetupLogger(cfg, applog.ComponentSheets)
	logger.Info("Starting sheets-worker")

	app, err := backend.NewApp(context.Background(), cfg, logger.Logger)
	if err != nil {
		logger.Error("Failed to initialize application", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer app.Close()

	var ledger sheets.Ledger
	if cfg.SheetsEnabled() {
		client, err := gsheet.New(context.Background(), gsheet.Options{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			SheetName:       cfg.GoogleSheetName,
			CredentialsJSON: cfg.GoogleServiceAccountJSON,
			CredentialsFile: cfg.GoogleServiceAccountFile,
		})
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", "error", err)
			os.Exit(1)
		}
		ledger = client
		logger.Info("Google Sheets client initialized",
			"spreadsheet_id", cfg.GoogleSpreadsheetID,
			"sheet", cfg.GoogleSheetName)
	} else {
		ledger = sheetmem.New()
		logger.Warn("No GOOGLE_SPREADSHEET_ID provided - dry run, rows are kept in memory")
	}

	var consume func(context.Context, func(context.Context, *amqp.TransactionMessage) error) error
	if app.AMQP != nil {
		consume = app.AMQP.ConsumeTransactions
	} else {
		logger.Info("AMQP disabled - polling pending rows only", "interval", cfg.SyncInterval)
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)
	w := worker.NewSyncWorker(app.Store, ledger, cfg.SyncBatchSize)
	if err := w.Run(ctx, consume, cfg.SyncInterval); err != nil {
		logger.Error("Sheets worker stopped", "error", err)
		os.Exit(1)
	}

	<-done
	logger.Info("Sheets-worker shutdown complete")
}

package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"mxmoney/internal/ai"
	"mxmoney/internal/amqp"
	"mxmoney/internal/backup"
	"mxmoney/internal/cache"
	"mxmoney/internal/config"
	"mxmoney/internal/services"
	"mxmoney/internal/storage"
)

// App holds the services shared by every binary.
type App struct {
	Store        storage.Store
	AMQP         *amqp.Client
	Transactions *services.TransactionService
	Categories   *services.CategoryService
	Balance      *services.BalanceService
	Recurring    *services.RecurringProcessor
	Imports      *services.ImportService
	Reports      *services.ReportService
	// Backups is nil when the backend cannot be snapshotted.
	Backups *backup.Manager
	Caches  *cache.Manager

	ping     func(context.Context) error
	cleanups []func() error
}

// NewApp opens the configured backend and wires the services on top of it.
// The broker, the model and the backup bucket are optional: when one cannot
// be reached the app starts without it.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	bcfg, err := FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	res, err := NewFactory(logger).CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, err
	}

	app := &App{Store: res.Store, ping: res.Ping, Caches: cache.NewManager()}
	app.cleanups = append(app.cleanups, res.Cleanup)

	var publisher services.EventPublisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, cfg.AMQPCommandQueue)
		if err != nil {
			logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without events", "error", err)
		} else {
			app.AMQP = client
			publisher = client
			app.cleanups = append(app.cleanups, client.Close)
			logger.InfoContext(ctx, "AMQP client initialized",
				"exchange", cfg.AMQPExchange,
				"queue", cfg.AMQPQueue)
		}
	} else {
		logger.InfoContext(ctx, "AMQP disabled - ledger rows will not be exported")
	}

	var completer ai.Completer
	if cfg.GeminiAPIKey != "" {
		gemini, err := ai.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			logger.WarnContext(ctx, "Failed to initialize AI client, categorization and analysis disabled", "error", err)
		} else {
			completer = gemini
		}
	}

	reports := cache.NewLRUCache[services.ReportAnalysis](cfg.ReportCacheSize, cfg.ReportCacheTTL)
	app.Caches.Register(reports)

	app.Categories = services.NewCategoryService(res.Store)
	app.Transactions = services.NewTransactionService(res.Store, res.Store, publisher)
	app.Balance = services.NewBalanceService(res.Store)
	app.Recurring = services.NewRecurringProcessor(res.Store, publisher)
	app.Imports = services.NewImportService(completer, app.Transactions, app.Categories)
	app.Reports = services.NewReportService(res.Store, completer, cfg.Currency, reports)

	if res.Snapshotter != nil {
		var uploader backup.Uploader
		if cfg.BackupGCSBucket != "" {
			gcs, err := backup.NewGCSUploader(ctx, cfg.BackupGCSBucket, cfg.BackupGCSPrefix)
			if err != nil {
				logger.WarnContext(ctx, "Failed to initialize GCS uploader, backups stay local", "error", err)
			} else {
				uploader = gcs
				app.cleanups = append(app.cleanups, gcs.Close)
			}
		}
		app.Backups, err = backup.NewManager(res.Snapshotter, cfg.BackupSettingsPath, cfg.BackupDir, uploader)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("backup manager: %w", err)
		}
	}

	if _, err := app.Categories.Seed(ctx, services.CategoryKnowledge); err != nil {
		logger.WarnContext(ctx, "Failed to seed categories", "error", err)
	}
	return app, nil
}

// Ready reports whether the backend answers.
func (a *App) Ready(ctx context.Context) error {
	if a.ping == nil {
		return nil
	}
	return a.ping(ctx)
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.cleanups) - 1; i >= 0; i-- {
		if a.cleanups[i] == nil {
			continue
		}
		if err := a.cleanups[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.cleanups = nil
	return errors.Join(errs...)
}

package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"mxmoney/internal/amqp"
	"mxmoney/internal/core"
)

// Generator runs a materialization pass.
type Generator interface {
	GeneratePending(ctx context.Context, asOf core.Date) (int, error)
}

// BackupScheduler creates a backup when one is due.
type BackupScheduler interface {
	RunScheduled(ctx context.Context, now time.Time) (bool, error)
}

// RecurringWorker materializes due occurrences on a ticker and on request.
type RecurringWorker struct {
	generator Generator
	backups   BackupScheduler
	interval  time.Duration
	now       func() time.Time
}

// NewRecurringWorker creates a worker. backups may be nil.
func NewRecurringWorker(generator Generator, backups BackupScheduler, interval time.Duration) *RecurringWorker {
	return &RecurringWorker{generator: generator, backups: backups, interval: interval, now: time.Now}
}

// Tick runs one materialization pass for today and a scheduled backup check.
func (w *RecurringWorker) Tick(ctx context.Context) {
	now := w.now()
	count, err := w.generator.GeneratePending(ctx, core.DateOf(now))
	if err != nil {
		slog.ErrorContext(ctx, "Recurring processing failed", "error", err)
	} else {
		slog.InfoContext(ctx, "Recurring processing complete",
			"created", count,
			"next_check", now.Add(w.interval).Format("15:04:05"))
	}

	if w.backups == nil {
		return
	}
	created, err := w.backups.RunScheduled(ctx, now)
	if err != nil {
		slog.ErrorContext(ctx, "Scheduled backup failed", "error", err)
	} else if created {
		slog.InfoContext(ctx, "Scheduled backup created")
	}
}

// HandleGenerateRequest runs a pass for the requested date, or today.
func (w *RecurringWorker) HandleGenerateRequest(ctx context.Context, req *amqp.GenerateRequest) error {
	asOf := core.DateOf(w.now())
	if req.AsOf != "" {
		d, err := core.ParseDate(req.AsOf)
		if err != nil {
			// Retrying cannot fix a bad date.
			slog.WarnContext(ctx, "Dropping generate request with invalid date", "as_of", req.AsOf, "error", err)
			return nil
		}
		asOf = d
	}

	count, err := w.generator.GeneratePending(ctx, asOf)
	if err != nil {
		return fmt.Errorf("generate pending: %w", err)
	}
	slog.InfoContext(ctx, "Generate request processed",
		"as_of", asOf.String(),
		"created", count,
		"requested_at", req.RequestedAt)
	return nil
}

// Run ticks immediately, then every interval, and serves generate requests
// until ctx is done. consume may be nil when no broker is configured.
func (w *RecurringWorker) Run(ctx context.Context, consume func(context.Context, func(context.Context, *amqp.GenerateRequest) error) error) error {
	slog.InfoContext(ctx, "Running initial recurring processing")
	w.Tick(ctx)

	g, ctx := errgroup.WithContext(ctx)
	if consume != nil {
		g.Go(func() error {
			return ignoreCanceled(consume(ctx, w.HandleGenerateRequest))
		})
	}
	g.Go(func() error {
		return every(ctx, w.interval, w.Tick)
	})
	return g.Wait()
}

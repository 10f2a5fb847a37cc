// Package worker runs the background loops of the sheets and recurring workers.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"mxmoney/internal/amqp"
	"mxmoney/internal/core"
	"mxmoney/internal/sheets"
	"mxmoney/internal/storage"
)

// SyncSource is the part of the store the sheets worker reads.
type SyncSource interface {
	FindByID(ctx context.Context, id int64) (core.Transaction, error)
	storage.SyncTracker
}

// SyncWorker exports ledger rows to the spreadsheet.
type SyncWorker struct {
	store     SyncSource
	ledger    sheets.Ledger
	batchSize int
}

func NewSyncWorker(store SyncSource, ledger sheets.Ledger, batchSize int) *SyncWorker {
	if batchSize < 1 {
		batchSize = 10
	}
	return &SyncWorker{store: store, ledger: ledger, batchSize: batchSize}
}

// HandleMessage applies one transaction event to the sheet. Returning an
// error requeues the message.
func (w *SyncWorker) HandleMessage(ctx context.Context, msg *amqp.TransactionMessage) error {
	slog.InfoContext(ctx, "Processing transaction message",
		"operation", msg.Operation,
		"id", msg.ID,
		"version", msg.Version)

	switch msg.Operation {
	case amqp.OpSync:
		t, err := w.store.FindByID(ctx, msg.ID)
		if errors.Is(err, core.ErrNotFound) {
			// Deleted before we got here; the delete event clears the sheet.
			slog.InfoContext(ctx, "Transaction no longer exists, skipping sync", "id", msg.ID)
			return nil
		}
		if err != nil {
			return fmt.Errorf("get transaction from storage: %w", err)
		}
		return w.syncRow(ctx, t)

	case amqp.OpDelete:
		if err := w.ledger.Clear(ctx, msg.ID); err != nil {
			return fmt.Errorf("clear ledger row: %w", err)
		}
		slog.InfoContext(ctx, "Cleared ledger row", "id", msg.ID)
		return nil

	default:
		slog.WarnContext(ctx, "Ignoring message with unknown operation",
			"operation", msg.Operation,
			"id", msg.ID)
		return nil
	}
}

// ProcessPending exports up to limit rows that are not synced yet and
// returns how many succeeded. It is the fallback for lost messages.
func (w *SyncWorker) ProcessPending(ctx context.Context, limit int) (int, error) {
	pending, err := w.store.PendingSync(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("get pending transactions: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	synced := 0
	for _, t := range pending {
		if err := ctx.Err(); err != nil {
			return synced, err
		}
		if err := w.syncRow(ctx, t); err != nil {
			slog.ErrorContext(ctx, "Failed to sync transaction", "id", t.ID, "error", err)
			continue
		}
		synced++
	}

	slog.InfoContext(ctx, "Pending sync pass complete",
		"total", len(pending),
		"synced", synced,
		"errors", len(pending)-synced)
	return synced, nil
}

// StartupSyncCheck pushes a larger batch of pending rows when the worker starts.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	n, err := w.ProcessPending(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("startup sync check: %w", err)
	}
	slog.InfoContext(ctx, "Startup sync check complete", "synced", n)
	return nil
}

// Run consumes events and sweeps pending rows every interval until ctx is
// done. consume may be nil when no broker is configured.
func (w *SyncWorker) Run(ctx context.Context, consume func(context.Context, func(context.Context, *amqp.TransactionMessage) error) error, interval time.Duration) error {
	if err := w.StartupSyncCheck(ctx); err != nil {
		slog.ErrorContext(ctx, "Startup sync check failed", "error", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	if consume != nil {
		g.Go(func() error {
			return ignoreCanceled(consume(ctx, w.HandleMessage))
		})
	}
	g.Go(func() error {
		return every(ctx, interval, func(ctx context.Context) {
			if _, err := w.ProcessPending(ctx, w.batchSize); err != nil && ctx.Err() == nil {
				slog.ErrorContext(ctx, "Periodic sync failed", "error", err)
			}
		})
	})
	return g.Wait()
}

func (w *SyncWorker) syncRow(ctx context.Context, t core.Transaction) error {
	ref, err := w.ledger.Upsert(ctx, sheets.RowFromTransaction(t))
	if err != nil {
		if markErr := w.store.MarkSyncError(ctx, t.ID); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark sync error", "id", t.ID, "error", markErr)
		}
		return fmt.Errorf("write ledger row: %w", err)
	}

	if err := w.store.MarkSynced(ctx, t.ID); err != nil {
		// The row is in the sheet; the next sweep rewrites it in place.
		slog.ErrorContext(ctx, "Failed to mark as synced", "id", t.ID, "error", err)
	}

	slog.InfoContext(ctx, "Synced transaction",
		"id", t.ID,
		"sheets_ref", ref,
		"description", t.Description,
		"amount", t.Amount.String())
	return nil
}

// every calls fn on each tick until ctx is done.
func every(ctx context.Context, interval time.Duration, fn func(context.Context)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			fn(ctx)
		}
	}
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

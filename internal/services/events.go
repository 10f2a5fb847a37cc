package services

import (
	"context"
	"log/slog"
)

// EventPublisher announces ledger changes to downstream consumers such as
// the sheets export worker. *amqp.Client implements it.
type EventPublisher interface {
	PublishTransactionSync(ctx context.Context, id, version int64) error
	PublishTransactionDelete(ctx context.Context, id int64) error
}

// publishSync is best effort: the row is already stored and the sync sweep
// picks up anything that was not announced.
func publishSync(ctx context.Context, p EventPublisher, id, version int64) {
	if p == nil {
		slog.DebugContext(ctx, "No event publisher configured, skipping sync message", "id", id)
		return
	}
	if err := p.PublishTransactionSync(ctx, id, version); err != nil {
		slog.ErrorContext(ctx, "Failed to publish sync message", "id", id, "error", err)
	}
}

func publishDelete(ctx context.Context, p EventPublisher, id int64) {
	if p == nil {
		slog.DebugContext(ctx, "No event publisher configured, skipping delete message", "id", id)
		return
	}
	if err := p.PublishTransactionDelete(ctx, id); err != nil {
		slog.ErrorContext(ctx, "Failed to publish delete message", "id", id, "error", err)
	}
}

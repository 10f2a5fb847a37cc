package services

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"mxmoney/internal/core"
	"mxmoney/internal/storage"
)

// RecurringProcessor materializes due occurrences of recurring templates
// into concrete one-off rows.
type RecurringProcessor struct {
	store     storage.TransactionStore
	publisher EventPublisher
	now       func() time.Time

	// mu keeps passes in this process strictly sequential. Passes in other
	// processes are deduplicated by the store's unique occurrence index.
	mu sync.Mutex
}

// NewRecurringProcessor creates a processor. publisher may be nil.
func NewRecurringProcessor(store storage.TransactionStore, publisher EventPublisher) *RecurringProcessor {
	return &RecurringProcessor{store: store, publisher: publisher, now: time.Now}
}

// GeneratePending creates a row for every occurrence due on or before asOf
// that has not been materialized yet, and returns how many rows were created.
// Calling it again with the same asOf creates nothing.
func (p *RecurringProcessor) GeneratePending(ctx context.Context, asOf core.Date) (int, error) {
	if err := asOf.Validate(); err != nil {
		return 0, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	all, err := p.store.FindAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("load templates: %w", err)
	}

	now := p.now()
	var (
		updates   []core.Transaction
		rows      []core.Transaction
		templates int
	)
	for _, t := range all {
		if !t.IsTemplate() {
			continue
		}
		templates++

		dates, err := PendingOccurrences(t, asOf)
		if err != nil {
			slog.WarnContext(ctx, "Skipping malformed recurring template",
				"id", t.ID,
				"description", t.Description,
				"error", err)
			continue
		}
		if len(dates) == 0 {
			continue
		}

		for _, d := range dates {
			rows = append(rows, core.Materialize(t, d, now))
		}
		advanced := t
		advanced.LastGeneratedDate = dates[len(dates)-1]
		advanced.Touch(now)
		updates = append(updates, advanced)

		slog.DebugContext(ctx, "Template has pending occurrences",
			"id", t.ID,
			"description", t.Description,
			"recurrence", t.Recurrence,
			"pending", len(dates),
			"last_generated_date", advanced.LastGeneratedDate.String())
	}

	if len(rows) == 0 {
		slog.InfoContext(ctx, "No pending recurring occurrences",
			"templates_checked", templates,
			"as_of", asOf.String())
		return 0, nil
	}

	// Insert in date order so row IDs follow the calendar.
	slices.SortStableFunc(rows, func(a, b core.Transaction) int {
		if c := a.EffectiveDate.Compare(b.EffectiveDate); c != 0 {
			return c
		}
		return cmp.Compare(*a.ParentTemplateID, *b.ParentTemplateID)
	})

	inserted, err := p.store.MaterializeBatch(ctx, updates, rows)
	if err != nil {
		return 0, fmt.Errorf("materialize occurrences: %w", err)
	}

	for _, row := range inserted {
		publishSync(ctx, p.publisher, row.ID, 1)
	}

	slog.InfoContext(ctx, "Recurring materialization complete",
		"created", len(inserted),
		"skipped_existing", len(rows)-len(inserted),
		"templates_advanced", len(updates),
		"templates_checked", templates,
		"as_of", asOf.String())

	return len(inserted), nil
}

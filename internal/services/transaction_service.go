package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"mxmoney/internal/core"
	"mxmoney/internal/storage"
)

// TransactionService orchestrates ledger writes across the store and the
// event publisher.
type TransactionService struct {
	store      storage.TransactionStore
	categories storage.CategoryStore
	publisher  EventPublisher
	now        func() time.Time
}

// NewTransactionService creates a service. publisher may be nil.
func NewTransactionService(store storage.TransactionStore, categories storage.CategoryStore, publisher EventPublisher) *TransactionService {
	return &TransactionService{
		store:      store,
		categories: categories,
		publisher:  publisher,
		now:        time.Now,
	}
}

// TransactionInput carries the caller-editable fields of a transaction.
type TransactionInput struct {
	Description   string     `json:"description"`
	Amount        core.Money `json:"amount"`
	EffectiveDate core.Date  `json:"effectiveDate"`
	Kind          string     `json:"type"`
	Recurrence    string     `json:"recurrence"`
	EndDate       core.Date  `json:"endDate"`
	CategoryID    *int64     `json:"categoryId"`
}

func (in TransactionInput) apply(t *core.Transaction) error {
	kind, err := core.ParseKind(in.Kind)
	if err != nil {
		return err
	}
	recurrence := core.None
	if in.Recurrence != "" {
		if recurrence, err = core.ParseRecurrence(in.Recurrence); err != nil {
			return err
		}
	}
	t.Description = in.Description
	t.Amount = in.Amount
	t.EffectiveDate = in.EffectiveDate
	t.Kind = kind
	t.Recurrence = recurrence
	t.EndDate = in.EndDate
	t.CategoryID = in.CategoryID
	return nil
}

// rescheduled keeps LastGeneratedDate on the edited template's schedule.
// A new start date or period restarts generation from the effective date.
// An earlier end date pulls the marker back to the last occurrence it allows.
func rescheduled(before, t core.Transaction) core.Transaction {
	switch {
	case !t.IsTemplate(),
		!t.EffectiveDate.Equal(before.EffectiveDate),
		t.Recurrence != before.Recurrence:
		t.LastGeneratedDate = core.Date{}
	case !t.LastGeneratedDate.IsZero() && !t.EndDate.IsZero() && t.LastGeneratedDate.After(t.EndDate):
		dates, err := Expand(t, t.EffectiveDate, t.EndDate)
		if err != nil || len(dates) == 0 {
			t.LastGeneratedDate = core.Date{}
		} else {
			t.LastGeneratedDate = dates[len(dates)-1]
		}
	}
	return t
}

// List returns every transaction, newest first.
func (s *TransactionService) List(ctx context.Context) ([]core.Transaction, error) {
	return s.store.FindAll(ctx)
}

// ListByPeriod returns transactions dated in [start, end], newest first.
func (s *TransactionService) ListByPeriod(ctx context.Context, start, end core.Date) ([]core.Transaction, error) {
	if err := start.Validate(); err != nil {
		return nil, err
	}
	if err := end.Validate(); err != nil {
		return nil, err
	}
	if end.Before(start) {
		return nil, fmt.Errorf("%w: end date %s is before start date %s", core.ErrInvalidArgument, end, start)
	}
	return s.store.FindInDateRange(ctx, start, end)
}

func (s *TransactionService) Get(ctx context.Context, id int64) (core.Transaction, error) {
	return s.store.FindByID(ctx, id)
}

// Create validates and stores a new transaction, then announces it.
func (s *TransactionService) Create(ctx context.Context, in TransactionInput) (core.Transaction, error) {
	t := core.Transaction{CreatedAt: s.now(), UpdatedAt: s.now()}
	if err := in.apply(&t); err != nil {
		return core.Transaction{}, err
	}
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if err := s.checkCategory(ctx, t.CategoryID); err != nil {
		return core.Transaction{}, err
	}

	created, err := s.store.Create(ctx, t)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction created",
		"id", created.ID,
		"type", created.Kind,
		"recurrence", created.Recurrence,
		"effective_date", created.EffectiveDate.String())

	// Version 1 for a new row.
	publishSync(ctx, s.publisher, created.ID, 1)
	return created, nil
}

// Update replaces the editable fields of an existing transaction. A row
// generated from a template stays a one-off.
func (s *TransactionService) Update(ctx context.Context, id int64, in TransactionInput) (core.Transaction, error) {
	before, err := s.store.FindByID(ctx, id)
	if err != nil {
		return core.Transaction{}, err
	}
	existing := before
	if err := in.apply(&existing); err != nil {
		return core.Transaction{}, err
	}
	if existing.IsMaterialized() && existing.IsTemplate() {
		return core.Transaction{}, fmt.Errorf("%w: transaction %d was generated from template %d",
			core.ErrOccurrenceRepeats, id, *existing.ParentTemplateID)
	}
	existing = rescheduled(before, existing)
	if !existing.LastGeneratedDate.Equal(before.LastGeneratedDate) {
		slog.InfoContext(ctx, "Template generation marker moved",
			"id", id,
			"from", before.LastGeneratedDate.String(),
			"to", existing.LastGeneratedDate.String())
	}
	if err := existing.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if err := s.checkCategory(ctx, existing.CategoryID); err != nil {
		return core.Transaction{}, err
	}
	existing.Touch(s.now())

	updated, err := s.store.Update(ctx, existing)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction %d: %w", id, err)
	}

	slog.InfoContext(ctx, "Transaction updated", "id", id)
	publishSync(ctx, s.publisher, updated.ID, updated.UpdatedAt.UnixMilli())
	return updated, nil
}

// Delete removes a transaction. Rows materialized from it keep existing and
// lose their template link.
func (s *TransactionService) Delete(ctx context.Context, id int64) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete transaction %d: %w", id, err)
	}
	slog.InfoContext(ctx, "Transaction deleted", "id", id)
	publishDelete(ctx, s.publisher, id)
	return nil
}

func (s *TransactionService) checkCategory(ctx context.Context, id *int64) error {
	if id == nil || s.categories == nil {
		return nil
	}
	if _, err := s.categories.FindCategory(ctx, *id); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return fmt.Errorf("%w: category %d does not exist", core.ErrInvalidCategory, *id)
		}
		return err
	}
	return nil
}

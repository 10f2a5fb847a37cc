package services

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"mxmoney/internal/core"
	"mxmoney/internal/storage/memory"
)

func newTransactionService(store *memory.Store, pub EventPublisher) *TransactionService {
	s := NewTransactionService(store, store, pub)
	s.now = func() time.Time { return fixedNow }
	return s
}

func TestTransactionService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("defaults to a one-off and publishes", func(t *testing.T) {
		store := memory.New()
		pub := &recordingPublisher{}
		svc := newTransactionService(store, pub)

		created, err := svc.Create(ctx, TransactionInput{
			Description:   "  Groceries ",
			Amount:        m("45.90"),
			EffectiveDate: d("2024-03-01"),
			Kind:          "expense",
		})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if created.ID == 0 || created.Recurrence != core.None || created.Kind != core.Expense {
			t.Errorf("unexpected transaction %+v", created)
		}
		if created.Description != "Groceries" {
			t.Errorf("description = %q", created.Description)
		}
		if len(pub.synced) != 1 || pub.synced[0] != created.ID {
			t.Errorf("published %v", pub.synced)
		}
	})

	t.Run("validation", func(t *testing.T) {
		tests := []struct {
			name string
			in   TransactionInput
			want error
		}{
			{"empty description", TransactionInput{Amount: m("1"), EffectiveDate: d("2024-01-01"), Kind: "INCOME"}, core.ErrEmptyDescription},
			{"zero amount", TransactionInput{Description: "x", EffectiveDate: d("2024-01-01"), Kind: "INCOME"}, core.ErrInvalidAmount},
			{"bad kind", TransactionInput{Description: "x", Amount: m("1"), EffectiveDate: d("2024-01-01"), Kind: "TRANSFER"}, core.ErrInvalidKind},
			{"bad recurrence", TransactionInput{Description: "x", Amount: m("1"), EffectiveDate: d("2024-01-01"), Kind: "INCOME", Recurrence: "HOURLY"}, core.ErrInvalidRecurrence},
			{"missing date", TransactionInput{Description: "x", Amount: m("1"), Kind: "INCOME"}, core.ErrInvalidDate},
			{"end before start", TransactionInput{Description: "x", Amount: m("1"), EffectiveDate: d("2024-02-01"), EndDate: d("2024-01-01"), Kind: "INCOME", Recurrence: "MONTHLY"}, core.ErrEndBeforeStart},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := newTransactionService(memory.New(), nil).Create(ctx, tt.in)
				if !errors.Is(err, tt.want) {
					t.Errorf("expected %v, got %v", tt.want, err)
				}
			})
		}
	})

	t.Run("unknown category", func(t *testing.T) {
		missing := int64(42)
		_, err := newTransactionService(memory.New(), nil).Create(ctx, TransactionInput{
			Description: "x", Amount: m("1"), EffectiveDate: d("2024-01-01"), Kind: "INCOME", CategoryID: &missing,
		})
		if !errors.Is(err, core.ErrInvalidCategory) {
			t.Errorf("expected ErrInvalidCategory, got %v", err)
		}
	})
}

func TestTransactionService_UpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	pub := &recordingPublisher{}
	svc := newTransactionService(store, pub)

	created, err := svc.Create(ctx, TransactionInput{
		Description: "Rent", Amount: m("1000"), EffectiveDate: d("2024-01-01"), Kind: "EXPENSE", Recurrence: "MONTHLY",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	updated, err := svc.Update(ctx, created.ID, TransactionInput{
		Description: "Rent", Amount: m("1100"), EffectiveDate: d("2024-01-01"), Kind: "EXPENSE", Recurrence: "MONTHLY",
		EndDate: d("2024-12-31"),
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !updated.Amount.Equal(m("1100")) || updated.EndDate.String() != "2024-12-31" {
		t.Errorf("unexpected update %+v", updated)
	}

	if _, err := svc.Update(ctx, 999, TransactionInput{}); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	if err := svc.Delete(ctx, created.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := svc.Get(ctx, created.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if len(pub.deleted) != 1 || pub.deleted[0] != created.ID {
		t.Errorf("delete messages %v", pub.deleted)
	}
	if err := svc.Delete(ctx, created.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("second delete: expected ErrNotFound, got %v", err)
	}
}

func TestTransactionService_UpdateTemplateSchedule(t *testing.T) {
	ctx := context.Background()

	gym := TransactionInput{
		Description: "Gym", Amount: m("50"), EffectiveDate: d("2024-01-01"), Kind: "EXPENSE", Recurrence: "MONTHLY",
	}
	setup := func(t *testing.T) (*memory.Store, *TransactionService, core.Transaction) {
		t.Helper()
		store := memory.New()
		svc := newTransactionService(store, nil)
		tpl, err := svc.Create(ctx, gym)
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		n, err := newProcessor(store, nil).GeneratePending(ctx, d("2024-06-15"))
		if err != nil || n != 5 {
			t.Fatalf("GeneratePending = %d, %v; want 5 rows", n, err)
		}
		return store, svc, tpl
	}
	occurrences := func(t *testing.T, store *memory.Store, parent int64) []string {
		t.Helper()
		all, err := store.FindAll(ctx)
		if err != nil {
			t.Fatalf("FindAll: %v", err)
		}
		var out []string
		for _, tx := range all {
			if tx.ParentTemplateID != nil && *tx.ParentTemplateID == parent {
				out = append(out, tx.EffectiveDate.String())
			}
		}
		slices.Sort(out)
		return out
	}

	t.Run("moving the start date restarts generation there", func(t *testing.T) {
		store, svc, tpl := setup(t)

		in := gym
		in.EffectiveDate = d("2024-09-01")
		updated, err := svc.Update(ctx, tpl.ID, in)
		if err != nil {
			t.Fatalf("Update: %v", err)
		}
		if !updated.LastGeneratedDate.IsZero() {
			t.Errorf("last generated = %s, want cleared", updated.LastGeneratedDate)
		}

		n, err := newProcessor(store, nil).GeneratePending(ctx, d("2024-10-15"))
		if err != nil {
			t.Fatalf("GeneratePending: %v", err)
		}
		if n != 1 {
			t.Errorf("created %d rows, want 1", n)
		}
		want := []string{"2024-02-01", "2024-03-01", "2024-04-01", "2024-05-01", "2024-06-01", "2024-10-01"}
		if got := occurrences(t, store, tpl.ID); !slices.Equal(got, want) {
			t.Errorf("occurrences = %v, want %v", got, want)
		}
	})

	t.Run("changing the period restarts generation", func(t *testing.T) {
		_, svc, tpl := setup(t)
		in := gym
		in.Recurrence = "WEEKLY"
		updated, err := svc.Update(ctx, tpl.ID, in)
		if err != nil {
			t.Fatalf("Update: %v", err)
		}
		if !updated.LastGeneratedDate.IsZero() {
			t.Errorf("last generated = %s, want cleared", updated.LastGeneratedDate)
		}
	})

	t.Run("turning the template into a one-off clears the marker", func(t *testing.T) {
		_, svc, tpl := setup(t)
		in := gym
		in.Recurrence = "NONE"
		updated, err := svc.Update(ctx, tpl.ID, in)
		if err != nil {
			t.Fatalf("Update: %v", err)
		}
		if updated.IsTemplate() || !updated.LastGeneratedDate.IsZero() {
			t.Errorf("got recurrence %s, last generated %s", updated.Recurrence, updated.LastGeneratedDate)
		}
	})

	t.Run("an earlier end date clips the marker to the last allowed occurrence", func(t *testing.T) {
		store, svc, tpl := setup(t)
		in := gym
		in.EndDate = d("2024-03-15")
		updated, err := svc.Update(ctx, tpl.ID, in)
		if err != nil {
			t.Fatalf("Update: %v", err)
		}
		if updated.LastGeneratedDate.String() != "2024-03-01" {
			t.Errorf("last generated = %s, want 2024-03-01", updated.LastGeneratedDate)
		}
		if err := updated.Validate(); err != nil {
			t.Errorf("stored template is invalid: %v", err)
		}
		if n, err := newProcessor(store, nil).GeneratePending(ctx, d("2024-12-31")); err != nil || n != 0 {
			t.Errorf("GeneratePending = %d, %v; want nothing past the end date", n, err)
		}
	})

	t.Run("editing other fields keeps the marker", func(t *testing.T) {
		_, svc, tpl := setup(t)
		in := gym
		in.Amount = m("55")
		updated, err := svc.Update(ctx, tpl.ID, in)
		if err != nil {
			t.Fatalf("Update: %v", err)
		}
		if updated.LastGeneratedDate.String() != "2024-06-01" {
			t.Errorf("last generated = %s, want 2024-06-01", updated.LastGeneratedDate)
		}
	})

	t.Run("a generated occurrence cannot become a template", func(t *testing.T) {
		store, svc, tpl := setup(t)
		all, err := store.FindAll(ctx)
		if err != nil {
			t.Fatalf("FindAll: %v", err)
		}
		var occ core.Transaction
		for _, tx := range all {
			if tx.IsMaterialized() {
				occ = tx
				break
			}
		}

		in := TransactionInput{
			Description: "Gym", Amount: m("60"), EffectiveDate: occ.EffectiveDate, Kind: "EXPENSE", Recurrence: "WEEKLY",
		}
		if _, err := svc.Update(ctx, occ.ID, in); !errors.Is(err, core.ErrOccurrenceRepeats) {
			t.Fatalf("expected ErrOccurrenceRepeats, got %v", err)
		}
		if !errors.Is(core.ErrOccurrenceRepeats, core.ErrInvalidArgument) {
			t.Error("ErrOccurrenceRepeats should wrap ErrInvalidArgument")
		}

		in.Recurrence = "NONE"
		updated, err := svc.Update(ctx, occ.ID, in)
		if err != nil {
			t.Fatalf("one-off edit: %v", err)
		}
		if updated.ParentTemplateID == nil || *updated.ParentTemplateID != tpl.ID || updated.IsTemplate() {
			t.Errorf("unexpected occurrence after edit %+v", updated)
		}
	})
}

func TestTransactionService_ListByPeriod(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	seed(t, store,
		oneOff("Jan", "1", "2024-01-15", core.Expense),
		oneOff("Feb", "1", "2024-02-15", core.Expense),
		oneOff("Mar", "1", "2024-03-15", core.Expense),
	)
	svc := newTransactionService(store, nil)

	got, err := svc.ListByPeriod(ctx, d("2024-02-01"), d("2024-03-31"))
	if err != nil {
		t.Fatalf("ListByPeriod: %v", err)
	}
	if len(got) != 2 || got[0].Description != "Mar" {
		t.Errorf("expected Mar and Feb newest first, got %+v", got)
	}

	if _, err := svc.ListByPeriod(ctx, d("2024-03-01"), d("2024-02-01")); !errors.Is(err, core.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for reversed period, got %v", err)
	}
}

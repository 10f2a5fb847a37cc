package services

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"mxmoney/internal/core"
	"mxmoney/internal/storage"
	"mxmoney/internal/storage/memory"
)

func newProcessor(store storage.TransactionStore, pub EventPublisher) *RecurringProcessor {
	p := NewRecurringProcessor(store, pub)
	p.now = func() time.Time { return fixedNow }
	return p
}

func TestRecurringProcessor_GeneratePending(t *testing.T) {
	ctx := context.Background()

	t.Run("monthly subscription catches up", func(t *testing.T) {
		store := memory.New()
		seeded := seed(t, store,
			oneOff("Salary", "1000", "2024-01-01", core.Income),
			template("Netflix", "50", "2024-01-10", core.Expense, core.Monthly),
		)
		pub := &recordingPublisher{}
		balances := newBalanceService(store)

		before, err := balances.BalanceAsOf(ctx, d("2024-07-31"))
		if err != nil {
			t.Fatalf("BalanceAsOf: %v", err)
		}

		n, err := newProcessor(store, pub).GeneratePending(ctx, d("2024-07-31"))
		if err != nil {
			t.Fatalf("GeneratePending: %v", err)
		}
		if n != 6 {
			t.Fatalf("created %d rows, want 6", n)
		}

		after, err := balances.BalanceAsOf(ctx, d("2024-07-31"))
		if err != nil {
			t.Fatalf("BalanceAsOf: %v", err)
		}
		if diff := before.Balance.Sub(after.Balance); !diff.Equal(m("300")) {
			t.Errorf("balance decreased by %s, want 300", diff)
		}

		tpl, err := store.FindByID(ctx, seeded[1].ID)
		if err != nil {
			t.Fatalf("FindByID: %v", err)
		}
		if tpl.LastGeneratedDate.String() != "2024-07-10" {
			t.Errorf("last generated = %s, want 2024-07-10", tpl.LastGeneratedDate)
		}

		rows, _ := store.FindInDateRange(ctx, d("2024-02-01"), d("2024-07-31"))
		var dates []string
		for _, r := range rows {
			if r.ParentTemplateID == nil || *r.ParentTemplateID != seeded[1].ID {
				t.Errorf("row %d has parent %v", r.ID, r.ParentTemplateID)
			}
			if r.IsTemplate() {
				t.Errorf("row %d is a template", r.ID)
			}
			dates = append(dates, r.EffectiveDate.String())
		}
		slices.Sort(dates)
		want := []string{"2024-02-10", "2024-03-10", "2024-04-10", "2024-05-10", "2024-06-10", "2024-07-10"}
		if !slices.Equal(dates, want) {
			t.Errorf("dates = %v, want %v", dates, want)
		}
		if len(pub.synced) != 6 {
			t.Errorf("published %d sync messages, want 6", len(pub.synced))
		}
	})

	t.Run("second pass creates nothing", func(t *testing.T) {
		store := memory.New()
		seed(t, store, template("Gym", "30", "2024-01-01", core.Expense, core.Weekly))
		p := newProcessor(store, nil)

		first, err := p.GeneratePending(ctx, d("2024-02-01"))
		if err != nil {
			t.Fatalf("first pass: %v", err)
		}
		if first != 4 {
			t.Errorf("first pass created %d rows, want 4", first)
		}
		second, err := p.GeneratePending(ctx, d("2024-02-01"))
		if err != nil {
			t.Fatalf("second pass: %v", err)
		}
		if second != 0 {
			t.Errorf("second pass created %d rows", second)
		}
	})

	t.Run("stops at the end date", func(t *testing.T) {
		store := memory.New()
		tpl := template("Course", "100", "2024-01-01", core.Expense, core.Monthly)
		tpl.EndDate = d("2024-03-15")
		seed(t, store, tpl)

		n, err := newProcessor(store, nil).GeneratePending(ctx, d("2024-12-31"))
		if err != nil {
			t.Fatalf("GeneratePending: %v", err)
		}
		if n != 2 {
			t.Errorf("created %d rows, want 2", n)
		}
	})

	t.Run("materialized rows copy the category", func(t *testing.T) {
		store := memory.New()
		cat, err := store.CreateCategory(ctx, core.NewCategory("Streaming", "#6366F1", "", fixedNow))
		if err != nil {
			t.Fatalf("CreateCategory: %v", err)
		}
		tpl := template("Music", "10", "2024-01-05", core.Expense, core.Monthly)
		tpl.CategoryID = &cat.ID
		seed(t, store, tpl)

		if _, err := newProcessor(store, nil).GeneratePending(ctx, d("2024-02-05")); err != nil {
			t.Fatalf("GeneratePending: %v", err)
		}
		rows, _ := store.FindInDateRange(ctx, d("2024-02-05"), d("2024-02-05"))
		if len(rows) != 1 || rows[0].CategoryID == nil || *rows[0].CategoryID != cat.ID {
			t.Fatalf("expected one row in category %d, got %+v", cat.ID, rows)
		}
	})

	t.Run("malformed template does not block the others", func(t *testing.T) {
		store := memory.New()
		seed(t, store,
			template("Broken", "10", "2024-01-01", core.Expense, core.Recurrence("HOURLY")),
			template("Daily", "1", "2024-01-01", core.Expense, core.Daily),
		)
		n, err := newProcessor(store, nil).GeneratePending(ctx, d("2024-01-04"))
		if err != nil {
			t.Fatalf("GeneratePending: %v", err)
		}
		if n != 3 {
			t.Errorf("created %d rows, want 3", n)
		}
	})

	t.Run("publish failures are not fatal", func(t *testing.T) {
		store := memory.New()
		seed(t, store, template("Daily", "1", "2024-01-01", core.Expense, core.Daily))
		pub := &recordingPublisher{err: errors.New("broker unavailable")}
		n, err := newProcessor(store, pub).GeneratePending(ctx, d("2024-01-02"))
		if err != nil || n != 1 {
			t.Errorf("got %d, %v", n, err)
		}
	})

	t.Run("store errors are returned", func(t *testing.T) {
		_, err := newProcessor(&failingStore{}, nil).GeneratePending(ctx, d("2024-01-02"))
		if !errors.Is(err, errStoreDown) {
			t.Errorf("expected store error, got %v", err)
		}
	})

	t.Run("invalid as-of date", func(t *testing.T) {
		_, err := newProcessor(memory.New(), nil).GeneratePending(ctx, core.Date{})
		if !errors.Is(err, core.ErrInvalidDate) {
			t.Errorf("expected ErrInvalidDate, got %v", err)
		}
	})
}

// Scheduled and manual passes may overlap, each with its own processor.
func TestRecurringProcessor_ConcurrentPassesOnSQLite(t *testing.T) {
	ctx := context.Background()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	for _, tpl := range []core.Transaction{
		template("Coffee", "4.50", "2024-01-01", core.Expense, core.Daily),
		template("Rent", "900", "2024-01-10", core.Expense, core.Monthly),
	} {
		if _, err := repo.Create(ctx, tpl); err != nil {
			t.Fatalf("Create %s: %v", tpl.Description, err)
		}
	}

	const passes = 4
	asOf := d("2024-03-01")
	counts := make([]int, passes)
	errs := make([]error, passes)
	var wg sync.WaitGroup
	for i := range passes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			counts[i], errs[i] = newProcessor(repo, nil).GeneratePending(ctx, asOf)
		}()
	}
	wg.Wait()

	total := 0
	for i := range passes {
		if errs[i] != nil {
			t.Fatalf("pass %d: %v", i, errs[i])
		}
		total += counts[i]
	}
	// 30 January + 29 February + 1 March days, and the February rent.
	if total != 61 {
		t.Errorf("passes created %v rows in total %d, want 61", counts, total)
	}

	all, err := repo.FindAll(ctx)
	if err != nil {
		t.Fatalf("FindAll: %v", err)
	}
	type key struct {
		parent int64
		date   string
	}
	seen := make(map[key]bool)
	for _, tx := range all {
		if !tx.IsMaterialized() {
			continue
		}
		k := key{*tx.ParentTemplateID, tx.EffectiveDate.String()}
		if seen[k] {
			t.Errorf("duplicate occurrence %v", k)
		}
		seen[k] = true
	}
	if len(seen) != 61 {
		t.Errorf("stored %d occurrences, want 61", len(seen))
	}

	n, err := newProcessor(repo, nil).GeneratePending(ctx, asOf)
	if err != nil || n != 0 {
		t.Errorf("follow-up pass = %d, %v; want nothing", n, err)
	}
}

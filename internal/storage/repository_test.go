package storage

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"mxmoney/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

var now = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func mustCreate(t *testing.T, repo *SQLiteRepository, tx core.Transaction) core.Transaction {
	t.Helper()
	created, err := repo.Create(context.Background(), tx)
	if err != nil {
		t.Fatalf("Create(%s) error = %v", tx.Description, err)
	}
	return created
}

func TestSQLiteRepository_SumAmount(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	got, err := repo.SumAmount(ctx, core.Income, core.NewDate(2025, 12, 31))
	if err != nil {
		t.Fatalf("SumAmount() error = %v", err)
	}
	if !got.IsZero() {
		t.Fatalf("SumAmount() on empty store = %s, want 0.00", got)
	}

	mustCreate(t, repo, core.NewTransaction("Salary", core.MoneyFromCents(300000), core.NewDate(2025, 1, 5), core.Income, now))
	mustCreate(t, repo, core.NewTransaction("Bonus", core.MoneyFromCents(50055), core.NewDate(2025, 2, 5), core.Income, now))
	mustCreate(t, repo, core.NewTransaction("Rent", core.MoneyFromCents(120000), core.NewDate(2025, 1, 10), core.Expense, now))

	tests := []struct {
		kind core.Kind
		upTo core.Date
		want string
	}{
		{core.Income, core.NewDate(2025, 1, 4), "0.00"},
		{core.Income, core.NewDate(2025, 1, 5), "3000.00"},
		{core.Income, core.NewDate(2025, 2, 5), "3500.55"},
		{core.Expense, core.NewDate(2025, 2, 5), "1200.00"},
	}
	for _, tt := range tests {
		got, err := repo.SumAmount(ctx, tt.kind, tt.upTo)
		if err != nil {
			t.Fatalf("SumAmount() error = %v", err)
		}
		if got.String() != tt.want {
			t.Errorf("SumAmount(%s, %s) = %s, want %s", tt.kind, tt.upTo, got, tt.want)
		}
	}
}

func TestSQLiteRepository_ReadLedger(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	mustCreate(t, repo, core.NewTransaction("Salary", core.MoneyFromCents(300000), core.NewDate(2025, 1, 5), core.Income, now))
	mustCreate(t, repo, core.NewTransaction("Rent", core.MoneyFromCents(120000), core.NewDate(2025, 1, 10), core.Expense, now))
	mustCreate(t, repo, core.NewTransaction("Dinner", core.MoneyFromCents(8000), core.NewDate(2025, 2, 3), core.Expense, now))
	mustCreate(t, repo, core.NewTransaction("Refund", core.MoneyFromCents(1500), core.NewDate(2025, 3, 1), core.Income, now))

	snap, err := repo.ReadLedger(ctx, core.NewDate(2025, 1, 31), core.NewDate(2025, 2, 1), core.NewDate(2025, 2, 28))
	if err != nil {
		t.Fatalf("ReadLedger() error = %v", err)
	}
	if snap.Income.String() != "3000.00" || snap.Expense.String() != "1200.00" {
		t.Errorf("totals = %s / %s, want 3000.00 / 1200.00", snap.Income, snap.Expense)
	}
	if len(snap.Window) != 1 || snap.Window[0].Description != "Dinner" {
		t.Errorf("window = %+v, want only Dinner", snap.Window)
	}
	if len(snap.All) != 4 {
		t.Errorf("all holds %d rows, want 4", len(snap.All))
	}
}

func TestSQLiteRepository_TransactionCRUD(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	cat, err := repo.CreateCategory(ctx, core.NewCategory("Streaming", "#6366F1", "tv", now))
	if err != nil {
		t.Fatalf("CreateCategory() error = %v", err)
	}

	tmpl := core.NewTransaction("Netflix", core.MoneyFromCents(5000), core.NewDate(2025, 1, 10), core.Expense, now)
	tmpl.Recurrence = core.Monthly
	tmpl.EndDate = core.NewDate(2025, 12, 31)
	tmpl.CategoryID = &cat.ID
	created := mustCreate(t, repo, tmpl)

	if created.ID == 0 {
		t.Fatal("Create() did not assign an ID")
	}
	if created.Category == nil || created.Category.Name != "Streaming" {
		t.Fatalf("Create() category = %+v, want Streaming", created.Category)
	}
	if !created.EndDate.Equal(tmpl.EndDate) || created.Recurrence != core.Monthly {
		t.Errorf("Create() = %+v", created)
	}

	created.Amount = core.MoneyFromCents(5590)
	created.Touch(now.Add(time.Hour))
	updated, err := repo.Update(ctx, created)
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.Amount.String() != "55.90" {
		t.Errorf("Update() amount = %s, want 55.90", updated.Amount)
	}

	inRange, err := repo.FindInDateRange(ctx, core.NewDate(2025, 1, 1), core.NewDate(2025, 1, 31))
	if err != nil || len(inRange) != 1 {
		t.Fatalf("FindInDateRange() = %v, %v", inRange, err)
	}

	if err := repo.Delete(ctx, created.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := repo.FindByID(ctx, created.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("FindByID() after delete error = %v, want ErrNotFound", err)
	}
	if err := repo.Delete(ctx, created.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("Delete() twice error = %v, want ErrNotFound", err)
	}
}

func TestSQLiteRepository_MaterializeBatchIsIdempotent(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	tmpl := core.NewTransaction("Gym", core.MoneyFromCents(9000), core.NewDate(2025, 1, 15), core.Expense, now)
	tmpl.Recurrence = core.Monthly
	tmpl = mustCreate(t, repo, tmpl)

	rows := []core.Transaction{
		core.Materialize(tmpl, core.NewDate(2025, 2, 15), now),
		core.Materialize(tmpl, core.NewDate(2025, 3, 15), now),
	}
	advanced := tmpl
	advanced.LastGeneratedDate = core.NewDate(2025, 3, 15)

	inserted, err := repo.MaterializeBatch(ctx, []core.Transaction{advanced}, rows)
	if err != nil {
		t.Fatalf("MaterializeBatch() error = %v", err)
	}
	if len(inserted) != 2 {
		t.Fatalf("MaterializeBatch() inserted %d rows, want 2", len(inserted))
	}

	again, err := repo.MaterializeBatch(ctx, []core.Transaction{advanced}, rows)
	if err != nil {
		t.Fatalf("MaterializeBatch() second call error = %v", err)
	}
	if len(again) != 0 {
		t.Errorf("MaterializeBatch() second call inserted %d rows, want 0", len(again))
	}

	got, err := repo.FindByID(ctx, tmpl.ID)
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if !got.LastGeneratedDate.Equal(core.NewDate(2025, 3, 15)) {
		t.Errorf("LastGeneratedDate = %s, want 2025-03-15", got.LastGeneratedDate)
	}

	all, _ := repo.FindAll(ctx)
	if len(all) != 3 {
		t.Fatalf("FindAll() = %d rows, want 3", len(all))
	}
	for _, row := range all {
		if row.ID == tmpl.ID {
			continue
		}
		if row.ParentTemplateID == nil || *row.ParentTemplateID != tmpl.ID || row.Recurrence != core.None {
			t.Errorf("occurrence %+v not linked to template %d", row, tmpl.ID)
		}
	}
}

func TestSQLiteRepository_CategoryNamesAreUniqueIgnoringCase(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if _, err := repo.CreateCategory(ctx, core.NewCategory("Food", "", "", now)); err != nil {
		t.Fatalf("CreateCategory() error = %v", err)
	}
	if _, err := repo.CreateCategory(ctx, core.NewCategory("FOOD", "", "", now)); !errors.Is(err, core.ErrConflict) {
		t.Fatalf("CreateCategory() duplicate error = %v, want ErrConflict", err)
	}
	c, err := repo.FindCategoryByName(ctx, "food")
	if err != nil || c.Name != "Food" {
		t.Fatalf("FindCategoryByName() = %+v, %v", c, err)
	}
}

func TestSQLiteRepository_DeleteCategoryDetachesTransactions(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	cat, _ := repo.CreateCategory(ctx, core.NewCategory("Travel", "", "", now))
	tx := core.NewTransaction("Train", core.MoneyFromCents(4500), core.NewDate(2025, 2, 1), core.Expense, now)
	tx.CategoryID = &cat.ID
	tx = mustCreate(t, repo, tx)

	if err := repo.DeleteCategory(ctx, cat.ID); err != nil {
		t.Fatalf("DeleteCategory() error = %v", err)
	}
	got, err := repo.FindByID(ctx, tx.ID)
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if got.CategoryID != nil || got.Category != nil {
		t.Errorf("transaction still references deleted category: %+v", got)
	}
}

func TestSQLiteRepository_SyncStatus(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	a := mustCreate(t, repo, core.NewTransaction("A", core.MoneyFromCents(100), core.NewDate(2025, 1, 1), core.Expense, now))
	b := mustCreate(t, repo, core.NewTransaction("B", core.MoneyFromCents(100), core.NewDate(2025, 1, 2), core.Expense, now))

	pending, err := repo.PendingSync(ctx, 10)
	if err != nil || len(pending) != 2 {
		t.Fatalf("PendingSync() = %d rows, %v; want 2", len(pending), err)
	}

	if err := repo.MarkSynced(ctx, a.ID); err != nil {
		t.Fatalf("MarkSynced() error = %v", err)
	}
	if err := repo.MarkSyncError(ctx, b.ID); err != nil {
		t.Fatalf("MarkSyncError() error = %v", err)
	}

	pending, _ = repo.PendingSync(ctx, 10)
	if len(pending) != 1 || pending[0].ID != b.ID {
		t.Fatalf("PendingSync() after marking = %+v, want only %d", pending, b.ID)
	}
}

func TestSQLiteRepository_BackupAndRestore(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	mustCreate(t, repo, core.NewTransaction("Before backup", core.MoneyFromCents(1000), core.NewDate(2025, 1, 1), core.Income, now))

	snapshot := filepath.Join(t.TempDir(), "snapshot.db")
	if err := repo.BackupTo(ctx, snapshot); err != nil {
		t.Fatalf("BackupTo() error = %v", err)
	}
	if err := repo.BackupTo(ctx, snapshot); err == nil {
		t.Error("BackupTo() over an existing file should fail")
	}

	mustCreate(t, repo, core.NewTransaction("After backup", core.MoneyFromCents(2000), core.NewDate(2025, 1, 2), core.Income, now))

	if err := repo.RestoreFrom(ctx, snapshot); err != nil {
		t.Fatalf("RestoreFrom() error = %v", err)
	}

	all, err := repo.FindAll(ctx)
	if err != nil {
		t.Fatalf("FindAll() error = %v", err)
	}
	if len(all) != 1 || all[0].Description != "Before backup" {
		t.Fatalf("after restore got %+v, want only 'Before backup'", all)
	}
}

func TestSQLiteRepository_RestoreLeavesSourceUntouched(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	mustCreate(t, repo, core.NewTransaction("Current", core.MoneyFromCents(1000), core.NewDate(2025, 1, 1), core.Income, now))

	t.Run("up to date snapshot", func(t *testing.T) {
		dir := t.TempDir()
		snapshot := filepath.Join(dir, "snapshot.db")
		if err := repo.BackupTo(ctx, snapshot); err != nil {
			t.Fatalf("BackupTo() error = %v", err)
		}
		before, err := os.ReadFile(snapshot)
		if err != nil {
			t.Fatal(err)
		}

		if err := repo.RestoreFrom(ctx, snapshot); err != nil {
			t.Fatalf("RestoreFrom() error = %v", err)
		}

		after, err := os.ReadFile(snapshot)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(before, after) {
			t.Error("snapshot file changed during restore")
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			t.Fatal(err)
		}
		if len(entries) != 1 {
			t.Errorf("snapshot directory holds %d entries, want 1", len(entries))
		}
	})

	t.Run("schema-less file is upgraded on a copy", func(t *testing.T) {
		legacy := filepath.Join(t.TempDir(), "legacy.db")
		db, err := sql.Open("sqlite", legacy)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := db.Exec(`CREATE TABLE notes (id INTEGER PRIMARY KEY)`); err != nil {
			t.Fatal(err)
		}
		db.Close()

		if err := repo.RestoreFrom(ctx, legacy); err != nil {
			t.Fatalf("RestoreFrom() error = %v", err)
		}
		all, err := repo.FindAll(ctx)
		if err != nil {
			t.Fatalf("FindAll() error = %v", err)
		}
		if len(all) != 0 {
			t.Errorf("restoring an empty ledger left %d rows", len(all))
		}

		db, err = sql.Open("sqlite", legacy)
		if err != nil {
			t.Fatal(err)
		}
		defer db.Close()
		var tables int
		if err := db.QueryRow(`SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name <> 'notes'`).Scan(&tables); err != nil {
			t.Fatal(err)
		}
		if tables != 0 {
			t.Errorf("source gained %d tables, want none", tables)
		}
	})
}

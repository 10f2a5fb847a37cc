package storage

import (
	"context"

	"mxmoney/internal/core"
)

// Ports implemented by the SQLite repository and the in-memory store.
type (
	// TransactionStore is everything the balance engine and the transaction
	// service read from or write to.
	TransactionStore interface {
		// SumAmount totals the amounts of the given kind with effective date <= upTo.
		// An empty set sums to zero.
		SumAmount(ctx context.Context, kind core.Kind, upTo core.Date) (core.Money, error)
		// FindAll returns every row, newest effective date first.
		FindAll(ctx context.Context) ([]core.Transaction, error)
		// FindInDateRange returns rows with effective date in [start, end], newest first.
		FindInDateRange(ctx context.Context, start, end core.Date) ([]core.Transaction, error)
		FindByID(ctx context.Context, id int64) (core.Transaction, error)
		Create(ctx context.Context, t core.Transaction) (core.Transaction, error)
		Update(ctx context.Context, t core.Transaction) (core.Transaction, error)
		Delete(ctx context.Context, id int64) error
		// ReadLedger returns, from one consistent read, the income and expense
		// totals up to upTo, the rows dated in [start, end] and every row.
		ReadLedger(ctx context.Context, upTo, start, end core.Date) (LedgerSnapshot, error)
		// MaterializeBatch stores the LastGeneratedDate of every template in
		// updates and inserts rows, all or nothing. A row whose
		// (ParentTemplateID, EffectiveDate) already exists is skipped. It
		// returns the rows actually inserted.
		MaterializeBatch(ctx context.Context, updates []core.Transaction, rows []core.Transaction) ([]core.Transaction, error)
	}

	CategoryStore interface {
		ListCategories(ctx context.Context) ([]core.Category, error)
		FindCategory(ctx context.Context, id int64) (core.Category, error)
		// FindCategoryByName matches case-insensitively.
		FindCategoryByName(ctx context.Context, name string) (core.Category, error)
		CreateCategory(ctx context.Context, c core.Category) (core.Category, error)
		UpdateCategory(ctx context.Context, c core.Category) (core.Category, error)
		DeleteCategory(ctx context.Context, id int64) error
	}

	// SyncTracker records which rows still have to be exported to the ledger sheet.
	SyncTracker interface {
		PendingSync(ctx context.Context, limit int) ([]core.Transaction, error)
		MarkSynced(ctx context.Context, id int64) error
		MarkSyncError(ctx context.Context, id int64) error
	}

	Store interface {
		TransactionStore
		CategoryStore
		SyncTracker
		Close() error
	}
)

// LedgerSnapshot is everything a balance projection reads from the store.
type LedgerSnapshot struct {
	Income  core.Money
	Expense core.Money
	Window  []core.Transaction
	All     []core.Transaction
}

// Sync states of a transaction row.
const (
	SyncPending = "pending"
	SyncSynced  = "synced"
	SyncError   = "error"
)

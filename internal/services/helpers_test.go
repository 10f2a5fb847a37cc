package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"mxmoney/internal/core"
	"mxmoney/internal/storage"
	"mxmoney/internal/storage/memory"
)

var fixedNow = time.Date(2025, 1, 15, 9, 30, 0, 0, time.UTC)

func d(s string) core.Date { return core.MustParseDate(s) }

func m(s string) core.Money {
	v, err := core.ParseMoney(s)
	if err != nil {
		panic(err)
	}
	return v
}

func oneOff(desc, amount, date string, kind core.Kind) core.Transaction {
	return core.NewTransaction(desc, m(amount), d(date), kind, fixedNow)
}

func template(desc, amount, date string, kind core.Kind, r core.Recurrence) core.Transaction {
	t := oneOff(desc, amount, date, kind)
	t.Recurrence = r
	return t
}

func seed(t *testing.T, store *memory.Store, txs ...core.Transaction) []core.Transaction {
	t.Helper()
	out := make([]core.Transaction, 0, len(txs))
	for _, tx := range txs {
		created, err := store.Create(context.Background(), tx)
		if err != nil {
			t.Fatalf("seed %q: %v", tx.Description, err)
		}
		out = append(out, created)
	}
	return out
}

func dateStrings(ds []core.Date) []string {
	out := make([]string, len(ds))
	for i, v := range ds {
		out[i] = v.String()
	}
	return out
}

// failingStore fails every call so tests can prove validation happens first.
type failingStore struct {
	storage.TransactionStore
	calls int
}

var errStoreDown = errors.New("store down")

func (f *failingStore) SumAmount(context.Context, core.Kind, core.Date) (core.Money, error) {
	f.calls++
	return core.Money{}, errStoreDown
}

func (f *failingStore) FindAll(context.Context) ([]core.Transaction, error) {
	f.calls++
	return nil, errStoreDown
}

func (f *failingStore) FindInDateRange(context.Context, core.Date, core.Date) ([]core.Transaction, error) {
	f.calls++
	return nil, errStoreDown
}

func (f *failingStore) ReadLedger(context.Context, core.Date, core.Date, core.Date) (storage.LedgerSnapshot, error) {
	f.calls++
	return storage.LedgerSnapshot{}, errStoreDown
}

type recordingPublisher struct {
	synced  []int64
	deleted []int64
	err     error
}

func (p *recordingPublisher) PublishTransactionSync(_ context.Context, id, _ int64) error {
	p.synced = append(p.synced, id)
	return p.err
}

func (p *recordingPublisher) PublishTransactionDelete(_ context.Context, id int64) error {
	p.deleted = append(p.deleted, id)
	return p.err
}

// Package memory is an in-process Store used for development and tests.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"mxmoney/internal/core"
	"mxmoney/internal/storage"
)

type Store struct {
	mu        sync.Mutex
	nextTxID  int64
	nextCat   int64
	txs       map[int64]core.Transaction
	syncState map[int64]string
	cats      map[int64]core.Category
}

var _ storage.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		txs:       make(map[int64]core.Transaction),
		syncState: make(map[int64]string),
		cats:      make(map[int64]core.Category),
	}
}

func (s *Store) Close() error { return nil }

// withCategory attaches the category snapshot the way a join would.
func (s *Store) withCategory(t core.Transaction) core.Transaction {
	t.Category = nil
	if t.CategoryID != nil {
		if c, ok := s.cats[*t.CategoryID]; ok {
			t.Category = &c
		}
	}
	return t
}

func (s *Store) sorted(keep func(core.Transaction) bool) []core.Transaction {
	var out []core.Transaction
	for _, t := range s.txs {
		if keep(t) {
			out = append(out, s.withCategory(t))
		}
	}
	slices.SortFunc(out, func(a, b core.Transaction) int {
		if c := b.EffectiveDate.Compare(a.EffectiveDate); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return out
}

func (s *Store) SumAmount(_ context.Context, kind core.Kind, upTo core.Date) (core.Money, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total core.Money
	for _, t := range s.txs {
		if t.Kind == kind && !t.EffectiveDate.After(upTo) {
			total = total.Add(t.Amount)
		}
	}
	return total, nil
}

func (s *Store) FindAll(_ context.Context) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sorted(func(core.Transaction) bool { return true }), nil
}

func (s *Store) FindInDateRange(_ context.Context, start, end core.Date) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sorted(func(t core.Transaction) bool {
		return !t.EffectiveDate.Before(start) && !t.EffectiveDate.After(end)
	}), nil
}

func (s *Store) ReadLedger(_ context.Context, upTo, start, end core.Date) (storage.LedgerSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var snap storage.LedgerSnapshot
	for _, t := range s.txs {
		if t.EffectiveDate.After(upTo) {
			continue
		}
		switch t.Kind {
		case core.Income:
			snap.Income = snap.Income.Add(t.Amount)
		case core.Expense:
			snap.Expense = snap.Expense.Add(t.Amount)
		}
	}
	snap.Window = s.sorted(func(t core.Transaction) bool {
		return !t.EffectiveDate.Before(start) && !t.EffectiveDate.After(end)
	})
	snap.All = s.sorted(func(core.Transaction) bool { return true })
	return snap, nil
}

func (s *Store) FindByID(_ context.Context, id int64) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.txs[id]
	if !ok {
		return core.Transaction{}, fmt.Errorf("transaction %d: %w", id, core.ErrNotFound)
	}
	return s.withCategory(t), nil
}

func (s *Store) checkCategory(id *int64) error {
	if id == nil {
		return nil
	}
	if _, ok := s.cats[*id]; !ok {
		return fmt.Errorf("%w: referenced row does not exist", core.ErrInvalidArgument)
	}
	return nil
}

func (s *Store) insert(t core.Transaction) core.Transaction {
	s.nextTxID++
	t.ID = s.nextTxID
	t.Category = nil
	s.txs[t.ID] = t
	s.syncState[t.ID] = storage.SyncPending
	return t
}

func (s *Store) Create(_ context.Context, t core.Transaction) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkCategory(t.CategoryID); err != nil {
		return core.Transaction{}, err
	}
	return s.withCategory(s.insert(t)), nil
}

func (s *Store) Update(_ context.Context, t core.Transaction) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.txs[t.ID]
	if !ok {
		return core.Transaction{}, fmt.Errorf("transaction %d: %w", t.ID, core.ErrNotFound)
	}
	if err := s.checkCategory(t.CategoryID); err != nil {
		return core.Transaction{}, err
	}
	t.ParentTemplateID = old.ParentTemplateID
	t.CreatedAt = old.CreatedAt
	t.Category = nil
	s.txs[t.ID] = t
	s.syncState[t.ID] = storage.SyncPending
	return s.withCategory(t), nil
}

func (s *Store) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.txs[id]; !ok {
		return fmt.Errorf("transaction %d: %w", id, core.ErrNotFound)
	}
	delete(s.txs, id)
	delete(s.syncState, id)
	for k, t := range s.txs {
		if t.ParentTemplateID != nil && *t.ParentTemplateID == id {
			t.ParentTemplateID = nil
			s.txs[k] = t
		}
	}
	return nil
}

func (s *Store) MaterializeBatch(_ context.Context, updates []core.Transaction, rows []core.Transaction) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range updates {
		if _, ok := s.txs[u.ID]; !ok {
			return nil, fmt.Errorf("advance template %d: %w", u.ID, core.ErrNotFound)
		}
	}

	type occurrence struct {
		parent int64
		date   string
	}
	seen := make(map[occurrence]bool)
	for _, t := range s.txs {
		if t.ParentTemplateID != nil {
			seen[occurrence{*t.ParentTemplateID, t.EffectiveDate.String()}] = true
		}
	}

	for _, u := range updates {
		t := s.txs[u.ID]
		t.LastGeneratedDate = u.LastGeneratedDate
		t.UpdatedAt = u.UpdatedAt
		s.txs[u.ID] = t
	}

	inserted := make([]core.Transaction, 0, len(rows))
	for _, row := range rows {
		if row.ParentTemplateID != nil {
			key := occurrence{*row.ParentTemplateID, row.EffectiveDate.String()}
			if seen[key] {
				continue
			}
			seen[key] = true
		}
		inserted = append(inserted, s.insert(row))
	}
	return inserted, nil
}

func (s *Store) PendingSync(_ context.Context, limit int) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Transaction
	for id, status := range s.syncState {
		if status != storage.SyncSynced {
			out = append(out, s.withCategory(s.txs[id]))
		}
	}
	slices.SortFunc(out, func(a, b core.Transaction) int { return cmp.Compare(a.ID, b.ID) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) MarkSynced(_ context.Context, id int64) error {
	return s.setSync(id, storage.SyncSynced)
}

func (s *Store) MarkSyncError(_ context.Context, id int64) error {
	return s.setSync(id, storage.SyncError)
}

func (s *Store) setSync(id int64, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.txs[id]; !ok {
		return fmt.Errorf("transaction %d: %w", id, core.ErrNotFound)
	}
	s.syncState[id] = status
	return nil
}

// SyncStatus reports the export state of a row.
func (s *Store) SyncStatus(id int64) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.syncState[id]
}

// Categories

func (s *Store) ListCategories(_ context.Context) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Category, 0, len(s.cats))
	for _, c := range s.cats {
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b core.Category) int {
		return cmp.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})
	return out, nil
}

func (s *Store) FindCategory(_ context.Context, id int64) (core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cats[id]
	if !ok {
		return core.Category{}, fmt.Errorf("category %d: %w", id, core.ErrNotFound)
	}
	return c, nil
}

func (s *Store) FindCategoryByName(_ context.Context, name string) (core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.byName(name); ok {
		return c, nil
	}
	return core.Category{}, fmt.Errorf("category %q: %w", name, core.ErrNotFound)
}

func (s *Store) byName(name string) (core.Category, bool) {
	name = strings.TrimSpace(name)
	for _, c := range s.cats {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return core.Category{}, false
}

func (s *Store) CreateCategory(_ context.Context, c core.Category) (core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.byName(c.Name); dup {
		return core.Category{}, fmt.Errorf("create category %q: %w", c.Name, core.ErrConflict)
	}
	s.nextCat++
	c.ID = s.nextCat
	s.cats[c.ID] = c
	return c, nil
}

func (s *Store) UpdateCategory(_ context.Context, c core.Category) (core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.cats[c.ID]
	if !ok {
		return core.Category{}, fmt.Errorf("category %d: %w", c.ID, core.ErrNotFound)
	}
	if other, dup := s.byName(c.Name); dup && other.ID != c.ID {
		return core.Category{}, fmt.Errorf("update category %q: %w", c.Name, core.ErrConflict)
	}
	c.CreatedAt = old.CreatedAt
	s.cats[c.ID] = c
	return c, nil
}

func (s *Store) DeleteCategory(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cats[id]; !ok {
		return fmt.Errorf("category %d: %w", id, core.ErrNotFound)
	}
	delete(s.cats, id)
	for k, t := range s.txs {
		if t.CategoryID != nil && *t.CategoryID == id {
			t.CategoryID = nil
			s.txs[k] = t
		}
	}
	return nil
}

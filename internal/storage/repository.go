package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"mxmoney/internal/core"

	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

type SQLiteRepository struct {
	db   *sql.DB
	path string
}

var _ Store = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, path: dbPath}, nil
}

func dsn(path string) string {
	return path + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Path returns the database file the repository was opened on.
func (r *SQLiteRepository) Path() string {
	return r.path
}

// Ping checks the database connection.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

const selectTransaction = `
SELECT t.id, t.description, t.amount_cents, t.effective_date, t.kind, t.recurrence,
       t.end_date, t.last_generated_date, t.parent_template_id, t.category_id,
       t.created_at, t.updated_at,
       c.id, c.name, c.color, c.icon, c.created_at, c.updated_at
FROM transactions t
LEFT JOIN categories c ON c.id = t.category_id`

type scanner interface {
	Scan(dest ...any) error
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func scanTransaction(sc scanner) (core.Transaction, error) {
	var (
		t                   core.Transaction
		cents               int64
		eff, kind, rec      string
		created, updated    string
		end, last           sql.NullString
		parent, categoryID  sql.NullInt64
		catID               sql.NullInt64
		catName, catColor   sql.NullString
		catIcon, catCreated sql.NullString
		catUpdated          sql.NullString
	)
	err := sc.Scan(&t.ID, &t.Description, &cents, &eff, &kind, &rec,
		&end, &last, &parent, &categoryID, &created, &updated,
		&catID, &catName, &catColor, &catIcon, &catCreated, &catUpdated)
	if err != nil {
		return core.Transaction{}, err
	}

	t.Amount = core.MoneyFromCents(cents)
	t.Kind = core.Kind(kind)
	t.Recurrence = core.Recurrence(rec)
	if t.EffectiveDate, err = core.ParseDate(eff); err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %d: %w", t.ID, err)
	}
	if t.EndDate, err = parseNullDate(end); err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %d: %w", t.ID, err)
	}
	if t.LastGeneratedDate, err = parseNullDate(last); err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %d: %w", t.ID, err)
	}
	if parent.Valid {
		id := parent.Int64
		t.ParentTemplateID = &id
	}
	if categoryID.Valid {
		id := categoryID.Int64
		t.CategoryID = &id
	}
	t.CreatedAt = parseTime(created)
	t.UpdatedAt = parseTime(updated)

	if catID.Valid {
		t.Category = &core.Category{
			ID:        catID.Int64,
			Name:      catName.String,
			Color:     catColor.String,
			Icon:      catIcon.String,
			CreatedAt: parseTime(catCreated.String),
			UpdatedAt: parseTime(catUpdated.String),
		}
	}
	return t, nil
}

func queryTransactions(ctx context.Context, q querier, query string, args ...any) ([]core.Transaction, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) SumAmount(ctx context.Context, kind core.Kind, upTo core.Date) (core.Money, error) {
	return sumAmount(ctx, r.db, kind, upTo)
}

func sumAmount(ctx context.Context, q querier, kind core.Kind, upTo core.Date) (core.Money, error) {
	var cents int64
	err := q.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount_cents), 0) FROM transactions WHERE kind = ? AND effective_date <= ?`,
		string(kind), upTo.String()).Scan(&cents)
	if err != nil {
		return core.Money{}, fmt.Errorf("sum %s up to %s: %w", kind, upTo, err)
	}
	return core.MoneyFromCents(cents), nil
}

func (r *SQLiteRepository) FindAll(ctx context.Context) ([]core.Transaction, error) {
	out, err := queryTransactions(ctx, r.db, selectTransaction+` ORDER BY t.effective_date DESC, t.id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) FindInDateRange(ctx context.Context, start, end core.Date) ([]core.Transaction, error) {
	out, err := queryTransactions(ctx, r.db,
		selectTransaction+` WHERE t.effective_date BETWEEN ? AND ? ORDER BY t.effective_date DESC, t.id DESC`,
		start.String(), end.String())
	if err != nil {
		return nil, fmt.Errorf("list transactions between %s and %s: %w", start, end, err)
	}
	return out, nil
}

// ReadLedger runs its queries inside one transaction so a materialization
// committing meanwhile is seen entirely or not at all.
func (r *SQLiteRepository) ReadLedger(ctx context.Context, upTo, start, end core.Date) (LedgerSnapshot, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return LedgerSnapshot{}, fmt.Errorf("begin ledger read: %w", err)
	}
	defer tx.Rollback()

	var snap LedgerSnapshot
	if snap.Income, err = sumAmount(ctx, tx, core.Income, upTo); err != nil {
		return LedgerSnapshot{}, err
	}
	if snap.Expense, err = sumAmount(ctx, tx, core.Expense, upTo); err != nil {
		return LedgerSnapshot{}, err
	}
	if snap.Window, err = queryTransactions(ctx, tx,
		selectTransaction+` WHERE t.effective_date BETWEEN ? AND ? ORDER BY t.effective_date DESC, t.id DESC`,
		start.String(), end.String()); err != nil {
		return LedgerSnapshot{}, fmt.Errorf("list transactions between %s and %s: %w", start, end, err)
	}
	if snap.All, err = queryTransactions(ctx, tx, selectTransaction+` ORDER BY t.effective_date DESC, t.id DESC`); err != nil {
		return LedgerSnapshot{}, fmt.Errorf("list transactions: %w", err)
	}
	return snap, nil
}

func (r *SQLiteRepository) FindByID(ctx context.Context, id int64) (core.Transaction, error) {
	t, err := scanTransaction(r.db.QueryRowContext(ctx, selectTransaction+` WHERE t.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, fmt.Errorf("transaction %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction %d: %w", id, err)
	}
	return t, nil
}

const insertTransaction = `
INSERT INTO transactions (description, amount_cents, effective_date, kind, recurrence,
    end_date, last_generated_date, parent_template_id, category_id, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func insertArgs(t core.Transaction) []any {
	return []any{
		t.Description, t.Amount.Cents(), t.EffectiveDate.String(), string(t.Kind), string(t.Recurrence),
		nullDate(t.EndDate), nullDate(t.LastGeneratedDate), nullID(t.ParentTemplateID), nullID(t.CategoryID),
		formatTime(t.CreatedAt), formatTime(t.UpdatedAt),
	}
}

func (r *SQLiteRepository) Create(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	res, err := r.db.ExecContext(ctx, insertTransaction, insertArgs(t)...)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", translate(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved to SQLite",
		"id", id,
		"description", t.Description,
		"amount", t.Amount.String(),
		"type", t.Kind,
		"recurrence", t.Recurrence)

	return r.FindByID(ctx, id)
}

func (r *SQLiteRepository) Update(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	res, err := r.db.ExecContext(ctx, `
UPDATE transactions
SET description = ?, amount_cents = ?, effective_date = ?, kind = ?, recurrence = ?,
    end_date = ?, last_generated_date = ?, category_id = ?, updated_at = ?,
    sync_status = 'pending', version = version + 1
WHERE id = ?`,
		t.Description, t.Amount.Cents(), t.EffectiveDate.String(), string(t.Kind), string(t.Recurrence),
		nullDate(t.EndDate), nullDate(t.LastGeneratedDate), nullID(t.CategoryID), formatTime(t.UpdatedAt),
		t.ID)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction %d: %w", t.ID, translate(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.Transaction{}, fmt.Errorf("transaction %d: %w", t.ID, core.ErrNotFound)
	}
	return r.FindByID(ctx, t.ID)
}

func (r *SQLiteRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete transaction %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("transaction %d: %w", id, core.ErrNotFound)
	}
	slog.InfoContext(ctx, "Transaction deleted from SQLite", "id", id)
	return nil
}

func (r *SQLiteRepository) MaterializeBatch(ctx context.Context, updates []core.Transaction, rows []core.Transaction) ([]core.Transaction, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin materialization: %w", err)
	}
	defer tx.Rollback()

	for _, t := range updates {
		if _, err := tx.ExecContext(ctx,
			`UPDATE transactions SET last_generated_date = ?, updated_at = ? WHERE id = ?`,
			nullDate(t.LastGeneratedDate), formatTime(t.UpdatedAt), t.ID); err != nil {
			return nil, fmt.Errorf("advance template %d: %w", t.ID, err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, insertTransaction+`
ON CONFLICT (parent_template_id, effective_date) WHERE parent_template_id IS NOT NULL DO NOTHING`)
	if err != nil {
		return nil, fmt.Errorf("prepare occurrence insert: %w", err)
	}
	defer stmt.Close()

	inserted := make([]core.Transaction, 0, len(rows))
	for _, row := range rows {
		res, err := stmt.ExecContext(ctx, insertArgs(row)...)
		if err != nil {
			return nil, fmt.Errorf("insert occurrence of template %d on %s: %w",
				derefID(row.ParentTemplateID), row.EffectiveDate, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			continue
		}
		if row.ID, err = res.LastInsertId(); err != nil {
			return nil, fmt.Errorf("insert occurrence: %w", err)
		}
		inserted = append(inserted, row)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit materialization: %w", err)
	}
	return inserted, nil
}

func (r *SQLiteRepository) PendingSync(ctx context.Context, limit int) ([]core.Transaction, error) {
	out, err := queryTransactions(ctx, r.db,
		selectTransaction+` WHERE t.sync_status != ? ORDER BY t.id ASC LIMIT ?`, SyncSynced, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending sync: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) MarkSynced(ctx context.Context, id int64) error {
	return r.setSyncStatus(ctx, id, SyncSynced)
}

func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id int64) error {
	return r.setSyncStatus(ctx, id, SyncError)
}

func (r *SQLiteRepository) setSyncStatus(ctx context.Context, id int64, status string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE transactions SET sync_status = ? WHERE id = ?`, status, id); err != nil {
		return fmt.Errorf("mark transaction %d %s: %w", id, status, err)
	}
	return nil
}

// Categories

const selectCategory = `SELECT id, name, color, icon, created_at, updated_at FROM categories`

func scanCategory(sc scanner) (core.Category, error) {
	var (
		c                core.Category
		created, updated string
	)
	if err := sc.Scan(&c.ID, &c.Name, &c.Color, &c.Icon, &created, &updated); err != nil {
		return core.Category{}, err
	}
	c.CreatedAt = parseTime(created)
	c.UpdatedAt = parseTime(updated)
	return c, nil
}

func (r *SQLiteRepository) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx, selectCategory+` ORDER BY name COLLATE NOCASE`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) FindCategory(ctx context.Context, id int64) (core.Category, error) {
	c, err := scanCategory(r.db.QueryRowContext(ctx, selectCategory+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, fmt.Errorf("category %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("get category %d: %w", id, err)
	}
	return c, nil
}

func (r *SQLiteRepository) FindCategoryByName(ctx context.Context, name string) (core.Category, error) {
	c, err := scanCategory(r.db.QueryRowContext(ctx,
		selectCategory+` WHERE name = ? COLLATE NOCASE`, strings.TrimSpace(name)))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, fmt.Errorf("category %q: %w", name, core.ErrNotFound)
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("get category %q: %w", name, err)
	}
	return c, nil
}

func (r *SQLiteRepository) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (name, color, icon, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		c.Name, c.Color, c.Icon, formatTime(c.CreatedAt), formatTime(c.UpdatedAt))
	if err != nil {
		return core.Category{}, fmt.Errorf("create category %q: %w", c.Name, translate(err))
	}
	if c.ID, err = res.LastInsertId(); err != nil {
		return core.Category{}, fmt.Errorf("create category %q: %w", c.Name, err)
	}
	slog.InfoContext(ctx, "Category saved to SQLite", "id", c.ID, "name", c.Name, "color", c.Color)
	return c, nil
}

func (r *SQLiteRepository) UpdateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE categories SET name = ?, color = ?, icon = ?, updated_at = ? WHERE id = ?`,
		c.Name, c.Color, c.Icon, formatTime(c.UpdatedAt), c.ID)
	if err != nil {
		return core.Category{}, fmt.Errorf("update category %d: %w", c.ID, translate(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.Category{}, fmt.Errorf("category %d: %w", c.ID, core.ErrNotFound)
	}
	return r.FindCategory(ctx, c.ID)
}

func (r *SQLiteRepository) DeleteCategory(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete category %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("category %d: %w", id, core.ErrNotFound)
	}
	return nil
}

// translate maps SQLite constraint failures onto domain errors.
func translate(err error) error {
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE:
			return fmt.Errorf("%w: %v", core.ErrConflict, err)
		case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
			return fmt.Errorf("%w: referenced row does not exist", core.ErrInvalidArgument)
		}
	}
	return err
}

func nullDate(d core.Date) any {
	if d.IsZero() {
		return nil
	}
	return d.String()
}

func parseNullDate(s sql.NullString) (core.Date, error) {
	if !s.Valid || s.String == "" {
		return core.Date{}, nil
	}
	return core.ParseDate(s.String)
}

func nullID(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}

func derefID(id *int64) int64 {
	if id == nil {
		return 0
	}
	return *id
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

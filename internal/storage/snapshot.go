package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// BackupTo writes a consistent copy of the live database to path.
func (r *SQLiteRepository) BackupTo(ctx context.Context, path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("backup target %s already exists", path)
	}
	if _, err := r.db.ExecContext(ctx, `VACUUM INTO ?`, path); err != nil {
		return fmt.Errorf("vacuum into %s: %w", path, err)
	}
	slog.InfoContext(ctx, "SQLite snapshot written", "path", path)
	return nil
}

// RestoreFrom replaces every category and transaction with the content of
// the database file at path, in a single transaction. The file itself is
// left untouched: older schemas are upgraded on a scratch copy.
func (r *SQLiteRepository) RestoreFrom(ctx context.Context, path string) (err error) {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("restore source: %w", err)
	}
	src, err := scratchCopy(path)
	if err != nil {
		return err
	}
	defer removeScratch(src)
	if err := RunMigrations(src); err != nil {
		return fmt.Errorf("upgrade restore source: %w", err)
	}

	// ATTACH is per connection, so pin one.
	conn, err := r.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, `ATTACH DATABASE ? AS restore_src`, src); err != nil {
		return fmt.Errorf("attach %s: %w", path, err)
	}
	defer func() {
		if _, derr := conn.ExecContext(context.Background(), `DETACH DATABASE restore_src`); derr != nil && err == nil {
			err = fmt.Errorf("detach %s: %w", path, derr)
		}
	}()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin restore: %w", err)
	}
	defer tx.Rollback()

	statements := []string{
		`PRAGMA defer_foreign_keys = ON`,
		`DELETE FROM transactions`,
		`DELETE FROM categories`,
		`INSERT INTO categories (id, name, color, icon, created_at, updated_at)
		 SELECT id, name, color, icon, created_at, updated_at FROM restore_src.categories`,
		`INSERT INTO transactions (id, description, amount_cents, effective_date, kind, recurrence,
		     end_date, last_generated_date, parent_template_id, category_id, sync_status, version,
		     created_at, updated_at)
		 SELECT id, description, amount_cents, effective_date, kind, recurrence,
		     end_date, last_generated_date, parent_template_id, category_id, 'pending', version,
		     created_at, updated_at
		 FROM restore_src.transactions`,
	}
	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("restore: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit restore: %w", err)
	}

	slog.InfoContext(ctx, "Database restored from snapshot", "path", path)
	return nil
}

func scratchCopy(path string) (string, error) {
	in, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open restore source: %w", err)
	}
	defer in.Close()

	out, err := os.CreateTemp("", "mxmoney-restore-*.db")
	if err != nil {
		return "", fmt.Errorf("create scratch copy: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(out.Name())
		return "", fmt.Errorf("copy restore source: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(out.Name())
		return "", fmt.Errorf("close scratch copy: %w", err)
	}
	return out.Name(), nil
}

func removeScratch(path string) {
	for _, p := range []string{path, path + "-wal", path + "-shm", path + "-journal"} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			slog.Warn("Failed to remove restore scratch file", "path", p, "error", err)
		}
	}
}

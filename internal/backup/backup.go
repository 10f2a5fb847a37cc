// Package backup manages snapshots of the SQLite database.
package backup

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"mxmoney/internal/core"
)

const (
	namePrefix   = "backup_"
	nameSuffix   = ".db"
	nameLayout   = "2006-01-02_15-04-05"
	sqliteHeader = "SQLite format 3\x00"

	DefaultMaxBackups    = 5
	DefaultIntervalHours = 24
)

var (
	ErrInvalidName     = fmt.Errorf("%w: invalid backup name", core.ErrInvalidArgument)
	ErrInvalidInterval = fmt.Errorf("%w: backup interval must be 1, 4 or 24 hours", core.ErrInvalidArgument)
	ErrNotSQLite       = fmt.Errorf("%w: file is not a SQLite database", core.ErrInvalidArgument)

	validName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*\.db$`)
)

// Snapshotter copies the live database out and back in.
type Snapshotter interface {
	BackupTo(ctx context.Context, path string) error
	RestoreFrom(ctx context.Context, path string) error
}

// Uploader stores an off-site copy of a backup.
type Uploader interface {
	Upload(ctx context.Context, name string, r io.Reader) error
}

type Settings struct {
	Directory         string `json:"backupDirectory"`
	AutoBackupEnabled bool   `json:"autoBackupEnabled"`
	IntervalHours     int    `json:"backupIntervalHours"`
	MaxBackups        int    `json:"maxBackups"`
}

// Validate checks s and fills the maximum backup count when unset.
func (s *Settings) Validate() error {
	if strings.TrimSpace(s.Directory) == "" {
		return fmt.Errorf("%w: backup directory is required", core.ErrInvalidArgument)
	}
	switch s.IntervalHours {
	case 1, 4, 24:
	default:
		return ErrInvalidInterval
	}
	if s.MaxBackups == 0 {
		s.MaxBackups = DefaultMaxBackups
	}
	if s.MaxBackups < 1 || s.MaxBackups > 100 {
		return fmt.Errorf("%w: max backups must be between 1 and 100", core.ErrInvalidArgument)
	}
	return nil
}

type Info struct {
	Name    string    `json:"name"`
	Size    int64     `json:"size"`
	Created time.Time `json:"created"`
}

type Manager struct {
	db           Snapshotter
	uploader     Uploader
	settingsPath string
	now          func() time.Time

	mu       sync.Mutex
	settings Settings
}

// NewManager loads settings from settingsPath, falling back to defaultDir
// with auto backup enabled every 24 hours. uploader may be nil.
func NewManager(db Snapshotter, settingsPath, defaultDir string, uploader Uploader) (*Manager, error) {
	m := &Manager{
		db:           db,
		uploader:     uploader,
		settingsPath: settingsPath,
		now:          time.Now,
		settings: Settings{
			Directory:         defaultDir,
			AutoBackupEnabled: true,
			IntervalHours:     DefaultIntervalHours,
			MaxBackups:        DefaultMaxBackups,
		},
	}

	b, err := os.ReadFile(settingsPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read backup settings: %w", err)
	default:
		loaded := m.settings
		if err := json.Unmarshal(b, &loaded); err != nil {
			slog.Warn("Invalid backup settings file, using defaults", "path", settingsPath, "error", err)
		} else if err := loaded.Validate(); err != nil {
			slog.Warn("Invalid backup settings, using defaults", "path", settingsPath, "error", err)
		} else {
			m.settings = loaded
		}
	}

	if err := os.MkdirAll(m.settings.Directory, 0o755); err != nil {
		return nil, fmt.Errorf("create backup directory: %w", err)
	}
	return m, nil
}

func (m *Manager) Settings() Settings {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settings
}

// UpdateSettings validates and persists s.
func (m *Manager) UpdateSettings(s Settings) (Settings, error) {
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	if err := os.MkdirAll(s.Directory, 0o755); err != nil {
		return Settings{}, fmt.Errorf("create backup directory: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := writeJSON(m.settingsPath, s); err != nil {
		return Settings{}, err
	}
	m.settings = s
	slog.Info("Backup settings updated",
		"directory", s.Directory,
		"auto_backup", s.AutoBackupEnabled,
		"interval_hours", s.IntervalHours,
		"max_backups", s.MaxBackups)
	return s, nil
}

func writeJSON(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode backup settings: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create settings directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("write backup settings: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace backup settings: %w", err)
	}
	return nil
}

// Create writes a new backup, prunes old ones and returns its name.
func (m *Manager) Create(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	name, err := m.create(ctx)
	if err != nil {
		return "", err
	}
	m.prune(ctx)
	return name, nil
}

func (m *Manager) create(ctx context.Context) (string, error) {
	name := namePrefix + m.now().UTC().Format(nameLayout) + nameSuffix
	path := filepath.Join(m.settings.Directory, name)
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("backup %s: %w", name, core.ErrConflict)
	}
	if err := m.db.BackupTo(ctx, path); err != nil {
		return "", fmt.Errorf("create backup: %w", err)
	}
	slog.InfoContext(ctx, "Backup created", "name", name)

	if m.uploader != nil {
		if err := m.upload(ctx, name, path); err != nil {
			// The local copy is the backup; off-site is best effort.
			slog.ErrorContext(ctx, "Failed to upload backup", "name", name, "error", err)
		}
	}
	return name, nil
}

func (m *Manager) upload(ctx context.Context, name, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return m.uploader.Upload(ctx, name, f)
}

// prune keeps the newest MaxBackups files.
func (m *Manager) prune(ctx context.Context) {
	backups, err := m.list()
	if err != nil {
		slog.WarnContext(ctx, "Failed to list backups for pruning", "error", err)
		return
	}
	for _, b := range backups[min(len(backups), m.settings.MaxBackups):] {
		if err := os.Remove(filepath.Join(m.settings.Directory, b.Name)); err != nil {
			slog.WarnContext(ctx, "Failed to remove old backup", "name", b.Name, "error", err)
			continue
		}
		slog.InfoContext(ctx, "Removed old backup", "name", b.Name)
	}
}

// List returns the backups newest first.
func (m *Manager) List() ([]Info, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.list()
}

func (m *Manager) list() ([]Info, error) {
	entries, err := os.ReadDir(m.settings.Directory)
	if errors.Is(err, os.ErrNotExist) {
		return []Info{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}

	out := []Info{}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), nameSuffix) {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, Info{Name: e.Name(), Size: fi.Size(), Created: createdAt(e.Name(), fi.ModTime())})
	}
	slices.SortFunc(out, func(a, b Info) int {
		if c := b.Created.Compare(a.Created); c != 0 {
			return c
		}
		return cmp.Compare(b.Name, a.Name)
	})
	return out, nil
}

// createdAt reads the timestamp embedded in generated names, else the file time.
func createdAt(name string, modTime time.Time) time.Time {
	stamp := strings.TrimSuffix(strings.TrimPrefix(name, namePrefix), nameSuffix)
	if t, err := time.Parse(nameLayout, stamp); err == nil {
		return t
	}
	return modTime.UTC()
}

// ValidateName rejects anything but a plain .db file name.
func ValidateName(name string) error {
	if !validName.MatchString(name) || strings.Contains(name, "..") || filepath.Base(name) != name {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

func (m *Manager) path(name string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	p := filepath.Join(m.settings.Directory, name)
	if _, err := os.Stat(p); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("backup %s: %w", name, core.ErrNotFound)
		}
		return "", err
	}
	return p, nil
}

func (m *Manager) Delete(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, err := m.path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		return fmt.Errorf("delete backup: %w", err)
	}
	slog.InfoContext(ctx, "Backup deleted", "name", name)
	return nil
}

// Restore replaces the database content with backup name, after taking a
// safety backup of the current state.
func (m *Manager) Restore(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, err := m.path(name)
	if err != nil {
		return err
	}
	if err := checkSQLite(p); err != nil {
		return err
	}
	if _, err := m.create(ctx); err != nil {
		return fmt.Errorf("safety backup: %w", err)
	}
	if err := m.db.RestoreFrom(ctx, p); err != nil {
		return fmt.Errorf("restore %s: %w", name, err)
	}
	// Pruning waits until the source has been read.
	m.prune(ctx)
	slog.InfoContext(ctx, "Database restored", "name", name)
	return nil
}

// Export writes a fresh snapshot of the database to w.
func (m *Manager) Export(ctx context.Context, w io.Writer) error {
	tmp := filepath.Join(os.TempDir(), "mxmoney-export-"+uuid.NewString()+nameSuffix)
	defer os.Remove(tmp)

	if err := m.db.BackupTo(ctx, tmp); err != nil {
		return fmt.Errorf("snapshot for export: %w", err)
	}
	f, err := os.Open(tmp)
	if err != nil {
		return fmt.Errorf("open export: %w", err)
	}
	defer f.Close()
	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	return nil
}

// Import replaces the database content with the SQLite file read from r,
// after taking a safety backup.
func (m *Manager) Import(ctx context.Context, r io.Reader) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tmp := filepath.Join(m.settings.Directory, "import-"+uuid.NewString()+".tmp")
	defer os.Remove(tmp)

	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("stage import: %w", err)
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("stage import: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: file is empty", core.ErrInvalidArgument)
	}
	if err := checkSQLite(tmp); err != nil {
		return err
	}

	if _, err := m.create(ctx); err != nil {
		return fmt.Errorf("safety backup: %w", err)
	}
	if err := m.db.RestoreFrom(ctx, tmp); err != nil {
		return fmt.Errorf("import: %w", err)
	}
	m.prune(ctx)
	slog.InfoContext(ctx, "Database imported", "bytes", n)
	return nil
}

func checkSQLite(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	head := make([]byte, len(sqliteHeader))
	if _, err := io.ReadFull(f, head); err != nil || !bytes.Equal(head, []byte(sqliteHeader)) {
		return ErrNotSQLite
	}
	return nil
}

// RunScheduled creates a backup when auto backup is on and the newest
// backup is at least one interval old. It reports whether one was created.
func (m *Manager) RunScheduled(ctx context.Context, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.settings.AutoBackupEnabled {
		slog.DebugContext(ctx, "Scheduled backup skipped (disabled)")
		return false, nil
	}
	backups, err := m.list()
	if err != nil {
		return false, err
	}
	interval := time.Duration(m.settings.IntervalHours) * time.Hour
	if len(backups) > 0 && now.Sub(backups[0].Created) < interval {
		return false, nil
	}

	name, err := m.create(ctx)
	if err != nil {
		return false, err
	}
	m.prune(ctx)
	slog.InfoContext(ctx, "Scheduled backup completed", "name", name)
	return true, nil
}

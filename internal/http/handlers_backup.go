package http

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"mxmoney/internal/backup"
	"mxmoney/internal/core"
	applog "mxmoney/internal/log"
)

// withBackups answers 501 when the backend cannot be snapshotted.
func (s *Server) withBackups(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.app.Backups == nil {
			writeError(w, r, http.StatusNotImplemented, "backups are not supported by this storage backend")
			return
		}
		next(w, r)
	}
}

func (s *Server) handleListBackups(w http.ResponseWriter, r *http.Request) {
	list, err := s.app.Backups.List()
	if err != nil {
		writeServiceError(w, r, "list_backups", err)
		return
	}
	if list == nil {
		list = []backup.Info{}
	}
	writeJSON(w, r, http.StatusOK, list)
}

func (s *Server) handleCreateBackup(w http.ResponseWriter, r *http.Request) {
	name, err := s.app.Backups.Create(r.Context())
	if err != nil {
		writeServiceError(w, r, "create_backup", err)
		return
	}
	writeJSON(w, r, http.StatusCreated, map[string]string{"name": name})
}

func (s *Server) handleDeleteBackup(w http.ResponseWriter, r *http.Request) {
	if err := s.app.Backups.Delete(r.Context(), r.PathValue("name")); err != nil {
		writeServiceError(w, r, "delete_backup", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRestoreBackup(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := s.app.Backups.Restore(r.Context(), name); err != nil {
		writeServiceError(w, r, "restore_backup", err)
		return
	}
	s.changed()
	writeJSON(w, r, http.StatusOK, map[string]string{"restored": name})
}

// handleExportBackup streams a fresh snapshot of the database.
func (s *Server) handleExportBackup(w http.ResponseWriter, r *http.Request) {
	filename := fmt.Sprintf("mxmoney_%s.db", time.Now().UTC().Format("2006-01-02_15-04-05"))
	w.Header().Set("Content-Type", "application/vnd.sqlite3")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if err := s.app.Backups.Export(r.Context(), w); err != nil {
		// Headers are gone once the copy started; only the log knows.
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Backup export failed", "error", err)
	}
}

func (s *Server) handleImportBackup(w http.ResponseWriter, r *http.Request) {
	limit := s.maxUpload * 10
	if r.ContentLength > limit {
		writeError(w, r, http.StatusRequestEntityTooLarge, "file too large")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		writeServiceError(w, r, "import_backup", fmt.Errorf("%w: expected a multipart form", core.ErrInvalidArgument))
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		writeServiceError(w, r, "import_backup", fmt.Errorf("%w: missing file field", core.ErrInvalidArgument))
		return
	}
	defer file.Close()

	if err := s.app.Backups.Import(r.Context(), file); err != nil {
		writeServiceError(w, r, "import_backup", err)
		return
	}
	s.changed()
	writeJSON(w, r, http.StatusOK, map[string]bool{"imported": true})
}

func (s *Server) handleBackupSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.app.Backups.Settings())
}

func (s *Server) handleUpdateBackupSettings(w http.ResponseWriter, r *http.Request) {
	in := s.app.Backups.Settings()
	if err := decodeJSON(w, r, &in); err != nil {
		writeServiceError(w, r, "update_backup_settings", err)
		return
	}
	updated, err := s.app.Backups.UpdateSettings(in)
	if err != nil {
		writeServiceError(w, r, "update_backup_settings", err)
		return
	}
	writeJSON(w, r, http.StatusOK, updated)
}

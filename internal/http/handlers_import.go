package http

import (
	"errors"
	"fmt"
	"net/http"

	"mxmoney/internal/core"
	"mxmoney/internal/services"
)

type importPayload struct {
	Items []services.ImportItem `json:"items"`
}

// handleImportCSV parses an uploaded statement and proposes a category for
// every row. Nothing is stored until the reviewed rows are saved.
func (s *Server) handleImportCSV(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > s.maxUpload {
		writeError(w, r, http.StatusRequestEntityTooLarge, "file too large")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		writeServiceError(w, r, "import_csv", fmt.Errorf("%w: expected a multipart form", core.ErrInvalidArgument))
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		writeServiceError(w, r, "import_csv", fmt.Errorf("%w: missing file field", core.ErrInvalidArgument))
		return
	}
	defer file.Close()

	items, err := services.ParseCSV(r.Context(), file)
	if err != nil {
		writeServiceError(w, r, "import_csv", err)
		return
	}
	if len(items) == 0 {
		writeServiceError(w, r, "import_csv", fmt.Errorf("%w: no readable rows in file", core.ErrInvalidArgument))
		return
	}
	writeJSON(w, r, http.StatusOK, importPayload{Items: s.app.Imports.Categorize(r.Context(), items)})
}

func (s *Server) handleSaveImport(w http.ResponseWriter, r *http.Request) {
	var in importPayload
	if err := decodeJSON(w, r, &in); err != nil {
		writeServiceError(w, r, "save_import", err)
		return
	}
	if len(in.Items) == 0 {
		writeServiceError(w, r, "save_import", fmt.Errorf("%w: no items", core.ErrInvalidArgument))
		return
	}
	for i := range in.Items {
		in.Items[i].Description = sanitizeInput(in.Items[i].Description)
		in.Items[i].Category = sanitizeInput(in.Items[i].Category)
	}

	saved, err := s.app.Imports.SaveImported(r.Context(), in.Items)
	if len(saved) > 0 {
		s.changed()
	}
	if err != nil {
		writeServiceError(w, r, "save_import", err)
		return
	}
	writeJSON(w, r, http.StatusCreated, saved)
}

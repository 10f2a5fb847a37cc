package http

import (
	"net/http"

	"mxmoney/internal/core"
	"mxmoney/internal/services"
)

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.app.Categories.List(r.Context())
	if err != nil {
		writeServiceError(w, r, "list_categories", err)
		return
	}
	if cats == nil {
		cats = []core.Category{}
	}
	writeJSON(w, r, http.StatusOK, cats)
}

func (s *Server) handleGetCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeServiceError(w, r, "get_category", err)
		return
	}
	c, err := s.app.Categories.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, "get_category", err)
		return
	}
	writeJSON(w, r, http.StatusOK, c)
}

func (s *Server) decodeCategory(w http.ResponseWriter, r *http.Request) (services.CategoryInput, error) {
	var in services.CategoryInput
	if err := decodeJSON(w, r, &in); err != nil {
		return in, err
	}
	in.Name = sanitizeInput(in.Name)
	in.Icon = sanitizeInput(in.Icon)
	return in, nil
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	in, err := s.decodeCategory(w, r)
	if err != nil {
		writeServiceError(w, r, "create_category", err)
		return
	}
	c, err := s.app.Categories.Create(r.Context(), in)
	if err != nil {
		writeServiceError(w, r, "create_category", err)
		return
	}
	writeJSON(w, r, http.StatusCreated, c)
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeServiceError(w, r, "update_category", err)
		return
	}
	in, err := s.decodeCategory(w, r)
	if err != nil {
		writeServiceError(w, r, "update_category", err)
		return
	}
	c, err := s.app.Categories.Update(r.Context(), id, in)
	if err != nil {
		writeServiceError(w, r, "update_category", err)
		return
	}
	// Reports group by category name.
	s.changed()
	writeJSON(w, r, http.StatusOK, c)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeServiceError(w, r, "delete_category", err)
		return
	}
	if err := s.app.Categories.Delete(r.Context(), id); err != nil {
		writeServiceError(w, r, "delete_category", err)
		return
	}
	s.changed()
	w.WriteHeader(http.StatusNoContent)
}

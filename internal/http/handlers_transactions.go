package http

import (
	"fmt"
	"net/http"

	"mxmoney/internal/core"
	applog "mxmoney/internal/log"
	"mxmoney/internal/services"
)

// handleListTransactions returns the whole ledger, or the rows dated within
// startDate and endDate when both are given.
func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, hasStart, err := queryDate(q, "startDate")
	if err != nil {
		writeServiceError(w, r, "list_transactions", err)
		return
	}
	end, hasEnd, err := queryDate(q, "endDate")
	if err != nil {
		writeServiceError(w, r, "list_transactions", err)
		return
	}

	var txs []core.Transaction
	switch {
	case hasStart && hasEnd:
		txs, err = s.app.Transactions.ListByPeriod(r.Context(), start, end)
	case hasStart || hasEnd:
		err = fmt.Errorf("%w: startDate and endDate must be given together", core.ErrInvalidArgument)
	default:
		txs, err = s.app.Transactions.List(r.Context())
	}
	if err != nil {
		writeServiceError(w, r, "list_transactions", err)
		return
	}
	if txs == nil {
		txs = []core.Transaction{}
	}
	writeJSON(w, r, http.StatusOK, txs)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeServiceError(w, r, "get_transaction", err)
		return
	}
	t, err := s.app.Transactions.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, "get_transaction", err)
		return
	}
	writeJSON(w, r, http.StatusOK, t)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var in services.TransactionInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeServiceError(w, r, "create_transaction", err)
		return
	}
	in.Description = sanitizeInput(in.Description)

	t, err := s.app.Transactions.Create(r.Context(), in)
	if err != nil {
		writeServiceError(w, r, "create_transaction", err)
		return
	}
	s.changed()
	applog.FromContext(r.Context()).InfoContext(r.Context(), "Transaction created",
		applog.NewFields().WithTransaction(t.ID, t.Description, t.Amount.String(), string(t.Kind), string(t.Recurrence)).ToSlice()...)
	writeJSON(w, r, http.StatusCreated, t)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeServiceError(w, r, "update_transaction", err)
		return
	}
	var in services.TransactionInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeServiceError(w, r, "update_transaction", err)
		return
	}
	in.Description = sanitizeInput(in.Description)

	t, err := s.app.Transactions.Update(r.Context(), id, in)
	if err != nil {
		writeServiceError(w, r, "update_transaction", err)
		return
	}
	s.changed()
	writeJSON(w, r, http.StatusOK, t)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeServiceError(w, r, "delete_transaction", err)
		return
	}
	if err := s.app.Transactions.Delete(r.Context(), id); err != nil {
		writeServiceError(w, r, "delete_transaction", err)
		return
	}
	s.changed()
	w.WriteHeader(http.StatusNoContent)
}

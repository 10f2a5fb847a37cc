package http

import (
	"fmt"
	"net/http"
	"strings"

	"mxmoney/internal/core"
	"mxmoney/internal/services"
)

const defaultProjectionDays = 30

func (s *Server) handleCurrentBalance(w http.ResponseWriter, r *http.Request) {
	summary, err := s.app.Balance.CurrentBalance(r.Context())
	if err != nil {
		writeServiceError(w, r, "current_balance", err)
		return
	}
	writeJSON(w, r, http.StatusOK, summary)
}

func (s *Server) handleBalanceAsOf(w http.ResponseWriter, r *http.Request) {
	d, ok, err := queryDate(r.URL.Query(), "date")
	if err == nil && !ok {
		err = fmt.Errorf("%w: date is required", core.ErrInvalidArgument)
	}
	if err != nil {
		writeServiceError(w, r, "balance_as_of", err)
		return
	}
	summary, err := s.app.Balance.BalanceAsOf(r.Context(), d)
	if err != nil {
		writeServiceError(w, r, "balance_as_of", err)
		return
	}
	writeJSON(w, r, http.StatusOK, summary)
}

// handleProjection forecasts from today, or from the optional date.
func (s *Server) handleProjection(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	days, err := queryInt(q, "days", defaultProjectionDays, 0, MaxProjectionDays)
	if err != nil {
		writeServiceError(w, r, "projection", err)
		return
	}
	base, err := s.baseDate(r)
	if err != nil {
		writeServiceError(w, r, "projection", err)
		return
	}
	points, err := s.app.Balance.Projection(r.Context(), base, days)
	if err != nil {
		writeServiceError(w, r, "projection", err)
		return
	}
	writeJSON(w, r, http.StatusOK, points)
}

func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	raw := strings.TrimSpace(q.Get("amount"))
	if raw == "" {
		writeServiceError(w, r, "simulate", fmt.Errorf("%w: amount is required", core.ErrInvalidArgument))
		return
	}
	amount, err := core.ParseMoney(strings.ReplaceAll(raw, ",", "."))
	if err != nil {
		writeServiceError(w, r, "simulate", err)
		return
	}
	days, err := queryInt(q, "days", defaultProjectionDays, 0, MaxProjectionDays)
	if err != nil {
		writeServiceError(w, r, "simulate", err)
		return
	}
	occurrences, err := queryInt(q, "occurrences", 1, 0, MaxOccurrences)
	if err != nil {
		writeServiceError(w, r, "simulate", err)
		return
	}
	recurrence := strings.ToUpper(strings.TrimSpace(q.Get("recurrence")))
	if recurrence == "" {
		recurrence = string(core.None)
	}
	base, err := s.baseDate(r)
	if err != nil {
		writeServiceError(w, r, "simulate", err)
		return
	}

	result, err := s.app.Balance.Simulate(r.Context(), base, services.SimulationRequest{
		Amount:      amount,
		Days:        days,
		Recurrence:  recurrence,
		Occurrences: occurrences,
	})
	if err != nil {
		writeServiceError(w, r, "simulate", err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

func (s *Server) baseDate(r *http.Request) (core.Date, error) {
	d, ok, err := queryDate(r.URL.Query(), "date")
	if err != nil {
		return core.Date{}, err
	}
	if !ok {
		return s.app.Balance.Today(), nil
	}
	return d, nil
}

type generateResponse struct {
	AsOf      string `json:"asOf,omitempty"`
	Generated int    `json:"generated"`
	Queued    bool   `json:"queued"`
}

// handleGenerate runs a materialization pass up to today or the optional
// date. With async=true the pass is queued for the recurring worker instead.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	asOf, given, err := queryDate(q, "date")
	if err != nil {
		writeServiceError(w, r, "generate_recurring", err)
		return
	}

	if queryBool(q, "async") {
		if s.generates == nil {
			writeError(w, r, http.StatusServiceUnavailable, "asynchronous generation needs a message broker")
			return
		}
		requested := ""
		if given {
			requested = asOf.String()
		}
		if err := s.generates.PublishGenerateRequest(r.Context(), requested); err != nil {
			writeServiceError(w, r, "generate_recurring", err)
			return
		}
		writeJSON(w, r, http.StatusAccepted, generateResponse{AsOf: requested, Queued: true})
		return
	}

	if !given {
		asOf = s.app.Balance.Today()
	}
	n, err := s.app.Recurring.GeneratePending(r.Context(), asOf)
	if err != nil {
		writeServiceError(w, r, "generate_recurring", err)
		return
	}
	if n > 0 {
		s.changed()
	}
	writeJSON(w, r, http.StatusOK, generateResponse{AsOf: asOf.String(), Generated: n})
}

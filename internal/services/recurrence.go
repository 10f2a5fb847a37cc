// Package services provides business logic and orchestration services.
//
// This file holds the recurrence stepping rules shared by the balance
// projection and the materialization pass. Recurrence is a closed set, so
// every switch over it is exhaustive.
package services

import (
	"fmt"

	"mxmoney/internal/core"
)

// NextOccurrence returns the date one recurrence period after d. Monthly and
// yearly steps clip the day to the end of the target month.
func NextOccurrence(d core.Date, r core.Recurrence) (core.Date, error) {
	switch r {
	case core.Daily:
		return d.AddDays(1), nil
	case core.Weekly:
		return d.AddDays(7), nil
	case core.Monthly:
		return d.AddMonths(1), nil
	case core.Yearly:
		return d.AddYears(1), nil
	case core.None:
		return core.Date{}, fmt.Errorf("%w: a one-off transaction has no next occurrence", core.ErrInvalidRecurrence)
	default:
		return core.Date{}, fmt.Errorf("%w: %q", core.ErrInvalidRecurrence, r)
	}
}

// Expand returns the occurrence dates of template t that fall in
// [start, min(end, t.EndDate)], ascending. Stepping always starts at
// t.EffectiveDate so the phase is preserved when start is later.
// A one-off transaction expands to nothing.
func Expand(t core.Transaction, start, end core.Date) ([]core.Date, error) {
	if !t.IsTemplate() {
		return nil, nil
	}
	if err := checkTemplate(t); err != nil {
		return nil, err
	}

	upper := core.MinDate(end, t.EndDate)
	var dates []core.Date
	for d := t.EffectiveDate; !d.After(upper); d = mustStep(d, t.Recurrence) {
		if !d.Before(start) {
			dates = append(dates, d)
		}
	}
	return dates, nil
}

// PendingOccurrences returns the occurrences of t that have not been
// materialized yet and are due on or before asOf. The template's own
// effective date is never returned.
func PendingOccurrences(t core.Transaction, asOf core.Date) ([]core.Date, error) {
	if !t.IsTemplate() {
		return nil, nil
	}
	if err := checkTemplate(t); err != nil {
		return nil, err
	}

	from := t.EffectiveDate
	if !t.LastGeneratedDate.IsZero() {
		from = t.LastGeneratedDate
	}
	upper := core.MinDate(asOf, t.EndDate)

	var dates []core.Date
	for d := mustStep(from, t.Recurrence); !d.After(upper); d = mustStep(d, t.Recurrence) {
		dates = append(dates, d)
	}
	return dates, nil
}

// DeductionDates lists the dates a simulated purchase is charged on: base
// alone for a one-off purchase, otherwise occurrences dates stepped from base.
func DeductionDates(base core.Date, r core.Recurrence, occurrences int) ([]core.Date, error) {
	if r == core.None {
		return []core.Date{base}, nil
	}
	if !r.Valid() {
		return nil, fmt.Errorf("%w: %q", core.ErrInvalidRecurrence, r)
	}
	if occurrences < 0 || occurrences > MaxOccurrences {
		return nil, fmt.Errorf("%w: occurrences must be between 0 and %d, got %d", core.ErrInvalidArgument, MaxOccurrences, occurrences)
	}
	dates := make([]core.Date, 0, occurrences)
	for i, d := 0, base; i < occurrences; i, d = i+1, mustStep(d, r) {
		dates = append(dates, d)
	}
	return dates, nil
}

func checkTemplate(t core.Transaction) error {
	if !t.Recurrence.Valid() {
		return fmt.Errorf("%w: template %d has recurrence %q", core.ErrInvalidTemplate, t.ID, t.Recurrence)
	}
	if err := t.EffectiveDate.Validate(); err != nil {
		return fmt.Errorf("%w: template %d effective date: %v", core.ErrInvalidTemplate, t.ID, err)
	}
	if !t.EndDate.IsZero() {
		if err := t.EndDate.Validate(); err != nil {
			return fmt.Errorf("%w: template %d end date: %v", core.ErrInvalidTemplate, t.ID, err)
		}
	}
	if !t.LastGeneratedDate.IsZero() {
		if err := t.LastGeneratedDate.Validate(); err != nil {
			return fmt.Errorf("%w: template %d last generated date: %v", core.ErrInvalidTemplate, t.ID, err)
		}
	}
	return nil
}

// mustStep is NextOccurrence for recurrences already checked by checkTemplate.
func mustStep(d core.Date, r core.Recurrence) core.Date {
	next, err := NextOccurrence(d, r)
	if err != nil {
		panic(err)
	}
	return next
}

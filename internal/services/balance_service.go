package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"mxmoney/internal/core"
	"mxmoney/internal/storage"
)

// Upper bounds on caller-supplied horizons. Every projected day and every
// simulated charge is held in memory.
const (
	MaxProjectionDays = 3650
	MaxOccurrences    = 1000
)

// BalanceService answers point-in-time balance, projection and purchase
// simulation queries. It only reads from the store.
type BalanceService struct {
	store storage.TransactionStore
	now   func() time.Time
}

func NewBalanceService(store storage.TransactionStore) *BalanceService {
	return &BalanceService{store: store, now: time.Now}
}

// Today is the calendar date queries without an explicit date are based on.
func (s *BalanceService) Today() core.Date {
	return core.DateOf(s.now())
}

// BalanceAsOf sums every income and expense row dated on or before d.
func (s *BalanceService) BalanceAsOf(ctx context.Context, d core.Date) (core.BalanceSummary, error) {
	if err := d.Validate(); err != nil {
		return core.BalanceSummary{}, err
	}

	var income, expense core.Money
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		income, err = s.store.SumAmount(gctx, core.Income, d)
		return err
	})
	g.Go(func() (err error) {
		expense, err = s.store.SumAmount(gctx, core.Expense, d)
		return err
	})
	if err := g.Wait(); err != nil {
		return core.BalanceSummary{}, fmt.Errorf("balance as of %s: %w", d, err)
	}

	return core.BalanceSummary{
		Balance:      income.Sub(expense),
		TotalIncome:  income,
		TotalExpense: expense,
		AsOf:         d,
	}, nil
}

// CurrentBalance is BalanceAsOf(today).
func (s *BalanceService) CurrentBalance(ctx context.Context) (core.BalanceSummary, error) {
	return s.BalanceAsOf(ctx, s.Today())
}

// Projection forecasts the closing balance of every day in [base, base+days].
func (s *BalanceService) Projection(ctx context.Context, base core.Date, days int) ([]core.BalancePoint, error) {
	if days < 0 || days > MaxProjectionDays {
		return nil, fmt.Errorf("%w: days must be between 0 and %d, got %d", core.ErrInvalidArgument, MaxProjectionDays, days)
	}
	if err := base.Validate(); err != nil {
		return nil, err
	}
	end := base.AddDays(days)

	snap, err := s.store.ReadLedger(ctx, base.AddDays(-1), base, end)
	if err != nil {
		return nil, fmt.Errorf("projection from %s: %w", base, err)
	}
	opening := snap.Income.Sub(snap.Expense)

	points := BuildProjection(ctx, opening, base, days, snap.Window, snap.All)
	slog.DebugContext(ctx, "Balance projection built",
		"base_date", base.String(),
		"days", days,
		"opening_balance", opening.String(),
		"closing_balance", points[len(points)-1].Balance.String())
	return points, nil
}

// SimulationRequest describes a hypothetical purchase.
type SimulationRequest struct {
	Amount      core.Money
	Days        int
	Recurrence  string
	Occurrences int
}

// Simulate overlays a hypothetical purchase on the projection starting at base.
// Arguments are validated before the store is read.
func (s *BalanceService) Simulate(ctx context.Context, base core.Date, req SimulationRequest) (core.SimulationResult, error) {
	recurrence, err := core.ParseRecurrence(req.Recurrence)
	if err != nil {
		return core.SimulationResult{}, err
	}
	if req.Amount.IsNegative() {
		return core.SimulationResult{}, fmt.Errorf("%w: amount must not be negative", core.ErrInvalidArgument)
	}
	if req.Occurrences < 0 || req.Occurrences > MaxOccurrences {
		return core.SimulationResult{}, fmt.Errorf("%w: occurrences must be between 0 and %d, got %d",
			core.ErrInvalidArgument, MaxOccurrences, req.Occurrences)
	}
	if req.Days < 0 || req.Days > MaxProjectionDays {
		return core.SimulationResult{}, fmt.Errorf("%w: days must be between 0 and %d, got %d",
			core.ErrInvalidArgument, MaxProjectionDays, req.Days)
	}
	deductions, err := DeductionDates(base, recurrence, req.Occurrences)
	if err != nil {
		return core.SimulationResult{}, err
	}

	points, err := s.Projection(ctx, base, req.Days)
	if err != nil {
		return core.SimulationResult{}, err
	}

	result := SimulateOverlay(points, req.Amount, deductions)
	slog.InfoContext(ctx, "Purchase simulated",
		"amount", req.Amount.String(),
		"recurrence", recurrence,
		"occurrences", len(deductions),
		"goes_negative", result.GoesNegative,
		"minimum_balance", result.MinimumBalance.String())
	return result, nil
}

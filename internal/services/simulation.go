package services

import (
	"mxmoney/internal/core"
)

// SimulatedPurchaseReason explains a negative balance that no real expense
// on that day accounts for.
const SimulatedPurchaseReason = "Simulated purchase"

// SimulateOverlay deducts a hypothetical purchase from a projection. deductions
// are the dates the purchase is charged on (see DeductionDates). The input
// points are not modified.
func SimulateOverlay(points []core.BalancePoint, amount core.Money, deductions []core.Date) core.SimulationResult {
	result := core.SimulationResult{
		SimulatedAmount: amount.Mul(int64(len(deductions))),
		Projections:     make([]core.BalancePoint, 0, len(points)),
	}

	charged := 0
	for i, p := range points {
		for charged < len(deductions) && !deductions[charged].After(p.Date) {
			charged++
		}
		adjusted := p
		adjusted.Balance = p.Balance.Sub(amount.Mul(int64(charged)))
		result.Projections = append(result.Projections, adjusted)

		if !result.GoesNegative && adjusted.Balance.IsNegative() {
			result.GoesNegative = true
			result.NegativeDate = adjusted.Date
			result.NegativeReason = negativeReason(adjusted)
		}
		if i == 0 || adjusted.Balance.LessThan(result.MinimumBalance) {
			result.MinimumBalance = adjusted.Balance
			result.MinimumBalanceDate = adjusted.Date
		}
	}
	return result
}

// negativeReason names the first expense of the day, in ascending ID order.
func negativeReason(p core.BalancePoint) string {
	for _, t := range p.Transactions {
		if t.Kind == core.Expense {
			return t.Description
		}
	}
	return SimulatedPurchaseReason
}

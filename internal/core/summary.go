package core

import "strings"

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string `json:"name"`
	Amount Money  `json:"amount"`
}

// BalanceSummary is the running balance at the end of AsOf.
type BalanceSummary struct {
	Balance      Money `json:"balance"`
	TotalIncome  Money `json:"totalIncome"`
	TotalExpense Money `json:"totalExpense"`
	AsOf         Date  `json:"asOfDate"`
}

// BalancePoint is the projected closing balance of one day together with the
// transactions that contributed to it.
type BalancePoint struct {
	Date         Date          `json:"date"`
	Balance      Money         `json:"balance"`
	Transactions []Transaction `json:"transactions"`
}

// SimulationResult is a projection with a hypothetical purchase deducted.
type SimulationResult struct {
	SimulatedAmount    Money          `json:"simulatedAmount"`
	Projections        []BalancePoint `json:"projections"`
	GoesNegative       bool           `json:"goesNegative"`
	NegativeDate       Date           `json:"negativeDate"`
	NegativeReason     string         `json:"negativeReason,omitempty"`
	MinimumBalance     Money          `json:"minimumBalance"`
	MinimumBalanceDate Date           `json:"minimumBalanceDate"`
}

// Palette holds the colors assigned to automatically created categories.
var Palette = []string{
	"#6366F1", "#EC4899", "#F59E0B", "#10B981", "#3B82F6",
	"#EF4444", "#8B5CF6", "#14B8A6", "#F97316", "#06B6D4",
	"#84CC16", "#A855F7", "#E11D48", "#0EA5E9", "#D946EF",
	"#22C55E", "#FB923C", "#64748B", "#FACC15", "#2DD4BF",
}

// NextColor picks the first palette color not present in used, ignoring
// case. When every color is taken it cycles by the number of used colors.
func NextColor(used []string) string {
	taken := make(map[string]bool, len(used))
	for _, c := range used {
		taken[strings.ToUpper(c)] = true
	}
	for _, c := range Palette {
		if !taken[c] {
			return c
		}
	}
	return Palette[len(used)%len(Palette)]
}

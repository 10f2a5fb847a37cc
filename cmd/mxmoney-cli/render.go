package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"

	"mxmoney/internal/core"
	"mxmoney/internal/services"
)

func printMarkdown(md string) {
	if *plain {
		fmt.Fprint(stdout, md)
		return
	}
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	if err != nil {
		fmt.Fprint(stdout, md)
		return
	}
	out, err := r.Render(md)
	if err != nil {
		fmt.Fprint(stdout, md)
		return
	}
	fmt.Fprint(stdout, out)
}

// moneyFormatter displays an amount in the configured currency.
type moneyFormatter func(core.Money) string

func balanceMarkdown(s core.BalanceSummary, format moneyFormatter) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Balance as of %s\n\n", s.AsOf)
	b.WriteString("| | Amount |\n|---|---:|\n")
	fmt.Fprintf(&b, "| Income | %s |\n", format(s.TotalIncome))
	fmt.Fprintf(&b, "| Expenses | %s |\n", format(s.TotalExpense))
	fmt.Fprintf(&b, "| **Balance** | **%s** |\n", format(s.Balance))
	return b.String()
}

// pointsTable lists every day of a projection. Days without movements are
// skipped unless all is set.
func pointsTable(b *strings.Builder, points []core.BalancePoint, format moneyFormatter, all bool) {
	b.WriteString("| Date | Balance | Movements |\n|---|---:|---|\n")
	for i, p := range points {
		if !all && len(p.Transactions) == 0 && i != 0 && i != len(points)-1 {
			continue
		}
		moves := make([]string, 0, len(p.Transactions))
		for _, t := range p.Transactions {
			sign := "+"
			if t.Kind == core.Expense {
				sign = "-"
			}
			moves = append(moves, fmt.Sprintf("%s%s %s", sign, t.Amount, escapeCell(t.Description)))
		}
		fmt.Fprintf(b, "| %s | %s | %s |\n", p.Date, format(p.Balance), strings.Join(moves, "<br>"))
	}
}

func projectionMarkdown(points []core.BalancePoint, format moneyFormatter, all bool) string {
	var b strings.Builder
	if len(points) == 0 {
		return "No projection.\n"
	}
	fmt.Fprintf(&b, "# Projection %s to %s\n\n", points[0].Date, points[len(points)-1].Date)
	pointsTable(&b, points, format, all)
	return b.String()
}

func simulationMarkdown(r core.SimulationResult, format moneyFormatter, all bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Simulated purchase of %s\n\n", format(r.SimulatedAmount))
	if r.GoesNegative {
		fmt.Fprintf(&b, "> Balance goes negative on **%s**: %s\n\n", r.NegativeDate, r.NegativeReason)
	} else {
		b.WriteString("> Balance stays positive over the whole period.\n\n")
	}
	fmt.Fprintf(&b, "Minimum balance **%s** on %s.\n\n", format(r.MinimumBalance), r.MinimumBalanceDate)
	pointsTable(&b, r.Projections, format, all)
	return b.String()
}

func summaryMarkdown(s services.ReportSummary, format moneyFormatter) string {
	var b strings.Builder
	b.WriteString("# Ledger summary\n\n")
	if s.Count == 0 {
		b.WriteString("No transactions yet.\n")
		return b.String()
	}
	fmt.Fprintf(&b, "%s to %s, %d months, %d transactions (%d recurring).\n\n",
		s.From, s.To, s.Months, s.Count, s.RecurringCount)
	b.WriteString("| | Amount |\n|---|---:|\n")
	fmt.Fprintf(&b, "| Income | %s |\n", format(s.TotalIncome))
	fmt.Fprintf(&b, "| Expenses | %s |\n", format(s.TotalExpense))
	fmt.Fprintf(&b, "| Balance | %s |\n", format(s.Balance))
	fmt.Fprintf(&b, "| Monthly average expense | %s |\n", format(s.MonthlyAverageExpense))
	categoryTable(&b, "Expenses by category", s.ExpensesByCategory, format)
	categoryTable(&b, "Income by category", s.IncomeByCategory, format)
	return b.String()
}

func categoryTable(b *strings.Builder, title string, rows []core.CategoryAmount, format moneyFormatter) {
	if len(rows) == 0 {
		return
	}
	fmt.Fprintf(b, "\n## %s\n\n| Category | Amount |\n|---|---:|\n", title)
	for _, c := range rows {
		fmt.Fprintf(b, "| %s | %s |\n", escapeCell(c.Name), format(c.Amount))
	}
}

func importMarkdown(items []services.ImportItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %d statement rows\n\n", len(items))
	b.WriteString("| # | Date | Description | Amount | Category |\n|---:|---|---|---:|---|\n")
	for i, it := range items {
		fmt.Fprintf(&b, "| %d | %s | %s | %s | %s |\n", i+1, it.Date, escapeCell(it.Description), it.Amount, escapeCell(it.Category))
	}
	return b.String()
}

func escapeCell(s string) string {
	return strings.NewReplacer("|", `\|`, "\n", " ").Replace(s)
}

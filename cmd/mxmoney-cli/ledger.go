package main

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/google/subcommands"

	"mxmoney/internal/backend"
	"mxmoney/internal/core"
	"mxmoney/internal/services"
)

// dateOr parses s, falling back to today when s is empty.
func dateOr(s string, app *backend.App) (core.Date, error) {
	if strings.TrimSpace(s) == "" {
		return app.Balance.Today(), nil
	}
	return core.ParseDate(strings.TrimSpace(s))
}

func failed(err error) subcommands.ExitStatus {
	fmt.Fprintf(stderr, "Error: %v\n", err)
	return subcommands.ExitFailure
}

type balanceCmd struct {
	date string
}

func (*balanceCmd) Name() string     { return "balance" }
func (*balanceCmd) Synopsis() string { return "show the balance at the end of a day" }
func (*balanceCmd) Usage() string {
	return `balance [-d <date>]

  Shows income, expenses and balance of every transaction effective on or
  before the date (defaults to today).
`
}

func (c *balanceCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.date, "d", "", "as-of date, YYYY-MM-DD")
}

func (c *balanceCmd) Execute(ctx context.Context, _ *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	app, ok := appFrom(ctx, args)
	if !ok {
		return subcommands.ExitFailure
	}
	d, err := dateOr(c.date, app)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	summary, err := app.Balance.BalanceAsOf(ctx, d)
	if err != nil {
		return failed(err)
	}
	printMarkdown(balanceMarkdown(summary, app.Reports.FormatMoney))
	return subcommands.ExitSuccess
}

type projectionCmd struct {
	date string
	days int
	all  bool
}

func (*projectionCmd) Name() string     { return "projection" }
func (*projectionCmd) Synopsis() string { return "project the daily balance forward" }
func (*projectionCmd) Usage() string {
	return `projection [-d <date>] [-days n] [-all]

  Projects the closing balance of every day from the base date, expanding
  recurring transactions.
`
}

func (c *projectionCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.date, "d", "", "base date, YYYY-MM-DD (defaults to today)")
	f.IntVar(&c.days, "days", 30, "number of days after the base date")
	f.BoolVar(&c.all, "all", false, "list days without movements too")
}

func (c *projectionCmd) Execute(ctx context.Context, _ *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	app, ok := appFrom(ctx, args)
	if !ok {
		return subcommands.ExitFailure
	}
	base, err := dateOr(c.date, app)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	points, err := app.Balance.Projection(ctx, base, c.days)
	if err != nil {
		return failed(err)
	}
	printMarkdown(projectionMarkdown(points, app.Reports.FormatMoney, c.all))
	return subcommands.ExitSuccess
}

type simulateCmd struct {
	date        string
	amount      string
	days        int
	recurrence  string
	occurrences int
	all         bool
}

func (*simulateCmd) Name() string     { return "simulate" }
func (*simulateCmd) Synopsis() string { return "check whether a purchase fits in the budget" }
func (*simulateCmd) Usage() string {
	return `simulate -amount <value> [-r NONE|DAILY|WEEKLY|MONTHLY|YEARLY] [-n occurrences] [-days n] [-d <date>]

  Deducts a hypothetical purchase from the projection and reports the first
  day the balance would go negative.
`
}

func (c *simulateCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.date, "d", "", "base date, YYYY-MM-DD (defaults to today)")
	f.StringVar(&c.amount, "amount", "", "purchase amount")
	f.IntVar(&c.days, "days", 30, "number of days after the base date")
	f.StringVar(&c.recurrence, "r", "NONE", "recurrence of the purchase")
	f.IntVar(&c.occurrences, "n", 1, "number of deductions")
	f.BoolVar(&c.all, "all", false, "list days without movements too")
}

func (c *simulateCmd) Execute(ctx context.Context, _ *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	amount, err := core.ParseMoney(strings.ReplaceAll(c.amount, ",", "."))
	if err != nil {
		fmt.Fprintf(stderr, "Error: -amount: %v\n", err)
		return subcommands.ExitUsageError
	}
	app, ok := appFrom(ctx, args)
	if !ok {
		return subcommands.ExitFailure
	}
	base, err := dateOr(c.date, app)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	result, err := app.Balance.Simulate(ctx, base, services.SimulationRequest{
		Amount:      amount,
		Days:        c.days,
		Recurrence:  strings.ToUpper(c.recurrence),
		Occurrences: c.occurrences,
	})
	if err != nil {
		return failed(err)
	}
	printMarkdown(simulationMarkdown(result, app.Reports.FormatMoney, c.all))
	if result.GoesNegative {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

type generateCmd struct {
	date string
}

func (*generateCmd) Name() string     { return "generate" }
func (*generateCmd) Synopsis() string { return "materialize due recurring occurrences" }
func (*generateCmd) Usage() string {
	return `generate [-d <date>]

  Stores every occurrence of the recurring templates due on or before the
  date. Running it twice stores nothing new.
`
}

func (c *generateCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.date, "d", "", "as-of date, YYYY-MM-DD (defaults to today)")
}

func (c *generateCmd) Execute(ctx context.Context, _ *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	app, ok := appFrom(ctx, args)
	if !ok {
		return subcommands.ExitFailure
	}
	asOf, err := dateOr(c.date, app)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	n, err := app.Recurring.GeneratePending(ctx, asOf)
	if err != nil {
		return failed(err)
	}
	fmt.Fprintf(stdout, "%d occurrence(s) generated up to %s\n", n, asOf)
	return subcommands.ExitSuccess
}

package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/google/subcommands"
)

type reportCmd struct {
	language string
	analysis bool
}

func (*reportCmd) Name() string     { return "report" }
func (*reportCmd) Synopsis() string { return "summarize the ledger" }
func (*reportCmd) Usage() string {
	return `report [-analysis] [-lang en|pt-BR]

  Prints totals per category. With -analysis, asks the configured model for
  a written review of the finances.
`
}

func (c *reportCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.language, "lang", "en", "report language, en or pt-BR")
	f.BoolVar(&c.analysis, "analysis", false, "append the model's analysis")
}

func (c *reportCmd) Execute(ctx context.Context, _ *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	app, ok := appFrom(ctx, args)
	if !ok {
		return subcommands.ExitFailure
	}
	summary, err := app.Reports.Summary(ctx)
	if err != nil {
		return failed(err)
	}
	md := summaryMarkdown(summary, app.Reports.FormatMoney)

	if c.analysis {
		analysis, err := app.Reports.GenerateAnalysis(ctx, c.language)
		if err != nil {
			return failed(err)
		}
		if !analysis.Success {
			printMarkdown(md)
			fmt.Fprintf(stderr, "Error: %s\n", analysis.ErrorMessage)
			return subcommands.ExitFailure
		}
		md += "\n---\n\n" + analysis.Analysis + "\n"
	}
	printMarkdown(md)
	return subcommands.ExitSuccess
}

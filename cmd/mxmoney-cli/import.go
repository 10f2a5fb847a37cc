package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"mxmoney/internal/services"
)

type importCmd struct {
	save bool
}

func (*importCmd) Name() string     { return "import" }
func (*importCmd) Synopsis() string { return "import a bank statement CSV" }
func (*importCmd) Usage() string {
	return `import [-save] <file.csv>

  Parses the statement and proposes a category for every row. Rows are only
  stored with -save.
`
}

func (c *importCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.save, "save", false, "store the categorized rows")
}

func (c *importCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprint(stderr, c.Usage())
		return subcommands.ExitUsageError
	}
	file, err := os.Open(f.Arg(0))
	if err != nil {
		return failed(err)
	}
	defer file.Close()

	items, err := services.ParseCSV(ctx, file)
	if err != nil {
		return failed(err)
	}
	if len(items) == 0 {
		return failed(fmt.Errorf("no readable rows in %s", f.Arg(0)))
	}

	app, ok := appFrom(ctx, args)
	if !ok {
		return subcommands.ExitFailure
	}
	items = app.Imports.Categorize(ctx, items)
	printMarkdown(importMarkdown(items))

	if !c.save {
		return subcommands.ExitSuccess
	}
	saved, err := app.Imports.SaveImported(ctx, items)
	fmt.Fprintf(stdout, "%d transaction(s) saved\n", len(saved))
	if err != nil {
		return failed(err)
	}
	return subcommands.ExitSuccess
}

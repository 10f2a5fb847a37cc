package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"

	"github.com/google/subcommands"
)

type backupCmd struct{}

func (*backupCmd) Name() string     { return "backup" }
func (*backupCmd) Synopsis() string { return "list, create, restore or delete database backups" }
func (*backupCmd) Usage() string {
	return `backup list
backup create
backup restore <name>
backup delete <name>

  Manages the local database backups. Restore takes a safety backup first.
`
}

func (*backupCmd) SetFlags(*flag.FlagSet) {}

func (c *backupCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	if f.NArg() < 1 {
		fmt.Fprint(stderr, c.Usage())
		return subcommands.ExitUsageError
	}
	action, rest := f.Arg(0), f.Args()[1:]
	needsName := action == "restore" || action == "delete"
	if needsName && len(rest) != 1 {
		fmt.Fprint(stderr, c.Usage())
		return subcommands.ExitUsageError
	}

	app, ok := appFrom(ctx, args)
	if !ok {
		return subcommands.ExitFailure
	}
	if app.Backups == nil {
		return failed(errors.New("backups are not supported by this storage backend"))
	}

	switch action {
	case "list":
		list, err := app.Backups.List()
		if err != nil {
			return failed(err)
		}
		var b strings.Builder
		b.WriteString("# Backups\n\n")
		if len(list) == 0 {
			b.WriteString("No backups yet.\n")
		} else {
			b.WriteString("| Name | Created | Size |\n|---|---|---:|\n")
			for _, info := range list {
				fmt.Fprintf(&b, "| %s | %s | %d KB |\n", info.Name, info.Created.Format("2006-01-02 15:04:05"), (info.Size+1023)/1024)
			}
		}
		printMarkdown(b.String())
	case "create":
		name, err := app.Backups.Create(ctx)
		if err != nil {
			return failed(err)
		}
		fmt.Fprintln(stdout, name)
	case "restore":
		if err := app.Backups.Restore(ctx, rest[0]); err != nil {
			return failed(err)
		}
		fmt.Fprintf(stdout, "restored %s\n", rest[0])
	case "delete":
		if err := app.Backups.Delete(ctx, rest[0]); err != nil {
			return failed(err)
		}
		fmt.Fprintf(stdout, "deleted %s\n", rest[0])
	default:
		fmt.Fprintf(stderr, "unknown action %q\n", action)
		return subcommands.ExitUsageError
	}
	return subcommands.ExitSuccess
}

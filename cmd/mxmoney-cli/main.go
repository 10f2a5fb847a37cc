// Command mxmoney-cli inspects and maintains the ledger from a terminal,
// using the same configuration as the server.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"sync"

	"github.com/google/subcommands"

	"mxmoney/internal/backend"
	"mxmoney/internal/cli"
	"mxmoney/internal/config"
	applog "mxmoney/internal/log"
)

var plain = flag.Bool("plain", false, "print raw markdown instead of rendering it")

var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

func main() {
	completion.Complete(path.Base(os.Args[0]))

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")

	commander.Register(&balanceCmd{}, "ledger")
	commander.Register(&projectionCmd{}, "ledger")
	commander.Register(&simulateCmd{}, "ledger")
	commander.Register(&generateCmd{}, "ledger")
	commander.Register(&reportCmd{}, "ledger")
	commander.Register(&importCmd{}, "ledger")
	commander.Register(&backupCmd{}, "maintenance")

	flag.Parse()

	s := &session{}
	defer s.Close()
	os.Exit(int(commander.Execute(context.Background(), s)))
}

// session opens the application on first use so that help never touches
// the database.
type session struct {
	once sync.Once
	app  *backend.App
	err  error
}

func (s *session) App(ctx context.Context) (*backend.App, error) {
	s.once.Do(func() {
		var cfg *config.Config
		cfg, s.err = cli.LoadConfig()
		if s.err != nil {
			return
		}
		level, _ := applog.ParseLevel(cfg.LogLevel)
		logger := applog.New(applog.Config{
			Level:     max(level, slog.LevelWarn),
			Format:    cfg.LogFormat,
			Component: applog.ComponentCLI,
			Output:    stderr,
		})
		applog.SetDefault(logger)
		s.app, s.err = backend.NewApp(ctx, cfg, logger.Logger)
	})
	return s.app, s.err
}

func (s *session) Close() {
	if s.app != nil {
		_ = s.app.Close()
	}
}

// appFrom extracts the session passed to Execute and opens the app,
// reporting failures on stderr.
func appFrom(ctx context.Context, args []interface{}) (*backend.App, bool) {
	s, ok := args[0].(*session)
	if !ok {
		fmt.Fprintln(stderr, "Error: no session")
		return nil, false
	}
	app, err := s.App(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return nil, false
	}
	return app, true
}

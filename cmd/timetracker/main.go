package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/timetracker/cmd/timetracker/commands"
	"git.home.luguber.info/inful/timetracker/internal/foundation/errors"
	"git.home.luguber.info/inful/timetracker/internal/version"
)

func main() {
	cli := &commands.CLI{}
	parser := kong.Parse(cli,
		kong.Name("timetracker"),
		kong.Description("Foreground time tracking agent"),
		kong.Vars{"version": version.String()},
		kong.UsageOnError(),
	)

	err := parser.Run(&commands.Global{Out: os.Stdout}, cli)
	if err == nil {
		return
	}
	adapter := errors.NewCLIErrorAdapter(cli.Verbose, slog.Default())
	adapter.LogError(err)
	_, _ = fmt.Fprintln(os.Stderr, adapter.FormatError(err))
	os.Exit(adapter.ExitCodeFor(err))
}

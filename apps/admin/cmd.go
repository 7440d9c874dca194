package main

import (
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/trezcool/masomo-schedule/core/schedule"
)

var (
	nowFunc = time.Now // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db  *sql.DB
	svc schedule.Service
	out io.Writer
}

func (cmd *commandLine) app() *cli.App {
	app := &cli.App{
		Name:   "admin",
		Usage:  "Masomo schedule administration",
		Writer: cmd.out,
		Commands: []*cli.Command{
			cmd.migrateCmd(),
			cmd.refreshCmd(),
			cmd.seriesCmd(),
			cmd.upcomingCmd(),
		},
	}
	// return errors to the caller instead of exiting
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

func (cmd *commandLine) run(args []string) error {
	if len(args) < 2 {
		_ = cmd.app().Run([]string{"admin"}) // prints the usage
		return errHelp
	}
	return cmd.app().Run(args)
}

func (cmd *commandLine) outputJSON(v interface{}) error {
	enc := json.NewEncoder(cmd.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

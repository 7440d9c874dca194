package main

import (
	"github.com/urfave/cli/v2"

	"github.com/trezcool/masomo-schedule/storage/database"
)

var gooseRunFunc = database.GooseRun // mockable

func (cmd *commandLine) migrateCmd() *cli.Command {
	return &cli.Command{
		Name:      "migrate",
		Usage:     "Run a goose migration command against the database",
		ArgsUsage: "COMMAND [ARGS] (up, up-by-one, up-to VERSION, down, down-to VERSION, redo, reset, status, version, create NAME [sql|go], fix)",
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				_ = cli.ShowSubcommandHelp(c)
				return errHelp
			}
			args := c.Args().Slice()
			return gooseRunFunc(args[0], cmd.db, args[1:]...)
		},
	}
}

package main

import (
	"context"

	"github.com/urfave/cli/v2"

	"github.com/trezcool/masomo-schedule/core/schedule"
)

func (cmd *commandLine) refreshCmd() *cli.Command {
	return &cli.Command{
		Name:  "refresh",
		Usage: "Top up every series' occurrences to the rolling window",
		Action: func(c *cli.Context) error {
			n, err := cmd.svc.Refresh(ctx(c), nowFunc())
			if err != nil {
				return err
			}
			return cmd.outputJSON(map[string]int{"inserted": n})
		},
	}
}

func (cmd *commandLine) seriesCmd() *cli.Command {
	return &cli.Command{
		Name:  "series",
		Usage: "List series",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "group", Aliases: []string{"g"}, Usage: "Only series of this group"},
		},
		Action: func(c *cli.Context) error {
			series, err := cmd.svc.QuerySeries(ctx(c), schedule.SeriesFilter{GroupID: c.String("group")})
			if err != nil {
				return err
			}
			return cmd.outputJSON(series)
		},
	}
}

func (cmd *commandLine) upcomingCmd() *cli.Command {
	return &cli.Command{
		Name:  "upcoming",
		Usage: "List occurrences starting soon",
		Flags: []cli.Flag{
			&cli.DurationFlag{Name: "within", Usage: "Look-ahead, defaults to schedule.upcomingWindow"},
		},
		Action: func(c *cli.Context) error {
			occs, err := cmd.svc.Upcoming(ctx(c), nowFunc(), c.Duration("within"))
			if err != nil {
				return err
			}
			return cmd.outputJSON(occs)
		},
	}
}

func ctx(c *cli.Context) context.Context {
	if c.Context != nil {
		return c.Context
	}
	return context.Background()
}

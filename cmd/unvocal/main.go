package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"unvocal/cmd/unvocal/commands"
	"unvocal/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &cli.Command{
		Name:    "unvocal",
		Usage:   "Remove vocals from YouTube videos and follow the progress",
		Version: version.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "env",
				Usage: "environment file path",
				Value: ".env",
			},
			&cli.StringFlag{
				Name:  "server",
				Usage: "backend base URL (overrides UNVOCAL_SERVER_URL)",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "log every poll",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "remove",
				Usage:     "submit a URL and wait for the instrumental track",
				ArgsUsage: "<youtube-url>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "download",
						Usage: "save the result to this file or directory",
					},
				},
				Action: commands.RemoveAction,
			},
			{
				Name:   "watch",
				Usage:  "read URLs from stdin and submit them one at a time",
				Action: commands.WatchAction,
			},
			{
				Name:      "status",
				Usage:     "show the status of a request",
				ArgsUsage: "<request-id>",
				Action:    commands.StatusAction,
			},
			{
				Name:  "jobs",
				Usage: "list recent jobs",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "status",
						Usage: "filter by status (pending/running/success/error)",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "maximum number of jobs",
						Value: 20,
					},
				},
				Action: commands.JobsAction,
			},
			{
				Name:   "stats",
				Usage:  "count jobs per status",
				Action: commands.StatsAction,
			},
		},
	}

	if err := app.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

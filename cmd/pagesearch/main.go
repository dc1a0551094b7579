package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
)

func main() {
	app := &cli.Command{
		Name:  "pagesearch",
		Usage: "Search helpdesk pages from the terminal",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "Configuration file path",
				Value: "configs/development.yaml",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level written to stderr (debug, info, warn, error)",
				Value: "warn",
			},
			&cli.BoolFlag{
				Name:  "member",
				Usage: "Search as a signed-in member, including private pages",
			},
		},
		Commands: []*cli.Command{
			searchCommand(),
			consoleCommand(),
			statsCommand(),
			addPageCommand(),
			removePageCommand(),
			keysCommand(),
			loadTestCommand(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("error: "+err.Error()))
		os.Exit(1)
	}
}

package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/dtnitsch/ragebait-block/internal/bootstrap"
	"github.com/dtnitsch/ragebait-block/internal/classify"
	"github.com/dtnitsch/ragebait-block/internal/db"
	"github.com/dtnitsch/ragebait-block/internal/filter"
	"github.com/dtnitsch/ragebait-block/internal/prefs"
	"github.com/dtnitsch/ragebait-block/internal/serve"
	"github.com/dtnitsch/ragebait-block/internal/setup"
)

var version = "dev"

func main() {
	app := &cli.App{
		Name:    "ragebait",
		Usage:   "Hide rage-bait posts on supported sites",
		Version: version,
		Flags:   bootstrap.GlobalFlags(),
		Commands: []*cli.Command{
			{
				Name:   "install",
				Usage:  "Initialize stored settings and check the engine permission",
				Action: setup.InstallAction,
			},
			{
				Name:  "setup",
				Usage: "Show or grant the classification engine permission",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "grant", Usage: "Grant the permission"},
				},
				Action: setup.SetupAction,
			},
			{
				Name:  "settings",
				Usage: "View and edit settings",
				Subcommands: []*cli.Command{
					{
						Name:   "show",
						Usage:  "Print the current settings",
						Action: prefs.ShowAction,
					},
					{
						Name:      "site",
						Usage:     "Enable or disable a site",
						ArgsUsage: "<site> on|off",
						Action:    prefs.SiteAction,
					},
					{
						Name:      "debug",
						Usage:     "Badge posts instead of hiding them",
						ArgsUsage: "on|off",
						Action:    prefs.DebugAction,
					},
					{
						Name:      "threshold",
						Usage:     "List thresholds, or set one",
						ArgsUsage: "[LABEL VALUE]",
						Action:    prefs.ThresholdAction,
					},
				},
				Action: prefs.ShowAction,
			},
			{
				Name:   "sites",
				Usage:  "List supported sites and their selectors",
				Action: prefs.SitesAction,
			},
			{
				Name:      "classify",
				Usage:     "Classify one piece of text",
				ArgsUsage: "<text>",
				Action:    classify.ClassifyAction,
			},
			{
				Name:   "filter",
				Usage:  "Hide rage-bait posts in fetched, local or live pages",
				Flags:  filter.Flags(),
				Action: filter.FilterAction,
			},
			{
				Name:  "serve",
				Usage: "Run the HTTP coordinator",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "addr", Usage: "Listen address"},
				},
				Action: serve.ServeAction,
			},
			{
				Name:  "db",
				Usage: "Inspect the sqlite settings store",
				Subcommands: []*cli.Command{
					{
						Name:   "keys",
						Usage:  "List stored keys",
						Action: db.KeysAction,
					},
					{
						Name:      "get",
						Usage:     "Print a stored value",
						ArgsUsage: "<key>",
						Action:    db.GetAction,
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// Package cli provides the command-line interface for selfheal cache
// and statistics administration.
package cli

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/selfheal/pkg/logger"
)

// Version is set at build time.
var Version = "dev"

// GlobalFlags are available to all commands.
var GlobalFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "cache",
		Aliases: []string{"c"},
		Usage:   "Path to the healing cache (JSON file or SQLite .db)",
		Value:   "reports/healing_cache.json",
		EnvVars: []string{"SELFHEAL_CACHE"},
	},
	&cli.BoolFlag{
		Name:    "json",
		Usage:   "Emit machine-readable JSON output",
		EnvVars: []string{"SELFHEAL_JSON"},
	},
	&cli.BoolFlag{
		Name:    "verbose",
		Usage:   "Enable verbose logging",
		EnvVars: []string{"SELFHEAL_VERBOSE"},
	},
}

// Execute runs the CLI.
func Execute() {
	app := &cli.App{
		Name:    "selfheal",
		Usage:   "Inspect and manage the self-healing locator cache",
		Version: Version,
		Description: `Selfheal keeps test suites running when UI locators drift: failed
locators are healed through fallback strategies and the discovered
replacements are cached between runs.

Examples:
  selfheal stats
  selfheal cache list --cache reports/healing_cache.json
  selfheal cache clear`,
		Flags: GlobalFlags,
		Before: func(c *cli.Context) error {
			if c.Bool("verbose") {
				logger.SetVerbose(true)
			}
			return nil
		},
		Commands: []*cli.Command{
			statsCommand,
			cacheCommand,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

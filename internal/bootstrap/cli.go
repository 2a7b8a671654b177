package bootstrap

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v2"

	"github.com/dtnitsch/ragebait-block/internal/config"
	"github.com/dtnitsch/ragebait-block/internal/logging"
)

// Global flag names shared by every command.
const (
	FlagConfig      = "config"
	FlagLogLevel    = "log-level"
	FlagQuiet       = "quiet"
	FlagStore       = "store"
	FlagStorePath   = "db"
	FlagEndpoint    = "endpoint"
	FlagCoordinator = "coordinator"
)

// GlobalFlags are registered on the root app.
func GlobalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    FlagConfig,
			Aliases: []string{"c"},
			Usage:   "Path to a YAML config file (default: ./" + config.DefaultFile + " if present)",
			EnvVars: []string{"RAGEBAIT_CONFIG"},
		},
		&cli.StringFlag{
			Name:  FlagLogLevel,
			Usage: "Log level: debug, info, warn, error",
		},
		&cli.BoolFlag{
			Name:    FlagQuiet,
			Aliases: []string{"q"},
			Usage:   "Only log errors",
		},
		&cli.StringFlag{
			Name:  FlagStore,
			Usage: "Settings store driver: sqlite, memory, mongo, redis",
		},
		&cli.StringFlag{
			Name:  FlagStorePath,
			Usage: "SQLite database path",
		},
		&cli.StringFlag{
			Name:  FlagEndpoint,
			Usage: "Classification engine URL",
		},
		&cli.StringFlag{
			Name:  FlagCoordinator,
			Usage: "URL of a running 'ragebait serve' to classify through instead of a local engine",
		},
	}
}

// Configure loads the config file and applies global flags over it.
func Configure(c *cli.Context) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(c.String(FlagConfig))
	if err != nil {
		return nil, nil, err
	}
	applyFlags(cfg, c)

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, nil, fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return cfg, logging.New(cfg.Log.Level, c.Bool(FlagQuiet)), nil
}

func applyFlags(cfg *config.Config, c *cli.Context) {
	if c.IsSet(FlagLogLevel) {
		cfg.Log.Level = c.String(FlagLogLevel)
	}
	if c.IsSet(FlagStore) {
		cfg.Store.Driver = c.String(FlagStore)
	}
	if c.IsSet(FlagStorePath) {
		cfg.Store.Path = c.String(FlagStorePath)
	}
	if c.IsSet(FlagEndpoint) {
		cfg.Engine.Endpoint = c.String(FlagEndpoint)
	}
	if c.IsSet(FlagCoordinator) {
		cfg.Engine.Coordinator = c.String(FlagCoordinator)
	}
}

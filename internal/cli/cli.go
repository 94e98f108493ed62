// Package cli provides the command-line interface for the manifest tooling.
// It wires the parser, the configuration and the metadata store into the
// lint, show and store commands.
package cli

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pacbuild-project/pacbuild/internal/config"
	"github.com/pacbuild-project/pacbuild/internal/logger"
	"github.com/pacbuild-project/pacbuild/internal/storage"
)

// NewApp creates and configures the main CLI application.
func NewApp() *cli.App {
	return &cli.App{
		Name:     "pacbuild",
		Usage:    "Parse, lint and track package-build manifests",
		Version:  "1.0.0",
		Compiled: time.Now(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "pacbuild.yml",
				Usage:   "path to configuration file",
				EnvVars: []string{"PACBUILD_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Usage:   "log level (debug, info, warn, error)",
				EnvVars: []string{"PACBUILD_LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "log-format",
				Value:   "text",
				Usage:   "log format (text, json)",
				EnvVars: []string{"PACBUILD_LOG_FORMAT"},
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Value: 30 * time.Second,
				Usage: "time limit for shell expansion of one manifest",
			},
		},
		Before: func(c *cli.Context) error {
			_, err := logger.New(c.String("log-level"), c.String("log-format"))
			return err
		},
		Commands: []*cli.Command{
			lintCommand(),
			showCommand(),
			storeCommand(),
		},
	}
}

// loadConfig loads the configuration named by the global flag.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// initDB initializes the database connection based on the provided configuration.
func initDB(cfg *config.Config) (*storage.DB, error) {
	return storage.InitDB(storage.Config{
		DatabasePath: cfg.Storage.DatabasePath,
		LogLevel:     "warn",
	})
}

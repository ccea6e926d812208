// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/gardener/runsweeper/pkg/core/config"
	slogutils "github.com/gardener/runsweeper/pkg/utils/slog"
	"github.com/gardener/runsweeper/pkg/version"

	// Register task handlers
	_ "github.com/gardener/runsweeper/pkg/cleanup/tasks"
)

// Environment variables of the global flags.
const (
	configEnv        = "RUNSWEEPER_CONFIG"
	redisEndpointEnv = "REDIS_ENDPOINT"
	databaseURIEnv   = "DATABASE_URI"
	githubURLEnv     = "GITHUB_API_URL"
)

func main() {
	app := &cli.App{
		Name:                 "runsweeper",
		Version:              version.Version,
		EnableBashCompletion: true,
		Usage:                "clean up historical github actions workflow runs",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "debug",
				Usage:   "enables debug mode, if set",
				Value:   false,
				EnvVars: []string{"RUNSWEEPER_DEBUG"},
			},
			&cli.StringFlag{
				Name:    "config",
				Usage:   "path to config file",
				Aliases: []string{"file"},
				EnvVars: []string{configEnv},
			},
			&cli.StringFlag{
				Name:    "env-file",
				Usage:   "path to a .env file to load before reading the environment",
				EnvVars: []string{"RUNSWEEPER_ENV_FILE"},
			},
			&cli.StringFlag{
				Name:    "redis-endpoint",
				Usage:   "redis endpoint to connect to",
				EnvVars: []string{redisEndpointEnv},
			},
			&cli.StringFlag{
				Name:    "database-uri",
				Usage:   "database uri to connect to",
				EnvVars: []string{databaseURIEnv},
			},
			&cli.StringFlag{
				Name:    "github-url",
				Usage:   "github api url",
				EnvVars: []string{githubURLEnv},
			},
		},
		Before: func(ctx *cli.Context) error {
			// Variables from the .env file do not override the
			// ones already set in the environment. The global flags
			// were parsed before the file was loaded, so they are
			// looked up again with flagOrEnv.
			if envFile := ctx.String("env-file"); envFile != "" {
				if err := godotenv.Load(envFile); err != nil {
					return fmt.Errorf("Cannot load env file: %w", err)
				}
			}

			conf := config.Default()
			if configFile, ok := flagOrEnv(ctx, "config", configEnv); ok {
				parsed, err := config.Parse(configFile)
				if err != nil {
					return fmt.Errorf("Cannot parse config: %w", err)
				}
				conf = parsed
			}

			// Overrides from flags/options
			if ctx.IsSet("debug") {
				conf.Debug = ctx.Bool("debug")
			}

			if val, ok := flagOrEnv(ctx, "redis-endpoint", redisEndpointEnv); ok {
				conf.Redis.Endpoint = val
			}

			if val, ok := flagOrEnv(ctx, "database-uri", databaseURIEnv); ok {
				conf.Database.DSN = val
			}

			if val, ok := flagOrEnv(ctx, "github-url", githubURLEnv); ok {
				conf.GitHub.APIURL = val
			}

			if conf.Debug {
				conf.Logging.Level = "debug"
			}

			logger, err := slogutils.NewFromConfig(os.Stderr, conf.Logging)
			if err != nil {
				return err
			}
			slog.SetDefault(logger)

			ctx.Context = context.WithValue(ctx.Context, configKey{}, conf)

			return nil
		},
		Commands: []*cli.Command{
			NewCleanCommand(),
			NewWorkerCommand(),
			NewSchedulerCommand(),
			NewTaskCommand(),
			NewHistoryCommand(),
			NewDatabaseCommand(),
			NewDashboardCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

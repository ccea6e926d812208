// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/hibiken/asynq"
	"github.com/urfave/cli/v2"

	"github.com/gardener/runsweeper/pkg/cleanup/tasks"
	dbclient "github.com/gardener/runsweeper/pkg/clients/db"
	githubclient "github.com/gardener/runsweeper/pkg/clients/github"
	"github.com/gardener/runsweeper/pkg/core/config"
	"github.com/gardener/runsweeper/pkg/core/registry"
	"github.com/gardener/runsweeper/pkg/metrics"
	asynqutils "github.com/gardener/runsweeper/pkg/utils/asynq"
	"github.com/gardener/runsweeper/pkg/utils/asynq/worker"
)

// NewWorkerCommand returns a new command for interfacing with the workers.
func NewWorkerCommand() *cli.Command {
	cmd := &cli.Command{
		Name:    "worker",
		Usage:   "worker operations",
		Aliases: []string{"w"},
		Before: func(ctx *cli.Context) error {
			return validateRedisConfig(getConfig(ctx))
		},
		Subcommands: []*cli.Command{
			{
				Name:    "start",
				Usage:   "start the workers",
				Aliases: []string{"s"},
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "concurrency",
						Usage:   "number of concurrent workers to start",
						EnvVars: []string{"WORKER_CONCURRENCY"},
					},
				},
				Action: func(ctx *cli.Context) error {
					conf := getConfig(ctx)
					if ctx.IsSet("concurrency") {
						conf.Worker.Concurrency = ctx.Int("concurrency")
					}

					// Initialize clients in workers
					client, err := newGitHubClient(ctx.Context, conf, "")
					if err != nil {
						return err
					}
					githubclient.SetClient(client)

					if conf.Database.DSN != "" {
						db, err := newDB(conf)
						if err != nil {
							return err
						}
						defer db.Close() // nolint: errcheck
						dbclient.SetDB(db)
					} else {
						slog.Warn("no database configured, cleanup history will not be recorded")
					}

					w := newWorker(ctx, conf)
					for _, name := range w.HandleRegistry(registry.TaskRegistry) {
						slog.Info("registered task", "name", name)
					}

					var metricsServer *http.Server
					if addr := conf.Worker.Metrics.Address; addr != "" {
						metricsServer = metrics.NewServer(addr, conf.Worker.Metrics.Path)
						go func() {
							slog.Info("starting metrics server", "address", addr, "path", conf.Worker.Metrics.Path)
							if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
								slog.Error("failed to start metrics server", "reason", err)
							}
						}()
					}

					runErr := w.Run()
					if metricsServer != nil {
						shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
						defer cancel()
						if err := metricsServer.Shutdown(shutdownCtx); err != nil {
							slog.Error("failed to shutdown metrics server", "reason", err)
						}
					}

					return runErr
				},
			},
		},
	}

	return cmd
}

// newWorker creates a new [worker.Worker] with the middlewares configured.
func newWorker(ctx *cli.Context, conf *config.Config) *worker.Worker {
	errorHandler := func(_ context.Context, task *asynq.Task, err error) {
		slog.Error("task failed", "name", task.Type(), "reason", err)
	}

	w := worker.NewFromConfig(
		newRedisClientOpt(conf),
		conf.Worker,
		worker.WithLogLevel(asynqLogLevel(conf)),
		worker.WithErrorHandler(asynq.ErrorHandlerFunc(errorHandler)),
		worker.WithBaseContext(func() context.Context { return ctx.Context }),
		worker.WithShutdownTimeout(30*time.Second),
	)

	w.UseMiddlewares(
		asynqutils.NewLoggerMiddleware(slog.Default(), tasks.PayloadAttrs),
		asynqutils.NewMeasuringMiddleware(),
		asynqutils.NewMetricsMiddleware(),
	)

	return w
}

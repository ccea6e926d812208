// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/urfave/cli/v2"

	"github.com/gardener/runsweeper/pkg/core/config"
	"github.com/gardener/runsweeper/pkg/core/registry"
)

// NewSchedulerCommand returns a new command for interfacing with the scheduler.
func NewSchedulerCommand() *cli.Command {
	cmd := &cli.Command{
		Name:    "scheduler",
		Usage:   "scheduler operations",
		Aliases: []string{"s"},
		Before: func(ctx *cli.Context) error {
			return validateRedisConfig(getConfig(ctx))
		},
		Subcommands: []*cli.Command{
			{
				Name:    "start",
				Usage:   "start the scheduler",
				Aliases: []string{"s"},
				Action: func(ctx *cli.Context) error {
					conf := getConfig(ctx)
					if len(conf.Scheduler.Jobs) == 0 {
						slog.Warn("no periodic jobs configured")
					}

					scheduler := newScheduler(conf)
					for _, job := range conf.Scheduler.Jobs {
						if _, ok := registry.TaskRegistry.Get(job.Name); !ok {
							slog.Warn("no handler registered for job", "name", job.Name)
						}

						queue := jobQueue(conf, job)
						task := asynq.NewTask(job.Name, []byte(job.Payload))
						id, err := scheduler.Register(job.Spec, task, asynq.Queue(queue))
						if err != nil {
							return err
						}

						slog.Info(
							"periodic task registered",
							"id", id,
							"name", task.Type(),
							"spec", job.Spec,
							"desc", job.Desc,
							"queue", queue,
						)
					}

					return scheduler.Run()
				},
			},
			{
				Name:    "jobs",
				Usage:   "list periodic jobs",
				Aliases: []string{"j"},
				Action: func(ctx *cli.Context) error {
					conf := getConfig(ctx)
					inspector := newInspector(conf)
					defer inspector.Close() // nolint: errcheck
					items, err := inspector.SchedulerEntries()
					if err != nil {
						return err
					}

					if len(items) == 0 {
						return nil
					}

					headers := []string{
						"ID",
						"SPEC",
						"TYPE",
						"PREV",
						"NEXT",
						"OPTS",
					}

					table := newTableWriter(os.Stdout, headers)
					for _, item := range items {
						prev := item.Prev.String()
						if item.Prev.IsZero() {
							prev = na
						}

						opts := make([]string, 0, len(item.Opts))
						for _, opt := range item.Opts {
							opts = append(opts, opt.String())
						}

						row := []string{
							item.ID,
							item.Spec,
							item.Task.Type(),
							prev,
							fmt.Sprintf("In %s", time.Until(item.Next).Round(time.Second)),
							strings.Join(opts, ", "),
						}
						table.Append(row)
					}
					table.Render()

					return nil
				},
			},
		},
	}

	return cmd
}

// jobQueue returns the queue for the given periodic job.
func jobQueue(conf *config.Config, job *config.PeriodicJob) string {
	if job.Queue != "" {
		return job.Queue
	}

	if conf.Scheduler.DefaultQueue != "" {
		return conf.Scheduler.DefaultQueue
	}

	return config.DefaultQueueName
}

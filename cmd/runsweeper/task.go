// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hibiken/asynq"
	"github.com/urfave/cli/v2"

	"github.com/gardener/runsweeper/pkg/cleanup/tasks"
	"github.com/gardener/runsweeper/pkg/core/config"
	"github.com/gardener/runsweeper/pkg/core/registry"
)

// errAmbiguousPayload is returned when more than one payload source is
// specified.
var errAmbiguousPayload = errors.New("cannot use --payload, --payload-file and --repository at the same time")

// NewTaskCommand returns a [cli.Command] for interfacing with task-related
// operations.
func NewTaskCommand() *cli.Command {
	cmd := &cli.Command{
		Name:    "task",
		Usage:   "task operations",
		Aliases: []string{"t"},
		Subcommands: []*cli.Command{
			{
				Name:    "list",
				Usage:   "list registered tasks",
				Aliases: []string{"ls"},
				Action: func(_ *cli.Context) error {
					for _, name := range registry.TaskRegistry.Keys() {
						fmt.Println(name)
					}

					return nil
				},
			},
			{
				Name:    "enqueue",
				Usage:   "submit a task",
				Aliases: []string{"submit"},
				Before: func(ctx *cli.Context) error {
					return validateRedisConfig(getConfig(ctx))
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "task",
						Aliases: []string{"t"},
						Usage:   "name of task to enqueue",
						Value:   tasks.CleanupRunsTaskType,
					},
					&cli.StringFlag{
						Name:  "payload",
						Usage: "task payload",
					},
					&cli.PathFlag{
						Name:  "payload-file",
						Usage: "path to a payload file",
					},
					&cli.StringFlag{
						Name:    "repository",
						Aliases: []string{"r"},
						Usage:   "repository to clean up, builds the payload from the flags below",
					},
					&cli.StringFlag{
						Name:  "event-filter",
						Usage: "comma-separated list of events to match",
					},
					&cli.StringFlag{
						Name:  "status-filter",
						Usage: "comma-separated list of statuses or conclusions to match",
					},
					&cli.StringFlag{
						Name:  "branch-filter",
						Usage: "branch to match",
					},
					&cli.StringFlag{
						Name:  "actor-filter",
						Usage: "actor login to match",
					},
					&cli.StringFlag{
						Name:  "maintain-span",
						Usage: "minimum age of the runs to delete",
					},
					&cli.BoolFlag{
						Name:  "dry-run",
						Usage: "report the matching runs without deleting them",
					},
					&cli.StringFlag{
						Name:    "queue",
						Aliases: []string{"q"},
						Usage:   "name of queue to use",
						Value:   config.DefaultQueueName,
					},
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "set timeout for task",
						Value: 30 * time.Minute,
					},
				},
				Action: func(ctx *cli.Context) error {
					conf := getConfig(ctx)
					taskName := ctx.String("task")
					payload, err := taskPayload(ctx)
					if err != nil {
						return err
					}

					client := newAsynqClient(conf)
					defer client.Close() // nolint: errcheck

					task := asynq.NewTask(taskName, payload)
					opts := []asynq.Option{
						asynq.Queue(ctx.String("queue")),
						asynq.Timeout(ctx.Duration("timeout")),
					}
					info, err := client.EnqueueContext(ctx.Context, task, opts...)
					if err != nil {
						return fmt.Errorf("cannot enqueue %q task: %w", taskName, err)
					}

					fmt.Printf("%s/%s\n", info.Queue, info.ID)

					return nil
				},
			},
			{
				Name:    "inspect",
				Usage:   "inspect a task",
				Aliases: []string{"i"},
				Before: func(ctx *cli.Context) error {
					return validateRedisConfig(getConfig(ctx))
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "queue",
						Aliases: []string{"q"},
						Usage:   "name of queue to use",
						Value:   config.DefaultQueueName,
					},
					&cli.StringFlag{
						Name:     "id",
						Usage:    "task id",
						Required: true,
					},
				},
				Action: func(ctx *cli.Context) error {
					conf := getConfig(ctx)
					inspector := newInspector(conf)
					defer inspector.Close() // nolint: errcheck
					info, err := inspector.GetTaskInfo(ctx.String("queue"), ctx.String("id"))
					if err != nil {
						return err
					}

					completedAt := info.CompletedAt.String()
					if info.CompletedAt.IsZero() {
						completedAt = na
					}

					fmt.Printf("%-20s: %s\n", "ID", info.ID)
					fmt.Printf("%-20s: %s\n", "Queue", info.Queue)
					fmt.Printf("%-20s: %s\n", "Type/Name", info.Type)
					fmt.Printf("%-20s: %v\n", "State", info.State)
					fmt.Printf("%-20s: %d/%d\n", "Retry", info.Retried, info.MaxRetry)
					fmt.Printf("%-20s: %s\n", "Timeout", info.Timeout.String())
					fmt.Printf("%-20s: %s\n", "Completed At", completedAt)
					fmt.Printf("%-20s: %s\n", "Last Error", valueOrNA(info.LastErr))
					fmt.Printf("\nPayload\n")
					fmt.Println("-------")
					fmt.Printf("%s\n", string(info.Payload))

					return nil
				},
			},
			{
				Name:  "cancel",
				Usage: "cancel a running task",
				Before: func(ctx *cli.Context) error {
					return validateRedisConfig(getConfig(ctx))
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "id",
						Usage:    "task id",
						Required: true,
					},
				},
				Action: func(ctx *cli.Context) error {
					conf := getConfig(ctx)
					inspector := newInspector(conf)
					defer inspector.Close() // nolint: errcheck

					return inspector.CancelProcessing(ctx.String("id"))
				},
			},
		},
	}

	return cmd
}

// taskPayload returns the payload of the task to enqueue, which comes from
// --payload, --payload-file or the cleanup flags.
func taskPayload(ctx *cli.Context) ([]byte, error) {
	payloadData := ctx.String("payload")
	payloadFile := ctx.Path("payload-file")
	repository := ctx.String("repository")

	sources := 0
	for _, v := range []string{payloadData, payloadFile, repository} {
		if v != "" {
			sources++
		}
	}
	if sources > 1 {
		return nil, errAmbiguousPayload
	}

	switch {
	case payloadData != "":
		return []byte(payloadData), nil
	case payloadFile != "":
		data, err := os.ReadFile(filepath.Clean(payloadFile))
		if err != nil {
			return nil, fmt.Errorf("cannot read payload file: %w", err)
		}
		return data, nil
	case repository != "":
		p := tasks.CleanupRunsPayload{
			Repository:   repository,
			EventFilter:  ctx.String("event-filter"),
			StatusFilter: ctx.String("status-filter"),
			BranchFilter: ctx.String("branch-filter"),
			ActorFilter:  ctx.String("actor-filter"),
			MaintainSpan: ctx.String("maintain-span"),
			DryRun:       ctx.Bool("dry-run"),
		}
		task, err := tasks.NewCleanupRunsTask(p)
		if err != nil {
			return nil, err
		}
		return task.Payload(), nil
	}

	return nil, nil
}

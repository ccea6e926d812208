// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/gardener/runsweeper/pkg/cleanup"
	"github.com/gardener/runsweeper/pkg/cleanup/tasks"
	dbclient "github.com/gardener/runsweeper/pkg/clients/db"
)

// inputEnvVars returns the environment variables, which may provide the
// value of a clean flag. The INPUT_ variable is how GitHub Actions passes
// action inputs.
func inputEnvVars(name string, extra ...string) []string {
	upper := strings.ToUpper(name)
	items := []string{
		"INPUT_" + upper,
		"INPUT_" + strings.ReplaceAll(upper, "-", "_"),
		"RUNSWEEPER_" + strings.ReplaceAll(upper, "-", "_"),
	}

	return append(items, extra...)
}

// NewCleanCommand returns a new command for running a one-shot cleanup.
func NewCleanCommand() *cli.Command {
	cmd := &cli.Command{
		Name:  "clean",
		Usage: "delete the matching workflow runs of a repository",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "repository",
				Usage:   "repository in owner/name form",
				Aliases: []string{"r"},
				EnvVars: inputEnvVars("repository", "GITHUB_REPOSITORY"),
			},
			&cli.StringFlag{
				Name:    "token",
				Usage:   "github api token",
				Aliases: []string{"github-token"},
				EnvVars: inputEnvVars("token", "GITHUB_TOKEN"),
			},
			&cli.StringFlag{
				Name:    "event-filter",
				Usage:   "comma-separated list of events to match",
				EnvVars: inputEnvVars("event-filter"),
			},
			&cli.StringFlag{
				Name:    "status-filter",
				Usage:   "comma-separated list of statuses or conclusions to match",
				EnvVars: inputEnvVars("status-filter"),
			},
			&cli.StringFlag{
				Name:    "branch-filter",
				Usage:   "branch to match",
				EnvVars: inputEnvVars("branch-filter"),
			},
			&cli.StringFlag{
				Name:    "actor-filter",
				Usage:   "actor login to match",
				EnvVars: inputEnvVars("actor-filter"),
			},
			&cli.StringFlag{
				Name:    "maintain-span",
				Usage:   "minimum age of the runs to delete, e.g. 12h, 30d, 1y",
				EnvVars: inputEnvVars("maintain-span"),
			},
			&cli.IntFlag{
				Name:    "max-cycles",
				Usage:   "maximum number of fetch cycles, 0 means no limit",
				EnvVars: inputEnvVars("max-cycles"),
			},
			&cli.IntFlag{
				Name:    "concurrency",
				Usage:   "maximum number of concurrent deletions, 0 means no limit",
				EnvVars: inputEnvVars("concurrency"),
			},
			&cli.BoolFlag{
				Name:    "dry-run",
				Usage:   "report the matching runs without deleting them",
				EnvVars: inputEnvVars("dry-run"),
			},
			&cli.BoolFlag{
				Name:    "abort-on-list-error",
				Usage:   "fail when workflow runs cannot be listed",
				EnvVars: inputEnvVars("abort-on-list-error"),
			},
		},
		Action: func(ctx *cli.Context) error {
			conf := getConfig(ctx)
			payload := tasks.CleanupRunsPayload{
				Repository:       ctx.String("repository"),
				EventFilter:      ctx.String("event-filter"),
				StatusFilter:     ctx.String("status-filter"),
				BranchFilter:     ctx.String("branch-filter"),
				ActorFilter:      ctx.String("actor-filter"),
				MaintainSpan:     ctx.String("maintain-span"),
				MaxCycles:        ctx.Int("max-cycles"),
				Concurrency:      ctx.Int("concurrency"),
				DryRun:           ctx.Bool("dry-run"),
				AbortOnListError: ctx.Bool("abort-on-list-error"),
			}

			if err := payload.Validate(); err != nil {
				return err
			}

			client, err := newGitHubClient(ctx.Context, conf, ctx.String("token"))
			if err != nil {
				return err
			}

			if conf.Database.DSN != "" {
				db, err := newDB(conf)
				if err != nil {
					return err
				}
				defer db.Close() // nolint: errcheck
				dbclient.SetDB(db)
			}

			result, err := tasks.RunCleanup(ctx.Context, client, payload)
			if result == nil {
				return err
			}

			if result.FinalState == cleanup.StateAborted {
				return err
			}

			if err != nil {
				slog.Warn("cleanup completed with errors", "reason", err)
			}

			slog.Info(
				"cleanup completed",
				"repository", payload.Repository,
				"cycles", result.Cycles,
				"deleted", result.Deleted,
				"failed", result.Failed,
				"state", result.FinalState.String(),
				"cycle_limit_reached", result.CycleLimitReached,
				"duration", result.CompletedAt.Sub(result.StartedAt),
			)

			if payload.DryRun {
				printSelectedRuns(result.Selected)
			}

			return nil
		},
	}

	return cmd
}

// printSelectedRuns prints the runs matched during a dry run.
func printSelectedRuns(runs []cleanup.Run) {
	if len(runs) == 0 {
		fmt.Println("No workflow runs meet the filter-criteria")
		return
	}

	headers := []string{
		"ID",
		"NAME",
		"EVENT",
		"STATUS",
		"CONCLUSION",
		"BRANCH",
		"ACTOR",
		"LAST ACTIVITY",
	}
	table := newTableWriter(os.Stdout, headers)
	for _, r := range runs {
		lastActivity := na
		if ts := r.LastActivity(); !ts.IsZero() {
			lastActivity = ts.Format(time.RFC3339)
		}

		row := []string{
			strconv.FormatInt(r.ID, 10),
			valueOrNA(r.Name),
			valueOrNA(r.Event),
			valueOrNA(r.Status),
			valueOrNA(r.Conclusion),
			valueOrNA(r.HeadBranch),
			valueOrNA(r.Actor),
			lastActivity,
		}
		table.Append(row)
	}

	table.Render()
}

// valueOrNA returns s, or [na] if s is empty.
func valueOrNA(s string) string {
	if s == "" {
		return na
	}

	return s
}

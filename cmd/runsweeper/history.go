// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"os"
	"strconv"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/gardener/runsweeper/pkg/cleanup/models"
)

// NewHistoryCommand returns a new command for inspecting past cleanups.
func NewHistoryCommand() *cli.Command {
	cmd := &cli.Command{
		Name:    "history",
		Usage:   "cleanup history operations",
		Aliases: []string{"h"},
		Before: func(ctx *cli.Context) error {
			return validateDBConfig(getConfig(ctx))
		},
		Subcommands: []*cli.Command{
			{
				Name:    "list",
				Usage:   "list recent cleanups",
				Aliases: []string{"ls"},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "repository",
						Usage:   "only list cleanups of the given repository",
						Aliases: []string{"r"},
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "maximum number of cleanups to list",
						Value: 20,
					},
				},
				Action: func(ctx *cli.Context) error {
					conf := getConfig(ctx)
					db, err := newDB(conf)
					if err != nil {
						return err
					}
					defer db.Close() // nolint: errcheck

					items, err := models.RecentCleanupRuns(ctx.Context, db, ctx.String("repository"), ctx.Int("limit"))
					if err != nil {
						return err
					}

					if len(items) == 0 {
						return nil
					}

					headers := []string{
						"CLEANUP-ID",
						"REPOSITORY",
						"STARTED-AT",
						"DURATION",
						"CYCLES",
						"DELETED",
						"FAILED",
						"STATE",
						"DRY-RUN",
					}
					table := newTableWriter(os.Stdout, headers)
					for _, item := range items {
						row := []string{
							item.CleanupID.String(),
							item.Repository,
							item.StartedAt.Format(time.RFC3339),
							item.CompletedAt.Sub(item.StartedAt).Round(time.Millisecond).String(),
							strconv.Itoa(item.Cycles),
							strconv.FormatInt(item.Deleted, 10),
							strconv.FormatInt(item.Failed, 10),
							item.FinalState,
							strconv.FormatBool(item.DryRun),
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

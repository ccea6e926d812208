// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/uptrace/bun/migrate"
	"github.com/urfave/cli/v2"
)

// withMigrator opens the database, creates a [migrate.Migrator] and passes
// it to f. The database is closed once f returns.
func withMigrator(ctx *cli.Context, f func(m *migrate.Migrator) error) error {
	conf := getConfig(ctx)
	db, err := newDB(conf)
	if err != nil {
		return err
	}
	defer db.Close() // nolint: errcheck

	migrator, err := newMigrator(conf, db)
	if err != nil {
		return err
	}

	return f(migrator)
}

// withLockedMigrator is like [withMigrator], but holds the migration lock
// while f runs.
func withLockedMigrator(ctx *cli.Context, f func(m *migrate.Migrator) error) error {
	return withMigrator(ctx, func(m *migrate.Migrator) error {
		if err := m.Lock(ctx.Context); err != nil {
			return err
		}

		defer func() {
			if err := m.Unlock(ctx.Context); err != nil {
				slog.Error("failed to unlock migrations", "reason", err)
			}
		}()

		return f(m)
	})
}

// NewDatabaseCommand returns a new command for interfacing with the database.
func NewDatabaseCommand() *cli.Command {
	cmd := &cli.Command{
		Name:    "database",
		Usage:   "database operations",
		Aliases: []string{"db"},
		Before: func(ctx *cli.Context) error {
			return validateDBConfig(getConfig(ctx))
		},
		Subcommands: []*cli.Command{
			{
				Name:    "init",
				Usage:   "initialize migration tables",
				Aliases: []string{"i"},
				Action: func(ctx *cli.Context) error {
					return withMigrator(ctx, func(m *migrate.Migrator) error {
						return m.Init(ctx.Context)
					})
				},
			},
			{
				Name:    "migrate",
				Usage:   "apply pending migrations",
				Aliases: []string{"m"},
				Action: func(ctx *cli.Context) error {
					return withLockedMigrator(ctx, func(m *migrate.Migrator) error {
						group, err := m.Migrate(ctx.Context)
						if err != nil {
							return err
						}

						if group.IsZero() {
							fmt.Println("database is up to date")
							return nil
						}

						fmt.Printf("database migrated to %s\n", group)
						return nil
					})
				},
			},
			{
				Name:    "rollback",
				Usage:   "rollback last migration group",
				Aliases: []string{"r"},
				Action: func(ctx *cli.Context) error {
					return withLockedMigrator(ctx, func(m *migrate.Migrator) error {
						group, err := m.Rollback(ctx.Context)
						if err != nil {
							return err
						}

						if group.IsZero() {
							fmt.Println("there are no migration groups for rollback")
							return nil
						}

						fmt.Printf("rolled back %s\n", group)
						return nil
					})
				},
			},
			{
				Name:    "status",
				Usage:   "display migration status",
				Aliases: []string{"s"},
				Action: func(ctx *cli.Context) error {
					return withMigrator(ctx, func(m *migrate.Migrator) error {
						ms, err := m.MigrationsWithStatus(ctx.Context)
						if err != nil {
							return err
						}

						pending := ms.Unapplied()
						fmt.Printf("pending migration(s): %d\n", len(pending))
						fmt.Printf("database version: %s\n", ms.LastGroup())

						if len(pending) == 0 {
							fmt.Println("database is up-to-date")
						} else {
							fmt.Println("database is out-of-date")
						}

						return nil
					})
				},
			},
			{
				Name:    "applied",
				Usage:   "display the list of applied migrations",
				Aliases: []string{"a"},
				Action: func(ctx *cli.Context) error {
					return withMigrator(ctx, func(m *migrate.Migrator) error {
						ms, err := m.MigrationsWithStatus(ctx.Context)
						if err != nil {
							return err
						}

						printMigrations(ms.Applied())
						return nil
					})
				},
			},
			{
				Name:    "pending",
				Usage:   "display the list of pending migrations",
				Aliases: []string{"p"},
				Action: func(ctx *cli.Context) error {
					return withMigrator(ctx, func(m *migrate.Migrator) error {
						ms, err := m.MigrationsWithStatus(ctx.Context)
						if err != nil {
							return err
						}

						printMigrations(ms.Unapplied())
						return nil
					})
				},
			},
		},
	}

	return cmd
}

// printMigrations prints the given migrations as a table.
func printMigrations(items migrate.MigrationSlice) {
	if len(items) == 0 {
		return
	}

	headers := []string{
		"ID",
		"NAME",
		"COMMENT",
		"GROUP-ID",
		"MIGRATED-AT",
	}
	table := newTableWriter(os.Stdout, headers)

	for _, item := range items {
		id := na
		groupID := na
		migratedAt := na

		if item.ID > 0 {
			id = strconv.FormatInt(item.ID, 10)
		}

		if item.GroupID > 0 {
			groupID = strconv.FormatInt(item.GroupID, 10)
		}

		if !item.MigratedAt.IsZero() {
			migratedAt = item.MigratedAt.String()
		}

		table.Append([]string{id, item.Name, item.Comment, groupID, migratedAt})
	}

	table.Render()
}

// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package migrations provides the schema of the cleanup history.
package migrations

import (
	"embed"
	"fmt"
	"os"

	"github.com/uptrace/bun/migrate"
)

//go:embed *.sql
var bundled embed.FS

// Migrations provides the migrations bundled with the binary.
var Migrations = migrate.NewMigrations()

// Load returns the bundled migrations, or the migrations discovered in dir,
// if set.
func Load(dir string) (*migrate.Migrations, error) {
	if dir == "" {
		return Migrations, nil
	}

	m := migrate.NewMigrations(migrate.WithMigrationsDirectory(dir))
	if err := m.Discover(os.DirFS(dir)); err != nil {
		return nil, fmt.Errorf("cannot discover migrations in %s: %w", dir, err)
	}

	return m, nil
}

func init() {
	if err := Migrations.Discover(bundled); err != nil {
		panic(err)
	}
}

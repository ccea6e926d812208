// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package db

import (
	"database/sql"
	"errors"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"github.com/gardener/runsweeper/pkg/core/config"
)

// ErrInvalidDSN error is returned, when the DSN configuration is incorrect, or
// empty.
var ErrInvalidDSN = errors.New("invalid or missing database configuration")

// Option is a function which configures the [bun.DB].
type Option func(db *bun.DB)

// WithQueryDebug logs each query, if verbose is set. Otherwise only failed
// queries are logged.
func WithQueryDebug(verbose bool) Option {
	opt := func(db *bun.DB) {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(verbose)))
	}

	return opt
}

// NewFromConfig creates a new [bun.DB] based on the provided
// [config.DatabaseConfig] spec.
func NewFromConfig(conf config.DatabaseConfig, opts ...Option) (*bun.DB, error) {
	if conf.DSN == "" {
		return nil, ErrInvalidDSN
	}

	pgdb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(conf.DSN)))
	db := bun.NewDB(pgdb, pgdialect.New())
	for _, opt := range opts {
		opt(db)
	}

	return db, nil
}

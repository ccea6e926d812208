// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"
	"github.com/olekukonko/tablewriter"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
	"github.com/urfave/cli/v2"

	"github.com/gardener/runsweeper/internal/pkg/migrations"
	"github.com/gardener/runsweeper/pkg/core/config"
	"github.com/gardener/runsweeper/pkg/github"
	dbutils "github.com/gardener/runsweeper/pkg/utils/db"
	vaultclient "github.com/gardener/runsweeper/pkg/vault/client"
)

// na is the value displayed for missing table cells.
const na = "N/A"

// errNoRedisEndpoint is returned when a command requires Redis, but no
// endpoint has been configured.
var errNoRedisEndpoint = errors.New("no redis endpoint specified")

// errNoDatabase is returned when a command requires a database, but no DSN
// has been configured.
var errNoDatabase = errors.New("no database dsn specified")

// errNoDashboardAddress is returned when the dashboard address is not
// configured.
var errNoDashboardAddress = errors.New("no dashboard address specified")

// configKey is the key used to store the parsed configuration in the
// context.
type configKey struct{}

// getConfig extracts and returns the [config.Config] from app context.
func getConfig(ctx *cli.Context) *config.Config {
	conf, ok := ctx.Context.Value(configKey{}).(*config.Config)
	if !ok {
		slog.Error("failed to extract configuration from context")
		os.Exit(1)
	}

	return conf
}

// validateRedisConfig validates the Redis configuration settings.
func validateRedisConfig(conf *config.Config) error {
	if conf.Redis.Endpoint == "" {
		return errNoRedisEndpoint
	}

	return nil
}

// validateDBConfig validates the database configuration settings.
func validateDBConfig(conf *config.Config) error {
	if conf.Database.DSN == "" {
		return errNoDatabase
	}

	return nil
}

// validateDashboardConfig validates the dashboard configuration settings.
func validateDashboardConfig(conf config.DashboardConfig) error {
	if conf.Address == "" {
		return errNoDashboardAddress
	}

	return nil
}

// newRedisClientOpt returns a new [asynq.RedisClientOpt] from the given
// config.
func newRedisClientOpt(conf *config.Config) asynq.RedisClientOpt {
	// TODO: Handle authentication, TLS, etc.
	opts := asynq.RedisClientOpt{
		Addr: conf.Redis.Endpoint,
	}

	return opts
}

// newInspector returns a new [asynq.Inspector] from the given config.
func newInspector(conf *config.Config) *asynq.Inspector {
	return asynq.NewInspector(newRedisClientOpt(conf))
}

// newAsynqClient returns a new [asynq.Client] from the given config.
func newAsynqClient(conf *config.Config) *asynq.Client {
	return asynq.NewClient(newRedisClientOpt(conf))
}

// newScheduler creates a new [asynq.Scheduler] from the given config.
func newScheduler(conf *config.Config) *asynq.Scheduler {
	preEnqueueFunc := func(t *asynq.Task, opts []asynq.Option) {
		slog.Info("enqueueing task", "name", t.Type())
	}

	postEnqueueFunc := func(info *asynq.TaskInfo, err error) {
		if err != nil {
			slog.Error("failed to enqueue task", "reason", err)
			return
		}
		slog.Info("enqueued task", "id", info.ID, "name", info.Type, "queue", info.Queue)
	}

	opts := &asynq.SchedulerOpts{
		PreEnqueueFunc:  preEnqueueFunc,
		PostEnqueueFunc: postEnqueueFunc,
		LogLevel:        asynqLogLevel(conf),
	}

	return asynq.NewScheduler(newRedisClientOpt(conf), opts)
}

// asynqLogLevel returns the asynq log level matching the config.
func asynqLogLevel(conf *config.Config) asynq.LogLevel {
	if conf.Debug {
		return asynq.DebugLevel
	}

	return asynq.InfoLevel
}

// newDB returns a new [bun.DB] database from the given config.
func newDB(conf *config.Config) (*bun.DB, error) {
	return dbutils.NewFromConfig(conf.Database, dbutils.WithQueryDebug(conf.Debug))
}

// newMigrator returns a new [migrate.Migrator] from the given config. The
// bundled migrations are used, unless an alternate migrations directory is
// configured.
func newMigrator(conf *config.Config, db *bun.DB) (*migrate.Migrator, error) {
	m, err := migrations.Load(conf.Database.MigrationDirectory)
	if err != nil {
		return nil, err
	}

	return migrate.NewMigrator(db, m), nil
}

// newTableWriter returns a new [tablewriter.Table] with the given headers.
func newTableWriter(w io.Writer, headers []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	items := make([]any, 0, len(headers))
	for _, h := range headers {
		items = append(items, h)
	}
	table.Header(items...)

	return table
}

// resolveGitHubToken returns the GitHub API token. An explicitly given
// token takes precedence over the configured one, and the configured one
// over the Vault secret.
func resolveGitHubToken(ctx context.Context, conf *config.Config, token string) (string, error) {
	if token != "" {
		return token, nil
	}

	if conf.GitHub.Token != "" {
		return conf.GitHub.Token, nil
	}

	if !conf.GitHub.TokenVault.IsSet() {
		return "", github.ErrNoToken
	}

	if !conf.Vault.IsEnabled {
		return "", fmt.Errorf("%w: vault is not enabled", github.ErrNoToken)
	}

	c, err := vaultclient.NewFromConfig(conf.Vault)
	if err != nil {
		return "", err
	}

	if err := c.Login(ctx); err != nil {
		return "", fmt.Errorf("vault: cannot log in: %w", err)
	}

	slog.Info(
		"reading github token from vault",
		"address", c.Address(),
		"path", conf.GitHub.TokenVault.Path,
	)

	return c.ReadKVField(ctx, conf.GitHub.TokenVault)
}

// newGitHubClient creates a new [github.Client] from the given config.
func newGitHubClient(ctx context.Context, conf *config.Config, token string) (*github.Client, error) {
	token, err := resolveGitHubToken(ctx, conf, token)
	if err != nil {
		return nil, err
	}

	opts := make([]github.Option, 0)
	if conf.GitHub.APIURL != "" {
		opts = append(opts, github.WithBaseURL(conf.GitHub.APIURL))
	}

	return github.New(ctx, token, opts...)
}

// flagOrEnv returns the value of the named flag. When the flag was not set,
// the given environment variables are consulted, which picks up variables
// loaded from an env file after the flags were parsed.
func flagOrEnv(ctx *cli.Context, name string, envVars ...string) (string, bool) {
	if ctx.IsSet(name) {
		return ctx.String(name), true
	}

	for _, env := range envVars {
		if val := os.Getenv(env); val != "" {
			return val, true
		}
	}

	return "", false
}

// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package models

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/gardener/runsweeper/pkg/cleanup"
	coremodels "github.com/gardener/runsweeper/pkg/core/models"
)

// CleanupRun represents a single cleanup of the workflow runs of a
// repository.
type CleanupRun struct {
	bun.BaseModel `bun:"table:cleanup_run"`
	coremodels.Model

	// CleanupID identifies the cleanup in log events.
	CleanupID uuid.UUID `bun:"cleanup_id,type:uuid,notnull,unique"`

	// Repository is the repository in `owner/name' form.
	Repository string `bun:"repository,notnull"`

	// StartedAt specifies when the cleanup started.
	StartedAt time.Time `bun:"started_at,notnull"`

	// CompletedAt specifies when the cleanup reached a terminal state.
	CompletedAt time.Time `bun:"completed_at,notnull"`

	// Cycles is the number of fetch cycles.
	Cycles int `bun:"cycles,notnull"`

	// Deleted is the number of deleted workflow runs.
	Deleted int64 `bun:"deleted,notnull"`

	// Failed is the number of workflow runs, which could not be deleted.
	Failed int64 `bun:"failed,notnull"`

	// FinalState is the terminal state of the cleanup.
	FinalState string `bun:"final_state,notnull"`

	// ListError is the listing error which ended the cleanup, if any.
	ListError string `bun:"list_error,nullzero"`

	// DryRun specifies whether the cleanup was a dry run.
	DryRun bool `bun:"dry_run,notnull"`
}

// NewCleanupRun creates a new [CleanupRun] from the result of a cleanup.
func NewCleanupRun(id uuid.UUID, repo cleanup.Repository, result *cleanup.Result, dryRun bool) *CleanupRun {
	run := &CleanupRun{
		CleanupID:   id,
		Repository:  repo.String(),
		StartedAt:   result.StartedAt,
		CompletedAt: result.CompletedAt,
		Cycles:      result.Cycles,
		Deleted:     result.Deleted,
		Failed:      result.Failed,
		FinalState:  result.FinalState.String(),
		DryRun:      dryRun,
	}

	if result.ListError != nil {
		run.ListError = result.ListError.Error()
	}

	return run
}

// Insert stores the [CleanupRun] in the database.
func (r *CleanupRun) Insert(ctx context.Context, db bun.IDB) error {
	_, err := db.NewInsert().
		Model(r).
		Returning("id").
		Exec(ctx)

	return err
}

// RecentCleanupRuns returns the most recent cleanups, optionally limited to
// a single repository.
func RecentCleanupRuns(ctx context.Context, db bun.IDB, repository string, limit int) ([]CleanupRun, error) {
	items := make([]CleanupRun, 0)
	query := db.NewSelect().
		Model(&items).
		Order("started_at DESC").
		Limit(limit)

	if repository != "" {
		query = query.Where("repository = ?", repository)
	}

	if err := query.Scan(ctx); err != nil {
		return nil, err
	}

	return items, nil
}

// DeleteCleanupRunsBefore deletes the cleanups, which completed before the
// given time, and returns the number of deleted records.
func DeleteCleanupRunsBefore(ctx context.Context, db bun.IDB, before time.Time) (int64, error) {
	out, err := db.NewDelete().
		Model((*CleanupRun)(nil)).
		Where("completed_at < ?", before).
		Exec(ctx)
	if err != nil {
		return 0, err
	}

	return out.RowsAffected()
}

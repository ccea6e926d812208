// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/gardener/runsweeper/pkg/cleanup"
	"github.com/gardener/runsweeper/pkg/cleanup/models"
	dbclient "github.com/gardener/runsweeper/pkg/clients/db"
	githubclient "github.com/gardener/runsweeper/pkg/clients/github"
	"github.com/gardener/runsweeper/pkg/core/registry"
	coretasks "github.com/gardener/runsweeper/pkg/core/tasks"
	asynqutils "github.com/gardener/runsweeper/pkg/utils/asynq"
)

const (
	// CleanupRunsTaskType is the name of the task responsible for deleting
	// the matching workflow runs of a repository.
	CleanupRunsTaskType = "gh:task:cleanup-runs"
)

// DefaultTaskMaxCycles is the cycle limit of queued cleanups, which do not
// specify one. A run which can never be deleted matches on every fetch, so
// unattended cleanups are always bounded.
const DefaultTaskMaxCycles = 50

// ErrNoRepository is returned when a cleanup does not specify a repository.
var ErrNoRepository = errors.New("no repository specified")

// ErrNegativeLimit is returned when a cleanup specifies a negative cycle or
// concurrency limit.
var ErrNegativeLimit = errors.New("limits must not be negative")

// CleanupRunsPayload represents the payload of the cleanup task.
type CleanupRunsPayload struct {
	// Repository specifies the repository in `owner/name' form.
	Repository string `json:"repository" yaml:"repository"`

	// EventFilter is a comma-separated list of event names.
	EventFilter string `json:"event_filter,omitempty" yaml:"event_filter"`

	// StatusFilter is a comma-separated list of status or conclusion
	// names.
	StatusFilter string `json:"status_filter,omitempty" yaml:"status_filter"`

	// BranchFilter specifies a single branch.
	BranchFilter string `json:"branch_filter,omitempty" yaml:"branch_filter"`

	// ActorFilter specifies a single actor login.
	ActorFilter string `json:"actor_filter,omitempty" yaml:"actor_filter"`

	// MaintainSpan specifies the minimum age of a run before it becomes
	// eligible for deletion, e.g. 30d.
	MaintainSpan string `json:"maintain_span,omitempty" yaml:"maintain_span"`

	// MaxCycles limits the number of fetch cycles. Zero means no limit
	// for [RunCleanup], and [DefaultTaskMaxCycles] for queued tasks.
	MaxCycles int `json:"max_cycles,omitempty" yaml:"max_cycles"`

	// Concurrency limits the number of concurrent deletions. Zero means
	// no limit.
	Concurrency int `json:"concurrency,omitempty" yaml:"concurrency"`

	// DryRun reports the matching runs without deleting them.
	DryRun bool `json:"dry_run,omitempty" yaml:"dry_run"`

	// AbortOnListError fails the cleanup when runs cannot be listed,
	// instead of treating it as nothing left to clean up.
	AbortOnListError bool `json:"abort_on_list_error,omitempty" yaml:"abort_on_list_error"`
}

// Validate validates the payload.
func (p CleanupRunsPayload) Validate() error {
	if p.Repository == "" {
		return ErrNoRepository
	}

	if _, err := cleanup.ParseRepository(p.Repository); err != nil {
		return err
	}

	if p.MaxCycles < 0 || p.Concurrency < 0 {
		return fmt.Errorf("%w: max_cycles=%d concurrency=%d", ErrNegativeLimit, p.MaxCycles, p.Concurrency)
	}

	return nil
}

// WithTaskDefaults returns a copy of the payload, which uses
// [DefaultTaskMaxCycles] when no cycle limit is set.
func (p CleanupRunsPayload) WithTaskDefaults() CleanupRunsPayload {
	if p.MaxCycles == 0 {
		p.MaxCycles = DefaultTaskMaxCycles
	}

	return p
}

// FilterConfig returns the [cleanup.FilterConfig] described by the payload.
func (p CleanupRunsPayload) FilterConfig() cleanup.FilterConfig {
	return cleanup.NewFilterConfig(
		p.EventFilter,
		p.StatusFilter,
		p.BranchFilter,
		p.ActorFilter,
		p.MaintainSpan,
	)
}

// NewCleanupRunsTask creates a new [asynq.Task] for cleaning up the workflow
// runs described by the payload.
func NewCleanupRunsTask(p CleanupRunsPayload) (*asynq.Task, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	data, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(CleanupRunsTaskType, data), nil
}

// Runner pairs a [cleanup.Source] with a [cleanup.Deleter].
type Runner interface {
	cleanup.Source
	cleanup.Deleter
}

// RunCleanup runs a cleanup for the given payload against the runner. The
// outcome is recorded in the history database, when one is configured.
//
// The logger from ctx is used, see [asynqutils.GetLogger].
func RunCleanup(ctx context.Context, runner Runner, p CleanupRunsPayload, opts ...cleanup.Option) (*cleanup.Result, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	// Validated above
	repo, _ := cleanup.ParseRepository(p.Repository)
	filters := p.FilterConfig()
	cleanupID := uuid.New()
	logger := asynqutils.GetLogger(ctx).With("cleanup_id", cleanupID.String())

	logger.Info(
		"starting cleanup",
		"repository", repo.String(),
		"events", filters.Events,
		"statuses", filters.Statuses,
		"branch", filters.Branch,
		"actor", filters.Actor,
		"maintain_span", cleanup.MaintainSpanDuration(filters.MaintainSpan),
	)

	loopOpts := []cleanup.Option{
		cleanup.WithLogger(logger),
		cleanup.WithMaxCycles(p.MaxCycles),
		cleanup.WithConcurrency(p.Concurrency),
		cleanup.WithDryRun(p.DryRun),
		cleanup.WithAbortOnListError(p.AbortOnListError),
	}
	loop := cleanup.NewLoop(repo, runner, runner, filters, append(loopOpts, opts...)...)
	result, err := loop.Run(ctx)
	if result == nil || dbclient.DB == nil {
		return result, err
	}

	// Cancelled cleanups are recorded too
	run := models.NewCleanupRun(cleanupID, repo, result, p.DryRun)
	if dbErr := run.Insert(context.WithoutCancel(ctx), dbclient.DB); dbErr != nil {
		logger.Error("failed to record cleanup", "reason", dbErr)
		err = errors.Join(err, dbErr)
	}

	return result, err
}

// HandleCleanupRunsTask deletes the matching workflow runs of a repository.
func HandleCleanupRunsTask(ctx context.Context, task *asynq.Task) error {
	var payload CleanupRunsPayload
	if err := asynqutils.Unmarshal(task.Payload(), &payload); err != nil {
		return asynqutils.SkipRetry(coretasks.InvalidPayload(CleanupRunsTaskType, err))
	}

	if err := payload.Validate(); err != nil {
		return asynqutils.SkipRetry(coretasks.InvalidPayload(CleanupRunsTaskType, err))
	}

	if githubclient.Client == nil {
		return coretasks.ClientNotFound("github")
	}

	_, err := RunCleanup(ctx, githubclient.Client, payload.WithTaskDefaults())

	return err
}

// PayloadAttrs returns the log attributes of a cleanup task, which identify
// the repository being cleaned up. Other tasks have no attributes.
func PayloadAttrs(task *asynq.Task) []slog.Attr {
	if task.Type() != CleanupRunsTaskType {
		return nil
	}

	var payload CleanupRunsPayload
	if err := asynqutils.Unmarshal(task.Payload(), &payload); err != nil || payload.Repository == "" {
		return nil
	}

	return []slog.Attr{slog.String("repository", payload.Repository)}
}

func init() {
	registry.TaskRegistry.MustRegister(CleanupRunsTaskType, asynq.HandlerFunc(HandleCleanupRunsTask))
}

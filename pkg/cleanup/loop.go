// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package cleanup

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/gardener/runsweeper/pkg/metrics"
)

// State represents a state of the [Loop].
type State int

const (
	// StateFetching fetches a batch of runs.
	StateFetching State = iota

	// StateFiltering applies the filters to the fetched batch.
	StateFiltering

	// StateDeleting deletes the matched runs.
	StateDeleting

	// StateDone is the terminal state of a completed cleanup.
	StateDone

	// StateAborted is the terminal state of a cleanup which stopped
	// because its context was cancelled, or because runs could not be
	// listed and the loop was created with [WithAbortOnListError].
	StateAborted
)

// String implements the [fmt.Stringer] interface.
func (s State) String() string {
	switch s {
	case StateFetching:
		return "fetching"
	case StateFiltering:
		return "filtering"
	case StateDeleting:
		return "deleting"
	case StateDone:
		return "done"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Result represents the outcome of a [Loop.Run].
type Result struct {
	// Cycles is the number of fetch cycles performed.
	Cycles int

	// Matched is the number of runs matched in each cycle.
	Matched []int

	// Deleted is the number of successfully deleted runs.
	Deleted int64

	// Failed is the number of runs which could not be deleted.
	Failed int64

	// Selected contains the runs matched in the last cycle. It is only
	// populated for dry runs.
	Selected []Run

	// FinalState is the terminal state of the loop.
	FinalState State

	// ListError is the error which ended the loop while listing runs, if
	// any.
	ListError error

	// CycleLimitReached is set when the loop stopped because of the
	// configured cycle limit.
	CycleLimitReached bool

	// StartedAt specifies when the loop started.
	StartedAt time.Time

	// CompletedAt specifies when the loop reached a terminal state.
	CompletedAt time.Time
}

// Option is a function which configures the [Loop].
type Option func(l *Loop)

// WithMaxCycles is an [Option], which limits the number of fetch cycles. Zero
// means no limit.
func WithMaxCycles(n int) Option {
	opt := func(l *Loop) {
		l.maxCycles = n
	}

	return opt
}

// WithConcurrency is an [Option], which limits the number of concurrent
// deletions. Zero means one goroutine per matched run.
func WithConcurrency(n int) Option {
	opt := func(l *Loop) {
		l.concurrency = n
	}

	return opt
}

// WithClock is an [Option], which configures the clock used by the age
// filter.
func WithClock(now func() time.Time) Option {
	opt := func(l *Loop) {
		l.now = now
	}

	return opt
}

// WithDryRun is an [Option], which configures the [Loop] to stop after the
// first filtering phase, without deleting anything.
func WithDryRun(dryRun bool) Option {
	opt := func(l *Loop) {
		l.dryRun = dryRun
	}

	return opt
}

// WithAbortOnListError is an [Option], which makes a listing error end the
// loop in [StateAborted] instead of [StateDone].
func WithAbortOnListError(abort bool) Option {
	opt := func(l *Loop) {
		l.abortOnListError = abort
	}

	return opt
}

// WithLogger is an [Option], which configures the [Loop] to use the given
// logger.
func WithLogger(logger *slog.Logger) Option {
	opt := func(l *Loop) {
		l.logger = logger
	}

	return opt
}

// Loop drives repeated fetch, filter and delete cycles until no runs are
// left, or none of the runs match.
//
// Each cycle fetches a fresh batch from the [Source], so runs deleted in one
// cycle are not seen by the next one. Interrupting the loop at any point is
// safe, and running it again resumes the cleanup.
type Loop struct {
	repo    Repository
	source  Source
	deleter Deleter
	conf    FilterConfig

	maxCycles        int
	concurrency      int
	dryRun           bool
	abortOnListError bool
	now              func() time.Time
	logger           *slog.Logger
}

// NewLoop creates a new [Loop] for the given repository.
func NewLoop(repo Repository, source Source, deleter Deleter, conf FilterConfig, opts ...Option) *Loop {
	l := &Loop{
		repo:    repo,
		source:  source,
		deleter: deleter,
		conf:    conf,
		now:     time.Now,
		logger:  slog.Default(),
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Run runs the loop until it reaches a terminal state. Errors from listing
// and deleting runs are logged and do not stop the loop, unless
// [WithAbortOnListError] was set. A cancelled context stops the loop in
// [StateAborted] before the next fetch.
func (l *Loop) Run(ctx context.Context) (*Result, error) {
	result := &Result{
		Matched:   make([]int, 0),
		StartedAt: l.now(),
	}
	logger := l.logger.With("repository", l.repo.String())
	filters := Filters(l.conf, l.now)

	var runs []Run
	var selected []Run
	var ctxErr error
	state := StateFetching

	for state != StateDone && state != StateAborted {
		switch state {
		case StateFetching:
			if ctxErr = ctx.Err(); ctxErr != nil {
				logger.Warn("cleanup cancelled", "reason", ctxErr)
				state = StateAborted
				continue
			}

			if l.maxCycles > 0 && result.Cycles >= l.maxCycles {
				logger.Warn("cycle limit reached", "cycles", result.Cycles)
				result.CycleLimitReached = true
				state = StateDone
				continue
			}

			result.Cycles++
			items, err := l.source.ListRuns(ctx, l.repo)
			if err != nil {
				logger.Error("failed to list workflow runs", "reason", err)
				metrics.ListFailedTotal.WithLabelValues(l.repo.String()).Inc()
				result.ListError = err
				state = StateDone
				if l.abortOnListError {
					state = StateAborted
				}
				continue
			}

			if len(items) == 0 {
				logger.Info("no workflow runs in repository")
				state = StateDone
				continue
			}

			runs = items
			state = StateFiltering

		case StateFiltering:
			var exclusions []Exclusion
			selected, exclusions = Apply(filters, runs)
			for _, item := range exclusions {
				if item.Count == 0 {
					continue
				}
				logger.Info("excluded runs", "filter", item.Filter, "count", item.Count)
				metrics.RunsExcludedTotal.WithLabelValues(l.repo.String(), item.Filter).Add(float64(item.Count))
			}

			logger.Info(
				"filtered workflow runs",
				"cycle", result.Cycles,
				"total", len(runs),
				"matched", len(selected),
			)
			result.Matched = append(result.Matched, len(selected))
			l.reportMatched(len(selected))

			switch {
			case len(selected) == 0:
				state = StateDone
			case l.dryRun:
				logger.Info("dry run, will not delete workflow runs", "matched", len(selected))
				result.Selected = selected
				state = StateDone
			default:
				state = StateDeleting
			}

		case StateDeleting:
			deleted, failed := l.deleteRuns(ctx, logger, selected)
			result.Deleted += deleted
			result.Failed += failed
			state = StateFetching
		}
	}

	result.FinalState = state
	result.CompletedAt = l.now()
	logger.Info(
		"cleanup finished",
		"state", state.String(),
		"cycles", result.Cycles,
		"deleted", result.Deleted,
		"failed", result.Failed,
	)

	switch {
	case ctxErr != nil:
		return result, ctxErr
	case state == StateAborted:
		return result, result.ListError
	}

	return result, nil
}

// deleteRuns deletes the given runs concurrently and waits for every
// deletion to settle. It returns the number of deleted and failed runs.
func (l *Loop) deleteRuns(ctx context.Context, logger *slog.Logger, runs []Run) (int64, int64) {
	var deleted, failed atomic.Int64
	var g errgroup.Group
	if l.concurrency > 0 {
		g.SetLimit(l.concurrency)
	}

	repoName := l.repo.String()
	for _, r := range runs {
		g.Go(func() error {
			logger.Info("deleting workflow run", "id", r.ID, "name", r.Name)
			if err := l.deleter.DeleteRun(ctx, l.repo, r.ID); err != nil {
				logger.Error(
					"failed to delete workflow run",
					"id", r.ID,
					"name", r.Name,
					"reason", err,
				)
				failed.Add(1)
				metrics.RunsDeleteFailedTotal.WithLabelValues(repoName).Inc()

				// Deletions are independent of each other
				return nil
			}
			deleted.Add(1)
			metrics.RunsDeletedTotal.WithLabelValues(repoName).Inc()

			return nil
		})
	}

	_ = g.Wait()

	return deleted.Load(), failed.Load()
}

// reportMatched reports the number of runs matched in the latest cycle.
func (l *Loop) reportMatched(n int) {
	metric := prometheus.MustNewConstMetric(
		metrics.RunsMatchedDesc,
		prometheus.GaugeValue,
		float64(n),
		l.repo.String(),
	)
	key := metrics.Key("runs_matched", l.repo.String())
	metrics.DefaultCollector.AddMetric(key, metric)
}

// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package cleanup

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidRepository is returned when a repository is not in the
// `owner/name' form.
var ErrInvalidRepository = errors.New("invalid repository")

// Run represents a single workflow run record, as returned by a [Source].
//
// Runs are owned by the remote store. The cleanup engine only reads them.
type Run struct {
	// ID is the identifier of the run, used for deletion.
	ID int64

	// Name is the display name of the run.
	Name string

	// Event is the event which triggered the run, e.g. push.
	Event string

	// Status is the lifecycle status of the run, e.g. queued or completed.
	Status string

	// Conclusion is the terminal outcome of the run, e.g. success or
	// failure. It is empty for runs which have not completed.
	Conclusion string

	// HeadBranch is the branch the run was triggered on.
	HeadBranch string

	// Actor is the login of the user who triggered the run. It may be
	// empty.
	Actor string

	// CreatedAt specifies when the run was created.
	CreatedAt time.Time

	// UpdatedAt specifies when the run was last updated. It may be zero.
	UpdatedAt time.Time
}

// LastActivity returns the UpdatedAt timestamp of the run, falling back to
// CreatedAt when the run has no UpdatedAt timestamp.
func (r Run) LastActivity() time.Time {
	if !r.UpdatedAt.IsZero() {
		return r.UpdatedAt
	}

	return r.CreatedAt
}

// Repository identifies a repository hosting workflow runs.
type Repository struct {
	Owner string
	Name  string
}

// String implements the [fmt.Stringer] interface.
func (r Repository) String() string {
	return r.Owner + "/" + r.Name
}

// ParseRepository parses a repository in the `owner/name' form.
func ParseRepository(s string) (Repository, error) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Repository{}, fmt.Errorf("%w: %q", ErrInvalidRepository, s)
	}

	repo := Repository{
		Owner: parts[0],
		Name:  parts[1],
	}

	return repo, nil
}

// Source fetches a batch of workflow runs for a repository.
type Source interface {
	// ListRuns returns a single page of workflow runs.
	ListRuns(ctx context.Context, repo Repository) ([]Run, error)
}

// Deleter deletes workflow runs.
type Deleter interface {
	// DeleteRun deletes the workflow run with the given id.
	DeleteRun(ctx context.Context, repo Repository, id int64) error
}

// SourceFunc is an adapter which allows using ordinary functions as a
// [Source].
type SourceFunc func(ctx context.Context, repo Repository) ([]Run, error)

// ListRuns implements the [Source] interface.
func (f SourceFunc) ListRuns(ctx context.Context, repo Repository) ([]Run, error) {
	return f(ctx, repo)
}

// DeleterFunc is an adapter which allows using ordinary functions as a
// [Deleter].
type DeleterFunc func(ctx context.Context, repo Repository, id int64) error

// DeleteRun implements the [Deleter] interface.
func (f DeleterFunc) DeleteRun(ctx context.Context, repo Repository, id int64) error {
	return f(ctx, repo, id)
}

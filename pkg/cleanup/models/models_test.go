// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package models_test

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/gardener/runsweeper/pkg/cleanup"
	"github.com/gardener/runsweeper/pkg/cleanup/models"
)

func TestNewCleanupRun(t *testing.T) {
	started := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	result := &cleanup.Result{
		Cycles:      3,
		Deleted:     120,
		Failed:      2,
		FinalState:  cleanup.StateDone,
		ListError:   errors.New("bad credentials"),
		StartedAt:   started,
		CompletedAt: started.Add(time.Minute),
	}

	id := uuid.New()
	repo := cleanup.Repository{Owner: "acme", Name: "widgets"}
	run := models.NewCleanupRun(id, repo, result, true)

	if run.CleanupID != id || run.Repository != "acme/widgets" {
		t.Fatalf("unexpected identity: %s %s", run.CleanupID, run.Repository)
	}

	if run.Cycles != 3 || run.Deleted != 120 || run.Failed != 2 {
		t.Fatalf("unexpected counters: %+v", run)
	}

	if run.FinalState != "done" || run.ListError != "bad credentials" || !run.DryRun {
		t.Fatalf("unexpected state: %+v", run)
	}

	if !run.CompletedAt.Equal(started.Add(time.Minute)) {
		t.Fatalf("unexpected completion time: %s", run.CompletedAt)
	}
}

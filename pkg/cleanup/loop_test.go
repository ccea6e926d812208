// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package cleanup_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gardener/runsweeper/pkg/cleanup"
)

var testRepo = cleanup.Repository{Owner: "acme", Name: "widgets"}

var errDeleteFailed = errors.New("delete failed")

// fakeStore is an in-memory store of workflow runs, which serves pages of at
// most pageSize runs.
type fakeStore struct {
	mu        sync.Mutex
	runs      []cleanup.Run
	pageSize  int
	listCalls int
	listErr   error

	// failures specifies how many times deleting a given run fails
	// before it succeeds. Negative values fail forever.
	failures map[int64]int
	attempts []int64
}

func newFakeStore(n int, pageSize int) *fakeStore {
	runs := make([]cleanup.Run, n)
	for i := range runs {
		runs[i] = cleanup.Run{
			ID:        int64(i + 1),
			Name:      fmt.Sprintf("run-%d", i+1),
			Event:     "push",
			Status:    "completed",
			UpdatedAt: testNow.Add(-40 * 24 * time.Hour),
		}
	}

	s := &fakeStore{
		runs:     runs,
		pageSize: pageSize,
		failures: make(map[int64]int),
	}

	return s
}

func (s *fakeStore) ListRuns(_ context.Context, _ cleanup.Repository) ([]cleanup.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.listCalls++
	if s.listErr != nil {
		return nil, s.listErr
	}

	n := min(len(s.runs), s.pageSize)

	return slices.Clone(s.runs[:n]), nil
}

func (s *fakeStore) DeleteRun(_ context.Context, _ cleanup.Repository, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.attempts = append(s.attempts, id)
	if remaining, ok := s.failures[id]; ok && remaining != 0 {
		s.failures[id] = remaining - 1

		return errDeleteFailed
	}

	s.runs = slices.DeleteFunc(s.runs, func(r cleanup.Run) bool {
		return r.ID == id
	})

	return nil
}

func (s *fakeStore) remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.runs)
}

func newTestLoop(s *fakeStore, conf cleanup.FilterConfig, opts ...cleanup.Option) *cleanup.Loop {
	defaults := []cleanup.Option{
		cleanup.WithClock(fixedClock),
		cleanup.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}

	return cleanup.NewLoop(testRepo, s, s, conf, append(defaults, opts...)...)
}

func TestLoopConvergesInTwoCycles(t *testing.T) {
	store := newFakeStore(25, 100)
	loop := newTestLoop(store, cleanup.NewFilterConfig("push", "", "", "", "30d"))

	result, err := loop.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	if result.Cycles != 2 {
		t.Fatalf("want 2 cycles, got %d", result.Cycles)
	}

	if result.Deleted != 25 || result.Failed != 0 {
		t.Fatalf("want 25 deleted and 0 failed, got %d and %d", result.Deleted, result.Failed)
	}

	if result.FinalState != cleanup.StateDone {
		t.Fatalf("want final state %s got %s", cleanup.StateDone, result.FinalState)
	}

	if store.remaining() != 0 {
		t.Fatalf("want empty store, %d runs remaining", store.remaining())
	}
}

func TestLoopDrainsBacklogAcrossPages(t *testing.T) {
	store := newFakeStore(250, 100)
	loop := newTestLoop(store, cleanup.FilterConfig{})

	result, err := loop.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	if result.Cycles != 4 {
		t.Fatalf("want 4 cycles, got %d", result.Cycles)
	}

	if !slices.Equal(result.Matched, []int{100, 100, 50}) {
		t.Fatalf("unexpected matched counts per cycle: %v", result.Matched)
	}

	if result.Deleted != 250 || store.remaining() != 0 {
		t.Fatalf("want 250 deleted and empty store, got %d deleted and %d remaining", result.Deleted, store.remaining())
	}
}

func TestLoopStopsWhenNothingMatches(t *testing.T) {
	store := newFakeStore(10, 100)
	loop := newTestLoop(store, cleanup.NewFilterConfig("pull_request", "", "", "", ""))

	result, err := loop.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	if result.Cycles != 1 || len(store.attempts) != 0 {
		t.Fatalf("want 1 cycle without deletions, got %d cycles and %d deletions", result.Cycles, len(store.attempts))
	}

	if store.remaining() != 10 {
		t.Fatalf("want all runs retained, %d remaining", store.remaining())
	}
}

func TestLoopDeleteFailureDoesNotAbortBatch(t *testing.T) {
	store := newFakeStore(5, 100)
	store.failures[2] = 1

	loop := newTestLoop(store, cleanup.FilterConfig{})
	result, err := loop.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	firstBatch := slices.Clone(store.attempts[:5])
	slices.Sort(firstBatch)
	if !slices.Equal(firstBatch, []int64{1, 2, 3, 4, 5}) {
		t.Fatalf("want every run attempted in the first batch, got %v", firstBatch)
	}

	// The failed run is picked up by the next cycle
	if result.Cycles != 3 || result.Deleted != 5 || result.Failed != 1 {
		t.Fatalf("want 3 cycles, 5 deleted and 1 failed, got %d, %d and %d", result.Cycles, result.Deleted, result.Failed)
	}

	if result.FinalState != cleanup.StateDone {
		t.Fatalf("want final state %s got %s", cleanup.StateDone, result.FinalState)
	}
}

func TestLoopCycleLimit(t *testing.T) {
	store := newFakeStore(3, 100)
	store.failures[1] = -1

	loop := newTestLoop(store, cleanup.FilterConfig{}, cleanup.WithMaxCycles(4))
	result, err := loop.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	if !result.CycleLimitReached || result.Cycles != 4 {
		t.Fatalf("want cycle limit reached after 4 cycles, got %t after %d", result.CycleLimitReached, result.Cycles)
	}

	if result.Deleted != 2 || result.Failed != 4 {
		t.Fatalf("want 2 deleted and 4 failed, got %d and %d", result.Deleted, result.Failed)
	}

	if result.FinalState != cleanup.StateDone {
		t.Fatalf("want final state %s got %s", cleanup.StateDone, result.FinalState)
	}
}

func TestLoopListErrorEndsAsDone(t *testing.T) {
	store := newFakeStore(3, 100)
	store.listErr = errors.New("bad credentials")

	loop := newTestLoop(store, cleanup.FilterConfig{})
	result, err := loop.Run(context.Background())
	if err != nil {
		t.Fatalf("want listing error to be absorbed, got %s", err)
	}

	if result.FinalState != cleanup.StateDone || !errors.Is(result.ListError, store.listErr) {
		t.Fatalf("want done state with list error recorded, got %s and %v", result.FinalState, result.ListError)
	}

	if store.remaining() != 3 {
		t.Fatalf("want no deletions, %d remaining", store.remaining())
	}
}

func TestLoopAbortOnListError(t *testing.T) {
	store := newFakeStore(3, 100)
	store.listErr = errors.New("bad credentials")

	loop := newTestLoop(store, cleanup.FilterConfig{}, cleanup.WithAbortOnListError(true))
	result, err := loop.Run(context.Background())
	if !errors.Is(err, store.listErr) {
		t.Fatalf("want %v got %v", store.listErr, err)
	}

	if result.FinalState != cleanup.StateAborted {
		t.Fatalf("want final state %s got %s", cleanup.StateAborted, result.FinalState)
	}
}

func TestLoopDryRun(t *testing.T) {
	store := newFakeStore(4, 100)
	loop := newTestLoop(store, cleanup.FilterConfig{}, cleanup.WithDryRun(true))

	result, err := loop.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	if result.Cycles != 1 || len(result.Selected) != 4 {
		t.Fatalf("want 1 cycle with 4 selected runs, got %d and %d", result.Cycles, len(result.Selected))
	}

	if len(store.attempts) != 0 || store.remaining() != 4 {
		t.Fatalf("want no deletions in dry run, got %d attempts", len(store.attempts))
	}
}

func TestLoopCancelledContext(t *testing.T) {
	store := newFakeStore(4, 100)
	loop := newTestLoop(store, cleanup.FilterConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := loop.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("want %v got %v", context.Canceled, err)
	}

	if result.FinalState != cleanup.StateAborted {
		t.Fatalf("want final state %s got %s", cleanup.StateAborted, result.FinalState)
	}

	if result.CompletedAt.IsZero() {
		t.Fatal("want completion time set on cancelled cleanup")
	}

	if store.listCalls != 0 {
		t.Fatalf("want no list calls, got %d", store.listCalls)
	}
}

func TestLoopDeletesConcurrently(t *testing.T) {
	const n = 8
	store := newFakeStore(n, 100)

	var started atomic.Int32
	allStarted := make(chan struct{})
	deleter := cleanup.DeleterFunc(func(ctx context.Context, repo cleanup.Repository, id int64) error {
		if started.Add(1) == n {
			close(allStarted)
		}

		// Every deletion waits for its siblings, which only succeeds
		// when they are in flight at the same time.
		select {
		case <-allStarted:
		case <-time.After(5 * time.Second):
			return errors.New("deletions are not concurrent")
		}

		return store.DeleteRun(ctx, repo, id)
	})

	loop := cleanup.NewLoop(
		testRepo,
		store,
		deleter,
		cleanup.FilterConfig{},
		cleanup.WithClock(fixedClock),
		cleanup.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)

	result, err := loop.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	if result.Deleted != n || result.Failed != 0 {
		t.Fatalf("want %d deleted and 0 failed, got %d and %d", n, result.Deleted, result.Failed)
	}
}

func TestLoopConcurrencyLimit(t *testing.T) {
	store := newFakeStore(20, 100)

	var inFlight, peak atomic.Int32
	deleter := cleanup.DeleterFunc(func(ctx context.Context, repo cleanup.Repository, id int64) error {
		cur := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			old := peak.Load()
			if cur <= old || peak.CompareAndSwap(old, cur) {
				break
			}
		}
		time.Sleep(time.Millisecond)

		return store.DeleteRun(ctx, repo, id)
	})

	loop := cleanup.NewLoop(
		testRepo,
		store,
		deleter,
		cleanup.FilterConfig{},
		cleanup.WithConcurrency(3),
		cleanup.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)

	result, err := loop.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	if result.Deleted != 20 {
		t.Fatalf("want 20 deleted, got %d", result.Deleted)
	}

	if peak.Load() > 3 {
		t.Fatalf("want at most 3 deletions in flight, got %d", peak.Load())
	}
}

func TestStateString(t *testing.T) {
	testCases := []struct {
		state  cleanup.State
		wanted string
	}{
		{cleanup.StateFetching, "fetching"},
		{cleanup.StateFiltering, "filtering"},
		{cleanup.StateDeleting, "deleting"},
		{cleanup.StateDone, "done"},
		{cleanup.StateAborted, "aborted"},
		{cleanup.State(42), "unknown"},
	}

	for _, tc := range testCases {
		if got := tc.state.String(); got != tc.wanted {
			t.Fatalf("want %q got %q", tc.wanted, got)
		}
	}
}

// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package worker_test

import (
	"context"
	"slices"
	"testing"

	"github.com/hibiken/asynq"

	"github.com/gardener/runsweeper/pkg/core/config"
	"github.com/gardener/runsweeper/pkg/core/registry"
	"github.com/gardener/runsweeper/pkg/utils/asynq/worker"
)

func TestHandleRegistry(t *testing.T) {
	noop := asynq.HandlerFunc(func(context.Context, *asynq.Task) error { return nil })
	reg := registry.New[string, asynq.Handler]()
	reg.MustRegister("history:task:housekeeper", noop)
	reg.MustRegister("gh:task:cleanup-runs", noop)

	w := worker.NewFromConfig(asynq.RedisClientOpt{Addr: "localhost:6379"}, config.WorkerConfig{})
	got := w.HandleRegistry(reg)
	want := []string{"gh:task:cleanup-runs", "history:task:housekeeper"}
	if !slices.Equal(got, want) {
		t.Fatalf("want %v got %v", want, got)
	}
}

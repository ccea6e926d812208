// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package worker

import (
	"context"
	"runtime"
	"time"

	"github.com/hibiken/asynq"

	"github.com/gardener/runsweeper/pkg/core/config"
	"github.com/gardener/runsweeper/pkg/core/registry"
)

// Option is a function, which configures the [Worker].
type Option func(conf *asynq.Config)

// Worker wraps an [asynq.Server] and [asynq.ServeMux] with additional
// convenience methods for task handlers.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
}

// WithLogLevel is an [Option], which configures the log level of the [Worker].
func WithLogLevel(level asynq.LogLevel) Option {
	opt := func(conf *asynq.Config) {
		conf.LogLevel = level
	}

	return opt
}

// WithShutdownTimeout is an [Option], which configures how long the [Worker]
// waits for active tasks, e.g. a cleanup in its DELETING phase, before
// shutting down.
func WithShutdownTimeout(d time.Duration) Option {
	opt := func(conf *asynq.Config) {
		conf.ShutdownTimeout = d
	}

	return opt
}

// WithErrorHandler is an [Option], which configures the [Worker] to use the
// specified [asynq.ErrorHandler].
func WithErrorHandler(handler asynq.ErrorHandler) Option {
	opt := func(conf *asynq.Config) {
		conf.ErrorHandler = handler
	}

	return opt
}

// WithBaseContext is an [Option], which configures the function returning the
// base context of task handlers.
func WithBaseContext(f func() context.Context) Option {
	opt := func(conf *asynq.Config) {
		conf.BaseContext = f
	}

	return opt
}

// NewFromConfig creates a new [Worker] based on the provided
// [config.WorkerConfig] spec.
func NewFromConfig(r asynq.RedisConnOpt, conf config.WorkerConfig, opts ...Option) *Worker {
	concurrency := conf.Concurrency
	if concurrency <= 0 {
		concurrency = runtime.NumCPU()
	}

	queues := conf.Queues
	if len(queues) == 0 {
		queues = map[string]int{
			config.DefaultQueueName: 1,
		}
	}

	asynqConfig := asynq.Config{
		Concurrency:    concurrency,
		Queues:         queues,
		StrictPriority: conf.StrictPriority,
	}

	for _, opt := range opts {
		opt(&asynqConfig)
	}

	worker := &Worker{
		server: asynq.NewServer(r, asynqConfig),
		mux:    asynq.NewServeMux(),
	}

	return worker
}

// HandleRegistry registers every handler of the given registry and returns
// the registered task types.
func (w *Worker) HandleRegistry(reg *registry.Registry[string, asynq.Handler]) []string {
	names := make([]string, 0, reg.Length())
	_ = reg.Range(func(name string, handler asynq.Handler) error {
		w.mux.Handle(name, handler)
		names = append(names, name)

		return nil
	})

	return names
}

// UseMiddlewares configures the [Worker] to use the given middlewares.
func (w *Worker) UseMiddlewares(mw ...asynq.MiddlewareFunc) {
	w.mux.Use(mw...)
}

// Run starts the [Worker] and blocks until a signal to stop is received.
func (w *Worker) Run() error {
	return w.server.Run(w.mux)
}

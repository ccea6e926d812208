// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package asynq

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/gardener/runsweeper/pkg/metrics"
)

// Task outcomes, as reported by [TaskOutcome].
const (
	OutcomeSuccess = "success"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

// TaskOutcome classifies the error returned by a task handler. Errors
// wrapping [asynq.SkipRetry] are skipped, since asynq archives the task
// instead of retrying it.
func TaskOutcome(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, asynq.SkipRetry):
		return OutcomeSkipped
	default:
		return OutcomeFailed
	}
}

// AttrFunc derives additional log attributes from a task, e.g. from its
// payload.
type AttrFunc func(task *asynq.Task) []slog.Attr

// NewLoggerMiddleware returns a new [asynq.MiddlewareFunc], which embeds a
// [slog.Logger] in the context provided to task handlers.
//
// Log events carry the task id, queue, name and retry count, followed by the
// attributes returned by attrFuncs.
func NewLoggerMiddleware(logger *slog.Logger, attrFuncs ...AttrFunc) asynq.MiddlewareFunc {
	middleware := func(handler asynq.Handler) asynq.Handler {
		mw := func(ctx context.Context, task *asynq.Task) error {
			attrs := []slog.Attr{slog.String("task_name", task.Type())}
			if taskID, ok := asynq.GetTaskID(ctx); ok {
				attrs = append(attrs, slog.String("task_id", taskID))
			}

			if queueName, ok := asynq.GetQueueName(ctx); ok {
				attrs = append(attrs, slog.String("task_queue", queueName))
			}

			if retried, ok := asynq.GetRetryCount(ctx); ok && retried > 0 {
				attrs = append(attrs, slog.Int("task_retry", retried))
			}

			for _, f := range attrFuncs {
				attrs = append(attrs, f(task)...)
			}

			taskLogger := slog.New(logger.Handler().WithAttrs(attrs))

			return handler.ProcessTask(WithLogger(ctx, taskLogger), task)
		}

		return asynq.HandlerFunc(mw)
	}

	return asynq.MiddlewareFunc(middleware)
}

// NewMeasuringMiddleware returns a new [asynq.MiddlewareFunc] which logs the
// duration and outcome of tasks.
func NewMeasuringMiddleware() asynq.MiddlewareFunc {
	middleware := func(handler asynq.Handler) asynq.Handler {
		mw := func(ctx context.Context, task *asynq.Task) error {
			logger := GetLogger(ctx)
			logger.Info("received task")
			start := time.Now()
			err := handler.ProcessTask(ctx, task)
			attrs := []any{
				"duration", time.Since(start),
				"outcome", TaskOutcome(err),
			}

			if err != nil {
				logger.Warn("task finished", append(attrs, "reason", err)...)
				return err
			}
			logger.Info("task finished", attrs...)

			return nil
		}

		return asynq.HandlerFunc(mw)
	}

	return asynq.MiddlewareFunc(middleware)
}

// NewMetricsMiddleware returns a new [asynq.MiddlewareFunc] which provides
// metrics about task handlers.
func NewMetricsMiddleware() asynq.MiddlewareFunc {
	middleware := func(handler asynq.Handler) asynq.Handler {
		mw := func(ctx context.Context, task *asynq.Task) error {
			taskName := task.Type()
			queueName := GetQueueName(ctx)

			start := time.Now()
			err := handler.ProcessTask(ctx, task)
			elapsed := time.Since(start)

			switch TaskOutcome(err) {
			case OutcomeSuccess:
				metrics.TaskSuccessfulTotal.WithLabelValues(taskName, queueName).Inc()
				metrics.TaskDurationSeconds.WithLabelValues(taskName, queueName).Observe(elapsed.Seconds())
			case OutcomeSkipped:
				metrics.TaskSkippedTotal.WithLabelValues(taskName, queueName).Inc()
			default:
				metrics.TaskFailedTotal.WithLabelValues(taskName, queueName).Inc()
			}

			return err
		}

		return asynq.HandlerFunc(mw)
	}

	return asynq.MiddlewareFunc(middleware)
}

// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace is the namespace component of the fully qualified metric name
const Namespace = "runsweeper"

// DefaultRegistry is the default [prometheus.Registry] for metrics.
var DefaultRegistry = prometheus.NewPedanticRegistry()

var (
	// RunsDeletedTotal is a metric, which gets incremented each time a
	// workflow run has been deleted.
	RunsDeletedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "runs_deleted_total",
			Help:      "Total number of deleted workflow runs",
		},
		[]string{"repository"},
	)

	// RunsDeleteFailedTotal is a metric, which gets incremented each time
	// a workflow run could not be deleted.
	RunsDeleteFailedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "runs_delete_failed_total",
			Help:      "Total number of workflow runs which could not be deleted",
		},
		[]string{"repository"},
	)

	// RunsExcludedTotal is a metric, which counts the workflow runs
	// excluded by each filter.
	RunsExcludedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "runs_excluded_total",
			Help:      "Total number of workflow runs excluded by a filter",
		},
		[]string{"repository", "filter"},
	)

	// ListFailedTotal is a metric, which gets incremented each time
	// workflow runs could not be listed.
	ListFailedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "list_failed_total",
			Help:      "Total number of failed attempts to list workflow runs",
		},
		[]string{"repository"},
	)

	// TaskSuccessfulTotal is a metric, which gets incremented each time a
	// task completed successfully.
	TaskSuccessfulTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "task_successful_total",
			Help:      "Total number of times a task has succeeded",
		},
		[]string{"task_name", "task_queue"},
	)

	// TaskFailedTotal is a metric, which gets incremented each time a task
	// has failed.
	TaskFailedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "task_failed_total",
			Help:      "Total number of times a task has failed",
		},
		[]string{"task_name", "task_queue"},
	)

	// TaskSkippedTotal is a metric, which gets incremented each time a
	// task has been skipped without retrying.
	TaskSkippedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "task_skipped_total",
			Help:      "Total number of times a task has been skipped",
		},
		[]string{"task_name", "task_queue"},
	)

	// TaskDurationSeconds is a metric, which tracks the duration of
	// successful tasks.
	TaskDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "task_duration_seconds",
			Help:      "Duration of successful tasks in seconds",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		},
		[]string{"task_name", "task_queue"},
	)

	// HistoryDeletedDesc is the descriptor of the metric, which reports
	// the number of cleanup history records removed by the housekeeper.
	HistoryDeletedDesc = prometheus.NewDesc(
		prometheus.BuildFQName(Namespace, "", "history_deleted_records"),
		"Number of cleanup history records deleted by the housekeeper",
		nil,
		nil,
	)

	// RunsMatchedDesc is the descriptor of the metric, which reports the
	// number of workflow runs matched by the filters in the latest cycle.
	RunsMatchedDesc = prometheus.NewDesc(
		prometheus.BuildFQName(Namespace, "", "runs_matched"),
		"Number of workflow runs matched in the latest cleanup cycle",
		[]string{"repository"},
		nil,
	)
)

// NewServer returns a new [http.Server] which can serve the metrics from
// [DefaultRegistry] on the specified network address and HTTP path. Callers
// are responsible for starting up and shutting down the HTTP server.
func NewServer(addr, path string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(
		path,
		promhttp.HandlerFor(DefaultRegistry, promhttp.HandlerOpts{}),
	)

	server := &http.Server{
		Addr:              addr,
		ReadHeaderTimeout: time.Second * 30,
		Handler:           mux,
	}

	return server
}

// init registers collectors with the [DefaultRegistry].
func init() {
	DefaultCollector.AddDesc(RunsMatchedDesc, HistoryDeletedDesc)

	DefaultRegistry.MustRegister(
		RunsDeletedTotal,
		RunsDeleteFailedTotal,
		RunsExcludedTotal,
		ListFailedTotal,
		TaskSuccessfulTotal,
		TaskFailedTotal,
		TaskSkippedTotal,
		TaskDurationSeconds,
		DefaultCollector,

		// Standard Go metrics
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
}

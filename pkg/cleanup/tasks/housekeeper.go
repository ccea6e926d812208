// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/gardener/runsweeper/pkg/cleanup"
	"github.com/gardener/runsweeper/pkg/cleanup/models"
	dbclient "github.com/gardener/runsweeper/pkg/clients/db"
	"github.com/gardener/runsweeper/pkg/core/registry"
	coretasks "github.com/gardener/runsweeper/pkg/core/tasks"
	"github.com/gardener/runsweeper/pkg/metrics"
	asynqutils "github.com/gardener/runsweeper/pkg/utils/asynq"
)

const (
	// HousekeeperTaskType is the name of the task responsible for
	// removing old records from the cleanup history.
	HousekeeperTaskType = "history:task:housekeeper"
)

// ErrNoRetention is returned when the housekeeper payload does not specify a
// usable retention.
var ErrNoRetention = errors.New("no retention specified")

// HousekeeperPayload represents the payload of the housekeeper task.
type HousekeeperPayload struct {
	// Retention specifies how long cleanup records are kept, using the
	// same format as the maintain span, e.g. 90d.
	Retention string `json:"retention" yaml:"retention"`
}

// RetentionDuration returns the retention of the payload.
func (p HousekeeperPayload) RetentionDuration() (time.Duration, error) {
	d := cleanup.MaintainSpanDuration(cleanup.ParseMaintainSpan(p.Retention))
	if d <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrNoRetention, p.Retention)
	}

	return d, nil
}

// HandleHousekeeperTask deletes the cleanup history records, which are older
// than the configured retention.
func HandleHousekeeperTask(ctx context.Context, task *asynq.Task) error {
	var payload HousekeeperPayload
	if err := asynqutils.Unmarshal(task.Payload(), &payload); err != nil {
		return asynqutils.SkipRetry(coretasks.InvalidPayload(HousekeeperTaskType, err))
	}

	retention, err := payload.RetentionDuration()
	if err != nil {
		return asynqutils.SkipRetry(coretasks.InvalidPayload(HousekeeperTaskType, err))
	}

	if dbclient.DB == nil {
		return coretasks.ClientNotFound("db")
	}

	logger := asynqutils.GetLogger(ctx)
	before := time.Now().Add(-retention)
	count, err := models.DeleteCleanupRunsBefore(ctx, dbclient.DB, before)
	if err != nil {
		logger.Error("failed to delete cleanup history", "reason", err)
		return err
	}

	logger.Info("deleted cleanup history", "count", count, "before", before)
	metric := prometheus.MustNewConstMetric(
		metrics.HistoryDeletedDesc,
		prometheus.GaugeValue,
		float64(count),
	)
	metrics.DefaultCollector.AddMetric(metrics.Key(HousekeeperTaskType), metric)

	return nil
}

func init() {
	registry.TaskRegistry.MustRegister(HousekeeperTaskType, asynq.HandlerFunc(HandleHousekeeperTask))
}

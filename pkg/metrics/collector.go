// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/gardener/runsweeper/pkg/core/registry"
)

// DefaultCollector is the default [Collector] for metrics.
var DefaultCollector = NewCollector()

// Collector is an implementation of the [prometheus.Collector] interface,
// which reports the latest value of a metric only once.
//
// A [prometheus.GaugeVec] keeps reporting the last-known value for every label
// set it has ever seen. The number of runs matched for a repository is only
// meaningful for the latest cleanup cycle, so a repository which is no longer
// cleaned up should stop being reported. Metrics added to the [Collector] are
// dropped after they have been collected.
type Collector struct {
	mu          sync.Mutex
	descriptors []*prometheus.Desc

	// pending holds the metrics added since the last scrape, keyed by
	// their idempotency key.
	pending *registry.Registry[string, prometheus.Metric]
}

var _ prometheus.Collector = &Collector{}

// NewCollector creates a new [Collector]
func NewCollector() *Collector {
	c := &Collector{
		descriptors: make([]*prometheus.Desc, 0),
		pending:     registry.New[string, prometheus.Metric](),
	}

	return c
}

// AddDesc adds the given [prometheus.Desc] to the [Collector].
func (c *Collector) AddDesc(items ...*prometheus.Desc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.descriptors = append(c.descriptors, items...)
}

// AddMetric adds the given [prometheus.Metric] to the [Collector], replacing
// any metric added with the same key since the last scrape.
//
// The key identifies a metric and its label values, see [Key].
func (c *Collector) AddMetric(key string, metric prometheus.Metric) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending.Overwrite(key, metric)
}

// Len returns the number of metrics waiting to be collected.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.pending.Length()
}

// Describe implements the [prometheus.Collector] interface.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, desc := range c.descriptors {
		ch <- desc
	}
}

// Collect implements the [prometheus.Collector] interface. Metrics added
// while a scrape is in progress are kept for the next one.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.mu.Lock()
	collected := c.pending
	c.pending = registry.New[string, prometheus.Metric]()
	c.mu.Unlock()

	_ = collected.Range(func(_ string, metric prometheus.Metric) error {
		ch <- metric

		return nil
	})
}

// Key derives an idempotency key for [Collector.AddMetric] from a metric name
// and its label values.
func Key(item string, rest ...string) string {
	return strings.Join(append([]string{item}, rest...), "/")
}

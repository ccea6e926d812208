// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestKey(t *testing.T) {
	testCases := []struct {
		desc   string
		item   string
		rest   []string
		wanted string
	}{
		{desc: "single item", item: "a", wanted: "a"},
		{desc: "multiple items", item: "a", rest: []string{"b", "c"}, wanted: "a/b/c"},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			got := Key(tc.item, tc.rest...)
			if got != tc.wanted {
				t.Fatalf("want %q got %q", tc.wanted, got)
			}
		})
	}
}

func TestCollectorDropsCollectedMetrics(t *testing.T) {
	c := NewCollector()
	c.AddDesc(RunsMatchedDesc)

	metric := prometheus.MustNewConstMetric(RunsMatchedDesc, prometheus.GaugeValue, 3, "acme/widgets")
	c.AddMetric(Key("runs_matched", "acme/widgets"), metric)
	c.AddMetric(Key("runs_matched", "acme/widgets"), metric)
	if c.Len() != 1 {
		t.Fatalf("want 1 pending metric, got %d", c.Len())
	}

	collect := func() int {
		ch := make(chan prometheus.Metric, 10)
		c.Collect(ch)
		close(ch)
		count := 0
		for range ch {
			count++
		}

		return count
	}

	if got := collect(); got != 1 {
		t.Fatalf("want 1 metric on first collect, got %d", got)
	}

	if got := collect(); got != 0 {
		t.Fatalf("want 0 metrics on second collect, got %d", got)
	}
}

// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package cleanup

import (
	"math"
	"slices"
	"strings"
	"time"
)

// Names of the filters, in the order in which they are applied.
const (
	EventFilterName  = "event-filter"
	StatusFilterName = "status-filter"
	BranchFilterName = "branch-filter"
	ActorFilterName  = "actor-filter"
	MaintainSpanName = "maintain-span"
)

// FilterConfig represents the resolved filter settings of a cleanup. A zero
// value matches every run.
type FilterConfig struct {
	// Events specifies the accepted event names.
	Events []string

	// Statuses specifies the accepted status or conclusion names.
	Statuses []string

	// Branch specifies the accepted head branch.
	Branch string

	// Actor specifies the accepted actor login.
	Actor string

	// MaintainSpan specifies the minimum age in milliseconds of a run
	// before it becomes eligible for deletion. Zero disables the age
	// filter.
	MaintainSpan float64
}

// NewFilterConfig creates a new [FilterConfig] from the raw filter inputs.
// The events and statuses are comma-separated lists, and span is a
// maintain-span expression as accepted by [ParseMaintainSpan].
func NewFilterConfig(events, statuses, branch, actor, span string) FilterConfig {
	conf := FilterConfig{
		Events:       SplitList(events),
		Statuses:     SplitList(statuses),
		Branch:       branch,
		Actor:        actor,
		MaintainSpan: ParseMaintainSpan(span),
	}

	return conf
}

// SplitList splits a comma-separated list, trims the whitespace around each
// item and drops empty items.
func SplitList(s string) []string {
	items := make([]string, 0)
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			items = append(items, item)
		}
	}

	return items
}

// Predicate reports whether a [Run] is eligible for deletion.
type Predicate func(r Run) bool

// Filter is a named [Predicate].
type Filter struct {
	Name      string
	Predicate Predicate
}

// Exclusion reports how many runs a [Filter] excluded from the running set.
type Exclusion struct {
	Filter string
	Count  int
}

// EventPredicate returns a [Predicate], which matches runs triggered by one
// of the configured events.
func EventPredicate(conf FilterConfig) Predicate {
	return func(r Run) bool {
		return len(conf.Events) == 0 || slices.Contains(conf.Events, r.Event)
	}
}

// StatusPredicate returns a [Predicate], which matches runs whose status or
// conclusion is one of the configured statuses. A run matches on either
// field, since the status of a run turns into a conclusion when it
// completes.
func StatusPredicate(conf FilterConfig) Predicate {
	return func(r Run) bool {
		if len(conf.Statuses) == 0 {
			return true
		}

		return slices.Contains(conf.Statuses, r.Status) ||
			slices.Contains(conf.Statuses, r.Conclusion)
	}
}

// BranchPredicate returns a [Predicate], which matches runs on the
// configured branch.
func BranchPredicate(conf FilterConfig) Predicate {
	return func(r Run) bool {
		return conf.Branch == "" || r.HeadBranch == conf.Branch
	}
}

// ActorPredicate returns a [Predicate], which matches runs triggered by the
// configured actor.
func ActorPredicate(conf FilterConfig) Predicate {
	return func(r Run) bool {
		return conf.Actor == "" || r.Actor == conf.Actor
	}
}

// AgePredicate returns a [Predicate], which matches runs whose last activity
// is older than the configured maintain-span, as seen by the now clock. A run
// exactly at the threshold is not matched.
//
// A span of zero or NaN matches every run. A run without any timestamp never
// matches a non-zero span.
func AgePredicate(conf FilterConfig, now func() time.Time) Predicate {
	span := conf.MaintainSpan
	disabled := span == 0 || math.IsNaN(span)

	return func(r Run) bool {
		if disabled {
			return true
		}

		last := r.LastActivity()
		if last.IsZero() {
			return false
		}

		age := float64(now().Sub(last)) / float64(time.Millisecond)

		return age > span
	}
}

// Filters returns the filters for the given [FilterConfig] in the order in
// which they are applied.
func Filters(conf FilterConfig, now func() time.Time) []Filter {
	filters := []Filter{
		{Name: EventFilterName, Predicate: EventPredicate(conf)},
		{Name: StatusFilterName, Predicate: StatusPredicate(conf)},
		{Name: BranchFilterName, Predicate: BranchPredicate(conf)},
		{Name: ActorFilterName, Predicate: ActorPredicate(conf)},
		{Name: MaintainSpanName, Predicate: AgePredicate(conf, now)},
	}

	return filters
}

// Match reports whether the run satisfies every filter.
func Match(filters []Filter, r Run) bool {
	for _, f := range filters {
		if !f.Predicate(r) {
			return false
		}
	}

	return true
}

// Apply applies the filters one at a time over a running subset of runs. It
// returns the runs which satisfy every filter, along with the number of runs
// each filter excluded from the subset left by the filters before it.
//
// The returned runs are the same as the ones selected by [Match].
func Apply(filters []Filter, runs []Run) ([]Run, []Exclusion) {
	result := runs
	exclusions := make([]Exclusion, 0, len(filters))
	for _, f := range filters {
		kept := make([]Run, 0, len(result))
		for _, r := range result {
			if f.Predicate(r) {
				kept = append(kept, r)
			}
		}

		exclusions = append(exclusions, Exclusion{
			Filter: f.Name,
			Count:  len(result) - len(kept),
		})
		result = kept
	}

	return result, exclusions
}

// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package cleanup

import (
	"math"
	"time"
	"unicode"
	"unicode/utf8"
)

// Fixed approximations of the supported maintain-span units, in milliseconds.
const (
	MillisPerHour  float64 = 3_600_000
	MillisPerDay   float64 = 86_400_000
	MillisPerWeek  float64 = 604_800_000
	MillisPerMonth float64 = 2_592_000_000  // 30 days
	MillisPerYear  float64 = 31_536_000_000 // 365 days
)

// spanUnits maps a maintain-span unit to its length in milliseconds.
var spanUnits = map[rune]float64{
	'h': MillisPerHour,
	'd': MillisPerDay,
	'w': MillisPerWeek,
	'm': MillisPerMonth,
	'y': MillisPerYear,
}

// ParseMaintainSpan parses a maintain-span expression of the form
// <integer><unit> and returns its length in milliseconds.
//
// An empty expression yields 0, which disables the age filter.
//
// NOTE: an unknown unit is not an error. It multiplies the value by zero, so
// "5x" yields 0, which also disables the age filter. An expression without a
// leading integer, e.g. "d" or "abcd", yields NaN. [AgePredicate] treats a
// NaN span like an unset one.
func ParseMaintainSpan(s string) float64 {
	if s == "" {
		return 0
	}

	unit, size := utf8.DecodeLastRuneInString(s)
	value := parseLeadingInt(s[:len(s)-size])

	return value * spanUnits[unit]
}

// MaintainSpanDuration converts a span in milliseconds, as returned by
// [ParseMaintainSpan], into a [time.Duration]. NaN converts to zero. Spans
// outside the range of [time.Duration] are clamped to its bounds.
func MaintainSpanDuration(ms float64) time.Duration {
	if math.IsNaN(ms) {
		return 0
	}

	ns := ms * float64(time.Millisecond)
	switch {
	case ns >= math.MaxInt64:
		return time.Duration(math.MaxInt64)
	case ns <= math.MinInt64:
		return time.Duration(math.MinInt64)
	}

	return time.Duration(ns)
}

// parseLeadingInt parses the longest base-10 integer prefix of s, after
// skipping leading whitespace and an optional sign. Trailing garbage is
// ignored. When s has no digits in that position NaN is returned.
func parseLeadingInt(s string) float64 {
	i := 0
	for i < len(s) {
		r, size := utf8.DecodeRuneInString(s[i:])
		if !unicode.IsSpace(r) {
			break
		}
		i += size
	}

	sign := 1.0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		if s[i] == '-' {
			sign = -1.0
		}
		i++
	}

	start := i
	value := 0.0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		value = value*10 + float64(s[i]-'0')
		i++
	}

	if i == start {
		return math.NaN()
	}

	return sign * value
}

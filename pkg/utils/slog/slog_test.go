// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package slog_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/gardener/runsweeper/pkg/core/config"
	slogutils "github.com/gardener/runsweeper/pkg/utils/slog"
)

func TestNewFromConfigJSON(t *testing.T) {
	var buf bytes.Buffer
	conf := config.LoggingConfig{
		Format: "json",
		Level:  "warn",
		Attributes: map[string]string{
			"app": "runsweeper",
		},
	}

	logger, err := slogutils.NewFromConfig(&buf, conf)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	logger.Info("dropped")
	logger.Warn("kept", "repository", "acme/widgets")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("want 1 log line, got %d: %q", len(lines), buf.String())
	}

	var event map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &event); err != nil {
		t.Fatalf("cannot decode log event: %s", err)
	}

	if event["app"] != "runsweeper" || event["repository"] != "acme/widgets" {
		t.Fatalf("unexpected log event: %v", event)
	}
}

func TestNewFromConfigErrors(t *testing.T) {
	testCases := []struct {
		desc   string
		conf   config.LoggingConfig
		wanted error
	}{
		{
			desc:   "invalid level",
			conf:   config.LoggingConfig{Level: "loud"},
			wanted: slogutils.ErrInvalidLogLevel,
		},
		{
			desc:   "invalid format",
			conf:   config.LoggingConfig{Format: "xml"},
			wanted: slogutils.ErrInvalidLogFormat,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			var buf bytes.Buffer
			_, err := slogutils.NewFromConfig(&buf, tc.conf)
			if !errors.Is(err, tc.wanted) {
				t.Fatalf("want %v got %v", tc.wanted, err)
			}
		})
	}
}

// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/gardener/runsweeper/pkg/core/config"
)

func writeConfig(t *testing.T, data string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("cannot write config: %s", err)
	}

	return path
}

func TestParse(t *testing.T) {
	data := `
version: v1alpha1
debug: true
logging:
  format: json
  level: debug
github:
  api_url: https://ghe.example.org/api/v3/
  token_vault:
    mount: secret
    path: ci/github
    field: token
scheduler:
  jobs:
    - name: gh:task:cleanup-runs
      spec: "@every 1h"
      payload: |
        repository: acme/widgets
        maintain_span: 30d
`
	conf, err := config.Parse(writeConfig(t, data))
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	if !conf.Debug {
		t.Fatal("want debug mode enabled")
	}

	if conf.Logging.Format != "json" || conf.Logging.Level != "debug" {
		t.Fatalf("unexpected logging config: %+v", conf.Logging)
	}

	if !conf.GitHub.TokenVault.IsSet() || conf.GitHub.TokenVault.Field != "token" {
		t.Fatalf("unexpected token vault config: %+v", conf.GitHub.TokenVault)
	}

	if conf.Scheduler.DefaultQueue != config.DefaultQueueName {
		t.Fatalf("want default queue %q got %q", config.DefaultQueueName, conf.Scheduler.DefaultQueue)
	}

	if len(conf.Scheduler.Jobs) != 1 || conf.Scheduler.Jobs[0].Spec != "@every 1h" {
		t.Fatalf("unexpected scheduler jobs: %+v", conf.Scheduler.Jobs)
	}

	if conf.Worker.Metrics.Path != "/metrics" {
		t.Fatalf("want default metrics path, got %q", conf.Worker.Metrics.Path)
	}
}

func TestParseErrors(t *testing.T) {
	testCases := []struct {
		desc   string
		data   string
		wanted error
	}{
		{
			desc:   "missing version",
			data:   "debug: true\n",
			wanted: config.ErrNoConfigVersion,
		},
		{
			desc:   "unsupported version",
			data:   "version: v2\n",
			wanted: config.ErrUnsupportedVersion,
		},
		{
			desc:   "job without name",
			data:   "version: v1alpha1\nscheduler:\n  jobs:\n    - spec: \"@daily\"\n",
			wanted: config.ErrInvalidJob,
		},
		{
			desc:   "job with bad spec",
			data:   "version: v1alpha1\nscheduler:\n  jobs:\n    - name: x\n      spec: \"every day\"\n",
			wanted: config.ErrInvalidJob,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			_, err := config.Parse(writeConfig(t, tc.data))
			if !errors.Is(err, tc.wanted) {
				t.Fatalf("want error %v got %v", tc.wanted, err)
			}
		})
	}
}

func TestValidateEmptyVersion(t *testing.T) {
	conf := config.Default()
	conf.Version = ""

	if err := conf.Validate(); !errors.Is(err, config.ErrNoConfigVersion) {
		t.Fatalf("want %v got %v", config.ErrNoConfigVersion, err)
	}
}

// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package client_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gardener/runsweeper/pkg/core/config"
	"github.com/gardener/runsweeper/pkg/vault/client"
)

const secretResponse = `{
  "data": {
    "data": {"token": "ghp_secret"},
    "metadata": {
      "created_time": "2025-01-01T00:00:00.000000000Z",
      "custom_metadata": null,
      "deletion_time": "",
      "destroyed": false,
      "version": 1
    }
  }
}`

func newTestClient(t *testing.T) *client.Client {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/ci/data/github", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Vault-Token") != "root" {
			http.Error(w, `{"errors": ["permission denied"]}`, http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(secretResponse))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c, err := client.NewFromConfig(config.VaultConfig{
		Address: srv.URL,
		Token:   "root",
	})
	if err != nil {
		t.Fatalf("cannot create client: %s", err)
	}

	return c
}

func TestReadKVField(t *testing.T) {
	c := newTestClient(t)

	value, err := c.ReadKVField(context.Background(), config.VaultSecretConfig{
		Mount: "ci",
		Path:  "github",
		Field: "token",
	})
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	if value != "ghp_secret" {
		t.Fatalf("want ghp_secret got %q", value)
	}
}

func TestReadKVFieldMissingField(t *testing.T) {
	c := newTestClient(t)

	_, err := c.ReadKVField(context.Background(), config.VaultSecretConfig{
		Mount: "ci",
		Path:  "github",
		Field: "password",
	})
	if !errors.Is(err, client.ErrFieldNotFound) {
		t.Fatalf("want %v got %v", client.ErrFieldNotFound, err)
	}
}

func TestNewFromConfigUnsupportedAuthMethod(t *testing.T) {
	_, err := client.NewFromConfig(config.VaultConfig{AuthMethod: "ldap"})
	if !errors.Is(err, client.ErrUnsupportedAuthMethod) {
		t.Fatalf("want %v got %v", client.ErrUnsupportedAuthMethod, err)
	}
}

func TestLoginWithoutAuthMethod(t *testing.T) {
	c := newTestClient(t)
	if err := c.Login(context.Background()); err != nil {
		t.Fatalf("want no-op login, got %s", err)
	}
}

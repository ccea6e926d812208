// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package cleanup_test

import (
	"errors"
	"testing"
	"time"

	"github.com/gardener/runsweeper/pkg/cleanup"
)

func TestParseRepository(t *testing.T) {
	testCases := []struct {
		in      string
		wanted  cleanup.Repository
		wantErr bool
	}{
		{in: "acme/widgets", wanted: cleanup.Repository{Owner: "acme", Name: "widgets"}},
		{in: " acme/widgets ", wanted: cleanup.Repository{Owner: "acme", Name: "widgets"}},
		{in: "", wantErr: true},
		{in: "acme", wantErr: true},
		{in: "acme/", wantErr: true},
		{in: "/widgets", wantErr: true},
		{in: "acme/widgets/extra", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := cleanup.ParseRepository(tc.in)
			if tc.wantErr {
				if !errors.Is(err, cleanup.ErrInvalidRepository) {
					t.Fatalf("want %v got %v", cleanup.ErrInvalidRepository, err)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %s", err)
			}

			if got != tc.wanted {
				t.Fatalf("want %v got %v", tc.wanted, got)
			}

			if got.String() != "acme/widgets" {
				t.Fatalf("want acme/widgets got %s", got)
			}
		})
	}
}

func TestLastActivity(t *testing.T) {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	updated := created.Add(time.Hour)

	if got := (cleanup.Run{CreatedAt: created, UpdatedAt: updated}).LastActivity(); !got.Equal(updated) {
		t.Fatalf("want updated_at %s got %s", updated, got)
	}

	if got := (cleanup.Run{CreatedAt: created}).LastActivity(); !got.Equal(created) {
		t.Fatalf("want created_at fallback %s got %s", created, got)
	}
}

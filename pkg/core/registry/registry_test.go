// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"errors"
	"slices"
	"testing"
)

func TestRegisterAndGet(t *testing.T) {
	r := New[string, int]()
	if r.Length() != 0 {
		t.Fatalf("want empty registry, got %d items", r.Length())
	}

	if err := r.Register("gh:task:cleanup-runs", 42); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	val, ok := r.Get("gh:task:cleanup-runs")
	if !ok || val != 42 {
		t.Fatalf("want 42, got %d (exists: %t)", val, ok)
	}

	if _, ok := r.Get("missing"); ok {
		t.Fatal("want missing key to not exist")
	}

	err := r.Register("gh:task:cleanup-runs", 1)
	if !errors.Is(err, ErrKeyAlreadyRegistered) {
		t.Fatalf("want ErrKeyAlreadyRegistered, got %v", err)
	}

	r.Unregister("gh:task:cleanup-runs")
	if r.Length() != 0 {
		t.Fatalf("want empty registry after unregister, got %d items", r.Length())
	}
}

func TestMustRegisterPanicsOnDuplicateKey(t *testing.T) {
	r := New[string, int]()
	r.MustRegister("key", 1)

	defer func() {
		if recover() == nil {
			t.Fatal("want panic on duplicate key")
		}
	}()

	r.MustRegister("key", 1)
}

func TestOverwrite(t *testing.T) {
	r := New[string, int]()
	r.Overwrite("key", 1)
	r.Overwrite("key", 2)

	val, ok := r.Get("key")
	if !ok || val != 2 || r.Length() != 1 {
		t.Fatalf("want single overwritten value 2, got %d (exists: %t, length: %d)", val, ok, r.Length())
	}
}

func TestKeysAreSorted(t *testing.T) {
	r := New[int, string]()
	r.MustRegister(3, "c")
	r.MustRegister(1, "a")
	r.MustRegister(2, "b")

	if keys := r.Keys(); !slices.Equal(keys, []int{1, 2, 3}) {
		t.Fatalf("want keys [1 2 3] got %v", keys)
	}
}

func TestRange(t *testing.T) {
	custom := errors.New("custom error")
	testCases := []struct {
		desc    string
		stopAt  string
		result  error
		wantErr error
		visited []string
	}{
		{
			desc:    "visits all in key order",
			visited: []string{"a", "b", "c"},
		},
		{
			desc:    "continue keeps going",
			stopAt:  "b",
			result:  ErrContinue,
			visited: []string{"a", "b", "c"},
		},
		{
			desc:    "stop iteration returns nil",
			stopAt:  "b",
			result:  ErrStopIteration,
			visited: []string{"a", "b"},
		},
		{
			desc:    "other errors are returned",
			stopAt:  "a",
			result:  custom,
			wantErr: custom,
			visited: []string{"a"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			r := New[string, int]()
			r.MustRegister("c", 3)
			r.MustRegister("a", 1)
			r.MustRegister("b", 2)

			visited := make([]string, 0)
			err := r.Range(func(key string, _ int) error {
				visited = append(visited, key)
				if key == tc.stopAt {
					return tc.result
				}

				return nil
			})

			if err != tc.wantErr {
				t.Fatalf("want error %v got %v", tc.wantErr, err)
			}

			if !slices.Equal(visited, tc.visited) {
				t.Fatalf("want visited %v got %v", tc.visited, visited)
			}
		})
	}
}

func TestRangeAllowsModification(t *testing.T) {
	r := New[string, int]()
	r.MustRegister("a", 1)
	r.MustRegister("b", 2)

	err := r.Range(func(key string, _ int) error {
		r.Unregister(key)
		r.Overwrite(key+"-new", 0)

		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	if keys := r.Keys(); !slices.Equal(keys, []string{"a-new", "b-new"}) {
		t.Fatalf("want only new keys after Range, got %v", keys)
	}
}

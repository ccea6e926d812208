// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package tasks

import (
	"errors"
	"fmt"
)

// ErrClientNotFound is an error which is returned when a client, e.g. the
// GitHub API client or the history database, has not been configured for the
// workers.
var ErrClientNotFound = errors.New("client not found")

// ErrInvalidPayload is an error which is returned when a task payload cannot
// be decoded or does not validate. Retrying such a task does not help.
var ErrInvalidPayload = errors.New("invalid task payload")

// ClientNotFound wraps [ErrClientNotFound] with the given name.
func ClientNotFound(name string) error {
	return fmt.Errorf("%w: %s", ErrClientNotFound, name)
}

// InvalidPayload wraps [ErrInvalidPayload] and the cause for the given task.
func InvalidPayload(taskName string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrInvalidPayload, taskName, err)
}

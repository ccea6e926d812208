// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package github

import (
	"github.com/gardener/runsweeper/pkg/github"
)

// Client is the GitHub API client used by the workers.
var Client *github.Client

// SetClient sets the GitHub API client to be used by the workers.
func SetClient(c *github.Client) {
	Client = c
}

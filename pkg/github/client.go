// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package github provides a [cleanup.Source] and [cleanup.Deleter] backed by
// the GitHub Actions API.
package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	gh "github.com/google/go-github/v66/github"
	"golang.org/x/oauth2"

	"github.com/gardener/runsweeper/pkg/cleanup"
)

// DefaultPageSize is the number of workflow runs fetched with a single list
// call. It is the maximum page size supported by the API.
const DefaultPageSize = 100

// ErrNoToken is returned when creating a [Client] without an API token.
var ErrNoToken = errors.New("no github token specified")

// Client lists and deletes workflow runs using the GitHub Actions API.
type Client struct {
	gh       *gh.Client
	pageSize int
}

var (
	_ cleanup.Source  = &Client{}
	_ cleanup.Deleter = &Client{}
)

// Option is a function which configures the [Client].
type Option func(c *Client) error

// WithBaseURL is an [Option], which configures the [Client] to use an
// alternate API endpoint, e.g. GitHub Enterprise Server.
func WithBaseURL(baseURL string) Option {
	opt := func(c *Client) error {
		if !strings.HasSuffix(baseURL, "/") {
			baseURL += "/"
		}

		u, err := url.Parse(baseURL)
		if err != nil {
			return fmt.Errorf("invalid github api url %q: %w", baseURL, err)
		}
		c.gh.BaseURL = u

		return nil
	}

	return opt
}

// WithPageSize is an [Option], which configures the number of workflow runs
// fetched per list call.
func WithPageSize(size int) Option {
	opt := func(c *Client) error {
		if size <= 0 || size > DefaultPageSize {
			return fmt.Errorf("invalid page size %d", size)
		}
		c.pageSize = size

		return nil
	}

	return opt
}

// New creates a new [Client], which authenticates with the given token.
func New(ctx context.Context, token string, opts ...Option) (*Client, error) {
	if token == "" {
		return nil, ErrNoToken
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	c := &Client{
		gh:       gh.NewClient(oauth2.NewClient(ctx, ts)),
		pageSize: DefaultPageSize,
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// ListRuns implements the [cleanup.Source] interface. It returns the first
// page of workflow runs of the repository.
func (c *Client) ListRuns(ctx context.Context, repo cleanup.Repository) ([]cleanup.Run, error) {
	opts := &gh.ListWorkflowRunsOptions{
		ListOptions: gh.ListOptions{PerPage: c.pageSize},
	}

	out, _, err := c.gh.Actions.ListRepositoryWorkflowRuns(ctx, repo.Owner, repo.Name, opts)
	if err != nil {
		return nil, fmt.Errorf("cannot list workflow runs of %s: %w", repo, err)
	}

	runs := make([]cleanup.Run, 0, len(out.WorkflowRuns))
	for _, item := range out.WorkflowRuns {
		if item == nil {
			continue
		}
		runs = append(runs, toRun(item))
	}

	return runs, nil
}

// DeleteRun implements the [cleanup.Deleter] interface.
func (c *Client) DeleteRun(ctx context.Context, repo cleanup.Repository, id int64) error {
	resp, err := c.gh.Actions.DeleteWorkflowRun(ctx, repo.Owner, repo.Name, id)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return fmt.Errorf("workflow run %d of %s is already gone: %w", id, repo, err)
		}

		return fmt.Errorf("cannot delete workflow run %d of %s: %w", id, repo, err)
	}

	return nil
}

// toRun converts an API workflow run into a [cleanup.Run].
func toRun(item *gh.WorkflowRun) cleanup.Run {
	run := cleanup.Run{
		ID:         item.GetID(),
		Name:       item.GetName(),
		Event:      item.GetEvent(),
		Status:     item.GetStatus(),
		Conclusion: item.GetConclusion(),
		HeadBranch: item.GetHeadBranch(),
		Actor:      item.GetActor().GetLogin(),
		CreatedAt:  item.GetCreatedAt().Time,
		UpdatedAt:  item.GetUpdatedAt().Time,
	}

	return run
}

// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package jwt provides an implementation of the JWT Auth Method for Vault.
package jwt

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	vault "github.com/hashicorp/vault/api"
	"github.com/sethvargo/go-githubactions"
)

// DefaultMountPath specifies the default mount path for the JWT
// Authentication Method.
const DefaultMountPath = "jwt"

// ErrNoToken is an error, which is returned when [Auth] is configured
// without a token source.
var ErrNoToken = errors.New("no token specified")

// ErrInvalidMountPath is an error, which is returned when configuring [Auth]
// to use an invalid mount path for a Vault Authentication Method.
var ErrInvalidMountPath = errors.New("invalid auth method mount path specified")

// ErrNoRoleName is an error, which is returned when no role name was specified
// when creating a [Auth].
var ErrNoRoleName = errors.New("no role name specified")

// ErrNoActionsIDToken is returned when the GitHub Actions OIDC token cannot
// be requested, e.g. because the job lacks the `id-token: write' permission.
var ErrNoActionsIDToken = errors.New("github actions id token not available")

// tokenSource returns the JWT used to log in.
type tokenSource func(ctx context.Context) (string, error)

// Auth implements support for the [JWT Authentication Method].
//
// [JWT Authentication Method]: https://developer.hashicorp.com/vault/docs/auth/jwt
type Auth struct {
	roleName  string
	mountPath string
	source    tokenSource
}

var _ vault.AuthMethod = &Auth{}

// Option is a function which configures [Auth].
type Option func(a *Auth) error

// New creates a new [Auth] and configures it with the given options.
//
// The default mount path is [DefaultMountPath], use [WithMountPath] to change
// it. The JWT comes from the last of the [WithToken], [WithTokenFromPath],
// [WithTokenFromEnv] and [WithActionsIDToken] options.
func New(roleName string, opts ...Option) (*Auth, error) {
	if roleName == "" {
		return nil, ErrNoRoleName
	}

	auth := &Auth{
		roleName:  roleName,
		mountPath: DefaultMountPath,
	}

	for _, opt := range opts {
		if err := opt(auth); err != nil {
			return nil, err
		}
	}

	if auth.source == nil {
		return nil, ErrNoToken
	}

	if auth.mountPath == "" {
		return nil, ErrInvalidMountPath
	}

	return auth, nil
}

// Login implements the [vault.AuthMethod] interface.
func (a *Auth) Login(ctx context.Context, client *vault.Client) (*vault.Secret, error) {
	token, err := a.source(ctx)
	if err != nil {
		return nil, err
	}

	path := fmt.Sprintf("auth/%s/login", a.mountPath)
	data := map[string]any{
		"jwt":  strings.TrimSpace(token),
		"role": a.roleName,
	}

	return client.Logical().WriteWithContext(ctx, path, data)
}

// WithToken is an [Option], which configures [Auth] to use the given token
// when authenticating against the Vault JWT Authentication Method.
func WithToken(token string) Option {
	opt := func(a *Auth) error {
		if token == "" {
			return ErrNoToken
		}
		a.source = func(context.Context) (string, error) {
			return token, nil
		}

		return nil
	}

	return opt
}

// WithTokenFromPath is an [Option], which configures [Auth] to read the
// token from the given path on each login.
func WithTokenFromPath(path string) Option {
	opt := func(a *Auth) error {
		a.source = func(context.Context) (string, error) {
			data, err := os.ReadFile(filepath.Clean(path))
			if err != nil {
				return "", err
			}

			return string(data), nil
		}

		return nil
	}

	return opt
}

// WithTokenFromEnv is an [Option], which configures [Auth] to read the token
// from the given environment variable.
func WithTokenFromEnv(env string) Option {
	return WithToken(os.Getenv(env))
}

// WithActionsIDToken is an [Option], which configures [Auth] to request an
// OIDC token for the given audience from the GitHub Actions runtime on each
// login.
func WithActionsIDToken(audience string) Option {
	opt := func(a *Auth) error {
		a.source = func(ctx context.Context) (string, error) {
			return actionsIDToken(ctx, githubactions.New(), audience)
		}

		return nil
	}

	return opt
}

// WithMountPath is an [Option], which configures [Auth] to use the given
// mount path for the Vault Authentication Method.
func WithMountPath(mountPath string) Option {
	opt := func(a *Auth) error {
		a.mountPath = mountPath

		return nil
	}

	return opt
}

// actionsIDToken requests an OIDC token for the audience from the GitHub
// Actions runtime.
func actionsIDToken(ctx context.Context, action *githubactions.Action, audience string) (string, error) {
	token, err := action.GetIDToken(ctx, audience)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNoActionsIDToken, err)
	}

	if token == "" {
		return "", ErrNoActionsIDToken
	}

	return token, nil
}

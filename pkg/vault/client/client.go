// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	vault "github.com/hashicorp/vault/api"

	"github.com/gardener/runsweeper/pkg/core/config"
	"github.com/gardener/runsweeper/pkg/vault/auth/jwt"
)

// Supported Auth Methods.
const (
	AuthMethodToken = "token"
	AuthMethodJWT   = "jwt"
)

// ErrNoAuthInfo is an error, which is returned when a successful authentication
// to an Auth Method endpoint was performed, but no auth info was returned as
// part of the response.
var ErrNoAuthInfo = errors.New("no auth info returned")

// ErrUnsupportedAuthMethod is returned when configuring an unknown Auth
// Method.
var ErrUnsupportedAuthMethod = errors.New("unsupported auth method")

// ErrFieldNotFound is returned when a secret does not contain the requested
// field.
var ErrFieldNotFound = errors.New("secret field not found")

// Option is a function which configures the [Client]
type Option func(c *Client) error

// Client is a wrapper around [vault.Client], which logs in with an optional
// Auth Method and reads secrets from KV v2 secrets engines.
type Client struct {
	*vault.Client

	am vault.AuthMethod
}

// New creates a new [Client] from the given config and options.
func New(conf *vault.Config, opts ...Option) (*Client, error) {
	vaultClient, err := vault.NewClient(conf)
	if err != nil {
		return nil, err
	}

	c := &Client{
		Client: vaultClient,
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// NewFromConfig creates a new [Client] from the given [config.VaultConfig].
func NewFromConfig(conf config.VaultConfig) (*Client, error) {
	vaultConfig := vault.DefaultConfig()
	if conf.Address != "" {
		vaultConfig.Address = conf.Address
	}

	opts := make([]Option, 0)
	if conf.Token != "" {
		opts = append(opts, WithToken(conf.Token))
	}

	switch conf.AuthMethod {
	case "", AuthMethodToken:
		// Token is either configured or comes from VAULT_TOKEN
	case AuthMethodJWT:
		jwtOpts := make([]jwt.Option, 0)
		switch {
		case conf.JWT.ActionsAudience != "":
			jwtOpts = append(jwtOpts, jwt.WithActionsIDToken(conf.JWT.ActionsAudience))
		case conf.JWT.TokenPath != "":
			jwtOpts = append(jwtOpts, jwt.WithTokenFromPath(conf.JWT.TokenPath))
		case conf.JWT.TokenEnv != "":
			jwtOpts = append(jwtOpts, jwt.WithTokenFromEnv(conf.JWT.TokenEnv))
		}
		if conf.JWT.MountPath != "" {
			jwtOpts = append(jwtOpts, jwt.WithMountPath(conf.JWT.MountPath))
		}

		am, err := jwt.New(conf.JWT.RoleName, jwtOpts...)
		if err != nil {
			return nil, fmt.Errorf("vault: cannot configure jwt auth: %w", err)
		}
		opts = append(opts, WithAuthMethod(am))
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAuthMethod, conf.AuthMethod)
	}

	return New(vaultConfig, opts...)
}

// WithAuthMethod is an [Option], which configures the [Client] to use the given
// Auth Method.
func WithAuthMethod(am vault.AuthMethod) Option {
	opt := func(c *Client) error {
		c.am = am

		return nil
	}

	return opt
}

// WithToken is an [Option], which configures the [Client] to use the given
// Vault token.
func WithToken(token string) Option {
	opt := func(c *Client) error {
		c.SetToken(token)

		return nil
	}

	return opt
}

// Login logs in using the configured Auth Method. It is a no-op for clients
// without an Auth Method.
func (c *Client) Login(ctx context.Context) error {
	if c.am == nil {
		return nil
	}

	slog.Info("authenticating with vault", "address", c.Address())
	authInfo, err := c.Auth().Login(ctx, c.am)
	if err != nil {
		return err
	}

	if authInfo == nil {
		return ErrNoAuthInfo
	}

	return nil
}

// ReadKVField reads a single string field of a KV v2 secret.
func (c *Client) ReadKVField(ctx context.Context, secret config.VaultSecretConfig) (string, error) {
	mount := secret.Mount
	if mount == "" {
		mount = "secret"
	}

	kv, err := c.KVv2(mount).Get(ctx, secret.Path)
	if err != nil {
		return "", fmt.Errorf("vault: cannot read %s/%s: %w", mount, secret.Path, err)
	}

	value, ok := kv.Data[secret.Field].(string)
	if !ok || value == "" {
		return "", fmt.Errorf("%w: %s in %s/%s", ErrFieldNotFound, secret.Field, mount, secret.Path)
	}

	return value, nil
}

// SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// ErrNoConfigVersion error is returned when the configuration does not specify
// config format version.
var ErrNoConfigVersion = errors.New("config format version not specified")

// ErrUnsupportedVersion is an error, which is returned when the config file
// uses an incompatible version format.
var ErrUnsupportedVersion = errors.New("unsupported config format version")

// ErrInvalidJob is an error, which is returned when a scheduler job is
// misconfigured.
var ErrInvalidJob = errors.New("invalid scheduler job")

// ConfigFormatVersion represents the supported config format version.
const ConfigFormatVersion = "v1alpha1"

// DefaultQueueName is the name of the queue used when none is configured.
const DefaultQueueName = "default"

// Config represents the runsweeper configuration.
type Config struct {
	// Version is the version of the config file.
	Version string `yaml:"version"`

	// Debug configures debug mode, if set to true.
	Debug bool `yaml:"debug"`

	// Logging provides the logging config settings.
	Logging LoggingConfig `yaml:"logging"`

	// GitHub provides the GitHub API settings.
	GitHub GitHubConfig `yaml:"github"`

	// Redis represents the Redis configuration
	Redis RedisConfig `yaml:"redis"`

	// Database represents the database configuration.
	Database DatabaseConfig `yaml:"database"`

	// Worker represents the worker configuration.
	Worker WorkerConfig `yaml:"worker"`

	// Scheduler represents the scheduler configuration.
	Scheduler SchedulerConfig `yaml:"scheduler"`

	// Dashboard represents the dashboard configuration.
	Dashboard DashboardConfig `yaml:"dashboard"`

	// Vault represents the Vault configuration.
	Vault VaultConfig `yaml:"vault"`
}

// LoggingConfig provides the logging settings.
type LoggingConfig struct {
	// Format specifies the log format, either text or json.
	Format string `yaml:"format"`

	// Level specifies the log level.
	Level string `yaml:"level"`

	// AddSource adds the source code position to each log event, if set.
	AddSource bool `yaml:"add_source"`

	// Attributes specifies additional attributes for each log event.
	Attributes map[string]string `yaml:"attributes"`
}

// GitHubConfig provides the GitHub API settings.
type GitHubConfig struct {
	// APIURL specifies an alternate API endpoint, e.g. for GitHub
	// Enterprise Server.
	APIURL string `yaml:"api_url"`

	// Token specifies the API token.
	Token string `yaml:"token"`

	// TokenVault specifies a Vault secret, from which the API token is
	// read when Token is empty.
	TokenVault VaultSecretConfig `yaml:"token_vault"`
}

// VaultSecretConfig specifies a field of a Vault KV v2 secret.
type VaultSecretConfig struct {
	// Mount specifies the mount path of the KV v2 secrets engine.
	Mount string `yaml:"mount"`

	// Path specifies the path of the secret.
	Path string `yaml:"path"`

	// Field specifies the field of the secret holding the value.
	Field string `yaml:"field"`
}

// IsSet returns true, if the secret path has been configured.
func (v VaultSecretConfig) IsSet() bool {
	return v.Path != ""
}

// RedisConfig provides Redis specific configuration settings.
type RedisConfig struct {
	// Endpoint is the endpoint of the Redis service.
	Endpoint string `yaml:"endpoint"`
}

// DatabaseConfig provides database specific configuration settings.
type DatabaseConfig struct {
	// DSN is the Data Source Name to connect to.
	DSN string `yaml:"dsn"`

	// MigrationDirectory specifies an alternate location with migration
	// files.
	MigrationDirectory string `yaml:"migration_dir"`
}

// WorkerConfig provides worker specific configuration settings.
type WorkerConfig struct {
	// Concurrency specifies the concurrency level for workers.
	Concurrency int `yaml:"concurrency"`

	// Queues specifies the queues and their priority.
	Queues map[string]int `yaml:"queues"`

	// StrictPriority specifies whether queue priority is strict.
	StrictPriority bool `yaml:"strict_priority"`

	// Metrics provides the metrics settings of the workers.
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig provides the metrics server settings.
type MetricsConfig struct {
	// Address specifies the address on which metrics are served. Metrics
	// are not served when empty.
	Address string `yaml:"address"`

	// Path specifies the HTTP path of the metrics handler.
	Path string `yaml:"path"`
}

// SchedulerConfig provides scheduler specific configuration settings.
type SchedulerConfig struct {
	// DefaultQueue specifies the queue for jobs, which don't specify one.
	DefaultQueue string `yaml:"default_queue"`

	// Jobs specifies the periodic cleanup jobs.
	Jobs []*PeriodicJob `yaml:"jobs"`
}

// PeriodicJob represents a periodic task.
type PeriodicJob struct {
	// Name specifies the task type.
	Name string `yaml:"name"`

	// Spec specifies the cron spec of the job.
	Spec string `yaml:"spec"`

	// Desc is an optional description of the job.
	Desc string `yaml:"desc"`

	// Queue specifies the queue of the job.
	Queue string `yaml:"queue"`

	// Payload specifies the task payload, either JSON or YAML.
	Payload string `yaml:"payload"`
}

// DashboardConfig provides the dashboard settings.
type DashboardConfig struct {
	// Address specifies the address of the dashboard.
	Address string `yaml:"address"`

	// ReadOnly runs the dashboard in read-only mode, if set.
	ReadOnly bool `yaml:"read_only"`

	// PrometheusEndpoint specifies the Prometheus endpoint used by the
	// dashboard for queue metrics.
	PrometheusEndpoint string `yaml:"prometheus_endpoint"`
}

// VaultConfig provides the Vault settings.
type VaultConfig struct {
	// IsEnabled specifies whether Vault is used.
	IsEnabled bool `yaml:"is_enabled"`

	// Address specifies the address of the Vault server.
	Address string `yaml:"address"`

	// Token specifies the Vault token. When empty, the VAULT_TOKEN
	// environment variable is used.
	Token string `yaml:"token"`

	// AuthMethod specifies the Auth Method used to log in, either token
	// or jwt.
	AuthMethod string `yaml:"auth_method"`

	// JWT provides the settings of the JWT Auth Method.
	JWT VaultJWTConfig `yaml:"jwt"`
}

// VaultJWTConfig provides the settings of the Vault JWT Auth Method.
type VaultJWTConfig struct {
	// MountPath specifies the mount path of the Auth Method.
	MountPath string `yaml:"mount_path"`

	// RoleName specifies the role to log in with.
	RoleName string `yaml:"role_name"`

	// TokenPath specifies a file holding the JWT.
	TokenPath string `yaml:"token_path"`

	// TokenEnv specifies an environment variable holding the JWT.
	TokenEnv string `yaml:"token_env"`

	// ActionsAudience requests the JWT from the GitHub Actions OIDC
	// provider for the given audience, when set.
	ActionsAudience string `yaml:"actions_audience"`
}

// Default returns the configuration used when no config file was given.
func Default() *Config {
	conf := &Config{
		Version: ConfigFormatVersion,
		Scheduler: SchedulerConfig{
			DefaultQueue: DefaultQueueName,
		},
		Worker: WorkerConfig{
			Metrics: MetricsConfig{
				Path: "/metrics",
			},
		},
	}

	return conf
}

// Parse parses the config from the given path.
func Parse(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Config files must always declare their format version
	conf := Default()
	conf.Version = ""
	if err := yaml.Unmarshal(data, conf); err != nil {
		return nil, err
	}

	if err := conf.Validate(); err != nil {
		return nil, err
	}

	return conf, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Version == "" {
		return ErrNoConfigVersion
	}

	if c.Version != ConfigFormatVersion {
		return fmt.Errorf("%w: %s", ErrUnsupportedVersion, c.Version)
	}

	for i, job := range c.Scheduler.Jobs {
		if job == nil || job.Name == "" {
			return fmt.Errorf("%w: job #%d has no name", ErrInvalidJob, i)
		}

		if _, err := cron.ParseStandard(job.Spec); err != nil {
			return fmt.Errorf("%w: %s: bad spec %q: %w", ErrInvalidJob, job.Name, job.Spec, err)
		}
	}

	return nil
}

// Package config loads service settings from environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"tasksync/command"
)

// Storage backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendTables = "tables"
)

type Config struct {
	Debug      bool   `env:"DEBUG"`
	ListenAddr string `env:"LISTEN_ADDR" envDefault:":8080"`

	StorageBackend          string        `env:"STORAGE_BACKEND" envDefault:"memory"`
	RedisConnectionString   string        `env:"REDIS_CONNECTION_STRING"`
	StorageConnectionString string        `env:"STORAGE_CONNECTION_STRING"`
	TasksTable              string        `env:"TASKS_TABLE" envDefault:"tasks"`
	CommandQueue            string        `env:"COMMAND_QUEUE"`
	SnapshotCacheTTL        time.Duration `env:"SNAPSHOT_CACHE_TTL" envDefault:"30s"`

	TogglePolicy string `env:"TOGGLE_POLICY" envDefault:"cas"`
	Timezone     string `env:"TIMEZONE" envDefault:"UTC"`

	Auth0Domain    string `env:"AUTH0_DOMAIN"`
	Auth0Audience  string `env:"AUTH0_AUDIENCE"`
	AuthTestSecret string `env:"AUTH_TEST_SECRET"`
}

// Load reads the process environment.
func Load() (Config, error) {
	return parse(env.Options{})
}

// LoadFrom reads the given variables instead of the process environment.
func LoadFrom(vars map[string]string) (Config, error) {
	return parse(env.Options{Environment: vars})
}

func parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.StorageBackend = strings.ToLower(strings.TrimSpace(cfg.StorageBackend))
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	switch c.StorageBackend {
	case BackendMemory:
	case BackendRedis:
		if c.RedisConnectionString == "" {
			errs = append(errs, errors.New("REDIS_CONNECTION_STRING is required for the redis backend"))
		}
	case BackendTables:
		if c.StorageConnectionString == "" || c.TasksTable == "" {
			errs = append(errs, errors.New("STORAGE_CONNECTION_STRING and TASKS_TABLE are required for the tables backend"))
		}
		if c.RedisConnectionString == "" {
			errs = append(errs, errors.New("REDIS_CONNECTION_STRING is required for change notifications with the tables backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_BACKEND %q", c.StorageBackend))
	}
	if c.CommandQueue != "" && c.StorageConnectionString == "" {
		errs = append(errs, errors.New("COMMAND_QUEUE requires STORAGE_CONNECTION_STRING"))
	}
	if c.SnapshotCacheTTL < 0 {
		errs = append(errs, errors.New("SNAPSHOT_CACHE_TTL must not be negative"))
	}
	if _, err := command.ParseConflictPolicy(c.TogglePolicy); err != nil {
		errs = append(errs, err)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("invalid TIMEZONE: %w", err))
	}
	return errors.Join(errs...)
}

// ValidateAuth checks the identity settings. Only the HTTP server needs them.
func (c Config) ValidateAuth() error {
	if c.AuthTestSecret == "" && (c.Auth0Domain == "" || c.Auth0Audience == "") {
		return errors.New("set AUTH0_DOMAIN and AUTH0_AUDIENCE, or AUTH_TEST_SECRET for local tokens")
	}
	return nil
}

// Policy returns the parsed toggle conflict policy.
func (c Config) Policy() command.ConflictPolicy {
	p, _ := command.ParseConflictPolicy(c.TogglePolicy)
	return p
}

// Location returns the time zone used for calendar days.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

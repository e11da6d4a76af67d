package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tasksync/command"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{"AUTH_TEST_SECRET": "s3cret"})
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, BackendMemory, cfg.StorageBackend)
	assert.Equal(t, 30*time.Second, cfg.SnapshotCacheTTL)
	assert.Equal(t, command.CompareAndSwap, cfg.Policy())
	assert.Equal(t, time.UTC, cfg.Location())
	assert.False(t, cfg.Debug)
}

func TestLoadTablesBackend(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{
		"STORAGE_BACKEND":           "Tables",
		"STORAGE_CONNECTION_STRING": "UseDevelopmentStorage=true",
		"REDIS_CONNECTION_STRING":   "localhost:6379",
		"COMMAND_QUEUE":             "task-commands",
		"TOGGLE_POLICY":             "lww",
		"TIMEZONE":                  "Europe/Madrid",
		"AUTH0_DOMAIN":              "example.auth0.com",
		"AUTH0_AUDIENCE":            "https://tasks",
		"DEBUG":                     "true",
	})
	require.NoError(t, err)

	assert.Equal(t, BackendTables, cfg.StorageBackend)
	assert.Equal(t, "tasks", cfg.TasksTable)
	assert.Equal(t, command.LastWriteWins, cfg.Policy())
	assert.Equal(t, "Europe/Madrid", cfg.Location().String())
	assert.True(t, cfg.Debug)
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	tests := []struct {
		name string
		vars map[string]string
	}{
		{"unknown backend", map[string]string{"STORAGE_BACKEND": "sqlite", "AUTH_TEST_SECRET": "x"}},
		{"redis without connection", map[string]string{"STORAGE_BACKEND": "redis", "AUTH_TEST_SECRET": "x"}},
		{"tables without notifier", map[string]string{"STORAGE_BACKEND": "tables", "STORAGE_CONNECTION_STRING": "c", "AUTH_TEST_SECRET": "x"}},
		{"bad policy", map[string]string{"TOGGLE_POLICY": "merge", "AUTH_TEST_SECRET": "x"}},
		{"bad timezone", map[string]string{"TIMEZONE": "Mars/Olympus", "AUTH_TEST_SECRET": "x"}},
		{"bad duration", map[string]string{"SNAPSHOT_CACHE_TTL": "soon", "AUTH_TEST_SECRET": "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFrom(tt.vars)
			assert.Error(t, err)
		})
	}
}

func TestValidateAuth(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{})
	require.NoError(t, err)
	assert.Error(t, cfg.ValidateAuth())

	cfg.Auth0Domain = "example.auth0.com"
	assert.Error(t, cfg.ValidateAuth(), "audience is required with a domain")

	cfg.Auth0Audience = "https://tasks"
	assert.NoError(t, cfg.ValidateAuth())

	assert.NoError(t, Config{AuthTestSecret: "x"}.ValidateAuth())
}

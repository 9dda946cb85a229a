package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, 15*time.Minute, cfg.Scheduler.ReconcileInterval)
	assert.Equal(t, "0.01", cfg.Tolerance().String())
	assert.False(t, cfg.IsProduction())
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := []byte("environment: production\ndatabase:\n  driver: sqlite\n  dsn: file:test.db\nledger:\n  reconcile_tolerance: \"0.05\"\n")
	require.NoError(t, os.WriteFile(path, body, 0o600))
	t.Setenv("GROUPLEDGER_HTTP_ADDR", ":9090")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.Equal(t, "0.05", cfg.Tolerance().String())
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	t.Setenv("GROUPLEDGER_DATABASE_DRIVER", "oracle")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database driver")
}

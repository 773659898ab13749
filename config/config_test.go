package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hw-transit/ptschedule/config"
)

// Unsets all PTSCHEDULE_* variables for the duration of the test.
func clearEnv(t *testing.T) {
	for _, name := range []string{
		config.EnvInput,
		config.EnvEncoding,
		config.EnvRollover,
		config.EnvVehicleType,
		config.EnvPostgres,
		config.EnvSQLiteDir,
	} {
		t.Setenv(name, "")
		require.NoError(t, os.Unsetenv(name))
	}
}

func TestDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := config.Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
	assert.Equal(t, "cp1252", cfg.Encoding)
	assert.Equal(t, "legacy", cfg.Rollover)
}

func TestFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv(config.EnvInput, "/data/pt")
	t.Setenv(config.EnvRollover, "strict")
	t.Setenv(config.EnvVehicleType, "")

	cfg := config.FromEnv()
	assert.Equal(t, "/data/pt", cfg.Input)
	assert.Equal(t, "strict", cfg.Rollover)
	assert.Equal(t, "S-Bahn_veh_type", cfg.VehicleType)
	assert.Equal(t, "", cfg.Postgres)
}

func TestLoadEnvFiles(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(
		"PTSCHEDULE_INPUT=/from/env\n"+
			"PTSCHEDULE_ENCODING=utf-8\n"+
			"PTSCHEDULE_SQLITE_DIR=/var/lib/ptschedule\n",
	), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env.local"), []byte(
		"PTSCHEDULE_INPUT=/from/env/local\n"+
			"PTSCHEDULE_ROLLOVER=strict\n",
	), 0644))

	// Already set, so .env doesn't override it
	t.Setenv(config.EnvEncoding, "cp1252")

	cfg, err := config.Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "/from/env/local", cfg.Input)
	assert.Equal(t, "cp1252", cfg.Encoding)
	assert.Equal(t, "strict", cfg.Rollover)
	assert.Equal(t, "/var/lib/ptschedule", cfg.SQLiteDir)
}

func TestLoadEnvFilesMalformed(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("PTSCHEDULE_INPUT='unterminated\n"), 0644))

	_, err := config.Load(dir)
	assert.Error(t, err)
}

package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/numbleroot/nestor/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Functions

// TestLoadEnv executes a black-box test on the
// implemented functionalities to load a .env file.
func TestLoadEnv(t *testing.T) {

	os.Unsetenv("NESTOR_AUTH_PASSWORD")
	t.Setenv("NESTOR_AUTH_SQLITE_PATH", "")

	env, err := config.LoadEnv("testdata/test.env")
	require.NoError(t, err)
	defer os.Unsetenv("NESTOR_AUTH_PASSWORD")

	assert.Equal(t, "works", env.AuthPassword)

	conf, err := config.LoadConfig("testdata/postgres.toml")
	require.NoError(t, err)
	assert.Equal(t, uint16(5432), conf.Auth.Postgres.Port)

	env.Apply(conf)
	assert.Equal(t, "works", conf.Auth.Postgres.Password)

	// A missing file is no error.
	_, err = config.LoadEnv("testdata/missing.env")
	assert.NoError(t, err)
}

// TestApplySQLitePath checks that a SQLite path from the
// environment replaces the resolved one from the config file
// and stays relative to the working directory.
func TestApplySQLitePath(t *testing.T) {

	conf, err := config.LoadConfig("testdata/sqlite.toml")
	require.NoError(t, err)

	dir, err := filepath.Abs("testdata")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "users.db"), conf.Auth.SQLite.Path)

	// Unset variable keeps the config file's path.
	t.Setenv("NESTOR_AUTH_SQLITE_PATH", "")

	env, err := config.LoadEnv("testdata/missing.env")
	require.NoError(t, err)

	env.Apply(conf)
	assert.Equal(t, filepath.Join(dir, "users.db"), conf.Auth.SQLite.Path)

	t.Setenv("NESTOR_AUTH_SQLITE_PATH", "state/users.db")

	env, err = config.LoadEnv("testdata/missing.env")
	require.NoError(t, err)

	env.Apply(conf)
	assert.Equal(t, "state/users.db", conf.Auth.SQLite.Path)
}

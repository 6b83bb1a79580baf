package config

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

// Structs

// Env holds information specific to the
// system where nestor is deployed. This
// enables host adaptions without needing
// to maintain two different config files.
// Use the .env file to populate secrets
// within the system.
type Env struct {
	AuthPassword   string
	AuthSQLitePath string
}

// Functions

// LoadEnv reads the .env file at path, if it exists,
// into the process environment and collects the values
// nestor cares about. Variables already set in the
// environment take precedence over the file.
func LoadEnv(path string) (*Env, error) {

	// Load environment file.
	err := godotenv.Load(path)
	if err != nil && !os.IsNotExist(errors.Cause(err)) {
		return nil, errors.Wrapf(err, "failed to read in .env file '%s'", path)
	}

	env := new(Env)

	// Fill variables from .env into struct.
	env.AuthPassword = os.Getenv("NESTOR_AUTH_PASSWORD")
	env.AuthSQLitePath = os.Getenv("NESTOR_AUTH_SQLITE_PATH")

	return env, nil
}

// Apply places values from the environment into the
// parts of conf that use them. Unlike paths in the config
// file, a SQLite path from the environment is taken as is,
// relative to the working directory.
func (env *Env) Apply(conf *Config) {

	if conf.Auth.Postgres != nil && env.AuthPassword != "" {
		conf.Auth.Postgres.Password = env.AuthPassword
	}

	if conf.Auth.SQLite != nil && env.AuthSQLitePath != "" {
		conf.Auth.SQLite.Path = env.AuthSQLitePath
	}
}

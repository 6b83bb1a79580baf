package config

import (
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// Constants

// Supported values of Auth.Adapter.
const (
	AuthFile     = "AuthFile"
	AuthPostgres = "AuthPostgres"
	AuthSQLite   = "AuthSQLite"
)

// Structs

// Config holds all information parsed from
// supplied config file.
type Config struct {
	IMAP   IMAP
	Server Server
	Auth   Auth
}

// IMAP is the IMAP protocol related part
// of the TOML config file.
type IMAP struct {
	Greeting       string
	MaxLiteralSize int
}

// Server describes the network side of nestor,
// the listening socket and the metrics endpoint.
type Server struct {
	ListenAddr     string
	PrometheusAddr string
	PublicCertLoc  string
	PublicKeyLoc   string
	IdleTimeout    Duration
	WriteTimeout   Duration
	AcceptRate     float64
	AcceptBurst    int
}

// Auth selects and configures the mechanism
// user credentials are checked with.
type Auth struct {
	Adapter  string
	File     *AuthFileConf
	Postgres *AuthPostgresConf
	SQLite   *AuthSQLiteConf
}

// AuthFileConf provides information on authenticating
// user taken from a designated authorization text file.
type AuthFileConf struct {
	File      string
	Separator string
}

// AuthPostgresConf defines parameters for connecting
// to a Postgres database for authenticating users.
type AuthPostgresConf struct {
	IP       string
	Port     uint16
	Database string
	User     string
	Password string
	UseTLS   bool
}

// AuthSQLiteConf points to the SQLite database
// holding the users table.
type AuthSQLiteConf struct {
	Path string
}

// Duration is a time.Duration written as
// a string like "30m" in the config file.
type Duration struct {
	time.Duration
}

// Functions

// UnmarshalText parses a duration string.
func (d *Duration) UnmarshalText(text []byte) error {

	var err error

	d.Duration, err = time.ParseDuration(string(text))
	if err != nil {
		return errors.Wrapf(err, "invalid duration %q", text)
	}

	return nil
}

// MarshalText writes the duration in the form
// UnmarshalText reads.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Default returns the configuration used for
// everything the config file leaves out.
func Default() *Config {

	return &Config{
		IMAP: IMAP{
			MaxLiteralSize: 64 * 1024,
		},
		Server: Server{
			ListenAddr:   "127.0.0.1:1993",
			IdleTimeout:  Duration{30 * time.Minute},
			WriteTimeout: Duration{time.Minute},
			AcceptRate:   50,
			AcceptBurst:  100,
		},
		Auth: Auth{
			Adapter: AuthFile,
		},
	}
}

// LoadConfig takes in the path to the main config
// file of nestor in TOML syntax and places the values
// from the file in the corresponding struct.
func LoadConfig(configFile string) (*Config, error) {

	conf := Default()

	// Parse values from TOML file into struct.
	meta, err := toml.DecodeFile(configFile, conf)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read in TOML config file at '%s'", configFile)
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, errors.Errorf("unknown key '%s' in config file '%s'", undecoded[0], configFile)
	}

	// Relative paths are meant relative to
	// the directory of the config file.
	absConfigPath, err := filepath.Abs(filepath.Dir(configFile))
	if err != nil {
		return nil, errors.Wrap(err, "could not get absolute path of config directory")
	}

	err = conf.validate()
	if err != nil {
		return nil, err
	}

	resolve := func(path *string) {
		if *path != "" && !filepath.IsAbs(*path) {
			*path = filepath.Join(absConfigPath, *path)
		}
	}

	resolve(&conf.Server.PublicCertLoc)
	resolve(&conf.Server.PublicKeyLoc)

	switch conf.Auth.Adapter {
	case AuthFile:
		resolve(&conf.Auth.File.File)
	case AuthSQLite:
		resolve(&conf.Auth.SQLite.Path)
	}

	return conf, nil
}

// validate checks the values that cannot
// be fixed by defaults.
func (conf *Config) validate() error {

	if conf.Server.ListenAddr == "" {
		return errors.New("Server.ListenAddr must not be empty")
	}

	if (conf.Server.PublicCertLoc == "") != (conf.Server.PublicKeyLoc == "") {
		return errors.New("Server.PublicCertLoc and Server.PublicKeyLoc have to be set together")
	}

	if conf.IMAP.MaxLiteralSize <= 0 {
		return errors.New("IMAP.MaxLiteralSize has to be positive")
	}

	if conf.Server.IdleTimeout.Duration <= 0 || conf.Server.WriteTimeout.Duration <= 0 {
		return errors.New("Server timeouts have to be positive")
	}

	if conf.Server.AcceptRate <= 0 || conf.Server.AcceptBurst <= 0 {
		return errors.New("Server.AcceptRate and Server.AcceptBurst have to be positive")
	}

	switch conf.Auth.Adapter {

	case AuthFile:

		if conf.Auth.File == nil || conf.Auth.File.File == "" {
			return errors.New("Auth.File.File is required for adapter AuthFile")
		}

		if conf.Auth.File.Separator == "" {
			conf.Auth.File.Separator = ":"
		}

	case AuthPostgres:

		if conf.Auth.Postgres == nil || conf.Auth.Postgres.IP == "" || conf.Auth.Postgres.Database == "" {
			return errors.New("Auth.Postgres.IP and Auth.Postgres.Database are required for adapter AuthPostgres")
		}

		if conf.Auth.Postgres.Port == 0 {
			conf.Auth.Postgres.Port = 5432
		}

	case AuthSQLite:

		if conf.Auth.SQLite == nil || conf.Auth.SQLite.Path == "" {
			return errors.New("Auth.SQLite.Path is required for adapter AuthSQLite")
		}

	default:
		return errors.Errorf("unknown Auth.Adapter '%s'", conf.Auth.Adapter)
	}

	return nil
}

package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/numbleroot/nestor/auth"
	"github.com/numbleroot/nestor/config"
	"github.com/numbleroot/nestor/server"
)

// Functions

// initAuthenticator of the correct implementation
// specified in the config to be used by IMAP sessions.
func initAuthenticator(conf *config.Config) (auth.PlainAuthenticator, func() error, error) {

	switch conf.Auth.Adapter {

	case config.AuthPostgres:

		// Connect to PostgreSQL database.
		a, err := auth.NewPostgresAuthenticator(
			conf.Auth.Postgres.IP,
			conf.Auth.Postgres.Port,
			conf.Auth.Postgres.Database,
			conf.Auth.Postgres.User,
			conf.Auth.Postgres.Password,
			conf.Auth.Postgres.UseTLS,
		)
		if err != nil {
			return nil, nil, err
		}

		return a, a.Close, nil

	case config.AuthSQLite:

		// Open SQLite database.
		a, err := auth.NewSQLiteAuthenticator(conf.Auth.SQLite.Path)
		if err != nil {
			return nil, nil, err
		}

		return a, a.Close, nil

	default:

		// Open authentication file and read user information.
		a, err := auth.NewFileAuthenticator(
			conf.Auth.File.File,
			conf.Auth.File.Separator,
		)
		if err != nil {
			return nil, nil, err
		}

		return a, func() error { return nil }, nil
	}
}

// initLogger initializes a JSON gokit-logger set
// to the according log level supplied via cli flag.
func initLogger(loglevel string) log.Logger {

	logger := log.NewJSONLogger(log.NewSyncWriter(os.Stdout))
	logger = log.With(logger,
		"ts", log.DefaultTimestampUTC,
		"caller", log.DefaultCaller,
	)

	switch strings.ToLower(loglevel) {
	case "info":
		logger = level.NewFilter(logger, level.AllowInfo())
	case "warn":
		logger = level.NewFilter(logger, level.AllowWarn())
	case "error":
		logger = level.NewFilter(logger, level.AllowError())
	default:
		logger = level.NewFilter(logger, level.AllowDebug())
	}

	return logger
}

func main() {

	// Parse command-line flags that define config paths.
	configFlag := flag.String("config", "config.toml", "Provide path to configuration file in TOML syntax.")
	envFlag := flag.String("env", ".env", "Provide path to an optional .env file holding secrets.")
	loglevelFlag := flag.String("loglevel", "debug", "This flag sets the default logging level.")
	flag.Parse()

	logger := initLogger(*loglevelFlag)

	// Read configuration from file.
	conf, err := config.LoadConfig(*configFlag)
	if err != nil {
		level.Error(logger).Log(
			"msg", "failed to load the config", "err", err,
		)
		os.Exit(1)
	}

	env, err := config.LoadEnv(*envFlag)
	if err != nil {
		level.Error(logger).Log(
			"msg", "failed to load the environment", "err", err,
		)
		os.Exit(1)
	}
	env.Apply(conf)

	authenticator, closeAuth, err := initAuthenticator(conf)
	if err != nil {
		level.Error(logger).Log(
			"msg", "failed to initialize an authenticator",
			"err", err,
		)
		os.Exit(2)
	}
	defer closeAuth()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := NewNestorMetrics(conf.Server.PrometheusAddr)
	go runPromHTTP(ctx, logger, conf.Server.PrometheusAddr)

	// Stack logging and metrics around the service
	// sessions consult on LOGIN and LOGOUT.
	service := auth.NewService(authenticator, log.With(logger, "component", "auth"))
	service = auth.NewLoggingService(service, log.With(logger, "component", "auth"))
	service = auth.NewMetricsService(service, metrics.Logins, metrics.FailedLogins, metrics.Logouts)

	listener, err := server.Listen(conf.Server)
	if err != nil {
		level.Error(logger).Log(
			"msg", "failed to open listening socket",
			"err", err,
		)
		os.Exit(3)
	}

	srv := server.New(listener, service, conf, log.With(logger, "component", "server"), server.Metrics{
		Commands: metrics.Commands,
		Sessions: metrics.Sessions,
	})

	// Loop on incoming requests.
	err = srv.Run(ctx)
	if err != nil {
		level.Error(logger).Log(
			"msg", "failed to run the IMAP server",
			"err", err,
		)
		closeAuth()
		os.Exit(4)
	}
}

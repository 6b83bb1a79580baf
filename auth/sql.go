package auth

import (
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	// We need fitting drivers for both supported databases.
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Constants

const (
	// DriverPostgres names the PostgreSQL driver.
	DriverPostgres = "postgres"

	// DriverSQLite names the pure Go SQLite driver.
	DriverSQLite = "sqlite"
)

// Structs

// SQLAuthenticator looks up users in a table of
// layout users(id, name, password) of a PostgreSQL
// or SQLite database. Passwords are bcrypt hashes.
type SQLAuthenticator struct {
	Driver string
	Conn   *sqlx.DB
	lookup string
}

// userRow receives one row of the users table.
type userRow struct {
	ID       int    `db:"id"`
	Password string `db:"password"`
}

// Functions

// NewPostgresAuthenticator handles the initialization
// of the database connection and returns all information
// nicely packaged in above struct.
func NewPostgresAuthenticator(ip string, port uint16, db string, user string, pass string, useTLS bool) (*SQLAuthenticator, error) {

	sslmode := "disable"
	if useTLS {
		sslmode = "require"
	}

	dsn := fmt.Sprintf("host=%s port=%d dbname=%s user=%s sslmode=%s", ip, port, db, user, sslmode)

	// Only attempt login with password if one is set.
	if pass != "" {
		dsn = fmt.Sprintf("%s password=%s", dsn, pass)
	}

	return NewSQLAuthenticator(DriverPostgres, dsn)
}

// NewSQLiteAuthenticator opens the SQLite database at
// path and makes sure the users table exists.
func NewSQLiteAuthenticator(path string) (*SQLAuthenticator, error) {

	a, err := NewSQLAuthenticator(DriverSQLite, path)
	if err != nil {
		return nil, err
	}

	// SQLite serializes writers anyway.
	a.Conn.SetMaxOpenConns(1)

	err = a.CreateTable()
	if err != nil {
		a.Close()
		return nil, err
	}

	return a, nil
}

// NewSQLAuthenticator connects to the database described
// by driver and dsn and checks that it is reachable.
func NewSQLAuthenticator(driver string, dsn string) (*SQLAuthenticator, error) {

	conn, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "could not connect to %s database", driver)
	}

	// Try to reach database.
	err = conn.Ping()
	if err != nil {
		conn.Close()
		return nil, errors.Wrapf(err, "specified %s database not reachable after connection", driver)
	}

	return &SQLAuthenticator{
		Driver: driver,
		Conn:   conn,
		lookup: conn.Rebind("SELECT id, password FROM users WHERE name = ?"),
	}, nil
}

// CreateTable creates the users table if it is missing.
func (a *SQLAuthenticator) CreateTable() error {

	_, err := a.Conn.Exec(`CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		password TEXT NOT NULL
	)`)
	if err != nil {
		return errors.Wrap(err, "failed to create users table")
	}

	return nil
}

// AddUser stores a user with an already hashed password.
func (a *SQLAuthenticator) AddUser(id int, name string, passwordHash string) error {

	_, err := a.Conn.Exec(a.Conn.Rebind("INSERT INTO users (id, name, password) VALUES (?, ?, ?)"), id, name, passwordHash)
	if err != nil {
		return errors.Wrapf(err, "failed to add user %s", name)
	}

	return nil
}

// AuthenticatePlain is used to perform the actual process
// of looking up if the client supplied user credentials exist
// and match with an user entry in the users table.
func (a *SQLAuthenticator) AuthenticatePlain(username string, password string) (int, error) {

	var row userRow

	// Query database for user matching the name.
	err := a.Conn.Get(&row, a.lookup, username)
	if err == sql.ErrNoRows {
		return -1, ErrUnknownUser
	} else if err != nil {
		return -1, errors.Wrap(err, "error while trying to locate user")
	}

	if err := comparePassword(row.Password, password); err != nil {
		return -1, err
	}

	return row.ID, nil
}

// Close releases the database connection.
func (a *SQLAuthenticator) Close() error {
	return a.Conn.Close()
}

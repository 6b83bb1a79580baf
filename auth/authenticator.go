package auth

import (
	"crypto/subtle"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

// Variables

var (
	// ErrUnknownUser is returned when no user with the
	// supplied name is known to an authenticator.
	ErrUnknownUser = errors.New("username not found in list of users")

	// ErrWrongPassword is returned when the user exists
	// but the supplied password does not match.
	ErrWrongPassword = errors.New("passwords did not match")
)

// Interfaces

// PlainAuthenticator defines the methods required to
// perform an IMAP AUTH=PLAIN authentication in order
// to reach authenticated state (also LOGIN).
type PlainAuthenticator interface {

	// AuthenticatePlain will be implemented by each of the
	// authentication methods of type PLAIN to perform the
	// actual part of checking supplied credentials. It returns
	// the ID of the user on success.
	AuthenticatePlain(username string, password string) (int, error)
}

// Functions

// HashPassword produces the bcrypt hash stored for a
// password in users files and user tables.
func HashPassword(password string, cost int) (string, error) {

	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", errors.Wrap(err, "failed to hash password")
	}

	return string(hash), nil
}

// isHashed reports whether stored is a bcrypt hash.
func isHashed(stored string) bool {
	return strings.HasPrefix(stored, "$2a$") || strings.HasPrefix(stored, "$2b$") || strings.HasPrefix(stored, "$2y$")
}

// comparePassword checks a supplied password against
// its stored form, which is either a bcrypt hash or the
// password itself.
func comparePassword(stored string, password string) error {

	if isHashed(stored) {

		err := bcrypt.CompareHashAndPassword([]byte(stored), []byte(password))
		if err == bcrypt.ErrMismatchedHashAndPassword {
			return ErrWrongPassword
		} else if err != nil {
			return errors.Wrap(err, "failed to compare password hash")
		}

		return nil
	}

	if subtle.ConstantTimeCompare([]byte(stored), []byte(password)) != 1 {
		return ErrWrongPassword
	}

	return nil
}

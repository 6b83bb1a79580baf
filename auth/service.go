package auth

import (
	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/numbleroot/nestor/imap"
	"github.com/pkg/errors"
)

// Structs

// service answers the credential checks of IMAP
// sessions with the help of a PlainAuthenticator.
type service struct {
	logger log.Logger
	auther PlainAuthenticator
}

// Functions

// NewService adapts auther to the service IMAP
// sessions consult on LOGIN and LOGOUT.
func NewService(auther PlainAuthenticator, logger log.Logger) imap.Service {

	if logger == nil {
		logger = log.NewNopLogger()
	}

	return &service{
		logger: logger,
		auther: auther,
	}
}

// Authenticate reports whether the credentials are
// valid. Lookup failures other than a wrong name or
// password are logged and count as rejection.
func (s *service) Authenticate(username string, password string) bool {

	_, err := s.auther.AuthenticatePlain(username, password)
	if err == nil {
		return true
	}

	if errors.Is(err, ErrUnknownUser) || errors.Is(err, ErrWrongPassword) {
		return false
	}

	level.Error(s.logger).Log(
		"msg", "failed to look up user",
		"user", username,
		"err", err,
	)

	return false
}

// OnLogout is called when the session of username
// ends with a LOGOUT. Nothing is held per user.
func (s *service) OnLogout(username string) {}

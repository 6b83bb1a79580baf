package auth

import (
	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/numbleroot/nestor/imap"
)

type loggingService struct {
	logger  log.Logger
	service imap.Service
}

// NewLoggingService wraps a provided existing
// service with the provided logger.
func NewLoggingService(s imap.Service, logger log.Logger) imap.Service {
	return &loggingService{logger, s}
}

// Authenticate wraps this service's Authenticate
// method with added logging capabilities.
func (s *loggingService) Authenticate(username string, password string) bool {

	ok := s.service.Authenticate(username, password)

	logger := log.With(s.logger,
		"method", "LOGIN",
		"user", username,
	)

	if !ok {
		level.Info(logger).Log("msg", "failed to authenticate user")
	} else {
		level.Debug(logger).Log("msg", "user authenticated")
	}

	return ok
}

// OnLogout wraps this service's OnLogout method
// with added logging capabilities.
func (s *loggingService) OnLogout(username string) {

	s.service.OnLogout(username)

	level.Debug(s.logger).Log(
		"method", "LOGOUT",
		"user", username,
	)
}

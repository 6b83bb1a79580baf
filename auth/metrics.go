package auth

import (
	"github.com/go-kit/kit/metrics"
	"github.com/numbleroot/nestor/imap"
)

type metricsService struct {
	service      imap.Service
	logins       metrics.Counter
	failedLogins metrics.Counter
	logouts      metrics.Counter
}

// NewMetricsService wraps a provided existing service
// and counts successful and failed logins and logouts.
func NewMetricsService(s imap.Service, logins metrics.Counter, failedLogins metrics.Counter, logouts metrics.Counter) imap.Service {
	return &metricsService{
		service:      s,
		logins:       logins,
		failedLogins: failedLogins,
		logouts:      logouts,
	}
}

// Authenticate wraps this service's Authenticate
// method with added metrics capabilities.
func (s *metricsService) Authenticate(username string, password string) bool {

	ok := s.service.Authenticate(username, password)

	if ok {
		s.logins.Add(1)
	} else {
		s.failedLogins.Add(1)
	}

	return ok
}

// OnLogout wraps this service's OnLogout method
// with added metrics capabilities.
func (s *metricsService) OnLogout(username string) {

	s.service.OnLogout(username)
	s.logouts.Add(1)
}

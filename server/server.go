package server

import (
	"context"
	"crypto/tls"
	"net"
	"sync"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/discard"
	"github.com/numbleroot/nestor/config"
	"github.com/numbleroot/nestor/crypto"
	"github.com/numbleroot/nestor/imap"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

// Structs

// Metrics holds the instruments updated while
// serving IMAP connections.
type Metrics struct {
	Commands metrics.Counter
	Sessions metrics.Gauge
}

// Server accepts IMAP connections on one listener and
// runs a Session for each of them until it exits.
type Server struct {
	logger       log.Logger
	listener     net.Listener
	service      imap.Service
	metrics      Metrics
	registry     *Registry
	limiter      *rate.Limiter
	greeting     string
	maxLiteral   int
	idleTimeout  time.Duration
	writeTimeout time.Duration
	wg           sync.WaitGroup
}

// Functions

// Listen opens the listening socket described by conf.
// When a public certificate and key are configured, every
// connection is wrapped in TLS.
func Listen(conf config.Server) (net.Listener, error) {

	if conf.PublicCertLoc == "" {

		listener, err := net.Listen("tcp", conf.ListenAddr)
		if err != nil {
			return nil, errors.Wrapf(err, "listening on %s failed", conf.ListenAddr)
		}

		return listener, nil
	}

	tlsConfig, err := crypto.NewPublicTLSConfig(conf.PublicCertLoc, conf.PublicKeyLoc)
	if err != nil {
		return nil, err
	}

	listener, err := tls.Listen("tcp", conf.ListenAddr, tlsConfig)
	if err != nil {
		return nil, errors.Wrapf(err, "listening for TLS connections on %s failed", conf.ListenAddr)
	}

	return listener, nil
}

// New prepares a server handing out sessions backed by
// service for every connection accepted on listener.
func New(listener net.Listener, service imap.Service, conf *config.Config, logger log.Logger, m Metrics) *Server {

	if logger == nil {
		logger = log.NewNopLogger()
	}

	if m.Commands == nil {
		m.Commands = discard.NewCounter()
	}

	if m.Sessions == nil {
		m.Sessions = discard.NewGauge()
	}

	return &Server{
		logger:       logger,
		listener:     listener,
		service:      service,
		metrics:      m,
		registry:     NewRegistry(),
		limiter:      rate.NewLimiter(rate.Limit(conf.Server.AcceptRate), conf.Server.AcceptBurst),
		greeting:     conf.IMAP.Greeting,
		maxLiteral:   conf.IMAP.MaxLiteralSize,
		idleTimeout:  conf.Server.IdleTimeout.Duration,
		writeTimeout: conf.Server.WriteTimeout.Duration,
	}
}

// Addr returns the address the server listens on.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Registry returns the set of live sessions.
func (s *Server) Registry() *Registry {
	return s.registry
}

// Run loops over incoming connections and dispatches
// each one to a goroutine serving its session. When ctx
// is cancelled, the listener is closed, every live session
// is terminated and Run returns once all have finished.
func (s *Server) Run(ctx context.Context) error {

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		<-ctx.Done()
		s.listener.Close()
	}()

	level.Info(s.logger).Log(
		"msg", "listening for incoming IMAP requests",
		"addr", s.listener.Addr(),
	)

	var runErr error

	for {

		// Pace accepting according to the configured rate.
		if err := s.limiter.Wait(ctx); err != nil {
			break
		}

		conn, err := s.listener.Accept()
		if err != nil {

			if ctx.Err() != nil {
				break
			}

			if errors.Is(err, net.ErrClosed) {
				runErr = errors.Wrap(err, "listener closed unexpectedly")
				break
			}

			level.Warn(s.logger).Log(
				"msg", "failed to accept connection",
				"err", err,
			)

			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serve(conn)
		}()
	}

	// Say goodbye to every client still connected.
	s.registry.Shutdown()
	s.wg.Wait()

	level.Info(s.logger).Log("msg", "server stopped")

	return runErr
}

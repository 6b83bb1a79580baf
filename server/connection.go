package server

import (
	"io"
	"net"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/numbleroot/nestor/imap"
	"github.com/pkg/errors"
)

// Constants

// readBufferSize is the amount of bytes read
// from a connection at once.
const readBufferSize = 4096

// Functions

// serve runs the session of one client connection. Bytes
// read from conn are fed into the session and its answers
// are written back until the session exits.
func (s *Server) serve(conn net.Conn) {

	defer conn.Close()

	logger := log.With(s.logger, "remote", conn.RemoteAddr().String())

	opts := []imap.Option{
		imap.WithLogger(logger),
		imap.WithMetrics(imap.SessionMetrics{Commands: s.metrics.Commands}),
		imap.WithMaxLiteralSize(s.maxLiteral),
	}

	if s.greeting != "" {
		opts = append(opts, imap.WithGreeting(s.greeting))
	}

	sess := imap.NewSession(s.service, opts...)

	// Leaving exit state interrupts a pending read,
	// no matter which goroutine ended the session.
	sess.OnExit(func() {
		conn.SetReadDeadline(time.Now())
	})

	if s.registry.Add(sess) {
		defer s.registry.Remove(sess)
	}

	s.metrics.Sessions.Add(1)
	defer s.metrics.Sessions.Add(-1)

	level.Debug(logger).Log("msg", "accepted connection", "session", sess.ID())

	buf := make([]byte, readBufferSize)

	for {

		err := s.flush(conn, sess)
		if err != nil {
			level.Info(logger).Log("msg", "failed to send answers", "session", sess.ID(), "err", err)
			sess.Close()
			return
		}

		if sess.State() == imap.StateExit {
			return
		}

		conn.SetReadDeadline(time.Now().Add(s.idleTimeout))

		// The session may have exited between the check
		// above and arming the deadline.
		if sess.State() == imap.StateExit {
			continue
		}

		n, err := conn.Read(buf)
		if n > 0 {
			sess.Feed(buf[:n])
		}

		if err == nil || sess.State() == imap.StateExit {
			continue
		}

		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			sess.Terminate("Autologout; idle for too long")
			continue
		}

		if err != io.EOF {
			level.Info(logger).Log("msg", "failed to read from connection", "session", sess.ID(), "err", err)
		}

		// Client is gone, nobody is left to say goodbye to.
		sess.Close()
		return
	}
}

// flush writes all pending answers of sess to conn
// within the configured write timeout.
func (s *Server) flush(conn net.Conn, sess *imap.Session) error {

	if !sess.Pending() {
		return nil
	}

	conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))

	_, err := sess.WriteTo(conn)
	if err != nil {
		return errors.Wrap(err, "writing to connection failed")
	}

	return nil
}

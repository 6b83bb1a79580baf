package imap

import (
	"bytes"
	"io"
	"sync"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/discard"
	"github.com/google/uuid"
)

// Constants

// Integer counter for IMAP session states. States
// are only ever entered in increasing order.
const (
	StateStart State = iota
	StateConnected
	StateNotAuthenticated
	StateAuthenticated
	StateWork
	StateExit
)

// Greeting is sent once to every new client.
const Greeting = "IMAP4revl server ready"

// DefaultMaxLiteralSize bounds the declared size of
// literals a client may send as command arguments.
const DefaultMaxLiteralSize = 64 * 1024

var crlf = []byte("\r\n")

// Interfaces

// Service is what a session calls out to for
// checking credentials and for signalling logout.
type Service interface {

	// Authenticate reports whether the supplied
	// credentials are valid.
	Authenticate(username string, password string) bool

	// OnLogout is invoked when a client logs out.
	// username is empty for unauthenticated sessions.
	OnLogout(username string)
}

// Structs

// State represents the integer value associated with one
// of the states an IMAP session can be in.
type State int

// SessionMetrics holds the instruments a session updates.
type SessionMetrics struct {
	Commands metrics.Counter
}

// Session contains the protocol state of one client
// connection: its IMAP state, the bytes received but
// not yet consumed by a complete command and the
// answers waiting to be written back.
//
// Session never touches the network itself. The owner
// hands received bytes to Feed and flushes answers via
// Drain or WriteTo.
type Session struct {
	lock       sync.Mutex
	id         string
	logger     log.Logger
	metrics    SessionMetrics
	service    Service
	greeting   string
	maxLiteral int
	state      State
	user       string
	incoming   []byte
	outgoing   []byte
	contSent   int
	skip       int
	skipLine   bool
	onExit     []func()
}

// Option configures a Session.
type Option func(*Session)

// Functions

// String implements fmt.Stringer.
func (s State) String() string {

	switch s {
	case StateStart:
		return "START"
	case StateConnected:
		return "CONNECTED"
	case StateNotAuthenticated:
		return "NON_AUTH"
	case StateAuthenticated:
		return "AUTH"
	case StateWork:
		return "WORK"
	case StateExit:
		return "EXIT"
	default:
		return "UNKNOWN"
	}
}

// WithLogger sets the logger for the session.
func WithLogger(logger log.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithMetrics sets the instruments the session updates.
func WithMetrics(m SessionMetrics) Option {
	return func(s *Session) {
		s.metrics = m
	}
}

// WithGreeting replaces the text following "* OK " in
// the greeting sent to the client.
func WithGreeting(greeting string) Option {
	return func(s *Session) {
		if greeting != "" {
			s.greeting = greeting
		}
	}
}

// WithMaxLiteralSize bounds the declared size of literals.
func WithMaxLiteralSize(size int) Option {
	return func(s *Session) {
		if size > 0 {
			s.maxLiteral = size
		}
	}
}

// WithID sets the identifier the session logs with.
func WithID(id string) Option {
	return func(s *Session) {
		s.id = id
	}
}

// NewSession creates the session for a freshly accepted
// connection. The greeting is placed in the outgoing buffer
// right away and the session waits in not authenticated state.
func NewSession(service Service, opts ...Option) *Session {

	s := &Session{
		id:         uuid.NewString(),
		logger:     log.NewNopLogger(),
		metrics:    SessionMetrics{Commands: discard.NewCounter()},
		service:    service,
		greeting:   Greeting,
		maxLiteral: DefaultMaxLiteralSize,
		state:      StateStart,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.service == nil {
		s.service = denyService{}
	}

	s.logger = log.With(s.logger, "session", s.id)

	s.lock.Lock()
	s.switchState(StateConnected)
	s.lock.Unlock()

	return s
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// State returns the current IMAP state.
func (s *Session) State() State {

	s.lock.Lock()
	defer s.lock.Unlock()

	return s.state
}

// User returns the name the client logged in with.
func (s *Session) User() string {

	s.lock.Lock()
	defer s.lock.Unlock()

	return s.user
}

// OnExit registers fn to be called exactly once when the
// session enters exit state. fn runs with the session lock
// held and must not call back into the session.
func (s *Session) OnExit(fn func()) {

	s.lock.Lock()
	defer s.lock.Unlock()

	if s.state == StateExit {
		fn()
		return
	}

	s.onExit = append(s.onExit, fn)
}

// Feed appends bytes received from the client and executes
// every command that arrived completely. Bytes of a command
// still in flight stay buffered until a later call completes it.
// Once the session is in exit state, input is discarded.
func (s *Session) Feed(p []byte) {

	s.lock.Lock()
	defer s.lock.Unlock()

	if s.state == StateExit {
		return
	}

	s.incoming = append(s.incoming, p...)
	s.process()
}

// Drain returns all pending answers and clears them.
func (s *Session) Drain() []byte {

	s.lock.Lock()
	defer s.lock.Unlock()

	out := s.outgoing
	s.outgoing = nil

	return out
}

// Pending reports whether answers wait to be written.
func (s *Session) Pending() bool {

	s.lock.Lock()
	defer s.lock.Unlock()

	return len(s.outgoing) > 0
}

// WriteTo writes all pending answers to w. The answers are
// only discarded if w accepted every byte, so a failed write
// leaves them in place for a retry.
func (s *Session) WriteTo(w io.Writer) (int64, error) {

	s.lock.Lock()
	defer s.lock.Unlock()

	if len(s.outgoing) == 0 {
		return 0, nil
	}

	n, err := w.Write(s.outgoing)
	if err != nil {
		return int64(n), err
	}

	if n != len(s.outgoing) {
		return int64(n), io.ErrShortWrite
	}

	s.outgoing = s.outgoing[:0]

	return int64(n), nil
}

// Terminate says goodbye with an untagged BYE carrying
// reason and puts the session into exit state. It does
// nothing on a session that already exited.
func (s *Session) Terminate(reason string) {

	s.lock.Lock()
	defer s.lock.Unlock()

	if s.state == StateExit {
		return
	}

	s.untagged("BYE " + reason)
	s.switchState(StateExit)
}

// Close terminates the session on behalf of a shutting
// down server.
func (s *Session) Close() error {
	s.Terminate("IMAP4rev1 Server shutting down")
	return nil
}

// process runs every complete command line in the incoming
// buffer through its handler. It stops when no full line is
// left, a handler waits for more input, or the session exited.
func (s *Session) process() {

	for s.state != StateExit {

		if !s.skipRejected() {
			return
		}

		end := bytes.Index(s.incoming, crlf)
		if end < 0 {
			return
		}

		line := string(s.incoming[:end])

		req, ok := ParseRequest(line)
		if !ok {

			level.Debug(s.logger).Log("msg", "received line without command")

			s.respond(tagOf(line), "BAD", "Missing command")
			s.trim(end + 2)

			continue
		}

		handle, found := lookupCommand(req.Command)
		if !found {

			level.Debug(s.logger).Log(
				"msg", "received unknown command",
				"tag", req.Tag,
				"command", req.Command,
			)
			s.metrics.Commands.With("command", "UNKNOWN").Add(1)

			s.respond(req.Tag, "BAD", "Unknown command \""+req.Command+"\"")
			s.trim(end + 2)

			continue
		}

		n, err := handle(s, req, s.incoming)
		if err == errIncomplete {
			return
		}

		level.Debug(s.logger).Log(
			"msg", "executed command",
			"tag", req.Tag,
			"command", req.Command,
			"state", s.state,
		)
		s.metrics.Commands.With("command", req.Command).Add(1)

		s.trim(n)
	}
}

// skipRejected drops the payload of a rejected non-synchronizing
// literal and the rest of the command line it belonged to.
// It reports whether everything to be dropped is gone.
func (s *Session) skipRejected() bool {

	if s.skip > 0 {

		n := s.skip
		if n > len(s.incoming) {
			n = len(s.incoming)
		}

		s.trim(n)
		s.skip -= n

		if s.skip > 0 {
			return false
		}
	}

	if s.skipLine {

		end := bytes.Index(s.incoming, crlf)
		if end < 0 {

			// Keep a CR that may start the line's CRLF.
			n := len(s.incoming)
			if n > 0 && s.incoming[n-1] == '\r' {
				n--
			}
			s.trim(n)

			return false
		}

		s.trim(end + 2)
		s.skipLine = false
	}

	return true
}

// trim drops the first n consumed bytes of the incoming buffer.
func (s *Session) trim(n int) {

	if n > len(s.incoming) {
		n = len(s.incoming)
	}

	rest := copy(s.incoming, s.incoming[n:])
	s.incoming = s.incoming[:rest]
	s.contSent = 0
}

// switchState moves the session forward to next. Requests
// to move backwards or to leave exit state are ignored.
func (s *Session) switchState(next State) {

	if s.state == StateExit || next <= s.state {
		return
	}

	s.state = next

	switch next {

	case StateConnected:
		s.untagged("OK " + s.greeting)
		s.state = StateNotAuthenticated

	case StateExit:

		level.Debug(s.logger).Log("msg", "session exited", "user", s.user)

		hooks := s.onExit
		s.onExit = nil
		s.incoming = nil

		for _, fn := range hooks {
			fn()
		}
	}
}

// respond appends a tagged completion response.
func (s *Session) respond(tag string, status string, text string) {

	s.outgoing = append(s.outgoing, tag...)
	s.outgoing = append(s.outgoing, ' ')
	s.outgoing = append(s.outgoing, status...)
	s.outgoing = append(s.outgoing, ' ')
	s.outgoing = append(s.outgoing, text...)
	s.outgoing = append(s.outgoing, crlf...)
}

// untagged appends an untagged server response.
func (s *Session) untagged(text string) {

	s.outgoing = append(s.outgoing, "* "...)
	s.outgoing = append(s.outgoing, text...)
	s.outgoing = append(s.outgoing, crlf...)
}

// continuation asks the client to go on sending.
func (s *Session) continuation(text string) {

	s.outgoing = append(s.outgoing, "+ "...)
	s.outgoing = append(s.outgoing, text...)
	s.outgoing = append(s.outgoing, crlf...)
}

type denyService struct{}

func (denyService) Authenticate(string, string) bool { return false }

func (denyService) OnLogout(string) {}

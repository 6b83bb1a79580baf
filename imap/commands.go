package imap

import (
	"bytes"
	"strings"

	"github.com/go-kit/kit/log/level"
	"github.com/pkg/errors"
)

// Constants

// Capabilities advertised in answer to CAPABILITY.
const Capabilities = "IMAP4rev1 LITERAL+ AUTH=PLAIN"

// Variables

// errIncomplete is returned by handlers when the command
// has not fully arrived yet and nothing may be consumed.
var errIncomplete = errors.New("command incomplete")

// errWrongState is returned when a command waiting for a
// literal payload would never be executed anyway.
var errWrongState = errors.New("wrong state")

// commands maps every supported, uppercased command
// name to the function executing it.
var commands = map[string]handler{
	"CAPABILITY":   capability,
	"NOOP":         noop,
	"LOGOUT":       logout,
	"AUTHENTICATE": authenticate,
	"LOGIN":        login,
}

// Structs

// literalTooLarge marks a literal exceeding the session limit.
type literalTooLarge struct {
	declared int
	nonSync  bool
}

// handler executes one command. in holds the incoming
// buffer starting at the command's first byte. A handler
// returns how many bytes of in the command occupied,
// or errIncomplete if it has to wait for more input.
type handler func(s *Session, req Request, in []byte) (int, error)

// Functions

func (e *literalTooLarge) Error() string {
	return "literal too large"
}

// lookupCommand returns the handler for the command name.
func lookupCommand(name string) (handler, bool) {
	h, ok := commands[upperASCII(name)]
	return h, ok
}

// lineEnd returns the offset just past the first CRLF in
// in at or after from, or -1 if no complete line is there.
func lineEnd(in []byte, from int) int {

	i := bytes.Index(in[from:], crlf)
	if i < 0 {
		return -1
	}

	return from + i + 2
}

// simpleArgs splits a command line at single spaces and
// reports whether it consists of exactly n non-empty tokens,
// the second one being the command name.
func simpleArgs(line string, req Request, n int) ([]string, bool) {

	fields := strings.Split(line, " ")
	if len(fields) != n || !strings.EqualFold(fields[1], req.Command) {
		return nil, false
	}

	for _, f := range fields {
		if f == "" {
			return nil, false
		}
	}

	return fields, true
}

// rejectParams answers a command of wrong syntactic shape.
func (s *Session) rejectParams(req Request) {
	s.respond(req.Tag, "BAD", "Command "+req.Command+" was sent with invalid parameters")
}

// capability handles the IMAP CAPABILITY command.
// It outputs the supported capabilities.
func capability(s *Session, req Request, in []byte) (int, error) {

	end := lineEnd(in, 0)

	if _, ok := simpleArgs(string(in[:(end-2)]), req, 2); !ok {
		s.rejectParams(req)
		return end, nil
	}

	s.untagged("CAPABILITY " + Capabilities)
	s.respond(req.Tag, "OK", "CAPABILITY completed")

	return end, nil
}

// noop handles the IMAP NOOP command. It is
// valid in every state and changes nothing.
func noop(s *Session, req Request, in []byte) (int, error) {

	end := lineEnd(in, 0)

	if _, ok := simpleArgs(string(in[:(end-2)]), req, 2); !ok {
		s.rejectParams(req)
		return end, nil
	}

	s.respond(req.Tag, "OK", "NOOP completed")

	return end, nil
}

// logout handles the IMAP LOGOUT command. It says
// goodbye, informs the service and ends the session.
func logout(s *Session, req Request, in []byte) (int, error) {

	end := lineEnd(in, 0)

	if _, ok := simpleArgs(string(in[:(end-2)]), req, 2); !ok {
		s.rejectParams(req)
		return end, nil
	}

	s.untagged("BYE IMAP4rev1 Server logging out")
	s.respond(req.Tag, "OK", "LOGOUT completed")

	s.service.OnLogout(s.user)
	s.switchState(StateExit)

	return end, nil
}

// authenticate handles the IMAP AUTHENTICATE command.
// No SASL mechanism is offered through it, so every
// well-formed attempt is declined.
func authenticate(s *Session, req Request, in []byte) (int, error) {

	end := lineEnd(in, 0)

	fields, ok := simpleArgs(string(in[:(end-2)]), req, 3)
	if !ok {
		s.rejectParams(req)
		return end, nil
	}

	if s.state != StateNotAuthenticated {
		s.respond(req.Tag, "NO", "Wrong state")
		return end, nil
	}

	s.respond(req.Tag, "NO", "Unsupported authentication "+fields[2])

	return end, nil
}

// login handles the IMAP LOGIN command. User name and
// password may each be an atom, a quoted string or a
// literal, so the command can stretch over several lines.
func login(s *Session, req Request, in []byte) (int, error) {

	// Command name has to follow the tag after exactly one space.
	prefix := len(req.Tag) + 1 + len(req.Command)
	if len(in) <= prefix || in[prefix] != ' ' || !strings.EqualFold(string(in[(len(req.Tag)+1):prefix]), req.Command) {
		return s.rejectLine(in, 0, req, "BAD", "Command LOGIN was sent with invalid parameters")
	}

	// Literal payloads are only asked for if LOGIN can succeed.
	invite := s.state == StateNotAuthenticated

	username, pos, err := s.readAString(in, prefix+1, invite)
	if err != nil {
		return s.argumentError(in, pos, req, err)
	}

	if pos >= len(in) {
		return 0, errIncomplete
	}

	if in[pos] != ' ' {
		return s.rejectLine(in, pos, req, "BAD", "Command LOGIN was sent with invalid parameters")
	}

	password, pos, err := s.readAString(in, pos+1, invite)
	if err != nil {
		return s.argumentError(in, pos, req, err)
	}

	// Both arguments have to be followed by CRLF immediately.
	if len(in) < (pos + 2) {
		return 0, errIncomplete
	}

	if !bytes.Equal(in[pos:(pos+2)], crlf) {
		return s.rejectLine(in, pos, req, "BAD", "Command LOGIN was sent with invalid parameters")
	}
	end := pos + 2

	if s.state != StateNotAuthenticated {
		s.respond(req.Tag, "NO", "Wrong state")
		return end, nil
	}

	if !s.service.Authenticate(username, password) {

		level.Info(s.logger).Log("msg", "failed login", "user", username)

		s.respond(req.Tag, "NO", "Invalid user name or password")
		return end, nil
	}

	s.user = username
	s.switchState(StateAuthenticated)
	s.respond(req.Tag, "OK", "LOGIN completed")

	return end, nil
}

// argumentError turns a failure while reading a command
// argument into the matching answer.
func (s *Session) argumentError(in []byte, pos int, req Request, err error) (int, error) {

	var tooLarge *literalTooLarge

	switch {

	case err == errIncomplete:
		return 0, errIncomplete

	case err == errWrongState:
		return s.rejectLine(in, pos, req, "NO", "Wrong state")

	case errors.As(err, &tooLarge):

		n, err := s.rejectLine(in, pos, req, "BAD", "Literal too large")

		// Client sends a non-synchronizing payload without
		// waiting, it must not be taken for commands.
		if err == nil && tooLarge.nonSync {
			s.skip = tooLarge.declared
			s.skipLine = true
		}

		return n, err

	default:
		level.Debug(s.logger).Log("msg", "invalid command argument", "tag", req.Tag, "err", err)
		return s.rejectLine(in, pos, req, "BAD", "Command "+req.Command+" was sent with invalid parameters")
	}
}

// rejectLine answers the command and consumes everything
// up to the end of the line containing offset from. If that
// line is not complete yet, the rejection waits for it.
func (s *Session) rejectLine(in []byte, from int, req Request, status string, text string) (int, error) {

	if from > len(in) {
		from = len(in)
	}

	end := lineEnd(in, from)
	if end < 0 {
		return 0, errIncomplete
	}

	s.respond(req.Tag, status, text)

	return end, nil
}

// readAString reads one IMAP astring starting at in[pos].
// It returns the value and the offset just past it. On error
// the offset points at the place the argument went wrong. A
// continuation for a synchronizing literal is only sent if
// invite is set, otherwise errWrongState is returned.
func (s *Session) readAString(in []byte, pos int, invite bool) (string, int, error) {

	if pos >= len(in) {
		return "", pos, errIncomplete
	}

	switch in[pos] {

	case '"':

		// Quoted strings never span lines.
		stop := bytes.Index(in[pos:], crlf)
		if stop < 0 {
			return "", pos, errIncomplete
		}

		var str String

		n, err := str.Feed(in[pos:(pos + stop)])
		if err != nil {
			return "", pos, err
		}

		if str.Status() != StatusComplete {
			return "", pos, errors.Wrap(ErrMalformedString, "quoted string not terminated on its line")
		}

		if bytes.ContainsAny(str.Bytes(), "\r\n") {
			return "", pos, errors.Wrap(ErrMalformedString, "line break inside quoted string")
		}

		return string(str.Bytes()), pos + n, nil

	case '{':

		var str String

		n, err := str.Feed(in[pos:])

		if str.Kind() != KindUnspecified && str.Declared() > s.maxLiteral {
			return "", pos, &literalTooLarge{
				declared: str.Declared(),
				nonSync:  str.Kind() == KindLiteralNonSync,
			}
		}

		if err != nil {
			return "", pos, err
		}

		if str.Status() == StatusComplete {
			return string(str.Bytes()), pos + n, nil
		}

		// Client waits for permission to send a
		// synchronizing literal's payload.
		if str.Kind() == KindLiteral && str.HeaderDone() {

			if !invite {
				return "", pos, errWrongState
			}

			if pos >= s.contSent {
				s.continuation("Ready for literal data")
				s.contSent = pos + 1
			}
		}

		return "", pos, errIncomplete
	}

	end := pos
	for end < len(in) && isAStringChar(in[end]) {
		end++
	}

	if end == pos {
		return "", pos, errors.Wrapf(ErrMalformedString, "unexpected character %q", in[pos])
	}

	return string(in[pos:end]), end, nil
}

// isAStringChar reports whether c may appear in an atom
// used as astring (RFC 3501, ASTRING-CHAR).
func isAStringChar(c byte) bool {

	if c <= 0x1f || c >= 0x7f {
		return false
	}

	switch c {
	case '(', ')', '{', ' ', '%', '*', '"', '\\':
		return false
	}

	return true
}

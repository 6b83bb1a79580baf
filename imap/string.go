package imap

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/pkg/errors"
)

// Constants

// Syntax variants of an IMAP string.
const (
	KindUnspecified StringKind = iota
	KindQuoted
	KindLiteral
	KindLiteralNonSync
)

// Parse states of an IMAP string. The zero value
// marks a fresh string still waiting for input.
const (
	StatusIncomplete StringStatus = iota
	StatusComplete
	StatusInvalid
)

// Variables

// ErrMalformedString is wrapped by every error Feed
// returns for input that can never become a valid string.
var ErrMalformedString = errors.New("malformed IMAP string")

// Structs

// StringKind names the wire form an IMAP string was sent in.
type StringKind int

// StringStatus reports how far parsing of a string progressed.
type StringStatus int

// String accumulates one IMAP string value (quoted,
// literal or non-synchronizing literal) from input
// that may arrive in arbitrarily small chunks.
// The zero value is ready to use.
type String struct {
	kind     StringKind
	status   StringStatus
	err      error
	declared int
	data     []byte
	crlf     int
	escaped  bool
}

// Functions

// String implements fmt.Stringer.
func (k StringKind) String() string {

	switch k {
	case KindUnspecified:
		return "unspecified"
	case KindQuoted:
		return "quoted"
	case KindLiteral:
		return "literal"
	case KindLiteralNonSync:
		return "literal+"
	default:
		return fmt.Sprintf("StringKind(%d)", int(k))
	}
}

// String implements fmt.Stringer.
func (s StringStatus) String() string {

	switch s {
	case StatusIncomplete:
		return "incomplete"
	case StatusComplete:
		return "complete"
	case StatusInvalid:
		return "invalid"
	default:
		return fmt.Sprintf("StringStatus(%d)", int(s))
	}
}

// Reset discards everything parsed so far.
func (s *String) Reset() {
	*s = String{data: s.data[:0]}
}

// Kind returns the detected wire form.
func (s *String) Kind() StringKind {
	return s.kind
}

// Status returns the current parse state.
func (s *String) Status() StringStatus {
	return s.status
}

// Err returns the error that made the string invalid, if any.
func (s *String) Err() error {
	return s.err
}

// Declared returns the length announced in a literal
// header. For quoted strings it equals Len.
func (s *String) Declared() int {

	if s.kind == KindQuoted {
		return len(s.data)
	}

	return s.declared
}

// Len returns the number of payload bytes collected so far.
func (s *String) Len() int {
	return len(s.data)
}

// Bytes returns the payload collected so far. The slice
// is only valid until the next call to Feed or Reset.
func (s *String) Bytes() []byte {
	return s.data
}

// HeaderDone reports whether a literal header and the
// CRLF following it were fully seen.
func (s *String) HeaderDone() bool {
	return (s.kind == KindLiteral || s.kind == KindLiteralNonSync) && s.crlf == 2
}

// Feed parses the next chunk of input. It returns the number
// of leading bytes of p that belong to the string, so that
// p[n:] is left for whatever follows it.
//
// Once the kind is detected, successive calls continue where
// the previous one stopped and p has to contain only new input.
// The one exception is a literal header that is cut before its
// closing brace: then Feed consumes nothing and p has to be
// presented again, extended by further input.
func (s *String) Feed(p []byte) (int, error) {

	switch s.status {
	case StatusComplete:
		return 0, nil
	case StatusInvalid:
		return 0, s.err
	}

	pos := 0

	if s.kind == KindUnspecified {

		n, err := s.detect(p)
		if err != nil {
			return 0, s.fail(err)
		}

		// Literal header not complete yet.
		if s.kind == KindUnspecified {
			return 0, nil
		}

		pos = n
	}

	if s.kind == KindQuoted {
		return s.feedQuoted(p, pos)
	}

	return s.feedLiteral(p, pos)
}

// detect determines the kind of string starting at the first
// opening brace or double quote in p. It returns the offset
// of the first byte after the quote or after the closing brace.
func (s *String) detect(p []byte) (int, error) {

	if len(p) == 0 {
		return 0, errors.Wrap(ErrMalformedString, "empty input")
	}

	start := bytes.IndexAny(p, "{\"")
	if start < 0 {
		return 0, errors.Wrap(ErrMalformedString, "neither quote nor literal found")
	}

	if p[start] == '"' {
		s.kind = KindQuoted
		return start + 1, nil
	}

	end := bytes.IndexByte(p[start:], '}')
	if end < 0 {

		// Length still arriving, e.g. "{12" with "3}" to follow.
		if partialLiteralHeader(p[start+1:]) {
			return 0, nil
		}

		return 0, errors.Wrap(ErrMalformedString, "literal header lacks closing brace")
	}
	end += start

	kind := KindLiteral
	digits := p[(start + 1):end]

	if len(digits) > 0 && digits[len(digits)-1] == '+' {
		kind = KindLiteralNonSync
		digits = digits[:(len(digits) - 1)]
	}

	if len(digits) == 0 {
		return 0, errors.Wrap(ErrMalformedString, "literal header without length")
	}

	for _, c := range digits {
		if c < '0' || c > '9' {
			return 0, errors.Wrapf(ErrMalformedString, "literal length %q is not a number", digits)
		}
	}

	length, err := strconv.Atoi(string(digits))
	if err != nil {
		return 0, errors.Wrapf(ErrMalformedString, "literal length %q out of range", digits)
	}

	s.kind = kind
	s.declared = length

	return end + 1, nil
}

// feedQuoted collects bytes up to the next unescaped double
// quote. A backslash only escapes a double quote or another
// backslash and is kept as it is in front of anything else.
func (s *String) feedQuoted(p []byte, pos int) (int, error) {

	for i := pos; i < len(p); i++ {

		c := p[i]

		if s.escaped {

			if c != '"' && c != '\\' {
				s.data = append(s.data, '\\')
			}

			s.data = append(s.data, c)
			s.escaped = false

			continue
		}

		switch c {
		case '\\':
			s.escaped = true
		case '"':
			s.status = StatusComplete
			return i + 1, nil
		default:
			s.data = append(s.data, c)
		}
	}

	return len(p), nil
}

// feedLiteral checks the CRLF after the literal header and
// then copies payload bytes verbatim up to the declared length.
func (s *String) feedLiteral(p []byte, pos int) (int, error) {

	for s.crlf < 2 && pos < len(p) {

		if p[pos] != "\r\n"[s.crlf] {
			return pos, s.fail(errors.Wrap(ErrMalformedString, "literal header not followed by CRLF"))
		}

		s.crlf++
		pos++
	}

	if s.crlf < 2 {
		return pos, nil
	}

	want := s.declared - len(s.data)
	if avail := len(p) - pos; want > avail {
		want = avail
	}

	s.data = append(s.data, p[pos:(pos+want)]...)
	pos += want

	if len(s.data) == s.declared {
		s.status = StatusComplete
	}

	return pos, nil
}

func (s *String) fail(err error) error {
	s.status = StatusInvalid
	s.err = err

	return err
}

// partialLiteralHeader reports whether rest could still
// turn into the digits of a literal header.
func partialLiteralHeader(rest []byte) bool {

	for i, c := range rest {

		if c == '+' && i == (len(rest)-1) && i > 0 {
			return true
		}

		if c < '0' || c > '9' {
			return false
		}
	}

	return true
}

// Raw returns the collected value in IMAP wire form. A string
// of unspecified kind is exported as a literal.
func (s *String) Raw() []byte {

	kind := s.kind
	if kind == KindUnspecified {
		kind = KindLiteral
	}

	return AppendString(nil, s.data, kind)
}

// AppendString appends value in the requested wire form to dst.
// Values a quoted string cannot carry are sent as literal instead.
func AppendString(dst []byte, value []byte, kind StringKind) []byte {

	if kind == KindQuoted && bytes.ContainsAny(value, "\r\n\x00") {
		kind = KindLiteral
	}

	switch kind {

	case KindQuoted:

		dst = append(dst, '"')
		for _, c := range value {
			if c == '"' || c == '\\' {
				dst = append(dst, '\\')
			}
			dst = append(dst, c)
		}

		return append(dst, '"')

	case KindLiteral, KindLiteralNonSync:

		dst = append(dst, '{')
		dst = strconv.AppendInt(dst, int64(len(value)), 10)
		if kind == KindLiteralNonSync {
			dst = append(dst, '+')
		}
		dst = append(dst, "}\r\n"...)

		return append(dst, value...)
	}

	return dst
}

package imap

import (
	"strings"
)

// Structs

// Request represents the parsed content of a client
// command line. Payload holds everything after the
// command name and is examined further in the command
// specific handlers.
type Request struct {
	Tag     string
	Command string
	Payload string
}

// Functions

// ParseRequest takes in one command line without its
// trailing CRLF and splits it into tag and uppercased
// command name. It reports false if the line is empty,
// does not start with an alphanumeric tag, or carries
// no command name after the tag.
func ParseRequest(line string) (Request, bool) {

	if line == "" || !isAlphaNum(line[0]) {
		return Request{}, false
	}

	// Tag runs up to the first space.
	sp := strings.IndexByte(line, ' ')
	if sp < 0 {
		return Request{}, false
	}

	// Command name is the next whitespace
	// separated token.
	rest := strings.TrimLeft(line[(sp+1):], " \t")
	if rest == "" {
		return Request{}, false
	}

	name := rest
	payload := ""

	if end := strings.IndexAny(rest, " \t"); end >= 0 {
		name = rest[:end]
		payload = rest[(end + 1):]
	}

	return Request{
		Tag:     line[:sp],
		Command: upperASCII(name),
		Payload: payload,
	}, true
}

// tagOf makes a best effort to find a tag to answer
// a line with that did not parse as a request.
func tagOf(line string) string {

	if line == "" || !isAlphaNum(line[0]) {
		return "*"
	}

	if sp := strings.IndexAny(line, " \t"); sp >= 0 {
		return line[:sp]
	}

	return line
}

// upperASCII uppercases ASCII letters only, keeping
// the byte length of s intact.
func upperASCII(s string) string {

	b := []byte(s)
	for i, c := range b {
		if 'a' <= c && c <= 'z' {
			b[i] = c - ('a' - 'A')
		}
	}

	return string(b)
}

func isAlphaNum(c byte) bool {
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9')
}

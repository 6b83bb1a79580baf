/*
Package imap implements the protocol engine of nestor: an incremental parser for IMAP strings
(quoted, literal and non-synchronizing literal), a splitter for command lines, and the session
state machine executing the supported commands.

A Session does not perform any I/O. Whoever owns the connection hands every chunk of received
bytes to Session.Feed, which executes all commands that arrived completely and keeps the rest
buffered, and afterwards writes the answers collected by the session to the client. Commands
split across several reads, including literals whose payload contains CRLF, are handled by
simply waiting for the next chunk.

Please refer to https://tools.ietf.org/html/rfc3501#section-3 for full documentation
on the states, https://tools.ietf.org/html/rfc3501 for the full IMAP v4 rev1 RFC and
https://tools.ietf.org/html/rfc7888 for non-synchronizing literals.
*/
package imap

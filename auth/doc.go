/*
Package auth defines potentially multiple mechanisms to determine whether supplied
user credentials via an IMAP session can be found in a defined user information system.
Users may be read from a simple separated users file or looked up in a users table of
a PostgreSQL or SQLite database. Passwords are stored either as bcrypt hashes or, for
local testing, in plain text. NewService adapts any of these mechanisms to the service
an IMAP session calls on LOGIN and LOGOUT.
*/
package auth

/*
Package evaluation provides a probe to test a remote nestor setup and compare it against any other
IMAP server, e.g. a Dovecot installation. The probe repeatedly connects, asks for capabilities,
logs in and out again with a standard IMAP client and records how long each round took. Tests are
thought to be executed from a reproducible host.
*/
package main

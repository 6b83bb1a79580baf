/*
Package crypto provides the basis for secure communication in nestor. It builds
the strict TLS configuration the IMAP listener is wrapped in when a public
certificate and key are configured.
*/
package crypto

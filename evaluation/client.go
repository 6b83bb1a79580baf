package main

import (
	"crypto/tls"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/pkg/errors"
)

// Structs

// probe describes the server to measure and
// the credentials to log in with.
type probe struct {
	addr      string
	user      string
	password  string
	tlsConfig *tls.Config
	timeout   time.Duration
}

// Functions

// dial connects to the probed server, wrapping
// the connection in TLS if configured.
func (p *probe) dial() (net.Conn, error) {

	dialer := &net.Dialer{Timeout: p.timeout}

	if p.tlsConfig != nil {
		return tls.DialWithDialer(dialer, "tcp", p.addr, p.tlsConfig)
	}

	return dialer.Dial("tcp", p.addr)
}

// round performs one complete IMAP conversation and
// returns how long it took from connecting to logout.
func (p *probe) round() (time.Duration, error) {

	start := time.Now()

	conn, err := p.dial()
	if err != nil {
		return 0, errors.Wrapf(err, "failed to connect to %s", p.addr)
	}
	conn.SetDeadline(start.Add(p.timeout))

	c := imapclient.New(conn, nil)
	defer c.Close()

	caps, err := c.Capability().Wait()
	if err != nil {
		return 0, errors.Wrap(err, "CAPABILITY failed")
	}

	if !caps.Has(imap.CapIMAP4rev1) {
		return 0, errors.New("server does not speak IMAP4rev1")
	}

	if err := c.Login(p.user, p.password).Wait(); err != nil {
		return 0, errors.Wrap(err, "LOGIN failed")
	}

	if err := c.Noop().Wait(); err != nil {
		return 0, errors.Wrap(err, "NOOP failed")
	}

	if err := c.Logout().Wait(); err != nil {
		return 0, errors.Wrap(err, "LOGOUT failed")
	}

	return time.Since(start), nil
}

// run executes rounds conversations and writes one
// line "round, duration" per conversation to out.
func (p *probe) run(rounds int, out io.Writer) error {

	for i := 0; i < rounds; i++ {

		diff, err := p.round()
		if err != nil {
			return errors.Wrapf(err, "round %d", i)
		}

		if _, err := fmt.Fprintf(out, "%d, %s\r\n", i, diff); err != nil {
			return errors.Wrap(err, "failed to write result")
		}
	}

	return nil
}

func main() {

	mailAddr := flag.String("addr", "", "host:port of the IMAP server (required)")
	mailUser := flag.String("user", "", "username (required)")
	mailPassword := flag.String("pass", "", "password (required)")
	mailOutput := flag.String("output", "", "output file (required)")
	mailTLS := flag.Bool("tls", false, "connect with implicit TLS")
	mailInsecure := flag.Bool("insecure", false, "skip verification of the server certificate")
	mailRounds := flag.Int("rounds", 100, "number of login rounds")
	flag.Parse()

	if *mailAddr == "" || *mailUser == "" || *mailPassword == "" || *mailOutput == "" {
		log.Fatal("not enough arguments, try -h")
	}

	p := &probe{
		addr:     *mailAddr,
		user:     *mailUser,
		password: *mailPassword,
		timeout:  10 * time.Second,
	}

	if *mailTLS {
		p.tlsConfig = &tls.Config{InsecureSkipVerify: *mailInsecure}
	}

	f, err := os.OpenFile(*mailOutput, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()

	if err := p.run(*mailRounds, f); err != nil {
		log.Fatal(err)
	}

	log.Println("Done!")
}

package main

import (
	"bytes"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/numbleroot/nestor/config"
	"github.com/numbleroot/nestor/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Structs

type testService struct{}

func (testService) Authenticate(username string, password string) bool {
	return username == "user0" && password == "pass word"
}

func (testService) OnLogout(username string) {}

// Functions

// TestProbe runs the probe against a local server.
func TestProbe(t *testing.T) {

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := server.New(listener, testService{}, config.Default(), nil, server.Metrics{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() {
		done <- s.Run(ctx)
	}()

	p := &probe{
		addr:     listener.Addr().String(),
		user:     "user0",
		password: "pass word",
		timeout:  5 * time.Second,
	}

	var out bytes.Buffer
	require.NoError(t, p.run(3, &out))

	lines := strings.Split(strings.TrimSuffix(out.String(), "\r\n"), "\r\n")
	assert.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[2], "2, "))

	// Wrong credentials end the probe.
	p.password = "wrong"
	assert.Error(t, p.run(1, &out))

	cancel()
	assert.NoError(t, <-done)
}

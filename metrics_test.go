package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewNestorMetrics(t *testing.T) {

	metrics := NewNestorMetrics("")
	assert.NotNil(t, metrics.Commands)
	assert.NotNil(t, metrics.Sessions)

	metrics = NewNestorMetrics(":9099")
	assert.NotNil(t, metrics.Commands)
	assert.NotNil(t, metrics.Logins)
	assert.NotNil(t, metrics.FailedLogins)
	assert.NotNil(t, metrics.Logouts)

	// Labeled counters accept command names.
	metrics.Commands.With("command", "LOGIN").Add(1)
}

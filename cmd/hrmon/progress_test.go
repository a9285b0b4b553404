package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProgressPrinter_SilentWhenNotTerminal(t *testing.T) {
	buf := new(bytes.Buffer)
	p := NewCountdownProgressPrinter(buf, "Scanning", "scanning", 0)

	p.Start()
	p.SetPhase("connecting")
	p.Stop()
	p.Stop()

	assert.Empty(t, buf.String(), "non-terminal output MUST stay clean")
}

func TestProgressPrinter_StopWithoutStart(t *testing.T) {
	p := NewProgressPrinter(new(bytes.Buffer), "Scanning", "scanning")

	assert.NotPanics(t, p.Stop)
	assert.NotPanics(t, p.Start, "Start after Stop MUST be a no-op")
}

package main

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fatih/color"
	"golang.org/x/term"
)

const (
	progressUpdateInterval = 100 * time.Millisecond
	clearLineSequence      = "\r\033[K"
)

// ProgressPrinter keeps a single status line updated with the current phase
// and elapsed or remaining seconds.
//
// Usage:
//
//	p := NewProgressPrinter(os.Stderr, "Scanning for BLE devices", "scanning")
//	p.Start()
//	defer p.Stop()
//
// A ProgressPrinter is single-use. When w is not a terminal it prints nothing.
type ProgressPrinter struct {
	w        io.Writer
	enabled  bool
	prefix   string
	phase    atomic.Value // string
	duration time.Duration
	started  time.Time

	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
	done      chan struct{}
}

// NewProgressPrinter creates a printer that counts elapsed seconds up.
func NewProgressPrinter(w io.Writer, prefix, phase string) *ProgressPrinter {
	return NewCountdownProgressPrinter(w, prefix, phase, 0)
}

// NewCountdownProgressPrinter creates a printer that counts down from duration.
// A zero duration counts up.
func NewCountdownProgressPrinter(w io.Writer, prefix, phase string, duration time.Duration) *ProgressPrinter {
	p := &ProgressPrinter{
		w:        w,
		enabled:  isTerminal(w),
		prefix:   prefix,
		duration: duration,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	p.phase.Store(phase)
	return p
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Start begins updating the status line in a background goroutine.
func (p *ProgressPrinter) Start() {
	p.startOnce.Do(func() {
		p.started = time.Now()
		if !p.enabled {
			close(p.done)
			return
		}
		p.print()
		go p.loop()
	})
}

// SetPhase changes the phase shown on the status line.
func (p *ProgressPrinter) SetPhase(phase string) {
	p.phase.Store(phase)
}

func (p *ProgressPrinter) loop() {
	defer close(p.done)

	ticker := time.NewTicker(progressUpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			p.print()
		}
	}
}

func (p *ProgressPrinter) print() {
	phase := p.phase.Load().(string)
	elapsed := time.Since(p.started)

	seconds := int(elapsed.Seconds())
	if p.duration > 0 {
		seconds = 0
		if remaining := p.duration - elapsed; remaining > 0 {
			// 3.7s -> 4s, 3.3s -> 3s
			seconds = int(remaining.Seconds() + 0.5)
		}
	}

	status := color.New(color.FgCyan).Sprint(phase)
	if seconds > 0 {
		fmt.Fprintf(p.w, "\r%s (%s %ds)   ", p.prefix, status, seconds)
	} else {
		fmt.Fprintf(p.w, "\r%s (%s...)   ", p.prefix, status)
	}
}

// Stop ends the updates and clears the line. Safe to call more than once.
func (p *ProgressPrinter) Stop() {
	p.stopOnce.Do(func() {
		p.startOnce.Do(func() { close(p.done) })
		close(p.stop)
		<-p.done
		if p.enabled {
			fmt.Fprint(p.w, clearLineSequence)
		}
	})
}

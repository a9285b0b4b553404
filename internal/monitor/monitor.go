// Package monitor is the command surface used by front ends.
package monitor

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/hrmon/internal/connection"
	"github.com/srg/hrmon/internal/device"
	"github.com/srg/hrmon/internal/devicefactory"
	"github.com/srg/hrmon/internal/registry"
	"github.com/srg/hrmon/internal/session"
	"github.com/srg/hrmon/scanner"
)

// scanStopTimeout bounds how long a connect waits for the radio scan to end.
const scanStopTimeout = 2 * time.Second

// Options configures a Monitor.
type Options struct {
	Scan       scanner.ScanOptions
	Connection connection.Options
	// SubscriberBuffer is the default ring size for Subscribe(0).
	SubscriberBuffer int
}

// DefaultOptions returns the options used by New when none are given.
func DefaultOptions() Options {
	return Options{
		Scan:             *scanner.DefaultScanOptions(),
		Connection:       connection.DefaultOptions(),
		SubscriberBuffer: session.DefaultSubscriberBuffer,
	}
}

// Monitor wires the scanner, registry, connection manager and session store.
// Commands return immediately; their outcome is observed through Session State.
type Monitor struct {
	registry *registry.Registry
	store    *session.Store
	scanner  *scanner.Scanner
	conns    *connection.Manager
	opts     Options
	logger   *logrus.Logger
}

// New creates a Monitor over radio.
func New(radio device.Radio, opts Options, logger *logrus.Logger) *Monitor {
	if logger == nil {
		logger = logrus.New()
	}
	reg := registry.New()
	store := session.NewStore(logger)
	return &Monitor{
		registry: reg,
		store:    store,
		scanner:  scanner.NewScanner(radio, reg, store, logger),
		conns:    connection.NewManager(radio, store, opts.Connection, logger),
		opts:     opts,
		logger:   logger,
	}
}

// NewWithSharedRadio creates a Monitor over the process-wide radio.
func NewWithSharedRadio(opts Options, logger *logrus.Logger) (*Monitor, error) {
	radio, err := devicefactory.SharedRadio(logger)
	if err != nil {
		return nil, err
	}
	return New(radio, opts, logger), nil
}

// RequestScan opens a discovery window; a non-positive duration uses the configured one.
func (m *Monitor) RequestScan(d time.Duration) error {
	opts := m.opts.Scan
	if d > 0 {
		opts.Duration = d
	}
	return m.scanner.Start(&opts)
}

// RequestScanWithOptions opens a discovery window with explicit filters.
func (m *Monitor) RequestScanWithOptions(opts *scanner.ScanOptions) error {
	return m.scanner.Start(opts)
}

// StopScan ends the discovery window early.
func (m *Monitor) StopScan() {
	m.scanner.StopScan()
}

// WaitScan blocks until the active discovery window completes.
func (m *Monitor) WaitScan(ctx context.Context) error {
	return m.scanner.Wait(ctx)
}

// RequestConnect starts a session towards a discovered peripheral.
// An active scan is stopped, and its radio scan has ended, before the dial.
// A connect rejected with device.ErrAlreadyConnecting leaves the scan running.
func (m *Monitor) RequestConnect(address string) error {
	p, ok := m.registry.Get(address)
	if !ok {
		return &device.NotFoundError{Resource: "peripheral", UUIDs: []string{address}}
	}
	if m.conns.Busy() {
		return device.ErrAlreadyConnecting
	}

	m.scanner.StopScan()
	ctx, cancel := context.WithTimeout(context.Background(), scanStopTimeout)
	defer cancel()
	if err := m.scanner.Wait(ctx); err != nil {
		m.logger.WithError(err).WithField("address", address).Warn("Scan did not stop before connect")
	}
	return m.conns.Connect(p)
}

// RequestDisconnect ends the active session; a no-op when idle.
func (m *Monitor) RequestDisconnect() {
	m.conns.Disconnect()
}

// Subscribe streams snapshots, starting with the current one.
func (m *Monitor) Subscribe(buffer int) *session.Subscription {
	if buffer <= 0 {
		buffer = m.opts.SubscriberBuffer
	}
	return m.store.Subscribe(buffer)
}

// Snapshot returns the latest Session State.
func (m *Monitor) Snapshot() *session.Snapshot {
	return m.store.Current()
}

// Close stops scanning and the active session, then ends every subscription.
func (m *Monitor) Close() {
	m.scanner.StopScan()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.scanner.Wait(ctx); err != nil {
		m.logger.WithError(err).Debug("Scan did not stop cleanly")
	}
	m.conns.Close()
	m.store.Close()
}

package connection

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/hrmon/internal/device"
	"github.com/srg/hrmon/internal/groutine"
	"github.com/srg/hrmon/internal/session"
)

// Options configures connection sessions.
type Options struct {
	// PhaseTimeout bounds each of Connecting, ServiceDiscovery and
	// EnablingNotifications. Zero disables the bound.
	PhaseTimeout time.Duration
}

// DefaultOptions returns the options used when none are given.
func DefaultOptions() Options {
	return Options{}
}

// Manager owns the connection session. At most one session is active at a time.
type Manager struct {
	radio  device.Radio
	store  *session.Store
	opts   Options
	logger *logrus.Logger

	mu      sync.Mutex
	current *Session
	nextID  uint64
	closed  bool
	loops   sync.WaitGroup
}

// NewManager creates a Manager publishing into store.
func NewManager(radio device.Radio, store *session.Store, opts Options, logger *logrus.Logger) *Manager {
	if logger == nil {
		logger = logrus.New()
	}
	return &Manager{
		radio:  radio,
		store:  store,
		opts:   opts,
		logger: logger,
	}
}

// Connect starts a new session towards p and returns immediately.
// It fails with device.ErrAlreadyConnecting while another session is active;
// the active session is left untouched.
func (m *Manager) Connect(p device.PeripheralHandle) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return device.Errorf(device.KindConnectError, "connection manager is closed")
	}
	if m.busyLocked() {
		return device.ErrAlreadyConnecting
	}

	// a stopping session may still hold its link; the new one dials after its teardown
	m.nextID++
	s := newSession(m, m.nextID, p, m.current)
	m.current = s
	m.store.BeginSession(p)

	m.logger.WithFields(logrus.Fields{
		"session": s.id,
		"address": p.Address,
		"name":    p.Name,
	}).Info("Connecting to BLE device...")

	m.loops.Add(1)
	groutine.Go(s.ctx, "session-loop", func(ctx context.Context) {
		defer m.loops.Done()
		s.run(ctx)
	})
	return nil
}

// Busy reports whether Connect would be rejected with device.ErrAlreadyConnecting.
func (m *Manager) Busy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.busyLocked()
}

func (m *Manager) busyLocked() bool {
	cur := m.current
	return cur != nil && cur.state.IsActive() && !cur.stopping
}

// Disconnect asks the active session to end. It never blocks and is a no-op
// when no session is active. The session reaches Disconnected asynchronously.
// A Connect issued right away is accepted, but its session dials only after
// this one has closed its link.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.current
	if s == nil || !s.state.IsActive() || s.stopping {
		return
	}
	m.logger.WithField("session", s.id).Info("Disconnect requested")
	s.requestStop()
}

// State returns the state of the current session.
func (m *Manager) State() device.ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return device.StateIdle
	}
	return m.current.state
}

// Close stops the active session and waits for every session loop to exit.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	if s := m.current; s != nil && !s.stopping {
		s.requestStop()
	}
	m.mu.Unlock()

	m.loops.Wait()
}

// publish runs fn under the manager lock only while s is the current session.
// Events of superseded sessions never reach Session State.
func (m *Manager) publish(s *Session, fn func()) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != s {
		return false
	}
	fn()
	return true
}

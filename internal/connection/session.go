package connection

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/hrmon/internal/bledb"
	"github.com/srg/hrmon/internal/device"
	"github.com/srg/hrmon/internal/groutine"
	"github.com/srg/hrmon/internal/heartrate"
	"github.com/srg/hrmon/internal/session"
)

// cccdEnableNotifications is the Client Characteristic Configuration value enabling notifications
var cccdEnableNotifications = []byte{0x01, 0x00}

type resultKind int

const (
	resultServices resultKind = iota
	resultSubscribed
	resultDescriptorWritten
)

// result is posted by helper goroutines into the session loop.
type result struct {
	kind          resultKind
	services      []device.ServiceInfo
	notifications <-chan device.Notification
	err           error
}

// Session is a single connection attempt and its streaming lifetime.
// All state transitions happen on the session loop goroutine.
type Session struct {
	id         uint64
	manager    *Manager
	peripheral device.PeripheralHandle
	logger     *logrus.Entry

	ctx      context.Context
	cancel   context.CancelFunc
	stop     chan struct{}
	stopOnce sync.Once
	// done is closed once the radio resources of the session are released
	done chan struct{}
	// prev is the superseded session whose teardown must finish before dialing
	prev *Session

	// guarded by manager.mu
	state    device.ConnectionState
	stopping bool

	// owned by the loop
	link       device.Link
	service    device.ServiceInfo
	char       device.CharacteristicInfo
	results    chan result
	deadline   <-chan time.Time
	seq        uint64
	terminated bool
}

func newSession(m *Manager, id uint64, p device.PeripheralHandle, prev *Session) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		id:         id,
		manager:    m,
		peripheral: p,
		logger: m.logger.WithFields(logrus.Fields{
			"session": id,
			"address": p.Address,
		}),
		ctx:     ctx,
		cancel:  cancel,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
		prev:    prev,
		state:   device.StateConnecting,
		results: make(chan result, 1),
	}
}

// requestStop must be called with manager.mu held.
func (s *Session) requestStop() {
	s.stopping = true
	s.stopOnce.Do(func() {
		close(s.stop)
		s.cancel()
	})
}

func (s *Session) run(ctx context.Context) {
	defer close(s.done)

	if !s.awaitPrevious() {
		s.cancel()
		s.finish(device.StateDisconnected, nil)
		return
	}

	events := s.manager.radio.Connect(ctx, s.peripheral.Address)
	defer func() { s.teardown(events) }()
	s.armDeadline()

	var notifications <-chan device.Notification

	for !s.terminated {
		select {
		case <-s.stop:
			s.finish(device.StateDisconnected, nil)
			return

		case ev, ok := <-events:
			if !ok {
				events = nil
				if ctx.Err() != nil {
					continue
				}
				s.lost(nil)
				return
			}
			if ctx.Err() != nil {
				discard(ev)
				continue
			}
			s.handleLinkEvent(ctx, ev)

		case r := <-s.results:
			if ctx.Err() != nil {
				continue
			}
			if ch := s.handleResult(ctx, r); ch != nil {
				notifications = ch
			}

		case n, ok := <-notifications:
			if !ok {
				// the link is gone; LinkLost follows on the event stream
				notifications = nil
				continue
			}
			s.handleNotification(n)

		case <-s.deadline:
			s.fail(device.TimeoutError(s.currentState().String(), s.manager.opts.PhaseTimeout))
		}
	}
}

// awaitPrevious blocks until the superseded session has closed its link.
// It reports false when this session is stopped first.
func (s *Session) awaitPrevious() bool {
	prev := s.prev
	s.prev = nil
	if prev == nil {
		return true
	}

	select {
	case <-prev.done:
		return true
	default:
	}

	s.logger.WithField("previous_session", prev.id).Debug("Waiting for previous session teardown")
	select {
	case <-prev.done:
		return true
	case <-s.stop:
		return false
	}
}

func (s *Session) handleLinkEvent(ctx context.Context, ev device.LinkEvent) {
	switch ev.Kind {
	case device.LinkEstablished:
		if s.link != nil {
			return
		}
		s.link = ev.Link
		s.logger.Info("BLE link established, discovering services...")
		s.enter(device.StateServiceDiscovery)
		s.spawn(ctx, "session-discover", func(ctx context.Context) result {
			services, err := s.link.DiscoverServices(ctx)
			return result{kind: resultServices, services: services, err: err}
		})

	case device.LinkFailed:
		s.fail(classify(device.KindConnectError, ev.Err))

	case device.LinkLost:
		s.lost(ev.Err)
	}
}

func (s *Session) handleResult(ctx context.Context, r result) <-chan device.Notification {
	if r.err != nil {
		if errors.Is(r.err, device.ErrLinkLost) {
			s.lost(r.err)
			return nil
		}
		switch r.kind {
		case resultServices:
			s.fail(classify(device.KindConnectError, r.err))
		default:
			s.fail(classify(device.KindDescriptorWriteError, r.err))
		}
		return nil
	}

	switch r.kind {
	case resultServices:
		s.onServices(ctx, r.services)
	case resultSubscribed:
		s.onSubscribed(ctx)
		return r.notifications
	case resultDescriptorWritten:
		s.deadline = nil
		s.enter(device.StateStreaming)
		s.logger.Info("Heart rate notifications enabled")
	}
	return nil
}

func (s *Session) onServices(ctx context.Context, services []device.ServiceInfo) {
	svc, ok := device.FindService(services, bledb.HeartRateService)
	if !ok {
		s.fail(device.NewError(device.KindServiceNotFound, &device.NotFoundError{
			Resource: "service",
			UUIDs:    []string{bledb.HeartRateService},
		}))
		return
	}
	s.service = svc
	s.enter(device.StateEnablingNotifications)

	char, ok := svc.Characteristic(bledb.HeartRateMeasurement)
	if !ok {
		s.fail(device.NewError(device.KindCharacteristicNotFound, &device.NotFoundError{
			Resource: "characteristic",
			UUIDs:    []string{bledb.HeartRateService, bledb.HeartRateMeasurement},
		}))
		return
	}
	s.char = char

	s.spawn(ctx, "session-subscribe", func(ctx context.Context) result {
		ch, err := s.link.Subscribe(ctx, char)
		return result{kind: resultSubscribed, notifications: ch, err: err}
	})
}

func (s *Session) onSubscribed(ctx context.Context) {
	cccd, ok := s.char.Descriptor(bledb.ClientCharacteristicConfig)
	if !ok {
		s.fail(device.NewError(device.KindDescriptorWriteError, &device.NotFoundError{
			Resource: "descriptor",
			UUIDs:    []string{bledb.HeartRateService, bledb.HeartRateMeasurement, bledb.ClientCharacteristicConfig},
		}))
		return
	}

	s.spawn(ctx, "session-enable-notifications", func(ctx context.Context) result {
		err := s.link.WriteDescriptor(ctx, cccd, cccdEnableNotifications)
		return result{kind: resultDescriptorWritten, err: err}
	})
}

func (s *Session) handleNotification(n device.Notification) {
	if s.currentState() != device.StateStreaming {
		s.logger.Debug("Dropping notification received before streaming")
		return
	}

	m, err := heartrate.Decode(n.Payload)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"payload": n.Payload,
			"error":   err,
		}).Warn("Dropping undecodable heart rate sample")
		return
	}

	at := n.Received
	if at.IsZero() {
		at = time.Now()
	}

	s.manager.publish(s, func() {
		s.seq++
		s.manager.store.AppendSample(session.NewSample(s.seq, at, m))
	})
}

// spawn runs fn on a helper goroutine and posts its result into the loop.
func (s *Session) spawn(ctx context.Context, name string, fn func(ctx context.Context) result) {
	groutine.Go(ctx, name, func(ctx context.Context) {
		r := fn(ctx)
		select {
		case s.results <- r:
		case <-ctx.Done():
		}
	})
}

func (s *Session) enter(state device.ConnectionState) {
	s.manager.publish(s, func() {
		s.state = state
		s.manager.store.SetConnectionState(state, nil)
	})
	s.armDeadline()
}

func (s *Session) armDeadline() {
	d := s.manager.opts.PhaseTimeout
	if d <= 0 {
		return
	}
	switch s.currentState() {
	case device.StateConnecting, device.StateServiceDiscovery, device.StateEnablingNotifications:
		s.deadline = time.After(d)
	default:
		s.deadline = nil
	}
}

func (s *Session) fail(err error) {
	s.logger.WithError(err).Error("Connection session failed")
	s.finish(device.StateFailed, err)
}

func (s *Session) lost(cause error) {
	err := error(device.ErrLinkLost)
	switch {
	case cause == nil:
	case errors.Is(cause, device.ErrLinkLost):
		err = cause
	default:
		err = device.NewError(device.KindLinkLost, cause)
	}
	s.logger.WithError(err).Warn("BLE link lost")
	s.finish(device.StateDisconnected, err)
}

func (s *Session) finish(state device.ConnectionState, err error) {
	s.terminated = true
	s.deadline = nil
	s.manager.publish(s, func() {
		s.state = state
		s.manager.store.SetConnectionState(state, err)
	})
	if err == nil {
		s.logger.WithField("samples", s.seq).Info("Connection session ended")
	}
}

// currentState reads the state; only state transitions made by this loop change it.
func (s *Session) currentState() device.ConnectionState {
	s.manager.mu.Lock()
	defer s.manager.mu.Unlock()
	return s.state
}

// teardown releases the radio resources of the session. Events still pending
// on the radio stream are drained so a late established link gets closed too.
// The stream ends once the dial is cancelled or the link is closed.
func (s *Session) teardown(events <-chan device.LinkEvent) {
	s.cancel()
	if s.link != nil {
		if err := s.link.Close(); err != nil {
			s.logger.WithError(err).Debug("Link close reported an error")
		}
	}
	if events == nil {
		return
	}
	for ev := range events {
		if ev.Link != s.link {
			discard(ev)
		}
	}
}

func discard(ev device.LinkEvent) {
	if ev.Kind == device.LinkEstablished && ev.Link != nil {
		_ = ev.Link.Close()
	}
}

// classify maps a radio failure to the kind of the phase it happened in.
// Permission and adapter errors keep their own kind.
func classify(kind device.ErrorKind, err error) error {
	if errors.Is(err, device.ErrPermissionDenied) || errors.Is(err, device.ErrBluetoothOff) {
		return err
	}
	return device.NewError(kind, err)
}

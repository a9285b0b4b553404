// Package session publishes versioned, immutable snapshots of the monitor state.
package session

import (
	"sync"
	"sync/atomic"

	"github.com/cornelk/hashmap"
	"github.com/sirupsen/logrus"
	"github.com/srg/hrmon/internal/device"
	"github.com/srg/hrmon/internal/ringchan"
)

// DefaultSubscriberBuffer is the ring size used when Subscribe is given a non-positive buffer
const DefaultSubscriberBuffer = 16

// Store is the single writer of Session State.
//
// Every mutation produces a new Snapshot with a strictly larger Version.
// Publication to subscribers happens under the write lock, so each
// subscriber observes snapshots in production order.
type Store struct {
	mu      sync.Mutex
	current atomic.Pointer[Snapshot]
	series  []Sample
	closed  bool

	subscribers *hashmap.Map[uint64, *Subscription]
	nextID      atomic.Uint64

	logger *logrus.Logger
}

// NewStore creates a store holding the initial Idle snapshot.
func NewStore(logger *logrus.Logger) *Store {
	if logger == nil {
		logger = logrus.New()
	}
	s := &Store{
		subscribers: hashmap.New[uint64, *Subscription](),
		logger:      logger,
	}
	s.current.Store(&Snapshot{
		Version:    1,
		Devices:    []device.PeripheralHandle{},
		Connection: Connection{State: device.StateIdle},
	})
	return s
}

// Current returns the latest snapshot. It never blocks on writers.
func (s *Store) Current() *Snapshot {
	return s.current.Load()
}

// update applies fn to a copy of the current snapshot and publishes the result.
func (s *Store) update(fn func(next *Snapshot)) *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.current.Load()
	if s.closed {
		return prev
	}

	next := *prev
	fn(&next)
	next.Version = prev.Version + 1
	s.current.Store(&next)

	s.subscribers.Range(func(_ uint64, sub *Subscription) bool {
		if sub.ring.ForceSend(&next) {
			s.logger.WithFields(logrus.Fields{
				"subscriber": sub.id,
				"version":    next.Version,
			}).Debug("Slow subscriber, oldest snapshot dropped")
		}
		return true
	})

	return &next
}

// SetScanning records the start or end of a discovery window.
// err is the radio failure that ended the window, if any.
func (s *Store) SetScanning(scanning bool, err error) *Snapshot {
	return s.update(func(next *Snapshot) {
		next.Scanning = scanning
		next.ScanErr = err
	})
}

// SetDevices replaces the published device list.
func (s *Store) SetDevices(devices []device.PeripheralHandle) *Snapshot {
	return s.update(func(next *Snapshot) {
		next.Devices = devices
	})
}

// FinishScan ends a discovery window, publishing the final device list together
// with the cleared scanning flag.
func (s *Store) FinishScan(devices []device.PeripheralHandle, err error) *Snapshot {
	return s.update(func(next *Snapshot) {
		next.Scanning = false
		next.ScanErr = err
		next.Devices = devices
	})
}

// BeginSession publishes a new connection session and clears the series.
func (s *Store) BeginSession(peripheral device.PeripheralHandle) *Snapshot {
	return s.update(func(next *Snapshot) {
		s.series = nil
		next.Series = nil
		next.LatestBPM = 0
		p := peripheral
		next.Connection = Connection{State: device.StateConnecting, Peripheral: &p}
	})
}

// SetConnectionState publishes a transition of the current session.
func (s *Store) SetConnectionState(state device.ConnectionState, err error) *Snapshot {
	return s.update(func(next *Snapshot) {
		next.Connection.State = state
		next.Connection.Err = err
	})
}

// AppendSample appends a reading to the current series.
func (s *Store) AppendSample(sample Sample) *Snapshot {
	return s.update(func(next *Snapshot) {
		s.series = append(s.series, sample)
		n := len(s.series)
		// capped so appends by readers can never reach the shared backing array
		next.Series = s.series[:n:n]
		next.LatestBPM = sample.BPM
	})
}

// Subscribe registers a subscriber that first receives the current snapshot
// and then every later one. When its ring of buffer snapshots is full the
// oldest pending snapshot is dropped.
func (s *Store) Subscribe(buffer int) *Subscription {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}

	sub := &Subscription{
		id:    s.nextID.Add(1),
		ring:  ringchan.New[*Snapshot](buffer),
		store: s,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		sub.ring.Close()
		sub.done = true
		return sub
	}

	sub.ring.ForceSend(s.current.Load())
	s.subscribers.Set(sub.id, sub)
	return sub
}

// Close ends every subscription. Later updates are ignored.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true

	var subs []*Subscription
	s.subscribers.Range(func(_ uint64, sub *Subscription) bool {
		subs = append(subs, sub)
		return true
	})
	for _, sub := range subs {
		sub.closeLocked()
	}
}

func (s *Store) remove(sub *Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub.closeLocked()
}

// Subscription is a stream of snapshots from a Store.
type Subscription struct {
	id    uint64
	ring  *ringchan.RingChannel[*Snapshot]
	store *Store
	done  bool // guarded by store.mu
}

// C returns the snapshot stream. It is closed by Close or Store.Close.
func (sub *Subscription) C() <-chan *Snapshot {
	return sub.ring.C()
}

// Dropped returns how many snapshots were discarded for this subscriber.
func (sub *Subscription) Dropped() int64 {
	return sub.ring.GetMetrics().Overwritten
}

// Close unsubscribes. Safe to call more than once.
func (sub *Subscription) Close() {
	sub.store.remove(sub)
}

func (sub *Subscription) closeLocked() {
	if sub.done {
		return
	}
	sub.done = true
	sub.store.subscribers.Del(sub.id)
	sub.ring.Close()
}

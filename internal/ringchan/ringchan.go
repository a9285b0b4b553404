// Package ringchan provides a bounded channel that overwrites its oldest element.
package ringchan

import "sync/atomic"

// RingChannel is a bounded channel-like buffer with overwrite-oldest semantics.
//
// Producers never block: when the buffer is full the oldest pending element
// is discarded. Order of the remaining elements is preserved as long as there
// is a single producer at a time.
//
//	rc := ringchan.New[int](3)
//	for i := 0; i < 10; i++ {
//	    rc.ForceSend(i)
//	}
//	for v := range rc.C() { // 7, 8, 9 after Close
//	    fmt.Println(v)
//	}
type RingChannel[T any] struct {
	ch      chan T
	metrics Metrics
}

// New creates a RingChannel with the given capacity.
func New[T any](capacity int) *RingChannel[T] {
	if capacity <= 0 {
		panic("ringchan: capacity must be > 0")
	}
	return &RingChannel[T]{ch: make(chan T, capacity)}
}

// C returns the receive side. It is closed by Close.
func (rc *RingChannel[T]) C() <-chan T {
	return rc.ch
}

// trySend inserts v without blocking and reports false when the buffer is full.
func (rc *RingChannel[T]) trySend(v T) bool {
	select {
	case rc.ch <- v:
		atomic.AddInt64(&rc.metrics.Written, 1)
		return true
	default:
		return false
	}
}

// ForceSend inserts v, discarding the oldest element if needed.
// It reports whether an element was dropped.
func (rc *RingChannel[T]) ForceSend(v T) bool {
	if rc.trySend(v) {
		return false
	}

	dropped := false
	select {
	case <-rc.ch:
		atomic.AddInt64(&rc.metrics.Overwritten, 1)
		dropped = true
	default:
		// consumer drained it in the meantime
	}
	rc.ch <- v
	atomic.AddInt64(&rc.metrics.Written, 1)
	return dropped
}

// Close closes the receive side. Sending after Close panics.
func (rc *RingChannel[T]) Close() {
	close(rc.ch)
}

// GetMetrics returns a snapshot of the counters.
func (rc *RingChannel[T]) GetMetrics() Metrics {
	return Metrics{
		Written:     atomic.LoadInt64(&rc.metrics.Written),
		Overwritten: atomic.LoadInt64(&rc.metrics.Overwritten),
	}
}

// Metrics counts elements accepted and discarded by a RingChannel.
type Metrics struct {
	Written     int64
	Overwritten int64
}

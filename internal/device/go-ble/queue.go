package goble

import (
	"bytes"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/hedzr/go-ringbuf/v2/mpmc"
	"github.com/sirupsen/logrus"
	"github.com/srg/hrmon/internal/device"
)

// notificationQueue decouples the radio callback from the consumer.
// The callback never blocks: when the ring is full the oldest notification is overwritten.
type notificationQueue struct {
	buffer      mpmc.RichOverlappedRingBuffer[device.Notification]
	wake        chan struct{}
	out         chan device.Notification
	logger      *logrus.Logger
	overwritten atomic.Uint64
}

func newNotificationQueue(size uint32, logger *logrus.Logger) (*notificationQueue, error) {
	if size == 0 {
		return nil, fmt.Errorf("notification buffer size must be > 0")
	}
	return &notificationQueue{
		buffer: mpmc.NewOverlappedRingBuffer[device.Notification](size),
		wake:   make(chan struct{}, 1),
		out:    make(chan device.Notification),
		logger: logger,
	}, nil
}

// push is the go-ble notification handler; data is only valid during the call.
func (q *notificationQueue) push(data []byte) {
	n := device.Notification{Payload: bytes.Clone(data), Received: time.Now()}

	overwrites, err := q.buffer.EnqueueM(n)
	if err != nil {
		q.logger.WithError(err).Error("Failed to enqueue notification")
		return
	}
	if overwrites > 0 {
		total := q.overwritten.Add(uint64(overwrites))
		q.logger.WithField("overwritten", total).Warn("Notification consumer is lagging, oldest values dropped")
	}

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// run forwards queued notifications to out until done is closed, then closes out.
func (q *notificationQueue) run(done <-chan struct{}) {
	defer close(q.out)

	for {
		select {
		case <-done:
			return
		case <-q.wake:
		}

		for !q.buffer.IsEmpty() {
			n, err := q.buffer.Dequeue()
			if err != nil {
				break
			}
			select {
			case q.out <- n:
			case <-done:
				return
			}
		}
	}
}

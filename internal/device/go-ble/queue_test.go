package goble

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationQueue(t *testing.T) {
	logger := logrus.New()

	t.Run("rejects zero size", func(t *testing.T) {
		_, err := newNotificationQueue(0, logger)
		assert.Error(t, err)
	})

	t.Run("delivers in order and copies payloads", func(t *testing.T) {
		q, err := newNotificationQueue(8, logger)
		require.NoError(t, err)

		done := make(chan struct{})
		go q.run(done)
		defer close(done)

		buf := []byte{0x00, 60}
		q.push(buf)
		buf[1] = 99 // go-ble reuses the buffer after the callback returns
		q.push([]byte{0x00, 61})

		for _, want := range []byte{60, 61} {
			select {
			case n := <-q.out:
				assert.Equal(t, []byte{0x00, want}, n.Payload)
				assert.False(t, n.Received.IsZero())
			case <-time.After(time.Second):
				t.Fatal("notification MUST be delivered")
			}
		}
	})

	t.Run("push never blocks when the consumer stalls", func(t *testing.T) {
		q, err := newNotificationQueue(4, logger)
		require.NoError(t, err)

		pushed := make(chan struct{})
		go func() {
			for i := 0; i < 100; i++ {
				q.push([]byte{0x00, byte(i)})
			}
			close(pushed)
		}()

		select {
		case <-pushed:
		case <-time.After(time.Second):
			t.Fatal("push MUST NOT block on a full ring")
		}
		assert.NotZero(t, q.overwritten.Load(), "oldest values MUST be overwritten")
	})

	t.Run("closes output when done", func(t *testing.T) {
		q, err := newNotificationQueue(4, logger)
		require.NoError(t, err)

		done := make(chan struct{})
		go q.run(done)
		close(done)

		select {
		case _, ok := <-q.out:
			assert.False(t, ok, "output MUST be closed")
		case <-time.After(time.Second):
			t.Fatal("output MUST be closed after done")
		}
	})
}

package goble

import (
	"context"
	"errors"
	"sync"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	"github.com/srg/hrmon/internal/device"
	"github.com/srg/hrmon/internal/groutine"
)

// DefaultNotificationBuffer is the ring size of each notification queue
const DefaultNotificationBuffer = 128

// Radio implements device.Radio on top of go-ble
type Radio struct {
	central            Central
	logger             *logrus.Logger
	notificationBuffer uint32
	stopOnce           sync.Once
}

// NewRadio creates a Radio using DeviceFactory.
func NewRadio(logger *logrus.Logger) (*Radio, error) {
	central, err := DeviceFactory()
	if err != nil {
		return nil, err
	}
	return NewRadioWithCentral(central, logger), nil
}

// NewRadioWithCentral creates a Radio over an existing Central.
func NewRadioWithCentral(central Central, logger *logrus.Logger) *Radio {
	if logger == nil {
		logger = logrus.New()
	}
	return &Radio{
		central:            central,
		logger:             logger,
		notificationBuffer: DefaultNotificationBuffer,
	}
}

// Scan wraps the raw Central.Scan to convert ble.Advertisement to the device.Advertisement
func (r *Radio) Scan(ctx context.Context, allowDup bool, handler func(device.Advertisement)) error {
	bleHandler := func(adv ble.Advertisement) {
		handler(NewBLEAdvertisement(adv))
	}
	return NormalizeError(r.central.Scan(ctx, allowDup, bleHandler))
}

// Connect dials address in the background and reports the link lifecycle on the returned channel.
func (r *Radio) Connect(ctx context.Context, address string) <-chan device.LinkEvent {
	// Never more than two events: established + lost, or a single failure
	events := make(chan device.LinkEvent, 2)

	groutine.Go(ctx, "ble-dial", func(ctx context.Context) {
		defer close(events)

		r.logger.WithField("address", address).Debug("Dialing BLE device...")
		client, err := r.central.Dial(ctx, address)
		if err != nil {
			err = NormalizeError(err)
			r.logger.WithFields(logrus.Fields{
				"address": address,
				"error":   err,
			}).Error("Failed to dial BLE device")
			events <- device.LinkEvent{Kind: device.LinkFailed, Err: err}
			return
		}

		l := newLink(address, client, r.notificationBuffer, r.logger)
		r.logger.WithField("address", address).Info("BLE link established")
		events <- device.LinkEvent{Kind: device.LinkEstablished, Link: l}

		// Disconnected() may be nil for clients that cannot report drops
		select {
		case <-client.Disconnected():
			r.logger.WithField("address", address).Warn("Peripheral reported disconnection")
			l.shutdown()
			events <- device.LinkEvent{Kind: device.LinkLost, Err: device.ErrLinkLost}
		case <-l.closed:
		}
	})

	return events
}

// Stop releases the underlying central. Safe to call more than once.
func (r *Radio) Stop() error {
	var err error
	r.stopOnce.Do(func() {
		err = r.central.Stop()
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return NormalizeError(err)
	}
	return nil
}

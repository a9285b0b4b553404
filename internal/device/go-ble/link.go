package goble

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	"github.com/srg/hrmon/internal/device"
	"github.com/srg/hrmon/internal/groutine"
)

// bleLink is a device.Link over a connected go-ble client
type bleLink struct {
	address    string
	client     Client
	bufferSize uint32
	logger     *logrus.Logger

	mu         sync.Mutex
	subscribed []*ble.Characteristic

	closeOnce sync.Once
	closed    chan struct{}
}

func newLink(address string, client Client, bufferSize uint32, logger *logrus.Logger) *bleLink {
	return &bleLink{
		address:    address,
		client:     client,
		bufferSize: bufferSize,
		logger:     logger,
		closed:     make(chan struct{}),
	}
}

func (l *bleLink) Address() string {
	return l.address
}

// DiscoverServices runs a full profile discovery and converts it to device descriptions.
// go-ble does not take a context here, so the call is abandoned (not aborted) on cancellation.
func (l *bleLink) DiscoverServices(ctx context.Context) ([]device.ServiceInfo, error) {
	type result struct {
		profile *ble.Profile
		err     error
	}
	done := make(chan result, 1)

	groutine.Go(ctx, "ble-discover-profile", func(context.Context) {
		p, err := l.client.DiscoverProfile(true)
		done <- result{profile: p, err: err}
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-l.closed:
		return nil, device.ErrLinkLost
	case res := <-done:
		if res.err != nil {
			return nil, NormalizeError(res.err)
		}
		return convertProfile(res.profile), nil
	}
}

func (l *bleLink) Subscribe(ctx context.Context, char device.CharacteristicInfo) (<-chan device.Notification, error) {
	bleChar, ok := char.Handle.(*ble.Characteristic)
	if !ok || bleChar == nil {
		return nil, fmt.Errorf("characteristic %s has no live handle", char.UUID)
	}

	select {
	case <-l.closed:
		return nil, device.ErrLinkLost
	default:
	}

	q, err := newNotificationQueue(l.bufferSize, l.logger)
	if err != nil {
		return nil, err
	}

	if err := l.client.Subscribe(bleChar, false, q.push); err != nil {
		err = NormalizeError(err)
		l.logger.WithFields(logrus.Fields{
			"address":  l.address,
			"charUUID": char.UUID,
			"error":    err,
		}).Error("Failed to subscribe to characteristic notifications")
		return nil, err
	}

	l.mu.Lock()
	l.subscribed = append(l.subscribed, bleChar)
	l.mu.Unlock()

	groutine.Go(ctx, "ble-notification-drain", func(context.Context) {
		q.run(l.closed)
	})

	l.logger.WithFields(logrus.Fields{
		"address":  l.address,
		"charUUID": char.UUID,
	}).Debug("Subscribed to characteristic notifications")
	return q.out, nil
}

func (l *bleLink) WriteDescriptor(ctx context.Context, desc device.DescriptorInfo, value []byte) error {
	bleDesc, ok := desc.Handle.(*ble.Descriptor)
	if !ok || bleDesc == nil {
		return fmt.Errorf("descriptor %s has no live handle", desc.UUID)
	}

	done := make(chan error, 1)
	groutine.Go(ctx, "ble-write-descriptor", func(context.Context) {
		done <- l.client.WriteDescriptor(bleDesc, value)
	})

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-l.closed:
		return device.ErrLinkLost
	case err := <-done:
		return NormalizeError(err)
	}
}

// Close unsubscribes and cancels the connection. Safe to call more than once.
func (l *bleLink) Close() error {
	if !l.shutdown() {
		return nil
	}

	l.mu.Lock()
	subs := l.subscribed
	l.subscribed = nil
	l.mu.Unlock()

	for _, c := range subs {
		if err := l.client.Unsubscribe(c, false); err != nil {
			l.logger.WithFields(logrus.Fields{
				"address":  l.address,
				"charUUID": c.UUID.String(),
				"error":    err,
			}).Debug("Failed to unsubscribe during close")
		}
	}

	if err := l.client.CancelConnection(); err != nil {
		err = NormalizeError(err)
		l.logger.WithField("error", err).Warn("BLE device disconnected with errors")
		return err
	}

	l.logger.WithField("address", l.address).Info("BLE device disconnected successfully")
	return nil
}

// shutdown marks the link closed; it reports whether this call did it.
func (l *bleLink) shutdown() bool {
	first := false
	l.closeOnce.Do(func() {
		close(l.closed)
		first = true
	})
	return first
}

// convertProfile is a pure mapping from a go-ble profile to device descriptions.
func convertProfile(p *ble.Profile) []device.ServiceInfo {
	if p == nil {
		return nil
	}

	services := make([]device.ServiceInfo, 0, len(p.Services))
	for _, s := range p.Services {
		svc := device.ServiceInfo{
			UUID:   device.NormalizeUUID(s.UUID.String()),
			Handle: s,
		}
		for _, c := range s.Characteristics {
			char := device.CharacteristicInfo{
				UUID:   device.NormalizeUUID(c.UUID.String()),
				Handle: c,
			}
			cccdListed := false
			for _, d := range c.Descriptors {
				if d == c.CCCD {
					cccdListed = true
				}
				char.Descriptors = append(char.Descriptors, device.DescriptorInfo{
					UUID:   device.NormalizeUUID(d.UUID.String()),
					Handle: d,
				})
			}
			// Some backends only expose the CCCD through the dedicated field
			if c.CCCD != nil && !cccdListed {
				char.Descriptors = append(char.Descriptors, device.DescriptorInfo{
					UUID:   device.NormalizeUUID(c.CCCD.UUID.String()),
					Handle: c.CCCD,
				})
			}
			svc.Characteristics = append(svc.Characteristics, char)
		}
		services = append(services, svc)
	}
	return services
}

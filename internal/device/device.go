package device

import (
	"context"
	"sort"
	"time"
)

// txPowerUnavailable is reported by radio stacks when an advertisement carries no TX power.
const txPowerUnavailable = 127

// ScanningDevice represents a BLE device capable of scanning for advertisements.
// Scan blocks until ctx is done or the radio fails.
type ScanningDevice interface {
	Scan(ctx context.Context, allowDup bool, handler func(Advertisement)) error
}

// Advertisement is a single discovery event delivered by the radio.
type Advertisement interface {
	LocalName() string
	ManufacturerData() []byte
	Services() []string
	TxPowerLevel() int
	Connectable() bool
	RSSI() int
	Addr() string
}

// Radio is the process-wide BLE capability used by the core.
type Radio interface {
	ScanningDevice

	// Connect starts dialing address and returns the stream of link events.
	// The first event is either LinkEstablished or LinkFailed; an established
	// link emits at most one LinkLost afterwards. The channel is closed after
	// the final event.
	Connect(ctx context.Context, address string) <-chan LinkEvent
}

// Link is a live GATT connection to a single peripheral.
type Link interface {
	Address() string
	DiscoverServices(ctx context.Context) ([]ServiceInfo, error)
	// Subscribe registers for notifications of the characteristic. The returned
	// channel is closed when the link closes.
	Subscribe(ctx context.Context, char CharacteristicInfo) (<-chan Notification, error)
	WriteDescriptor(ctx context.Context, desc DescriptorInfo, value []byte) error
	Close() error
}

// LinkEventKind identifies a link lifecycle event.
type LinkEventKind int

const (
	LinkEstablished LinkEventKind = iota
	LinkFailed
	LinkLost
)

func (k LinkEventKind) String() string {
	switch k {
	case LinkEstablished:
		return "established"
	case LinkFailed:
		return "failed"
	case LinkLost:
		return "lost"
	default:
		return "unknown"
	}
}

// LinkEvent is delivered on the channel returned by Radio.Connect.
type LinkEvent struct {
	Kind LinkEventKind
	Link Link  // set for LinkEstablished
	Err  error // set for LinkFailed, optional for LinkLost
}

// Notification is a single characteristic value pushed by the peripheral.
type Notification struct {
	Payload  []byte
	Received time.Time
}

// ServiceInfo describes a discovered GATT service.
// Handle is an opaque reference owned by the radio adapter.
type ServiceInfo struct {
	UUID            string
	Handle          any
	Characteristics []CharacteristicInfo
}

// CharacteristicInfo describes a discovered GATT characteristic.
type CharacteristicInfo struct {
	UUID        string
	Handle      any
	Descriptors []DescriptorInfo
}

// DescriptorInfo describes a discovered GATT descriptor.
type DescriptorInfo struct {
	UUID   string
	Handle any
}

// FindService returns the service with the given UUID, comparing normalized forms.
func FindService(services []ServiceInfo, uuid string) (ServiceInfo, bool) {
	want := NormalizeUUID(uuid)
	for _, s := range services {
		if NormalizeUUID(s.UUID) == want {
			return s, true
		}
	}
	return ServiceInfo{}, false
}

// Characteristic returns the characteristic with the given UUID.
func (s ServiceInfo) Characteristic(uuid string) (CharacteristicInfo, bool) {
	want := NormalizeUUID(uuid)
	for _, c := range s.Characteristics {
		if NormalizeUUID(c.UUID) == want {
			return c, true
		}
	}
	return CharacteristicInfo{}, false
}

// Descriptor returns the descriptor with the given UUID.
func (c CharacteristicInfo) Descriptor(uuid string) (DescriptorInfo, bool) {
	want := NormalizeUUID(uuid)
	for _, d := range c.Descriptors {
		if NormalizeUUID(d.UUID) == want {
			return d, true
		}
	}
	return DescriptorInfo{}, false
}

// PeripheralHandle is the snapshot of a peripheral taken from one discovery event.
// A later discovery of the same address replaces it entirely.
type PeripheralHandle struct {
	Address            string    `json:"address"`
	Name               string    `json:"name,omitempty"`
	RSSI               int       `json:"rssi"`
	Connectable        bool      `json:"connectable"`
	AdvertisedServices []string  `json:"advertised_services,omitempty"`
	TxPower            *int      `json:"tx_power,omitempty"`
	LastSeen           time.Time `json:"last_seen"`
}

// NewPeripheralHandle builds a handle from an advertisement seen at the given time.
func NewPeripheralHandle(adv Advertisement, seen time.Time) PeripheralHandle {
	p := PeripheralHandle{
		Address:     adv.Addr(),
		Name:        adv.LocalName(),
		RSSI:        adv.RSSI(),
		Connectable: adv.Connectable(),
		LastSeen:    seen,
	}

	if svcs := adv.Services(); len(svcs) > 0 {
		p.AdvertisedServices = NormalizeUUIDs(svcs)
		sort.Strings(p.AdvertisedServices)
	}

	if tx := adv.TxPowerLevel(); tx != txPowerUnavailable {
		p.TxPower = &tx
	}

	return p
}

// DisplayName returns the advertised name, falling back to the address.
func (p PeripheralHandle) DisplayName() string {
	if p.Name == "" {
		return p.Address
	}
	return p.Name
}

// Advertises reports whether the peripheral listed the service in its advertisement.
func (p PeripheralHandle) Advertises(uuid string) bool {
	want := NormalizeUUID(uuid)
	for _, s := range p.AdvertisedServices {
		if s == want {
			return true
		}
	}
	return false
}

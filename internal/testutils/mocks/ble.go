// Package mocks holds testify mocks for the go-ble types used by the radio adapter.
package mocks

import (
	"context"

	"github.com/go-ble/ble"
	goble "github.com/srg/hrmon/internal/device/go-ble"
	"github.com/stretchr/testify/mock"
)

// MockAddr is a mock ble.Addr
type MockAddr struct {
	mock.Mock
}

func (m *MockAddr) String() string {
	return m.Called().String(0)
}

// MockAdvertisement is a mock ble.Advertisement
type MockAdvertisement struct {
	mock.Mock
}

var _ ble.Advertisement = (*MockAdvertisement)(nil)

func (m *MockAdvertisement) LocalName() string {
	return m.Called().String(0)
}

func (m *MockAdvertisement) ManufacturerData() []byte {
	args := m.Called()
	if v := args.Get(0); v != nil {
		return v.([]byte)
	}
	return nil
}

func (m *MockAdvertisement) ServiceData() []ble.ServiceData {
	args := m.Called()
	if v := args.Get(0); v != nil {
		return v.([]ble.ServiceData)
	}
	return nil
}

func (m *MockAdvertisement) Services() []ble.UUID {
	return m.uuids(m.Called())
}

func (m *MockAdvertisement) OverflowService() []ble.UUID {
	return m.uuids(m.Called())
}

func (m *MockAdvertisement) SolicitedService() []ble.UUID {
	return m.uuids(m.Called())
}

func (m *MockAdvertisement) TxPowerLevel() int {
	return m.Called().Int(0)
}

func (m *MockAdvertisement) Connectable() bool {
	return m.Called().Bool(0)
}

func (m *MockAdvertisement) RSSI() int {
	return m.Called().Int(0)
}

func (m *MockAdvertisement) Addr() ble.Addr {
	args := m.Called()
	if v := args.Get(0); v != nil {
		return v.(ble.Addr)
	}
	return nil
}

func (m *MockAdvertisement) uuids(args mock.Arguments) []ble.UUID {
	if v := args.Get(0); v != nil {
		return v.([]ble.UUID)
	}
	return nil
}

// MockCentral is a mock goble.Central
type MockCentral struct {
	mock.Mock
}

var _ goble.Central = (*MockCentral)(nil)

func (m *MockCentral) Scan(ctx context.Context, allowDup bool, h ble.AdvHandler) error {
	return m.Called(ctx, allowDup, h).Error(0)
}

func (m *MockCentral) Dial(ctx context.Context, address string) (goble.Client, error) {
	args := m.Called(ctx, address)
	if v := args.Get(0); v != nil {
		return v.(goble.Client), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockCentral) Stop() error {
	return m.Called().Error(0)
}

// MockClient is a mock goble.Client
type MockClient struct {
	mock.Mock
}

var _ goble.Client = (*MockClient)(nil)

func (m *MockClient) DiscoverProfile(force bool) (*ble.Profile, error) {
	args := m.Called(force)
	if v := args.Get(0); v != nil {
		return v.(*ble.Profile), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockClient) WriteDescriptor(d *ble.Descriptor, v []byte) error {
	return m.Called(d, v).Error(0)
}

func (m *MockClient) Subscribe(c *ble.Characteristic, ind bool, h ble.NotificationHandler) error {
	return m.Called(c, ind, h).Error(0)
}

func (m *MockClient) Unsubscribe(c *ble.Characteristic, ind bool) error {
	return m.Called(c, ind).Error(0)
}

func (m *MockClient) CancelConnection() error {
	return m.Called().Error(0)
}

func (m *MockClient) Disconnected() <-chan struct{} {
	args := m.Called()
	if v := args.Get(0); v != nil {
		return v.(<-chan struct{})
	}
	return nil
}

package goble_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-ble/ble"
	"github.com/srg/hrmon/internal/device"
	goble "github.com/srg/hrmon/internal/device/go-ble"
	"github.com/srg/hrmon/internal/testutils"
	"github.com/srg/hrmon/internal/testutils/mocks"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

const testAddress = "AA:BB:CC:DD:EE:FF"

type RadioTestSuite struct {
	suite.Suite

	helper  *testutils.TestHelper
	central *mocks.MockCentral
	client  *mocks.MockClient
	radio   *goble.Radio

	disconnected chan struct{}
	cccd         *ble.Descriptor
	measurement  *ble.Characteristic
	profile      *ble.Profile
}

func TestRadioTestSuite(t *testing.T) {
	suite.Run(t, new(RadioTestSuite))
}

func (s *RadioTestSuite) SetupTest() {
	s.helper = testutils.NewTestHelper(s.T())
	s.central = &mocks.MockCentral{}
	s.client = &mocks.MockClient{}
	s.radio = goble.NewRadioWithCentral(s.central, s.helper.Logger)
	s.disconnected = make(chan struct{})

	// CCCD only reachable through the dedicated field, as on darwin
	s.cccd = &ble.Descriptor{UUID: ble.UUID16(0x2902)}
	s.measurement = &ble.Characteristic{
		UUID:     ble.UUID16(0x2a37),
		Property: ble.CharNotify,
		CCCD:     s.cccd,
	}
	battery := &ble.Characteristic{
		UUID:     ble.UUID16(0x2a19),
		Property: ble.CharRead,
	}
	s.profile = &ble.Profile{Services: []*ble.Service{
		{UUID: ble.UUID16(0x180f), Characteristics: []*ble.Characteristic{battery}},
		{UUID: ble.MustParse("0000180d-0000-1000-8000-00805f9b34fb"), Characteristics: []*ble.Characteristic{s.measurement}},
	}}
}

func (s *RadioTestSuite) connect(ctx context.Context) device.Link {
	s.client.On("Disconnected").Return((<-chan struct{})(s.disconnected))
	s.central.On("Dial", mock.Anything, testAddress).Return(s.client, nil).Once()

	events := s.radio.Connect(ctx, testAddress)
	ev := s.nextEvent(events)
	s.Require().Equal(device.LinkEstablished, ev.Kind, "first event MUST be LinkEstablished")
	s.Require().NotNil(ev.Link)
	s.Equal(testAddress, ev.Link.Address())
	return ev.Link
}

func (s *RadioTestSuite) nextEvent(events <-chan device.LinkEvent) device.LinkEvent {
	select {
	case ev, ok := <-events:
		s.Require().True(ok, "event channel MUST NOT be closed yet")
		return ev
	case <-time.After(time.Second):
		s.FailNow("timed out waiting for link event")
	}
	return device.LinkEvent{}
}

func (s *RadioTestSuite) requireClosed(events <-chan device.LinkEvent) {
	select {
	case ev, ok := <-events:
		s.Require().False(ok, "event channel MUST be closed, got %v", ev.Kind)
	case <-time.After(time.Second):
		s.FailNow("event channel was not closed")
	}
}

func (s *RadioTestSuite) TestScanWrapsAdvertisements() {
	// GOAL: Verify raw go-ble advertisements reach the handler as device.Advertisement
	//
	// TEST SCENARIO: Central delivers one advertisement → handler sees normalized fields

	adv := testutils.NewAdvertisementBuilder().
		WithAddress(testAddress).
		WithName("Polar H10").
		WithRSSI(-61).
		WithServices("180D").
		BuildBLE()

	s.central.On("Scan", mock.Anything, false, mock.Anything).
		Run(func(args mock.Arguments) {
			args.Get(2).(ble.AdvHandler)(adv)
		}).
		Return(context.DeadlineExceeded)

	var got []device.Advertisement
	err := s.radio.Scan(context.Background(), false, func(a device.Advertisement) {
		got = append(got, a)
	})

	s.ErrorIs(err, context.DeadlineExceeded, "context errors MUST pass through")
	s.Require().Len(got, 1)
	s.Equal(testAddress, got[0].Addr())
	s.Equal("Polar H10", got[0].LocalName())
	s.Equal(-61, got[0].RSSI())
	s.Equal([]string{"180d"}, device.NormalizeUUIDs(got[0].Services()))
	s.Equal(127, got[0].TxPowerLevel())
}

func (s *RadioTestSuite) TestScanNormalizesErrors() {
	s.central.On("Scan", mock.Anything, true, mock.Anything).
		Return(errors.New("central manager has invalid state: have=4 want=5"))

	err := s.radio.Scan(context.Background(), true, func(device.Advertisement) {})

	s.ErrorIs(err, device.ErrBluetoothOff)
}

func (s *RadioTestSuite) TestConnectFailure() {
	s.central.On("Dial", mock.Anything, testAddress).Return(nil, errors.New("dial: permission denied"))

	events := s.radio.Connect(context.Background(), testAddress)
	ev := s.nextEvent(events)

	s.Equal(device.LinkFailed, ev.Kind)
	s.Nil(ev.Link)
	s.ErrorIs(ev.Err, device.ErrPermissionDenied)
	s.requireClosed(events)
}

func (s *RadioTestSuite) TestLinkLost() {
	// GOAL: Verify a peripheral-side disconnection surfaces as exactly one LinkLost
	//
	// TEST SCENARIO: Link established → client reports disconnect → LinkLost then closed channel

	s.client.On("Disconnected").Return((<-chan struct{})(s.disconnected))
	s.central.On("Dial", mock.Anything, testAddress).Return(s.client, nil)

	events := s.radio.Connect(context.Background(), testAddress)
	ev := s.nextEvent(events)
	s.Require().Equal(device.LinkEstablished, ev.Kind)
	link := ev.Link

	close(s.disconnected)

	ev = s.nextEvent(events)
	s.Equal(device.LinkLost, ev.Kind)
	s.Nil(ev.Link, "LinkLost MUST NOT carry a link")
	s.ErrorIs(ev.Err, device.ErrLinkLost)
	s.requireClosed(events)

	s.client.On("DiscoverProfile", true).Return(nil, errors.New("disconnected")).Maybe()
	_, err := link.DiscoverServices(context.Background())
	s.ErrorIs(err, device.ErrLinkLost, "a lost link MUST reject further GATT operations")
}

func (s *RadioTestSuite) TestDiscoverServices() {
	link := s.connect(context.Background())
	s.client.On("DiscoverProfile", true).Return(s.profile, nil)

	services, err := link.DiscoverServices(context.Background())
	s.Require().NoError(err)
	s.Require().Len(services, 2)

	hr, ok := device.FindService(services, "180d")
	s.Require().True(ok, "heart rate service MUST be found by its short UUID")
	s.Equal("180d", hr.UUID)

	char, ok := hr.Characteristic("2A37")
	s.Require().True(ok)
	s.Same(s.measurement, char.Handle)

	cccd, ok := char.Descriptor("2902")
	s.Require().True(ok, "CCCD MUST be exposed even when only set on the characteristic")
	s.Same(s.cccd, cccd.Handle)
	s.Len(char.Descriptors, 1)
}

func (s *RadioTestSuite) TestDiscoverServicesError() {
	link := s.connect(context.Background())
	s.client.On("DiscoverProfile", true).Return(nil, errors.New("device not connected"))

	_, err := link.DiscoverServices(context.Background())

	s.ErrorIs(err, device.ErrLinkLost)
}

func (s *RadioTestSuite) TestDiscoverServicesCancelled() {
	link := s.connect(context.Background())
	release := make(chan time.Time)
	defer close(release)
	s.client.On("DiscoverProfile", true).WaitUntil(release).Return(s.profile, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := link.DiscoverServices(ctx)

	s.ErrorIs(err, context.Canceled, "discovery MUST be abandoned on cancellation")
}

func (s *RadioTestSuite) TestSubscribeWriteAndClose() {
	// GOAL: Verify the full notification path and orderly teardown
	//
	// TEST SCENARIO: Subscribe → CCCD write → notifications forwarded → Close unsubscribes and closes the stream

	ctx := s.helper.Context(5 * time.Second)
	link := s.connect(ctx)
	s.client.On("DiscoverProfile", true).Return(s.profile, nil)

	var handler ble.NotificationHandler
	s.client.On("Subscribe", s.measurement, false, mock.Anything).
		Run(func(args mock.Arguments) {
			handler = args.Get(2).(ble.NotificationHandler)
		}).
		Return(nil)
	s.client.On("WriteDescriptor", s.cccd, []byte{0x01, 0x00}).Return(nil)
	s.client.On("Unsubscribe", s.measurement, false).Return(nil)
	s.client.On("CancelConnection").Return(nil).Once()

	services, err := link.DiscoverServices(ctx)
	s.Require().NoError(err)
	hr, _ := device.FindService(services, "180d")
	char, _ := hr.Characteristic("2a37")
	cccd, _ := char.Descriptor("2902")

	notifications, err := link.Subscribe(ctx, char)
	s.Require().NoError(err)
	s.Require().NotNil(handler)

	s.Require().NoError(link.WriteDescriptor(ctx, cccd, []byte{0x01, 0x00}))

	handler([]byte{0x00, 72})
	select {
	case n := <-notifications:
		s.Equal([]byte{0x00, 72}, n.Payload)
	case <-time.After(time.Second):
		s.FailNow("notification MUST be forwarded")
	}

	s.NoError(link.Close())
	s.NoError(link.Close(), "second Close MUST be a no-op")

	select {
	case _, ok := <-notifications:
		s.False(ok, "notification stream MUST close with the link")
	case <-time.After(time.Second):
		s.FailNow("notification stream was not closed")
	}

	s.client.AssertNumberOfCalls(s.T(), "CancelConnection", 1)
	s.client.AssertCalled(s.T(), "Unsubscribe", s.measurement, false)
}

func (s *RadioTestSuite) TestSubscribeRejectsForeignHandles() {
	link := s.connect(context.Background())

	_, err := link.Subscribe(context.Background(), device.CharacteristicInfo{UUID: "2a37", Handle: "not-a-ble-characteristic"})
	s.Error(err)

	err = link.WriteDescriptor(context.Background(), device.DescriptorInfo{UUID: "2902"}, []byte{0x01, 0x00})
	s.Error(err)
}

func (s *RadioTestSuite) TestStopOnce() {
	s.central.On("Stop").Return(nil).Once()

	s.NoError(s.radio.Stop())
	s.NoError(s.radio.Stop())

	s.central.AssertNumberOfCalls(s.T(), "Stop", 1)
}

package testutils

import (
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/hrmon/internal/device"
	"github.com/srg/hrmon/internal/devicefactory"
	"github.com/stretchr/testify/suite"
)

// FakeRadioSuite provides a reusable test suite backed by a FakeRadio.
//
// A fresh radio is installed as devicefactory.RadioFactory before each test.
// Configure it in SetupTest and call the parent first:
//
//	type ScanSuite struct {
//	    testutils.FakeRadioSuite
//	}
//
//	func (s *ScanSuite) SetupTest() {
//	    s.FakeRadioSuite.SetupTest()
//	    s.Radio.WithAdvertisements(
//	        testutils.CreateMockAdvertisement("Polar H10", "AA:BB:CC:DD:EE:FF", -50).Build(),
//	    )
//	}
type FakeRadioSuite struct {
	suite.Suite

	Helper      *TestHelper
	Logger      *logrus.Logger
	Radio       *FakeRadio
	TestTimeout time.Duration

	originalFactory func(*logrus.Logger) (device.Radio, error)
}

// SetupSuite initializes the helper and logger once for all tests.
func (s *FakeRadioSuite) SetupSuite() {
	s.Helper = NewTestHelper(s.T())
	s.Logger = s.Helper.Logger
	s.TestTimeout = 2 * time.Second
	s.originalFactory = devicefactory.RadioFactory
}

// SetupTest installs a new FakeRadio before each test.
func (s *FakeRadioSuite) SetupTest() {
	s.Radio = NewFakeRadio(s.Logger)
	devicefactory.RadioFactory = func(*logrus.Logger) (device.Radio, error) {
		return s.Radio, nil
	}
	s.Require().NoError(devicefactory.Reset())
}

// TearDownTest restores the real radio factory.
func (s *FakeRadioSuite) TearDownTest() {
	s.Require().NoError(devicefactory.Reset())
	if s.originalFactory != nil {
		devicefactory.RadioFactory = s.originalFactory
	}
	s.Radio = nil
}

// WaitUntil waits for cond using the suite timeout.
func (s *FakeRadioSuite) WaitUntil(cond func() bool, msgAndArgs ...interface{}) {
	s.Require().Eventually(cond, s.TestTimeout, 5*time.Millisecond, msgAndArgs...)
}

package main

import (
	"bytes"
	"context"
	"time"

	"github.com/srg/hrmon/internal/testutils"
)

const (
	TestStrapAddress = "AA:BB:CC:DD:EE:FF"
	TestOtherAddress = "11:22:33:44:55:66"
)

// CommandTestSuite runs hrmon commands against a FakeRadio installed as the shared radio.
type CommandTestSuite struct {
	testutils.FakeRadioSuite
}

// SetupTest advertises a heart rate strap and a trainer, and makes the strap connectable.
func (s *CommandTestSuite) SetupTest() {
	s.FakeRadioSuite.SetupTest()
	s.Radio.WithAdvertisements(
		testutils.CreateMockAdvertisement("Polar H10", TestStrapAddress, -48).WithServices("180D").Build(),
		testutils.CreateMockAdvertisement("Kickr", TestOtherAddress, -71).WithServices("1826").Build(),
	)
	testutils.CreateHeartRatePeripheral(s.Radio, TestStrapAddress)
}

// ExecuteCommand runs the root command with args, returns stdout, stderr and error.
func (s *CommandTestSuite) ExecuteCommand(args ...string) (string, string, error) {
	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	cmd := newRootCmd()
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

// NotifyUntilClosed feeds payloads round-robin into the next link until it closes.
func (s *CommandTestSuite) NotifyUntilClosed(payloads ...[]byte) {
	go func() {
		link, ok := s.Radio.NextLink(s.TestTimeout)
		if !ok {
			return
		}
		deadline := time.Now().Add(s.TestTimeout)
		for i := 0; time.Now().Before(deadline); i++ {
			if !link.Notify(payloads[i%len(payloads)]) {
				return
			}
			time.Sleep(5 * time.Millisecond)
		}
	}()
}

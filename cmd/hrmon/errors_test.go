package main

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/srg/hrmon/internal/device"
	"github.com/stretchr/testify/assert"
)

func TestFormatUserError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{
			name:     "nil",
			err:      nil,
			expected: "",
		},
		{
			name:     "unknown peripheral",
			err:      &device.NotFoundError{Resource: "peripheral", UUIDs: []string{"AA:BB"}},
			expected: "device AA:BB was not found; make sure it is advertising and nearby",
		},
		{
			name:     "bluetooth off wrapped",
			err:      fmt.Errorf("scan: %w", device.ErrBluetoothOff),
			expected: "Bluetooth is turned off; enable the adapter and try again",
		},
		{
			name:     "missing service",
			err:      device.NewError(device.KindServiceNotFound, &device.NotFoundError{Resource: "service", UUIDs: []string{"180d"}}),
			expected: "device does not expose the heart rate service",
		},
		{
			name:     "descriptor write with cause",
			err:      device.NewError(device.KindDescriptorWriteError, errors.New("att error 0x03")),
			expected: "failed to enable heart rate notifications: att error 0x03",
		},
		{
			name:     "connect with message",
			err:      device.Errorf(device.KindConnectError, "adapter busy"),
			expected: "failed to connect: adapter busy",
		},
		{
			name:     "timeout",
			err:      device.TimeoutError("service_discovery", 10*time.Second),
			expected: "timeout: service_discovery did not complete within 10s",
		},
		{
			name:     "link lost",
			err:      device.NewError(device.KindLinkLost, errors.New("supervision timeout")),
			expected: "connection lost",
		},
		{
			name:     "plain error",
			err:      errors.New("boom"),
			expected: "boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatUserError(tt.err))
		})
	}
}

func TestFormatVersion(t *testing.T) {
	assert.Equal(t, "v1.2.3", formatVersion("1.2.3"))
	assert.Equal(t, "dev", formatVersion("dev"))
	assert.Equal(t, "", formatVersion(""))
}

package device_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/srg/hrmon/internal/device"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_IsComparesKind(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		target   error
		expected bool
	}{
		{
			name:     "sentinel matches itself",
			err:      device.ErrServiceNotFound,
			target:   device.ErrServiceNotFound,
			expected: true,
		},
		{
			name:     "wrapped cause still matches kind",
			err:      device.NewError(device.KindConnectError, errors.New("dial failed")),
			target:   device.ErrConnectError,
			expected: true,
		},
		{
			name:     "different kind does not match",
			err:      device.NewError(device.KindConnectError, nil),
			target:   device.ErrLinkLost,
			expected: false,
		},
		{
			name:     "nested kind found through unwrap",
			err:      device.NewError(device.KindConnectError, device.ErrPermissionDenied),
			target:   device.ErrPermissionDenied,
			expected: true,
		},
		{
			name:     "fmt wrapping preserves kind",
			err:      fmt.Errorf("scan: %w", device.ErrScanAlreadyActive),
			target:   device.ErrScanAlreadyActive,
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, errors.Is(tt.err, tt.target))
		})
	}
}

func TestError_Message(t *testing.T) {
	assert.Equal(t, "service not found", device.ErrServiceNotFound.Error())
	assert.Equal(t, "connect error: dial failed", device.NewError(device.KindConnectError, errors.New("dial failed")).Error())
	assert.Equal(t, "timeout: connect did not complete within 2s", device.TimeoutError("connect", 2e9).Error())

	var nilErr *device.Error
	assert.Equal(t, "<nil>", nilErr.Error())
	assert.Nil(t, nilErr.Unwrap())
}

func TestKindOf(t *testing.T) {
	kind, ok := device.KindOf(fmt.Errorf("wrapped: %w", device.ErrDecode))
	require.True(t, ok)
	assert.Equal(t, device.KindDecodeError, kind)

	_, ok = device.KindOf(errors.New("plain"))
	assert.False(t, ok)
}

func TestNotFoundError(t *testing.T) {
	tests := []struct {
		name     string
		err      *device.NotFoundError
		expected string
	}{
		{"no identifiers", &device.NotFoundError{Resource: "service"}, "service not found"},
		{"single identifier", &device.NotFoundError{Resource: "peripheral", UUIDs: []string{"AA:BB"}}, `peripheral "AA:BB" not found`},
		{"characteristic in service", &device.NotFoundError{Resource: "characteristic", UUIDs: []string{"180d", "2a37"}}, `characteristic "2a37" not found in service "180d"`},
		{"descriptor in characteristic", &device.NotFoundError{Resource: "descriptor", UUIDs: []string{"180d", "2a37", "2902"}}, `descriptor "2902" not found in characteristic "2a37"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

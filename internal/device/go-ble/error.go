package goble

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/srg/hrmon/internal/device"
)

// ErrUnsupportedPlatform is returned by DeviceFactory on platforms without a go-ble backend.
var ErrUnsupportedPlatform = errors.New("ble: no radio backend for this platform")

// NormalizeError maps known go-ble error strings to classified device errors.
// It ensures consistent handling even if the upstream library changes messages slightly.
// Returns wrapped errors to preserve original context.
func NormalizeError(err error) error {
	if err == nil {
		return nil
	}

	// Cancellation is reported as-is so callers can tell it apart from radio failures
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	// Already classified
	if _, ok := device.KindOf(err); ok {
		return err
	}

	msg := err.Error()
	switch {
	case containsIgnoreCase(msg, "invalid state: have=4"):
		return fmt.Errorf("%w: %v", device.ErrBluetoothOff, err)
	case containsIgnoreCase(msg, "bluetooth is turned off"):
		return fmt.Errorf("%w: %v", device.ErrBluetoothOff, err)
	case containsIgnoreCase(msg, "invalid state: have=3"):
		// CBManagerStateUnauthorized
		return fmt.Errorf("%w: %v", device.ErrPermissionDenied, err)
	case containsIgnoreCase(msg, "operation not permitted"),
		containsIgnoreCase(msg, "permission denied"),
		containsIgnoreCase(msg, "not authorized"):
		return fmt.Errorf("%w: %v", device.ErrPermissionDenied, err)
	case containsIgnoreCase(msg, "device not connected"),
		containsIgnoreCase(msg, "disconnected"):
		return fmt.Errorf("%w: %v", device.ErrLinkLost, err)
	default:
		return err
	}
}

// containsIgnoreCase checks the substring case-insensitively
func containsIgnoreCase(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

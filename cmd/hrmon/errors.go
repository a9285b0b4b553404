package main

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/srg/hrmon/internal/device"
)

// FormatUserError turns an error into a one-line message for the terminal.
func FormatUserError(err error) string {
	if err == nil {
		return ""
	}

	var nf *device.NotFoundError
	if errors.As(err, &nf) && nf.Resource == "peripheral" && len(nf.UUIDs) > 0 {
		return fmt.Sprintf("device %s was not found; make sure it is advertising and nearby", nf.UUIDs[0])
	}

	switch {
	case errors.Is(err, device.ErrBluetoothOff):
		return "Bluetooth is turned off; enable the adapter and try again"
	case errors.Is(err, device.ErrPermissionDenied):
		if runtime.GOOS == "linux" {
			return "permission denied accessing Bluetooth; run as root or grant CAP_NET_ADMIN and CAP_NET_RAW"
		}
		return "permission denied accessing Bluetooth; allow Bluetooth access for this terminal"
	case errors.Is(err, device.ErrServiceNotFound):
		return "device does not expose the heart rate service"
	case errors.Is(err, device.ErrCharacteristicNotFound):
		return "device does not expose the heart rate measurement characteristic"
	case errors.Is(err, device.ErrDescriptorWriteError):
		return withDetail("failed to enable heart rate notifications", err)
	case errors.Is(err, device.ErrLinkLost):
		return "connection lost"
	case errors.Is(err, device.ErrTimeout):
		return err.Error()
	case errors.Is(err, device.ErrConnectError):
		return withDetail("failed to connect", err)
	}
	return err.Error()
}

// withDetail appends the message or cause of the outermost classified error.
func withDetail(prefix string, err error) string {
	var e *device.Error
	if !errors.As(err, &e) {
		return prefix
	}
	switch {
	case e.Msg != "":
		return prefix + ": " + e.Msg
	case e.Err != nil:
		return prefix + ": " + e.Err.Error()
	}
	return prefix
}

package devicefactory

import (
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/srg/hrmon/internal/device"
	goble "github.com/srg/hrmon/internal/device/go-ble"
)

// RadioFactory creates the device.Radio used by the monitor.
// This is a variable so that it can be overridden in tests.
var RadioFactory = func(logger *logrus.Logger) (device.Radio, error) {
	return goble.NewRadio(logger)
}

var (
	mu     sync.Mutex
	shared device.Radio
)

// SharedRadio returns the process-wide radio, creating it on first use.
// A failed creation is not cached so a later call may retry.
func SharedRadio(logger *logrus.Logger) (device.Radio, error) {
	mu.Lock()
	defer mu.Unlock()

	if shared != nil {
		return shared, nil
	}

	r, err := RadioFactory(logger)
	if err != nil {
		return nil, err
	}
	shared = r
	return shared, nil
}

// Reset drops the shared radio, stopping it when it supports Stop.
func Reset() error {
	mu.Lock()
	defer mu.Unlock()

	r := shared
	shared = nil

	if s, ok := r.(interface{ Stop() error }); ok {
		return s.Stop()
	}
	return nil
}

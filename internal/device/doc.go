// Package device defines the domain model shared by the heart rate monitor
// core and the radio boundary it talks to.
//
// This package contains:
//   - PeripheralHandle, the immutable snapshot of a discovered peripheral
//   - ConnectionState, the lifecycle of a heart rate session
//   - the Radio and Link capabilities implemented by radio adapters
//   - GATT service, characteristic and descriptor descriptions
//   - typed error kinds used across scanning, connection and decoding
package device

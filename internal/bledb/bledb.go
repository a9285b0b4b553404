// Package bledb holds the Bluetooth SIG numbers this module depends on and
// the name table used for display.
//
// UUIDs are stored in the normalized internal form: lowercase hex without
// dashes, with SIG base UUIDs collapsed to their 16-bit short form.
package bledb

import (
	"fmt"
	"strings"
)

// Load-bearing GATT identifiers of the Heart Rate profile.
const (
	HeartRateService           = "180d"
	HeartRateMeasurement       = "2a37"
	ClientCharacteristicConfig = "2902"
)

// sigBaseSuffix is the tail of the Bluetooth SIG base UUID
// 0000xxxx-0000-1000-8000-00805f9b34fb in normalized form.
const sigBaseSuffix = "00001000800000805f9b34fb"

var services = map[string]string{
	"1800":           "Generic Access",
	"1801":           "Generic Attribute",
	"180a":           "Device Information",
	HeartRateService: "Heart Rate",
	"180f":           "Battery Service",
	"1816":           "Cycling Speed and Cadence",
	"1818":           "Cycling Power",
	"1826":           "Fitness Machine",
}

var characteristics = map[string]string{
	"2a00":               "Device Name",
	"2a01":               "Appearance",
	"2a19":               "Battery Level",
	"2a29":               "Manufacturer Name String",
	HeartRateMeasurement: "Heart Rate Measurement",
	"2a38":               "Body Sensor Location",
	"2a39":               "Heart Rate Control Point",
}

var descriptors = map[string]string{
	"2900":                     "Characteristic Extended Properties",
	"2901":                     "Characteristic User Descriptor",
	ClientCharacteristicConfig: "Client Characteristic Configuration",
	"2904":                     "Characteristic Presentation Format",
}

// NormalizeUUID converts a UUID string to the internal form (lowercase, no dashes,
// no braces, no 0x prefix). Full SIG base UUIDs are reduced to the 16-bit short form.
func NormalizeUUID(uuid string) string {
	u := strings.ToLower(strings.TrimSpace(uuid))
	u = strings.TrimPrefix(u, "0x")
	u = strings.Trim(u, "{}")
	u = strings.ReplaceAll(u, "-", "")

	if len(u) == 32 && strings.HasPrefix(u, "0000") && strings.HasSuffix(u, sigBaseSuffix) {
		return u[4:8]
	}
	return u
}

// NormalizeUUIDs normalizes a slice of UUID strings.
func NormalizeUUIDs(uuids []string) []string {
	if uuids == nil {
		return nil
	}
	result := make([]string, len(uuids))
	for i, u := range uuids {
		result[i] = NormalizeUUID(u)
	}
	return result
}

// LookupService returns the SIG name of a service, or "" if unknown.
func LookupService(uuid string) string {
	return services[NormalizeUUID(uuid)]
}

// LookupCharacteristic returns the SIG name of a characteristic, or "" if unknown.
func LookupCharacteristic(uuid string) string {
	return characteristics[NormalizeUUID(uuid)]
}

// LookupDescriptor returns the SIG name of a descriptor, or "" if unknown.
func LookupDescriptor(uuid string) string {
	return descriptors[NormalizeUUID(uuid)]
}

// Validate checks the constant table once at startup: every identifier must
// already be normalized, be a 16-bit hex value and resolve to a name.
func Validate() error {
	checks := []struct {
		uuid   string
		lookup func(string) string
	}{
		{HeartRateService, LookupService},
		{HeartRateMeasurement, LookupCharacteristic},
		{ClientCharacteristicConfig, LookupDescriptor},
	}

	for _, c := range checks {
		if NormalizeUUID(c.uuid) != c.uuid {
			return fmt.Errorf("bledb: uuid %q is not normalized", c.uuid)
		}
		if len(c.uuid) != 4 || strings.Trim(c.uuid, "0123456789abcdef") != "" {
			return fmt.Errorf("bledb: uuid %q is not a 16-bit identifier", c.uuid)
		}
		if c.lookup(c.uuid) == "" {
			return fmt.Errorf("bledb: uuid %q has no name entry", c.uuid)
		}
	}
	return nil
}

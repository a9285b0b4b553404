package bledb

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestNormalizeUUID verifies that NormalizeUUID correctly handles various UUID formats
func TestNormalizeUUID(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "16-bit short form",
			input:    "180d",
			expected: "180d",
		},
		{
			name:     "16-bit upper case",
			input:    "180D",
			expected: "180d",
		},
		{
			name:     "16-bit with 0x prefix",
			input:    "0x2A37",
			expected: "2a37",
		},
		{
			name:     "Full Bluetooth SIG UUID with dashes",
			input:    "00002902-0000-1000-8000-00805f9b34fb",
			expected: "2902",
		},
		{
			name:     "Full Bluetooth SIG UUID without dashes",
			input:    "0000180d00001000800000805f9b34fb",
			expected: "180d",
		},
		{
			name:     "Custom 128-bit UUID (not SIG base)",
			input:    "6e400001-b5a3-f393-e0a9-e50e24dcca9e",
			expected: "6e400001b5a3f393e0a9e50e24dcca9e",
		},
		{
			name:     "UUID with braces",
			input:    "{0000180d-0000-1000-8000-00805f9b34fb}",
			expected: "180d",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeUUID(tt.input))
		})
	}
}

func TestNormalizeUUIDs(t *testing.T) {
	assert.Nil(t, NormalizeUUIDs(nil))
	assert.Equal(t, []string{"180d", "2a37"}, NormalizeUUIDs([]string{"180D", "00002a37-0000-1000-8000-00805f9b34fb"}))
}

func TestLookup(t *testing.T) {
	tests := []struct {
		name     string
		lookup   func(string) string
		uuid     string
		expected string
	}{
		{"Heart Rate - short form", LookupService, "180d", "Heart Rate"},
		{"Heart Rate - full UUID", LookupService, "0000180d-0000-1000-8000-00805f9b34fb", "Heart Rate"},
		{"Battery Service", LookupService, "180F", "Battery Service"},
		{"unknown service", LookupService, "ffff", ""},
		{"Heart Rate Measurement", LookupCharacteristic, "2a37", "Heart Rate Measurement"},
		{"Body Sensor Location", LookupCharacteristic, "0x2A38", "Body Sensor Location"},
		{"Client Characteristic Configuration", LookupDescriptor, "00002902-0000-1000-8000-00805f9b34fb", "Client Characteristic Configuration"},
		{"unknown descriptor", LookupDescriptor, "2999", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.lookup(tt.uuid))
		})
	}
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate())
}

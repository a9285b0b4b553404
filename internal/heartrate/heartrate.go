// Package heartrate decodes Heart Rate Measurement (0x2A37) notifications.
//
// Flags byte layout, from the Bluetooth Heart Rate Service 1.0:
//
//	| 0x10 | 0x08 | 0x04 0x02 | 0x01 |
//	|  rr  | nrg  | scs  cnt  | fmt  |
package heartrate

import (
	"encoding/binary"
	"time"

	"github.com/srg/hrmon/internal/device"
)

const (
	flagUint16BPM       = 0x01
	flagContactDetected = 0x02
	flagContactSupport  = 0x04
	flagEnergyExpended  = 0x08
	flagRRIntervals     = 0x10
)

// MaxBPM is the highest heart rate accepted as a valid reading.
const MaxBPM = 300

// MaxRRIntervals is the number of RR intervals kept per measurement.
// A 20-byte notification carrying a uint8 rate has room for nine.
const MaxRRIntervals = 9

// ContactStatus reports the sensor-contact feature of a measurement.
type ContactStatus uint8

const (
	ContactUnsupported ContactStatus = iota
	ContactNotDetected
	ContactDetected
)

func (c ContactStatus) String() string {
	switch c {
	case ContactNotDetected:
		return "not detected"
	case ContactDetected:
		return "detected"
	default:
		return "unsupported"
	}
}

// Measurement is one decoded notification.
type Measurement struct {
	BPM     int
	Contact ContactStatus

	// EnergyExpended is cumulative energy in kilojoules, valid when HasEnergy is set.
	EnergyExpended uint16
	HasEnergy      bool

	rr      [MaxRRIntervals]uint16
	rrCount uint8
}

// RRCount returns the number of RR intervals carried by the measurement.
func (m Measurement) RRCount() int {
	return int(m.rrCount)
}

// RR returns the i-th RR interval in units of 1/1024 second.
func (m Measurement) RR(i int) uint16 {
	return m.rr[:m.rrCount][i]
}

// RRIntervals returns the RR intervals as durations.
func (m Measurement) RRIntervals() []time.Duration {
	if m.rrCount == 0 {
		return nil
	}
	out := make([]time.Duration, m.rrCount)
	for i, v := range m.rr[:m.rrCount] {
		out[i] = time.Duration(v) * time.Second / 1024
	}
	return out
}

// Decode parses a Heart Rate Measurement payload.
// It never allocates on success. Only a payload too short for its heart rate field, or a
// rate above MaxBPM, yields device.ErrDecode; truncated optional fields are omitted.
func Decode(payload []byte) (Measurement, error) {
	var m Measurement

	if len(payload) < 2 {
		return m, device.Errorf(device.KindDecodeError, "payload too short: %d bytes", len(payload))
	}

	flags := payload[0]
	offset := 1

	if flags&flagUint16BPM != 0 {
		if len(payload) < 3 {
			return m, device.Errorf(device.KindDecodeError, "uint16 heart rate truncated: %d bytes", len(payload))
		}
		m.BPM = int(binary.LittleEndian.Uint16(payload[offset:]))
		offset += 2
	} else {
		m.BPM = int(payload[offset])
		offset++
	}

	if m.BPM > MaxBPM {
		return Measurement{}, device.Errorf(device.KindDecodeError, "heart rate %d out of range", m.BPM)
	}

	switch {
	case flags&flagContactSupport == 0:
		m.Contact = ContactUnsupported
	case flags&flagContactDetected != 0:
		m.Contact = ContactDetected
	default:
		m.Contact = ContactNotDetected
	}

	// optional fields cut short by the sensor are left absent
	if flags&flagEnergyExpended != 0 {
		if len(payload) < offset+2 {
			return m, nil
		}
		m.EnergyExpended = binary.LittleEndian.Uint16(payload[offset:])
		m.HasEnergy = true
		offset += 2
	}

	if flags&flagRRIntervals != 0 {
		// a trailing odd byte is ignored
		for ; offset+1 < len(payload) && int(m.rrCount) < MaxRRIntervals; offset += 2 {
			m.rr[m.rrCount] = binary.LittleEndian.Uint16(payload[offset:])
			m.rrCount++
		}
	}

	return m, nil
}

package session

import (
	"time"

	"github.com/srg/hrmon/internal/device"
	"github.com/srg/hrmon/internal/heartrate"
)

// Sample is one decoded heart rate reading of a connection session.
type Sample struct {
	Seq       uint64
	BPM       int
	Timestamp time.Time
	Contact   heartrate.ContactStatus

	// EnergyExpended is nil when the sensor did not report it.
	EnergyExpended *uint16
	RR             []time.Duration
}

// NewSample builds a Sample from a decoded measurement.
func NewSample(seq uint64, at time.Time, m heartrate.Measurement) Sample {
	s := Sample{
		Seq:       seq,
		BPM:       m.BPM,
		Timestamp: at,
		Contact:   m.Contact,
		RR:        m.RRIntervals(),
	}
	if m.HasEnergy {
		e := m.EnergyExpended
		s.EnergyExpended = &e
	}
	return s
}

// Connection describes the current connection session.
type Connection struct {
	State      device.ConnectionState
	Peripheral *device.PeripheralHandle
	// Err is the terminal error of a Failed or lost session.
	Err error
}

// Snapshot is an immutable view of the monitor state.
// Slices are shared between snapshots and MUST NOT be modified.
type Snapshot struct {
	Version    uint64
	Scanning   bool
	ScanErr    error
	Devices    []device.PeripheralHandle
	Connection Connection
	LatestBPM  int
	Series     []Sample
}

// Latest returns the most recent sample of the current session.
func (s *Snapshot) Latest() (Sample, bool) {
	if len(s.Series) == 0 {
		return Sample{}, false
	}
	return s.Series[len(s.Series)-1], true
}

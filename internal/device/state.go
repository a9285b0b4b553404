package device

import "fmt"

// ConnectionState is the lifecycle state of a heart rate session.
type ConnectionState int

const (
	StateIdle ConnectionState = iota
	StateConnecting
	StateServiceDiscovery
	StateEnablingNotifications
	StateStreaming
	StateDisconnected
	StateFailed
)

var stateNames = map[ConnectionState]string{
	StateIdle:                  "idle",
	StateConnecting:            "connecting",
	StateServiceDiscovery:      "service_discovery",
	StateEnablingNotifications: "enabling_notifications",
	StateStreaming:             "streaming",
	StateDisconnected:          "disconnected",
	StateFailed:                "failed",
}

func (s ConnectionState) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// MarshalText renders the state name in JSON output.
func (s ConnectionState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// IsActive reports whether the state holds the radio: connecting or connected.
func (s ConnectionState) IsActive() bool {
	switch s {
	case StateConnecting, StateServiceDiscovery, StateEnablingNotifications, StateStreaming:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether a session in this state is finished.
func (s ConnectionState) IsTerminal() bool {
	return s == StateDisconnected || s == StateFailed
}

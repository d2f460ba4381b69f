package domain

import "fmt"

// RawObservation is the unprocessed condition group read from the payload,
// e.g. "Clouds".
type RawObservation string

// SyncState is the coarse weather classification the server is kept in.
type SyncState string

const (
	StateClear   SyncState = "Clear"
	StateRain    SyncState = "Rain"
	StateUnknown SyncState = "Unknown"
)

// Classify maps an observation to its sync state. It is total: any value not
// in the known vocabulary, including "", is StateUnknown.
func Classify(raw RawObservation) SyncState {
	switch raw {
	case "Clear", "Clouds":
		return StateClear
	case "Rain", "Drizzle", "Snow", "Thunderstorm":
		return StateRain
	default:
		return StateUnknown
	}
}

// ParseSyncState parses a persisted state name.
func ParseSyncState(s string) (SyncState, error) {
	switch st := SyncState(s); st {
	case StateClear, StateRain, StateUnknown:
		return st, nil
	default:
		return "", fmt.Errorf("invalid sync state %q", s)
	}
}

// ApplyAction returns the Minecraft weather type used to apply the state.
// Unknown falls back to clear weather.
func (s SyncState) ApplyAction() string {
	if s == StateRain {
		return "rain"
	}
	return "clear"
}

func (s SyncState) String() string { return string(s) }

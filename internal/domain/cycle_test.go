package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
)

func TestNewCycleEvent(t *testing.T) {
	now := time.Date(2024, time.April, 26, 15, 10, 0, 0, time.UTC)
	SetClock(clockwork.NewFakeClockAt(now))
	t.Cleanup(func() { SetClock(nil) })

	started := now.Add(-1500 * time.Millisecond)
	r := CycleResult{
		ID:          "cycle-1",
		Outcome:     OutcomeApplied,
		Location:    Location{Lat: 36.01, Lon: -78.8},
		Observation: "Thunderstorm",
		State:       StateRain,
		Previous:    StateClear,
		HadPrevious: true,
		Applied:     true,
		Persisted:   true,
		StartedAt:   started,
		FinishedAt:  now,
	}

	want := CycleEvent{
		ID:          "cycle-1",
		Outcome:     OutcomeApplied,
		Location:    Location{Lat: 36.01, Lon: -78.8},
		Observation: "Thunderstorm",
		State:       StateRain,
		Previous:    StateClear,
		Applied:     true,
		Persisted:   true,
		StartedAt:   started,
		DurationMS:  1500,
		ProcessedAt: now,
	}
	if diff := cmp.Diff(want, NewCycleEvent(r)); diff != "" {
		t.Fatalf("event mismatch (-want +got):\n%s", diff)
	}
}

func TestNewCycleEvent_FirstRunHasNoPrevious(t *testing.T) {
	ev := NewCycleEvent(CycleResult{Previous: StateClear, HadPrevious: false})
	assert.Empty(t, ev.Previous)
}

func TestNewCycleEvent_CarriesFirstError(t *testing.T) {
	ev := NewCycleEvent(CycleResult{
		Outcome:    OutcomePersistFailed,
		ApplyErr:   errors.New("rcon refused"),
		PersistErr: errors.New("disk full"),
	})
	assert.Equal(t, "rcon refused", ev.Error)
}

func TestFetchError(t *testing.T) {
	inner := errors.New("dial tcp: connection refused")
	err := error(&FetchError{Kind: FetchTransport, Err: inner})

	var fe *FetchError
	assert.True(t, errors.As(err, &fe))
	assert.Equal(t, FetchTransport, fe.Kind)
	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "connection refused")

	status := &FetchError{Kind: FetchAPIStatus, StatusCode: 401, Body: `{"cod":401}`}
	assert.Contains(t, status.Error(), "401")
	assert.Equal(t, "api_status", status.Kind.String())
}

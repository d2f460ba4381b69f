package domain

import "time"

// Outcome is the structured result of one cycle.
type Outcome string

const (
	OutcomeApplied               Outcome = "applied"
	OutcomeSkippedAlreadyCurrent Outcome = "skipped_already_current"
	OutcomeFetchFailed           Outcome = "fetch_failed"
	OutcomeClassifyUnknown       Outcome = "classify_unknown"
	OutcomePersistFailed         Outcome = "persist_failed"
)

// CycleResult describes what a single fetch-classify-apply-persist pass did.
type CycleResult struct {
	ID          string
	Outcome     Outcome
	Location    Location
	Observation RawObservation
	State       SyncState

	// Previous is the persisted state read at the start of the cycle.
	// HadPrevious is false on first run or after a read fault.
	Previous    SyncState
	HadPrevious bool

	Applied   bool // the apply action was invoked
	Persisted bool // the state slot was written

	FetchErr   error
	ApplyErr   error
	PersistErr error

	StartedAt  time.Time
	FinishedAt time.Time
}

// Duration returns how long the cycle took.
func (r CycleResult) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// CycleEvent is the serialized form of a CycleResult published to the
// event sink.
type CycleEvent struct {
	ID          string    `json:"id"`
	Outcome     Outcome   `json:"outcome"`
	Location    Location  `json:"location"`
	Observation string    `json:"observation,omitempty"`
	State       SyncState `json:"state,omitempty"`
	Previous    SyncState `json:"previous,omitempty"`
	Applied     bool      `json:"applied"`
	Persisted   bool      `json:"persisted"`
	Error       string    `json:"error,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	DurationMS  int64     `json:"duration_ms"`
	ProcessedAt time.Time `json:"processed_at"`
}

// NewCycleEvent projects a result into an event stamped with the package clock.
// Only the first error in fetch, apply, persist order is carried.
func NewCycleEvent(r CycleResult) CycleEvent {
	ev := CycleEvent{
		ID:          r.ID,
		Outcome:     r.Outcome,
		Location:    r.Location,
		Observation: string(r.Observation),
		State:       r.State,
		Applied:     r.Applied,
		Persisted:   r.Persisted,
		StartedAt:   r.StartedAt,
		DurationMS:  r.Duration().Milliseconds(),
		ProcessedAt: Now(),
	}
	if r.HadPrevious {
		ev.Previous = r.Previous
	}
	for _, err := range []error{r.FetchErr, r.ApplyErr, r.PersistErr} {
		if err != nil {
			ev.Error = err.Error()
			break
		}
	}
	return ev
}

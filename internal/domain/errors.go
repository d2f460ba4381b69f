package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrStorageRead marks a state store read fault. A missing slot is not
	// a fault and never wraps this error.
	ErrStorageRead = errors.New("state storage read failed")

	// ErrStorageWrite marks a failure to persist the sync state.
	ErrStorageWrite = errors.New("state storage write failed")

	// ErrApplyAction marks a failed remote weather command.
	ErrApplyAction = errors.New("apply action failed")
)

// FetchErrorKind classifies why an observation could not be fetched.
type FetchErrorKind int

const (
	FetchTransport FetchErrorKind = iota + 1
	FetchAPIStatus
	FetchUnparseable
)

func (k FetchErrorKind) String() string {
	switch k {
	case FetchTransport:
		return "transport"
	case FetchAPIStatus:
		return "api_status"
	case FetchUnparseable:
		return "unparseable"
	default:
		return "unknown"
	}
}

// FetchError is returned by observation fetchers.
type FetchError struct {
	Kind       FetchErrorKind
	StatusCode int    // set for FetchAPIStatus
	Body       string // response body, kept for diagnostics
	Err        error
}

func (e *FetchError) Error() string {
	switch e.Kind {
	case FetchAPIStatus:
		return fmt.Sprintf("fetch observation: api status %d", e.StatusCode)
	case FetchUnparseable:
		return fmt.Sprintf("fetch observation: unparseable response: %v", e.Err)
	default:
		return fmt.Sprintf("fetch observation: %v", e.Err)
	}
}

func (e *FetchError) Unwrap() error { return e.Err }

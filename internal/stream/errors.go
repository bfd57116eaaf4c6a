package stream

import (
	"errors"
	"fmt"
)

var (
	// ErrFetchFailed is matched by every *FetchError.
	ErrFetchFailed = errors.New("frame fetch failed")
	// ErrSessionHalted is returned by Tick once the session has failed.
	ErrSessionHalted = errors.New("streaming session halted")
	// ErrCycleInFlight is returned when a tick arrives while the previous
	// cycle has not finished.
	ErrCycleInFlight = errors.New("frame cycle already in flight")
	// ErrFrameTooLarge is wrapped by a *FetchError when the source sends
	// more than the configured maximum.
	ErrFrameTooLarge = errors.New("frame exceeds maximum size")
)

// FetchError describes a failed request for one frame. Status is the HTTP
// status when a response was received, 0 otherwise.
type FetchError struct {
	Name   string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	switch {
	case e.Status != 0 && e.Err != nil:
		return fmt.Sprintf("fetch %s: status %d: %v", e.Name, e.Status, e.Err)
	case e.Status != 0:
		return fmt.Sprintf("fetch %s: status %d", e.Name, e.Status)
	default:
		return fmt.Sprintf("fetch %s: %v", e.Name, e.Err)
	}
}

func (e *FetchError) Is(target error) bool {
	return target == ErrFetchFailed
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// StoreError reports a failed write or read of a local slot.
type StoreError struct {
	Slot int
	Op   string
	Err  error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("slot %d %s: %v", e.Slot, e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

package models

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the booking core. Callers match with errors.Is; the
// HTTP layer translates them to status codes and user-facing copy.
var (
	ErrTripNotFound       = errors.New("trip not found")
	ErrBookingNotFound    = errors.New("booking not found")
	ErrSeatUnavailable    = errors.New("seat unavailable")
	ErrTripDeparted       = errors.New("trip has departed")
	ErrChangeWindowClosed = errors.New("change window closed")
	ErrInvalidState       = errors.New("invalid state for transition")
	ErrConflict           = errors.New("conflict")
	ErrInquiryNotFound    = errors.New("inquiry not found")
	ErrValidation         = errors.New("invalid request")
)

// SeatUnavailableError reports which requested seats could not be reserved.
// It unwraps to ErrSeatUnavailable so callers can match the kind without
// caring about the detail.
type SeatUnavailableError struct {
	TripID string
	Seats  []string
}

func (e *SeatUnavailableError) Error() string {
	if len(e.Seats) == 0 {
		return fmt.Sprintf("trip %s: not enough seats available", e.TripID)
	}
	return fmt.Sprintf("trip %s: seats not available: %s", e.TripID, strings.Join(e.Seats, ", "))
}

func (e *SeatUnavailableError) Unwrap() error {
	return ErrSeatUnavailable
}

// InvalidStateError reports a lifecycle transition attempted from a state
// that does not permit it
type InvalidStateError struct {
	Op   string
	From BookingStatus
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s booking in state %q", e.Op, e.From)
}

func (e *InvalidStateError) Unwrap() error {
	return ErrInvalidState
}

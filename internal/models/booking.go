package models

import (
	"fmt"
	"time"
)

// BookingStatus represents the lifecycle state of a booking
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
)

// PaymentStatus represents the payment state of a booking
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusPaid      PaymentStatus = "paid"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusCancelled PaymentStatus = "cancelled"
)

// Booking represents a customer order holding seats on one trip, or on an
// outbound and a return trip for round trips
type Booking struct {
	ID            string        `json:"id" db:"id"`
	Reference     string        `json:"reference" db:"reference"`
	TripID        string        `json:"trip_id" db:"trip_id"`
	ReturnTripID  *string       `json:"return_trip_id,omitempty" db:"return_trip_id"`
	ContactName   string        `json:"contact_name" db:"contact_name"`
	ContactEmail  string        `json:"contact_email" db:"contact_email"`
	ContactPhone  string        `json:"contact_phone" db:"contact_phone"`
	TotalPrice    float64       `json:"total_price" db:"total_price"`
	PaymentStatus PaymentStatus `json:"payment_status" db:"payment_status"`
	Status        BookingStatus `json:"status" db:"status"`
	Scanned       bool          `json:"scanned" db:"scanned"`
	LastScannedAt *time.Time    `json:"last_scanned_at,omitempty" db:"last_scanned_at"`
	ScannerID     *string       `json:"scanner_id,omitempty" db:"scanner_id"`
	AgentID       *string       `json:"agent_id,omitempty" db:"agent_id"`
	CreatedAt     time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at" db:"updated_at"`

	// Loaded from booking_seats / passengers, not columns on the row
	Seats       []string    `json:"seats" db:"-"`
	ReturnSeats []string    `json:"return_seats,omitempty" db:"-"`
	Passengers  []Passenger `json:"passengers,omitempty" db:"-"`
}

// Passenger is one traveller on a booking, assigned to a held seat
type Passenger struct {
	ID        string `json:"id" db:"id"`
	BookingID string `json:"booking_id" db:"booking_id"`
	Name      string `json:"name" db:"name"`
	Title     string `json:"title" db:"title"`
	SeatID    string `json:"seat_id" db:"seat_id"`
	ReturnLeg bool   `json:"return_leg" db:"return_leg"`
}

// IsActive reports whether the booking still holds its seats
func (b *Booking) IsActive() bool {
	return b.Status != BookingStatusCancelled
}

// CanConfirm reports whether the booking may transition to confirmed
func (b *Booking) CanConfirm() bool {
	return b.Status == BookingStatusPending
}

// CanCancel reports whether the booking may transition to cancelled
func (b *Booking) CanCancel() bool {
	return b.Status == BookingStatusPending || b.Status == BookingStatusConfirmed
}

// ScanResult is the outcome of a boarding validation. A repeated scan is a
// distinguished success carrying the original scan metadata, not a failure.
type ScanResult struct {
	AlreadyScanned bool      `json:"already_scanned"`
	ScannedAt      time.Time `json:"scanned_at"`
	ScannerID      string    `json:"scanner_id"`
}

// CreateBookingRequest represents the request to create a booking
type CreateBookingRequest struct {
	TripID        string             `json:"trip_id" binding:"required"`
	SeatIDs       []string           `json:"seat_ids" binding:"required,min=1"`
	ReturnTripID  *string            `json:"return_trip_id,omitempty"`
	ReturnSeatIDs []string           `json:"return_seat_ids,omitempty"`
	ContactName   string             `json:"contact_name" binding:"required"`
	ContactEmail  string             `json:"contact_email" binding:"required,email"`
	ContactPhone  string             `json:"contact_phone" binding:"required"`
	Passengers    []PassengerRequest `json:"passengers" binding:"required,min=1"`
	AgentID       *string            `json:"agent_id,omitempty"`
}

// PassengerRequest carries passenger details for booking creation
type PassengerRequest struct {
	Name      string `json:"name" binding:"required"`
	Title     string `json:"title"`
	SeatID    string `json:"seat_id" binding:"required"`
	ReturnLeg bool   `json:"return_leg"`
}

// Validate checks structural consistency of the request: the return leg must
// be all-or-nothing, and every passenger seat must be one of the held seats
// on the corresponding leg.
func (r *CreateBookingRequest) Validate() error {
	if len(r.SeatIDs) == 0 {
		return fmt.Errorf("%w: seat_ids must not be empty", ErrValidation)
	}
	if (r.ReturnTripID == nil) != (len(r.ReturnSeatIDs) == 0) {
		return fmt.Errorf("%w: return_trip_id and return_seat_ids must be provided together", ErrValidation)
	}
	if hasDuplicates(r.SeatIDs) || hasDuplicates(r.ReturnSeatIDs) {
		return fmt.Errorf("%w: seat_ids must not contain duplicates", ErrValidation)
	}

	outbound := make(map[string]bool, len(r.SeatIDs))
	for _, s := range r.SeatIDs {
		outbound[s] = true
	}
	returning := make(map[string]bool, len(r.ReturnSeatIDs))
	for _, s := range r.ReturnSeatIDs {
		returning[s] = true
	}

	for _, p := range r.Passengers {
		if p.ReturnLeg {
			if !returning[p.SeatID] {
				return fmt.Errorf("%w: passenger seat is not part of the return seat set", ErrValidation)
			}
		} else if !outbound[p.SeatID] {
			return fmt.Errorf("%w: passenger seat is not part of the booked seat set", ErrValidation)
		}
	}
	return nil
}

func hasDuplicates(ids []string) bool {
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			return true
		}
		seen[id] = true
	}
	return false
}

// RescheduleBookingRequest represents the request to move a booking to
// another trip. When SeatIDs is empty the original seat identifiers are
// requested on the new trip.
type RescheduleBookingRequest struct {
	NewTripID string   `json:"new_trip_id" binding:"required"`
	SeatIDs   []string `json:"seat_ids,omitempty"`
}

// Validate rejects structurally bad reschedule requests before any seat moves
func (r *RescheduleBookingRequest) Validate() error {
	if hasDuplicates(r.SeatIDs) {
		return fmt.Errorf("%w: seat_ids must not contain duplicates", ErrValidation)
	}
	return nil
}

package models

import (
	"fmt"
	"time"
)

// ServiceType distinguishes the daily departure slot a trip belongs to
type ServiceType string

const (
	ServiceTypeMorning   ServiceType = "Morning"
	ServiceTypeAfternoon ServiceType = "Afternoon"
	ServiceTypeEvening   ServiceType = "Evening"
	ServiceTypeNight     ServiceType = "Night"
)

// Trip represents a single scheduled departure with its own seat inventory
type Trip struct {
	ID              string      `json:"id" db:"id"`
	RouteName       string      `json:"route_name" db:"route_name"`
	Origin          string      `json:"origin" db:"origin"`
	Destination     string      `json:"destination" db:"destination"`
	DepartureAt     time.Time   `json:"departure_at" db:"departure_at"`
	DurationMinutes int         `json:"duration_minutes" db:"duration_minutes"`
	Fare            float64     `json:"fare" db:"fare"`
	ServiceType     ServiceType `json:"service_type" db:"service_type"`
	PromoActive     bool        `json:"promo_active" db:"promo_active"`
	PromoPrice      *float64    `json:"promo_price,omitempty" db:"promo_price"`
	TotalSeats      int         `json:"total_seats" db:"total_seats"`
	AvailableSeats  int         `json:"available_seats" db:"available_seats"`
	Departed        bool        `json:"departed" db:"departed"`
	CreatedAt       time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at" db:"updated_at"`
}

// CreateTripRequest represents the request to create a single trip
type CreateTripRequest struct {
	RouteName       string   `json:"route_name" binding:"required"`
	Origin          string   `json:"origin" binding:"required"`
	Destination     string   `json:"destination" binding:"required"`
	DepartureAt     string   `json:"departure_at" binding:"required"` // RFC 3339
	DurationMinutes int      `json:"duration_minutes" binding:"required,gt=0"`
	Fare            float64  `json:"fare" binding:"required,gte=0"`
	ServiceType     string   `json:"service_type" binding:"required"`
	PromoActive     bool     `json:"promo_active"`
	PromoPrice      *float64 `json:"promo_price,omitempty"`
	TotalSeats      int      `json:"total_seats" binding:"required,gt=0"`
}

// Validate validates the create trip request
func (r *CreateTripRequest) Validate() error {
	if _, err := time.Parse(time.RFC3339, r.DepartureAt); err != nil {
		return fmt.Errorf("%w: departure_at must be in RFC 3339 format", ErrValidation)
	}
	if r.TotalSeats <= 0 {
		return fmt.Errorf("%w: total_seats must be positive", ErrValidation)
	}
	if r.PromoActive && r.PromoPrice == nil {
		return fmt.Errorf("%w: promo_price is required when promo_active is set", ErrValidation)
	}
	return nil
}

// UpdateTripRequest represents a partial trip update. Nil fields are untouched.
type UpdateTripRequest struct {
	RouteName       *string  `json:"route_name,omitempty"`
	Origin          *string  `json:"origin,omitempty"`
	Destination     *string  `json:"destination,omitempty"`
	DepartureAt     *string  `json:"departure_at,omitempty"`
	DurationMinutes *int     `json:"duration_minutes,omitempty"`
	Fare            *float64 `json:"fare,omitempty"`
	ServiceType     *string  `json:"service_type,omitempty"`
	PromoActive     *bool    `json:"promo_active,omitempty"`
	PromoPrice      *float64 `json:"promo_price,omitempty"`
	TotalSeats      *int     `json:"total_seats,omitempty"`
}

// IsEmpty reports whether the update carries no changes
func (r *UpdateTripRequest) IsEmpty() bool {
	return r.RouteName == nil && r.Origin == nil && r.Destination == nil &&
		r.DepartureAt == nil && r.DurationMinutes == nil && r.Fare == nil &&
		r.ServiceType == nil && r.PromoActive == nil && r.PromoPrice == nil &&
		r.TotalSeats == nil
}

// TripFilter selects trips for listing and bulk updates
type TripFilter struct {
	RouteName       *string    `json:"route_name,omitempty"`
	Origin          *string    `json:"origin,omitempty"`
	Destination     *string    `json:"destination,omitempty"`
	DateFrom        *time.Time `json:"date_from,omitempty"`
	DateTo          *time.Time `json:"date_to,omitempty"`
	IncludeDeparted bool       `json:"include_departed"`
}

// TripTemplate is the per-day seed used by bulk trip generation. The
// departure clock time is applied to every date in the generation range.
type TripTemplate struct {
	RouteName       string   `json:"route_name" binding:"required"`
	Origin          string   `json:"origin" binding:"required"`
	Destination     string   `json:"destination" binding:"required"`
	DepartureTime   string   `json:"departure_time" binding:"required"` // "15:04"
	DurationMinutes int      `json:"duration_minutes" binding:"required,gt=0"`
	Fare            float64  `json:"fare" binding:"required,gte=0"`
	ServiceType     string   `json:"service_type" binding:"required"`
	PromoActive     bool     `json:"promo_active"`
	PromoPrice      *float64 `json:"promo_price,omitempty"`
	TotalSeats      int      `json:"total_seats" binding:"required,gt=0"`
}

// IsPastDeparture checks if the trip departure instant has passed
func (t *Trip) IsPastDeparture(now time.Time) bool {
	return now.After(t.DepartureAt)
}

// CanAcceptBooking checks if the trip can accept a reservation of n seats
func (t *Trip) CanAcceptBooking(n int, now time.Time) bool {
	if t.Departed || t.IsPastDeparture(now) {
		return false
	}
	return t.AvailableSeats >= n
}

// WithinChangeWindow reports whether departure is closer than the given
// window, in which case customer-initiated cancellation and reschedule
// are rejected.
func (t *Trip) WithinChangeWindow(now time.Time, window time.Duration) bool {
	return t.DepartureAt.Sub(now) < window
}

// EffectiveFare returns the promo price when a promotion is active
func (t *Trip) EffectiveFare() float64 {
	if t.PromoActive && t.PromoPrice != nil {
		return *t.PromoPrice
	}
	return t.Fare
}

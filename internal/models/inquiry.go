package models

import (
	"fmt"
	"time"
)

// InquiryStatus represents the handling state of a bus-hire inquiry
type InquiryStatus string

const (
	InquiryStatusNew       InquiryStatus = "new"
	InquiryStatusContacted InquiryStatus = "contacted"
	InquiryStatusQuoted    InquiryStatus = "quoted"
	InquiryStatusClosed    InquiryStatus = "closed"
)

// Inquiry is a bus-hire request. It has its own status lifecycle and never
// touches seat inventory.
type Inquiry struct {
	ID          string        `json:"id" db:"id"`
	Name        string        `json:"name" db:"name"`
	Email       string        `json:"email" db:"email"`
	Phone       string        `json:"phone" db:"phone"`
	Origin      string        `json:"origin" db:"origin"`
	Destination string        `json:"destination" db:"destination"`
	TravelDate  time.Time     `json:"travel_date" db:"travel_date"`
	GroupSize   int           `json:"group_size" db:"group_size"`
	Notes       *string       `json:"notes,omitempty" db:"notes"`
	Status      InquiryStatus `json:"status" db:"status"`
	CreatedAt   time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at" db:"updated_at"`
}

// CreateInquiryRequest represents the request to submit a hire inquiry
type CreateInquiryRequest struct {
	Name        string  `json:"name" binding:"required"`
	Email       string  `json:"email" binding:"required,email"`
	Phone       string  `json:"phone" binding:"required"`
	Origin      string  `json:"origin" binding:"required"`
	Destination string  `json:"destination" binding:"required"`
	TravelDate  string  `json:"travel_date" binding:"required"` // YYYY-MM-DD
	GroupSize   int     `json:"group_size" binding:"required,gt=0"`
	Notes       *string `json:"notes,omitempty"`
}

// Validate validates the create inquiry request
func (r *CreateInquiryRequest) Validate() error {
	if _, err := time.Parse("2006-01-02", r.TravelDate); err != nil {
		return fmt.Errorf("%w: travel_date must be in YYYY-MM-DD format", ErrValidation)
	}
	return nil
}

// ValidInquiryStatus reports whether s is a known inquiry status
func ValidInquiryStatus(s string) bool {
	switch InquiryStatus(s) {
	case InquiryStatusNew, InquiryStatusContacted, InquiryStatusQuoted, InquiryStatusClosed:
		return true
	}
	return false
}

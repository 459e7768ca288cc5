package services

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/swiftbus/booking-backend/internal/models"
	"github.com/swiftbus/booking-backend/pkg/ticket"
)

// Notifier receives the booking-confirmed event. Ticket rendering and
// delivery happen behind this interface; the booking core only hands over
// the snapshot.
type Notifier interface {
	BookingConfirmed(booking *models.Booking, trip *models.Trip) error
}

// TicketNotifier renders the confirmed booking's ticket PDF into a spool
// directory for the delivery pipeline to pick up
type TicketNotifier struct {
	dir    string
	logger *logrus.Logger
}

// NewTicketNotifier creates a TicketNotifier writing into dir
func NewTicketNotifier(dir string, logger *logrus.Logger) (*TicketNotifier, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create ticket directory: %w", err)
	}
	return &TicketNotifier{dir: dir, logger: logger}, nil
}

// BookingConfirmed renders and spools the ticket PDF
func (n *TicketNotifier) BookingConfirmed(booking *models.Booking, trip *models.Trip) error {
	pdf, err := ticket.Render(booking, trip)
	if err != nil {
		return err
	}

	path := filepath.Join(n.dir, booking.Reference+".pdf")
	if err := os.WriteFile(path, pdf, 0o644); err != nil {
		return fmt.Errorf("failed to write ticket: %w", err)
	}

	n.logger.WithFields(logrus.Fields{
		"booking_id": booking.ID,
		"reference":  booking.Reference,
		"path":       path,
	}).Info("Ticket rendered")
	return nil
}

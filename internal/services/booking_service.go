package services

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/swiftbus/booking-backend/internal/database"
	"github.com/swiftbus/booking-backend/internal/models"
	"github.com/swiftbus/booking-backend/pkg/reference"
)

// BookingServiceConfig holds lifecycle configuration for the booking service
type BookingServiceConfig struct {
	// ChangeWindow is the pre-departure window inside which customer
	// cancellation and reschedule are rejected. Operators bypass it.
	ChangeWindow time.Duration
	// PendingTTL is how long a pending booking may await payment before
	// the reaper cancels it.
	PendingTTL time.Duration
	// Currency is the ISO 4217 code used for pricing and payment sessions
	Currency string
}

// DefaultBookingServiceConfig returns default configuration
func DefaultBookingServiceConfig() BookingServiceConfig {
	return BookingServiceConfig{
		ChangeWindow: 24 * time.Hour,
		PendingTTL:   30 * time.Minute,
		Currency:     "LKR",
	}
}

// BookingService owns the booking lifecycle: pending → confirmed/cancelled,
// with every seat movement going through the inventory ledger. Multi-leg
// operations release their own prior steps before surfacing an error, so a
// booking is never persisted holding only part of what it asked for.
type BookingService struct {
	bookingRepo   *database.BookingRepository
	inventoryRepo *database.InventoryRepository
	tripRepo      *database.TripRepository
	notifier      Notifier
	config        BookingServiceConfig
	logger        *logrus.Logger
}

// NewBookingService creates a new BookingService
func NewBookingService(
	bookingRepo *database.BookingRepository,
	inventoryRepo *database.InventoryRepository,
	tripRepo *database.TripRepository,
	notifier Notifier,
	config BookingServiceConfig,
	logger *logrus.Logger,
) *BookingService {
	return &BookingService{
		bookingRepo:   bookingRepo,
		inventoryRepo: inventoryRepo,
		tripRepo:      tripRepo,
		notifier:      notifier,
		config:        config,
		logger:        logger,
	}
}

// Currency returns the pricing currency code
func (s *BookingService) Currency() string {
	return s.config.Currency
}

// CreateBooking reserves seats for every requested leg and persists the
// booking in pending state. If any leg fails, seats already reserved for the
// other leg are released before the error is returned.
func (s *BookingService) CreateBooking(req *models.CreateBookingRequest) (*models.Booking, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	trip, err := s.tripRepo.GetByID(req.TripID)
	if err != nil {
		return nil, err
	}
	if trip == nil {
		return nil, models.ErrTripNotFound
	}

	var returnTrip *models.Trip
	if req.ReturnTripID != nil {
		returnTrip, err = s.tripRepo.GetByID(*req.ReturnTripID)
		if err != nil {
			return nil, err
		}
		if returnTrip == nil {
			return nil, models.ErrTripNotFound
		}
	}

	bookingID := uuid.New().String()
	ref, err := s.generateReference()
	if err != nil {
		return nil, err
	}

	if err := s.inventoryRepo.ReserveSeats(req.TripID, bookingID, req.SeatIDs, false); err != nil {
		return nil, err
	}

	if returnTrip != nil {
		if err := s.inventoryRepo.ReserveSeats(returnTrip.ID, bookingID, req.ReturnSeatIDs, true); err != nil {
			if relErr := s.inventoryRepo.ReleaseSeats(req.TripID, bookingID, req.SeatIDs); relErr != nil {
				s.logger.WithError(relErr).WithField("booking_id", bookingID).
					Error("Failed to release outbound seats after return-leg failure")
			}
			return nil, err
		}
	}

	totalPrice := float64(len(req.SeatIDs)) * trip.EffectiveFare()
	if returnTrip != nil {
		totalPrice += float64(len(req.ReturnSeatIDs)) * returnTrip.EffectiveFare()
	}

	booking := &models.Booking{
		ID:            bookingID,
		Reference:     ref,
		TripID:        req.TripID,
		ReturnTripID:  req.ReturnTripID,
		ContactName:   req.ContactName,
		ContactEmail:  req.ContactEmail,
		ContactPhone:  req.ContactPhone,
		TotalPrice:    totalPrice,
		PaymentStatus: models.PaymentStatusPending,
		Status:        models.BookingStatusPending,
		AgentID:       req.AgentID,
		Seats:         req.SeatIDs,
		ReturnSeats:   req.ReturnSeatIDs,
	}

	passengers := make([]models.Passenger, len(req.Passengers))
	for i, p := range req.Passengers {
		passengers[i] = models.Passenger{
			Name:      p.Name,
			Title:     p.Title,
			SeatID:    p.SeatID,
			ReturnLeg: p.ReturnLeg,
		}
	}

	if err := s.bookingRepo.Create(booking, passengers); err != nil {
		if relErr := s.releaseAllLegs(booking); relErr != nil {
			s.logger.WithError(relErr).WithField("booking_id", bookingID).
				Error("Failed to release seats after booking create failure")
		}
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id":  booking.ID,
		"reference":   booking.Reference,
		"trip_id":     booking.TripID,
		"seats":       len(req.SeatIDs),
		"total_price": booking.TotalPrice,
	}).Info("Booking created")

	return booking, nil
}

// ConfirmBooking transitions a pending booking to confirmed/paid. Seats stay
// held; confirmation is a status change, not a new reservation. Emits the
// booking-confirmed event for ticket delivery.
func (s *BookingService) ConfirmBooking(bookingID string) (*models.Booking, error) {
	booking, err := s.getBooking(bookingID)
	if err != nil {
		return nil, err
	}

	transitioned, err := s.bookingRepo.ConfirmPending(bookingID)
	if err != nil {
		return nil, err
	}
	if !transitioned {
		return nil, &models.InvalidStateError{Op: "confirm", From: booking.Status}
	}

	booking.Status = models.BookingStatusConfirmed
	booking.PaymentStatus = models.PaymentStatusPaid

	if s.notifier != nil {
		trip, tripErr := s.tripRepo.GetByID(booking.TripID)
		if tripErr == nil && trip != nil {
			if notifyErr := s.notifier.BookingConfirmed(booking, trip); notifyErr != nil {
				s.logger.WithError(notifyErr).WithField("booking_id", bookingID).
					Warn("Failed to deliver booking confirmation")
			}
		}
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id": bookingID,
		"reference":  booking.Reference,
	}).Info("Booking confirmed")

	return booking, nil
}

// FailPayment handles a gateway-reported payment failure: the pending booking
// is cancelled with the payment recorded as failed, and its seats go back to
// the pool. System-initiated, so the change window does not apply.
func (s *BookingService) FailPayment(bookingID string) error {
	booking, err := s.getBooking(bookingID)
	if err != nil {
		return err
	}

	transitioned, err := s.bookingRepo.MarkPaymentFailed(bookingID)
	if err != nil {
		return err
	}
	if !transitioned {
		if booking.Status == models.BookingStatusCancelled {
			// Duplicate gateway delivery; seats are already handled.
			return nil
		}
		return &models.InvalidStateError{Op: "fail payment", From: booking.Status}
	}

	if err := s.releaseAllLegs(booking); err != nil {
		s.logger.WithError(err).WithField("booking_id", bookingID).Error("Seat release failed after payment failure")
		return fmt.Errorf("booking cancelled but seat release failed: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id": bookingID,
		"reference":  booking.Reference,
	}).Info("Booking cancelled after payment failure")

	return nil
}

// CancelBooking cancels a pending or confirmed booking and releases its
// seats. Inside the pre-departure change window only operators may cancel.
func (s *BookingService) CancelBooking(bookingID, reason string, operatorOverride bool) error {
	booking, err := s.getBooking(bookingID)
	if err != nil {
		return err
	}
	if !booking.CanCancel() {
		return &models.InvalidStateError{Op: "cancel", From: booking.Status}
	}

	if !operatorOverride {
		trip, err := s.tripRepo.GetByID(booking.TripID)
		if err != nil {
			return err
		}
		if trip != nil && trip.WithinChangeWindow(time.Now(), s.config.ChangeWindow) {
			return models.ErrChangeWindowClosed
		}
	}

	transitioned, err := s.bookingRepo.Cancel(bookingID)
	if err != nil {
		return err
	}
	if !transitioned {
		// Lost a race with another cancel; seats were already released.
		return &models.InvalidStateError{Op: "cancel", From: models.BookingStatusCancelled}
	}

	if err := s.releaseAllLegs(booking); err != nil {
		// The row is cancelled but its seats are stranded; the stranded-seat
		// sweep re-drives the release. The caller must not see success.
		s.logger.WithError(err).WithField("booking_id", bookingID).Error("Seat release failed after cancel")
		return fmt.Errorf("booking cancelled but seat release failed: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id": bookingID,
		"reference":  booking.Reference,
		"reason":     reason,
		"operator":   operatorOverride,
	}).Info("Booking cancelled")

	return nil
}

// RescheduleBooking moves the outbound leg to another trip: release old
// seats, reserve on the new trip. If the reservation fails the original
// seats are re-reserved so the booking is never left without inventory
// backing it.
func (s *BookingService) RescheduleBooking(bookingID string, req *models.RescheduleBookingRequest, operatorOverride bool) (*models.Booking, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	booking, err := s.getBooking(bookingID)
	if err != nil {
		return nil, err
	}
	if !booking.CanCancel() {
		return nil, &models.InvalidStateError{Op: "reschedule", From: booking.Status}
	}

	oldTrip, err := s.tripRepo.GetByID(booking.TripID)
	if err != nil {
		return nil, err
	}
	if oldTrip == nil {
		return nil, models.ErrTripNotFound
	}
	if !operatorOverride && oldTrip.WithinChangeWindow(time.Now(), s.config.ChangeWindow) {
		return nil, models.ErrChangeWindowClosed
	}

	newSeats := req.SeatIDs
	if len(newSeats) == 0 {
		newSeats = booking.Seats
	}
	if len(newSeats) != len(booking.Seats) {
		return nil, fmt.Errorf("%w: reschedule must keep the seat count (%d held, %d requested)",
			models.ErrValidation, len(booking.Seats), len(newSeats))
	}

	if err := s.inventoryRepo.ReleaseSeats(booking.TripID, bookingID, booking.Seats); err != nil {
		return nil, err
	}

	if err := s.inventoryRepo.ReserveSeats(req.NewTripID, bookingID, newSeats, false); err != nil {
		// Roll back: put the original seats back on the old trip.
		if rbErr := s.inventoryRepo.ReserveSeats(booking.TripID, bookingID, booking.Seats, false); rbErr != nil {
			s.logger.WithError(rbErr).WithFields(logrus.Fields{
				"booking_id": bookingID,
				"trip_id":    booking.TripID,
			}).Error("Failed to restore original seats after reschedule failure")
		}
		return nil, err
	}

	if err := s.bookingRepo.UpdateTripAssignment(bookingID, req.NewTripID); err != nil {
		return nil, err
	}
	for i, oldSeat := range booking.Seats {
		if oldSeat == newSeats[i] {
			continue
		}
		if err := s.bookingRepo.UpdatePassengerSeat(bookingID, oldSeat, newSeats[i], false); err != nil {
			return nil, err
		}
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id": bookingID,
		"from_trip":  booking.TripID,
		"to_trip":    req.NewTripID,
	}).Info("Booking rescheduled")

	return s.getBooking(bookingID)
}

// MarkScanned validates a ticket at boarding. The flag flips exactly once; a
// repeated scan returns the original scan metadata so the gate can show
// "already boarded at T".
func (s *BookingService) MarkScanned(bookingID, scannerID string) (*models.ScanResult, error) {
	result, err := s.bookingRepo.MarkScanned(bookingID, scannerID)
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id":      bookingID,
		"scanner_id":      scannerID,
		"already_scanned": result.AlreadyScanned,
	}).Info("Ticket scanned")

	return result, nil
}

// GetBooking retrieves a booking by ID
func (s *BookingService) GetBooking(bookingID string) (*models.Booking, error) {
	return s.getBooking(bookingID)
}

// LookupBookingByReference retrieves a booking by its order reference,
// however the caller obtained it (QR decode, manual entry).
func (s *BookingService) LookupBookingByReference(ref string) (*models.Booking, error) {
	booking, err := s.bookingRepo.GetByReference(ref)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, models.ErrBookingNotFound
	}
	return booking, nil
}

// ReapExpiredPendingBookings cancels pending bookings older than the TTL and
// releases their seats. Returns the number of bookings reaped.
func (s *BookingService) ReapExpiredPendingBookings(olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan)
	expired, err := s.bookingRepo.ListExpiredPending(cutoff, 100)
	if err != nil {
		return 0, err
	}

	reaped := 0
	for i := range expired {
		// Re-read with seats loaded; the sweep query returns bare rows.
		booking, err := s.bookingRepo.GetByID(expired[i].ID)
		if err != nil || booking == nil {
			continue
		}
		transitioned, err := s.bookingRepo.Cancel(booking.ID)
		if err != nil {
			s.logger.WithError(err).WithField("booking_id", booking.ID).
				Error("Failed to cancel expired booking")
			continue
		}
		if !transitioned {
			continue
		}
		if err := s.releaseAllLegs(booking); err != nil {
			s.logger.WithError(err).WithField("booking_id", booking.ID).
				Error("Seat release failed for reaped booking")
			continue
		}
		reaped++
	}

	if reaped > 0 {
		s.logger.WithField("count", reaped).Info("Reaped expired pending bookings")
	}
	return reaped, nil
}

// ReleaseStrandedSeats re-drives seat release for cancelled bookings that
// still hold seat rows, repairing cancels whose release step failed midway.
// Returns the number of bookings repaired.
func (s *BookingService) ReleaseStrandedSeats() (int, error) {
	stranded, err := s.bookingRepo.ListCancelledHoldingSeats(100)
	if err != nil {
		return 0, err
	}

	repaired := 0
	for i := range stranded {
		// Re-read with seats loaded; the sweep query returns bare rows.
		booking, err := s.bookingRepo.GetByID(stranded[i].ID)
		if err != nil || booking == nil {
			continue
		}
		if err := s.releaseAllLegs(booking); err != nil {
			s.logger.WithError(err).WithField("booking_id", booking.ID).Error("Stranded seat release failed")
			continue
		}
		repaired++
	}

	if repaired > 0 {
		s.logger.WithField("count", repaired).Info("Released stranded seats")
	}
	return repaired, nil
}

// releaseAllLegs returns every seat the booking holds to its trip's pool.
// Release is idempotent, so re-driving this after a partial failure is safe.
func (s *BookingService) releaseAllLegs(booking *models.Booking) error {
	if err := s.inventoryRepo.ReleaseSeats(booking.TripID, booking.ID, booking.Seats); err != nil {
		return err
	}
	if booking.ReturnTripID != nil && len(booking.ReturnSeats) > 0 {
		if err := s.inventoryRepo.ReleaseSeats(*booking.ReturnTripID, booking.ID, booking.ReturnSeats); err != nil {
			return err
		}
	}
	return nil
}

func (s *BookingService) getBooking(bookingID string) (*models.Booking, error) {
	booking, err := s.bookingRepo.GetByID(bookingID)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, models.ErrBookingNotFound
	}
	return booking, nil
}

func (s *BookingService) generateReference() (string, error) {
	for attempts := 0; attempts < 10; attempts++ {
		ref, err := reference.New(time.Now())
		if err != nil {
			return "", err
		}
		exists, err := s.bookingRepo.ReferenceExists(ref)
		if err != nil {
			return "", err
		}
		if !exists {
			return ref, nil
		}
	}
	return "", fmt.Errorf("failed to generate unique booking reference after 10 attempts")
}

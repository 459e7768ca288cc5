package services

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/swiftbus/booking-backend/internal/database"
	"github.com/swiftbus/booking-backend/internal/models"
)

// TripService owns trip catalog operations. Seat counters are only ever
// mutated through the inventory ledger; this service handles the catalog
// fields and the departed guard.
type TripService struct {
	tripRepo *database.TripRepository
	logger   *logrus.Logger
}

// NewTripService creates a new TripService
func NewTripService(tripRepo *database.TripRepository, logger *logrus.Logger) *TripService {
	return &TripService{
		tripRepo: tripRepo,
		logger:   logger,
	}
}

// CreateTrip creates a trip with a full seat pool and departed unset
func (s *TripService) CreateTrip(req *models.CreateTripRequest) (*models.Trip, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	departure, err := time.Parse(time.RFC3339, req.DepartureAt)
	if err != nil {
		return nil, fmt.Errorf("invalid departure_at: %w", err)
	}

	trip := &models.Trip{
		RouteName:       req.RouteName,
		Origin:          req.Origin,
		Destination:     req.Destination,
		DepartureAt:     departure,
		DurationMinutes: req.DurationMinutes,
		Fare:            req.Fare,
		ServiceType:     models.ServiceType(req.ServiceType),
		PromoActive:     req.PromoActive,
		PromoPrice:      req.PromoPrice,
		TotalSeats:      req.TotalSeats,
		AvailableSeats:  req.TotalSeats,
		Departed:        false,
	}

	if err := s.tripRepo.Create(trip); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"trip_id":      trip.ID,
		"route":        trip.RouteName,
		"departure_at": trip.DepartureAt,
		"total_seats":  trip.TotalSeats,
	}).Info("Trip created")

	return trip, nil
}

// GetTrip retrieves a trip by ID
func (s *TripService) GetTrip(tripID string) (*models.Trip, error) {
	trip, err := s.tripRepo.GetByID(tripID)
	if err != nil {
		return nil, err
	}
	if trip == nil {
		return nil, models.ErrTripNotFound
	}
	return trip, nil
}

// ListTrips returns trips matching the filter
func (s *TripService) ListTrips(filter *models.TripFilter) ([]models.Trip, error) {
	return s.tripRepo.ListByFilter(filter)
}

// UpdateTrip applies a partial update. Departed trips are immutable unless
// the caller is an operator; seat-capacity edits that would drop available
// seats below outstanding holds are rejected at the row.
func (s *TripService) UpdateTrip(tripID string, req *models.UpdateTripRequest, operatorOverride bool) (*models.Trip, error) {
	trip, err := s.GetTrip(tripID)
	if err != nil {
		return nil, err
	}
	if trip.Departed && !operatorOverride {
		return nil, models.ErrTripDeparted
	}
	if req.IsEmpty() {
		return trip, nil
	}

	if err := s.tripRepo.Update(tripID, req); err != nil {
		return nil, err
	}

	s.logger.WithField("trip_id", tripID).Info("Trip updated")
	return s.GetTrip(tripID)
}

// DeleteTrip removes a trip. The repository's conditional delete rejects it
// while any non-cancelled booking references the trip.
func (s *TripService) DeleteTrip(tripID string) error {
	if err := s.tripRepo.Delete(tripID); err != nil {
		return err
	}
	s.logger.WithField("trip_id", tripID).Info("Trip deleted")
	return nil
}

// MarkDeparted flags the trip as departed. Idempotent.
func (s *TripService) MarkDeparted(tripID string) error {
	if err := s.tripRepo.MarkDeparted(tripID); err != nil {
		return err
	}
	s.logger.WithField("trip_id", tripID).Info("Trip marked departed")
	return nil
}

// LastScheduledDate returns the latest departure across all trips, or nil
// when no trips exist
func (s *TripService) LastScheduledDate() (*time.Time, error) {
	return s.tripRepo.LastScheduledDate()
}

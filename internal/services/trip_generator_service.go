package services

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/swiftbus/booking-backend/internal/models"
)

// TripGeneratorService applies the single-trip invariants across generated
// date ranges and filtered batch updates. Batches are best-effort: item
// failures are collected and reported, never fatal to the batch.
type TripGeneratorService struct {
	tripService *TripService
	logger      *logrus.Logger
}

// NewTripGeneratorService creates a new TripGeneratorService
func NewTripGeneratorService(tripService *TripService, logger *logrus.Logger) *TripGeneratorService {
	return &TripGeneratorService{
		tripService: tripService,
		logger:      logger,
	}
}

// GenerateTrips synthesizes one trip per template per calendar day in
// [startDate, endDate], inclusive. Every trip goes through the same create
// path as a single-trip create.
func (s *TripGeneratorService) GenerateTrips(templates []models.TripTemplate, startDate, endDate time.Time) (*models.BatchResult, error) {
	if endDate.Before(startDate) {
		return nil, fmt.Errorf("%w: end date %s is before start date %s", models.ErrValidation,
			endDate.Format("2006-01-02"), startDate.Format("2006-01-02"))
	}

	result := &models.BatchResult{}

	for day := truncateToDay(startDate); !day.After(truncateToDay(endDate)); day = day.AddDate(0, 0, 1) {
		for i := range templates {
			tmpl := &templates[i]
			req, err := s.requestForDay(tmpl, day)
			if err != nil {
				result.AddFailure(itemLabel(tmpl, day), err.Error())
				continue
			}
			if _, err := s.tripService.CreateTrip(req); err != nil {
				result.AddFailure(itemLabel(tmpl, day), err.Error())
				continue
			}
			result.Succeeded++
		}
	}

	s.logger.WithFields(logrus.Fields{
		"templates": len(templates),
		"from":      startDate.Format("2006-01-02"),
		"to":        endDate.Format("2006-01-02"),
		"succeeded": result.Succeeded,
		"failed":    len(result.Failed),
	}).Info("Bulk trip generation finished")

	return result, nil
}

// GenerateAhead tops up the schedule so that trips exist through daysAhead
// days from now, re-running the templates from the day after the last
// scheduled departure. No-op when the horizon is already covered.
func (s *TripGeneratorService) GenerateAhead(templates []models.TripTemplate, daysAhead int) (*models.BatchResult, error) {
	start := truncateToDay(time.Now())
	last, err := s.tripService.LastScheduledDate()
	if err != nil {
		return nil, err
	}
	if last != nil {
		dayAfter := truncateToDay(*last).AddDate(0, 0, 1)
		if dayAfter.After(start) {
			start = dayAfter
		}
	}

	end := truncateToDay(time.Now()).AddDate(0, 0, daysAhead)
	if start.After(end) {
		return &models.BatchResult{}, nil
	}

	return s.GenerateTrips(templates, start, end)
}

// BulkUpdate applies the field changes to every trip matching the filter.
// Trips where the change would violate an invariant are skipped and
// reported, not partially updated.
func (s *TripGeneratorService) BulkUpdate(filter *models.TripFilter, changes *models.UpdateTripRequest) (*models.BatchResult, error) {
	trips, err := s.tripService.ListTrips(filter)
	if err != nil {
		return nil, err
	}

	result := &models.BatchResult{}
	for i := range trips {
		if _, err := s.tripService.UpdateTrip(trips[i].ID, changes, filter.IncludeDeparted); err != nil {
			result.AddFailure(trips[i].ID, err.Error())
			continue
		}
		result.Succeeded++
	}

	s.logger.WithFields(logrus.Fields{
		"matched":   len(trips),
		"succeeded": result.Succeeded,
		"failed":    len(result.Failed),
	}).Info("Bulk trip update finished")

	return result, nil
}

func (s *TripGeneratorService) requestForDay(tmpl *models.TripTemplate, day time.Time) (*models.CreateTripRequest, error) {
	clock, err := time.Parse("15:04", tmpl.DepartureTime)
	if err != nil {
		return nil, fmt.Errorf("invalid departure_time %q: %w", tmpl.DepartureTime, err)
	}

	departure := time.Date(day.Year(), day.Month(), day.Day(),
		clock.Hour(), clock.Minute(), 0, 0, day.Location())

	return &models.CreateTripRequest{
		RouteName:       tmpl.RouteName,
		Origin:          tmpl.Origin,
		Destination:     tmpl.Destination,
		DepartureAt:     departure.Format(time.RFC3339),
		DurationMinutes: tmpl.DurationMinutes,
		Fare:            tmpl.Fare,
		ServiceType:     tmpl.ServiceType,
		PromoActive:     tmpl.PromoActive,
		PromoPrice:      tmpl.PromoPrice,
		TotalSeats:      tmpl.TotalSeats,
	}, nil
}

func itemLabel(tmpl *models.TripTemplate, day time.Time) string {
	return fmt.Sprintf("%s@%s %s", tmpl.RouteName, day.Format("2006-01-02"), tmpl.DepartureTime)
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

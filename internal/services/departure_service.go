package services

import (
	"time"

	"github.com/sirupsen/logrus"
	"github.com/swiftbus/booking-backend/internal/database"
)

// DepartureService periodically flags trips whose departure instant has
// passed. Purely additive: departed never reverts. Reservations do not rely
// on this sweep — the inventory ledger re-checks departed at write time — so
// a late tick can never sell a seat on a departed trip.
type DepartureService struct {
	tripRepo *database.TripRepository
	logger   *logrus.Logger
	stopCh   chan struct{}
	interval time.Duration
}

// NewDepartureService creates a new departure sweep service
func NewDepartureService(tripRepo *database.TripRepository, interval time.Duration, logger *logrus.Logger) *DepartureService {
	return &DepartureService{
		tripRepo: tripRepo,
		logger:   logger,
		stopCh:   make(chan struct{}),
		interval: interval,
	}
}

// Start begins the background departure sweep
func (s *DepartureService) Start() {
	s.logger.WithField("interval", s.interval).Info("Starting departure sweep")
	go s.run()
}

// Stop stops the background sweep
func (s *DepartureService) Stop() {
	s.logger.Info("Stopping departure sweep")
	close(s.stopCh)
}

func (s *DepartureService) run() {
	// Run immediately on start
	s.RunOnce()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.RunOnce()
		case <-s.stopCh:
			s.logger.Info("Departure sweep stopped")
			return
		}
	}
}

// RunOnce performs a single sweep, marking every due trip departed.
// Returns the number of trips transitioned.
func (s *DepartureService) RunOnce() int {
	due, err := s.tripRepo.ListDueForDeparture(time.Now(), 100)
	if err != nil {
		s.logger.WithError(err).Error("Failed to list due trips")
		return 0
	}

	marked := 0
	for i := range due {
		if err := s.tripRepo.MarkDeparted(due[i].ID); err != nil {
			s.logger.WithError(err).WithField("trip_id", due[i].ID).Error("Failed to mark trip departed")
			continue
		}
		marked++
	}

	if marked > 0 {
		s.logger.WithField("count", marked).Info("Marked trips departed")
	}
	return marked
}

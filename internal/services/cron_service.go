package services

import (
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/swiftbus/booking-backend/internal/config"
	"github.com/swiftbus/booking-backend/internal/models"
)

// CronService manages scheduled background jobs: the pending-booking reaper
// and the daily schedule top-up.
type CronService struct {
	cron          *cron.Cron
	bookingSvc    *BookingService
	generatorSvc  *TripGeneratorService
	cfg           config.SchedulerConfig
	bookingCfg    config.BookingConfig
	logger        *logrus.Logger
	tripTemplates []models.TripTemplate
}

// NewCronService creates a new CronService. tripTemplates are the recurring
// departures the daily top-up maintains; an empty slice disables top-up.
func NewCronService(
	bookingSvc *BookingService,
	generatorSvc *TripGeneratorService,
	cfg config.SchedulerConfig,
	bookingCfg config.BookingConfig,
	tripTemplates []models.TripTemplate,
	logger *logrus.Logger,
) *CronService {
	return &CronService{
		cron:          cron.New(cron.WithSeconds()),
		bookingSvc:    bookingSvc,
		generatorSvc:  generatorSvc,
		cfg:           cfg,
		bookingCfg:    bookingCfg,
		tripTemplates: tripTemplates,
		logger:        logger,
	}
}

// Start registers and starts all cron jobs
func (s *CronService) Start() error {
	if _, err := s.cron.AddFunc(s.cfg.ReapSchedule, s.reapPendingJob); err != nil {
		return fmt.Errorf("failed to schedule pending reaper: %w", err)
	}
	s.logger.WithField("schedule", s.cfg.ReapSchedule).Info("Scheduled: reap expired pending bookings")

	if len(s.tripTemplates) > 0 {
		if _, err := s.cron.AddFunc(s.cfg.GenerateSchedule, s.generateAheadJob); err != nil {
			return fmt.Errorf("failed to schedule trip generation: %w", err)
		}
		s.logger.WithField("schedule", s.cfg.GenerateSchedule).Info("Scheduled: generate trips ahead")
	}

	s.cron.Start()
	s.logger.Info("Cron service started")
	return nil
}

// Stop stops all cron jobs and waits for running ones to finish
func (s *CronService) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Cron service stopped")
}

func (s *CronService) reapPendingJob() {
	reaped, err := s.bookingSvc.ReapExpiredPendingBookings(s.bookingCfg.PendingTTL)
	if err != nil {
		s.logger.WithError(err).Error("Pending reaper failed")
	} else if reaped > 0 {
		s.logger.WithField("count", reaped).Info("Pending reaper finished")
	}

	// Re-drive releases for cancelled bookings whose seats are still held.
	if _, err := s.bookingSvc.ReleaseStrandedSeats(); err != nil {
		s.logger.WithError(err).Error("Stranded seat sweep failed")
	}
}

func (s *CronService) generateAheadJob() {
	result, err := s.generatorSvc.GenerateAhead(s.tripTemplates, s.cfg.GenerateDaysAhead)
	if err != nil {
		s.logger.WithError(err).Error("Trip generation job failed")
		return
	}
	s.logger.WithFields(logrus.Fields{
		"succeeded": result.Succeeded,
		"failed":    len(result.Failed),
	}).Info("Trip generation job finished")
}

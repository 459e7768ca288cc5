package services

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/swiftbus/booking-backend/internal/database"
	"github.com/swiftbus/booking-backend/internal/models"
)

// InquiryService handles bus hire inquiries
type InquiryService struct {
	inquiryRepo *database.InquiryRepository
	logger      *logrus.Logger
}

// NewInquiryService creates a new inquiry service
func NewInquiryService(inquiryRepo *database.InquiryRepository, logger *logrus.Logger) *InquiryService {
	return &InquiryService{
		inquiryRepo: inquiryRepo,
		logger:      logger,
	}
}

// CreateInquiry records a new bus hire inquiry
func (s *InquiryService) CreateInquiry(req *models.CreateInquiryRequest) (*models.Inquiry, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	travelDate, _ := time.Parse("2006-01-02", req.TravelDate)
	inquiry := &models.Inquiry{
		ID:          uuid.New().String(),
		Name:        req.Name,
		Email:       req.Email,
		Phone:       req.Phone,
		Origin:      req.Origin,
		Destination: req.Destination,
		TravelDate:  travelDate,
		GroupSize:   req.GroupSize,
		Notes:       req.Notes,
		Status:      models.InquiryStatusNew,
	}

	if err := s.inquiryRepo.Create(inquiry); err != nil {
		return nil, fmt.Errorf("failed to create inquiry: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"inquiry_id": inquiry.ID,
		"origin":     inquiry.Origin,
	}).Info("Bus hire inquiry created")

	return inquiry, nil
}

// GetInquiry retrieves an inquiry by ID
func (s *InquiryService) GetInquiry(id string) (*models.Inquiry, error) {
	inquiry, err := s.inquiryRepo.GetByID(id)
	if err != nil {
		return nil, fmt.Errorf("failed to get inquiry: %w", err)
	}
	if inquiry == nil {
		return nil, models.ErrInquiryNotFound
	}
	return inquiry, nil
}

// ListInquiries returns inquiries, newest first
func (s *InquiryService) ListInquiries(limit, offset int) ([]models.Inquiry, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.inquiryRepo.List(limit, offset)
}

// UpdateInquiryStatus moves an inquiry through its triage lifecycle
func (s *InquiryService) UpdateInquiryStatus(id, status string) error {
	if !models.ValidInquiryStatus(status) {
		return fmt.Errorf("invalid inquiry status %q", status)
	}

	if err := s.inquiryRepo.UpdateStatus(id, models.InquiryStatus(status)); err != nil {
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"inquiry_id": id,
		"status":     status,
	}).Info("Inquiry status updated")

	return nil
}

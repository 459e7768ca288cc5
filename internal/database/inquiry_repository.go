package database

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/swiftbus/booking-backend/internal/models"
)

// InquiryRepository handles database operations for bus-hire inquiries
type InquiryRepository struct {
	db DB
}

// NewInquiryRepository creates a new InquiryRepository
func NewInquiryRepository(db DB) *InquiryRepository {
	return &InquiryRepository{db: db}
}

// Create creates a new inquiry in the "new" status
func (r *InquiryRepository) Create(inquiry *models.Inquiry) error {
	if inquiry.ID == "" {
		inquiry.ID = uuid.New().String()
	}
	inquiry.Status = models.InquiryStatusNew

	query := `
		INSERT INTO inquiries (
			id, name, email, phone, origin, destination,
			travel_date, group_size, notes, status
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRow(query,
		inquiry.ID, inquiry.Name, inquiry.Email, inquiry.Phone, inquiry.Origin, inquiry.Destination,
		inquiry.TravelDate, inquiry.GroupSize, inquiry.Notes, inquiry.Status,
	).Scan(&inquiry.CreatedAt, &inquiry.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create inquiry: %w", err)
	}
	return nil
}

// GetByID retrieves an inquiry by ID. Returns (nil, nil) when not found.
func (r *InquiryRepository) GetByID(inquiryID string) (*models.Inquiry, error) {
	var inquiry models.Inquiry
	err := r.db.Get(&inquiry, `
		SELECT id, name, email, phone, origin, destination,
		       travel_date, group_size, notes, status, created_at, updated_at
		FROM inquiries WHERE id = $1`, inquiryID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get inquiry: %w", err)
	}
	return &inquiry, nil
}

// List returns inquiries, newest first
func (r *InquiryRepository) List(limit, offset int) ([]models.Inquiry, error) {
	var inquiries []models.Inquiry
	err := r.db.Select(&inquiries, `
		SELECT id, name, email, phone, origin, destination,
		       travel_date, group_size, notes, status, created_at, updated_at
		FROM inquiries
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list inquiries: %w", err)
	}
	return inquiries, nil
}

// UpdateStatus updates the handling status of an inquiry
func (r *InquiryRepository) UpdateStatus(inquiryID string, status models.InquiryStatus) error {
	result, err := r.db.Exec(`
		UPDATE inquiries SET status = $2, updated_at = NOW() WHERE id = $1`,
		inquiryID, status)
	if err != nil {
		return fmt.Errorf("failed to update inquiry status: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return models.ErrInquiryNotFound
	}
	return nil
}

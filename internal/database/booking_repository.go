package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/swiftbus/booking-backend/internal/models"
)

// BookingRepository handles database operations for bookings and passengers.
// Lifecycle transitions are conditional updates keyed on the current status,
// so an out-of-order transition fails at the row instead of racing.
type BookingRepository struct {
	db *sqlx.DB
}

// NewBookingRepository creates a new BookingRepository
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

const bookingColumns = `id, reference, trip_id, return_trip_id,
	   contact_name, contact_email, contact_phone, total_price,
	   payment_status, status, scanned, last_scanned_at, scanner_id,
	   agent_id, created_at, updated_at`

// Create persists a booking and its passengers in one transaction. Seats are
// already held in booking_seats by the inventory ledger at this point.
func (r *BookingRepository) Create(booking *models.Booking, passengers []models.Passenger) error {
	tx, err := r.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin booking create: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO bookings (
			id, reference, trip_id, return_trip_id,
			contact_name, contact_email, contact_phone, total_price,
			payment_status, status, agent_id
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
		)
		RETURNING created_at, updated_at
	`

	err = tx.QueryRowx(query,
		booking.ID, booking.Reference, booking.TripID, booking.ReturnTripID,
		booking.ContactName, booking.ContactEmail, booking.ContactPhone, booking.TotalPrice,
		booking.PaymentStatus, booking.Status, booking.AgentID,
	).Scan(&booking.CreatedAt, &booking.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}

	for i := range passengers {
		p := &passengers[i]
		if p.ID == "" {
			p.ID = uuid.New().String()
		}
		p.BookingID = booking.ID
		_, err = tx.Exec(`
			INSERT INTO passengers (id, booking_id, name, title, seat_id, return_leg)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			p.ID, p.BookingID, p.Name, p.Title, p.SeatID, p.ReturnLeg)
		if err != nil {
			return fmt.Errorf("failed to create passenger: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit booking create: %w", err)
	}
	booking.Passengers = passengers
	return nil
}

// GetByID retrieves a booking with its seats and passengers. Returns
// (nil, nil) when not found.
func (r *BookingRepository) GetByID(bookingID string) (*models.Booking, error) {
	var booking models.Booking
	err := r.db.Get(&booking, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, bookingID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	if err := r.loadChildren(&booking); err != nil {
		return nil, err
	}
	return &booking, nil
}

// GetByReference retrieves a booking by its order reference. Returns
// (nil, nil) when not found.
func (r *BookingRepository) GetByReference(reference string) (*models.Booking, error) {
	var booking models.Booking
	err := r.db.Get(&booking, `SELECT `+bookingColumns+` FROM bookings WHERE reference = $1`, reference)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking by reference: %w", err)
	}
	if err := r.loadChildren(&booking); err != nil {
		return nil, err
	}
	return &booking, nil
}

func (r *BookingRepository) loadChildren(booking *models.Booking) error {
	type seatRow struct {
		SeatID    string `db:"seat_id"`
		ReturnLeg bool   `db:"return_leg"`
	}
	var seats []seatRow
	err := r.db.Select(&seats, `
		SELECT seat_id, return_leg FROM booking_seats
		WHERE booking_id = $1 ORDER BY seat_id`, booking.ID)
	if err != nil {
		return fmt.Errorf("failed to load booking seats: %w", err)
	}
	for _, s := range seats {
		if s.ReturnLeg {
			booking.ReturnSeats = append(booking.ReturnSeats, s.SeatID)
		} else {
			booking.Seats = append(booking.Seats, s.SeatID)
		}
	}

	err = r.db.Select(&booking.Passengers, `
		SELECT id, booking_id, name, title, seat_id, return_leg
		FROM passengers WHERE booking_id = $1 ORDER BY id`, booking.ID)
	if err != nil {
		return fmt.Errorf("failed to load passengers: %w", err)
	}
	return nil
}

// ReferenceExists checks whether an order reference is already taken
func (r *BookingRepository) ReferenceExists(reference string) (bool, error) {
	var count int
	if err := r.db.Get(&count, `SELECT COUNT(*) FROM bookings WHERE reference = $1`, reference); err != nil {
		return false, fmt.Errorf("failed to check reference uniqueness: %w", err)
	}
	return count > 0, nil
}

// ConfirmPending transitions pending → confirmed/paid. Reports whether the
// row was transitioned (false means it was not in pending).
func (r *BookingRepository) ConfirmPending(bookingID string) (bool, error) {
	result, err := r.db.Exec(`
		UPDATE bookings
		SET status = 'confirmed', payment_status = 'paid', updated_at = NOW()
		WHERE id = $1 AND status = 'pending'`, bookingID)
	if err != nil {
		return false, fmt.Errorf("failed to confirm booking: %w", err)
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

// Cancel transitions pending/confirmed → cancelled. A pending payment is
// cancelled with it; a completed payment is left for the refund path.
// Reports whether the row was transitioned.
func (r *BookingRepository) Cancel(bookingID string) (bool, error) {
	result, err := r.db.Exec(`
		UPDATE bookings
		SET status = 'cancelled',
		    payment_status = CASE WHEN payment_status = 'pending' THEN 'cancelled' ELSE payment_status END,
		    updated_at = NOW()
		WHERE id = $1 AND status IN ('pending', 'confirmed')`, bookingID)
	if err != nil {
		return false, fmt.Errorf("failed to cancel booking: %w", err)
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

// MarkPaymentFailed transitions a pending booking to cancelled with the
// payment recorded as failed. Reports whether the row was transitioned
// (false means the booking was no longer pending).
func (r *BookingRepository) MarkPaymentFailed(bookingID string) (bool, error) {
	result, err := r.db.Exec(`
		UPDATE bookings
		SET payment_status = 'failed', status = 'cancelled', updated_at = NOW()
		WHERE id = $1 AND status = 'pending'`, bookingID)
	if err != nil {
		return false, fmt.Errorf("failed to mark payment failed: %w", err)
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

// UpdateTripAssignment moves the booking's outbound leg to another trip
func (r *BookingRepository) UpdateTripAssignment(bookingID, newTripID string) error {
	result, err := r.db.Exec(`
		UPDATE bookings SET trip_id = $2, updated_at = NOW() WHERE id = $1`,
		bookingID, newTripID)
	if err != nil {
		return fmt.Errorf("failed to update trip assignment: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return models.ErrBookingNotFound
	}
	return nil
}

// UpdatePassengerSeat reassigns a passenger from one seat to another on the
// given leg
func (r *BookingRepository) UpdatePassengerSeat(bookingID, oldSeatID, newSeatID string, returnLeg bool) error {
	_, err := r.db.Exec(`
		UPDATE passengers SET seat_id = $3
		WHERE booking_id = $1 AND seat_id = $2 AND return_leg = $4`,
		bookingID, oldSeatID, newSeatID, returnLeg)
	if err != nil {
		return fmt.Errorf("failed to update passenger seat: %w", err)
	}
	return nil
}

// MarkScanned flips the scanned flag exactly once on a confirmed booking.
// A repeated call returns the original scan metadata with AlreadyScanned set.
func (r *BookingRepository) MarkScanned(bookingID, scannerID string) (*models.ScanResult, error) {
	var scannedAt time.Time
	err := r.db.QueryRow(`
		UPDATE bookings
		SET scanned = TRUE, last_scanned_at = NOW(), scanner_id = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'confirmed' AND scanned = FALSE
		RETURNING last_scanned_at`, bookingID, scannerID).Scan(&scannedAt)
	if err == nil {
		return &models.ScanResult{AlreadyScanned: false, ScannedAt: scannedAt, ScannerID: scannerID}, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to mark booking scanned: %w", err)
	}

	// The conditional update matched nothing: already scanned, wrong state,
	// or missing. Read the row to tell them apart.
	var row struct {
		Status        models.BookingStatus `db:"status"`
		Scanned       bool                 `db:"scanned"`
		LastScannedAt *time.Time           `db:"last_scanned_at"`
		ScannerID     *string              `db:"scanner_id"`
	}
	err = r.db.Get(&row, `SELECT status, scanned, last_scanned_at, scanner_id FROM bookings WHERE id = $1`, bookingID)
	if err == sql.ErrNoRows {
		return nil, models.ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read scan state: %w", err)
	}

	if row.Scanned && row.LastScannedAt != nil {
		result := &models.ScanResult{AlreadyScanned: true, ScannedAt: *row.LastScannedAt}
		if row.ScannerID != nil {
			result.ScannerID = *row.ScannerID
		}
		return result, nil
	}
	return nil, &models.InvalidStateError{Op: "scan", From: row.Status}
}

// ListExpiredPending returns pending bookings created before the cutoff,
// oldest first, for the reaper sweep
func (r *BookingRepository) ListExpiredPending(cutoff time.Time, limit int) ([]models.Booking, error) {
	var bookings []models.Booking
	err := r.db.Select(&bookings, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE status = 'pending' AND created_at < $1
		ORDER BY created_at
		LIMIT $2`, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired pending bookings: %w", err)
	}
	return bookings, nil
}

// ListCancelledHoldingSeats returns cancelled bookings that still have seat
// rows, oldest first. Feed for the sweep that re-drives failed releases.
func (r *BookingRepository) ListCancelledHoldingSeats(limit int) ([]models.Booking, error) {
	var bookings []models.Booking
	err := r.db.Select(&bookings, `
		SELECT DISTINCT b.id, b.reference, b.trip_id, b.return_trip_id,
		       b.contact_name, b.contact_email, b.contact_phone, b.total_price,
		       b.payment_status, b.status, b.scanned, b.last_scanned_at, b.scanner_id,
		       b.agent_id, b.created_at, b.updated_at
		FROM bookings b
		JOIN booking_seats s ON s.booking_id = b.id
		WHERE b.status = 'cancelled'
		ORDER BY b.created_at
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list cancelled bookings holding seats: %w", err)
	}
	return bookings, nil
}

// ListByTrip returns bookings referencing the trip on either leg
func (r *BookingRepository) ListByTrip(tripID string) ([]models.Booking, error) {
	var bookings []models.Booking
	err := r.db.Select(&bookings, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE trip_id = $1 OR return_trip_id = $1
		ORDER BY created_at`, tripID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings by trip: %w", err)
	}
	return bookings, nil
}

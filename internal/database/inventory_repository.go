package database

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/swiftbus/booking-backend/internal/models"
)

// InventoryRepository is the only component that mutates available_seats.
// Seat reservation is serialized per trip by locking the trip row, so two
// requests for the same seat cannot both succeed.
type InventoryRepository struct {
	db *sqlx.DB
}

// NewInventoryRepository creates a new InventoryRepository
func NewInventoryRepository(db *sqlx.DB) *InventoryRepository {
	return &InventoryRepository{db: db}
}

// ReserveSeats atomically claims the requested seats for a booking and
// decrements the trip's available seat counter. All-or-nothing: on any
// failure no seat is held and the counter is untouched.
func (r *InventoryRepository) ReserveSeats(tripID, bookingID string, seatIDs []string, returnLeg bool) error {
	if len(seatIDs) == 0 {
		return nil
	}

	tx, err := r.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin reservation: %w", err)
	}
	defer tx.Rollback()

	// Lock the trip row for the duration of the reservation
	var trip struct {
		Departed       bool `db:"departed"`
		AvailableSeats int  `db:"available_seats"`
	}
	err = tx.Get(&trip, `SELECT departed, available_seats FROM trips WHERE id = $1 FOR UPDATE`, tripID)
	if err == sql.ErrNoRows {
		return models.ErrTripNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to lock trip: %w", err)
	}
	if trip.Departed {
		return models.ErrTripDeparted
	}
	if trip.AvailableSeats < len(seatIDs) {
		return &models.SeatUnavailableError{TripID: tripID}
	}

	// Claim seats; the unique index on (trip_id, seat_id) arbitrates
	// collisions with seats already held by other bookings.
	values := make([]string, len(seatIDs))
	args := make([]interface{}, 0, len(seatIDs)*4)
	for i, seatID := range seatIDs {
		base := i * 4
		values[i] = fmt.Sprintf("($%d, $%d, $%d, $%d)", base+1, base+2, base+3, base+4)
		args = append(args, tripID, seatID, bookingID, returnLeg)
	}
	insert := fmt.Sprintf(`
		INSERT INTO booking_seats (trip_id, seat_id, booking_id, return_leg)
		VALUES %s
		ON CONFLICT (trip_id, seat_id) DO NOTHING`, strings.Join(values, ", "))

	result, err := tx.Exec(insert, args...)
	if err != nil {
		return fmt.Errorf("failed to claim seats: %w", err)
	}
	claimed, _ := result.RowsAffected()
	if int(claimed) < len(seatIDs) {
		taken, err := r.heldOf(tx, tripID, bookingID, seatIDs)
		if err != nil {
			taken = nil
		}
		return &models.SeatUnavailableError{TripID: tripID, Seats: taken}
	}

	result, err = tx.Exec(`
		UPDATE trips
		SET available_seats = available_seats - $2, updated_at = NOW()
		WHERE id = $1 AND available_seats >= $2 AND departed = FALSE`,
		tripID, len(seatIDs))
	if err != nil {
		return fmt.Errorf("failed to decrement available seats: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return &models.SeatUnavailableError{TripID: tripID}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit reservation: %w", err)
	}
	return nil
}

// heldOf returns which of the requested seats are held by another booking
func (r *InventoryRepository) heldOf(tx *sqlx.Tx, tripID, bookingID string, seatIDs []string) ([]string, error) {
	query, args, err := sqlx.In(`
		SELECT seat_id FROM booking_seats
		WHERE trip_id = ? AND booking_id <> ? AND seat_id IN (?)`,
		tripID, bookingID, seatIDs)
	if err != nil {
		return nil, err
	}
	query = tx.Rebind(query)

	var taken []string
	if err := tx.Select(&taken, query, args...); err != nil {
		return nil, err
	}
	return taken, nil
}

// ReleaseSeats returns the booking's seats on a trip to the pool and
// increments the available seat counter by the number actually released.
// Idempotent: releasing seats not currently held is a no-op.
func (r *InventoryRepository) ReleaseSeats(tripID, bookingID string, seatIDs []string) error {
	if len(seatIDs) == 0 {
		return nil
	}

	tx, err := r.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin release: %w", err)
	}
	defer tx.Rollback()

	query, args, err := sqlx.In(`
		DELETE FROM booking_seats
		WHERE trip_id = ? AND booking_id = ? AND seat_id IN (?)`,
		tripID, bookingID, seatIDs)
	if err != nil {
		return fmt.Errorf("failed to build release query: %w", err)
	}
	query = tx.Rebind(query)

	result, err := tx.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("failed to release seats: %w", err)
	}
	released, _ := result.RowsAffected()

	if released > 0 {
		_, err = tx.Exec(`
			UPDATE trips
			SET available_seats = LEAST(available_seats + $2, total_seats), updated_at = NOW()
			WHERE id = $1`,
			tripID, released)
		if err != nil {
			return fmt.Errorf("failed to increment available seats: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit release: %w", err)
	}
	return nil
}

// HeldSeats returns the seat identifiers currently held on a trip by a
// booking, split by leg
func (r *InventoryRepository) HeldSeats(tripID, bookingID string) (outbound, returning []string, err error) {
	type row struct {
		SeatID    string `db:"seat_id"`
		ReturnLeg bool   `db:"return_leg"`
	}
	var rows []row
	err = r.db.Select(&rows, `
		SELECT seat_id, return_leg FROM booking_seats
		WHERE trip_id = $1 AND booking_id = $2
		ORDER BY seat_id`, tripID, bookingID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get held seats: %w", err)
	}
	for _, s := range rows {
		if s.ReturnLeg {
			returning = append(returning, s.SeatID)
		} else {
			outbound = append(outbound, s.SeatID)
		}
	}
	return outbound, returning, nil
}

package database

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/swiftbus/booking-backend/internal/models"
)

// TripRepository handles database operations for the trips table
type TripRepository struct {
	db DB
}

// NewTripRepository creates a new TripRepository
func NewTripRepository(db DB) *TripRepository {
	return &TripRepository{db: db}
}

const tripColumns = `id, route_name, origin, destination, departure_at, duration_minutes,
	   fare, service_type, promo_active, promo_price,
	   total_seats, available_seats, departed, created_at, updated_at`

// Create creates a new trip. Available seats start equal to total seats.
func (r *TripRepository) Create(trip *models.Trip) error {
	if trip.ID == "" {
		trip.ID = uuid.New().String()
	}

	query := `
		INSERT INTO trips (
			id, route_name, origin, destination, departure_at, duration_minutes,
			fare, service_type, promo_active, promo_price,
			total_seats, available_seats, departed
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
		)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRow(
		query,
		trip.ID, trip.RouteName, trip.Origin, trip.Destination, trip.DepartureAt, trip.DurationMinutes,
		trip.Fare, trip.ServiceType, trip.PromoActive, trip.PromoPrice,
		trip.TotalSeats, trip.AvailableSeats, trip.Departed,
	).Scan(&trip.CreatedAt, &trip.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create trip: %w", err)
	}
	return nil
}

// GetByID retrieves a trip by ID. Returns (nil, nil) when not found.
func (r *TripRepository) GetByID(tripID string) (*models.Trip, error) {
	query := `SELECT ` + tripColumns + ` FROM trips WHERE id = $1`

	var trip models.Trip
	err := r.db.Get(&trip, query, tripID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get trip: %w", err)
	}
	return &trip, nil
}

// Update applies a partial field update as one conditional statement. The
// caller is responsible for the departed guard. A seat capacity edit shifts
// available seats by the same delta in the same statement and is rejected at
// the row when it would drop available seats below the outstanding holds, so
// capacity and field changes land together or not at all.
func (r *TripRepository) Update(tripID string, req *models.UpdateTripRequest) error {
	sets := make([]string, 0, 10)
	args := make([]interface{}, 0, 11)
	args = append(args, tripID)

	add := func(col string, val interface{}) {
		args = append(args, val)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if req.RouteName != nil {
		add("route_name", *req.RouteName)
	}
	if req.Origin != nil {
		add("origin", *req.Origin)
	}
	if req.Destination != nil {
		add("destination", *req.Destination)
	}
	if req.DepartureAt != nil {
		departure, err := time.Parse(time.RFC3339, *req.DepartureAt)
		if err != nil {
			return fmt.Errorf("invalid departure_at: %w", err)
		}
		add("departure_at", departure)
	}
	if req.DurationMinutes != nil {
		add("duration_minutes", *req.DurationMinutes)
	}
	if req.Fare != nil {
		add("fare", *req.Fare)
	}
	if req.ServiceType != nil {
		add("service_type", *req.ServiceType)
	}
	if req.PromoActive != nil {
		add("promo_active", *req.PromoActive)
	}
	if req.PromoPrice != nil {
		add("promo_price", *req.PromoPrice)
	}

	guard := ""
	if req.TotalSeats != nil {
		args = append(args, *req.TotalSeats)
		n := len(args)
		sets = append(sets,
			fmt.Sprintf("available_seats = available_seats + ($%d - total_seats)", n),
			fmt.Sprintf("total_seats = $%d", n))
		guard = fmt.Sprintf(" AND available_seats + ($%d - total_seats) >= 0", n)
	}

	if len(sets) == 0 {
		return nil
	}
	sets = append(sets, "updated_at = NOW()")

	query := fmt.Sprintf("UPDATE trips SET %s WHERE id = $1%s", strings.Join(sets, ", "), guard)
	result, err := r.db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("failed to update trip: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		trip, err := r.GetByID(tripID)
		if err != nil {
			return err
		}
		if trip == nil {
			return models.ErrTripNotFound
		}
		return fmt.Errorf("capacity edit would drop available seats below outstanding holds: %w", models.ErrConflict)
	}
	return nil
}

// Delete removes a trip, refusing while any non-cancelled booking references
// it on either leg. The NOT EXISTS guard keeps the check and the delete in
// one statement, so a booking created concurrently cannot be orphaned.
func (r *TripRepository) Delete(tripID string) error {
	result, err := r.db.Exec(`
		DELETE FROM trips
		WHERE id = $1
		  AND NOT EXISTS (
			SELECT 1 FROM bookings
			WHERE (trip_id = $1 OR return_trip_id = $1) AND status <> 'cancelled')`, tripID)
	if err != nil {
		return fmt.Errorf("failed to delete trip: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		trip, err := r.GetByID(tripID)
		if err != nil {
			return err
		}
		if trip == nil {
			return models.ErrTripNotFound
		}
		active, err := r.CountActiveBookings(tripID)
		if err != nil {
			return err
		}
		return fmt.Errorf("trip has %d active booking(s): %w", active, models.ErrConflict)
	}
	return nil
}

// CountActiveBookings returns the number of non-cancelled bookings
// referencing the trip on either leg
func (r *TripRepository) CountActiveBookings(tripID string) (int, error) {
	var count int
	query := `
		SELECT COUNT(*) FROM bookings
		WHERE (trip_id = $1 OR return_trip_id = $1) AND status <> 'cancelled'`
	if err := r.db.Get(&count, query, tripID); err != nil {
		return 0, fmt.Errorf("failed to count active bookings: %w", err)
	}
	return count, nil
}

// MarkDeparted sets the departed flag. Idempotent: marking an already
// departed trip is a no-op success.
func (r *TripRepository) MarkDeparted(tripID string) error {
	result, err := r.db.Exec(`UPDATE trips SET departed = TRUE, updated_at = NOW() WHERE id = $1`, tripID)
	if err != nil {
		return fmt.Errorf("failed to mark trip departed: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return models.ErrTripNotFound
	}
	return nil
}

// LastScheduledDate returns the maximum departure instant across all trips,
// or nil if none exist. Used to seed bulk generation.
func (r *TripRepository) LastScheduledDate() (*time.Time, error) {
	var last sql.NullTime
	if err := r.db.Get(&last, `SELECT MAX(departure_at) FROM trips`); err != nil {
		return nil, fmt.Errorf("failed to get last scheduled date: %w", err)
	}
	if !last.Valid {
		return nil, nil
	}
	return &last.Time, nil
}

// ListDueForDeparture returns non-departed trips whose departure instant has
// passed
func (r *TripRepository) ListDueForDeparture(now time.Time, limit int) ([]models.Trip, error) {
	query := `
		SELECT ` + tripColumns + `
		FROM trips
		WHERE departed = FALSE AND departure_at <= $1
		ORDER BY departure_at
		LIMIT $2`

	var trips []models.Trip
	if err := r.db.Select(&trips, query, now, limit); err != nil {
		return nil, fmt.Errorf("failed to list due trips: %w", err)
	}
	return trips, nil
}

// ListByFilter returns trips matching the filter, ordered by departure
func (r *TripRepository) ListByFilter(filter *models.TripFilter) ([]models.Trip, error) {
	conds := make([]string, 0, 5)
	args := make([]interface{}, 0, 5)

	add := func(cond string, val interface{}) {
		args = append(args, val)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if filter.RouteName != nil {
		add("route_name = $%d", *filter.RouteName)
	}
	if filter.Origin != nil {
		add("origin = $%d", *filter.Origin)
	}
	if filter.Destination != nil {
		add("destination = $%d", *filter.Destination)
	}
	if filter.DateFrom != nil {
		add("departure_at >= $%d", *filter.DateFrom)
	}
	if filter.DateTo != nil {
		add("departure_at <= $%d", *filter.DateTo)
	}
	if !filter.IncludeDeparted {
		conds = append(conds, "departed = FALSE")
	}

	query := `SELECT ` + tripColumns + ` FROM trips`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY departure_at"

	var trips []models.Trip
	if err := r.db.Select(&trips, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list trips: %w", err)
	}
	return trips, nil
}

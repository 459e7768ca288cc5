package database

import (
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swiftbus/booking-backend/internal/models"
)

func lockRow(departed bool, available int) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"departed", "available_seats"}).AddRow(departed, available)
}

func TestReserveSeats(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewInventoryRepository(db.DB)

	t.Run("Success", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT departed, available_seats FROM trips WHERE id = \$1 FOR UPDATE`).
			WithArgs("trip-1").
			WillReturnRows(lockRow(false, 10))
		mock.ExpectExec(`INSERT INTO booking_seats`).
			WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectExec(`UPDATE trips\s+SET available_seats = available_seats - \$2`).
			WithArgs("trip-1", 2).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := repo.ReserveSeats("trip-1", "bk-1", []string{"12A", "12B"}, false)
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Trip Not Found", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(`FOR UPDATE`).
			WithArgs("missing").
			WillReturnRows(sqlmock.NewRows([]string{"departed", "available_seats"}))
		mock.ExpectRollback()

		err := repo.ReserveSeats("missing", "bk-1", []string{"12A"}, false)
		assert.ErrorIs(t, err, models.ErrTripNotFound)
	})

	t.Run("Trip Departed", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(`FOR UPDATE`).
			WithArgs("trip-1").
			WillReturnRows(lockRow(true, 10))
		mock.ExpectRollback()

		err := repo.ReserveSeats("trip-1", "bk-1", []string{"12A"}, false)
		assert.ErrorIs(t, err, models.ErrTripDeparted)
	})

	t.Run("Insufficient Capacity", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(`FOR UPDATE`).
			WithArgs("trip-1").
			WillReturnRows(lockRow(false, 1))
		mock.ExpectRollback()

		err := repo.ReserveSeats("trip-1", "bk-1", []string{"12A", "12B"}, false)
		assert.ErrorIs(t, err, models.ErrSeatUnavailable)
	})

	t.Run("Seat Collision Reports Taken Seats", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(`FOR UPDATE`).
			WithArgs("trip-1").
			WillReturnRows(lockRow(false, 10))
		// Only one of two rows inserted: 12B is already held elsewhere.
		mock.ExpectExec(`INSERT INTO booking_seats`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`SELECT seat_id FROM booking_seats`).
			WillReturnRows(sqlmock.NewRows([]string{"seat_id"}).AddRow("12B"))
		mock.ExpectRollback()

		err := repo.ReserveSeats("trip-1", "bk-1", []string{"12A", "12B"}, false)
		require.Error(t, err)

		var seatErr *models.SeatUnavailableError
		require.True(t, errors.As(err, &seatErr))
		assert.Equal(t, []string{"12B"}, seatErr.Seats)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Counter Raced To Zero", func(t *testing.T) {
		// Seats inserted but the conditional decrement found the counter
		// already below the request: everything rolls back.
		mock.ExpectBegin()
		mock.ExpectQuery(`FOR UPDATE`).
			WithArgs("trip-1").
			WillReturnRows(lockRow(false, 2))
		mock.ExpectExec(`INSERT INTO booking_seats`).
			WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectExec(`UPDATE trips\s+SET available_seats = available_seats - \$2`).
			WithArgs("trip-1", 2).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		err := repo.ReserveSeats("trip-1", "bk-1", []string{"12A", "12B"}, false)
		assert.ErrorIs(t, err, models.ErrSeatUnavailable)
	})

	t.Run("No Seats Is No-op", func(t *testing.T) {
		err := repo.ReserveSeats("trip-1", "bk-1", nil, false)
		assert.NoError(t, err)
	})
}

func TestReleaseSeats(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewInventoryRepository(db.DB)

	t.Run("Success", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec(`DELETE FROM booking_seats`).
			WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectExec(`UPDATE trips\s+SET available_seats = LEAST\(available_seats \+ \$2, total_seats\)`).
			WithArgs("trip-1", int64(2)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := repo.ReleaseSeats("trip-1", "bk-1", []string{"12A", "12B"})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Nothing Held Is Idempotent", func(t *testing.T) {
		// No rows deleted, so the counter is untouched.
		mock.ExpectBegin()
		mock.ExpectExec(`DELETE FROM booking_seats`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()

		err := repo.ReleaseSeats("trip-1", "bk-1", []string{"12A", "12B"})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("No Seats Is No-op", func(t *testing.T) {
		err := repo.ReleaseSeats("trip-1", "bk-1", nil)
		assert.NoError(t, err)
	})
}

func TestHeldSeats(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewInventoryRepository(db.DB)

	mock.ExpectQuery(`SELECT seat_id, return_leg FROM booking_seats`).
		WithArgs("trip-1", "bk-1").
		WillReturnRows(sqlmock.NewRows([]string{"seat_id", "return_leg"}).
			AddRow("12A", false).
			AddRow("12B", false).
			AddRow("03C", true))

	outbound, returning, err := repo.HeldSeats("trip-1", "bk-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"12A", "12B"}, outbound)
	assert.Equal(t, []string{"03C"}, returning)
}

package services

import (
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swiftbus/booking-backend/internal/database"
	"github.com/swiftbus/booking-backend/internal/models"
)

var bookingTestColumns = []string{
	"id", "reference", "trip_id", "return_trip_id",
	"contact_name", "contact_email", "contact_phone", "total_price",
	"payment_status", "status", "scanned", "last_scanned_at", "scanner_id",
	"agent_id", "created_at", "updated_at",
}

var tripTestColumns = []string{
	"id", "route_name", "origin", "destination", "departure_at", "duration_minutes",
	"fare", "service_type", "promo_active", "promo_price",
	"total_seats", "available_seats", "departed", "created_at", "updated_at",
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestBookingService(t *testing.T) (*BookingService, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	sdb := sqlx.NewDb(db, "sqlmock")
	pg := &database.PostgresDB{DB: sdb}

	svc := NewBookingService(
		database.NewBookingRepository(sdb),
		database.NewInventoryRepository(sdb),
		database.NewTripRepository(pg),
		nil,
		BookingServiceConfig{ChangeWindow: 24 * time.Hour, PendingTTL: 30 * time.Minute, Currency: "LKR"},
		testLogger(),
	)
	return svc, mock
}

func expectBookingFetch(mock sqlmock.Sqlmock, id, status string, seats []string) {
	now := time.Now()
	mock.ExpectQuery(`FROM bookings WHERE id = \$1`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(bookingTestColumns).AddRow(
			id, "BK-20260830-A1B2C3", "trip-1", nil,
			"Nimal Perera", "nimal@example.com", "+94712345678", 3000.0,
			"pending", status, false, nil, nil,
			nil, now, now,
		))

	seatRows := sqlmock.NewRows([]string{"seat_id", "return_leg"})
	passengerRows := sqlmock.NewRows([]string{"id", "booking_id", "name", "title", "seat_id", "return_leg"})
	for _, s := range seats {
		seatRows.AddRow(s, false)
		passengerRows.AddRow("p-"+s, id, "Passenger", "Mr", s, false)
	}
	mock.ExpectQuery(`SELECT seat_id, return_leg FROM booking_seats`).
		WithArgs(id).
		WillReturnRows(seatRows)
	mock.ExpectQuery(`FROM passengers WHERE booking_id = \$1`).
		WithArgs(id).
		WillReturnRows(passengerRows)
}

func expectTripFetch(mock sqlmock.Sqlmock, id string, departureIn time.Duration, departed bool) {
	now := time.Now()
	mock.ExpectQuery(`SELECT (.+) FROM trips WHERE id = \$1`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(tripTestColumns).AddRow(
			id, "Colombo - Kandy", "Colombo", "Kandy", now.Add(departureIn), 180,
			1500.0, "luxury", false, nil,
			40, 38, departed, now, now,
		))
}

func expectRelease(mock sqlmock.Sqlmock, tripID string, count int) {
	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM booking_seats`).
		WillReturnResult(sqlmock.NewResult(0, int64(count)))
	if count > 0 {
		mock.ExpectExec(`UPDATE trips\s+SET available_seats = LEAST`).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectCommit()
}

func TestCancelBooking(t *testing.T) {
	t.Run("Inside Change Window Rejected", func(t *testing.T) {
		svc, mock := newTestBookingService(t)

		expectBookingFetch(mock, "bk-1", "confirmed", []string{"12A", "12B"})
		expectTripFetch(mock, "trip-1", 2*time.Hour, false)

		err := svc.CancelBooking("bk-1", "change of plans", false)
		assert.ErrorIs(t, err, models.ErrChangeWindowClosed)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Operator Override Bypasses Window", func(t *testing.T) {
		svc, mock := newTestBookingService(t)

		expectBookingFetch(mock, "bk-1", "confirmed", []string{"12A", "12B"})
		mock.ExpectExec(`UPDATE bookings\s+SET status = 'cancelled'`).
			WithArgs("bk-1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		expectRelease(mock, "trip-1", 2)

		err := svc.CancelBooking("bk-1", "operator action", true)
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Outside Window Releases Seats", func(t *testing.T) {
		svc, mock := newTestBookingService(t)

		expectBookingFetch(mock, "bk-1", "pending", []string{"12A"})
		expectTripFetch(mock, "trip-1", 72*time.Hour, false)
		mock.ExpectExec(`UPDATE bookings\s+SET status = 'cancelled'`).
			WithArgs("bk-1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		expectRelease(mock, "trip-1", 1)

		err := svc.CancelBooking("bk-1", "", false)
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Already Cancelled", func(t *testing.T) {
		svc, mock := newTestBookingService(t)

		expectBookingFetch(mock, "bk-1", "cancelled", nil)

		err := svc.CancelBooking("bk-1", "", true)
		assert.ErrorIs(t, err, models.ErrInvalidState)
	})

	t.Run("Lost Cancel Race Does Not Release Twice", func(t *testing.T) {
		svc, mock := newTestBookingService(t)

		expectBookingFetch(mock, "bk-1", "confirmed", []string{"12A"})
		// Another cancel won between the read and the conditional update.
		mock.ExpectExec(`UPDATE bookings\s+SET status = 'cancelled'`).
			WithArgs("bk-1").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := svc.CancelBooking("bk-1", "", true)
		assert.ErrorIs(t, err, models.ErrInvalidState)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Release Failure Is Surfaced", func(t *testing.T) {
		svc, mock := newTestBookingService(t)

		expectBookingFetch(mock, "bk-1", "confirmed", []string{"12A"})
		mock.ExpectExec(`UPDATE bookings\s+SET status = 'cancelled'`).
			WithArgs("bk-1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		// The row is cancelled but the seat release tx dies; the caller
		// must not be told success while the seats are still held.
		mock.ExpectBegin()
		mock.ExpectExec(`DELETE FROM booking_seats`).
			WillReturnError(fmt.Errorf("connection reset"))
		mock.ExpectRollback()

		err := svc.CancelBooking("bk-1", "", true)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "seat release failed")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Not Found", func(t *testing.T) {
		svc, mock := newTestBookingService(t)

		mock.ExpectQuery(`FROM bookings WHERE id = \$1`).
			WithArgs("missing").
			WillReturnRows(sqlmock.NewRows(bookingTestColumns))

		err := svc.CancelBooking("missing", "", false)
		assert.ErrorIs(t, err, models.ErrBookingNotFound)
	})
}

func TestFailPayment(t *testing.T) {
	t.Run("Gateway Failure Cancels And Releases", func(t *testing.T) {
		svc, mock := newTestBookingService(t)

		expectBookingFetch(mock, "bk-1", "pending", []string{"12A", "12B"})
		mock.ExpectExec(`UPDATE bookings\s+SET payment_status = 'failed', status = 'cancelled'`).
			WithArgs("bk-1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		expectRelease(mock, "trip-1", 2)

		err := svc.FailPayment("bk-1")
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Duplicate Gateway Notification Is Idempotent", func(t *testing.T) {
		svc, mock := newTestBookingService(t)

		expectBookingFetch(mock, "bk-1", "cancelled", nil)
		mock.ExpectExec(`UPDATE bookings\s+SET payment_status = 'failed', status = 'cancelled'`).
			WithArgs("bk-1").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := svc.FailPayment("bk-1")
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Confirmed Booking Is Left Alone", func(t *testing.T) {
		svc, mock := newTestBookingService(t)

		expectBookingFetch(mock, "bk-1", "confirmed", []string{"12A"})
		mock.ExpectExec(`UPDATE bookings\s+SET payment_status = 'failed', status = 'cancelled'`).
			WithArgs("bk-1").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := svc.FailPayment("bk-1")
		assert.ErrorIs(t, err, models.ErrInvalidState)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestConfirmBooking(t *testing.T) {
	t.Run("Pending Becomes Confirmed", func(t *testing.T) {
		svc, mock := newTestBookingService(t)

		expectBookingFetch(mock, "bk-1", "pending", []string{"12A"})
		mock.ExpectExec(`UPDATE bookings\s+SET status = 'confirmed', payment_status = 'paid'`).
			WithArgs("bk-1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		booking, err := svc.ConfirmBooking("bk-1")
		require.NoError(t, err)
		assert.Equal(t, models.BookingStatusConfirmed, booking.Status)
		assert.Equal(t, models.PaymentStatusPaid, booking.PaymentStatus)
	})

	t.Run("Confirm Is Pending-Only", func(t *testing.T) {
		svc, mock := newTestBookingService(t)

		expectBookingFetch(mock, "bk-1", "confirmed", []string{"12A"})
		mock.ExpectExec(`UPDATE bookings\s+SET status = 'confirmed', payment_status = 'paid'`).
			WithArgs("bk-1").
			WillReturnResult(sqlmock.NewResult(0, 0))

		_, err := svc.ConfirmBooking("bk-1")
		assert.ErrorIs(t, err, models.ErrInvalidState)
	})
}

func TestCreateBookingReturnLegFailure(t *testing.T) {
	// If the return leg cannot be reserved, the outbound seats must be
	// released before the error surfaces.
	svc, mock := newTestBookingService(t)

	returnTripID := "trip-2"
	req := &models.CreateBookingRequest{
		TripID:        "trip-1",
		SeatIDs:       []string{"12A"},
		ReturnTripID:  &returnTripID,
		ReturnSeatIDs: []string{"05C"},
		ContactName:   "Nimal Perera",
		ContactEmail:  "nimal@example.com",
		ContactPhone:  "+94712345678",
		Passengers: []models.PassengerRequest{
			{Name: "Nimal Perera", SeatID: "12A"},
			{Name: "Nimal Perera", SeatID: "05C", ReturnLeg: true},
		},
	}

	expectTripFetch(mock, "trip-1", 72*time.Hour, false)
	expectTripFetch(mock, "trip-2", 96*time.Hour, false)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM bookings WHERE reference = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	// Outbound reservation succeeds.
	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs("trip-1").
		WillReturnRows(sqlmock.NewRows([]string{"departed", "available_seats"}).AddRow(false, 10))
	mock.ExpectExec(`INSERT INTO booking_seats`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE trips\s+SET available_seats = available_seats - \$2`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	// Return leg fails: the trip departed between catalog read and lock.
	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs("trip-2").
		WillReturnRows(sqlmock.NewRows([]string{"departed", "available_seats"}).AddRow(true, 10))
	mock.ExpectRollback()

	// Outbound seats come back.
	expectRelease(mock, "trip-1", 1)

	booking, err := svc.CreateBooking(req)
	assert.Nil(t, booking)
	assert.ErrorIs(t, err, models.ErrTripDeparted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateBookingPricing(t *testing.T) {
	svc, mock := newTestBookingService(t)

	req := &models.CreateBookingRequest{
		TripID:       "trip-1",
		SeatIDs:      []string{"12A", "12B"},
		ContactName:  "Nimal Perera",
		ContactEmail: "nimal@example.com",
		ContactPhone: "+94712345678",
		Passengers: []models.PassengerRequest{
			{Name: "Nimal Perera", SeatID: "12A"},
			{Name: "Kamala Perera", SeatID: "12B"},
		},
	}

	now := time.Now()
	promo := 1200.0
	mock.ExpectQuery(`SELECT (.+) FROM trips WHERE id = \$1`).
		WithArgs("trip-1").
		WillReturnRows(sqlmock.NewRows(tripTestColumns).AddRow(
			"trip-1", "Colombo - Kandy", "Colombo", "Kandy", now.Add(72*time.Hour), 180,
			1500.0, "luxury", true, promo,
			40, 38, false, now, now,
		))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM bookings WHERE reference = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs("trip-1").
		WillReturnRows(sqlmock.NewRows([]string{"departed", "available_seats"}).AddRow(false, 10))
	mock.ExpectExec(`INSERT INTO booking_seats`).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`UPDATE trips\s+SET available_seats = available_seats - \$2`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO bookings`).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	mock.ExpectExec(`INSERT INTO passengers`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO passengers`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	booking, err := svc.CreateBooking(req)
	require.NoError(t, err)
	require.NotNil(t, booking)

	// Two seats at the active promo fare.
	assert.Equal(t, 2400.0, booking.TotalPrice)
	assert.Equal(t, models.BookingStatusPending, booking.Status)
	assert.Regexp(t, `^BK-\d{8}-[0-9A-F]{6}$`, booking.Reference)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRescheduleBooking(t *testing.T) {
	t.Run("Reservation Failure Restores Original Seats", func(t *testing.T) {
		svc, mock := newTestBookingService(t)

		expectBookingFetch(mock, "bk-1", "confirmed", []string{"12A"})
		expectTripFetch(mock, "trip-1", 72*time.Hour, false)

		// Release the old seats.
		expectRelease(mock, "trip-1", 1)

		// New trip has no capacity.
		mock.ExpectBegin()
		mock.ExpectQuery(`FOR UPDATE`).
			WithArgs("trip-9").
			WillReturnRows(sqlmock.NewRows([]string{"departed", "available_seats"}).AddRow(false, 0))
		mock.ExpectRollback()

		// The original seats go back on the old trip.
		mock.ExpectBegin()
		mock.ExpectQuery(`FOR UPDATE`).
			WithArgs("trip-1").
			WillReturnRows(sqlmock.NewRows([]string{"departed", "available_seats"}).AddRow(false, 5))
		mock.ExpectExec(`INSERT INTO booking_seats`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE trips\s+SET available_seats = available_seats - \$2`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		_, err := svc.RescheduleBooking("bk-1", &models.RescheduleBookingRequest{NewTripID: "trip-9"}, false)
		assert.ErrorIs(t, err, models.ErrSeatUnavailable)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Seat Count Must Match", func(t *testing.T) {
		svc, mock := newTestBookingService(t)

		expectBookingFetch(mock, "bk-1", "confirmed", []string{"12A", "12B"})
		expectTripFetch(mock, "trip-1", 72*time.Hour, false)

		_, err := svc.RescheduleBooking("bk-1", &models.RescheduleBookingRequest{
			NewTripID: "trip-9",
			SeatIDs:   []string{"01A"},
		}, false)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "seat count")
	})

	t.Run("Duplicate Seats Rejected Before Any Release", func(t *testing.T) {
		svc, _ := newTestBookingService(t)

		// No database expectations: the request must be rejected before the
		// original seats are touched.
		_, err := svc.RescheduleBooking("bk-1", &models.RescheduleBookingRequest{
			NewTripID: "trip-9",
			SeatIDs:   []string{"01A", "01A"},
		}, false)
		assert.ErrorIs(t, err, models.ErrValidation)
	})
}

func TestReapExpiredPendingBookings(t *testing.T) {
	svc, mock := newTestBookingService(t)

	now := time.Now()
	mock.ExpectQuery(`WHERE status = 'pending' AND created_at < \$1`).
		WillReturnRows(sqlmock.NewRows(bookingTestColumns).AddRow(
			"bk-old", "BK-20260829-FFEE00", "trip-1", nil,
			"Nimal Perera", "nimal@example.com", "+94712345678", 1500.0,
			"pending", "pending", false, nil, nil,
			nil, now.Add(-2*time.Hour), now.Add(-2*time.Hour),
		))

	// The sweep re-reads each booking so its held seats are loaded.
	expectBookingFetch(mock, "bk-old", "pending", []string{"07D"})
	mock.ExpectExec(`UPDATE bookings\s+SET status = 'cancelled'`).
		WithArgs("bk-old").
		WillReturnResult(sqlmock.NewResult(0, 1))
	expectRelease(mock, "trip-1", 1)

	reaped, err := svc.ReapExpiredPendingBookings(30 * time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, reaped)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReleaseStrandedSeats(t *testing.T) {
	// A cancel whose release step failed leaves a cancelled booking still
	// holding seat rows; the sweep re-drives the release.
	svc, mock := newTestBookingService(t)

	now := time.Now()
	mock.ExpectQuery(`FROM bookings b\s+JOIN booking_seats s ON s\.booking_id = b\.id\s+WHERE b\.status = 'cancelled'`).
		WithArgs(100).
		WillReturnRows(sqlmock.NewRows(bookingTestColumns).AddRow(
			"bk-stuck", "BK-20260829-AABB00", "trip-1", nil,
			"Nimal Perera", "nimal@example.com", "+94712345678", 1500.0,
			"cancelled", "cancelled", false, nil, nil,
			nil, now.Add(-time.Hour), now.Add(-time.Hour),
		))

	expectBookingFetch(mock, "bk-stuck", "cancelled", []string{"07D"})
	expectRelease(mock, "trip-1", 1)

	repaired, err := svc.ReleaseStrandedSeats()
	require.NoError(t, err)
	assert.Equal(t, 1, repaired)
	assert.NoError(t, mock.ExpectationsWereMet())
}

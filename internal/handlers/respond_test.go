package handlers

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/swiftbus/booking-backend/internal/models"
)

func TestRespondError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	tests := []struct {
		name     string
		err      error
		status   int
		contains string
	}{
		{"validation", models.ErrValidation, http.StatusBadRequest, "invalid_request"},
		{"trip not found", models.ErrTripNotFound, http.StatusNotFound, "trip_not_found"},
		{"booking not found", models.ErrBookingNotFound, http.StatusNotFound, "booking_not_found"},
		{"seat unavailable sentinel", models.ErrSeatUnavailable, http.StatusConflict, "seat_unavailable"},
		{
			"seat unavailable with detail",
			&models.SeatUnavailableError{TripID: "trip-1", Seats: []string{"12A"}},
			http.StatusConflict,
			"12A",
		},
		{"trip departed", models.ErrTripDeparted, http.StatusConflict, "trip_departed"},
		{"change window closed", models.ErrChangeWindowClosed, http.StatusConflict, "change_window_closed"},
		{
			"invalid state",
			&models.InvalidStateError{Op: "confirm", From: models.BookingStatusCancelled},
			http.StatusConflict,
			"invalid_state",
		},
		{"conflict", models.ErrConflict, http.StatusConflict, "conflict"},
		{"unknown error hides internals", errors.New("pq: connection refused"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)

			respondError(c, logger, tt.err)

			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, w.Body.String(), tt.contains)
			if tt.status == http.StatusInternalServerError {
				assert.NotContains(t, w.Body.String(), "connection refused")
			}
		})
	}
}

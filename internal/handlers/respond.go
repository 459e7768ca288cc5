package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/swiftbus/booking-backend/internal/models"
)

// respondError translates typed booking-core errors into HTTP responses.
// Unknown errors are logged and returned as a generic 500 so internals
// never leak to clients.
func respondError(c *gin.Context, logger *logrus.Logger, err error) {
	switch {
	case errors.Is(err, models.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
	case errors.Is(err, models.ErrTripNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "trip_not_found", "message": "Trip not found"})
	case errors.Is(err, models.ErrBookingNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "booking_not_found", "message": "Booking not found"})
	case errors.Is(err, models.ErrInquiryNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "inquiry_not_found", "message": "Inquiry not found"})
	case errors.Is(err, models.ErrSeatUnavailable):
		var seatErr *models.SeatUnavailableError
		resp := gin.H{"error": "seat_unavailable", "message": "One or more requested seats are no longer available"}
		if errors.As(err, &seatErr) && len(seatErr.Seats) > 0 {
			resp["seats"] = seatErr.Seats
		}
		c.JSON(http.StatusConflict, resp)
	case errors.Is(err, models.ErrTripDeparted):
		c.JSON(http.StatusConflict, gin.H{"error": "trip_departed", "message": "Trip has already departed"})
	case errors.Is(err, models.ErrChangeWindowClosed):
		c.JSON(http.StatusConflict, gin.H{"error": "change_window_closed", "message": "Too close to departure to change this booking"})
	case errors.Is(err, models.ErrInvalidState):
		c.JSON(http.StatusConflict, gin.H{"error": "invalid_state", "message": err.Error()})
	case errors.Is(err, models.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "conflict", "message": err.Error()})
	default:
		logger.WithError(err).Error("Request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "Something went wrong"})
	}
}

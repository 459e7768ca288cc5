package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/swiftbus/booking-backend/internal/middleware"
	"github.com/swiftbus/booking-backend/internal/models"
	"github.com/swiftbus/booking-backend/internal/services"
	"github.com/swiftbus/booking-backend/pkg/ticket"
)

// BookingHandler exposes the booking lifecycle endpoints
type BookingHandler struct {
	bookingService *services.BookingService
	tripService    *services.TripService
	paymentService *services.PaymentService
	logger         *logrus.Logger
}

// NewBookingHandler creates a new booking handler
func NewBookingHandler(
	bookingService *services.BookingService,
	tripService *services.TripService,
	paymentService *services.PaymentService,
	logger *logrus.Logger,
) *BookingHandler {
	return &BookingHandler{
		bookingService: bookingService,
		tripService:    tripService,
		paymentService: paymentService,
		logger:         logger,
	}
}

// CreateBooking reserves seats and opens a pending booking. When the payment
// gateway is configured the response includes a hosted payment URL; the
// booking stays pending until the gateway webhook confirms it.
// POST /api/v1/bookings
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	var req models.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}

	// Agent bookings record who sold the ticket
	if userCtx, exists := middleware.GetUserContext(c); exists && req.AgentID == nil {
		agentID := userCtx.UserID.String()
		req.AgentID = &agentID
	}

	booking, err := h.bookingService.CreateBooking(&req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	resp := gin.H{"booking": booking}
	if h.paymentService.IsConfigured() {
		session, err := h.paymentService.CreateSession(booking.TotalPrice, h.currency(), booking.Reference)
		if err != nil {
			// Seats stay held until the pending TTL reaper releases them;
			// the client can retry payment against the same reference.
			h.logger.WithError(err).WithField("reference", booking.Reference).Error("Failed to create payment session")
			c.JSON(http.StatusCreated, resp)
			return
		}
		resp["payment_url"] = session.PaymentURL
		resp["payment_session_id"] = session.SessionID
	}

	c.JSON(http.StatusCreated, resp)
}

// PaymentWebhook receives gateway notifications. Unverifiable payloads are
// rejected; verified ones confirm or fail the referenced booking.
// POST /api/v1/payments/webhook
func (h *BookingHandler) PaymentWebhook(c *gin.Context) {
	var payload services.PaymentWebhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}

	if !h.paymentService.VerifyWebhook(&payload) {
		h.logger.WithField("order_ref", payload.OrderRef).Warn("Payment webhook failed verification")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_signature", "message": "Webhook verification failed"})
		return
	}

	booking, err := h.bookingService.LookupBookingByReference(payload.OrderRef)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	switch payload.PaymentStatus {
	case "SUCCESS":
		if _, err := h.bookingService.ConfirmBooking(booking.ID); err != nil {
			respondError(c, h.logger, err)
			return
		}
	case "FAILED", "CANCELLED":
		if err := h.bookingService.FailPayment(booking.ID); err != nil {
			respondError(c, h.logger, err)
			return
		}
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "Unknown payment status"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Webhook processed"})
}

// ConfirmBooking confirms a pending booking directly. Used by operators for
// offline or counter payments.
// POST /api/v1/bookings/:id/confirm
func (h *BookingHandler) ConfirmBooking(c *gin.Context) {
	booking, err := h.bookingService.ConfirmBooking(c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, booking)
}

// CancelBookingRequest carries an optional cancellation reason
type CancelBookingRequest struct {
	Reason string `json:"reason"`
}

// CancelBooking cancels a booking and releases its seats. Operators bypass
// the pre-departure change window.
// POST /api/v1/bookings/:id/cancel
func (h *BookingHandler) CancelBooking(c *gin.Context) {
	var req CancelBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}

	if err := h.bookingService.CancelBooking(c.Param("id"), req.Reason, isOperator(c)); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Booking cancelled"})
}

// RescheduleBooking moves a booking's outbound leg to another trip
// POST /api/v1/bookings/:id/reschedule
func (h *BookingHandler) RescheduleBooking(c *gin.Context) {
	var req models.RescheduleBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}

	booking, err := h.bookingService.RescheduleBooking(c.Param("id"), &req, isOperator(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, booking)
}

// GetBooking retrieves a booking by ID
// GET /api/v1/bookings/:id
func (h *BookingHandler) GetBooking(c *gin.Context) {
	booking, err := h.bookingService.GetBooking(c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, booking)
}

// LookupBooking retrieves a booking by its public reference
// GET /api/v1/bookings/lookup/:reference
func (h *BookingHandler) LookupBooking(c *gin.Context) {
	booking, err := h.bookingService.LookupBookingByReference(c.Param("reference"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, booking)
}

// ScanTicket validates a ticket at boarding. A repeated scan returns 200
// with already_scanned set, carrying the original scan metadata.
// POST /api/v1/bookings/scan/:reference
func (h *BookingHandler) ScanTicket(c *gin.Context) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": "Authentication required"})
		return
	}

	booking, err := h.bookingService.LookupBookingByReference(c.Param("reference"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	result, err := h.bookingService.MarkScanned(booking.ID, userCtx.UserID.String())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// DownloadTicket renders the booking's ticket as a PDF
// GET /api/v1/bookings/:id/ticket
func (h *BookingHandler) DownloadTicket(c *gin.Context) {
	booking, err := h.bookingService.GetBooking(c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if booking.Status != models.BookingStatusConfirmed {
		c.JSON(http.StatusConflict, gin.H{"error": "invalid_state", "message": "Ticket is only available for confirmed bookings"})
		return
	}

	trip, err := h.tripService.GetTrip(booking.TripID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	pdf, err := ticket.Render(booking, trip)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s.pdf", booking.Reference))
	c.Data(http.StatusOK, "application/pdf", pdf)
}

func (h *BookingHandler) currency() string {
	return h.bookingService.Currency()
}

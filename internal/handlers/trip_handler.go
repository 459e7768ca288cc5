package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/swiftbus/booking-backend/internal/middleware"
	"github.com/swiftbus/booking-backend/internal/models"
	"github.com/swiftbus/booking-backend/internal/services"
)

// TripHandler exposes trip catalog and bulk mutation endpoints
type TripHandler struct {
	tripService      *services.TripService
	generatorService *services.TripGeneratorService
	logger           *logrus.Logger
}

// NewTripHandler creates a new trip handler
func NewTripHandler(tripService *services.TripService, generatorService *services.TripGeneratorService, logger *logrus.Logger) *TripHandler {
	return &TripHandler{
		tripService:      tripService,
		generatorService: generatorService,
		logger:           logger,
	}
}

// CreateTrip creates a single trip
// POST /api/v1/trips
func (h *TripHandler) CreateTrip(c *gin.Context) {
	var req models.CreateTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}

	trip, err := h.tripService.CreateTrip(&req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, trip)
}

// GetTrip retrieves a trip by ID
// GET /api/v1/trips/:id
func (h *TripHandler) GetTrip(c *gin.Context) {
	trip, err := h.tripService.GetTrip(c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, trip)
}

// ListTrips lists trips matching query filters
// GET /api/v1/trips?origin=X&destination=Y&date_from=...&date_to=...
func (h *TripHandler) ListTrips(c *gin.Context) {
	filter, err := tripFilterFromQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}

	trips, err := h.tripService.ListTrips(filter)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"trips": trips, "count": len(trips)})
}

// UpdateTrip partially updates a trip. Operators may update departed trips.
// PATCH /api/v1/trips/:id
func (h *TripHandler) UpdateTrip(c *gin.Context) {
	var req models.UpdateTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}

	trip, err := h.tripService.UpdateTrip(c.Param("id"), &req, isOperator(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, trip)
}

// DeleteTrip removes a trip with no active bookings
// DELETE /api/v1/trips/:id
func (h *TripHandler) DeleteTrip(c *gin.Context) {
	if err := h.tripService.DeleteTrip(c.Param("id")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Trip deleted"})
}

// MarkDeparted flags a trip as departed, closing it to new bookings
// POST /api/v1/trips/:id/depart
func (h *TripHandler) MarkDeparted(c *gin.Context) {
	if err := h.tripService.MarkDeparted(c.Param("id")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Trip marked departed"})
}

// GenerateTripsRequest is the payload for bulk trip generation
type GenerateTripsRequest struct {
	Templates []models.TripTemplate `json:"templates" binding:"required,min=1"`
	StartDate string                `json:"start_date" binding:"required"` // YYYY-MM-DD
	EndDate   string                `json:"end_date" binding:"required"`   // YYYY-MM-DD
}

// GenerateTrips creates one trip per template per day over a date range
// POST /api/v1/trips/generate
func (h *TripHandler) GenerateTrips(c *gin.Context) {
	var req GenerateTripsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}

	startDate, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "Invalid start_date format. Use YYYY-MM-DD"})
		return
	}
	endDate, err := time.Parse("2006-01-02", req.EndDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "Invalid end_date format. Use YYYY-MM-DD"})
		return
	}
	if endDate.Before(startDate) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "end_date must not be before start_date"})
		return
	}

	result, err := h.generatorService.GenerateTrips(req.Templates, startDate, endDate)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// BulkUpdateRequest pairs a trip filter with the changes to apply
type BulkUpdateRequest struct {
	Filter  models.TripFilter        `json:"filter"`
	Changes models.UpdateTripRequest `json:"changes"`
}

// BulkUpdate applies a partial update to every trip matching the filter
// POST /api/v1/trips/bulk-update
func (h *TripHandler) BulkUpdate(c *gin.Context) {
	var req BulkUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}
	if req.Changes.IsEmpty() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "changes must set at least one field"})
		return
	}

	result, err := h.generatorService.BulkUpdate(&req.Filter, &req.Changes)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func tripFilterFromQuery(c *gin.Context) (*models.TripFilter, error) {
	filter := &models.TripFilter{}

	if v := c.Query("route_name"); v != "" {
		filter.RouteName = &v
	}
	if v := c.Query("origin"); v != "" {
		filter.Origin = &v
	}
	if v := c.Query("destination"); v != "" {
		filter.Destination = &v
	}
	if v := c.Query("date_from"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return nil, err
		}
		filter.DateFrom = &t
	}
	if v := c.Query("date_to"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return nil, err
		}
		// Inclusive upper bound covers the whole day
		end := t.Add(24*time.Hour - time.Nanosecond)
		filter.DateTo = &end
	}
	filter.IncludeDeparted = c.Query("include_departed") == "true"

	return filter, nil
}

// isOperator reports whether the authenticated caller is an operator.
// Unauthenticated requests never get operator privileges.
func isOperator(c *gin.Context) bool {
	userCtx, exists := middleware.GetUserContext(c)
	return exists && userCtx.IsOperator()
}

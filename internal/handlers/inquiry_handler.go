package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/swiftbus/booking-backend/internal/models"
	"github.com/swiftbus/booking-backend/internal/services"
)

// InquiryHandler exposes bus-hire inquiry endpoints
type InquiryHandler struct {
	inquiryService *services.InquiryService
	logger         *logrus.Logger
}

// NewInquiryHandler creates a new inquiry handler
func NewInquiryHandler(inquiryService *services.InquiryService, logger *logrus.Logger) *InquiryHandler {
	return &InquiryHandler{
		inquiryService: inquiryService,
		logger:         logger,
	}
}

// CreateInquiry submits a new bus-hire inquiry
// POST /api/v1/inquiries
func (h *InquiryHandler) CreateInquiry(c *gin.Context) {
	var req models.CreateInquiryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}

	inquiry, err := h.inquiryService.CreateInquiry(&req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, inquiry)
}

// GetInquiry retrieves an inquiry by ID
// GET /api/v1/inquiries/:id
func (h *InquiryHandler) GetInquiry(c *gin.Context) {
	inquiry, err := h.inquiryService.GetInquiry(c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, inquiry)
}

// ListInquiries lists inquiries, newest first
// GET /api/v1/inquiries?limit=50&offset=0
func (h *InquiryHandler) ListInquiries(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	inquiries, err := h.inquiryService.ListInquiries(limit, offset)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"inquiries": inquiries, "count": len(inquiries)})
}

// UpdateInquiryStatusRequest carries the target triage status
type UpdateInquiryStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// UpdateInquiryStatus moves an inquiry through its triage lifecycle
// PATCH /api/v1/inquiries/:id/status
func (h *InquiryHandler) UpdateInquiryStatus(c *gin.Context) {
	var req UpdateInquiryStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}

	if err := h.inquiryService.UpdateInquiryStatus(c.Param("id"), req.Status); err != nil {
		if !models.ValidInquiryStatus(req.Status) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
			return
		}
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Inquiry status updated"})
}

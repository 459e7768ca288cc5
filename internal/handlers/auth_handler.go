package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/swiftbus/booking-backend/internal/config"
	"github.com/swiftbus/booking-backend/pkg/jwt"
	"golang.org/x/crypto/bcrypt"
)

// AuthHandler issues operator tokens against the configured admin credential
type AuthHandler struct {
	adminConfig *config.AdminConfig
	jwtService  *jwt.Service
	logger      *logrus.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(adminConfig *config.AdminConfig, jwtService *jwt.Service, logger *logrus.Logger) *AuthHandler {
	return &AuthHandler{
		adminConfig: adminConfig,
		jwtService:  jwtService,
		logger:      logger,
	}
}

// LoginRequest carries operator login credentials
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Login authenticates the operator and returns an access token
// POST /api/v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}

	if req.Email != h.adminConfig.Email ||
		bcrypt.CompareHashAndPassword([]byte(h.adminConfig.PasswordHash), []byte(req.Password)) != nil {
		h.logger.WithField("email", req.Email).Warn("Operator login failed")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": "Invalid email or password"})
		return
	}

	// Deterministic operator identity derived from the email, so scan and
	// audit records are stable across restarts
	operatorID := uuid.NewSHA1(uuid.NameSpaceURL, []byte("operator:"+req.Email))

	token, err := h.jwtService.GenerateToken(operatorID, req.Email, jwt.RoleOperator)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.logger.WithField("email", req.Email).Info("Operator login successful")

	c.JSON(http.StatusOK, gin.H{
		"access_token": token,
		"token_type":   "Bearer",
		"role":         jwt.RoleOperator,
	})
}

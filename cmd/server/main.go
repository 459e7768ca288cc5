package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/swiftbus/booking-backend/internal/config"
	"github.com/swiftbus/booking-backend/internal/database"
	"github.com/swiftbus/booking-backend/internal/handlers"
	"github.com/swiftbus/booking-backend/internal/middleware"
	"github.com/swiftbus/booking-backend/internal/models"
	"github.com/swiftbus/booking-backend/internal/services"
	"github.com/swiftbus/booking-backend/pkg/jwt"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	logger.Info("Starting SwiftBus Booking Backend")
	logger.Infof("Version: %s, Build Time: %s", version, buildTime)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	// Set log level
	logLevel, err := logrus.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		logger.Warn("Invalid log level, using INFO")
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Set Gin mode
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// Initialize database connection
	logger.Info("Connecting to database...")
	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logger.Info("Database connection established")

	// Initialize repositories
	tripRepo := database.NewTripRepository(db)
	inquiryRepo := database.NewInquiryRepository(db)
	bookingRepo := database.NewBookingRepository(db.DB)
	inventoryRepo := database.NewInventoryRepository(db.DB)

	// Initialize services
	logger.Info("Initializing services...")
	jwtService := jwt.NewService(cfg.JWT.Secret, cfg.JWT.AccessTokenExpiry)

	notifier, err := services.NewTicketNotifier(cfg.Admin.TicketDir, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize ticket notifier: %v", err)
	}

	tripService := services.NewTripService(tripRepo, logger)
	bookingService := services.NewBookingService(
		bookingRepo,
		inventoryRepo,
		tripRepo,
		notifier,
		services.BookingServiceConfig{
			ChangeWindow: cfg.Booking.ChangeWindow,
			PendingTTL:   cfg.Booking.PendingTTL,
			Currency:     cfg.Booking.Currency,
		},
		logger,
	)
	generatorService := services.NewTripGeneratorService(tripService, logger)
	inquiryService := services.NewInquiryService(inquiryRepo, logger)
	paymentService := services.NewPaymentService(&cfg.Payment, logger)

	// Background jobs
	tripTemplates := loadTripTemplates(cfg.Scheduler.TemplatesFile, logger)

	departureService := services.NewDepartureService(tripRepo, cfg.Scheduler.DepartureSweepInterval, logger)
	departureService.Start()
	defer departureService.Stop()

	cronService := services.NewCronService(
		bookingService,
		generatorService,
		cfg.Scheduler,
		cfg.Booking,
		tripTemplates,
		logger,
	)
	if err := cronService.Start(); err != nil {
		logger.Fatalf("Failed to start cron service: %v", err)
	}

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(&cfg.Admin, jwtService, logger)
	tripHandler := handlers.NewTripHandler(tripService, generatorService, logger)
	bookingHandler := handlers.NewBookingHandler(bookingService, tripService, paymentService, logger)
	inquiryHandler := handlers.NewInquiryHandler(inquiryService, logger)

	// Initialize Gin router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))

	// CORS configuration
	corsConfig := cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	router.Use(cors.New(corsConfig))

	// Health check endpoint
	router.GET("/health", healthCheckHandler(db))

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		v1.POST("/auth/login", authHandler.Login)

		// Public catalog and booking surface
		v1.GET("/trips", tripHandler.ListTrips)
		v1.GET("/trips/:id", tripHandler.GetTrip)
		v1.POST("/bookings", bookingHandler.CreateBooking)
		v1.GET("/bookings/lookup/:reference", bookingHandler.LookupBooking)
		v1.POST("/inquiries", inquiryHandler.CreateInquiry)

		// Payment gateway callback, verified by checksum rather than JWT
		v1.POST("/payments/webhook", bookingHandler.PaymentWebhook)

		// Authenticated surface
		auth := v1.Group("")
		auth.Use(middleware.AuthMiddleware(jwtService))
		{
			auth.GET("/bookings/:id", bookingHandler.GetBooking)
			auth.GET("/bookings/:id/ticket", bookingHandler.DownloadTicket)
			auth.POST("/bookings/:id/cancel", bookingHandler.CancelBooking)
			auth.POST("/bookings/:id/reschedule", bookingHandler.RescheduleBooking)

			// Boarding validation for agents and operators
			scan := auth.Group("")
			scan.Use(middleware.RequireRole(jwt.RoleAgent, jwt.RoleOperator))
			{
				scan.POST("/bookings/scan/:reference", bookingHandler.ScanTicket)
			}

			// Operator-only catalog and back office
			operator := auth.Group("")
			operator.Use(middleware.RequireRole(jwt.RoleOperator))
			{
				operator.POST("/trips", tripHandler.CreateTrip)
				operator.PATCH("/trips/:id", tripHandler.UpdateTrip)
				operator.DELETE("/trips/:id", tripHandler.DeleteTrip)
				operator.POST("/trips/:id/depart", tripHandler.MarkDeparted)
				operator.POST("/trips/generate", tripHandler.GenerateTrips)
				operator.POST("/trips/bulk-update", tripHandler.BulkUpdate)

				operator.POST("/bookings/:id/confirm", bookingHandler.ConfirmBooking)

				operator.GET("/inquiries", inquiryHandler.ListInquiries)
				operator.GET("/inquiries/:id", inquiryHandler.GetInquiry)
				operator.PATCH("/inquiries/:id/status", inquiryHandler.UpdateInquiryStatus)
			}
		}
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Infof("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	logger.Info("Stopping cron service...")
	cronService.Stop()

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited successfully")
}

// loadTripTemplates reads the recurring departure templates for the daily
// top-up job. Missing file means the top-up is disabled.
func loadTripTemplates(path string, logger *logrus.Logger) []models.TripTemplate {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		logger.WithError(err).Warnf("Could not read trip templates file %s, schedule top-up disabled", path)
		return nil
	}

	var templates []models.TripTemplate
	if err := json.Unmarshal(data, &templates); err != nil {
		logger.WithError(err).Warnf("Could not parse trip templates file %s, schedule top-up disabled", path)
		return nil
	}

	logger.Infof("Loaded %d trip templates from %s", len(templates), path)
	return templates
}

// requestLogger middleware for logging HTTP requests
func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		logger.WithFields(logrus.Fields{
			"status":     c.Writer.Status(),
			"method":     c.Request.Method,
			"path":       path,
			"ip":         c.ClientIP(),
			"latency_ms": time.Since(start).Milliseconds(),
		}).Info("Request completed")
	}
}

// healthCheckHandler reports server and database health
func healthCheckHandler(db database.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := "healthy"
		dbStatus := "connected"
		code := http.StatusOK

		if err := db.Ping(); err != nil {
			status = "unhealthy"
			dbStatus = "disconnected"
			code = http.StatusServiceUnavailable
		}

		c.JSON(code, gin.H{
			"status":    status,
			"database":  dbStatus,
			"version":   version,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}
}

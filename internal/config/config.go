package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Booking   BookingConfig
	Scheduler SchedulerConfig
	Payment   PaymentConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Admin     AdminConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port        string
	Environment string // development, staging, production
	LogLevel    string // debug, info, warn, error
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	URL                string
	MaxConnections     int
	MaxIdleConnections int
	ConnMaxLifetime    time.Duration
}

// BookingConfig holds booking lifecycle configuration
type BookingConfig struct {
	// ChangeWindow is the pre-departure window inside which customer
	// cancellation and reschedule are rejected.
	ChangeWindow time.Duration
	// PendingTTL is how long a pending booking may await payment before
	// the reaper cancels it and releases its seats.
	PendingTTL time.Duration
	Currency   string
}

// SchedulerConfig holds background job configuration
type SchedulerConfig struct {
	DepartureSweepInterval time.Duration
	ReapSchedule           string // cron spec, with seconds
	GenerateSchedule       string // cron spec, with seconds
	GenerateDaysAhead      int
	TemplatesFile          string // JSON file of recurring trip templates
}

// PaymentConfig holds payment gateway configuration
type PaymentConfig struct {
	Environment    string // "sandbox" or "production"
	MerchantKey    string
	MerchantSecret string // used for checksum calculation only, never sent
	ReturnURL      string
	WebhookURL     string
}

// JWTConfig holds JWT-related configuration
type JWTConfig struct {
	Secret            string
	AccessTokenExpiry time.Duration
}

// CORSConfig holds CORS-related configuration
type CORSConfig struct {
	AllowedOrigins []string
}

// AdminConfig holds the bootstrap operator account
type AdminConfig struct {
	Email        string
	PasswordHash string // bcrypt
	TicketDir    string // where confirmed ticket PDFs are written
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (for local development)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
		},
		Database: DatabaseConfig{
			URL:                getEnv("DATABASE_URL", ""),
			MaxConnections:     getEnvInt("DB_MAX_CONNECTIONS", 25),
			MaxIdleConnections: getEnvInt("DB_MAX_IDLE_CONNECTIONS", 5),
			ConnMaxLifetime:    getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Booking: BookingConfig{
			ChangeWindow: getEnvDuration("BOOKING_CHANGE_WINDOW", 24*time.Hour),
			PendingTTL:   getEnvDuration("BOOKING_PENDING_TTL", 30*time.Minute),
			Currency:     getEnv("BOOKING_CURRENCY", "USD"),
		},
		Scheduler: SchedulerConfig{
			DepartureSweepInterval: getEnvDuration("DEPARTURE_SWEEP_INTERVAL", 1*time.Minute),
			ReapSchedule:           getEnv("REAP_SCHEDULE", "0 */5 * * * *"),
			GenerateSchedule:       getEnv("GENERATE_SCHEDULE", "0 0 2 * * *"),
			GenerateDaysAhead:      getEnvInt("GENERATE_DAYS_AHEAD", 14),
			TemplatesFile:          getEnv("TRIP_TEMPLATES_FILE", ""),
		},
		Payment: PaymentConfig{
			Environment:    getEnv("PAYMENT_ENVIRONMENT", "sandbox"),
			MerchantKey:    getEnv("PAYMENT_MERCHANT_KEY", ""),
			MerchantSecret: getEnv("PAYMENT_MERCHANT_SECRET", ""),
			ReturnURL:      getEnv("PAYMENT_RETURN_URL", ""),
			WebhookURL:     getEnv("PAYMENT_WEBHOOK_URL", ""),
		},
		JWT: JWTConfig{
			Secret:            getEnv("JWT_SECRET", ""),
			AccessTokenExpiry: getEnvDuration("JWT_ACCESS_TOKEN_EXPIRY", 12*time.Hour),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		Admin: AdminConfig{
			Email:        getEnv("ADMIN_EMAIL", ""),
			PasswordHash: getEnv("ADMIN_PASSWORD_HASH", ""),
			TicketDir:    getEnv("TICKET_DIR", "tickets"),
		},
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.JWT.Secret == "" && c.Server.Environment == "production" {
		return fmt.Errorf("JWT_SECRET is required in production")
	}
	if c.Booking.ChangeWindow <= 0 {
		return fmt.Errorf("BOOKING_CHANGE_WINDOW must be positive")
	}
	if c.Booking.PendingTTL <= 0 {
		return fmt.Errorf("BOOKING_PENDING_TTL must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
		log.Printf("Invalid value for %s, using default %d", key, defaultValue)
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
		log.Printf("Invalid value for %s, using default %s", key, defaultValue)
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}

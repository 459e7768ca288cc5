package services

import (
	"bytes"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/swiftbus/booking-backend/internal/config"
)

// gatewayEnvironmentURLs maps environment names to gateway endpoint URLs
var gatewayEnvironmentURLs = map[string]string{
	"sandbox":    "https://sandbox.gateway.swiftpay.example/v1/sessions",
	"production": "https://gateway.swiftpay.example/v1/sessions",
}

// PaymentService creates hosted payment sessions for bookings and verifies
// webhook notifications. The gateway protocol lives entirely here; the
// booking core only ever sees confirm/fail calls after verification.
type PaymentService struct {
	config *config.PaymentConfig
	logger *logrus.Logger
	client *http.Client
}

// PaymentSessionRequest is the payload sent to the gateway
type PaymentSessionRequest struct {
	MerchantKey string `json:"merchantKey"`
	OrderRef    string `json:"orderRef"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	ReturnURL   string `json:"returnUrl"`
	WebhookURL  string `json:"webhookUrl,omitempty"`
	Description string `json:"description,omitempty"`
	CheckValue  string `json:"checkValue"`
}

// PaymentSessionResponse is the gateway's reply to a session create
type PaymentSessionResponse struct {
	Status     string `json:"status"` // "success" or "error"
	SessionID  string `json:"sessionId"`
	PaymentURL string `json:"paymentUrl"` // redirect target for the customer
	Message    string `json:"message,omitempty"`
}

// PaymentWebhookPayload is the notification the gateway posts back
type PaymentWebhookPayload struct {
	SessionID     string `json:"sessionId"`
	OrderRef      string `json:"orderRef"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
	PaymentStatus string `json:"paymentStatus"` // "SUCCESS", "FAILED", "CANCELLED"
	TransactionID string `json:"transactionId,omitempty"`
	CheckValue    string `json:"checkValue"`
}

// NewPaymentService creates a new payment gateway client
func NewPaymentService(cfg *config.PaymentConfig, logger *logrus.Logger) *PaymentService {
	return &PaymentService{
		config: cfg,
		logger: logger,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// IsConfigured reports whether gateway credentials are present
func (s *PaymentService) IsConfigured() bool {
	return s.config.MerchantKey != "" && s.config.MerchantSecret != ""
}

// CreateSession creates a hosted payment session for an order and returns
// the redirect URL
func (s *PaymentService) CreateSession(amount float64, currency, orderRef string) (*PaymentSessionResponse, error) {
	endpoint, ok := gatewayEnvironmentURLs[s.config.Environment]
	if !ok {
		return nil, fmt.Errorf("unknown payment environment %q", s.config.Environment)
	}

	amountStr := fmt.Sprintf("%.2f", amount)
	req := &PaymentSessionRequest{
		MerchantKey: s.config.MerchantKey,
		OrderRef:    orderRef,
		Amount:      amountStr,
		Currency:    currency,
		ReturnURL:   s.config.ReturnURL,
		WebhookURL:  s.config.WebhookURL,
		Description: fmt.Sprintf("Bus booking %s", orderRef),
		CheckValue:  s.checkValue(orderRef, amountStr, currency),
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session request: %w", err)
	}

	httpResp, err := s.client.Post(endpoint, "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("payment gateway request failed: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read gateway response: %w", err)
	}

	var resp PaymentSessionResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse gateway response: %w", err)
	}
	if resp.Status != "success" {
		return nil, fmt.Errorf("payment gateway error: %s", resp.Message)
	}

	s.logger.WithFields(logrus.Fields{
		"order_ref":   orderRef,
		"amount":      amountStr,
		"session_id":  resp.SessionID,
		"environment": s.config.Environment,
	}).Info("Payment session created")

	return &resp, nil
}

// VerifyWebhook checks the webhook's check value against the merchant
// secret. Payloads failing verification must be discarded by the caller.
func (s *PaymentService) VerifyWebhook(payload *PaymentWebhookPayload) bool {
	expected := s.checkValue(payload.OrderRef, payload.Amount, payload.Currency)
	return strings.EqualFold(expected, payload.CheckValue)
}

// checkValue computes the SHA-512 checksum the gateway expects: the order
// fields joined with the hashed merchant secret.
func (s *PaymentService) checkValue(orderRef, amount, currency string) string {
	secretHash := sha512.Sum512([]byte(s.config.MerchantSecret))
	secretHex := strings.ToUpper(hex.EncodeToString(secretHash[:]))

	payload := strings.Join([]string{s.config.MerchantKey, orderRef, amount, currency, secretHex}, "|")
	sum := sha512.Sum512([]byte(payload))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

// Package reference generates human-facing order references.
package reference

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Format: BK-YYYYMMDD-XXXXXX (6 hex chars)
// Example: BK-20260830-A1B2C3
const prefix = "BK"

// New generates a candidate order reference for the given day. Uniqueness is
// checked against storage by the caller.
func New(now time.Time) (string, error) {
	randomBytes := make([]byte, 3)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	randomStr := strings.ToUpper(hex.EncodeToString(randomBytes))
	return fmt.Sprintf("%s-%s-%s", prefix, now.Format("20060102"), randomStr), nil
}

// Valid reports whether s has the shape of an order reference
func Valid(s string) bool {
	parts := strings.Split(s, "-")
	if len(parts) != 3 || parts[0] != prefix {
		return false
	}
	if _, err := time.Parse("20060102", parts[1]); err != nil {
		return false
	}
	if len(parts[2]) != 6 {
		return false
	}
	if _, err := hex.DecodeString(strings.ToLower(parts[2])); err != nil {
		return false
	}
	return true
}

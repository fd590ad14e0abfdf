package bridge

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// tokenExpiry is the typed result of the access-token parse step.
type tokenExpiry struct {
	ExpiresAt time.Time
}

// parseTokenExpiry extracts the expiration time from a JWT access token.
// This does NOT verify the signature - it only parses the exp claim.
// AT Protocol access tokens use standard JWT format with 'exp' as a Unix
// timestamp.
func parseTokenExpiry(token string) (tokenExpiry, error) {
	token = strings.TrimPrefix(token, "Bearer ")
	token = strings.TrimSpace(token)

	// JWT format: header.payload.signature
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return tokenExpiry{}, fmt.Errorf("invalid JWT format: expected 3 parts, got %d", len(parts))
	}

	// Decode payload (second part) - RawURLEncoding, no padding
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return tokenExpiry{}, fmt.Errorf("failed to decode JWT payload: %w", err)
	}

	var claims struct {
		Exp int64 `json:"exp"` // Expiration time (seconds since Unix epoch)
	}
	if err := json.Unmarshal(payload, &claims); err != nil {
		return tokenExpiry{}, fmt.Errorf("failed to parse JWT claims: %w", err)
	}

	if claims.Exp == 0 {
		return tokenExpiry{}, fmt.Errorf("JWT missing 'exp' claim")
	}

	return tokenExpiry{ExpiresAt: time.Unix(claims.Exp, 0)}, nil
}

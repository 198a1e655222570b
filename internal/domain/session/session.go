package session

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// TTL is the fixed session lifetime. Sessions are not sliding-window;
// a session expires 24h after login regardless of activity.
const TTL = 24 * time.Hour

// GenerateToken creates a cryptographically random bearer token.
// Returns 64 hex characters (32 bytes).
func GenerateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

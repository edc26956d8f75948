package model

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/golang-jwt/jwt"
)

// AccountClaims are the JWT claims identifying the caller's brokerage account
type AccountClaims struct {
	AccountID string `json:"account_id"`
	UserName  string `json:"user_name,omitempty"`
	jwt.StandardClaims
}

// TokenFingerprint returns a short, non-reversible identifier for a token value,
// safe to put in logs.
func TokenFingerprint(token string) string {
	if token == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:6])
}

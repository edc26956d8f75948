package model

import (
	"fmt"
	"time"
)

// TokenKind distinguishes the short-lived request token from the long-lived access token
type TokenKind string

const (
	TokenKindRequest TokenKind = "REQUEST"
	TokenKindAccess  TokenKind = "ACCESS"
)

// ConsumerCredential identifies this application to the brokerage. Loaded once at startup.
type ConsumerCredential struct {
	ConsumerKey    string `json:"consumer_key"`
	ConsumerSecret string `json:"-"`
}

// TokenPair is the (token, secret) pair used as signing key material.
// The secret only lives in memory for the duration of a signed call.
type TokenPair struct {
	Token       string    `json:"token"`
	TokenSecret string    `json:"-"`
	Kind        TokenKind `json:"kind"`
	AccountID   string    `json:"account_id,omitempty"`
}

// String keeps the secret out of logs and fmt output.
func (p TokenPair) String() string {
	return fmt.Sprintf("TokenPair{kind=%s account=%s token=%s}", p.Kind, p.AccountID, TokenFingerprint(p.Token))
}

// AccessTokenRecord is the persisted form of an ACCESS token pair.
// TokenSecretCipher holds the vault ciphertext, never the plaintext secret.
type AccessTokenRecord struct {
	ID                int64       `json:"id"`
	AccountID         string      `json:"account_id"`
	Token             string      `json:"-"`
	TokenSecretCipher string      `json:"-"`
	Status            TokenStatus `json:"status"`
	IssuedAt          time.Time   `json:"issued_at"`
	RenewedAt         *time.Time  `json:"renewed_at,omitempty"`
	RevokedAt         *time.Time  `json:"revoked_at,omitempty"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
}

// RequestTokenRecord is a pending authorization: the request token pair issued
// for an account, waiting for the user's verifier.
type RequestTokenRecord struct {
	AccountID   string    `json:"account_id"`
	Token       string    `json:"token"`
	TokenSecret string    `json:"token_secret"`
	IssuedAt    time.Time `json:"issued_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Expired reports whether the request token is past its TTL at now.
func (r *RequestTokenRecord) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// Pair returns the record as a REQUEST token pair.
func (r *RequestTokenRecord) Pair() *TokenPair {
	return &TokenPair{Token: r.Token, TokenSecret: r.TokenSecret, Kind: TokenKindRequest, AccountID: r.AccountID}
}

// TokenState is the externally visible state of an account's credentials.
type TokenState struct {
	AccountID string      `json:"account_id"`
	Status    TokenStatus `json:"status"`
	IssuedAt  *time.Time  `json:"issued_at,omitempty"`
	RenewedAt *time.Time  `json:"renewed_at,omitempty"`
	RevokedAt *time.Time  `json:"revoked_at,omitempty"`
}

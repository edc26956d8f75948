package model

import (
	"errors"
	"fmt"
)

// TokenStatus is the per-account position in the three-legged flow
type TokenStatus string

const (
	TokenStatusNone               TokenStatus = "NONE"
	TokenStatusRequestTokenIssued TokenStatus = "REQUEST_TOKEN_ISSUED"
	TokenStatusActive             TokenStatus = "ACCESS_TOKEN_ACTIVE"
	TokenStatusRevoked            TokenStatus = "REVOKED"
)

// TokenEvent drives a TokenStatus transition.
type TokenEvent string

const (
	EventRequestTokenIssued  TokenEvent = "request_token_issued"
	EventAccessTokenExchange TokenEvent = "access_token_exchanged"
	EventRequestTokenExpired TokenEvent = "request_token_expired"
	EventRenewed             TokenEvent = "renewed"
	EventRevoked             TokenEvent = "revoked"
)

var ErrInvalidTransition = errors.New("invalid token state transition")

// Transition is the pure state machine over TokenStatus. REVOKED only leaves
// through a fresh request token, so a revoked account can never become active
// again without a full three-legged flow.
func Transition(from TokenStatus, event TokenEvent) (TokenStatus, error) {
	if from == "" {
		from = TokenStatusNone
	}
	switch event {
	case EventRequestTokenIssued:
		return TokenStatusRequestTokenIssued, nil
	case EventAccessTokenExchange:
		if from == TokenStatusRequestTokenIssued {
			return TokenStatusActive, nil
		}
	case EventRequestTokenExpired:
		if from == TokenStatusRequestTokenIssued {
			return TokenStatusNone, nil
		}
	case EventRenewed:
		if from == TokenStatusActive {
			return TokenStatusActive, nil
		}
	case EventRevoked:
		if from == TokenStatusActive {
			return TokenStatusRevoked, nil
		}
	}
	return from, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, event, from)
}

package model

import "net/url"

// Call describes one outermost outbound call to the brokerage. It is signed
// afresh for every network attempt.
type Call struct {
	Action      string
	Method      string
	URL         string
	Query       url.Values
	Body        []byte
	ContentType string
	// AccountID is empty for pre-authorization calls (request token step).
	AccountID string
	// Token is nil for the request token step.
	Token *TokenPair
	// OAuthParams carries extra protocol parameters such as oauth_verifier
	// or oauth_callback; they are signed and sent in the Authorization header.
	OAuthParams map[string]string
	// RedactResponse masks token secrets in the response body before it is audited.
	RedactResponse bool
}

// CallResult is the final response of a Call after the retry sequence.
type CallResult struct {
	StatusCode int
	Body       []byte
	Attempts   int
}

// SignedRequest is produced fresh for every network attempt and never reused.
type SignedRequest struct {
	Method              string
	URL                 string
	Query               url.Values
	AuthorizationHeader string
}

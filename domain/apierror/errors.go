// Package apierror holds the error taxonomy of the brokerage gateway. Callers
// match with errors.Is / errors.As; every structured error carries enough detail
// (status, provider code, body) to decide between re-authenticating, retrying
// later and failing the user request.
package apierror

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNoValidToken              = errors.New("no valid access token for account")
	ErrInvalidResponse           = errors.New("oauth endpoint returned an invalid response")
	ErrRequestTokenFailed        = errors.New("request token failed")
	ErrAccessTokenExchangeFailed = errors.New("access token exchange failed")
	ErrRenewTokenFailed          = errors.New("renew access token failed")
	ErrRevokeTokenFailed         = errors.New("revoke access token failed")
	ErrRequestTokenExpired       = errors.New("request token expired or unknown")
	ErrRateLimitExceeded         = errors.New("rate limit exceeded")
	ErrAPI                       = errors.New("brokerage api error")
	ErrTransport                 = errors.New("transport error")
	ErrDecryptionFailed          = errors.New("token secret decryption failed")
	ErrCancelled                 = errors.New("call cancelled")
)

// Class separates provider-side failures from client-input failures.
type Class string

const (
	ClassClient   Class = "client"
	ClassProvider Class = "provider"
	ClassUnknown  Class = "unknown"
)

// APIError is any non-2xx answer of a business endpoint other than an exhausted 429.
type APIError struct {
	StatusCode      int
	Body            string
	ProviderCode    string
	ProviderMessage string
	Class           Class
}

// NewAPIError builds an APIError, recognising the provider's error payload when present.
func NewAPIError(statusCode int, body []byte) *APIError {
	e := &APIError{StatusCode: statusCode, Body: string(body), Class: ClassUnknown}
	if code, msg, ok := ParseProviderError(body); ok {
		e.ProviderCode = code
		e.ProviderMessage = msg
		switch {
		case statusCode >= 500:
			e.Class = ClassProvider
		case statusCode >= 400:
			e.Class = ClassClient
		}
	}
	return e
}

func (e *APIError) Error() string {
	if e.ProviderMessage != "" {
		return fmt.Sprintf("brokerage api error: status=%d code=%s message=%s", e.StatusCode, e.ProviderCode, e.ProviderMessage)
	}
	return fmt.Sprintf("brokerage api error: status=%d", e.StatusCode)
}

func (e *APIError) Is(target error) bool { return target == ErrAPI }

// RateLimitError is a 429 that persisted past the retry budget.
type RateLimitError struct {
	Attempts int
	Body     string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded after %d attempts", e.Attempts)
}

func (e *RateLimitError) Is(target error) bool { return target == ErrRateLimitExceeded }

// TransportError is a network or timeout failure. It is never retried.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("transport error: %s: %v", e.Op, e.Err) }

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// Step names an OAuth endpoint.
type Step string

const (
	StepRequestToken Step = "request_token"
	StepAccessToken  Step = "access_token"
	StepRenewToken   Step = "renew_access_token"
	StepRevokeToken  Step = "revoke_access_token"
)

// OAuthStepError is a non-2xx answer of one of the OAuth endpoints.
type OAuthStepError struct {
	Step       Step
	StatusCode int
	Body       string
	Err        error
}

func (e *OAuthStepError) Error() string {
	return fmt.Sprintf("%v: status=%d", e.sentinel(), e.StatusCode)
}

func (e *OAuthStepError) Unwrap() error { return e.Err }

func (e *OAuthStepError) Is(target error) bool { return target == e.sentinel() }

func (e *OAuthStepError) sentinel() error {
	switch e.Step {
	case StepRequestToken:
		return ErrRequestTokenFailed
	case StepAccessToken:
		return ErrAccessTokenExchangeFailed
	case StepRenewToken:
		return ErrRenewTokenFailed
	default:
		return ErrRevokeTokenFailed
	}
}

// ForStep re-labels a non-2xx APIError as the failure of an OAuth step.
// Any other error (transport, rate limit, cancellation) is returned as is.
func ForStep(step Step, err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return &OAuthStepError{Step: step, StatusCode: apiErr.StatusCode, Body: apiErr.Body, Err: apiErr}
	}
	return err
}

// Cancelled wraps a context error raised while waiting between attempts.
func Cancelled(cause error) error {
	return fmt.Errorf("%w: %w", ErrCancelled, cause)
}

// RequiresReauthentication reports errors that only a fresh three-legged flow resolves.
func RequiresReauthentication(err error) bool {
	if errors.Is(err, ErrNoValidToken) || errors.Is(err, ErrDecryptionFailed) ||
		errors.Is(err, ErrRevokeTokenFailed) || errors.Is(err, ErrRequestTokenExpired) {
		return true
	}
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized
}

// IsRetryLater reports errors worth retrying at a higher level after a pause.
func IsRetryLater(err error) bool {
	if errors.Is(err, ErrRateLimitExceeded) {
		return true
	}
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Class == ClassProvider
}

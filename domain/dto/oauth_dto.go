package dto

import (
	"encoding/json"
	"time"
)

// Res is the common response envelope of the HTTP surface
type Res struct {
	ResponseCode    string      `json:"responseCode"`
	ResponseMessage string      `json:"responseMessage"`
	Data            interface{} `json:"data,omitempty"`
}

// AuthorizationStartResponse is returned when a three-legged flow begins.
type AuthorizationStartResponse struct {
	RequestToken string    `json:"request_token"`
	AuthorizeURL string    `json:"authorize_url"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// AuthorizationCallbackRequest completes the flow with the verifier the user copied
// from the brokerage's authorization page.
type AuthorizationCallbackRequest struct {
	RequestToken string `json:"request_token" form:"oauth_token" binding:"required"`
	Verifier     string `json:"verifier" form:"oauth_verifier" binding:"required"`
}

// BalanceQuery is the query of the account balance endpoint.
type BalanceQuery struct {
	InstType    string `url:"instType"              form:"instType"`
	AccountType string `url:"accountType,omitempty" form:"accountType"`
	RealTimeNAV bool   `url:"realTimeNAV,omitempty" form:"realTimeNAV"`
}

// AccountListQuery is the query of the account list endpoint. The endpoint
// takes no parameters today; the struct keeps the call site uniform.
type AccountListQuery struct{}

// DispatchRequest forwards a raw business call. Path is relative to the
// brokerage base URL.
type DispatchRequest struct {
	Action string              `json:"action"`
	Method string              `json:"method" binding:"required"`
	Path   string              `json:"path" binding:"required"`
	Query  map[string][]string `json:"query"`
	Body   json.RawMessage     `json:"body"`
}

// RenewResponse carries the provider's renewal message.
type RenewResponse struct {
	Message string `json:"message"`
}

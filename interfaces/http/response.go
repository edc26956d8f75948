package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"brokerage-gateway/domain/apierror"
	"brokerage-gateway/domain/dto"
	"brokerage-gateway/infrastructure/logger"
	"brokerage-gateway/usecase"

	"github.com/gin-gonic/gin"
)

const (
	ErrorUnmarshal = "Error while unmarshal"
	MessageSuccess = "Success"
)

// ProviderDetail is the part of a brokerage error the caller is allowed to see.
type ProviderDetail struct {
	Status  int    `json:"status"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

func ok(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, dto.Res{ResponseCode: "200", ResponseMessage: MessageSuccess, Data: data})
}

func fail(c *gin.Context, status int, message string, data interface{}) {
	c.AbortWithStatusJSON(status, dto.Res{ResponseCode: strconv.Itoa(status), ResponseMessage: message, Data: data})
}

// StatusFor maps a gateway error to the HTTP status shown to the caller.
func StatusFor(err error) int {
	var apiErr *apierror.APIError
	switch {
	case apierror.RequiresReauthentication(err):
		return http.StatusUnauthorized
	case errors.Is(err, apierror.ErrRateLimitExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, usecase.ErrInvalidDispatch):
		return http.StatusBadRequest
	case errors.Is(err, apierror.ErrRequestTokenFailed), errors.Is(err, apierror.ErrAccessTokenExchangeFailed),
		errors.Is(err, apierror.ErrRenewTokenFailed), errors.Is(err, apierror.ErrInvalidResponse):
		return http.StatusBadGateway
	case apierror.IsRetryLater(err):
		return http.StatusServiceUnavailable
	case errors.As(err, &apiErr):
		if apiErr.StatusCode == http.StatusBadRequest {
			return http.StatusBadRequest
		}
		if apiErr.StatusCode < 500 {
			return http.StatusUnprocessableEntity
		}
		return http.StatusBadGateway
	case errors.Is(err, apierror.ErrTransport):
		return http.StatusGatewayTimeout
	case errors.Is(err, apierror.ErrCancelled), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeError(c *gin.Context, err error) {
	status := StatusFor(err)
	var detail interface{}
	var apiErr *apierror.APIError
	if errors.As(err, &apiErr) {
		detail = ProviderDetail{Status: apiErr.StatusCode, Code: apiErr.ProviderCode, Message: apiErr.ProviderMessage}
	}

	entry := logger.GetLogger().WithFields(map[string]interface{}{
		"path":   c.FullPath(),
		"status": status,
		"error":  err.Error(),
	})
	if status >= 500 {
		entry.Error("Request failed")
	} else {
		entry.Warn("Request rejected")
	}

	message := err.Error()
	if status == http.StatusInternalServerError {
		message = http.StatusText(status)
	}
	fail(c, status, message, detail)
}

package http

import (
	"net/http"

	"brokerage-gateway/domain/dto"
	"brokerage-gateway/infrastructure/logger"
	"brokerage-gateway/interfaces/middleware"
	"brokerage-gateway/usecase"

	"github.com/gin-gonic/gin"
)

type IOAuthHandler interface {
	Authorize(c *gin.Context)
	Callback(c *gin.Context)
	Renew(c *gin.Context)
	Revoke(c *gin.Context)
	Status(c *gin.Context)
}

type OAuthHandler struct {
	tokens usecase.ITokenManager
}

func NewOAuthHandler(tokens usecase.ITokenManager) IOAuthHandler {
	return &OAuthHandler{tokens: tokens}
}

// Authorize obtains a request token and returns the URL the user opens to
// approve access.
func (h *OAuthHandler) Authorize(c *gin.Context) {
	res, err := h.tokens.BeginAuthorization(c.Request.Context(), middleware.AccountID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, res)
}

// Callback exchanges the verifier for an access token.
func (h *OAuthHandler) Callback(c *gin.Context) {
	var req dto.AuthorizationCallbackRequest
	if err := c.ShouldBind(&req); err != nil {
		logger.GetLogger().WithField("error", err).Error(ErrorUnmarshal)
		fail(c, http.StatusBadRequest, ErrorUnmarshal, nil)
		return
	}
	state, err := h.tokens.CompleteAuthorization(c.Request.Context(), middleware.AccountID(c), req.RequestToken, req.Verifier)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, state)
}

func (h *OAuthHandler) Renew(c *gin.Context) {
	msg, err := h.tokens.Renew(c.Request.Context(), middleware.AccountID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, dto.RenewResponse{Message: msg})
}

func (h *OAuthHandler) Revoke(c *gin.Context) {
	if err := h.tokens.Revoke(c.Request.Context(), middleware.AccountID(c)); err != nil {
		writeError(c, err)
		return
	}
	ok(c, nil)
}

func (h *OAuthHandler) Status(c *gin.Context) {
	state, err := h.tokens.Status(c.Request.Context(), middleware.AccountID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, state)
}

package http

import (
	"net/http"

	"brokerage-gateway/domain/dto"
	"brokerage-gateway/infrastructure/logger"
	"brokerage-gateway/interfaces/middleware"
	"brokerage-gateway/usecase"

	"github.com/gin-gonic/gin"
)

const contentTypeJSON = "application/json; charset=utf-8"

type IAccountHandler interface {
	ListAccounts(c *gin.Context)
	GetBalance(c *gin.Context)
	Dispatch(c *gin.Context)
}

// AccountHandler relays the provider's body unchanged on success.
type AccountHandler struct {
	accounts usecase.IAccountUsecase
}

func NewAccountHandler(accounts usecase.IAccountUsecase) IAccountHandler {
	return &AccountHandler{accounts: accounts}
}

func (h *AccountHandler) ListAccounts(c *gin.Context) {
	body, err := h.accounts.ListAccounts(c.Request.Context(), middleware.AccountID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.Data(http.StatusOK, contentTypeJSON, body)
}

func (h *AccountHandler) GetBalance(c *gin.Context) {
	var q dto.BalanceQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		fail(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	body, err := h.accounts.GetBalance(c.Request.Context(), middleware.AccountID(c), c.Param("accountIdKey"), q)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Data(http.StatusOK, contentTypeJSON, body)
}

func (h *AccountHandler) Dispatch(c *gin.Context) {
	var req dto.DispatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.GetLogger().WithField("error", err).Error(ErrorUnmarshal)
		fail(c, http.StatusBadRequest, ErrorUnmarshal, nil)
		return
	}
	body, err := h.accounts.Forward(c.Request.Context(), middleware.AccountID(c), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Data(http.StatusOK, contentTypeJSON, body)
}

package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"

	"brokerage-gateway/domain/dto"
	"brokerage-gateway/domain/model"
	"brokerage-gateway/interfaces/middleware"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
)

type MockTokenManager struct {
	mock.Mock
}

func (m *MockTokenManager) ResolveAccessToken(ctx context.Context, accountID string) (*model.TokenPair, error) {
	args := m.Called(ctx, accountID)
	pair, _ := args.Get(0).(*model.TokenPair)
	return pair, args.Error(1)
}

func (m *MockTokenManager) GetRequestToken(ctx context.Context) (*model.TokenPair, error) {
	args := m.Called(ctx)
	pair, _ := args.Get(0).(*model.TokenPair)
	return pair, args.Error(1)
}

func (m *MockTokenManager) AuthorizeURL(requestToken string) string {
	return m.Called(requestToken).String(0)
}

func (m *MockTokenManager) BeginAuthorization(ctx context.Context, accountID string) (*dto.AuthorizationStartResponse, error) {
	args := m.Called(ctx, accountID)
	res, _ := args.Get(0).(*dto.AuthorizationStartResponse)
	return res, args.Error(1)
}

func (m *MockTokenManager) CompleteAuthorization(ctx context.Context, accountID, requestToken, verifier string) (*model.TokenState, error) {
	args := m.Called(ctx, accountID, requestToken, verifier)
	state, _ := args.Get(0).(*model.TokenState)
	return state, args.Error(1)
}

func (m *MockTokenManager) ExchangeForAccessToken(ctx context.Context, requestToken *model.TokenPair, verifier, accountID string) (*model.TokenPair, error) {
	args := m.Called(ctx, requestToken, verifier, accountID)
	pair, _ := args.Get(0).(*model.TokenPair)
	return pair, args.Error(1)
}

func (m *MockTokenManager) Renew(ctx context.Context, accountID string) (string, error) {
	args := m.Called(ctx, accountID)
	return args.String(0), args.Error(1)
}

func (m *MockTokenManager) Revoke(ctx context.Context, accountID string) error {
	return m.Called(ctx, accountID).Error(0)
}

func (m *MockTokenManager) Status(ctx context.Context, accountID string) (*model.TokenState, error) {
	args := m.Called(ctx, accountID)
	state, _ := args.Get(0).(*model.TokenState)
	return state, args.Error(1)
}

type MockAccountUsecase struct {
	mock.Mock
}

func (m *MockAccountUsecase) ListAccounts(ctx context.Context, accountID string) ([]byte, error) {
	args := m.Called(ctx, accountID)
	body, _ := args.Get(0).([]byte)
	return body, args.Error(1)
}

func (m *MockAccountUsecase) GetBalance(ctx context.Context, accountID, accountIDKey string, q dto.BalanceQuery) ([]byte, error) {
	args := m.Called(ctx, accountID, accountIDKey, q)
	body, _ := args.Get(0).([]byte)
	return body, args.Error(1)
}

func (m *MockAccountUsecase) Forward(ctx context.Context, accountID string, req dto.DispatchRequest) ([]byte, error) {
	args := m.Called(ctx, accountID, req)
	body, _ := args.Get(0).([]byte)
	return body, args.Error(1)
}

// asAccount stands in for the JWT middleware.
func asAccount(accountID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.AccountIDKey, accountID)
		c.Next()
	}
}

func testEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(asAccount("acc-1"))
	return r
}

func perform(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"brokerage-gateway/domain/dto"
	"brokerage-gateway/domain/repository"

	"github.com/google/go-querystring/query"
)

const (
	ActionListAccounts = "LIST_ACCOUNTS"
	ActionGetBalance   = "GET_BALANCE"

	defaultInstType = "BROKERAGE"
)

type IAccountUsecase interface {
	ListAccounts(ctx context.Context, accountID string) ([]byte, error)
	GetBalance(ctx context.Context, accountID, accountIDKey string, q dto.BalanceQuery) ([]byte, error)
	Forward(ctx context.Context, accountID string, req dto.DispatchRequest) ([]byte, error)
}

var ErrInvalidDispatch = errors.New("invalid dispatch request")

var forwardMethods = map[string]bool{
	http.MethodGet:    true,
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodDelete: true,
}

// AccountUsecase reads account data through the signed dispatcher and hands
// back the provider's raw body.
type AccountUsecase struct {
	brokerage repository.IBrokerage
	baseURL   string
}

func NewAccountUsecase(brokerage repository.IBrokerage, baseURL string) IAccountUsecase {
	return &AccountUsecase{brokerage: brokerage, baseURL: strings.TrimRight(baseURL, "/")}
}

func (u *AccountUsecase) ListAccounts(ctx context.Context, accountID string) ([]byte, error) {
	values, err := query.Values(dto.AccountListQuery{})
	if err != nil {
		return nil, fmt.Errorf("encode account list query: %w", err)
	}
	return u.brokerage.DispatchAction(ctx, ActionListAccounts, http.MethodGet, u.baseURL+"/v1/accounts/list", values, nil, accountID)
}

func (u *AccountUsecase) GetBalance(ctx context.Context, accountID, accountIDKey string, q dto.BalanceQuery) ([]byte, error) {
	if accountIDKey == "" {
		return nil, errors.New("account id key is required")
	}
	if q.InstType == "" {
		q.InstType = defaultInstType
	}
	values, err := query.Values(q)
	if err != nil {
		return nil, fmt.Errorf("encode balance query: %w", err)
	}
	rawURL := u.baseURL + "/v1/accounts/" + url.PathEscape(accountIDKey) + "/balance"
	return u.brokerage.DispatchAction(ctx, ActionGetBalance, http.MethodGet, rawURL, values, nil, accountID)
}

// Forward dispatches a caller-described call. Only paths under the configured
// base URL are reachable.
func (u *AccountUsecase) Forward(ctx context.Context, accountID string, req dto.DispatchRequest) ([]byte, error) {
	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if !forwardMethods[method] {
		return nil, fmt.Errorf("%w: method %q", ErrInvalidDispatch, req.Method)
	}
	p, err := url.Parse(req.Path)
	if err != nil || p.IsAbs() || p.Host != "" || !strings.HasPrefix(p.Path, "/") || strings.Contains(p.Path, "..") {
		return nil, fmt.Errorf("%w: path %q", ErrInvalidDispatch, req.Path)
	}

	values := url.Values{}
	for k, vs := range p.Query() {
		values[k] = append(values[k], vs...)
	}
	for k, vs := range req.Query {
		values[k] = append(values[k], vs...)
	}
	var body []byte
	if len(req.Body) > 0 && string(req.Body) != "null" {
		body = req.Body
	}
	return u.brokerage.DispatchAction(ctx, req.Action, method, u.baseURL+p.EscapedPath(), values, body, accountID)
}

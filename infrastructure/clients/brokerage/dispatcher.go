package brokerage

import (
	"context"
	"net/url"
	"strings"

	"brokerage-gateway/domain/model"
	"brokerage-gateway/domain/repository"
	"brokerage-gateway/infrastructure/logger"
)

type Dispatcher struct {
	resolver repository.ITokenResolver
	executor repository.ICallExecutor
}

func NewDispatcher(resolver repository.ITokenResolver, executor repository.ICallExecutor) repository.IBrokerage {
	return &Dispatcher{resolver: resolver, executor: executor}
}

// Dispatch sends a signed business call for accountID and returns the raw body
// of a 2xx response.
func (d *Dispatcher) Dispatch(ctx context.Context, method, rawURL string, query url.Values, body []byte, accountID string) ([]byte, error) {
	return d.DispatchAction(ctx, "", method, rawURL, query, body, accountID)
}

func (d *Dispatcher) DispatchAction(ctx context.Context, action, method, rawURL string, query url.Values, body []byte, accountID string) ([]byte, error) {
	if action == "" {
		action = DefaultAction(method, rawURL)
	}
	call := model.Call{
		Action:    action,
		Method:    strings.ToUpper(method),
		URL:       rawURL,
		Query:     query,
		Body:      body,
		AccountID: accountID,
	}

	token, err := d.resolver.ResolveAccessToken(ctx, accountID)
	if err != nil {
		logger.GetLogger().WithFields(map[string]interface{}{
			"account_id": accountID,
			"action":     action,
			"error":      err.Error(),
		}).Warn("No usable access token, call not sent")
		d.executor.Reject(ctx, call, err)
		return nil, err
	}
	call.Token = token

	result, err := d.executor.Execute(ctx, call)
	if err != nil {
		return nil, err
	}
	return result.Body, nil
}

// DefaultAction names a business call "<METHOD> <path>".
func DefaultAction(method, rawURL string) string {
	path := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		path = u.Path
	}
	return strings.ToUpper(method) + " " + path
}

package usecase_test

import (
	"context"
	"net/url"
	"time"

	"brokerage-gateway/domain/model"

	"github.com/stretchr/testify/mock"
)

type MockExecutor struct {
	mock.Mock
}

func (m *MockExecutor) Execute(ctx context.Context, call model.Call) (*model.CallResult, error) {
	args := m.Called(ctx, call)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CallResult), args.Error(1)
}

func (m *MockExecutor) Reject(ctx context.Context, call model.Call, cause error) {
	m.Called(ctx, call, cause)
}

type MockAccessTokenRepository struct {
	mock.Mock
}

func (m *MockAccessTokenRepository) Save(ctx context.Context, rec *model.AccessTokenRecord) error {
	return m.Called(ctx, rec).Error(0)
}

func (m *MockAccessTokenRepository) GetByAccountID(ctx context.Context, accountID string) (*model.AccessTokenRecord, error) {
	args := m.Called(ctx, accountID)
	if fn, ok := args.Get(0).(func(context.Context, string) *model.AccessTokenRecord); ok {
		return fn(ctx, accountID), args.Error(1)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AccessTokenRecord), args.Error(1)
}

func (m *MockAccessTokenRepository) MarkRenewed(ctx context.Context, accountID string, at time.Time) error {
	return m.Called(ctx, accountID, at).Error(0)
}

func (m *MockAccessTokenRepository) MarkRevoked(ctx context.Context, accountID string, at time.Time) error {
	return m.Called(ctx, accountID, at).Error(0)
}

type MockRequestTokenStore struct {
	mock.Mock
}

func (m *MockRequestTokenStore) Put(ctx context.Context, rec *model.RequestTokenRecord, ttl time.Duration) error {
	return m.Called(ctx, rec, ttl).Error(0)
}

func (m *MockRequestTokenStore) Get(ctx context.Context, requestToken string) (*model.RequestTokenRecord, error) {
	args := m.Called(ctx, requestToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.RequestTokenRecord), args.Error(1)
}

func (m *MockRequestTokenStore) Delete(ctx context.Context, requestToken string) error {
	return m.Called(ctx, requestToken).Error(0)
}

type MockBrokerage struct {
	mock.Mock
}

func (m *MockBrokerage) Dispatch(ctx context.Context, method, rawURL string, query url.Values, body []byte, accountID string) ([]byte, error) {
	return m.DispatchAction(ctx, "", method, rawURL, query, body, accountID)
}

func (m *MockBrokerage) DispatchAction(ctx context.Context, action, method, rawURL string, query url.Values, body []byte, accountID string) ([]byte, error) {
	args := m.Called(ctx, action, method, rawURL, query, body, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func (c fixedClock) Sleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }

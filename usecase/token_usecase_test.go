package usecase_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"brokerage-gateway/domain/apierror"
	"brokerage-gateway/domain/model"
	"brokerage-gateway/infrastructure/cache"
	"brokerage-gateway/infrastructure/vault"
	"brokerage-gateway/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

var testEndpoints = usecase.Endpoints{
	RequestTokenURL: "https://api.example.com/oauth/request_token",
	AuthorizeURL:    "https://us.example.com/e/t/etws/authorize",
	AccessTokenURL:  "https://api.example.com/oauth/access_token",
	RenewTokenURL:   "https://api.example.com/oauth/renew_access_token",
	RevokeTokenURL:  "https://api.example.com/oauth/revoke_access_token",
}

type tokenFixture struct {
	executor *MockExecutor
	tokens   *MockAccessTokenRepository
	pending  *MockRequestTokenStore
	vault    *vault.Vault
	manager  *usecase.TokenManager
}

func newTokenFixture(t *testing.T) *tokenFixture {
	t.Helper()
	key, err := vault.GenerateKey()
	require.NoError(t, err)
	v, err := vault.New(key)
	require.NoError(t, err)

	f := &tokenFixture{
		executor: new(MockExecutor),
		tokens:   new(MockAccessTokenRepository),
		pending:  new(MockRequestTokenStore),
		vault:    v,
	}
	f.manager = usecase.NewTokenManager(
		model.ConsumerCredential{ConsumerKey: "CK", ConsumerSecret: "CS"},
		testEndpoints,
		f.executor, f.tokens, f.pending, v,
		fixedClock{now: testNow},
	)
	return f
}

func (f *tokenFixture) activeRecord(t *testing.T, status model.TokenStatus) *model.AccessTokenRecord {
	t.Helper()
	cipherText, err := f.vault.Encrypt("access-secret")
	require.NoError(t, err)
	return &model.AccessTokenRecord{
		AccountID:         "acc-1",
		Token:             "access-token",
		TokenSecretCipher: cipherText,
		Status:            status,
		IssuedAt:          testNow.Add(-time.Hour),
	}
}

func okBody(body string) *model.CallResult {
	return &model.CallResult{StatusCode: http.StatusOK, Body: []byte(body), Attempts: 1}
}

func callWithAction(action string) interface{} {
	return mock.MatchedBy(func(c model.Call) bool { return c.Action == action })
}

func TestTokenManager_GetRequestToken(t *testing.T) {
	f := newTokenFixture(t)
	f.executor.On("Execute", mock.Anything, mock.MatchedBy(func(c model.Call) bool {
		return c.Action == usecase.ActionRequestToken && c.Token == nil && c.RedactResponse &&
			c.OAuthParams["oauth_callback"] == "oob" && c.URL == testEndpoints.RequestTokenURL
	})).Return(okBody("oauth_token=RT&oauth_token_secret=RS&oauth_callback_confirmed=true"), nil)

	pair, err := f.manager.GetRequestToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "RT", pair.Token)
	assert.Equal(t, "RS", pair.TokenSecret)
	assert.Equal(t, model.TokenKindRequest, pair.Kind)
	f.executor.AssertExpectations(t)
}

func TestTokenManager_GetRequestToken_InvalidResponse(t *testing.T) {
	f := newTokenFixture(t)
	f.executor.On("Execute", mock.Anything, mock.Anything).Return(okBody("oauth_token=RT"), nil)

	_, err := f.manager.GetRequestToken(context.Background())
	require.ErrorIs(t, err, apierror.ErrInvalidResponse)
}

func TestTokenManager_GetRequestToken_Non2xx(t *testing.T) {
	f := newTokenFixture(t)
	f.executor.On("Execute", mock.Anything, mock.Anything).
		Return(&model.CallResult{StatusCode: 401}, apierror.NewAPIError(401, []byte("oauth_problem=consumer_key_rejected")))

	_, err := f.manager.GetRequestToken(context.Background())
	require.ErrorIs(t, err, apierror.ErrRequestTokenFailed)
	var stepErr *apierror.OAuthStepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, 401, stepErr.StatusCode)
	assert.Equal(t, "oauth_problem=consumer_key_rejected", stepErr.Body)
}

func TestTokenManager_AuthorizeURL(t *testing.T) {
	f := newTokenFixture(t)
	assert.Equal(t, "https://us.example.com/e/t/etws/authorize?key=CK&token=RT%2B1", f.manager.AuthorizeURL("RT+1"))
}

func TestTokenManager_BeginAuthorization(t *testing.T) {
	f := newTokenFixture(t)
	f.executor.On("Execute", mock.Anything, callWithAction(usecase.ActionRequestToken)).
		Return(okBody("oauth_token=RT&oauth_token_secret=RS"), nil)
	f.pending.On("Put", mock.Anything, mock.MatchedBy(func(rec *model.RequestTokenRecord) bool {
		return rec.AccountID == "acc-1" && rec.Token == "RT" && rec.TokenSecret == "RS" &&
			rec.ExpiresAt.Equal(testNow.Add(5*time.Minute))
	}), 5*time.Minute).Return(nil)

	res, err := f.manager.BeginAuthorization(context.Background(), "acc-1")
	require.NoError(t, err)
	assert.Equal(t, "RT", res.RequestToken)
	assert.Equal(t, "https://us.example.com/e/t/etws/authorize?key=CK&token=RT", res.AuthorizeURL)
	assert.Equal(t, testNow.Add(5*time.Minute), res.ExpiresAt)
	f.pending.AssertExpectations(t)
}

func TestTokenManager_CompleteAuthorization(t *testing.T) {
	f := newTokenFixture(t)
	f.pending.On("Get", mock.Anything, "RT").Return(&model.RequestTokenRecord{
		AccountID: "acc-1", Token: "RT", TokenSecret: "RS",
		IssuedAt: testNow.Add(-time.Minute), ExpiresAt: testNow.Add(4 * time.Minute),
	}, nil)
	f.pending.On("Delete", mock.Anything, "RT").Return(nil).Once()
	f.executor.On("Execute", mock.Anything, mock.MatchedBy(func(c model.Call) bool {
		return c.Action == usecase.ActionAccessToken && c.Token != nil && c.Token.Token == "RT" &&
			c.Token.TokenSecret == "RS" && c.OAuthParams["oauth_verifier"] == "V1" && c.AccountID == "acc-1"
	})).Return(okBody("oauth_token=AT&oauth_token_secret=AS"), nil)

	var saved *model.AccessTokenRecord
	f.tokens.On("Save", mock.Anything, mock.AnythingOfType("*model.AccessTokenRecord")).
		Run(func(args mock.Arguments) { saved = args.Get(1).(*model.AccessTokenRecord) }).
		Return(nil)
	f.tokens.On("GetByAccountID", mock.Anything, "acc-1").Return(func(context.Context, string) *model.AccessTokenRecord {
		return saved
	}, nil)

	state, err := f.manager.CompleteAuthorization(context.Background(), "acc-1", "RT", "V1")
	require.NoError(t, err)
	assert.Equal(t, model.TokenStatusActive, state.Status)

	require.NotNil(t, saved)
	assert.Equal(t, "AT", saved.Token)
	assert.NotEqual(t, "AS", saved.TokenSecretCipher)
	plain, err := f.vault.Decrypt(saved.TokenSecretCipher)
	require.NoError(t, err)
	assert.Equal(t, "AS", plain)
	f.pending.AssertExpectations(t)
}

func TestTokenManager_CompleteAuthorization_Expired(t *testing.T) {
	tests := []struct {
		name string
		rec  *model.RequestTokenRecord
	}{
		{name: "unknown", rec: nil},
		{name: "expired", rec: &model.RequestTokenRecord{AccountID: "acc-1", Token: "RT", TokenSecret: "RS", ExpiresAt: testNow}},
		{name: "other account", rec: &model.RequestTokenRecord{AccountID: "acc-2", Token: "RT", TokenSecret: "RS", ExpiresAt: testNow.Add(time.Minute)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newTokenFixture(t)
			if tt.rec == nil {
				f.pending.On("Get", mock.Anything, "RT").Return(nil, nil)
			} else {
				f.pending.On("Get", mock.Anything, "RT").Return(tt.rec, nil)
			}

			_, err := f.manager.CompleteAuthorization(context.Background(), "acc-1", "RT", "V1")
			require.ErrorIs(t, err, apierror.ErrRequestTokenExpired)
			assert.True(t, apierror.RequiresReauthentication(err))
			f.executor.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything)
			f.pending.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
		})
	}
}

// memoryFixture runs the token manager against the in-process pending store.
func memoryFixture(t *testing.T) (*tokenFixture, *cache.MemoryRequestTokenStore) {
	t.Helper()
	f := newTokenFixture(t)
	store := cache.NewMemoryRequestTokenStore()
	f.manager = usecase.NewTokenManager(
		model.ConsumerCredential{ConsumerKey: "CK", ConsumerSecret: "CS"},
		testEndpoints,
		f.executor, f.tokens, store, f.vault,
		fixedClock{now: testNow},
	)
	require.NoError(t, store.Put(context.Background(), &model.RequestTokenRecord{
		AccountID: "acc-1", Token: "RT", TokenSecret: "RS",
		IssuedAt: testNow, ExpiresAt: testNow.Add(5 * time.Minute),
	}, time.Minute))
	return f, store
}

func (f *tokenFixture) expectSave() {
	var saved *model.AccessTokenRecord
	f.tokens.On("Save", mock.Anything, mock.AnythingOfType("*model.AccessTokenRecord")).
		Run(func(args mock.Arguments) { saved = args.Get(1).(*model.AccessTokenRecord) }).
		Return(nil)
	f.tokens.On("GetByAccountID", mock.Anything, "acc-1").Return(func(context.Context, string) *model.AccessTokenRecord {
		return saved
	}, nil)
}

func TestTokenManager_CompleteAuthorization_ForeignAccountKeepsPending(t *testing.T) {
	f, store := memoryFixture(t)
	ctx := context.Background()

	_, err := f.manager.CompleteAuthorization(ctx, "acc-2", "RT", "V1")
	require.ErrorIs(t, err, apierror.ErrRequestTokenExpired)
	f.executor.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything)

	f.executor.On("Execute", mock.Anything, callWithAction(usecase.ActionAccessToken)).
		Return(okBody("oauth_token=AT&oauth_token_secret=AS"), nil)
	f.expectSave()

	state, err := f.manager.CompleteAuthorization(ctx, "acc-1", "RT", "V1")
	require.NoError(t, err)
	assert.Equal(t, model.TokenStatusActive, state.Status)

	rec, err := store.Get(ctx, "RT")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestTokenManager_CompleteAuthorization_RetryAfterFailedExchange(t *testing.T) {
	f, store := memoryFixture(t)
	ctx := context.Background()

	f.executor.On("Execute", mock.Anything, callWithAction(usecase.ActionAccessToken)).
		Return(nil, &apierror.TransportError{Err: errors.New("connection reset")}).Once()

	_, err := f.manager.CompleteAuthorization(ctx, "acc-1", "RT", "V1")
	require.Error(t, err)
	f.tokens.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)

	rec, err := store.Get(ctx, "RT")
	require.NoError(t, err)
	require.NotNil(t, rec)

	f.executor.On("Execute", mock.Anything, callWithAction(usecase.ActionAccessToken)).
		Return(okBody("oauth_token=AT&oauth_token_secret=AS"), nil).Once()
	f.expectSave()

	state, err := f.manager.CompleteAuthorization(ctx, "acc-1", "RT", "V1")
	require.NoError(t, err)
	assert.Equal(t, model.TokenStatusActive, state.Status)

	rec, err = store.Get(ctx, "RT")
	require.NoError(t, err)
	assert.Nil(t, rec)
	f.executor.AssertExpectations(t)
}

func TestTokenManager_ExchangeFailure(t *testing.T) {
	f := newTokenFixture(t)
	f.executor.On("Execute", mock.Anything, callWithAction(usecase.ActionAccessToken)).
		Return(&model.CallResult{StatusCode: 400}, apierror.NewAPIError(400, []byte("oauth_problem=token_rejected")))

	_, err := f.manager.ExchangeForAccessToken(context.Background(), &model.TokenPair{Token: "RT", TokenSecret: "RS"}, "V1", "acc-1")
	require.ErrorIs(t, err, apierror.ErrAccessTokenExchangeFailed)
	f.tokens.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestTokenManager_ResolveAccessToken(t *testing.T) {
	t.Run("active", func(t *testing.T) {
		f := newTokenFixture(t)
		f.tokens.On("GetByAccountID", mock.Anything, "acc-1").Return(f.activeRecord(t, model.TokenStatusActive), nil)

		pair, err := f.manager.ResolveAccessToken(context.Background(), "acc-1")
		require.NoError(t, err)
		assert.Equal(t, "access-token", pair.Token)
		assert.Equal(t, "access-secret", pair.TokenSecret)
		assert.Equal(t, model.TokenKindAccess, pair.Kind)
		assert.Equal(t, "acc-1", pair.AccountID)
	})
	t.Run("missing", func(t *testing.T) {
		f := newTokenFixture(t)
		f.tokens.On("GetByAccountID", mock.Anything, "acc-1").Return(nil, nil)

		_, err := f.manager.ResolveAccessToken(context.Background(), "acc-1")
		require.ErrorIs(t, err, apierror.ErrNoValidToken)
	})
	t.Run("revoked", func(t *testing.T) {
		f := newTokenFixture(t)
		f.tokens.On("GetByAccountID", mock.Anything, "acc-1").Return(f.activeRecord(t, model.TokenStatusRevoked), nil)

		_, err := f.manager.ResolveAccessToken(context.Background(), "acc-1")
		require.ErrorIs(t, err, apierror.ErrNoValidToken)
	})
	t.Run("corrupt ciphertext", func(t *testing.T) {
		f := newTokenFixture(t)
		rec := f.activeRecord(t, model.TokenStatusActive)
		rec.TokenSecretCipher = "bm90LWEtdmFsaWQtY2lwaGVydGV4dC1hdC1hbGwh"
		f.tokens.On("GetByAccountID", mock.Anything, "acc-1").Return(rec, nil)

		_, err := f.manager.ResolveAccessToken(context.Background(), "acc-1")
		require.ErrorIs(t, err, apierror.ErrDecryptionFailed)
		assert.True(t, apierror.RequiresReauthentication(err))
	})
	t.Run("repository error", func(t *testing.T) {
		f := newTokenFixture(t)
		f.tokens.On("GetByAccountID", mock.Anything, "acc-1").Return(nil, errors.New("db down"))

		_, err := f.manager.ResolveAccessToken(context.Background(), "acc-1")
		require.Error(t, err)
		assert.NotErrorIs(t, err, apierror.ErrNoValidToken)
	})
}

func TestTokenManager_Renew(t *testing.T) {
	f := newTokenFixture(t)
	f.tokens.On("GetByAccountID", mock.Anything, "acc-1").Return(f.activeRecord(t, model.TokenStatusActive), nil)
	f.executor.On("Execute", mock.Anything, mock.MatchedBy(func(c model.Call) bool {
		return c.Action == usecase.ActionRenewToken && c.Token.Token == "access-token" && c.Token.TokenSecret == "access-secret"
	})).Return(okBody(""), nil)
	f.tokens.On("MarkRenewed", mock.Anything, "acc-1", testNow).Return(nil)

	msg, err := f.manager.Renew(context.Background(), "acc-1")
	require.NoError(t, err)
	assert.Equal(t, "Access Token has been renewed", msg)
	f.tokens.AssertExpectations(t)
}

func TestTokenManager_RenewFailure(t *testing.T) {
	f := newTokenFixture(t)
	f.tokens.On("GetByAccountID", mock.Anything, "acc-1").Return(f.activeRecord(t, model.TokenStatusActive), nil)
	f.executor.On("Execute", mock.Anything, callWithAction(usecase.ActionRenewToken)).
		Return(&model.CallResult{StatusCode: 401}, apierror.NewAPIError(401, nil))

	_, err := f.manager.Renew(context.Background(), "acc-1")
	require.ErrorIs(t, err, apierror.ErrRenewTokenFailed)
	f.tokens.AssertNotCalled(t, "MarkRenewed", mock.Anything, mock.Anything, mock.Anything)
}

func TestTokenManager_RenewRevokedAccount(t *testing.T) {
	f := newTokenFixture(t)
	f.tokens.On("GetByAccountID", mock.Anything, "acc-1").Return(f.activeRecord(t, model.TokenStatusRevoked), nil)

	_, err := f.manager.Renew(context.Background(), "acc-1")
	require.ErrorIs(t, err, apierror.ErrNoValidToken)
	f.executor.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything)
}

func TestTokenManager_Revoke(t *testing.T) {
	t.Run("remote success", func(t *testing.T) {
		f := newTokenFixture(t)
		f.tokens.On("GetByAccountID", mock.Anything, "acc-1").Return(f.activeRecord(t, model.TokenStatusActive), nil)
		f.executor.On("Execute", mock.Anything, callWithAction(usecase.ActionRevokeToken)).Return(okBody("Revoked Access Token"), nil)
		f.tokens.On("MarkRevoked", mock.Anything, "acc-1", testNow).Return(nil)

		require.NoError(t, f.manager.Revoke(context.Background(), "acc-1"))
		f.tokens.AssertExpectations(t)
	})
	t.Run("remote failure still revokes locally", func(t *testing.T) {
		f := newTokenFixture(t)
		f.tokens.On("GetByAccountID", mock.Anything, "acc-1").Return(f.activeRecord(t, model.TokenStatusActive), nil)
		f.executor.On("Execute", mock.Anything, callWithAction(usecase.ActionRevokeToken)).
			Return(&model.CallResult{StatusCode: 500}, apierror.NewAPIError(500, nil))
		f.tokens.On("MarkRevoked", mock.Anything, "acc-1", testNow).Return(nil)

		err := f.manager.Revoke(context.Background(), "acc-1")
		require.ErrorIs(t, err, apierror.ErrRevokeTokenFailed)
		assert.True(t, apierror.RequiresReauthentication(err))
		f.tokens.AssertExpectations(t)
	})
}

func TestTokenManager_RevokedNeverReactivates(t *testing.T) {
	f := newTokenFixture(t)
	rec := f.activeRecord(t, model.TokenStatusRevoked)
	f.tokens.On("GetByAccountID", mock.Anything, "acc-1").Return(rec, nil)

	_, err := f.manager.ResolveAccessToken(context.Background(), "acc-1")
	require.ErrorIs(t, err, apierror.ErrNoValidToken)
	_, err = f.manager.Renew(context.Background(), "acc-1")
	require.ErrorIs(t, err, apierror.ErrNoValidToken)
	require.ErrorIs(t, f.manager.Revoke(context.Background(), "acc-1"), apierror.ErrNoValidToken)

	_, err = model.Transition(model.TokenStatusRevoked, model.EventAccessTokenExchange)
	require.ErrorIs(t, err, model.ErrInvalidTransition)
	_, err = model.Transition(model.TokenStatusRevoked, model.EventRenewed)
	require.ErrorIs(t, err, model.ErrInvalidTransition)
	next, err := model.Transition(model.TokenStatusRevoked, model.EventRequestTokenIssued)
	require.NoError(t, err)
	assert.Equal(t, model.TokenStatusRequestTokenIssued, next)
}

func TestTokenManager_Status(t *testing.T) {
	f := newTokenFixture(t)
	f.tokens.On("GetByAccountID", mock.Anything, "none").Return(nil, nil)
	revokedAt := testNow
	rec := f.activeRecord(t, model.TokenStatusRevoked)
	rec.RevokedAt = &revokedAt
	f.tokens.On("GetByAccountID", mock.Anything, "acc-1").Return(rec, nil)

	state, err := f.manager.Status(context.Background(), "none")
	require.NoError(t, err)
	assert.Equal(t, model.TokenStatusNone, state.Status)
	assert.Nil(t, state.IssuedAt)

	state, err = f.manager.Status(context.Background(), "acc-1")
	require.NoError(t, err)
	assert.Equal(t, model.TokenStatusRevoked, state.Status)
	require.NotNil(t, state.RevokedAt)
	assert.Equal(t, testNow, *state.RevokedAt)
}

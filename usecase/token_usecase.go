package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"brokerage-gateway/domain/apierror"
	"brokerage-gateway/domain/dto"
	"brokerage-gateway/domain/model"
	"brokerage-gateway/domain/repository"
	"brokerage-gateway/infrastructure/logger"
	"brokerage-gateway/infrastructure/oauth1"
	"brokerage-gateway/infrastructure/utils"
)

const (
	ActionRequestToken = "REQUEST_TOKEN"
	ActionAccessToken  = "ACCESS_TOKEN"
	ActionRenewToken   = "RENEW_TOKEN"
	ActionRevokeToken  = "REVOKE_TOKEN"

	DefaultRequestTokenTTL = 5 * time.Minute
	DefaultCallback        = "oob"

	renewedMessage = "Access Token has been renewed"
)

// Endpoints are the absolute URLs of the provider's OAuth endpoints.
type Endpoints struct {
	RequestTokenURL string
	AuthorizeURL    string
	AccessTokenURL  string
	RenewTokenURL   string
	RevokeTokenURL  string
	Callback        string
}

// ITokenManager drives the per-account OAuth 1.0a lifecycle.
type ITokenManager interface {
	repository.ITokenResolver
	GetRequestToken(ctx context.Context) (*model.TokenPair, error)
	AuthorizeURL(requestToken string) string
	BeginAuthorization(ctx context.Context, accountID string) (*dto.AuthorizationStartResponse, error)
	CompleteAuthorization(ctx context.Context, accountID, requestToken, verifier string) (*model.TokenState, error)
	ExchangeForAccessToken(ctx context.Context, requestToken *model.TokenPair, verifier, accountID string) (*model.TokenPair, error)
	Renew(ctx context.Context, accountID string) (string, error)
	Revoke(ctx context.Context, accountID string) error
	Status(ctx context.Context, accountID string) (*model.TokenState, error)
}

type TokenManager struct {
	consumer  model.ConsumerCredential
	endpoints Endpoints
	executor  repository.ICallExecutor
	tokens    repository.IAccessToken
	pending   repository.IRequestTokenStore
	cipher    repository.ISecretCipher
	clock     utils.Clock
	ttl       time.Duration
}

func NewTokenManager(
	consumer model.ConsumerCredential,
	endpoints Endpoints,
	executor repository.ICallExecutor,
	tokens repository.IAccessToken,
	pending repository.IRequestTokenStore,
	cipher repository.ISecretCipher,
	clock utils.Clock,
) *TokenManager {
	if clock == nil {
		clock = utils.SystemClock()
	}
	if endpoints.Callback == "" {
		endpoints.Callback = DefaultCallback
	}
	return &TokenManager{
		consumer:  consumer,
		endpoints: endpoints,
		executor:  executor,
		tokens:    tokens,
		pending:   pending,
		cipher:    cipher,
		clock:     clock,
		ttl:       DefaultRequestTokenTTL,
	}
}

// WithRequestTokenTTL overrides how long a pending request token stays usable.
func (m *TokenManager) WithRequestTokenTTL(ttl time.Duration) *TokenManager {
	if ttl > 0 {
		m.ttl = ttl
	}
	return m
}

// GetRequestToken starts the three-legged flow. The call is signed with the
// consumer credential only.
func (m *TokenManager) GetRequestToken(ctx context.Context) (*model.TokenPair, error) {
	result, err := m.executor.Execute(ctx, model.Call{
		Action:         ActionRequestToken,
		Method:         http.MethodGet,
		URL:            m.endpoints.RequestTokenURL,
		OAuthParams:    map[string]string{oauth1.ParamCallback: m.endpoints.Callback},
		RedactResponse: true,
	})
	if err != nil {
		return nil, apierror.ForStep(apierror.StepRequestToken, err)
	}
	token, secret, err := parseTokenResponse(result.Body)
	if err != nil {
		return nil, err
	}
	return &model.TokenPair{Token: token, TokenSecret: secret, Kind: model.TokenKindRequest}, nil
}

// AuthorizeURL is where the user approves the request token.
func (m *TokenManager) AuthorizeURL(requestToken string) string {
	u, err := url.Parse(m.endpoints.AuthorizeURL)
	if err != nil {
		return m.endpoints.AuthorizeURL
	}
	q := u.Query()
	q.Set("key", m.consumer.ConsumerKey)
	q.Set("token", requestToken)
	u.RawQuery = q.Encode()
	return u.String()
}

// BeginAuthorization issues a request token for accountID and parks it in the
// pending store until the user returns with a verifier.
func (m *TokenManager) BeginAuthorization(ctx context.Context, accountID string) (*dto.AuthorizationStartResponse, error) {
	pair, err := m.GetRequestToken(ctx)
	if err != nil {
		return nil, err
	}
	now := m.clock.Now()
	rec := &model.RequestTokenRecord{
		AccountID:   accountID,
		Token:       pair.Token,
		TokenSecret: pair.TokenSecret,
		IssuedAt:    now,
		ExpiresAt:   now.Add(m.ttl),
	}
	if err := m.pending.Put(ctx, rec, m.ttl); err != nil {
		return nil, fmt.Errorf("store request token: %w", err)
	}

	logger.GetLogger().WithFields(map[string]interface{}{
		"account_id":    accountID,
		"request_token": model.TokenFingerprint(pair.Token),
	}).Info("Request token issued")

	return &dto.AuthorizationStartResponse{
		RequestToken: pair.Token,
		AuthorizeURL: m.AuthorizeURL(pair.Token),
		ExpiresAt:    rec.ExpiresAt,
	}, nil
}

// CompleteAuthorization exchanges the caller's pending request token. An
// unknown, expired or foreign request token fails with ErrRequestTokenExpired
// and leaves the pending entry untouched. The entry is removed only after a
// successful exchange, so a failed exchange can be retried within the TTL.
func (m *TokenManager) CompleteAuthorization(ctx context.Context, accountID, requestToken, verifier string) (*model.TokenState, error) {
	rec, err := m.pending.Get(ctx, requestToken)
	if err != nil {
		return nil, fmt.Errorf("load request token: %w", err)
	}
	if rec == nil || rec.AccountID != accountID {
		return nil, apierror.ErrRequestTokenExpired
	}
	if rec.Expired(m.clock.Now()) {
		status, _ := model.Transition(model.TokenStatusRequestTokenIssued, model.EventRequestTokenExpired)
		logger.GetLogger().WithFields(map[string]interface{}{
			"account_id": accountID,
			"status":     status,
		}).Info("Request token expired before exchange")
		return nil, apierror.ErrRequestTokenExpired
	}

	if _, err := m.ExchangeForAccessToken(ctx, rec.Pair(), verifier, accountID); err != nil {
		return nil, err
	}
	if err := m.pending.Delete(ctx, requestToken); err != nil {
		logger.GetLogger().WithFields(map[string]interface{}{
			"account_id":    accountID,
			"request_token": model.TokenFingerprint(requestToken),
			"error":         err,
		}).Warn("Failed to remove exchanged request token")
	}
	return m.Status(ctx, accountID)
}

// ExchangeForAccessToken trades an authorized request token for the account's
// access token and persists it with the secret encrypted.
func (m *TokenManager) ExchangeForAccessToken(ctx context.Context, requestToken *model.TokenPair, verifier, accountID string) (*model.TokenPair, error) {
	if accountID == "" {
		return nil, errors.New("account id is required")
	}
	status, err := model.Transition(model.TokenStatusRequestTokenIssued, model.EventAccessTokenExchange)
	if err != nil {
		return nil, err
	}

	result, err := m.executor.Execute(ctx, model.Call{
		Action:         ActionAccessToken,
		Method:         http.MethodGet,
		URL:            m.endpoints.AccessTokenURL,
		AccountID:      accountID,
		Token:          requestToken,
		OAuthParams:    map[string]string{oauth1.ParamVerifier: verifier},
		RedactResponse: true,
	})
	if err != nil {
		return nil, apierror.ForStep(apierror.StepAccessToken, err)
	}
	token, secret, err := parseTokenResponse(result.Body)
	if err != nil {
		return nil, err
	}

	cipherText, err := m.cipher.Encrypt(secret)
	if err != nil {
		return nil, fmt.Errorf("encrypt token secret: %w", err)
	}
	now := m.clock.Now().UTC()
	rec := &model.AccessTokenRecord{
		AccountID:         accountID,
		Token:             token,
		TokenSecretCipher: cipherText,
		Status:            status,
		IssuedAt:          now,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := m.tokens.Save(ctx, rec); err != nil {
		return nil, fmt.Errorf("save access token: %w", err)
	}

	logger.GetLogger().WithFields(map[string]interface{}{
		"account_id":   accountID,
		"access_token": model.TokenFingerprint(token),
	}).Info("Access token activated")

	return &model.TokenPair{Token: token, TokenSecret: secret, Kind: model.TokenKindAccess, AccountID: accountID}, nil
}

// ResolveAccessToken decrypts the account's active token pair for one signed call.
func (m *TokenManager) ResolveAccessToken(ctx context.Context, accountID string) (*model.TokenPair, error) {
	_, pair, err := m.activeToken(ctx, accountID)
	return pair, err
}

func (m *TokenManager) activeToken(ctx context.Context, accountID string) (*model.AccessTokenRecord, *model.TokenPair, error) {
	rec, err := m.tokens.GetByAccountID(ctx, accountID)
	if err != nil {
		return nil, nil, fmt.Errorf("load access token: %w", err)
	}
	if rec == nil || rec.Status != model.TokenStatusActive {
		return nil, nil, apierror.ErrNoValidToken
	}
	secret, err := m.cipher.Decrypt(rec.TokenSecretCipher)
	if err != nil {
		if !errors.Is(err, apierror.ErrDecryptionFailed) {
			err = fmt.Errorf("%w: %w", apierror.ErrDecryptionFailed, err)
		}
		return nil, nil, err
	}
	return rec, &model.TokenPair{Token: rec.Token, TokenSecret: secret, Kind: model.TokenKindAccess, AccountID: accountID}, nil
}

// Renew extends the server-side validity of the account's access token. The
// token value does not change.
func (m *TokenManager) Renew(ctx context.Context, accountID string) (string, error) {
	rec, pair, err := m.activeToken(ctx, accountID)
	if err != nil {
		return "", err
	}
	if _, err := model.Transition(rec.Status, model.EventRenewed); err != nil {
		return "", err
	}

	result, err := m.executor.Execute(ctx, model.Call{
		Action:    ActionRenewToken,
		Method:    http.MethodGet,
		URL:       m.endpoints.RenewTokenURL,
		AccountID: accountID,
		Token:     pair,
	})
	if err != nil {
		return "", apierror.ForStep(apierror.StepRenewToken, err)
	}
	if err := m.tokens.MarkRenewed(ctx, accountID, m.clock.Now().UTC()); err != nil {
		return "", fmt.Errorf("mark access token renewed: %w", err)
	}

	message := strings.TrimSpace(string(result.Body))
	if message == "" {
		message = renewedMessage
	}
	return message, nil
}

// Revoke invalidates the account's access token. The local record becomes
// REVOKED even when the provider rejects the call, and the provider error is
// still returned.
func (m *TokenManager) Revoke(ctx context.Context, accountID string) error {
	rec, pair, err := m.activeToken(ctx, accountID)
	if err != nil {
		return err
	}
	if _, err := model.Transition(rec.Status, model.EventRevoked); err != nil {
		return err
	}

	_, callErr := m.executor.Execute(ctx, model.Call{
		Action:    ActionRevokeToken,
		Method:    http.MethodGet,
		URL:       m.endpoints.RevokeTokenURL,
		AccountID: accountID,
		Token:     pair,
	})
	if err := m.tokens.MarkRevoked(context.WithoutCancel(ctx), accountID, m.clock.Now().UTC()); err != nil {
		return errors.Join(apierror.ForStep(apierror.StepRevokeToken, callErr), fmt.Errorf("mark access token revoked: %w", err))
	}

	logger.GetLogger().WithFields(map[string]interface{}{
		"account_id":    accountID,
		"remote_failed": callErr != nil,
	}).Info("Access token revoked")

	if callErr != nil {
		return apierror.ForStep(apierror.StepRevokeToken, callErr)
	}
	return nil
}

// Status reports the account's position in the lifecycle without decrypting.
func (m *TokenManager) Status(ctx context.Context, accountID string) (*model.TokenState, error) {
	rec, err := m.tokens.GetByAccountID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("load access token: %w", err)
	}
	state := &model.TokenState{AccountID: accountID, Status: model.TokenStatusNone}
	if rec == nil {
		return state, nil
	}
	issued := rec.IssuedAt
	state.Status = rec.Status
	state.IssuedAt = &issued
	state.RenewedAt = rec.RenewedAt
	state.RevokedAt = rec.RevokedAt
	return state, nil
}

func parseTokenResponse(body []byte) (token, secret string, err error) {
	values, err := oauth1.ParseOAuthResponse(string(body))
	if err != nil {
		return "", "", fmt.Errorf("%w: %w", apierror.ErrInvalidResponse, err)
	}
	token = values[oauth1.ParamToken]
	secret = values[oauth1.ParamTokenSecret]
	if token == "" || secret == "" {
		return "", "", fmt.Errorf("%w: missing oauth_token or oauth_token_secret", apierror.ErrInvalidResponse)
	}
	return token, secret, nil
}

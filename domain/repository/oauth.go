package repository

import (
	"context"
	"time"

	"brokerage-gateway/domain/model"
)

// IAccessToken persists ACCESS token pairs, one per external account.
// Implementations store only the vault ciphertext of the token secret.
type IAccessToken interface {
	// Save inserts or replaces the account's record.
	Save(ctx context.Context, rec *model.AccessTokenRecord) error
	// GetByAccountID returns nil, nil when the account has no record.
	GetByAccountID(ctx context.Context, accountID string) (*model.AccessTokenRecord, error)
	// MarkRenewed refreshes the renewal timestamp of an active record.
	MarkRenewed(ctx context.Context, accountID string, at time.Time) error
	// MarkRevoked moves the record to REVOKED.
	MarkRevoked(ctx context.Context, accountID string, at time.Time) error
}

// IRequestTokenStore holds pending request token pairs for their short TTL.
type IRequestTokenStore interface {
	Put(ctx context.Context, rec *model.RequestTokenRecord, ttl time.Duration) error
	// Get returns the pending record without removing it, nil when absent or expired.
	Get(ctx context.Context, requestToken string) (*model.RequestTokenRecord, error)
	// Delete removes the pending record. Deleting an absent record is not an error.
	Delete(ctx context.Context, requestToken string) error
}

// ISecretCipher encrypts token secrets at rest.
type ISecretCipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// ITokenResolver hands out the decrypted access token pair for an account.
type ITokenResolver interface {
	ResolveAccessToken(ctx context.Context, accountID string) (*model.TokenPair, error)
}

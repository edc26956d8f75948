package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"brokerage-gateway/domain/apierror"
	"brokerage-gateway/domain/model"
)

// AccessTokenRepository stores access tokens in PostgreSQL, one row per account.
type AccessTokenRepository struct{ db *sql.DB }

func NewAccessTokenRepository(db *sql.DB) *AccessTokenRepository {
	return &AccessTokenRepository{db: db}
}

// EnsureAccessTokenSchema creates brokerage_access_tokens if it does not exist.
func EnsureAccessTokenSchema(db *sql.DB) error {
	ddl := `CREATE TABLE IF NOT EXISTS brokerage_access_tokens (
	id BIGSERIAL PRIMARY KEY,
	account_id VARCHAR(128) NOT NULL UNIQUE,
	token TEXT NOT NULL,
	token_secret_cipher TEXT NOT NULL,
	status VARCHAR(32) NOT NULL,
	issued_at TIMESTAMPTZ NOT NULL,
	renewed_at TIMESTAMPTZ NULL,
	revoked_at TIMESTAMPTZ NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
)`
	if _, err := db.Exec(ddl); err != nil {
		return fmt.Errorf("create brokerage_access_tokens: %w", err)
	}
	return nil
}

// Save inserts or replaces the account's token. A fresh exchange clears any
// previous renewal or revocation.
func (r *AccessTokenRepository) Save(ctx context.Context, rec *model.AccessTokenRecord) error {
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	q := `INSERT INTO brokerage_access_tokens (account_id, token, token_secret_cipher, status, issued_at, renewed_at, revoked_at, created_at, updated_at)
		  VALUES ($1,$2,$3,$4,$5,NULL,NULL,$6,$7)
		  ON CONFLICT (account_id) DO UPDATE SET
			token=EXCLUDED.token,
			token_secret_cipher=EXCLUDED.token_secret_cipher,
			status=EXCLUDED.status,
			issued_at=EXCLUDED.issued_at,
			renewed_at=NULL,
			revoked_at=NULL,
			updated_at=EXCLUDED.updated_at
		  RETURNING id`
	err := r.db.QueryRowContext(ctx, q, rec.AccountID, rec.Token, rec.TokenSecretCipher, string(rec.Status), rec.IssuedAt, rec.CreatedAt, rec.UpdatedAt).Scan(&rec.ID)
	if err != nil {
		return fmt.Errorf("upsert access token: %w", err)
	}
	rec.RenewedAt = nil
	rec.RevokedAt = nil
	return nil
}

func (r *AccessTokenRepository) GetByAccountID(ctx context.Context, accountID string) (*model.AccessTokenRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, account_id, token, token_secret_cipher, status, issued_at, renewed_at, revoked_at, created_at, updated_at FROM brokerage_access_tokens WHERE account_id=$1`, accountID)
	return scanAccessToken(row)
}

func (r *AccessTokenRepository) MarkRenewed(ctx context.Context, accountID string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE brokerage_access_tokens SET renewed_at=$2, updated_at=$2 WHERE account_id=$1 AND status=$3`, accountID, at, string(model.TokenStatusActive))
	if err != nil {
		return fmt.Errorf("mark renewed: %w", err)
	}
	return requireRow(res)
}

func (r *AccessTokenRepository) MarkRevoked(ctx context.Context, accountID string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE brokerage_access_tokens SET status=$2, revoked_at=$3, updated_at=$3 WHERE account_id=$1`, accountID, string(model.TokenStatusRevoked), at)
	if err != nil {
		return fmt.Errorf("mark revoked: %w", err)
	}
	return requireRow(res)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccessToken(row rowScanner) (*model.AccessTokenRecord, error) {
	rec := &model.AccessTokenRecord{}
	var status string
	var renewed, revoked sql.NullTime
	err := row.Scan(&rec.ID, &rec.AccountID, &rec.Token, &rec.TokenSecretCipher, &status, &rec.IssuedAt, &renewed, &revoked, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan access token: %w", err)
	}
	rec.Status = model.TokenStatus(status)
	if renewed.Valid {
		rec.RenewedAt = &renewed.Time
	}
	if revoked.Valid {
		rec.RevokedAt = &revoked.Time
	}
	return rec, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apierror.ErrNoValidToken
	}
	return nil
}

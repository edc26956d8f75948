package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"brokerage-gateway/domain/model"
)

type AccessTokenRepositoryMSSQL struct{ db *sql.DB }

func NewAccessTokenRepositoryMSSQL(db *sql.DB) *AccessTokenRepositoryMSSQL {
	return &AccessTokenRepositoryMSSQL{db: db}
}

// EnsureAccessTokenSchemaMSSQL creates the brokerage_access_tokens table for SQL Server if it does not exist.
func EnsureAccessTokenSchemaMSSQL(db *sql.DB) error {
	ddl := `IF NOT EXISTS (SELECT * FROM sys.objects WHERE object_id = OBJECT_ID(N'dbo.brokerage_access_tokens') AND type in (N'U'))
BEGIN
    CREATE TABLE dbo.[brokerage_access_tokens] (
        id BIGINT IDENTITY(1,1) PRIMARY KEY,
        account_id NVARCHAR(128) NOT NULL,
        token NVARCHAR(512) NOT NULL,
        token_secret_cipher NVARCHAR(MAX) NOT NULL,
        status NVARCHAR(32) NOT NULL,
        issued_at DATETIME2 NOT NULL,
        renewed_at DATETIME2 NULL,
        revoked_at DATETIME2 NULL,
        created_at DATETIME2 NOT NULL,
        updated_at DATETIME2 NOT NULL
    );
    CREATE UNIQUE INDEX UX_brokerage_access_tokens_account ON dbo.[brokerage_access_tokens](account_id);
END`
	if _, err := db.Exec(ddl); err != nil {
		return fmt.Errorf("create brokerage_access_tokens (mssql): %w", err)
	}
	return nil
}

func (r *AccessTokenRepositoryMSSQL) Save(ctx context.Context, rec *model.AccessTokenRecord) error {
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	// MERGE upsert by account_id
	q := `MERGE dbo.[brokerage_access_tokens] AS target
USING (VALUES (@p1)) AS src(account_id)
ON target.account_id = src.account_id
WHEN MATCHED THEN UPDATE SET
    token=@p2,
    token_secret_cipher=@p3,
    status=@p4,
    issued_at=@p5,
    renewed_at=NULL,
    revoked_at=NULL,
    updated_at=@p7
WHEN NOT MATCHED THEN
    INSERT (account_id, token, token_secret_cipher, status, issued_at, created_at, updated_at)
    VALUES (@p1,@p2,@p3,@p4,@p5,@p6,@p7);`
	_, err := r.db.ExecContext(ctx, q,
		rec.AccountID,
		rec.Token,
		rec.TokenSecretCipher,
		string(rec.Status),
		rec.IssuedAt,
		rec.CreatedAt,
		rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("merge access token: %w", err)
	}
	rec.RenewedAt = nil
	rec.RevokedAt = nil
	return nil
}

func (r *AccessTokenRepositoryMSSQL) GetByAccountID(ctx context.Context, accountID string) (*model.AccessTokenRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, account_id, token, token_secret_cipher, status, issued_at, renewed_at, revoked_at, created_at, updated_at FROM dbo.[brokerage_access_tokens] WHERE account_id=@p1`, accountID)
	return scanAccessToken(row)
}

func (r *AccessTokenRepositoryMSSQL) MarkRenewed(ctx context.Context, accountID string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE dbo.[brokerage_access_tokens] SET renewed_at=@p2, updated_at=@p2 WHERE account_id=@p1 AND status=@p3`, accountID, at, string(model.TokenStatusActive))
	if err != nil {
		return fmt.Errorf("mark renewed (mssql): %w", err)
	}
	return requireRow(res)
}

func (r *AccessTokenRepositoryMSSQL) MarkRevoked(ctx context.Context, accountID string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE dbo.[brokerage_access_tokens] SET status=@p2, revoked_at=@p3, updated_at=@p3 WHERE account_id=@p1`, accountID, string(model.TokenStatusRevoked), at)
	if err != nil {
		return fmt.Errorf("mark revoked (mssql): %w", err)
	}
	return requireRow(res)
}

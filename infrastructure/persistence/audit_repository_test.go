package persistence

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"brokerage-gateway/domain/model"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMockGorm(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	gormDB, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      db,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return gormDB, mock
}

func TestAuditRepository_Append(t *testing.T) {
	gormDB, mock := newMockGorm(t)
	account := "acc-1"
	rec := model.AuditRecord{
		ID:             99,
		AccountID:      &account,
		Action:         "GET /v1/accounts/list",
		RequestSummary: "GET https://api.example.com/v1/accounts/list",
		ResponseBody:   "{}",
		StatusCode:     200,
		Attempts:       1,
		DurationMs:     12,
		CreatedAt:      time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `brokerage_audit_records`")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, NewAuditRepository(gormDB).Append(context.Background(), rec))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepository_AppendError(t *testing.T) {
	gormDB, mock := newMockGorm(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `brokerage_audit_records`")).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := NewAuditRepository(gormDB).Append(context.Background(), model.AuditRecord{Action: "REQUEST_TOKEN"})
	require.ErrorContains(t, err, "disk full")
	require.NoError(t, mock.ExpectationsWereMet())
}

package persistence

import (
	"context"
	"fmt"

	"brokerage-gateway/domain/model"

	"gorm.io/gorm"
)

// AuditRepository appends audit records to brokerage_audit_records through gorm.
type AuditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// EnsureAuditSchema migrates the audit table.
func EnsureAuditSchema(db *gorm.DB) error {
	if err := db.AutoMigrate(&model.AuditRecord{}); err != nil {
		return fmt.Errorf("migrate audit records: %w", err)
	}
	return nil
}

func (r *AuditRepository) Append(ctx context.Context, rec model.AuditRecord) error {
	rec.ID = 0
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}
	return nil
}

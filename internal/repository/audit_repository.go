package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/nurpe/wcpms-billing/internal/model"
)

// AuditRepository is append-only; entries are never updated.
type AuditRepository interface {
	Append(ctx context.Context, tx *gorm.DB, entry *model.AuditEntry) error
	ListBySubject(ctx context.Context, tx *gorm.DB, subjectType string, subjectID uint) ([]model.AuditEntry, error)
}

type auditRepo struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) AuditRepository {
	return &auditRepo{db: db}
}

func (r *auditRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *auditRepo) Append(ctx context.Context, tx *gorm.DB, entry *model.AuditEntry) error {
	return r.conn(tx).WithContext(ctx).Create(entry).Error
}

func (r *auditRepo) ListBySubject(ctx context.Context, tx *gorm.DB, subjectType string, subjectID uint) ([]model.AuditEntry, error) {
	var entries []model.AuditEntry
	err := r.conn(tx).WithContext(ctx).
		Where("subject_type = ? AND subject_id = ?", subjectType, subjectID).
		Order("created_at ASC, id ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

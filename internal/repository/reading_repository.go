package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/nurpe/wcpms-billing/internal/model"
)

type ReadingRepository interface {
	FindByID(ctx context.Context, tx *gorm.DB, id uint) (*model.MeterReading, error)
	Update(ctx context.Context, tx *gorm.DB, reading *model.MeterReading) error
	ListUnbilled(ctx context.Context, tx *gorm.DB, contractID uint) ([]model.MeterReading, error)
}

type readingRepo struct {
	db *gorm.DB
}

func NewReadingRepository(db *gorm.DB) ReadingRepository {
	return &readingRepo{db: db}
}

func (r *readingRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *readingRepo) FindByID(ctx context.Context, tx *gorm.DB, id uint) (*model.MeterReading, error) {
	var reading model.MeterReading
	if err := r.conn(tx).WithContext(ctx).First(&reading, id).Error; err != nil {
		return nil, err
	}
	return &reading, nil
}

func (r *readingRepo) Update(ctx context.Context, tx *gorm.DB, reading *model.MeterReading) error {
	return r.conn(tx).WithContext(ctx).Save(reading).Error
}

// ListUnbilled returns completed readings for a contract that are still
// in the unbilled pool.
func (r *readingRepo) ListUnbilled(ctx context.Context, tx *gorm.DB, contractID uint) ([]model.MeterReading, error) {
	var readings []model.MeterReading
	err := r.conn(tx).WithContext(ctx).
		Where("contract_id = ? AND status = ? AND invoice_id IS NULL", contractID, model.ReadingStatusCompleted).
		Order("reading_date ASC").
		Find(&readings).Error
	if err != nil {
		return nil, err
	}
	return readings, nil
}

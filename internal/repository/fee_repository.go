package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/nurpe/wcpms-billing/internal/model"
)

type FeeRepository interface {
	FindByID(ctx context.Context, tx *gorm.DB, id uint) (*model.CalibrationFee, error)
	Update(ctx context.Context, tx *gorm.DB, fee *model.CalibrationFee) error
}

type feeRepo struct {
	db *gorm.DB
}

func NewFeeRepository(db *gorm.DB) FeeRepository {
	return &feeRepo{db: db}
}

func (r *feeRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *feeRepo) FindByID(ctx context.Context, tx *gorm.DB, id uint) (*model.CalibrationFee, error) {
	var fee model.CalibrationFee
	if err := r.conn(tx).WithContext(ctx).First(&fee, id).Error; err != nil {
		return nil, err
	}
	return &fee, nil
}

func (r *feeRepo) Update(ctx context.Context, tx *gorm.DB, fee *model.CalibrationFee) error {
	return r.conn(tx).WithContext(ctx).Save(fee).Error
}
